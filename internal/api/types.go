package api

// QueueItem describes a queue entry in a transport-friendly format.
type QueueItem struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	MediaType    string    `json:"mediaType"`
	Size         int64     `json:"size"`
	Status       string    `json:"status"`
	StatusLabel  string    `json:"statusLabel"`
	Metadata     *Metadata `json:"metadata,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
	ErrorKind    string    `json:"errorKind,omitempty"`
}

// Metadata is the generated title, description and ordered keywords.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// QueueSummary counts queue items per status.
type QueueSummary struct {
	Total      int    `json:"total"`
	Pending    int    `json:"pending"`
	Processing int    `json:"processing"`
	Completed  int    `json:"completed"`
	Error      int    `json:"error"`
	RunState   string `json:"runState"`
}

// QueueResponse wraps the queue contents for API responses.
type QueueResponse struct {
	Items   []QueueItem  `json:"items"`
	Summary QueueSummary `json:"summary"`
}

// AddFilesResponse reports which uploads entered the queue.
type AddFilesResponse struct {
	Added    []QueueItem `json:"added"`
	Received int         `json:"received"`
	Skipped  int         `json:"skipped"`
}

// SessionResponse identifies a newly created session.
type SessionResponse struct {
	ID string `json:"id"`
}

// VerifyRequest carries the API key to verify. It is never stored.
type VerifyRequest struct {
	APIKey string `json:"apiKey"`
}

// ModelsResponse lists verified vision-capable models and the current selection.
type ModelsResponse struct {
	Models   []string `json:"models"`
	Selected string   `json:"selected,omitempty"`
}

// SelectModelRequest chooses the model for subsequent runs.
type SelectModelRequest struct {
	Model string `json:"model"`
}

// RunSummary reports the outcome of one batch run.
type RunSummary struct {
	RunID      string         `json:"runId"`
	Model      string         `json:"model,omitempty"`
	Processed  int            `json:"processed"`
	Completed  int            `json:"completed"`
	Errored    int            `json:"errored"`
	ErrorKinds map[string]int `json:"errorKinds,omitempty"`
	DurationMS int64          `json:"durationMs"`
}

// RunAccepted acknowledges a run started in the background.
type RunAccepted struct {
	Pending int    `json:"pending"`
	Model   string `json:"model"`
}

// RunResult is the CLI's machine-readable output for one run.
type RunResult struct {
	Run   RunSummary  `json:"run"`
	Items []QueueItem `json:"items"`
}

// ErrorResponse is the body of every non-2xx API response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
