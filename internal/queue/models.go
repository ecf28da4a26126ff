package queue

import (
	"bytes"
	"io"
	"os"
	"slices"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Status represents the lifecycle of a queue item.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusError      Status = "error"
)

var titleCaser = cases.Title(language.English)

// Label renders the status for display: Pending, Processing..., Completed, Error.
func (s Status) Label() string {
	label := titleCaser.String(string(s))
	if s == StatusProcessing {
		label += "..."
	}
	return label
}

// IsTerminal reports whether the status ends an item's lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError
}

type statusTransition struct {
	from Status
	to   Status
}

var allowedTransitions = map[statusTransition]struct{}{
	{from: StatusPending, to: StatusProcessing}:   {},
	{from: StatusProcessing, to: StatusCompleted}: {},
	{from: StatusProcessing, to: StatusError}:     {},
}

// RunState is the batch-level processing signal.
type RunState string

const (
	RunIdle       RunState = "idle"
	RunProcessing RunState = "processing"
	RunDone       RunState = "done"
)

// Metadata is the structured result produced for one image.
type Metadata struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

func (m Metadata) clone() Metadata {
	m.Keywords = slices.Clone(m.Keywords)
	return m
}

// Source opens the binary content of a queued file. Each call returns a fresh
// reader positioned at the start.
type Source interface {
	Open() (io.ReadCloser, error)
}

// FileSource reads content from a path on disk.
type FileSource string

func (f FileSource) Open() (io.ReadCloser, error) {
	return os.Open(string(f))
}

// BytesSource serves content buffered in memory.
type BytesSource []byte

func (b BytesSource) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b)), nil
}

// Candidate is an incoming file offered to Add.
type Candidate struct {
	Name      string
	MediaType string
	Size      int64
	Source    Source
}

// Item represents one file in the queue. Metadata is set only for completed
// items; ErrorMessage and ErrorKind only for errored items.
type Item struct {
	ID           int64
	Name         string
	MediaType    string
	Size         int64
	Status       Status
	Metadata     *Metadata
	ErrorMessage string
	ErrorKind    string
	Source       Source
}

func (i Item) clone() Item {
	if i.Metadata != nil {
		md := i.Metadata.clone()
		i.Metadata = &md
	}
	return i
}

// Summary counts items per status.
type Summary struct {
	Total      int
	Pending    int
	Processing int
	Completed  int
	Errored    int
	RunState   RunState
}
