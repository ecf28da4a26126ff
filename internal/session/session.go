package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"stockmeta/internal/batch"
	"stockmeta/internal/config"
	"stockmeta/internal/logging"
	"stockmeta/internal/metadata"
	"stockmeta/internal/queue"
	"stockmeta/internal/services"
	"stockmeta/internal/services/llm"
)

// MissingKeyMessage is reported when verification is attempted with a blank key.
const MissingKeyMessage = "Please enter an API key."

// SupersededMessage is reported when a newer verification replaced this one
// before it finished.
const SupersededMessage = "A newer API key verification replaced this one."

// ErrUnknownModel is returned by SelectModel for models outside the verified list.
var ErrUnknownModel = errors.New("model is not in the verified list")

// VerificationObserver is told about every verification attempt.
type VerificationObserver interface {
	CredentialVerified(success bool)
}

// Session holds one user's credential, verified models, selected model and
// queue. Everything lives in memory and is dropped with the session.
type Session struct {
	id       string
	cfg      *config.Config
	prompt   string
	logger   *slog.Logger
	observer VerificationObserver
	queue    *queue.Queue

	// lastSeen is unix nanoseconds, read by the store sweep without mu.
	lastSeen atomic.Int64

	mu         sync.Mutex
	generation uint64
	requester  *metadata.Requester
	models     []string
	model      string
}

// New creates a session. The prompt override, if configured, is read here.
func New(id string, cfg *config.Config, logger *slog.Logger, observer VerificationObserver) (*Session, error) {
	if cfg == nil {
		defaults := config.Default()
		cfg = &defaults
	}
	prompt, err := cfg.Prompt()
	if err != nil {
		return nil, err
	}
	base := logging.NewComponentLogger(logger, "session")
	if id != "" {
		base = base.With(logging.String(logging.FieldSessionID, id))
	}
	sess := &Session{
		id:       id,
		cfg:      cfg,
		prompt:   prompt,
		logger:   base,
		observer: observer,
		queue:    queue.New(),
	}
	sess.Touch()
	return sess, nil
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Queue returns the session's queue.
func (s *Session) Queue() *queue.Queue { return s.queue }

// Verify checks apiKey against the provider's model listing and keeps the
// vision-capable models. Any failure clears the previous verification and is
// reported as a credential error. The provider call runs without holding the
// session lock; when a newer Verify starts meanwhile, this result is dropped.
func (s *Session) Verify(ctx context.Context, apiKey string) ([]string, error) {
	s.Touch()
	gen := s.reset()

	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		s.record(false)
		return nil, services.Fail(services.ErrCredential, MissingKeyMessage, nil)
	}

	client := llm.NewClient(llm.Config{
		APIKey:         apiKey,
		BaseURL:        s.cfg.Provider.BaseURL,
		TimeoutSeconds: s.cfg.Provider.TimeoutSeconds,
	})
	ids, err := client.ListModels(ctx)
	if err != nil {
		s.record(false)
		message := llm.FallbackVerifyMessage
		var apiErr *llm.APIError
		if errors.As(err, &apiErr) {
			message = apiErr.Message
		}
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "credential verification failed", "verify_failed",
			logging.String("message", message),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the API key and provider.base_url"),
		)
		return nil, services.Fail(services.ErrCredential, message, err)
	}

	models := VisionModels(ids, s.cfg.Model.VisionInclude, s.cfg.Model.VisionExclude)
	requester := metadata.NewRequester(client, s.prompt, s.cfg.Model.MaxTokens, s.logger)
	selected := ""
	if slices.Contains(models, s.cfg.Model.Default) {
		selected = s.cfg.Model.Default
	}

	s.mu.Lock()
	if s.generation != gen {
		s.mu.Unlock()
		logging.WithContext(ctx, s.logger).Debug("stale verification dropped",
			logging.String(logging.FieldEventType, "verify_superseded"),
		)
		return nil, services.Fail(services.ErrCredential, SupersededMessage, nil)
	}
	s.models = models
	s.requester = requester
	s.model = selected
	s.mu.Unlock()
	s.record(true)

	logging.WithContext(ctx, s.logger).Info("credential verified",
		logging.String(logging.FieldEventType, "verify_succeeded"),
		logging.Int("models_total", len(ids)),
		logging.Int("models_vision", len(models)),
		logging.String("selected_model", selected),
		logging.Bool("default_available", selected != ""),
	)
	return slices.Clone(models), nil
}

// reset drops the current verification and starts a new generation.
func (s *Session) reset() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.requester = nil
	s.models = nil
	s.model = ""
	return s.generation
}

func (s *Session) record(success bool) {
	if s.observer != nil {
		s.observer.CredentialVerified(success)
	}
}

// Verified reports whether a credential has been verified.
func (s *Session) Verified() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requester != nil
}

// Models returns the verified vision-capable models.
func (s *Session) Models() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.models)
}

// Model returns the selected model, or an empty string.
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// SelectModel chooses the model for subsequent runs.
func (s *Session) SelectModel(name string) error {
	s.Touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	name = strings.TrimSpace(name)
	if s.requester == nil {
		return services.Fail(services.ErrCredential, batch.NotReadyMessage, nil)
	}
	if !slices.Contains(s.models, name) {
		return fmt.Errorf("select model %q: %w", name, ErrUnknownModel)
	}
	s.model = name
	return nil
}

// Prompt returns the instruction template requests will use.
func (s *Session) Prompt() string {
	if s.prompt != "" {
		return s.prompt
	}
	return metadata.DefaultPrompt()
}

// Job returns the batch job for the current verification and model. The
// requester is nil when no credential has been verified.
func (s *Session) Job() batch.Job {
	s.Touch()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.requester == nil {
		return batch.Job{Model: s.model}
	}
	return batch.Job{Requester: s.requester, Model: s.model}
}

// Touch records activity for idle expiry.
func (s *Session) Touch() {
	s.lastSeen.Store(time.Now().UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastSeen.Load())
}

// VisionModels keeps identifiers that start with any include prefix and
// contain none of the exclude substrings, sorted.
func VisionModels(ids, include, exclude []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		lower := strings.ToLower(id)
		matched := false
		for _, prefix := range include {
			if strings.HasPrefix(lower, prefix) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		for _, sub := range exclude {
			if strings.Contains(lower, sub) {
				matched = false
				break
			}
		}
		if matched {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}
