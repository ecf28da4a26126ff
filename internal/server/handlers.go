package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"stockmeta/internal/api"
	"stockmeta/internal/intake"
	"stockmeta/internal/logging"
	"stockmeta/internal/queue"
	"stockmeta/internal/services"
	"stockmeta/internal/session"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": s.sessions.Len()})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.Create()
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(r.Context(), s.logger), "create session failed", "session_create_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check model.prompt_file"),
		)
		s.writeError(w, http.StatusInternalServerError, "failed to create session", "")
		return
	}
	s.writeJSON(w, http.StatusCreated, api.SessionResponse{ID: sess.ID()})
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.sessions.Delete(sessionFrom(r).ID()); err != nil {
		s.writeQueueError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req api.VerifyRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	sess := sessionFrom(r)
	models, err := sess.Verify(r.Context(), req.APIKey)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, services.DisplayMessage(err), services.Kind(err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.ModelsResponse{Models: models, Selected: sess.Model()})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	models := sess.Models()
	if models == nil {
		models = []string{}
	}
	s.writeJSON(w, http.StatusOK, api.ModelsResponse{Models: models, Selected: sess.Model()})
}

func (s *Server) handleSelectModel(w http.ResponseWriter, r *http.Request) {
	var req api.SelectModelRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	sess := sessionFrom(r)
	if err := sess.SelectModel(req.Model); err != nil {
		s.writeError(w, http.StatusBadRequest, services.DisplayMessage(err), services.Kind(err))
		return
	}
	s.writeJSON(w, http.StatusOK, api.ModelsResponse{Models: sess.Models(), Selected: sess.Model()})
}

func (s *Server) handleQueue(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, api.QueueView(sessionFrom(r).Queue()))
}

func (s *Server) handleAddFiles(w http.ResponseWriter, r *http.Request) {
	q := sessionFrom(r).Queue()
	if q.RunState() == queue.RunProcessing {
		s.writeError(w, http.StatusConflict, queue.ErrQueueLocked.Error(), "")
		return
	}

	perFile := s.cfg.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, perFile*maxFilesPerUpload)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, http.StatusRequestEntityTooLarge, "upload too large", "")
			return
		}
		s.writeError(w, http.StatusBadRequest, "expected multipart form with files", "")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["files"]
	if len(headers) > maxFilesPerUpload {
		s.writeError(w, http.StatusRequestEntityTooLarge, "too many files in one upload", "")
		return
	}

	logger := logging.WithContext(r.Context(), s.logger)
	candidates := make([]queue.Candidate, 0, len(headers))
	for _, header := range headers {
		candidate, err := intake.FromUpload(header, perFile)
		if err != nil {
			logging.WarnWithContext(logger, "upload skipped", "upload_skipped",
				logging.String("file", header.Filename),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "file exceeds server.max_upload_mb or could not be read"),
			)
			continue
		}
		candidates = append(candidates, candidate)
	}

	added, err := q.Add(candidates...)
	if err != nil {
		s.writeQueueError(w, err)
		return
	}
	logger.Debug("files added",
		logging.Int("received", len(headers)),
		logging.Int("added", len(added)),
	)
	s.writeJSON(w, http.StatusOK, api.AddFilesResponse{
		Added:    api.FromQueueItems(added),
		Received: len(headers),
		Skipped:  len(headers) - len(added),
	})
}

func (s *Server) handleClearQueue(w http.ResponseWriter, r *http.Request) {
	if _, err := sessionFrom(r).Queue().Clear(); err != nil {
		s.writeQueueError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "itemID"), 10, 64)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid queue item id", "")
		return
	}
	if err := sessionFrom(r).Queue().Remove(id); err != nil {
		s.writeQueueError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	job := sess.Job()
	q := sess.Queue()
	pending := len(q.PendingIDs())

	// The run outlives the request; only the request's values are kept.
	runCtx := context.WithoutCancel(r.Context())
	done, err := s.runner.Start(runCtx, q, job)
	if err != nil {
		if errors.Is(err, services.ErrCredential) {
			s.writeError(w, http.StatusBadRequest, services.DisplayMessage(err), services.Kind(err))
			return
		}
		s.writeQueueError(w, err)
		return
	}
	go func() {
		summary := <-done
		logging.WithContext(runCtx, s.logger).Debug("background run complete",
			logging.String(logging.FieldRunID, summary.RunID),
		)
	}()
	s.writeJSON(w, http.StatusAccepted, api.RunAccepted{Pending: pending, Model: job.Model})
}

func (s *Server) writeQueueError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, queue.ErrQueueLocked), errors.Is(err, queue.ErrRunActive):
		s.writeError(w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, session.ErrSessionNotFound), errors.Is(err, queue.ErrQueueClosed):
		s.writeError(w, http.StatusNotFound, "session not found", "")
	case errors.Is(err, queue.ErrNotFound):
		s.writeError(w, http.StatusNotFound, "queue item not found", "")
	case errors.Is(err, session.ErrUnknownModel):
		s.writeError(w, http.StatusBadRequest, err.Error(), "")
	default:
		s.logger.Error("request failed", logging.Error(err))
		s.writeError(w, http.StatusInternalServerError, "internal error", "")
	}
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, target any) bool {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body", "")
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response failed", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message, kind string) {
	s.writeJSON(w, status, api.ErrorResponse{Error: message, Kind: kind})
}
