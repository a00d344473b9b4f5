package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/holokernel/internal/entity"
	"github.com/hyperjump/holokernel/internal/kernel"
	"github.com/hyperjump/holokernel/internal/models"
	"github.com/hyperjump/holokernel/internal/signature"
	"github.com/hyperjump/holokernel/internal/storage"
)

// Journal page size bounds.
const (
	defaultPageLimit = 50
	maxPageLimit     = 500
)

func (s *Server) handleAssociate(w http.ResponseWriter, r *http.Request) {
	var req models.AssociateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	res, err := s.kernel.Associate([]byte(req.Key), []byte(req.Value))
	if err != nil {
		s.respondKernelError(w, "associate failed", err)
		return
	}
	s.logger.Debug("associate request",
		zap.Stringer("key", res.KeySignature),
		zap.Stringer("value", res.ValueSignature),
		zap.Int("slot", res.Slot),
	)
	s.respondJSON(w, http.StatusCreated, models.AssociateResponse{InsertResult: res, Overwrote: res.Abandoned > 0})
}

func (s *Server) handleGetMemory(w http.ResponseWriter, r *http.Request) {
	fp, err := signature.Parse(chi.URLParam(r, "fingerprint"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	v, ok, err := s.kernel.RecallFingerprint(fp)
	if err != nil {
		s.respondKernelError(w, "lookup failed", err)
		return
	}
	if !ok {
		s.respondError(w, http.StatusNotFound, "memory not found")
		return
	}
	summary := models.Summarize(&v, r.URL.Query().Get("components") == "true")
	s.respondJSON(w, http.StatusOK, models.RecallResponse{Key: fp, Found: true, Value: &summary})
}

func (s *Server) handleListMemories(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.kernel.Memories())
}

func (s *Server) handleRecall(w http.ResponseWriter, r *http.Request) {
	var req models.InputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	fp, v, ok, err := s.kernel.Recall([]byte(req.Input))
	if err != nil {
		s.respondKernelError(w, "recall failed", err)
		return
	}
	resp := models.RecallResponse{Key: fp, Found: ok}
	if ok {
		summary := models.Summarize(&v, req.Components)
		query := s.kernel.Encode([]byte(req.Input))
		sim := models.Compare(&query, &v)
		resp.Value = &summary
		resp.Similarity = &sim
	}
	s.respondJSON(w, http.StatusOK, resp)
}

func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	var req models.InputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	v := s.kernel.Encode([]byte(req.Input))
	s.respondJSON(w, http.StatusOK, models.Summarize(&v, req.Components))
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	entities := s.kernel.Entities()
	out := make([]models.EntityInfo, 0, len(entities))
	for _, e := range entities {
		out = append(out, models.DescribeEntity(e))
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{"entities": out})
}

func (s *Server) handleDispatch(w http.ResponseWriter, r *http.Request) {
	kind, err := entity.ParseKind(chi.URLParam(r, "kind"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	var req models.TaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	processed, count, err := s.kernel.Dispatch(req.Task(kind))
	if err != nil {
		s.respondKernelError(w, "dispatch failed", err)
		return
	}
	s.logger.Debug("dispatch request", zap.Stringer("entity", kind), zap.Uint32("task_id", req.ID), zap.Bool("processed", processed))
	status := http.StatusOK
	if !processed {
		status = http.StatusAccepted
	}
	s.respondJSON(w, status, models.TaskResponse{Entity: kind, Processed: processed, TasksProcessed: count})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, s.kernel.Status())
}

func (s *Server) handleSelfTest(w http.ResponseWriter, r *http.Request) {
	resp := s.kernel.SelfTest()
	status := http.StatusOK
	if !resp.Report.Passed {
		status = http.StatusInternalServerError
	}
	s.respondJSON(w, status, resp)
}

func (s *Server) handleConsole(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, models.ConsoleResponse{Lines: s.kernel.Console(), Cursor: s.kernel.Cursor()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !s.kernel.Booted() {
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "down"})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	j := s.kernel.Journal()
	if j == nil {
		s.respondError(w, http.StatusNotFound, "journal disabled")
		return
	}
	offset, limit, err := parsePage(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	sessions, err := j.ListSessions(r.Context(), offset, limit)
	if err != nil {
		s.respondJournalError(w, "list sessions failed", err)
		return
	}
	if sessions == nil {
		sessions = []*models.Session{}
	}
	s.respondJSON(w, http.StatusOK, models.SessionsResponse{Sessions: sessions, Offset: offset, Limit: limit})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	j := s.kernel.Journal()
	if j == nil {
		s.respondError(w, http.StatusNotFound, "journal disabled")
		return
	}
	sess, err := j.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondJournalError(w, "get session failed", err)
		return
	}
	s.respondJSON(w, http.StatusOK, sess)
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	j := s.kernel.Journal()
	if j == nil {
		s.respondError(w, http.StatusNotFound, "journal disabled")
		return
	}
	offset, limit, err := parsePage(r)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	kind, err := models.ParseEventKind(r.URL.Query().Get("kind"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	ctx := r.Context()
	sess, err := j.GetSession(ctx, chi.URLParam(r, "id"))
	if err != nil {
		s.respondJournalError(w, "get session failed", err)
		return
	}
	events, err := j.ListEvents(ctx, sess.ID, kind, offset, limit)
	if err != nil {
		s.respondJournalError(w, "list events failed", err)
		return
	}
	total, err := j.CountEvents(ctx, sess.ID, kind)
	if err != nil {
		s.respondJournalError(w, "count events failed", err)
		return
	}
	if events == nil {
		events = []*models.JournalEvent{}
	}
	s.respondJSON(w, http.StatusOK, models.EventsResponse{
		Session: sess,
		Kind:    kind,
		Events:  events,
		Total:   total,
		Offset:  offset,
		Limit:   limit,
	})
}

// parsePage reads offset and limit query parameters. limit defaults to 50 and is capped at 500.
func parsePage(r *http.Request) (int, int, error) {
	q := r.URL.Query()
	offset, limit := 0, defaultPageLimit
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return 0, 0, fmt.Errorf("invalid offset %q", v)
		}
		offset = n
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return 0, 0, fmt.Errorf("invalid limit %q", v)
		}
		limit = n
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	return offset, limit, nil
}

// respondJournalError maps journal errors to status codes.
func (s *Server) respondJournalError(w http.ResponseWriter, msg string, err error) {
	if errors.Is(err, storage.ErrSessionNotFound) {
		s.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error(msg, zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, msg)
}

// respondKernelError maps kernel errors to status codes.
func (s *Server) respondKernelError(w http.ResponseWriter, msg string, err error) {
	switch {
	case errors.Is(err, kernel.ErrNotBooted):
		s.respondError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, entity.ErrUnknownKind):
		s.respondError(w, http.StatusNotFound, err.Error())
	default:
		s.logger.Error(msg, zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}
