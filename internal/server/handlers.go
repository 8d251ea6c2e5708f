package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/raaihank/ai-shield/internal/access"
	"github.com/raaihank/ai-shield/internal/audit"
	"github.com/raaihank/ai-shield/internal/policy"
	"github.com/raaihank/ai-shield/internal/shield"
	"github.com/raaihank/ai-shield/internal/usage"
	"github.com/raaihank/ai-shield/internal/websocket"
)

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Timestamp: time.Now().UTC()})
}

// handleInfo handles info requests
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, infoResponse{
		Name:             "ai-shield",
		Version:          s.version,
		Uptime:           time.Since(s.started).Round(time.Second).String(),
		EnabledDetectors: s.shield.Engine().EnabledDetectors(),
		AutoMask:         s.shield.AutoMask(),
		AuditBackend:     s.config.Audit.Backend,
		UsageBackend:     s.config.Usage.Backend,
		RateLimit:        s.config.RateLimit.Enabled,
		WebSocket:        s.hub != nil && s.config.WebSocket.Enabled,
		Counters:         s.shield.Counters(),
	})
}

// handleDetect scans text and returns the full detection result
func (s *Server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.shield.Engine().Detect(req.Text))
}

// handleDecide scans text and decides against an explicit ceiling. Nothing is audited.
func (s *Server) handleDecide(w http.ResponseWriter, r *http.Request) {
	var req decideRequest
	if !s.decode(w, r, &req) {
		return
	}

	autoMask := s.shield.AutoMask()
	if req.AutoMask != nil {
		autoMask = *req.AutoMask
	}

	result := s.shield.Engine().Detect(req.Text)
	decision, err := policy.DecideFor(result, req.Ceiling, autoMask)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, decideResponse{Detection: result, Decision: decision})
}

// handleEvaluate runs the full pipeline for an authenticated user and tool
func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if !s.decode(w, r, &req) {
		return
	}

	outcome, err := s.shield.Evaluate(r.Context(), shield.Request{
		RequestID: getRequestID(r.Context()),
		User:      req.User,
		ToolID:    req.ToolID,
		ToolName:  req.ToolName,
		Text:      req.Text,
		Output:    req.Output,
		SessionID: req.SessionID,
		IPAddress: websocket.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		if errors.Is(err, shield.ErrPersistence) && outcome != nil {
			s.writeJSON(w, http.StatusInternalServerError, errorResponse{
				Error:     "failed to persist evaluation",
				RequestID: getRequestID(r.Context()),
				Decision:  &outcome.Decision,
			})
			return
		}
		s.writeError(w, r, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, outcome)
}

// handleActivity records login and logout events
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if !s.decode(w, r, &req) {
		return
	}

	entry, err := s.shield.LogActivity(r.Context(), req.User, audit.Action(req.Action), req.SessionID)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusCreated, entry)
}

// handleAuditQuery returns audit entries, newest first
func (s *Server) handleAuditQuery(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	entries, err := s.shield.Store().Query(r.Context(), filter)
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, auditResponse{Entries: entries, Count: len(entries)})
}

// handleAuditStats returns the weekly dashboard statistics
func (s *Server) handleAuditStats(w http.ResponseWriter, r *http.Request) {
	stats, err := audit.WeeklyStats(r.Context(), s.shield.Store(), time.Now())
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// handleAuditExport streams entries as csv, jsonl or parquet
func (s *Server) handleAuditExport(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err == nil {
		err = filter.Validate()
	}
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	name := r.URL.Query().Get("format")
	if name == "" {
		name = string(audit.FormatJSONL)
	}
	format, err := audit.ParseFormat(name)
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	w.Header().Set("Content-Type", contentTypes[format])
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="audit.%s"`, format))

	n, err := audit.Export(r.Context(), s.shield.Store(), filter, format, w)
	if err != nil {
		// headers may already be out; log and stop
		s.logger.Error("Audit export failed", zap.Error(err), zap.Int("written", n))
		return
	}
	s.logger.Info("Audit exported", zap.String("format", string(format)), zap.Int("entries", n))
}

var contentTypes = map[audit.Format]string{
	audit.FormatCSV:     "text/csv",
	audit.FormatJSONL:   "application/x-ndjson",
	audit.FormatParquet: "application/vnd.apache.parquet",
}

// handleUsage returns a user's request counters
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	u, err := s.shield.Usage().Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.writeError(w, r, statusFor(err), err)
		return
	}
	s.writeJSON(w, http.StatusOK, u)
}

// handleAccess returns the tool records and permissions of a role
func (s *Server) handleAccess(w http.ResponseWriter, r *http.Request) {
	role := access.Role(mux.Vars(r)["role"])
	table := s.shield.Access()

	tools, err := table.Tools(role)
	if err != nil {
		s.writeError(w, r, http.StatusNotFound, err)
		return
	}
	s.writeJSON(w, http.StatusOK, accessResponse{Role: role, Permissions: table.Permissions(role), Tools: tools})
}

// parseFilter reads audit filters from the query string
func parseFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{
		UserID:     q.Get("userId"),
		Department: q.Get("department"),
		Action:     audit.Action(q.Get("action")),
		Decision:   audit.Decision(q.Get("decision")),
	}

	var err error
	if v := q.Get("start"); v != "" {
		if filter.Start, err = time.Parse(time.RFC3339, v); err != nil {
			return filter, fmt.Errorf("%w: start: %v", audit.ErrInvalidFilter, err)
		}
	}
	if v := q.Get("end"); v != "" {
		if filter.End, err = time.Parse(time.RFC3339, v); err != nil {
			return filter, fmt.Errorf("%w: end: %v", audit.ErrInvalidFilter, err)
		}
	}
	if v := q.Get("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			return filter, fmt.Errorf("%w: limit: %v", audit.ErrInvalidFilter, err)
		}
	}
	return filter, nil
}

// decode reads and validates a JSON body, writing a 400 on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if s.config.Server.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxBodyBytes)
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, r, http.StatusRequestEntityTooLarge, err)
			return false
		}
		s.writeError(w, r, http.StatusBadRequest, fmt.Errorf("invalid JSON body: %w", err))
		return false
	}

	if err := s.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			details := make(map[string]string, len(verrs))
			for _, fe := range verrs {
				details[fieldPath(fe.Namespace())] = fe.Tag()
			}
			s.writeJSON(w, http.StatusBadRequest, errorResponse{
				Error:     "validation failed",
				Details:   details,
				RequestID: getRequestID(r.Context()),
			})
			return false
		}
		s.writeError(w, r, http.StatusBadRequest, err)
		return false
	}
	return true
}

// fieldPath drops the top-level struct name from a validator namespace
func fieldPath(ns string) string {
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

// statusFor maps domain errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, shield.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, shield.ErrInvalidRequest),
		errors.Is(err, policy.ErrInvalidCeiling),
		errors.Is(err, audit.ErrInvalidFilter),
		errors.Is(err, usage.ErrEmptyUserID):
		return http.StatusBadRequest
	case errors.Is(err, access.ErrUnknownRole):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		s.logger.WithRequestID(getRequestID(r.Context())).Error("Request failed", zap.Error(err))
		msg = http.StatusText(status)
	}
	s.writeJSON(w, status, errorResponse{Error: msg, RequestID: getRequestID(r.Context())})
}
