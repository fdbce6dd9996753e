package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/raaihank/phi-sentinel/internal/audit"
	"github.com/raaihank/phi-sentinel/internal/cache"
	"github.com/raaihank/phi-sentinel/internal/logger"
	"github.com/raaihank/phi-sentinel/internal/privacy"
	"github.com/raaihank/phi-sentinel/internal/websocket"
	"go.uber.org/zap"
)

// deidentifyRequest is the API request body. Unset option fields fall back to
// the configured pipeline defaults.
type deidentifyRequest struct {
	Text          string `json:"text"`
	Mode          string `json:"mode,omitempty"`
	Policy        string `json:"policy,omitempty"`
	DefaultAction string `json:"default_action,omitempty"`
	Reversible    *bool  `json:"reversible,omitempty"`
	Locale        string `json:"locale,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

// handleDeidentify runs one de-identification call.
func (s *Server) handleDeidentify(w http.ResponseWriter, r *http.Request) {
	s.countRequest()
	requestID := getRequestID(r.Context())
	log := s.logger.WithRequestID(requestID)

	r.Body = http.MaxBytesReader(w, r.Body, s.config.Server.MaxTextBytes)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "failed to read request body"})
		return
	}

	var req deidentifyRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	opts := s.requestOptions(req)
	if err := opts.Validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	start := time.Now()

	// Serve from cache when enabled; any cache trouble falls through to the
	// pipeline.
	var fingerprint string
	if s.cache != nil {
		fingerprint = cache.Fingerprint(req.Text, opts)
		cached, cerr := s.cache.Get(r.Context(), fingerprint)
		if cerr != nil {
			log.Debug("Result cache lookup failed", zap.Error(cerr))
		} else if cached != nil {
			log.Debug("Result served from cache")
			s.broadcastDetection(requestID, cached, time.Since(start))
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	result, err := s.pipeline.Deidentify(r.Context(), req.Text, opts)
	if err != nil {
		if errors.Is(err, privacy.ErrInvalidConfig) {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		log.Error("De-identification failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "de-identification failed"})
		return
	}
	duration := time.Since(start)

	if s.cache != nil {
		if cerr := s.cache.Set(r.Context(), fingerprint, result); cerr != nil {
			log.Debug("Result cache store failed", zap.Error(cerr))
		}
	}

	s.recordAudit(result, duration, log)
	s.broadcastDetection(requestID, result, duration)

	writeJSON(w, http.StatusOK, result)
}

// requestOptions merges request fields over configured defaults.
func (s *Server) requestOptions(req deidentifyRequest) privacy.Options {
	opts := s.config.Pipeline.Options()
	if req.Mode != "" {
		opts.Mode = privacy.Mode(req.Mode)
	}
	if req.Policy != "" {
		opts.Policy = privacy.Policy(req.Policy)
	}
	if req.DefaultAction != "" {
		opts.DefaultAction = privacy.Action(req.DefaultAction)
	}
	if req.Reversible != nil {
		opts.Reversible = *req.Reversible
	}
	if req.Locale != "" {
		opts.Locale = req.Locale
	}
	return opts
}

// recordAudit writes the call aggregate off the request path. Audit failures
// never fail the call.
func (s *Server) recordAudit(result *privacy.Result, duration time.Duration, log *logger.Logger) {
	if s.audit == nil {
		return
	}

	typeCounts := make(map[string]int)
	for _, entity := range result.Result.Entities {
		typeCounts[string(entity.Type)]++
	}

	record, err := audit.NewRecord(
		string(result.Request.Mode),
		string(result.Request.Policy),
		result.Result.Summary.EntitiesFound,
		result.Result.Summary.ReviewRequired,
		duration,
		typeCounts,
	)
	if err != nil {
		log.Warn("Failed to build audit record", zap.Error(err))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.audit.Insert(ctx, record); err != nil {
			log.Warn("Failed to write audit record", zap.Error(err))
		}
	}()
}

// broadcastDetection pushes a counts-only summary to dashboard clients.
func (s *Server) broadcastDetection(requestID string, result *privacy.Result, duration time.Duration) {
	if result.Result.Summary.EntitiesFound == 0 {
		return
	}
	s.countDetection()

	typeCounts := make(map[string]int)
	for _, entity := range result.Result.Entities {
		typeCounts[string(entity.Type)]++
	}

	s.wsHub.BroadcastEvent(websocket.Event{
		Type:      websocket.EventTypeDetection,
		Timestamp: time.Now(),
		RequestID: requestID,
		Data: websocket.DetectionEvent{
			RequestID:      requestID,
			EntitiesFound:  result.Result.Summary.EntitiesFound,
			TypeCounts:     typeCounts,
			ReviewRequired: result.Result.Summary.ReviewRequired,
			Mode:           string(result.Request.Mode),
			Policy:         string(result.Request.Policy),
			ProcessingMS:   float64(duration.Microseconds()) / 1000.0,
		},
	})
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleInfo reports service status for the dashboard.
func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"service":          "phi-sentinel",
		"uptime":           time.Since(s.started).Round(time.Second).String(),
		"total_requests":   atomic.LoadInt64(&s.totalRequests),
		"total_detections": atomic.LoadInt64(&s.totalDetections),
		"active_rules":     s.pipeline.RuleCount(),
		"ner_available":    s.pipeline.NERAvailable(),
		"websocket":        s.wsHub.GetStats(),
	}
	if s.cache != nil {
		info["cache"] = s.cache.Stats()
	}
	if s.audit != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		if totals, err := s.audit.Stats(ctx); err == nil {
			info["audit"] = totals
		}
	}
	writeJSON(w, http.StatusOK, info)
}

// handleLegend serves the fixed entity type to color table.
func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, privacy.Legend())
}
