// Package httptransport is the thin HTTP layer. It decodes submissions,
// delegates to the dispatcher, and translates results to JSON; no conversion
// logic lives here.
package httptransport

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"convrelay/internal/audit"
	"convrelay/internal/dispatch"
	"convrelay/internal/identity"
	"convrelay/internal/platform/middleware"
)

// SubmissionRequest is one form submission as posted by the site embed. The
// cookie map piggybacks the visitor's tracking cookies so the identity
// resolver can see them server-side.
type SubmissionRequest struct {
	FormID         string            `json:"formId"`
	ConversionName string            `json:"conversionName"`
	Fields         map[string]any    `json:"fields"`
	Cookies        map[string]string `json:"cookies,omitempty"`
}

// SubmissionResponse reports what the dispatch did. ConversionName is echoed
// back so the embed can fire its own page-level confirmation.
type SubmissionResponse struct {
	State          string        `json:"state"`
	RecordID       string        `json:"recordId,omitempty"`
	ConversionName string        `json:"conversionName"`
	Outcomes       []OutcomeView `json:"outcomes"`
}

// OutcomeView is one sink operation result in the response body.
type OutcomeView struct {
	Sink   string `json:"sink"`
	Op     string `json:"op"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler handles the submission and audit endpoints.
type Handler struct {
	logger     *slog.Logger
	dispatcher *dispatch.Dispatcher
	cookies    *identity.Snapshot
	audit      *audit.Log
}

// New creates the transport Handler.
func New(dispatcher *dispatch.Dispatcher, cookies *identity.Snapshot, auditLog *audit.Log, logger *slog.Logger) *Handler {
	return &Handler{
		logger:     logger,
		dispatcher: dispatcher,
		cookies:    cookies,
		audit:      auditLog,
	}
}

// Register registers the v1 routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Post("/v1/submissions", h.handleSubmit)
	r.Get("/v1/audit", h.handleAudit)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var req SubmissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "invalid submission body",
			"request_id", requestID,
			"error", err.Error(),
		)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// Tracking cookies ride along with the submission; merge them before the
	// dispatcher starts its identity wait.
	if len(req.Cookies) > 0 {
		h.cookies.Update(req.Cookies)
	}

	res := h.dispatcher.HandleSubmit(ctx, req.Fields, req.FormID, req.ConversionName)
	if res.Err != nil {
		if errors.Is(res.Err, dispatch.ErrMissingRequiredField) {
			writeError(w, http.StatusUnprocessableEntity, res.Err.Error())
			return
		}
		h.logger.ErrorContext(ctx, "dispatch failed",
			"request_id", requestID,
			"error", res.Err.Error(),
		)
		writeError(w, http.StatusInternalServerError, "dispatch failed")
		return
	}

	resp := SubmissionResponse{
		State:          string(res.State),
		RecordID:       res.Record.ID.String(),
		ConversionName: res.ConversionName,
		Outcomes:       make([]OutcomeView, 0, len(res.Outcomes)),
	}
	for _, o := range res.Outcomes {
		resp.Outcomes = append(resp.Outcomes, OutcomeView{
			Sink:   o.Sink,
			Op:     o.Op,
			Status: string(o.Status),
			Detail: o.Detail,
		})
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleAudit exposes the in-memory audit trail for operators.
func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": h.audit.Snapshot(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes the JSON error envelope so every route fails the
// same way.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
