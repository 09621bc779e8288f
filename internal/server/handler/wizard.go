package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/alanyoungcy/p2poffer/internal/domain"
	"github.com/alanyoungcy/p2poffer/internal/wizard"
)

// WizardService defines the methods that the wizard handler requires from the
// service layer.
type WizardService interface {
	Create(ctx context.Context, user domain.UserSnapshot) (wizard.View, error)
	Get(ctx context.Context, id string) (wizard.View, error)
	Apply(ctx context.Context, id string, p wizard.Patch) (wizard.View, error)
	Next(ctx context.Context, id string) (wizard.View, error)
	Prev(ctx context.Context, id string) (wizard.View, error)
	GoTo(ctx context.Context, id string, n int) (wizard.View, error)
	AutoAdjust(ctx context.Context, id string) (wizard.View, error)
	Submit(ctx context.Context, id string) (wizard.View, error)
	Cancel(ctx context.Context, id string) error
}

// WizardHandler serves the offer wizard endpoints.
type WizardHandler struct {
	wizards WizardService
	logger  *slog.Logger
}

// NewWizardHandler creates a WizardHandler with the given service and logger.
func NewWizardHandler(wizards WizardService, logger *slog.Logger) *WizardHandler {
	return &WizardHandler{wizards: wizards, logger: logger}
}

type createWizardRequest struct {
	User *domain.UserSnapshot `json:"user"`
}

type patchRequest struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data"`
}

// viewErrorResponse carries the session view alongside an error so the
// client can keep editing after a failed transition or submission.
type viewErrorResponse struct {
	Error string      `json:"error"`
	View  wizard.View `json:"view"`
}

// userFromRequest resolves the acting user from the body, falling back to
// the X-User-* headers set by the fronting gateway.
func userFromRequest(r *http.Request, body *domain.UserSnapshot) (domain.UserSnapshot, error) {
	var u domain.UserSnapshot
	if body != nil {
		u = *body
	}
	if u.ID == "" {
		u.ID = r.Header.Get("X-User-ID")
	}
	if u.Country == "" {
		u.Country = r.Header.Get("X-User-Country")
	}
	if u.KYCLevel == 0 {
		if v := r.Header.Get("X-User-KYC-Level"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return u, fmt.Errorf("%w: X-User-KYC-Level must be a non-negative integer", domain.ErrInvalidInput)
			}
			u.KYCLevel = n
		}
	}
	u.ID = strings.TrimSpace(u.ID)
	u.Country = strings.ToUpper(strings.TrimSpace(u.Country))
	if u.ID == "" {
		return u, fmt.Errorf("%w: user id is required", domain.ErrInvalidInput)
	}
	return u, nil
}

// Create starts a wizard session.
// POST /api/wizard
func (h *WizardHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createWizardRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := userFromRequest(r, req.User)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.wizards.Create(r.Context(), user)
	if err != nil {
		writeServiceError(w, r, h.logger, "create wizard", err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

// Get returns the current view of a session.
// GET /api/wizard/{id}
func (h *WizardHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.wizards.Get(r.Context(), r.PathValue("id"))
	h.respond(w, r, "get wizard", view, err)
}

// Patch applies one step patch to the draft.
// PATCH /api/wizard/{id}  {"kind": "amount", "data": {"value": 0.5}}
func (h *WizardHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var req patchRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := wizard.DecodePatch(req.Kind, req.Data)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := h.wizards.Apply(r.Context(), r.PathValue("id"), p)
	h.respond(w, r, "apply patch", view, err)
}

// Next advances the session. On the review step this submits the offer.
// POST /api/wizard/{id}/next
func (h *WizardHandler) Next(w http.ResponseWriter, r *http.Request) {
	view, err := h.wizards.Next(r.Context(), r.PathValue("id"))
	h.respond(w, r, "next step", view, err)
}

// Prev moves the session back one step.
// POST /api/wizard/{id}/prev
func (h *WizardHandler) Prev(w http.ResponseWriter, r *http.Request) {
	view, err := h.wizards.Prev(r.Context(), r.PathValue("id"))
	h.respond(w, r, "previous step", view, err)
}

// GoTo jumps to a step.
// POST /api/wizard/{id}/step/{n}
func (h *WizardHandler) GoTo(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "step must be an integer")
		return
	}
	view, err := h.wizards.GoTo(r.Context(), r.PathValue("id"), n)
	h.respond(w, r, "go to step", view, err)
}

// AutoAdjust raises a below-minimum amount.
// POST /api/wizard/{id}/auto-adjust
func (h *WizardHandler) AutoAdjust(w http.ResponseWriter, r *http.Request) {
	view, err := h.wizards.AutoAdjust(r.Context(), r.PathValue("id"))
	h.respond(w, r, "auto adjust", view, err)
}

// Submit sends the offer.
// POST /api/wizard/{id}/submit
func (h *WizardHandler) Submit(w http.ResponseWriter, r *http.Request) {
	view, err := h.wizards.Submit(r.Context(), r.PathValue("id"))
	h.respond(w, r, "submit offer", view, err)
}

// Cancel discards a session.
// DELETE /api/wizard/{id}
func (h *WizardHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.wizards.Cancel(r.Context(), r.PathValue("id")); err != nil {
		writeServiceError(w, r, h.logger, "cancel wizard", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respond writes view on success. On failure it includes the view when the
// session still exists, so the client sees the draft it can fix.
func (h *WizardHandler) respond(w http.ResponseWriter, r *http.Request, op string, view wizard.View, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, view)
		return
	}
	if view.ID == "" {
		writeServiceError(w, r, h.logger, op, err)
		return
	}
	status := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "handler: "+op+" failed",
			slog.String("session_id", view.ID),
			slog.String("error", err.Error()),
		)
	}
	writeJSON(w, status, viewErrorResponse{Error: err.Error(), View: view})
}
