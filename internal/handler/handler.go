// Package handler contains chi HTTP handlers that translate HTTP
// requests/responses to and from the registration engine.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-registration-engine/internal/model"
	"github.com/Shivanand-hulikatti/event-registration-engine/internal/service"
)

// EventHandler holds all HTTP handlers for the registration API.
type EventHandler struct {
	svc    *service.Engine
	logger *zap.Logger
}

// NewEventHandler constructs an EventHandler.
func NewEventHandler(svc *service.Engine, logger *zap.Logger) *EventHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventHandler{svc: svc, logger: logger}
}

// ─── Helper utilities ─────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, model.ErrorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MB limit
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// cascadeFailureResponse tells an operator exactly which rows a failed event
// delete left behind.
type cascadeFailureResponse struct {
	Error               string   `json:"error"`
	EventID             string   `json:"event_id"`
	FailedRegistrations []string `json:"failed_registrations"`
	FailedFields        []string `json:"failed_fields"`
	ChildrenDeleted     bool     `json:"children_deleted"`
	EventDeleted        bool     `json:"event_deleted"`
}

// writeServiceError maps engine errors onto HTTP statuses.
func (h *EventHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		verr *service.ValidationError
		pcf  *service.PartialCascadeFailure
		serr *service.StoreError
	)
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, model.ErrorResponse{Error: verr.Error(), Field: verr.Field})
	case errors.Is(err, service.ErrAlreadyRegistered):
		writeError(w, http.StatusConflict, "already registered for this event")
	case errors.Is(err, service.ErrEventFull):
		writeError(w, http.StatusConflict, "event is fully booked")
	case errors.Is(err, service.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &pcf):
		h.logger.Error("event delete incomplete", zap.String("path", r.URL.Path), zap.Error(err))
		writeJSON(w, http.StatusBadGateway, cascadeFailureResponse{
			Error:               pcf.Error(),
			EventID:             pcf.EventID,
			FailedRegistrations: pcf.FailedRegistrations,
			FailedFields:        pcf.FailedFields,
			ChildrenDeleted:     pcf.ChildrenDeleted,
			EventDeleted:        pcf.EventDeleted,
		})
	case errors.Is(err, service.ErrTimeout):
		h.logger.Error("event store timeout", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, "event store timed out")
	case errors.As(err, &serr):
		h.logger.Error("event store failure", zap.String("path", r.URL.Path), zap.String("op", serr.Op), zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, fmt.Sprintf("event store unavailable (%s)", serr.Op))
	default:
		h.logger.Error("unhandled error", zap.String("path", r.URL.Path), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

// requireAdmin writes a response and returns false unless the caller
// administers the event.
func (h *EventHandler) requireAdmin(w http.ResponseWriter, r *http.Request, eventID string) bool {
	id, _ := IdentityFrom(r.Context())
	if err := h.svc.AuthorizeAdministrator(r.Context(), eventID, id.UserID); err != nil {
		h.writeServiceError(w, r, err)
		return false
	}
	return true
}

// requireRegistrationAdmin resolves a registration's event and checks the
// caller administers it.
func (h *EventHandler) requireRegistrationAdmin(w http.ResponseWriter, r *http.Request, registrationID string) bool {
	reg, err := h.svc.GetRegistration(r.Context(), registrationID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return false
	}
	return h.requireAdmin(w, r, reg.EventID)
}

func parseTime(v string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	return time.Parse(time.DateOnly, v)
}

func parseEventFilter(r *http.Request) (model.EventFilter, error) {
	q := r.URL.Query()
	f := model.EventFilter{
		Location:        strings.TrimSpace(q.Get("location")),
		AdministratorID: strings.TrimSpace(q.Get("administrator")),
	}
	if v := q.Get("from"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return f, &service.ValidationError{Field: "from", Reason: "must be RFC3339 or YYYY-MM-DD"}
		}
		f.From = &t
	}
	if v := q.Get("to"); v != "" {
		t, err := parseTime(v)
		if err != nil {
			return f, &service.ValidationError{Field: "to", Reason: "must be RFC3339 or YYYY-MM-DD"}
		}
		f.To = &t
	}
	if v := q.Get("upcoming"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return f, &service.ValidationError{Field: "upcoming", Reason: "must be true or false"}
		}
		f.UpcomingOnly = b
	}
	return f, nil
}

func parseStatus(v string) (model.Status, error) {
	if v == "" {
		return "", nil
	}
	s, ok := model.ParseStatus(v)
	if !ok {
		return "", &service.ValidationError{Field: "status", Reason: "must be Registered or Waitlisted"}
	}
	return s, nil
}

// ─── Events ───────────────────────────────────────────────────────────────────

// CreateEvent handles POST /events
// The caller becomes the event's administrator.
func (h *EventHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var req model.CreateEventRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	id, _ := IdentityFrom(r.Context())
	event, err := h.svc.CreateEvent(r.Context(), id.UserID, req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, event)
}

// ListEvents handles GET /events
// Supports from, to, location, administrator and upcoming query parameters.
func (h *EventHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	filter, err := parseEventFilter(r)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	events, err := h.svc.ListEvents(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	// Return an empty array rather than null for better client compatibility.
	if events == nil {
		events = []model.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

// ListLocations handles GET /events/locations
func (h *EventHandler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locations, err := h.svc.ListLocations(r.Context())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, locations)
}

// GetEvent handles GET /events/{id}
// Returns the event, its sign-up form and live availability.
func (h *EventHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	detail, err := h.svc.GetEvent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// UpdateEvent handles PATCH /events/{id}
func (h *EventHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var u model.EventUpdate
	if err := decodeJSON(w, r, &u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !h.requireAdmin(w, r, id) {
		return
	}

	event, err := h.svc.UpdateEvent(r.Context(), id, u)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

// DeleteEvent handles DELETE /events/{id}
// Removes the event with its registrations and custom fields.
func (h *EventHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.requireAdmin(w, r, id) {
		return
	}
	if err := h.svc.DeleteEvent(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCustomFields handles GET /events/{id}/fields
func (h *EventHandler) ListCustomFields(w http.ResponseWriter, r *http.Request) {
	fields, err := h.svc.ListCustomFields(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if fields == nil {
		fields = []model.CustomField{}
	}
	writeJSON(w, http.StatusOK, fields)
}

// ReplaceCustomFields handles PUT /events/{id}/fields
// The body is the complete new form, as a JSON array of field definitions.
func (h *EventHandler) ReplaceCustomFields(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var inputs []model.CustomFieldInput
	if err := decodeJSON(w, r, &inputs); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if !h.requireAdmin(w, r, id) {
		return
	}

	fields, err := h.svc.ReplaceCustomFields(r.Context(), id, inputs)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, fields)
}

// ─── Registration ─────────────────────────────────────────────────────────────

// Register handles POST /events/{id}/register
// Signs the caller up; the response status field reports Registered or
// Waitlisted.
func (h *EventHandler) Register(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req model.RegisterRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	caller, _ := IdentityFrom(r.Context())
	reg, err := h.svc.Register(r.Context(), id, caller.UserID, caller.DisplayName, req.FieldAnswers)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, reg)
}

// Withdraw handles DELETE /events/{id}/register
func (h *EventHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())
	if err := h.svc.Withdraw(r.Context(), chi.URLParam(r, "id"), caller.UserID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MyRegistrations handles GET /me/registrations
func (h *EventHandler) MyRegistrations(w http.ResponseWriter, r *http.Request) {
	caller, _ := IdentityFrom(r.Context())
	regs, err := h.svc.UserRegistrations(r.Context(), caller.UserID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if regs == nil {
		regs = []model.Registration{}
	}
	writeJSON(w, http.StatusOK, regs)
}

// ─── Roster administration ────────────────────────────────────────────────────

// ListParticipants handles GET /events/{id}/participants
// An optional status query parameter limits the roster to one partition.
func (h *EventHandler) ListParticipants(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	status, err := parseStatus(r.URL.Query().Get("status"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !h.requireAdmin(w, r, id) {
		return
	}

	roster, err := h.svc.ListParticipants(r.Context(), id, status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, roster)
}

// AddParticipant handles POST /events/{id}/participants
func (h *EventHandler) AddParticipant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req model.AddParticipantRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	status, err := parseStatus(string(req.Status))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if !h.requireAdmin(w, r, id) {
		return
	}

	reg, err := h.svc.AddParticipant(r.Context(), id, req.UserID, req.DisplayName, status)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, reg)
}

// RemoveParticipant handles DELETE /registrations/{id}
func (h *EventHandler) RemoveParticipant(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.requireRegistrationAdmin(w, r, id) {
		return
	}
	if err := h.svc.RemoveParticipant(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Promote handles POST /registrations/{id}/promote
func (h *EventHandler) Promote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.requireRegistrationAdmin(w, r, id) {
		return
	}
	reg, err := h.svc.PromoteFromWaitlist(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// Demote handles POST /registrations/{id}/demote
func (h *EventHandler) Demote(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.requireRegistrationAdmin(w, r, id) {
		return
	}
	reg, err := h.svc.DemoteToWaitlist(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, reg)
}

// ─── Health check ─────────────────────────────────────────────────────────────

// HealthCheck handles GET /health
func HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
