// Package model defines the core domain types for the event registration engine.
package model

import (
	"encoding/json"
	"strings"
	"time"
)

// Status is the placement of a registration on an event's roster.
type Status string

const (
	StatusRegistered Status = "Registered"
	StatusWaitlisted Status = "Waitlisted"
)

// Valid reports whether s is one of the active registration statuses.
func (s Status) Valid() bool {
	return s == StatusRegistered || s == StatusWaitlisted
}

// ParseStatus accepts the canonical names case-insensitively.
func ParseStatus(s string) (Status, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "registered":
		return StatusRegistered, true
	case "waitlisted", "waitlist":
		return StatusWaitlisted, true
	}
	return "", false
}

// FieldType selects how a custom field answer is represented.
type FieldType string

const (
	FieldText           FieldType = "text"
	FieldMultipleChoice FieldType = "multipleChoice"
)

// Valid reports whether t is a supported field type.
func (t FieldType) Valid() bool {
	return t == FieldText || t == FieldMultipleChoice
}

// Event is a schedulable activity with a capacity and a set of sign-up questions.
// Capacity 0 means unlimited.
type Event struct {
	ID              string        `json:"id"`
	Title           string        `json:"title"`
	Description     string        `json:"description,omitempty"`
	StartAt         time.Time     `json:"start_at"`
	EndAt           time.Time     `json:"end_at"`
	Location        string        `json:"location,omitempty"`
	Capacity        int           `json:"capacity"`
	AdministratorID string        `json:"administrator_id"`
	CustomFields    []CustomField `json:"custom_fields"`
	CreatedAt       time.Time     `json:"created_at"`
}

// LocationName returns the display name of the event's location.
func (e *Event) LocationName() string {
	return LocationDisplayName(e.Location)
}

// LocationDisplayName resolves a stored location to its display name. Locations
// are either free text or a JSON descriptor carrying a DisplayName.
func LocationDisplayName(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if strings.HasPrefix(raw, "{") {
		var desc struct {
			DisplayName string `json:"DisplayName"`
		}
		if err := json.Unmarshal([]byte(raw), &desc); err == nil && desc.DisplayName != "" {
			return desc.DisplayName
		}
	}
	return raw
}

// CustomField is an admin-defined question attached to an event's sign-up form.
type CustomField struct {
	ID       string    `json:"id"`
	EventID  string    `json:"event_id"`
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Options  []string  `json:"options,omitempty"`
	Required bool      `json:"required"`
	Position int       `json:"position"`
}

// Registration is one participant's association with one event.
type Registration struct {
	ID              string            `json:"id"`
	EventID         string            `json:"event_id"`
	UserID          string            `json:"user_id"`
	DisplayName     string            `json:"display_name"`
	Status          Status            `json:"status"`
	RegistrationKey string            `json:"registration_key"`
	SubmittedAt     time.Time         `json:"submitted_at"`
	FieldAnswers    map[string]string `json:"field_answers,omitempty"`
}

// Active reports whether the registration holds a seat or a waitlist spot.
func (r *Registration) Active() bool {
	return r.Status.Valid()
}

// EventFilter narrows an event listing. Zero values are ignored.
type EventFilter struct {
	From            *time.Time
	To              *time.Time
	Location        string
	AdministratorID string
	UpcomingOnly    bool
}

// Matches reports whether e satisfies the filter at instant now. Date bounds
// apply to the event start; upcoming means the event has not ended yet.
func (f EventFilter) Matches(e *Event, now time.Time) bool {
	if f.From != nil && e.StartAt.Before(*f.From) {
		return false
	}
	if f.To != nil && e.StartAt.After(*f.To) {
		return false
	}
	if f.AdministratorID != "" && e.AdministratorID != f.AdministratorID {
		return false
	}
	if f.Location != "" && !strings.EqualFold(f.Location, "all") && e.LocationName() != f.Location {
		return false
	}
	if f.UpcomingOnly && e.EndAt.Before(now) {
		return false
	}
	return true
}

// EventUpdate is a partial event edit; nil fields are left untouched.
type EventUpdate struct {
	Title       *string    `json:"title,omitempty"`
	Description *string    `json:"description,omitempty"`
	StartAt     *time.Time `json:"start_at,omitempty"`
	EndAt       *time.Time `json:"end_at,omitempty"`
	Location    *string    `json:"location,omitempty"`
	Capacity    *int       `json:"capacity,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u EventUpdate) Empty() bool {
	return u.Title == nil && u.Description == nil && u.StartAt == nil &&
		u.EndAt == nil && u.Location == nil && u.Capacity == nil
}

// RegistrationFilter narrows a registration query. Empty fields match everything.
type RegistrationFilter struct {
	EventID string
	UserID  string
	Status  Status
}

// Matches reports whether r satisfies the filter.
func (f RegistrationFilter) Matches(r *Registration) bool {
	if f.EventID != "" && r.EventID != f.EventID {
		return false
	}
	if f.UserID != "" && r.UserID != f.UserID {
		return false
	}
	if f.Status != "" && r.Status != f.Status {
		return false
	}
	return true
}

// Roster is an event's participant list split by status.
type Roster struct {
	Registered []Registration `json:"registered"`
	Waitlisted []Registration `json:"waitlisted"`
}

// Availability summarises an event's seats.
type Availability struct {
	Capacity   int  `json:"capacity"`
	Registered int  `json:"registered"`
	Waitlisted int  `json:"waitlisted"`
	Available  int  `json:"available"`
	Unlimited  bool `json:"unlimited"`
	Full       bool `json:"full"`
}

// CreateEventRequest is the payload for creating a new event.
type CreateEventRequest struct {
	Title        string             `json:"title"`
	Description  string             `json:"description"`
	StartAt      time.Time          `json:"start_at"`
	EndAt        time.Time          `json:"end_at"`
	Location     string             `json:"location"`
	Capacity     int                `json:"capacity"`
	CustomFields []CustomFieldInput `json:"custom_fields"`
}

// CustomFieldInput is the payload shape for defining a custom field.
type CustomFieldInput struct {
	Name     string    `json:"name"`
	Type     FieldType `json:"type"`
	Options  []string  `json:"options,omitempty"`
	Required bool      `json:"required"`
}

// RegisterRequest is the payload for self-service signup.
type RegisterRequest struct {
	FieldAnswers map[string]string `json:"field_answers"`
}

// AddParticipantRequest is the payload for an administrator adding a participant.
type AddParticipantRequest struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Status      Status `json:"status"`
}

// EventDetail is an event together with its live availability.
type EventDetail struct {
	Event
	Availability Availability `json:"availability"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}
