package service

import (
	"context"
	"errors"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-registration-engine/internal/model"
)

func validateSchedule(title string, req model.CreateEventRequest) error {
	if title == "" {
		return &ValidationError{Field: "title", Reason: "is required"}
	}
	if req.StartAt.IsZero() {
		return &ValidationError{Field: "start_at", Reason: "is required"}
	}
	if req.EndAt.IsZero() {
		return &ValidationError{Field: "end_at", Reason: "is required"}
	}
	if req.EndAt.Before(req.StartAt) {
		return &ValidationError{Field: "end_at", Reason: "must not be before start_at"}
	}
	if req.Capacity < 0 {
		return &ValidationError{Field: "capacity", Reason: "cannot be negative"}
	}
	return nil
}

// CreateEvent stores a new event owned by administratorID together with its
// custom fields.
func (e *Engine) CreateEvent(ctx context.Context, administratorID string, req model.CreateEventRequest) (*model.Event, error) {
	title := strings.TrimSpace(req.Title)
	if err := validateSchedule(title, req); err != nil {
		return nil, err
	}
	if strings.TrimSpace(administratorID) == "" {
		return nil, &ValidationError{Field: "administrator_id", Reason: "is required"}
	}
	fields, err := ValidateFieldDefinitions(req.CustomFields)
	if err != nil {
		return nil, err
	}

	event := &model.Event{
		Title:           title,
		Description:     strings.TrimSpace(req.Description),
		StartAt:         req.StartAt.UTC(),
		EndAt:           req.EndAt.UTC(),
		Location:        strings.TrimSpace(req.Location),
		Capacity:        req.Capacity,
		AdministratorID: administratorID,
	}
	err = e.call(ctx, "InsertEvent", func(ctx context.Context) error {
		_, err := e.store.InsertEvent(ctx, event)
		return err
	})
	if err != nil {
		return nil, err
	}

	event.CustomFields, err = e.insertFields(ctx, event.ID, fields)
	if err != nil {
		// Undo the half-created event so it does not linger without its form.
		if derr := e.DeleteEvent(context.WithoutCancel(ctx), event.ID); derr != nil {
			e.logger.Error("failed to roll back event after custom field error",
				zap.String("event_id", event.ID),
				zap.Error(derr),
			)
		}
		return nil, err
	}

	e.logger.Info("event created",
		zap.String("event_id", event.ID),
		zap.String("administrator_id", administratorID),
		zap.Int("capacity", event.Capacity),
		zap.Int("custom_fields", len(fields)),
	)
	return event, nil
}

func (e *Engine) insertFields(ctx context.Context, eventID string, fields []model.CustomField) ([]model.CustomField, error) {
	out := make([]model.CustomField, 0, len(fields))
	for _, f := range fields {
		err := e.call(ctx, "InsertCustomField", func(ctx context.Context) error {
			id, err := e.store.InsertCustomField(ctx, eventID, f)
			f.ID = id
			return err
		})
		if err != nil {
			return nil, err
		}
		f.EventID = eventID
		out = append(out, f)
	}
	return out, nil
}

// AuthorizeAdministrator returns ErrForbidden unless userID administers the
// event.
func (e *Engine) AuthorizeAdministrator(ctx context.Context, eventID, userID string) error {
	event, err := e.getEvent(ctx, eventID)
	if err != nil {
		return err
	}
	if userID == "" || event.AdministratorID != userID {
		return ErrForbidden
	}
	return nil
}

// GetEvent returns an event with its custom fields and live availability.
func (e *Engine) GetEvent(ctx context.Context, id string) (*model.EventDetail, error) {
	event, err := e.getEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if event.CustomFields, err = e.listFields(ctx, id); err != nil {
		return nil, err
	}
	regs, err := e.listRegistrations(ctx, model.RegistrationFilter{EventID: id})
	if err != nil {
		return nil, err
	}
	return &model.EventDetail{Event: *event, Availability: Summarize(event, regs)}, nil
}

// UpdateEvent applies a partial edit. Lowering the capacity below the current
// roster does not move anyone to the waitlist.
func (e *Engine) UpdateEvent(ctx context.Context, id string, u model.EventUpdate) (*model.Event, error) {
	current, err := e.getEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	merged := model.CreateEventRequest{
		Title:    current.Title,
		StartAt:  current.StartAt,
		EndAt:    current.EndAt,
		Capacity: current.Capacity,
	}
	if u.Title != nil {
		t := strings.TrimSpace(*u.Title)
		u.Title = &t
		merged.Title = t
	}
	if u.StartAt != nil {
		merged.StartAt = *u.StartAt
	}
	if u.EndAt != nil {
		merged.EndAt = *u.EndAt
	}
	if u.Capacity != nil {
		merged.Capacity = *u.Capacity
	}
	if err := validateSchedule(merged.Title, merged); err != nil {
		return nil, err
	}

	if !u.Empty() {
		err = e.call(ctx, "UpdateEvent", func(ctx context.Context) error {
			return e.store.UpdateEvent(ctx, id, u)
		})
		if err != nil {
			return nil, err
		}
		e.logger.Info("event updated", zap.String("event_id", id))
	}

	updated, err := e.getEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	if updated.CustomFields, err = e.listFields(ctx, id); err != nil {
		return nil, err
	}
	return updated, nil
}

// ListCustomFields returns an event's sign-up form in order.
func (e *Engine) ListCustomFields(ctx context.Context, eventID string) ([]model.CustomField, error) {
	if _, err := e.getEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return e.listFields(ctx, eventID)
}

// ReplaceCustomFields swaps an event's whole sign-up form: every existing field
// is deleted and the new definitions are created in order. Answers already
// stored on registrations are kept.
func (e *Engine) ReplaceCustomFields(ctx context.Context, eventID string, inputs []model.CustomFieldInput) ([]model.CustomField, error) {
	fields, err := ValidateFieldDefinitions(inputs)
	if err != nil {
		return nil, err
	}
	if _, err := e.getEvent(ctx, eventID); err != nil {
		return nil, err
	}

	var out []model.CustomField
	err = e.withEventLock(ctx, eventID, func() error {
		if _, err := e.getEvent(ctx, eventID); err != nil {
			return err
		}
		existing, err := e.listFields(ctx, eventID)
		if err != nil {
			return err
		}
		for _, f := range existing {
			err := e.call(ctx, "DeleteCustomField", func(ctx context.Context) error {
				return e.store.DeleteCustomField(ctx, f.ID)
			})
			if err != nil && !errors.Is(err, ErrNotFound) {
				return err
			}
		}
		out, err = e.insertFields(ctx, eventID, fields)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("custom fields replaced",
		zap.String("event_id", eventID),
		zap.Int("count", len(out)),
	)
	return out, nil
}

// ListEvents returns the events matching the filter, earliest start first.
func (e *Engine) ListEvents(ctx context.Context, f model.EventFilter) ([]model.Event, error) {
	var events []model.Event
	err := e.read(ctx, "ListEvents", func(ctx context.Context) error {
		var err error
		events, err = e.store.ListEvents(ctx, f)
		return err
	})
	return events, err
}

// ListLocations returns the distinct location names in use, sorted.
func (e *Engine) ListLocations(ctx context.Context) ([]string, error) {
	events, err := e.ListEvents(ctx, model.EventFilter{})
	if err != nil {
		return nil, err
	}
	locations := []string{}
	for i := range events {
		if name := events[i].LocationName(); name != "" && !slices.Contains(locations, name) {
			locations = append(locations, name)
		}
	}
	slices.Sort(locations)
	return locations, nil
}

// Availability reports the event's current seat usage.
func (e *Engine) Availability(ctx context.Context, eventID string) (model.Availability, error) {
	event, err := e.getEvent(ctx, eventID)
	if err != nil {
		return model.Availability{}, err
	}
	regs, err := e.listRegistrations(ctx, model.RegistrationFilter{EventID: eventID})
	if err != nil {
		return model.Availability{}, err
	}
	return Summarize(event, regs), nil
}
