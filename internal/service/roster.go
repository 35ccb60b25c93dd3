package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-registration-engine/internal/model"
)

// ListParticipants returns an event's roster. An empty status returns both
// partitions, each queried separately.
func (e *Engine) ListParticipants(ctx context.Context, eventID string, status model.Status) (*model.Roster, error) {
	if status != "" && !status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: "must be Registered or Waitlisted"}
	}
	if _, err := e.getEvent(ctx, eventID); err != nil {
		return nil, err
	}

	roster := &model.Roster{Registered: []model.Registration{}, Waitlisted: []model.Registration{}}
	if status == "" || status == model.StatusRegistered {
		regs, err := e.listRegistrations(ctx, model.RegistrationFilter{EventID: eventID, Status: model.StatusRegistered})
		if err != nil {
			return nil, err
		}
		roster.Registered = append(roster.Registered, regs...)
	}
	if status == "" || status == model.StatusWaitlisted {
		regs, err := e.listRegistrations(ctx, model.RegistrationFilter{EventID: eventID, Status: model.StatusWaitlisted})
		if err != nil {
			return nil, err
		}
		roster.Waitlisted = append(roster.Waitlisted, regs...)
	}
	return roster, nil
}

// AddParticipant inserts a registration with the requested status, skipping
// capacity placement. The duplicate check still applies.
func (e *Engine) AddParticipant(ctx context.Context, eventID, userID, displayName string, status model.Status) (*model.Registration, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "is required"}
	}
	if status == "" {
		status = model.StatusRegistered
	}
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Reason: "must be Registered or Waitlisted"}
	}
	if _, err := e.getEvent(ctx, eventID); err != nil {
		return nil, err
	}

	var reg *model.Registration
	err := e.withEventLock(ctx, eventID, func() error {
		if _, err := e.getEvent(ctx, eventID); err != nil {
			return err
		}
		regs, err := e.listRegistrations(ctx, model.RegistrationFilter{EventID: eventID, UserID: userID})
		if err != nil {
			return err
		}
		if activeFor(regs, userID) != nil {
			return ErrAlreadyRegistered
		}
		now := e.now().UTC()
		reg = &model.Registration{
			EventID:         eventID,
			UserID:          userID,
			DisplayName:     strings.TrimSpace(displayName),
			Status:          status,
			RegistrationKey: RegistrationKey(eventID, userID, now),
			SubmittedAt:     now,
		}
		return e.insertRegistration(ctx, reg)
	})
	if err != nil {
		return nil, err
	}

	e.metrics.Roster("add")
	e.logger.Info("participant added",
		zap.String("event_id", eventID),
		zap.String("user_id", userID),
		zap.String("status", string(status)),
	)
	return reg, nil
}

// RemoveParticipant deletes a registration. The freed seat is not handed to
// the waitlist; use PromoteFromWaitlist for that. Removing a registration that
// no longer exists returns ErrNotFound.
func (e *Engine) RemoveParticipant(ctx context.Context, registrationID string) error {
	reg, err := e.getRegistration(ctx, registrationID)
	if err != nil {
		return err
	}
	err = e.withEventLock(ctx, reg.EventID, func() error {
		return e.deleteRegistration(ctx, registrationID)
	})
	if err != nil {
		return err
	}

	e.metrics.Roster("remove")
	e.logger.Info("participant removed",
		zap.String("event_id", reg.EventID),
		zap.String("registration_id", registrationID),
	)
	return nil
}

// PromoteFromWaitlist moves a waitlisted registration onto the roster. It
// fails with ErrEventFull when no seat is free. Promoting a registration that
// already holds a seat changes nothing.
func (e *Engine) PromoteFromWaitlist(ctx context.Context, registrationID string) (*model.Registration, error) {
	return e.transition(ctx, registrationID, model.StatusRegistered, "promote", func(event *model.Event, regs []model.Registration) error {
		if AvailableSeats(event, regs) <= 0 {
			return ErrEventFull
		}
		return nil
	})
}

// DemoteToWaitlist moves a registered participant to the waitlist.
func (e *Engine) DemoteToWaitlist(ctx context.Context, registrationID string) (*model.Registration, error) {
	return e.transition(ctx, registrationID, model.StatusWaitlisted, "demote", nil)
}

func (e *Engine) transition(
	ctx context.Context,
	registrationID string,
	to model.Status,
	action string,
	check func(*model.Event, []model.Registration) error,
) (*model.Registration, error) {
	reg, err := e.getRegistration(ctx, registrationID)
	if err != nil {
		return nil, err
	}

	changed := false
	err = e.withEventLock(ctx, reg.EventID, func() error {
		// Re-read under the lock; the row may have moved since.
		current, err := e.getRegistration(ctx, registrationID)
		if err != nil {
			return err
		}
		reg = current
		if reg.Status == to {
			return nil
		}
		if check != nil {
			event, err := e.getEvent(ctx, reg.EventID)
			if err != nil {
				return err
			}
			regs, err := e.listRegistrations(ctx, model.RegistrationFilter{EventID: reg.EventID, Status: model.StatusRegistered})
			if err != nil {
				return err
			}
			if err := check(event, regs); err != nil {
				return err
			}
		}
		if err := e.updateStatus(ctx, registrationID, to); err != nil {
			return err
		}
		reg.Status = to
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		e.metrics.Roster(action)
		e.logger.Info("registration status changed",
			zap.String("event_id", reg.EventID),
			zap.String("registration_id", registrationID),
			zap.String("status", string(to)),
		)
	}
	return reg, nil
}
