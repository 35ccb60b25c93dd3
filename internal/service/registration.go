package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-registration-engine/internal/model"
)

// Register signs a user up for an event. The returned registration's status
// tells the caller whether a seat was taken or the user joined the waitlist.
func (e *Engine) Register(ctx context.Context, eventID, userID, displayName string, answers map[string]string) (*model.Registration, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "is required"}
	}

	if _, err := e.getEvent(ctx, eventID); err != nil {
		return nil, err
	}
	fields, err := e.listFields(ctx, eventID)
	if err != nil {
		return nil, err
	}
	clean, err := ValidateAnswers(fields, answers, e.opts.StrictChoices)
	if err != nil {
		e.metrics.Rejected("validation")
		return nil, err
	}

	var reg *model.Registration
	err = e.withEventLock(ctx, eventID, func() error {
		// Placement needs the capacity as of now, and the event may have been
		// deleted while we waited.
		event, err := e.getEvent(ctx, eventID)
		if err != nil {
			return err
		}
		regs, err := e.listRegistrations(ctx, model.RegistrationFilter{EventID: eventID})
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
			Status:          DecidePlacement(event, regs),
			RegistrationKey: RegistrationKey(eventID, userID, now),
			SubmittedAt:     now,
			FieldAnswers:    clean,
		}
		return e.insertRegistration(ctx, reg)
	})
	if err != nil {
		if errors.Is(err, ErrAlreadyRegistered) {
			e.metrics.Rejected("duplicate")
		}
		return nil, err
	}

	e.metrics.Signup(string(reg.Status))
	e.logger.Info("registration created",
		zap.String("event_id", eventID),
		zap.String("user_id", userID),
		zap.String("status", string(reg.Status)),
		zap.String("registration_id", reg.ID),
	)
	return reg, nil
}

// Withdraw removes the user's own active registration for an event.
func (e *Engine) Withdraw(ctx context.Context, eventID, userID string) error {
	return e.withEventLock(ctx, eventID, func() error {
		regs, err := e.listRegistrations(ctx, model.RegistrationFilter{EventID: eventID, UserID: userID})
		if err != nil {
			return err
		}
		reg := activeFor(regs, userID)
		if reg == nil {
			return ErrNotFound
		}
		if err := e.deleteRegistration(ctx, reg.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		e.metrics.Roster("withdraw")
		e.logger.Info("registration withdrawn",
			zap.String("event_id", eventID),
			zap.String("user_id", userID),
			zap.String("registration_id", reg.ID),
		)
		return nil
	})
}

// UserRegistrations returns every registration held by a user.
func (e *Engine) UserRegistrations(ctx context.Context, userID string) ([]model.Registration, error) {
	return e.listRegistrations(ctx, model.RegistrationFilter{UserID: userID})
}

// GetRegistration returns a single registration.
func (e *Engine) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	return e.getRegistration(ctx, id)
}
