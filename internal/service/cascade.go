package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/event-registration-engine/internal/model"
)

// DeleteEvent removes an event and everything that hangs off it. Registrations
// and custom fields are deleted first, concurrently; the event row goes last,
// and only once none of them is left. Rows already gone count as deleted, so a
// call that returned PartialCascadeFailure can simply be repeated.
//
// When the event row is already gone, dependants still carrying its id are
// swept. ErrNotFound is returned only if there was nothing to delete at all.
func (e *Engine) DeleteEvent(ctx context.Context, eventID string) error {
	return e.withEventLock(ctx, eventID, func() error {
		_, err := e.getEvent(ctx, eventID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}
		eventMissing := err != nil

		regs, err := e.listRegistrations(ctx, model.RegistrationFilter{EventID: eventID})
		if err != nil {
			return err
		}
		fields, err := e.listFields(ctx, eventID)
		if err != nil {
			return err
		}
		if eventMissing && len(regs) == 0 && len(fields) == 0 {
			return ErrNotFound
		}

		var (
			mu         sync.Mutex
			failedRegs []string
			failedFlds []string
			errs       error
		)
		g := new(errgroup.Group)
		g.SetLimit(e.opts.CascadeParallelism)

		for _, r := range regs {
			g.Go(func() error {
				err := e.deleteRegistration(ctx, r.ID)
				if err != nil && !errors.Is(err, ErrNotFound) {
					mu.Lock()
					failedRegs = append(failedRegs, r.ID)
					errs = multierr.Append(errs, fmt.Errorf("registration %s: %w", r.ID, err))
					mu.Unlock()
				}
				return nil
			})
		}
		for _, f := range fields {
			g.Go(func() error {
				err := e.call(ctx, "DeleteCustomField", func(ctx context.Context) error {
					return e.store.DeleteCustomField(ctx, f.ID)
				})
				if err != nil && !errors.Is(err, ErrNotFound) {
					mu.Lock()
					failedFlds = append(failedFlds, f.ID)
					errs = multierr.Append(errs, fmt.Errorf("custom field %s: %w", f.ID, err))
					mu.Unlock()
				}
				return nil
			})
		}
		_ = g.Wait()

		if errs != nil {
			slices.Sort(failedRegs)
			slices.Sort(failedFlds)
			e.metrics.Cascade("partial")
			e.logger.Warn("event cascade delete incomplete",
				zap.String("event_id", eventID),
				zap.Strings("failed_registrations", failedRegs),
				zap.Strings("failed_fields", failedFlds),
				zap.Error(errs),
			)
			return &PartialCascadeFailure{
				EventID:             eventID,
				FailedRegistrations: failedRegs,
				FailedFields:        failedFlds,
				Err:                 errs,
			}
		}

		if eventMissing {
			e.metrics.Cascade("orphans")
			e.logger.Warn("removed dependants of a missing event",
				zap.String("event_id", eventID),
				zap.Int("registrations", len(regs)),
				zap.Int("custom_fields", len(fields)),
			)
			return nil
		}

		err = e.call(ctx, "DeleteEvent", func(ctx context.Context) error {
			return e.store.DeleteEvent(ctx, eventID)
		})
		if err != nil && !errors.Is(err, ErrNotFound) {
			e.metrics.Cascade("partial")
			e.logger.Warn("event row left after dependants were removed",
				zap.String("event_id", eventID),
				zap.Error(err),
			)
			return &PartialCascadeFailure{EventID: eventID, ChildrenDeleted: true, Err: err}
		}

		e.metrics.Cascade("ok")
		e.logger.Info("event deleted",
			zap.String("event_id", eventID),
			zap.Int("registrations", len(regs)),
			zap.Int("custom_fields", len(fields)),
		)
		return nil
	})
}
