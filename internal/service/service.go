// Package service implements the registration engine: capacity and waitlist
// placement, roster management and cascade deletes, orchestrated over an
// injected event store.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-registration-engine/internal/lock"
	"github.com/Shivanand-hulikatti/event-registration-engine/internal/metrics"
	"github.com/Shivanand-hulikatti/event-registration-engine/internal/model"
)

// Store is the event store the engine runs against. It offers point reads,
// filtered reads, inserts, point updates and point deletes, with no
// transactions spanning calls. Missing rows are reported as ErrNotFound.
type Store interface {
	InsertEvent(ctx context.Context, e *model.Event) (string, error)
	GetEvent(ctx context.Context, id string) (*model.Event, error)
	ListEvents(ctx context.Context, f model.EventFilter) ([]model.Event, error)
	UpdateEvent(ctx context.Context, id string, u model.EventUpdate) error
	DeleteEvent(ctx context.Context, id string) error

	InsertCustomField(ctx context.Context, eventID string, f model.CustomField) (string, error)
	ListCustomFields(ctx context.Context, eventID string) ([]model.CustomField, error)
	DeleteCustomField(ctx context.Context, id string) error

	InsertRegistration(ctx context.Context, r *model.Registration) (string, error)
	GetRegistration(ctx context.Context, id string) (*model.Registration, error)
	ListRegistrations(ctx context.Context, f model.RegistrationFilter) ([]model.Registration, error)
	UpdateRegistrationStatus(ctx context.Context, id string, status model.Status) error
	DeleteRegistration(ctx context.Context, id string) error
}

// Options tunes how the engine calls its store.
type Options struct {
	// Timeout bounds every individual store call.
	Timeout time.Duration
	// ReadRetries is how many times an idempotent read is retried after a
	// transient failure. Writes are never retried.
	ReadRetries   int
	RetryInterval time.Duration
	// CascadeParallelism caps concurrent deletes during DeleteEvent.
	CascadeParallelism int
	// StrictChoices rejects multiple-choice answers that are not one of the
	// field's options.
	StrictChoices bool
}

// Engine is the registration engine.
type Engine struct {
	store   Store
	locker  lock.Locker
	logger  *zap.Logger
	metrics *metrics.Metrics
	opts    Options
	now     func() time.Time
}

// NewEngine constructs an Engine. A nil locker falls back to an in-process
// lock, a nil logger to a no-op logger and nil metrics record nothing.
func NewEngine(store Store, locker lock.Locker, logger *zap.Logger, m *metrics.Metrics, opts Options) *Engine {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.ReadRetries < 0 {
		opts.ReadRetries = 0
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 100 * time.Millisecond
	}
	if opts.CascadeParallelism < 1 {
		opts.CascadeParallelism = 8
	}
	return &Engine{
		store:   store,
		locker:  locker,
		logger:  logger,
		metrics: m,
		opts:    opts,
		now:     time.Now,
	}
}

// RegistrationKey derives the audit marker stored with a registration.
func RegistrationKey(eventID, userID string, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", eventID, userID, at.UnixMilli())
}

// call runs one store operation under the per-call timeout and classifies its
// error. ErrNotFound and ErrAlreadyRegistered pass through unwrapped.
func (e *Engine) call(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	cctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	start := time.Now()
	err := fn(cctx)
	e.metrics.ObserveStore(op, err, time.Since(start))

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAlreadyRegistered):
		return err
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(cctx.Err(), context.DeadlineExceeded):
		return &StoreError{Op: op, Err: fmt.Errorf("%w: %w", ErrTimeout, err)}
	default:
		return &StoreError{Op: op, Err: err}
	}
}

// read is call with bounded exponential backoff, for idempotent reads only.
func (e *Engine) read(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if e.opts.ReadRetries == 0 {
		return e.call(ctx, op, fn)
	}

	attempt := func() error {
		err := e.call(ctx, op, fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrNotFound) || ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = e.opts.RetryInterval
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, uint64(e.opts.ReadRetries)), ctx)

	return backoff.RetryNotify(attempt, b, func(err error, wait time.Duration) {
		e.logger.Debug("retrying event store read",
			zap.String("op", op),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	})
}

// withEventLock runs fn while holding the event's lock. Waiting for the lock
// is bounded by the store timeout.
func (e *Engine) withEventLock(ctx context.Context, eventID string, fn func() error) error {
	lockCtx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	release, err := e.locker.Acquire(lockCtx, eventID)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return &StoreError{Op: "AcquireLock", Err: err}
	}
	defer release()
	return fn()
}

func (e *Engine) getEvent(ctx context.Context, id string) (*model.Event, error) {
	var ev *model.Event
	err := e.read(ctx, "GetEvent", func(ctx context.Context) error {
		var err error
		ev, err = e.store.GetEvent(ctx, id)
		return err
	})
	return ev, err
}

func (e *Engine) listFields(ctx context.Context, eventID string) ([]model.CustomField, error) {
	var fields []model.CustomField
	err := e.read(ctx, "ListCustomFields", func(ctx context.Context) error {
		var err error
		fields, err = e.store.ListCustomFields(ctx, eventID)
		return err
	})
	return fields, err
}

func (e *Engine) listRegistrations(ctx context.Context, f model.RegistrationFilter) ([]model.Registration, error) {
	var regs []model.Registration
	err := e.read(ctx, "ListRegistrations", func(ctx context.Context) error {
		var err error
		regs, err = e.store.ListRegistrations(ctx, f)
		return err
	})
	return regs, err
}

func (e *Engine) getRegistration(ctx context.Context, id string) (*model.Registration, error) {
	var reg *model.Registration
	err := e.read(ctx, "GetRegistration", func(ctx context.Context) error {
		var err error
		reg, err = e.store.GetRegistration(ctx, id)
		return err
	})
	return reg, err
}

func (e *Engine) insertRegistration(ctx context.Context, reg *model.Registration) error {
	return e.call(ctx, "InsertRegistration", func(ctx context.Context) error {
		id, err := e.store.InsertRegistration(ctx, reg)
		reg.ID = id
		return err
	})
}

func (e *Engine) deleteRegistration(ctx context.Context, id string) error {
	return e.call(ctx, "DeleteRegistration", func(ctx context.Context) error {
		return e.store.DeleteRegistration(ctx, id)
	})
}

func (e *Engine) updateStatus(ctx context.Context, id string, status model.Status) error {
	return e.call(ctx, "UpdateRegistrationStatus", func(ctx context.Context) error {
		return e.store.UpdateRegistrationStatus(ctx, id, status)
	})
}

func activeFor(regs []model.Registration, userID string) *model.Registration {
	for i := range regs {
		if regs[i].UserID == userID && regs[i].Active() {
			return &regs[i]
		}
	}
	return nil
}
