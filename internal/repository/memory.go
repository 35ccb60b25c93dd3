package repository

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/Shivanand-hulikatti/event-registration-engine/internal/model"
	"github.com/google/uuid"
)

// MemoryStore is an in-process event store. It honours the same contract as
// PostgresStore, including the (event, user) uniqueness of registrations.
type MemoryStore struct {
	mu            sync.RWMutex
	seq           int64
	events        map[string]*memEvent
	fields        map[string]*memField
	registrations map[string]*memRegistration
	now           func() time.Time
}

type memEvent struct {
	seq int64
	model.Event
}

type memField struct {
	seq int64
	model.CustomField
}

type memRegistration struct {
	seq int64
	model.Registration
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		events:        make(map[string]*memEvent),
		fields:        make(map[string]*memField),
		registrations: make(map[string]*memRegistration),
		now:           time.Now,
	}
}

func (s *MemoryStore) next() int64 {
	s.seq++
	return s.seq
}

func cloneEvent(e model.Event) model.Event {
	e.CustomFields = nil
	return e
}

func cloneField(f model.CustomField) model.CustomField {
	f.Options = slices.Clone(f.Options)
	return f
}

func cloneRegistration(r model.Registration) model.Registration {
	if r.FieldAnswers != nil {
		answers := make(map[string]string, len(r.FieldAnswers))
		for k, v := range r.FieldAnswers {
			answers[k] = v
		}
		r.FieldAnswers = answers
	}
	return r
}

// InsertEvent stores a new event and returns its generated id.
func (s *MemoryStore) InsertEvent(ctx context.Context, e *model.Event) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e.ID = uuid.New().String()
	e.CreatedAt = s.now().UTC()
	s.events[e.ID] = &memEvent{seq: s.next(), Event: cloneEvent(*e)}
	return e.ID, nil
}

// GetEvent returns a single event (without custom fields) or ErrNotFound.
func (s *MemoryStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneEvent(e.Event)
	return &out, nil
}

// ListEvents returns events matching the filter, ordered by start time.
func (s *MemoryStore) ListEvents(ctx context.Context, f model.EventFilter) ([]model.Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := s.now()
	matched := make([]*memEvent, 0, len(s.events))
	for _, e := range s.events {
		if f.Matches(&e.Event, now) {
			matched = append(matched, e)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].StartAt.Equal(matched[j].StartAt) {
			return matched[i].StartAt.Before(matched[j].StartAt)
		}
		return matched[i].seq < matched[j].seq
	})
	events := make([]model.Event, 0, len(matched))
	for _, e := range matched {
		events = append(events, cloneEvent(e.Event))
	}
	return events, nil
}

// UpdateEvent applies a partial update.
func (s *MemoryStore) UpdateEvent(ctx context.Context, id string, u model.EventUpdate) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.events[id]
	if !ok {
		return ErrNotFound
	}
	if u.Title != nil {
		e.Title = *u.Title
	}
	if u.Description != nil {
		e.Description = *u.Description
	}
	if u.StartAt != nil {
		e.StartAt = *u.StartAt
	}
	if u.EndAt != nil {
		e.EndAt = *u.EndAt
	}
	if u.Location != nil {
		e.Location = *u.Location
	}
	if u.Capacity != nil {
		e.Capacity = *u.Capacity
	}
	return nil
}

// DeleteEvent removes the event only.
func (s *MemoryStore) DeleteEvent(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.events[id]; !ok {
		return ErrNotFound
	}
	delete(s.events, id)
	return nil
}

// InsertCustomField adds one field definition to an event.
func (s *MemoryStore) InsertCustomField(ctx context.Context, eventID string, f model.CustomField) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f = cloneField(f)
	f.ID = uuid.New().String()
	f.EventID = eventID
	s.fields[f.ID] = &memField{seq: s.next(), CustomField: f}
	return f.ID, nil
}

// ListCustomFields returns an event's fields in form order.
func (s *MemoryStore) ListCustomFields(ctx context.Context, eventID string) ([]model.CustomField, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*memField
	for _, f := range s.fields {
		if f.EventID == eventID {
			matched = append(matched, f)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Position != matched[j].Position {
			return matched[i].Position < matched[j].Position
		}
		return matched[i].seq < matched[j].seq
	})
	fields := make([]model.CustomField, 0, len(matched))
	for _, f := range matched {
		fields = append(fields, cloneField(f.CustomField))
	}
	return fields, nil
}

// DeleteCustomField removes one field definition.
func (s *MemoryStore) DeleteCustomField(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.fields[id]; !ok {
		return ErrNotFound
	}
	delete(s.fields, id)
	return nil
}

// InsertRegistration stores a registration unless the user already holds an
// active one for the same event.
func (s *MemoryStore) InsertRegistration(ctx context.Context, r *model.Registration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.registrations {
		if existing.EventID == r.EventID && existing.UserID == r.UserID && existing.Active() {
			return "", ErrAlreadyRegistered
		}
	}
	r.ID = uuid.New().String()
	s.registrations[r.ID] = &memRegistration{seq: s.next(), Registration: cloneRegistration(*r)}
	return r.ID, nil
}

// GetRegistration returns a single registration or ErrNotFound.
func (s *MemoryStore) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.registrations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneRegistration(r.Registration)
	return &out, nil
}

// ListRegistrations returns registrations matching the filter, oldest first.
func (s *MemoryStore) ListRegistrations(ctx context.Context, f model.RegistrationFilter) ([]model.Registration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*memRegistration
	for _, r := range s.registrations {
		if f.Matches(&r.Registration) {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].SubmittedAt.Equal(matched[j].SubmittedAt) {
			return matched[i].SubmittedAt.Before(matched[j].SubmittedAt)
		}
		return matched[i].seq < matched[j].seq
	})
	regs := make([]model.Registration, 0, len(matched))
	for _, r := range matched {
		regs = append(regs, cloneRegistration(r.Registration))
	}
	return regs, nil
}

// UpdateRegistrationStatus moves a registration between Registered and Waitlisted.
func (s *MemoryStore) UpdateRegistrationStatus(ctx context.Context, id string, status model.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.registrations[id]
	if !ok {
		return ErrNotFound
	}
	r.Status = status
	return nil
}

// DeleteRegistration removes a registration.
func (s *MemoryStore) DeleteRegistration(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.registrations[id]; !ok {
		return ErrNotFound
	}
	delete(s.registrations, id)
	return nil
}
