// Package repository implements the event store: events, their custom fields
// and registrations. PostgresStore uses pgx directly (no ORM); MemoryStore
// keeps everything in process.
package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Shivanand-hulikatti/event-registration-engine/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyRegistered is returned when an active registration for the same
// (event, user) pair already exists.
var ErrAlreadyRegistered = errors.New("user already registered for this event")

// uniqueViolation is the PostgreSQL SQLSTATE for unique_violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// PostgresStore persists the event store in PostgreSQL.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore constructs a PostgresStore.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const eventColumns = `id, title, description, start_at, end_at, location, capacity, administrator_id, created_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var e model.Event
	if err := row.Scan(&e.ID, &e.Title, &e.Description, &e.StartAt, &e.EndAt,
		&e.Location, &e.Capacity, &e.AdministratorID, &e.CreatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}

// InsertEvent inserts a new event and returns its generated id.
func (s *PostgresStore) InsertEvent(ctx context.Context, e *model.Event) (string, error) {
	id := uuid.New().String()
	createdAt := time.Now().UTC()
	_, err := s.db.Exec(ctx,
		`INSERT INTO events (`+eventColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		id, e.Title, e.Description, e.StartAt, e.EndAt, e.Location, e.Capacity, e.AdministratorID, createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	e.ID = id
	e.CreatedAt = createdAt
	return id, nil
}

// GetEvent returns a single event (without custom fields) or ErrNotFound.
func (s *PostgresStore) GetEvent(ctx context.Context, id string) (*model.Event, error) {
	e, err := scanEvent(s.db.QueryRow(ctx,
		`SELECT `+eventColumns+` FROM events WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

// ListEvents returns events matching the filter, ordered by start time.
// Location matching happens after the query because locations may be JSON
// descriptors whose display name is not a column.
func (s *PostgresStore) ListEvents(ctx context.Context, f model.EventFilter) ([]model.Event, error) {
	var (
		conds []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}
	if f.From != nil {
		conds = append(conds, "start_at >= "+arg(*f.From))
	}
	if f.To != nil {
		conds = append(conds, "start_at <= "+arg(*f.To))
	}
	if f.AdministratorID != "" {
		conds = append(conds, "administrator_id = "+arg(f.AdministratorID))
	}
	if f.UpcomingOnly {
		conds = append(conds, "end_at >= NOW()")
	}
	q := `SELECT ` + eventColumns + ` FROM events`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY start_at ASC, created_at ASC"

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	locationOnly := model.EventFilter{Location: f.Location}
	var events []model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if locationOnly.Matches(e, time.Time{}) {
			events = append(events, *e)
		}
	}
	return events, rows.Err()
}

// UpdateEvent applies a partial update; nil fields keep their stored value.
func (s *PostgresStore) UpdateEvent(ctx context.Context, id string, u model.EventUpdate) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE events SET
		   title       = COALESCE($1, title),
		   description = COALESCE($2, description),
		   start_at    = COALESCE($3, start_at),
		   end_at      = COALESCE($4, end_at),
		   location    = COALESCE($5, location),
		   capacity    = COALESCE($6, capacity)
		 WHERE id = $7`,
		u.Title, u.Description, u.StartAt, u.EndAt, u.Location, u.Capacity, id,
	)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEvent removes the event row only; dependants are the caller's concern.
func (s *PostgresStore) DeleteEvent(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertCustomField adds one field definition to an event.
func (s *PostgresStore) InsertCustomField(ctx context.Context, eventID string, f model.CustomField) (string, error) {
	id := uuid.New().String()
	options := f.Options
	if options == nil {
		options = []string{}
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO custom_fields (id, event_id, name, type, options, required, position)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, eventID, f.Name, string(f.Type), options, f.Required, f.Position,
	)
	if err != nil {
		return "", fmt.Errorf("insert custom field: %w", err)
	}
	return id, nil
}

// ListCustomFields returns an event's fields in form order.
func (s *PostgresStore) ListCustomFields(ctx context.Context, eventID string) ([]model.CustomField, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, event_id, name, type, options, required, position
		 FROM custom_fields
		 WHERE event_id = $1
		 ORDER BY position ASC`,
		eventID,
	)
	if err != nil {
		return nil, fmt.Errorf("list custom fields: %w", err)
	}
	defer rows.Close()

	var fields []model.CustomField
	for rows.Next() {
		var (
			f   model.CustomField
			typ string
		)
		if err := rows.Scan(&f.ID, &f.EventID, &f.Name, &typ, &f.Options, &f.Required, &f.Position); err != nil {
			return nil, fmt.Errorf("scan custom field: %w", err)
		}
		f.Type = model.FieldType(typ)
		fields = append(fields, f)
	}
	return fields, rows.Err()
}

// DeleteCustomField removes one field definition.
func (s *PostgresStore) DeleteCustomField(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM custom_fields WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete custom field: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const registrationColumns = `id, event_id, user_id, display_name, status, registration_key, submitted_at, field_answers`

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var (
		r      model.Registration
		status string
	)
	if err := row.Scan(&r.ID, &r.EventID, &r.UserID, &r.DisplayName, &status,
		&r.RegistrationKey, &r.SubmittedAt, &r.FieldAnswers); err != nil {
		return nil, err
	}
	r.Status = model.Status(status)
	return &r, nil
}

// InsertRegistration creates a registration row.
//
// The unique index on (event_id, user_id) makes this a conditional insert: a
// second active registration for the same user fails with
// ErrAlreadyRegistered even when two engine processes race past their
// duplicate checks.
func (s *PostgresStore) InsertRegistration(ctx context.Context, r *model.Registration) (string, error) {
	id := uuid.New().String()
	answers := r.FieldAnswers
	if answers == nil {
		answers = map[string]string{}
	}
	_, err := s.db.Exec(ctx,
		`INSERT INTO registrations (`+registrationColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, r.EventID, r.UserID, r.DisplayName, string(r.Status), r.RegistrationKey, r.SubmittedAt, answers,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return "", ErrAlreadyRegistered
		}
		return "", fmt.Errorf("insert registration: %w", err)
	}
	r.ID = id
	return id, nil
}

// GetRegistration returns a single registration or ErrNotFound.
func (s *PostgresStore) GetRegistration(ctx context.Context, id string) (*model.Registration, error) {
	r, err := scanRegistration(s.db.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return r, nil
}

// ListRegistrations returns registrations matching the filter, oldest first.
func (s *PostgresStore) ListRegistrations(ctx context.Context, f model.RegistrationFilter) ([]model.Registration, error) {
	var (
		conds []string
		args  []any
	)
	if f.EventID != "" {
		args = append(args, f.EventID)
		conds = append(conds, "event_id = $"+strconv.Itoa(len(args)))
	}
	if f.UserID != "" {
		args = append(args, f.UserID)
		conds = append(conds, "user_id = $"+strconv.Itoa(len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	q := `SELECT ` + registrationColumns + ` FROM registrations`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY submitted_at ASC, id ASC"

	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var regs []model.Registration
	for rows.Next() {
		r, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		regs = append(regs, *r)
	}
	return regs, rows.Err()
}

// UpdateRegistrationStatus moves a registration between Registered and Waitlisted.
func (s *PostgresStore) UpdateRegistrationStatus(ctx context.Context, id string, status model.Status) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE registrations SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return fmt.Errorf("update registration status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteRegistration removes a registration row.
func (s *PostgresStore) DeleteRegistration(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM registrations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
