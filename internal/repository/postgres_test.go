package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-registration-engine/internal/database"
	"github.com/Shivanand-hulikatti/event-registration-engine/internal/model"
)

// Set TEST_DATABASE_URL to a disposable PostgreSQL database to run these.
func newPostgresStore(t *testing.T) *PostgresStore {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, pool.Ping(ctx))
	require.NoError(t, database.Migrate(ctx, pool, zap.NewNop()))
	return NewPostgresStore(pool)
}

func insertPostgresEvent(t *testing.T, s *PostgresStore) *model.Event {
	t.Helper()
	ctx := context.Background()
	start := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Microsecond)
	event := &model.Event{
		Title:           "Postgres meetup",
		Description:     "pgx internals",
		StartAt:         start,
		EndAt:           start.Add(2 * time.Hour),
		Location:        `{"DisplayName":"Hall B"}`,
		Capacity:        3,
		AdministratorID: "admin-1",
	}
	id, err := s.InsertEvent(ctx, event)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.DeleteEvent(context.Background(), id) })
	return event
}

func TestPostgresStore_PartialUpdateKeepsOtherColumns(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	event := insertPostgresEvent(t, s)

	title := "Renamed"
	require.NoError(t, s.UpdateEvent(ctx, event.ID, model.EventUpdate{Title: &title}))

	got, err := s.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, event.Description, got.Description)
	assert.Equal(t, event.Location, got.Location)
	assert.Equal(t, 3, got.Capacity)
	assert.True(t, event.StartAt.Equal(got.StartAt))
	assert.True(t, event.EndAt.Equal(got.EndAt))

	capacity := 0
	require.NoError(t, s.UpdateEvent(ctx, event.ID, model.EventUpdate{Capacity: &capacity}))
	got, err = s.GetEvent(ctx, event.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Capacity)
	assert.Equal(t, "Renamed", got.Title)

	assert.ErrorIs(t, s.UpdateEvent(ctx, "missing", model.EventUpdate{Title: &title}), ErrNotFound)
}

func TestPostgresStore_CustomFieldOptions(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	event := insertPostgresEvent(t, s)

	_, err := s.InsertCustomField(ctx, event.ID, model.CustomField{
		Name: "Track", Type: model.FieldMultipleChoice, Options: []string{"Go", "Rust"}, Required: true, Position: 1,
	})
	require.NoError(t, err)
	_, err = s.InsertCustomField(ctx, event.ID, model.CustomField{Name: "Company", Type: model.FieldText})
	require.NoError(t, err)

	fields, err := s.ListCustomFields(ctx, event.ID)
	require.NoError(t, err)
	t.Cleanup(func() {
		for _, f := range fields {
			_ = s.DeleteCustomField(context.Background(), f.ID)
		}
	})
	require.Len(t, fields, 2)
	assert.Equal(t, "Company", fields[0].Name)
	assert.Empty(t, fields[0].Options)
	assert.Equal(t, "Track", fields[1].Name)
	assert.Equal(t, model.FieldMultipleChoice, fields[1].Type)
	assert.Equal(t, []string{"Go", "Rust"}, fields[1].Options)
	assert.True(t, fields[1].Required)
}

func TestPostgresStore_RegistrationAnswersAndUniqueness(t *testing.T) {
	s := newPostgresStore(t)
	ctx := context.Background()
	event := insertPostgresEvent(t, s)

	submitted := time.Now().UTC().Truncate(time.Microsecond)
	reg := &model.Registration{
		EventID:         event.ID,
		UserID:          "user-1",
		DisplayName:     "Ada",
		Status:          model.StatusWaitlisted,
		RegistrationKey: "key-1",
		SubmittedAt:     submitted,
		FieldAnswers:    map[string]string{"Track": "Go", "Company": "Acme"},
	}
	id, err := s.InsertRegistration(ctx, reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.DeleteRegistration(context.Background(), id) })

	got, err := s.GetRegistration(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Track": "Go", "Company": "Acme"}, got.FieldAnswers)
	assert.Equal(t, model.StatusWaitlisted, got.Status)
	assert.True(t, submitted.Equal(got.SubmittedAt))

	_, err = s.InsertRegistration(ctx, &model.Registration{
		EventID: event.ID, UserID: "user-1", Status: model.StatusRegistered,
		RegistrationKey: "key-2", SubmittedAt: submitted,
	})
	assert.ErrorIs(t, err, ErrAlreadyRegistered)

	require.NoError(t, s.UpdateRegistrationStatus(ctx, id, model.StatusRegistered))
	regs, err := s.ListRegistrations(ctx, model.RegistrationFilter{EventID: event.ID, Status: model.StatusRegistered})
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, id, regs[0].ID)

	require.NoError(t, s.DeleteRegistration(ctx, id))
	assert.ErrorIs(t, s.DeleteRegistration(ctx, id), ErrNotFound)
}
