package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shivanand-hulikatti/event-registration-engine/internal/auth"
	"github.com/Shivanand-hulikatti/event-registration-engine/internal/lock"
	"github.com/Shivanand-hulikatti/event-registration-engine/internal/metrics"
	"github.com/Shivanand-hulikatti/event-registration-engine/internal/model"
	"github.com/Shivanand-hulikatti/event-registration-engine/internal/repository"
	"github.com/Shivanand-hulikatti/event-registration-engine/internal/service"
)

type flakyDeletes struct {
	*repository.MemoryStore
	fail bool
}

func (s *flakyDeletes) DeleteRegistration(ctx context.Context, id string) error {
	if s.fail {
		return errors.New("throttled")
	}
	return s.MemoryStore.DeleteRegistration(ctx, id)
}

type testServer struct {
	handler http.Handler
	tokens  *auth.TokenService
	store   *flakyDeletes
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := &flakyDeletes{MemoryStore: repository.NewMemoryStore()}
	engine := service.NewEngine(store, lock.NewLocalLocker(), nil, nil, service.Options{Timeout: time.Second})
	tokens := auth.NewTokenService("test-secret", "test", time.Hour)
	router := NewRouter(RouterConfig{
		Events:      NewEventHandler(engine, nil),
		Tokens:      tokens,
		Metrics:     metrics.New(),
		CORSOrigins: "*",
	})
	return &testServer{handler: router, tokens: tokens, store: store}
}

func (s *testServer) token(t *testing.T, userID string) string {
	t.Helper()
	tok, err := s.tokens.Generate(userID, "Name of "+userID)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (s *testServer) createEvent(t *testing.T, admin string, capacity int, fields ...model.CustomFieldInput) model.Event {
	t.Helper()
	start := time.Now().Add(24 * time.Hour).UTC().Truncate(time.Second)
	rec := s.do(t, http.MethodPost, "/events", s.token(t, admin), model.CreateEventRequest{
		Title:        "Community day",
		StartAt:      start,
		EndAt:        start.Add(3 * time.Hour),
		Location:     "Main hall",
		Capacity:     capacity,
		CustomFields: fields,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[model.Event](t, rec)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "event_registration_http_requests_total")
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/events", "", model.CreateEventRequest{Title: "x"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/me/registrations", "garbage", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodGet, "/events", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestRegistrationFlow(t *testing.T) {
	s := newTestServer(t)
	admin, alice, bob := s.token(t, "admin"), s.token(t, "alice"), s.token(t, "bob")

	event := s.createEvent(t, "admin", 1, model.CustomFieldInput{Name: "Company", Type: model.FieldText, Required: true})
	assert.Equal(t, "admin", event.AdministratorID)
	base := "/events/" + event.ID

	rec := s.do(t, http.MethodPost, base+"/register", alice, model.RegisterRequest{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Company", decode[model.ErrorResponse](t, rec).Field)

	rec = s.do(t, http.MethodPost, base+"/register", alice, model.RegisterRequest{FieldAnswers: map[string]string{"Company": "Acme"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	aliceReg := decode[model.Registration](t, rec)
	assert.Equal(t, model.StatusRegistered, aliceReg.Status)
	assert.Equal(t, "Name of alice", aliceReg.DisplayName)

	rec = s.do(t, http.MethodPost, base+"/register", bob, model.RegisterRequest{FieldAnswers: map[string]string{"Company": "Globex"}})
	require.Equal(t, http.StatusCreated, rec.Code)
	bobReg := decode[model.Registration](t, rec)
	assert.Equal(t, model.StatusWaitlisted, bobReg.Status)

	rec = s.do(t, http.MethodPost, base+"/register", alice, model.RegisterRequest{FieldAnswers: map[string]string{"Company": "Acme"}})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Only the administrator sees the roster.
	rec = s.do(t, http.MethodGet, base+"/participants", bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodGet, base+"/participants", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	roster := decode[model.Roster](t, rec)
	assert.Len(t, roster.Registered, 1)
	assert.Len(t, roster.Waitlisted, 1)

	rec = s.do(t, http.MethodGet, base+"/participants?status=waitlist", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	roster = decode[model.Roster](t, rec)
	assert.Empty(t, roster.Registered)
	assert.Len(t, roster.Waitlisted, 1)

	rec = s.do(t, http.MethodPost, "/registrations/"+bobReg.ID+"/promote", admin, nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodDelete, "/registrations/"+aliceReg.ID, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodDelete, "/registrations/"+aliceReg.ID, admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// No automatic promotion: bob is still waiting until the admin acts.
	rec = s.do(t, http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[model.EventDetail](t, rec)
	assert.Equal(t, 0, detail.Availability.Registered)
	assert.Equal(t, 1, detail.Availability.Waitlisted)

	rec = s.do(t, http.MethodPost, "/registrations/"+bobReg.ID+"/promote", bob, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPost, "/registrations/"+bobReg.ID+"/promote", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusRegistered, decode[model.Registration](t, rec).Status)

	rec = s.do(t, http.MethodPost, "/registrations/"+bobReg.ID+"/demote", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusWaitlisted, decode[model.Registration](t, rec).Status)

	rec = s.do(t, http.MethodGet, "/me/registrations", bob, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Registration](t, rec), 1)

	rec = s.do(t, http.MethodDelete, base+"/register", bob, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = s.do(t, http.MethodDelete, base+"/register", bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddParticipant(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "admin")
	event := s.createEvent(t, "admin", 1)
	path := "/events/" + event.ID + "/participants"

	rec := s.do(t, http.MethodPost, path, admin, model.AddParticipantRequest{UserID: "carol", DisplayName: "Carol", Status: "waitlisted"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, model.StatusWaitlisted, decode[model.Registration](t, rec).Status)

	rec = s.do(t, http.MethodPost, path, admin, model.AddParticipantRequest{UserID: "carol"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, path, admin, model.AddParticipantRequest{UserID: "dave", Status: "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, path, s.token(t, "mallory"), model.AddParticipantRequest{UserID: "mallory"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestEventAdministration(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "admin")
	event := s.createEvent(t, "admin", 10)
	base := "/events/" + event.ID

	capacity := 20
	rec := s.do(t, http.MethodPatch, base, admin, model.EventUpdate{Capacity: &capacity})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 20, decode[model.Event](t, rec).Capacity)

	rec = s.do(t, http.MethodPatch, base, s.token(t, "other"), model.EventUpdate{Capacity: &capacity})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodPut, base+"/fields", admin, []model.CustomFieldInput{
		{Name: "Meal", Type: model.FieldMultipleChoice, Options: []string{"Veg", "Vegan"}, Required: true},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodGet, base+"/fields", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	fields := decode[[]model.CustomField](t, rec)
	require.Len(t, fields, 1)
	assert.Equal(t, []string{"Veg", "Vegan"}, fields[0].Options)

	rec = s.do(t, http.MethodPut, base+"/fields", admin, []model.CustomFieldInput{{Name: "Meal", Type: model.FieldMultipleChoice}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodGet, "/events/locations", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"Main hall"}, decode[[]string](t, rec))

	rec = s.do(t, http.MethodGet, "/events?upcoming=true&location=Main+hall", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Event](t, rec), 1)

	rec = s.do(t, http.MethodGet, "/events?from=yesterday", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodDelete, base, s.token(t, "other"), nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do(t, http.MethodDelete, base, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = s.do(t, http.MethodGet, base, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteEvent_PartialCascade(t *testing.T) {
	s := newTestServer(t)
	admin := s.token(t, "admin")
	event := s.createEvent(t, "admin", 0)
	base := "/events/" + event.ID

	for _, u := range []string{"u1", "u2"} {
		rec := s.do(t, http.MethodPost, base+"/register", s.token(t, u), nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	s.store.fail = true
	rec := s.do(t, http.MethodDelete, base, admin, nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode[cascadeFailureResponse](t, rec)
	assert.Equal(t, event.ID, body.EventID)
	assert.Len(t, body.FailedRegistrations, 2)
	assert.False(t, body.EventDeleted)

	s.store.fail = false
	rec = s.do(t, http.MethodDelete, base, admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestWriteServiceError(t *testing.T) {
	h := NewEventHandler(nil, nil)
	tests := []struct {
		err  error
		code int
	}{
		{&service.ValidationError{Field: "title", Reason: "is required"}, http.StatusBadRequest},
		{service.ErrAlreadyRegistered, http.StatusConflict},
		{service.ErrEventFull, http.StatusConflict},
		{fmt.Errorf("get: %w", service.ErrNotFound), http.StatusNotFound},
		{service.ErrForbidden, http.StatusForbidden},
		{&service.PartialCascadeFailure{EventID: "e", ChildrenDeleted: true}, http.StatusBadGateway},
		{&service.StoreError{Op: "GetEvent", Err: fmt.Errorf("%w: %w", service.ErrTimeout, context.DeadlineExceeded)}, http.StatusGatewayTimeout},
		{&service.StoreError{Op: "GetEvent", Err: errors.New("conn refused")}, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.writeServiceError(rec, httptest.NewRequest(http.MethodGet, "/", nil), tt.err)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS("https://app.example.com")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/events", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/events", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
