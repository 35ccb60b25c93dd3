package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLocationDisplayName(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"empty", "", ""},
		{"plain text", "  Room 4 ", "Room 4"},
		{"json descriptor", `{"DisplayName":"Main Hall","Address":{"City":"Aarhus"}}`, "Main Hall"},
		{"json without name", `{"Address":"x"}`, `{"Address":"x"}`},
		{"broken json", `{"DisplayName":`, `{"DisplayName":`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LocationDisplayName(tt.raw))
		})
	}
}

func TestParseStatus(t *testing.T) {
	s, ok := ParseStatus("waitlist")
	assert.True(t, ok)
	assert.Equal(t, StatusWaitlisted, s)

	s, ok = ParseStatus("Registered")
	assert.True(t, ok)
	assert.Equal(t, StatusRegistered, s)

	_, ok = ParseStatus("cancelled")
	assert.False(t, ok)
}

func TestRegistrationFilter_Matches(t *testing.T) {
	r := &Registration{EventID: "e1", UserID: "u1", Status: StatusWaitlisted}

	assert.True(t, RegistrationFilter{}.Matches(r))
	assert.True(t, RegistrationFilter{EventID: "e1", Status: StatusWaitlisted}.Matches(r))
	assert.False(t, RegistrationFilter{EventID: "e2"}.Matches(r))
	assert.False(t, RegistrationFilter{UserID: "u2"}.Matches(r))
	assert.False(t, RegistrationFilter{Status: StatusRegistered}.Matches(r))
}

func TestEventUpdate_Empty(t *testing.T) {
	assert.True(t, EventUpdate{}.Empty())
	capacity := 3
	assert.False(t, EventUpdate{Capacity: &capacity}.Empty())
}

func TestEventFilter_Matches(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	e := &Event{
		StartAt:         now.Add(24 * time.Hour),
		EndAt:           now.Add(26 * time.Hour),
		Location:        `{"DisplayName":"Main Hall"}`,
		AdministratorID: "admin",
	}
	before := now
	after := now.Add(48 * time.Hour)

	assert.True(t, EventFilter{}.Matches(e, now))
	assert.True(t, EventFilter{From: &before, To: &after}.Matches(e, now))
	assert.False(t, EventFilter{From: &after}.Matches(e, now))
	assert.False(t, EventFilter{To: &before}.Matches(e, now))
	assert.True(t, EventFilter{Location: "Main Hall"}.Matches(e, now))
	assert.True(t, EventFilter{Location: "all"}.Matches(e, now))
	assert.False(t, EventFilter{Location: "Room 4"}.Matches(e, now))
	assert.False(t, EventFilter{AdministratorID: "other"}.Matches(e, now))
	assert.True(t, EventFilter{UpcomingOnly: true}.Matches(e, now))
	assert.False(t, EventFilter{UpcomingOnly: true}.Matches(e, now.Add(72*time.Hour)))
}
