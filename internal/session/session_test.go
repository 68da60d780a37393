package session

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Mattia055/Hotelier2.0/internal/protocol"
)

func TestStepReplacesPreviousStep(t *testing.T) {
	var s Session

	s.BeginRegister("alice", "salt")
	assert.Equal(t, AwaitingRegisterPassword, s.Kind())

	// A new operation mid-flight abandons the registration.
	s.BeginLogin("bob")
	assert.Equal(t, AwaitingLoginPassword, s.Kind())

	username := s.TakeLogin()
	assert.Equal(t, "bob", username)
	assert.Equal(t, Idle, s.Kind())

	// The abandoned registration left nothing behind.
	u, salt := s.TakeRegister()
	assert.Empty(t, u)
	assert.Empty(t, salt)
}

func TestFlushKeepsIdentity(t *testing.T) {
	var s Session
	s.Username = "alice"
	s.BeginReview(42)

	s.Flush()
	assert.Equal(t, Idle, s.Kind())
	assert.Equal(t, "alice", s.Username)
	assert.True(t, s.LoggedIn())

	s.Reset()
	assert.False(t, s.LoggedIn())
}

func TestTakeConsumes(t *testing.T) {
	var s Session

	s.BeginReview(7)
	assert.Equal(t, 7, s.TakeReview())
	assert.Equal(t, Idle, s.Kind())
	assert.Zero(t, s.TakeReview())

	s.BeginExtLogout("carol")
	assert.Equal(t, AwaitingLogoutPassword, s.Kind())
	assert.Equal(t, "carol", s.TakeExtLogout())
}

func TestSearchCursor(t *testing.T) {
	var s Session

	assert.Nil(t, s.SearchCursor())

	s.BeginSearch([]protocol.HotelView{{Name: "a"}, {Name: "b"}, {Name: "c"}})
	cur := s.SearchCursor()
	if assert.NotNil(t, cur) {
		assert.Len(t, cur.Hotels, 3)
		cur.Pos = 2
	}
	// Cursor advances persist across calls.
	assert.Equal(t, 2, s.SearchCursor().Pos)

	s.Flush()
	assert.Nil(t, s.SearchCursor())
}
