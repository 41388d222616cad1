package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusClasses(t *testing.T) {
	assert.True(t, StatusActive.IsActiveClass())
	assert.True(t, StatusWarn1.IsActiveClass())
	assert.True(t, StatusWarn4.IsActiveClass())
	assert.True(t, StatusLocked.IsActiveClass(), "locked accounts are still real accounts")
	assert.False(t, StatusInvited.IsActiveClass())
	assert.False(t, StatusInactive.IsActiveClass())

	assert.True(t, StatusInvited.IsInvitedClass())
	assert.True(t, StatusInvitedPending.IsInvitedClass())
	assert.False(t, StatusActive.IsInvitedClass())
}

func TestStatusValid(t *testing.T) {
	for _, s := range AllStatuses {
		assert.True(t, s.Valid(), string(s))
	}
	assert.False(t, Status("warn-9").Valid())
	assert.False(t, Status("").Valid())
	assert.False(t, Status("deleted").Valid())
}

func TestWarnLevel(t *testing.T) {
	assert.Equal(t, 0, StatusActive.WarnLevel())
	assert.Equal(t, 1, StatusWarn1.WarnLevel())
	assert.Equal(t, 4, StatusWarn4.WarnLevel())
	assert.Equal(t, 5, StatusLocked.WarnLevel())
	assert.Equal(t, -1, StatusInvited.WarnLevel())
	assert.Equal(t, -1, StatusInactive.WarnLevel())
}

func TestEscalateLadder(t *testing.T) {
	cases := []struct {
		from      Status
		next      Status
		remaining int
	}{
		{StatusActive, StatusWarn1, 4},
		{StatusWarn1, StatusWarn2, 3},
		{StatusWarn2, StatusWarn3, 2},
		{StatusWarn3, StatusWarn4, 1},
		{StatusWarn4, StatusLocked, 0},
	}
	for _, tc := range cases {
		next, remaining, err := tc.from.Escalate()
		require.NoError(t, err, string(tc.from))
		assert.Equal(t, tc.next, next)
		assert.Equal(t, tc.remaining, remaining)
	}
}

func TestEscalateOffLadder(t *testing.T) {
	for _, s := range []Status{StatusLocked, StatusInvited, StatusInvitedPending, StatusInactive} {
		_, _, err := s.Escalate()
		assert.Error(t, err, string(s))
	}
}
