package quote

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusDraft, StatusSent, true},
		{StatusDraft, StatusCancelled, true},
		{StatusDraft, StatusAccepted, false},
		{StatusDraft, StatusViewed, false},
		{StatusSent, StatusViewed, true},
		{StatusSent, StatusAccepted, true},
		{StatusSent, StatusRejected, true},
		{StatusSent, StatusExpired, true},
		{StatusSent, StatusDraft, false},
		{StatusViewed, StatusUnderReview, true},
		{StatusViewed, StatusAccepted, true},
		{StatusUnderReview, StatusAccepted, true},
		{StatusUnderReview, StatusSent, false},
		{StatusAccepted, StatusConverted, true},
		{StatusAccepted, StatusCancelled, true},
		{StatusAccepted, StatusRejected, false},
		{StatusRejected, StatusSent, false},
		{StatusExpired, StatusSent, false},
		{StatusConverted, StatusCancelled, false},
		{StatusCancelled, StatusDraft, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, status := range []Status{StatusRejected, StatusExpired, StatusConverted, StatusCancelled} {
		assert.True(t, Terminal(status), "%s should be terminal", status)
		for _, target := range All() {
			assert.False(t, CanTransition(status, target), "%s must not transition to %s", status, target)
		}
	}
}

func TestEditLocked(t *testing.T) {
	assert.False(t, EditLocked(StatusDraft))
	assert.False(t, EditLocked(StatusSent))
	assert.False(t, EditLocked(StatusViewed))
	assert.False(t, EditLocked(StatusUnderReview))

	// Accepted is edit-locked but not terminal:conversion is still open.
	assert.True(t, EditLocked(StatusAccepted))
	assert.False(t, Terminal(StatusAccepted))

	assert.True(t, EditLocked(StatusRejected))
	assert.True(t, EditLocked(StatusExpired))
	assert.True(t, EditLocked(StatusConverted))
	assert.True(t, EditLocked(StatusCancelled))
}

func TestOpenAndAcceptable(t *testing.T) {
	for _, status := range []Status{StatusSent, StatusViewed, StatusUnderReview} {
		assert.True(t, Open(status), "%s should count as open", status)
		assert.True(t, Acceptable(status), "%s should be acceptable", status)
	}
	assert.False(t, Open(StatusDraft))
	assert.False(t, Open(StatusAccepted))
	assert.False(t, Acceptable(StatusDraft))
	assert.False(t, Acceptable(StatusAccepted))
}

func TestIsExpiredComparesDatesOnly(t *testing.T) {
	now := time.Date(2026, 3, 15, 14, 30, 0, 0, time.UTC)

	// Valid through the whole validity day.
	sameDay := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	assert.False(t, IsExpired(sameDay, now))

	yesterday := time.Date(2026, 3, 14, 23, 59, 0, 0, time.UTC)
	assert.True(t, IsExpired(yesterday, now))

	tomorrow := time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC)
	assert.False(t, IsExpired(tomorrow, now))
}

func TestValid(t *testing.T) {
	for _, status := range All() {
		assert.True(t, Valid(status))
	}
	assert.False(t, Valid(Status("open")))
	assert.False(t, Valid(Status("")))
}
