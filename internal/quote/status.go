// Package quote holds the pure quote engine: the lifecycle state machine,
// financial total computation, and the approval-gate thresholds. It has no
// persistence or transport dependencies so every rule is testable in isolation.
package quote

import "time"

// Status is a quote lifecycle state.
type Status string

const (
	StatusDraft       Status = "draft"
	StatusSent        Status = "sent"
	StatusViewed      Status = "viewed"
	StatusUnderReview Status = "under_review"
	StatusAccepted    Status = "accepted"
	StatusRejected    Status = "rejected"
	StatusExpired     Status = "expired"
	StatusConverted   Status = "converted"
	StatusCancelled   Status = "cancelled"
)

// transitions is the full forward transition table. Anything not listed is an
// invalid transition; there are no shortcuts from terminal states back into
// the active pipeline.
var transitions = map[Status][]Status{
	StatusDraft:       {StatusSent, StatusCancelled},
	StatusSent:        {StatusViewed, StatusUnderReview, StatusAccepted, StatusRejected, StatusExpired, StatusCancelled},
	StatusViewed:      {StatusUnderReview, StatusAccepted, StatusRejected, StatusExpired, StatusCancelled},
	StatusUnderReview: {StatusAccepted, StatusRejected, StatusExpired, StatusCancelled},
	StatusAccepted:    {StatusConverted, StatusCancelled},
}

// CanTransition reports whether from -> to is a legal lifecycle move.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status ends the lifecycle. Accepted is not
// terminal: it may still advance to converted or be cancelled.
func Terminal(s Status) bool {
	switch s {
	case StatusRejected, StatusExpired, StatusConverted, StatusCancelled:
		return true
	}
	return false
}

// EditLocked reports whether item and pricing mutations are rejected for a
// quote in this status. Locked from acceptance onward: the agreed numbers are
// a contract at that point.
func EditLocked(s Status) bool {
	return Terminal(s) || s == StatusAccepted
}

// Open reports whether the quote is still awaiting a client decision. Only
// open quotes are subject to expiry.
func Open(s Status) bool {
	switch s {
	case StatusSent, StatusViewed, StatusUnderReview:
		return true
	}
	return false
}

// Acceptable reports whether a client response (accept/reject) is valid from
// this status.
func Acceptable(s Status) bool {
	return Open(s)
}

// IsExpired derives expiry from the validity date. Expiry is computed, never
// trusted from the stored status; the stored "expired" value is written only
// by the sweep job for listing consistency.
func IsExpired(validityDate time.Time, now time.Time) bool {
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	vy, vm, vd := validityDate.Date()
	validity := time.Date(vy, vm, vd, 0, 0, 0, 0, now.Location())
	return today.After(validity)
}

// All returns every known status in lifecycle order.
func All() []Status {
	return []Status{
		StatusDraft, StatusSent, StatusViewed, StatusUnderReview,
		StatusAccepted, StatusRejected, StatusExpired, StatusConverted, StatusCancelled,
	}
}

// Valid reports whether s is a known status value.
func Valid(s Status) bool {
	switch s {
	case StatusDraft, StatusSent, StatusViewed, StatusUnderReview,
		StatusAccepted, StatusRejected, StatusExpired, StatusConverted, StatusCancelled:
		return true
	}
	return false
}
