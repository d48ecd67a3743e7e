package writeback

import "github.com/clinscribe/clinscribe/internal/domain/note"

// Status is a persisted job status. StatusFailed is the transient status a
// caller requests; resolution turns it into retryable_failed or dead_failed
// before anything is written.
type Status string

const (
	StatusQueued          Status = "queued"
	StatusInProgress      Status = "in_progress"
	StatusSucceeded       Status = "succeeded"
	StatusRetryableFailed Status = "retryable_failed"
	StatusDeadFailed      Status = "dead_failed"

	// Transient, never persisted.
	StatusFailed Status = "failed"
)

var allowedTransitions = map[Status]map[Status]bool{
	StatusQueued: {
		StatusInProgress:      true,
		StatusRetryableFailed: true,
		StatusDeadFailed:      true,
	},
	StatusInProgress: {
		StatusSucceeded:       true,
		StatusRetryableFailed: true,
		StatusDeadFailed:      true,
	},
	StatusRetryableFailed: {
		StatusQueued: true,
	},
	StatusDeadFailed: {},
	StatusSucceeded:  {},
}

func CanTransition(from, to Status) bool {
	return allowedTransitions[from][to]
}

// RequestableStatus reports whether a caller may ask for this status on the
// transition endpoint. Resolved failure statuses are internal.
func RequestableStatus(s Status) bool {
	switch s {
	case StatusQueued, StatusInProgress, StatusSucceeded, StatusFailed:
		return true
	}
	return false
}

// IsDeadLetter reports whether the status quarantines the job for operator
// attention.
func IsDeadLetter(s Status) bool {
	return s == StatusRetryableFailed || s == StatusDeadFailed
}

// IsTerminal reports whether no further delivery transitions are legal.
func IsTerminal(s Status) bool {
	return s == StatusDeadFailed || s == StatusSucceeded
}

// noteStatusFor maps a resolved job status to the note status that must hold
// alongside it.
func noteStatusFor(s Status) note.Status {
	switch s {
	case StatusQueued:
		return note.StatusWritebackQueued
	case StatusInProgress:
		return note.StatusWritebackInProgress
	case StatusRetryableFailed, StatusDeadFailed:
		return note.StatusWritebackFailed
	case StatusSucceeded:
		return note.StatusWritebackSucceeded
	}
	return ""
}
