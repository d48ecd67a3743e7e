package note

// Status is the note lifecycle state. Every status write goes through
// CanTransition; violations are rejected, never coerced.
type Status string

const (
	StatusDraftCreated         Status = "draft_created"
	StatusNeedsReview          Status = "needs_review"
	StatusApprovedForWriteback Status = "approved_for_writeback"
	StatusWritebackQueued      Status = "writeback_queued"
	StatusWritebackInProgress  Status = "writeback_in_progress"
	StatusWritebackFailed      Status = "writeback_failed"
	StatusWritebackSucceeded   Status = "writeback_succeeded"
	StatusBlocked              Status = "blocked"
)

// allowedTransitions is the full note transition table. Terminal states map
// to an empty set.
var allowedTransitions = map[Status][]Status{
	StatusDraftCreated:         {StatusNeedsReview, StatusApprovedForWriteback, StatusBlocked},
	StatusNeedsReview:          {StatusApprovedForWriteback, StatusBlocked},
	StatusApprovedForWriteback: {StatusWritebackQueued},
	StatusWritebackQueued:      {StatusWritebackInProgress, StatusWritebackFailed},
	StatusWritebackInProgress:  {StatusWritebackSucceeded, StatusWritebackFailed},
	StatusWritebackFailed:      {StatusWritebackQueued},
	StatusBlocked:              {},
	StatusWritebackSucceeded:   {},
}

// CanTransition is a pure lookup against the transition table.
func CanTransition(from, to Status) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known note status.
func ValidStatus(s Status) bool {
	_, ok := allowedTransitions[s]
	return ok
}
