package validation

import (
	"time"

	"github.com/google/uuid"
)

// Result is one validation-gate decision for a composed note. Results are
// append-only; the latest row per note is the decision of record.
type Result struct {
	ResultID      uuid.UUID `db:"result_id" json:"resultId"`
	NoteID        uuid.UUID `db:"note_id" json:"noteId"`
	RulesChecked  int       `db:"rules_checked" json:"rulesChecked"`
	RulesFailed   int       `db:"rules_failed" json:"rulesFailed"`
	FailureRate   float64   `db:"failure_rate" json:"failureRate"`
	Decision      string    `db:"decision" json:"decision"`
	FailedRuleIDs []string  `db:"failed_rule_ids" json:"failedRuleIds"`
	CreatedAt     time.Time `db:"created_at" json:"createdAt"`
}

// Gate decisions.
const (
	DecisionApproved    = "approved_for_writeback"
	DecisionNeedsReview = "needs_review"
	DecisionBlocked     = "blocked"
)
