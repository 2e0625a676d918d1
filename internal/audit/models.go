package audit

import "time"

// TierChange is an immutable, append-only record of a lead tier transition.
//
// Invariants:
// - Records are never updated or deleted.
// - Source is either scoring (task pipeline) or manual (operator override).
// - Writing an audit record is best-effort; tier updates never fail because of it.
type TierChange struct {
	ID         int64  `json:"id" db:"id"`
	CustomerID int64  `json:"customer_id" db:"customer_id"`
	Previous   string `json:"previous_tier" db:"previous_tier"`
	New        string `json:"new_tier" db:"new_tier"`
	Source     Source `json:"source" db:"source"`

	// Actor is the operator user id for manual changes, or the job id for scoring.
	Actor  string `json:"actor,omitempty" db:"actor"`
	Reason string `json:"reason,omitempty" db:"reason"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type Source string

const (
	SourceScoring Source = "scoring"
	SourceManual  Source = "manual"
)
