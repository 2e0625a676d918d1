// Package leads ranks customers by engagement and recommends the next
// sales action for each of them.
package leads

import (
	"sort"
	"time"

	"dealership-platform/internal/analysis"
	"dealership-platform/internal/crm"
)

// NeverContactedDays is used as days-since-contact for customers without any
// interaction, so staleness rules treat them as long idle.
const NeverContactedDays = 999

// Snapshot is the input to prioritization: a customer's tier and the text of
// its most recent interaction.
type Snapshot struct {
	Customer          crm.Customer `json:"customer"`
	LastText          string       `json:"last_conversation"`
	DaysSinceContact  int          `json:"days_since_last_contact"`
	LastInteractionAt *time.Time   `json:"last_interaction_date,omitempty"`
}

// FromContact builds a Snapshot relative to now.
func FromContact(lc crm.LeadContact, now time.Time) Snapshot {
	s := Snapshot{
		Customer:          lc.Customer,
		LastText:          lc.LastContent,
		DaysSinceContact:  NeverContactedDays,
		LastInteractionAt: lc.LastInteractionAt,
	}
	if lc.LastInteractionAt != nil {
		s.DaysSinceContact = DaysBetween(*lc.LastInteractionAt, now)
	}
	return s
}

// DaysBetween counts whole days elapsed from since to now (floored, never
// negative).
func DaysBetween(since, now time.Time) int {
	d := now.Sub(since)
	if d <= 0 {
		return 0
	}
	return int(d / (24 * time.Hour))
}

var tierMultiplier = map[crm.Tier]float64{
	crm.TierHot:      1.5,
	crm.TierWarm:     1.2,
	crm.TierProspect: 1.0,
	crm.TierCold:     0.8,
}

// Multiplier weights engagement by tier. Unknown tiers weigh 1.0.
func Multiplier(t crm.Tier) float64 {
	if m, ok := tierMultiplier[t]; ok {
		return m
	}
	return 1.0
}

type Ranked struct {
	Snapshot
	EngagementScore   int      `json:"engagement_score"`
	PriorityScore     float64  `json:"priority_score"`
	RecommendedAction Decision `json:"recommended_action"`
}

// Prioritize scores every snapshot and orders them by descending priority.
// Ties keep their input order.
func Prioritize(in []Snapshot) []Ranked {
	out := make([]Ranked, 0, len(in))
	for _, s := range in {
		engagement := analysis.EngagementScore(s.LastText)
		out = append(out, Ranked{
			Snapshot:          s,
			EngagementScore:   engagement,
			PriorityScore:     float64(engagement) * Multiplier(s.Customer.Tier),
			RecommendedAction: RecommendAction(s),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PriorityScore > out[j].PriorityScore })
	return out
}
