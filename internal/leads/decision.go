package leads

import (
	"strings"

	"dealership-platform/internal/analysis"
	"dealership-platform/internal/crm"
)

// Decision is the recommended next step for a lead. Action is shown to sales
// staff; Reason names the rule that fired and is meant for logs and filters.
type Decision struct {
	Action string `json:"action"`
	Reason string `json:"reason"`
}

// RecommendAction evaluates the decision table for one lead. Cold and unknown
// tiers share the last branch.
func RecommendAction(s Snapshot) Decision {
	intents := analysis.Intents(s.LastText)
	has := func(i analysis.Intent) bool { return analysis.HasIntent(intents, i) }
	days := s.DaysSinceContact

	switch s.Customer.Tier {
	case crm.TierHot:
		switch {
		case has(analysis.IntentPurchaseReady):
			return Decision{"URGENT: Schedule closing meeting within 24 hours", "hot_purchase_ready"}
		case has(analysis.IntentTestDrive):
			return Decision{"HIGH PRIORITY: Confirm test drive appointment immediately", "hot_test_drive"}
		case days > 2:
			return Decision{"FOLLOW UP: Contact within 4 hours - hot lead cooling", "hot_cooling"}
		default:
			return Decision{"MONITOR: Prepare for next interaction", "hot_monitor"}
		}

	case crm.TierWarm:
		switch {
		case has(analysis.IntentTestDrive):
			return Decision{"Schedule test drive within 48 hours", "warm_test_drive"}
		case has(analysis.IntentPricing):
			return Decision{"Send detailed pricing and financing options", "warm_pricing"}
		case days > 5:
			return Decision{"Send nurture email with new inventory updates", "warm_stale"}
		default:
			return Decision{"Continue regular follow-up in 3 days", "warm_regular"}
		}

	case crm.TierProspect:
		switch {
		case analysis.SentimentOf(s.LastText) == analysis.SentimentPositive:
			return Decision{"Send welcome email with showroom invitation", "prospect_positive"}
		case strings.Contains(strings.ToLower(s.LastText), "information"):
			return Decision{"Send comprehensive brochure and schedule call", "prospect_information"}
		default:
			return Decision{"Add to nurture campaign - weekly updates", "prospect_nurture"}
		}

	default:
		if days < 30 {
			return Decision{"Add to quarterly newsletter", "cold_recent"}
		}
		return Decision{"Archive - re-engage only if customer initiates contact", "cold_archive"}
	}
}
