// Package analysis implements the deterministic keyword rules used to read
// customer conversations: sentiment, purchase intents, engagement and the
// naive lead tier. Everything here is pure and safe for concurrent use.
package analysis

import (
	"strings"
	"unicode/utf8"

	"dealership-platform/internal/crm"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "Positive"
	SentimentNegative Sentiment = "Negative"
	SentimentNeutral  Sentiment = "Neutral"
)

func countPresent(text string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(text, k) {
			n++
		}
	}
	return n
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}

// SentimentOf classifies text by how many distinct positive and negative
// keywords it contains. Repeating a keyword does not add weight.
func SentimentOf(text string) Sentiment {
	if text == "" {
		return SentimentNeutral
	}
	lower := strings.ToLower(text)
	pos := countPresent(lower, positiveKeywords)
	neg := countPresent(lower, negativeKeywords)
	switch {
	case pos > neg && pos > 0:
		return SentimentPositive
	case neg > pos && neg > 0:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Intents returns the detected intents in table order, each at most once.
func Intents(text string) []Intent {
	if text == "" {
		return nil
	}
	lower := strings.ToLower(text)
	var out []Intent
	for _, rule := range intentTable {
		if containsAny(lower, rule.keywords) {
			out = append(out, rule.intent)
		}
	}
	return out
}

// HasIntent reports whether want is among intents.
func HasIntent(intents []Intent, want Intent) bool {
	for _, in := range intents {
		if in == want {
			return true
		}
	}
	return false
}

func WordCount(text string) int { return len(strings.Fields(text)) }

func QuestionCount(text string) int { return strings.Count(text, "?") }

// EngagementScore rates conversation quality in [0,100].
func EngagementScore(text string) int {
	if text == "" {
		return 0
	}

	score := 0
	switch words := WordCount(text); {
	case words > 100:
		score += 30
	case words > 50:
		score += 20
	default:
		score += 10
	}

	score += min(15*len(Intents(text)), 40)

	switch SentimentOf(text) {
	case SentimentPositive:
		score += 20
	case SentimentNeutral:
		score += 10
	}

	score += min(5*QuestionCount(text), 10)

	return min(score, 100)
}

// LeadTierFromText applies the tier keyword rules. Hot keywords win over warm,
// warm over cold; text that matches nothing is still an inquiry and rates Warm.
func LeadTierFromText(text string) crm.Tier {
	if text == "" {
		return crm.TierCold
	}
	lower := strings.ToLower(text)
	switch {
	case containsAny(lower, hotTierKeywords):
		return crm.TierHot
	case containsAny(lower, warmTierKeywords):
		return crm.TierWarm
	case containsAny(lower, coldTierKeywords):
		return crm.TierCold
	default:
		return crm.TierWarm
	}
}

const summaryMaxRunes = 200

// Summarize keeps the first sentence of content.
func Summarize(content string) string {
	if content == "" {
		return "No content available"
	}
	first, _, _ := strings.Cut(content, ".")
	summary := strings.TrimSpace(first) + "."
	if utf8.RuneCountInString(summary) > summaryMaxRunes {
		summary = string([]rune(summary)[:summaryMaxRunes]) + "..."
	}
	return summary
}

// OutcomeFromIntents labels an interaction by its strongest intent.
func OutcomeFromIntents(intents []Intent) string {
	switch {
	case HasIntent(intents, IntentTestDrive):
		return "Test drive interest expressed"
	case HasIntent(intents, IntentPricing):
		return "Pricing inquiry"
	case HasIntent(intents, IntentAppointment):
		return "Appointment requested"
	case HasIntent(intents, IntentPurchaseReady):
		return "Ready to purchase"
	default:
		return "General inquiry"
	}
}
