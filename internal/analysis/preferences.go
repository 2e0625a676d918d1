package analysis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"
)

// PriceBand maps trigger phrases to a display label.
type PriceBand struct {
	Triggers []string `json:"triggers"`
	Label    string   `json:"label"`
}

// PriceVocabulary drives price-range extraction. A range is only considered
// when one of Markers appears; the first band with a matching trigger wins.
type PriceVocabulary struct {
	Markers []string    `json:"markers"`
	Bands   []PriceBand `json:"bands"`
}

func DefaultPriceVocabulary() PriceVocabulary {
	return PriceVocabulary{
		Markers: []string{"crore", "lakh", "million"},
		Bands: []PriceBand{
			{Triggers: []string{"2 crore", "20000000"}, Label: "2-5 Crores"},
			{Triggers: []string{"5 crore", "50000000"}, Label: "5-10 Crores"},
			{Triggers: []string{"10 crore"}, Label: "10+ Crores"},
		},
	}
}

func (v PriceVocabulary) Validate() error {
	var errs []error
	if len(v.Markers) == 0 {
		errs = append(errs, errors.New("price vocabulary: at least one marker is required"))
	}
	for i, b := range v.Bands {
		if strings.TrimSpace(b.Label) == "" {
			errs = append(errs, fmt.Errorf("price vocabulary: band %d has no label", i))
		}
		if len(b.Triggers) == 0 {
			errs = append(errs, fmt.Errorf("price vocabulary: band %d has no triggers", i))
		}
	}
	return errors.Join(errs...)
}

func (v PriceVocabulary) lowered() PriceVocabulary {
	out := PriceVocabulary{Markers: lowerAll(v.Markers)}
	for _, b := range v.Bands {
		out.Bands = append(out.Bands, PriceBand{Triggers: lowerAll(b.Triggers), Label: b.Label})
	}
	return out
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// LoadPriceVocabulary reads a JSON vocabulary file. An empty path yields the
// default vocabulary.
func LoadPriceVocabulary(path string) (PriceVocabulary, error) {
	if strings.TrimSpace(path) == "" {
		return DefaultPriceVocabulary(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return PriceVocabulary{}, fmt.Errorf("price vocabulary: %w", err)
	}
	var v PriceVocabulary
	if err := json.Unmarshal(raw, &v); err != nil {
		return PriceVocabulary{}, fmt.Errorf("price vocabulary: decode %s: %w", path, err)
	}
	if err := v.Validate(); err != nil {
		return PriceVocabulary{}, err
	}
	return v, nil
}

type VehiclePreferences struct {
	Brands            []string `json:"brands"`
	Models            []string `json:"models"`
	PriceRange        string   `json:"price_range,omitempty"`
	FeaturesMentioned []string `json:"features_mentioned"`
}

// ConversationInsights bundles every text signal for one conversation.
type ConversationInsights struct {
	Sentiment          Sentiment          `json:"sentiment"`
	Intents            []Intent           `json:"intents"`
	EngagementScore    int                `json:"engagement_score"`
	VehiclePreferences VehiclePreferences `json:"vehicle_preferences"`
	WordCount          int                `json:"word_count"`
	QuestionCount      int                `json:"question_count"`
}

// Analyzer carries the configurable parts of text analysis.
type Analyzer struct {
	prices PriceVocabulary
}

func NewAnalyzer(prices PriceVocabulary) *Analyzer {
	return &Analyzer{prices: prices.lowered()}
}

func DefaultAnalyzer() *Analyzer { return NewAnalyzer(DefaultPriceVocabulary()) }

func (a *Analyzer) VehiclePreferences(text string) VehiclePreferences {
	lower := strings.ToLower(text)
	prefs := VehiclePreferences{
		Brands:            matchTitled(lower, brandKeywords),
		Models:            matchTitled(lower, modelKeywords),
		FeaturesMentioned: matchTitled(lower, featureKeywords),
	}
	prefs.PriceRange = a.priceRange(lower)
	return prefs
}

func (a *Analyzer) priceRange(lower string) string {
	if !containsAny(lower, a.prices.Markers) {
		return ""
	}
	for _, b := range a.prices.Bands {
		if containsAny(lower, b.Triggers) {
			return b.Label
		}
	}
	return ""
}

func (a *Analyzer) Insights(text string) ConversationInsights {
	intents := Intents(text)
	if intents == nil {
		intents = []Intent{}
	}
	return ConversationInsights{
		Sentiment:          SentimentOf(text),
		Intents:            intents,
		EngagementScore:    EngagementScore(text),
		VehiclePreferences: a.VehiclePreferences(text),
		WordCount:          WordCount(text),
		QuestionCount:      QuestionCount(text),
	}
}

func matchTitled(lower string, keywords []string) []string {
	out := []string{}
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			out = append(out, titleCase(k))
		}
	}
	return out
}

// titleCase upper-cases every letter that follows a non-letter, so
// "rolls-royce" becomes "Rolls-Royce" and "db11" becomes "Db11".
func titleCase(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	prevLetter := false
	for _, r := range s {
		if unicode.IsLetter(r) {
			if prevLetter {
				b.WriteRune(unicode.ToLower(r))
			} else {
				b.WriteRune(unicode.ToUpper(r))
			}
			prevLetter = true
			continue
		}
		b.WriteRune(r)
		prevLetter = false
	}
	return b.String()
}
