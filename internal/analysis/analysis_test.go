package analysis

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"dealership-platform/internal/crm"
)

func TestSentimentOf(t *testing.T) {
	cases := []struct {
		text string
		want Sentiment
	}{
		{"", SentimentNeutral},
		{"This is great and amazing", SentimentPositive},
		{"Too expensive for me, not sure", SentimentNegative},
		{"I love it, love it, love it, but it is expensive", SentimentNeutral},
		{"Just send the brochure", SentimentNeutral},
		{"LOOKING FORWARD to it", SentimentPositive},
	}
	for _, tc := range cases {
		if got := SentimentOf(tc.text); got != tc.want {
			t.Fatalf("SentimentOf(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestSentimentOfIsDeterministic(t *testing.T) {
	text := "I am excited but worried about the budget"
	first := SentimentOf(text)
	for i := 0; i < 10; i++ {
		if got := SentimentOf(text); got != first {
			t.Fatalf("run %d: got %q, want %q", i, got, first)
		}
	}
}

func TestIntentsPreserveTableOrder(t *testing.T) {
	got := Intents("What is the price? I want a test drive")
	want := []Intent{IntentTestDrive, IntentPricing}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Intents = %v, want %v", got, want)
	}

	if got := Intents("When can I visit?"); !reflect.DeepEqual(got, []Intent{IntentAppointment}) {
		t.Fatalf("expected appointment, got %v", got)
	}
	if got := Intents(""); len(got) != 0 {
		t.Fatalf("expected no intents for empty text, got %v", got)
	}
}

func TestEngagementScore(t *testing.T) {
	if got := EngagementScore(""); got != 0 {
		t.Fatalf("empty text: got %d", got)
	}
	if got := EngagementScore("Hello"); got != 20 {
		t.Fatalf("short neutral text: got %d, want 20", got)
	}

	text := "I love this car. Can I book a test drive? What is the price? Is financing available?"
	// 10 (length) + 30 (two intents) + 20 (positive) + 10 (questions, capped)
	if got := EngagementScore(text); got != 70 {
		t.Fatalf("got %d, want 70", got)
	}

	long := strings.Repeat("I love the test drive and the price and the showroom and the warranty? ", 20)
	if got := EngagementScore(long); got < 0 || got > 100 {
		t.Fatalf("score out of range: %d", got)
	}
	if got := EngagementScore(long); got != 100 {
		t.Fatalf("expected saturated score 100, got %d", got)
	}
}

func TestLeadTierFromText(t *testing.T) {
	cases := []struct {
		text string
		want crm.Tier
	}{
		{"", crm.TierCold},
		{"I want to buy now but maybe later", crm.TierHot},
		{"Interested, just looking", crm.TierWarm},
		{"just looking around", crm.TierCold},
		{"hello there", crm.TierWarm},
		{"Is the PHANTOM available?", crm.TierHot},
	}
	for _, tc := range cases {
		if got := LeadTierFromText(tc.text); got != tc.want {
			t.Fatalf("LeadTierFromText(%q) = %q, want %q", tc.text, got, tc.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	if got := Summarize(""); got != "No content available" {
		t.Fatalf("empty: %q", got)
	}
	if got := Summarize(" Hello there. More text."); got != "Hello there." {
		t.Fatalf("first sentence: %q", got)
	}
	if got := Summarize("no period"); got != "no period." {
		t.Fatalf("no period: %q", got)
	}
	long := strings.Repeat("a", 250)
	got := Summarize(long)
	if got != strings.Repeat("a", 200)+"..." {
		t.Fatalf("truncation: got %d runes", len([]rune(got)))
	}
}

func TestOutcomeFromIntents(t *testing.T) {
	cases := []struct {
		in   []Intent
		want string
	}{
		{[]Intent{IntentPricing, IntentTestDrive}, "Test drive interest expressed"},
		{[]Intent{IntentPricing}, "Pricing inquiry"},
		{[]Intent{IntentAppointment, IntentPurchaseReady}, "Appointment requested"},
		{[]Intent{IntentPurchaseReady}, "Ready to purchase"},
		{nil, "General inquiry"},
	}
	for _, tc := range cases {
		if got := OutcomeFromIntents(tc.in); got != tc.want {
			t.Fatalf("OutcomeFromIntents(%v) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestVehiclePreferences(t *testing.T) {
	a := DefaultAnalyzer()
	got := a.VehiclePreferences("Looking at a Rolls-Royce Cullinan or an Aston Martin DB11, budget around 2 crore, AWD V12")

	if !reflect.DeepEqual(got.Brands, []string{"Rolls-Royce", "Aston Martin"}) {
		t.Fatalf("brands: %v", got.Brands)
	}
	if !reflect.DeepEqual(got.Models, []string{"Cullinan", "Db11"}) {
		t.Fatalf("models: %v", got.Models)
	}
	if !reflect.DeepEqual(got.FeaturesMentioned, []string{"Awd", "V12"}) {
		t.Fatalf("features: %v", got.FeaturesMentioned)
	}
	if got.PriceRange != "2-5 Crores" {
		t.Fatalf("price range: %q", got.PriceRange)
	}

	if pr := a.VehiclePreferences("around 50 lakh").PriceRange; pr != "" {
		t.Fatalf("marker without band should not set a range, got %q", pr)
	}
	if pr := a.VehiclePreferences("about 50000000").PriceRange; pr != "" {
		t.Fatalf("band without marker should not set a range, got %q", pr)
	}
}

func TestCustomPriceVocabulary(t *testing.T) {
	a := NewAnalyzer(PriceVocabulary{
		Markers: []string{"$"},
		Bands:   []PriceBand{{Triggers: []string{"$500K"}, Label: "Mid"}},
	})
	if pr := a.VehiclePreferences("somewhere around $500k").PriceRange; pr != "Mid" {
		t.Fatalf("got %q, want Mid", pr)
	}
}

func TestLoadPriceVocabulary(t *testing.T) {
	v, err := LoadPriceVocabulary("")
	if err != nil || !reflect.DeepEqual(v, DefaultPriceVocabulary()) {
		t.Fatalf("empty path should give defaults: %+v %v", v, err)
	}

	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	if err := os.WriteFile(good, []byte(`{"markers":["usd"],"bands":[{"triggers":["300k"],"label":"300K+"}]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	v, err = LoadPriceVocabulary(good)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(v.Bands) != 1 || v.Bands[0].Label != "300K+" {
		t.Fatalf("unexpected vocabulary: %+v", v)
	}

	bad := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(bad, []byte(`{"markers":[],"bands":[{"label":""}]}`), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadPriceVocabulary(bad); err == nil {
		t.Fatalf("expected validation error")
	}
	if _, err := LoadPriceVocabulary(filepath.Join(dir, "missing.json")); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestInsights(t *testing.T) {
	a := DefaultAnalyzer()
	empty := a.Insights("")
	if empty.Sentiment != SentimentNeutral || empty.Intents == nil || len(empty.Intents) != 0 || empty.WordCount != 0 {
		t.Fatalf("unexpected empty insights: %+v", empty)
	}

	in := a.Insights("Can I test drive the Ferrari 488?")
	if in.QuestionCount != 1 || in.WordCount != 7 {
		t.Fatalf("counts: %+v", in)
	}
	if !HasIntent(in.Intents, IntentTestDrive) {
		t.Fatalf("expected test_drive intent: %v", in.Intents)
	}
	if !reflect.DeepEqual(in.VehiclePreferences.Brands, []string{"Ferrari"}) {
		t.Fatalf("brands: %v", in.VehiclePreferences.Brands)
	}
}

func TestTitleCase(t *testing.T) {
	for in, want := range map[string]string{
		"all-wheel drive": "All-Wheel Drive",
		"911":             "911",
		"aston martin":    "Aston Martin",
	} {
		if got := titleCase(in); got != want {
			t.Fatalf("titleCase(%q) = %q, want %q", in, got, want)
		}
	}
}
