// Package reporting builds the read-only analytics projections: dashboard
// stats, the ranked lead pipeline, per-customer insights, daily trends and
// agent health.
package reporting

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"dealership-platform/internal/analysis"
	"dealership-platform/internal/crm"
	"dealership-platform/internal/leads"
)

var ErrInvalidRequest = errors.New("reporting: invalid request")

// QueueWarnThreshold is the unanalyzed-interaction backlog at which agent
// health reports "warning".
const QueueWarnThreshold = 10

// Repository aggregates over the CRM tables. Windows are half-open
// [since, now).
type Repository interface {
	TierCounts(ctx context.Context) (map[crm.Tier]int, error)
	Activity(ctx context.Context, since time.Time) (Activity, error)
	Trends(ctx context.Context, since time.Time) (TrendRows, error)
	// UnanalyzedInteractions counts rows with content but no sentiment.
	UnanalyzedInteractions(ctx context.Context) (int, error)
}

// Check reports the state of one dependency; a nil error means it is up.
type Check func(ctx context.Context) error

type Service struct {
	repo     Repository
	store    crm.Store
	analyzer *analysis.Analyzer
	clock    func() time.Time

	checkNames []string
	checks     map[string]Check
}

func NewService(repo Repository, store crm.Store, analyzer *analysis.Analyzer) *Service {
	if analyzer == nil {
		analyzer = analysis.DefaultAnalyzer()
	}
	return &Service{
		repo:     repo,
		store:    store,
		analyzer: analyzer,
		clock:    time.Now,
		checks:   map[string]Check{},
	}
}

func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// WithCheck adds a named component to agent health.
func (s *Service) WithCheck(name string, fn Check) *Service {
	if _, ok := s.checks[name]; !ok {
		s.checkNames = append(s.checkNames, name)
	}
	s.checks[name] = fn
	return s
}

func (s *Service) now() time.Time { return s.clock().UTC() }

func round2(v float64) float64 { return math.Round(v*100) / 100 }

func pct(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func (s *Service) Dashboard(ctx context.Context, days int) (Dashboard, error) {
	if days <= 0 {
		return Dashboard{}, ErrInvalidRequest
	}
	tiers, err := s.repo.TierCounts(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("reporting: tier counts: %w", err)
	}
	act, err := s.repo.Activity(ctx, s.now().AddDate(0, 0, -days))
	if err != nil {
		return Dashboard{}, fmt.Errorf("reporting: activity: %w", err)
	}

	total := 0
	for _, n := range tiers {
		total += n
	}
	out := Dashboard{
		PeriodDays: days,
		Customers: CustomerMetrics{
			Total:     total,
			New:       act.NewCustomers,
			HotLeads:  tiers[crm.TierHot],
			WarmLeads: tiers[crm.TierWarm],
			Prospects: tiers[crm.TierProspect],
			ColdLeads: tiers[crm.TierCold],
			Funnel: Funnel{
				HotLeadPercentage:  pct(tiers[crm.TierHot], total),
				WarmLeadPercentage: pct(tiers[crm.TierWarm], total),
			},
		},
		Interactions: InteractionMetrics{
			Total:     act.TotalInteractions(),
			ByChannel: map[string]int{},
		},
		Calls: CallMetrics{
			Total:      act.Calls,
			AvgSeconds: round2(act.AvgCallSeconds),
			AvgMinutes: round2(act.AvgCallSeconds / 60),
		},
		Sentiment: map[string]int{},
		Documents: DocumentMetrics{
			Invoices: act.Documents[crm.DocumentInvoice],
			Quotes:   act.Documents[crm.DocumentQuote],
		},
	}
	for ch, n := range act.InteractionsByChannel {
		out.Interactions.ByChannel[string(ch)] = n
	}
	if total > 0 {
		out.Interactions.AvgPerCustomer = round2(float64(out.Interactions.Total) / float64(total))
	}
	for k, n := range act.Sentiment {
		out.Sentiment[k] = n
	}
	for _, n := range act.Documents {
		out.Documents.Total += n
	}
	return out, nil
}

// Pipeline ranks every customer (or one tier) by priority score.
func (s *Service) Pipeline(ctx context.Context, tier crm.Tier) (Pipeline, error) {
	if tier != "" && !tier.Valid() {
		return Pipeline{}, ErrInvalidRequest
	}
	contacts, err := s.store.ListLeadContacts(ctx, tier)
	if err != nil {
		return Pipeline{}, fmt.Errorf("reporting: lead contacts: %w", err)
	}
	now := s.now()
	snaps := make([]leads.Snapshot, 0, len(contacts))
	for _, lc := range contacts {
		snaps = append(snaps, leads.FromContact(lc, now))
	}
	ranked := leads.Prioritize(snaps)
	return Pipeline{TotalLeads: len(ranked), Leads: ranked}, nil
}

func (s *Service) CustomerInsights(ctx context.Context, id int64) (CustomerInsights, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return CustomerInsights{}, err
	}
	history, err := s.store.ListInteractions(ctx, id)
	if err != nil {
		return CustomerInsights{}, fmt.Errorf("reporting: interactions: %w", err)
	}
	docs, err := s.store.ListDocuments(ctx, id)
	if err != nil {
		return CustomerInsights{}, fmt.Errorf("reporting: documents: %w", err)
	}

	now := s.now()
	texts := make([]string, 0, len(history))
	entries := make([]InteractionEntry, 0, len(history))
	seen := map[crm.Channel]bool{}
	channels := []crm.Channel{}
	for _, in := range history {
		texts = append(texts, in.Content)
		if !seen[in.Channel] {
			seen[in.Channel] = true
			channels = append(channels, in.Channel)
		}
		e := InteractionEntry{Interaction: in}
		if in.Channel == crm.ChannelPhone {
			cl, err := s.store.GetCallLog(ctx, in.ID)
			switch {
			case err == nil:
				e.CallDetails = &cl
			case !errors.Is(err, crm.ErrNotFound):
				return CustomerInsights{}, fmt.Errorf("reporting: call log: %w", err)
			}
		}
		entries = append(entries, e)
	}
	sort.Slice(channels, func(i, j int) bool { return channels[i] < channels[j] })

	combined := strings.Join(texts, " ")
	summary := InteractionSummary{Total: len(history), ChannelsUsed: channels}
	snap := leads.Snapshot{Customer: c, LastText: combined, DaysSinceContact: leads.NeverContactedDays}
	if len(history) > 0 {
		last := history[0].Timestamp
		days := leads.DaysBetween(last, now)
		summary.LastContact = &last
		summary.DaysSinceLastContact = &days
		snap.DaysSinceContact = days
		snap.LastInteractionAt = &last
	}
	if docs == nil {
		docs = []crm.Document{}
	}

	return CustomerInsights{
		Customer:              c,
		DaysAsCustomer:        leads.DaysBetween(c.CreatedAt, now),
		ConversationInsights:  s.analyzer.Insights(combined),
		InteractionSummary:    summary,
		InteractionHistory:    entries,
		Documents:             docs,
		RecommendedNextAction: leads.RecommendAction(snap),
	}, nil
}

func (s *Service) Trends(ctx context.Context, days int) (Trends, error) {
	if days <= 0 {
		return Trends{}, ErrInvalidRequest
	}
	rows, err := s.repo.Trends(ctx, s.now().AddDate(0, 0, -days))
	if err != nil {
		return Trends{}, fmt.Errorf("reporting: trends: %w", err)
	}
	out := Trends{
		PeriodDays:        days,
		DailyInteractions: rows.Interactions,
		DailyNewCustomers: rows.NewCustomers,
		LeadStatusTrends:  rows.NewByTier,
	}
	if out.DailyInteractions == nil {
		out.DailyInteractions = []DailyCount{}
	}
	if out.DailyNewCustomers == nil {
		out.DailyNewCustomers = []DailyCount{}
	}
	if out.LeadStatusTrends == nil {
		out.LeadStatusTrends = []DailyTierCount{}
	}
	return out, nil
}

// AgentHealth reports last-hour activity, the analysis backlog and the
// registered component checks. Any failing check degrades the status.
func (s *Service) AgentHealth(ctx context.Context) (AgentHealth, error) {
	now := s.now()
	act, err := s.repo.Activity(ctx, now.Add(-time.Hour))
	if err != nil {
		return AgentHealth{}, fmt.Errorf("reporting: activity: %w", err)
	}
	backlog, err := s.repo.UnanalyzedInteractions(ctx)
	if err != nil {
		return AgentHealth{}, fmt.Errorf("reporting: backlog: %w", err)
	}

	docs := 0
	for _, n := range act.Documents {
		docs += n
	}
	out := AgentHealth{
		Status:    "healthy",
		Timestamp: now,
		ActivityLastHour: HourActivity{
			CallsHandled:       act.Calls,
			TotalInteractions:  act.TotalInteractions(),
			DocumentsGenerated: docs,
		},
		ProcessingQueue: QueueHealth{UnprocessedInteractions: backlog, Status: "ok"},
		Components:      map[string]string{},
	}
	if backlog >= QueueWarnThreshold {
		out.ProcessingQueue.Status = "warning"
	}
	for _, name := range s.checkNames {
		if err := s.checks[name](ctx); err != nil {
			out.Components[name] = "error - " + err.Error()
			out.Status = "degraded"
			continue
		}
		out.Components[name] = "active"
	}
	return out, nil
}
