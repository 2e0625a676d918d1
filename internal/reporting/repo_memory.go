package reporting

import (
	"context"
	"sort"
	"sync"
	"time"

	"dealership-platform/internal/calls"
	"dealership-platform/internal/crm"
)

// MemoryRepo aggregates over plain slices; tests fill them directly.
type MemoryRepo struct {
	mu sync.Mutex

	Customers    []crm.Customer
	Interactions []crm.Interaction
	CallLogs     []calls.CallLog
	Documents    []crm.Document
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) TierCounts(ctx context.Context) (map[crm.Tier]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := map[crm.Tier]int{}
	for _, c := range r.Customers {
		out[c.Tier]++
	}
	return out, nil
}

func (r *MemoryRepo) Activity(ctx context.Context, since time.Time) (Activity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := Activity{
		InteractionsByChannel: map[crm.Channel]int{},
		Sentiment:             map[string]int{},
		Documents:             map[crm.DocumentType]int{},
	}
	for _, c := range r.Customers {
		if !c.CreatedAt.Before(since) {
			out.NewCustomers++
		}
	}
	inWindow := map[int64]bool{}
	for _, in := range r.Interactions {
		if in.Timestamp.Before(since) {
			continue
		}
		inWindow[in.ID] = true
		out.InteractionsByChannel[in.Channel]++
		if in.Sentiment != "" {
			out.Sentiment[in.Sentiment]++
		}
	}
	total := 0
	for _, cl := range r.CallLogs {
		if !inWindow[cl.InteractionID] {
			continue
		}
		out.Calls++
		total += cl.DurationSeconds
	}
	if out.Calls > 0 {
		out.AvgCallSeconds = float64(total) / float64(out.Calls)
	}
	for _, d := range r.Documents {
		if !d.CreatedAt.Before(since) {
			out.Documents[d.Type]++
		}
	}
	return out, nil
}

func day(t time.Time) string { return t.UTC().Format("2006-01-02") }

func (r *MemoryRepo) Trends(ctx context.Context, since time.Time) (TrendRows, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	interactions := map[string]int{}
	for _, in := range r.Interactions {
		if !in.Timestamp.Before(since) {
			interactions[day(in.Timestamp)]++
		}
	}
	customers := map[string]int{}
	byTier := map[DailyTierCount]int{}
	for _, c := range r.Customers {
		if c.CreatedAt.Before(since) {
			continue
		}
		customers[day(c.CreatedAt)]++
		byTier[DailyTierCount{Date: day(c.CreatedAt), Status: c.Tier}]++
	}

	out := TrendRows{
		Interactions: dailyCounts(interactions),
		NewCustomers: dailyCounts(customers),
	}
	for k, n := range byTier {
		k.Count = n
		out.NewByTier = append(out.NewByTier, k)
	}
	sort.Slice(out.NewByTier, func(i, j int) bool {
		a, b := out.NewByTier[i], out.NewByTier[j]
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return a.Status < b.Status
	})
	return out, nil
}

func dailyCounts(m map[string]int) []DailyCount {
	out := make([]DailyCount, 0, len(m))
	for d, n := range m {
		out = append(out, DailyCount{Date: d, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

func (r *MemoryRepo) UnanalyzedInteractions(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, in := range r.Interactions {
		if !in.Analyzed() && in.Content != "" {
			n++
		}
	}
	return n, nil
}
