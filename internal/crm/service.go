package crm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"sort"
	"strings"

	"dealership-platform/internal/audit"
)

// TierRecorder receives every tier transition. Failures are logged, never
// returned, so auditing cannot block scoring.
type TierRecorder interface {
	RecordTierChange(ctx context.Context, c audit.TierChange) error
}

// Service applies write-side rules (phone normalization, tier validation,
// audit) on top of a Store. Reads go to the Store directly.
type Service struct {
	store  Store
	region string
	tiers  TierRecorder
	log    *slog.Logger
}

func NewService(store Store, region string, tiers TierRecorder, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, region: region, tiers: tiers, log: log}
}

func (s *Service) Store() Store { return s.store }

func (s *Service) NormalizePhone(raw string) string { return NormalizePhone(raw, s.region) }

// ResolveCaller finds the customer for an inbound phone number, creating a
// Prospect when the number is unknown.
func (s *Service) ResolveCaller(ctx context.Context, rawPhone string) (Customer, bool, error) {
	phone := s.NormalizePhone(rawPhone)
	if phone == "" {
		return Customer{}, false, fmt.Errorf("%w: phone number is required", ErrInvalidInput)
	}
	return s.store.ResolveOrCreateByPhone(ctx, phone)
}

func (s *Service) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	c.FirstName = strings.TrimSpace(c.FirstName)
	c.Phone = s.NormalizePhone(c.Phone)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	if c.Tier == "" {
		c.Tier = TierProspect
	}
	if !c.Tier.Valid() {
		return Customer{}, fmt.Errorf("%w: unknown customer_type %q", ErrInvalidInput, c.Tier)
	}
	if c.Email != "" {
		if _, err := mail.ParseAddress(c.Email); err != nil {
			return Customer{}, fmt.Errorf("%w: invalid email", ErrInvalidInput)
		}
	}
	return s.store.CreateCustomer(ctx, c)
}

func (s *Service) UpdateCustomer(ctx context.Context, id int64, p CustomerPatch) (Customer, error) {
	if p.Phone != nil {
		v := s.NormalizePhone(*p.Phone)
		p.Phone = &v
	}
	if p.Email != nil {
		v := strings.ToLower(strings.TrimSpace(*p.Email))
		if v != "" {
			if _, err := mail.ParseAddress(v); err != nil {
				return Customer{}, fmt.Errorf("%w: invalid email", ErrInvalidInput)
			}
		}
		p.Email = &v
	}
	return s.store.UpdateCustomer(ctx, id, p)
}

// SetTier persists tier (last write wins) and records the transition.
func (s *Service) SetTier(ctx context.Context, id int64, tier Tier, source audit.Source, actor, reason string) (Tier, error) {
	if !tier.Valid() {
		return "", fmt.Errorf("%w: unknown tier %q", ErrInvalidInput, tier)
	}
	prev, err := s.store.UpdateTier(ctx, id, tier)
	if err != nil {
		return "", err
	}
	if s.tiers != nil {
		change := audit.TierChange{
			CustomerID: id,
			Previous:   string(prev),
			New:        string(tier),
			Source:     source,
			Actor:      actor,
			Reason:     reason,
		}
		if err := s.tiers.RecordTierChange(ctx, change); err != nil {
			s.log.Warn("tier audit failed", "customer_id", id, "err", err)
		}
	}
	return prev, nil
}

// LogInteraction records a non-phone touchpoint created through the API.
func (s *Service) LogInteraction(ctx context.Context, customerID int64, channel Channel, content string) (Interaction, error) {
	if !channel.Valid() {
		return Interaction{}, fmt.Errorf("%w: unknown channel %q", ErrInvalidInput, channel)
	}
	if _, err := s.store.GetCustomer(ctx, customerID); err != nil {
		return Interaction{}, err
	}
	id := customerID
	return s.store.CreateInteraction(ctx, Interaction{
		CustomerID: &id,
		Channel:    channel,
		Content:    strings.TrimSpace(content),
	}, nil)
}

// Timeline merges the customer's interactions and documents, newest first.
func (s *Service) Timeline(ctx context.Context, customerID int64) (Timeline, error) {
	c, err := s.store.GetCustomer(ctx, customerID)
	if err != nil {
		return Timeline{}, err
	}
	interactions, err := s.store.ListInteractions(ctx, customerID)
	if err != nil {
		return Timeline{}, err
	}
	docs, err := s.store.ListDocuments(ctx, customerID)
	if err != nil {
		return Timeline{}, err
	}

	entries := make([]TimelineEntry, 0, len(interactions)+len(docs))
	for _, in := range interactions {
		summary := in.Summary
		if summary == "" {
			summary = "No summary available"
		}
		entries = append(entries, TimelineEntry{
			Kind:      "interaction",
			Timestamp: in.Timestamp,
			Channel:   in.Channel,
			Summary:   summary,
			Outcome:   in.Outcome,
			Sentiment: in.Sentiment,
		})
	}
	for _, d := range docs {
		entries = append(entries, TimelineEntry{
			Kind:         "document",
			Timestamp:    d.CreatedAt,
			DocumentType: d.Type,
			FilePath:     d.FilePath,
		})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Timestamp.After(entries[j].Timestamp) })

	return Timeline{
		CustomerID:   c.ID,
		CustomerName: strings.TrimSpace(c.FirstName + " " + c.LastName),
		CustomerType: c.Tier,
		Entries:      entries,
	}, nil
}

// IsNotFound is a convenience for callers that only need the classification.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
