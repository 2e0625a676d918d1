package audit

import (
	"context"
	"errors"
	"time"
)

// Repository is the persistence contract for tier changes. It is append-only.
type Repository interface {
	Append(ctx context.Context, c TierChange) error
	ListByCustomer(ctx context.Context, customerID int64, limit int) ([]TierChange, error)
}

// Service records lead tier transitions for operators.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidChange = errors.New("audit: invalid tier change")

// RecordTierChange appends a transition. A change where the tier did not move
// is still recorded for scoring runs, since operators use it to see that a
// rescore happened.
func (s *Service) RecordTierChange(ctx context.Context, c TierChange) error {
	if s == nil || s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if c.CustomerID <= 0 || c.New == "" {
		return ErrInvalidChange
	}
	if c.Source != SourceScoring && c.Source != SourceManual {
		return ErrInvalidChange
	}
	if c.Source == SourceManual && c.Previous == c.New {
		return nil
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.clock().UTC()
	}
	return s.repo.Append(ctx, c)
}

// History returns the newest changes for a customer first.
func (s *Service) History(ctx context.Context, customerID int64, limit int) ([]TierChange, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return s.repo.ListByCustomer(ctx, customerID, limit)
}
