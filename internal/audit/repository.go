package audit

import (
	"context"
	"database/sql"
	"fmt"
)

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo { return &PostgresRepo{db: db} }

const qInsertTierChange = `
INSERT INTO lead_tier_audit (customer_id, previous_tier, new_tier, source, actor, reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`

func (r *PostgresRepo) Append(ctx context.Context, c TierChange) error {
	_, err := r.db.ExecContext(ctx, qInsertTierChange,
		c.CustomerID, c.Previous, c.New, string(c.Source), c.Actor, c.Reason, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("audit: insert tier change: %w", err)
	}
	return nil
}

const qListTierChanges = `
SELECT id, customer_id, previous_tier, new_tier, source, actor, reason, created_at
FROM lead_tier_audit
WHERE customer_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`

func (r *PostgresRepo) ListByCustomer(ctx context.Context, customerID int64, limit int) ([]TierChange, error) {
	rows, err := r.db.QueryContext(ctx, qListTierChanges, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: list tier changes: %w", err)
	}
	defer rows.Close()

	var out []TierChange
	for rows.Next() {
		var c TierChange
		var src string
		if err := rows.Scan(&c.ID, &c.CustomerID, &c.Previous, &c.New, &src, &c.Actor, &c.Reason, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Source = Source(src)
		out = append(out, c)
	}
	return out, rows.Err()
}
