package reporting

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"dealership-platform/internal/crm"

	sq "github.com/Masterminds/squirrel"
)

// PostgresRepo runs the aggregates as GROUP BY queries against the CRM
// schema.
type PostgresRepo struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

func (r *PostgresRepo) query(ctx context.Context, b sq.SelectBuilder) (*sql.Rows, error) {
	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	return r.db.QueryContext(ctx, q, args...)
}

func (r *PostgresRepo) scalar(ctx context.Context, b sq.SelectBuilder, dest any) error {
	q, args, err := b.ToSql()
	if err != nil {
		return err
	}
	return r.db.QueryRowContext(ctx, q, args...).Scan(dest)
}

// groupCounts reads (key, count) rows.
func groupCounts(rows *sql.Rows, err error) (map[string]int, error) {
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := map[string]int{}
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return nil, err
		}
		out[k] = n
	}
	return out, rows.Err()
}

func (r *PostgresRepo) TierCounts(ctx context.Context) (map[crm.Tier]int, error) {
	m, err := groupCounts(r.query(ctx, r.sb.
		Select("customer_type", "count(*)").
		From("customers").
		GroupBy("customer_type")))
	if err != nil {
		return nil, fmt.Errorf("reporting: tier counts: %w", err)
	}
	out := make(map[crm.Tier]int, len(m))
	for k, n := range m {
		out[crm.Tier(k)] = n
	}
	return out, nil
}

func (r *PostgresRepo) Activity(ctx context.Context, since time.Time) (Activity, error) {
	out := Activity{
		InteractionsByChannel: map[crm.Channel]int{},
		Sentiment:             map[string]int{},
		Documents:             map[crm.DocumentType]int{},
	}

	if err := r.scalar(ctx, r.sb.
		Select("count(*)").
		From("customers").
		Where(sq.GtOrEq{"created_at": since}), &out.NewCustomers); err != nil {
		return Activity{}, fmt.Errorf("reporting: new customers: %w", err)
	}

	channels, err := groupCounts(r.query(ctx, r.sb.
		Select("channel", "count(*)").
		From("interactions").
		Where(sq.GtOrEq{"interaction_timestamp": since}).
		GroupBy("channel")))
	if err != nil {
		return Activity{}, fmt.Errorf("reporting: interactions by channel: %w", err)
	}
	for k, n := range channels {
		out.InteractionsByChannel[crm.Channel(k)] = n
	}

	var avg sql.NullFloat64
	q, args, err := r.sb.
		Select("count(*)", "avg(cl.duration_seconds)").
		From("call_logs cl").
		Join("interactions i ON i.interaction_id = cl.interaction_id").
		Where(sq.GtOrEq{"i.interaction_timestamp": since}).
		ToSql()
	if err != nil {
		return Activity{}, err
	}
	if err := r.db.QueryRowContext(ctx, q, args...).Scan(&out.Calls, &avg); err != nil {
		return Activity{}, fmt.Errorf("reporting: calls: %w", err)
	}
	out.AvgCallSeconds = avg.Float64

	sentiment, err := groupCounts(r.query(ctx, r.sb.
		Select("sentiment", "count(*)").
		From("interactions").
		Where(sq.GtOrEq{"interaction_timestamp": since}).
		Where(sq.NotEq{"sentiment": nil}).
		GroupBy("sentiment")))
	if err != nil {
		return Activity{}, fmt.Errorf("reporting: sentiment: %w", err)
	}
	out.Sentiment = sentiment

	docs, err := groupCounts(r.query(ctx, r.sb.
		Select("document_type", "count(*)").
		From("documents").
		Where(sq.GtOrEq{"created_at": since}).
		GroupBy("document_type")))
	if err != nil {
		return Activity{}, fmt.Errorf("reporting: documents: %w", err)
	}
	for k, n := range docs {
		out.Documents[crm.DocumentType(k)] = n
	}
	return out, nil
}

func (r *PostgresRepo) daily(ctx context.Context, table, column string, since time.Time) ([]DailyCount, error) {
	bucket := "to_char(date_trunc('day', " + column + "), 'YYYY-MM-DD')"
	rows, err := r.query(ctx, r.sb.
		Select(bucket+" AS day", "count(*)").
		From(table).
		Where(sq.GtOrEq{column: since}).
		GroupBy("day").
		OrderBy("day"))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []DailyCount{}
	for rows.Next() {
		var d DailyCount
		if err := rows.Scan(&d.Date, &d.Count); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) Trends(ctx context.Context, since time.Time) (TrendRows, error) {
	var out TrendRows
	var err error
	if out.Interactions, err = r.daily(ctx, "interactions", "interaction_timestamp", since); err != nil {
		return TrendRows{}, fmt.Errorf("reporting: daily interactions: %w", err)
	}
	if out.NewCustomers, err = r.daily(ctx, "customers", "created_at", since); err != nil {
		return TrendRows{}, fmt.Errorf("reporting: daily customers: %w", err)
	}

	rows, err := r.query(ctx, r.sb.
		Select("to_char(date_trunc('day', created_at), 'YYYY-MM-DD') AS day", "customer_type", "count(*)").
		From("customers").
		Where(sq.GtOrEq{"created_at": since}).
		GroupBy("day", "customer_type").
		OrderBy("day", "customer_type"))
	if err != nil {
		return TrendRows{}, fmt.Errorf("reporting: tier trends: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var d DailyTierCount
		var tier string
		if err := rows.Scan(&d.Date, &tier, &d.Count); err != nil {
			return TrendRows{}, err
		}
		d.Status = crm.Tier(tier)
		out.NewByTier = append(out.NewByTier, d)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UnanalyzedInteractions(ctx context.Context) (int, error) {
	var n int
	err := r.scalar(ctx, r.sb.
		Select("count(*)").
		From("interactions").
		Where(sq.Eq{"sentiment": nil}).
		Where(sq.NotEq{"content": nil}).
		Where(sq.NotEq{"content": ""}), &n)
	if err != nil {
		return 0, fmt.Errorf("reporting: unanalyzed: %w", err)
	}
	return n, nil
}
