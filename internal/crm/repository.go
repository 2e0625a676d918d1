package crm

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"dealership-platform/internal/calls"
	"dealership-platform/pkg/utils"

	sq "github.com/Masterminds/squirrel"
)

// PostgresRepo implements Store over database/sql (pgx stdlib driver).
//
// NOTE: the schema lives in migrations/00001_crm.sql. Unique constraints on
// customers.phone_number, customers.email and documents.file_path surface as
// ErrConflict.
type PostgresRepo struct {
	db *sql.DB
	sb sq.StatementBuilderType
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db, sb: sq.StatementBuilder.PlaceholderFormat(sq.Dollar)}
}

var customerColumns = []string{
	"customer_id", "first_name", "last_name", "phone_number", "email", "address",
	"customer_type", "created_at", "updated_at",
}

var customerSelect = strings.Join(customerColumns, ", ")

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(s rowScanner, extra ...any) (Customer, error) {
	var c Customer
	var last, phone, email, addr sql.NullString
	var tier string
	dest := []any{&c.ID, &c.FirstName, &last, &phone, &email, &addr, &tier, &c.CreatedAt, &c.UpdatedAt}
	dest = append(dest, extra...)
	if err := s.Scan(dest...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, err
	}
	c.LastName = last.String
	c.Phone = phone.String
	c.Email = email.String
	c.Address = addr.String
	c.Tier = Tier(tier)
	return c, nil
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func mapWriteErr(op string, err error) error {
	if utils.IsUniqueViolation(err, "") {
		return fmt.Errorf("%s: %w", op, ErrConflict)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (r *PostgresRepo) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	if c.Tier == "" {
		c.Tier = TierProspect
	}
	q := `
INSERT INTO customers (first_name, last_name, phone_number, email, address, customer_type)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + customerSelect
	out, err := scanCustomer(r.db.QueryRowContext(ctx, q,
		c.FirstName, nullString(c.LastName), nullString(c.Phone), nullString(c.Email), nullString(c.Address), string(c.Tier)))
	if err != nil {
		return Customer{}, mapWriteErr("crm: create customer", err)
	}
	return out, nil
}

func (r *PostgresRepo) GetCustomer(ctx context.Context, id int64) (Customer, error) {
	q := `SELECT ` + customerSelect + ` FROM customers WHERE customer_id = $1`
	return scanCustomer(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) GetCustomerByPhone(ctx context.Context, phone string) (Customer, error) {
	q := `SELECT ` + customerSelect + ` FROM customers WHERE phone_number = $1`
	return scanCustomer(r.db.QueryRowContext(ctx, q, phone))
}

func (r *PostgresRepo) ListCustomers(ctx context.Context, f CustomerFilter) ([]Customer, error) {
	b := r.sb.Select(customerColumns...).From("customers")
	if f.Tier != "" {
		b = b.Where(sq.Eq{"customer_type": string(f.Tier)})
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		like := "%" + s + "%"
		b = b.Where(sq.Or{
			sq.ILike{"first_name": like},
			sq.ILike{"last_name": like},
			sq.ILike{"email": like},
			sq.Like{"phone_number": like},
		})
	}
	limit := f.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	b = b.OrderBy("customer_id DESC").Limit(uint64(limit))
	if f.Offset > 0 {
		b = b.Offset(uint64(f.Offset))
	}

	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("crm: list customers: %w", err)
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) UpdateCustomer(ctx context.Context, id int64, p CustomerPatch) (Customer, error) {
	b := r.sb.Update("customers").Set("updated_at", sq.Expr("now()"))
	if p.FirstName != nil {
		b = b.Set("first_name", strings.TrimSpace(*p.FirstName))
	}
	if p.LastName != nil {
		b = b.Set("last_name", nullString(*p.LastName))
	}
	if p.Email != nil {
		b = b.Set("email", nullString(*p.Email))
	}
	if p.Address != nil {
		b = b.Set("address", nullString(*p.Address))
	}
	if p.Phone != nil {
		b = b.Set("phone_number", nullString(*p.Phone))
	}
	b = b.Where(sq.Eq{"customer_id": id}).Suffix("RETURNING " + customerSelect)

	q, args, err := b.ToSql()
	if err != nil {
		return Customer{}, err
	}
	c, err := scanCustomer(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, mapWriteErr("crm: update customer", err)
	}
	return c, nil
}

func (r *PostgresRepo) DeleteCustomer(ctx context.Context, id int64) error {
	const q = `DELETE FROM customers WHERE customer_id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("crm: delete customer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) ResolveOrCreateByPhone(ctx context.Context, phone string) (Customer, bool, error) {
	if strings.TrimSpace(phone) == "" {
		return Customer{}, false, ErrInvalidInput
	}

	var out Customer
	var created bool
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		insert := `
INSERT INTO customers (phone_number)
VALUES ($1)
ON CONFLICT (phone_number) DO NOTHING
RETURNING ` + customerSelect
		c, err := scanCustomer(tx.QueryRowContext(ctx, insert, phone))
		if err == nil {
			out, created = c, true
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		// Lost the race or the caller already exists.
		sel := `SELECT ` + customerSelect + ` FROM customers WHERE phone_number = $1`
		c, err = scanCustomer(tx.QueryRowContext(ctx, sel, phone))
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return Customer{}, false, fmt.Errorf("crm: resolve caller: %w", err)
	}
	return out, created, nil
}

func (r *PostgresRepo) UpdateTier(ctx context.Context, id int64, tier Tier) (Tier, error) {
	const q = `
UPDATE customers c
SET customer_type = $2, updated_at = now()
FROM (SELECT customer_id, customer_type FROM customers WHERE customer_id = $1 FOR UPDATE) prev
WHERE c.customer_id = prev.customer_id
RETURNING prev.customer_type
`
	var prev string
	if err := r.db.QueryRowContext(ctx, q, id, string(tier)).Scan(&prev); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("crm: update tier: %w", err)
	}
	return Tier(prev), nil
}

func (r *PostgresRepo) CountByTier(ctx context.Context) (map[Tier]int, error) {
	q, args, err := r.sb.Select("customer_type", "COUNT(*)").
		From("customers").
		GroupBy("customer_type").
		ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("crm: count by tier: %w", err)
	}
	defer rows.Close()

	out := map[Tier]int{}
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, err
		}
		out[Tier(tier)] = n
	}
	return out, rows.Err()
}

func (r *PostgresRepo) ListLeadContacts(ctx context.Context, tier Tier) ([]LeadContact, error) {
	cols := make([]string, 0, len(customerColumns)+2)
	for _, c := range customerColumns {
		cols = append(cols, "c."+c)
	}
	cols = append(cols, "li.interaction_timestamp", "li.content")

	b := r.sb.Select(cols...).
		From("customers c").
		JoinClause(`LEFT JOIN LATERAL (
  SELECT i.interaction_timestamp, i.content
  FROM interactions i
  WHERE i.customer_id = c.customer_id
  ORDER BY i.interaction_timestamp DESC
  LIMIT 1
) li ON true`).
		OrderBy("c.customer_id")
	if tier != "" {
		b = b.Where(sq.Eq{"c.customer_type": string(tier)})
	}

	q, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("crm: list lead contacts: %w", err)
	}
	defer rows.Close()

	var out []LeadContact
	for rows.Next() {
		var last sql.NullTime
		var content sql.NullString
		c, err := scanCustomer(rows, &last, &content)
		if err != nil {
			return nil, err
		}
		lc := LeadContact{Customer: c, LastContent: content.String}
		if last.Valid {
			t := last.Time
			lc.LastInteractionAt = &t
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}

const interactionSelect = `interaction_id, customer_id, channel, content, summary, outcome, sentiment, lead_score_impact, interaction_timestamp`

func scanInteraction(s rowScanner) (Interaction, error) {
	var in Interaction
	var customerID, impact sql.NullInt64
	var channel string
	var content, summary, outcome, sentiment sql.NullString
	if err := s.Scan(&in.ID, &customerID, &channel, &content, &summary, &outcome, &sentiment, &impact, &in.Timestamp); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Interaction{}, ErrNotFound
		}
		return Interaction{}, err
	}
	if customerID.Valid {
		id := customerID.Int64
		in.CustomerID = &id
	}
	if impact.Valid {
		v := int(impact.Int64)
		in.LeadScoreImpact = &v
	}
	in.Channel = Channel(channel)
	in.Content = content.String
	in.Summary = summary.String
	in.Outcome = outcome.String
	in.Sentiment = sentiment.String
	return in, nil
}

func (r *PostgresRepo) CreateInteraction(ctx context.Context, in Interaction, call *calls.CallLog) (Interaction, error) {
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now().UTC()
	}
	var out Interaction
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		q := `
INSERT INTO interactions (customer_id, channel, content, interaction_timestamp)
VALUES ($1, $2, $3, $4)
RETURNING ` + interactionSelect
		var customerID sql.NullInt64
		if in.CustomerID != nil {
			customerID = sql.NullInt64{Int64: *in.CustomerID, Valid: true}
		}
		created, err := scanInteraction(tx.QueryRowContext(ctx, q, customerID, string(in.Channel), nullString(in.Content), in.Timestamp))
		if err != nil {
			return err
		}
		out = created

		if call == nil {
			return nil
		}
		const qCall = `
INSERT INTO call_logs (interaction_id, call_sid, duration_seconds, recording_path, call_status, call_direction)
VALUES ($1, $2, $3, $4, $5, $6)
`
		_, err = tx.ExecContext(ctx, qCall,
			created.ID, nullString(call.CallSID), call.DurationSeconds, nullString(call.RecordingPath),
			string(call.Status), string(call.Direction))
		return err
	})
	if err != nil {
		return Interaction{}, fmt.Errorf("crm: create interaction: %w", err)
	}
	return out, nil
}

func (r *PostgresRepo) GetInteraction(ctx context.Context, id int64) (Interaction, error) {
	q := `SELECT ` + interactionSelect + ` FROM interactions WHERE interaction_id = $1`
	return scanInteraction(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) ListInteractions(ctx context.Context, customerID int64) ([]Interaction, error) {
	q := `SELECT ` + interactionSelect + `
FROM interactions
WHERE customer_id = $1
ORDER BY interaction_timestamp DESC, interaction_id DESC`
	rows, err := r.db.QueryContext(ctx, q, customerID)
	if err != nil {
		return nil, fmt.Errorf("crm: list interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		in, err := scanInteraction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) GetCallLog(ctx context.Context, interactionID int64) (calls.CallLog, error) {
	const q = `
SELECT call_log_id, interaction_id, call_sid, duration_seconds, recording_path, call_status, call_direction
FROM call_logs
WHERE interaction_id = $1
`
	var cl calls.CallLog
	var sid, rec, status, dir sql.NullString
	var dur sql.NullInt64
	if err := r.db.QueryRowContext(ctx, q, interactionID).Scan(&cl.ID, &cl.InteractionID, &sid, &dur, &rec, &status, &dir); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return calls.CallLog{}, ErrNotFound
		}
		return calls.CallLog{}, err
	}
	cl.CallSID = sid.String
	cl.DurationSeconds = int(dur.Int64)
	cl.RecordingPath = rec.String
	cl.Status = calls.CallStatus(status.String)
	cl.Direction = calls.CallDirection(dir.String)
	return cl, nil
}

func (r *PostgresRepo) RecordAnalysis(ctx context.Context, id int64, a Analysis) (bool, error) {
	const q = `
UPDATE interactions
SET summary = $2, outcome = $3, sentiment = $4, lead_score_impact = $5
WHERE interaction_id = $1 AND sentiment IS NULL
`
	res, err := r.db.ExecContext(ctx, q, id, a.Summary, a.Outcome, a.Sentiment, a.LeadScoreImpact)
	if err != nil {
		return false, fmt.Errorf("crm: record analysis: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	if _, err := r.GetInteraction(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func scanVehicle(s rowScanner) (Vehicle, error) {
	var v Vehicle
	var cfg []byte
	if err := s.Scan(&v.ID, &v.ModelName, &v.Brand, &v.BasePriceMinor, &cfg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Vehicle{}, ErrNotFound
		}
		return Vehicle{}, err
	}
	if len(cfg) > 0 {
		v.ConfigurationDetails = json.RawMessage(cfg)
	}
	return v, nil
}

const vehicleSelect = `vehicle_id, model_name, brand, (base_price * 100)::bigint, configuration_details`

func (r *PostgresRepo) CreateVehicle(ctx context.Context, v Vehicle) (Vehicle, error) {
	q := `
INSERT INTO vehicles (model_name, brand, base_price, configuration_details)
VALUES ($1, $2, $3::numeric / 100, $4)
RETURNING ` + vehicleSelect
	var cfg any
	if len(v.ConfigurationDetails) > 0 {
		cfg = []byte(v.ConfigurationDetails)
	}
	out, err := scanVehicle(r.db.QueryRowContext(ctx, q, v.ModelName, v.Brand, v.BasePriceMinor, cfg))
	if err != nil {
		return Vehicle{}, mapWriteErr("crm: create vehicle", err)
	}
	return out, nil
}

func (r *PostgresRepo) GetVehicle(ctx context.Context, id int64) (Vehicle, error) {
	q := `SELECT ` + vehicleSelect + ` FROM vehicles WHERE vehicle_id = $1`
	return scanVehicle(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	q := `SELECT ` + vehicleSelect + ` FROM vehicles ORDER BY brand, model_name`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("crm: list vehicles: %w", err)
	}
	defer rows.Close()

	var out []Vehicle
	for rows.Next() {
		v, err := scanVehicle(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) CreateDocument(ctx context.Context, d Document) (Document, error) {
	const q = `
INSERT INTO documents (customer_id, document_type, file_path)
VALUES ($1, $2, $3)
RETURNING document_id, customer_id, document_type, file_path, created_at
`
	var out Document
	var typ string
	err := r.db.QueryRowContext(ctx, q, d.CustomerID, string(d.Type), d.FilePath).
		Scan(&out.ID, &out.CustomerID, &typ, &out.FilePath, &out.CreatedAt)
	if err != nil {
		return Document{}, mapWriteErr("crm: create document", err)
	}
	out.Type = DocumentType(typ)
	return out, nil
}

func (r *PostgresRepo) ListDocuments(ctx context.Context, customerID int64) ([]Document, error) {
	const q = `
SELECT document_id, customer_id, document_type, file_path, created_at
FROM documents
WHERE customer_id = $1
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, q, customerID)
	if err != nil {
		return nil, fmt.Errorf("crm: list documents: %w", err)
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		var d Document
		var typ string
		if err := rows.Scan(&d.ID, &d.CustomerID, &typ, &d.FilePath, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Type = DocumentType(typ)
		out = append(out, d)
	}
	return out, rows.Err()
}
