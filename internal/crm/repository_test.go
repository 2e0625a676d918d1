package crm

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"dealership-platform/internal/calls"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*PostgresRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresRepo(db), mock
}

func customerRow(id int64, phone string, tier Tier) *sqlmock.Rows {
	now := time.Unix(1700000000, 0).UTC()
	return sqlmock.NewRows(customerColumns).
		AddRow(id, "", nil, phone, nil, nil, string(tier), now, now)
}

func TestPostgresRepo_ResolveOrCreateByPhone_Creates(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO customers (phone_number)")).
		WithArgs("+16502530000").
		WillReturnRows(customerRow(42, "+16502530000", TierProspect))
	mock.ExpectCommit()

	c, created, err := repo.ResolveOrCreateByPhone(context.Background(), "+16502530000")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(42), c.ID)
	assert.Equal(t, TierProspect, c.Tier)
	assert.Equal(t, "", c.Email)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_ResolveOrCreateByPhone_Existing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO customers (phone_number)")).
		WithArgs("+16502530000").
		WillReturnRows(sqlmock.NewRows(customerColumns))
	mock.ExpectQuery(regexp.QuoteMeta("FROM customers WHERE phone_number = $1")).
		WithArgs("+16502530000").
		WillReturnRows(customerRow(7, "+16502530000", TierWarm))
	mock.ExpectCommit()

	c, created, err := repo.ResolveOrCreateByPhone(context.Background(), "+16502530000")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(7), c.ID)
	assert.Equal(t, TierWarm, c.Tier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_UpdateTierReturnsPrevious(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE customers c")).
		WithArgs(int64(5), "Hot Lead").
		WillReturnRows(sqlmock.NewRows([]string{"customer_type"}).AddRow("Prospect"))

	prev, err := repo.UpdateTier(context.Background(), 5, TierHot)
	require.NoError(t, err)
	assert.Equal(t, TierProspect, prev)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE customers c")).
		WithArgs(int64(6), "Hot Lead").
		WillReturnError(sql.ErrNoRows)
	_, err = repo.UpdateTier(context.Background(), 6, TierHot)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_CreateCustomerConflict(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO customers (first_name")).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "customers_email_key"})

	_, err := repo.CreateCustomer(context.Background(), Customer{FirstName: "A", Email: "a@example.com"})
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_ListCustomersBuildsFilters(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT customer_id, .* FROM customers WHERE customer_type = \$1 AND \(first_name ILIKE \$2 OR last_name ILIKE \$3 OR email ILIKE \$4 OR phone_number LIKE \$5\) ORDER BY customer_id DESC LIMIT`).
		WithArgs("Warm Lead", "%asha%", "%asha%", "%asha%", "%asha%").
		WillReturnRows(customerRow(1, "+16502530000", TierWarm))

	out, err := repo.ListCustomers(context.Background(), CustomerFilter{Tier: TierWarm, Search: "asha", Limit: 10})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, TierWarm, out[0].Tier)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_CreateInteractionWithCallLog(t *testing.T) {
	repo, mock := newMockRepo(t)
	ts := time.Unix(1700000000, 0).UTC()
	customerID := int64(9)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO interactions")).
		WithArgs(customerID, "Phone", "I want a test drive", ts).
		WillReturnRows(sqlmock.NewRows([]string{"interaction_id", "customer_id", "channel", "content", "summary", "outcome", "sentiment", "lead_score_impact", "interaction_timestamp"}).
			AddRow(int64(100), customerID, "Phone", "I want a test drive", nil, nil, nil, nil, ts))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO call_logs")).
		WithArgs(int64(100), "call-1", 95, nil, "completed", "inbound").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	in, err := repo.CreateInteraction(context.Background(), Interaction{
		CustomerID: &customerID,
		Channel:    ChannelPhone,
		Content:    "I want a test drive",
		Timestamp:  ts,
	}, &calls.CallLog{CallSID: "call-1", DurationSeconds: 95, Status: calls.CallStatusCompleted, Direction: calls.CallDirectionInbound})
	require.NoError(t, err)
	assert.Equal(t, int64(100), in.ID)
	assert.False(t, in.Analyzed())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_CreateInteractionRollsBackOnCallLogFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	ts := time.Unix(1700000000, 0).UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO interactions")).
		WillReturnRows(sqlmock.NewRows([]string{"interaction_id", "customer_id", "channel", "content", "summary", "outcome", "sentiment", "lead_score_impact", "interaction_timestamp"}).
			AddRow(int64(100), nil, "Phone", nil, nil, nil, nil, nil, ts))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO call_logs")).
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	_, err := repo.CreateInteraction(context.Background(), Interaction{Channel: ChannelPhone, Timestamp: ts}, &calls.CallLog{})
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_RecordAnalysisGuardsRewrites(t *testing.T) {
	repo, mock := newMockRepo(t)
	ts := time.Unix(1700000000, 0).UTC()
	a := Analysis{Summary: "Hi.", Outcome: "General inquiry", Sentiment: "Neutral", LeadScoreImpact: 20}

	mock.ExpectExec(regexp.QuoteMeta("UPDATE interactions")).
		WithArgs(int64(1), "Hi.", "General inquiry", "Neutral", 20).
		WillReturnResult(sqlmock.NewResult(0, 1))
	applied, err := repo.RecordAnalysis(context.Background(), 1, a)
	require.NoError(t, err)
	assert.True(t, applied)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE interactions")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM interactions WHERE interaction_id = $1")).
		WithArgs(int64(1)).
		WillReturnRows(sqlmock.NewRows([]string{"interaction_id", "customer_id", "channel", "content", "summary", "outcome", "sentiment", "lead_score_impact", "interaction_timestamp"}).
			AddRow(int64(1), nil, "Phone", "Hi", "Hi.", "General inquiry", "Neutral", 20, ts))
	applied, err = repo.RecordAnalysis(context.Background(), 1, a)
	require.NoError(t, err)
	assert.False(t, applied)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE interactions")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("FROM interactions WHERE interaction_id = $1")).
		WillReturnError(sql.ErrNoRows)
	_, err = repo.RecordAnalysis(context.Background(), 2, a)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRepo_CountByTier(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT customer_type, COUNT(*) FROM customers GROUP BY customer_type")).
		WillReturnRows(sqlmock.NewRows([]string{"customer_type", "count"}).
			AddRow(string(TierHot), 2).
			AddRow(string(TierProspect), 5))

	got, err := repo.CountByTier(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[Tier]int{TierHot: 2, TierProspect: 5}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}
