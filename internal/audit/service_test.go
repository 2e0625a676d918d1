package audit

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func TestService_RecordRejectsInvalid(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	if err := svc.RecordTierChange(context.Background(), TierChange{New: "Hot Lead", Source: SourceScoring}); err == nil {
		t.Fatalf("expected error without customer")
	}
	if err := svc.RecordTierChange(context.Background(), TierChange{CustomerID: 1, New: "Hot Lead"}); err == nil {
		t.Fatalf("expected error without source")
	}
}

func TestService_ManualNoopIsSkipped(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)

	err := svc.RecordTierChange(context.Background(), TierChange{CustomerID: 1, Previous: "Warm Lead", New: "Warm Lead", Source: SourceManual})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(repo.Changes()) != 0 {
		t.Fatalf("expected no record for unchanged manual override")
	}
}

func TestService_HistoryNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	ctx := context.Background()

	for _, tier := range []string{"Warm Lead", "Hot Lead"} {
		if err := svc.RecordTierChange(ctx, TierChange{CustomerID: 7, Previous: "Prospect", New: tier, Source: SourceScoring, Actor: "job-1"}); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	_ = svc.RecordTierChange(ctx, TierChange{CustomerID: 8, New: "Cold Lead", Source: SourceScoring})

	hist, err := svc.History(ctx, 7, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 2 || hist[0].New != "Hot Lead" {
		t.Fatalf("unexpected history: %+v", hist)
	}
	if hist[0].CreatedAt.IsZero() {
		t.Fatalf("expected timestamp filled")
	}
}

func TestPostgresRepo_Append(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	at := time.Unix(1700000000, 0).UTC()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO lead_tier_audit")).
		WithArgs(int64(3), "Prospect", "Hot Lead", "manual", "user-1", "closing this week", at).
		WillReturnResult(sqlmock.NewResult(1, 1))

	repo := NewPostgresRepo(db)
	err = repo.Append(context.Background(), TierChange{
		CustomerID: 3, Previous: "Prospect", New: "Hot Lead", Source: SourceManual,
		Actor: "user-1", Reason: "closing this week", CreatedAt: at,
	})
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
