package tasks

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"dealership-platform/internal/crm"

	"github.com/hibiken/asynq"
)

func TestPolicies_Table(t *testing.T) {
	cases := []struct {
		typ      string
		maxRetry int
		notFound time.Duration
		delays   []time.Duration
	}{
		{TypeScoreLead, 3, 5 * time.Second, []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}},
		{TypeAnalyzeInteraction, 2, 5 * time.Second, []time.Duration{10 * time.Second, 10 * time.Second}},
		{TypeScheduleFollowup, 3, 0, []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}},
		{TypeSendFollowupEmail, 5, 0, []time.Duration{30 * time.Second, time.Minute, 2 * time.Minute}},
		{TypeSendInvoiceEmail, 5, 0, []time.Duration{30 * time.Second, time.Minute, 2 * time.Minute}},
		{TypeGenerateInvoice, 2, 0, []time.Duration{10 * time.Second, 20 * time.Second}},
		{TypeDailyNurture, 1, 0, []time.Duration{time.Minute}},
	}
	all := Policies()
	if len(all) != len(cases) {
		t.Fatalf("expected %d policies, got %d", len(cases), len(all))
	}
	for _, tc := range cases {
		p := PolicyFor(tc.typ)
		if p.MaxRetry != tc.maxRetry || p.NotFoundDelay != tc.notFound {
			t.Fatalf("%s: got max=%d notfound=%s", tc.typ, p.MaxRetry, p.NotFoundDelay)
		}
		for n, want := range tc.delays {
			if got := p.Backoff(n); got != want {
				t.Fatalf("%s: backoff(%d) = %s, want %s", tc.typ, n, got, want)
			}
		}
	}
}

func TestPolicies_EmailBackoffIsCapped(t *testing.T) {
	p := PolicyFor(TypeSendFollowupEmail)
	if got := p.Backoff(10); got != 30*time.Minute {
		t.Fatalf("expected cap at 30m, got %s", got)
	}
	if got := p.Backoff(200); got != 30*time.Minute {
		t.Fatalf("expected cap at 30m for huge n, got %s", got)
	}
}

func TestRetryDelay_UsesNotFoundDelayOnlyWhenConfigured(t *testing.T) {
	nf := notFoundYet("interaction", 1)

	analyze := asynq.NewTask(TypeAnalyzeInteraction, nil)
	if got := RetryDelay(1, nf, analyze); got != 5*time.Second {
		t.Fatalf("analyze not-found delay = %s", got)
	}
	if got := RetryDelay(1, errors.New("db down"), analyze); got != 10*time.Second {
		t.Fatalf("analyze other delay = %s", got)
	}

	followup := asynq.NewTask(TypeScheduleFollowup, nil)
	if got := RetryDelay(0, nf, followup); got != 5*time.Second {
		t.Fatalf("followup delay = %s", got)
	}
	if got := RetryDelay(2, nf, followup); got != 20*time.Second {
		t.Fatalf("followup should back off normally, got %s", got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		name     string
		err      error
		terminal bool
	}{
		{"nil", nil, false},
		{"not found yet", notFoundYet("customer", 1), false},
		{"plain not found", fmt.Errorf("vehicle 2: %w", crm.ErrNotFound), true},
		{"invalid input", crm.ErrInvalidInput, true},
		{"bad payload", ErrBadPayload, true},
		{"transient", errors.New("connection reset"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := classify(tc.err)
			if errors.Is(got, asynq.SkipRetry) != tc.terminal {
				t.Fatalf("classify(%v) terminal=%v, want %v", tc.err, !tc.terminal, tc.terminal)
			}
			if tc.err != nil && !errors.Is(got, tc.err) {
				t.Fatalf("classify must keep the original error in the chain")
			}
		})
	}
}
