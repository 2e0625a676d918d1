package tasks

import (
	"errors"
	"math"
	"time"

	"github.com/hibiken/asynq"
)

// RetryPolicy bounds how a job type is retried. NotFoundDelay, when set, is
// used instead of Backoff for ErrNotFoundYet failures.
type RetryPolicy struct {
	MaxRetry      int
	NotFoundDelay time.Duration
	Backoff       func(n int) time.Duration
}

func (p RetryPolicy) delay(n int, err error) time.Duration {
	if p.NotFoundDelay > 0 && errors.Is(err, ErrNotFoundYet) {
		return p.NotFoundDelay
	}
	if p.Backoff == nil {
		return asynq.DefaultRetryDelayFunc(n, err, nil)
	}
	return p.Backoff(n)
}

func fixed(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

func exponential(base, ceiling time.Duration) func(int) time.Duration {
	return func(n int) time.Duration {
		if n < 0 {
			n = 0
		}
		d := time.Duration(float64(base) * math.Pow(2, float64(n)))
		if ceiling > 0 && (d > ceiling || d <= 0) {
			return ceiling
		}
		return d
	}
}

var policies = map[string]RetryPolicy{
	TypeScoreLead:          {MaxRetry: 3, NotFoundDelay: 5 * time.Second, Backoff: exponential(5*time.Second, 0)},
	TypeAnalyzeInteraction: {MaxRetry: 2, NotFoundDelay: 5 * time.Second, Backoff: fixed(10 * time.Second)},
	TypeScheduleFollowup:   {MaxRetry: 3, Backoff: exponential(5*time.Second, 0)},
	TypeSendFollowupEmail:  {MaxRetry: 5, Backoff: exponential(30*time.Second, 30*time.Minute)},
	TypeSendInvoiceEmail:   {MaxRetry: 5, Backoff: exponential(30*time.Second, 30*time.Minute)},
	TypeGenerateInvoice:    {MaxRetry: 2, Backoff: exponential(10*time.Second, 0)},
	TypeDailyNurture:       {MaxRetry: 1, Backoff: fixed(time.Minute)},
}

var defaultPolicy = RetryPolicy{MaxRetry: 3, Backoff: exponential(10*time.Second, 10*time.Minute)}

// Policies returns a copy of the per-type retry table.
func Policies() map[string]RetryPolicy {
	out := make(map[string]RetryPolicy, len(policies))
	for k, v := range policies {
		out[k] = v
	}
	return out
}

func PolicyFor(taskType string) RetryPolicy {
	if p, ok := policies[taskType]; ok {
		return p
	}
	return defaultPolicy
}

// RetryDelay is the worker's asynq.RetryDelayFunc.
func RetryDelay(n int, err error, task *asynq.Task) time.Duration {
	typ := ""
	if task != nil {
		typ = task.Type()
	}
	return PolicyFor(typ).delay(n, err)
}
