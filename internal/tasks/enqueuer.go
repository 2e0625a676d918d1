package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"dealership-platform/internal/metrics"

	"github.com/hibiken/asynq"
)

// Enqueuer publishes a task and returns its id.
type Enqueuer interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (string, error)
}

type AsynqEnqueuer struct {
	client *asynq.Client
}

func NewAsynqEnqueuer(redisURL string) (*AsynqEnqueuer, error) {
	opt, err := RedisOpt(redisURL)
	if err != nil {
		return nil, err
	}
	return &AsynqEnqueuer{client: asynq.NewClient(opt)}, nil
}

func (e *AsynqEnqueuer) Close() error { return e.client.Close() }

// Enqueue reports a repeated TaskID as ErrDuplicateTask together with that
// id; the earlier task stands.
func (e *AsynqEnqueuer) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (string, error) {
	info, err := e.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return taskIDFrom(opts), ErrDuplicateTask
		}
		return "", fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return info.ID, nil
}

func taskIDFrom(opts []asynq.Option) string {
	for _, o := range opts {
		if o.Type() == asynq.TaskIDOpt {
			if id, ok := o.Value().(string); ok {
				return id
			}
		}
	}
	return ""
}

// Enqueued is a task captured by RecordingEnqueuer.
type Enqueued struct {
	ID      string
	Type    string
	Payload []byte
	Queue   string
	Delay   time.Duration
}

// RecordingEnqueuer keeps tasks in memory. Tasks with a repeated TaskID are
// dropped with ErrDuplicateTask, mirroring AsynqEnqueuer.
type RecordingEnqueuer struct {
	mu    sync.Mutex
	tasks []Enqueued
	seen  map[string]bool
	Err   error
}

func NewRecordingEnqueuer() *RecordingEnqueuer {
	return &RecordingEnqueuer{seen: map[string]bool{}}
}

func (r *RecordingEnqueuer) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Err != nil {
		return "", r.Err
	}
	e := Enqueued{Type: task.Type(), Payload: append([]byte(nil), task.Payload()...)}
	for _, o := range opts {
		switch o.Type() {
		case asynq.TaskIDOpt:
			e.ID, _ = o.Value().(string)
		case asynq.QueueOpt:
			e.Queue, _ = o.Value().(string)
		case asynq.ProcessInOpt:
			e.Delay, _ = o.Value().(time.Duration)
		}
	}
	if e.ID != "" && r.seen[e.ID] {
		return e.ID, ErrDuplicateTask
	}
	if e.ID == "" {
		e.ID = fmt.Sprintf("task-%d", len(r.tasks)+1)
	}
	r.seen[e.ID] = true
	r.tasks = append(r.tasks, e)
	return e.ID, nil
}

func (r *RecordingEnqueuer) Tasks() []Enqueued {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Enqueued(nil), r.tasks...)
}

// OfType filters recorded tasks by type name.
func (r *RecordingEnqueuer) OfType(typ string) []Enqueued {
	var out []Enqueued
	for _, e := range r.Tasks() {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// Dispatcher builds typed tasks and applies queue, retry and retention
// options from the job's policy.
type Dispatcher struct {
	enq       Enqueuer
	queue     string
	retention time.Duration
	metrics   *metrics.PipelineMetrics
}

type DispatcherOptions struct {
	Queue     string
	Retention time.Duration
	Metrics   *metrics.PipelineMetrics
}

func NewDispatcher(enq Enqueuer, opts DispatcherOptions) *Dispatcher {
	if opts.Queue == "" {
		opts.Queue = "default"
	}
	if opts.Retention <= 0 {
		opts.Retention = 24 * time.Hour
	}
	return &Dispatcher{enq: enq, queue: opts.Queue, retention: opts.Retention, metrics: opts.Metrics}
}

func (d *Dispatcher) dispatch(ctx context.Context, task *asynq.Task, err error, extra ...asynq.Option) (string, error) {
	if err != nil {
		return "", err
	}
	opts := []asynq.Option{
		asynq.Queue(d.queue),
		asynq.MaxRetry(PolicyFor(task.Type()).MaxRetry),
		asynq.Retention(d.retention),
	}
	opts = append(opts, extra...)
	id, err := d.enq.Enqueue(ctx, task, opts...)
	// A duplicate is neither an enqueue nor a failure.
	if errors.Is(err, ErrDuplicateTask) {
		return id, err
	}
	d.metrics.ObserveEnqueue(task.Type(), err)
	return id, err
}

func (d *Dispatcher) ScoreLead(ctx context.Context, customerID int64, text string) (string, error) {
	t, err := NewScoreLeadTask(ScoreLeadPayload{CustomerID: customerID, Text: text})
	return d.dispatch(ctx, t, err)
}

func (d *Dispatcher) AnalyzeInteraction(ctx context.Context, interactionID int64) (string, error) {
	t, err := NewAnalyzeInteractionTask(AnalyzeInteractionPayload{InteractionID: interactionID})
	return d.dispatch(ctx, t, err)
}

func (d *Dispatcher) ScheduleFollowup(ctx context.Context, customerID int64, followupType string, extra ...asynq.Option) (string, error) {
	t, err := NewScheduleFollowupTask(ScheduleFollowupPayload{CustomerID: customerID, FollowupType: followupType})
	return d.dispatch(ctx, t, err, extra...)
}

func (d *Dispatcher) SendFollowupEmail(ctx context.Context, p SendFollowupEmailPayload, delay time.Duration) (string, error) {
	t, err := NewSendFollowupEmailTask(p)
	var extra []asynq.Option
	if delay > 0 {
		extra = append(extra, asynq.ProcessIn(delay))
	}
	return d.dispatch(ctx, t, err, extra...)
}

func (d *Dispatcher) GenerateInvoice(ctx context.Context, customerID, vehicleID int64) (string, error) {
	t, err := NewGenerateInvoiceTask(GenerateInvoicePayload{CustomerID: customerID, VehicleID: vehicleID})
	return d.dispatch(ctx, t, err)
}

func (d *Dispatcher) SendInvoiceEmail(ctx context.Context, p SendInvoiceEmailPayload) (string, error) {
	t, err := NewSendInvoiceEmailTask(p)
	return d.dispatch(ctx, t, err)
}

func (d *Dispatcher) DailyNurture(ctx context.Context) (string, error) {
	t, err := NewDailyNurtureTask()
	return d.dispatch(ctx, t, err)
}
