package tasks

import (
	"encoding/json"
	"errors"

	"github.com/hibiken/asynq"
)

var ErrJobNotFound = errors.New("tasks: job not found")

type State string

const (
	StatePending State = "pending"
	StateStarted State = "started"
	StateSuccess State = "success"
	StateFailure State = "failure"
	StateRetry   State = "retry"
)

type JobStatus struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	Status    State           `json:"status"`
	Result    json.RawMessage `json:"result,omitempty"`
	LastError string          `json:"last_error,omitempty"`
	Retried   int             `json:"retried"`
	MaxRetry  int             `json:"max_retry"`
}

type StatusReader interface {
	Status(id string) (JobStatus, error)
}

// Inspector reads job state from a single asynq queue.
type Inspector struct {
	inspector *asynq.Inspector
	queue     string
}

func NewInspector(opt asynq.RedisConnOpt, queue string) *Inspector {
	if queue == "" {
		queue = "default"
	}
	return &Inspector{inspector: asynq.NewInspector(opt), queue: queue}
}

func (i *Inspector) Close() error { return i.inspector.Close() }

func (i *Inspector) Status(id string) (JobStatus, error) {
	info, err := i.inspector.GetTaskInfo(i.queue, id)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			return JobStatus{}, ErrJobNotFound
		}
		return JobStatus{}, err
	}
	return StatusFromInfo(info), nil
}

func StatusFromInfo(info *asynq.TaskInfo) JobStatus {
	js := JobStatus{
		ID:        info.ID,
		Type:      info.Type,
		Status:    stateOf(info.State),
		LastError: info.LastErr,
		Retried:   info.Retried,
		MaxRetry:  info.MaxRetry,
	}
	if len(info.Result) > 0 && json.Valid(info.Result) {
		js.Result = json.RawMessage(info.Result)
	}
	return js
}

func stateOf(s asynq.TaskState) State {
	switch s {
	case asynq.TaskStateActive:
		return StateStarted
	case asynq.TaskStateCompleted:
		return StateSuccess
	case asynq.TaskStateRetry:
		return StateRetry
	case asynq.TaskStateArchived:
		return StateFailure
	default:
		return StatePending
	}
}
