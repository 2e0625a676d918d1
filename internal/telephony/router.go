package telephony

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"dealership-platform/internal/calls"
	"dealership-platform/internal/crm"
	"dealership-platform/internal/session"
	"dealership-platform/internal/tasks"

	"github.com/hibiken/asynq"
)

// Pipeline is the part of the task dispatcher the router enqueues into.
type Pipeline interface {
	AnalyzeInteraction(ctx context.Context, interactionID int64) (string, error)
	ScoreLead(ctx context.Context, customerID int64, text string) (string, error)
	ScheduleFollowup(ctx context.Context, customerID int64, followupType string, extra ...asynq.Option) (string, error)
}

// Result is what the HTTP layer writes back to the platform.
type Result struct {
	Status int
	Body   any
}

func ack() Result { return Result{Status: http.StatusOK, Body: map[string]string{"status": "ok"}} }

type RouterConfig struct {
	// PostCallThankYou schedules the thank-you follow-up after every call
	// from a known customer.
	PostCallThankYou bool
}

// Router drives the per-call state machine: call-start marks the session
// active, assistant turns grow its history, and call-end logs the interaction
// and hands off to the task pipeline.
type Router struct {
	crm       *crm.Service
	sessions  session.Store
	pipeline  Pipeline
	responder Responder
	cfg       RouterConfig
	log       *slog.Logger
	clock     func() time.Time
}

func NewRouter(svc *crm.Service, sessions session.Store, pipeline Pipeline, responder Responder, cfg RouterConfig, log *slog.Logger) *Router {
	if responder == nil {
		responder = TemplateResponder{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		crm:       svc,
		sessions:  sessions,
		pipeline:  pipeline,
		responder: responder,
		cfg:       cfg,
		log:       log,
		clock:     time.Now,
	}
}

func (r *Router) WithClock(clock func() time.Time) *Router {
	r.clock = clock
	return r
}

// Route dispatches one decoded message.
func (r *Router) Route(ctx context.Context, m Message) Result {
	switch m.Event() {
	case EventCallStart:
		return r.CallStart(ctx, m)
	case EventAssistantTurn:
		return r.AssistantTurn(ctx, m)
	case EventCallEnd:
		return r.CallEnd(ctx, m)
	default:
		r.log.Debug("ignoring webhook event", "type", m.Type)
		return ack()
	}
}

func (r *Router) CallStart(ctx context.Context, m Message) Result {
	callID := m.CallID()
	if callID == "" {
		return Result{Status: http.StatusBadRequest, Body: map[string]string{"error": "Missing call_id"}}
	}
	if err := r.sessions.Start(ctx, callID); err != nil {
		r.log.Warn("session start failed", "call_id", callID, "err", err)
		return ack()
	}
	r.log.Info("call started", "call_id", callID)
	return ack()
}

func (r *Router) AssistantTurn(ctx context.Context, m Message) Result {
	callID := m.CallID()
	var history []session.Turn
	if callID != "" {
		h, err := r.sessions.History(ctx, callID)
		if err != nil {
			r.log.Warn("session history unavailable, answering statelessly", "call_id", callID, "err", err)
		} else {
			history = h
		}
	}

	utterance := LatestUtterance(m)
	reply, err := r.responder.Reply(ctx, history, utterance)
	if err != nil {
		r.log.Error("responder failed", "call_id", callID, "err", err)
		reply = fallback
	}

	if callID != "" {
		now := r.clock().UTC()
		turns := make([]session.Turn, 0, 2)
		if utterance != "" {
			turns = append(turns, session.Turn{Role: session.RoleUser, Content: utterance, At: now})
		}
		turns = append(turns, session.Turn{Role: session.RoleAssistant, Content: reply, At: now})
		if err := r.sessions.Append(ctx, callID, turns...); err != nil {
			r.log.Warn("session append failed", "call_id", callID, "err", err)
		}
	}
	return Result{Status: http.StatusOK, Body: NewChatResponse(reply)}
}

// CallEnd never fails the webhook; every internal error is logged.
func (r *Router) CallEnd(ctx context.Context, m Message) Result {
	callID := m.CallID()
	transcript, source := ExtractTranscript(m)
	log := r.log.With("call_id", callID)
	log.Info("call ended", "transcript_chars", len(transcript), "transcript_source", source)

	var customer *crm.Customer
	if number := m.CallerNumber(); number != "" {
		c, created, err := r.crm.ResolveCaller(ctx, number)
		if err != nil {
			log.Error("resolve caller failed", "err", err)
		} else {
			customer = &c
			log.Info("caller resolved", "customer_id", c.ID, "created", created)
		}
	} else {
		log.Warn("call ended without a caller number")
	}

	in := crm.Interaction{
		Channel:   crm.ChannelPhone,
		Content:   transcript,
		Timestamp: r.clock().UTC(),
	}
	if customer != nil {
		id := customer.ID
		in.CustomerID = &id
	}
	callLog := &calls.CallLog{
		CallSID:         callID,
		DurationSeconds: calls.DurationSeconds(m.DurationValue()),
		RecordingPath:   m.Recording(),
		Status:          calls.StatusFromPlatform(firstNonEmpty(m.Status, m.EndedReason)),
		Direction:       calls.DirectionFromPlatform(m.CallType()),
	}
	logged, err := r.crm.Store().CreateInteraction(ctx, in, callLog)
	if err != nil {
		log.Error("interaction log failed", "err", err)
	}

	if callID != "" {
		if err := r.sessions.End(ctx, callID); err != nil {
			log.Warn("session cleanup failed", "err", err)
		}
	}

	if err == nil {
		if _, err := r.pipeline.AnalyzeInteraction(ctx, logged.ID); err != nil {
			log.Error("enqueue analyze_interaction failed", "interaction_id", logged.ID, "err", err)
		}
	}
	if customer != nil && transcript != "" {
		if _, err := r.pipeline.ScoreLead(ctx, customer.ID, transcript); err != nil {
			log.Error("enqueue score_lead failed", "customer_id", customer.ID, "err", err)
		}
	}
	if customer != nil && r.cfg.PostCallThankYou {
		if _, err := r.pipeline.ScheduleFollowup(ctx, customer.ID, tasks.FollowupPostCallThankYou); err != nil {
			log.Error("enqueue thank-you failed", "customer_id", customer.ID, "err", err)
		}
	}
	return ack()
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
