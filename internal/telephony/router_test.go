package telephony

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"dealership-platform/internal/crm"
	"dealership-platform/internal/notify"
	"dealership-platform/internal/session"
	"dealership-platform/internal/tasks"
	"dealership-platform/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var callTime = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

type fixture struct {
	repo     *crm.MemoryRepo
	svc      *crm.Service
	sessions session.Store
	enq      *tasks.RecordingEnqueuer
	router   *Router
}

func newFixture(t *testing.T, sessions session.Store, cfg RouterConfig) *fixture {
	t.Helper()
	repo := crm.NewMemoryRepo()
	svc := crm.NewService(repo, "US", nil, logger.Discard())
	if sessions == nil {
		sessions = session.NewMemoryStore(session.Options{})
	}
	enq := tasks.NewRecordingEnqueuer()
	r := NewRouter(svc, sessions, tasks.NewDispatcher(enq, tasks.DispatcherOptions{}), nil, cfg, logger.Discard()).
		WithClock(func() time.Time { return callTime })
	return &fixture{repo: repo, svc: svc, sessions: sessions, enq: enq, router: r}
}

func msg(t *testing.T, raw string) Message {
	t.Helper()
	m, err := DecodeEnvelope([]byte(raw))
	require.NoError(t, err)
	require.NotNil(t, m)
	return *m
}

type downStore struct{}

var errDown = errors.New("session store down")

func (downStore) Start(context.Context, string) error                     { return errDown }
func (downStore) Active(context.Context, string) (bool, error)            { return false, errDown }
func (downStore) Append(context.Context, string, ...session.Turn) error   { return errDown }
func (downStore) History(context.Context, string) ([]session.Turn, error) { return nil, errDown }
func (downStore) End(context.Context, string) error                       { return errDown }
func (downStore) Ping(context.Context) error                              { return errDown }

func TestCallLifecycle_KnownCallerTestDrive(t *testing.T) {
	f := newFixture(t, nil, RouterConfig{})
	ctx := context.Background()
	known, err := f.repo.CreateCustomer(ctx, crm.Customer{FirstName: "Asha", Email: "asha@example.com", Phone: "+16502530000"})
	require.NoError(t, err)

	res := f.router.Route(ctx, msg(t, `{"message":{"type":"call-start","call":{"id":"abc123"}}}`))
	assert.Equal(t, http.StatusOK, res.Status)
	active, _ := f.sessions.Active(ctx, "abc123")
	require.True(t, active)

	res = f.router.Route(ctx, msg(t, `{"message":{
		"type":"end-of-call-report",
		"call":{"id":"abc123","type":"inboundPhoneCall"},
		"customer":{"number":"+1 650-253-0000"},
		"artifact":{"transcript":"I want to schedule a test drive for the Phantom"},
		"durationSeconds":95.4,
		"endedReason":"customer-ended-call"}}`))
	assert.Equal(t, http.StatusOK, res.Status)

	active, _ = f.sessions.Active(ctx, "abc123")
	assert.False(t, active, "session removed on call end")

	interactions, _ := f.repo.ListInteractions(ctx, known.ID)
	require.Len(t, interactions, 1)
	in := interactions[0]
	assert.Equal(t, crm.ChannelPhone, in.Channel)
	assert.Equal(t, "I want to schedule a test drive for the Phantom", in.Content)

	cl, err := f.repo.GetCallLog(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc123", cl.CallSID)
	assert.Equal(t, 95, cl.DurationSeconds)

	require.Len(t, f.enq.OfType(tasks.TypeAnalyzeInteraction), 1)
	scores := f.enq.OfType(tasks.TypeScoreLead)
	require.Len(t, scores, 1)
	var sp tasks.ScoreLeadPayload
	require.NoError(t, json.Unmarshal(scores[0].Payload, &sp))
	assert.Equal(t, known.ID, sp.CustomerID)

	// Run the queued analysis the way the worker would.
	h := tasks.NewHandlers(tasks.Deps{
		CRM:       f.svc,
		Templates: notify.NewTemplates(""),
		Mailer:    &notify.MemoryMailer{},
		Dispatch:  tasks.NewDispatcher(f.enq, tasks.DispatcherOptions{}),
		Log:       logger.Discard(),
	})
	_, err = h.AnalyzeInteraction(ctx, tasks.AnalyzeInteractionPayload{InteractionID: in.ID})
	require.NoError(t, err)
	stored, _ := f.repo.GetInteraction(ctx, in.ID)
	assert.Equal(t, "Test drive interest expressed", stored.Outcome)
	assert.Contains(t, []string{"Neutral", "Positive"}, stored.Sentiment)

	followups := f.enq.OfType(tasks.TypeScheduleFollowup)
	require.Len(t, followups, 1)
	var fp tasks.ScheduleFollowupPayload
	require.NoError(t, json.Unmarshal(followups[0].Payload, &fp))
	assert.Equal(t, tasks.ScheduleFollowupPayload{CustomerID: known.ID, FollowupType: tasks.FollowupTestDriveConfirmation}, fp)
}

func TestCallEnd_UnknownCallerCreatesProspect(t *testing.T) {
	f := newFixture(t, nil, RouterConfig{PostCallThankYou: true})
	ctx := context.Background()

	res := f.router.Route(ctx, msg(t, `{"message":{"type":"call-end","call":{"id":"c-9","customer":{"number":"+14155550123"}},"transcript":"Just looking at options for next year"}}`))
	assert.Equal(t, http.StatusOK, res.Status)

	c, err := f.repo.GetCustomerByPhone(ctx, "+14155550123")
	require.NoError(t, err)
	assert.Equal(t, crm.TierProspect, c.Tier)

	interactions, _ := f.repo.ListInteractions(ctx, c.ID)
	require.Len(t, interactions, 1)
	assert.Len(t, f.enq.OfType(tasks.TypeScoreLead), 1)
	assert.Len(t, f.enq.OfType(tasks.TypeScheduleFollowup), 1, "thank-you follow-up")
}

func TestCallEnd_WithoutNumberOrTranscript(t *testing.T) {
	f := newFixture(t, nil, RouterConfig{PostCallThankYou: true})
	ctx := context.Background()

	res := f.router.Route(ctx, msg(t, `{"message":{"type":"call-end","call":{"id":"c-1"}}}`))
	assert.Equal(t, http.StatusOK, res.Status)

	in, err := f.repo.GetInteraction(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, in.CustomerID)
	assert.Len(t, f.enq.OfType(tasks.TypeAnalyzeInteraction), 1)
	assert.Empty(t, f.enq.OfType(tasks.TypeScoreLead))
	assert.Empty(t, f.enq.OfType(tasks.TypeScheduleFollowup))
}

func TestCallEnd_WithoutStartIsFine(t *testing.T) {
	f := newFixture(t, nil, RouterConfig{})
	res := f.router.Route(context.Background(), msg(t, `{"message":{"type":"call-end","call":{"id":"never-started"},"transcript":"hello"}}`))
	assert.Equal(t, http.StatusOK, res.Status)
}

func TestCallStart_RequiresCallIDEvenWhenStoreIsDown(t *testing.T) {
	f := newFixture(t, downStore{}, RouterConfig{})
	ctx := context.Background()

	res := f.router.Route(ctx, msg(t, `{"message":{"type":"call-start","call":{}}}`))
	assert.Equal(t, http.StatusBadRequest, res.Status)

	res = f.router.Route(ctx, msg(t, `{"message":{"type":"call-start","call":{"id":"x"}}}`))
	assert.Equal(t, http.StatusOK, res.Status, "store failure is acked")
}

func TestAssistantTurn_AppendsHistory(t *testing.T) {
	f := newFixture(t, nil, RouterConfig{})
	ctx := context.Background()
	f.router.Route(ctx, msg(t, `{"message":{"type":"call-start","call":{"id":"t1"}}}`))

	res := f.router.Route(ctx, msg(t, `{"message":{"type":"conversation-update","call":{"id":"t1"},"messages":[
		{"role":"assistant","content":"Hello"},
		{"role":"user","content":"How much is the Cullinan?"}]}}`))
	require.Equal(t, http.StatusOK, res.Status)
	body, ok := res.Body.(ChatResponse)
	require.True(t, ok)
	require.Len(t, body.Choices, 1)
	assert.Equal(t, "assistant", body.Choices[0].Message.Role)
	assert.Equal(t, intentReplies["pricing"], body.Choices[0].Message.Content)

	history, err := f.sessions.History(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, session.RoleUser, history[0].Role)
	assert.Equal(t, "How much is the Cullinan?", history[0].Content)
	assert.Equal(t, session.RoleAssistant, history[1].Role)
}

func TestAssistantTurn_DegradesWhenStoreIsDown(t *testing.T) {
	f := newFixture(t, downStore{}, RouterConfig{})
	res := f.router.Route(context.Background(), msg(t, `{"message":{"type":"voice-input","call":{"id":"t2"},"input":"I'd like a test drive"}}`))
	require.Equal(t, http.StatusOK, res.Status)
	body := res.Body.(ChatResponse)
	assert.Equal(t, intentReplies["test_drive"], body.Choices[0].Message.Content)
}

func TestRoute_UnknownTypeIsAcked(t *testing.T) {
	f := newFixture(t, nil, RouterConfig{})
	res := f.router.Route(context.Background(), msg(t, `{"message":{"type":"speech-update"}}`))
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Empty(t, f.enq.Tasks())
}
