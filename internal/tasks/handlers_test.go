package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"dealership-platform/internal/analysis"
	"dealership-platform/internal/audit"
	"dealership-platform/internal/crm"
	"dealership-platform/internal/documents"
	"dealership-platform/internal/notify"
	"dealership-platform/pkg/logger"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

type harness struct {
	repo    *crm.MemoryRepo
	audit   *audit.MemoryRepo
	enq     *RecordingEnqueuer
	mailer  *notify.MemoryMailer
	h       *Handlers
	storage documents.LocalStorage
}

type pdfStub struct{}

func (pdfStub) RenderInvoice(d documents.InvoiceData) ([]byte, error) {
	return []byte("%PDF-" + d.Number), nil
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	repo := crm.NewMemoryRepo().WithClock(func() time.Time { return testNow })
	auditRepo := audit.NewMemoryRepo()
	svc := crm.NewService(repo, "US", audit.NewService(auditRepo), logger.Discard())
	enq := NewRecordingEnqueuer()
	mailer := &notify.MemoryMailer{}
	storage := documents.LocalStorage{Dir: t.TempDir()}
	docs := documents.NewService(repo, pdfStub{}, storage, documents.Options{}, logger.Discard()).
		WithClock(func() time.Time { return testNow })

	h := NewHandlers(Deps{
		CRM:       svc,
		Templates: notify.NewTemplates(""),
		Mailer:    mailer,
		Invoices:  docs,
		Dispatch:  NewDispatcher(enq, DispatcherOptions{}),
		Log:       logger.Discard(),
		Clock:     func() time.Time { return testNow },
	})
	return &harness{repo: repo, audit: auditRepo, enq: enq, mailer: mailer, h: h, storage: storage}
}

func (hs *harness) customer(t *testing.T, c crm.Customer) crm.Customer {
	t.Helper()
	out, err := hs.repo.CreateCustomer(context.Background(), c)
	require.NoError(t, err)
	return out
}

func (hs *harness) interaction(t *testing.T, customerID *int64, content string, at time.Time) crm.Interaction {
	t.Helper()
	in, err := hs.repo.CreateInteraction(context.Background(), crm.Interaction{
		CustomerID: customerID,
		Channel:    crm.ChannelPhone,
		Content:    content,
		Timestamp:  at,
	}, nil)
	require.NoError(t, err)
	return in
}

func decode[T any](t *testing.T, e Enqueued) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(e.Payload, &v))
	return v
}

func TestScoreLead_UpdatesTierAndAudits(t *testing.T) {
	hs := newHarness(t)
	c := hs.customer(t, crm.Customer{FirstName: "Asha", Phone: "+16502530000"})

	res, err := hs.h.ScoreLead(context.Background(), ScoreLeadPayload{CustomerID: c.ID, Text: "I want to buy now, the Cullinan please"})
	require.NoError(t, err)
	assert.Equal(t, crm.TierProspect, res.PreviousStatus)
	assert.Equal(t, crm.TierHot, res.NewStatus)

	got, _ := hs.repo.GetCustomer(context.Background(), c.ID)
	assert.Equal(t, crm.TierHot, got.Tier)

	changes := hs.audit.Changes()
	require.Len(t, changes, 1)
	assert.Equal(t, audit.SourceScoring, changes[0].Source)
	assert.Equal(t, string(crm.TierHot), changes[0].New)
}

func TestScoreLead_MissingCustomerRetriesWithNotFoundDelay(t *testing.T) {
	hs := newHarness(t)

	_, err := hs.h.ScoreLead(context.Background(), ScoreLeadPayload{CustomerID: 404, Text: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFoundYet)
	assert.ErrorIs(t, err, crm.ErrNotFound)
	assert.NotErrorIs(t, classify(err), asynq.SkipRetry)

	task, _ := NewScoreLeadTask(ScoreLeadPayload{CustomerID: 404})
	assert.Equal(t, 5*time.Second, RetryDelay(2, err, task))
}

func TestAnalyzeInteraction_WritesOnceAndSchedulesFollowups(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	c := hs.customer(t, crm.Customer{FirstName: "Asha", Email: "asha@example.com", Phone: "+16502530000"})
	content := "I would love to book a test drive. What is the price of the Cullinan?"
	in := hs.interaction(t, &c.ID, content, testNow)

	res, err := hs.h.AnalyzeInteraction(ctx, AnalyzeInteractionPayload{InteractionID: in.ID})
	require.NoError(t, err)
	assert.Equal(t, in.ID, res.InteractionID)
	assert.Equal(t, string(analysis.SentimentOf(content)), res.Sentiment)
	assert.Contains(t, res.Intents, analysis.IntentTestDrive)
	assert.Contains(t, res.Intents, analysis.IntentPricing)
	assert.Equal(t, "I would love to book a test drive.", res.Summary)

	stored, _ := hs.repo.GetInteraction(ctx, in.ID)
	require.True(t, stored.Analyzed())
	require.NotNil(t, stored.LeadScoreImpact)
	assert.Equal(t, analysis.EngagementScore(content), *stored.LeadScoreImpact)
	assert.Equal(t, "Test drive interest expressed", stored.Outcome)

	followups := hs.enq.OfType(TypeScheduleFollowup)
	require.Len(t, followups, 2)
	assert.Equal(t, FollowupTestDriveConfirmation, decode[ScheduleFollowupPayload](t, followups[0]).FollowupType)
	assert.Equal(t, FollowupSendPricing, decode[ScheduleFollowupPayload](t, followups[1]).FollowupType)

	again, err := hs.h.AnalyzeInteraction(ctx, AnalyzeInteractionPayload{InteractionID: in.ID})
	require.NoError(t, err)
	assert.Equal(t, res, again)
	assert.Len(t, hs.enq.OfType(TypeScheduleFollowup), 2, "second run must not re-enqueue")
}

func TestAnalyzeInteraction_EdgeCases(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()

	empty := hs.interaction(t, nil, "", testNow)
	res, err := hs.h.AnalyzeInteraction(ctx, AnalyzeInteractionPayload{InteractionID: empty.ID})
	require.NoError(t, err)
	assert.Equal(t, "No content available", res.Message)

	_, err = hs.h.AnalyzeInteraction(ctx, AnalyzeInteractionPayload{InteractionID: 999})
	assert.ErrorIs(t, err, ErrNotFoundYet)

	anonymous := hs.interaction(t, nil, "Can I test drive it?", testNow)
	_, err = hs.h.AnalyzeInteraction(ctx, AnalyzeInteractionPayload{InteractionID: anonymous.ID})
	require.NoError(t, err)
	assert.Empty(t, hs.enq.Tasks(), "no follow-ups without a customer")
}

func TestAnalyzeInteraction_TruncatesSummaryInResult(t *testing.T) {
	hs := newHarness(t)
	long := strings.Repeat("a", 150) + ". rest"
	in := hs.interaction(t, nil, long, testNow)

	res, err := hs.h.AnalyzeInteraction(context.Background(), AnalyzeInteractionPayload{InteractionID: in.ID})
	require.NoError(t, err)
	assert.Len(t, []rune(res.Summary), 100)
}

func TestScheduleFollowup_EnqueuesDelayedEmail(t *testing.T) {
	hs := newHarness(t)
	c := hs.customer(t, crm.Customer{FirstName: "Asha", Email: "asha@example.com"})

	res, err := hs.h.ScheduleFollowup(context.Background(), ScheduleFollowupPayload{CustomerID: c.ID, FollowupType: FollowupTestDriveConfirmation})
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.ScheduledInHours)
	assert.Empty(t, res.Skipped)

	emails := hs.enq.OfType(TypeSendFollowupEmail)
	require.Len(t, emails, 1)
	assert.Equal(t, 2*time.Hour, emails[0].Delay)
	assert.Equal(t, "default", emails[0].Queue)
	p := decode[SendFollowupEmailPayload](t, emails[0])
	assert.Equal(t, SendFollowupEmailPayload{
		Recipient:  "asha@example.com",
		Subject:    "Schedule Your Test Drive",
		Template:   notify.TemplateTestDriveFollowup,
		CustomerID: c.ID,
	}, p)
}

func TestScheduleFollowup_NoOps(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	noEmail := hs.customer(t, crm.Customer{FirstName: "Ravi"})
	withEmail := hs.customer(t, crm.Customer{FirstName: "Asha", Email: "asha@example.com"})

	cases := []struct {
		name    string
		payload ScheduleFollowupPayload
		skipped string
	}{
		{"unknown type", ScheduleFollowupPayload{CustomerID: withEmail.ID, FollowupType: "birthday"}, "unknown_followup_type"},
		{"missing customer", ScheduleFollowupPayload{CustomerID: 404, FollowupType: FollowupSendPricing}, "customer_not_found"},
		{"no email", ScheduleFollowupPayload{CustomerID: noEmail.ID, FollowupType: FollowupSendPricing}, "no_email"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := hs.h.ScheduleFollowup(ctx, tc.payload)
			require.NoError(t, err)
			assert.Equal(t, tc.skipped, res.Skipped)
		})
	}
	assert.Empty(t, hs.enq.Tasks())
}

func TestSendFollowupEmail_RendersTemplate(t *testing.T) {
	hs := newHarness(t)
	c := hs.customer(t, crm.Customer{FirstName: "Asha", Email: "asha@example.com"})

	_, err := hs.h.SendFollowupEmail(context.Background(), SendFollowupEmailPayload{
		Recipient:  c.Email,
		Subject:    "Pricing Information You Requested",
		Template:   notify.TemplatePricingInfo,
		CustomerID: c.ID,
	})
	require.NoError(t, err)

	sent := hs.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "asha@example.com", sent[0].To)
	assert.True(t, strings.HasPrefix(sent[0].Body, "Dear Asha,"))
	assert.Contains(t, sent[0].Body, "pricing information")
}

func TestSendFollowupEmail_MailerFailurePropagates(t *testing.T) {
	hs := newHarness(t)
	hs.mailer.Err = errors.New("smtp down")

	_, err := hs.h.SendFollowupEmail(context.Background(), SendFollowupEmailPayload{
		Recipient: "x@example.com",
		Subject:   "s",
		Template:  notify.TemplateNurtureCampaign,
	})
	require.Error(t, err)
	assert.NotErrorIs(t, classify(err), asynq.SkipRetry)
}

func TestGenerateInvoice_StoresDocumentAndQueuesEmail(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	c := hs.customer(t, crm.Customer{FirstName: "Asha", Email: "asha@example.com"})
	v, err := hs.repo.CreateVehicle(ctx, crm.Vehicle{Brand: "Rolls-Royce", ModelName: "Cullinan", BasePriceMinor: 100_000_00})
	require.NoError(t, err)

	res, err := hs.h.GenerateInvoice(ctx, GenerateInvoicePayload{CustomerID: c.ID, VehicleID: v.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(118_000_00), res.TotalMinor)
	assert.Equal(t, documents.InvoiceNumber(testNow, c.ID), res.InvoiceNumber)
	assert.NotEmpty(t, res.EmailTaskID)

	docs, _ := hs.repo.ListDocuments(ctx, c.ID)
	require.Len(t, docs, 1)
	assert.Equal(t, res.FilePath, docs[0].FilePath)

	emails := hs.enq.OfType(TypeSendInvoiceEmail)
	require.Len(t, emails, 1)
	p := decode[SendInvoiceEmailPayload](t, emails[0])
	assert.Equal(t, "asha@example.com", p.Recipient)
	assert.Equal(t, res.FilePath, p.DocumentPath)
}

func TestGenerateInvoice_BusinessErrorsAreTerminal(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	noEmail := hs.customer(t, crm.Customer{FirstName: "Ravi"})
	v, _ := hs.repo.CreateVehicle(ctx, crm.Vehicle{Brand: "Bentley", ModelName: "Continental", BasePriceMinor: 1000})

	_, err := hs.h.GenerateInvoice(ctx, GenerateInvoicePayload{CustomerID: noEmail.ID, VehicleID: v.ID})
	assert.ErrorIs(t, err, documents.ErrCustomerEmailMissing)
	assert.ErrorIs(t, classify(err), asynq.SkipRetry)

	_, err = hs.h.GenerateInvoice(ctx, GenerateInvoicePayload{CustomerID: noEmail.ID, VehicleID: 404})
	assert.ErrorIs(t, classify(err), asynq.SkipRetry)

	docs, _ := hs.repo.ListDocuments(ctx, noEmail.ID)
	assert.Empty(t, docs)
	assert.Empty(t, hs.enq.Tasks())
}

func TestSendInvoiceEmail_AttachesStoredPDF(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()
	loc, err := hs.storage.Put(ctx, "invoices/INV-1.pdf", []byte("%PDF-1"), "application/pdf")
	require.NoError(t, err)

	res, err := hs.h.SendInvoiceEmail(ctx, SendInvoiceEmailPayload{Recipient: "asha@example.com", DocumentPath: loc})
	require.NoError(t, err)
	assert.True(t, res.Attached)

	sent := hs.mailer.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Your Invoice from Luxury Auto Group", sent[0].Subject)
	require.Len(t, sent[0].Attachments, 1)
	assert.Equal(t, "INV-1.pdf", sent[0].Attachments[0].FileName)
	assert.Equal(t, []byte("%PDF-1"), sent[0].Attachments[0].Content)
}

func TestSendInvoiceEmail_MissingFileStillSends(t *testing.T) {
	hs := newHarness(t)
	missing := hs.storage.Dir + string(os.PathSeparator) + "gone.pdf"

	res, err := hs.h.SendInvoiceEmail(context.Background(), SendInvoiceEmailPayload{Recipient: "asha@example.com", DocumentPath: missing})
	require.NoError(t, err)
	assert.False(t, res.Attached)
	require.Len(t, hs.mailer.Sent(), 1)
	assert.Empty(t, hs.mailer.Sent()[0].Attachments)
}

func TestDailyNurture_SelectsQuietWarmLeadsOncePerDay(t *testing.T) {
	hs := newHarness(t)
	ctx := context.Background()

	quiet := hs.customer(t, crm.Customer{FirstName: "Q", Email: "q@example.com", Tier: crm.TierWarm})
	recent := hs.customer(t, crm.Customer{FirstName: "R", Email: "r@example.com", Tier: crm.TierWarm})
	noEmail := hs.customer(t, crm.Customer{FirstName: "N", Tier: crm.TierWarm})
	hs.customer(t, crm.Customer{FirstName: "Z", Email: "z@example.com", Tier: crm.TierWarm})
	hot := hs.customer(t, crm.Customer{FirstName: "H", Email: "h@example.com", Tier: crm.TierHot})

	hs.interaction(t, &quiet.ID, "maybe later", testNow.Add(-5*24*time.Hour))
	hs.interaction(t, &recent.ID, "interested", testNow.Add(-24*time.Hour))
	hs.interaction(t, &noEmail.ID, "interested", testNow.Add(-10*24*time.Hour))
	hs.interaction(t, &hot.ID, "buy now", testNow.Add(-10*24*time.Hour))

	res, err := hs.h.DailyNurture(ctx, DailyNurturePayload{})
	require.NoError(t, err)
	assert.Equal(t, NurtureResult{TotalWarmLeads: 4, Nurtured: 1}, res)

	scheduled := hs.enq.OfType(TypeScheduleFollowup)
	require.Len(t, scheduled, 1)
	assert.Equal(t, "nurture_warm_lead:1:20260310", scheduled[0].ID)
	assert.Equal(t, ScheduleFollowupPayload{CustomerID: quiet.ID, FollowupType: FollowupNurtureWarmLead},
		decode[ScheduleFollowupPayload](t, scheduled[0]))

	again, err := hs.h.DailyNurture(ctx, DailyNurturePayload{})
	require.NoError(t, err)
	assert.Equal(t, NurtureResult{TotalWarmLeads: 4, Nurtured: 0}, again, "a same-day re-run queues nothing new")
	assert.Len(t, hs.enq.OfType(TypeScheduleFollowup), 1)
}

func TestRegister_ClassifiesErrors(t *testing.T) {
	hs := newHarness(t)
	mux := asynq.NewServeMux()
	hs.h.Register(mux)
	ctx := context.Background()

	err := mux.ProcessTask(ctx, asynq.NewTask(TypeScoreLead, []byte("{not json")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
	assert.ErrorIs(t, err, ErrBadPayload)

	task, _ := NewScoreLeadTask(ScoreLeadPayload{CustomerID: 77, Text: "hi"})
	err = mux.ProcessTask(ctx, task)
	assert.ErrorIs(t, err, ErrNotFoundYet)
	assert.NotErrorIs(t, err, asynq.SkipRetry)

	nurture, _ := NewDailyNurtureTask()
	assert.NoError(t, mux.ProcessTask(ctx, nurture))
	assert.NoError(t, mux.ProcessTask(ctx, asynq.NewTask(TypeDailyNurture, nil)))
}

func TestAnalyzeInteraction_RetriesUntilRowIsVisible(t *testing.T) {
	hs := newHarness(t)
	mux := asynq.NewServeMux()
	hs.h.Register(mux)
	ctx := context.Background()
	c := hs.customer(t, crm.Customer{FirstName: "Asha", Email: "asha@example.com", Phone: "+16502530000"})

	// The job lands before the interaction row is committed.
	task, err := NewAnalyzeInteractionTask(AnalyzeInteractionPayload{InteractionID: 1})
	require.NoError(t, err)
	err = mux.ProcessTask(ctx, task)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFoundYet)
	assert.NotErrorIs(t, err, asynq.SkipRetry, "not-found must stay retryable")
	assert.Equal(t, 5*time.Second, RetryDelay(1, err, task))
	assert.Empty(t, hs.enq.Tasks())

	content := "Can I book a test drive this weekend?"
	in := hs.interaction(t, &c.ID, content, testNow)
	require.Equal(t, int64(1), in.ID)

	require.NoError(t, mux.ProcessTask(ctx, task))
	stored, err := hs.repo.GetInteraction(ctx, in.ID)
	require.NoError(t, err)
	require.True(t, stored.Analyzed())
	assert.Equal(t, "Test drive interest expressed", stored.Outcome)
	assert.Equal(t, string(analysis.SentimentOf(content)), stored.Sentiment)
	followups := hs.enq.OfType(TypeScheduleFollowup)
	require.Len(t, followups, 1)
	assert.Equal(t, FollowupTestDriveConfirmation, decode[ScheduleFollowupPayload](t, followups[0]).FollowupType)

	// A redelivery after success keeps the first analysis and queues nothing.
	require.NoError(t, mux.ProcessTask(ctx, task))
	again, _ := hs.repo.GetInteraction(ctx, in.ID)
	assert.Equal(t, stored, again)
	assert.Len(t, hs.enq.OfType(TypeScheduleFollowup), 1)
}
