package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"time"

	"dealership-platform/internal/analysis"
	"dealership-platform/internal/audit"
	"dealership-platform/internal/crm"
	"dealership-platform/internal/documents"
	"dealership-platform/internal/metrics"
	"dealership-platform/internal/notify"
	"dealership-platform/pkg/logger"

	"github.com/hibiken/asynq"
)

// NurtureAfter is how long a warm lead may go without contact before the
// daily sweep schedules a nurture email.
const NurtureAfter = 72 * time.Hour

type FollowupSpec struct {
	Delay    time.Duration
	Subject  string
	Template string
}

const (
	FollowupTestDriveConfirmation = "test_drive_confirmation"
	FollowupSendPricing           = "send_pricing"
	FollowupPostCallThankYou      = "post_call_thankyou"
	FollowupNurtureWarmLead       = "nurture_warm_lead"
)

var followups = map[string]FollowupSpec{
	FollowupTestDriveConfirmation: {2 * time.Hour, "Schedule Your Test Drive", notify.TemplateTestDriveFollowup},
	FollowupSendPricing:           {time.Hour, "Pricing Information You Requested", notify.TemplatePricingInfo},
	FollowupPostCallThankYou:      {30 * time.Minute, "Thank You for Your Interest", notify.TemplatePostCallThankYou},
	FollowupNurtureWarmLead:       {24 * time.Hour, "Exclusive Luxury Vehicle Updates", notify.TemplateNurtureCampaign},
}

func FollowupFor(followupType string) (FollowupSpec, bool) {
	f, ok := followups[followupType]
	return f, ok
}

// InvoiceGenerator is the slice of documents.Service the pipeline needs.
type InvoiceGenerator interface {
	GenerateInvoice(ctx context.Context, customerID, vehicleID int64) (documents.GeneratedInvoice, error)
	Open(ctx context.Context, locator string) ([]byte, error)
}

type Deps struct {
	CRM       *crm.Service
	Templates notify.Templates
	Mailer    notify.Mailer
	Invoices  InvoiceGenerator
	Dispatch  *Dispatcher
	Metrics   *metrics.PipelineMetrics
	Log       *slog.Logger
	Clock     func() time.Time
}

// Handlers implements every job type. Methods are callable directly in tests;
// Register adapts them to an asynq mux.
type Handlers struct {
	crm       *crm.Service
	templates notify.Templates
	mailer    notify.Mailer
	invoices  InvoiceGenerator
	dispatch  *Dispatcher
	metrics   *metrics.PipelineMetrics
	log       *slog.Logger
	clock     func() time.Time
}

func NewHandlers(d Deps) *Handlers {
	if d.Log == nil {
		d.Log = slog.Default()
	}
	if d.Clock == nil {
		d.Clock = time.Now
	}
	return &Handlers{
		crm:       d.CRM,
		templates: d.Templates,
		mailer:    d.Mailer,
		invoices:  d.Invoices,
		dispatch:  d.Dispatch,
		metrics:   d.Metrics,
		log:       d.Log,
		clock:     d.Clock,
	}
}

func (h *Handlers) logger(ctx context.Context) *slog.Logger {
	return logger.FromOr(ctx, h.log)
}

type ScoreLeadResult struct {
	CustomerID     int64    `json:"customer_id"`
	PreviousStatus crm.Tier `json:"previous_status"`
	NewStatus      crm.Tier `json:"new_status"`
}

func (h *Handlers) ScoreLead(ctx context.Context, p ScoreLeadPayload) (ScoreLeadResult, error) {
	tier := analysis.LeadTierFromText(p.Text)
	prev, err := h.crm.SetTier(ctx, p.CustomerID, tier, audit.SourceScoring, "", "")
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			return ScoreLeadResult{}, notFoundYet("customer", p.CustomerID)
		}
		return ScoreLeadResult{}, err
	}
	h.metrics.ObserveTierChange(string(tier), string(audit.SourceScoring))
	h.logger(ctx).Info("lead scored", "customer_id", p.CustomerID, "previous_status", prev, "new_status", tier)
	return ScoreLeadResult{CustomerID: p.CustomerID, PreviousStatus: prev, NewStatus: tier}, nil
}

type AnalyzeResult struct {
	InteractionID int64             `json:"interaction_id,omitempty"`
	Sentiment     string            `json:"sentiment,omitempty"`
	Intents       []analysis.Intent `json:"intents,omitempty"`
	Summary       string            `json:"summary,omitempty"`
	Message       string            `json:"message,omitempty"`
}

func (h *Handlers) AnalyzeInteraction(ctx context.Context, p AnalyzeInteractionPayload) (AnalyzeResult, error) {
	store := h.crm.Store()
	in, err := store.GetInteraction(ctx, p.InteractionID)
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			return AnalyzeResult{}, notFoundYet("interaction", p.InteractionID)
		}
		return AnalyzeResult{}, err
	}
	if in.Content == "" {
		return AnalyzeResult{Message: analysis.Summarize("")}, nil
	}

	intents := analysis.Intents(in.Content)
	if intents == nil {
		intents = []analysis.Intent{}
	}
	if in.Analyzed() {
		return analyzeResult(in, intents), nil
	}

	impact := analysis.EngagementScore(in.Content)
	a := crm.Analysis{
		Summary:         analysis.Summarize(in.Content),
		Outcome:         analysis.OutcomeFromIntents(intents),
		Sentiment:       string(analysis.SentimentOf(in.Content)),
		LeadScoreImpact: impact,
	}
	applied, err := store.RecordAnalysis(ctx, in.ID, a)
	if err != nil {
		return AnalyzeResult{}, err
	}
	if !applied {
		// Another run got there first; report what it stored.
		stored, err := store.GetInteraction(ctx, in.ID)
		if err != nil {
			return AnalyzeResult{}, err
		}
		return analyzeResult(stored, intents), nil
	}
	in.Summary, in.Outcome, in.Sentiment, in.LeadScoreImpact = a.Summary, a.Outcome, a.Sentiment, &impact

	if in.CustomerID != nil {
		if analysis.HasIntent(intents, analysis.IntentTestDrive) {
			h.followup(ctx, *in.CustomerID, FollowupTestDriveConfirmation)
		}
		if analysis.HasIntent(intents, analysis.IntentPricing) {
			h.followup(ctx, *in.CustomerID, FollowupSendPricing)
		}
	}
	h.logger(ctx).Info("interaction analyzed", "interaction_id", in.ID, "sentiment", in.Sentiment, "intents", intents)
	return analyzeResult(in, intents), nil
}

// followup enqueues a schedule_followup job. The analysis is already stored,
// so a failure here is logged rather than retried.
func (h *Handlers) followup(ctx context.Context, customerID int64, followupType string) {
	if _, err := h.dispatch.ScheduleFollowup(ctx, customerID, followupType); err != nil {
		h.logger(ctx).Error("follow-up enqueue failed", "customer_id", customerID, "followup_type", followupType, "err", err)
	}
}

func analyzeResult(in crm.Interaction, intents []analysis.Intent) AnalyzeResult {
	return AnalyzeResult{
		InteractionID: in.ID,
		Sentiment:     in.Sentiment,
		Intents:       intents,
		Summary:       truncateRunes(in.Summary, 100),
	}
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

type ScheduleFollowupResult struct {
	CustomerID       int64   `json:"customer_id"`
	FollowupType     string  `json:"followup_type"`
	ScheduledInHours float64 `json:"scheduled_in_hours,omitempty"`
	TaskID           string  `json:"task_id,omitempty"`
	Skipped          string  `json:"skipped,omitempty"`
}

func (h *Handlers) ScheduleFollowup(ctx context.Context, p ScheduleFollowupPayload) (ScheduleFollowupResult, error) {
	res := ScheduleFollowupResult{CustomerID: p.CustomerID, FollowupType: p.FollowupType}
	log := h.logger(ctx).With("customer_id", p.CustomerID, "followup_type", p.FollowupType)

	plan, ok := FollowupFor(p.FollowupType)
	if !ok {
		log.Warn("unknown follow-up type")
		res.Skipped = "unknown_followup_type"
		return res, nil
	}
	customer, err := h.crm.Store().GetCustomer(ctx, p.CustomerID)
	if err != nil {
		if errors.Is(err, crm.ErrNotFound) {
			log.Warn("follow-up for missing customer")
			res.Skipped = "customer_not_found"
			return res, nil
		}
		return res, err
	}
	if customer.Email == "" {
		log.Info("follow-up skipped, no email on file")
		res.Skipped = "no_email"
		return res, nil
	}

	id, err := h.dispatch.SendFollowupEmail(ctx, SendFollowupEmailPayload{
		Recipient:  customer.Email,
		Subject:    plan.Subject,
		Template:   plan.Template,
		CustomerID: customer.ID,
	}, plan.Delay)
	if err != nil {
		return res, err
	}
	res.ScheduledInHours = plan.Delay.Hours()
	res.TaskID = id
	log.Info("follow-up scheduled", "delay", plan.Delay.String(), "task_id", id)
	return res, nil
}

type EmailResult struct {
	Recipient string `json:"recipient"`
	Subject   string `json:"subject"`
	Attached  bool   `json:"attached,omitempty"`
}

func (h *Handlers) SendFollowupEmail(ctx context.Context, p SendFollowupEmailPayload) (EmailResult, error) {
	firstName := ""
	if p.CustomerID != 0 {
		c, err := h.crm.Store().GetCustomer(ctx, p.CustomerID)
		switch {
		case err == nil:
			firstName = c.FirstName
		case !errors.Is(err, crm.ErrNotFound):
			return EmailResult{}, err
		}
	}
	body, err := h.templates.Render(p.Template, firstName)
	if err != nil {
		return EmailResult{}, err
	}
	if err := h.mailer.Send(ctx, notify.Message{To: p.Recipient, Subject: p.Subject, Body: body}); err != nil {
		return EmailResult{}, fmt.Errorf("send follow-up to %s: %w", p.Recipient, err)
	}
	h.logger(ctx).Info("follow-up email sent", "recipient", p.Recipient, "template", p.Template)
	return EmailResult{Recipient: p.Recipient, Subject: p.Subject}, nil
}

type InvoiceResult struct {
	CustomerID    int64  `json:"customer_id"`
	DocumentID    int64  `json:"document_id"`
	FilePath      string `json:"file_path"`
	InvoiceNumber string `json:"invoice_number"`
	TotalMinor    int64  `json:"total_minor"`
	EmailTaskID   string `json:"email_task_id,omitempty"`
}

func (h *Handlers) GenerateInvoice(ctx context.Context, p GenerateInvoicePayload) (InvoiceResult, error) {
	inv, err := h.invoices.GenerateInvoice(ctx, p.CustomerID, p.VehicleID)
	if err != nil {
		return InvoiceResult{}, err
	}
	res := InvoiceResult{
		CustomerID:    p.CustomerID,
		DocumentID:    inv.Document.ID,
		FilePath:      inv.Document.FilePath,
		InvoiceNumber: inv.Number,
		TotalMinor:    inv.Totals.TotalMinor,
	}
	// The document row exists now; retrying would issue a second invoice.
	id, err := h.dispatch.SendInvoiceEmail(ctx, SendInvoiceEmailPayload{
		Recipient:    inv.Email,
		DocumentPath: inv.Document.FilePath,
		CustomerID:   p.CustomerID,
	})
	if err != nil {
		h.logger(ctx).Error("invoice email enqueue failed", "document_id", inv.Document.ID, "err", err)
		return res, nil
	}
	res.EmailTaskID = id
	return res, nil
}

func (h *Handlers) SendInvoiceEmail(ctx context.Context, p SendInvoiceEmailPayload) (EmailResult, error) {
	subject, body, err := h.templates.Invoice()
	if err != nil {
		return EmailResult{}, err
	}
	msg := notify.Message{To: p.Recipient, Subject: subject, Body: body}

	pdf, err := h.invoices.Open(ctx, p.DocumentPath)
	if err != nil {
		h.logger(ctx).Warn("invoice attachment unavailable, sending without it", "document_path", p.DocumentPath, "err", err)
	} else {
		msg.Attachments = []notify.Attachment{{
			FileName: path.Base(p.DocumentPath),
			Content:  pdf,
			MIMEType: "application/pdf",
		}}
	}

	if err := h.mailer.Send(ctx, msg); err != nil {
		return EmailResult{}, fmt.Errorf("send invoice to %s: %w", p.Recipient, err)
	}
	h.logger(ctx).Info("invoice email sent", "recipient", p.Recipient, "attached", len(msg.Attachments) > 0)
	return EmailResult{Recipient: p.Recipient, Subject: subject, Attached: len(msg.Attachments) > 0}, nil
}

// NurtureResult counts warm leads seen and follow-ups newly queued by this run.
type NurtureResult struct {
	TotalWarmLeads int `json:"total_warm_leads"`
	Nurtured       int `json:"nurtured"`
}

// DailyNurture schedules a nurture email for warm leads that have gone quiet.
// Task ids carry the date so a re-run on the same day enqueues nothing new.
func (h *Handlers) DailyNurture(ctx context.Context, _ DailyNurturePayload) (NurtureResult, error) {
	contacts, err := h.crm.Store().ListLeadContacts(ctx, crm.TierWarm)
	if err != nil {
		return NurtureResult{}, err
	}
	now := h.clock()
	cutoff := now.Add(-NurtureAfter)
	day := now.UTC().Format("20060102")

	res := NurtureResult{TotalWarmLeads: len(contacts)}
	for _, lc := range contacts {
		if lc.Customer.Email == "" || lc.LastInteractionAt == nil || !lc.LastInteractionAt.Before(cutoff) {
			continue
		}
		taskID := fmt.Sprintf("%s:%d:%s", FollowupNurtureWarmLead, lc.Customer.ID, day)
		_, err := h.dispatch.ScheduleFollowup(ctx, lc.Customer.ID, FollowupNurtureWarmLead, asynq.TaskID(taskID))
		switch {
		case errors.Is(err, ErrDuplicateTask):
			continue
		case err != nil:
			h.logger(ctx).Error("nurture enqueue failed", "customer_id", lc.Customer.ID, "err", err)
			continue
		}
		res.Nurtured++
	}
	h.logger(ctx).Info("daily nurture complete", "total_warm_leads", res.TotalWarmLeads, "nurtured", res.Nurtured)
	return res, nil
}

// Register binds every job type on mux.
func (h *Handlers) Register(mux *asynq.ServeMux) {
	mux.Use(h.observe)
	mux.HandleFunc(TypeScoreLead, adapt(ParseScoreLeadPayload, h.ScoreLead))
	mux.HandleFunc(TypeAnalyzeInteraction, adapt(ParseAnalyzeInteractionPayload, h.AnalyzeInteraction))
	mux.HandleFunc(TypeScheduleFollowup, adapt(ParseScheduleFollowupPayload, h.ScheduleFollowup))
	mux.HandleFunc(TypeSendFollowupEmail, adapt(ParseSendFollowupEmailPayload, h.SendFollowupEmail))
	mux.HandleFunc(TypeGenerateInvoice, adapt(ParseGenerateInvoicePayload, h.GenerateInvoice))
	mux.HandleFunc(TypeSendInvoiceEmail, adapt(ParseSendInvoiceEmailPayload, h.SendInvoiceEmail))
	mux.HandleFunc(TypeDailyNurture, adapt(parse[DailyNurturePayload], h.DailyNurture))
}

func adapt[P, R any](decode func(*asynq.Task) (P, error), fn func(context.Context, P) (R, error)) func(context.Context, *asynq.Task) error {
	return func(ctx context.Context, t *asynq.Task) error {
		p, err := decode(t)
		if err != nil {
			return classify(err)
		}
		res, err := fn(ctx, p)
		if err != nil {
			return classify(err)
		}
		writeResult(t, res)
		return nil
	}
}

func writeResult(t *asynq.Task, res any) {
	w := t.ResultWriter()
	if w == nil {
		return
	}
	data, err := json.Marshal(res)
	if err != nil {
		return
	}
	_, _ = w.Write(data)
}

func (h *Handlers) observe(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, t *asynq.Task) error {
		id, _ := asynq.GetTaskID(ctx)
		retry, _ := asynq.GetRetryCount(ctx)
		log := h.log.With("task_id", id, "task_type", t.Type(), "retry", retry)
		ctx = logger.With(ctx, log)

		start := time.Now()
		err := next.ProcessTask(ctx, t)
		h.metrics.ObserveTask(t.Type(), time.Since(start).Seconds(), err)

		switch {
		case err == nil:
			log.Debug("task done", "duration_ms", time.Since(start).Milliseconds())
		case errors.Is(err, asynq.SkipRetry):
			log.Error("task failed permanently", "err", err)
		default:
			log.Warn("task failed, will retry", "err", err)
		}
		return err
	})
}
