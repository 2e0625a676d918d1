package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

const (
	TypeScoreLead          = "score_lead"
	TypeAnalyzeInteraction = "analyze_interaction"
	TypeScheduleFollowup   = "schedule_followup"
	TypeSendFollowupEmail  = "send_followup_email"
	TypeGenerateInvoice    = "generate_invoice"
	TypeSendInvoiceEmail   = "send_invoice_email"
	TypeDailyNurture       = "daily_nurture"
)

type ScoreLeadPayload struct {
	CustomerID int64  `json:"customer_id"`
	Text       string `json:"text"`
}

type AnalyzeInteractionPayload struct {
	InteractionID int64 `json:"interaction_id"`
}

type ScheduleFollowupPayload struct {
	CustomerID   int64  `json:"customer_id"`
	FollowupType string `json:"followup_type"`
}

type SendFollowupEmailPayload struct {
	Recipient  string `json:"recipient"`
	Subject    string `json:"subject"`
	Template   string `json:"template"`
	CustomerID int64  `json:"customer_id"`
}

type GenerateInvoicePayload struct {
	CustomerID int64 `json:"customer_id"`
	VehicleID  int64 `json:"vehicle_id"`
}

type SendInvoiceEmailPayload struct {
	Recipient    string `json:"recipient"`
	DocumentPath string `json:"document_path"`
	CustomerID   int64  `json:"customer_id,omitempty"`
}

type DailyNurturePayload struct{}

func newTask(typ string, payload any) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("tasks: encode %s payload: %w", typ, err)
	}
	return asynq.NewTask(typ, data), nil
}

func parse[T any](task *asynq.Task) (T, error) {
	var payload T
	if len(task.Payload()) == 0 {
		return payload, nil
	}
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return payload, fmt.Errorf("%w: decode %s payload: %v", ErrBadPayload, task.Type(), err)
	}
	return payload, nil
}

func NewScoreLeadTask(p ScoreLeadPayload) (*asynq.Task, error) { return newTask(TypeScoreLead, p) }

func NewAnalyzeInteractionTask(p AnalyzeInteractionPayload) (*asynq.Task, error) {
	return newTask(TypeAnalyzeInteraction, p)
}

func NewScheduleFollowupTask(p ScheduleFollowupPayload) (*asynq.Task, error) {
	return newTask(TypeScheduleFollowup, p)
}

func NewSendFollowupEmailTask(p SendFollowupEmailPayload) (*asynq.Task, error) {
	return newTask(TypeSendFollowupEmail, p)
}

func NewGenerateInvoiceTask(p GenerateInvoicePayload) (*asynq.Task, error) {
	return newTask(TypeGenerateInvoice, p)
}

func NewSendInvoiceEmailTask(p SendInvoiceEmailPayload) (*asynq.Task, error) {
	return newTask(TypeSendInvoiceEmail, p)
}

func NewDailyNurtureTask() (*asynq.Task, error) { return newTask(TypeDailyNurture, DailyNurturePayload{}) }

func ParseScoreLeadPayload(t *asynq.Task) (ScoreLeadPayload, error) { return parse[ScoreLeadPayload](t) }

func ParseAnalyzeInteractionPayload(t *asynq.Task) (AnalyzeInteractionPayload, error) {
	return parse[AnalyzeInteractionPayload](t)
}

func ParseScheduleFollowupPayload(t *asynq.Task) (ScheduleFollowupPayload, error) {
	return parse[ScheduleFollowupPayload](t)
}

func ParseSendFollowupEmailPayload(t *asynq.Task) (SendFollowupEmailPayload, error) {
	return parse[SendFollowupEmailPayload](t)
}

func ParseGenerateInvoicePayload(t *asynq.Task) (GenerateInvoicePayload, error) {
	return parse[GenerateInvoicePayload](t)
}

func ParseSendInvoiceEmailPayload(t *asynq.Task) (SendInvoiceEmailPayload, error) {
	return parse[SendInvoiceEmailPayload](t)
}
