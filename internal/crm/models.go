package crm

import (
	"encoding/json"
	"time"
)

// Tier is the coarse lead classification driving follow-up cadence. It is the
// only externally visible output of lead scoring.
type Tier string

const (
	TierHot      Tier = "Hot Lead"
	TierWarm     Tier = "Warm Lead"
	TierProspect Tier = "Prospect"
	TierCold     Tier = "Cold Lead"
)

func (t Tier) Valid() bool {
	switch t {
	case TierHot, TierWarm, TierProspect, TierCold:
		return true
	default:
		return false
	}
}

// Customer is identified by its phone number. Optional text columns are NULL in
// storage and "" here.
type Customer struct {
	ID        int64     `json:"customer_id" db:"customer_id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name,omitempty" db:"last_name"`
	Phone     string    `json:"phone_number,omitempty" db:"phone_number"`
	Email     string    `json:"email,omitempty" db:"email"`
	Address   string    `json:"address,omitempty" db:"address"`
	Tier      Tier      `json:"customer_type" db:"customer_type"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Channel string

const (
	ChannelPhone    Channel = "Phone"
	ChannelEmail    Channel = "Email"
	ChannelWhatsApp Channel = "WhatsApp"
	ChannelInPerson Channel = "In-Person"
)

func (c Channel) Valid() bool {
	switch c {
	case ChannelPhone, ChannelEmail, ChannelWhatsApp, ChannelInPerson:
		return true
	default:
		return false
	}
}

// Interaction is one customer touchpoint. Summary, Outcome, Sentiment and
// LeadScoreImpact are filled exactly once by analysis; an empty Sentiment means
// the row has not been analyzed yet.
type Interaction struct {
	ID         int64  `json:"interaction_id" db:"interaction_id"`
	CustomerID *int64 `json:"customer_id,omitempty" db:"customer_id"`

	Channel Channel `json:"channel" db:"channel"`
	Content string  `json:"content,omitempty" db:"content"`

	Summary         string `json:"summary,omitempty" db:"summary"`
	Outcome         string `json:"outcome,omitempty" db:"outcome"`
	Sentiment       string `json:"sentiment,omitempty" db:"sentiment"`
	LeadScoreImpact *int   `json:"lead_score_impact,omitempty" db:"lead_score_impact"`

	Timestamp time.Time `json:"interaction_timestamp" db:"interaction_timestamp"`
}

func (i Interaction) Analyzed() bool { return i.Sentiment != "" }

// Analysis is the write-once result of interaction analysis.
type Analysis struct {
	Summary         string
	Outcome         string
	Sentiment       string
	LeadScoreImpact int
}

// Vehicle prices are kept in minor units (paise) to avoid float drift.
type Vehicle struct {
	ID                   int64           `json:"vehicle_id" db:"vehicle_id"`
	ModelName            string          `json:"model_name" db:"model_name"`
	Brand                string          `json:"brand" db:"brand"`
	BasePriceMinor       int64           `json:"base_price_minor" db:"base_price"`
	ConfigurationDetails json.RawMessage `json:"configuration_details,omitempty" db:"configuration_details"`
}

type DocumentType string

const (
	DocumentInvoice DocumentType = "Invoice"
	DocumentQuote   DocumentType = "Quote"
)

// Document records a generated artifact. FilePath is unique and rows are never
// mutated.
type Document struct {
	ID         int64        `json:"document_id" db:"document_id"`
	CustomerID int64        `json:"customer_id" db:"customer_id"`
	Type       DocumentType `json:"document_type" db:"document_type"`
	FilePath   string       `json:"file_path" db:"file_path"`
	CreatedAt  time.Time    `json:"created_at" db:"created_at"`
}

// LeadContact is a customer together with its most recent interaction, used by
// the nurture sweep and the lead pipeline.
type LeadContact struct {
	Customer          Customer   `json:"customer"`
	LastInteractionAt *time.Time `json:"last_interaction_at,omitempty"`
	LastContent       string     `json:"last_content,omitempty"`
}

// TimelineEntry is one item of a customer's activity history: either an
// interaction or a generated document.
type TimelineEntry struct {
	Kind      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	Channel   Channel `json:"channel,omitempty"`
	Summary   string  `json:"summary,omitempty"`
	Outcome   string  `json:"outcome,omitempty"`
	Sentiment string  `json:"sentiment,omitempty"`

	DocumentType DocumentType `json:"document_type,omitempty"`
	FilePath     string       `json:"file_path,omitempty"`
}

type Timeline struct {
	CustomerID   int64           `json:"customer_id"`
	CustomerName string          `json:"customer_name"`
	CustomerType Tier            `json:"customer_type"`
	Entries      []TimelineEntry `json:"timeline"`
}

// CustomerFilter narrows ListCustomers. Zero values mean "no filter".
type CustomerFilter struct {
	Tier   Tier
	Search string
	Limit  int
	Offset int
}

// CustomerPatch holds optional field updates; nil leaves a field untouched.
type CustomerPatch struct {
	FirstName *string
	LastName  *string
	Email     *string
	Address   *string
	Phone     *string
}
