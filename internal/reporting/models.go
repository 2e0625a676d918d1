package reporting

import (
	"time"

	"dealership-platform/internal/analysis"
	"dealership-platform/internal/calls"
	"dealership-platform/internal/crm"
	"dealership-platform/internal/leads"
)

// Activity is the raw aggregate the repository returns for one window.
type Activity struct {
	NewCustomers          int
	InteractionsByChannel map[crm.Channel]int
	Calls                 int
	AvgCallSeconds        float64
	Sentiment             map[string]int
	Documents             map[crm.DocumentType]int
}

func (a Activity) TotalInteractions() int {
	n := 0
	for _, c := range a.InteractionsByChannel {
		n += c
	}
	return n
}

type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type DailyTierCount struct {
	Date   string   `json:"date"`
	Status crm.Tier `json:"status"`
	Count  int      `json:"count"`
}

type TrendRows struct {
	Interactions []DailyCount
	NewCustomers []DailyCount
	NewByTier    []DailyTierCount
}

type Dashboard struct {
	PeriodDays   int                `json:"period_days"`
	Customers    CustomerMetrics    `json:"customer_metrics"`
	Interactions InteractionMetrics `json:"interaction_metrics"`
	Calls        CallMetrics        `json:"call_metrics"`
	Sentiment    map[string]int     `json:"sentiment_analysis"`
	Documents    DocumentMetrics    `json:"document_metrics"`
}

type CustomerMetrics struct {
	Total     int    `json:"total_customers"`
	New       int    `json:"new_customers"`
	HotLeads  int    `json:"hot_leads"`
	WarmLeads int    `json:"warm_leads"`
	Prospects int    `json:"prospects"`
	ColdLeads int    `json:"cold_leads"`
	Funnel    Funnel `json:"conversion_funnel"`
}

type Funnel struct {
	HotLeadPercentage  float64 `json:"hot_lead_percentage"`
	WarmLeadPercentage float64 `json:"warm_lead_percentage"`
}

type InteractionMetrics struct {
	Total          int            `json:"total_interactions"`
	ByChannel      map[string]int `json:"interactions_by_channel"`
	AvgPerCustomer float64        `json:"average_interactions_per_customer"`
}

type CallMetrics struct {
	Total      int     `json:"total_calls"`
	AvgSeconds float64 `json:"average_duration_seconds"`
	AvgMinutes float64 `json:"average_duration_minutes"`
}

type DocumentMetrics struct {
	Invoices int `json:"invoices_generated"`
	Quotes   int `json:"quotes_generated"`
	Total    int `json:"total_documents"`
}

type Pipeline struct {
	TotalLeads int            `json:"total_leads"`
	Leads      []leads.Ranked `json:"leads"`
}

type CustomerInsights struct {
	Customer              crm.Customer                  `json:"customer"`
	DaysAsCustomer        int                           `json:"days_as_customer"`
	ConversationInsights  analysis.ConversationInsights `json:"conversation_insights"`
	InteractionSummary    InteractionSummary            `json:"interaction_summary"`
	InteractionHistory    []InteractionEntry            `json:"interaction_history"`
	Documents             []crm.Document                `json:"documents"`
	RecommendedNextAction leads.Decision                `json:"recommended_next_action"`
}

type InteractionSummary struct {
	Total                int           `json:"total_interactions"`
	ChannelsUsed         []crm.Channel `json:"channels_used"`
	LastContact          *time.Time    `json:"last_contact"`
	DaysSinceLastContact *int          `json:"days_since_last_contact"`
}

type InteractionEntry struct {
	crm.Interaction
	CallDetails *calls.CallLog `json:"call_details,omitempty"`
}

type Trends struct {
	PeriodDays        int              `json:"period_days"`
	DailyInteractions []DailyCount     `json:"daily_interactions"`
	DailyNewCustomers []DailyCount     `json:"daily_new_customers"`
	LeadStatusTrends  []DailyTierCount `json:"lead_status_trends"`
}

type AgentHealth struct {
	Status           string            `json:"status"`
	Timestamp        time.Time         `json:"timestamp"`
	ActivityLastHour HourActivity      `json:"activity_last_hour"`
	ProcessingQueue  QueueHealth       `json:"processing_queue"`
	Components       map[string]string `json:"components"`
}

type HourActivity struct {
	CallsHandled       int `json:"calls_handled"`
	TotalInteractions  int `json:"total_interactions"`
	DocumentsGenerated int `json:"documents_generated"`
}

type QueueHealth struct {
	UnprocessedInteractions int    `json:"unprocessed_interactions"`
	Status                  string `json:"status"`
}
