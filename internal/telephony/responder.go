package telephony

import (
	"context"
	"strings"

	"dealership-platform/internal/analysis"
	"dealership-platform/internal/session"
)

// Responder produces the assistant's next line.
type Responder interface {
	Reply(ctx context.Context, history []session.Turn, utterance string) (string, error)
}

const (
	greeting = "Welcome to Luxury Auto Group. How may I assist you with your vehicle search today?"
	fallback = "Thank you. Could you tell me a little more about the vehicle you have in mind?"
)

var intentReplies = map[analysis.Intent]string{
	analysis.IntentPurchaseReady: "Wonderful. I will have a sales specialist prepare the paperwork and contact you shortly to finalize the details.",
	analysis.IntentTestDrive:     "I would be delighted to arrange a private test drive. Which model interests you and what day suits you best?",
	analysis.IntentPricing:       "I can share detailed pricing and financing options. Which model would you like pricing for?",
	analysis.IntentAppointment:   "Of course. Our showroom is open daily from ten to seven. What time would you like to visit?",
	analysis.IntentComparison:    "Happy to help you compare. Which models are you considering?",
	analysis.IntentFeatures:      "Each of our vehicles can be configured extensively. Which features matter most to you?",
	analysis.IntentTradeIn:       "We accept trade-ins. Could you share the make, model and year of your current car?",
	analysis.IntentService:       "Our service team handles maintenance and warranty work. Would you like me to book a service appointment?",
}

// replyOrder ranks intents when a caller mentions several at once.
var replyOrder = []analysis.Intent{
	analysis.IntentPurchaseReady,
	analysis.IntentTestDrive,
	analysis.IntentPricing,
	analysis.IntentAppointment,
	analysis.IntentComparison,
	analysis.IntentFeatures,
	analysis.IntentTradeIn,
	analysis.IntentService,
}

// TemplateResponder answers from fixed lines keyed by detected intent.
type TemplateResponder struct{}

func (TemplateResponder) Reply(_ context.Context, history []session.Turn, utterance string) (string, error) {
	utterance = strings.TrimSpace(utterance)
	if utterance == "" {
		if len(history) == 0 {
			return greeting, nil
		}
		return fallback, nil
	}
	intents := analysis.Intents(utterance)
	for _, want := range replyOrder {
		if analysis.HasIntent(intents, want) {
			return intentReplies[want], nil
		}
	}
	if len(history) == 0 {
		return greeting, nil
	}
	return fallback, nil
}

// ChatResponse mirrors a chat-completion body.
type ChatResponse struct {
	Choices []ChatChoice `json:"choices"`
}

type ChatChoice struct {
	Message ChatMessage `json:"message"`
}

func NewChatResponse(content string) ChatResponse {
	return ChatResponse{Choices: []ChatChoice{{Message: ChatMessage{Role: "assistant", Content: content}}}}
}
