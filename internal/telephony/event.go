package telephony

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

var (
	ErrInvalidJSON    = errors.New("telephony: invalid json")
	ErrMissingMessage = errors.New("telephony: payload missing message object")
)

// EventType is the normalized lifecycle event. Vendor type names from every
// integration generation map onto one of these.
type EventType int

const (
	EventUnknown EventType = iota
	EventCallStart
	EventCallEnd
	EventAssistantTurn
)

func (e EventType) String() string {
	switch e {
	case EventCallStart:
		return "call_start"
	case EventCallEnd:
		return "call_end"
	case EventAssistantTurn:
		return "assistant_turn"
	default:
		return "unknown"
	}
}

var eventTypes = map[string]EventType{
	"call-start":          EventCallStart,
	"call-end":            EventCallEnd,
	"end-of-call-report":  EventCallEnd,
	"assistant-request":   EventAssistantTurn,
	"voice-input":         EventAssistantTurn,
	"conversation-update": EventAssistantTurn,
	"chat-completion":     EventAssistantTurn,
	"chat-completions":    EventAssistantTurn,
}

func ParseEventType(raw string) EventType {
	if t, ok := eventTypes[strings.ToLower(strings.TrimSpace(raw))]; ok {
		return t
	}
	return EventUnknown
}

// Message is the inner "message" object of a voice-platform webhook.
type Message struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	Call     *Call     `json:"call,omitempty"`
	Customer *Customer `json:"customer,omitempty"`

	Transcript string    `json:"transcript,omitempty"`
	Analysis   *Artifact `json:"analysis,omitempty"`
	Artifact   *Artifact `json:"artifact,omitempty"`

	// Input carries the caller's latest utterance on voice-input events.
	Input    string        `json:"input,omitempty"`
	Messages []ChatMessage `json:"messages,omitempty"`

	DurationSeconds float64 `json:"durationSeconds,omitempty"`
	Duration        float64 `json:"duration,omitempty"`
	Status          string  `json:"status,omitempty"`
	EndedReason     string  `json:"endedReason,omitempty"`
	RecordingURL    string  `json:"recordingUrl,omitempty"`
}

type Call struct {
	ID       string    `json:"id"`
	Type     string    `json:"type,omitempty"`
	Customer *Customer `json:"customer,omitempty"`
}

type Customer struct {
	Number string `json:"number"`
}

type Artifact struct {
	Transcript   string `json:"transcript,omitempty"`
	RecordingURL string `json:"recordingUrl,omitempty"`
}

type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content,omitempty"`
	// Some generations send "message" instead of "content".
	Message string `json:"message,omitempty"`
}

func (m ChatMessage) Text() string {
	if m.Content != "" {
		return m.Content
	}
	return m.Message
}

func (m Message) Event() EventType { return ParseEventType(m.Type) }

// CallID prefers message.call.id and falls back to message.id.
func (m Message) CallID() string {
	if m.Call != nil && strings.TrimSpace(m.Call.ID) != "" {
		return strings.TrimSpace(m.Call.ID)
	}
	return strings.TrimSpace(m.ID)
}

// CallerNumber looks at message.customer then message.call.customer.
func (m Message) CallerNumber() string {
	if m.Customer != nil && strings.TrimSpace(m.Customer.Number) != "" {
		return strings.TrimSpace(m.Customer.Number)
	}
	if m.Call != nil && m.Call.Customer != nil {
		return strings.TrimSpace(m.Call.Customer.Number)
	}
	return ""
}

func (m Message) DurationValue() float64 {
	if m.DurationSeconds > 0 {
		return m.DurationSeconds
	}
	return m.Duration
}

func (m Message) Recording() string {
	if m.RecordingURL != "" {
		return m.RecordingURL
	}
	if m.Artifact != nil {
		return m.Artifact.RecordingURL
	}
	return ""
}

func (m Message) CallType() string {
	if m.Call != nil {
		return m.Call.Type
	}
	return ""
}

// DecodeEnvelope parses a webhook body. It returns (nil, nil) for an empty
// body, which the platform sends as a keep-alive.
func DecodeEnvelope(body []byte) (*Message, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, nil
	}
	var env struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, ErrInvalidJSON
	}
	raw := bytes.TrimSpace(env.Message)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) || bytes.Equal(raw, []byte("{}")) {
		return nil, ErrMissingMessage
	}
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, ErrMissingMessage
	}
	return &m, nil
}
