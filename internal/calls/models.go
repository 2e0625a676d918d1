package calls

import "strings"

// CallLog is the 1:1 detail record of a Phone interaction.
//
// It is written in the same transaction as its parent interaction and is
// removed with it (ON DELETE CASCADE). CallSID is the voice platform's call
// identifier; it is not unique because a platform may replay end-of-call
// reports.
type CallLog struct {
	ID            int64 `json:"call_log_id" db:"call_log_id"`
	InteractionID int64 `json:"interaction_id" db:"interaction_id"`

	CallSID string `json:"call_sid,omitempty" db:"call_sid"`

	// DurationSeconds is rounded down from the platform-reported duration.
	DurationSeconds int `json:"duration_seconds" db:"duration_seconds"`

	RecordingPath string `json:"recording_path,omitempty" db:"recording_path"`

	Status    CallStatus    `json:"call_status" db:"call_status"`
	Direction CallDirection `json:"call_direction" db:"call_direction"`
}

type CallStatus string

const (
	CallStatusCompleted CallStatus = "completed"
	CallStatusFailed    CallStatus = "failed"
	CallStatusNoAnswer  CallStatus = "no_answer"
	CallStatusBusy      CallStatus = "busy"
	CallStatusCanceled  CallStatus = "canceled"
)

type CallDirection string

const (
	CallDirectionInbound  CallDirection = "inbound"
	CallDirectionOutbound CallDirection = "outbound"
)

// StatusFromPlatform maps a voice platform's free-form status or ended reason
// onto CallStatus. Anything unrecognized is treated as completed, since the
// platform only reports end-of-call for calls that connected.
func StatusFromPlatform(s string) CallStatus {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "":
		return CallStatusCompleted
	case strings.Contains(v, "no-answer"), strings.Contains(v, "no_answer"), strings.Contains(v, "did-not-answer"):
		return CallStatusNoAnswer
	case strings.Contains(v, "busy"):
		return CallStatusBusy
	case strings.Contains(v, "cancel"):
		return CallStatusCanceled
	case strings.Contains(v, "fail"), strings.Contains(v, "error"):
		return CallStatusFailed
	default:
		return CallStatusCompleted
	}
}

// DirectionFromPlatform maps "inboundPhoneCall"/"outboundPhoneCall" style
// call types. Unknown values default to inbound.
func DirectionFromPlatform(callType string) CallDirection {
	if strings.Contains(strings.ToLower(callType), "outbound") {
		return CallDirectionOutbound
	}
	return CallDirectionInbound
}

// DurationSeconds converts a fractional platform duration into whole seconds.
func DurationSeconds(d float64) int {
	if d <= 0 {
		return 0
	}
	return int(d)
}
