package telephony

import "strings"

// TranscriptSource pulls a transcript from one location in a message.
type TranscriptSource struct {
	Name    string
	Extract func(Message) string
}

// TranscriptSources are tried in order; the first non-empty result wins.
var TranscriptSources = []TranscriptSource{
	{"message.transcript", func(m Message) string { return m.Transcript }},
	{"message.analysis.transcript", func(m Message) string {
		if m.Analysis == nil {
			return ""
		}
		return m.Analysis.Transcript
	}},
	{"message.artifact.transcript", func(m Message) string {
		if m.Artifact == nil {
			return ""
		}
		return m.Artifact.Transcript
	}},
}

// ExtractTranscript returns the transcript and the name of the source it came
// from. Both are empty when no source has text.
func ExtractTranscript(m Message) (string, string) {
	for _, src := range TranscriptSources {
		if t := strings.TrimSpace(src.Extract(m)); t != "" {
			return t, src.Name
		}
	}
	return "", ""
}

// LatestUtterance finds what the caller just said on an assistant-turn event.
func LatestUtterance(m Message) string {
	if s := strings.TrimSpace(m.Input); s != "" {
		return s
	}
	for i := len(m.Messages) - 1; i >= 0; i-- {
		if strings.EqualFold(m.Messages[i].Role, "user") {
			if s := strings.TrimSpace(m.Messages[i].Text()); s != "" {
				return s
			}
		}
	}
	return strings.TrimSpace(m.Transcript)
}
