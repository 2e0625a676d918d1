// Package notify delivers customer emails: fixed follow-up templates and
// invoice deliveries with the PDF attached.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

var ErrNoRecipient = errors.New("notify: recipient is required")

type Attachment struct {
	FileName string
	Content  []byte
	MIMEType string
}

type Message struct {
	To          string
	Subject     string
	Body        string
	Attachments []Attachment
}

func (m Message) validate() error {
	if strings.TrimSpace(m.To) == "" {
		return ErrNoRecipient
	}
	return nil
}

// Mailer sends one message. Errors are returned as-is so the caller's retry
// policy can decide what to do.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer only logs outgoing mail. It is used when no SMTP host is
// configured.
type LogMailer struct {
	Log *slog.Logger
}

func (l LogMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	log := l.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("email not sent (smtp disabled)",
		"to", msg.To,
		"subject", msg.Subject,
		"attachments", len(msg.Attachments),
	)
	return nil
}

// MemoryMailer records messages instead of sending them.
type MemoryMailer struct {
	mu   sync.Mutex
	sent []Message
	// Err, when set, is returned from every Send.
	Err error
}

func (m *MemoryMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *MemoryMailer) Sent() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}
