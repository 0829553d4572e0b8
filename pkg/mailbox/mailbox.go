// Package mailbox defines the provider contract the discovery and
// detection pipelines consume, plus the Gmail implementation and a
// scripted fake for tests and local development.
package mailbox

import (
	"context"
	"strings"
	"time"
)

// Direction tells whether the owner sent or received a message.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Address is one mail participant.
type Address struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

// Message is the normalized shape of one mail message.
type Message struct {
	ID        string    `json:"id"`
	ThreadID  string    `json:"thread_id"`
	From      Address   `json:"from"`
	To        []Address `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Direction Direction `json:"direction"`
	SentAt    time.Time `json:"sent_at"`
}

// Counterparts returns the non-owner side of the message: recipients of
// outbound mail, the sender of inbound mail.
func (m *Message) Counterparts() []Address {
	if m.Direction == DirectionOutbound {
		return m.To
	}
	return []Address{m.From}
}

// Page is one bounded slice of mailbox history.
type Page struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"next_cursor"`
	HasMore    bool      `json:"has_more"`
}

// Client is the mailbox provider contract. Implementations signal
// transient failures (rate limits, network) with a retryable provider
// error and terminal ones (revoked credentials) with a fatal provider
// error so callers can tell them apart.
type Client interface {
	// ListHistoryPage returns one page of messages sent after the
	// given instant, newest first. An empty cursor starts from the
	// top; the returned cursor resumes where this page stopped.
	ListHistoryPage(ctx context.Context, ownerID int, cursor string, after time.Time, pageSize int) (*Page, error)

	// ListRecent returns messages from the trailing window, used by
	// live sync. Ordering is newest first.
	ListRecent(ctx context.Context, ownerID int, since time.Time, limit int) ([]Message, error)

	// GetThread returns every message of a thread in chronological
	// order.
	GetThread(ctx context.Context, ownerID int, threadID string) ([]Message, error)
}

// NormalizeEmail lowercases and trims an address for identity use.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// DomainOf derives the domain part of an address, or "" when the
// address has no @.
func DomainOf(email string) string {
	email = NormalizeEmail(email)
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return email[at+1:]
}
