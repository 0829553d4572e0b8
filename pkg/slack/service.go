// Package slack posts pipeline notifications to a Slack incoming
// webhook. All notifications are best effort and silently skipped when
// no webhook is configured.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/plannerhq/vendorbook/pkg/domain"
)

var (
	// ErrSlackSendFailed is returned when Slack API fails
	ErrSlackSendFailed = errors.New("failed to send Slack notification")
)

// Message represents a Slack message
type Message struct {
	Text string `json:"text"`
}

// SlackClient is an interface for sending Slack notifications
type SlackClient interface {
	SendMessage(ctx context.Context, msg Message) error
}

// WebhookClient implements SlackClient using Slack webhooks
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
}

// NewWebhookClient creates a new Slack webhook client
func NewWebhookClient(webhookURL string) *WebhookClient {
	return &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// SendMessage sends a message to Slack via webhook
func (c *WebhookClient) SendMessage(ctx context.Context, msg Message) error {
	if c.webhookURL == "" {
		return fmt.Errorf("slack webhook URL not configured")
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ErrSlackSendFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ErrSlackSendFailed
	}

	return nil
}

// Service handles Slack notifications
type Service struct {
	client SlackClient
}

// NewService creates a new Slack service
func NewService(client SlackClient) *Service {
	return &Service{
		client: client,
	}
}

// IsEnabled returns true if Slack notifications are enabled
func (s *Service) IsEnabled() bool {
	return s != nil && s.client != nil
}

// NotifyRunScored announces a backfill run whose candidates finished
// scoring, with the counters the review queue will show.
func (s *Service) NotifyRunScored(ctx context.Context, run *domain.BackfillRun) error {
	if !s.IsEnabled() {
		return nil // Silently skip if not enabled
	}

	text := fmt.Sprintf("📬 *Mailbox backfill scored*\n"+
		"• Owner: %d\n"+
		"• Messages scanned: %d\n"+
		"• New candidates: %d\n"+
		"• Auto-imported: %d",
		run.OwnerID, run.ScannedMessages, run.CreatedCandidates, run.AutoImportedCount)

	msg := Message{Text: text}
	return s.client.SendMessage(ctx, msg)
}

// NotifyProposalsPending announces how many status proposals are
// sitting unresolved when the digest goes out.
func (s *Service) NotifyProposalsPending(ctx context.Context, count int) error {
	if !s.IsEnabled() || count == 0 {
		return nil
	}

	text := fmt.Sprintf("🔔 *Status proposals awaiting review*\n"+
		"• Pending: %d",
		count)

	msg := Message{Text: text}
	return s.client.SendMessage(ctx, msg)
}
