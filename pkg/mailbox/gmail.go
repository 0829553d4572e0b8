package mailbox

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/mail"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/sync/errgroup"
	gmailv1 "google.golang.org/api/gmail/v1"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/plannerhq/vendorbook/pkg/domain"
)

const fetchWorkers = 8

// TokenProvider resolves the OAuth token of an owner's connected
// mailbox.
type TokenProvider interface {
	Token(ctx context.Context, ownerID int) (*oauth2.Token, error)
}

// FileTokenProvider reads tokens from <dir>/owner-<id>.json, the same
// JSON shape the OAuth connect flow writes.
type FileTokenProvider struct {
	Dir string
}

func (p *FileTokenProvider) Token(_ context.Context, ownerID int) (*oauth2.Token, error) {
	path := filepath.Join(p.Dir, fmt.Sprintf("owner-%d.json", ownerID))
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read token at %s: %w", path, err)
	}
	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("parse token at %s: %w", path, err)
	}
	return &tok, nil
}

// GmailClient implements Client on the Gmail API. Services are built
// per owner from the shared OAuth config and cached.
type GmailClient struct {
	cfg    *oauth2.Config
	tokens TokenProvider

	mu       sync.Mutex
	services map[int]*gmailv1.Service
}

// NewGmailClient parses the OAuth client credentials and wires the
// token provider. Read-only scope is enough for everything we do.
func NewGmailClient(credentialsJSON []byte, tokens TokenProvider) (*GmailClient, error) {
	cfg, err := google.ConfigFromJSON(credentialsJSON, gmailv1.GmailReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth config: %w", err)
	}
	return &GmailClient{
		cfg:      cfg,
		tokens:   tokens,
		services: make(map[int]*gmailv1.Service),
	}, nil
}

var _ Client = (*GmailClient)(nil)

func (c *GmailClient) service(ctx context.Context, ownerID int) (*gmailv1.Service, error) {
	c.mu.Lock()
	svc, ok := c.services[ownerID]
	c.mu.Unlock()
	if ok {
		return svc, nil
	}

	tok, err := c.tokens.Token(ctx, ownerID)
	if err != nil {
		return nil, domain.NewProviderFatalError("mailbox is not connected", err)
	}

	// The client refreshes tokens itself, so it outlives this request.
	httpClient := c.cfg.Client(context.Background(), tok)
	svc, err = gmailv1.NewService(context.Background(), option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, domain.NewProviderFatalError("create gmail service", err)
	}

	c.mu.Lock()
	c.services[ownerID] = svc
	c.mu.Unlock()

	return svc, nil
}

// ListHistoryPage pages through everything sent after the window start,
// newest first, the order Gmail lists message refs in.
func (c *GmailClient) ListHistoryPage(ctx context.Context, ownerID int, cursor string, after time.Time, pageSize int) (*Page, error) {
	svc, err := c.service(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	call := svc.Users.Messages.List("me").
		Q(fmt.Sprintf("after:%d", after.Unix())).
		MaxResults(int64(pageSize)).
		Context(ctx)
	if cursor != "" {
		call = call.PageToken(cursor)
	}

	resp, err := call.Do()
	if err != nil {
		return nil, providerErr("list history", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		ids = append(ids, ref.Id)
	}

	messages, err := c.fetchMessages(ctx, svc, ids)
	if err != nil {
		return nil, err
	}

	return &Page{
		Messages:   messages,
		NextCursor: resp.NextPageToken,
		HasMore:    resp.NextPageToken != "",
	}, nil
}

func (c *GmailClient) ListRecent(ctx context.Context, ownerID int, since time.Time, limit int) ([]Message, error) {
	svc, err := c.service(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Users.Messages.List("me").
		Q(fmt.Sprintf("after:%d", since.Unix())).
		MaxResults(int64(limit)).
		Context(ctx).
		Do()
	if err != nil {
		return nil, providerErr("list recent", err)
	}

	ids := make([]string, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		ids = append(ids, ref.Id)
	}

	return c.fetchMessages(ctx, svc, ids)
}

func (c *GmailClient) GetThread(ctx context.Context, ownerID int, threadID string) ([]Message, error) {
	svc, err := c.service(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	thread, err := svc.Users.Threads.Get("me", threadID).Format("full").Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return nil, domain.NewNotFoundError("thread")
		}
		return nil, providerErr("get thread", err)
	}

	messages := make([]Message, 0, len(thread.Messages))
	for _, m := range thread.Messages {
		messages = append(messages, parseMessage(m))
	}
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].SentAt.Before(messages[j].SentAt)
	})

	return messages, nil
}

// fetchMessages pulls full payloads for a page of refs with a bounded
// worker pool, preserving the listing order.
func (c *GmailClient) fetchMessages(ctx context.Context, svc *gmailv1.Service, ids []string) ([]Message, error) {
	messages := make([]Message, len(ids))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(fetchWorkers)
	for i, id := range ids {
		g.Go(func() error {
			m, err := svc.Users.Messages.Get("me", id).Format("full").Context(ctx).Do()
			if err != nil {
				return providerErr("get message", err)
			}
			messages[i] = parseMessage(m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return messages, nil
}

// providerErr maps a Gmail API failure onto the retryable/fatal
// provider error split the pipeline relies on.
func providerErr(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized || gerr.Code == http.StatusForbidden:
			return domain.NewProviderFatalError(fmt.Sprintf("gmail %s: credentials rejected", op), err)
		case gerr.Code == http.StatusTooManyRequests || gerr.Code >= 500:
			return domain.NewProviderError(fmt.Sprintf("gmail %s: transient failure", op), err)
		}
	}
	// Network hiccups and anything unclassified stay retryable.
	return domain.NewProviderError(fmt.Sprintf("gmail %s", op), err)
}

func parseMessage(m *gmailv1.Message) Message {
	msg := Message{
		ID:        m.Id,
		ThreadID:  m.ThreadId,
		Direction: DirectionInbound,
	}

	for _, label := range m.LabelIds {
		if label == "SENT" {
			msg.Direction = DirectionOutbound
			break
		}
	}

	if m.InternalDate > 0 {
		msg.SentAt = time.UnixMilli(m.InternalDate).UTC()
	}

	if m.Payload != nil {
		for _, h := range m.Payload.Headers {
			switch strings.ToLower(h.Name) {
			case "from":
				msg.From = parseAddress(h.Value)
			case "to":
				msg.To = parseAddressList(h.Value)
			case "subject":
				msg.Subject = h.Value
			case "date":
				if msg.SentAt.IsZero() {
					if t, err := mail.ParseDate(h.Value); err == nil {
						msg.SentAt = t.UTC()
					}
				}
			}
		}

		msg.Body = bodyText(m.Payload)
	}
	if msg.Body == "" {
		msg.Body = m.Snippet
	}

	return msg
}

func parseAddress(header string) Address {
	addr, err := mail.ParseAddress(header)
	if err != nil {
		return Address{Email: NormalizeEmail(header)}
	}
	return Address{Name: addr.Name, Email: NormalizeEmail(addr.Address)}
}

func parseAddressList(header string) []Address {
	addrs, err := mail.ParseAddressList(header)
	if err != nil {
		if header = strings.TrimSpace(header); header != "" {
			return []Address{{Email: NormalizeEmail(header)}}
		}
		return nil
	}

	out := make([]Address, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, Address{Name: a.Name, Email: NormalizeEmail(a.Address)})
	}
	return out
}

// bodyText walks the MIME tree for a text/plain part, falling back to
// stripped text/html.
func bodyText(payload *gmailv1.MessagePart) string {
	if plain := findPart(payload, "text/plain"); plain != "" {
		return strings.TrimSpace(plain)
	}
	if html := findPart(payload, "text/html"); html != "" {
		if doc, err := goquery.NewDocumentFromReader(strings.NewReader(html)); err == nil {
			return strings.TrimSpace(doc.Text())
		}
	}
	return ""
}

func findPart(part *gmailv1.MessagePart, mimeType string) string {
	if part == nil {
		return ""
	}

	if strings.EqualFold(part.MimeType, mimeType) && part.Body != nil && part.Body.Data != "" {
		return decodeBase64URL(part.Body.Data)
	}

	for _, sub := range part.Parts {
		if body := findPart(sub, mimeType); body != "" {
			return body
		}
	}
	return ""
}

func decodeBase64URL(data string) string {
	b, err := base64.URLEncoding.DecodeString(data)
	if err != nil {
		// Gmail uses unpadded base64url
		b, err = base64.RawURLEncoding.DecodeString(data)
		if err != nil {
			return ""
		}
	}
	return string(b)
}
