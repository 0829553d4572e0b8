package mailbox

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/plannerhq/vendorbook/pkg/domain"
)

// FakeClient is an in-memory mailbox for tests and local development.
// Listing failures can be scripted to exercise retry handling.
type FakeClient struct {
	mu       sync.Mutex
	inboxes  map[int][]Message
	listErrs []error
}

var _ Client = (*FakeClient)(nil)

func NewFakeClient() *FakeClient {
	return &FakeClient{inboxes: make(map[int][]Message)}
}

// Seed adds messages to an owner's mailbox.
func (f *FakeClient) Seed(ownerID int, msgs ...Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inboxes[ownerID] = append(f.inboxes[ownerID], msgs...)
}

// FailNextList queues an error that the next listing call returns
// instead of a page. Queue one error per failure you want to see.
func (f *FakeClient) FailNextList(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listErrs = append(f.listErrs, err)
}

func (f *FakeClient) popListErrLocked() error {
	if len(f.listErrs) == 0 {
		return nil
	}
	err := f.listErrs[0]
	f.listErrs = f.listErrs[1:]
	return err
}

func (f *FakeClient) ListHistoryPage(_ context.Context, ownerID int, cursor string, after time.Time, pageSize int) (*Page, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.popListErrLocked(); err != nil {
		return nil, err
	}

	msgs := f.windowLocked(ownerID, after)

	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil {
			return nil, domain.NewProviderFatalError("malformed history cursor", err)
		}
		offset = n
	}
	if offset > len(msgs) {
		offset = len(msgs)
	}

	end := len(msgs)
	if pageSize > 0 && offset+pageSize < end {
		end = offset + pageSize
	}

	page := &Page{Messages: msgs[offset:end]}
	if end < len(msgs) {
		page.NextCursor = strconv.Itoa(end)
		page.HasMore = true
	}
	return page, nil
}

func (f *FakeClient) ListRecent(_ context.Context, ownerID int, since time.Time, limit int) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.popListErrLocked(); err != nil {
		return nil, err
	}

	msgs := f.windowLocked(ownerID, since)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (f *FakeClient) GetThread(_ context.Context, ownerID int, threadID string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var msgs []Message
	for _, m := range f.inboxes[ownerID] {
		if m.ThreadID == threadID {
			msgs = append(msgs, m)
		}
	}
	if len(msgs) == 0 {
		return nil, domain.NewNotFoundError("thread")
	}

	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].SentAt.Before(msgs[j].SentAt)
	})
	return msgs, nil
}

// windowLocked returns the owner's messages sent after the instant,
// newest first, as a fresh slice.
func (f *FakeClient) windowLocked(ownerID int, after time.Time) []Message {
	var msgs []Message
	for _, m := range f.inboxes[ownerID] {
		if m.SentAt.After(after) {
			msgs = append(msgs, m)
		}
	}
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].SentAt.Equal(msgs[j].SentAt) {
			return msgs[i].SentAt.After(msgs[j].SentAt)
		}
		return msgs[i].ID < msgs[j].ID
	})
	return msgs
}
