// Package livesync keeps the pipeline current between backfills. A
// sync pulls the trailing mailbox window, refreshes thread summaries,
// re-runs detection over linked threads and emits proposals; unlinked
// threads are filed for the needs-link queue. Webhook nudges only mark
// an account for the next poll, they never process inline.
package livesync

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/plannerhq/vendorbook/pkg/cache"
	"github.com/plannerhq/vendorbook/pkg/detection"
	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/mailbox"
	"github.com/plannerhq/vendorbook/pkg/proposals"
	"github.com/plannerhq/vendorbook/pkg/signals"
	"github.com/plannerhq/vendorbook/pkg/store"
	"github.com/plannerhq/vendorbook/pkg/suppliers"
)

const (
	recentLimit    = 500
	threadWorkers  = 4
	nudgedOwnerSet = "livesync:nudged"
)

// Service handles live mailbox sync business logic
type Service struct {
	mail      mailbox.Client
	threads   store.ThreadStore
	suppliers store.SupplierStore
	signals   *signals.Service
	engine    *detection.Engine
	proposals *proposals.Service
	supSvc    *suppliers.Service
	cache     *cache.Client
	window    time.Duration
	logger    *log.Logger

	mu     sync.Mutex
	nudged map[int]bool
	known  map[int]bool
}

// NewService creates a new live sync service. cacheClient may be nil;
// nudges then live only in this process.
func NewService(mail mailbox.Client, threadStore store.ThreadStore, supplierStore store.SupplierStore, signalSvc *signals.Service, engine *detection.Engine, proposalSvc *proposals.Service, supplierSvc *suppliers.Service, cacheClient *cache.Client, window time.Duration, logger *log.Logger) *Service {
	if window <= 0 {
		window = 24 * time.Hour
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		mail:      mail,
		threads:   threadStore,
		suppliers: supplierStore,
		signals:   signalSvc,
		engine:    engine,
		proposals: proposalSvc,
		supSvc:    supplierSvc,
		cache:     cacheClient,
		window:    window,
		logger:    logger,
		nudged:    map[int]bool{},
		known:     map[int]bool{},
	}
}

// Result summarizes one sync pass.
type Result struct {
	ThreadsSeen      int `json:"threads_seen"`
	MessagesScanned  int `json:"messages_scanned"`
	ProposalsEmitted int `json:"proposals_emitted"`
	ThreadsFiled     int `json:"threads_filed"`
}

// Nudge marks an account for the next poll. Called by the mailbox
// webhook; processing happens later in the poll loop.
func (s *Service) Nudge(ctx context.Context, ownerID int) {
	s.mu.Lock()
	s.nudged[ownerID] = true
	s.known[ownerID] = true
	s.mu.Unlock()

	if s.cache != nil {
		if err := s.cache.Redis.SAdd(ctx, nudgedOwnerSet, ownerID).Err(); err != nil {
			s.logger.Printf("⚠️ Failed recording live sync nudge for owner %d: %v", ownerID, err)
		}
	}
}

// PollOwners returns every account due for a sync: freshly nudged ones
// plus any account seen before, so the safety-net poll covers owners
// whose webhook delivery was lost.
func (s *Service) PollOwners(ctx context.Context) []int {
	var shared []int
	if s.cache != nil {
		raw, err := s.cache.Redis.SMembers(ctx, nudgedOwnerSet).Result()
		if err != nil {
			s.logger.Printf("⚠️ Failed reading live sync nudges: %v", err)
		} else {
			for _, v := range raw {
				if id, err := strconv.Atoi(v); err == nil {
					shared = append(shared, id)
				}
			}
			if err := s.cache.Redis.Del(ctx, nudgedOwnerSet).Err(); err != nil {
				s.logger.Printf("⚠️ Failed clearing live sync nudges: %v", err)
			}
		}
	}

	s.mu.Lock()
	for _, id := range shared {
		s.known[id] = true
	}
	s.nudged = map[int]bool{}
	owners := make([]int, 0, len(s.known))
	for id := range s.known {
		owners = append(owners, id)
	}
	s.mu.Unlock()

	sort.Ints(owners)
	return owners
}

// ProcessRecent syncs one account's trailing window. Threads are
// independent and handled concurrently; one thread's failure skips
// that thread, not the pass.
func (s *Service) ProcessRecent(ctx context.Context, ownerID int) (*Result, error) {
	since := time.Now().UTC().Add(-s.window)
	msgs, err := s.mail.ListRecent(ctx, ownerID, since, recentLimit)
	if err != nil {
		return nil, err
	}

	byThread := map[string][]mailbox.Message{}
	for _, m := range msgs {
		if m.ThreadID == "" {
			continue
		}
		byThread[m.ThreadID] = append(byThread[m.ThreadID], m)
	}

	defs, err := s.signals.Effective(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("loading status definitions: %w", err)
	}

	res := &Result{MessagesScanned: len(msgs), ThreadsSeen: len(byThread)}
	var resMu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(threadWorkers)
	for threadID, recent := range byThread {
		g.Go(func() error {
			emitted, filed, err := s.syncThread(gctx, ownerID, threadID, recent, defs)
			if err != nil {
				s.logger.Printf("⚠️ Live sync failed for thread %s: %v", threadID, err)
				return nil
			}
			resMu.Lock()
			res.ProposalsEmitted += emitted
			if filed {
				res.ThreadsFiled++
			}
			resMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.known[ownerID] = true
	s.mu.Unlock()
	return res, nil
}

// syncThread refreshes one thread summary and, when the thread is
// linked to a project, runs detection over its window messages in
// chronological order.
func (s *Service) syncThread(ctx context.Context, ownerID int, threadID string, recent []mailbox.Message, defs []domain.StatusDefinition) (int, bool, error) {
	full, err := s.mail.GetThread(ctx, ownerID, threadID)
	if err != nil {
		if domain.IsNotFound(err) {
			full = recent
			sortChronological(full)
		} else {
			return 0, false, err
		}
	}
	if len(full) == 0 {
		return 0, false, nil
	}

	summary := summarize(ownerID, threadID, full)
	if err := s.threads.UpsertThread(ctx, summary); err != nil {
		return 0, false, fmt.Errorf("upserting thread summary: %w", err)
	}

	stored, err := s.threads.GetThread(ctx, ownerID, threadID)
	if err != nil {
		return 0, false, err
	}
	if stored.LinkState != domain.ThreadLinkLinked || stored.ProjectID == nil {
		return 0, stored.LinkState == domain.ThreadLinkPending, nil
	}

	emitted, err := s.detectAndPropose(ctx, ownerID, *stored.ProjectID, threadID, full, recent, defs)
	return emitted, false, err
}

// detectAndPropose runs the engine over the window messages of a
// linked thread and emits proposals for counterparts that exist as
// suppliers.
func (s *Service) detectAndPropose(ctx context.Context, ownerID, projectID int, threadID string, full, recent []mailbox.Message, defs []domain.StatusDefinition) (int, error) {
	inWindow := make(map[string]bool, len(recent))
	for _, m := range recent {
		inWindow[m.ID] = true
	}

	emitted := 0
	for i, msg := range full {
		if !inWindow[msg.ID] {
			continue
		}

		det := s.engine.Detect(msg, full[:i], defs)
		if det == nil {
			continue
		}

		for _, addr := range msg.Counterparts() {
			email := mailbox.NormalizeEmail(addr.Email)
			if email == "" {
				continue
			}
			sup, err := s.suppliers.FindSupplierByEmail(ctx, ownerID, email)
			if err != nil {
				if domain.IsNotFound(err) {
					continue
				}
				return emitted, err
			}

			if err := s.ensureAttached(ctx, ownerID, projectID, sup.ID); err != nil {
				return emitted, err
			}

			p, err := s.proposals.Propose(ctx, ownerID, proposals.ProposeInput{
				ProjectID:      projectID,
				SupplierID:     sup.ID,
				ToStatus:       det.Status.Slug,
				Confidence:     det.Confidence,
				MatchedSignals: det.MatchedSignals,
				Reasoning:      det.Reasoning,
				ThreadID:       threadID,
				MessageID:      msg.ID,
			})
			if err != nil {
				return emitted, err
			}
			if p != nil {
				emitted++
			}
		}
	}
	return emitted, nil
}

// ensureAttached guarantees the pipeline row a proposal needs,
// starting new relationships at the default stage.
func (s *Service) ensureAttached(ctx context.Context, ownerID, projectID, supplierID int) error {
	_, err := s.supSvc.Status(ctx, ownerID, projectID, supplierID)
	if err == nil {
		return nil
	}
	if !domain.IsNotFound(err) {
		return err
	}
	if _, err := s.supSvc.Attach(ctx, ownerID, projectID, supplierID, ""); err != nil && !domain.IsConflict(err) {
		return err
	}
	return nil
}

// summarize folds a full chronological thread into its stored summary.
func summarize(ownerID int, threadID string, msgs []mailbox.Message) *domain.ThreadSummary {
	participants := map[string]bool{}
	subject := ""
	for i := range msgs {
		m := &msgs[i]
		if subject == "" && m.Subject != "" {
			subject = m.Subject
		}
		for _, addr := range m.Counterparts() {
			if email := mailbox.NormalizeEmail(addr.Email); email != "" {
				participants[email] = true
			}
		}
	}

	out := make([]string, 0, len(participants))
	for email := range participants {
		out = append(out, email)
	}
	sort.Strings(out)

	return &domain.ThreadSummary{
		ThreadID:       threadID,
		OwnerID:        ownerID,
		Subject:        subject,
		Participants:   out,
		FirstMessageAt: msgs[0].SentAt,
		LastMessageAt:  msgs[len(msgs)-1].SentAt,
		MessageCount:   len(msgs),
	}
}

func sortChronological(msgs []mailbox.Message) {
	sort.Slice(msgs, func(i, j int) bool {
		return msgs[i].SentAt.Before(msgs[j].SentAt)
	})
}
