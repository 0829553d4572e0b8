// Package backfill drives mailbox history scans. A run walks the
// owner's sent history page by page, harvesting outbound recipients
// into the candidate queue and summarizing threads along the way. Runs
// advance one page per tick so they survive restarts and rate limits.
package backfill

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/plannerhq/vendorbook/pkg/cache"
	"github.com/plannerhq/vendorbook/pkg/candidates"
	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/mailbox"
	"github.com/plannerhq/vendorbook/pkg/store"
)

const (
	minTimeframeMonths = 1
	maxTimeframeMonths = 36
	tickLockTTL        = time.Minute
)

// Service handles backfill run business logic
type Service struct {
	runs           store.RunStore
	threads        store.ThreadStore
	candidates     *candidates.Service
	mail           mailbox.Client
	cache          *cache.Client
	pageSize       int
	maxConsecFails int
}

// NewService creates a new backfill service. cacheClient may be nil,
// in which case ticks run unlocked.
func NewService(runStore store.RunStore, threadStore store.ThreadStore, candidateSvc *candidates.Service, mail mailbox.Client, cacheClient *cache.Client, pageSize, maxConsecFails int) *Service {
	if pageSize <= 0 {
		pageSize = 100
	}
	if maxConsecFails <= 0 {
		maxConsecFails = 3
	}
	return &Service{
		runs:           runStore,
		threads:        threadStore,
		candidates:     candidateSvc,
		mail:           mail,
		cache:          cacheClient,
		pageSize:       pageSize,
		maxConsecFails: maxConsecFails,
	}
}

// StartInput configures a new run.
type StartInput struct {
	TimeframeMonths int
	EventContext    string
}

// TickResult reports one tick's outcome.
type TickResult struct {
	Run       *domain.BackfillRun
	Done      bool
	Processed int
}

// Start creates a pending run. The store rejects it when another run
// is still active for the owner.
func (s *Service) Start(ctx context.Context, ownerID int, in StartInput) (*domain.BackfillRun, error) {
	if in.TimeframeMonths < minTimeframeMonths || in.TimeframeMonths > maxTimeframeMonths {
		return nil, domain.NewValidationError(fmt.Sprintf("timeframe must be between %d and %d months", minTimeframeMonths, maxTimeframeMonths))
	}

	now := time.Now().UTC()
	run := &domain.BackfillRun{
		ID:               uuid.NewString(),
		OwnerID:          ownerID,
		Status:           domain.RunStatusPending,
		TimeframeMonths:  in.TimeframeMonths,
		EventContext:     strings.TrimSpace(in.EventContext),
		EnrichmentStatus: domain.EnrichmentPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return nil, err
	}
	return run, nil
}

// Get returns one run, scoped to its owner.
func (s *Service) Get(ctx context.Context, ownerID int, runID string) (*domain.BackfillRun, error) {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.OwnerID != ownerID {
		return nil, domain.NewForbiddenError("backfill run belongs to another account")
	}
	return run, nil
}

// List returns the owner's runs, newest first.
func (s *Service) List(ctx context.Context, ownerID int, limit, offset int) ([]*domain.BackfillRun, int, error) {
	return s.runs.ListRuns(ctx, ownerID, limit, offset)
}

// Cancel stops a run. Cancelling an already cancelled run is a no-op;
// cancelling a finished run is a conflict.
func (s *Service) Cancel(ctx context.Context, ownerID int, runID string) (*domain.BackfillRun, error) {
	run, err := s.Get(ctx, ownerID, runID)
	if err != nil {
		return nil, err
	}

	switch run.Status {
	case domain.RunStatusCancelled:
		return run, nil
	case domain.RunStatusCompleted, domain.RunStatusFailed:
		return nil, domain.NewConflictError("backfill run already finished")
	}

	now := time.Now().UTC()
	run.Status = domain.RunStatusCancelled
	run.CompletedAt = &now
	run.UpdatedAt = now
	if err := s.runs.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("cancelling run: %w", err)
	}
	return run, nil
}

// Tick advances a run by one history page. A tick on a terminal run is
// a done no-op, so a cancel racing the scheduler is harmless. Failures
// are persisted on the run; the run fails terminally after too many
// consecutive failures or on the first fatal provider error.
func (s *Service) Tick(ctx context.Context, runID string) (*TickResult, error) {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.Status.Terminal() {
		return &TickResult{Run: run, Done: true}, nil
	}

	// The lock is best effort: a held lock skips the tick, any other
	// cache trouble falls through to an unlocked scan.
	if s.cache != nil {
		lock, err := s.cache.AcquireLock(ctx, "backfill:run:"+run.ID, uuid.NewString(), tickLockTTL)
		if errors.Is(err, cache.ErrLockHeld) {
			return &TickResult{Run: run}, nil
		}
		if err == nil {
			defer lock.Release(ctx)
		}
	}

	now := time.Now().UTC()
	if run.StartedAt == nil {
		run.StartedAt = &now
	}

	// The window is anchored to the first tick attempt so later pages,
	// including retries of a failed first page, resume against the same
	// boundary.
	after := run.StartedAt.AddDate(0, -run.TimeframeMonths, 0)

	page, err := s.mail.ListHistoryPage(ctx, run.OwnerID, run.Cursor, after, s.pageSize)
	if err != nil {
		return nil, s.recordFailure(ctx, run, err)
	}

	// Counters roll back with the cursor on a failed page, so the
	// retried page is not counted twice.
	processed := len(page.Messages)
	scanned, discovered, created := run.ScannedMessages, run.DiscoveredContacts, run.CreatedCandidates
	run.ScannedMessages += processed
	if err := s.harvest(ctx, run, page.Messages); err != nil {
		run.ScannedMessages, run.DiscoveredContacts, run.CreatedCandidates = scanned, discovered, created
		return nil, s.recordFailure(ctx, run, err)
	}

	// A run only turns running once a page actually landed.
	if run.Status == domain.RunStatusPending {
		run.Status = domain.RunStatusRunning
	}

	run.ConsecutiveFailures = 0
	run.LastError = ""
	run.Cursor = page.NextCursor
	if !page.HasMore {
		completedAt := time.Now().UTC()
		run.Status = domain.RunStatusCompleted
		run.CompletedAt = &completedAt
	}
	run.UpdatedAt = time.Now().UTC()

	if err := s.runs.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("updating run: %w", err)
	}
	return &TickResult{Run: run, Done: run.Status.Terminal(), Processed: processed}, nil
}

// harvest records outbound recipients as candidate sightings and keeps
// per-thread summaries current. Inbound senders are deliberately left
// alone: anyone the owner never wrote to is noise, not a vendor lead.
func (s *Service) harvest(ctx context.Context, run *domain.BackfillRun, msgs []mailbox.Message) error {
	type threadAgg struct {
		subject      string
		participants map[string]bool
		first, last  time.Time
		count        int
	}
	threads := map[string]*threadAgg{}

	for i := range msgs {
		msg := &msgs[i]

		if msg.ThreadID != "" {
			agg := threads[msg.ThreadID]
			if agg == nil {
				agg = &threadAgg{participants: map[string]bool{}, first: msg.SentAt, last: msg.SentAt}
				threads[msg.ThreadID] = agg
			}
			if agg.subject == "" {
				agg.subject = strings.TrimSpace(msg.Subject)
			}
			for _, addr := range msg.Counterparts() {
				if email := mailbox.NormalizeEmail(addr.Email); email != "" {
					agg.participants[email] = true
				}
			}
			if msg.SentAt.Before(agg.first) {
				agg.first = msg.SentAt
			}
			if msg.SentAt.After(agg.last) {
				agg.last = msg.SentAt
			}
			agg.count++
		}

		if msg.Direction != mailbox.DirectionOutbound {
			continue
		}
		for _, addr := range msg.Counterparts() {
			if strings.TrimSpace(addr.Email) == "" {
				continue
			}
			_, created, err := s.candidates.RecordSighting(ctx, run.OwnerID, addr.Email, addr.Name, msg.Subject, domain.SourceBackfill, msg.SentAt)
			if err != nil {
				return fmt.Errorf("recording sighting for %s: %w", addr.Email, err)
			}
			run.DiscoveredContacts++
			if created {
				run.CreatedCandidates++
			}
		}
	}

	for threadID, agg := range threads {
		participants := make([]string, 0, len(agg.participants))
		for email := range agg.participants {
			participants = append(participants, email)
		}
		summary := &domain.ThreadSummary{
			ThreadID:       threadID,
			OwnerID:        run.OwnerID,
			Subject:        agg.subject,
			Participants:   participants,
			FirstMessageAt: agg.first,
			LastMessageAt:  agg.last,
			MessageCount:   agg.count,
		}
		if err := s.threads.UpsertThread(ctx, summary); err != nil {
			return fmt.Errorf("upserting thread %s: %w", threadID, err)
		}
	}
	return nil
}

// recordFailure persists the failed tick and decides whether the run
// keeps retrying. The original error comes back to the caller either
// way.
func (s *Service) recordFailure(ctx context.Context, run *domain.BackfillRun, cause error) error {
	run.ErrorsCount++
	run.ConsecutiveFailures++
	run.LastError = cause.Error()

	if domain.IsProviderFatal(cause) || run.ConsecutiveFailures >= s.maxConsecFails {
		now := time.Now().UTC()
		run.Status = domain.RunStatusFailed
		run.CompletedAt = &now
	}
	run.UpdatedAt = time.Now().UTC()

	if err := s.runs.UpdateRun(ctx, run); err != nil {
		return fmt.Errorf("persisting failed tick: %w (tick error: %v)", err, cause)
	}
	return cause
}
