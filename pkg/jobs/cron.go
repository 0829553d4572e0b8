// Package jobs runs the scheduled half of the pipeline: backfill ticks,
// run enrichment, proposal expiry, the live sync poll and the weekly
// proposal digest.
package jobs

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/plannerhq/vendorbook/config"
	"github.com/plannerhq/vendorbook/pkg/backfill"
	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/email"
	"github.com/plannerhq/vendorbook/pkg/enrichment"
	"github.com/plannerhq/vendorbook/pkg/livesync"
	"github.com/plannerhq/vendorbook/pkg/metrics"
	"github.com/plannerhq/vendorbook/pkg/projects"
	"github.com/plannerhq/vendorbook/pkg/proposals"
	"github.com/plannerhq/vendorbook/pkg/slack"
	"github.com/plannerhq/vendorbook/pkg/store"
	"github.com/plannerhq/vendorbook/pkg/suppliers"
)

const (
	tickPassTimeout   = 5 * time.Minute
	enrichPassTimeout = 30 * time.Minute
	expiryPassTimeout = 1 * time.Minute
	livePassTimeout   = 10 * time.Minute
	digestPassTimeout = 5 * time.Minute
)

// Deps are the services the scheduled jobs drive. Metrics and Slack
// may be nil.
type Deps struct {
	Runs       store.RunStore
	Backfill   *backfill.Service
	Enrichment *enrichment.Service
	Proposals  *proposals.Service
	LiveSync   *livesync.Service
	Suppliers  *suppliers.Service
	Projects   *projects.Service
	Mailer     *email.Service
	Slack      *slack.Service
	Metrics    *metrics.Metrics
}

// Manager owns the cron scheduler and the job bodies. Each pass is a
// public method so it can be triggered manually.
type Manager struct {
	cron   *cron.Cron
	cfg    *config.Config
	deps   Deps
	logger *log.Logger
}

// NewManager creates a new job manager. Jobs that would overrun their
// own schedule are skipped, not stacked.
func NewManager(cfg *config.Config, deps Deps, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}

	return &Manager{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.PrintfLogger(logger)),
		)),
		cfg:    cfg,
		deps:   deps,
		logger: logger,
	}
}

// SetupJobs registers all scheduled jobs from the configured specs.
func (m *Manager) SetupJobs() error {
	m.logger.Println("Setting up cron jobs...")

	_, err := m.cron.AddFunc(m.cfg.CronTickSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), tickPassTimeout)
		defer cancel()
		m.TickPass(ctx)
	})
	if err != nil {
		return fmt.Errorf("registering tick job: %w", err)
	}

	_, err = m.cron.AddFunc(m.cfg.CronEnrichSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), enrichPassTimeout)
		defer cancel()
		m.EnrichmentPass(ctx)
	})
	if err != nil {
		return fmt.Errorf("registering enrichment job: %w", err)
	}

	_, err = m.cron.AddFunc(m.cfg.CronExpirySpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), expiryPassTimeout)
		defer cancel()
		m.ExpiryPass(ctx)
	})
	if err != nil {
		return fmt.Errorf("registering expiry job: %w", err)
	}

	_, err = m.cron.AddFunc(m.cfg.CronLiveSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), livePassTimeout)
		defer cancel()
		m.LiveSyncPass(ctx)
	})
	if err != nil {
		return fmt.Errorf("registering live sync job: %w", err)
	}

	_, err = m.cron.AddFunc(m.cfg.CronDigestSpec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), digestPassTimeout)
		defer cancel()
		m.DigestPass(ctx)
	})
	if err != nil {
		return fmt.Errorf("registering digest job: %w", err)
	}

	m.logger.Println("✅ Cron jobs configured successfully")
	m.logger.Printf("  - Backfill ticks: %s", m.cfg.CronTickSpec)
	m.logger.Printf("  - Run enrichment: %s", m.cfg.CronEnrichSpec)
	m.logger.Printf("  - Proposal expiry: %s", m.cfg.CronExpirySpec)
	m.logger.Printf("  - Live sync poll: %s", m.cfg.CronLiveSpec)
	m.logger.Printf("  - Proposal digest: %s", m.cfg.CronDigestSpec)
	if m.cfg.NotifyEmail == "" {
		m.logger.Println("⚠️  NOTIFY_EMAIL not set; completion and digest mails are disabled")
	}

	return nil
}

// Start starts the cron scheduler.
func (m *Manager) Start() {
	m.logger.Println("🚀 Starting cron scheduler...")
	m.cron.Start()
}

// Stop stops the cron scheduler.
func (m *Manager) Stop() {
	m.logger.Println("🛑 Stopping cron scheduler...")
	m.cron.Stop()
}

// TickPass advances every pending or running backfill run by one page.
// The per-run lock inside Tick keeps concurrent instances off the same
// run, so a skipped tick here is normal, not an error.
func (m *Manager) TickPass(ctx context.Context) {
	runs, err := m.deps.Runs.ListRunsByStatus(ctx, domain.RunStatusPending, domain.RunStatusRunning)
	if err != nil {
		m.logger.Printf("❌ Failed to list active backfill runs: %v", err)
		return
	}

	for _, run := range runs {
		before := run.CreatedCandidates
		res, err := m.deps.Backfill.Tick(ctx, run.ID)
		m.deps.Metrics.RecordTick(err == nil)
		if err != nil {
			m.logger.Printf("❌ Tick failed for run %s (owner %d): %v", run.ID, run.OwnerID, err)
			continue
		}
		m.deps.Metrics.RecordScanned(res.Processed)
		m.deps.Metrics.RecordDiscovered(res.Run.CreatedCandidates - before)
		if res.Done {
			m.logger.Printf("✅ Backfill run %s finished: %s, %d messages scanned, %d new candidates",
				run.ID, res.Run.Status, res.Run.ScannedMessages, res.Run.CreatedCandidates)
		}
	}
}

// EnrichmentPass scores the candidate queues of completed runs that
// have not been enriched yet. Runs stuck in the running enrichment
// state are retried; per-candidate scoring is idempotent, so a retry
// only picks up what the crashed pass left unscored.
func (m *Manager) EnrichmentPass(ctx context.Context) {
	runs, err := m.deps.Runs.ListRunsByStatus(ctx, domain.RunStatusCompleted)
	if err != nil {
		m.logger.Printf("❌ Failed to list completed backfill runs: %v", err)
		return
	}

	for _, run := range runs {
		if run.EnrichmentStatus == domain.EnrichmentCompleted {
			continue
		}

		m.logger.Printf("🕐 Enriching candidates from run %s (owner %d)...", run.ID, run.OwnerID)
		res, err := m.deps.Enrichment.EnrichRun(ctx, run.ID)
		if err != nil {
			m.logger.Printf("❌ Enrichment failed for run %s: %v", run.ID, err)
			continue
		}
		m.logger.Printf("✅ Run %s enriched: %d scored, %d auto-imported, %d dismissed, %d for review",
			run.ID, res.Enriched, res.Imported, res.Dismissed, res.NeedsReview)
		m.deps.Metrics.RecordEnrichmentOutcome("imported", res.Imported)
		m.deps.Metrics.RecordEnrichmentOutcome("dismissed", res.Dismissed)
		m.deps.Metrics.RecordEnrichmentOutcome("needs_review", res.NeedsReview)
		m.deps.Metrics.RecordEnrichmentOutcome("skipped", res.Skipped)
		m.deps.Metrics.RecordEnrichmentOutcome("failed", len(res.Failed))

		// Notifications go out after scoring so the review queue the
		// reader opens is already triaged.
		if m.cfg.NotifyEmail != "" || m.deps.Slack.IsEnabled() {
			enriched, err := m.deps.Runs.GetRun(ctx, run.ID)
			if err != nil {
				m.logger.Printf("⚠️ Could not reload run %s for notifications: %v", run.ID, err)
				continue
			}
			if m.cfg.NotifyEmail != "" {
				if err := m.deps.Mailer.SendRunCompleted(m.cfg.NotifyEmail, m.cfg.NotifyName, enriched); err != nil {
					m.logger.Printf("⚠️ Completion mail for run %s failed: %v", run.ID, err)
				}
			}
			if err := m.deps.Slack.NotifyRunScored(ctx, enriched); err != nil {
				m.logger.Printf("⚠️ Slack notification for run %s failed: %v", run.ID, err)
			}
		}
	}
}

// ExpiryPass prunes status proposals whose expiry horizon passed.
func (m *Manager) ExpiryPass(ctx context.Context) {
	n, err := m.deps.Proposals.ExpireSweep(ctx)
	if err != nil {
		m.logger.Printf("❌ Proposal expiry sweep failed: %v", err)
		return
	}
	if n > 0 {
		m.logger.Printf("🧹 Expired %d stale status proposal(s)", n)
	}
}

// LiveSyncPass syncs the trailing window for every account due: those
// nudged by the mailbox webhook plus every account seen before, as a
// safety net for lost webhook deliveries.
func (m *Manager) LiveSyncPass(ctx context.Context) {
	owners := m.deps.LiveSync.PollOwners(ctx)
	if len(owners) == 0 {
		return
	}

	for _, ownerID := range owners {
		res, err := m.deps.LiveSync.ProcessRecent(ctx, ownerID)
		if err != nil {
			m.logger.Printf("❌ Live sync failed for owner %d: %v", ownerID, err)
			continue
		}
		m.deps.Metrics.RecordScanned(res.MessagesScanned)
		m.deps.Metrics.RecordProposalsEmitted(res.ProposalsEmitted)
		if res.ProposalsEmitted > 0 || res.ThreadsFiled > 0 {
			m.logger.Printf("✅ Live sync for owner %d: %d thread(s), %d proposal(s), %d filed for linking",
				ownerID, res.ThreadsSeen, res.ProposalsEmitted, res.ThreadsFiled)
		}
	}
}

// DigestPass mails the weekly summary of unresolved status proposals.
// Owners are enumerated from the runs table, since connecting a
// mailbox starts with a backfill. Nothing pending sends nothing.
func (m *Manager) DigestPass(ctx context.Context) {
	if m.cfg.NotifyEmail == "" && !m.deps.Slack.IsEnabled() {
		return
	}

	items, err := m.collectDigest(ctx)
	if err != nil {
		m.logger.Printf("❌ Failed to build proposal digest: %v", err)
		return
	}
	if len(items) == 0 {
		return
	}

	if err := m.deps.Slack.NotifyProposalsPending(ctx, len(items)); err != nil {
		m.logger.Printf("⚠️ Slack digest notification failed: %v", err)
	}

	if m.cfg.NotifyEmail == "" {
		return
	}
	if err := m.deps.Mailer.SendProposalDigest(m.cfg.NotifyEmail, m.cfg.NotifyName, items); err != nil {
		m.logger.Printf("⚠️ Proposal digest failed: %v", err)
		return
	}
	m.logger.Printf("📧 Sent proposal digest with %d item(s)", len(items))
}

func (m *Manager) collectDigest(ctx context.Context) ([]email.DigestItem, error) {
	runs, err := m.deps.Runs.ListRunsByStatus(ctx,
		domain.RunStatusPending, domain.RunStatusRunning,
		domain.RunStatusCompleted, domain.RunStatusFailed, domain.RunStatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	seen := map[int]bool{}
	var owners []int
	for _, run := range runs {
		if !seen[run.OwnerID] {
			seen[run.OwnerID] = true
			owners = append(owners, run.OwnerID)
		}
	}
	sort.Ints(owners)

	var items []email.DigestItem
	for _, ownerID := range owners {
		pending, err := m.deps.Proposals.ListPending(ctx, ownerID)
		if err != nil {
			m.logger.Printf("⚠️ Skipping digest for owner %d: %v", ownerID, err)
			continue
		}
		for _, p := range pending {
			items = append(items, email.DigestItem{
				ProjectName:  m.projectName(ctx, p.OwnerID, p.ProjectID),
				SupplierName: m.supplierName(ctx, p.OwnerID, p.SupplierID),
				FromStatus:   p.FromStatus,
				ToStatus:     p.ToStatus,
				Confidence:   p.Confidence,
				ExpiresAt:    p.ExpiresAt,
			})
		}
	}
	return items, nil
}

func (m *Manager) projectName(ctx context.Context, ownerID, projectID int) string {
	p, err := m.deps.Projects.Get(ctx, ownerID, projectID)
	if err != nil {
		return fmt.Sprintf("project #%d", projectID)
	}
	return p.Name
}

func (m *Manager) supplierName(ctx context.Context, ownerID, supplierID int) string {
	s, err := m.deps.Suppliers.Get(ctx, ownerID, supplierID)
	if err != nil {
		return fmt.Sprintf("supplier #%d", supplierID)
	}
	return s.Name
}
