package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/store"
)

func newRun(ownerID int, status domain.RunStatus) *domain.BackfillRun {
	now := time.Now().UTC()
	return &domain.BackfillRun{
		ID:               uuid.NewString(),
		OwnerID:          ownerID,
		Status:           status,
		TimeframeMonths:  12,
		EnrichmentStatus: domain.EnrichmentPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func TestCreateRun(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - first run for owner", func(t *testing.T) {
		s := New()
		err := s.CreateRun(ctx, newRun(1, domain.RunStatusPending))
		require.NoError(t, err)
	})

	t.Run("Error - second active run is rejected", func(t *testing.T) {
		s := New()
		require.NoError(t, s.CreateRun(ctx, newRun(1, domain.RunStatusRunning)))

		err := s.CreateRun(ctx, newRun(1, domain.RunStatusPending))
		require.Error(t, err)
		assert.True(t, domain.IsConflict(err))
	})

	t.Run("Success - new run allowed after terminal run", func(t *testing.T) {
		s := New()
		done := newRun(1, domain.RunStatusCompleted)
		require.NoError(t, s.CreateRun(ctx, done))

		err := s.CreateRun(ctx, newRun(1, domain.RunStatusPending))
		require.NoError(t, err)
	})

	t.Run("Success - active runs for different owners coexist", func(t *testing.T) {
		s := New()
		require.NoError(t, s.CreateRun(ctx, newRun(1, domain.RunStatusRunning)))
		require.NoError(t, s.CreateRun(ctx, newRun(2, domain.RunStatusRunning)))
	})

	t.Run("Success - concurrent starts admit exactly one active run", func(t *testing.T) {
		s := New()

		const attempts = 16
		errs := make(chan error, attempts)
		var wg sync.WaitGroup
		for i := 0; i < attempts; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- s.CreateRun(ctx, newRun(1, domain.RunStatusPending))
			}()
		}
		wg.Wait()
		close(errs)

		created := 0
		for err := range errs {
			if err == nil {
				created++
			} else {
				assert.True(t, domain.IsConflict(err))
			}
		}
		assert.Equal(t, 1, created)

		_, total, err := s.ListRuns(ctx, 1, attempts, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
	})
}

func TestUpdateRun(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - updates persist", func(t *testing.T) {
		s := New()
		run := newRun(1, domain.RunStatusPending)
		require.NoError(t, s.CreateRun(ctx, run))

		run.Status = domain.RunStatusRunning
		run.ScannedMessages = 250
		run.Cursor = "page-3"
		require.NoError(t, s.UpdateRun(ctx, run))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.RunStatusRunning, got.Status)
		assert.Equal(t, 250, got.ScannedMessages)
		assert.Equal(t, "page-3", got.Cursor)
	})

	t.Run("Error - unknown run", func(t *testing.T) {
		s := New()
		err := s.UpdateRun(ctx, newRun(1, domain.RunStatusRunning))
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("Success - returned run is a copy", func(t *testing.T) {
		s := New()
		run := newRun(1, domain.RunStatusPending)
		require.NoError(t, s.CreateRun(ctx, run))

		got, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		got.ScannedMessages = 999

		again, err := s.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, again.ScannedMessages)
	})
}

func TestListRunsByStatus(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.CreateRun(ctx, newRun(1, domain.RunStatusRunning)))
	require.NoError(t, s.CreateRun(ctx, newRun(2, domain.RunStatusPending)))
	require.NoError(t, s.CreateRun(ctx, newRun(3, domain.RunStatusCompleted)))

	active, err := s.ListRunsByStatus(ctx, domain.RunStatusPending, domain.RunStatusRunning)
	require.NoError(t, err)
	assert.Len(t, active, 2)
}

func TestUpsertSighting(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

	t.Run("Success - first sighting creates candidate", func(t *testing.T) {
		s := New()
		c, created, err := s.UpsertSighting(ctx, store.SightingInput{
			OwnerID:     1,
			Email:       "info@blooms.example.com",
			Domain:      "blooms.example.com",
			DisplayName: "Bloom & Stem",
			Source:      domain.SourceBackfill,
			SeenAt:      base,
		})
		require.NoError(t, err)
		assert.True(t, created)
		assert.NotEmpty(t, c.ID)
		assert.Equal(t, domain.CandidateStatusNew, c.Status)
		assert.Equal(t, 1, c.MessageCount)
		assert.True(t, c.Relevance.IsUnknown())
	})

	t.Run("Success - repeat sighting bumps counters only", func(t *testing.T) {
		s := New()
		first, created, err := s.UpsertSighting(ctx, store.SightingInput{
			OwnerID: 1, Email: "info@blooms.example.com", SeenAt: base, Source: domain.SourceBackfill,
		})
		require.NoError(t, err)
		require.True(t, created)

		second, created, err := s.UpsertSighting(ctx, store.SightingInput{
			OwnerID: 1, Email: "INFO@Blooms.example.com", SeenAt: base.Add(48 * time.Hour), Source: domain.SourceBackfill,
		})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, 2, second.MessageCount)
		assert.Equal(t, base, second.FirstSeenAt)
		assert.Equal(t, base.Add(48*time.Hour), second.LastSeenAt)
	})

	t.Run("Success - display name fills in once", func(t *testing.T) {
		s := New()
		_, _, err := s.UpsertSighting(ctx, store.SightingInput{
			OwnerID: 1, Email: "dj@beats.example.com", SeenAt: base, Source: domain.SourceBackfill,
		})
		require.NoError(t, err)

		c, _, err := s.UpsertSighting(ctx, store.SightingInput{
			OwnerID: 1, Email: "dj@beats.example.com", DisplayName: "DJ Mora", SeenAt: base.Add(time.Hour), Source: domain.SourceBackfill,
		})
		require.NoError(t, err)
		assert.Equal(t, "DJ Mora", c.DisplayName)

		c, _, err = s.UpsertSighting(ctx, store.SightingInput{
			OwnerID: 1, Email: "dj@beats.example.com", DisplayName: "Someone Else", SeenAt: base.Add(2 * time.Hour), Source: domain.SourceBackfill,
		})
		require.NoError(t, err)
		assert.Equal(t, "DJ Mora", c.DisplayName)
	})

	t.Run("Success - same email for another owner is separate", func(t *testing.T) {
		s := New()
		_, created, err := s.UpsertSighting(ctx, store.SightingInput{
			OwnerID: 1, Email: "info@blooms.example.com", SeenAt: base, Source: domain.SourceBackfill,
		})
		require.NoError(t, err)
		require.True(t, created)

		_, created, err = s.UpsertSighting(ctx, store.SightingInput{
			OwnerID: 2, Email: "info@blooms.example.com", SeenAt: base, Source: domain.SourceBackfill,
		})
		require.NoError(t, err)
		assert.True(t, created)
	})
}

func TestListCandidates(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s := New()

	seed := func(email string, seenAt time.Time) *domain.SupplierCandidate {
		c, _, err := s.UpsertSighting(ctx, store.SightingInput{
			OwnerID: 1, Email: email, SeenAt: seenAt, Source: domain.SourceBackfill,
		})
		require.NoError(t, err)
		return c
	}

	flowers := seed("info@blooms.example.com", base.Add(3*time.Hour))
	catering := seed("events@tasty.example.com", base.Add(2*time.Hour))
	newsletter := seed("news@spamcorp.example.com", base.Add(time.Hour))

	flowers.Relevance = domain.Relevant(0.9)
	require.NoError(t, s.UpdateCandidate(ctx, flowers))
	newsletter.Relevance = domain.NotRelevant()
	require.NoError(t, s.UpdateCandidate(ctx, newsletter))
	catering.Status = domain.CandidateStatusAccepted
	require.NoError(t, s.UpdateCandidate(ctx, catering))

	t.Run("Success - default surface hides not relevant", func(t *testing.T) {
		got, total, err := s.ListCandidates(ctx, 1, store.CandidateFilter{ExcludeNotRelevant: true})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, got, 2)
		assert.Equal(t, "info@blooms.example.com", got[0].Email)
	})

	t.Run("Success - status filter", func(t *testing.T) {
		got, total, err := s.ListCandidates(ctx, 1, store.CandidateFilter{Status: domain.CandidateStatusAccepted})
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, got, 1)
		assert.Equal(t, "events@tasty.example.com", got[0].Email)
	})

	t.Run("Success - relevance filter finds irrelevant", func(t *testing.T) {
		got, _, err := s.ListCandidates(ctx, 1, store.CandidateFilter{Relevance: domain.RelevanceNotRelevant})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "news@spamcorp.example.com", got[0].Email)
	})

	t.Run("Success - search matches email substring", func(t *testing.T) {
		got, _, err := s.ListCandidates(ctx, 1, store.CandidateFilter{Search: "blooms"})
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "info@blooms.example.com", got[0].Email)
	})

	t.Run("Success - pagination windows results", func(t *testing.T) {
		got, total, err := s.ListCandidates(ctx, 1, store.CandidateFilter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		require.Len(t, got, 2)
		assert.Equal(t, "events@tasty.example.com", got[0].Email)
	})

	t.Run("Success - other owner sees nothing", func(t *testing.T) {
		got, total, err := s.ListCandidates(ctx, 2, store.CandidateFilter{})
		require.NoError(t, err)
		assert.Equal(t, 0, total)
		assert.Empty(t, got)
	})
}

func TestCountCandidates(t *testing.T) {
	ctx := context.Background()
	s := New()
	base := time.Now().UTC()

	for i, email := range []string{"a@x.example.com", "b@x.example.com", "c@x.example.com"} {
		_, _, err := s.UpsertSighting(ctx, store.SightingInput{
			OwnerID: 1, Email: email, SeenAt: base.Add(time.Duration(i) * time.Minute), Source: domain.SourceBackfill,
		})
		require.NoError(t, err)
	}
	c, err := s.FindCandidateByEmail(ctx, 1, "a@x.example.com")
	require.NoError(t, err)
	c.Status = domain.CandidateStatusDismissed
	require.NoError(t, s.UpdateCandidate(ctx, c))

	counts, err := s.CountCandidates(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[domain.CandidateStatusNew])
	assert.Equal(t, 1, counts[domain.CandidateStatusDismissed])
}

func TestStatusOverrides(t *testing.T) {
	ctx := context.Background()
	s := New()

	overrides, err := s.GetStatusOverrides(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, overrides)

	require.NoError(t, s.SetStatusOverride(ctx, 1, "negotiating", false))
	require.NoError(t, s.SetStatusOverride(ctx, 1, "booked", true))

	overrides, err = s.GetStatusOverrides(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"negotiating": false, "booked": true}, overrides)

	other, err := s.GetStatusOverrides(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, other)
}

func newProposal(ownerID, projectID, supplierID int, expiresAt time.Time) *domain.StatusProposal {
	return &domain.StatusProposal{
		ID:         uuid.NewString(),
		OwnerID:    ownerID,
		ProjectID:  projectID,
		SupplierID: supplierID,
		ToStatus:   "quote-received",
		Confidence: 0.75,
		Resolution: domain.ProposalPending,
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  expiresAt,
	}
}

func TestProposals(t *testing.T) {
	ctx := context.Background()
	future := time.Now().UTC().Add(14 * 24 * time.Hour)

	t.Run("Success - newer proposal replaces pending pair", func(t *testing.T) {
		s := New()
		first := newProposal(1, 10, 20, future)
		require.NoError(t, s.UpsertProposal(ctx, first))

		second := newProposal(1, 10, 20, future)
		second.ToStatus = "booked"
		require.NoError(t, s.UpsertProposal(ctx, second))

		pending, err := s.ListPendingProposals(ctx, 1, time.Now().UTC())
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, second.ID, pending[0].ID)
		assert.Equal(t, "booked", pending[0].ToStatus)

		_, err = s.GetProposal(ctx, first.ID)
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("Success - resolved proposal survives replacement", func(t *testing.T) {
		s := New()
		resolved := newProposal(1, 10, 20, future)
		resolved.Resolution = domain.ProposalAccepted
		require.NoError(t, s.UpsertProposal(ctx, resolved))

		fresh := newProposal(1, 10, 20, future)
		require.NoError(t, s.UpsertProposal(ctx, fresh))

		got, err := s.GetProposal(ctx, resolved.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.ProposalAccepted, got.Resolution)
	})

	t.Run("Success - expired proposals leave the pending queue", func(t *testing.T) {
		s := New()
		expired := newProposal(1, 10, 20, time.Now().UTC().Add(-time.Hour))
		require.NoError(t, s.UpsertProposal(ctx, expired))
		live := newProposal(1, 11, 20, future)
		require.NoError(t, s.UpsertProposal(ctx, live))

		pending, err := s.ListPendingProposals(ctx, 1, time.Now().UTC())
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, live.ID, pending[0].ID)
	})

	t.Run("Success - expiry sweep removes stale pending rows", func(t *testing.T) {
		s := New()
		expired := newProposal(1, 10, 20, time.Now().UTC().Add(-time.Hour))
		require.NoError(t, s.UpsertProposal(ctx, expired))
		live := newProposal(1, 11, 20, future)
		require.NoError(t, s.UpsertProposal(ctx, live))

		removed, err := s.DeleteExpiredProposals(ctx, time.Now().UTC())
		require.NoError(t, err)
		assert.Equal(t, 1, removed)

		_, err = s.GetProposal(ctx, expired.ID)
		assert.True(t, domain.IsNotFound(err))
		_, err = s.GetProposal(ctx, live.ID)
		require.NoError(t, err)
	})
}

func TestThreads(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Success - upsert merges participants and counters", func(t *testing.T) {
		s := New()
		require.NoError(t, s.UpsertThread(ctx, &domain.ThreadSummary{
			OwnerID:        1,
			ThreadID:       "t-1",
			Subject:        "Quote for Rivera wedding",
			Participants:   []string{"me@planner.example.com", "info@blooms.example.com"},
			FirstMessageAt: base,
			LastMessageAt:  base,
			MessageCount:   1,
		}))
		require.NoError(t, s.UpsertThread(ctx, &domain.ThreadSummary{
			OwnerID:        1,
			ThreadID:       "t-1",
			Participants:   []string{"info@blooms.example.com", "owner@blooms.example.com"},
			FirstMessageAt: base,
			LastMessageAt:  base.Add(2 * time.Hour),
			MessageCount:   3,
		}))

		got, err := s.GetThread(ctx, 1, "t-1")
		require.NoError(t, err)
		assert.Equal(t, "Quote for Rivera wedding", got.Subject)
		assert.Len(t, got.Participants, 3)
		assert.Equal(t, 3, got.MessageCount)
		assert.Equal(t, base.Add(2*time.Hour), got.LastMessageAt)
		assert.Equal(t, domain.ThreadLinkPending, got.LinkState)
	})

	t.Run("Success - linked threads drop out of needs-link", func(t *testing.T) {
		s := New()
		require.NoError(t, s.UpsertThread(ctx, &domain.ThreadSummary{
			OwnerID: 1, ThreadID: "t-1", FirstMessageAt: base, LastMessageAt: base, MessageCount: 1,
		}))
		require.NoError(t, s.UpsertThread(ctx, &domain.ThreadSummary{
			OwnerID: 1, ThreadID: "t-2", FirstMessageAt: base, LastMessageAt: base.Add(time.Hour), MessageCount: 1,
		}))

		thread, err := s.GetThread(ctx, 1, "t-1")
		require.NoError(t, err)
		projectID := 42
		thread.ProjectID = &projectID
		thread.LinkState = domain.ThreadLinkLinked
		require.NoError(t, s.UpdateThread(ctx, thread))

		pending, total, err := s.ListThreadsNeedingLink(ctx, 1, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, 1, total)
		require.Len(t, pending, 1)
		assert.Equal(t, "t-2", pending[0].ThreadID)
	})
}

func TestSuppliersAndStatusHistory(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("Success - create assigns sequential ids", func(t *testing.T) {
		s := New()
		first := &domain.Supplier{OwnerID: 1, Name: "Bloom & Stem", CreatedAt: now, UpdatedAt: now}
		second := &domain.Supplier{OwnerID: 1, Name: "Tasty Catering", CreatedAt: now, UpdatedAt: now}
		require.NoError(t, s.CreateSupplier(ctx, first))
		require.NoError(t, s.CreateSupplier(ctx, second))
		assert.Equal(t, 1, first.ID)
		assert.Equal(t, 2, second.ID)
	})

	t.Run("Success - status change appends history", func(t *testing.T) {
		s := New()
		sup := &domain.Supplier{OwnerID: 1, Name: "Bloom & Stem", CreatedAt: now, UpdatedAt: now}
		require.NoError(t, s.CreateSupplier(ctx, sup))
		require.NoError(t, s.AttachSupplier(ctx, &domain.ProjectSupplier{
			ProjectID: 7, SupplierID: sup.ID, StatusSlug: "contacted", UpdatedAt: now,
		}))

		require.NoError(t, s.SetProjectSupplierStatus(ctx, 7, sup.ID, "quote-requested", "user"))
		require.NoError(t, s.SetProjectSupplierStatus(ctx, 7, sup.ID, "quote-received", "proposal:p-1"))

		ps, err := s.GetProjectSupplier(ctx, 7, sup.ID)
		require.NoError(t, err)
		assert.Equal(t, "quote-received", ps.StatusSlug)

		history, err := s.ListStatusChanges(ctx, 7, sup.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "contacted", history[0].FromStatus)
		assert.Equal(t, "quote-requested", history[0].ToStatus)
		assert.Equal(t, "user", history[0].Actor)
		assert.Equal(t, "proposal:p-1", history[1].Actor)
	})

	t.Run("Error - status change without relationship", func(t *testing.T) {
		s := New()
		err := s.SetProjectSupplierStatus(ctx, 7, 99, "booked", "user")
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("Error - double attach conflicts", func(t *testing.T) {
		s := New()
		sup := &domain.Supplier{OwnerID: 1, Name: "Bloom & Stem", CreatedAt: now, UpdatedAt: now}
		require.NoError(t, s.CreateSupplier(ctx, sup))
		ps := &domain.ProjectSupplier{ProjectID: 7, SupplierID: sup.ID, StatusSlug: "contacted", UpdatedAt: now}
		require.NoError(t, s.AttachSupplier(ctx, ps))
		err := s.AttachSupplier(ctx, ps)
		assert.True(t, domain.IsConflict(err))
	})

	t.Run("Success - find supplier by email is case insensitive", func(t *testing.T) {
		s := New()
		sup := &domain.Supplier{OwnerID: 1, Name: "Bloom & Stem", Email: "info@blooms.example.com", CreatedAt: now, UpdatedAt: now}
		require.NoError(t, s.CreateSupplier(ctx, sup))

		got, err := s.FindSupplierByEmail(ctx, 1, "INFO@Blooms.example.com")
		require.NoError(t, err)
		assert.Equal(t, sup.ID, got.ID)
	})
}
