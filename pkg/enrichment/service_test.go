package enrichment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plannerhq/vendorbook/pkg/candidates"
	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/scorer"
	"github.com/plannerhq/vendorbook/pkg/store/memory"
	"github.com/plannerhq/vendorbook/pkg/suppliers"
)

const testOwner = 1

type fixture struct {
	svc        *Service
	candidates *candidates.Service
	classifier *scorer.FakeClassifier
	store      *memory.Store
}

func newFixture() *fixture {
	st := memory.New()
	candSvc := candidates.NewService(st, suppliers.NewService(st, st), nil)
	classifier := scorer.NewFakeClassifier()
	return &fixture{
		svc:        NewService(candSvc, st, classifier, nil, 0.75, 2, nil),
		candidates: candSvc,
		classifier: classifier,
		store:      st,
	}
}

func (f *fixture) seed(t *testing.T, email string) *domain.SupplierCandidate {
	t.Helper()

	c, _, err := f.candidates.RecordSighting(context.Background(), testOwner, email, "", "Vendor inquiry", domain.SourceBackfill, time.Now().UTC())
	require.NoError(t, err)
	return c
}

func TestEnrichCandidates(t *testing.T) {
	ctx := context.Background()

	t.Run("Success - confident vendor is auto-imported", func(t *testing.T) {
		f := newFixture()
		c := f.seed(t, "info@blooms.example.com")
		f.classifier.Script(c.Email, scorer.Classification{
			IsRelevant:      true,
			Confidence:      0.92,
			SuggestedName:   "Bloom & Co Florals",
			Categories:      []string{"florals"},
			PrimaryCategory: "florals",
		})

		res, err := f.svc.EnrichCandidates(ctx, testOwner, []string{c.ID}, Options{})

		require.NoError(t, err)
		assert.Equal(t, 1, res.Enriched)
		assert.Equal(t, 1, res.Imported)
		assert.Empty(t, res.Failed)

		got, err := f.candidates.Get(ctx, testOwner, c.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.CandidateStatusAccepted, got.Status)
		assert.True(t, got.Relevance.IsRelevant())
		conf, ok := got.Relevance.Confidence()
		require.True(t, ok)
		assert.InDelta(t, 0.92, conf, 0.001)
		assert.NotEmpty(t, got.EnrichmentJSON)
		require.NotNil(t, got.SupplierID)

		sup, err := f.store.GetSupplier(ctx, *got.SupplierID)
		require.NoError(t, err)
		assert.Equal(t, "Bloom & Co Florals", sup.Name)
		assert.Equal(t, []string{"florals"}, sup.Categories)
	})

	t.Run("Success - classifier sees event context and sample subjects", func(t *testing.T) {
		f := newFixture()
		c := f.seed(t, "info@blooms.example.com")
		_, _, err := f.candidates.RecordSighting(ctx, testOwner, c.Email, "", "Centerpiece options", domain.SourceBackfill, time.Now().UTC())
		require.NoError(t, err)
		f.classifier.Script(c.Email, scorer.Classification{IsRelevant: true, Confidence: 0.9})

		_, err = f.svc.EnrichCandidates(ctx, testOwner, []string{c.ID}, Options{EventContext: "spring weddings"})

		require.NoError(t, err)
		sc := f.classifier.ContextFor(c.Email)
		assert.Equal(t, "spring weddings", sc.EventContext)
		assert.Equal(t, []string{"Vendor inquiry", "Centerpiece options"}, sc.SampleSubjects)
	})

	t.Run("Success - confidence at the threshold imports", func(t *testing.T) {
		f := newFixture()
		c := f.seed(t, "info@blooms.example.com")
		f.classifier.Script(c.Email, scorer.Classification{IsRelevant: true, Confidence: 0.75, SuggestedName: "Bloom & Co"})

		res, err := f.svc.EnrichCandidates(ctx, testOwner, []string{c.ID}, Options{})

		require.NoError(t, err)
		assert.Equal(t, 1, res.Imported)
	})

	t.Run("Success - uncertain vendor waits for review", func(t *testing.T) {
		f := newFixture()
		c := f.seed(t, "hello@snapshots.example.com")
		f.classifier.Script(c.Email, scorer.Classification{IsRelevant: true, Confidence: 0.6, SuggestedName: "Snapshot Studio"})

		res, err := f.svc.EnrichCandidates(ctx, testOwner, []string{c.ID}, Options{})

		require.NoError(t, err)
		assert.Equal(t, 1, res.Enriched)
		assert.Equal(t, 1, res.NeedsReview)
		assert.Zero(t, res.Imported)

		got, err := f.candidates.Get(ctx, testOwner, c.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.CandidateStatusNew, got.Status)
		assert.True(t, got.Relevance.IsRelevant())
		assert.Equal(t, "Snapshot Studio", got.SuggestedName)
		assert.Nil(t, got.SupplierID)
	})

	t.Run("Success - irrelevant contact is tagged out but keeps its status", func(t *testing.T) {
		f := newFixture()
		c := f.seed(t, "newsletter@deals.example.com")
		f.classifier.Script(c.Email, scorer.Classification{IsRelevant: false, Confidence: 0.9, Reasoning: "marketing sender"})

		res, err := f.svc.EnrichCandidates(ctx, testOwner, []string{c.ID}, Options{})

		require.NoError(t, err)
		assert.Equal(t, 1, res.Dismissed)

		got, err := f.candidates.Get(ctx, testOwner, c.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.CandidateStatusNew, got.Status)
		assert.True(t, got.Relevance.IsNotRelevant())

		// Gone from the default review surface.
		_, total, err := f.candidates.List(ctx, testOwner, candidates.Filter{})
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("Success - one scorer failure never aborts the batch", func(t *testing.T) {
		f := newFixture()
		bad := f.seed(t, "flaky@vendor.example.com")
		good := f.seed(t, "info@blooms.example.com")
		f.classifier.ScriptError(bad.Email, domain.NewScorerError("model unavailable", nil))
		f.classifier.Script(good.Email, scorer.Classification{IsRelevant: true, Confidence: 0.9})

		res, err := f.svc.EnrichCandidates(ctx, testOwner, []string{bad.ID, good.ID}, Options{})

		require.NoError(t, err)
		assert.Equal(t, 1, res.Imported)
		require.Len(t, res.Failed, 1)
		assert.Equal(t, bad.ID, res.Failed[0].ID)
		assert.Contains(t, res.Failed[0].Error, "model unavailable")

		// The failed candidate is untouched and can be retried.
		got, err := f.candidates.Get(ctx, testOwner, bad.ID)
		require.NoError(t, err)
		assert.True(t, got.Relevance.IsUnknown())
	})

	t.Run("Success - enrichment is idempotent per candidate", func(t *testing.T) {
		f := newFixture()
		c := f.seed(t, "hello@snapshots.example.com")
		f.classifier.Script(c.Email, scorer.Classification{IsRelevant: true, Confidence: 0.6})

		_, err := f.svc.EnrichCandidates(ctx, testOwner, []string{c.ID}, Options{})
		require.NoError(t, err)

		res, err := f.svc.EnrichCandidates(ctx, testOwner, []string{c.ID}, Options{})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Skipped)
		assert.Zero(t, res.Enriched)
		assert.Len(t, f.classifier.Calls(), 1)
	})

	t.Run("Success - decided candidates are skipped", func(t *testing.T) {
		f := newFixture()
		c := f.seed(t, "info@blooms.example.com")
		_, err := f.candidates.Dismiss(ctx, testOwner, c.ID)
		require.NoError(t, err)

		res, err := f.svc.EnrichCandidates(ctx, testOwner, []string{c.ID}, Options{})

		require.NoError(t, err)
		assert.Equal(t, 1, res.Skipped)
		assert.Empty(t, f.classifier.Calls())
	})

	t.Run("Success - unknown id is reported as failed", func(t *testing.T) {
		f := newFixture()

		res, err := f.svc.EnrichCandidates(ctx, testOwner, []string{"no-such-id"}, Options{})

		require.NoError(t, err)
		require.Len(t, res.Failed, 1)
		assert.Equal(t, "no-such-id", res.Failed[0].ID)
	})
}

func TestEnrichRun(t *testing.T) {
	ctx := context.Background()

	seedRun := func(t *testing.T, f *fixture) *domain.BackfillRun {
		t.Helper()
		run := &domain.BackfillRun{
			ID:               "run-1",
			OwnerID:          testOwner,
			Status:           domain.RunStatusCompleted,
			TimeframeMonths:  6,
			EventContext:     "spring weddings",
			EnrichmentStatus: domain.EnrichmentPending,
			CreatedAt:        time.Now().UTC(),
			UpdatedAt:        time.Now().UTC(),
		}
		require.NoError(t, f.store.CreateRun(ctx, run))
		return run
	}

	t.Run("Success - scores the whole queue and completes the run", func(t *testing.T) {
		f := newFixture()
		run := seedRun(t, f)

		a := f.seed(t, "info@blooms.example.com")
		b := f.seed(t, "hello@snapshots.example.com")
		c := f.seed(t, "newsletter@deals.example.com")
		f.classifier.Script(a.Email, scorer.Classification{IsRelevant: true, Confidence: 0.9, SuggestedName: "Bloom & Co"})
		f.classifier.Script(b.Email, scorer.Classification{IsRelevant: true, Confidence: 0.8, SuggestedName: "Snapshot Studio"})
		f.classifier.Script(c.Email, scorer.Classification{IsRelevant: false, Confidence: 0.9})

		res, err := f.svc.EnrichRun(ctx, run.ID)

		require.NoError(t, err)
		assert.Equal(t, 3, res.Enriched)
		assert.Equal(t, 2, res.Imported)
		assert.Equal(t, 1, res.Dismissed)

		got, err := f.store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.EnrichmentCompleted, got.EnrichmentStatus)
		assert.Equal(t, 3, got.EnrichedCount)
		assert.Equal(t, 2, got.AutoImportedCount)
	})

	t.Run("Success - chunked passes persist progress between chunks", func(t *testing.T) {
		f := newFixture()
		run := seedRun(t, f)

		// Five candidates against a batch size of two.
		emails := []string{"a@v.example.com", "b@v.example.com", "c@v.example.com", "d@v.example.com", "e@v.example.com"}
		for _, email := range emails {
			c := f.seed(t, email)
			f.classifier.Script(c.Email, scorer.Classification{IsRelevant: true, Confidence: 0.9})
		}

		res, err := f.svc.EnrichRun(ctx, run.ID)

		require.NoError(t, err)
		assert.Equal(t, 5, res.Enriched)
		assert.Equal(t, 5, res.Imported)
		assert.Len(t, f.classifier.Calls(), 5)
	})

	t.Run("Success - completed enrichment is a no-op", func(t *testing.T) {
		f := newFixture()
		run := seedRun(t, f)
		run.EnrichmentStatus = domain.EnrichmentCompleted
		require.NoError(t, f.store.UpdateRun(ctx, run))
		f.seed(t, "info@blooms.example.com")

		res, err := f.svc.EnrichRun(ctx, run.ID)

		require.NoError(t, err)
		assert.Zero(t, res.Enriched)
		assert.Empty(t, f.classifier.Calls())
	})

	t.Run("Success - scorer failures leave candidates retryable", func(t *testing.T) {
		f := newFixture()
		run := seedRun(t, f)
		bad := f.seed(t, "flaky@vendor.example.com")
		good := f.seed(t, "info@blooms.example.com")
		f.classifier.ScriptError(bad.Email, domain.NewScorerError("model unavailable", nil))
		f.classifier.Script(good.Email, scorer.Classification{IsRelevant: true, Confidence: 0.9})

		res, err := f.svc.EnrichRun(ctx, run.ID)

		require.NoError(t, err)
		assert.Equal(t, 1, res.Enriched)
		require.Len(t, res.Failed, 1)

		got, err := f.store.GetRun(ctx, run.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.EnrichmentCompleted, got.EnrichmentStatus)
		assert.Equal(t, 1, got.EnrichedCount)
	})

	t.Run("Error - unknown run", func(t *testing.T) {
		f := newFixture()

		_, err := f.svc.EnrichRun(ctx, "no-such-run")

		assert.True(t, domain.IsNotFound(err))
	})
}
