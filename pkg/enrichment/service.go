// Package enrichment scores discovered candidates with the classifier
// and applies the verdicts: irrelevant contacts are tagged out of the
// review queue, confident vendors are imported as suppliers, everything
// in between waits for a human.
package enrichment

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/plannerhq/vendorbook/pkg/candidates"
	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/scorer"
	"github.com/plannerhq/vendorbook/pkg/scrape"
	"github.com/plannerhq/vendorbook/pkg/store"
)

// freeMailDomains are consumer providers whose homepage says nothing
// about the sender.
var freeMailDomains = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"yahoo.com":      true,
	"hotmail.com":    true,
	"outlook.com":    true,
	"live.com":       true,
	"icloud.com":     true,
	"me.com":         true,
	"aol.com":        true,
	"proton.me":      true,
	"protonmail.com": true,
}

// Service handles candidate enrichment business logic
type Service struct {
	candidates *candidates.Service
	runs       store.RunStore
	classifier scorer.Classifier
	summarizer *scrape.Summarizer
	threshold  float64
	batchSize  int
	logger     *log.Logger
}

// NewService creates a new enrichment service. summarizer may be nil
// to skip website lookups.
func NewService(candidateSvc *candidates.Service, runStore store.RunStore, classifier scorer.Classifier, summarizer *scrape.Summarizer, threshold float64, batchSize int, logger *log.Logger) *Service {
	if threshold <= 0 || threshold > 1 {
		threshold = 0.75
	}
	if batchSize <= 0 {
		batchSize = 25
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		candidates: candidateSvc,
		runs:       runStore,
		classifier: classifier,
		summarizer: summarizer,
		threshold:  threshold,
		batchSize:  batchSize,
		logger:     logger,
	}
}

// Options tune one enrichment pass.
type Options struct {
	EventContext string
	ScrapeSites  bool
}

// Result summarizes one enrichment pass. Enriched counts every scored
// candidate regardless of verdict; Imported, Dismissed and NeedsReview
// split it by outcome.
type Result struct {
	Enriched    int                      `json:"enriched"`
	Imported    int                      `json:"imported"`
	Dismissed   int                      `json:"dismissed"`
	NeedsReview int                      `json:"needs_review"`
	Skipped     int                      `json:"skipped"`
	Failed      []candidates.BulkFailure `json:"failed,omitempty"`
}

// EnrichCandidates scores the given candidates one by one. A scorer
// failure marks that candidate failed and moves on; it never aborts
// the pass.
func (s *Service) EnrichCandidates(ctx context.Context, ownerID int, candidateIDs []string, opts Options) (*Result, error) {
	res := &Result{}
	for _, id := range candidateIDs {
		c, err := s.candidates.Get(ctx, ownerID, id)
		if err != nil {
			res.Failed = append(res.Failed, candidates.BulkFailure{ID: id, Error: err.Error()})
			continue
		}
		s.enrichOne(ctx, c, opts, res)
	}
	return res, nil
}

// EnrichRun scores the owner's unscored queue after a backfill run
// finishes, advancing the run's enrichment state and counters as it
// goes.
func (s *Service) EnrichRun(ctx context.Context, runID string) (*Result, error) {
	run, err := s.runs.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	if run.EnrichmentStatus == domain.EnrichmentCompleted {
		return &Result{}, nil
	}

	if run.EnrichmentStatus == domain.EnrichmentPending {
		run.EnrichmentStatus = domain.EnrichmentRunning
		run.UpdatedAt = time.Now().UTC()
		if err := s.runs.UpdateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("starting enrichment: %w", err)
		}
	}

	opts := Options{
		EventContext: run.EventContext,
		ScrapeSites:  s.summarizer != nil,
	}

	// Snapshot the unscored queue up front; counters flush to the run
	// after every chunk so progress survives a crash mid-pass.
	queue, _, err := s.candidates.List(ctx, run.OwnerID, candidates.Filter{
		Status:    domain.CandidateStatusNew,
		Relevance: domain.RelevanceUnknown,
	})
	if err != nil {
		return nil, fmt.Errorf("listing unscored candidates: %w", err)
	}

	total := &Result{}
	for start := 0; start < len(queue); start += s.batchSize {
		end := start + s.batchSize
		if end > len(queue) {
			end = len(queue)
		}

		res := &Result{}
		for _, c := range queue[start:end] {
			s.enrichOne(ctx, c, opts, res)
		}
		merge(total, res)

		run.EnrichedCount += res.Enriched
		run.AutoImportedCount += res.Imported
		run.UpdatedAt = time.Now().UTC()
		if err := s.runs.UpdateRun(ctx, run); err != nil {
			return nil, fmt.Errorf("updating enrichment counters: %w", err)
		}
	}

	run.EnrichmentStatus = domain.EnrichmentCompleted
	run.UpdatedAt = time.Now().UTC()
	if err := s.runs.UpdateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("completing enrichment: %w", err)
	}
	return total, nil
}

// enrichOne classifies a single candidate and applies the verdict.
// Already-decided and already-scored candidates are skipped so the
// operation stays idempotent.
func (s *Service) enrichOne(ctx context.Context, c *domain.SupplierCandidate, opts Options, res *Result) {
	if c.Status != domain.CandidateStatusNew || c.Enriched() {
		res.Skipped++
		return
	}

	verdict, err := s.classifier.Classify(ctx, c, s.scorerContext(ctx, c, opts))
	if err != nil {
		s.logger.Printf("⚠️ Enrichment failed for candidate %s: %v", c.ID, err)
		res.Failed = append(res.Failed, candidates.BulkFailure{ID: c.ID, Error: err.Error()})
		return
	}

	c.SuggestedName = verdict.SuggestedName
	c.SuggestedCategories = verdict.Categories
	c.PrimaryCategory = verdict.PrimaryCategory
	if raw, err := json.Marshal(verdict); err == nil {
		c.EnrichmentJSON = string(raw)
	}

	if !verdict.IsRelevant {
		c.Relevance = domain.NotRelevant()
		c.UpdatedAt = time.Now().UTC()
		if err := s.candidates.UpdateRecord(ctx, c); err != nil {
			res.Failed = append(res.Failed, candidates.BulkFailure{ID: c.ID, Error: err.Error()})
			return
		}
		res.Enriched++
		res.Dismissed++
		return
	}

	c.Relevance = domain.Relevant(verdict.Confidence)
	c.UpdatedAt = time.Now().UTC()
	if err := s.candidates.UpdateRecord(ctx, c); err != nil {
		res.Failed = append(res.Failed, candidates.BulkFailure{ID: c.ID, Error: err.Error()})
		return
	}

	if verdict.Confidence >= s.threshold {
		if _, err := s.candidates.Accept(ctx, c.OwnerID, c.ID, candidates.AcceptInput{}); err != nil {
			s.logger.Printf("⚠️ Auto-import failed for candidate %s: %v", c.ID, err)
			res.Failed = append(res.Failed, candidates.BulkFailure{ID: c.ID, Error: err.Error()})
			return
		}
		res.Enriched++
		res.Imported++
		return
	}

	res.Enriched++
	res.NeedsReview++
}

// scorerContext assembles the optional context given to the
// classifier: the event context of the run, the subjects the candidate
// was sighted under, and a homepage summary. Website lookups are
// skipped for consumer mail domains and failures only cost the
// summary.
func (s *Service) scorerContext(ctx context.Context, c *domain.SupplierCandidate, opts Options) scorer.Context {
	sc := scorer.Context{
		EventContext:   opts.EventContext,
		SampleSubjects: c.SampleSubjects,
	}
	if !opts.ScrapeSites || s.summarizer == nil {
		return sc
	}
	if c.Domain == "" || freeMailDomains[c.Domain] {
		return sc
	}

	summary, err := s.summarizer.Summarize(ctx, c.Domain)
	if err != nil {
		s.logger.Printf("⚠️ Website summary failed for %s: %v", c.Domain, err)
		return sc
	}
	sc.SiteSummary = summary.String()
	return sc
}

func merge(total, batch *Result) {
	total.Enriched += batch.Enriched
	total.Imported += batch.Imported
	total.Dismissed += batch.Dismissed
	total.NeedsReview += batch.NeedsReview
	total.Skipped += batch.Skipped
	total.Failed = append(total.Failed, batch.Failed...)
}
