// Package candidates owns the review queue of contacts discovered in
// the mailbox: sighting upserts, the review surface and the
// accept/dismiss/merge decisions that move contacts into the supplier
// book.
package candidates

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/plannerhq/vendorbook/pkg/cache"
	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/mailbox"
	"github.com/plannerhq/vendorbook/pkg/store"
	"github.com/plannerhq/vendorbook/pkg/suppliers"
)

const countsCacheTTL = time.Minute

// Service handles candidate business logic
type Service struct {
	candidates store.CandidateStore
	suppliers  *suppliers.Service
	cache      *cache.Client
}

// NewService creates a new candidate service. cacheClient may be nil.
func NewService(candidateStore store.CandidateStore, supplierSvc *suppliers.Service, cacheClient *cache.Client) *Service {
	return &Service{
		candidates: candidateStore,
		suppliers:  supplierSvc,
		cache:      cacheClient,
	}
}

// Filter narrows List. Zero values mean "any".
type Filter struct {
	Status    domain.CandidateStatus
	Relevance domain.RelevanceState
	Source    domain.CandidateSource
	Search    string
	// IncludeIrrelevant surfaces candidates the classifier tagged
	// not_relevant, which the default review view hides.
	IncludeIrrelevant bool
	Limit             int
	Offset            int
}

// AcceptInput carries the optional overrides applied when promoting a
// candidate to a supplier.
type AcceptInput struct {
	Name       string
	Categories []string
	Phone      string
	Notes      string
	ProjectID  *int
}

// BulkFailure is one failed item of a bulk action.
type BulkFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// RecordSighting upserts a candidate for one mailbox sighting. The
// message subject joins the candidate's sample subjects, which later
// feed the classifier. The bool reports whether a new candidate row
// was created.
func (s *Service) RecordSighting(ctx context.Context, ownerID int, email, displayName, subject string, source domain.CandidateSource, seenAt time.Time) (*domain.SupplierCandidate, bool, error) {
	email = mailbox.NormalizeEmail(email)
	if email == "" {
		return nil, false, domain.NewValidationError("candidate email is required")
	}
	if seenAt.IsZero() {
		seenAt = time.Now().UTC()
	}

	c, created, err := s.candidates.UpsertSighting(ctx, store.SightingInput{
		OwnerID:     ownerID,
		Email:       email,
		Domain:      mailbox.DomainOf(email),
		DisplayName: strings.TrimSpace(displayName),
		Subject:     strings.TrimSpace(subject),
		Source:      source,
		SeenAt:      seenAt.UTC(),
	})
	if err != nil {
		return nil, false, fmt.Errorf("recording sighting: %w", err)
	}

	s.invalidate(ctx, ownerID)
	return c, created, nil
}

// List returns the owner's candidates. Without an explicit status or
// relevance filter the default review surface applies: everything but
// contacts tagged not_relevant.
func (s *Service) List(ctx context.Context, ownerID int, f Filter) ([]*domain.SupplierCandidate, int, error) {
	storeFilter := store.CandidateFilter{
		Status:    f.Status,
		Relevance: f.Relevance,
		Source:    f.Source,
		Search:    strings.TrimSpace(f.Search),
		Limit:     f.Limit,
		Offset:    f.Offset,
	}

	reviewSurface := f.Status == "" || f.Status == domain.CandidateStatusNew
	if reviewSurface && f.Relevance == "" && !f.IncludeIrrelevant {
		storeFilter.ExcludeNotRelevant = true
	}

	return s.candidates.ListCandidates(ctx, ownerID, storeFilter)
}

// Get returns one candidate, scoped to its owner.
func (s *Service) Get(ctx context.Context, ownerID int, candidateID string) (*domain.SupplierCandidate, error) {
	c, err := s.candidates.GetCandidate(ctx, candidateID)
	if err != nil {
		return nil, err
	}
	if c.OwnerID != ownerID {
		return nil, domain.NewForbiddenError("candidate belongs to another account")
	}
	return c, nil
}

// Counts returns per-status totals for the review header, cached
// briefly.
func (s *Service) Counts(ctx context.Context, ownerID int) (map[domain.CandidateStatus]int, error) {
	key := countsCacheKey(ownerID)
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, key); err == nil {
			var counts map[domain.CandidateStatus]int
			if err := json.Unmarshal([]byte(raw), &counts); err == nil {
				return counts, nil
			}
		}
	}

	counts, err := s.candidates.CountCandidates(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("counting candidates: %w", err)
	}

	if s.cache != nil {
		if data, err := json.Marshal(counts); err == nil {
			_ = s.cache.Set(ctx, key, string(data), countsCacheTTL)
		}
	}
	return counts, nil
}

// Accept promotes a NEW candidate into the supplier book, creating or
// reusing a supplier with the same email, and optionally attaches it
// to a project.
func (s *Service) Accept(ctx context.Context, ownerID int, candidateID string, in AcceptInput) (*domain.SupplierCandidate, error) {
	c, err := s.Get(ctx, ownerID, candidateID)
	if err != nil {
		return nil, err
	}
	if err := requireNew(c); err != nil {
		return nil, err
	}

	name := firstNonEmpty(in.Name, c.SuggestedName, c.DisplayName, c.Email)
	categories := in.Categories
	if len(categories) == 0 {
		categories = c.SuggestedCategories
	}

	sup, _, err := s.suppliers.FindOrCreate(ctx, ownerID, suppliers.CreateInput{
		Name:       name,
		Email:      c.Email,
		Phone:      in.Phone,
		Categories: categories,
		Source:     "import",
		Notes:      in.Notes,
	})
	if err != nil {
		return nil, err
	}

	c.Status = domain.CandidateStatusAccepted
	c.SupplierID = &sup.ID
	c.UpdatedAt = time.Now().UTC()
	if err := s.candidates.UpdateCandidate(ctx, c); err != nil {
		return nil, fmt.Errorf("accepting candidate: %w", err)
	}

	if in.ProjectID != nil {
		if _, err := s.suppliers.Attach(ctx, ownerID, *in.ProjectID, sup.ID, ""); err != nil && !domain.IsConflict(err) {
			return nil, err
		}
	}

	s.invalidate(ctx, ownerID)
	return c, nil
}

// Dismiss marks a NEW candidate as reviewed and unwanted.
func (s *Service) Dismiss(ctx context.Context, ownerID int, candidateID string) (*domain.SupplierCandidate, error) {
	c, err := s.Get(ctx, ownerID, candidateID)
	if err != nil {
		return nil, err
	}
	if err := requireNew(c); err != nil {
		return nil, err
	}

	c.Status = domain.CandidateStatusDismissed
	c.UpdatedAt = time.Now().UTC()
	if err := s.candidates.UpdateCandidate(ctx, c); err != nil {
		return nil, fmt.Errorf("dismissing candidate: %w", err)
	}

	s.invalidate(ctx, ownerID)
	return c, nil
}

// Merge folds a NEW candidate into an existing supplier instead of
// creating a duplicate.
func (s *Service) Merge(ctx context.Context, ownerID int, candidateID string, supplierID int) (*domain.SupplierCandidate, error) {
	c, err := s.Get(ctx, ownerID, candidateID)
	if err != nil {
		return nil, err
	}
	if err := requireNew(c); err != nil {
		return nil, err
	}

	if _, err := s.suppliers.Get(ctx, ownerID, supplierID); err != nil {
		return nil, err
	}

	c.Status = domain.CandidateStatusMerged
	c.SupplierID = &supplierID
	c.UpdatedAt = time.Now().UTC()
	if err := s.candidates.UpdateCandidate(ctx, c); err != nil {
		return nil, fmt.Errorf("merging candidate: %w", err)
	}

	s.invalidate(ctx, ownerID)
	return c, nil
}

// BulkAccept accepts each candidate independently; one failure never
// aborts the rest.
func (s *Service) BulkAccept(ctx context.Context, ownerID int, candidateIDs []string) (int, []BulkFailure) {
	return s.bulk(candidateIDs, func(id string) error {
		_, err := s.Accept(ctx, ownerID, id, AcceptInput{})
		return err
	})
}

// BulkDismiss dismisses each candidate independently.
func (s *Service) BulkDismiss(ctx context.Context, ownerID int, candidateIDs []string) (int, []BulkFailure) {
	return s.bulk(candidateIDs, func(id string) error {
		_, err := s.Dismiss(ctx, ownerID, id)
		return err
	})
}

func (s *Service) bulk(ids []string, action func(id string) error) (int, []BulkFailure) {
	processed := 0
	var failures []BulkFailure
	for _, id := range ids {
		if err := action(id); err != nil {
			failures = append(failures, BulkFailure{ID: id, Error: err.Error()})
			continue
		}
		processed++
	}
	return processed, failures
}

// UpdateRecord persists candidate field changes made by trusted
// callers, such as the enrichment pass writing scorer verdicts.
func (s *Service) UpdateRecord(ctx context.Context, c *domain.SupplierCandidate) error {
	if err := s.candidates.UpdateCandidate(ctx, c); err != nil {
		return fmt.Errorf("updating candidate: %w", err)
	}
	s.invalidate(ctx, c.OwnerID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, ownerID int) {
	if s.cache != nil {
		_ = s.cache.DeletePattern(ctx, fmt.Sprintf("candidates:%d:*", ownerID))
	}
}

func countsCacheKey(ownerID int) string {
	return fmt.Sprintf("candidates:%d:counts", ownerID)
}

func requireNew(c *domain.SupplierCandidate) error {
	switch c.Status {
	case domain.CandidateStatusNew:
		return nil
	case domain.CandidateStatusAccepted:
		return domain.NewConflictError("candidate was already accepted")
	case domain.CandidateStatusDismissed:
		return domain.NewConflictError("candidate was already dismissed")
	case domain.CandidateStatusMerged:
		return domain.NewConflictError("candidate was already merged")
	default:
		return domain.NewConflictError(fmt.Sprintf("candidate is in state %q", c.Status))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
