// Package proposals manages suggested status transitions awaiting a
// human decision. Each (project, supplier) pair carries at most one
// outstanding proposal; newer evidence replaces it, resolution or
// expiry retires it.
package proposals

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/signals"
	"github.com/plannerhq/vendorbook/pkg/store"
	"github.com/plannerhq/vendorbook/pkg/suppliers"
)

// Actions accepted by Resolve.
const (
	ActionAccept = "accept"
	ActionReject = "reject"
)

// Service handles status proposal business logic
type Service struct {
	proposals store.ProposalStore
	suppliers *suppliers.Service
	ttl       time.Duration
}

// NewService creates a new proposal service.
func NewService(proposalStore store.ProposalStore, supplierSvc *suppliers.Service, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}
	return &Service{
		proposals: proposalStore,
		suppliers: supplierSvc,
		ttl:       ttl,
	}
}

// ProposeInput carries one detection worth proposing.
type ProposeInput struct {
	ProjectID      int
	SupplierID     int
	ToStatus       string
	Confidence     float64
	MatchedSignals []string
	Reasoning      string
	ThreadID       string
	MessageID      string
}

// Propose records a suggested transition, replacing any unresolved
// proposal for the same (project, supplier). The current pipeline
// status becomes FromStatus; a detection matching the current status
// proposes nothing and returns nil.
func (s *Service) Propose(ctx context.Context, ownerID int, in ProposeInput) (*domain.StatusProposal, error) {
	if !signals.IsKnownSlug(in.ToStatus) {
		return nil, domain.NewValidationError(fmt.Sprintf("unknown status %q", in.ToStatus))
	}

	ps, err := s.suppliers.Status(ctx, ownerID, in.ProjectID, in.SupplierID)
	if err != nil {
		return nil, err
	}
	if ps.StatusSlug == in.ToStatus {
		return nil, nil
	}

	now := time.Now().UTC()
	p := &domain.StatusProposal{
		ID:             uuid.NewString(),
		OwnerID:        ownerID,
		ProjectID:      in.ProjectID,
		SupplierID:     in.SupplierID,
		FromStatus:     ps.StatusSlug,
		ToStatus:       in.ToStatus,
		Confidence:     in.Confidence,
		MatchedSignals: in.MatchedSignals,
		Reasoning:      in.Reasoning,
		ThreadID:       in.ThreadID,
		MessageID:      in.MessageID,
		Resolution:     domain.ProposalPending,
		CreatedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
	}
	if err := s.proposals.UpsertProposal(ctx, p); err != nil {
		return nil, fmt.Errorf("storing proposal: %w", err)
	}
	return p, nil
}

// Get returns one proposal, scoped to its owner.
func (s *Service) Get(ctx context.Context, ownerID int, proposalID string) (*domain.StatusProposal, error) {
	p, err := s.proposals.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, err
	}
	if p.OwnerID != ownerID {
		return nil, domain.NewForbiddenError("proposal belongs to another account")
	}
	return p, nil
}

// ListPending returns the owner's open proposals, excluding resolved
// and expired ones.
func (s *Service) ListPending(ctx context.Context, ownerID int) ([]*domain.StatusProposal, error) {
	return s.proposals.ListPendingProposals(ctx, ownerID, time.Now().UTC())
}

// Resolve accepts or rejects a proposal. Accepting commits the
// transition to the pipeline with actor "proposal:<id>"; rejecting
// only retires the proposal. A resolved or expired proposal yields the
// stale proposal error and mutates nothing.
func (s *Service) Resolve(ctx context.Context, ownerID int, proposalID, action string) (*domain.StatusProposal, error) {
	if action != ActionAccept && action != ActionReject {
		return nil, domain.NewValidationError(fmt.Sprintf("unknown action %q", action))
	}

	p, err := s.Get(ctx, ownerID, proposalID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if p.Resolution != domain.ProposalPending {
		return nil, domain.NewStaleProposalError("proposal already resolved")
	}
	if p.Expired(now) {
		return nil, domain.NewStaleProposalError("proposal expired")
	}

	// Claim the proposal before touching the pipeline so a concurrent
	// resolve sees it settled.
	resolution := domain.ProposalRejected
	if action == ActionAccept {
		resolution = domain.ProposalAccepted
	}
	p.Resolution = resolution
	p.ResolvedAt = &now
	if err := s.proposals.UpdateProposal(ctx, p); err != nil {
		return nil, fmt.Errorf("resolving proposal: %w", err)
	}

	if action == ActionAccept {
		actor := "proposal:" + p.ID
		if err := s.suppliers.SetStatus(ctx, ownerID, p.ProjectID, p.SupplierID, p.ToStatus, actor); err != nil {
			p.Resolution = domain.ProposalPending
			p.ResolvedAt = nil
			if revertErr := s.proposals.UpdateProposal(ctx, p); revertErr != nil {
				return nil, fmt.Errorf("applying proposal %s: %w (revert also failed: %v)", p.ID, err, revertErr)
			}
			return nil, err
		}
	}
	return p, nil
}

// ExpireSweep prunes pending proposals whose expiry passed. Returns
// how many were removed.
func (s *Service) ExpireSweep(ctx context.Context) (int, error) {
	return s.proposals.DeleteExpiredProposals(ctx, time.Now().UTC())
}
