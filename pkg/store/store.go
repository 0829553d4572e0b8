package store

import (
	"context"
	"time"

	"github.com/plannerhq/vendorbook/pkg/domain"
)

// SightingInput is one normalized mailbox sighting ready to be recorded.
// Email must already be lowercased and trimmed by the caller.
type SightingInput struct {
	OwnerID     int
	Email       string
	Domain      string
	DisplayName string
	Subject     string
	Source      domain.CandidateSource
	SeenAt      time.Time
}

// MaxSampleSubjects caps how many distinct message subjects a candidate
// accumulates across sightings. The subjects feed the classifier prompt.
const MaxSampleSubjects = 5

// CandidateFilter narrows ListCandidates. Zero values mean "any".
type CandidateFilter struct {
	Status    domain.CandidateStatus
	Relevance domain.RelevanceState
	Source    domain.CandidateSource
	Search    string
	// ExcludeNotRelevant hides candidates tagged not_relevant without
	// constraining the rest (the default review surface).
	ExcludeNotRelevant bool
	Limit              int
	Offset             int
}

// RunStore persists backfill runs. CreateRun must reject a second
// active run for the same owner with a conflict error, atomically with
// the insert.
type RunStore interface {
	CreateRun(ctx context.Context, run *domain.BackfillRun) error
	GetRun(ctx context.Context, id string) (*domain.BackfillRun, error)
	UpdateRun(ctx context.Context, run *domain.BackfillRun) error
	ListRuns(ctx context.Context, ownerID int, limit, offset int) ([]*domain.BackfillRun, int, error)
	// ListRunsByStatus spans all owners; the tick scheduler uses it to
	// find work.
	ListRunsByStatus(ctx context.Context, statuses ...domain.RunStatus) ([]*domain.BackfillRun, error)
}

// CandidateStore persists supplier candidates keyed by (owner, email).
type CandidateStore interface {
	// UpsertSighting creates the candidate on first sight or refreshes
	// last_seen_at, display name (if previously empty) and message
	// count on repeats. The bool reports whether a row was created.
	UpsertSighting(ctx context.Context, in SightingInput) (*domain.SupplierCandidate, bool, error)
	GetCandidate(ctx context.Context, id string) (*domain.SupplierCandidate, error)
	FindCandidateByEmail(ctx context.Context, ownerID int, email string) (*domain.SupplierCandidate, error)
	ListCandidates(ctx context.Context, ownerID int, f CandidateFilter) ([]*domain.SupplierCandidate, int, error)
	UpdateCandidate(ctx context.Context, c *domain.SupplierCandidate) error
	// CountCandidates returns per-status totals for the review header.
	CountCandidates(ctx context.Context, ownerID int) (map[domain.CandidateStatus]int, error)
}

// StatusStore persists per-owner visibility overrides on top of the
// built-in status catalog.
type StatusStore interface {
	GetStatusOverrides(ctx context.Context, ownerID int) (map[string]bool, error)
	SetStatusOverride(ctx context.Context, ownerID int, slug string, enabled bool) error
}

// ProposalStore persists status proposals. UpsertProposal replaces any
// pending proposal for the same (project, supplier) pair.
type ProposalStore interface {
	UpsertProposal(ctx context.Context, p *domain.StatusProposal) error
	GetProposal(ctx context.Context, id string) (*domain.StatusProposal, error)
	ListPendingProposals(ctx context.Context, ownerID int, now time.Time) ([]*domain.StatusProposal, error)
	UpdateProposal(ctx context.Context, p *domain.StatusProposal) error
	// DeleteExpiredProposals prunes pending proposals whose expiry
	// passed before cutoff. Returns the number removed.
	DeleteExpiredProposals(ctx context.Context, cutoff time.Time) (int, error)
}

// ThreadStore persists conversation thread summaries.
type ThreadStore interface {
	UpsertThread(ctx context.Context, t *domain.ThreadSummary) error
	GetThread(ctx context.Context, ownerID int, threadID string) (*domain.ThreadSummary, error)
	ListThreadsNeedingLink(ctx context.Context, ownerID int, limit, offset int) ([]*domain.ThreadSummary, int, error)
	UpdateThread(ctx context.Context, t *domain.ThreadSummary) error
}

// SupplierStore persists suppliers, project-supplier pipeline rows and
// their status history.
type SupplierStore interface {
	CreateSupplier(ctx context.Context, s *domain.Supplier) error
	GetSupplier(ctx context.Context, id int) (*domain.Supplier, error)
	FindSupplierByEmail(ctx context.Context, ownerID int, email string) (*domain.Supplier, error)
	ListSuppliers(ctx context.Context, ownerID int, limit, offset int) ([]*domain.Supplier, int, error)
	UpdateSupplier(ctx context.Context, s *domain.Supplier) error

	GetProjectSupplier(ctx context.Context, projectID, supplierID int) (*domain.ProjectSupplier, error)
	AttachSupplier(ctx context.Context, ps *domain.ProjectSupplier) error
	// SetProjectSupplierStatus updates the pipeline row and appends a
	// StatusChange in the same transaction.
	SetProjectSupplierStatus(ctx context.Context, projectID, supplierID int, toStatus, actor string) error
	ListStatusChanges(ctx context.Context, projectID, supplierID int) ([]*domain.StatusChange, error)
}

// ProjectStore persists projects (events being planned).
type ProjectStore interface {
	CreateProject(ctx context.Context, p *domain.Project) error
	GetProject(ctx context.Context, id int) (*domain.Project, error)
	ListProjects(ctx context.Context, ownerID int) ([]*domain.Project, error)
	ListProjectSuppliers(ctx context.Context, projectID int) ([]*domain.ProjectSupplier, error)
}

// ExportStore persists export job records.
type ExportStore interface {
	CreateExport(ctx context.Context, e *domain.ExportRecord) error
	GetExport(ctx context.Context, id string) (*domain.ExportRecord, error)
	UpdateExport(ctx context.Context, e *domain.ExportRecord) error
	ListExports(ctx context.Context, ownerID int) ([]*domain.ExportRecord, error)
}

// Store is the full persistence surface. Backends implement all of it;
// services depend on the narrow slice they need.
type Store interface {
	RunStore
	CandidateStore
	StatusStore
	ProposalStore
	ThreadStore
	SupplierStore
	ProjectStore
	ExportStore

	Ping(ctx context.Context) error
	Close() error
}
