// Package memory implements store.Store with in-process maps. It backs
// the test suite and local development without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/store"
)

// Store holds all entities behind a single RWMutex. Returned entities
// are copies, so callers can mutate them and persist via Update*.
type Store struct {
	mu sync.RWMutex

	runs           map[string]*domain.BackfillRun
	candidates     map[string]*domain.SupplierCandidate
	candidateByKey map[string]string
	overrides      map[int]map[string]bool
	proposals      map[string]*domain.StatusProposal
	threads        map[string]*domain.ThreadSummary

	suppliers        map[int]*domain.Supplier
	supplierSeq      int
	projects         map[int]*domain.Project
	projectSeq       int
	projectSuppliers map[string]*domain.ProjectSupplier
	statusChanges    map[string][]*domain.StatusChange

	exports map[string]*domain.ExportRecord
}

var _ store.Store = (*Store)(nil)

// New returns an empty in-memory store.
func New() *Store {
	return &Store{
		runs:             map[string]*domain.BackfillRun{},
		candidates:       map[string]*domain.SupplierCandidate{},
		candidateByKey:   map[string]string{},
		overrides:        map[int]map[string]bool{},
		proposals:        map[string]*domain.StatusProposal{},
		threads:          map[string]*domain.ThreadSummary{},
		suppliers:        map[int]*domain.Supplier{},
		projects:         map[int]*domain.Project{},
		projectSuppliers: map[string]*domain.ProjectSupplier{},
		statusChanges:    map[string][]*domain.StatusChange{},
		exports:          map[string]*domain.ExportRecord{},
	}
}

func candidateKey(ownerID int, email string) string {
	return fmt.Sprintf("%d|%s", ownerID, strings.ToLower(email))
}

func threadKey(ownerID int, threadID string) string {
	return fmt.Sprintf("%d|%s", ownerID, threadID)
}

func pairKey(projectID, supplierID int) string {
	return fmt.Sprintf("%d|%d", projectID, supplierID)
}

// Runs

func (s *Store) CreateRun(ctx context.Context, run *domain.BackfillRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.runs {
		if r.OwnerID == run.OwnerID && r.Status.Active() {
			return domain.NewConflictError("a backfill run is already active for this account")
		}
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*domain.BackfillRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, domain.NewNotFoundError("backfill run")
	}
	return cloneRun(run), nil
}

func (s *Store) UpdateRun(ctx context.Context, run *domain.BackfillRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[run.ID]; !ok {
		return domain.NewNotFoundError("backfill run")
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

func (s *Store) ListRuns(ctx context.Context, ownerID int, limit, offset int) ([]*domain.BackfillRun, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.BackfillRun, 0)
	for _, r := range s.runs {
		if r.OwnerID == ownerID {
			matched = append(matched, r)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})
	total := len(matched)
	matched = paginate(matched, limit, offset)

	out := make([]*domain.BackfillRun, 0, len(matched))
	for _, r := range matched {
		out = append(out, cloneRun(r))
	}
	return out, total, nil
}

func (s *Store) ListRunsByStatus(ctx context.Context, statuses ...domain.RunStatus) ([]*domain.BackfillRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[domain.RunStatus]bool, len(statuses))
	for _, st := range statuses {
		wanted[st] = true
	}
	out := make([]*domain.BackfillRun, 0)
	for _, r := range s.runs {
		if wanted[r.Status] {
			out = append(out, cloneRun(r))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Candidates

func (s *Store) UpsertSighting(ctx context.Context, in store.SightingInput) (*domain.SupplierCandidate, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := candidateKey(in.OwnerID, in.Email)
	if id, ok := s.candidateByKey[key]; ok {
		c := s.candidates[id]
		c.MessageCount++
		if in.SeenAt.After(c.LastSeenAt) {
			c.LastSeenAt = in.SeenAt
		}
		if in.SeenAt.Before(c.FirstSeenAt) {
			c.FirstSeenAt = in.SeenAt
		}
		if c.DisplayName == "" && in.DisplayName != "" {
			c.DisplayName = in.DisplayName
		}
		c.SampleSubjects = appendSubject(c.SampleSubjects, in.Subject)
		c.UpdatedAt = now
		return cloneCandidate(c), false, nil
	}

	c := &domain.SupplierCandidate{
		ID:             uuid.NewString(),
		OwnerID:        in.OwnerID,
		Email:          strings.ToLower(in.Email),
		Domain:         in.Domain,
		DisplayName:    in.DisplayName,
		Source:         in.Source,
		Status:         domain.CandidateStatusNew,
		MessageCount:   1,
		FirstSeenAt:    in.SeenAt,
		LastSeenAt:     in.SeenAt,
		SampleSubjects: appendSubject(nil, in.Subject),
		Relevance:      domain.UnknownRelevance(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.candidates[c.ID] = c
	s.candidateByKey[key] = c.ID
	return cloneCandidate(c), true, nil
}

// appendSubject keeps the first few distinct subjects a candidate was
// sighted under.
func appendSubject(subjects []string, subject string) []string {
	subject = strings.TrimSpace(subject)
	if subject == "" || len(subjects) >= store.MaxSampleSubjects {
		return subjects
	}
	for _, have := range subjects {
		if have == subject {
			return subjects
		}
	}
	return append(subjects, subject)
}

func (s *Store) GetCandidate(ctx context.Context, id string) (*domain.SupplierCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.candidates[id]
	if !ok {
		return nil, domain.NewNotFoundError("candidate")
	}
	return cloneCandidate(c), nil
}

func (s *Store) FindCandidateByEmail(ctx context.Context, ownerID int, email string) (*domain.SupplierCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.candidateByKey[candidateKey(ownerID, email)]
	if !ok {
		return nil, domain.NewNotFoundError("candidate")
	}
	return cloneCandidate(s.candidates[id]), nil
}

func (s *Store) ListCandidates(ctx context.Context, ownerID int, f store.CandidateFilter) ([]*domain.SupplierCandidate, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.SupplierCandidate, 0)
	for _, c := range s.candidates {
		if c.OwnerID != ownerID || !matchesFilter(c, f) {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].LastSeenAt.Equal(matched[j].LastSeenAt) {
			return matched[i].Email < matched[j].Email
		}
		return matched[i].LastSeenAt.After(matched[j].LastSeenAt)
	})
	total := len(matched)
	matched = paginate(matched, f.Limit, f.Offset)

	out := make([]*domain.SupplierCandidate, 0, len(matched))
	for _, c := range matched {
		out = append(out, cloneCandidate(c))
	}
	return out, total, nil
}

func matchesFilter(c *domain.SupplierCandidate, f store.CandidateFilter) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.Relevance != "" && c.Relevance.State() != f.Relevance {
		return false
	}
	if f.ExcludeNotRelevant && c.Relevance.IsNotRelevant() {
		return false
	}
	if f.Source != "" && c.Source != f.Source {
		return false
	}
	if f.Search != "" {
		q := strings.ToLower(f.Search)
		if !strings.Contains(strings.ToLower(c.Email), q) &&
			!strings.Contains(strings.ToLower(c.DisplayName), q) &&
			!strings.Contains(strings.ToLower(c.SuggestedName), q) {
			return false
		}
	}
	return true
}

func (s *Store) UpdateCandidate(ctx context.Context, c *domain.SupplierCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.candidates[c.ID]; !ok {
		return domain.NewNotFoundError("candidate")
	}
	s.candidates[c.ID] = cloneCandidate(c)
	return nil
}

func (s *Store) CountCandidates(ctx context.Context, ownerID int) (map[domain.CandidateStatus]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := map[domain.CandidateStatus]int{}
	for _, c := range s.candidates {
		if c.OwnerID == ownerID {
			counts[c.Status]++
		}
	}
	return counts, nil
}

// Status overrides

func (s *Store) GetStatusOverrides(ctx context.Context, ownerID int) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := map[string]bool{}
	for slug, enabled := range s.overrides[ownerID] {
		out[slug] = enabled
	}
	return out, nil
}

func (s *Store) SetStatusOverride(ctx context.Context, ownerID int, slug string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.overrides[ownerID] == nil {
		s.overrides[ownerID] = map[string]bool{}
	}
	s.overrides[ownerID][slug] = enabled
	return nil
}

// Proposals

func (s *Store) UpsertProposal(ctx context.Context, p *domain.StatusProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.proposals {
		if existing.ProjectID == p.ProjectID && existing.SupplierID == p.SupplierID &&
			existing.Resolution == domain.ProposalPending {
			delete(s.proposals, id)
		}
	}
	s.proposals[p.ID] = cloneProposal(p)
	return nil
}

func (s *Store) GetProposal(ctx context.Context, id string) (*domain.StatusProposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.proposals[id]
	if !ok {
		return nil, domain.NewNotFoundError("proposal")
	}
	return cloneProposal(p), nil
}

func (s *Store) ListPendingProposals(ctx context.Context, ownerID int, now time.Time) ([]*domain.StatusProposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.StatusProposal, 0)
	for _, p := range s.proposals {
		if p.OwnerID != ownerID || p.Resolution != domain.ProposalPending || p.Expired(now) {
			continue
		}
		out = append(out, cloneProposal(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateProposal(ctx context.Context, p *domain.StatusProposal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.proposals[p.ID]; !ok {
		return domain.NewNotFoundError("proposal")
	}
	s.proposals[p.ID] = cloneProposal(p)
	return nil
}

func (s *Store) DeleteExpiredProposals(ctx context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, p := range s.proposals {
		if p.Resolution == domain.ProposalPending && p.ExpiresAt.Before(cutoff) {
			delete(s.proposals, id)
			removed++
		}
	}
	return removed, nil
}

// Threads

func (s *Store) UpsertThread(ctx context.Context, t *domain.ThreadSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	key := threadKey(t.OwnerID, t.ThreadID)
	existing, ok := s.threads[key]
	if !ok {
		incoming := cloneThread(t)
		if incoming.LinkState == "" {
			incoming.LinkState = domain.ThreadLinkPending
		}
		incoming.UpdatedAt = now
		s.threads[key] = incoming
		return nil
	}

	// Refresh mailbox-derived fields; link state stays user-managed.
	if t.Subject != "" {
		existing.Subject = t.Subject
	}
	existing.Participants = unionStrings(existing.Participants, t.Participants)
	if t.FirstMessageAt.Before(existing.FirstMessageAt) && !t.FirstMessageAt.IsZero() {
		existing.FirstMessageAt = t.FirstMessageAt
	}
	if t.LastMessageAt.After(existing.LastMessageAt) {
		existing.LastMessageAt = t.LastMessageAt
	}
	if t.MessageCount > existing.MessageCount {
		existing.MessageCount = t.MessageCount
	}
	existing.UpdatedAt = now
	return nil
}

func (s *Store) GetThread(ctx context.Context, ownerID int, threadID string) (*domain.ThreadSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.threads[threadKey(ownerID, threadID)]
	if !ok {
		return nil, domain.NewNotFoundError("thread")
	}
	return cloneThread(t), nil
}

func (s *Store) ListThreadsNeedingLink(ctx context.Context, ownerID int, limit, offset int) ([]*domain.ThreadSummary, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.ThreadSummary, 0)
	for _, t := range s.threads {
		if t.OwnerID == ownerID && t.LinkState == domain.ThreadLinkPending {
			matched = append(matched, t)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].LastMessageAt.Equal(matched[j].LastMessageAt) {
			return matched[i].ThreadID < matched[j].ThreadID
		}
		return matched[i].LastMessageAt.After(matched[j].LastMessageAt)
	})
	total := len(matched)
	matched = paginate(matched, limit, offset)

	out := make([]*domain.ThreadSummary, 0, len(matched))
	for _, t := range matched {
		out = append(out, cloneThread(t))
	}
	return out, total, nil
}

func (s *Store) UpdateThread(ctx context.Context, t *domain.ThreadSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := threadKey(t.OwnerID, t.ThreadID)
	if _, ok := s.threads[key]; !ok {
		return domain.NewNotFoundError("thread")
	}
	s.threads[key] = cloneThread(t)
	return nil
}

// Suppliers

func (s *Store) CreateSupplier(ctx context.Context, sup *domain.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.supplierSeq++
	sup.ID = s.supplierSeq
	s.suppliers[sup.ID] = cloneSupplier(sup)
	return nil
}

func (s *Store) GetSupplier(ctx context.Context, id int) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sup, ok := s.suppliers[id]
	if !ok {
		return nil, domain.NewNotFoundError("supplier")
	}
	return cloneSupplier(sup), nil
}

func (s *Store) FindSupplierByEmail(ctx context.Context, ownerID int, email string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	email = strings.ToLower(email)
	for _, sup := range s.suppliers {
		if sup.OwnerID == ownerID && strings.ToLower(sup.Email) == email {
			return cloneSupplier(sup), nil
		}
	}
	return nil, domain.NewNotFoundError("supplier")
}

func (s *Store) ListSuppliers(ctx context.Context, ownerID int, limit, offset int) ([]*domain.Supplier, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.Supplier, 0)
	for _, sup := range s.suppliers {
		if sup.OwnerID == ownerID {
			matched = append(matched, sup)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name == matched[j].Name {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].Name < matched[j].Name
	})
	total := len(matched)
	matched = paginate(matched, limit, offset)

	out := make([]*domain.Supplier, 0, len(matched))
	for _, sup := range matched {
		out = append(out, cloneSupplier(sup))
	}
	return out, total, nil
}

func (s *Store) UpdateSupplier(ctx context.Context, sup *domain.Supplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliers[sup.ID]; !ok {
		return domain.NewNotFoundError("supplier")
	}
	s.suppliers[sup.ID] = cloneSupplier(sup)
	return nil
}

func (s *Store) GetProjectSupplier(ctx context.Context, projectID, supplierID int) (*domain.ProjectSupplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ps, ok := s.projectSuppliers[pairKey(projectID, supplierID)]
	if !ok {
		return nil, domain.NewNotFoundError("project supplier")
	}
	out := *ps
	return &out, nil
}

func (s *Store) AttachSupplier(ctx context.Context, ps *domain.ProjectSupplier) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(ps.ProjectID, ps.SupplierID)
	if _, ok := s.projectSuppliers[key]; ok {
		return domain.NewConflictError("supplier already attached to project")
	}
	row := *ps
	s.projectSuppliers[key] = &row
	return nil
}

func (s *Store) SetProjectSupplierStatus(ctx context.Context, projectID, supplierID int, toStatus, actor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(projectID, supplierID)
	ps, ok := s.projectSuppliers[key]
	if !ok {
		return domain.NewNotFoundError("project supplier")
	}
	now := time.Now().UTC()
	change := &domain.StatusChange{
		ID:         uuid.NewString(),
		ProjectID:  projectID,
		SupplierID: supplierID,
		FromStatus: ps.StatusSlug,
		ToStatus:   toStatus,
		Actor:      actor,
		CreatedAt:  now,
	}
	ps.StatusSlug = toStatus
	ps.UpdatedAt = now
	s.statusChanges[key] = append(s.statusChanges[key], change)
	return nil
}

func (s *Store) ListStatusChanges(ctx context.Context, projectID, supplierID int) ([]*domain.StatusChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	changes := s.statusChanges[pairKey(projectID, supplierID)]
	out := make([]*domain.StatusChange, 0, len(changes))
	for _, c := range changes {
		copied := *c
		out = append(out, &copied)
	}
	return out, nil
}

// Projects

func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.projectSeq++
	p.ID = s.projectSeq
	s.projects[p.ID] = cloneProject(p)
	return nil
}

func (s *Store) GetProject(ctx context.Context, id int) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, domain.NewNotFoundError("project")
	}
	return cloneProject(p), nil
}

func (s *Store) ListProjects(ctx context.Context, ownerID int) ([]*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.Project, 0)
	for _, p := range s.projects {
		if p.OwnerID == ownerID {
			out = append(out, cloneProject(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EventDate.Equal(out[j].EventDate) {
			return out[i].ID < out[j].ID
		}
		return out[i].EventDate.Before(out[j].EventDate)
	})
	return out, nil
}

func (s *Store) ListProjectSuppliers(ctx context.Context, projectID int) ([]*domain.ProjectSupplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ProjectSupplier, 0)
	for _, ps := range s.projectSuppliers {
		if ps.ProjectID == projectID {
			copied := *ps
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SupplierID < out[j].SupplierID })
	return out, nil
}

// Exports

func (s *Store) CreateExport(ctx context.Context, e *domain.ExportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.exports[e.ID] = cloneExport(e)
	return nil
}

func (s *Store) GetExport(ctx context.Context, id string) (*domain.ExportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.exports[id]
	if !ok {
		return nil, domain.NewNotFoundError("export")
	}
	return cloneExport(e), nil
}

func (s *Store) UpdateExport(ctx context.Context, e *domain.ExportRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.exports[e.ID]; !ok {
		return domain.NewNotFoundError("export")
	}
	s.exports[e.ID] = cloneExport(e)
	return nil
}

func (s *Store) ListExports(ctx context.Context, ownerID int) ([]*domain.ExportRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*domain.ExportRecord, 0)
	for _, e := range s.exports {
		if e.OwnerID == ownerID {
			out = append(out, cloneExport(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) Close() error { return nil }

// helpers

func paginate[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func unionStrings(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, lists := range [][]string{a, b} {
		for _, v := range lists {
			key := strings.ToLower(v)
			if key == "" || seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}

func cloneRun(r *domain.BackfillRun) *domain.BackfillRun {
	out := *r
	out.StartedAt = cloneTime(r.StartedAt)
	out.CompletedAt = cloneTime(r.CompletedAt)
	return &out
}

func cloneCandidate(c *domain.SupplierCandidate) *domain.SupplierCandidate {
	out := *c
	out.SuggestedCategories = append([]string(nil), c.SuggestedCategories...)
	out.SampleSubjects = append([]string(nil), c.SampleSubjects...)
	if c.SupplierID != nil {
		id := *c.SupplierID
		out.SupplierID = &id
	}
	return &out
}

func cloneProposal(p *domain.StatusProposal) *domain.StatusProposal {
	out := *p
	out.MatchedSignals = append([]string(nil), p.MatchedSignals...)
	out.ResolvedAt = cloneTime(p.ResolvedAt)
	return &out
}

func cloneThread(t *domain.ThreadSummary) *domain.ThreadSummary {
	out := *t
	out.Participants = append([]string(nil), t.Participants...)
	if t.ProjectID != nil {
		id := *t.ProjectID
		out.ProjectID = &id
	}
	return &out
}

func cloneSupplier(s *domain.Supplier) *domain.Supplier {
	out := *s
	out.Categories = append([]string(nil), s.Categories...)
	return &out
}

func cloneProject(p *domain.Project) *domain.Project {
	out := *p
	out.ContactEmails = append([]string(nil), p.ContactEmails...)
	return &out
}

func cloneExport(e *domain.ExportRecord) *domain.ExportRecord {
	out := *e
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	copied := *t
	return &copied
}
