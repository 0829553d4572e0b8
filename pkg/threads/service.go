// Package threads links mail conversations to projects. Unlinked
// threads surface with scored project suggestions; linking and
// dismissing are explicit planner judgments that later scans respect.
package threads

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/store"
)

const (
	participantWeight = 0.4
	dateWeight        = 0.3
	subjectWeight     = 0.3

	// dateHorizonDays is where event-date proximity stops counting.
	dateHorizonDays = 90

	maxSuggestions = 5
)

// Service handles thread linking business logic
type Service struct {
	threads  store.ThreadStore
	projects store.ProjectStore
}

// NewService creates a new thread service.
func NewService(threadStore store.ThreadStore, projectStore store.ProjectStore) *Service {
	return &Service{
		threads:  threadStore,
		projects: projectStore,
	}
}

// Suggestion pairs an unlinked thread with its scored project matches.
type Suggestion struct {
	Thread  *domain.ThreadSummary `json:"thread"`
	Matches []domain.ProjectMatch `json:"matches"`
}

// ListNeedingLink returns pending threads with project suggestions,
// most recently active first.
func (s *Service) ListNeedingLink(ctx context.Context, ownerID int, limit, offset int) ([]Suggestion, int, error) {
	pending, total, err := s.threads.ListThreadsNeedingLink(ctx, ownerID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	projects, err := s.projects.ListProjects(ctx, ownerID)
	if err != nil {
		return nil, 0, fmt.Errorf("listing projects: %w", err)
	}

	out := make([]Suggestion, 0, len(pending))
	for _, t := range pending {
		out = append(out, Suggestion{Thread: t, Matches: suggest(t, projects)})
	}
	return out, total, nil
}

// SuggestProjects scores one thread against the owner's projects.
func (s *Service) SuggestProjects(ctx context.Context, ownerID int, threadID string) ([]domain.ProjectMatch, error) {
	t, err := s.threads.GetThread(ctx, ownerID, threadID)
	if err != nil {
		return nil, err
	}
	projects, err := s.projects.ListProjects(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	return suggest(t, projects), nil
}

// Link attaches a thread to a project and takes it off the pending
// list. Relinking an already linked or dismissed thread is allowed;
// the newest judgment wins.
func (s *Service) Link(ctx context.Context, ownerID int, threadID string, projectID int) (*domain.ThreadSummary, error) {
	t, err := s.threads.GetThread(ctx, ownerID, threadID)
	if err != nil {
		return nil, err
	}

	project, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if project.OwnerID != ownerID {
		return nil, domain.NewForbiddenError("project belongs to another account")
	}

	t.ProjectID = &projectID
	t.LinkState = domain.ThreadLinkLinked
	t.UpdatedAt = time.Now().UTC()
	if err := s.threads.UpdateThread(ctx, t); err != nil {
		return nil, fmt.Errorf("linking thread: %w", err)
	}
	return t, nil
}

// Dismiss records that a thread is not about any project. Dismissed
// threads never resurface in the pending list.
func (s *Service) Dismiss(ctx context.Context, ownerID int, threadID string) (*domain.ThreadSummary, error) {
	t, err := s.threads.GetThread(ctx, ownerID, threadID)
	if err != nil {
		return nil, err
	}

	t.ProjectID = nil
	t.LinkState = domain.ThreadLinkDismissed
	t.UpdatedAt = time.Now().UTC()
	if err := s.threads.UpdateThread(ctx, t); err != nil {
		return nil, fmt.Errorf("dismissing thread: %w", err)
	}
	return t, nil
}

// Get returns one thread summary, scoped to its owner.
func (s *Service) Get(ctx context.Context, ownerID int, threadID string) (*domain.ThreadSummary, error) {
	return s.threads.GetThread(ctx, ownerID, threadID)
}

// suggest scores a thread against every project and keeps the best
// scoring handful.
func suggest(t *domain.ThreadSummary, projects []*domain.Project) []domain.ProjectMatch {
	matches := make([]domain.ProjectMatch, 0, len(projects))
	for _, p := range projects {
		score, reasons := scoreProject(t, p)
		if score <= 0 {
			continue
		}
		matches = append(matches, domain.ProjectMatch{
			ProjectID:    p.ID,
			ProjectName:  p.Name,
			Score:        score,
			MatchReasons: reasons,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}
	return matches
}

// scoreProject combines participant overlap, event-date proximity and
// a subject mention into one score, each with a named reason.
func scoreProject(t *domain.ThreadSummary, p *domain.Project) (float64, []string) {
	score := 0.0
	var reasons []string

	if len(p.ContactEmails) > 0 {
		inThread := make(map[string]bool, len(t.Participants))
		for _, email := range t.Participants {
			inThread[email] = true
		}
		overlap := 0
		for _, email := range p.ContactEmails {
			if inThread[email] {
				overlap++
			}
		}
		if overlap > 0 {
			ratio := float64(overlap) / float64(len(p.ContactEmails))
			score += participantWeight * ratio
			reasons = append(reasons, fmt.Sprintf("%d of %d project contacts participate in the thread", overlap, len(p.ContactEmails)))
		}
	}

	if !p.EventDate.IsZero() && !t.LastMessageAt.IsZero() {
		days := t.LastMessageAt.Sub(p.EventDate).Hours() / 24
		if days < 0 {
			days = -days
		}
		if days < dateHorizonDays {
			score += dateWeight * (1 - days/dateHorizonDays)
			reasons = append(reasons, fmt.Sprintf("thread active %d day(s) from the event date", int(days)))
		}
	}

	subject := strings.ToLower(t.Subject)
	switch {
	case p.Name != "" && strings.Contains(subject, strings.ToLower(p.Name)):
		score += subjectWeight
		reasons = append(reasons, fmt.Sprintf("subject mentions %q", p.Name))
	case p.Venue != "" && strings.Contains(subject, strings.ToLower(p.Venue)):
		score += subjectWeight
		reasons = append(reasons, fmt.Sprintf("subject mentions the venue %q", p.Venue))
	}

	return score, reasons
}
