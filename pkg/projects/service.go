// Package projects is the create-and-read surface for the events a
// planner is organizing. Thread matching and proposals hang off it.
package projects

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/mailbox"
	"github.com/plannerhq/vendorbook/pkg/store"
)

// Service handles project business logic
type Service struct {
	projects store.ProjectStore
}

// NewService creates a new project service
func NewService(projects store.ProjectStore) *Service {
	return &Service{projects: projects}
}

// CreateInput carries the fields of a new project.
type CreateInput struct {
	Name          string
	ClientName    string
	Venue         string
	EventDate     time.Time
	ContactEmails []string
}

// Create validates and stores a new project.
func (s *Service) Create(ctx context.Context, ownerID int, in CreateInput) (*domain.Project, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewValidationError("project name is required")
	}
	if in.EventDate.IsZero() {
		return nil, domain.NewValidationError("event date is required")
	}

	seen := make(map[string]bool)
	emails := make([]string, 0, len(in.ContactEmails))
	for _, e := range in.ContactEmails {
		e = mailbox.NormalizeEmail(e)
		if e == "" || seen[e] {
			continue
		}
		seen[e] = true
		emails = append(emails, e)
	}

	proj := &domain.Project{
		OwnerID:       ownerID,
		Name:          name,
		ClientName:    strings.TrimSpace(in.ClientName),
		Venue:         strings.TrimSpace(in.Venue),
		EventDate:     in.EventDate,
		ContactEmails: emails,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.projects.CreateProject(ctx, proj); err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}

	return proj, nil
}

// Get returns one project, scoped to its owner.
func (s *Service) Get(ctx context.Context, ownerID, projectID int) (*domain.Project, error) {
	proj, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if proj.OwnerID != ownerID {
		return nil, domain.NewForbiddenError("project belongs to another account")
	}
	return proj, nil
}

// List returns the owner's projects ordered by event date.
func (s *Service) List(ctx context.Context, ownerID int) ([]*domain.Project, error) {
	return s.projects.ListProjects(ctx, ownerID)
}

// Suppliers returns the pipeline rows attached to a project.
func (s *Service) Suppliers(ctx context.Context, ownerID, projectID int) ([]*domain.ProjectSupplier, error) {
	if _, err := s.Get(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	return s.projects.ListProjectSuppliers(ctx, projectID)
}
