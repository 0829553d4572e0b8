// Package suppliers manages the supplier book and the per-project
// status pipeline attached to it.
package suppliers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/mailbox"
	"github.com/plannerhq/vendorbook/pkg/phone"
	"github.com/plannerhq/vendorbook/pkg/signals"
	"github.com/plannerhq/vendorbook/pkg/store"
)

const defaultPhoneRegion = "US"

// DefaultAttachStatus is the stage a freshly attached supplier starts in.
const DefaultAttachStatus = "contacted"

// Service handles supplier business logic
type Service struct {
	suppliers store.SupplierStore
	projects  store.ProjectStore
}

// NewService creates a new supplier service
func NewService(suppliers store.SupplierStore, projects store.ProjectStore) *Service {
	return &Service{suppliers: suppliers, projects: projects}
}

// CreateInput carries the fields of a new supplier.
type CreateInput struct {
	Name       string
	Email      string
	Phone      string
	Categories []string
	Source     string
	Notes      string
}

// UpdateInput carries optional supplier edits; nil fields stay as they
// are.
type UpdateInput struct {
	Name       *string
	Phone      *string
	Notes      *string
	Categories []string
}

// Create validates and stores a new supplier.
func (s *Service) Create(ctx context.Context, ownerID int, in CreateInput) (*domain.Supplier, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, domain.NewValidationError("supplier name is required")
	}

	email := mailbox.NormalizeEmail(in.Email)
	if email != "" {
		if _, err := s.suppliers.FindSupplierByEmail(ctx, ownerID, email); err == nil {
			return nil, domain.NewConflictError("a supplier with this email already exists")
		} else if !domain.IsNotFound(err) {
			return nil, fmt.Errorf("checking existing supplier: %w", err)
		}
	}

	source := in.Source
	if source == "" {
		source = "manual"
	}

	now := time.Now().UTC()
	sup := &domain.Supplier{
		OwnerID:    ownerID,
		Name:       name,
		Email:      email,
		Domain:     mailbox.DomainOf(email),
		Phone:      normalizePhone(in.Phone),
		Categories: in.Categories,
		Source:     source,
		Notes:      in.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.suppliers.CreateSupplier(ctx, sup); err != nil {
		return nil, fmt.Errorf("creating supplier: %w", err)
	}

	return sup, nil
}

// FindOrCreate returns the owner's supplier with the given email, or
// creates one. The bool reports whether a supplier was created.
func (s *Service) FindOrCreate(ctx context.Context, ownerID int, in CreateInput) (*domain.Supplier, bool, error) {
	email := mailbox.NormalizeEmail(in.Email)
	if email != "" {
		existing, err := s.suppliers.FindSupplierByEmail(ctx, ownerID, email)
		if err == nil {
			return existing, false, nil
		}
		if !domain.IsNotFound(err) {
			return nil, false, fmt.Errorf("checking existing supplier: %w", err)
		}
	}

	sup, err := s.Create(ctx, ownerID, in)
	if err != nil {
		return nil, false, err
	}
	return sup, true, nil
}

// Get returns one supplier, scoped to its owner.
func (s *Service) Get(ctx context.Context, ownerID, supplierID int) (*domain.Supplier, error) {
	sup, err := s.suppliers.GetSupplier(ctx, supplierID)
	if err != nil {
		return nil, err
	}
	if sup.OwnerID != ownerID {
		return nil, domain.NewForbiddenError("supplier belongs to another account")
	}
	return sup, nil
}

// List returns the owner's suppliers, name ascending, with the total
// count for pagination.
func (s *Service) List(ctx context.Context, ownerID, limit, offset int) ([]*domain.Supplier, int, error) {
	return s.suppliers.ListSuppliers(ctx, ownerID, limit, offset)
}

// Update applies the non-nil edits to a supplier.
func (s *Service) Update(ctx context.Context, ownerID, supplierID int, in UpdateInput) (*domain.Supplier, error) {
	sup, err := s.Get(ctx, ownerID, supplierID)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return nil, domain.NewValidationError("supplier name cannot be empty")
		}
		sup.Name = name
	}
	if in.Phone != nil {
		sup.Phone = normalizePhone(*in.Phone)
	}
	if in.Notes != nil {
		sup.Notes = *in.Notes
	}
	if in.Categories != nil {
		sup.Categories = in.Categories
	}
	sup.UpdatedAt = time.Now().UTC()

	if err := s.suppliers.UpdateSupplier(ctx, sup); err != nil {
		return nil, fmt.Errorf("updating supplier: %w", err)
	}
	return sup, nil
}

// Attach links a supplier to a project at the given pipeline stage.
// An empty status starts at contacted.
func (s *Service) Attach(ctx context.Context, ownerID, projectID, supplierID int, status string) (*domain.ProjectSupplier, error) {
	if _, err := s.Get(ctx, ownerID, supplierID); err != nil {
		return nil, err
	}
	if _, err := s.project(ctx, ownerID, projectID); err != nil {
		return nil, err
	}

	if status == "" {
		status = DefaultAttachStatus
	}
	if !signals.IsKnownSlug(status) {
		return nil, domain.NewValidationError(fmt.Sprintf("unknown status %q", status))
	}

	link := &domain.ProjectSupplier{
		ProjectID:  projectID,
		SupplierID: supplierID,
		StatusSlug: status,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := s.suppliers.AttachSupplier(ctx, link); err != nil {
		return nil, err
	}
	return link, nil
}

// Status returns the current stage of one project-supplier
// relationship.
func (s *Service) Status(ctx context.Context, ownerID, projectID, supplierID int) (*domain.ProjectSupplier, error) {
	if _, err := s.Get(ctx, ownerID, supplierID); err != nil {
		return nil, err
	}
	if _, err := s.project(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	return s.suppliers.GetProjectSupplier(ctx, projectID, supplierID)
}

// SetStatus moves a relationship to a new stage and records the
// transition under the given actor.
func (s *Service) SetStatus(ctx context.Context, ownerID, projectID, supplierID int, toStatus, actor string) error {
	if _, err := s.Get(ctx, ownerID, supplierID); err != nil {
		return err
	}
	if _, err := s.project(ctx, ownerID, projectID); err != nil {
		return err
	}
	if !signals.IsKnownSlug(toStatus) {
		return domain.NewValidationError(fmt.Sprintf("unknown status %q", toStatus))
	}

	return s.suppliers.SetProjectSupplierStatus(ctx, projectID, supplierID, toStatus, actor)
}

// History returns the recorded status transitions, oldest first.
func (s *Service) History(ctx context.Context, ownerID, projectID, supplierID int) ([]*domain.StatusChange, error) {
	if _, err := s.Get(ctx, ownerID, supplierID); err != nil {
		return nil, err
	}
	if _, err := s.project(ctx, ownerID, projectID); err != nil {
		return nil, err
	}
	return s.suppliers.ListStatusChanges(ctx, projectID, supplierID)
}

func (s *Service) project(ctx context.Context, ownerID, projectID int) (*domain.Project, error) {
	proj, err := s.projects.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if proj.OwnerID != ownerID {
		return nil, domain.NewForbiddenError("project belongs to another account")
	}
	return proj, nil
}

// normalizePhone formats to E.164 when the number parses and keeps the
// raw input otherwise.
func normalizePhone(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if normalized, err := phone.NormalizePhone(raw, defaultPhoneRegion); err == nil {
		return normalized
	}
	return raw
}
