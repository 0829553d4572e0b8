// Package scorer decides whether a mailbox contact is an event vendor
// worth importing, and what kind.
package scorer

import (
	"context"

	"github.com/plannerhq/vendorbook/pkg/domain"
)

// KnownCategories is the vocabulary the classifier is asked to pick
// from. Free-form answers outside it are kept but never suggested.
var KnownCategories = []string{
	"venue",
	"catering",
	"florals",
	"photography",
	"videography",
	"music",
	"rentals",
	"beauty",
	"stationery",
	"transportation",
	"cake",
	"lighting",
	"planning",
	"other",
}

// Context carries what we know beyond the candidate row itself.
type Context struct {
	EventContext   string   `json:"event_context,omitempty"`
	SampleSubjects []string `json:"sample_subjects,omitempty"`
	SiteSummary    string   `json:"site_summary,omitempty"`
}

// Classification is the verdict for one candidate.
type Classification struct {
	IsRelevant      bool     `json:"is_relevant"`
	Confidence      float64  `json:"confidence"`
	SuggestedName   string   `json:"suggested_supplier_name,omitempty"`
	Categories      []string `json:"suggested_categories,omitempty"`
	PrimaryCategory string   `json:"primary_category,omitempty"`
	Reasoning       string   `json:"reasoning,omitempty"`
}

// Classifier scores candidates one at a time. Failures are per-item;
// callers keep going with the rest of a batch.
type Classifier interface {
	Classify(ctx context.Context, candidate *domain.SupplierCandidate, scorerCtx Context) (*Classification, error)
}
