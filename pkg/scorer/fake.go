package scorer

import (
	"context"
	"sync"

	"github.com/plannerhq/vendorbook/pkg/domain"
)

// FakeClassifier returns scripted verdicts keyed by candidate email.
// Unscripted addresses come back not relevant at middling confidence.
type FakeClassifier struct {
	mu       sync.Mutex
	results  map[string]Classification
	errs     map[string]error
	calls    []string
	contexts map[string]Context
}

var _ Classifier = (*FakeClassifier)(nil)

func NewFakeClassifier() *FakeClassifier {
	return &FakeClassifier{
		results:  make(map[string]Classification),
		errs:     make(map[string]error),
		contexts: make(map[string]Context),
	}
}

// Script sets the verdict returned for an email.
func (f *FakeClassifier) Script(email string, c Classification) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results[email] = c
}

// ScriptError makes classification of an email fail.
func (f *FakeClassifier) ScriptError(email string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errs[email] = err
}

// Calls returns the emails classified so far, in call order.
func (f *FakeClassifier) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// ContextFor returns the last scorer context an email was classified
// with.
func (f *FakeClassifier) ContextFor(email string) Context {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contexts[email]
}

func (f *FakeClassifier) Classify(_ context.Context, candidate *domain.SupplierCandidate, sc Context) (*Classification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, candidate.Email)
	f.contexts[candidate.Email] = sc

	if err, ok := f.errs[candidate.Email]; ok {
		return nil, err
	}
	if c, ok := f.results[candidate.Email]; ok {
		verdict := c
		return &verdict, nil
	}

	return &Classification{
		IsRelevant: false,
		Confidence: 0.5,
		Reasoning:  "no signal for this address",
	}, nil
}
