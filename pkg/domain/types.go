package domain

import "time"

// RunStatus is the lifecycle state of a backfill run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Active reports whether the run still occupies the owner's single run slot.
func (s RunStatus) Active() bool {
	return s == RunStatusPending || s == RunStatusRunning
}

// Terminal reports whether the run can no longer advance.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// EnrichmentStatus tracks the post-discovery classification pass of a run.
type EnrichmentStatus string

const (
	EnrichmentPending   EnrichmentStatus = "pending"
	EnrichmentRunning   EnrichmentStatus = "running"
	EnrichmentCompleted EnrichmentStatus = "completed"
)

// CandidateStatus is the review state of a discovered contact.
// Transitions are one-directional: new -> accepted | dismissed.
type CandidateStatus string

const (
	CandidateStatusNew       CandidateStatus = "new"
	CandidateStatusAccepted  CandidateStatus = "accepted"
	CandidateStatusDismissed CandidateStatus = "dismissed"
	CandidateStatusMerged    CandidateStatus = "merged"
)

// CandidateSource records how a candidate entered the store.
type CandidateSource string

const (
	SourceBackfill CandidateSource = "backfill"
	SourceManual   CandidateSource = "manual"
)

// ProposalResolution is the disposition of a status proposal.
type ProposalResolution string

const (
	ProposalPending  ProposalResolution = "pending"
	ProposalAccepted ProposalResolution = "accepted"
	ProposalRejected ProposalResolution = "rejected"
)

// ThreadLinkState tracks whether a thread has been tied to a project.
type ThreadLinkState string

const (
	ThreadLinkPending   ThreadLinkState = "pending"
	ThreadLinkLinked    ThreadLinkState = "linked"
	ThreadLinkDismissed ThreadLinkState = "dismissed"
)

// BackfillRun is one mailbox discovery job. At most one run per owner may be
// pending or running at a time; creation enforces this transactionally.
type BackfillRun struct {
	ID                  string           `json:"id"`
	OwnerID             int              `json:"owner_id"`
	Status              RunStatus        `json:"status"`
	TimeframeMonths     int              `json:"timeframe_months"`
	EventContext        string           `json:"event_context,omitempty"`
	Cursor              string           `json:"-"`
	ScannedMessages     int              `json:"scanned_messages"`
	DiscoveredContacts  int              `json:"discovered_contacts"`
	CreatedCandidates   int              `json:"created_candidates"`
	ErrorsCount         int              `json:"errors_count"`
	ConsecutiveFailures int              `json:"-"`
	LastError           string           `json:"last_error,omitempty"`
	EnrichmentStatus    EnrichmentStatus `json:"enrichment_status"`
	EnrichedCount       int              `json:"enriched_count"`
	AutoImportedCount   int              `json:"auto_imported_count"`
	StartedAt           *time.Time       `json:"started_at,omitempty"`
	CompletedAt         *time.Time       `json:"completed_at,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// SupplierCandidate is a discovered external contact, pre-supplier.
// (OwnerID, Email) is unique; re-sighting the same address bumps
// MessageCount and LastSeenAt instead of creating a second row.
type SupplierCandidate struct {
	ID                  string          `json:"id"`
	OwnerID             int             `json:"owner_id"`
	Email               string          `json:"email"`
	Domain              string          `json:"domain"`
	DisplayName         string          `json:"display_name,omitempty"`
	Source              CandidateSource `json:"source"`
	Status              CandidateStatus `json:"status"`
	MessageCount        int             `json:"message_count"`
	FirstSeenAt         time.Time       `json:"first_seen_at"`
	LastSeenAt          time.Time       `json:"last_seen_at"`
	SampleSubjects      []string        `json:"sample_subjects,omitempty"`
	SuggestedName       string          `json:"suggested_supplier_name,omitempty"`
	SuggestedCategories []string        `json:"suggested_categories,omitempty"`
	PrimaryCategory     string          `json:"primary_category,omitempty"`
	Relevance           Relevance       `json:"relevance"`
	EnrichmentJSON      string          `json:"-"`
	SupplierID          *int            `json:"supplier_id,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

// Enriched reports whether the classification pass has scored this candidate.
func (c *SupplierCandidate) Enriched() bool {
	return !c.Relevance.IsUnknown()
}

// StatusDefinition is one stage of the vendor pipeline together with the
// signal phrases that indicate a conversation has reached it.
type StatusDefinition struct {
	Slug            string   `json:"slug"`
	Name            string   `json:"name"`
	Order           int      `json:"order"`
	Color           string   `json:"color"`
	InboundSignals  []string `json:"inbound_signals"`
	OutboundSignals []string `json:"outbound_signals"`
	ThreadPatterns  []string `json:"thread_patterns,omitempty"`
	IsSystem        bool     `json:"is_system"`
	IsEnabled       bool     `json:"is_enabled"`
}

// StatusProposal is a pending, human-resolvable status transition suggestion.
// FromStatus is the last observed status at detection time; empty means the
// relationship had no status yet.
type StatusProposal struct {
	ID             string             `json:"id"`
	OwnerID        int                `json:"owner_id"`
	ProjectID      int                `json:"project_id"`
	SupplierID     int                `json:"supplier_id"`
	FromStatus     string             `json:"from_status,omitempty"`
	ToStatus       string             `json:"to_status"`
	Confidence     float64            `json:"confidence"`
	MatchedSignals []string           `json:"matched_signals"`
	Reasoning      string             `json:"reasoning,omitempty"`
	ThreadID       string             `json:"thread_id,omitempty"`
	MessageID      string             `json:"message_id,omitempty"`
	Resolution     ProposalResolution `json:"resolution"`
	CreatedAt      time.Time          `json:"created_at"`
	ExpiresAt      time.Time          `json:"expires_at"`
	ResolvedAt     *time.Time         `json:"resolved_at,omitempty"`
}

// Expired reports whether the proposal is past its resolution horizon.
func (p *StatusProposal) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// ThreadSummary is the stored shape of one mail conversation.
type ThreadSummary struct {
	ThreadID       string          `json:"thread_id"`
	OwnerID        int             `json:"owner_id"`
	Subject        string          `json:"subject"`
	Participants   []string        `json:"participant_emails"`
	FirstMessageAt time.Time       `json:"first_message_at"`
	LastMessageAt  time.Time       `json:"last_message_at"`
	MessageCount   int             `json:"message_count"`
	ProjectID      *int            `json:"project_id,omitempty"`
	LinkState      ThreadLinkState `json:"link_state"`
	UpdatedAt      time.Time       `json:"-"`
}

// ProjectMatch is one scored project suggestion for an unlinked thread.
type ProjectMatch struct {
	ProjectID    int      `json:"project_id"`
	ProjectName  string   `json:"project_name"`
	Score        float64  `json:"score"`
	MatchReasons []string `json:"match_reasons"`
}

// Supplier is a confirmed vendor record in the planner's directory.
type Supplier struct {
	ID         int       `json:"id"`
	OwnerID    int       `json:"owner_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email,omitempty"`
	Domain     string    `json:"domain,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	Categories []string  `json:"categories,omitempty"`
	Source     string    `json:"source,omitempty"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Project is one event the planner is organizing.
type Project struct {
	ID            int       `json:"id"`
	OwnerID       int       `json:"owner_id"`
	Name          string    `json:"name"`
	ClientName    string    `json:"client_name,omitempty"`
	Venue         string    `json:"venue,omitempty"`
	EventDate     time.Time `json:"event_date"`
	ContactEmails []string  `json:"contact_emails,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ProjectSupplier is the vendor-relationship row a proposal mutates.
type ProjectSupplier struct {
	ProjectID  int       `json:"project_id"`
	SupplierID int       `json:"supplier_id"`
	StatusSlug string    `json:"status"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// StatusChange is an append-only history row for a project-supplier
// status mutation. Actor is "user", "import", or "proposal:<id>".
type StatusChange struct {
	ID         string    `json:"id"`
	ProjectID  int       `json:"project_id"`
	SupplierID int       `json:"supplier_id"`
	FromStatus string    `json:"from_status,omitempty"`
	ToStatus   string    `json:"to_status"`
	Actor      string    `json:"actor"`
	CreatedAt  time.Time `json:"created_at"`
}

// ExportStatus is the lifecycle state of a generated export file.
type ExportStatus string

const (
	ExportPending    ExportStatus = "pending"
	ExportProcessing ExportStatus = "processing"
	ExportReady      ExportStatus = "ready"
	ExportFailed     ExportStatus = "failed"
)

// ExportRecord tracks one requested candidate/supplier export.
type ExportRecord struct {
	ID           string       `json:"id"`
	OwnerID      int          `json:"owner_id"`
	Kind         string       `json:"kind"`
	Format       string       `json:"format"`
	Status       ExportStatus `json:"status"`
	RowCount     int          `json:"row_count"`
	FilePath     string       `json:"-"`
	FileURL      string       `json:"file_url,omitempty"`
	ErrorMessage string       `json:"error_message,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
}
