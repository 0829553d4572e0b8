// Package postgres implements store.Store on PostgreSQL via database/sql
// and lib/pq. The schema is created on startup; all statements use
// positional placeholders.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/store"
)

const schemaTimeout = 10 * time.Second

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS backfill_runs (
		id TEXT PRIMARY KEY,
		owner_id INTEGER NOT NULL,
		status TEXT NOT NULL,
		timeframe_months INTEGER NOT NULL,
		event_context TEXT NOT NULL DEFAULT '',
		cursor TEXT NOT NULL DEFAULT '',
		scanned_messages INTEGER NOT NULL DEFAULT 0,
		discovered_contacts INTEGER NOT NULL DEFAULT 0,
		created_candidates INTEGER NOT NULL DEFAULT 0,
		errors_count INTEGER NOT NULL DEFAULT 0,
		consecutive_failures INTEGER NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL DEFAULT '',
		enrichment_status TEXT NOT NULL DEFAULT 'pending',
		enriched_count INTEGER NOT NULL DEFAULT 0,
		auto_imported_count INTEGER NOT NULL DEFAULT 0,
		started_at TIMESTAMPTZ,
		completed_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS backfill_runs_owner_idx ON backfill_runs (owner_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS backfill_runs_status_idx ON backfill_runs (status)`,
	`CREATE TABLE IF NOT EXISTS supplier_candidates (
		id TEXT PRIMARY KEY,
		owner_id INTEGER NOT NULL,
		email TEXT NOT NULL,
		domain TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'new',
		message_count INTEGER NOT NULL DEFAULT 0,
		first_seen_at TIMESTAMPTZ NOT NULL,
		last_seen_at TIMESTAMPTZ NOT NULL,
		sample_subjects JSONB NOT NULL DEFAULT '[]',
		suggested_name TEXT NOT NULL DEFAULT '',
		suggested_categories TEXT NOT NULL DEFAULT '[]',
		primary_category TEXT NOT NULL DEFAULT '',
		relevance_state TEXT NOT NULL DEFAULT 'unknown',
		relevance_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
		enrichment_json TEXT NOT NULL DEFAULT '',
		supplier_id INTEGER,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL,
		UNIQUE (owner_id, email)
	)`,
	`CREATE INDEX IF NOT EXISTS supplier_candidates_owner_status_idx ON supplier_candidates (owner_id, status)`,
	`CREATE TABLE IF NOT EXISTS status_overrides (
		owner_id INTEGER NOT NULL,
		slug TEXT NOT NULL,
		enabled BOOLEAN NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (owner_id, slug)
	)`,
	`CREATE TABLE IF NOT EXISTS status_proposals (
		id TEXT PRIMARY KEY,
		owner_id INTEGER NOT NULL,
		project_id INTEGER NOT NULL,
		supplier_id INTEGER NOT NULL,
		from_status TEXT NOT NULL DEFAULT '',
		to_status TEXT NOT NULL,
		confidence DOUBLE PRECISION NOT NULL,
		matched_signals TEXT NOT NULL DEFAULT '[]',
		reasoning TEXT NOT NULL DEFAULT '',
		thread_id TEXT NOT NULL DEFAULT '',
		message_id TEXT NOT NULL DEFAULT '',
		resolution TEXT NOT NULL DEFAULT 'pending',
		created_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL,
		resolved_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS status_proposals_owner_idx ON status_proposals (owner_id, resolution)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS status_proposals_pending_pair_idx
		ON status_proposals (project_id, supplier_id) WHERE resolution = 'pending'`,
	`CREATE TABLE IF NOT EXISTS mail_threads (
		owner_id INTEGER NOT NULL,
		thread_id TEXT NOT NULL,
		subject TEXT NOT NULL DEFAULT '',
		participants TEXT NOT NULL DEFAULT '[]',
		first_message_at TIMESTAMPTZ NOT NULL,
		last_message_at TIMESTAMPTZ NOT NULL,
		message_count INTEGER NOT NULL DEFAULT 0,
		project_id INTEGER,
		link_state TEXT NOT NULL DEFAULT 'pending',
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (owner_id, thread_id)
	)`,
	`CREATE TABLE IF NOT EXISTS suppliers (
		id SERIAL PRIMARY KEY,
		owner_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		domain TEXT NOT NULL DEFAULT '',
		phone TEXT NOT NULL DEFAULT '',
		categories TEXT NOT NULL DEFAULT '[]',
		source TEXT NOT NULL DEFAULT '',
		notes TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS suppliers_owner_email_idx ON suppliers (owner_id, email)`,
	`CREATE TABLE IF NOT EXISTS projects (
		id SERIAL PRIMARY KEY,
		owner_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		client_name TEXT NOT NULL DEFAULT '',
		venue TEXT NOT NULL DEFAULT '',
		event_date TIMESTAMPTZ NOT NULL,
		contact_emails TEXT NOT NULL DEFAULT '[]',
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS project_suppliers (
		project_id INTEGER NOT NULL,
		supplier_id INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (project_id, supplier_id)
	)`,
	`CREATE TABLE IF NOT EXISTS status_changes (
		id TEXT PRIMARY KEY,
		project_id INTEGER NOT NULL,
		supplier_id INTEGER NOT NULL,
		from_status TEXT NOT NULL DEFAULT '',
		to_status TEXT NOT NULL,
		actor TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS status_changes_pair_idx ON status_changes (project_id, supplier_id, created_at)`,
	`CREATE TABLE IF NOT EXISTS exports (
		id TEXT PRIMARY KEY,
		owner_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		format TEXT NOT NULL,
		status TEXT NOT NULL,
		row_count INTEGER NOT NULL DEFAULT 0,
		file_path TEXT NOT NULL DEFAULT '',
		file_url TEXT NOT NULL DEFAULT '',
		error_message TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		expires_at TIMESTAMPTZ NOT NULL
	)`,
}

// Store wraps an open connection pool. The pool is owned by the caller
// until New succeeds; Close releases it.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// New creates the schema if missing and returns the store.
func New(db *sql.DB) (*Store, error) {
	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	ctx, cancel := context.WithTimeout(context.Background(), schemaTimeout)
	defer cancel()

	for _, stmt := range schemaStatements {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// ownerRunLockKey derives the advisory lock key serializing run creation
// per owner.
func ownerRunLockKey(ownerID int) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "backfill-run:%d", ownerID)
	return int64(h.Sum64())
}

// Runs

const runColumns = `id, owner_id, status, timeframe_months, event_context, cursor,
	scanned_messages, discovered_contacts, created_candidates, errors_count,
	consecutive_failures, last_error, enrichment_status, enriched_count,
	auto_imported_count, started_at, completed_at, created_at, updated_at`

func (s *Store) CreateRun(ctx context.Context, run *domain.BackfillRun) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", ownerRunLockKey(run.OwnerID)); err != nil {
		return fmt.Errorf("acquire owner lock: %w", err)
	}

	var active int
	err = tx.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM backfill_runs WHERE owner_id = $1 AND status IN ('pending', 'running')",
		run.OwnerID,
	).Scan(&active)
	if err != nil {
		return fmt.Errorf("check active runs: %w", err)
	}
	if active > 0 {
		return domain.NewConflictError("a backfill run is already active for this account")
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO backfill_runs (`+runColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		run.ID, run.OwnerID, run.Status, run.TimeframeMonths, run.EventContext, run.Cursor,
		run.ScannedMessages, run.DiscoveredContacts, run.CreatedCandidates, run.ErrorsCount,
		run.ConsecutiveFailures, run.LastError, run.EnrichmentStatus, run.EnrichedCount,
		run.AutoImportedCount, nullTime(run.StartedAt), nullTime(run.CompletedAt),
		run.CreatedAt, run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func (s *Store) GetRun(ctx context.Context, id string) (*domain.BackfillRun, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+runColumns+" FROM backfill_runs WHERE id = $1", id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("backfill run")
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

func (s *Store) UpdateRun(ctx context.Context, run *domain.BackfillRun) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE backfill_runs SET
			status = $2, cursor = $3, scanned_messages = $4, discovered_contacts = $5,
			created_candidates = $6, errors_count = $7, consecutive_failures = $8,
			last_error = $9, enrichment_status = $10, enriched_count = $11,
			auto_imported_count = $12, started_at = $13, completed_at = $14, updated_at = $15
		WHERE id = $1`,
		run.ID, run.Status, run.Cursor, run.ScannedMessages, run.DiscoveredContacts,
		run.CreatedCandidates, run.ErrorsCount, run.ConsecutiveFailures, run.LastError,
		run.EnrichmentStatus, run.EnrichedCount, run.AutoImportedCount,
		nullTime(run.StartedAt), nullTime(run.CompletedAt), run.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return requireRow(res, "backfill run")
}

func (s *Store) ListRuns(ctx context.Context, ownerID int, limit, offset int) ([]*domain.BackfillRun, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM backfill_runs WHERE owner_id = $1", ownerID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count runs: %w", err)
	}

	query := "SELECT " + runColumns + " FROM backfill_runs WHERE owner_id = $1 ORDER BY created_at DESC, id ASC"
	args := []any{ownerID}
	query, args = addPagination(query, args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.BackfillRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, total, rows.Err()
}

func (s *Store) ListRunsByStatus(ctx context.Context, statuses ...domain.RunStatus) ([]*domain.BackfillRun, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]string, 0, len(statuses))
	args := make([]any, 0, len(statuses))
	for i, st := range statuses {
		placeholders = append(placeholders, fmt.Sprintf("$%d", i+1))
		args = append(args, st)
	}
	query := fmt.Sprintf(
		"SELECT %s FROM backfill_runs WHERE status IN (%s) ORDER BY created_at ASC, id ASC",
		runColumns, strings.Join(placeholders, ", "),
	)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs by status: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.BackfillRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, run)
	}
	return out, rows.Err()
}

func scanRun(row scanner) (*domain.BackfillRun, error) {
	var run domain.BackfillRun
	var startedAt, completedAt sql.NullTime
	err := row.Scan(
		&run.ID, &run.OwnerID, &run.Status, &run.TimeframeMonths, &run.EventContext, &run.Cursor,
		&run.ScannedMessages, &run.DiscoveredContacts, &run.CreatedCandidates, &run.ErrorsCount,
		&run.ConsecutiveFailures, &run.LastError, &run.EnrichmentStatus, &run.EnrichedCount,
		&run.AutoImportedCount, &startedAt, &completedAt, &run.CreatedAt, &run.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	run.StartedAt = timePtr(startedAt)
	run.CompletedAt = timePtr(completedAt)
	return &run, nil
}

// Candidates

const candidateColumns = `id, owner_id, email, domain, display_name, source, status,
	message_count, first_seen_at, last_seen_at, sample_subjects, suggested_name, suggested_categories,
	primary_category, relevance_state, relevance_confidence, enrichment_json,
	supplier_id, created_at, updated_at`

func (s *Store) UpsertSighting(ctx context.Context, in store.SightingInput) (*domain.SupplierCandidate, bool, error) {
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(`
		INSERT INTO supplier_candidates (
			id, owner_id, email, domain, display_name, source, status, message_count,
			first_seen_at, last_seen_at, sample_subjects, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, 'new', 1, $7, $7,
			CASE WHEN $8 = '' THEN '[]'::jsonb ELSE jsonb_build_array($8::text) END,
			NOW(), NOW())
		ON CONFLICT (owner_id, email) DO UPDATE SET
			message_count = supplier_candidates.message_count + 1,
			first_seen_at = LEAST(supplier_candidates.first_seen_at, EXCLUDED.first_seen_at),
			last_seen_at = GREATEST(supplier_candidates.last_seen_at, EXCLUDED.last_seen_at),
			display_name = CASE
				WHEN supplier_candidates.display_name = '' THEN EXCLUDED.display_name
				ELSE supplier_candidates.display_name
			END,
			sample_subjects = CASE
				WHEN $8 = '' OR supplier_candidates.sample_subjects ? $8::text
					OR jsonb_array_length(supplier_candidates.sample_subjects) >= %d
				THEN supplier_candidates.sample_subjects
				ELSE supplier_candidates.sample_subjects || to_jsonb($8::text)
			END,
			updated_at = NOW()
		RETURNING `+candidateColumns, store.MaxSampleSubjects),
		uuid.NewString(), in.OwnerID, strings.ToLower(in.Email), in.Domain, in.DisplayName,
		in.Source, in.SeenAt, strings.TrimSpace(in.Subject),
	)
	c, err := scanCandidate(row)
	if err != nil {
		return nil, false, fmt.Errorf("upsert sighting: %w", err)
	}
	// A fresh row starts at count 1; conflicts always land at 2 or more.
	return c, c.MessageCount == 1, nil
}

func (s *Store) GetCandidate(ctx context.Context, id string) (*domain.SupplierCandidate, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+candidateColumns+" FROM supplier_candidates WHERE id = $1", id)
	c, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("candidate")
	}
	if err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	return c, nil
}

func (s *Store) FindCandidateByEmail(ctx context.Context, ownerID int, email string) (*domain.SupplierCandidate, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+candidateColumns+" FROM supplier_candidates WHERE owner_id = $1 AND email = $2",
		ownerID, strings.ToLower(email),
	)
	c, err := scanCandidate(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("candidate")
	}
	if err != nil {
		return nil, fmt.Errorf("find candidate: %w", err)
	}
	return c, nil
}

func (s *Store) ListCandidates(ctx context.Context, ownerID int, f store.CandidateFilter) ([]*domain.SupplierCandidate, int, error) {
	where := []string{"owner_id = $1"}
	args := []any{ownerID}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if f.Relevance != "" {
		args = append(args, f.Relevance)
		where = append(where, fmt.Sprintf("relevance_state = $%d", len(args)))
	}
	if f.ExcludeNotRelevant {
		where = append(where, "relevance_state <> 'not_relevant'")
	}
	if f.Source != "" {
		args = append(args, f.Source)
		where = append(where, fmt.Sprintf("source = $%d", len(args)))
	}
	if f.Search != "" {
		args = append(args, "%"+f.Search+"%")
		n := len(args)
		where = append(where, fmt.Sprintf(
			"(email ILIKE $%d OR display_name ILIKE $%d OR suggested_name ILIKE $%d)", n, n, n))
	}
	cond := strings.Join(where, " AND ")

	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM supplier_candidates WHERE "+cond, args...,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count candidates: %w", err)
	}

	query := "SELECT " + candidateColumns + " FROM supplier_candidates WHERE " + cond +
		" ORDER BY last_seen_at DESC, email ASC"
	query, args = addPagination(query, args, f.Limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.SupplierCandidate, 0)
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (s *Store) UpdateCandidate(ctx context.Context, c *domain.SupplierCandidate) error {
	categories, err := json.Marshal(c.SuggestedCategories)
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	// A nil slice would land as jsonb null and break the upsert's
	// array operators.
	subjects, err := json.Marshal(append([]string{}, c.SampleSubjects...))
	if err != nil {
		return fmt.Errorf("marshal subjects: %w", err)
	}
	state := c.Relevance.State()
	confidence, _ := c.Relevance.Confidence()

	res, err := s.db.ExecContext(ctx, `
		UPDATE supplier_candidates SET
			display_name = $2, status = $3, message_count = $4, first_seen_at = $5,
			last_seen_at = $6, sample_subjects = $7, suggested_name = $8,
			suggested_categories = $9, primary_category = $10, relevance_state = $11,
			relevance_confidence = $12, enrichment_json = $13, supplier_id = $14,
			updated_at = $15
		WHERE id = $1`,
		c.ID, c.DisplayName, c.Status, c.MessageCount, c.FirstSeenAt,
		c.LastSeenAt, string(subjects), c.SuggestedName, string(categories),
		c.PrimaryCategory, state, confidence,
		c.EnrichmentJSON, nullInt(c.SupplierID), c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update candidate: %w", err)
	}
	return requireRow(res, "candidate")
}

func (s *Store) CountCandidates(ctx context.Context, ownerID int) (map[domain.CandidateStatus]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM supplier_candidates WHERE owner_id = $1 GROUP BY status",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("count candidates: %w", err)
	}
	defer rows.Close()

	counts := map[domain.CandidateStatus]int{}
	for rows.Next() {
		var status domain.CandidateStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scan count: %w", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func scanCandidate(row scanner) (*domain.SupplierCandidate, error) {
	var c domain.SupplierCandidate
	var subjects string
	var categories string
	var state string
	var confidence float64
	var supplierID sql.NullInt64
	err := row.Scan(
		&c.ID, &c.OwnerID, &c.Email, &c.Domain, &c.DisplayName, &c.Source, &c.Status,
		&c.MessageCount, &c.FirstSeenAt, &c.LastSeenAt, &subjects, &c.SuggestedName, &categories,
		&c.PrimaryCategory, &state, &confidence, &c.EnrichmentJSON,
		&supplierID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if subjects != "" && subjects != "[]" {
		if err := json.Unmarshal([]byte(subjects), &c.SampleSubjects); err != nil {
			return nil, fmt.Errorf("decode subjects: %w", err)
		}
	}
	if categories != "" && categories != "[]" {
		if err := json.Unmarshal([]byte(categories), &c.SuggestedCategories); err != nil {
			return nil, fmt.Errorf("decode categories: %w", err)
		}
	}
	relevance, err := domain.RelevanceFrom(domain.RelevanceState(state), confidence)
	if err != nil {
		return nil, err
	}
	c.Relevance = relevance
	c.SupplierID = intPtr(supplierID)
	return &c, nil
}

// Status overrides

func (s *Store) GetStatusOverrides(ctx context.Context, ownerID int) (map[string]bool, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT slug, enabled FROM status_overrides WHERE owner_id = $1", ownerID)
	if err != nil {
		return nil, fmt.Errorf("get status overrides: %w", err)
	}
	defer rows.Close()

	out := map[string]bool{}
	for rows.Next() {
		var slug string
		var enabled bool
		if err := rows.Scan(&slug, &enabled); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		out[slug] = enabled
	}
	return out, rows.Err()
}

func (s *Store) SetStatusOverride(ctx context.Context, ownerID int, slug string, enabled bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO status_overrides (owner_id, slug, enabled, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (owner_id, slug)
		DO UPDATE SET enabled = EXCLUDED.enabled, updated_at = NOW()`,
		ownerID, slug, enabled,
	)
	if err != nil {
		return fmt.Errorf("set status override: %w", err)
	}
	return nil
}

// Proposals

const proposalColumns = `id, owner_id, project_id, supplier_id, from_status, to_status,
	confidence, matched_signals, reasoning, thread_id, message_id, resolution,
	created_at, expires_at, resolved_at`

func (s *Store) UpsertProposal(ctx context.Context, p *domain.StatusProposal) error {
	signals, err := json.Marshal(p.MatchedSignals)
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx,
		"DELETE FROM status_proposals WHERE project_id = $1 AND supplier_id = $2 AND resolution = 'pending'",
		p.ProjectID, p.SupplierID,
	)
	if err != nil {
		return fmt.Errorf("replace pending proposal: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO status_proposals (`+proposalColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ID, p.OwnerID, p.ProjectID, p.SupplierID, p.FromStatus, p.ToStatus,
		p.Confidence, string(signals), p.Reasoning, p.ThreadID, p.MessageID, p.Resolution,
		p.CreatedAt, p.ExpiresAt, nullTime(p.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("insert proposal: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func (s *Store) GetProposal(ctx context.Context, id string) (*domain.StatusProposal, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+proposalColumns+" FROM status_proposals WHERE id = $1", id)
	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("proposal")
	}
	if err != nil {
		return nil, fmt.Errorf("get proposal: %w", err)
	}
	return p, nil
}

func (s *Store) ListPendingProposals(ctx context.Context, ownerID int, now time.Time) ([]*domain.StatusProposal, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+proposalColumns+` FROM status_proposals
		WHERE owner_id = $1 AND resolution = 'pending' AND expires_at > $2
		ORDER BY created_at DESC, id ASC`,
		ownerID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending proposals: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.StatusProposal, 0)
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan proposal: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpdateProposal(ctx context.Context, p *domain.StatusProposal) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE status_proposals SET resolution = $2, resolved_at = $3 WHERE id = $1`,
		p.ID, p.Resolution, nullTime(p.ResolvedAt),
	)
	if err != nil {
		return fmt.Errorf("update proposal: %w", err)
	}
	return requireRow(res, "proposal")
}

func (s *Store) DeleteExpiredProposals(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM status_proposals WHERE resolution = 'pending' AND expires_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired proposals: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func scanProposal(row scanner) (*domain.StatusProposal, error) {
	var p domain.StatusProposal
	var signals string
	var resolvedAt sql.NullTime
	err := row.Scan(
		&p.ID, &p.OwnerID, &p.ProjectID, &p.SupplierID, &p.FromStatus, &p.ToStatus,
		&p.Confidence, &signals, &p.Reasoning, &p.ThreadID, &p.MessageID, &p.Resolution,
		&p.CreatedAt, &p.ExpiresAt, &resolvedAt,
	)
	if err != nil {
		return nil, err
	}
	if signals != "" && signals != "[]" {
		if err := json.Unmarshal([]byte(signals), &p.MatchedSignals); err != nil {
			return nil, fmt.Errorf("decode signals: %w", err)
		}
	}
	p.ResolvedAt = timePtr(resolvedAt)
	return &p, nil
}

// Threads

const threadColumns = `owner_id, thread_id, subject, participants, first_message_at,
	last_message_at, message_count, project_id, link_state, updated_at`

func (s *Store) UpsertThread(ctx context.Context, t *domain.ThreadSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	existing, err := scanThread(tx.QueryRowContext(ctx,
		"SELECT "+threadColumns+" FROM mail_threads WHERE owner_id = $1 AND thread_id = $2 FOR UPDATE",
		t.OwnerID, t.ThreadID,
	))
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("lock thread: %w", err)
	}

	if errors.Is(err, sql.ErrNoRows) {
		linkState := t.LinkState
		if linkState == "" {
			linkState = domain.ThreadLinkPending
		}
		participants, err := json.Marshal(t.Participants)
		if err != nil {
			return fmt.Errorf("marshal participants: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO mail_threads (`+threadColumns+`)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())`,
			t.OwnerID, t.ThreadID, t.Subject, string(participants), t.FirstMessageAt,
			t.LastMessageAt, t.MessageCount, nullInt(t.ProjectID), linkState,
		)
		if err != nil {
			return fmt.Errorf("insert thread: %w", err)
		}
	} else {
		merged := mergeThread(existing, t)
		participants, err := json.Marshal(merged.Participants)
		if err != nil {
			return fmt.Errorf("marshal participants: %w", err)
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE mail_threads SET
				subject = $3, participants = $4, first_message_at = $5,
				last_message_at = $6, message_count = $7, updated_at = NOW()
			WHERE owner_id = $1 AND thread_id = $2`,
			t.OwnerID, t.ThreadID, merged.Subject, string(participants),
			merged.FirstMessageAt, merged.LastMessageAt, merged.MessageCount,
		)
		if err != nil {
			return fmt.Errorf("update thread: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

// mergeThread refreshes mailbox-derived fields; link state and project
// assignment stay as stored.
func mergeThread(existing, incoming *domain.ThreadSummary) *domain.ThreadSummary {
	merged := *existing
	if incoming.Subject != "" {
		merged.Subject = incoming.Subject
	}
	merged.Participants = unionStrings(existing.Participants, incoming.Participants)
	if !incoming.FirstMessageAt.IsZero() && incoming.FirstMessageAt.Before(merged.FirstMessageAt) {
		merged.FirstMessageAt = incoming.FirstMessageAt
	}
	if incoming.LastMessageAt.After(merged.LastMessageAt) {
		merged.LastMessageAt = incoming.LastMessageAt
	}
	if incoming.MessageCount > merged.MessageCount {
		merged.MessageCount = incoming.MessageCount
	}
	return &merged
}

func (s *Store) GetThread(ctx context.Context, ownerID int, threadID string) (*domain.ThreadSummary, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+threadColumns+" FROM mail_threads WHERE owner_id = $1 AND thread_id = $2",
		ownerID, threadID,
	)
	t, err := scanThread(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("thread")
	}
	if err != nil {
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return t, nil
}

func (s *Store) ListThreadsNeedingLink(ctx context.Context, ownerID int, limit, offset int) ([]*domain.ThreadSummary, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM mail_threads WHERE owner_id = $1 AND link_state = 'pending'",
		ownerID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count threads: %w", err)
	}

	query := "SELECT " + threadColumns + ` FROM mail_threads
		WHERE owner_id = $1 AND link_state = 'pending'
		ORDER BY last_message_at DESC, thread_id ASC`
	args := []any{ownerID}
	query, args = addPagination(query, args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.ThreadSummary, 0)
	for rows.Next() {
		t, err := scanThread(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan thread: %w", err)
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (s *Store) UpdateThread(ctx context.Context, t *domain.ThreadSummary) error {
	participants, err := json.Marshal(t.Participants)
	if err != nil {
		return fmt.Errorf("marshal participants: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE mail_threads SET
			subject = $3, participants = $4, first_message_at = $5, last_message_at = $6,
			message_count = $7, project_id = $8, link_state = $9, updated_at = NOW()
		WHERE owner_id = $1 AND thread_id = $2`,
		t.OwnerID, t.ThreadID, t.Subject, string(participants), t.FirstMessageAt,
		t.LastMessageAt, t.MessageCount, nullInt(t.ProjectID), t.LinkState,
	)
	if err != nil {
		return fmt.Errorf("update thread: %w", err)
	}
	return requireRow(res, "thread")
}

func scanThread(row scanner) (*domain.ThreadSummary, error) {
	var t domain.ThreadSummary
	var participants string
	var projectID sql.NullInt64
	err := row.Scan(
		&t.OwnerID, &t.ThreadID, &t.Subject, &participants, &t.FirstMessageAt,
		&t.LastMessageAt, &t.MessageCount, &projectID, &t.LinkState, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if participants != "" && participants != "[]" {
		if err := json.Unmarshal([]byte(participants), &t.Participants); err != nil {
			return nil, fmt.Errorf("decode participants: %w", err)
		}
	}
	t.ProjectID = intPtr(projectID)
	return &t, nil
}

// Suppliers

const supplierColumns = `id, owner_id, name, email, domain, phone, categories,
	source, notes, created_at, updated_at`

func (s *Store) CreateSupplier(ctx context.Context, sup *domain.Supplier) error {
	categories, err := json.Marshal(sup.Categories)
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO suppliers (owner_id, name, email, domain, phone, categories, source, notes, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		RETURNING id`,
		sup.OwnerID, sup.Name, strings.ToLower(sup.Email), sup.Domain, sup.Phone,
		string(categories), sup.Source, sup.Notes, sup.CreatedAt, sup.UpdatedAt,
	).Scan(&sup.ID)
	if err != nil {
		return fmt.Errorf("insert supplier: %w", err)
	}
	return nil
}

func (s *Store) GetSupplier(ctx context.Context, id int) (*domain.Supplier, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+supplierColumns+" FROM suppliers WHERE id = $1", id)
	sup, err := scanSupplier(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("supplier")
	}
	if err != nil {
		return nil, fmt.Errorf("get supplier: %w", err)
	}
	return sup, nil
}

func (s *Store) FindSupplierByEmail(ctx context.Context, ownerID int, email string) (*domain.Supplier, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+supplierColumns+" FROM suppliers WHERE owner_id = $1 AND email = $2 ORDER BY id ASC LIMIT 1",
		ownerID, strings.ToLower(email),
	)
	sup, err := scanSupplier(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("supplier")
	}
	if err != nil {
		return nil, fmt.Errorf("find supplier: %w", err)
	}
	return sup, nil
}

func (s *Store) ListSuppliers(ctx context.Context, ownerID int, limit, offset int) ([]*domain.Supplier, int, error) {
	var total int
	if err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM suppliers WHERE owner_id = $1", ownerID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count suppliers: %w", err)
	}

	query := "SELECT " + supplierColumns + " FROM suppliers WHERE owner_id = $1 ORDER BY name ASC, id ASC"
	args := []any{ownerID}
	query, args = addPagination(query, args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list suppliers: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Supplier, 0)
	for rows.Next() {
		sup, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan supplier: %w", err)
		}
		out = append(out, sup)
	}
	return out, total, rows.Err()
}

func (s *Store) UpdateSupplier(ctx context.Context, sup *domain.Supplier) error {
	categories, err := json.Marshal(sup.Categories)
	if err != nil {
		return fmt.Errorf("marshal categories: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE suppliers SET
			name = $2, email = $3, domain = $4, phone = $5, categories = $6,
			source = $7, notes = $8, updated_at = $9
		WHERE id = $1`,
		sup.ID, sup.Name, strings.ToLower(sup.Email), sup.Domain, sup.Phone,
		string(categories), sup.Source, sup.Notes, sup.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update supplier: %w", err)
	}
	return requireRow(res, "supplier")
}

func scanSupplier(row scanner) (*domain.Supplier, error) {
	var sup domain.Supplier
	var categories string
	err := row.Scan(
		&sup.ID, &sup.OwnerID, &sup.Name, &sup.Email, &sup.Domain, &sup.Phone,
		&categories, &sup.Source, &sup.Notes, &sup.CreatedAt, &sup.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if categories != "" && categories != "[]" {
		if err := json.Unmarshal([]byte(categories), &sup.Categories); err != nil {
			return nil, fmt.Errorf("decode categories: %w", err)
		}
	}
	return &sup, nil
}

func (s *Store) GetProjectSupplier(ctx context.Context, projectID, supplierID int) (*domain.ProjectSupplier, error) {
	var ps domain.ProjectSupplier
	err := s.db.QueryRowContext(ctx,
		"SELECT project_id, supplier_id, status, updated_at FROM project_suppliers WHERE project_id = $1 AND supplier_id = $2",
		projectID, supplierID,
	).Scan(&ps.ProjectID, &ps.SupplierID, &ps.StatusSlug, &ps.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("project supplier")
	}
	if err != nil {
		return nil, fmt.Errorf("get project supplier: %w", err)
	}
	return &ps, nil
}

func (s *Store) AttachSupplier(ctx context.Context, ps *domain.ProjectSupplier) error {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO project_suppliers (project_id, supplier_id, status, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (project_id, supplier_id) DO NOTHING`,
		ps.ProjectID, ps.SupplierID, ps.StatusSlug, ps.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("attach supplier: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewConflictError("supplier already attached to project")
	}
	return nil
}

func (s *Store) SetProjectSupplierStatus(ctx context.Context, projectID, supplierID int, toStatus, actor string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var fromStatus string
	err = tx.QueryRowContext(ctx,
		"SELECT status FROM project_suppliers WHERE project_id = $1 AND supplier_id = $2 FOR UPDATE",
		projectID, supplierID,
	).Scan(&fromStatus)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewNotFoundError("project supplier")
	}
	if err != nil {
		return fmt.Errorf("lock project supplier: %w", err)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		"UPDATE project_suppliers SET status = $3, updated_at = $4 WHERE project_id = $1 AND supplier_id = $2",
		projectID, supplierID, toStatus, now,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO status_changes (id, project_id, supplier_id, from_status, to_status, actor, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		uuid.NewString(), projectID, supplierID, fromStatus, toStatus, actor, now,
	)
	if err != nil {
		return fmt.Errorf("insert status change: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	committed = true
	return nil
}

func (s *Store) ListStatusChanges(ctx context.Context, projectID, supplierID int) ([]*domain.StatusChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_id, supplier_id, from_status, to_status, actor, created_at
		FROM status_changes
		WHERE project_id = $1 AND supplier_id = $2
		ORDER BY created_at ASC, id ASC`,
		projectID, supplierID,
	)
	if err != nil {
		return nil, fmt.Errorf("list status changes: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.StatusChange, 0)
	for rows.Next() {
		var c domain.StatusChange
		if err := rows.Scan(&c.ID, &c.ProjectID, &c.SupplierID, &c.FromStatus, &c.ToStatus, &c.Actor, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan status change: %w", err)
		}
		out = append(out, &c)
	}
	return out, rows.Err()
}

// Projects

func (s *Store) CreateProject(ctx context.Context, p *domain.Project) error {
	emails, err := json.Marshal(p.ContactEmails)
	if err != nil {
		return fmt.Errorf("marshal contact emails: %w", err)
	}
	err = s.db.QueryRowContext(ctx, `
		INSERT INTO projects (owner_id, name, client_name, venue, event_date, contact_emails, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING id`,
		p.OwnerID, p.Name, p.ClientName, p.Venue, p.EventDate, string(emails), p.CreatedAt,
	).Scan(&p.ID)
	if err != nil {
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (s *Store) GetProject(ctx context.Context, id int) (*domain.Project, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT id, owner_id, name, client_name, venue, event_date, contact_emails, created_at FROM projects WHERE id = $1",
		id,
	)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("project")
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context, ownerID int) ([]*domain.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, owner_id, name, client_name, venue, event_date, contact_emails, created_at
		FROM projects WHERE owner_id = $1
		ORDER BY event_date ASC, id ASC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.Project, 0)
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) ListProjectSuppliers(ctx context.Context, projectID int) ([]*domain.ProjectSupplier, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT project_id, supplier_id, status, updated_at FROM project_suppliers WHERE project_id = $1 ORDER BY supplier_id ASC",
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list project suppliers: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.ProjectSupplier, 0)
	for rows.Next() {
		var ps domain.ProjectSupplier
		if err := rows.Scan(&ps.ProjectID, &ps.SupplierID, &ps.StatusSlug, &ps.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan project supplier: %w", err)
		}
		out = append(out, &ps)
	}
	return out, rows.Err()
}

func scanProject(row scanner) (*domain.Project, error) {
	var p domain.Project
	var emails string
	err := row.Scan(&p.ID, &p.OwnerID, &p.Name, &p.ClientName, &p.Venue, &p.EventDate, &emails, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	if emails != "" && emails != "[]" {
		if err := json.Unmarshal([]byte(emails), &p.ContactEmails); err != nil {
			return nil, fmt.Errorf("decode contact emails: %w", err)
		}
	}
	return &p, nil
}

// Exports

const exportColumns = `id, owner_id, kind, format, status, row_count, file_path,
	file_url, error_message, created_at, expires_at`

func (s *Store) CreateExport(ctx context.Context, e *domain.ExportRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO exports (`+exportColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		e.ID, e.OwnerID, e.Kind, e.Format, e.Status, e.RowCount, e.FilePath,
		e.FileURL, e.ErrorMessage, e.CreatedAt, e.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert export: %w", err)
	}
	return nil
}

func (s *Store) GetExport(ctx context.Context, id string) (*domain.ExportRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+exportColumns+" FROM exports WHERE id = $1", id)
	e, err := scanExport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewNotFoundError("export")
	}
	if err != nil {
		return nil, fmt.Errorf("get export: %w", err)
	}
	return e, nil
}

func (s *Store) UpdateExport(ctx context.Context, e *domain.ExportRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE exports SET status = $2, row_count = $3, file_path = $4, file_url = $5, error_message = $6
		WHERE id = $1`,
		e.ID, e.Status, e.RowCount, e.FilePath, e.FileURL, e.ErrorMessage,
	)
	if err != nil {
		return fmt.Errorf("update export: %w", err)
	}
	return requireRow(res, "export")
}

func (s *Store) ListExports(ctx context.Context, ownerID int) ([]*domain.ExportRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+exportColumns+" FROM exports WHERE owner_id = $1 ORDER BY created_at DESC, id ASC",
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list exports: %w", err)
	}
	defer rows.Close()

	out := make([]*domain.ExportRecord, 0)
	for rows.Next() {
		e, err := scanExport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan export: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanExport(row scanner) (*domain.ExportRecord, error) {
	var e domain.ExportRecord
	err := row.Scan(
		&e.ID, &e.OwnerID, &e.Kind, &e.Format, &e.Status, &e.RowCount, &e.FilePath,
		&e.FileURL, &e.ErrorMessage, &e.CreatedAt, &e.ExpiresAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// helpers

type scanner interface {
	Scan(dest ...any) error
}

func addPagination(query string, args []any, limit, offset int) (string, []any) {
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}
	return query, args
}

func requireRow(res sql.Result, resource string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.NewNotFoundError(resource)
	}
	return nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	copied := t.Time.UTC()
	return &copied
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
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
