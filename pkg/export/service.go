// Package export generates downloadable CSV and XLSX snapshots of the
// candidate queue and the supplier directory. Files build in the
// background; callers poll the export record until it turns ready and
// fetch the file through the download endpoint before it expires.
package export

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/plannerhq/vendorbook/pkg/candidates"
	"github.com/plannerhq/vendorbook/pkg/domain"
	"github.com/plannerhq/vendorbook/pkg/phone"
	"github.com/plannerhq/vendorbook/pkg/store"
	"github.com/plannerhq/vendorbook/pkg/suppliers"
)

const (
	KindCandidates = "candidates"
	KindSuppliers  = "suppliers"

	FormatCSV  = "csv"
	FormatXLSX = "xlsx"

	downloadTTL    = 24 * time.Hour
	defaultMaxRows = 1000
	hardMaxRows    = 10000
)

// Service handles export business logic
type Service struct {
	exports     store.ExportStore
	candidates  *candidates.Service
	suppliers   *suppliers.Service
	storagePath string
	logger      *log.Logger
}

// NewService creates a new export service writing files under storagePath.
func NewService(exportStore store.ExportStore, candidateSvc *candidates.Service, supplierSvc *suppliers.Service, storagePath string, logger *log.Logger) *Service {
	os.MkdirAll(storagePath, 0o755)
	if logger == nil {
		logger = log.Default()
	}
	return &Service{
		exports:     exportStore,
		candidates:  candidateSvc,
		suppliers:   supplierSvc,
		storagePath: storagePath,
		logger:      logger,
	}
}

// CreateInput describes one export request. The candidate filter fields
// are ignored for supplier exports.
type CreateInput struct {
	Kind              string
	Format            string
	MaxRows           int
	Status            domain.CandidateStatus
	Search            string
	IncludeIrrelevant bool
}

// Create records the export and starts building the file in the
// background. The returned record is still pending.
func (s *Service) Create(ctx context.Context, ownerID int, in CreateInput) (*domain.ExportRecord, error) {
	if in.Kind != KindCandidates && in.Kind != KindSuppliers {
		return nil, domain.NewValidationError(fmt.Sprintf("unknown export kind %q", in.Kind))
	}
	if in.Format != FormatCSV && in.Format != FormatXLSX {
		return nil, domain.NewValidationError("format must be csv or xlsx")
	}
	if in.MaxRows <= 0 {
		in.MaxRows = defaultMaxRows
	}
	if in.MaxRows > hardMaxRows {
		in.MaxRows = hardMaxRows
	}

	now := time.Now().UTC()
	rec := &domain.ExportRecord{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Kind:      in.Kind,
		Format:    in.Format,
		Status:    domain.ExportPending,
		CreatedAt: now,
		ExpiresAt: now.Add(downloadTTL),
	}
	if err := s.exports.CreateExport(ctx, rec); err != nil {
		return nil, fmt.Errorf("creating export: %w", err)
	}

	go s.process(rec.ID, ownerID, in)

	return rec, nil
}

// process builds the file in the background and settles the record to
// ready or failed.
func (s *Service) process(exportID string, ownerID int, in CreateInput) {
	ctx := context.Background()

	rec, err := s.exports.GetExport(ctx, exportID)
	if err != nil {
		s.logger.Printf("⚠️ Export %s disappeared before processing: %v", exportID, err)
		return
	}

	rec.Status = domain.ExportProcessing
	if err := s.exports.UpdateExport(ctx, rec); err != nil {
		s.logger.Printf("⚠️ Export %s could not start: %v", exportID, err)
		return
	}

	header, rows, err := s.collect(ctx, ownerID, in)
	if err != nil {
		s.fail(ctx, rec, err)
		return
	}

	filename := fmt.Sprintf("export-%s-%s.%s", rec.ID, time.Now().Format("20060102-150405"), rec.Format)
	path := filepath.Join(s.storagePath, filename)

	switch rec.Format {
	case FormatCSV:
		err = writeCSV(path, header, rows)
	case FormatXLSX:
		err = writeXLSX(path, sheetName(rec.Kind), header, rows)
	}
	if err != nil {
		s.fail(ctx, rec, err)
		return
	}

	rec.Status = domain.ExportReady
	rec.RowCount = len(rows)
	rec.FilePath = path
	rec.FileURL = fmt.Sprintf("/api/v1/exports/%s/download", rec.ID)
	if err := s.exports.UpdateExport(ctx, rec); err != nil {
		s.logger.Printf("⚠️ Export %s finished but could not be marked ready: %v", exportID, err)
	}
}

func (s *Service) fail(ctx context.Context, rec *domain.ExportRecord, cause error) {
	s.logger.Printf("⚠️ Export %s failed: %v", rec.ID, cause)
	rec.Status = domain.ExportFailed
	rec.ErrorMessage = cause.Error()
	if err := s.exports.UpdateExport(ctx, rec); err != nil {
		s.logger.Printf("⚠️ Export %s failure could not be recorded: %v", rec.ID, err)
	}
}

// collect snapshots the rows the export covers.
func (s *Service) collect(ctx context.Context, ownerID int, in CreateInput) ([]string, [][]string, error) {
	switch in.Kind {
	case KindCandidates:
		list, _, err := s.candidates.List(ctx, ownerID, candidates.Filter{
			Status:            in.Status,
			Search:            in.Search,
			IncludeIrrelevant: in.IncludeIrrelevant,
			Limit:             in.MaxRows,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("listing candidates: %w", err)
		}
		rows := make([][]string, len(list))
		for i, c := range list {
			rows[i] = candidateRow(c)
		}
		return candidateHeader, rows, nil

	case KindSuppliers:
		list, _, err := s.suppliers.List(ctx, ownerID, in.MaxRows, 0)
		if err != nil {
			return nil, nil, fmt.Errorf("listing suppliers: %w", err)
		}
		rows := make([][]string, len(list))
		for i, sup := range list {
			rows[i] = supplierRow(sup)
		}
		return supplierHeader, rows, nil
	}

	return nil, nil, domain.NewValidationError(fmt.Sprintf("unknown export kind %q", in.Kind))
}

var candidateHeader = []string{
	"Email", "Display Name", "Suggested Name", "Domain", "Category",
	"Relevance", "Confidence", "Status", "Messages", "First Seen",
	"Last Seen", "Source",
}

func candidateRow(c *domain.SupplierCandidate) []string {
	confidence := ""
	if conf, ok := c.Relevance.Confidence(); ok {
		confidence = fmt.Sprintf("%.2f", conf)
	}
	return []string{
		c.Email,
		c.DisplayName,
		c.SuggestedName,
		c.Domain,
		c.PrimaryCategory,
		string(c.Relevance.State()),
		confidence,
		string(c.Status),
		strconv.Itoa(c.MessageCount),
		c.FirstSeenAt.Format(time.RFC3339),
		c.LastSeenAt.Format(time.RFC3339),
		string(c.Source),
	}
}

var supplierHeader = []string{
	"ID", "Name", "Email", "Phone", "Categories", "Source", "Notes", "Created At",
}

func supplierRow(s *domain.Supplier) []string {
	return []string{
		strconv.Itoa(s.ID),
		s.Name,
		s.Email,
		phone.DisplayPhone(s.Phone),
		strings.Join(s.Categories, "; "),
		s.Source,
		s.Notes,
		s.CreatedAt.Format(time.RFC3339),
	}
}

func sheetName(kind string) string {
	if kind == KindSuppliers {
		return "Suppliers"
	}
	return "Candidates"
}

func writeCSV(path string, header []string, rows [][]string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return fmt.Errorf("writing row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

func writeXLSX(path, sheet string, header []string, rows [][]string) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheet)
	if err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0E0E0"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("creating style: %w", err)
	}

	for i, h := range header {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheet, cell, h)
		f.SetCellStyle(sheet, cell, cell, headerStyle)
	}

	for rowIdx, row := range rows {
		for colIdx, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIdx, rowIdx+2)
			f.SetCellValue(sheet, cell, value)
		}
	}

	for i := range header {
		col := string(rune('A' + i))
		f.SetColWidth(sheet, col, col, 18)
	}

	f.SetActiveSheet(index)

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving file: %w", err)
	}
	return nil
}

// Get returns one export record, owner scoped.
func (s *Service) Get(ctx context.Context, ownerID int, exportID string) (*domain.ExportRecord, error) {
	rec, err := s.exports.GetExport(ctx, exportID)
	if err != nil {
		return nil, err
	}
	if rec.OwnerID != ownerID {
		return nil, domain.NewForbiddenError("export belongs to another account")
	}
	return rec, nil
}

// List returns the owner's exports, newest first.
func (s *Service) List(ctx context.Context, ownerID int) ([]*domain.ExportRecord, error) {
	return s.exports.ListExports(ctx, ownerID)
}

// FilePath returns the on-disk file for a ready, unexpired export.
func (s *Service) FilePath(ctx context.Context, ownerID int, exportID string) (string, error) {
	rec, err := s.Get(ctx, ownerID, exportID)
	if err != nil {
		return "", err
	}
	if rec.Status != domain.ExportReady {
		return "", domain.NewConflictError(fmt.Sprintf("export is not ready: status is %s", rec.Status))
	}
	if time.Now().After(rec.ExpiresAt) {
		return "", domain.NewConflictError("export has expired")
	}
	if rec.FilePath == "" {
		return "", domain.NewInternalError(fmt.Errorf("export %s is ready but has no file", rec.ID))
	}
	return rec.FilePath, nil
}
