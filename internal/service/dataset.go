package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/sakif/datachat/internal/apperror"
	"github.com/sakif/datachat/internal/model"
	"github.com/sakif/datachat/internal/repository"
	"github.com/sakif/datachat/internal/storage"
)

// MaxUploadBytes is the upload size ceiling (10 MiB). The handler enforces it
// with http.MaxBytesReader while the body streams in; the constant lives here
// because it is a business rule, not an HTTP detail.
const MaxUploadBytes = 10 << 20

// DatasetService handles CSV uploads and dataset listing.
type DatasetService struct {
	datasets repository.DatasetRepository
	store    *storage.Store
	logger   *slog.Logger
}

func NewDatasetService(datasets repository.DatasetRepository, store *storage.Store, logger *slog.Logger) *DatasetService {
	return &DatasetService{
		datasets: datasets,
		store:    store,
		logger:   logger,
	}
}

// Upload ingests one CSV file for the given user.
//
// PIPELINE:
//  1. Reject non-.csv names and oversized declarations up front — nothing
//     touches disk for an invalid request.
//  2. Stream the file into the user's sandbox (storage handles name
//     sanitization and the canonical-path containment check).
//  3. Read the header row back and derive the column schema.
//  4. Persist the metadata record.
//
// ATOMICITY FROM THE CALLER'S VIEW:
// If step 3 or 4 fails, the stored file is removed (best effort) so a failed
// upload leaves neither a metadata row nor an unrecorded file behind. The two
// writes aren't transactional — the cleanup is compensation, not rollback —
// but the caller only ever observes "uploaded" or "not uploaded".
func (s *DatasetService) Upload(ctx context.Context, userID, originalName string, size int64, r io.Reader) (*model.Dataset, error) {
	if !strings.HasSuffix(strings.ToLower(originalName), ".csv") {
		return nil, apperror.ValidationFailed("file", "only CSV files are supported")
	}
	if size > MaxUploadBytes {
		return nil, apperror.TooLarge(fmt.Sprintf("file exceeds the %d MiB upload limit", MaxUploadBytes>>20))
	}

	path, err := s.store.Save(userID, originalName, r)
	if err != nil {
		if apperr := asSecurityError(err); apperr != nil {
			s.logger.Warn("upload rejected by sandbox check",
				slog.String("userID", userID),
				slog.String("originalName", originalName),
				slog.String("error", err.Error()),
			)
			return nil, apperr
		}
		return nil, fmt.Errorf("service/dataset: storing upload: %w", err)
	}

	columns, err := extractSchema(path)
	if err != nil {
		// The file is on disk but unusable — don't leave it orphaned.
		if rmErr := s.store.Remove(path); rmErr != nil {
			s.logger.Warn("failed to clean up rejected upload",
				slog.String("path", path),
				slog.String("error", rmErr.Error()),
			)
		}
		return nil, err
	}

	ds := &model.Dataset{
		UserID:       userID,
		FilePath:     path,
		OriginalName: originalName,
		Columns:      columns,
	}
	if err := s.datasets.CreateDataset(ctx, ds); err != nil {
		if rmErr := s.store.Remove(path); rmErr != nil {
			s.logger.Warn("failed to clean up unrecorded upload",
				slog.String("path", path),
				slog.String("error", rmErr.Error()),
			)
		}
		return nil, fmt.Errorf("service/dataset: persisting dataset: %w", err)
	}

	s.logger.Info("dataset uploaded",
		slog.String("userID", userID),
		slog.String("datasetID", ds.ID),
		slog.String("originalName", originalName),
		slog.Int("columns", len(columns)),
	)

	return ds, nil
}

// List returns the caller's datasets, most recent upload first.
func (s *DatasetService) List(ctx context.Context, userID string) ([]model.Dataset, error) {
	datasets, err := s.datasets.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("service/dataset: listing datasets: %w", err)
	}
	return datasets, nil
}

// extractSchema reads the first line of a stored CSV and returns the ordered
// column names.
//
// DELIBERATELY NOT encoding/csv:
// The schema is display metadata, not parsed data. A plain split on commas
// with whitespace/quote trimming matches how the analysis service itself
// reads the header, and keeps a schema like `"name", "age"` → [name age].
// Quoted fields containing commas would split wrong — acceptable here, since
// only the header row is ever read and the file itself goes to the analysis
// service untouched.
func extractSchema(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("service/dataset: opening stored file: %w", err)
	}
	defer f.Close()

	// Only the first line matters; the rest of the file is the analysis
	// service's problem.
	header, err := bufio.NewReader(f).ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("service/dataset: reading header row: %w", err)
	}

	header = strings.TrimRight(header, "\r\n")
	header = strings.TrimPrefix(header, "\uFEFF") // Excel exports love a BOM

	columns := []string{}
	for _, field := range strings.Split(header, ",") {
		columns = append(columns, strings.Trim(strings.TrimSpace(field), `"`))
	}

	// A header of "" splits into one empty column; an empty first column also
	// signals a headerless or malformed file. Both mean "re-export and retry".
	if len(columns) == 0 || columns[0] == "" {
		return nil, apperror.ValidationFailed("file", "CSV file has no header row")
	}

	return columns, nil
}

// asSecurityError extracts the security sentinel from an error chain, if any.
func asSecurityError(err error) *apperror.AppError {
	if !errors.Is(err, apperror.ErrSecurity) {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperror.SecurityViolation()
}
