package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/datachat/internal/apperror"
	"github.com/sakif/datachat/internal/model"
	"github.com/sakif/datachat/internal/repository"
)

var _ repository.DatasetRepository = (*DB)(nil)

// CreateDataset inserts a dataset metadata record. The schema slice is stored as a
// JSON array in the columns TEXT column.
func (db *DB) CreateDataset(ctx context.Context, ds *model.Dataset) error {
	ds.ID = xid.New().String()
	ds.CreatedAt = time.Now().UTC()

	columns, err := json.Marshal(ds.Columns)
	if err != nil {
		return fmt.Errorf("sqlite: encoding dataset columns: %w", err)
	}

	_, err = db.conn.ExecContext(ctx,
		`INSERT INTO datasets (id, user_id, file_path, original_name, columns, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		ds.ID,
		ds.UserID,
		ds.FilePath,
		ds.OriginalName,
		string(columns),
		ds.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting dataset %q: %w", ds.OriginalName, err)
	}

	return nil
}

// GetByIDAndOwner looks up a dataset by ID, scoped to its owner.
//
// THE ISOLATION QUERY:
// The WHERE clause carries BOTH predicates. A dataset that exists but belongs
// to another user produces sql.ErrNoRows exactly like a dataset that doesn't
// exist — the caller cannot tell the two apart, and neither can an attacker
// probing guessed IDs.
func (db *DB) GetByIDAndOwner(ctx context.Context, id, userID string) (*model.Dataset, error) {
	var (
		ds      model.Dataset
		columns string
	)

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, user_id, file_path, original_name, columns, created_at
		 FROM datasets WHERE id = ? AND user_id = ?`,
		id, userID,
	).Scan(&ds.ID, &ds.UserID, &ds.FilePath, &ds.OriginalName, &columns, &ds.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("dataset", id)
		}
		return nil, fmt.Errorf("sqlite: getting dataset %s: %w", id, err)
	}

	if err := json.Unmarshal([]byte(columns), &ds.Columns); err != nil {
		// Corrupted schema document. Surface the dataset anyway with a nil
		// schema — the service layer turns that into a "re-upload" error
		// rather than a 500.
		ds.Columns = nil
	}

	return &ds, nil
}

// ListByOwner returns all of a user's datasets, most recent upload first.
func (db *DB) ListByOwner(ctx context.Context, userID string) ([]model.Dataset, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, user_id, file_path, original_name, columns, created_at
		 FROM datasets WHERE user_id = ?
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing datasets for user %s: %w", userID, err)
	}
	// rows MUST be closed, or the connection leaks back into the pool locked.
	defer rows.Close()

	// Initialise to an empty slice (not nil) so the JSON response is []
	// rather than null when the user has no datasets.
	datasets := []model.Dataset{}
	for rows.Next() {
		var (
			ds      model.Dataset
			columns string
		)
		if err := rows.Scan(&ds.ID, &ds.UserID, &ds.FilePath, &ds.OriginalName, &columns, &ds.CreatedAt); err != nil {
			return nil, fmt.Errorf("sqlite: scanning dataset row: %w", err)
		}
		if err := json.Unmarshal([]byte(columns), &ds.Columns); err != nil {
			ds.Columns = nil
		}
		datasets = append(datasets, ds)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating dataset rows: %w", err)
	}

	return datasets, nil
}
