package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/datachat/internal/model"
	"github.com/sakif/datachat/internal/repository"
)

var _ repository.ChatRepository = (*DB)(nil)

// CreateChatEntry appends one question/answer exchange to the history.
// Rows are never updated or deleted afterwards.
func (db *DB) CreateChatEntry(ctx context.Context, entry *model.ChatEntry) error {
	entry.ID = xid.New().String()
	entry.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO chat_history (id, user_id, dataset_id, question, answer, code, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.UserID,
		entry.DatasetID,
		entry.Question,
		entry.Answer,
		entry.Code,
		entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: inserting chat entry: %w", err)
	}

	return nil
}

// ListRecent returns at most limit history entries for the owner, newest
// first, each joined with the owning dataset's original filename for display.
//
// The owner predicate appears on chat_history directly AND the join is keyed
// on dataset id only — the h.user_id filter alone already guarantees every
// returned row (and therefore every joined dataset) belongs to the caller,
// because the entry's owner always equals its dataset's owner.
func (db *DB) ListRecent(ctx context.Context, userID, datasetID string, limit int) ([]model.ChatEntry, error) {
	query := `SELECT h.id, h.user_id, h.dataset_id, h.question, h.answer, h.code, h.created_at,
	                 d.original_name
	          FROM chat_history h
	          JOIN datasets d ON d.id = h.dataset_id
	          WHERE h.user_id = ?`
	args := []any{userID}

	if datasetID != "" {
		query += ` AND h.dataset_id = ?`
		args = append(args, datasetID)
	}

	query += ` ORDER BY h.created_at DESC, h.id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing chat history for user %s: %w", userID, err)
	}
	defer rows.Close()

	entries := []model.ChatEntry{}
	for rows.Next() {
		var e model.ChatEntry
		if err := rows.Scan(
			&e.ID, &e.UserID, &e.DatasetID, &e.Question, &e.Answer, &e.Code, &e.CreatedAt,
			&e.DatasetName,
		); err != nil {
			return nil, fmt.Errorf("sqlite: scanning chat entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating chat entries: %w", err)
	}

	return entries, nil
}
