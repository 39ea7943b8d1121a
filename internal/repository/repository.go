// Package repository defines the storage interfaces the service layer depends
// on. Concrete implementations live in subpackages (sqlite).
//
// OWNER PREDICATES:
// Every Dataset and ChatEntry read method takes the owner's user ID and MUST
// apply it as a query filter. This is the tenant-isolation enforcement point:
// "exists but owned by someone else" and "does not exist" are the same answer
// by construction, because the query can never see another owner's rows.
package repository

import (
	"context"

	"github.com/sakif/datachat/internal/model"
)

// Method names carry their entity (CreateUser, not Create) because the
// sqlite implementation backs all three interfaces with one *DB receiver.
type UserRepository interface {
	// CreateUser inserts a new user. Returns apperror.ErrConflict (wrapped)
	// if the username is already taken.
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByID(ctx context.Context, id string) (*model.User, error)
}

type DatasetRepository interface {
	CreateDataset(ctx context.Context, ds *model.Dataset) error
	// GetByIDAndOwner returns the dataset only when both the ID and the
	// owner match; any other combination is ErrNotFound.
	GetByIDAndOwner(ctx context.Context, id, userID string) (*model.Dataset, error)
	// ListByOwner returns the owner's datasets, most recent upload first.
	ListByOwner(ctx context.Context, userID string) ([]model.Dataset, error)
}

type ChatRepository interface {
	CreateChatEntry(ctx context.Context, entry *model.ChatEntry) error
	// ListRecent returns at most limit entries for the owner, newest first,
	// each joined with the owning dataset's original name. datasetID narrows
	// the result to one dataset when non-empty.
	ListRecent(ctx context.Context, userID, datasetID string, limit int) ([]model.ChatEntry, error)
}
