package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/datachat/internal/apperror"
	"github.com/sakif/datachat/internal/model"
	"github.com/sakif/datachat/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// `var _ X = (*Y)(nil)` assigns a nil *Y to a variable of interface type X.
// If *Y doesn't implement X, the compiler errors immediately — much earlier
// than the first call site would. A Go best practice for any implementation.
var _ repository.UserRepository = (*DB)(nil)

// Create inserts a new user.
//
// ID GENERATION WITH xid:
// xid generates globally unique IDs that are 20 chars, URL-safe, and sortable
// by creation time (they start with a timestamp). Example: "cv37rs3pp9olc6atsptg".
//
// UNIQUENESS:
// The UNIQUE constraint on username is the authority on duplicates. We let the
// INSERT race and translate the constraint violation into a ConflictError,
// rather than SELECT-then-INSERT which is racy under concurrent registration.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = time.Now().UTC()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, created_at)
		 VALUES (?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.CreatedAt,
	)
	if err != nil {
		// modernc.org/sqlite reports constraint failures by message text;
		// it has no exported typed error for them.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	return nil
}

// GetUserByUsername retrieves a user by their login identifier.
// Returns apperror.ErrNotFound (wrapped) if no such user exists.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	return db.getUser(ctx, `WHERE username = ?`, username)
}

// GetUserByID retrieves a user by their internal ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	return db.getUser(ctx, `WHERE id = ?`, id)
}

func (db *DB) getUser(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User

	err := db.conn.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users `+where,
		arg,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("user", fmt.Sprint(arg))
		}
		return nil, fmt.Errorf("sqlite: getting user: %w", err)
	}

	return &u, nil
}
