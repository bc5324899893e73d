package repository

import (
	"context"
	"drive-service/internal/domain/block"
	"drive-service/internal/domain/user"
	"io"
	"time"

	"github.com/google/uuid"
)

// UserRepository defines user data access operations
type UserRepository interface {
	// CreateWithRoot inserts the user and its ROOT block in one transaction.
	CreateWithRoot(ctx context.Context, input user.CreateUserInput) (*user.User, *block.Block, error)
	GetByUsername(ctx context.Context, username string) (*user.User, error)
	UsernameExists(ctx context.Context, username string) (bool, error)
}

// BlockRepository defines data access for the per-user block tree.
//
// Lookups by id return tombstoned and provisional rows too; every listing
// excludes them. Mutations that parent a block run under serializable
// isolation so they cannot interleave with a subtree cascade.
type BlockRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*block.Block, error)
	GetRoot(ctx context.Context, ownerID uuid.UUID) (*block.Block, error)

	InsertFolder(ctx context.Context, input block.CreateFolderInput) (*block.Block, error)
	InsertProvisionalFile(ctx context.Context, input block.CreateFileInput) (*block.Block, error)
	// CommitFile promotes the pending key to the storage key of a live
	// provisional row. Returns NotFound when the row is gone or tombstoned.
	CommitFile(ctx context.Context, id uuid.UUID) (*block.Block, error)
	// DeleteProvisional removes FILE rows that never committed.
	DeleteProvisional(ctx context.Context, ids []uuid.UUID) (int64, error)

	Rename(ctx context.Context, id, ownerID uuid.UUID, name string) (*block.Block, error)
	SetFavorite(ctx context.Context, id, ownerID uuid.UUID, favorite bool) (*block.Block, error)
	Move(ctx context.Context, id, ownerID, newParentID uuid.UUID) (*block.Block, error)

	// TombstoneFile marks a single committed FILE as deleted.
	TombstoneFile(ctx context.Context, id, ownerID uuid.UUID) (*block.Block, error)
	// TombstoneSubtree marks a live FOLDER and every transitive descendant as
	// deleted in one statement and returns all affected rows.
	TombstoneSubtree(ctx context.Context, id, ownerID uuid.UUID) ([]block.Removed, error)
	// PurgeSubtree physically deletes tombstoned rows.
	PurgeSubtree(ctx context.Context, ids []uuid.UUID) (int64, error)

	ListChildren(ctx context.Context, parentID, ownerID uuid.UUID) ([]*block.Block, error)
	Search(ctx context.Context, ownerID uuid.UUID, query string) ([]*block.Block, error)
	ListFavorites(ctx context.Context, ownerID uuid.UUID) ([]*block.Block, error)

	// ListPurgeable returns tombstoned FILE rows older than before. The
	// returned key is the committed key, or the pending key of an upload that
	// never committed.
	ListPurgeable(ctx context.Context, before time.Time, limit int) ([]block.Removed, error)
	// PurgeEmptyFolders deletes tombstoned FOLDER rows older than before that
	// no longer have children.
	PurgeEmptyFolders(ctx context.Context, before time.Time) (int64, error)
	// ListStaleUploads returns live provisional FILE rows created before the
	// cutoff, with their pending keys.
	ListStaleUploads(ctx context.Context, before time.Time, limit int) ([]block.Removed, error)
}

// BlobStore holds file payloads under opaque keys.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
	// RemoveMany deletes every key. Missing keys are not an error; any key
	// that could not be removed fails the whole call.
	RemoveMany(ctx context.Context, keys []string) error
	SignedDownloadURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}
