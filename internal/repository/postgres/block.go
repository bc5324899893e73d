package postgres

import (
	"context"
	"time"

	"drive-service/internal/domain/block"
	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const (
	blockColumns = `id, owner_id, type, name, parent_folder_id, storage_key, size_in_bytes,
		content_type, favorite, upload_time, deletion_time, created_at, updated_at`

	// Mirrors block.Less: folders first, then name case-insensitively.
	listingOrder = `ORDER BY CASE WHEN type = 'FILE' THEN 1 ELSE 0 END,
		lower(name) COLLATE "C", name COLLATE "C", id::text`

	// A FILE without a committed storage key is an upload in flight.
	visibleFilter = `deletion_time IS NULL AND (type <> 'FILE' OR storage_key IS NOT NULL)`
)

type BlockRepository struct {
	db *DB
}

func NewBlockRepository(db *DB) *BlockRepository {
	return &BlockRepository{db: db}
}

func scanBlock(row pgx.Row) (*block.Block, error) {
	b := &block.Block{}
	var typ string
	err := row.Scan(
		&b.ID,
		&b.OwnerID,
		&typ,
		&b.Name,
		&b.ParentFolderID,
		&b.StorageKey,
		&b.SizeInBytes,
		&b.ContentType,
		&b.Favorite,
		&b.UploadTime,
		&b.DeletionTime,
		&b.CreatedAt,
		&b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.Type, err = block.ParseType(typ)
	if err != nil {
		return nil, errFailedScanBlock(err)
	}

	return b, nil
}

func collectBlocks(rows pgx.Rows) ([]*block.Block, error) {
	defer rows.Close()

	blocks := make([]*block.Block, 0)
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, errFailedScanBlock(err)
		}
		blocks = append(blocks, b)
	}

	if err := rows.Err(); err != nil {
		return nil, errIterateBlocks(err)
	}

	return blocks, nil
}

func collectRemoved(rows pgx.Rows) ([]block.Removed, error) {
	defer rows.Close()

	removed := make([]block.Removed, 0)
	for rows.Next() {
		var (
			r   block.Removed
			typ string
		)
		if err := rows.Scan(&r.ID, &typ, &r.StorageKey); err != nil {
			return nil, errFailedScanRemoved(err)
		}
		t, err := block.ParseType(typ)
		if err != nil {
			return nil, errFailedScanRemoved(err)
		}
		r.Type = t
		removed = append(removed, r)
	}

	if err := rows.Err(); err != nil {
		return nil, errIterateBlocks(err)
	}

	return removed, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

func (r *BlockRepository) GetByID(ctx context.Context, id uuid.UUID) (*block.Block, error) {
	query := `SELECT ` + blockColumns + ` FROM blocks WHERE id = $1`

	b, err := scanBlock(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NotFound(errBlockNotFound)
		}
		return nil, errFailedGetBlock(err)
	}

	return b, nil
}

func (r *BlockRepository) GetRoot(ctx context.Context, ownerID uuid.UUID) (*block.Block, error) {
	query := `SELECT ` + blockColumns + ` FROM blocks WHERE owner_id = $1 AND type = 'ROOT'`

	b, err := scanBlock(r.db.Pool.QueryRow(ctx, query, ownerID))
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NotFound(errRootNotFound)
		}
		return nil, errFailedGetRoot(err)
	}

	return b, nil
}

// checkParent verifies inside tx that parentID is a live ROOT or FOLDER
// owned by ownerID. Foreign parents are reported as missing.
func checkParent(ctx context.Context, tx pgx.Tx, parentID, ownerID uuid.UUID) error {
	query := `SELECT type, owner_id FROM blocks WHERE id = $1 AND deletion_time IS NULL`

	var (
		typ   string
		owner uuid.UUID
	)
	if err := tx.QueryRow(ctx, query, parentID).Scan(&typ, &owner); err != nil {
		if isNoRows(err) {
			return apperrors.NotFound(errParentNotFound)
		}
		return errFailedGetParent(err)
	}

	if owner != ownerID {
		return apperrors.NotFound(errParentNotFound)
	}

	t, err := block.ParseType(typ)
	if err != nil {
		return errFailedGetParent(err)
	}
	if !t.CanParent() {
		return apperrors.InvalidState(errParentNotFolder)
	}

	return nil
}

func (r *BlockRepository) InsertFolder(ctx context.Context, input block.CreateFolderInput) (*block.Block, error) {
	query := `
		INSERT INTO blocks (id, owner_id, type, name, parent_folder_id)
		VALUES ($1, $2, 'FOLDER', $3, $4)
		RETURNING ` + blockColumns

	var created *block.Block
	err := r.db.WithSerializableTx(ctx, func(tx pgx.Tx) error {
		if err := checkParent(ctx, tx, input.ParentFolderID, input.OwnerID); err != nil {
			return err
		}

		b, err := scanBlock(tx.QueryRow(ctx, query, uuid.New(), input.OwnerID, input.Name, input.ParentFolderID))
		if err != nil {
			return errFailedCreateFolder(err)
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *BlockRepository) InsertProvisionalFile(ctx context.Context, input block.CreateFileInput) (*block.Block, error) {
	query := `
		INSERT INTO blocks (id, owner_id, type, name, parent_folder_id, pending_storage_key, size_in_bytes, content_type)
		VALUES ($1, $2, 'FILE', $3, $4, $5, $6, $7)
		RETURNING ` + blockColumns

	var created *block.Block
	err := r.db.WithSerializableTx(ctx, func(tx pgx.Tx) error {
		if err := checkParent(ctx, tx, input.ParentFolderID, input.OwnerID); err != nil {
			return err
		}

		b, err := scanBlock(tx.QueryRow(ctx, query,
			uuid.New(),
			input.OwnerID,
			input.Name,
			input.ParentFolderID,
			input.PendingStorageKey,
			input.SizeInBytes,
			input.ContentType,
		))
		if err != nil {
			return errFailedCreateFile(err)
		}
		created = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	return created, nil
}

func (r *BlockRepository) CommitFile(ctx context.Context, id uuid.UUID) (*block.Block, error) {
	query := `
		UPDATE blocks
		SET storage_key = pending_storage_key,
			pending_storage_key = NULL,
			upload_time = now(),
			updated_at = now()
		WHERE id = $1
			AND type = 'FILE'
			AND deletion_time IS NULL
			AND storage_key IS NULL
			AND pending_storage_key IS NOT NULL
		RETURNING ` + blockColumns

	b, err := scanBlock(r.db.Pool.QueryRow(ctx, query, id))
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NotFound(errFileNotFound)
		}
		return nil, errFailedCommitFile(err)
	}

	return b, nil
}

func (r *BlockRepository) DeleteProvisional(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `
		DELETE FROM blocks
		WHERE id = ANY($1::uuid[]) AND type = 'FILE' AND storage_key IS NULL
	`

	result, err := r.db.Pool.Exec(ctx, query, uuidStrings(ids))
	if err != nil {
		return 0, errFailedDeleteFiles(err)
	}

	return result.RowsAffected(), nil
}

func (r *BlockRepository) Rename(ctx context.Context, id, ownerID uuid.UUID, name string) (*block.Block, error) {
	query := `
		UPDATE blocks
		SET name = $3, updated_at = now()
		WHERE id = $1 AND owner_id = $2 AND type IN ('FOLDER', 'FILE') AND ` + visibleFilter + `
		RETURNING ` + blockColumns

	b, err := scanBlock(r.db.Pool.QueryRow(ctx, query, id, ownerID, name))
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NotFound(errBlockNotFound)
		}
		return nil, errFailedRename(err)
	}

	return b, nil
}

func (r *BlockRepository) SetFavorite(ctx context.Context, id, ownerID uuid.UUID, favorite bool) (*block.Block, error) {
	query := `
		UPDATE blocks
		SET favorite = $3, updated_at = CASE WHEN favorite = $3 THEN updated_at ELSE now() END
		WHERE id = $1 AND owner_id = $2 AND type IN ('FOLDER', 'FILE') AND ` + visibleFilter + `
		RETURNING ` + blockColumns

	b, err := scanBlock(r.db.Pool.QueryRow(ctx, query, id, ownerID, favorite))
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NotFound(errBlockNotFound)
		}
		return nil, errFailedFavorite(err)
	}

	return b, nil
}

func (r *BlockRepository) Move(ctx context.Context, id, ownerID, newParentID uuid.UUID) (*block.Block, error) {
	selectQuery := `SELECT ` + blockColumns + ` FROM blocks WHERE id = $1 AND owner_id = $2 AND ` + visibleFilter

	// Walks up from the new parent; finding the moved block means a cycle.
	cycleQuery := `
		WITH RECURSIVE ancestors AS (
			SELECT id, parent_folder_id FROM blocks WHERE id = $1
			UNION ALL
			SELECT b.id, b.parent_folder_id
			FROM blocks b
			JOIN ancestors a ON b.id = a.parent_folder_id
		)
		SELECT EXISTS (SELECT 1 FROM ancestors WHERE id = $2)
	`

	updateQuery := `
		UPDATE blocks
		SET parent_folder_id = $2, updated_at = now()
		WHERE id = $1
		RETURNING ` + blockColumns

	var moved *block.Block
	err := r.db.WithSerializableTx(ctx, func(tx pgx.Tx) error {
		current, err := scanBlock(tx.QueryRow(ctx, selectQuery, id, ownerID))
		if err != nil {
			if isNoRows(err) {
				return apperrors.NotFound(errBlockNotFound)
			}
			return errFailedGetBlock(err)
		}

		if !current.Type.CanMove() {
			return apperrors.InvalidState(errBlockNotMovable)
		}

		if err := checkParent(ctx, tx, newParentID, ownerID); err != nil {
			return err
		}

		var cycle bool
		if err := tx.QueryRow(ctx, cycleQuery, newParentID, id).Scan(&cycle); err != nil {
			return errFailedCheckCycle(err)
		}
		if cycle {
			return apperrors.InvalidState(errMoveIntoDescendant)
		}

		b, err := scanBlock(tx.QueryRow(ctx, updateQuery, id, newParentID))
		if err != nil {
			return errFailedMove(err)
		}
		moved = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	return moved, nil
}

func (r *BlockRepository) TombstoneFile(ctx context.Context, id, ownerID uuid.UUID) (*block.Block, error) {
	query := `
		UPDATE blocks
		SET deletion_time = now(), updated_at = now()
		WHERE id = $1
			AND owner_id = $2
			AND type = 'FILE'
			AND deletion_time IS NULL
			AND storage_key IS NOT NULL
		RETURNING ` + blockColumns

	b, err := scanBlock(r.db.Pool.QueryRow(ctx, query, id, ownerID))
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NotFound(errFileNotFound)
		}
		return nil, errFailedTombstone(err)
	}

	return b, nil
}

// TombstoneSubtree is the cascade primitive. The anchor requires a live
// folder; the recursive part follows every descendant, including ones that
// an earlier failed delete left tombstoned, so a later purge never drops a
// row whose blob was not part of this cascade's key set.
func (r *BlockRepository) TombstoneSubtree(ctx context.Context, id, ownerID uuid.UUID) ([]block.Removed, error) {
	query := `
		WITH RECURSIVE subtree AS (
			SELECT id
			FROM blocks
			WHERE id = $1 AND owner_id = $2 AND type = 'FOLDER' AND deletion_time IS NULL
			UNION ALL
			SELECT child.id
			FROM blocks child
			JOIN subtree parent ON child.parent_folder_id = parent.id
		)
		UPDATE blocks b
		SET deletion_time = COALESCE(b.deletion_time, now()), updated_at = now()
		FROM subtree s
		WHERE b.id = s.id
		RETURNING b.id, b.type, COALESCE(b.storage_key, b.pending_storage_key)
	`

	var removed []block.Removed
	err := r.db.WithSerializableTx(ctx, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx, query, id, ownerID)
		if err != nil {
			return errFailedCascade(err)
		}

		removed, err = collectRemoved(rows)
		if err != nil {
			return errFailedCascade(err)
		}

		if len(removed) == 0 {
			return apperrors.NotFound(errFolderNotFound)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return removed, nil
}

func (r *BlockRepository) PurgeSubtree(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	query := `DELETE FROM blocks WHERE id = ANY($1::uuid[]) AND deletion_time IS NOT NULL`

	result, err := r.db.Pool.Exec(ctx, query, uuidStrings(ids))
	if err != nil {
		return 0, errFailedPurge(err)
	}

	return result.RowsAffected(), nil
}

func (r *BlockRepository) ListChildren(ctx context.Context, parentID, ownerID uuid.UUID) ([]*block.Block, error) {
	query := `
		SELECT ` + blockColumns + `
		FROM blocks
		WHERE parent_folder_id = $1 AND owner_id = $2 AND ` + visibleFilter + `
		` + listingOrder

	rows, err := r.db.Pool.Query(ctx, query, parentID, ownerID)
	if err != nil {
		return nil, errFailedListBlocks(err)
	}

	return collectBlocks(rows)
}

func (r *BlockRepository) Search(ctx context.Context, ownerID uuid.UUID, query string) ([]*block.Block, error) {
	sql := `
		SELECT ` + blockColumns + `
		FROM blocks
		WHERE owner_id = $1
			AND type IN ('FOLDER', 'FILE')
			AND ` + visibleFilter + `
			AND name ILIKE '%' || $2 || '%' ESCAPE '\'
		` + listingOrder

	rows, err := r.db.Pool.Query(ctx, sql, ownerID, escapeLikePattern(query))
	if err != nil {
		return nil, errFailedListBlocks(err)
	}

	return collectBlocks(rows)
}

func (r *BlockRepository) ListFavorites(ctx context.Context, ownerID uuid.UUID) ([]*block.Block, error) {
	query := `
		SELECT ` + blockColumns + `
		FROM blocks
		WHERE owner_id = $1 AND favorite AND type IN ('FOLDER', 'FILE') AND ` + visibleFilter + `
		` + listingOrder

	rows, err := r.db.Pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, errFailedListBlocks(err)
	}

	return collectBlocks(rows)
}

func (r *BlockRepository) ListPurgeable(ctx context.Context, before time.Time, limit int) ([]block.Removed, error) {
	query := `
		SELECT id, type, COALESCE(storage_key, pending_storage_key)
		FROM blocks
		WHERE type = 'FILE' AND deletion_time IS NOT NULL AND deletion_time < $1
		ORDER BY deletion_time
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, errFailedListBlocks(err)
	}

	return collectRemoved(rows)
}

func (r *BlockRepository) PurgeEmptyFolders(ctx context.Context, before time.Time) (int64, error) {
	query := `
		DELETE FROM blocks b
		WHERE b.type = 'FOLDER'
			AND b.deletion_time IS NOT NULL
			AND b.deletion_time < $1
			AND NOT EXISTS (SELECT 1 FROM blocks c WHERE c.parent_folder_id = b.id)
	`

	result, err := r.db.Pool.Exec(ctx, query, before)
	if err != nil {
		return 0, errFailedPurge(err)
	}

	return result.RowsAffected(), nil
}

func (r *BlockRepository) ListStaleUploads(ctx context.Context, before time.Time, limit int) ([]block.Removed, error) {
	query := `
		SELECT id, type, pending_storage_key
		FROM blocks
		WHERE type = 'FILE' AND storage_key IS NULL AND deletion_time IS NULL AND created_at < $1
		ORDER BY created_at
		LIMIT $2
	`

	rows, err := r.db.Pool.Query(ctx, query, before, limit)
	if err != nil {
		return nil, errFailedListBlocks(err)
	}

	return collectRemoved(rows)
}
