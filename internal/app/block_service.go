package app

import (
	"context"
	"errors"
	"io"
	"time"

	"drive-service/internal/domain/block"
	"drive-service/internal/repository"
	apperrors "drive-service/pkg/errors"
	"drive-service/pkg/logger"
	"drive-service/pkg/validator"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// BlockServiceDeps are the collaborators of BlockService. Blocks and Blobs
// are required; the rest fall back to no-ops or defaults.
type BlockServiceDeps struct {
	Blocks        repository.BlockRepository
	Blobs         repository.BlobStore
	URLCache      URLCache
	Purger        PurgeNotifier
	Metrics       Metrics
	Logger        *zap.Logger
	BlobTimeout   time.Duration
	SignedURLTTL  time.Duration
	MaxUploadSize int64
}

// BlockService implements every operation on a user's block tree and keeps
// the metadata and blob stores in agreement.
type BlockService struct {
	blocks        repository.BlockRepository
	blobs         repository.BlobStore
	cache         URLCache
	purger        PurgeNotifier
	metrics       Metrics
	log           *zap.Logger
	guard         *AccessGuard
	blobTimeout   time.Duration
	signedURLTTL  time.Duration
	maxUploadSize int64
}

func NewBlockService(deps BlockServiceDeps) *BlockService {
	s := &BlockService{
		blocks:        deps.Blocks,
		blobs:         deps.Blobs,
		cache:         deps.URLCache,
		purger:        deps.Purger,
		metrics:       deps.Metrics,
		log:           deps.Logger,
		guard:         NewAccessGuard(deps.Blocks),
		blobTimeout:   deps.BlobTimeout,
		signedURLTTL:  deps.SignedURLTTL,
		maxUploadSize: deps.MaxUploadSize,
	}

	if s.purger == nil {
		s.purger = noopNotifier{}
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.log == nil {
		s.log = zap.NewNop()
	}
	if s.blobTimeout <= 0 {
		s.blobTimeout = defaultBlobTimeout
	}
	if s.signedURLTTL <= 0 {
		s.signedURLTTL = defaultSignedURLTTL
	}

	return s
}

// Guard exposes the access guard used by every write.
func (s *BlockService) Guard() *AccessGuard {
	return s.guard
}

// FileUpload is the payload of CreateFile. Body is read exactly once.
type FileUpload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

func (s *BlockService) logger(ctx context.Context) *zap.Logger {
	return logger.FromContext(ctx, s.log)
}

func (s *BlockService) newSaga(name string) *Saga {
	return newSaga(name, s.log, s.metrics, s.blobTimeout)
}

// withBlobTimeout bounds a single blob store call.
func (s *BlockService) withBlobTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	bctx, cancel := context.WithTimeout(ctx, s.blobTimeout)
	defer cancel()
	return fn(bctx)
}

func newStorageKey(ownerID uuid.UUID) string {
	return ownerID.String() + "/" + uuid.NewString()
}

func (s *BlockService) CreateFolder(ctx context.Context, parentID, ownerID uuid.UUID, name string) (*block.Block, error) {
	name, err := validator.BlockName(name)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	folder, err := s.blocks.InsertFolder(ctx, block.CreateFolderInput{
		OwnerID:        ownerID,
		ParentFolderID: parentID,
		Name:           name,
	})
	if err != nil {
		return nil, err
	}

	s.logger(ctx).Info("folder created",
		zap.Stringer("block_id", folder.ID),
		zap.Stringer("owner_id", ownerID),
	)

	return folder, nil
}

// CreateFile writes the row before the blob and only publishes the storage
// key once the blob write is confirmed, so a visible FILE always has bytes.
func (s *BlockService) CreateFile(ctx context.Context, parentID, ownerID uuid.UUID, upload FileUpload) (*block.Block, error) {
	name, err := validator.BlockName(upload.Name)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if err := validator.FileSize(upload.Size, s.maxUploadSize); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	contentType, err := validator.ContentType(upload.ContentType)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	key := newStorageKey(ownerID)

	var provisional, committed *block.Block

	saga := s.newSaga(sagaCreateFile).
		Step(stepInsertProvisional,
			func(ctx context.Context) error {
				b, err := s.blocks.InsertProvisionalFile(ctx, block.CreateFileInput{
					OwnerID:           ownerID,
					ParentFolderID:    parentID,
					Name:              name,
					PendingStorageKey: key,
					SizeInBytes:       upload.Size,
					ContentType:       contentType,
				})
				provisional = b
				return err
			},
			func(ctx context.Context) error {
				if provisional == nil {
					return nil
				}
				_, err := s.blocks.DeleteProvisional(ctx, []uuid.UUID{provisional.ID})
				return err
			},
		).
		Step(stepPutBlob,
			func(ctx context.Context) error {
				return s.withBlobTimeout(ctx, func(ctx context.Context) error {
					return s.blobs.Put(ctx, key, upload.Body, upload.Size, contentType)
				})
			},
			func(ctx context.Context) error {
				return s.blobs.RemoveMany(ctx, []string{key})
			},
		).
		Step(stepCommit,
			func(ctx context.Context) error {
				b, err := s.blocks.CommitFile(ctx, provisional.ID)
				committed = b
				return err
			},
			nil,
		)

	if err := saga.Execute(ctx); err != nil {
		var sagaErr *SagaError
		if !errors.As(err, &sagaErr) {
			return nil, err
		}

		switch sagaErr.Step {
		case stepPutBlob:
			return nil, apperrors.UploadFailed(msgUploadFailed, sagaErr.Err)
		case stepCommit:
			if apperrors.Is(sagaErr.Err, apperrors.ErrNotFound) {
				return nil, apperrors.NotFound(msgParentGone)
			}
			return nil, sagaErr.Err
		default:
			return nil, sagaErr.Err
		}
	}

	s.logger(ctx).Info("file created",
		zap.Stringer("block_id", committed.ID),
		zap.Stringer("owner_id", ownerID),
		zap.Int64("size", upload.Size),
	)

	return committed, nil
}

func (s *BlockService) Rename(ctx context.Context, blockID, ownerID uuid.UUID, newName string) (*block.Block, error) {
	name, err := validator.BlockName(newName)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	b, err := s.guard.authorizeQuiet(ctx, blockID, ownerID)
	if err != nil {
		return nil, err
	}

	if err := requireType(b.Type, b.Type.CanRename(), msgRootImmutable); err != nil {
		return nil, err
	}

	return s.blocks.Rename(ctx, blockID, ownerID, name)
}

// ToggleFavorite sets the favorite flag to value. Repeating a call is a
// successful no-op.
func (s *BlockService) ToggleFavorite(ctx context.Context, blockID, ownerID uuid.UUID, value bool) (*block.Block, error) {
	b, err := s.guard.authorizeQuiet(ctx, blockID, ownerID)
	if err != nil {
		return nil, err
	}

	if err := requireType(b.Type, b.Type.CanFavorite(), msgRootImmutable); err != nil {
		return nil, err
	}

	if b.Favorite == value {
		return b, nil
	}

	return s.blocks.SetFavorite(ctx, blockID, ownerID, value)
}

func (s *BlockService) Move(ctx context.Context, blockID, ownerID, newParentID uuid.UUID) (*block.Block, error) {
	b, err := s.guard.authorizeQuiet(ctx, blockID, ownerID)
	if err != nil {
		return nil, err
	}

	if err := requireType(b.Type, b.Type.CanMove(), msgRootImmutable); err != nil {
		return nil, err
	}

	moved, err := s.blocks.Move(ctx, blockID, ownerID, newParentID)
	if err != nil {
		return nil, err
	}

	s.logger(ctx).Info("block moved",
		zap.Stringer("block_id", blockID),
		zap.Stringer("parent_id", newParentID),
	)

	return moved, nil
}

// requireType rejects unknown types outright and known types that lack the
// needed capability.
func requireType(t block.Type, capable bool, msg string) error {
	if !t.Valid() {
		return apperrors.InvalidState(msgUnknownBlockType)
	}
	if !capable {
		return apperrors.InvalidState(msg)
	}
	return nil
}

// DeleteFile tombstones the file, removes its blob and purges the row. A
// failed blob removal leaves the tombstone for the purger and reports
// StorageInconsistent.
func (s *BlockService) DeleteFile(ctx context.Context, blockID, ownerID uuid.UUID) error {
	b, err := s.guard.AuthorizeWrite(ctx, blockID, ownerID)
	if err != nil {
		return err
	}

	switch b.Type {
	case block.TypeFile:
	case block.TypeRoot, block.TypeFolder:
		return apperrors.InvalidState(msgNotAFile)
	default:
		return apperrors.InvalidState(msgUnknownBlockType)
	}

	var keys []string

	saga := s.newSaga(sagaDeleteFile).
		Step(stepTombstone,
			func(ctx context.Context) error {
				tomb, err := s.blocks.TombstoneFile(ctx, blockID, ownerID)
				if err != nil {
					return err
				}
				if tomb.StorageKey != nil {
					keys = []string{*tomb.StorageKey}
				}
				return nil
			},
			nil,
		).
		Step(stepRemoveBlobs, s.removeBlobsStep(&keys), nil).
		Step(stepPurge,
			func(ctx context.Context) error {
				_, err := s.blocks.PurgeSubtree(ctx, []uuid.UUID{blockID})
				return err
			},
			nil,
		)

	return s.finishDelete(ctx, saga.Execute(ctx), blockID, keys)
}

// DeleteFolder tombstones the folder and its whole subtree in one statement,
// removes every collected blob in one batch and purges the rows. On blob
// failure the subtree stays tombstoned, hidden from every view, and the
// purger retries.
func (s *BlockService) DeleteFolder(ctx context.Context, blockID, ownerID uuid.UUID) error {
	b, err := s.guard.AuthorizeWrite(ctx, blockID, ownerID)
	if err != nil {
		return err
	}

	switch b.Type {
	case block.TypeFolder:
	case block.TypeRoot:
		return apperrors.InvalidState(msgRootImmutable)
	case block.TypeFile:
		return apperrors.InvalidState(msgNotAFolder)
	default:
		return apperrors.InvalidState(msgUnknownBlockType)
	}

	var (
		removed []block.Removed
		keys    []string
	)

	saga := s.newSaga(sagaDeleteFolder).
		Step(stepTombstone,
			func(ctx context.Context) error {
				var err error
				removed, err = s.blocks.TombstoneSubtree(ctx, blockID, ownerID)
				keys = block.StorageKeys(removed)
				return err
			},
			nil,
		).
		Step(stepRemoveBlobs, s.removeBlobsStep(&keys), nil).
		Step(stepPurge,
			func(ctx context.Context) error {
				_, err := s.blocks.PurgeSubtree(ctx, block.IDs(removed))
				return err
			},
			nil,
		)

	err = s.finishDelete(ctx, saga.Execute(ctx), blockID, keys)
	if err == nil {
		s.logger(ctx).Info("folder deleted",
			zap.Stringer("block_id", blockID),
			zap.Int("blocks", len(removed)),
			zap.Int("blobs", len(keys)),
		)
	}
	return err
}

func (s *BlockService) removeBlobsStep(keys *[]string) StepFunc {
	return func(ctx context.Context) error {
		if len(*keys) == 0 {
			return nil
		}
		return s.withBlobTimeout(ctx, func(ctx context.Context) error {
			return s.blobs.RemoveMany(ctx, *keys)
		})
	}
}

// finishDelete maps the outcome of a delete saga. Tombstones are never
// reversed: once the tombstone step succeeded, remaining work belongs to the
// purger.
func (s *BlockService) finishDelete(ctx context.Context, err error, blockID uuid.UUID, keys []string) error {
	if err == nil {
		s.evictURLs(ctx, keys)
		return nil
	}

	var sagaErr *SagaError
	if !errors.As(err, &sagaErr) {
		return err
	}

	switch sagaErr.Step {
	case stepRemoveBlobs:
		s.purger.Nudge()
		return apperrors.StorageInconsistent(msgDeleteIncomplete, sagaErr.Err)
	case stepPurge:
		// Bytes are gone and rows are hidden; the purger drops the rows.
		s.evictURLs(ctx, keys)
		s.purger.Nudge()
		s.logger(ctx).Warn("delete left tombstones for the purger",
			zap.Stringer("block_id", blockID),
			logger.Err(sagaErr.Err),
		)
		return nil
	default:
		return sagaErr.Err
	}
}

func (s *BlockService) evictURLs(ctx context.Context, keys []string) {
	if s.cache == nil || len(keys) == 0 {
		return
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		s.logger(ctx).Warn("failed to evict cached download URLs", logger.Err(err))
	}
}

// ListChildren returns a folder with its parent and visible children.
// uuid.Nil selects the owner's root.
func (s *BlockService) ListChildren(ctx context.Context, folderID, ownerID uuid.UUID) (*block.FolderView, error) {
	var (
		folder *block.Block
		err    error
	)
	if folderID == uuid.Nil {
		folder, err = s.blocks.GetRoot(ctx, ownerID)
	} else {
		folder, err = s.GetBlock(ctx, folderID, ownerID)
	}
	if err != nil {
		return nil, err
	}

	switch folder.Type {
	case block.TypeRoot, block.TypeFolder:
	case block.TypeFile:
		return nil, apperrors.InvalidState(msgNotAFolder)
	default:
		return nil, apperrors.InvalidState(msgUnknownBlockType)
	}

	children, err := s.blocks.ListChildren(ctx, folder.ID, ownerID)
	if err != nil {
		return nil, err
	}

	view := &block.FolderView{Folder: folder, Children: children}
	if folder.ParentFolderID != nil {
		parent, err := s.blocks.GetByID(ctx, *folder.ParentFolderID)
		if err != nil {
			return nil, err
		}
		view.Parent = parent
	}

	return view, nil
}

// GetBlock returns a visible block owned by ownerID. Foreign blocks are
// reported as missing.
func (s *BlockService) GetBlock(ctx context.Context, blockID, ownerID uuid.UUID) (*block.Block, error) {
	b, err := s.blocks.GetByID(ctx, blockID)
	if err != nil {
		return nil, err
	}
	if !b.Visible() || b.OwnerID != ownerID {
		return nil, apperrors.NotFound(msgBlockNotFound)
	}
	return b, nil
}

// DownloadURL returns a signed URL for a file, served from the cache when a
// fresh one exists.
func (s *BlockService) DownloadURL(ctx context.Context, blockID, ownerID uuid.UUID) (string, error) {
	b, err := s.GetBlock(ctx, blockID, ownerID)
	if err != nil {
		return "", err
	}

	switch b.Type {
	case block.TypeFile:
	case block.TypeRoot, block.TypeFolder:
		return "", apperrors.InvalidState(msgNotAFile)
	default:
		return "", apperrors.InvalidState(msgUnknownBlockType)
	}

	key := *b.StorageKey

	if s.cache != nil {
		url, found, err := s.cache.Get(ctx, key)
		if err != nil {
			s.logger(ctx).Warn("download URL cache unavailable", logger.Err(err))
		}
		s.metrics.ObserveCacheLookup(found)
		if found {
			return url, nil
		}
	}

	var url string
	err = s.withBlobTimeout(ctx, func(ctx context.Context) error {
		var err error
		url, err = s.blobs.SignedDownloadURL(ctx, key, s.signedURLTTL)
		return err
	})
	if err != nil {
		return "", apperrors.InternalServer(msgSignURLFailed, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, url, s.signedURLTTL); err != nil {
			s.logger(ctx).Warn("failed to cache download URL", logger.Err(err))
		}
	}

	return url, nil
}

// Search matches names case-insensitively across the owner's visible files
// and folders. A blank query yields an empty result.
func (s *BlockService) Search(ctx context.Context, ownerID uuid.UUID, query string) (*block.PseudoFolder, error) {
	query, err := validator.SearchQuery(query)
	if err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	result := &block.PseudoFolder{Name: block.PseudoFolderSearch, Blocks: []*block.Block{}}
	if query == "" {
		return result, nil
	}

	blocks, err := s.blocks.Search(ctx, ownerID, query)
	if err != nil {
		return nil, err
	}
	result.Blocks = blocks

	return result, nil
}

func (s *BlockService) ListFavorites(ctx context.Context, ownerID uuid.UUID) (*block.PseudoFolder, error) {
	blocks, err := s.blocks.ListFavorites(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return &block.PseudoFolder{Name: block.PseudoFolderFavorites, Blocks: blocks}, nil
}
