package app

import (
	"context"
	"time"

	"drive-service/internal/domain/block"
	"drive-service/internal/repository"
	"drive-service/pkg/logger"

	"go.uber.org/zap"
)

const (
	purgeKindFile     = "file"
	purgeKindFolder   = "folder"
	purgeKindUpload   = "upload"
	purgeStageList    = "list"
	purgeStageRemove  = "remove_blobs"
	purgeStageDelete  = "delete_rows"
	purgeStageFolders = "folders"

	// maxFolderPasses bounds how many levels of nested empty folders one
	// pass collapses.
	maxFolderPasses = 32
)

type PurgerConfig struct {
	Interval    time.Duration
	Grace       time.Duration
	BatchSize   int
	BlobTimeout time.Duration
}

// Purger finishes deletes whose blob removal failed and cleans up uploads
// that never committed. Every step is idempotent, so overlapping runs and
// retries after partial failure are safe.
type Purger struct {
	blocks  repository.BlockRepository
	blobs   repository.BlobStore
	cache   URLCache
	metrics Metrics
	log     *zap.Logger
	cfg     PurgerConfig
	now     func() time.Time
	nudge   chan struct{}
}

func NewPurger(blocks repository.BlockRepository, blobs repository.BlobStore, cache URLCache, m Metrics, log *zap.Logger, cfg PurgerConfig) *Purger {
	if m == nil {
		m = noopMetrics{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.BlobTimeout <= 0 {
		cfg.BlobTimeout = defaultBlobTimeout
	}
	return &Purger{
		blocks:  blocks,
		blobs:   blobs,
		cache:   cache,
		metrics: m,
		log:     log.With(zap.String("component", "purger")),
		cfg:     cfg,
		now:     time.Now,
		nudge:   make(chan struct{}, 1),
	}
}

// Nudge requests a pass as soon as possible. It never blocks; nudges that
// arrive while one is pending are merged.
func (p *Purger) Nudge() {
	select {
	case p.nudge <- struct{}{}:
	default:
	}
}

// Run purges on every tick and nudge until ctx is cancelled.
func (p *Purger) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	p.log.Info("purger started",
		zap.Duration("interval", p.cfg.Interval),
		zap.Duration("grace", p.cfg.Grace),
	)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("purger stopped")
			return
		case <-ticker.C:
		case <-p.nudge:
		}

		p.RunOnce(ctx)
	}
}

// RunOnce performs a single pass. Failures are logged and counted; the next
// pass retries them.
func (p *Purger) RunOnce(ctx context.Context) {
	ctx = logger.WithContext(ctx, p.log)
	cutoff := p.now().Add(-p.cfg.Grace)

	p.purgeFiles(ctx, cutoff)
	p.purgeFolders(ctx, cutoff)
	p.purgeStaleUploads(ctx, cutoff)
}

func (p *Purger) purgeFiles(ctx context.Context, cutoff time.Time) {
	for {
		batch, err := p.blocks.ListPurgeable(ctx, cutoff, p.cfg.BatchSize)
		if err != nil {
			p.fail(purgeStageList, err)
			return
		}
		if len(batch) == 0 {
			return
		}

		n, ok := p.removeAndDelete(ctx, batch, func(ctx context.Context) (int64, error) {
			return p.blocks.PurgeSubtree(ctx, block.IDs(batch))
		})
		if !ok {
			return
		}
		p.metrics.ObservePurged(purgeKindFile, n)

		if len(batch) < p.cfg.BatchSize {
			return
		}
	}
}

// purgeFolders removes tombstoned folders from the leaves up; each query
// only drops folders whose children are already gone.
func (p *Purger) purgeFolders(ctx context.Context, cutoff time.Time) {
	for i := 0; i < maxFolderPasses; i++ {
		n, err := p.blocks.PurgeEmptyFolders(ctx, cutoff)
		if err != nil {
			p.fail(purgeStageFolders, err)
			return
		}
		if n == 0 {
			return
		}
		p.metrics.ObservePurged(purgeKindFolder, n)
	}
}

func (p *Purger) purgeStaleUploads(ctx context.Context, cutoff time.Time) {
	batch, err := p.blocks.ListStaleUploads(ctx, cutoff, p.cfg.BatchSize)
	if err != nil {
		p.fail(purgeStageList, err)
		return
	}
	if len(batch) == 0 {
		return
	}

	n, ok := p.removeAndDelete(ctx, batch, func(ctx context.Context) (int64, error) {
		return p.blocks.DeleteProvisional(ctx, block.IDs(batch))
	})
	if ok {
		p.metrics.ObservePurged(purgeKindUpload, n)
	}
}

// removeAndDelete removes the blobs of batch and then its rows. Rows are
// kept when the blob removal fails so the keys are not lost.
func (p *Purger) removeAndDelete(ctx context.Context, batch []block.Removed, deleteRows func(context.Context) (int64, error)) (int64, bool) {
	keys := block.StorageKeys(batch)

	if len(keys) > 0 {
		bctx, cancel := context.WithTimeout(ctx, p.cfg.BlobTimeout)
		err := p.blobs.RemoveMany(bctx, keys)
		cancel()
		if err != nil {
			p.fail(purgeStageRemove, err)
			return 0, false
		}

		if p.cache != nil {
			if err := p.cache.Delete(ctx, keys...); err != nil {
				p.log.Warn("failed to evict cached download URLs", logger.Err(err))
			}
		}
	}

	n, err := deleteRows(ctx)
	if err != nil {
		p.fail(purgeStageDelete, err)
		return 0, false
	}

	p.log.Info("purged blocks", zap.Int64("rows", n), zap.Int("blobs", len(keys)))
	return n, true
}

func (p *Purger) fail(stage string, err error) {
	p.metrics.ObservePurgeFailure(stage)
	p.log.Error("purge pass failed", zap.String("stage", stage), logger.Err(err))
}
