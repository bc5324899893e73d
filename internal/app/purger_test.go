package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"drive-service/internal/domain/block"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type purgeMetrics struct {
	noopMetrics
	mu       sync.Mutex
	purged   map[string]int64
	failures []string
}

func (m *purgeMetrics) ObservePurged(kind string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.purged == nil {
		m.purged = make(map[string]int64)
	}
	m.purged[kind] += n
}

func (m *purgeMetrics) ObservePurgeFailure(stage string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures = append(m.failures, stage)
}

// newTestPurger returns a purger whose clock sits an hour past the fake
// repository's clock, so everything written so far is beyond the grace
// period.
func newTestPurger(f *serviceFixture, m Metrics, batch int) *Purger {
	p := NewPurger(f.repo, f.blobs, f.cache, m, nil, PurgerConfig{
		Interval:    time.Hour,
		Grace:       time.Minute,
		BatchSize:   batch,
		BlobTimeout: time.Second,
	})
	now := f.repo.clock.Add(time.Hour)
	p.now = func() time.Time { return now }
	return p
}

func TestPurger_FinishesFailedFileDelete(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	file, err := f.svc.CreateFile(ctx, f.root.ID, f.owner, payload("hi"))
	require.NoError(t, err)
	key := *file.StorageKey

	f.blobs.removeErr = errBlobDown
	require.Error(t, f.svc.DeleteFile(ctx, file.ID, f.owner))
	f.blobs.removeErr = nil

	m := &purgeMetrics{}
	newTestPurger(f, m, 10).RunOnce(ctx)

	_, ok := f.repo.row(file.ID)
	assert.False(t, ok)
	assert.False(t, f.blobs.has(key))
	assert.Equal(t, int64(1), m.purged[purgeKindFile])
	assert.Empty(t, m.failures)
}

func TestPurger_FinishesFailedFolderDelete(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	top, err := f.svc.CreateFolder(ctx, f.root.ID, f.owner, "top")
	require.NoError(t, err)
	mid, err := f.svc.CreateFolder(ctx, top.ID, f.owner, "mid")
	require.NoError(t, err)
	leaf, err := f.svc.CreateFolder(ctx, mid.ID, f.owner, "leaf")
	require.NoError(t, err)
	file, err := f.svc.CreateFile(ctx, leaf.ID, f.owner, payload("deep"))
	require.NoError(t, err)

	f.blobs.removeErr = errBlobDown
	require.Error(t, f.svc.DeleteFolder(ctx, top.ID, f.owner))
	f.blobs.removeErr = nil
	require.Equal(t, 5, f.repo.count())

	m := &purgeMetrics{}
	newTestPurger(f, m, 10).RunOnce(ctx)

	assert.Equal(t, 1, f.repo.count(), "only the root survives")
	assert.False(t, f.blobs.has(*file.StorageKey))
	assert.Equal(t, int64(1), m.purged[purgeKindFile])
	assert.Equal(t, int64(3), m.purged[purgeKindFolder])
}

func TestPurger_KeepsRowsWhenBlobRemovalFails(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	file, err := f.svc.CreateFile(ctx, f.root.ID, f.owner, payload("hi"))
	require.NoError(t, err)

	f.blobs.removeErr = errBlobDown
	require.Error(t, f.svc.DeleteFile(ctx, file.ID, f.owner))

	m := &purgeMetrics{}
	p := newTestPurger(f, m, 10)
	p.RunOnce(ctx)

	row, ok := f.repo.row(file.ID)
	require.True(t, ok, "row keeps the storage key until removal succeeds")
	assert.True(t, row.b.Tombstoned())
	assert.Contains(t, m.failures, purgeStageRemove)

	f.blobs.removeErr = nil
	p.RunOnce(ctx)

	_, ok = f.repo.row(file.ID)
	assert.False(t, ok)
}

func TestPurger_BatchesFiles(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	f.blobs.removeErr = errBlobDown
	for i := 0; i < 5; i++ {
		file, err := f.svc.CreateFile(ctx, f.root.ID, f.owner, payload("x"))
		require.NoError(t, err)
		require.Error(t, f.svc.DeleteFile(ctx, file.ID, f.owner))
	}
	f.blobs.removeErr = nil
	removesBefore := len(f.blobs.removes)

	m := &purgeMetrics{}
	newTestPurger(f, m, 2).RunOnce(ctx)

	assert.Equal(t, 1, f.repo.count())
	assert.Equal(t, int64(5), m.purged[purgeKindFile])
	assert.Len(t, f.blobs.removes[removesBefore:], 3)
}

func TestPurger_RemovesStaleUploads(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	stale, err := f.repo.InsertProvisionalFile(ctx, block.CreateFileInput{
		OwnerID:           f.owner,
		ParentFolderID:    f.root.ID,
		Name:              "stuck.bin",
		PendingStorageKey: "owner/stuck",
	})
	require.NoError(t, err)
	f.blobs.objects["owner/stuck"] = []byte("partial")

	committed, err := f.svc.CreateFile(ctx, f.root.ID, f.owner, payload("ok"))
	require.NoError(t, err)

	m := &purgeMetrics{}
	newTestPurger(f, m, 10).RunOnce(ctx)

	_, ok := f.repo.row(stale.ID)
	assert.False(t, ok)
	assert.False(t, f.blobs.has("owner/stuck"))
	assert.Equal(t, int64(1), m.purged[purgeKindUpload])

	_, ok = f.repo.row(committed.ID)
	assert.True(t, ok, "committed files are never touched")
	assert.True(t, f.blobs.has(*committed.StorageKey))
}

func TestPurger_RespectsGracePeriod(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	stale, err := f.repo.InsertProvisionalFile(ctx, block.CreateFileInput{
		OwnerID:           f.owner,
		ParentFolderID:    f.root.ID,
		Name:              "uploading.bin",
		PendingStorageKey: "owner/uploading",
	})
	require.NoError(t, err)

	p := newTestPurger(f, nil, 10)
	now := f.repo.clock
	p.now = func() time.Time { return now }
	p.RunOnce(ctx)

	_, ok := f.repo.row(stale.ID)
	assert.True(t, ok, "an upload still inside the grace period is left alone")
	assert.Empty(t, f.blobs.removes)
}

func TestPurger_EvictsCachedURLs(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	file, err := f.svc.CreateFile(ctx, f.root.ID, f.owner, payload("hi"))
	require.NoError(t, err)
	key := *file.StorageKey

	f.blobs.removeErr = errBlobDown
	require.Error(t, f.svc.DeleteFile(ctx, file.ID, f.owner))
	f.blobs.removeErr = nil
	f.cache.entries[key] = "https://stale"

	newTestPurger(f, nil, 10).RunOnce(ctx)

	assert.NotContains(t, f.cache.entries, key)
}

func TestPurger_NudgeNeverBlocks(t *testing.T) {
	f := newServiceFixture(t)
	p := newTestPurger(f, nil, 10)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			p.Nudge()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Nudge blocked")
	}
	assert.Len(t, p.nudge, 1)
}

func TestPurger_RunReactsToNudgeAndStops(t *testing.T) {
	f := newServiceFixture(t)
	ctx, cancel := context.WithCancel(context.Background())

	stale, err := f.repo.InsertProvisionalFile(ctx, block.CreateFileInput{
		OwnerID:           f.owner,
		ParentFolderID:    f.root.ID,
		Name:              "stuck.bin",
		PendingStorageKey: "owner/stuck",
	})
	require.NoError(t, err)

	p := newTestPurger(f, nil, 10)
	stopped := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(stopped)
	}()

	p.Nudge()
	assert.Eventually(t, func() bool {
		_, ok := f.repo.row(stale.ID)
		return !ok
	}, time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancellation")
	}
}

func TestPurger_LeavesLiveBlocks(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	other := uuid.New()
	otherRoot := f.repo.addRoot(other)
	folder, err := f.svc.CreateFolder(ctx, otherRoot.ID, other, "theirs")
	require.NoError(t, err)

	newTestPurger(f, nil, 10).RunOnce(ctx)

	_, ok := f.repo.row(folder.ID)
	assert.True(t, ok, "live blocks of any owner survive a pass")
}
