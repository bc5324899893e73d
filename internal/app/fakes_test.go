package app

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"drive-service/internal/domain/block"
	"drive-service/internal/domain/user"
	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
)

// fakeBlockRepo mirrors the semantics of the PostgreSQL repository on an
// in-memory map.
type fakeBlockRepo struct {
	mu      sync.Mutex
	rows    map[uuid.UUID]*fakeRow
	clock   time.Time
	purgeFn func(ids []uuid.UUID) error
}

type fakeRow struct {
	b       block.Block
	pending *string
}

func newFakeBlockRepo() *fakeBlockRepo {
	return &fakeBlockRepo{
		rows:  make(map[uuid.UUID]*fakeRow),
		clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (r *fakeBlockRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *fakeBlockRepo) addRoot(owner uuid.UUID) *block.Block {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := block.Block{ID: uuid.New(), OwnerID: owner, Type: block.TypeRoot, Name: block.RootName, CreatedAt: r.tick()}
	r.rows[b.ID] = &fakeRow{b: b}
	out := b
	return &out
}

func (r *fakeBlockRepo) row(id uuid.UUID) (*fakeRow, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	return row, ok
}

func (r *fakeBlockRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

func copyBlock(b block.Block) *block.Block {
	return &b
}

func (r *fakeBlockRepo) visible(row *fakeRow) bool {
	return row.b.Visible()
}

func (r *fakeBlockRepo) GetByID(_ context.Context, id uuid.UUID) (*block.Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok {
		return nil, apperrors.NotFound("block not found")
	}
	return copyBlock(row.b), nil
}

func (r *fakeBlockRepo) GetRoot(_ context.Context, owner uuid.UUID) (*block.Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, row := range r.rows {
		if row.b.OwnerID == owner && row.b.Type == block.TypeRoot {
			return copyBlock(row.b), nil
		}
	}
	return nil, apperrors.NotFound("root folder not found")
}

func (r *fakeBlockRepo) checkParent(parentID, owner uuid.UUID) error {
	parent, ok := r.rows[parentID]
	if !ok || parent.b.Tombstoned() || parent.b.OwnerID != owner {
		return apperrors.NotFound("parent folder not found")
	}
	if !parent.b.Type.CanParent() {
		return apperrors.InvalidState("parent must be a folder")
	}
	return nil
}

func (r *fakeBlockRepo) InsertFolder(_ context.Context, in block.CreateFolderInput) (*block.Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkParent(in.ParentFolderID, in.OwnerID); err != nil {
		return nil, err
	}

	parent := in.ParentFolderID
	b := block.Block{ID: uuid.New(), OwnerID: in.OwnerID, Type: block.TypeFolder, Name: in.Name, ParentFolderID: &parent, CreatedAt: r.tick()}
	r.rows[b.ID] = &fakeRow{b: b}
	return copyBlock(b), nil
}

func (r *fakeBlockRepo) InsertProvisionalFile(_ context.Context, in block.CreateFileInput) (*block.Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.checkParent(in.ParentFolderID, in.OwnerID); err != nil {
		return nil, err
	}

	parent := in.ParentFolderID
	size := in.SizeInBytes
	ct := in.ContentType
	pending := in.PendingStorageKey
	b := block.Block{
		ID:             uuid.New(),
		OwnerID:        in.OwnerID,
		Type:           block.TypeFile,
		Name:           in.Name,
		ParentFolderID: &parent,
		SizeInBytes:    &size,
		ContentType:    &ct,
		CreatedAt:      r.tick(),
	}
	r.rows[b.ID] = &fakeRow{b: b, pending: &pending}
	return copyBlock(b), nil
}

func (r *fakeBlockRepo) CommitFile(_ context.Context, id uuid.UUID) (*block.Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok || row.b.Tombstoned() || row.b.StorageKey != nil || row.pending == nil {
		return nil, apperrors.NotFound("file not found")
	}

	now := r.tick()
	row.b.StorageKey = row.pending
	row.pending = nil
	row.b.UploadTime = &now
	return copyBlock(row.b), nil
}

func (r *fakeBlockRepo) DeleteProvisional(_ context.Context, ids []uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, id := range ids {
		if row, ok := r.rows[id]; ok && row.b.Type == block.TypeFile && row.b.StorageKey == nil {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeBlockRepo) ownedVisible(id, owner uuid.UUID) (*fakeRow, error) {
	row, ok := r.rows[id]
	if !ok || row.b.OwnerID != owner || !r.visible(row) {
		return nil, apperrors.NotFound("block not found")
	}
	return row, nil
}

func (r *fakeBlockRepo) Rename(_ context.Context, id, owner uuid.UUID, name string) (*block.Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, err := r.ownedVisible(id, owner)
	if err != nil || row.b.Type == block.TypeRoot {
		return nil, apperrors.NotFound("block not found")
	}
	row.b.Name = name
	return copyBlock(row.b), nil
}

func (r *fakeBlockRepo) SetFavorite(_ context.Context, id, owner uuid.UUID, favorite bool) (*block.Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, err := r.ownedVisible(id, owner)
	if err != nil || row.b.Type == block.TypeRoot {
		return nil, apperrors.NotFound("block not found")
	}
	row.b.Favorite = favorite
	return copyBlock(row.b), nil
}

func (r *fakeBlockRepo) Move(_ context.Context, id, owner, newParent uuid.UUID) (*block.Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, err := r.ownedVisible(id, owner)
	if err != nil {
		return nil, err
	}
	if !row.b.Type.CanMove() {
		return nil, apperrors.InvalidState("only files and folders can be moved")
	}
	if err := r.checkParent(newParent, owner); err != nil {
		return nil, err
	}

	for cur := &newParent; cur != nil; {
		if *cur == id {
			return nil, apperrors.InvalidState("a folder cannot be moved into itself or its descendants")
		}
		cur = r.rows[*cur].b.ParentFolderID
	}

	p := newParent
	row.b.ParentFolderID = &p
	return copyBlock(row.b), nil
}

func (r *fakeBlockRepo) TombstoneFile(_ context.Context, id, owner uuid.UUID) (*block.Block, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.rows[id]
	if !ok || row.b.OwnerID != owner || row.b.Type != block.TypeFile || row.b.Tombstoned() || row.b.StorageKey == nil {
		return nil, apperrors.NotFound("file not found")
	}
	now := r.tick()
	row.b.DeletionTime = &now
	return copyBlock(row.b), nil
}

func (r *fakeBlockRepo) TombstoneSubtree(_ context.Context, id, owner uuid.UUID) ([]block.Removed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	root, ok := r.rows[id]
	if !ok || root.b.OwnerID != owner || root.b.Type != block.TypeFolder || root.b.Tombstoned() {
		return nil, apperrors.NotFound("folder not found")
	}

	now := r.tick()
	var removed []block.Removed
	queue := []uuid.UUID{id}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		row := r.rows[cur]
		if row.b.DeletionTime == nil {
			row.b.DeletionTime = &now
		}
		key := row.b.StorageKey
		if key == nil {
			key = row.pending
		}
		removed = append(removed, block.Removed{ID: cur, Type: row.b.Type, StorageKey: key})

		for childID, child := range r.rows {
			if child.b.ParentFolderID != nil && *child.b.ParentFolderID == cur {
				queue = append(queue, childID)
			}
		}
	}
	return removed, nil
}

func (r *fakeBlockRepo) PurgeSubtree(_ context.Context, ids []uuid.UUID) (int64, error) {
	if r.purgeFn != nil {
		if err := r.purgeFn(ids); err != nil {
			return 0, err
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, id := range ids {
		if row, ok := r.rows[id]; ok && row.b.Tombstoned() {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeBlockRepo) list(match func(*fakeRow) bool) []*block.Block {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*block.Block, 0)
	for _, row := range r.rows {
		if r.visible(row) && match(row) {
			out = append(out, copyBlock(row.b))
		}
	}
	block.Sort(out)
	return out
}

func (r *fakeBlockRepo) ListChildren(_ context.Context, parentID, owner uuid.UUID) ([]*block.Block, error) {
	return r.list(func(row *fakeRow) bool {
		return row.b.OwnerID == owner && row.b.ParentFolderID != nil && *row.b.ParentFolderID == parentID
	}), nil
}

func (r *fakeBlockRepo) Search(_ context.Context, owner uuid.UUID, query string) ([]*block.Block, error) {
	q := strings.ToLower(query)
	return r.list(func(row *fakeRow) bool {
		return row.b.OwnerID == owner && row.b.Type != block.TypeRoot && strings.Contains(strings.ToLower(row.b.Name), q)
	}), nil
}

func (r *fakeBlockRepo) ListFavorites(_ context.Context, owner uuid.UUID) ([]*block.Block, error) {
	return r.list(func(row *fakeRow) bool {
		return row.b.OwnerID == owner && row.b.Favorite
	}), nil
}

func (r *fakeBlockRepo) ListPurgeable(_ context.Context, before time.Time, limit int) ([]block.Removed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []block.Removed
	for id, row := range r.rows {
		if len(out) == limit {
			break
		}
		if row.b.Type == block.TypeFile && row.b.Tombstoned() && row.b.DeletionTime.Before(before) {
			key := row.b.StorageKey
			if key == nil {
				key = row.pending
			}
			out = append(out, block.Removed{ID: id, Type: row.b.Type, StorageKey: key})
		}
	}
	return out, nil
}

func (r *fakeBlockRepo) PurgeEmptyFolders(_ context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	hasChild := make(map[uuid.UUID]bool)
	for _, row := range r.rows {
		if row.b.ParentFolderID != nil {
			hasChild[*row.b.ParentFolderID] = true
		}
	}

	var n int64
	for id, row := range r.rows {
		if row.b.Type == block.TypeFolder && row.b.Tombstoned() && row.b.DeletionTime.Before(before) && !hasChild[id] {
			delete(r.rows, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeBlockRepo) ListStaleUploads(_ context.Context, before time.Time, limit int) ([]block.Removed, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []block.Removed
	for id, row := range r.rows {
		if len(out) == limit {
			break
		}
		if row.b.Type == block.TypeFile && row.b.StorageKey == nil && !row.b.Tombstoned() && row.b.CreatedAt.Before(before) {
			out = append(out, block.Removed{ID: id, Type: row.b.Type, StorageKey: row.pending})
		}
	}
	return out, nil
}

// fakeBlobStore keeps objects in memory and records every removal.
type fakeBlobStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	removes   [][]string
	presigns  int
	putErr    error
	removeErr error
	onPut     func()
	// landErr is returned after the bytes are stored, like a write that
	// timed out on the client but completed on the server.
	landErr error
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: make(map[string][]byte)}
}

func (s *fakeBlobStore) Put(_ context.Context, key string, body io.Reader, _ int64, _ string) error {
	if s.onPut != nil {
		s.onPut()
	}
	if s.putErr != nil {
		return s.putErr
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	return s.landErr
}

func (s *fakeBlobStore) RemoveMany(_ context.Context, keys []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.removes = append(s.removes, append([]string(nil), keys...))
	if s.removeErr != nil {
		return s.removeErr
	}
	for _, k := range keys {
		delete(s.objects, k)
	}
	return nil
}

func (s *fakeBlobStore) SignedDownloadURL(_ context.Context, key string, ttl time.Duration) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presigns++
	return "https://blobs.test/" + key + "?ttl=" + ttl.String(), nil
}

func (s *fakeBlobStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *fakeBlobStore) removedKeys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, batch := range s.removes {
		out = append(out, batch...)
	}
	return out
}

type fakeURLCache struct {
	entries map[string]string
	getErr  error
}

func newFakeURLCache() *fakeURLCache {
	return &fakeURLCache{entries: make(map[string]string)}
}

func (c *fakeURLCache) Get(_ context.Context, key string) (string, bool, error) {
	if c.getErr != nil {
		return "", false, c.getErr
	}
	url, ok := c.entries[key]
	return url, ok, nil
}

func (c *fakeURLCache) Set(_ context.Context, key, url string, _ time.Duration) error {
	c.entries[key] = url
	return nil
}

func (c *fakeURLCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

type countingNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *countingNotifier) Nudge() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.count++
}

func (n *countingNotifier) nudges() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.count
}

type fakeUserRepo struct {
	users map[string]*user.User
	err   error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*user.User)}
}

func (r *fakeUserRepo) CreateWithRoot(_ context.Context, in user.CreateUserInput) (*user.User, *block.Block, error) {
	if r.err != nil {
		return nil, nil, r.err
	}
	if _, ok := r.users[in.Username]; ok {
		return nil, nil, apperrors.Conflict("username is already taken")
	}
	u := &user.User{ID: uuid.New(), Username: in.Username, PasswordHash: in.PasswordHash}
	r.users[in.Username] = u
	root := &block.Block{ID: uuid.New(), OwnerID: u.ID, Type: block.TypeRoot, Name: block.RootName}
	return u, root, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, username string) (*user.User, error) {
	u, ok := r.users[username]
	if !ok {
		return nil, apperrors.NotFound("user not found")
	}
	return u, nil
}

func (r *fakeUserRepo) UsernameExists(_ context.Context, username string) (bool, error) {
	_, ok := r.users[username]
	return ok, nil
}

// plainHasher stands in for bcrypt so tests stay fast.
type plainHasher struct {
	dummyCalls int
}

func (h *plainHasher) Hash(password string) (string, error) { return "hashed:" + password, nil }
func (h *plainHasher) Verify(password, hash string) bool    { return hash == "hashed:"+password }
func (h *plainHasher) VerifyDummy(string)                   { h.dummyCalls++ }

type fakeTokens struct {
	err error
}

func (f *fakeTokens) Generate(userID uuid.UUID, username string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return "token-" + username + "-" + userID.String(), nil
}

var errBlobDown = errors.New("blob store unavailable")

func payload(s string) FileUpload {
	return FileUpload{Name: "a.txt", ContentType: "text/plain", Size: int64(len(s)), Body: bytes.NewBufferString(s)}
}
