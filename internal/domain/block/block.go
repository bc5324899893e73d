package block

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Type discriminates the three kinds of node in a user's tree.
type Type uint8

const (
	TypeRoot Type = iota + 1
	TypeFolder
	TypeFile
)

const (
	typeNameRoot   = "ROOT"
	typeNameFolder = "FOLDER"
	typeNameFile   = "FILE"

	// RootName is the display name given to every user's ROOT block.
	RootName = "Home"

	errUnknownTypeFmt = "unknown block type %q"
)

func (t Type) String() string {
	switch t {
	case TypeRoot:
		return typeNameRoot
	case TypeFolder:
		return typeNameFolder
	case TypeFile:
		return typeNameFile
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// ParseType is the inverse of String for the three known types.
func ParseType(s string) (Type, error) {
	switch s {
	case typeNameRoot:
		return TypeRoot, nil
	case typeNameFolder:
		return TypeFolder, nil
	case typeNameFile:
		return TypeFile, nil
	default:
		return 0, fmt.Errorf(errUnknownTypeFmt, s)
	}
}

func (t Type) Valid() bool {
	switch t {
	case TypeRoot, TypeFolder, TypeFile:
		return true
	default:
		return false
	}
}

// CanParent reports whether blocks of this type may hold children.
func (t Type) CanParent() bool {
	switch t {
	case TypeRoot, TypeFolder:
		return true
	case TypeFile:
		return false
	default:
		return false
	}
}

// CanFavorite reports whether the favorite flag applies to this type.
func (t Type) CanFavorite() bool {
	switch t {
	case TypeFolder, TypeFile:
		return true
	case TypeRoot:
		return false
	default:
		return false
	}
}

// CanRename reports whether the name may change after creation.
func (t Type) CanRename() bool {
	switch t {
	case TypeFolder, TypeFile:
		return true
	case TypeRoot:
		return false
	default:
		return false
	}
}

// CanMove reports whether the block may be re-parented.
func (t Type) CanMove() bool {
	switch t {
	case TypeFolder, TypeFile:
		return true
	case TypeRoot:
		return false
	default:
		return false
	}
}

// group orders folders (and the root) ahead of files in listings.
func (t Type) group() int {
	switch t {
	case TypeRoot, TypeFolder:
		return 0
	case TypeFile:
		return 1
	default:
		return 2
	}
}

type Block struct {
	ID             uuid.UUID
	OwnerID        uuid.UUID
	Type           Type
	Name           string
	ParentFolderID *uuid.UUID
	StorageKey     *string
	SizeInBytes    *int64
	ContentType    *string
	Favorite       bool
	UploadTime     *time.Time
	DeletionTime   *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Tombstoned reports whether the block is soft-deleted and awaiting purge.
func (b *Block) Tombstoned() bool {
	return b.DeletionTime != nil
}

// Committed reports whether a FILE's payload is known to exist in the blob
// store. Non-file blocks are always committed.
func (b *Block) Committed() bool {
	switch b.Type {
	case TypeFile:
		return b.StorageKey != nil
	case TypeRoot, TypeFolder:
		return true
	default:
		return false
	}
}

// Visible reports whether the block may appear in any user-facing view.
func (b *Block) Visible() bool {
	return !b.Tombstoned() && b.Committed()
}

type CreateFolderInput struct {
	OwnerID        uuid.UUID
	ParentFolderID uuid.UUID
	Name           string
}

// CreateFileInput describes a provisional FILE row. PendingStorageKey is the
// key the upload will be written under; it only becomes StorageKey once the
// blob write is confirmed.
type CreateFileInput struct {
	OwnerID           uuid.UUID
	ParentFolderID    uuid.UUID
	Name              string
	PendingStorageKey string
	SizeInBytes       int64
	ContentType       string
}

// Removed is one row returned by a tombstone cascade.
type Removed struct {
	ID         uuid.UUID
	Type       Type
	StorageKey *string
}

// StorageKeys collects the blob keys of the FILE rows in a cascade result.
func StorageKeys(removed []Removed) []string {
	keys := make([]string, 0, len(removed))
	for _, r := range removed {
		if r.Type == TypeFile && r.StorageKey != nil {
			keys = append(keys, *r.StorageKey)
		}
	}
	return keys
}

// IDs returns the ids of a cascade result in order.
func IDs(removed []Removed) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(removed))
	for _, r := range removed {
		ids = append(ids, r.ID)
	}
	return ids
}

// Less is the listing order: folders before files, then name
// case-insensitively, then exact name, then id.
func Less(a, b *Block) bool {
	if ga, gb := a.Type.group(), b.Type.group(); ga != gb {
		return ga < gb
	}
	la, lb := strings.ToLower(a.Name), strings.ToLower(b.Name)
	if la != lb {
		return la < lb
	}
	if a.Name != b.Name {
		return a.Name < b.Name
	}
	return a.ID.String() < b.ID.String()
}

func Sort(blocks []*Block) {
	sort.SliceStable(blocks, func(i, j int) bool {
		return Less(blocks[i], blocks[j])
	})
}

// FolderView is a real folder together with its parent and visible children.
type FolderView struct {
	Folder   *Block
	Parent   *Block
	Children []*Block
}

const (
	PseudoFolderSearch    = "Search results"
	PseudoFolderFavorites = "Favorites"
)

// PseudoFolder is a read-only aggregation (search results, favorites). It has
// no id and can never be a parent.
type PseudoFolder struct {
	Name   string
	Blocks []*Block
}
