package handler

import (
	"context"

	"drive-service/internal/app"
	"drive-service/internal/audit"
	"drive-service/internal/domain/block"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Consumer-side interfaces defined by handlers. Each one lists only the
// operations its handler calls.

type BlockOperations interface {
	CreateFolder(ctx context.Context, parentID, ownerID uuid.UUID, name string) (*block.Block, error)
	CreateFile(ctx context.Context, parentID, ownerID uuid.UUID, upload app.FileUpload) (*block.Block, error)
	Rename(ctx context.Context, blockID, ownerID uuid.UUID, newName string) (*block.Block, error)
	ToggleFavorite(ctx context.Context, blockID, ownerID uuid.UUID, value bool) (*block.Block, error)
	Move(ctx context.Context, blockID, ownerID, newParentID uuid.UUID) (*block.Block, error)
	DeleteFile(ctx context.Context, blockID, ownerID uuid.UUID) error
	DeleteFolder(ctx context.Context, blockID, ownerID uuid.UUID) error
	ListChildren(ctx context.Context, folderID, ownerID uuid.UUID) (*block.FolderView, error)
	GetBlock(ctx context.Context, blockID, ownerID uuid.UUID) (*block.Block, error)
	DownloadURL(ctx context.Context, blockID, ownerID uuid.UUID) (string, error)
	Search(ctx context.Context, ownerID uuid.UUID, query string) (*block.PseudoFolder, error)
	ListFavorites(ctx context.Context, ownerID uuid.UUID) (*block.PseudoFolder, error)
}

type AccountOperations interface {
	Register(ctx context.Context, username, password string) (*app.Session, error)
	Login(ctx context.Context, username, password string) (*app.Session, error)
	UsernameAvailable(ctx context.Context, username string) (bool, error)
}

// AuditLogger records mutations. Implementations must not block the request.
type AuditLogger interface {
	LogFromContext(c echo.Context, resourceType audit.ResourceType, resourceID *uuid.UUID, action audit.Action, metadata map[string]any)
	LogError(c echo.Context, resourceType audit.ResourceType, resourceID *uuid.UUID, action audit.Action, err error)
}

type noopAudit struct{}

func (noopAudit) LogFromContext(echo.Context, audit.ResourceType, *uuid.UUID, audit.Action, map[string]any) {}
func (noopAudit) LogError(echo.Context, audit.ResourceType, *uuid.UUID, audit.Action, error)                {}
