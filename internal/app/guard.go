package app

import (
	"context"

	"drive-service/internal/domain/block"
	"drive-service/internal/repository"
	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
)

type blockGetter interface {
	GetByID(ctx context.Context, id uuid.UUID) (*block.Block, error)
}

// AccessGuard answers whether a user may write to a block. It reads the
// store on every call; ownership never changes but liveness does.
type AccessGuard struct {
	blocks blockGetter
}

func NewAccessGuard(blocks repository.BlockRepository) *AccessGuard {
	return &AccessGuard{blocks: blocks}
}

// AuthorizeWrite returns the live block when userID owns it. Missing,
// tombstoned and uncommitted blocks are NotFound; a foreign owner is
// Unauthorized.
func (g *AccessGuard) AuthorizeWrite(ctx context.Context, blockID, userID uuid.UUID) (*block.Block, error) {
	b, err := g.blocks.GetByID(ctx, blockID)
	if err != nil {
		return nil, err
	}

	if !b.Visible() {
		return nil, apperrors.NotFound(msgBlockNotFound)
	}

	if b.OwnerID != userID {
		return nil, apperrors.Unauthorized(msgNotOwner)
	}

	return b, nil
}

// authorizeQuiet is AuthorizeWrite for operations that must not confirm that
// a foreign block exists.
func (g *AccessGuard) authorizeQuiet(ctx context.Context, blockID, userID uuid.UUID) (*block.Block, error) {
	b, err := g.AuthorizeWrite(ctx, blockID, userID)
	if apperrors.Is(err, apperrors.ErrUnauthorized) {
		return nil, apperrors.NotFound(msgBlockNotFound)
	}
	return b, err
}
