package postgres

import (
	"context"

	"drive-service/internal/domain/block"
	"drive-service/internal/domain/user"
	apperrors "drive-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const userColumns = `id, username, password_hash, created_at, updated_at`

type UserRepository struct {
	db *DB
}

func NewUserRepository(db *DB) *UserRepository {
	return &UserRepository{db: db}
}

func scanUser(row pgx.Row) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *UserRepository) CreateWithRoot(ctx context.Context, input user.CreateUserInput) (*user.User, *block.Block, error) {
	userQuery := `
		INSERT INTO users (id, username, password_hash)
		VALUES ($1, $2, $3)
		RETURNING ` + userColumns

	rootQuery := `
		INSERT INTO blocks (id, owner_id, type, name)
		VALUES ($1, $2, 'ROOT', $3)
		RETURNING ` + blockColumns

	var (
		created *user.User
		root    *block.Block
	)
	err := r.db.WithTx(ctx, func(tx pgx.Tx) error {
		u, err := scanUser(tx.QueryRow(ctx, userQuery, uuid.New(), input.Username, input.PasswordHash))
		if err != nil {
			if isUniqueViolation(err) {
				return apperrors.Conflict(errUsernameTaken)
			}
			return errFailedCreateUser(err)
		}

		b, err := scanBlock(tx.QueryRow(ctx, rootQuery, uuid.New(), u.ID, block.RootName))
		if err != nil {
			return errFailedCreateRoot(err)
		}

		created, root = u, b
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	return created, root, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE lower(username) = lower($1)`

	u, err := scanUser(r.db.Pool.QueryRow(ctx, query, username))
	if err != nil {
		if isNoRows(err) {
			return nil, apperrors.NotFound(errUserNotFound)
		}
		return nil, errFailedGetUser(err)
	}

	return u, nil
}

func (r *UserRepository) UsernameExists(ctx context.Context, username string) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM users WHERE lower(username) = lower($1))`

	var exists bool
	if err := r.db.Pool.QueryRow(ctx, query, username).Scan(&exists); err != nil {
		return false, errFailedCheckUser(err)
	}

	return exists, nil
}
