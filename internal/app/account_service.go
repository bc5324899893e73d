package app

import (
	"context"
	"strings"

	"drive-service/internal/domain/block"
	"drive-service/internal/domain/user"
	"drive-service/internal/repository"
	apperrors "drive-service/pkg/errors"
	"drive-service/pkg/logger"
	"drive-service/pkg/validator"

	"go.uber.org/zap"
)

// AccountService registers users and issues session tokens.
type AccountService struct {
	users  repository.UserRepository
	hasher PasswordHasher
	tokens TokenIssuer
	log    *zap.Logger
}

func NewAccountService(users repository.UserRepository, hasher PasswordHasher, tokens TokenIssuer, log *zap.Logger) *AccountService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountService{users: users, hasher: hasher, tokens: tokens, log: log}
}

// Session is the result of a successful register or login.
type Session struct {
	User  *user.User
	Root  *block.Block
	Token string
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Register creates the user together with its root folder.
func (s *AccountService) Register(ctx context.Context, username, password string) (*Session, error) {
	username = normalizeUsername(username)
	if err := validator.Username(username); err != nil {
		return nil, apperrors.Validation(err.Error())
	}
	if err := validator.Password(password); err != nil {
		return nil, apperrors.Validation(err.Error())
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, apperrors.InternalServer(msgRegistrationFailed, err)
	}

	u, root, err := s.users.CreateWithRoot(ctx, user.CreateUserInput{
		Username:     username,
		PasswordHash: hash,
	})
	if err != nil {
		if apperrors.Is(err, apperrors.ErrConflict) {
			return nil, apperrors.Conflict(msgUsernameTaken)
		}
		return nil, err
	}

	token, err := s.tokens.Generate(u.ID, u.Username)
	if err != nil {
		return nil, apperrors.InternalServer(msgRegistrationFailed, err)
	}

	logger.FromContext(ctx, s.log).Info("user registered", zap.Stringer("user_id", u.ID))

	return &Session{User: u, Root: root, Token: token}, nil
}

// Login checks the credentials. Unknown users and wrong passwords take the
// same time and return the same error.
func (s *AccountService) Login(ctx context.Context, username, password string) (*Session, error) {
	username = normalizeUsername(username)

	u, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrNotFound) {
			s.hasher.VerifyDummy(password)
			return nil, apperrors.InvalidCredentials()
		}
		return nil, err
	}

	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, apperrors.InvalidCredentials()
	}

	token, err := s.tokens.Generate(u.ID, u.Username)
	if err != nil {
		return nil, apperrors.InternalServer(msgLoginFailed, err)
	}

	return &Session{User: u, Token: token}, nil
}

// UsernameAvailable reports whether a well-formed username is still free.
func (s *AccountService) UsernameAvailable(ctx context.Context, username string) (bool, error) {
	username = normalizeUsername(username)
	if err := validator.Username(username); err != nil {
		return false, apperrors.Validation(err.Error())
	}

	exists, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		return false, err
	}
	return !exists, nil
}
