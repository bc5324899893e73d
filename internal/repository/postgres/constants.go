package postgres

import (
	"fmt"
	"time"
)

const (
	poolHealthCheckPeriod = time.Minute
	poolMaxConnLifetime   = time.Hour
	poolMaxConnIdleTime   = 30 * time.Minute
	dbPingTimeout         = 5 * time.Second

	// serializableRetries bounds how often a transaction that lost a
	// serialization conflict is replayed.
	serializableRetries = 5

	pgCodeUniqueViolation      = "23505"
	pgCodeSerializationFailure = "40001"
	pgCodeDeadlockDetected     = "40P01"

	errUserNotFound        = "user not found"
	errBlockNotFound       = "block not found"
	errRootNotFound        = "root folder not found"
	errParentNotFound      = "parent folder not found"
	errParentNotFolder     = "parent must be a folder"
	errFileNotFound        = "file not found"
	errFolderNotFound      = "folder not found"
	errUsernameTaken       = "username is already taken"
	errBlockNotMovable     = "only files and folders can be moved"
	errMoveIntoDescendant  = "a folder cannot be moved into itself or its descendants"

	errFailedParseDatabaseConfigFmt  = "failed to parse database config: %w"
	errFailedCreateConnectionPoolFmt = "failed to create connection pool: %w"
	errFailedPingDatabaseFmt         = "failed to ping database: %w"
	errFailedApplySchemaFmt          = "failed to apply schema: %w"

	errFailedStartTransactionFmt  = "failed to start transaction: %w"
	errFailedCommitTransactionFmt = "failed to commit transaction: %w"
	errSerializationExhaustedFmt  = "transaction kept conflicting after %d attempts: %w"

	errFailedCreateUserFmt   = "failed to create user: %w"
	errFailedCreateRootFmt   = "failed to create root folder: %w"
	errFailedGetUserFmt      = "failed to get user: %w"
	errFailedCheckUserFmt    = "failed to check username: %w"
	errFailedGetBlockFmt     = "failed to get block: %w"
	errFailedGetRootFmt      = "failed to get root folder: %w"
	errFailedGetParentFmt    = "failed to get parent folder: %w"
	errFailedScanBlockFmt    = "failed to scan block: %w"
	errFailedListBlocksFmt   = "failed to list blocks: %w"
	errIterateBlocksFmt      = "error iterating blocks: %w"
	errFailedCreateFolderFmt = "failed to create folder: %w"
	errFailedCreateFileFmt   = "failed to create file: %w"
	errFailedCommitFileFmt   = "failed to commit file: %w"
	errFailedDeleteFilesFmt  = "failed to delete provisional files: %w"
	errFailedRenameFmt       = "failed to rename block: %w"
	errFailedFavoriteFmt     = "failed to update favorite: %w"
	errFailedMoveFmt         = "failed to move block: %w"
	errFailedCheckCycleFmt   = "failed to check ancestry: %w"
	errFailedTombstoneFmt    = "failed to tombstone block: %w"
	errFailedCascadeFmt      = "failed to tombstone subtree: %w"
	errFailedPurgeFmt        = "failed to purge blocks: %w"
	errFailedScanRemovedFmt  = "failed to scan removed block: %w"
)

var (
	errFailedApplySchema          = func(err error) error { return fmt.Errorf(errFailedApplySchemaFmt, err) }
	errFailedCascade              = func(err error) error { return fmt.Errorf(errFailedCascadeFmt, err) }
	errFailedCheckCycle           = func(err error) error { return fmt.Errorf(errFailedCheckCycleFmt, err) }
	errFailedCheckUser            = func(err error) error { return fmt.Errorf(errFailedCheckUserFmt, err) }
	errFailedCommitFile           = func(err error) error { return fmt.Errorf(errFailedCommitFileFmt, err) }
	errFailedCommitTransaction    = func(err error) error { return fmt.Errorf(errFailedCommitTransactionFmt, err) }
	errFailedCreateConnectionPool = func(err error) error { return fmt.Errorf(errFailedCreateConnectionPoolFmt, err) }
	errFailedCreateFile           = func(err error) error { return fmt.Errorf(errFailedCreateFileFmt, err) }
	errFailedCreateFolder         = func(err error) error { return fmt.Errorf(errFailedCreateFolderFmt, err) }
	errFailedCreateRoot           = func(err error) error { return fmt.Errorf(errFailedCreateRootFmt, err) }
	errFailedCreateUser           = func(err error) error { return fmt.Errorf(errFailedCreateUserFmt, err) }
	errFailedDeleteFiles          = func(err error) error { return fmt.Errorf(errFailedDeleteFilesFmt, err) }
	errFailedFavorite             = func(err error) error { return fmt.Errorf(errFailedFavoriteFmt, err) }
	errFailedGetBlock             = func(err error) error { return fmt.Errorf(errFailedGetBlockFmt, err) }
	errFailedGetParent            = func(err error) error { return fmt.Errorf(errFailedGetParentFmt, err) }
	errFailedGetRoot              = func(err error) error { return fmt.Errorf(errFailedGetRootFmt, err) }
	errFailedGetUser              = func(err error) error { return fmt.Errorf(errFailedGetUserFmt, err) }
	errFailedListBlocks           = func(err error) error { return fmt.Errorf(errFailedListBlocksFmt, err) }
	errFailedMove                 = func(err error) error { return fmt.Errorf(errFailedMoveFmt, err) }
	errFailedParseDatabaseConfig  = func(err error) error { return fmt.Errorf(errFailedParseDatabaseConfigFmt, err) }
	errFailedPingDatabase         = func(err error) error { return fmt.Errorf(errFailedPingDatabaseFmt, err) }
	errFailedPurge                = func(err error) error { return fmt.Errorf(errFailedPurgeFmt, err) }
	errFailedRename               = func(err error) error { return fmt.Errorf(errFailedRenameFmt, err) }
	errFailedScanBlock            = func(err error) error { return fmt.Errorf(errFailedScanBlockFmt, err) }
	errFailedScanRemoved          = func(err error) error { return fmt.Errorf(errFailedScanRemovedFmt, err) }
	errFailedStartTransaction     = func(err error) error { return fmt.Errorf(errFailedStartTransactionFmt, err) }
	errFailedTombstone            = func(err error) error { return fmt.Errorf(errFailedTombstoneFmt, err) }
	errIterateBlocks              = func(err error) error { return fmt.Errorf(errIterateBlocksFmt, err) }
)
