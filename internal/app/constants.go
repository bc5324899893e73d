package app

import "time"

const (
	sagaCreateFile   = "create_file"
	sagaDeleteFile   = "delete_file"
	sagaDeleteFolder = "delete_folder"

	stepInsertProvisional = "insert_provisional"
	stepPutBlob           = "put_blob"
	stepCommit            = "commit"
	stepTombstone         = "tombstone"
	stepRemoveBlobs       = "remove_blobs"
	stepPurge             = "purge"

	defaultBlobTimeout  = 30 * time.Second
	defaultSignedURLTTL = 15 * time.Minute

	msgBlockNotFound      = "block not found"
	msgParentGone         = "parent folder was deleted during upload"
	msgNotOwner           = "you do not own this block"
	msgRootImmutable      = "the root folder cannot be modified"
	msgNotAFile           = "block is not a file"
	msgNotAFolder         = "block is not a folder"
	msgUnknownBlockType   = "block has an unknown type"
	msgUploadFailed       = "failed to store file contents"
	msgDeleteIncomplete   = "file contents could not be removed yet; cleanup will be retried"
	msgSignURLFailed      = "failed to create download link"
	msgRegistrationFailed = "failed to register user"
	msgLoginFailed        = "failed to log in"
	msgUsernameTaken      = "username is already taken"
)
