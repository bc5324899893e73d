package handler

const (
	paramID       = "id"
	queryUsername = "username"
	querySearch   = "q"
	formFieldFile = "file"

	metaName     = "name"
	metaParentID = "parent_id"
	metaFavorite = "favorite"
	metaSize     = "size"
)

const (
	msgContentTypeJSONRequired = "content type must be application/json"
	msgInvalidRequestBody      = "invalid request body"
	msgInvalidBlockID          = "invalid block id"
	msgInvalidParentID         = "invalid parent id"
	msgFileFieldRequired       = "multipart field \"file\" is required"
	msgFileOpenFailed          = "failed to read uploaded file"
	msgFavoriteRequired        = "favorite is required"
)
