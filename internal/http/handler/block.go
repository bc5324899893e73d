package handler

import (
	"net/http"

	"drive-service/internal/app"
	"drive-service/internal/audit"
	"drive-service/internal/auth"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// multipartOverhead is the slack allowed on top of the file size for the
// multipart envelope.
const multipartOverhead = 1 << 20

type BlockHandler struct {
	blocks        BlockOperations
	auditLogger   AuditLogger
	maxUploadSize int64
}

func NewBlockHandler(blocks BlockOperations, auditLogger AuditLogger, maxUploadSize int64) *BlockHandler {
	if auditLogger == nil {
		auditLogger = noopAudit{}
	}
	return &BlockHandler{
		blocks:        blocks,
		auditLogger:   auditLogger,
		maxUploadSize: maxUploadSize,
	}
}

func (h *BlockHandler) GetRoot(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}

	view, err := h.blocks.ListChildren(c.Request().Context(), uuid.Nil, userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toFolderViewResponse(view))
}

func (h *BlockHandler) ListFolder(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}
	folderID, err := blockIDParam(c)
	if err != nil {
		return err
	}

	view, err := h.blocks.ListChildren(c.Request().Context(), folderID, userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toFolderViewResponse(view))
}

func (h *BlockHandler) CreateFolder(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}
	parentID, err := blockIDParam(c)
	if err != nil {
		return err
	}

	var req CreateFolderRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}

	folder, err := h.blocks.CreateFolder(c.Request().Context(), parentID, userID, req.Name)
	if err != nil {
		h.auditLogger.LogError(c, audit.ResourceTypeFolder, nil, audit.ActionCreate, err)
		return err
	}

	h.auditLogger.LogFromContext(c, audit.ResourceTypeFolder, &folder.ID, audit.ActionCreate, map[string]any{
		metaName:     folder.Name,
		metaParentID: parentID.String(),
	})

	return c.JSON(http.StatusCreated, toBlockResponse(folder))
}

// UploadFile streams the multipart field "file" into CreateFile.
func (h *BlockHandler) UploadFile(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}
	parentID, err := blockIDParam(c)
	if err != nil {
		return err
	}

	if h.maxUploadSize > 0 {
		req := c.Request()
		req.Body = http.MaxBytesReader(c.Response(), req.Body, h.maxUploadSize+multipartOverhead)
	}

	fh, err := c.FormFile(formFieldFile)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgFileFieldRequired)
	}

	src, err := fh.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgFileOpenFailed)
	}
	defer src.Close()

	file, err := h.blocks.CreateFile(c.Request().Context(), parentID, userID, app.FileUpload{
		Name:        fh.Filename,
		ContentType: fh.Header.Get(echo.HeaderContentType),
		Size:        fh.Size,
		Body:        src,
	})
	if err != nil {
		h.auditLogger.LogError(c, audit.ResourceTypeFile, nil, audit.ActionCreate, err)
		return err
	}

	h.auditLogger.LogFromContext(c, audit.ResourceTypeFile, &file.ID, audit.ActionCreate, map[string]any{
		metaName:     file.Name,
		metaParentID: parentID.String(),
		metaSize:     fh.Size,
	})

	return c.JSON(http.StatusCreated, toBlockResponse(file))
}

func (h *BlockHandler) GetBlock(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}
	blockID, err := blockIDParam(c)
	if err != nil {
		return err
	}

	b, err := h.blocks.GetBlock(c.Request().Context(), blockID, userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toBlockResponse(b))
}

func (h *BlockHandler) Rename(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}
	blockID, err := blockIDParam(c)
	if err != nil {
		return err
	}

	var req RenameRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}

	b, err := h.blocks.Rename(c.Request().Context(), blockID, userID, req.Name)
	if err != nil {
		h.auditLogger.LogError(c, audit.ResourceTypeBlock, &blockID, audit.ActionRename, err)
		return err
	}

	h.auditLogger.LogFromContext(c, audit.ResourceTypeBlock, &blockID, audit.ActionRename, map[string]any{
		metaName: b.Name,
	})

	return c.JSON(http.StatusOK, toBlockResponse(b))
}

func (h *BlockHandler) Move(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}
	blockID, err := blockIDParam(c)
	if err != nil {
		return err
	}

	var req MoveRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}
	parentID, err := parseUUID(req.ParentID, msgInvalidParentID)
	if err != nil {
		return err
	}

	b, err := h.blocks.Move(c.Request().Context(), blockID, userID, parentID)
	if err != nil {
		h.auditLogger.LogError(c, audit.ResourceTypeBlock, &blockID, audit.ActionMove, err)
		return err
	}

	h.auditLogger.LogFromContext(c, audit.ResourceTypeBlock, &blockID, audit.ActionMove, map[string]any{
		metaParentID: parentID.String(),
	})

	return c.JSON(http.StatusOK, toBlockResponse(b))
}

func (h *BlockHandler) SetFavorite(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}
	blockID, err := blockIDParam(c)
	if err != nil {
		return err
	}

	var req FavoriteRequest
	if err := bindStrictJSON(c, &req); err != nil {
		return err
	}
	if req.Favorite == nil {
		return echo.NewHTTPError(http.StatusBadRequest, msgFavoriteRequired)
	}

	b, err := h.blocks.ToggleFavorite(c.Request().Context(), blockID, userID, *req.Favorite)
	if err != nil {
		return err
	}

	h.auditLogger.LogFromContext(c, audit.ResourceTypeBlock, &blockID, audit.ActionFavorite, map[string]any{
		metaFavorite: b.Favorite,
	})

	return c.JSON(http.StatusOK, toBlockResponse(b))
}

func (h *BlockHandler) DeleteFile(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}
	blockID, err := blockIDParam(c)
	if err != nil {
		return err
	}

	if err := h.blocks.DeleteFile(c.Request().Context(), blockID, userID); err != nil {
		h.auditLogger.LogError(c, audit.ResourceTypeFile, &blockID, audit.ActionDelete, err)
		return err
	}

	h.auditLogger.LogFromContext(c, audit.ResourceTypeFile, &blockID, audit.ActionDelete, nil)

	return c.NoContent(http.StatusNoContent)
}

func (h *BlockHandler) DeleteFolder(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}
	blockID, err := blockIDParam(c)
	if err != nil {
		return err
	}

	if err := h.blocks.DeleteFolder(c.Request().Context(), blockID, userID); err != nil {
		h.auditLogger.LogError(c, audit.ResourceTypeFolder, &blockID, audit.ActionDelete, err)
		return err
	}

	h.auditLogger.LogFromContext(c, audit.ResourceTypeFolder, &blockID, audit.ActionDelete, nil)

	return c.NoContent(http.StatusNoContent)
}

func (h *BlockHandler) DownloadURL(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}
	blockID, err := blockIDParam(c)
	if err != nil {
		return err
	}

	url, err := h.blocks.DownloadURL(c.Request().Context(), blockID, userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, DownloadURLResponse{URL: url})
}

func (h *BlockHandler) Search(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}

	result, err := h.blocks.Search(c.Request().Context(), userID, c.QueryParam(querySearch))
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toPseudoFolderResponse(result))
}

func (h *BlockHandler) ListFavorites(c echo.Context) error {
	userID, err := auth.GetUserID(c)
	if err != nil {
		return err
	}

	result, err := h.blocks.ListFavorites(c.Request().Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, toPseudoFolderResponse(result))
}
