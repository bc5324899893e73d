package handler

import (
	"time"

	"drive-service/internal/app"
	"drive-service/internal/domain/block"
)

// BlockResponse is the public shape of a block. Storage keys never leave the
// service.
type BlockResponse struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Name        string     `json:"name"`
	ParentID    *string    `json:"parent_id,omitempty"`
	Favorite    bool       `json:"favorite"`
	SizeInBytes *int64     `json:"size_in_bytes,omitempty"`
	ContentType *string    `json:"content_type,omitempty"`
	UploadTime  *time.Time `json:"upload_time,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

type FolderViewResponse struct {
	Folder   BlockResponse   `json:"folder"`
	Parent   *BlockResponse  `json:"parent,omitempty"`
	Children []BlockResponse `json:"children"`
}

type PseudoFolderResponse struct {
	Name   string          `json:"name"`
	Blocks []BlockResponse `json:"blocks"`
}

type SessionResponse struct {
	UserID   string         `json:"user_id"`
	Username string         `json:"username"`
	Token    string         `json:"token"`
	Root     *BlockResponse `json:"root,omitempty"`
}

type DownloadURLResponse struct {
	URL string `json:"url"`
}

type AvailabilityResponse struct {
	Username  string `json:"username"`
	Available bool   `json:"available"`
}

func toBlockResponse(b *block.Block) BlockResponse {
	resp := BlockResponse{
		ID:          b.ID.String(),
		Type:        b.Type.String(),
		Name:        b.Name,
		Favorite:    b.Favorite,
		SizeInBytes: b.SizeInBytes,
		ContentType: b.ContentType,
		UploadTime:  b.UploadTime,
		CreatedAt:   b.CreatedAt,
	}
	if b.ParentFolderID != nil {
		parent := b.ParentFolderID.String()
		resp.ParentID = &parent
	}
	return resp
}

func toBlockResponses(blocks []*block.Block) []BlockResponse {
	out := make([]BlockResponse, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, toBlockResponse(b))
	}
	return out
}

func toFolderViewResponse(v *block.FolderView) FolderViewResponse {
	resp := FolderViewResponse{
		Folder:   toBlockResponse(v.Folder),
		Children: toBlockResponses(v.Children),
	}
	if v.Parent != nil {
		parent := toBlockResponse(v.Parent)
		resp.Parent = &parent
	}
	return resp
}

func toPseudoFolderResponse(p *block.PseudoFolder) PseudoFolderResponse {
	return PseudoFolderResponse{Name: p.Name, Blocks: toBlockResponses(p.Blocks)}
}

func toSessionResponse(s *app.Session) SessionResponse {
	resp := SessionResponse{
		UserID:   s.User.ID.String(),
		Username: s.User.Username,
		Token:    s.Token,
	}
	if s.Root != nil {
		root := toBlockResponse(s.Root)
		resp.Root = &root
	}
	return resp
}
