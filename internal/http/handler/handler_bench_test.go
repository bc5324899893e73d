package handler

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"drive-service/internal/domain/block"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

func largeFolderView(n int) *block.FolderView {
	owner := uuid.New()
	root := &block.Block{ID: uuid.New(), OwnerID: owner, Type: block.TypeRoot, Name: block.RootName, CreatedAt: time.Now()}
	children := make([]*block.Block, n)
	for i := range children {
		size := int64(i * 1024)
		children[i] = &block.Block{
			ID:             uuid.New(),
			OwnerID:        owner,
			Type:           block.TypeFile,
			Name:           fmt.Sprintf("file-%04d.txt", i),
			ParentFolderID: &root.ID,
			SizeInBytes:    &size,
			CreatedAt:      time.Now(),
		}
	}
	return &block.FolderView{Folder: root, Children: children}
}

// BenchmarkFolderViewJSON measures rendering a folder listing of 200 files.
func BenchmarkFolderViewJSON(b *testing.B) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	view := largeFolderView(200)

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		_ = c.JSON(http.StatusOK, toFolderViewResponse(view))
	}
}

func BenchmarkBindStrictJSON(b *testing.B) {
	e := echo.New()
	payload := `{"parent_id":"` + uuid.NewString() + `"}`

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodPut, "/", strings.NewReader(payload))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		c := e.NewContext(req, httptest.NewRecorder())

		var body MoveRequest
		_ = bindStrictJSON(c, &body)
	}
}
