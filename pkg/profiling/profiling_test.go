package profiling

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
)

func TestRegisterRoutes(t *testing.T) {
	e := echo.New()
	RegisterRoutes(e)

	for _, path := range []string{RoutePrefix + "/", RoutePrefix + "/goroutine", RoutePrefix + "/heap"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestRegisterRoutes_Middleware(t *testing.T) {
	e := echo.New()
	deny := func(echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			return echo.ErrForbidden
		}
	}
	RegisterRoutes(e, deny)

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, RoutePrefix+"/heap", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
