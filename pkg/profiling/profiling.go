// Package profiling mounts the runtime pprof handlers on an echo router.
// The endpoints expose internals and are only registered when enabled in
// configuration.
package profiling

import (
	"net/http"
	"net/http/pprof"

	"github.com/labstack/echo/v4"
)

const RoutePrefix = "/debug/pprof"

var namedProfiles = []string{
	"allocs",
	"block",
	"goroutine",
	"heap",
	"mutex",
	"threadcreate",
}

// RegisterRoutes adds the pprof endpoints under RoutePrefix. Pass
// middleware to keep them off the public surface.
func RegisterRoutes(e *echo.Echo, m ...echo.MiddlewareFunc) {
	g := e.Group(RoutePrefix, m...)
	g.GET("/", echo.WrapHandler(http.HandlerFunc(pprof.Index)))
	g.GET("/cmdline", echo.WrapHandler(http.HandlerFunc(pprof.Cmdline)))
	g.GET("/profile", echo.WrapHandler(http.HandlerFunc(pprof.Profile)))
	g.GET("/symbol", echo.WrapHandler(http.HandlerFunc(pprof.Symbol)))
	g.GET("/trace", echo.WrapHandler(http.HandlerFunc(pprof.Trace)))
	for _, name := range namedProfiles {
		g.GET("/"+name, echo.WrapHandler(pprof.Handler(name)))
	}
}
