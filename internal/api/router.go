// Package api is the thin HTTP surface over the resolver: one resolve
// endpoint, a deep-resolution endpoint for needs-render batches, health,
// and credential management.
package api

import (
	"log/slog"
	"net/http"

	"github.com/sydlexius/lightstick/internal/api/middleware"
	"github.com/sydlexius/lightstick/internal/resolve"
	"github.com/sydlexius/lightstick/internal/source"
)

// RouterDeps bundles the dependencies the HTTP router needs.
type RouterDeps struct {
	Resolver    *resolve.Resolver
	Credentials *source.CredentialsService
	Logger      *slog.Logger
	Version     string
}

// Router sets up all HTTP routes for the application.
type Router struct {
	resolver    *resolve.Resolver
	credentials *source.CredentialsService
	logger      *slog.Logger
	version     string
}

// NewRouter creates a Router with all routes configured.
func NewRouter(deps RouterDeps) *Router {
	return &Router{
		resolver:    deps.Resolver,
		credentials: deps.Credentials,
		logger:      deps.Logger,
		version:     deps.Version,
	}
}

// Handler returns the fully wired HTTP handler.
func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/resolve", rt.handleResolve)
	mux.HandleFunc("POST /api/resolve/rendered", rt.handleResolveRendered)
	mux.HandleFunc("GET /api/health", rt.handleHealth)
	mux.HandleFunc("GET /api/credentials", rt.handleListCredentials)
	mux.HandleFunc("PUT /api/credentials/{key}", rt.handleSetCredential)

	return middleware.Logging(rt.logger)(mux)
}
