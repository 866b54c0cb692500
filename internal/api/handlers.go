package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/sydlexius/lightstick/internal/resolve"
	"github.com/sydlexius/lightstick/internal/source"
)

// credentialKeys maps the public API names onto settings-store keys. Values
// are write-only through the API.
var credentialKeys = map[string]string{
	"spotify_client_id":     source.CredSpotifyClientID,
	"spotify_client_secret": source.CredSpotifyClientSecret,
	"google_api_key":        source.CredGoogleAPIKey,
	"google_cx":             source.CredGoogleCX,
	"render_token":          source.CredRenderToken,
}

type resolveRequest struct {
	Query string `json:"query"`
	Role  string `json:"role"`
}

func (rt *Router) handleResolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	role, ok := resolve.ParseRole(req.Role)
	if !ok {
		writeError(w, http.StatusBadRequest, "role must be profile or banner")
		return
	}

	result := rt.resolver.Resolve(r.Context(), req.Query, role)
	writeJSON(w, statusFor(result), result)
}

type resolveRenderedRequest struct {
	Query string   `json:"query"`
	Role  string   `json:"role"`
	Pages []string `json:"pages"`
}

func (rt *Router) handleResolveRendered(w http.ResponseWriter, r *http.Request) {
	var req resolveRenderedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	role, ok := resolve.ParseRole(req.Role)
	if !ok {
		writeError(w, http.StatusBadRequest, "role must be profile or banner")
		return
	}

	result := rt.resolver.ResolveRendered(r.Context(), req.Pages, req.Query, role)
	writeJSON(w, statusFor(result), result)
}

func (rt *Router) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": rt.version,
	})
}

// handleListCredentials reports which credentials are configured, never
// their values.
func (rt *Router) handleListCredentials(w http.ResponseWriter, r *http.Request) {
	out := make(map[string]bool, len(credentialKeys))
	for name, key := range credentialKeys {
		value, err := rt.credentials.Get(r.Context(), key)
		if err != nil {
			rt.logger.Error("reading credential", slog.String("key", name), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "reading credentials failed")
			return
		}
		out[name] = value != ""
	}
	writeJSON(w, http.StatusOK, out)
}

type setCredentialRequest struct {
	Value string `json:"value"`
}

func (rt *Router) handleSetCredential(w http.ResponseWriter, r *http.Request) {
	key, ok := credentialKeys[r.PathValue("key")]
	if !ok {
		writeError(w, http.StatusNotFound, "unknown credential key")
		return
	}

	var req setCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if err := rt.credentials.Set(r.Context(), key, req.Value); err != nil {
		rt.logger.Error("storing credential", slog.String("key", r.PathValue("key")), slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "storing credential failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// statusFor maps a resolution result onto an HTTP status. Ambiguous is a
// decision state, not an error, so it stays 200.
func statusFor(result *resolve.Result) int {
	if result.Kind != resolve.KindFailed {
		return http.StatusOK
	}
	switch result.Failure.Kind {
	case resolve.FailInvalidQuery:
		return http.StatusBadRequest
	case resolve.FailNoResults:
		return http.StatusNotFound
	case resolve.FailUpstreamAuth, resolve.FailUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
