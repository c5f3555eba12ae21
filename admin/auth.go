package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// apiKeyAuth accepts a request carrying one of the configured API keys,
// either in Authorization (bare or as a Bearer token) or, for acme-dns
// clients, in X-Api-Key.
type apiKeyAuth struct {
	handler http.Handler
	keys    [][]byte
}

func withAuth(handler http.Handler, acceptedKeys []string) http.Handler {
	auth := &apiKeyAuth{handler: handler}
	for _, key := range acceptedKeys {
		key = strings.TrimSpace(key)
		if key != "" {
			auth.keys = append(auth.keys, []byte(key))
		}
	}
	if len(auth.keys) == 0 {
		slog.Warn("no API keys configured, admin API will reject every request")
	}
	return auth
}

func requestKey(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return r.Header.Get("X-Api-Key")
	}
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return header
}

func (auth *apiKeyAuth) accepts(key string) bool {
	found := 0
	for _, accepted := range auth.keys {
		found |= subtle.ConstantTimeCompare(accepted, []byte(key))
	}
	return found == 1
}

func (auth *apiKeyAuth) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := requestKey(r)
	if key == "" {
		http.Error(w, "missing API key", http.StatusUnauthorized)
		return
	}
	if !auth.accepts(key) {
		slog.Debug("rejected admin API request", "remote", r.RemoteAddr, "path", r.URL.Path)
		http.Error(w, "invalid API key", http.StatusForbidden)
		return
	}

	auth.handler.ServeHTTP(w, r)
}
