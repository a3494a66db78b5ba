package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"pongd/internal/auth"
)

// extractCookieToken extracts a named cookie value from "Cookie" header, or returns empty if not found.
func extractCookieToken(cookieHeader, cookieName string) string {
	parts := strings.Split(cookieHeader, cookieName+"=")
	if len(parts) < 2 {
		return ""
	}
	token := parts[1]
	if idx := strings.Index(token, ";"); idx != -1 {
		token = token[:idx]
	}
	return token
}

// authenticateRequest resolves the caller's user ID from the auth_token
// cookie, falling back to a ?token= query parameter for WebSocket clients
// that cannot set cookies.
func authenticateRequest(r *http.Request) (int64, error) {
	token := extractCookieToken(r.Header.Get("Cookie"), "auth_token")
	if token == "" {
		token = r.URL.Query().Get("token")
	}
	if token == "" {
		return 0, errors.New("missing auth token")
	}
	return auth.AuthenticateJWT(token)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
