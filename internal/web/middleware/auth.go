package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/JonMunkholm/rosterfilter/internal/logging"
)

// APIKeyAuth requires one of keys in the X-API-Key header, or as a Bearer
// token, on every request it wraps. With no keys configured all requests
// pass, so a local install needs no setup.
func APIKeyAuth(keys []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if len(keys) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := requestKey(r)
			if key == "" {
				logging.FromContext(r.Context()).Warn("auth: missing API key", "path", r.URL.Path)
				writeAuthError(w, http.StatusUnauthorized, "missing API key", "AUTH001")
				return
			}
			if !validKey(key, keys) {
				logging.FromContext(r.Context()).Warn("auth: invalid API key", "path", r.URL.Path)
				writeAuthError(w, http.StatusForbidden, "invalid API key", "AUTH002")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	if token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// validKey compares against every key so the time taken does not reveal
// which one matched.
func validKey(key string, keys []string) bool {
	valid := 0
	for _, k := range keys {
		valid |= subtle.ConstantTimeCompare([]byte(key), []byte(k))
	}
	return valid == 1
}

func writeAuthError(w http.ResponseWriter, status int, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"error":"` + msg + `","message":"` + msg + `","code":"` + code + `"}` + "\n"))
}
