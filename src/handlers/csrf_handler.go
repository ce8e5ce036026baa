package handlers

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/utils"
)

const (
	csrfCookieName = "_gorilla_csrf"
	csrfHeaderName = "X-CSRF-Token"
	csrfCookieAge  = 3600
)

// signCSRF returns nonce.mac so the middleware can tell our tokens from
// values planted by a sibling subdomain.
func signCSRF(key []byte, nonce string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(nonce))
	return nonce + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func validCSRF(key []byte, token string) bool {
	nonce, _, ok := strings.Cut(token, ".")
	if !ok || nonce == "" {
		return false
	}
	return hmac.Equal([]byte(signCSRF(key, nonce)), []byte(token))
}

// CSRFTokenHandler issues a signed token both as a cookie and in the body.
func CSRFTokenHandler(csrfKey []byte) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			logger.FromContext(r.Context()).Error("Error generating random bytes for CSRF token", "error", err)
			sendJSONError(w, "Failed to generate CSRF token", http.StatusInternalServerError)
			return
		}
		token := signCSRF(csrfKey, base64.RawURLEncoding.EncodeToString(b))

		http.SetCookie(w, &http.Cookie{
			Name:     csrfCookieName,
			Value:    token,
			Path:     "/",
			SameSite: http.SameSiteLaxMode,
			HttpOnly: true,
			Secure:   r.TLS != nil,
			MaxAge:   csrfCookieAge,
		})
		w.Header().Set(csrfHeaderName, token)
		utils.WriteJSON(w, http.StatusOK, map[string]string{"csrfToken": token})
	}
}

// CSRFMiddleware enforces the double-submit check on state-changing methods.
// Requests authenticated with a bearer token are not cookie-driven and skip it.
func CSRFMiddleware(csrfKey []byte) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}
			if strings.HasPrefix(r.Header.Get("Authorization"), "Bearer ") {
				next.ServeHTTP(w, r)
				return
			}

			headerToken := r.Header.Get(csrfHeaderName)
			cookie, errCookie := r.Cookie(csrfCookieName)
			if headerToken != "" && errCookie == nil && headerToken == cookie.Value && validCSRF(csrfKey, headerToken) {
				next.ServeHTTP(w, r)
				return
			}

			logger.FromContext(r.Context()).Warn("CSRF Validation Failed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Bool("headerTokenExists", headerToken != ""),
				slog.Any("cookieError", errCookie),
				slog.String("origin", r.Header.Get("Origin")),
			)
			sendJSONError(w, "CSRF token validation failed", http.StatusForbidden)
		})
	}
}
