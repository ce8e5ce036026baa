package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/model"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/google/uuid"
)

const requestIDContextKey contextKey = "requestID"

// AccountHeader lets a client pin the partition of a single request.
const AccountHeader = "X-Account"

// ContextualLoggerMiddleware tags every request with a fresh request ID and a
// logger carrying it.
func ContextualLoggerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		ctxLogger := logger.L.With(slog.String("requestID", requestID))

		ctx := logger.ToContext(r.Context(), ctxLogger)
		ctx = context.WithValue(ctx, requestIDContextKey, requestID)
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// bearerToken reads the access token from the Authorization header. Browser
// websockets cannot set headers, so the access_token query parameter is
// accepted as a fallback.
func bearerToken(r *http.Request) string {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	}
	return r.URL.Query().Get("access_token")
}

// AuthMiddleware requires a valid access token backed by a live session.
func (h *UserHandler) AuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctxLogger := logger.FromContext(r.Context())

		tokenString := bearerToken(r)
		if tokenString == "" {
			ctxLogger.Debug("AuthMiddleware: token missing", "path", r.URL.Path)
			sendJSONError(w, "Authorization header required", http.StatusUnauthorized)
			return
		}

		userID, err := h.authService.ValidateToken(tokenString)
		if err != nil {
			ctxLogger.Warn("AuthMiddleware: Token validation failed", "path", r.URL.Path, "error", err)
			sendJSONError(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}

		session, err := model.GetSessionByToken(h.db, tokenString)
		if err != nil || session.UserID != userID {
			ctxLogger.Warn("AuthMiddleware: Session validation failed", "path", r.URL.Path, "error", err)
			sendJSONError(w, "Invalid or expired session", http.StatusUnauthorized)
			return
		}

		enrichedLogger := ctxLogger.With(slog.Int64("userID", userID))
		ctx := logger.ToContext(r.Context(), enrichedLogger)
		ctx = context.WithValue(ctx, userIDContextKey, userID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// AccountMiddleware resolves the partition a request works on: the X-Account
// header, then the account query parameter, then the stored preference.
// Must run after AuthMiddleware.
func (h *UserHandler) AccountMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserIDFromContext(r.Context())
		if !ok {
			sendJSONError(w, "Authentication required", http.StatusUnauthorized)
			return
		}

		raw := r.Header.Get(AccountHeader)
		if raw == "" {
			raw = r.URL.Query().Get("account")
		}

		var account models.AccountLabel
		if raw != "" {
			parsed, err := models.ParseAccountLabel(raw)
			if err != nil {
				sendJSONError(w, "account must be 'demo' or 'real'", http.StatusBadRequest)
				return
			}
			account = parsed
		} else {
			stored, err := h.workspace.ActiveAccount(r.Context(), userID)
			if err != nil {
				logger.FromContext(r.Context()).Error("Failed to resolve active account", "error", err)
				sendJSONError(w, "Failed to resolve active account", http.StatusInternalServerError)
				return
			}
			account = stored
		}

		ctx := logger.ToContext(r.Context(), logger.FromContext(r.Context()).With(slog.String("account", account.String())))
		ctx = context.WithValue(ctx, accountContextKey, account)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requireConfirmation guards destructive endpoints: the client must send
// ?confirm=true or the request is refused with 428.
func requireConfirmation(w http.ResponseWriter, r *http.Request) bool {
	if r.URL.Query().Get("confirm") == "true" {
		return true
	}
	sendJSONError(w, "This action is irreversible; repeat the request with confirm=true", http.StatusPreconditionRequired)
	return false
}

// identity pulls the user and partition set by the middlewares above.
func identity(w http.ResponseWriter, r *http.Request) (int64, models.AccountLabel, bool) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return 0, "", false
	}
	account, ok := GetAccountFromContext(r.Context())
	if !ok {
		account = models.AccountDemo
	}
	return userID, account, true
}
