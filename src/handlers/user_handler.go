package handlers

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/model"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/gerenciause-netizen/smart-trader/src/security"
	"github.com/gerenciause-netizen/smart-trader/src/services"
	"github.com/gerenciause-netizen/smart-trader/src/utils"
	"github.com/patrickmn/go-cache"
	"golang.org/x/oauth2"
)

type contextKey string

const (
	userIDContextKey  contextKey = "userID"
	accountContextKey contextKey = "account"
)

const (
	oauthStateTTL     = 10 * time.Minute
	mfaLoginTokenTTL  = 5 * time.Minute
	tokenLogPrefixLen = 10
)

// UserHandler serves everything tied to the signed-in identity: auth, MFA,
// password flows, the workspace preference and account deletion.
type UserHandler struct {
	db           *sql.DB
	authService  *security.AuthService
	emailService services.EmailService
	mfaService   *services.MFAService
	workspace    services.WorkspaceService
	accounts     services.AccountService
	events       *services.SessionEvents

	googleOauthConfig *oauth2.Config
	oauthStates       *cache.Cache
}

func NewUserHandler(db *sql.DB, authService *security.AuthService, emailService services.EmailService,
	mfaService *services.MFAService, workspace services.WorkspaceService, accounts services.AccountService,
	events *services.SessionEvents) *UserHandler {
	return &UserHandler{
		db:           db,
		authService:  authService,
		emailService: emailService,
		mfaService:   mfaService,
		workspace:    workspace,
		accounts:     accounts,
		events:       events,
		oauthStates:  cache.New(oauthStateTTL, 2*oauthStateTTL),
	}
}

func sendJSONError(w http.ResponseWriter, message string, statusCode int) {
	utils.SendJSONError(w, message, statusCode)
}

func GetUserIDFromContext(ctx context.Context) (int64, bool) {
	userID, ok := ctx.Value(userIDContextKey).(int64)
	return userID, ok
}

// GetAccountFromContext returns the partition resolved by AccountMiddleware.
func GetAccountFromContext(ctx context.Context) (models.AccountLabel, bool) {
	account, ok := ctx.Value(accountContextKey).(models.AccountLabel)
	return account, ok
}

func tokenPrefix(token string) string {
	return token[:min(tokenLogPrefixLen, len(token))]
}

func (h *UserHandler) publish(userID int64, eventType services.SessionEventType) {
	if h.events != nil {
		h.events.Publish(userID, eventType)
	}
}

func (h *UserHandler) VerifyEmailHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	token := r.URL.Query().Get("token")
	if token == "" {
		sendJSONError(w, "Verification token is missing", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByVerificationToken(h.db, token)
	if err != nil {
		log.Warn("Verification token lookup failed", "tokenPrefix", tokenPrefix(token), "error", err)
		sendJSONError(w, "Invalid or expired verification token.", http.StatusBadRequest)
		return
	}

	if user.IsEmailVerified {
		utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Email already verified. You can log in."})
		return
	}

	if time.Now().After(user.EmailVerificationTokenExpiresAt) {
		log.Warn("Verification token expired", "userID", user.ID, "tokenExpiry", user.EmailVerificationTokenExpiresAt)
		sendJSONError(w, "Verification token has expired. Please request a new one.", http.StatusBadRequest)
		return
	}

	if err := user.UpdateUserVerificationStatus(h.db, true); err != nil {
		log.Error("Failed to update user verification status in DB", "userID", user.ID, "error", err)
		sendJSONError(w, "Failed to verify email. Please try again or contact support.", http.StatusInternalServerError)
		return
	}

	log.Info("Email verified successfully", "userID", user.ID)
	h.publish(user.ID, services.EventUserUpdated)
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Email verified successfully! You can now log in."})
}

// HandleGetCurrentUser returns the session's user and active partition.
func (h *UserHandler) HandleGetCurrentUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	user, err := model.GetUserByID(h.db, userID)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			sendJSONError(w, "User not found", http.StatusNotFound)
			return
		}
		logger.FromContext(r.Context()).Error("Failed to load current user", "error", err)
		sendJSONError(w, "Failed to load user", http.StatusInternalServerError)
		return
	}

	account, err := h.workspace.ActiveAccount(r.Context(), userID)
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to load active account", "error", err)
		account = models.AccountDemo
	}

	utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"user":           user,
		"active_account": account,
	})
}

func (h *UserHandler) HandleSetupMFA(w http.ResponseWriter, r *http.Request) {
	userID, _ := GetUserIDFromContext(r.Context())
	log := logger.FromContext(r.Context())

	user, err := model.GetUserByID(h.db, userID)
	if err != nil {
		sendJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	if user.MfaEnabled {
		sendJSONError(w, "MFA is already enabled", http.StatusConflict)
		return
	}

	enrollment, err := h.mfaService.GenerateMFASecret(user.Email)
	if err != nil {
		log.Error("Failed to generate MFA secret", "error", err)
		sendJSONError(w, "Failed to generate MFA", http.StatusInternalServerError)
		return
	}

	// Stored but inactive until the first code is confirmed.
	if err := user.UpdateMfaSecret(h.db, enrollment.Secret); err != nil {
		log.Error("Failed to save MFA secret", "error", err)
		sendJSONError(w, "Failed to save MFA secret", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, http.StatusOK, enrollment)
}

type mfaCodeRequest struct {
	Code string `json:"code"`
}

func (h *UserHandler) HandleActivateMFA(w http.ResponseWriter, r *http.Request) {
	h.toggleMFA(w, r, true)
}

func (h *UserHandler) HandleDisableMFA(w http.ResponseWriter, r *http.Request) {
	h.toggleMFA(w, r, false)
}

func (h *UserHandler) toggleMFA(w http.ResponseWriter, r *http.Request, enable bool) {
	userID, _ := GetUserIDFromContext(r.Context())

	var req mfaCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Code == "" {
		sendJSONError(w, "A 6-digit code is required", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByID(h.db, userID)
	if err != nil {
		sendJSONError(w, "User not found", http.StatusNotFound)
		return
	}
	if user.MfaSecret == "" {
		sendJSONError(w, "MFA has not been set up", http.StatusBadRequest)
		return
	}
	if !h.mfaService.ValidateToken(user.MfaSecret, req.Code) {
		logger.FromContext(r.Context()).Warn("Invalid MFA code", "enable", enable)
		sendJSONError(w, "Invalid code", http.StatusUnauthorized)
		return
	}

	if err := user.UpdateMfaEnabled(h.db, enable); err != nil {
		logger.FromContext(r.Context()).Error("Failed to update MFA flag", "error", err)
		sendJSONError(w, "Failed to update MFA", http.StatusInternalServerError)
		return
	}
	if !enable {
		if err := user.UpdateMfaSecret(h.db, ""); err != nil {
			logger.FromContext(r.Context()).Warn("Failed to clear MFA secret", "error", err)
		}
	}

	h.publish(userID, services.EventUserUpdated)
	message := "MFA enabled"
	if !enable {
		message = "MFA disabled"
	}
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": message})
}
