package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/config"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/model"
	"github.com/gerenciause-netizen/smart-trader/src/models"
	"github.com/gerenciause-netizen/smart-trader/src/security"
	"github.com/gerenciause-netizen/smart-trader/src/security/validation"
	"github.com/gerenciause-netizen/smart-trader/src/services"
	"github.com/gerenciause-netizen/smart-trader/src/utils"
)

// authResponse is what a completed sign-in returns.
type authResponse struct {
	AccessToken   string              `json:"access_token"`
	RefreshToken  string              `json:"refresh_token"`
	User          *model.User         `json:"user"`
	ActiveAccount models.AccountLabel `json:"active_account"`
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func randomHexToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// issueSession creates a session row for user and returns the token pair.
func (h *UserHandler) issueSession(r *http.Request, userID int64) (string, string, error) {
	accessToken, err := h.authService.GenerateToken(userID)
	if err != nil {
		return "", "", err
	}
	refreshToken, err := h.authService.GenerateRefreshToken()
	if err != nil {
		return "", "", err
	}

	session := &model.Session{
		UserID:       userID,
		Token:        accessToken,
		RefreshToken: refreshToken,
		UserAgent:    r.UserAgent(),
		ClientIP:     clientIP(r),
		ExpiresAt:    time.Now().Add(config.Cfg.RefreshTokenExpiry),
	}
	if err := model.CreateSession(h.db, session); err != nil {
		return "", "", err
	}
	return accessToken, refreshToken, nil
}

// completeLogin records the login, opens a session and answers with the tokens.
func (h *UserHandler) completeLogin(w http.ResponseWriter, r *http.Request, user *model.User) {
	log := logger.FromContext(r.Context())

	if err := user.RecordLogin(h.db, clientIP(r)); err != nil {
		log.Error("Failed to record login", "userID", user.ID, "error", err)
	}

	accessToken, refreshToken, err := h.issueSession(r, user.ID)
	if err != nil {
		log.Error("Failed to create session", "userID", user.ID, "error", err)
		sendJSONError(w, "Failed to create session", http.StatusInternalServerError)
		return
	}

	account, err := h.workspace.ActiveAccount(r.Context(), user.ID)
	if err != nil {
		log.Warn("Failed to load active account on login", "userID", user.ID, "error", err)
		account = models.AccountDemo
	}

	log.Info("User login successful, tokens generated", "userID", user.ID)
	h.publish(user.ID, services.EventSignedIn)
	utils.WriteJSON(w, http.StatusOK, authResponse{
		AccessToken:   accessToken,
		RefreshToken:  refreshToken,
		User:          user,
		ActiveAccount: account,
	})
}

func (h *UserHandler) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var credentials struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	credentials.Username = validation.SanitizeText(strings.TrimSpace(credentials.Username))
	credentials.Email = strings.ToLower(validation.SanitizeText(strings.TrimSpace(credentials.Email)))

	if credentials.Username == "" && strings.Contains(credentials.Email, "@") {
		credentials.Username = strings.Split(credentials.Email, "@")[0]
	}

	if err := validation.ValidateUsername(credentials.Username); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidateEmail(credentials.Email); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := validation.ValidatePassword(credentials.Password); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if _, err := model.GetUserByUsername(h.db, credentials.Username); err == nil {
		sendJSONError(w, "Username already exists", http.StatusConflict)
		return
	} else if !errors.Is(err, model.ErrUserNotFound) {
		log.Error("Error checking username uniqueness", "error", err)
		sendJSONError(w, "Failed to process registration", http.StatusInternalServerError)
		return
	}

	if _, err := model.GetUserByEmail(h.db, credentials.Email); err == nil {
		sendJSONError(w, "Email address already in use", http.StatusConflict)
		return
	} else if !errors.Is(err, model.ErrUserNotFound) {
		log.Error("Error checking email uniqueness", "error", err)
		sendJSONError(w, "Failed to process registration", http.StatusInternalServerError)
		return
	}

	hashedPassword, err := h.authService.HashPassword(credentials.Password)
	if err != nil {
		log.Error("Failed to hash password", "error", err)
		sendJSONError(w, "Failed to process registration", http.StatusInternalServerError)
		return
	}

	verificationToken, err := randomHexToken()
	if err != nil {
		log.Error("Failed to generate verification token", "error", err)
		sendJSONError(w, "Failed to process registration", http.StatusInternalServerError)
		return
	}

	user := &model.User{
		Username:                        credentials.Username,
		Email:                           credentials.Email,
		Password:                        hashedPassword,
		AuthProvider:                    model.AuthProviderLocal,
		EmailVerificationToken:          verificationToken,
		EmailVerificationTokenExpiresAt: time.Now().Add(config.Cfg.VerificationTokenExpiry),
	}
	if err := user.CreateUser(h.db); err != nil {
		log.Error("Failed to create user in DB", "error", err)
		sendJSONError(w, "Failed to create user", http.StatusInternalServerError)
		return
	}

	log.Info("User registered, verification email to be sent", "userID", user.ID)

	if err := h.emailService.SendVerificationEmail(r.Context(), user.Email, user.Username, verificationToken); err != nil {
		log.Error("Failed to send verification email after user creation", "userID", user.ID, "error", err)
		utils.WriteJSON(w, http.StatusCreated, map[string]string{
			"message": "User registered, but the verification email could not be sent. Try logging in to resend it.",
			"warning": "email_not_sent",
		})
		return
	}

	utils.WriteJSON(w, http.StatusCreated, map[string]string{
		"message": "User registered successfully. Please check your email to confirm your account.",
	})
}

// resendVerification issues a fresh verification link to an unverified user.
func (h *UserHandler) resendVerification(r *http.Request, user *model.User) {
	log := logger.FromContext(r.Context())
	token, err := randomHexToken()
	if err != nil {
		log.Error("Failed to generate new verification token on login attempt", "userID", user.ID, "error", err)
		return
	}
	if err := user.UpdateUserVerificationToken(h.db, token, time.Now().Add(config.Cfg.VerificationTokenExpiry)); err != nil {
		log.Error("Failed to update verification token in DB on login attempt", "userID", user.ID, "error", err)
		return
	}
	if err := h.emailService.SendVerificationEmail(r.Context(), user.Email, user.Username, token); err != nil {
		log.Error("Failed to resend verification email on login attempt", "userID", user.ID, "error", err)
	}
}

func (h *UserHandler) LoginUserHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var credentials struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&credentials); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	credentials.Email = strings.ToLower(validation.SanitizeText(strings.TrimSpace(credentials.Email)))

	user, err := model.GetUserByEmail(h.db, credentials.Email)
	if err != nil {
		if !errors.Is(err, model.ErrUserNotFound) {
			log.Error("User lookup by email failed for login", "error", err)
		}
		sendJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	if user.AuthProvider != model.AuthProviderLocal || user.Password == "" {
		sendJSONError(w, "This account signs in with Google", http.StatusUnauthorized)
		return
	}
	if err := h.authService.CompareHashAndPassword(user.Password, credentials.Password); err != nil {
		log.Warn("Password check failed for login", "userID", user.ID)
		sendJSONError(w, "Invalid email or password", http.StatusUnauthorized)
		return
	}

	if !user.IsEmailVerified {
		log.Warn("Login attempt failed: email not verified. Resending verification.", "userID", user.ID)
		h.resendVerification(r, user)
		utils.WriteJSON(w, http.StatusForbidden, map[string]string{
			"error": "Your email is not verified yet. A new verification link has been sent.",
			"code":  "EMAIL_NOT_VERIFIED",
		})
		return
	}

	if user.MfaEnabled {
		mfaToken, err := h.authService.GenerateScopedToken(user.ID, security.ScopeMFA, mfaLoginTokenTTL)
		if err != nil {
			log.Error("Failed to generate MFA login token", "userID", user.ID, "error", err)
			sendJSONError(w, "Failed to start MFA login", http.StatusInternalServerError)
			return
		}
		utils.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"mfa_required": true,
			"mfa_token":    mfaToken,
		})
		return
	}

	h.completeLogin(w, r, user)
}

// LoginMFAHandler finishes a login that stopped at the TOTP step.
func (h *UserHandler) LoginMFAHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MfaToken string `json:"mfa_token"`
		Code     string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.MfaToken == "" || req.Code == "" {
		sendJSONError(w, "mfa_token and code are required", http.StatusBadRequest)
		return
	}

	userID, err := h.authService.ValidateScopedToken(req.MfaToken, security.ScopeMFA)
	if err != nil {
		sendJSONError(w, "MFA session expired, please log in again", http.StatusUnauthorized)
		return
	}

	user, err := model.GetUserByID(h.db, userID)
	if err != nil || !user.MfaEnabled {
		sendJSONError(w, "MFA session expired, please log in again", http.StatusUnauthorized)
		return
	}
	if !h.mfaService.ValidateToken(user.MfaSecret, req.Code) {
		logger.FromContext(r.Context()).Warn("Invalid MFA code at login", "userID", user.ID)
		sendJSONError(w, "Invalid code", http.StatusUnauthorized)
		return
	}

	h.completeLogin(w, r, user)
}

func (h *UserHandler) RefreshTokenHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var requestBody struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&requestBody); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if requestBody.RefreshToken == "" {
		sendJSONError(w, "Refresh token is required", http.StatusBadRequest)
		return
	}

	oldSession, err := model.GetSessionByRefreshToken(h.db, requestBody.RefreshToken)
	if err != nil {
		log.Warn("Refresh token lookup failed or token invalid/expired", "error", err)
		sendJSONError(w, "Invalid or expired refresh token", http.StatusUnauthorized)
		return
	}

	if err := model.DeleteSessionByRefreshToken(h.db, requestBody.RefreshToken); err != nil {
		log.Error("Failed to delete old session during refresh", "refreshTokenPrefix", tokenPrefix(requestBody.RefreshToken), "error", err)
	}

	accessToken, refreshToken, err := h.issueSession(r, oldSession.UserID)
	if err != nil {
		log.Error("Failed to create new session on refresh", "userID", oldSession.UserID, "error", err)
		sendJSONError(w, "Failed to create new session on refresh", http.StatusInternalServerError)
		return
	}

	log.Info("Token refreshed successfully", "userID", oldSession.UserID)
	utils.WriteJSON(w, http.StatusOK, map[string]string{
		"access_token":  accessToken,
		"refresh_token": refreshToken,
	})
}

// LogoutUserHandler ends the session and clears the workspace preference, so
// the next sign-in starts on the demo partition.
func (h *UserHandler) LogoutUserHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	tokenString := bearerToken(r)
	if tokenString == "" {
		log.Warn("Logout attempt with no token in Authorization header")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	session, err := model.GetSessionByToken(h.db, tokenString)
	if err != nil {
		log.Warn("Logout with unknown session", "tokenPrefix", tokenPrefix(tokenString), "error", err)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := model.DeleteSessionByToken(h.db, tokenString); err != nil {
		log.Warn("Failed to delete session on logout", "tokenPrefix", tokenPrefix(tokenString), "error", err)
	}
	if err := h.workspace.Reset(r.Context(), session.UserID); err != nil {
		log.Warn("Failed to reset workspace on logout", "userID", session.UserID, "error", err)
	}

	log.Info("Session invalidated successfully on logout", "userID", session.UserID)
	h.publish(session.UserID, services.EventSignedOut)
	w.WriteHeader(http.StatusNoContent)
}
