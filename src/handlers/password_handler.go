package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gerenciause-netizen/smart-trader/src/config"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/model"
	"github.com/gerenciause-netizen/smart-trader/src/security/validation"
	"github.com/gerenciause-netizen/smart-trader/src/services"
	"github.com/gerenciause-netizen/smart-trader/src/utils"
)

const genericResetMessage = "If an account with that email exists and is verified, a password reset link has been sent."

type ChangePasswordRequest struct {
	CurrentPassword    string `json:"current_password"`
	NewPassword        string `json:"new_password"`
	ConfirmNewPassword string `json:"confirm_new_password"`
}

func (h *UserHandler) RequestPasswordResetHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if err := validation.ValidateEmail(req.Email); err != nil {
		sendJSONError(w, "Invalid email format", http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByEmail(h.db, req.Email)
	if err != nil || !user.IsEmailVerified || user.AuthProvider != model.AuthProviderLocal {
		log.Info("Password reset not applicable, sending generic response", "errorIfAny", err)
		utils.WriteJSON(w, http.StatusOK, map[string]string{"message": genericResetMessage})
		return
	}

	resetToken, err := randomHexToken()
	if err != nil {
		log.Error("Failed to generate password reset token", "error", err)
		sendJSONError(w, "Failed to process password reset request", http.StatusInternalServerError)
		return
	}

	if err := user.SetPasswordResetToken(h.db, resetToken, time.Now().Add(config.Cfg.PasswordResetTokenExpiry)); err != nil {
		log.Error("Failed to set password reset token in DB", "userID", user.ID, "error", err)
		sendJSONError(w, "Failed to process password reset request", http.StatusInternalServerError)
		return
	}

	if err := h.emailService.SendPasswordResetEmail(r.Context(), user.Email, user.Username, resetToken); err != nil {
		log.Error("Failed to send password reset email", "userID", user.ID, "error", err)
	}

	log.Info("Password reset email process initiated successfully", "userID", user.ID)
	h.publish(user.ID, services.EventPasswordRecovery)
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": genericResetMessage})
}

// ResetPasswordHandler sets a new password from a recovery token and revokes
// every open session of the user.
func (h *UserHandler) ResetPasswordHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	var req struct {
		Token           string `json:"token"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.Token == "" {
		sendJSONError(w, "Password reset token is missing", http.StatusBadRequest)
		return
	}
	if req.Password != req.ConfirmPassword {
		sendJSONError(w, "Passwords do not match", http.StatusBadRequest)
		return
	}
	if err := validation.ValidatePassword(req.Password); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByPasswordResetToken(h.db, req.Token)
	if err != nil {
		log.Warn("Password reset token lookup failed or token expired", "tokenPrefix", tokenPrefix(req.Token), "error", err)
		sendJSONError(w, "Invalid or expired password reset token.", http.StatusBadRequest)
		return
	}

	hashedPassword, err := h.authService.HashPassword(req.Password)
	if err != nil {
		log.Error("Failed to hash new password", "userID", user.ID, "error", err)
		sendJSONError(w, "Failed to reset password", http.StatusInternalServerError)
		return
	}

	if err := user.UpdatePassword(h.db, hashedPassword); err != nil {
		log.Error("Failed to update password in DB", "userID", user.ID, "error", err)
		sendJSONError(w, "Failed to reset password", http.StatusInternalServerError)
		return
	}
	if revoked, err := model.DeleteSessionsByUserID(h.db, user.ID); err != nil {
		log.Error("Failed to revoke sessions after password reset", "userID", user.ID, "error", err)
	} else {
		log.Info("Sessions revoked after password reset", "userID", user.ID, "count", revoked)
	}

	h.publish(user.ID, services.EventUserUpdated)
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset successfully. You can now log in with your new password."})
}

func (h *UserHandler) ChangePasswordHandler(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	userID, ok := GetUserIDFromContext(r.Context())
	if !ok {
		sendJSONError(w, "Authentication required", http.StatusUnauthorized)
		return
	}

	var req ChangePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if req.NewPassword != req.ConfirmNewPassword {
		sendJSONError(w, "New passwords do not match", http.StatusBadRequest)
		return
	}
	if err := validation.ValidatePassword(req.NewPassword); err != nil {
		sendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, err := model.GetUserByID(h.db, userID)
	if err != nil {
		log.Error("Failed to get user for password change", "error", err)
		sendJSONError(w, "Failed to retrieve user information", http.StatusInternalServerError)
		return
	}

	if user.AuthProvider != model.AuthProviderLocal {
		log.Warn("Attempt to change password for non-local account", "provider", user.AuthProvider)
		sendJSONError(w, "Password cannot be changed for accounts created via Google.", http.StatusForbidden)
		return
	}

	if err := h.authService.CompareHashAndPassword(user.Password, req.CurrentPassword); err != nil {
		log.Warn("Current password mismatch for password change")
		sendJSONError(w, "Incorrect current password", http.StatusForbidden)
		return
	}

	hashedNewPassword, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		log.Error("Failed to hash new password", "error", err)
		sendJSONError(w, "Failed to process new password", http.StatusInternalServerError)
		return
	}

	if err := user.UpdatePassword(h.db, hashedNewPassword); err != nil {
		log.Error("Failed to update password in DB", "error", err)
		sendJSONError(w, "Failed to change password", http.StatusInternalServerError)
		return
	}

	log.Info("Password changed successfully")
	h.publish(userID, services.EventUserUpdated)
	utils.WriteJSON(w, http.StatusOK, map[string]string{"message": "Password changed successfully."})
}
