package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/gerenciause-netizen/smart-trader/src/config"
	"github.com/gerenciause-netizen/smart-trader/src/logger"
	"github.com/gerenciause-netizen/smart-trader/src/model"
	"github.com/gerenciause-netizen/smart-trader/src/security"
	"github.com/gerenciause-netizen/smart-trader/src/services"
)

const googleUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

type googleUserInfo struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Verified bool   `json:"verified_email"`
	ID       string `json:"id"`
}

// InitializeGoogleOAuthConfig enables the Google sign-in routes. Without a
// client ID they answer 503.
func (h *UserHandler) InitializeGoogleOAuthConfig(cfg *config.AppConfig) {
	if cfg.GoogleClientID == "" {
		logger.L.Info("Google OAuth not configured; Google sign-in disabled")
		return
	}
	h.googleOauthConfig = &oauth2.Config{
		RedirectURL:  cfg.GoogleRedirectURL,
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}
}

func signinRedirect(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, config.Cfg.FrontendBaseURL+"/signin?error="+code, http.StatusTemporaryRedirect)
}

// HandleGoogleLogin starts the consent flow with a single-use state value.
func (h *UserHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if h.googleOauthConfig == nil {
		sendJSONError(w, "Google sign-in is not configured", http.StatusServiceUnavailable)
		return
	}
	state, err := randomHexToken()
	if err != nil {
		logger.FromContext(r.Context()).Error("Failed to generate OAuth state", "error", err)
		sendJSONError(w, "Failed to start Google sign-in", http.StatusInternalServerError)
		return
	}
	h.oauthStates.Set(state, true, oauthStateTTL)
	http.Redirect(w, r, h.googleOauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// consumeState accepts a state value once.
func (h *UserHandler) consumeState(state string) bool {
	if state == "" {
		return false
	}
	if _, found := h.oauthStates.Get(state); !found {
		return false
	}
	h.oauthStates.Delete(state)
	return true
}

func (h *UserHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())
	if h.googleOauthConfig == nil {
		sendJSONError(w, "Google sign-in is not configured", http.StatusServiceUnavailable)
		return
	}

	if !h.consumeState(r.FormValue("state")) {
		log.Warn("Invalid OAuth state from Google callback")
		signinRedirect(w, r, "invalid_state")
		return
	}

	token, err := h.googleOauthConfig.Exchange(r.Context(), r.FormValue("code"))
	if err != nil {
		log.Error("Failed to exchange code for token", "error", err)
		signinRedirect(w, r, "token_exchange_failed")
		return
	}

	response, err := h.googleOauthConfig.Client(r.Context(), token).Get(googleUserInfoURL)
	if err != nil {
		log.Error("Failed to get user info from Google", "error", err)
		signinRedirect(w, r, "userinfo_failed")
		return
	}
	defer response.Body.Close()

	var googleUser googleUserInfo
	if err := json.NewDecoder(response.Body).Decode(&googleUser); err != nil {
		log.Error("Failed to decode Google user info", "error", err)
		signinRedirect(w, r, "userinfo_parse_failed")
		return
	}
	if !googleUser.Verified {
		signinRedirect(w, r, "email_not_verified_by_google")
		return
	}

	user, err := h.findOrCreateGoogleUser(googleUser)
	if err != nil {
		log.Error("Google user resolution failed", "error", err)
		if errors.Is(err, errLocalAccountExists) {
			signinRedirect(w, r, "email_already_exists_local")
			return
		}
		signinRedirect(w, r, "user_creation_failed")
		return
	}

	query := url.Values{}
	if user.MfaEnabled {
		mfaToken, err := h.authService.GenerateScopedToken(user.ID, security.ScopeMFA, mfaLoginTokenTTL)
		if err != nil {
			log.Error("Failed to generate MFA login token for Google user", "error", err)
			signinRedirect(w, r, "token_generation_failed")
			return
		}
		query.Set("mfa_token", mfaToken)
	} else {
		if err := user.RecordLogin(h.db, clientIP(r)); err != nil {
			log.Error("Failed to record login", "userID", user.ID, "error", err)
		}
		accessToken, refreshToken, err := h.issueSession(r, user.ID)
		if err != nil {
			log.Error("Failed to create session for Google user", "error", err)
			signinRedirect(w, r, "token_generation_failed")
			return
		}
		query.Set("token", accessToken)
		query.Set("refresh_token", refreshToken)
		h.publish(user.ID, services.EventSignedIn)
	}

	http.Redirect(w, r, fmt.Sprintf("%s/auth/google/callback?%s", config.Cfg.FrontendBaseURL, query.Encode()), http.StatusTemporaryRedirect)
}

var errLocalAccountExists = errors.New("email already registered with a password")

func (h *UserHandler) findOrCreateGoogleUser(info googleUserInfo) (*model.User, error) {
	user, err := model.GetUserByEmail(h.db, info.Email)
	if err == nil {
		if user.AuthProvider == model.AuthProviderLocal || user.Password != "" {
			return nil, errLocalAccountExists
		}
		return user, nil
	}
	if !errors.Is(err, model.ErrUserNotFound) {
		return nil, err
	}

	newUser := &model.User{
		Username:        info.Email,
		Email:           info.Email,
		AuthProvider:    model.AuthProviderGoogle,
		IsEmailVerified: true,
	}
	if err := newUser.CreateUser(h.db); err != nil {
		return nil, err
	}
	return newUser, nil
}
