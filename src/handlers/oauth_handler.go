package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/entrans/backend/src/config"
	"github.com/entrans/backend/src/database"
	"github.com/entrans/backend/src/logger"
	"github.com/entrans/backend/src/model"
)

var (
	googleOauthConfig *oauth2.Config
	oauthStateString  = "entrans-oauth-state"
)

func InitializeGoogleOAuthConfig() {
	googleOauthConfig = &oauth2.Config{
		RedirectURL:  config.Cfg.GoogleRedirectURL,
		ClientID:     config.Cfg.GoogleClientID,
		ClientSecret: config.Cfg.GoogleClientSecret,
		Scopes:       []string{"https://www.googleapis.com/auth/userinfo.email", "https://www.googleapis.com/auth/userinfo.profile"},
		Endpoint:     google.Endpoint,
	}
}

func (h *UserHandler) HandleGoogleLogin(w http.ResponseWriter, r *http.Request) {
	if googleOauthConfig == nil || googleOauthConfig.ClientID == "" {
		sendJSONError(w, "Google sign-in is not configured", http.StatusServiceUnavailable)
		return
	}
	url := googleOauthConfig.AuthCodeURL(oauthStateString)
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

func (h *UserHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	signinURL := config.Cfg.FrontendBaseURL + "/signin"

	if r.FormValue("state") != oauthStateString {
		logger.L.Warn("Invalid OAuth state from Google callback")
		http.Redirect(w, r, signinURL+"?error=invalid_state", http.StatusTemporaryRedirect)
		return
	}

	code := r.FormValue("code")
	token, err := googleOauthConfig.Exchange(context.Background(), code)
	if err != nil {
		logger.L.Error("Failed to exchange code for token", "error", err)
		http.Redirect(w, r, signinURL+"?error=token_exchange_failed", http.StatusTemporaryRedirect)
		return
	}

	response, err := http.Get("https://www.googleapis.com/oauth2/v2/userinfo?access_token=" + url.QueryEscape(token.AccessToken))
	if err != nil {
		logger.L.Error("Failed to get user info from Google", "error", err)
		http.Redirect(w, r, signinURL+"?error=userinfo_failed", http.StatusTemporaryRedirect)
		return
	}
	defer response.Body.Close()

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		logger.L.Error("Failed to read user info response body", "error", err)
		http.Redirect(w, r, signinURL+"?error=userinfo_read_failed", http.StatusTemporaryRedirect)
		return
	}

	var googleUser struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Verified bool   `json:"verified_email"`
		ID       string `json:"id"`
	}
	if err := json.Unmarshal(contents, &googleUser); err != nil {
		logger.L.Error("Failed to unmarshal Google user info", "error", err)
		http.Redirect(w, r, signinURL+"?error=userinfo_parse_failed", http.StatusTemporaryRedirect)
		return
	}

	if !googleUser.Verified {
		http.Redirect(w, r, signinURL+"?error=email_not_verified_by_google", http.StatusTemporaryRedirect)
		return
	}

	user, err := model.GetUserByEmail(database.DB, googleUser.Email)
	if err == model.ErrUserNotFound {
		user = &model.User{
			Username:        googleUser.Email,
			Email:           googleUser.Email,
			Role:            "client",
			AuthProvider:    "google",
			IsEmailVerified: true,
		}
		// Random placeholder password; Google accounts never log in locally.
		if hashErr := user.HashPassword(fmt.Sprintf("google-oauth-%s-%d", googleUser.ID, time.Now().UnixNano())); hashErr != nil {
			logger.L.Error("Failed to hash placeholder password for Google user", "error", hashErr)
			http.Redirect(w, r, signinURL+"?error=account_creation_failed", http.StatusTemporaryRedirect)
			return
		}
		if createErr := user.CreateUser(database.DB, "", time.Now()); createErr != nil {
			logger.L.Error("Failed to create user from Google account", "email", googleUser.Email, "error", createErr)
			http.Redirect(w, r, signinURL+"?error=account_creation_failed", http.StatusTemporaryRedirect)
			return
		}
	} else if err != nil {
		logger.L.Error("User lookup failed during Google callback", "email", googleUser.Email, "error", err)
		http.Redirect(w, r, signinURL+"?error=lookup_failed", http.StatusTemporaryRedirect)
		return
	}

	accessToken, err := h.authService.GenerateToken(fmt.Sprintf("%d", user.ID), user.Email, user.Role)
	if err != nil {
		logger.L.Error("Failed to generate token for Google user", "error", err)
		http.Redirect(w, r, signinURL+"?error=token_generation_failed", http.StatusTemporaryRedirect)
		return
	}

	redirectURL := fmt.Sprintf("%s/oauth/callback?access_token=%s", strings.TrimRight(config.Cfg.FrontendBaseURL, "/"), url.QueryEscape(accessToken))
	http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
}
