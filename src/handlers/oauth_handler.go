package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/username/finlog/backend/src/config"
	"github.com/username/finlog/backend/src/database"
	"github.com/username/finlog/backend/src/logger"
	"github.com/username/finlog/backend/src/model"
)

var googleOauthConfig *oauth2.Config

const oauthStateCookieName = "_finlog_oauth_state"

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
	state, err := generateRandomToken()
	if err != nil {
		logger.L.Error("Failed to generate OAuth state", "error", err)
		http.Redirect(w, r, signinErrorURL("state_generation_failed"), http.StatusTemporaryRedirect)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookieName,
		Value:    state,
		Path:     "/",
		SameSite: http.SameSiteLaxMode,
		HttpOnly: true,
		MaxAge:   600,
	})
	http.Redirect(w, r, googleOauthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

func (h *UserHandler) HandleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie(oauthStateCookieName)
	if err != nil || r.FormValue("state") != stateCookie.Value {
		logger.L.Warn("Invalid OAuth state from Google callback")
		http.Redirect(w, r, signinErrorURL("invalid_state"), http.StatusTemporaryRedirect)
		return
	}

	code := r.FormValue("code")
	token, err := googleOauthConfig.Exchange(context.Background(), code)
	if err != nil {
		logger.L.Error("Failed to exchange code for token", "error", err)
		http.Redirect(w, r, signinErrorURL("token_exchange_failed"), http.StatusTemporaryRedirect)
		return
	}

	response, err := http.Get("https://www.googleapis.com/oauth2/v2/userinfo?access_token=" + token.AccessToken)
	if err != nil {
		logger.L.Error("Failed to get user info from Google", "error", err)
		http.Redirect(w, r, signinErrorURL("userinfo_failed"), http.StatusTemporaryRedirect)
		return
	}
	defer response.Body.Close()

	contents, err := io.ReadAll(response.Body)
	if err != nil {
		logger.L.Error("Failed to read user info response body", "error", err)
		http.Redirect(w, r, signinErrorURL("userinfo_read_failed"), http.StatusTemporaryRedirect)
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
		http.Redirect(w, r, signinErrorURL("userinfo_parse_failed"), http.StatusTemporaryRedirect)
		return
	}

	if !googleUser.Verified {
		http.Redirect(w, r, signinErrorURL("email_not_verified_by_google"), http.StatusTemporaryRedirect)
		return
	}

	// Single-account service: anyone who is not the configured owner is
	// turned away here, before any user row is created.
	if googleUser.Email != config.Cfg.AllowedEmail {
		logger.L.Warn("Google login attempt by non-allowed account", "email", googleUser.Email)
		http.Redirect(w, r, signinErrorURL("account_not_allowed"), http.StatusTemporaryRedirect)
		return
	}

	user, err := model.GetOrCreateUser(database.DB, googleUser.Email, googleUser.Email, "google")
	if err != nil {
		logger.L.Error("Failed to resolve Google user", "error", err)
		http.Redirect(w, r, signinErrorURL("user_creation_failed"), http.StatusTemporaryRedirect)
		return
	}

	accessToken, _, err := h.issueSession(r, user.ID)
	if err != nil {
		logger.L.Error("Failed to issue session for Google user", "userID", user.ID, "error", err)
		http.Redirect(w, r, signinErrorURL("token_generation_failed"), http.StatusTemporaryRedirect)
		return
	}

	redirectURL := fmt.Sprintf("%s/auth/google/callback?token=%s&user=%s",
		config.Cfg.FrontendBaseURL,
		accessToken,
		url.QueryEscape(string(contents)))
	http.Redirect(w, r, redirectURL, http.StatusTemporaryRedirect)
}

func signinErrorURL(code string) string {
	return fmt.Sprintf("%s/signin?error=%s", config.Cfg.FrontendBaseURL, code)
}
