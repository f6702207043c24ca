package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/diewo77/agency-portal/auth"
	"github.com/diewo77/agency-portal/httpx"
	"github.com/diewo77/agency-portal/internal/identity"
	"github.com/diewo77/agency-portal/internal/logger"
	"github.com/diewo77/agency-portal/internal/policy"
	"github.com/diewo77/agency-portal/internal/services"
)

// MinPasswordLength applies when a user sets their password from an invite.
const MinPasswordLength = 8

const passwordSetMessage = "Password set successfully. Please login with your new password."

type AuthHandler struct {
	idp      identity.Authenticator
	profiles *services.ProfileService
	sessions *auth.Manager
	gate     *policy.AuthGate
}

func NewAuthHandler(idp identity.Authenticator, profiles *services.ProfileService, sessions *auth.Manager, gate *policy.AuthGate) *AuthHandler {
	return &AuthHandler{idp: idp, profiles: profiles, sessions: sessions, gate: gate}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserIDFromContext(r.Context()); ok {
		if role := h.gate.Role(r.Context()); role != "" {
			http.Redirect(w, r, policy.HomeFor(role), http.StatusSeeOther)
			return
		}
	}
	render(w, r, "auth/login.html", nil)
}

// Login checks the password with the identity provider, then starts a
// session for the matching profile.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	isJSON, ok := decode(w, r, &in)
	if !ok {
		return
	}
	if !isJSON {
		in = loginRequest{Email: r.FormValue("email"), Password: r.FormValue("password")}
	}
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))

	loginFailed := func(status int, code, msg string) {
		if jsonClient(r) {
			httpx.JSONError(w, status, code, nil)
			return
		}
		renderStatus(w, r, status, "auth/login.html", map[string]any{"Email": in.Email, "Error": msg})
	}

	if in.Email == "" || in.Password == "" {
		loginFailed(http.StatusBadRequest, "validation_failed", "Email and password are required")
		return
	}

	sess, err := h.idp.SignInWithPassword(r.Context(), in.Email, in.Password)
	if errors.Is(err, identity.ErrInvalidCredentials) {
		loginFailed(http.StatusUnauthorized, "invalid_credentials", "Invalid email or password")
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("sign in", zap.Error(err))
		loginFailed(http.StatusBadGateway, "identity_unavailable", "Sign in is unavailable right now. Please try again.")
		return
	}

	profile, err := h.profiles.ForAccount(r.Context(), sess.Account.ID, in.Email)
	if errors.Is(err, services.ErrNotFound) {
		loginFailed(http.StatusForbidden, "no_profile", "This account has no access to the portal")
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("load profile", zap.Error(err))
		loginFailed(http.StatusInternalServerError, "internal_error", "Something went wrong. Please try again.")
		return
	}

	if err := h.sessions.Create(w, auth.Session{ProfileID: profile.ID, Role: string(profile.Role)}); err != nil {
		logger.FromContext(r.Context()).Error("create session", zap.Error(err))
		loginFailed(http.StatusInternalServerError, "internal_error", "Something went wrong. Please try again.")
		return
	}
	h.gate.Forget(profile.ID)

	home := policy.HomeFor(profile.Role)
	done(w, r, http.StatusOK, map[string]any{"redirect": home, "profile": profile}, home)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Clear(w)
	if jsonClient(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// SetPasswordPage is where invite links land. The access token arrives in
// the URL fragment, so the page copies it into the form.
func (h *AuthHandler) SetPasswordPage(w http.ResponseWriter, r *http.Request) {
	render(w, r, "auth/set_password.html", map[string]any{"AccessToken": r.URL.Query().Get("access_token")})
}

type setPasswordRequest struct {
	AccessToken     string `json:"access_token"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

func (h *AuthHandler) SetPassword(w http.ResponseWriter, r *http.Request) {
	var in setPasswordRequest
	isJSON, ok := decode(w, r, &in)
	if !ok {
		return
	}
	if !isJSON {
		in = setPasswordRequest{
			AccessToken:     r.FormValue("access_token"),
			Password:        r.FormValue("password"),
			ConfirmPassword: r.FormValue("confirm_password"),
		}
	}

	failed := func(status int, code, msg string) {
		if jsonClient(r) {
			httpx.JSONError(w, status, code, nil)
			return
		}
		renderStatus(w, r, status, "auth/set_password.html", map[string]any{"AccessToken": in.AccessToken, "Error": msg})
	}

	switch {
	case in.AccessToken == "":
		failed(http.StatusBadRequest, "missing_token", "No invitation token found. Please check your email for the invitation link.")
		return
	case in.Password != in.ConfirmPassword:
		failed(http.StatusBadRequest, "password_mismatch", "Passwords do not match")
		return
	case len(in.Password) < MinPasswordLength:
		failed(http.StatusBadRequest, "password_too_short", "Password must be at least 8 characters long")
		return
	}

	_, err := h.idp.UpdatePassword(r.Context(), in.AccessToken, in.Password)
	if errors.Is(err, identity.ErrInvalidToken) {
		failed(http.StatusUnauthorized, "invalid_token", "Invalid or expired invitation link. Please request a new one.")
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("set password", zap.Error(err))
		failed(http.StatusBadGateway, "identity_unavailable", "Failed to set password. Please try again.")
		return
	}
	done(w, r, http.StatusOK, map[string]string{"message": passwordSetMessage},
		"/auth/login?message="+url.QueryEscape(passwordSetMessage))
}
