package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/tenantauth"
	"github.com/MrEthical07/tenantauth/middleware"
)

type handlers struct {
	engine *tenantauth.Engine
}

type tokenResponse struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type signInResponse struct {
	*tokenResponse
	MFARequired  bool       `json:"mfa_required"`
	MFAToken     string     `json:"mfa_token,omitempty"`
	MFAExpiresAt *time.Time `json:"mfa_expires_at,omitempty"`
}

type memberResponse struct {
	*tokenResponse
	Member *tenantauth.Principal `json:"member"`
}

type mfaResponse struct {
	*tokenResponse
	Enabled bool   `json:"enabled"`
	Pending bool   `json:"pending"`
	QRCode  string `json:"qr_code,omitempty"`
}

type signUpResponse struct {
	Member     *tenantauth.Principal `json:"member"`
	QRCode     string                `json:"qr_code,omitempty"`
	MFAPending bool                  `json:"mfa_pending"`
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSONError(w, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large")
			return false
		}
		writeBadRequest(w, "Malformed JSON body")
		return false
	}
	return true
}

func (h *handlers) refreshToken(r *http.Request) string {
	c, err := r.Cookie(h.engine.RefreshCookieName())
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *handlers) accessToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	token, ok := middleware.BearerToken(r)
	if !ok {
		writeError(w, r, tenantauth.ErrInvalidToken)
		return "", false
	}
	return token, true
}

// setSession writes the refresh cookie when a new refresh token was issued
// and returns the access token payload.
func (h *handlers) setSession(w http.ResponseWriter, pair tenantauth.TokenPair) *tokenResponse {
	if pair.RefreshToken != "" {
		http.SetCookie(w, h.engine.RefreshCookie(pair.RefreshToken, pair.RefreshExpiresAt))
	}
	if pair.AccessToken == "" {
		return nil
	}
	return &tokenResponse{AccessToken: pair.AccessToken, TokenType: "Bearer", ExpiresAt: pair.AccessExpiresAt}
}

/*
====================================
AUTH
====================================
*/

func (h *handlers) signUp(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username        string `json:"username"`
		Email           string `json:"email"`
		Password        string `json:"password"`
		ConfirmPassword string `json:"confirm_password"`
		MFAEnabled      bool   `json:"mfa_enabled"`
	}
	if !decode(w, r, &body) {
		return
	}

	res, err := h.engine.SignUp(r.Context(), tenantauth.SignUpRequest{
		Username:        body.Username,
		Email:           body.Email,
		Password:        body.Password,
		PasswordConfirm: body.ConfirmPassword,
		EnableMFA:       body.MFAEnabled,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, signUpResponse{Member: res.Principal, QRCode: res.QRCode, MFAPending: res.MFAPending})
}

func (h *handlers) signIn(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Username == "" || body.Password == "" {
		writeBadRequest(w, "username and password are required")
		return
	}

	res, err := h.engine.SignIn(r.Context(), body.Username, body.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if res.MFARequired {
		exp := res.MFAExpiresAt
		writeJSON(w, http.StatusOK, signInResponse{MFARequired: true, MFAToken: res.MFAToken, MFAExpiresAt: &exp})
		return
	}
	writeJSON(w, http.StatusOK, signInResponse{tokenResponse: h.setSession(w, res.TokenPair)})
}

func (h *handlers) verifyMFA(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		MFAToken string `json:"mfa_token"`
		Code     string `json:"code"`
	}
	if !decode(w, r, &body) {
		return
	}

	res, err := h.engine.VerifyMFA(r.Context(), body.Username, body.MFAToken, body.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, signInResponse{tokenResponse: h.setSession(w, res.TokenPair)})
}

func (h *handlers) signOut(w http.ResponseWriter, r *http.Request) {
	access, _ := middleware.BearerToken(r)
	signedOut, err := h.engine.SignOut(r.Context(), access, h.refreshToken(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	http.SetCookie(w, h.engine.ClearRefreshCookie())
	writeJSON(w, http.StatusOK, map[string]bool{"signed_out": signedOut})
}

func (h *handlers) refresh(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.Refresh(r.Context(), h.refreshToken(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	pair := tenantauth.TokenPair{
		AccessToken:      res.AccessToken,
		AccessExpiresAt:  res.AccessExpiresAt,
		RefreshToken:     res.RefreshToken,
		RefreshExpiresAt: res.RefreshExpiresAt,
	}
	writeJSON(w, http.StatusOK, h.setSession(w, pair))
}

func (h *handlers) forgotPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email string `json:"email"`
	}
	if !decode(w, r, &body) {
		return
	}
	if !strings.Contains(body.Email, "@") {
		writeBadRequest(w, "a valid email is required")
		return
	}
	if err := h.engine.ForgotPassword(r.Context(), body.Email); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": "If the address is registered, a reset link has been sent.",
	})
}

func (h *handlers) resetPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token           string `json:"token"`
		NewPassword     string `json:"new_password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if !decode(w, r, &body) {
		return
	}
	if err := h.engine.ResetPassword(r.Context(), body.Token, body.NewPassword, body.ConfirmPassword); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset."})
}

// verify resolves the bearer token against the service in the path. An
// optional roles query parameter ("a,b") adds a per-service role check.
func (h *handlers) verify(w http.ResponseWriter, r *http.Request) {
	access, ok := h.accessToken(w, r)
	if !ok {
		return
	}
	serviceID := chi.URLParam(r, "serviceID")
	roles := splitList(r.URL.Query().Get("roles"))

	ac, err := h.engine.AuthorizeRoles(r.Context(), access, serviceID, roles...)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ac)
}

/*
====================================
MEMBER
====================================
*/

func (h *handlers) profile(w http.ResponseWriter, r *http.Request) {
	access, ok := h.accessToken(w, r)
	if !ok {
		return
	}
	p, err := h.engine.Profile(r.Context(), access)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, memberResponse{Member: p})
}

func (h *handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	access, ok := h.accessToken(w, r)
	if !ok {
		return
	}
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if !decode(w, r, &body) {
		return
	}

	res, err := h.engine.UpdateProfile(r.Context(), access, h.refreshToken(r), tenantauth.ProfileUpdate{Username: body.Username, Email: body.Email})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, memberResponse{tokenResponse: h.setSession(w, res.TokenPair), Member: res.Principal})
}

func (h *handlers) changePassword(w http.ResponseWriter, r *http.Request) {
	access, ok := h.accessToken(w, r)
	if !ok {
		return
	}
	var body struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
		ConfirmPassword string `json:"confirm_password"`
	}
	if !decode(w, r, &body) {
		return
	}

	res, err := h.engine.ChangePassword(r.Context(), access, h.refreshToken(r), body.CurrentPassword, body.NewPassword, body.ConfirmPassword)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, memberResponse{tokenResponse: h.setSession(w, res.TokenPair), Member: res.Principal})
}

func (h *handlers) updateMFA(w http.ResponseWriter, r *http.Request) {
	access, ok := h.accessToken(w, r)
	if !ok {
		return
	}
	var body struct {
		Enable bool   `json:"enable"`
		Code   string `json:"code"`
	}
	if !decode(w, r, &body) {
		return
	}

	res, err := h.engine.UpdateMFA(r.Context(), access, h.refreshToken(r), body.Enable, body.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mfaResponse{
		tokenResponse: h.setSession(w, res.TokenPair),
		Enabled:       res.Enabled,
		Pending:       res.Pending,
		QRCode:        res.QRCode,
	})
}

func (h *handlers) mfaQRCode(w http.ResponseWriter, r *http.Request) {
	access, ok := h.accessToken(w, r)
	if !ok {
		return
	}
	qr, err := h.engine.MFAQRCode(r.Context(), access)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"qr_code": qr})
}
