package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/bruinswipes/bruinswipes-backend/internal/middleware"
	"github.com/bruinswipes/bruinswipes-backend/internal/services"
)

type SignUpRequest struct {
	First    string `json:"first"`
	Last     string `json:"last"`
	Password string `json:"password"`
	Email    string `json:"email"`
}

type SignUpResponse struct {
	Info           string `json:"info"`
	AccountCreated bool   `json:"accountCreated"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Info     string `json:"info"`
	LoggedIn bool   `json:"loggedIn"`
}

type InfoResponse struct {
	Info string `json:"info"`
}

type VerifySessionResponse struct {
	IsSignedIn bool   `json:"isSignedIn"`
	Name       string `json:"name"`
	Email      string `json:"email"`
}

// SignUp creates the account and mails the certification link.
func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req SignUpRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res := h.accounts.SignUp(r.Context(), req.First, req.Last, req.Password, req.Email)
	if res.AccountCreated {
		h.notifications.SendCertificationEmail(res.Name, res.Email, res.UserID)
	}
	writeJSON(w, http.StatusOK, SignUpResponse{Info: res.Info, AccountCreated: res.AccountCreated})
}

// Login checks credentials and sets the session cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res := h.accounts.Login(r.Context(), req.Email, req.Password)
	if res.LoggedIn {
		session, err := h.sessions.IssueSession(r.Context(), res.UserID)
		if err != nil {
			h.logger.WithFields(logrus.Fields{"user_id": res.UserID, "error": err.Error()}).Error("issue session")
			writeJSON(w, http.StatusOK, LoginResponse{Info: services.InfoLoginFailed})
			return
		}
		http.SetCookie(w, h.sessionCookie(session.Token, int(h.sessions.TTL().Seconds())))
	}
	writeJSON(w, http.StatusOK, LoginResponse{Info: res.Info, LoggedIn: res.LoggedIn})
}

// Logout revokes the session and clears the cookie.
func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	token := middleware.SessionToken(r)
	if token == "" {
		writeJSON(w, http.StatusOK, InfoResponse{Info: "You're not signed in."})
		return
	}
	if err := h.sessions.RevokeSession(r.Context(), token); err != nil {
		h.logger.WithField("error", err.Error()).Warn("revoke session")
	}
	http.SetCookie(w, h.sessionCookie("", -1))
	writeJSON(w, http.StatusOK, InfoResponse{Info: "You have been logged out."})
}

// VerifySession tells the client who is signed in. Mounted behind RequireSession.
func (h *Handler) VerifySession(w http.ResponseWriter, r *http.Request) {
	identity := h.accounts.VerifyIdentity(r.Context(), middleware.UserID(r.Context()))
	if identity == nil {
		writeJSON(w, http.StatusUnauthorized, middleware.NotSignedIn{Status: services.StatusFail, Message: "You are not signed in."})
		return
	}
	writeJSON(w, http.StatusOK, VerifySessionResponse{IsSignedIn: true, Name: identity.Name, Email: identity.Email})
}

// Certify is the target of the link in the certification email.
func (h *Handler) Certify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	writeJSON(w, http.StatusOK, h.accounts.Certify(r.Context(), q.Get("user_id"), q.Get("email")))
}

func (h *Handler) sessionCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     middleware.SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
}
