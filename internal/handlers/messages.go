package handlers

import (
	"net/http"

	"github.com/bruinswipes/bruinswipes-backend/internal/middleware"
	"github.com/bruinswipes/bruinswipes-backend/internal/models"
	"github.com/bruinswipes/bruinswipes-backend/internal/services"
)

type SendMessageRequest struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

// SendMessages posts a message from the signed-in user to body.email.
func (h *Handler) SendMessages(w http.ResponseWriter, r *http.Request) {
	var req SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	account, err := h.accounts.Account(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusOK, services.StatusResult{Status: services.StatusFail})
		return
	}
	writeJSON(w, http.StatusOK, h.messaging.SendMessage(r.Context(), account.Email, req.Email, req.Message))
}

// GetMessages returns every conversation of the signed-in user.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	account, err := h.accounts.Account(r.Context(), middleware.UserID(r.Context()))
	if err != nil {
		writeJSON(w, http.StatusOK, []models.Conversation{})
		return
	}
	writeJSON(w, http.StatusOK, h.messaging.GetMessages(r.Context(), account.Email))
}
