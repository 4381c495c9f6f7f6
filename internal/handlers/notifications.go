package handlers

import (
	"net/http"

	"github.com/bruinswipes/bruinswipes-backend/internal/middleware"
)

func (h *Handler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.notifications.GetAll(r.Context(), middleware.UserID(r.Context())))
}

// ReadNotifications marks every notification of the signed-in user as read.
func (h *Handler) ReadNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.notifications.ReadAll(r.Context(), middleware.UserID(r.Context())))
}
