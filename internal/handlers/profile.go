package handlers

import (
	"net/http"

	"github.com/bruinswipes/bruinswipes-backend/internal/middleware"
	"github.com/bruinswipes/bruinswipes-backend/internal/models"
	"github.com/bruinswipes/bruinswipes-backend/internal/services"
)

type PostProfileRequest struct {
	Bio *string `json:"bio"`
	Img *string `json:"img"`
}

// FetchProfile returns the public profile of ?email=.
func (h *Handler) FetchProfile(w http.ResponseWriter, r *http.Request) {
	profile := h.accounts.FetchProfile(r.Context(), r.URL.Query().Get("email"))
	if profile == nil {
		writeJSON(w, http.StatusOK, services.StatusResult{Status: services.StatusFail})
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// PostProfile updates the signed-in user's bio and image.
func (h *Handler) PostProfile(w http.ResponseWriter, r *http.Request) {
	var req PostProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res := h.accounts.PostProfile(r.Context(), middleware.UserID(r.Context()), models.ProfileUpdate{
		Bio: req.Bio,
		Img: req.Img,
	})
	writeJSON(w, http.StatusOK, res)
}
