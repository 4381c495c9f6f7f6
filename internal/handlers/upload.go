package handlers

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/bruinswipes/bruinswipes-backend/internal/middleware"
	"github.com/bruinswipes/bruinswipes-backend/internal/models"
	"github.com/bruinswipes/bruinswipes-backend/internal/services"
)

const maxUploadBytes = 10 << 20

type UploadResponse struct {
	Status string `json:"status"`
	URL    string `json:"url,omitempty"`
}

// UploadProfileImage stores the multipart "file" and makes it the user's profile image.
func (h *Handler) UploadProfileImage(w http.ResponseWriter, r *http.Request) {
	if h.uploader == nil {
		writeError(w, http.StatusServiceUnavailable, "Image uploads are not configured")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "Failed to parse form")
		return
	}
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	userID := middleware.UserID(r.Context())
	url, err := h.uploader.UploadImage(r.Context(), fileHeader, services.ProfileImageFolder)
	if err != nil {
		h.logger.WithFields(logrus.Fields{"user_id": userID, "error": err.Error()}).Error("upload profile image")
		writeJSON(w, http.StatusOK, UploadResponse{Status: services.StatusFail})
		return
	}

	res := h.accounts.PostProfile(r.Context(), userID, models.ProfileUpdate{Img: &url})
	writeJSON(w, http.StatusOK, UploadResponse{Status: res.Status, URL: url})
}
