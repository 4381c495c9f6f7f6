package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bruinswipes/bruinswipes-backend/internal/services"
)

// Maximum JSON body accepted by any route.
const maxBodyBytes = 1 << 20

// Dependencies are the services the HTTP layer calls into. Uploader and
// HealthCheck may be nil.
type Dependencies struct {
	Accounts       *services.AccountService
	Sessions       *services.SessionManager
	Listings       *services.ListingService
	Messaging      *services.MessagingService
	Notifications  *services.NotificationService
	Hub            *services.NotificationHub
	Uploader       services.ImageUploader
	HealthCheck    func(ctx context.Context) error
	AllowedOrigins []string
	SecureCookies  bool
	Logger         logrus.FieldLogger
}

type Handler struct {
	accounts       *services.AccountService
	sessions       *services.SessionManager
	listings       *services.ListingService
	messaging      *services.MessagingService
	notifications  *services.NotificationService
	hub            *services.NotificationHub
	uploader       services.ImageUploader
	healthCheck    func(ctx context.Context) error
	allowedOrigins map[string]bool
	secureCookies  bool
	logger         logrus.FieldLogger
}

func New(d Dependencies) *Handler {
	origins := make(map[string]bool, len(d.AllowedOrigins))
	for _, o := range d.AllowedOrigins {
		origins[o] = true
	}
	return &Handler{
		accounts:       d.Accounts,
		sessions:       d.Sessions,
		listings:       d.Listings,
		messaging:      d.Messaging,
		notifications:  d.Notifications,
		hub:            d.Hub,
		uploader:       d.Uploader,
		healthCheck:    d.HealthCheck,
		allowedOrigins: origins,
		secureCookies:  d.SecureCookies,
		logger:         d.Logger,
	}
}

// ErrorResponse is the body of requests rejected before reaching a service.
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Status: services.StatusFail, Message: message})
}

// decodeJSON reads a bounded JSON body into dst and answers 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// Health reports liveness and, when configured, store reachability.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.healthCheck != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.healthCheck(ctx); err != nil {
			h.logger.WithField("error", err.Error()).Warn("health check failed")
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
