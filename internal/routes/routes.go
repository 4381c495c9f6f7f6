package routes

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/bruinswipes/bruinswipes-backend/internal/handlers"
	"github.com/bruinswipes/bruinswipes-backend/internal/middleware"
)

// Options carries the cross-cutting pieces the router wraps around handlers.
// Redis and the limiters may be nil.
type Options struct {
	Sessions       middleware.SessionVerifier
	Redis          *redis.Client
	AllowedOrigins []string
	Production     bool
	LoginLimiter   *middleware.KeyedLimiter
	MessageLimiter *middleware.KeyedLimiter
	Logger         logrus.FieldLogger
}

// NewRouter builds the chi router with every route the client calls.
func NewRouter(h *handlers.Handler, opts Options) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestLogger(opts.Logger))
	r.Use(middleware.CORS(opts.AllowedOrigins))
	if opts.Production {
		r.Use(middleware.SecurityHeaders)
	}

	// Health check (no rate limit)
	r.Get("/health", h.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RedisRateLimit(opts.Redis, middleware.RateLimitMaxRequests, middleware.RateLimitWindow, opts.Logger))

		r.Group(func(r chi.Router) {
			if opts.LoginLimiter != nil {
				r.Use(middleware.Limit(opts.LoginLimiter, middleware.ByIP, "Too many attempts. Please wait and try again."))
			}
			r.Post("/sign-up", h.SignUp)
			r.Post("/login", h.Login)
		})

		r.Get("/logout", h.Logout)
		r.Get("/certify", h.Certify)
		r.Get("/fetch-profile", h.FetchProfile)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireSession(opts.Sessions))

			r.Get("/verify-session", h.VerifySession)
			r.Post("/post-profile", h.PostProfile)
			r.Post("/upload-profile-image", h.UploadProfileImage)

			r.Get("/get-notifications", h.GetNotifications)
			r.Get("/read-notifications", h.ReadNotifications)

			r.Get("/get-messages", h.GetMessages)
			r.Group(func(r chi.Router) {
				if opts.MessageLimiter != nil {
					r.Use(middleware.Limit(opts.MessageLimiter, middleware.ByUser, "You are sending messages too quickly."))
				}
				r.Post("/send-messages", h.SendMessages)
			})

			r.Post("/get-listings", h.GetListings)
			r.Post("/post-listing", h.PostListing)
			r.Get("/resolve-listing", h.ResolveListing)

			r.Get("/ws/notifications", h.NotificationsWebSocket)
		})
	})

	return r
}
