package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"microlearn-backend/internal/handlers"
	"microlearn-backend/internal/middleware"
	"microlearn-backend/internal/websocket"
)

func New(
	jwtAuth *middleware.JWTAuth,
	authHandler *handlers.AuthHandler,
	materialHandler *handlers.MaterialHandler,
	subscriptionHandler *handlers.SubscriptionHandler,
	jobHandler *handlers.JobHandler,
	wsHub *websocket.Hub,
	frontendURL string,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	// Auth rate limiter (10 req/min per IP)
	authLimiter := middleware.NewRateLimiter(10, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			// Logout requires auth
			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/logout", authHandler.Logout)
			})
		})

		// ──── Material Routes ────
		r.Route("/materials", func(r chi.Router) {
			r.Get("/supported-formats", materialHandler.SupportedFormats) // Public

			r.Group(func(r chi.Router) {
				r.Use(jwtAuth.Middleware)
				r.Post("/upload", materialHandler.Upload)
				r.Get("/", materialHandler.List)
				r.Get("/{id}", materialHandler.Get)
				r.Put("/{id}", materialHandler.Rename)
				r.Delete("/{id}", materialHandler.Delete)
				r.Post("/{id}/regenerate-questions", materialHandler.RegenerateQuestions)
				r.Post("/{id}/attempts", materialHandler.SubmitAttempt)
				r.Get("/{id}/attempts", materialHandler.ListAttempts)
			})
		})

		// ──── Subscription Routes ────
		r.Route("/subscription", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/", subscriptionHandler.Status)
			r.Post("/upgrade", subscriptionHandler.Upgrade)
		})

		// ──── Job Routes ────
		r.Route("/jobs", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Get("/{id}", jobHandler.GetJob)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r
}
