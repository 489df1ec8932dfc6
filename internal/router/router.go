package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"kyucards-backend/internal/handlers"
	"kyucards-backend/internal/middleware"
	"kyucards-backend/internal/websocket"
)

type Options struct {
	FrontendURL        string
	RateLimitPerMinute int
}

func New(
	jwtAuth *middleware.JWTAuth,
	cardHandler *handlers.CardHandler,
	reviewHandler *handlers.ReviewHandler,
	wsHub *websocket.Hub,
	opts Options,
) (http.Handler, func()) {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(opts.FrontendURL))

	limiter := middleware.NewRateLimiter(opts.RateLimitPerMinute, time.Minute)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Card Routes ────
		r.Route("/cards", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(limiter.Middleware)
			r.Get("/", cardHandler.List)
			r.Post("/", cardHandler.Create)
			r.Get("/due", cardHandler.Due)
			r.Get("/summary", cardHandler.Summary)
			r.Get("/{id}", cardHandler.Get)
			r.Put("/{id}", cardHandler.Update)
			r.Delete("/{id}", cardHandler.Delete)
		})

		// ──── Review Routes ────
		r.Route("/reviews", func(r chi.Router) {
			r.Use(jwtAuth.Middleware)
			r.Use(limiter.Middleware)
			r.Post("/", reviewHandler.Start)
			r.Get("/{id}", reviewHandler.Get)
			r.Post("/{id}/reveal", reviewHandler.Reveal)
			r.Post("/{id}/rate", reviewHandler.Rate)
			r.Post("/{id}/next", reviewHandler.Next)
			r.Post("/{id}/previous", reviewHandler.Previous)
			r.Delete("/{id}", reviewHandler.Close)
		})

		// ──── WebSocket ────
		r.Get("/ws", wsHub.HandleWebSocket)
	})

	return r, limiter.Stop
}
