package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"courtmatch/internal/middleware"
	"courtmatch/internal/services"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type RouterConfig struct {
	Coordinator    *services.Coordinator
	Requests       *services.RequestService
	Bookings       *services.BookingGuard
	Hub            *Hub
	Auth           *middleware.AuthMiddleware
	RateLimiter    *middleware.RateLimiter
	Metrics        http.Handler // nil leaves /metrics unrouted
	Health         Pinger       // nil reports healthy unconditionally
	AllowedOrigins []string
}

// NewRouter wires every route. Everything under /api and /ws requires a
// bearer token; submissions and bookings are also rate limited per actor.
func NewRouter(cfg RouterConfig) *mux.Router {
	matchHandler := NewMatchHandler(cfg.Coordinator)
	requestHandler := NewRequestHandler(cfg.Requests)
	bookingHandler := NewBookingHandler(cfg.Bookings)
	feedHandler := NewMatchFeedHandler(cfg.Coordinator, cfg.Hub, cfg.AllowedOrigins)

	limited := func(h http.HandlerFunc) http.Handler {
		if cfg.RateLimiter == nil {
			return h
		}
		return cfg.RateLimiter.PerActor(h)
	}

	router := mux.NewRouter()

	// WebSocket routes
	ws := router.PathPrefix("/ws").Subrouter()
	ws.Use(cfg.Auth.RequireAuth)
	ws.HandleFunc("/matches/{id}", feedHandler.HandleMatchFeed).Methods("GET")

	api := router.PathPrefix("/api").Subrouter()
	api.Use(cfg.Auth.RequireAuth)

	// Match requests
	api.Handle("/requests", limited(requestHandler.CreateRequest)).Methods("POST")
	api.HandleFunc("/requests/{id}", requestHandler.GetRequest).Methods("GET")
	api.HandleFunc("/requests/{id}/accept", requestHandler.AcceptRequest).Methods("POST")
	api.HandleFunc("/requests/{id}/decline", requestHandler.DeclineRequest).Methods("POST")
	api.HandleFunc("/requests/{id}/withdraw", requestHandler.WithdrawRequest).Methods("POST")

	// Match lifecycle
	api.HandleFunc("/matches/{id}", matchHandler.GetMatch).Methods("GET")
	api.Handle("/matches/{id}/result", limited(matchHandler.SubmitResult)).Methods("POST")
	api.HandleFunc("/matches/{id}/confirm", matchHandler.ConfirmResult).Methods("POST")
	api.HandleFunc("/matches/{id}/dispute", matchHandler.DisputeResult).Methods("POST")
	api.HandleFunc("/matches/{id}/cancel", matchHandler.CancelMatch).Methods("POST")

	// Courts
	api.Handle("/courts/{courtId}/bookings", limited(bookingHandler.BookCourt)).Methods("POST")
	api.HandleFunc("/courts/{courtId}/bookings", bookingHandler.ListBookings).Methods("GET")
	api.HandleFunc("/bookings/{id}/cancel", bookingHandler.CancelBooking).Methods("POST")

	api.HandleFunc("/players/{id}/rating-history", matchHandler.RatingHistory).Methods("GET")

	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics).Methods("GET")
	}
	router.HandleFunc("/health", healthHandler(cfg.Health)).Methods("GET")
	router.HandleFunc("/docs", ServeAPIDocs).Methods("GET")

	router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithCode(w, http.StatusNotFound, "not_found", "Route not found")
	})
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondWithCode(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	return router
}

func healthHandler(p Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if p != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := p.Ping(ctx); err != nil {
				respondWithJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		respondWithJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
