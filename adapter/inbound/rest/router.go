package rest

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RouterOptions lists the optional parts of the HTTP surface
type RouterOptions struct {
	// Auth serves /api/auth, omitted when authentication is disabled
	Auth *AuthHandler

	// Stream serves the websocket event stream
	Stream http.HandlerFunc

	MetricsPath string
	Metrics     http.Handler
}

// NewRouter assembles the API behind the auth middleware
func NewRouter(h *Handler, middleware *AuthMiddleware, opts RouterOptions) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.Middleware)

	h.SetupRoutes(router)

	if opts.Auth != nil {
		opts.Auth.SetupRoutes(router)
	}
	if opts.Stream != nil {
		router.HandleFunc(eventStreamPath, opts.Stream).Methods("GET")
	}
	if opts.Metrics != nil && opts.MetricsPath != "" {
		router.Handle(opts.MetricsPath, opts.Metrics).Methods("GET")
	}

	return router
}
