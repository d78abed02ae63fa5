package handler

import (
	"net/http"

	"pdf-extract-service/internal/config"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(container *config.Container) http.Handler {
	router := mux.NewRouter()

	// Health check endpoint (no auth required)
	healthHandler := NewHealthHandler(container.Processor, container.Runner, container.Queue)
	router.HandleFunc("/health", healthHandler.Health).Methods("GET")

	extractHandler := NewExtractHandler(container.ExtractService, container.Logger)
	rateLimiter := NewRateLimiter(container.Config.GetRateLimitPerMinute(), container.Logger)

	// Internal routes (require the shared token)
	internal := router.PathPrefix("").Subrouter()
	internal.Use(InternalAuthMiddleware(container.Config, container.Logger))

	// Only submission is rate limited; status polling is expected to be chatty.
	internal.Handle("/extract",
		rateLimiter.Wrap(http.HandlerFunc(extractHandler.SubmitExtraction))).Methods("POST")
	internal.HandleFunc("/extract/status/{paperId}", extractHandler.GetStatus).Methods("GET")
	internal.HandleFunc("/extract/cancel/{paperId}", extractHandler.CancelExtraction).Methods("POST")

	// Internal service: callers are our own backends, CORS stays permissive.
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodOptions,
		},
		AllowedHeaders: []string{"*"},
	})

	return c.Handler(router)
}
