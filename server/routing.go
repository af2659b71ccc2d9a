package server

import (
	"net/http"
)

// setupRoutes configures all HTTP handlers
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/health", s.corsMiddleware(s.handleHealth))
	s.mux.HandleFunc("/api/jobs", s.corsMiddleware(s.handleJobs))          // List (GET), submit (POST)
	s.mux.HandleFunc("/api/jobs/", s.corsMiddleware(s.handleJob))          // Job detail and sub-resources
	s.mux.HandleFunc("/api/subscriptions", s.corsMiddleware(s.handleSubscriptions)) // List (GET), create (POST)
	s.mux.HandleFunc("/api/subscriptions/", s.corsMiddleware(s.handleSubscription)) // Detail, update, delete, run
}

// corsMiddleware adds CORS headers using the configured allowed origins
func (s *Server) corsMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && s.originAllowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// originAllowed checks an Origin header against the configured prefixes.
// Prefix matching lets "http://localhost" cover any dev port.
func (s *Server) originAllowed(origin string) bool {
	for _, allowed := range s.cfg.AllowedOrigins {
		if origin == allowed || hasPrefixWithPort(origin, allowed) {
			return true
		}
	}
	return false
}

func hasPrefixWithPort(origin, allowed string) bool {
	if len(origin) <= len(allowed) {
		return false
	}
	return origin[:len(allowed)] == allowed && origin[len(allowed)] == ':'
}
