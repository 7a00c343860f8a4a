package server

import "net/http"

// registerRoutes sets up all REST API routes on the mux.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	// System
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/shutdown", s.handleShutdown)

	// Cache
	mux.HandleFunc("/api/cache/stats", s.handleCacheStats)
	mux.HandleFunc("/api/cache/prune", s.handleCachePrune)
	mux.HandleFunc("/api/cache", s.handleCacheClear)

	// Quotes
	mux.HandleFunc("/api/quotes", s.handleQuotes)
	mux.HandleFunc("/api/quotes/refresh", s.handleQuotesRefresh)

	// Allocation
	mux.HandleFunc("/api/allocate", s.handleAllocate)
	mux.HandleFunc("/api/allocate/chart", s.handleAllocateChart)
}
