package server

import (
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/rmfonseca/fiiboard/internal/common"
	"github.com/rmfonseca/fiiboard/internal/models"
	"github.com/rmfonseca/fiiboard/internal/services/allocation"
)

// handleShutdown handles POST /api/shutdown (dev mode only).
func (s *Server) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	if s.app.Config.IsProduction() {
		WriteError(w, http.StatusForbidden, "Shutdown endpoint disabled in production")
		return
	}

	s.logger.Info().Msg("Shutdown requested via HTTP endpoint")

	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Shutting down gracefully...\n"))

	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	if s.shutdownChan != nil {
		go func() {
			time.Sleep(100 * time.Millisecond)
			s.shutdownChan <- struct{}{}
		}()
	}
}

// handleHealth handles GET /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": common.GetVersion(),
		"uptime":  time.Since(s.app.StartupTime).String(),
	})
}

// handleVersion handles GET /api/version.
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]string{
		"version": common.GetVersion(),
		"full":    common.GetFullVersion(),
	})
}

// handleCacheStats handles GET /api/cache/stats.
func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}
	stats, err := s.app.QuoteCache.Stats(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Failed to read cache stats: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, stats)
}

// handleCachePrune handles POST /api/cache/prune. An optional "days" query
// parameter overrides the configured retention window.
func (s *Server) handleCachePrune(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	days := s.app.Config.Cache.RetentionDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			WriteError(w, http.StatusBadRequest, "Invalid days parameter")
			return
		}
		days = parsed
	}

	removed, err := s.app.QuoteCache.PruneOld(r.Context(), days)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Prune failed: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// handleCacheClear handles DELETE /api/cache.
func (s *Server) handleCacheClear(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodDelete) {
		return
	}
	removed, err := s.app.QuoteCache.ClearAll(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Clear failed: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]int{"removed": removed})
}

// quotesResponse is the payload for GET /api/quotes.
type quotesResponse struct {
	Date         string                  `json:"date,omitempty"`
	TradingHours bool                    `json:"trading_hours"`
	Quotes       map[string]models.Quote `json:"quotes"`
	Missing      []string                `json:"missing,omitempty"`
}

// handleQuotes handles GET /api/quotes?tickers=A,B. Without a tickers
// parameter it returns everything cached for today.
func (s *Server) handleQuotes(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodGet) {
		return
	}

	tickers := SplitTickersParam(r.URL.Query().Get("tickers"))

	if len(tickers) == 0 {
		entry, err := s.app.QuoteCache.Load(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "Cache read failed: "+err.Error())
			return
		}
		resp := quotesResponse{Quotes: map[string]models.Quote{}}
		if entry != nil {
			resp.Date = entry.Date
			resp.TradingHours = entry.TradingHours
			resp.Quotes = entry.Quotes
		}
		WriteJSON(w, http.StatusOK, resp)
		return
	}

	lookup, err := s.app.QuoteCache.GetForTickers(r.Context(), tickers)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Cache read failed: "+err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, quotesResponse{
		Quotes:  lookup.Found,
		Missing: lookup.Missing,
	})
}

// refreshRequest is the body for POST /api/quotes/refresh.
type refreshRequest struct {
	Tickers []string `json:"tickers"`
}

// handleQuotesRefresh handles POST /api/quotes/refresh: force-invalidates
// today's entry, fetches fresh quotes, and merges them back in.
func (s *Server) handleQuotesRefresh(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req refreshRequest
	if !DecodeJSON(w, r, &req) {
		return
	}
	if len(req.Tickers) == 0 {
		WriteError(w, http.StatusBadRequest, "At least one ticker is required")
		return
	}

	quotes, err := s.app.QuoteCache.ForceRefresh(r.Context(), s.app.QuoteFetcher, req.Tickers)
	if err != nil {
		WriteError(w, http.StatusBadGateway, "Quote refresh failed: "+err.Error())
		return
	}

	byTicker := make(map[string]models.Quote, len(quotes))
	for _, q := range quotes {
		byTicker[q.Ticker] = q
	}
	if err := s.app.QuoteCache.Merge(r.Context(), byTicker); err != nil {
		WriteError(w, http.StatusInternalServerError, "Cache write failed: "+err.Error())
		return
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"fetched": len(quotes),
		"quotes":  byTicker,
	})
}

// allocateRequest is the body for POST /api/allocate.
type allocateRequest struct {
	Tickers     []string `json:"tickers,omitempty"`
	Budget      float64  `json:"budget"`
	RiskProfile string   `json:"risk_profile"`
}

// resolveCandidates loads cached quotes (restricted to req.Tickers when
// given) and scores them under the requested profile.
func (s *Server) resolveCandidates(w http.ResponseWriter, r *http.Request, req *allocateRequest) ([]models.ScoredCandidate, models.RiskProfile, bool) {
	if req.Budget <= 0 {
		WriteError(w, http.StatusBadRequest, "Budget must be positive")
		return nil, "", false
	}
	profile := models.ParseRiskProfile(req.RiskProfile)

	entry, err := s.app.QuoteCache.Load(r.Context())
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Cache read failed: "+err.Error())
		return nil, "", false
	}
	if entry == nil || len(entry.Quotes) == 0 {
		WriteError(w, http.StatusNotFound, "No cached quotes for today - refresh first")
		return nil, "", false
	}

	var quotes []models.Quote
	if len(req.Tickers) > 0 {
		for _, t := range req.Tickers {
			if q, ok := entry.Quotes[t]; ok {
				quotes = append(quotes, q)
			}
		}
	} else {
		// Map iteration order is random; fix candidate order by ticker so
		// score-tied allocations come out the same on every request.
		tickers := make([]string, 0, len(entry.Quotes))
		for t := range entry.Quotes {
			tickers = append(tickers, t)
		}
		sort.Strings(tickers)
		quotes = make([]models.Quote, 0, len(tickers))
		for _, t := range tickers {
			quotes = append(quotes, entry.Quotes[t])
		}
	}
	if len(quotes) == 0 {
		WriteError(w, http.StatusNotFound, "None of the requested tickers are cached")
		return nil, "", false
	}

	candidates, err := s.app.ScoringService.ScoreAll(r.Context(), quotes, profile)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Scoring failed: "+err.Error())
		return nil, "", false
	}
	return candidates, profile, true
}

// handleAllocate handles POST /api/allocate.
func (s *Server) handleAllocate(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req allocateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	candidates, profile, ok := s.resolveCandidates(w, r, &req)
	if !ok {
		return
	}

	result := s.app.AllocationService.Allocate(candidates, req.Budget, profile)
	WriteJSON(w, http.StatusOK, result)
}

// handleAllocateChart handles POST /api/allocate/chart, returning the
// allocation as a PNG bar chart.
func (s *Server) handleAllocateChart(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, http.MethodPost) {
		return
	}

	var req allocateRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	candidates, profile, ok := s.resolveCandidates(w, r, &req)
	if !ok {
		return
	}

	result := s.app.AllocationService.Allocate(candidates, req.Budget, profile)
	if len(result.Lines) == 0 {
		WriteError(w, http.StatusUnprocessableEntity, "Allocation produced no lines to chart")
		return
	}

	png, err := allocation.RenderAllocationChart(result)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "Chart render failed: "+err.Error())
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(png)
}
