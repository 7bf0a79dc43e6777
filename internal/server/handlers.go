package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"cryptopulse/internal/core"
	"cryptopulse/internal/logger"
)

// HealthResponse is the /health payload.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checks := make(map[string]string)
	if err := s.store.Ping(); err != nil {
		checks["database"] = "error"
		s.respondJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Checks: checks})
		return
	}
	checks["database"] = "ok"
	s.respondJSON(w, http.StatusOK, HealthResponse{Status: "ok", Checks: checks})
}

// handleListNarratives handles GET /api/narratives with optional state,
// limit and offset query params. Read failures produce an empty list.
func (s *Server) handleListNarratives(w http.ResponseWriter, r *http.Request) {
	var (
		narratives []*core.Narrative
		err        error
	)
	if state := r.URL.Query().Get("state"); state != "" {
		narratives, err = s.store.GetNarrativesByState(core.LifecycleState(state))
	} else {
		narratives, err = s.store.GetActiveNarratives()
	}
	if err != nil {
		logger.Error("failed to list narratives", err)
		narratives = nil
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	page := paginate(narratives, limit, offset)

	s.respondJSON(w, http.StatusOK, map[string]any{
		"data":   page,
		"total":  len(narratives),
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) handleReawakenedNarratives(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 20)
	narratives, err := s.store.GetReawakenedNarratives(limit)
	if err != nil {
		logger.Error("failed to list reawakened narratives", err)
		narratives = nil
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"data": emptyIfNil(narratives)})
}

func (s *Server) handleGetNarrative(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	narrative, err := s.store.GetNarrative(id)
	if err != nil {
		logger.Error("failed to load narrative", err, "id", id)
		s.respondError(w, http.StatusInternalServerError, "failed to load narrative")
		return
	}
	if narrative == nil {
		s.respondError(w, http.StatusNotFound, "narrative not found")
		return
	}
	s.respondJSON(w, http.StatusOK, narrative)
}

// handleNarrativeTimeline returns the per-day activity timeline plus
// the lifecycle history for one narrative.
func (s *Server) handleNarrativeTimeline(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	narrative, err := s.store.GetNarrative(id)
	if err != nil {
		logger.Error("failed to load narrative", err, "id", id)
		s.respondError(w, http.StatusInternalServerError, "failed to load narrative")
		return
	}
	if narrative == nil {
		s.respondError(w, http.StatusNotFound, "narrative not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"id":                narrative.ID,
		"title":             narrative.Title,
		"lifecycle_state":   narrative.LifecycleState,
		"timeline":          narrative.TimelineData,
		"lifecycle_history": narrative.LifecycleHistory,
		"days_active":       narrative.DaysActive,
	})
}

func (s *Server) handleNarrativeArticles(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	articles, err := s.store.GetArticlesByNarrative(id)
	if err != nil {
		logger.Error("failed to load narrative articles", err, "id", id)
		articles = nil
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"data": emptyIfNil(articles)})
}

// handleTrending handles GET /api/signals/trending. The window query
// param selects 24h, 7d or 30d.
func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	window := r.URL.Query().Get("window")
	if window == "" {
		window = core.Window24h
	}
	if _, ok := core.WindowHours[window]; !ok {
		s.respondError(w, http.StatusBadRequest, "unknown window: "+window)
		return
	}
	limit := queryInt(r, "limit", 20)

	trending, err := s.scorer.Trending(window, limit, s.minScore)
	if err != nil {
		logger.Error("failed to load trending entities", err, "window", window)
		trending = nil
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"window": window,
		"data":   emptyIfNil(trending),
	})
}

func (s *Server) handleGetSignal(w http.ResponseWriter, r *http.Request) {
	entity := chi.URLParam(r, "entity")
	score, err := s.store.GetSignalScore(entity)
	if err != nil {
		logger.Error("failed to load signal score", err, "entity", entity)
		s.respondError(w, http.StatusInternalServerError, "failed to load signal score")
		return
	}
	if score == nil {
		s.respondError(w, http.StatusNotFound, "no signal score for entity")
		return
	}
	s.respondJSON(w, http.StatusOK, score)
}

// handleListAlerts returns unresolved alerts from the last 7 days.
func (s *Server) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 168)
	limit := queryInt(r, "limit", 100)
	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	alerts, err := s.store.GetRecentAlerts(cutoff, limit)
	if err != nil {
		logger.Error("failed to list alerts", err)
		alerts = nil
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"data": emptyIfNil(alerts)})
}

func (s *Server) handleResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.store.ResolveAlert(id); err != nil {
		logger.Error("failed to resolve alert", err, "id", id)
		s.respondError(w, http.StatusInternalServerError, "failed to resolve alert")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"resolved": id})
}

func (s *Server) handleRecentArticles(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	articles, err := s.store.GetRecentArticles(limit)
	if err != nil {
		logger.Error("failed to list recent articles", err)
		articles = nil
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"data": emptyIfNil(articles)})
}

func (s *Server) handleListFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := s.store.GetActiveFeeds()
	if err != nil {
		logger.Error("failed to list feeds", err)
		feeds = nil
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"data": emptyIfNil(feeds)})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.GetStats()
	if err != nil {
		logger.Error("failed to load store stats", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load stats")
		return
	}
	s.respondJSON(w, http.StatusOK, stats)
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	hits, misses := s.cache.Stats()
	size, err := s.store.CacheSize()
	if err != nil {
		logger.Error("failed to load cache size", err)
	}
	s.respondJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"hit_rate": s.cache.HitRate(),
		"entries":  size,
	})
}

func (s *Server) handleCachePurge(w http.ResponseWriter, r *http.Request) {
	purged, err := s.cache.Purge()
	if err != nil {
		logger.Error("cache purge failed", err)
		s.respondError(w, http.StatusInternalServerError, "cache purge failed")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"purged": purged})
}

// handleCosts returns LLM spend aggregates. The hours query param
// bounds the window, defaulting to 30 days.
func (s *Server) handleCosts(w http.ResponseWriter, r *http.Request) {
	hours := queryInt(r, "hours", 30*24)
	since := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)

	summary, err := s.store.GetCostSummary(since)
	if err != nil {
		logger.Error("failed to load cost summary", err)
		s.respondError(w, http.StatusInternalServerError, "failed to load cost summary")
		return
	}
	s.respondJSON(w, http.StatusOK, summary)
}

// handleTriggerCycle forces one worker cycle by name.
func (s *Server) handleTriggerCycle(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	var trigger func(ctx context.Context) error
	switch name {
	case "ingest":
		trigger = s.triggers.Ingest
	case "enrich":
		trigger = s.triggers.Enrich
	case "detect":
		trigger = s.triggers.Detect
	case "consolidate":
		trigger = s.triggers.Consolidate
	default:
		s.respondError(w, http.StatusNotFound, "unknown cycle: "+name)
		return
	}
	if trigger == nil {
		s.respondError(w, http.StatusServiceUnavailable, "cycle not available: "+name)
		return
	}

	if err := trigger(r.Context()); err != nil {
		logger.Error("forced cycle failed", err, "cycle", name)
		s.respondError(w, http.StatusInternalServerError, "cycle failed: "+err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"cycle": name, "status": "complete"})
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode response", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{"error": message})
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func emptyIfNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
