package catalog

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

type TrackSearchItem struct {
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	Provider   string `json:"provider"`
	ExternalID string `json:"externalId"`
	CoverURL   string `json:"coverUrl"`
	PreviewURL string `json:"previewUrl,omitempty"`
	DurationMs int    `json:"durationMs,omitempty"`
}

type Provider interface {
	SearchTracks(ctx context.Context, query string, limit int) ([]TrackSearchItem, error)
}

type Server struct {
	provider Provider
	rdb      *redis.Client
}

func NewServer(p Provider, rdb *redis.Client) *Server {
	return &Server{
		provider: p,
		rdb:      rdb,
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/search", s.handleSearch)
	return r
}

const searchCacheTTL = 5 * time.Minute

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("query"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	if len(q) > 200 {
		writeError(w, http.StatusBadRequest, "query is too long")
		return
	}

	limit := 10
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if v, err := strconv.Atoi(limitStr); err == nil && v > 0 && v <= 25 {
			limit = v
		}
	}

	cacheKey := "catalog:search:" + strconv.Itoa(limit) + ":" + strings.ToLower(q)
	if items, ok := s.cachedSearch(r.Context(), cacheKey); ok {
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
		return
	}

	items, err := s.provider.SearchTracks(r.Context(), q, limit)
	if err != nil {
		log.Printf("catalog: search %q: %v", q, err)
		writeError(w, http.StatusBadGateway, "failed to query provider")
		return
	}

	s.cacheSearch(r.Context(), cacheKey, items)
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) cachedSearch(ctx context.Context, key string) ([]TrackSearchItem, bool) {
	if s.rdb == nil {
		return nil, false
	}
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	var items []TrackSearchItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

func (s *Server) cacheSearch(ctx context.Context, key string, items []TrackSearchItem) {
	if s.rdb == nil {
		return
	}
	raw, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, key, raw, searchCacheTTL).Err(); err != nil {
		log.Printf("catalog: cache write: %v", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
