package queue

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
)

type Server struct {
	db  DB
	rdb *redis.Client
}

func NewServer(db DB, rdb *redis.Client) *Server {
	return &Server{
		db:  db,
		rdb: rdb,
	}
}

// Router builds the queue HTTP surface. Read endpoints stay public so a
// shared venue screen can render the queue without a token; identity guards
// everything that spends, votes, or manages.
func (s *Server) Router(identity func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)

	r.Post("/join", s.handleJoinByCode)

	r.Get("/sessions/{id}", s.handleGetSession)
	r.Get("/sessions/{id}/queue", s.handleGetQueue)
	r.Get("/sessions/{id}/state", s.handlePlaybackState)

	r.Get("/songs/price_preview", s.handlePricePreview)

	r.Route("/api/pricing", func(r chi.Router) {
		r.Get("/current_prices", s.handleCurrentPrices)
		r.Get("/position_price", s.handlePositionPrice)
		r.Get("/factors", s.handlePricingFactors)
	})

	r.Group(func(r chi.Router) {
		if identity != nil {
			r.Use(identity)
		}

		r.Post("/sessions/{id}/items", s.handleCreateItem)

		r.Route("/items/{id}", func(r chi.Router) {
			r.Delete("/", s.handleDeleteItem)
			r.Patch("/vote", s.handleVoteItem)
			r.Post("/upvote", s.handleUpvoteItem)
			r.Post("/downvote", s.handleDownvoteItem)
		})

		r.Get("/me/balance", s.handleMyBalance)
		r.Get("/users/{id}/summary", s.handleUserSummary)
		r.Get("/users/{id}/transactions", s.handleUserTransactions)

		r.Route("/host", func(r chi.Router) {
			r.Post("/venues", s.handleCreateVenue)
			r.Patch("/venues/{id}/pricing", s.handleUpdateVenuePricing)
			r.Post("/venues/{id}/sessions", s.handleCreateSession)

			r.Patch("/sessions/{id}/pause", s.handlePauseSession)
			r.Patch("/sessions/{id}/resume", s.handleResumeSession)
			r.Patch("/sessions/{id}/end", s.handleEndSession)
			r.Patch("/sessions/{id}/regenerate_code", s.handleRegenerateCode)

			r.Post("/sessions/{id}/playback/next", s.handlePlayNext)
			r.Post("/sessions/{id}/playback/stop", s.handleStopPlayback)
		})

		r.Post("/admin/users/{id}/credit", s.handleAdminCredit)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "queue-service",
	})
}
