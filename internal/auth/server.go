package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"

	"queue-service/internal/queue"
)

type Server struct {
	db        queue.DB
	jwtSecret []byte
	accessTTL time.Duration
}

func NewServer(db queue.DB, jwtSecret []byte, accessTTL time.Duration) *Server {
	if accessTTL == 0 {
		accessTTL = 12 * time.Hour
	}
	return &Server{
		db:        db,
		jwtSecret: jwtSecret,
		accessTTL: accessTTL,
	}
}

func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Post("/register", s.handleRegister)
	r.Post("/login", s.handleLogin)
	r.Post("/guest", s.handleGuest)
	r.Group(func(r chi.Router) {
		r.Use(s.Identity)
		r.Get("/me", s.handleMe)
	})
	return r
}

// Identity resolves a bearer token and stamps the user id onto the
// request as X-User-Id, the header downstream handlers trust. Requests
// without a valid token are rejected.
func (s *Server) Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			writeError(w, http.StatusUnauthorized, "missing Authorization header")
			return
		}
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			writeError(w, http.StatusUnauthorized, "invalid Authorization header")
			return
		}

		claims := &TokenClaims{}
		token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
			return s.jwtSecret, nil
		})
		if err != nil || !token.Valid || claims.UserID == "" {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		r.Header.Set("X-User-Id", claims.UserID)
		next.ServeHTTP(w, r)
	})
}
