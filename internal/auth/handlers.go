package auth

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"

	"queue-service/internal/queue"
)

type credentials struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	email := strings.TrimSpace(strings.ToLower(creds.Email))
	displayName := strings.TrimSpace(creds.DisplayName)
	if email == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}
	if len(creds.Password) < 8 {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if displayName == "" {
		displayName, _, _ = strings.Cut(email, "@")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Printf("auth: hash password: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var userID string
	err = s.db.QueryRow(r.Context(), `
		INSERT INTO users (display_name, email, password_digest, auth_provider)
		VALUES ($1, $2, $3, 'general_user')
		RETURNING id
	`, displayName, email, string(hash)).Scan(&userID)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "duplicate key") {
			writeError(w, http.StatusConflict, "email already registered")
			return
		}
		log.Printf("auth: register insert: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := queue.InitializeBalance(r.Context(), s.db, userID); err != nil {
		log.Printf("auth: initialize balance: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	tokens, err := s.issueToken(userID, displayName, "user")
	if err != nil {
		log.Printf("auth: issue token: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, tokens)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	email := strings.TrimSpace(strings.ToLower(creds.Email))
	if email == "" || creds.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	var (
		userID, displayName, role string
		digest                    *string
	)
	err := s.db.QueryRow(r.Context(), `
		SELECT id, display_name, role, password_digest
		FROM users
		WHERE email = $1
	`, email).Scan(&userID, &displayName, &role, &digest)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err != nil {
		log.Printf("auth: login lookup: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if digest == nil {
		writeError(w, http.StatusBadRequest, "password login not available for this account")
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*digest), []byte(creds.Password)); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	tokens, err := s.issueToken(userID, displayName, role)
	if err != nil {
		log.Printf("auth: issue token: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, tokens)
}

// handleGuest creates a throwaway user with a generated display name.
func (s *Server) handleGuest(w http.ResponseWriter, r *http.Request) {
	var body struct {
		DisplayName string `json:"displayName"`
	}
	// Body is optional for guests.
	_ = json.NewDecoder(r.Body).Decode(&body)

	displayName := strings.TrimSpace(body.DisplayName)
	if displayName == "" {
		displayName = "Guest_" + uuid.NewString()[:8]
	}

	var userID string
	err := s.db.QueryRow(r.Context(), `
		INSERT INTO users (display_name, auth_provider)
		VALUES ($1, 'guest')
		RETURNING id
	`, displayName).Scan(&userID)
	if err != nil {
		log.Printf("auth: guest insert: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := queue.InitializeBalance(r.Context(), s.db, userID); err != nil {
		log.Printf("auth: guest initialize balance: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	tokens, err := s.issueToken(userID, displayName, "user")
	if err != nil {
		log.Printf("auth: issue token: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusCreated, tokens)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	userID := r.Header.Get("X-User-Id")

	var (
		displayName, role string
		email             *string
		balance           int
	)
	err := s.db.QueryRow(r.Context(), `
		SELECT display_name, role, email, balance_cents
		FROM users
		WHERE id = $1
	`, userID).Scan(&displayName, &role, &email, &balance)
	if errors.Is(err, pgx.ErrNoRows) {
		writeError(w, http.StatusNotFound, "user not found")
		return
	}
	if err != nil {
		log.Printf("auth: me lookup: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	resp := map[string]any{
		"userId":       userID,
		"displayName":  displayName,
		"role":         role,
		"balanceCents": balance,
	}
	if email != nil {
		resp["email"] = *email
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
