package api

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ticketTTL is how long a WebSocket ticket stays redeemable. Browsers
// dial within milliseconds of fetching one; sixty seconds is generous.
const ticketTTL = 60 * time.Second

// ticketBytes is the entropy per ticket (hex-encoded to twice this).
const ticketBytes = 32

type loginRequest struct {
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// handleLogin exchanges the configured password for a bearer token.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Auth.Enabled {
		writeBadRequest(w, "authentication is disabled")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Password), []byte(s.cfg.Auth.Password)) != 1 {
		s.log.Warn("failed login attempt", "remote", r.RemoteAddr)
		writeUnauthorized(w, "invalid password")
		return
	}

	ttl := time.Duration(s.cfg.Auth.TokenTTLMinutes) * time.Minute
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"sub": "wyvern",
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Auth.JWTSecret))
	if err != nil {
		s.log.Error("token signing failed", "error", err)
		writeInternalError(w, "could not issue token")
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken: signed,
		TokenType:   "Bearer",
		ExpiresIn:   int(ttl.Seconds()),
	})
}

// handleWSTicket issues a single-use WebSocket ticket. The route sits
// behind the auth middleware, so holding a valid bearer token is the
// only requirement.
func (s *Server) handleWSTicket(w http.ResponseWriter, r *http.Request) {
	b := make([]byte, ticketBytes)
	if _, err := rand.Read(b); err != nil {
		writeInternalError(w, "could not issue ticket")
		return
	}
	ticket := hex.EncodeToString(b)

	s.ticketsMu.Lock()
	s.tickets[ticket] = time.Now().Add(ticketTTL)
	s.ticketsMu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"ticket":     ticket,
		"expires_in": int(ticketTTL.Seconds()),
	})
}

// redeemTicket consumes a ticket. Valid once; a second redemption of
// the same ticket fails.
func (s *Server) redeemTicket(ticket string) bool {
	s.ticketsMu.Lock()
	defer s.ticketsMu.Unlock()

	expiry, ok := s.tickets[ticket]
	if !ok {
		return false
	}
	delete(s.tickets, ticket)
	return time.Now().Before(expiry)
}

// cleanTicketsLoop drops expired tickets that were never redeemed.
func (s *Server) cleanTicketsLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			s.ticketsMu.Lock()
			for t, expiry := range s.tickets {
				if now.After(expiry) {
					delete(s.tickets, t)
				}
			}
			s.ticketsMu.Unlock()
		}
	}
}
