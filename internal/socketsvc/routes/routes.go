package routes

import (
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/avvvet/bluff-services/internal/socketsvc/handlers"
)

var tokenAuth *jwtauth.JWTAuth

func SetRoutes(r *chi.Mux, h *handlers.Handler) {
	r.Route("/v1", func(r chi.Router) {
		r.Get("/ws", h.HandleWebSocket)
		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Get("/health", h.HealthHandler)
		})
	})
}

func InitAuth(secret string, debug bool) *jwtauth.JWTAuth {
	tokenAuth = jwtauth.New("HS256", []byte(secret), nil)
	if !debug {
		return tokenAuth
	}

	expirationTime := time.Now().Add(7 * 24 * time.Hour).Unix()
	_, tokenString, _ := tokenAuth.Encode(map[string]interface{}{
		"service_id": 8003022,
		"exp":        expirationTime,
	})

	// For debugging only
	log.Infof("DEBUG: JWT for testing expires soon : %s", tokenString)
	return tokenAuth
}
