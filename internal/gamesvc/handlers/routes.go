package handlers

import (
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"
)

func (h *Handler) SetRoutes(r *chi.Mux) {
	r.Route("/v1", func(r chi.Router) {

		// public routes here
		r.Get("/hands", h.HandsHandler)

		// Secure routes
		r.Group(func(r chi.Router) {
			r.Use(jwtauth.Verifier(h.tokenAuth))
			r.Use(jwtauth.Authenticator)

			r.Get("/health", h.HealthHandler)
			r.Get("/games/{gameID}", h.GameHandler)
			r.Get("/games/{gameID}/messages", h.MessagesHandler)
		})
	})
}

func (h *Handler) InitAuth(secret string, debug bool) {
	h.tokenAuth = jwtauth.New("HS256", []byte(secret), nil)
	if !debug {
		return
	}

	expirationTime := time.Now().Add(7 * 24 * time.Hour).Unix()
	_, tokenString, _ := h.tokenAuth.Encode(map[string]interface{}{
		"service_id": 8003022,
		"exp":        expirationTime,
	})

	// For debugging only
	log.Infof("DEBUG: JWT for testing expires soon : %s", tokenString)
}
