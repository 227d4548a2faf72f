package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/AnshRaj112/astroguide-backend/internal/handlers"
)

// SetupRoutes registers every API route on r. metrics may be nil.
func SetupRoutes(r chi.Router, h *handlers.Handler, metrics http.Handler) {
	r.Get("/health", handlers.Health)
	if metrics != nil {
		r.Method(http.MethodGet, "/metrics", metrics)
	}

	// Astrology
	r.Get("/api/horoscope", h.GetHoroscope)
	r.Post("/api/numerology", h.PostNumerology)
	r.Get("/api/compatibility", h.GetCompatibility)

	// Tarot
	r.Get("/api/tarot/deck", h.GetTarotDeck)
	r.Get("/api/tarot/spreads/{spread}", h.GetTarotSpread)
	r.Get("/api/tarot/usage", h.GetTarotUsage)
	r.Post("/api/tarot/draw", h.PostTarotDraw)

	// Palm and face readings
	r.Post("/api/palm", h.PostPalm)
	r.Post("/api/face", h.PostFace)

	// Chat
	r.Post("/api/chat", h.PostChat)
	r.Get("/ws/chat", h.ChatWebSocket)

	// Usage, history and placeholder account flags
	r.Get("/api/usage", h.GetUsage)
	r.Get("/api/readings", h.GetReadings)
	r.Get("/api/user", h.GetUser)
	r.Post("/api/user/login", h.PostLogin)
	r.Post("/api/user/logout", h.PostLogout)
	r.Post("/api/user/premium", h.PostPremium)
}
