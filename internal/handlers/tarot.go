package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/AnshRaj112/astroguide-backend/internal/models"
	"github.com/AnshRaj112/astroguide-backend/internal/quota"
	"github.com/AnshRaj112/astroguide-backend/internal/tarot"
)

// GetTarotDeck answers GET /api/tarot/deck with the full catalog.
func (h *Handler) GetTarotDeck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"cards":   h.Deck,
	})
}

// GetTarotSpread answers GET /api/tarot/spreads/{spread}.
func (h *Handler) GetTarotSpread(w http.ResponseWriter, r *http.Request) {
	s, err := tarot.ParseSpread(chi.URLParam(r, "spread"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Unknown spread")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"spread":  s,
		"count":   s.Count(),
	})
}

// GetTarotUsage answers GET /api/tarot/usage with today's draw counter.
func (h *Handler) GetTarotUsage(w http.ResponseWriter, r *http.Request) {
	snap := h.TarotQuota.Tracker(quota.Key(quota.TarotActivity, identity(r))).Load(r.Context())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"limit":     snap.Limit,
		"used":      snap.Count,
		"remaining": snap.Remaining,
	})
}

type drawRequest struct {
	Spread string  `json:"spread"`
	Intent string  `json:"intent"`
	DOB    string  `json:"dob"`
	Seed   *uint64 `json:"seed,omitempty"`
}

// PostTarotDraw answers POST /api/tarot/draw. The daily counter is checked
// before drawing and only incremented once a reading exists.
func (h *Handler) PostTarotDraw(w http.ResponseWriter, r *http.Request) {
	var body drawRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	spread, err := tarot.ParseSpread(body.Spread)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown spread")
		return
	}

	ctx := r.Context()
	id := identity(r)
	tracker := h.TarotQuota.Tracker(quota.Key(quota.TarotActivity, id))
	tracker.Load(ctx)
	if tracker.Remaining() <= 0 {
		writeError(w, http.StatusTooManyRequests, tarot.LimitReachedMessage)
		return
	}

	reading, err := h.Drawer.Draw(tarot.Request{
		Spread: spread,
		Intent: body.Intent,
		DOB:    trimmed(body.DOB),
		Seed:   body.Seed,
	})
	switch {
	case errors.Is(err, tarot.ErrNotReady):
		writeError(w, http.StatusBadRequest, "Enter your DOB as YYYY-MM-DD and an intent before drawing.")
		return
	case err != nil:
		h.Logger.Error("tarot draw failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to draw cards")
		return
	}

	snap, err := tracker.Record(ctx)
	if errors.Is(err, quota.ErrExhausted) {
		// another request used the last draw in between
		writeError(w, http.StatusTooManyRequests, tarot.LimitReachedMessage)
		return
	}
	if err != nil {
		h.Logger.Error("tarot usage not recorded", zap.Error(err))
	}

	h.saveReading(ctx, id, models.Reading{
		ReadingID: reading.ID,
		Kind:      models.ReadingKindTarot,
		CreatedAt: reading.CreatedAt,
		Payload:   reading,
	})
	h.countAppUsage(ctx, id)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"reading":   reading,
		"remaining": snap.Remaining,
	})
}
