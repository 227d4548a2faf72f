package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/AnshRaj112/astroguide-backend/internal/models"
	"github.com/AnshRaj112/astroguide-backend/internal/services"
)

// GetReadings answers GET /api/readings?before=<RFC3339>&limit=<n>, newest
// first.
func (h *Handler) GetReadings(w http.ResponseWriter, r *http.Request) {
	if h.History == nil {
		writeError(w, http.StatusServiceUnavailable, "Reading history is not available")
		return
	}
	q := r.URL.Query()

	var before *time.Time
	if raw := q.Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "before must be an RFC3339 timestamp")
			return
		}
		before = &t
	}
	var limit int64
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive number")
			return
		}
		limit = n
	}

	readings, hasMore, err := h.History.List(r.Context(), identity(r), before, limit)
	if errors.Is(err, services.ErrHistoryDisabled) {
		writeError(w, http.StatusServiceUnavailable, "Reading history is not available")
		return
	}
	if err != nil {
		h.Logger.Error("failed to load readings", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to load readings")
		return
	}
	if readings == nil {
		readings = []models.Reading{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"readings": readings,
		"hasMore":  hasMore,
	})
}
