package handlers

import (
	"net/http"

	"github.com/AnshRaj112/astroguide-backend/internal/models"
	"github.com/AnshRaj112/astroguide-backend/internal/quota"
)

// GetUsage answers GET /api/usage with every daily counter of the caller.
func (h *Handler) GetUsage(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	usage := make([]models.UsageSummary, 0, 2)
	for _, c := range []struct {
		activity string
		m        *quota.Manager
	}{
		{quota.TarotActivity, h.TarotQuota},
		{quota.AppActivity, h.AppQuota},
	} {
		if c.m == nil {
			continue
		}
		snap := c.m.Tracker(quota.Key(c.activity, id)).Load(r.Context())
		usage = append(usage, snap.Summary(c.activity))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"usage":   usage,
	})
}
