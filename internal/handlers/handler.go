package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/AnshRaj112/astroguide-backend/internal/chat"
	"github.com/AnshRaj112/astroguide-backend/internal/insights"
	"github.com/AnshRaj112/astroguide-backend/internal/models"
	"github.com/AnshRaj112/astroguide-backend/internal/quota"
	"github.com/AnshRaj112/astroguide-backend/internal/services"
	"github.com/AnshRaj112/astroguide-backend/internal/tarot"
	"github.com/AnshRaj112/astroguide-backend/pkg/clientid"
)

const (
	maxJSONBody  = 1 << 20
	historyWrite = 3 * time.Second
)

// Deps are the collaborators shared by all handlers. History and Archive
// may be nil when MongoDB or Cloudinary are not configured.
type Deps struct {
	Logger         *zap.Logger
	TarotQuota     *quota.Manager
	AppQuota       *quota.Manager
	Drawer         *tarot.Drawer
	Deck           []tarot.Card
	Insights       *insights.Client
	Chat           *chat.Client
	History        *services.ReadingHistory
	Archive        *services.ImageArchive
	Flags          *services.UserFlags
	AllowedOrigins []string
}

type Handler struct {
	Deps
}

func New(d Deps) *Handler {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	return &Handler{Deps: d}
}

func writeJSON(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]interface{}{"success": false, "message": message})
}

// decodeJSON reads a JSON body of at most maxJSONBody bytes into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}

// identity returns the hashed caller id set by the identity middleware.
func identity(r *http.Request) string {
	if id, ok := clientid.FromContext(r.Context()); ok {
		return id
	}
	return "anonymous"
}

// saveReading stores a completed reading. Failures are logged and ignored.
func (h *Handler) saveReading(ctx context.Context, clientID string, rd models.Reading) {
	if h.History == nil {
		return
	}
	rd.ClientID = clientID
	ctx, cancel := context.WithTimeout(ctx, historyWrite)
	defer cancel()
	if err := h.History.Save(ctx, &rd); err != nil {
		h.Logger.Warn("failed to save reading",
			zap.String("kind", string(rd.Kind)),
			zap.Error(err),
		)
	}
}

// countAppUsage records one completed reading on the app counter. The app
// counter is informational and never blocks a reading.
func (h *Handler) countAppUsage(ctx context.Context, clientID string) {
	if h.AppQuota == nil {
		return
	}
	t := h.AppQuota.Tracker(quota.Key(quota.AppActivity, clientID))
	t.Load(ctx)
	if _, err := t.Record(ctx); err != nil {
		h.Logger.Debug("app usage not recorded", zap.Error(err))
	}
}

// Health is the liveness probe.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("OK"))
}

func trimmed(s string) string {
	return strings.TrimSpace(s)
}
