package handlers

import (
	"net/http"
	"time"

	"github.com/AnshRaj112/astroguide-backend/internal/divination"
	"github.com/AnshRaj112/astroguide-backend/internal/models"
)

// GetHoroscope answers GET /api/horoscope?sign=Leo or ?dob=YYYY-MM-DD.
// Without either parameter the default horoscope is returned.
func (h *Handler) GetHoroscope(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var sign divination.Sign

	if label := trimmed(q.Get("sign")); label != "" {
		s, ok := divination.ParseSign(label)
		if !ok {
			writeError(w, http.StatusBadRequest, "Unknown zodiac sign")
			return
		}
		sign = s
	} else if dob := trimmed(q.Get("dob")); dob != "" {
		s, ok := divination.ResolveSign(dob)
		if !ok {
			writeError(w, http.StatusBadRequest, "Enter DOB as YYYY-MM-DD to find your sign.")
			return
		}
		sign = s
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":   true,
		"sign":      sign,
		"horoscope": divination.Horoscope(sign),
	})
}

type numerologyRequest struct {
	Name string `json:"name"`
	DOB  string `json:"dob"`
}

type numberMeaning struct {
	Value   int    `json:"value"`
	Meaning string `json:"meaning"`
}

func explain(n *int) *numberMeaning {
	if n == nil {
		return nil
	}
	return &numberMeaning{Value: *n, Meaning: divination.Meaning(*n)}
}

// PostNumerology answers POST /api/numerology {name, dob}. Each number is
// null when its input cannot produce it.
func (h *Handler) PostNumerology(w http.ResponseWriter, r *http.Request) {
	var body numerologyRequest
	if !decodeJSON(w, r, &body) {
		return
	}
	body.Name = trimmed(body.Name)
	body.DOB = trimmed(body.DOB)
	if body.Name == "" && body.DOB == "" {
		writeError(w, http.StatusBadRequest, "Name and dob required")
		return
	}

	p := divination.NewProfile(body.Name, body.DOB)
	result := map[string]interface{}{
		"lifePath":   explain(p.LifePath),
		"expression": explain(p.Expression),
		"soulUrge":   explain(p.SoulUrge),
	}

	id := identity(r)
	h.saveReading(r.Context(), id, models.Reading{
		Kind:      models.ReadingKindNumerology,
		CreatedAt: time.Now().UTC(),
		Payload:   result,
	})
	h.countAppUsage(r.Context(), id)

	result["success"] = true
	writeJSON(w, http.StatusOK, result)
}

// GetCompatibility answers GET /api/compatibility?a=Aries&b=Leo.
func (h *Handler) GetCompatibility(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	a, okA := divination.ParseSign(q.Get("a"))
	b, okB := divination.ParseSign(q.Get("b"))
	if !okA || !okB {
		writeError(w, http.StatusBadRequest, "Two valid zodiac signs required")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"a":       a,
		"b":       b,
		"score":   divination.Score(a, b),
	})
}
