package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnshRaj112/astroguide-backend/internal/chat"
	"github.com/AnshRaj112/astroguide-backend/internal/divination"
	"github.com/AnshRaj112/astroguide-backend/internal/handlers"
	"github.com/AnshRaj112/astroguide-backend/internal/insights"
	"github.com/AnshRaj112/astroguide-backend/internal/kvstore"
	"github.com/AnshRaj112/astroguide-backend/internal/middleware"
	"github.com/AnshRaj112/astroguide-backend/internal/models"
	"github.com/AnshRaj112/astroguide-backend/internal/quota"
	"github.com/AnshRaj112/astroguide-backend/internal/routes"
	"github.com/AnshRaj112/astroguide-backend/internal/services"
	"github.com/AnshRaj112/astroguide-backend/internal/tarot"
	"github.com/AnshRaj112/astroguide-backend/pkg/clientid"
)

func newRouter(t *testing.T) http.Handler {
	t.Helper()
	store, err := kvstore.NewMemoryStore(128)
	require.NoError(t, err)
	return newRouterWithStore(t, store)
}

func newRouterWithStore(t *testing.T, store kvstore.Store) http.Handler {
	t.Helper()
	deck, err := tarot.Deck()
	require.NoError(t, err)
	clock := quota.WithClock(func() time.Time { return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC) })

	h := handlers.New(handlers.Deps{
		TarotQuota:     quota.NewManager(store, quota.DefaultTarotLimit, clock),
		AppQuota:       quota.NewManager(store, 50, clock),
		Drawer:         tarot.NewDrawer(deck),
		Deck:           deck,
		Insights:       insights.NewClient("", "", time.Second),
		Chat:           chat.NewClient("", "", "", time.Second),
		Flags:          services.NewUserFlags(store, nil),
		AllowedOrigins: []string{"https://app.example"},
	})

	r := chi.NewRouter()
	r.Use(middleware.Identity(clientid.NewResolver("test")))
	routes.SetupRoutes(r, h, nil)
	return r
}

func do(t *testing.T, h http.Handler, method, path, body, device string) (int, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if device != "" {
		req.Header.Set(clientid.DeviceHeader, device)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := map[string]interface{}{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func TestHealth(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(t).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHoroscope(t *testing.T) {
	r := newRouter(t)

	code, body := do(t, r, http.MethodGet, "/api/horoscope?sign=leo", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Leo", body["sign"])
	assert.NotEmpty(t, body["horoscope"].(map[string]interface{})["daily"])

	code, body = do(t, r, http.MethodGet, "/api/horoscope?dob=1990-08-01", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Leo", body["sign"])

	code, body = do(t, r, http.MethodGet, "/api/horoscope?dob=08/01/1990", "", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Enter DOB as YYYY-MM-DD to find your sign.", body["message"])

	code, _ = do(t, r, http.MethodGet, "/api/horoscope?sign=ophiuchus", "", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, r, http.MethodGet, "/api/horoscope", "", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, divination.Horoscope("").Daily, body["horoscope"].(map[string]interface{})["daily"])
}

func TestNumerology(t *testing.T) {
	r := newRouter(t)

	code, body := do(t, r, http.MethodPost, "/api/numerology", `{"name":" ","dob":""}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "Name and dob required", body["message"])

	code, _ = do(t, r, http.MethodPost, "/api/numerology", `{`, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, r, http.MethodPost, "/api/numerology", `{"name":"Ada Lovelace","dob":"1990-08-01"}`, "dev-n")
	require.Equal(t, http.StatusOK, code)
	lp, ok := divination.LifePath("1990-08-01")
	require.True(t, ok)
	lifePath := body["lifePath"].(map[string]interface{})
	assert.Equal(t, float64(lp), lifePath["value"])
	assert.Equal(t, divination.Meaning(lp), lifePath["meaning"])
	assert.NotNil(t, body["expression"])

	code, body = do(t, r, http.MethodPost, "/api/numerology", `{"name":"Ada","dob":"1990-8-1"}`, "")
	require.Equal(t, http.StatusOK, code)
	assert.Nil(t, body["lifePath"])
	assert.NotNil(t, body["soulUrge"])
}

func TestCompatibility(t *testing.T) {
	r := newRouter(t)

	code, body := do(t, r, http.MethodGet, "/api/compatibility?a=aries&b=LEO", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(divination.Score(divination.Aries, divination.Leo)), body["score"])

	code, _ = do(t, r, http.MethodGet, "/api/compatibility?a=aries", "", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestTarotCatalog(t *testing.T) {
	r := newRouter(t)

	code, body := do(t, r, http.MethodGet, "/api/tarot/deck", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["cards"], 22)

	code, body = do(t, r, http.MethodGet, "/api/tarot/spreads/celtic", "", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "Celtic", body["spread"])
	assert.Equal(t, float64(10), body["count"])

	code, _ = do(t, r, http.MethodGet, "/api/tarot/spreads/horseshoe", "", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestTarotDraw_DailyLimit(t *testing.T) {
	r := newRouter(t)
	draw := `{"spread":"Quick","intent":"career","dob":"1990-08-01"}`

	for want := 2; want >= 0; want-- {
		code, body := do(t, r, http.MethodPost, "/api/tarot/draw", draw, "dev-a")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, float64(want), body["remaining"])
		assert.Len(t, body["reading"].(map[string]interface{})["cards"], 3)
	}

	code, body := do(t, r, http.MethodPost, "/api/tarot/draw", draw, "dev-a")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, tarot.LimitReachedMessage, body["message"])

	_, body = do(t, r, http.MethodGet, "/api/tarot/usage", "", "dev-a")
	assert.Equal(t, float64(3), body["used"])
	assert.Equal(t, float64(0), body["remaining"])

	// another device has its own counter
	code, _ = do(t, r, http.MethodPost, "/api/tarot/draw", draw, "dev-b")
	assert.Equal(t, http.StatusOK, code)
}

// downStore fails every read and write.
type downStore struct{}

func (downStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("store down")
}

func (downStore) Set(context.Context, string, string) error { return errors.New("store down") }

func TestTarotDraw_LimitHoldsWhenStoreFails(t *testing.T) {
	r := newRouterWithStore(t, downStore{})
	draw := `{"spread":"Daily","intent":"career","dob":"1990-08-01"}`

	for want := 2; want >= 0; want-- {
		code, body := do(t, r, http.MethodPost, "/api/tarot/draw", draw, "dev-x")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, float64(want), body["remaining"])
	}
	for i := 0; i < 3; i++ {
		code, body := do(t, r, http.MethodPost, "/api/tarot/draw", draw, "dev-x")
		assert.Equal(t, http.StatusTooManyRequests, code)
		assert.Equal(t, tarot.LimitReachedMessage, body["message"])
	}

	assert.Equal(t, float64(3), appUsed(t, r, "dev-x"))
}

func appUsed(t *testing.T, r http.Handler, device string) interface{} {
	t.Helper()
	_, body := do(t, r, http.MethodGet, "/api/usage", "", device)
	usage := body["usage"].([]interface{})
	require.Len(t, usage, 2)
	return usage[1].(map[string]interface{})["used"]
}

func tarotKey(device string) string {
	return quota.Key(quota.TarotActivity, clientid.NewResolver("test").Hash("dev:"+device))
}

func TestTarotDraw_ConcurrentLastDraw(t *testing.T) {
	store, err := kvstore.NewMemoryStore(128)
	require.NoError(t, err)
	r := newRouterWithStore(t, store)
	key := tarotKey("dev-r")
	require.NoError(t, store.Set(context.Background(), key, `{"date":"2026-10-18","count":2}`))

	const n = 8
	draw := `{"spread":"Daily","intent":"career","dob":"1990-08-01"}`
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/tarot/draw", strings.NewReader(draw))
			req.Header.Set(clientid.DeviceHeader, "dev-r")
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, req)
			codes[i] = rec.Code
		}()
	}
	wg.Wait()

	counts := map[int]int{}
	for _, c := range codes {
		counts[c]++
	}
	assert.Equal(t, 1, counts[http.StatusOK])
	assert.Equal(t, n-1, counts[http.StatusTooManyRequests])

	raw, found, err := store.Get(context.Background(), key)
	require.NoError(t, err)
	require.True(t, found)
	assert.JSONEq(t, `{"date":"2026-10-18","count":3}`, raw)
}

// replicaStore reports the tarot counter as used up on its second read,
// as if another server took the last draw after the first read.
type replicaStore struct {
	*kvstore.MemoryStore
	key   string
	mu    sync.Mutex
	reads int
}

func (s *replicaStore) Get(ctx context.Context, key string) (string, bool, error) {
	if key == s.key {
		s.mu.Lock()
		s.reads++
		reads := s.reads
		s.mu.Unlock()
		if reads == 2 {
			return `{"date":"2026-10-18","count":3}`, true, nil
		}
	}
	return s.MemoryStore.Get(ctx, key)
}

func TestTarotDraw_LastDrawTakenInBetween(t *testing.T) {
	mem, err := kvstore.NewMemoryStore(128)
	require.NoError(t, err)
	store := &replicaStore{MemoryStore: mem, key: tarotKey("dev-q")}
	r := newRouterWithStore(t, store)

	code, body := do(t, r, http.MethodPost, "/api/tarot/draw", `{"spread":"Daily","intent":"career","dob":"1990-08-01"}`, "dev-q")
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, tarot.LimitReachedMessage, body["message"])

	// the rejected draw is not counted as app usage
	assert.Equal(t, float64(0), appUsed(t, r, "dev-q"))
}

func TestTarotDraw_NotReadyCountsNothing(t *testing.T) {
	r := newRouter(t)

	code, _ := do(t, r, http.MethodPost, "/api/tarot/draw", `{"spread":"Daily","intent":"","dob":"1990-08-01"}`, "dev-c")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, r, http.MethodPost, "/api/tarot/draw", `{"spread":"Daily","intent":"love","dob":"1990/08/01"}`, "dev-c")
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, r, http.MethodPost, "/api/tarot/draw", `{"spread":"Pyramid","intent":"love","dob":"1990-08-01"}`, "dev-c")
	assert.Equal(t, http.StatusBadRequest, code)

	_, body := do(t, r, http.MethodGet, "/api/tarot/usage", "", "dev-c")
	assert.Equal(t, float64(0), body["used"])
	assert.Equal(t, float64(3), body["remaining"])
}

func TestTarotDraw_SeedReplays(t *testing.T) {
	r := newRouter(t)
	draw := `{"spread":"Celtic","intent":"path","dob":"1990-08-01","seed":12345}`

	_, first := do(t, r, http.MethodPost, "/api/tarot/draw", draw, "dev-s")
	_, second := do(t, r, http.MethodPost, "/api/tarot/draw", draw, "dev-s")
	a := first["reading"].(map[string]interface{})
	b := second["reading"].(map[string]interface{})
	assert.Equal(t, float64(12345), a["seed"])
	assert.Equal(t, a["cards"], b["cards"])
	assert.NotEqual(t, a["id"], b["id"])
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func upload(t *testing.T, h http.Handler, path string, data []byte) (int, map[string]interface{}) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if data != nil {
		fw, err := mw.CreateFormFile("file", "photo.png")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	} else {
		require.NoError(t, mw.WriteField("note", "no file"))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	out := map[string]interface{}{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestPalmAndFace(t *testing.T) {
	r := newRouter(t)

	code, body := upload(t, r, "/api/palm", pngBytes(t, 1000, 1200))
	require.Equal(t, http.StatusOK, code)
	reading := body["reading"].(map[string]interface{})
	assert.Equal(t, "fallback", reading["source"])
	assert.Equal(t, false, reading["needsRetake"])
	assert.Len(t, reading["insights"], len(insights.Fallback(insights.Palm)))
	assert.NotEmpty(t, body["id"])

	code, body = upload(t, r, "/api/face", pngBytes(t, 200, 200))
	require.Equal(t, http.StatusOK, code)
	reading = body["reading"].(map[string]interface{})
	assert.Equal(t, true, reading["needsRetake"])
	assert.Equal(t, insights.DefaultRetakeReason(insights.Face), reading["retakeReason"])

	code, _ = upload(t, r, "/api/palm", nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = upload(t, r, "/api/face", bytes.Repeat([]byte{0xff}, handlers.MaxImageBytes+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, code)
}

func TestChatHTTP(t *testing.T) {
	r := newRouter(t)

	code, body := do(t, r, http.MethodPost, "/api/chat", `{"messages":[{"role":"user","content":"What does the Tower mean?"}]}`, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "fallback", body["source"])
	assert.Equal(t, chat.FallbackReply("What does the Tower mean?"), body["reply"])

	code, _ = do(t, r, http.MethodPost, "/api/chat", `{"messages":[]}`, "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, r, http.MethodPost, "/api/chat", `{"messages":[{"role":"oracle","content":"hi"}]}`, "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestChatWebSocket(t *testing.T) {
	srv := httptest.NewServer(newRouter(t))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	defer conn.Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))

	roundTrip := func(in models.ChatFrame) models.ChatFrame {
		require.NoError(t, conn.WriteJSON(in))
		var out models.ChatFrame
		require.NoError(t, conn.ReadJSON(&out))
		return out
	}

	assert.Equal(t, "pong", roundTrip(models.ChatFrame{Type: "ping"}).Type)

	reply := roundTrip(models.ChatFrame{Type: "message", Text: "Is today lucky?"})
	assert.Equal(t, "reply", reply.Type)
	assert.Equal(t, "fallback", reply.Source)
	assert.Equal(t, chat.FallbackReply("Is today lucky?"), reply.Text)

	assert.Equal(t, "error", roundTrip(models.ChatFrame{Type: "message", Text: "   "}).Type)
	assert.Equal(t, "error", roundTrip(models.ChatFrame{Type: "dance"}).Type)
}

func TestChatWebSocket_RejectsForeignOrigin(t *testing.T) {
	srv := httptest.NewServer(newRouter(t))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/chat"
	_, resp, err := websocket.DefaultDialer.Dial(url, http.Header{"Origin": []string{"https://evil.example"}})
	require.Error(t, err)
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestUsage(t *testing.T) {
	r := newRouter(t)
	_, _ = do(t, r, http.MethodPost, "/api/tarot/draw", `{"spread":"Daily","intent":"x","dob":"1990-08-01"}`, "dev-u")

	code, body := do(t, r, http.MethodGet, "/api/usage", "", "dev-u")
	require.Equal(t, http.StatusOK, code)
	usage := body["usage"].([]interface{})
	require.Len(t, usage, 2)

	tarotUsage := usage[0].(map[string]interface{})
	assert.Equal(t, quota.TarotActivity, tarotUsage["activity"])
	assert.Equal(t, float64(1), tarotUsage["used"])
	assert.Equal(t, "2026-10-18", tarotUsage["date"])

	appUsage := usage[1].(map[string]interface{})
	assert.Equal(t, quota.AppActivity, appUsage["activity"])
	assert.Equal(t, float64(1), appUsage["used"])
	assert.Equal(t, float64(49), appUsage["remaining"])
}

func TestUserFlags(t *testing.T) {
	r := newRouter(t)

	_, body := do(t, r, http.MethodGet, "/api/user", "", "dev-f")
	assert.Equal(t, false, body["user"].(map[string]interface{})["isAuthenticated"])

	code, _ := do(t, r, http.MethodPost, "/api/user/login", `{"email":"nope"}`, "dev-f")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = do(t, r, http.MethodPost, "/api/user/login", `{"email":"luna@example.com"}`, "dev-f")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["user"].(map[string]interface{})["isAuthenticated"])

	_, body = do(t, r, http.MethodPost, "/api/user/premium", "", "dev-f")
	assert.Equal(t, true, body["user"].(map[string]interface{})["isPremiumUser"])

	_, body = do(t, r, http.MethodGet, "/api/user", "", "dev-f")
	assert.Equal(t, "luna@example.com", body["user"].(map[string]interface{})["email"])

	_, body = do(t, r, http.MethodPost, "/api/user/logout", "", "dev-f")
	assert.Equal(t, map[string]interface{}{"isAuthenticated": false, "isPremiumUser": false}, body["user"])
}

func TestReadings_Disabled(t *testing.T) {
	code, body := do(t, newRouter(t), http.MethodGet, "/api/readings", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, false, body["success"])
}
