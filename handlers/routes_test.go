package handlers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"badge-progress-system/catalog"
	"badge-progress-system/engine"
	"badge-progress-system/middleware"
	"badge-progress-system/services"
	"badge-progress-system/store"

	"github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	gatewayToken = "gw-token"
	user         = "0x00000000000000000000000000000000000000Bb"
	userLower    = "0x00000000000000000000000000000000000000bb"
)

func newTestApp(t *testing.T) (*fiber.App, *store.MemoryStore) {
	t.Helper()
	st := store.NewMemoryStore()
	cat := catalog.Default()
	progress := services.NewProgressService(cat, st, engine.New(engine.WithClock(func() int64 { return 500 })))

	app := fiber.New()
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.GatewayAuthMiddleware(gatewayToken))
	SetupMetricsRoute(app)
	SetupBadgeRoutes(app, cat, progress)
	SetupAdminRoutes(app, progress, services.NewBackfillService(progress, 2), "admin")
	return app, st
}

type request struct {
	method string
	path   string
	body   string
	roles  string
	noAuth bool
}

func do(t *testing.T, app *fiber.App, r request) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(r.method, r.path, strings.NewReader(r.body))
	req.Header.Set("Content-Type", "application/json")
	if !r.noAuth {
		req.Header.Set("Authorization", "Bearer "+gatewayToken)
	}
	if r.roles != "" {
		req.Header.Set("X-User-ID", "ops-1")
		req.Header.Set("X-User-Roles", r.roles)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var body map[string]any
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &body), string(raw))
	}
	return resp.StatusCode, body
}

func progressBody(eventID, badge, update string) string {
	return `{"event_id":"` + eventID + `","user_address":"` + user + `","badge_id":"` + badge + `","update":` + update + `}`
}

func TestGatewayAuth(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := do(t, app, request{method: http.MethodGet, path: "/badges", noAuth: true})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "gateway authentication token missing", body["error"])

	req := httptest.NewRequest(http.MethodGet, "/badges", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req = httptest.NewRequest(http.MethodGet, "/badges", nil)
	req.Header.Set("Authorization", gatewayToken)
	resp, err = app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "raw token without scheme is accepted")
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestCatalogRoutes(t *testing.T) {
	app, _ := newTestApp(t)

	status, body := do(t, app, request{method: http.MethodGet, path: "/badges"})
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, body["badges"], len(catalog.Definitions))

	status, body = do(t, app, request{method: http.MethodGet, path: "/badges/traveler"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Traveler", body["name"])

	status, body = do(t, app, request{method: http.MethodGet, path: "/badges/nope"})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "not_found", body["kind"])
}

func TestAdminRoutes_RequireRole(t *testing.T) {
	app, _ := newTestApp(t)
	body := progressBody("e1", catalog.BadgeFirstEmote, `{"kind":"unique_event","completed_at":10}`)

	status, _ := do(t, app, request{method: http.MethodPost, path: "/s/admin/progress", body: body})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = do(t, app, request{method: http.MethodPost, path: "/s/admin/progress", body: body, roles: "viewer, support"})
	assert.Equal(t, http.StatusForbidden, status)

	status, _ = do(t, app, request{method: http.MethodPost, path: "/s/admin/progress", body: body, roles: "viewer, admin"})
	assert.Equal(t, http.StatusOK, status)
}

func TestAdminProgress_StatusMapping(t *testing.T) {
	app, _ := newTestApp(t)
	post := func(body string) (int, map[string]any) {
		return do(t, app, request{method: http.MethodPost, path: "/s/admin/progress", body: body, roles: "admin"})
	}

	status, body := post(progressBody("t1", catalog.BadgeTraveler, `{"kind":"leveled_tier","completed_at":10,"cumulative_count":60}`))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["changed"])
	assert.Len(t, body["new_tiers"], 2)

	status, body = post(progressBody("t1", catalog.BadgeTraveler, `{"kind":"leveled_tier","completed_at":10,"cumulative_count":60}`))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["duplicate"])

	status, body = post(progressBody("t2", catalog.BadgeTraveler, `{"kind":"leveled_tier","completed_at":11,"cumulative_count":5}`))
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "regression", body["kind"])

	status, body = post(progressBody("t3", catalog.BadgeTraveler, `{"kind":"unique_event","completed_at":11}`))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "validation", body["kind"])

	status, body = post(progressBody("t4", catalog.BadgeTraveler, `{"kind":"leveled_tier","completed_at":"soon","cumulative_count":5}`))
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "malformed_input", body["kind"])
	assert.Equal(t, "update.completed_at", body["field"])

	status, _ = post(progressBody("t5", "no-such-badge", `{"kind":"unique_event","completed_at":11}`))
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = post(`not json`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestUserProgressRoutes(t *testing.T) {
	app, _ := newTestApp(t)
	status, _ := do(t, app, request{
		method: http.MethodPost,
		path:   "/s/admin/progress",
		body:   progressBody("t1", catalog.BadgeTraveler, `{"kind":"leveled_tier","completed_at":10,"cumulative_count":60}`),
		roles:  "admin",
	})
	require.Equal(t, http.StatusOK, status)

	status, body := do(t, app, request{method: http.MethodGet, path: "/users/" + user + "/badges"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, userLower, body["user_address"])
	require.Len(t, body["badges"], 1)

	status, body = do(t, app, request{method: http.MethodGet, path: "/users/" + user + "/badges/traveler"})
	require.Equal(t, http.StatusOK, status)
	next, ok := body["next_tier"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "traveler-silver", next["tier_id"])

	status, body = do(t, app, request{method: http.MethodGet, path: "/users/" + user + "/badges/" + catalog.BadgeFirstEmote})
	require.Equal(t, http.StatusOK, status)
	assert.Nil(t, body["progress"])

	status, _ = do(t, app, request{method: http.MethodGet, path: "/users/" + strings.Repeat("a", 65) + "/badges"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdminBackfill(t *testing.T) {
	app, st := newTestApp(t)
	lines := strings.Join([]string{
		`{"user_address":"0x1","badge_id":"traveler","update":{"kind":"leveled_tier","completed_at":1,"cumulative_count":3}}`,
		`{"user_address":"0x1","badge_id":"traveler","update":{"kind":"leveled_tier","completed_at":2,"cumulative_count":1}}`,
		`{"user_address":"0x2","badge_id":"first-emote","update":{"kind":"unique_event","completed_at":2}}`,
	}, "\n")

	status, body := do(t, app, request{method: http.MethodPost, path: "/s/admin/backfill", body: lines, roles: "admin"})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 3, body["total"])
	assert.EqualValues(t, 2, body["applied"])
	assert.EqualValues(t, 1, body["skipped"])
	assert.Equal(t, 2, st.Len())

	status, _ = do(t, app, request{method: http.MethodPost, path: "/s/admin/backfill", body: `[{"a":`, roles: "admin"})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestMetricsRoute(t *testing.T) {
	app, _ := newTestApp(t)
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+gatewayToken)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), "go_goroutines")
}
