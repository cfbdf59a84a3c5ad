package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"geo-api/internal/stats"
	"geo-api/internal/store"

	"github.com/alicebob/miniredis/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend：按需注入失败的后端
type stubBackend struct {
	mode      string
	resolveFn func(store.Layer) (*geojson.FeatureCollection, error)
	listErr   error
	createErr error
	createID  int64
}

func (s *stubBackend) Mode() string { return s.mode }

func (s *stubBackend) Resolve(_ context.Context, l store.Layer) (*geojson.FeatureCollection, error) {
	return s.resolveFn(l)
}

func (s *stubBackend) ListPoints(context.Context) (*geojson.FeatureCollection, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return geojson.NewFeatureCollection(), nil
}

func (s *stubBackend) CreatePoint(context.Context, string, *float64, *float64) (int64, error) {
	return s.createID, s.createErr
}

func (s *stubBackend) Close() error { return nil }

func newLocalMux(t *testing.T) *http.ServeMux {
	t.Helper()
	b, err := store.OpenLocal(t.TempDir())
	require.NoError(t, err)
	return BuildRoutes(b, stats.New(nil))
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestHealth(t *testing.T) {
	mux := newLocalMux(t)
	rec := do(t, mux, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"healthy","mode":"local"}`, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("cache-control"))
}

func TestLayers_DefaultsServed(t *testing.T) {
	mux := newLocalMux(t)
	for _, l := range store.Layers {
		rec := do(t, mux, http.MethodGet, "/"+string(l), "")
		require.Equal(t, http.StatusOK, rec.Code, l)
		assert.Contains(t, rec.Header().Get("content-type"), "application/json")

		fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
		require.NoError(t, err, l)
		assert.NotEmpty(t, fc.Features, l)
	}
}

func TestCreateThenList_Gold(t *testing.T) {
	mux := newLocalMux(t)

	rec := do(t, mux, http.MethodGet, "/user-points", "")
	require.Equal(t, http.StatusOK, rec.Code)
	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Empty(t, fc.Features)

	rec = do(t, mux, http.MethodPost, "/user-points", `{"notes":"gold","lat":40.1,"lon":-105.3}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message":"Point saved successfully","id":1}`, rec.Body.String())

	rec = do(t, mux, http.MethodGet, "/user-points", "")
	require.Equal(t, http.StatusOK, rec.Code)
	fc, err = geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	f := fc.Features[0]
	assert.Equal(t, "gold", f.Properties["notes"])
	assert.Equal(t, int64(1), store.PointID(f))
	assert.Equal(t, orb.Point{-105.3, 40.1}, f.Geometry)
}

func TestCreate_Validation(t *testing.T) {
	mux := newLocalMux(t)

	cases := []struct {
		name string
		body string
		want string
	}{
		{"missing lat", `{"notes":"x","lon":1}`, "lat is required"},
		{"missing lon", `{"notes":"x","lat":1}`, "lon is required"},
		{"empty object", `{}`, "lat and lon are required"},
		{"invalid json", `{"lat":`, "lat and lon are required"},
		{"no body", ``, "lat and lon are required"},
		{"wrong type lat", `{"lat":"40.1","lon":-105.3}`, "lat is required"},
		{"wrong type lon", `{"lat":40.1,"lon":true}`, "lon is required"},
		{"null lat", `{"lat":null,"lon":-105.3}`, "lat is required"},
		{"array body", `[1,2]`, "lat and lon are required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, mux, http.MethodPost, "/user-points", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tc.want, decodeBody(t, rec)["error"])
		})
	}

	rec := do(t, mux, http.MethodGet, "/user-points", "")
	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	assert.Empty(t, fc.Features)
}

func TestCreate_WrongTypedNotesIgnored(t *testing.T) {
	mux := newLocalMux(t)
	rec := do(t, mux, http.MethodPost, "/user-points", `{"notes":7,"lat":1,"lon":2}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, mux, http.MethodGet, "/user-points", "")
	fc, err := geojson.UnmarshalFeatureCollection(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "", fc.Features[0].Properties["notes"])
}

func TestCreate_ZeroCoordinatesAccepted(t *testing.T) {
	mux := newLocalMux(t)
	rec := do(t, mux, http.MethodPost, "/user-points", `{"lat":0,"lon":0}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	mux := newLocalMux(t)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, mux, http.MethodDelete, "/user-points", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, mux, http.MethodPost, "/boundary", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, do(t, mux, http.MethodGet, "/rivers", "").Code)
}

func TestBackendFailures_GenericMessages(t *testing.T) {
	cause := errors.New("dial tcp 10.0.0.3:5432: connection refused")
	b := &stubBackend{
		mode: "gcp",
		resolveFn: func(l store.Layer) (*geojson.FeatureCollection, error) {
			return nil, &store.Error{Kind: store.ErrStorageFetch, Op: "resolve_layer", Target: l.FileName(), Err: cause}
		},
		listErr:   &store.Error{Kind: store.ErrQuery, Op: "list_points", Err: cause},
		createErr: &store.Error{Kind: store.ErrInsert, Op: "create_point", Err: cause},
	}
	mux := BuildRoutes(b, stats.New(nil))

	rec := do(t, mux, http.MethodGet, "/buildings", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to fetch buildings.geojson from storage", decodeBody(t, rec)["error"])

	rec = do(t, mux, http.MethodGet, "/user-points", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Database query failed", decodeBody(t, rec)["error"])

	rec = do(t, mux, http.MethodPost, "/user-points", `{"lat":1,"lon":2}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Database insert failed", decodeBody(t, rec)["error"])
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
}

func TestCreate_LocalPersistFailure(t *testing.T) {
	b := &stubBackend{
		mode:      "local",
		createErr: &store.Error{Kind: store.ErrLocalPersist, Op: "create_point", Err: errors.New("read-only file system")},
	}
	rec := do(t, BuildRoutes(b, stats.New(nil)), http.MethodPost, "/user-points", `{"lat":1,"lon":2}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to save point", decodeBody(t, rec)["error"])
}

func TestCreate_RemoteMessage(t *testing.T) {
	b := &stubBackend{mode: "gcp", createID: 42}
	rec := do(t, BuildRoutes(b, stats.New(nil)), http.MethodPost, "/user-points", `{"notes":"n","lat":1,"lon":2}`)
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"message":"Point added successfully","id":42}`, rec.Body.String())
}

func TestUnknownLayerFromBackend(t *testing.T) {
	b := &stubBackend{
		mode: "local",
		resolveFn: func(l store.Layer) (*geojson.FeatureCollection, error) {
			return nil, &store.Error{Kind: store.ErrUnknownLayer, Op: "resolve_layer", Target: string(l), Err: errors.New("not loaded")}
		},
	}
	rec := do(t, BuildRoutes(b, stats.New(nil)), http.MethodGet, "/countries", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStats_CountsSuccessfulReads(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rc.Close() })

	b, err := store.OpenLocal(t.TempDir())
	require.NoError(t, err)
	mux := BuildRoutes(b, stats.New(rc))

	do(t, mux, http.MethodGet, "/boundary", "")
	do(t, mux, http.MethodGet, "/boundary", "")
	do(t, mux, http.MethodGet, "/user-points", "")

	rec := do(t, mux, http.MethodGet, "/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got stats.Totals
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, map[string]int64{"boundary": 2, "user-points": 1}, got.Total)
}

func TestStats_Disabled(t *testing.T) {
	rec := do(t, newLocalMux(t), http.MethodGet, "/stats", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"total":{},"today":{}}`, rec.Body.String())
}

func TestConfigScript(t *testing.T) {
	rec := do(t, ConfigScript("/api", "gcp"), http.MethodGet, "/config.js", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("content-type"), "application/javascript")
	assert.Equal(t, "window.__API_BASE__ = \"/api\";\nwindow.__BACKEND_MODE__ = \"gcp\";\n", rec.Body.String())
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.1:5555"
	assert.Equal(t, "192.0.2.1", clientIP(req))

	req.Header.Set("Forwarded", `for="198.51.100.7";proto=https`)
	assert.Equal(t, "198.51.100.7", clientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "203.0.113.9", clientIP(req))
}

func TestStatic_HidesDotfiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DB_PASSWORD=x"), 0o644))
	h := Static(dir)

	rec := do(t, h, http.MethodGet, "/app.js", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, h, http.MethodGet, "/.env", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.NotContains(t, rec.Body.String(), "DB_PASSWORD")
}
