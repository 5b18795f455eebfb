package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"life.tape/config"
	"life.tape/internal/audio"
	"life.tape/internal/auth"
	"life.tape/internal/logging"
	"life.tape/internal/models"
	"life.tape/internal/store"
)

const testSecret = "0123456789abcdef0123"

type fakeAudio struct {
	err error
}

func (f *fakeAudio) NewUpload(ctx context.Context, ext string) (*audio.Upload, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &audio.Upload{
		Key:       "recordings/x." + ext,
		UploadURL: "https://s3.test/put",
		AudioURI:  "s3://tapes/recordings/x." + ext,
	}, nil
}

func (f *fakeAudio) DownloadURL(ctx context.Context, key string) (string, error) {
	if key == "" {
		return "", audio.ErrInvalidURI
	}
	return "https://s3.test/get/" + key, f.err
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Auth.Secret = testSecret
	cfg.RateLimit.Enabled = false
	return cfg
}

type testServer struct {
	t     *testing.T
	srv   *httptest.Server
	store *store.MemoryStore
	key   string
}

func newTestServer(t *testing.T, cfg *config.Config, a AudioStorage) *testServer {
	t.Helper()

	st := store.NewMemoryStore()
	srv := httptest.NewServer(SetupRouter(st, a, cfg, logging.Discard()))
	t.Cleanup(srv.Close)

	key, err := auth.GenerateKey(auth.RoleAnon, []byte(testSecret), time.Hour)
	require.NoError(t, err)

	return &testServer{t: t, srv: srv, store: st, key: key}
}

func (ts *testServer) do(method, path string, body any) *http.Response {
	ts.t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(ts.t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(ts.t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+ts.key)

	resp, err := ts.srv.Client().Do(req)
	require.NoError(ts.t, err)
	ts.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	resp, err := http.Get(ts.srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}

func TestAuth(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	t.Run("missing key", func(t *testing.T) {
		resp, err := http.Get(ts.srv.URL + "/api/entries")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("bad key", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.srv.URL+"/api/entries", nil)
		req.Header.Set("apikey", "not-a-jwt")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("apikey header", func(t *testing.T) {
		req, _ := http.NewRequest(http.MethodGet, ts.srv.URL+"/api/entries", nil)
		req.Header.Set("apikey", ts.key)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})
}

func TestAuthDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Enabled = false
	ts := newTestServer(t, cfg, nil)

	resp, err := http.Get(ts.srv.URL + "/api/entries")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestState(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	resp := ts.do(http.MethodGet, "/api/state/life-tape-user-storage", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(http.MethodPut, "/api/state/life-tape-user-storage", map[string]any{
		"value": map[string]any{"state": map[string]any{"isOnboarded": true}, "version": 0},
	})
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(http.MethodGet, "/api/state/life-tape-user-storage", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	rec := decode[models.StateRecord](t, resp)
	assert.Equal(t, "life-tape-user-storage", rec.Key)
	assert.JSONEq(t, `{"state":{"isOnboarded":true},"version":0}`, string(rec.Value))

	resp = ts.do(http.MethodDelete, "/api/state/life-tape-user-storage", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(http.MethodGet, "/api/state/life-tape-user-storage", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPutState_RequiresValue(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	resp := ts.do(http.MethodPut, "/api/state/k", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestJSONOnly(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	req, _ := http.NewRequest(http.MethodPost, ts.srv.URL+"/api/entries", bytes.NewBufferString("title=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Authorization", "Bearer "+ts.key)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnsupportedMediaType, resp.StatusCode)
}

func TestEntriesCRUD(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	resp := ts.do(http.MethodPost, "/api/entries", models.Entry{
		Transcript: "went hiking today",
		Title:      "WENT HIKING TODAY",
		Tag:        "travel",
		Duration:   12,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[models.Entry](t, resp)
	require.NotEmpty(t, created.ID)
	assert.NotZero(t, created.CreatedAt)

	resp = ts.do(http.MethodPost, "/api/entries", created)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = ts.do(http.MethodGet, "/api/entries/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created, decode[models.Entry](t, resp))

	title := "MOUNTAIN DAY"
	resp = ts.do(http.MethodPatch, "/api/entries/"+created.ID, models.EntryPatch{Title: &title})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	updated := decode[models.Entry](t, resp)
	assert.Equal(t, "MOUNTAIN DAY", updated.Title)
	assert.Equal(t, "went hiking today", updated.Transcript)

	resp = ts.do(http.MethodPatch, "/api/entries/"+created.ID, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = ts.do(http.MethodDelete, "/api/entries/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = ts.do(http.MethodGet, "/api/entries/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = ts.do(http.MethodDelete, "/api/entries/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestListEntries_Filters(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)
	ctx := context.Background()

	for _, e := range []*models.Entry{
		{ID: "a", Title: "MORNING RUN", Tag: "health", CreatedAt: 1000},
		{ID: "b", Title: "SECRET", IsDarkSide: true, CreatedAt: 2000},
		{ID: "c", Title: "PROJECT IDEA", Tag: "idea", CreatedAt: 3000},
	} {
		require.NoError(t, ts.store.InsertEntry(ctx, e))
	}

	ids := func(path string) []string {
		resp := ts.do(http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var out []string
		for _, e := range decode[[]models.Entry](t, resp) {
			out = append(out, e.ID)
		}
		return out
	}

	assert.Equal(t, []string{"c", "b", "a"}, ids("/api/entries"))
	assert.Equal(t, []string{"a", "b", "c"}, ids("/api/entries?order=asc"))
	assert.Equal(t, []string{"c", "a"}, ids("/api/entries?darkSide=false"))
	assert.Equal(t, []string{"b"}, ids("/api/entries?darkSide=true"))
	assert.Equal(t, []string{"c"}, ids("/api/entries?tag=idea"))
	assert.Equal(t, []string{"a"}, ids("/api/entries?q=run"))
	assert.Equal(t, []string{"c"}, ids("/api/entries?limit=1"))

	resp := ts.do(http.MethodGet, "/api/entries?darkSide=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = ts.do(http.MethodGet, "/api/entries?order=sideways", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp = ts.do(http.MethodGet, "/api/entries?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAudio(t *testing.T) {
	t.Run("disabled", func(t *testing.T) {
		ts := newTestServer(t, testConfig(), nil)
		resp := ts.do(http.MethodPost, "/api/audio/uploads", AudioUploadRequest{Ext: "m4a"})
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})

	t.Run("upload and download", func(t *testing.T) {
		ts := newTestServer(t, testConfig(), &fakeAudio{})

		resp := ts.do(http.MethodPost, "/api/audio/uploads", AudioUploadRequest{Ext: "m4a"})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		up := decode[audio.Upload](t, resp)
		assert.Equal(t, "s3://tapes/recordings/x.m4a", up.AudioURI)

		resp = ts.do(http.MethodGet, "/api/audio/url?key=recordings/x.m4a", nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "https://s3.test/get/recordings/x.m4a", decode[AudioURLResponse](t, resp).URL)

		resp = ts.do(http.MethodGet, "/api/audio/url", nil)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("presign failure", func(t *testing.T) {
		ts := newTestServer(t, testConfig(), &fakeAudio{err: errors.New("boom")})
		resp := ts.do(http.MethodPost, "/api/audio/uploads", nil)
		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	})
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(60, time.Minute, 2)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestRateLimit_ServiceKeyNotLimited(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerMin: 1, Burst: 1}
	ts := newTestServer(t, cfg, nil)

	assert.NotEqual(t, http.StatusTooManyRequests, ts.do(http.MethodGet, "/api/entries", nil).StatusCode)
	resp := ts.do(http.MethodGet, "/api/entries", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))

	key, err := auth.GenerateKey(auth.RoleService, []byte(testSecret), time.Hour)
	require.NoError(t, err)
	ts.key = key
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/entries", nil).StatusCode)
	}
}

func TestRequestID_Reused(t *testing.T) {
	ts := newTestServer(t, testConfig(), nil)

	req, _ := http.NewRequest(http.MethodGet, ts.srv.URL+"/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "abc-123", resp.Header.Get("X-Request-ID"))
}
