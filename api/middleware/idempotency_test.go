package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/carestaff-backend/pkg/errors"
)

type fakeStore struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if f.getErr != nil {
		return "", f.getErr
	}
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	f.data[key], _ = value.(string)
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string { return "fake:" + scope + ":" + id }

type countingHandler struct {
	calls  int
	status int
}

func (h *countingHandler) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.calls++
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(h.status)
	_, _ = w.Write([]byte(`{"ok":true}`))
}

func post(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/engines/timesheet-validation", strings.NewReader(body))
	if key != "" {
		req.Header.Set(IdempotencyHeader, key)
	}
	return req
}

func TestReplayWithoutKeyRunsEveryTime(t *testing.T) {
	store := newFakeStore()
	h := &countingHandler{status: http.StatusOK}
	mw := Replay(store, time.Hour, nil)(h)

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		mw.ServeHTTP(rec, post("", `{}`))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, 2, h.calls)
	assert.Empty(t, store.data)
}

func TestReplayReturnsStoredResponse(t *testing.T) {
	store := newFakeStore()
	h := &countingHandler{status: http.StatusAccepted}
	mw := Replay(store, 10*time.Minute, nil)(h)

	first := httptest.NewRecorder()
	mw.ServeHTTP(first, post("abc", `{"timesheet_id":"a"}`))
	require.Equal(t, http.StatusAccepted, first.Code)
	assert.Empty(t, first.Header().Get("Idempotent-Replayed"))

	second := httptest.NewRecorder()
	mw.ServeHTTP(second, post("abc", `{"timesheet_id":"a"}`))
	assert.Equal(t, http.StatusAccepted, second.Code)
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, `{"ok":true}`, second.Body.String())
	assert.Equal(t, 1, h.calls)

	for _, ttl := range store.ttls {
		assert.Equal(t, 10*time.Minute, ttl)
	}
}

func TestReplayRejectsReusedKeyWithNewBody(t *testing.T) {
	store := newFakeStore()
	mw := Replay(store, time.Hour, nil)(&countingHandler{status: http.StatusOK})

	mw.ServeHTTP(httptest.NewRecorder(), post("xyz", `{"timesheet_id":"a"}`))
	rec := httptest.NewRecorder()
	mw.ServeHTTP(rec, post("xyz", `{"timesheet_id":"b"}`))

	assert.Equal(t, http.StatusConflict, rec.Code)
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, string(pkgerrors.CodeIdempotency), payload.Error.Code)
}

func TestReplaySkipsServerErrors(t *testing.T) {
	store := newFakeStore()
	h := &countingHandler{status: http.StatusServiceUnavailable}
	mw := Replay(store, time.Hour, nil)(h)

	mw.ServeHTTP(httptest.NewRecorder(), post("k", `{}`))
	mw.ServeHTTP(httptest.NewRecorder(), post("k", `{}`))
	assert.Equal(t, 2, h.calls)
	assert.Empty(t, store.data)
}

func TestReplayStoreFailureIsDependencyError(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection refused")
	h := &countingHandler{status: http.StatusOK}

	rec := httptest.NewRecorder()
	Replay(store, time.Hour, nil)(h).ServeHTTP(rec, post("k", `{}`))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Zero(t, h.calls)
}

func TestReplayDisabledWithoutTTL(t *testing.T) {
	h := &countingHandler{status: http.StatusOK}
	store := newFakeStore()
	Replay(store, 0, nil)(h).ServeHTTP(httptest.NewRecorder(), post("k", `{}`))
	assert.Empty(t, store.data)
	assert.Equal(t, 1, h.calls)
}
