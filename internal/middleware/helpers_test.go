package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/salonlink/internal/identity"
	"github.com/hitoshi/salonlink/internal/model"
)

// --- テスト用モック ---

type mockVerifier struct {
	verifyFn func(ctx context.Context, raw string) (*identity.Claims, error)
}

func (m *mockVerifier) Verify(ctx context.Context, raw string) (*identity.Claims, error) {
	return m.verifyFn(ctx, raw)
}

type mockProfileEnsurer struct {
	fetchFn func(ctx context.Context, user *model.AuthUser) (*model.UserProfile, error)
}

func (m *mockProfileEnsurer) Fetch(ctx context.Context, user *model.AuthUser) (*model.UserProfile, error) {
	return m.fetchFn(ctx, user)
}

// memoryProfileStore はprofile.Storeのインメモリ実装。
type memoryProfileStore struct {
	profiles map[string]*model.UserProfile
}

func newMemoryProfileStore() *memoryProfileStore {
	return &memoryProfileStore{profiles: make(map[string]*model.UserProfile)}
}

func (m *memoryProfileStore) FindProfile(_ context.Context, id string) (*model.UserProfile, error) {
	return m.profiles[id], nil
}

func (m *memoryProfileStore) InsertProfile(_ context.Context, p *model.UserProfile) error {
	if _, ok := m.profiles[p.ID]; ok {
		return model.ErrDuplicate
	}
	m.profiles[p.ID] = p
	return nil
}

func (m *memoryProfileStore) UpsertStylistContact(_ context.Context, _ *model.StylistProfile) error {
	return nil
}

type mockRecorder struct {
	statuses    []int
	latencies   []time.Duration
	rateLimited []string
}

func (m *mockRecorder) RecordHTTPStatus(code int) {
	m.statuses = append(m.statuses, code)
}

func (m *mockRecorder) RecordRequestLatency(d time.Duration) {
	m.latencies = append(m.latencies, d)
}

func (m *mockRecorder) RecordRateLimited(scope string) {
	m.rateLimited = append(m.rateLimited, scope)
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func discardLogger() *slog.Logger {
	return newTestLogger(&bytes.Buffer{})
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) ErrorResponseBody {
	t.Helper()
	var body ErrorResponseBody
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}
