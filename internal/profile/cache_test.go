package profile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/salonlink/internal/model"
)

type countingFetcher struct {
	calls   atomic.Int32
	fetchFn func(ctx context.Context, user *model.AuthUser) (*model.UserProfile, error)
}

func (f *countingFetcher) Fetch(ctx context.Context, user *model.AuthUser) (*model.UserProfile, error) {
	f.calls.Add(1)
	if f.fetchFn != nil {
		return f.fetchFn(ctx, user)
	}
	return &model.UserProfile{ID: user.ID, Role: model.RoleClient}, nil
}

type recordingRecorder struct {
	mu      sync.Mutex
	results []string
}

func (r *recordingRecorder) RecordProfileCache(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}

var _ Fetcher = (*countingFetcher)(nil)
var _ Fetcher = (*Service)(nil)

func TestCache_SecondUnforcedGet_ReturnsSamePointerWithoutFetch(t *testing.T) {
	f := &countingFetcher{}
	rec := &recordingRecorder{}
	c := NewCache(f, rec, nil)
	user := &model.AuthUser{ID: "user-1"}

	first, err := c.Get(context.Background(), user, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	second, err := c.Get(context.Background(), user, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if first != second {
		t.Error("expected the identical cached object")
	}
	if got := f.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
	if len(rec.results) != 2 || rec.results[0] != ResultFetch || rec.results[1] != ResultHit {
		t.Errorf("recorded results = %v, want [fetch hit]", rec.results)
	}
}

func TestCache_ForcedGet_AlwaysFetches(t *testing.T) {
	f := &countingFetcher{}
	c := NewCache(f, nil, nil)
	user := &model.AuthUser{ID: "user-1"}

	for i := 0; i < 3; i++ {
		if _, err := c.Get(context.Background(), user, true); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	}

	if got := f.calls.Load(); got != 3 {
		t.Errorf("fetch calls = %d, want 3", got)
	}
}

func TestCache_DifferentUser_Fetches(t *testing.T) {
	f := &countingFetcher{}
	c := NewCache(f, nil, nil)

	c.Get(context.Background(), &model.AuthUser{ID: "user-1"}, false)
	p, _ := c.Get(context.Background(), &model.AuthUser{ID: "user-2"}, false)

	if p == nil || p.ID != "user-2" {
		t.Fatalf("expected profile for user-2, got %+v", p)
	}
	if got := f.calls.Load(); got != 2 {
		t.Errorf("fetch calls = %d, want 2", got)
	}
	if c.Peek().ID != "user-2" {
		t.Errorf("slot should hold the latest user")
	}
}

func TestCache_ConcurrentGets_CollapseToOneFetch(t *testing.T) {
	release := make(chan struct{})
	f := &countingFetcher{
		fetchFn: func(ctx context.Context, user *model.AuthUser) (*model.UserProfile, error) {
			<-release
			return &model.UserProfile{ID: user.ID}, nil
		},
	}
	c := NewCache(f, nil, nil)
	user := &model.AuthUser{ID: "user-1"}

	const n = 5
	var wg sync.WaitGroup
	results := make([]*model.UserProfile, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], _ = c.Get(context.Background(), user, false)
		}(i)
	}

	// 全員がsingleflightに入るまで待ってから解放する
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if got := f.calls.Load(); got != 1 {
		t.Errorf("fetch calls = %d, want 1", got)
	}
	for i := 1; i < n; i++ {
		if results[i] != results[0] {
			t.Errorf("caller %d observed a different object", i)
		}
	}
}

func TestCache_FetchError_ClearsSlotAndReturnsNil(t *testing.T) {
	fail := false
	f := &countingFetcher{
		fetchFn: func(ctx context.Context, user *model.AuthUser) (*model.UserProfile, error) {
			if fail {
				return nil, errors.New("backend down")
			}
			return &model.UserProfile{ID: user.ID}, nil
		},
	}
	c := NewCache(f, nil, nil)
	user := &model.AuthUser{ID: "user-1"}

	c.Get(context.Background(), user, false)
	fail = true

	p, err := c.Get(context.Background(), user, true)
	if err == nil {
		t.Error("expected error to be reported")
	}
	if p != nil {
		t.Error("expected nil profile on failure")
	}
	if c.Peek() != nil {
		t.Error("expected slot to be cleared on failure")
	}
}

func TestCache_ClearDuringFetch_DiscardsResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	f := &countingFetcher{
		fetchFn: func(ctx context.Context, user *model.AuthUser) (*model.UserProfile, error) {
			close(started)
			<-release
			return &model.UserProfile{ID: user.ID}, nil
		},
	}
	c := NewCache(f, nil, nil)

	done := make(chan *model.UserProfile)
	go func() {
		p, _ := c.Get(context.Background(), &model.AuthUser{ID: "user-1"}, false)
		done <- p
	}()

	<-started
	c.Clear()
	close(release)

	if p := <-done; p != nil {
		t.Errorf("expected stale result to be discarded, got %+v", p)
	}
	if c.Peek() != nil {
		t.Error("stale result must not be written to the slot")
	}
}

func TestCache_NilUser_ReturnsNil(t *testing.T) {
	f := &countingFetcher{}
	c := NewCache(f, nil, nil)

	p, err := c.Get(context.Background(), nil, true)
	if p != nil || err != nil {
		t.Errorf("Get(nil) = %v, %v; want nil, nil", p, err)
	}
	if f.calls.Load() != 0 {
		t.Error("expected no fetch for nil user")
	}
}
