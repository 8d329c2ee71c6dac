package profile

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/hitoshi/salonlink/internal/model"
)

// Fetcher はキャッシュミス時にプロフィールを取得するインターフェース。
type Fetcher interface {
	Fetch(ctx context.Context, user *model.AuthUser) (*model.UserProfile, error)
}

// Recorder はキャッシュの利用状況を記録するインターフェース。
type Recorder interface {
	RecordProfileCache(result string)
}

type nopRecorder struct{}

func (nopRecorder) RecordProfileCache(string) {}

// キャッシュ結果のラベル。
const (
	ResultHit    = "hit"
	ResultFetch  = "fetch"
	ResultError  = "error"
	ResultStale  = "stale"
	ResultShared = "shared"
)

// Cache は直近に取得したプロフィールを1件だけ保持するキャッシュ。
// 同一ユーザーIDに対する同時取得はsingleflightで1回のネットワーク呼び出しにまとめる。
// Clearで世代を進め、Clear以前に開始された取得結果はスロットに書き込まない。
type Cache struct {
	fetcher  Fetcher
	recorder Recorder
	logger   *slog.Logger
	group    singleflight.Group

	mu         sync.Mutex
	slot       *model.UserProfile
	generation uint64
}

// NewCache はCacheを生成する。recorderがnilの場合は記録しない。
func NewCache(fetcher Fetcher, recorder Recorder, logger *slog.Logger) *Cache {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Cache{
		fetcher:  fetcher,
		recorder: recorder,
		logger:   logger,
	}
}

// Get はユーザーのプロフィールを返す。
// forceがfalseでスロットが同一ユーザーIDのプロフィールを保持している場合はネットワーク呼び出しなしで返す。
// forceがtrueの場合は必ず取得し直す。
// 取得に失敗した場合はスロットをクリアし、nilとエラーを返す。呼び出し元はnilを未認証相当として扱う。
func (c *Cache) Get(ctx context.Context, user *model.AuthUser, force bool) (*model.UserProfile, error) {
	if user == nil || user.ID == "" {
		return nil, nil
	}

	c.mu.Lock()
	if !force && c.slot != nil && c.slot.ID == user.ID {
		p := c.slot
		c.mu.Unlock()
		c.recorder.RecordProfileCache(ResultHit)
		return p, nil
	}
	gen := c.generation
	c.mu.Unlock()

	if force {
		// 進行中の取得に相乗りせず、新しい取得を開始する
		c.group.Forget(user.ID)
	}

	v, err, shared := c.group.Do(user.ID, func() (any, error) {
		return c.fetcher.Fetch(ctx, user)
	})

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		c.recorder.RecordProfileCache(ResultStale)
		c.logger.Debug("キャッシュクリア前に開始された取得結果を破棄しました",
			slog.String("user_id", user.ID),
		)
		return nil, nil
	}

	if err != nil {
		c.slot = nil
		c.recorder.RecordProfileCache(ResultError)
		return nil, err
	}

	p, _ := v.(*model.UserProfile)
	c.slot = p
	if shared {
		c.recorder.RecordProfileCache(ResultShared)
	} else {
		c.recorder.RecordProfileCache(ResultFetch)
	}
	return p, nil
}

// Peek はスロットに保持しているプロフィールを返す。
func (c *Cache) Peek() *model.UserProfile {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.slot
}

// Clear はスロットを空にし、世代を進める。
func (c *Cache) Clear() {
	c.mu.Lock()
	c.slot = nil
	c.generation++
	c.mu.Unlock()
}
