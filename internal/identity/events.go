package identity

import (
	"slices"
	"sync"

	"github.com/hitoshi/salonlink/internal/model"
)

// emitter は認証状態変化の購読者を管理する。
// 通知は呼び出し元のゴルーチンで購読登録順に同期的に行う。
type emitter struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]func(model.AuthEvent)
}

func newEmitter() *emitter {
	return &emitter{subs: make(map[int]func(model.AuthEvent))}
}

func (e *emitter) subscribe(fn func(model.AuthEvent)) func() {
	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.subs[id] = fn
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			delete(e.subs, id)
			e.mu.Unlock()
		})
	}
}

func (e *emitter) emit(name string, s *model.Session) {
	e.mu.Lock()
	ids := make([]int, 0, len(e.subs))
	for id := range e.subs {
		ids = append(ids, id)
	}
	fns := make([]func(model.AuthEvent), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, e.subs[id])
	}
	e.mu.Unlock()

	ev := model.AuthEvent{Name: name, Session: s}
	for _, fn := range fns {
		fn(ev)
	}
}
