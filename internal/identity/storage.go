package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/hitoshi/salonlink/internal/model"
)

// SessionStorage はセッションの永続化インターフェース。
type SessionStorage interface {
	// Load は保存済みのセッションを返す。存在しない場合はnilを返す。
	Load(ctx context.Context) (*model.Session, error)
	Save(ctx context.Context, s *model.Session) error
	Remove(ctx context.Context) error
}

// FileStorage はセッションをJSONファイルに保存する。ファイルは所有者のみ読み書き可能（0600）で作成する。
type FileStorage struct {
	path string
	mu   sync.Mutex
}

// NewFileStorage はFileStorageを生成する。
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Load はファイルからセッションを読み込む。ファイルが存在しない場合はnilを返す。
func (f *FileStorage) Load(_ context.Context) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("セッションファイルの読み込みに失敗: %w", err)
	}

	var sj sessionJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return nil, fmt.Errorf("セッションファイルのパースに失敗: %w", err)
	}
	return sj.toModel(time.Now()), nil
}

// Save はセッションを一時ファイル経由でアトミックに書き込む。
func (f *FileStorage) Save(_ context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(sessionFromModel(s))
	if err != nil {
		return fmt.Errorf("セッションのエンコードに失敗: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("セッションディレクトリの作成に失敗: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.json")
	if err != nil {
		return fmt.Errorf("一時ファイルの作成に失敗: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("一時ファイルの権限設定に失敗: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("セッションの書き込みに失敗: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("一時ファイルのクローズに失敗: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("セッションファイルの置き換えに失敗: %w", err)
	}
	return nil
}

// Remove はセッションファイルを削除する。存在しない場合もエラーにしない。
func (f *FileStorage) Remove(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("セッションファイルの削除に失敗: %w", err)
	}
	return nil
}

// MemoryStorage はメモリ上にセッションを保持する。テストとserveプロセスで使用する。
type MemoryStorage struct {
	mu      sync.Mutex
	session *model.Session
}

// NewMemoryStorage はMemoryStorageを生成する。
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load(_ context.Context) (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session, nil
}

func (m *MemoryStorage) Save(_ context.Context, s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = s
	return nil
}

func (m *MemoryStorage) Remove(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

var (
	_ SessionStorage = (*FileStorage)(nil)
	_ SessionStorage = (*MemoryStorage)(nil)
)
