package session

import (
	"github.com/hitoshi/salonlink/internal/model"
	"github.com/hitoshi/salonlink/internal/role"
)

// Status はCoordinatorの認証状態。
type Status string

const (
	StatusInitializing    Status = "initializing"
	StatusAuthenticated   Status = "authenticated"
	StatusUnauthenticated Status = "unauthenticated"
	StatusError           Status = "error"
)

// Snapshot はCoordinatorが保持する認証状態のコピー。
// 呼び出し元はSnapshotを読み取り専用として扱い、状態の変更はCoordinatorの操作を通じて行う。
type Snapshot struct {
	Status  Status
	Loading bool
	Session *model.Session
	User    *model.AuthUser
	Profile *model.UserProfile
	Err     *model.APIError
}

// Role はプロフィール、メタデータ、clientの優先順位で解決したロールを返す。
func (s Snapshot) Role() model.Role {
	return role.Resolve(s.Profile, s.User)
}

// DashboardPath はロールに対応するダッシュボードのパスを返す。
func (s Snapshot) DashboardPath() string {
	return role.DashboardPath(s.Role())
}

// SessionPresent はセッションとユーザーを保持しているかどうかを返す。
func (s Snapshot) SessionPresent() bool {
	return s.Session != nil && s.User != nil
}

// Settled は初期化・ロード中でないかどうかを返す。
func (s Snapshot) Settled() bool {
	return s.Status != StatusInitializing && !s.Loading
}

// Guard はルートガードgでこのスナップショットを判定する。
func (s Snapshot) Guard(g role.Guard) role.Decision {
	return g.Evaluate(role.Input{
		Settled:        s.Settled(),
		SessionPresent: s.SessionPresent(),
		Role:           s.Role(),
	})
}
