package role

import (
	"slices"

	"github.com/hitoshi/salonlink/internal/model"
)

// Outcome はルートガードの判定結果。
type Outcome string

const (
	// OutcomeRender は保護対象を表示してよいことを示す。
	OutcomeRender Outcome = "render"
	// OutcomeWaiting は認証状態の確定待ち。リダイレクトせず中立の待機表示を出す。
	OutcomeWaiting Outcome = "waiting"
	// OutcomeLocked はアクセス不可。ナビゲーション付きのロック表示を出す。
	OutcomeLocked Outcome = "locked"
)

// Action はロック表示に添えるナビゲーション。
type Action struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// Decision はルートガードの判定結果とロック時のナビゲーションを表す。
type Decision struct {
	Outcome Outcome  `json:"outcome"`
	Reason  string   `json:"reason,omitempty"`
	Actions []Action `json:"actions,omitempty"`
}

// Input はガード判定に必要な認証状態。
type Input struct {
	Settled        bool // 初期化・ロード中でないこと
	SessionPresent bool
	Role           model.Role
}

// Guard は許可ロールの集合によるアクセス判定。Allowedが空の場合はロールを問わない。
type Guard struct {
	Allowed []model.Role
}

// Guards for each dashboard.
var (
	AdminOnly   = Guard{Allowed: []model.Role{model.RoleAdmin}}
	StylistOnly = Guard{Allowed: []model.Role{model.RoleStylist, model.RoleAdmin}}
	ClientOnly  = Guard{Allowed: []model.Role{model.RoleClient}}
	AnyRole     = Guard{}
)

// ForPath はダッシュボードのパスに対応するガードを返す。
func ForPath(path string) (Guard, bool) {
	switch path {
	case PathAdmin:
		return AdminOnly, true
	case PathStylist:
		return StylistOnly, true
	case PathClient:
		return ClientOnly, true
	default:
		return Guard{}, false
	}
}

// Evaluate はガード判定を行う。
// 認証状態が確定するまでは常にOutcomeWaitingを返し、リダイレクトのちらつきを防ぐ。
func (g Guard) Evaluate(in Input) Decision {
	if !in.Settled {
		return Decision{Outcome: OutcomeWaiting}
	}

	if !in.SessionPresent {
		return Decision{
			Outcome: OutcomeLocked,
			Reason:  "sign in required",
			Actions: []Action{
				{Label: "Sign in", Path: PathSignIn},
				{Label: "Back to home", Path: PathHome},
			},
		}
	}

	if len(g.Allowed) > 0 && !slices.Contains(g.Allowed, in.Role) {
		return Decision{
			Outcome: OutcomeLocked,
			Reason:  "this area is not available for your account",
			Actions: []Action{
				{Label: "Go to my dashboard", Path: DashboardPath(in.Role)},
				{Label: "Back to home", Path: PathHome},
			},
		}
	}

	return Decision{Outcome: OutcomeRender}
}
