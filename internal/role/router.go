// Package role はロールの解決、ダッシュボードパスの導出、ルートガード判定を提供する。
// いずれもネットワークや状態を持たない純粋関数として実装する。
package role

import "github.com/hitoshi/salonlink/internal/model"

// ダッシュボードのパス。
const (
	PathAdmin   = "/dashboard/admin"
	PathStylist = "/dashboard/stylist"
	PathClient  = "/dashboard/client"
	PathSignIn  = "/auth/sign-in"
	PathHome    = "/"
)

// DashboardPath はロールに対応するダッシュボードのパスを返す。
// 未知または空のロールはクライアント用ダッシュボードにフォールバックする。
func DashboardPath(r model.Role) string {
	switch r {
	case model.RoleAdmin:
		return PathAdmin
	case model.RoleStylist:
		return PathStylist
	case model.RoleClient:
		return PathClient
	default:
		return PathClient
	}
}

// Resolve はロールの優先順位（プロフィール > IdPメタデータ > client）に従って有効なロールを返す。
func Resolve(profile *model.UserProfile, user *model.AuthUser) model.Role {
	if profile != nil {
		if r, ok := model.ParseRole(string(profile.Role)); ok {
			return r
		}
	}
	if r := user.MetadataRole(); r != "" {
		return r
	}
	return model.RoleClient
}
