package session

import "github.com/hitoshi/salonlink/internal/model"

// eventKind はIdPのイベント名を正規化したアプリケーションイベント。
type eventKind int

const (
	kindIgnored eventKind = iota
	kindInitial
	kindSessionChanged
	kindSignedOut
	kindUserUpdated
)

func (k eventKind) String() string {
	switch k {
	case kindInitial:
		return "initial"
	case kindSessionChanged:
		return "session_changed"
	case kindSignedOut:
		return "signed_out"
	case kindUserUpdated:
		return "user_updated"
	default:
		return "ignored"
	}
}

// classify はIdPイベント名をアプリケーションイベントに変換する。
// SIGNED_INとTOKEN_REFRESHEDはどちらもセッションの差し替えとして扱う。
func classify(name string) eventKind {
	switch name {
	case model.AuthEventInitialSession:
		return kindInitial
	case model.AuthEventSignedIn, model.AuthEventTokenRefreshed:
		return kindSessionChanged
	case model.AuthEventSignedOut:
		return kindSignedOut
	case model.AuthEventUserUpdated:
		return kindUserUpdated
	default:
		return kindIgnored
	}
}

// toAPIError はリモート呼び出しのエラーをmodel.APIErrorに正規化する。
// IdPクライアントは境界で変換済みのため、ここに届く未変換のエラーはバックエンド障害として扱う。
func toAPIError(err error) *model.APIError {
	if err == nil {
		return nil
	}
	if apiErr := model.AsAPIError(err); apiErr != nil {
		return apiErr
	}
	return model.NewBackendUnavailableError(err.Error())
}
