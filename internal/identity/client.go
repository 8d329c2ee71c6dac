// Package identity はGoTrue互換の認証REST APIクライアントを提供する。
// サインイン・サインアップ・確認コード検証・サインアウト・セッション復元と、
// 認証状態変化イベントの購読、管理者APIによるユーザー作成・削除、アクセストークン検証を含む。
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/hitoshi/salonlink/internal/model"
)

const (
	// authPath はGoTrueのベースパス。
	authPath = "/auth/v1"
	// defaultRefreshMargin は期限切れの何秒前にトークンを更新するか。
	defaultRefreshMargin = 60 * time.Second
	// maxErrorBodySize はエラーレスポンスの最大読み取りサイズ。
	maxErrorBodySize = 64 << 10
)

// transport はGoTrueへのHTTPリクエストを実行する。
type transport struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// do はリクエストを送信し、outにJSONをデコードする。
// bearerが空の場合はAPIキーをBearerトークンとして使用する。
// 失敗時のステータスコードとmodel.APIErrorを返す。ネットワーク障害のステータスは0。
func (t *transport) do(ctx context.Context, method, path string, query url.Values, body any, bearer string, out any) (int, error) {
	reqURL := t.baseURL + authPath + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("リクエストボディのエンコードに失敗: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return 0, fmt.Errorf("HTTPリクエストの作成に失敗: %w", err)
	}
	if bearer == "" {
		bearer = t.apiKey
	}
	req.Header.Set("apikey", t.apiKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		t.logger.Error("認証APIの呼び出しに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("error", err.Error()),
		)
		return 0, model.NewBackendUnavailableError("the identity service is unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		apiErr := translateError(resp.StatusCode, data)
		t.logger.Warn("認証APIがエラーステータスを返しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("http_status", resp.StatusCode),
			slog.String("code", apiErr.Code),
		)
		return resp.StatusCode, apiErr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, model.NewBackendUnavailableError("the identity service returned an unreadable response")
	}
	return resp.StatusCode, nil
}

// Client はエンドユーザーとしてGoTrueを利用するクライアント。
// セッションはSessionStorageに保存し、状態が変わるたびに購読者へ通知する。
type Client struct {
	transport
	storage       SessionStorage
	events        *emitter
	now           func() time.Time
	refreshMargin time.Duration
	refreshMu     sync.Mutex
	// storeMu は保存済みセッションの確認と削除を保存処理と直列化する
	storeMu sync.Mutex
}

// NewClient はClientを生成する。baseURLはプロジェクトURL（/auth/v1を含まない）。
func NewClient(baseURL, anonKey string, httpClient *http.Client, storage SessionStorage, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if storage == nil {
		storage = NewMemoryStorage()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		transport: transport{
			baseURL:    baseURL,
			apiKey:     anonKey,
			httpClient: httpClient,
			logger:     logger,
		},
		storage:       storage,
		events:        newEmitter(),
		now:           time.Now,
		refreshMargin: defaultRefreshMargin,
	}
}

// Subscribe は認証状態変化の購読を開始する。
// 購読直後に保存済みセッションを読み込み、INITIAL_SESSIONとして非同期に通知する。
// 読み込みに失敗した場合はINITIAL_SESSIONを通知しない。
func (c *Client) Subscribe(fn func(model.AuthEvent)) func() {
	unsubscribe := c.events.subscribe(fn)

	go func() {
		s, err := c.GetSession(context.Background())
		if err != nil {
			c.logger.Warn("初期セッションの読み込みに失敗しました",
				slog.String("error", err.Error()),
			)
			return
		}
		fn(model.AuthEvent{Name: model.AuthEventInitialSession, Session: s})
	}()

	return unsubscribe
}

// SignInWithPassword はメールアドレスとパスワードでサインインする。
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*model.Session, error) {
	var sj sessionJSON
	body := map[string]string{"email": email, "password": password}
	if _, err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"password"}}, body, "", &sj); err != nil {
		return nil, err
	}
	return c.adopt(ctx, &sj, model.AuthEventSignedIn)
}

// SignUp はユーザーを登録する。メール確認が必要な場合はセッションをnilで返す。
func (c *Client) SignUp(ctx context.Context, req model.SignUpRequest) (*model.Session, *model.AuthUser, error) {
	body := map[string]any{
		"email":    req.Email,
		"password": req.Password,
		"data":     req.Metadata(),
	}

	var raw json.RawMessage
	if _, err := c.do(ctx, http.MethodPost, "/signup", nil, body, "", &raw); err != nil {
		return nil, nil, err
	}

	// 自動確認が有効な場合はセッション、無効な場合はユーザーが返る
	var sj sessionJSON
	if err := json.Unmarshal(raw, &sj); err == nil && sj.AccessToken != "" {
		s, err := c.adopt(ctx, &sj, model.AuthEventSignedIn)
		if err != nil {
			return nil, nil, err
		}
		return s, s.User, nil
	}

	var uj userJSON
	if err := json.Unmarshal(raw, &uj); err != nil {
		return nil, nil, model.NewBackendUnavailableError("the identity service returned an unreadable response")
	}
	c.logger.Info("ユーザーを登録しました。メール確認待ちです",
		slog.String("user_id", uj.ID),
	)
	return nil, uj.toModel(), nil
}

// VerifyOTP はメールで届いた確認コードを検証する。
func (c *Client) VerifyOTP(ctx context.Context, email, token string) (*model.Session, error) {
	var sj sessionJSON
	body := map[string]string{"type": "email", "email": email, "token": token}
	if _, err := c.do(ctx, http.MethodPost, "/verify", nil, body, "", &sj); err != nil {
		return nil, err
	}
	return c.adopt(ctx, &sj, model.AuthEventSignedIn)
}

// SignOut は保存済みセッションを削除してSIGNED_OUTを通知し、その後リモートのセッションを無効化する。
// sがnilの場合は保存済みセッションを対象とする。保存済みセッションがsと異なる場合は削除しない。
// リモートで既に無効な場合はエラーにしない。
func (c *Client) SignOut(ctx context.Context, s *model.Session) error {
	s, err := c.removeStored(ctx, s)
	if err != nil {
		return err
	}
	c.events.emit(model.AuthEventSignedOut, s)

	if s == nil || s.AccessToken == "" {
		return nil
	}

	status, err := c.do(ctx, http.MethodPost, "/logout", url.Values{"scope": {"local"}}, nil, s.AccessToken, nil)
	if err != nil && (status == http.StatusUnauthorized || status == http.StatusNotFound || status == http.StatusForbidden) {
		return nil
	}
	return err
}

// removeStored は保存済みセッションがsと同じアクセストークンを持つ場合に削除し、対象のセッションを返す。
// sがnilの場合は保存済みセッションを無条件に削除する。
func (c *Client) removeStored(ctx context.Context, s *model.Session) (*model.Session, error) {
	c.storeMu.Lock()
	defer c.storeMu.Unlock()

	stored, err := c.storage.Load(ctx)
	if err != nil {
		c.logger.Warn("保存済みセッションの読み込みに失敗しました",
			slog.String("error", err.Error()),
		)
	}
	if s == nil {
		s = stored
	} else if stored != nil && stored.AccessToken != s.AccessToken {
		c.logger.Info("保存済みセッションが別のセッションに置き換わっているため削除しませんでした")
		return s, nil
	}

	if err := c.storage.Remove(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// GetSession は保存済みセッションを返す。期限切れが近い場合はリフレッシュトークンで更新する。
// リフレッシュトークンが無効な場合はセッションを削除してnilを返す。
func (c *Client) GetSession(ctx context.Context) (*model.Session, error) {
	s, err := c.storage.Load(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, nil
	}
	if s.ExpiresAt.IsZero() || c.now().Add(c.refreshMargin).Before(s.ExpiresAt) {
		return s, nil
	}
	if s.RefreshToken == "" {
		return nil, nil
	}

	refreshed, err := c.RefreshSession(ctx, s.RefreshToken)
	if err != nil {
		if apiErr := model.AsAPIError(err); apiErr != nil && apiErr.Kind == model.KindAuth {
			c.logger.Info("リフレッシュトークンが無効なためセッションを破棄しました")
			if _, rmErr := c.removeStored(ctx, s); rmErr != nil {
				return nil, rmErr
			}
			c.events.emit(model.AuthEventSignedOut, s)
			return nil, nil
		}
		return nil, err
	}
	return refreshed, nil
}

// RefreshSession はリフレッシュトークンで新しいセッションを取得し、TOKEN_REFRESHEDを通知する。
func (c *Client) RefreshSession(ctx context.Context, refreshToken string) (*model.Session, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	// 待機中に他の呼び出しが更新済みであれば再利用する
	if cur, err := c.storage.Load(ctx); err == nil && cur != nil && cur.RefreshToken != refreshToken &&
		c.now().Add(c.refreshMargin).Before(cur.ExpiresAt) {
		return cur, nil
	}

	var sj sessionJSON
	body := map[string]string{"refresh_token": refreshToken}
	if _, err := c.do(ctx, http.MethodPost, "/token", url.Values{"grant_type": {"refresh_token"}}, body, "", &sj); err != nil {
		return nil, err
	}
	return c.adopt(ctx, &sj, model.AuthEventTokenRefreshed)
}

// GetUser はアクセストークンの所有ユーザーを取得する。
func (c *Client) GetUser(ctx context.Context, accessToken string) (*model.AuthUser, error) {
	var uj userJSON
	if _, err := c.do(ctx, http.MethodGet, "/user", nil, nil, accessToken, &uj); err != nil {
		return nil, err
	}
	u := uj.toModel()
	if u == nil {
		return nil, model.NewUnauthorizedError()
	}
	return u, nil
}

// adopt はトークンレスポンスをセッションとして保存し、eventを通知する。
func (c *Client) adopt(ctx context.Context, sj *sessionJSON, event string) (*model.Session, error) {
	s := sj.toModel(c.now())
	if s == nil || s.User == nil {
		return nil, model.NewBackendUnavailableError("the identity service returned no session")
	}
	c.storeMu.Lock()
	err := c.storage.Save(ctx, s)
	c.storeMu.Unlock()
	if err != nil {
		c.logger.Error("セッションの保存に失敗しました",
			slog.String("user_id", s.User.ID),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	c.events.emit(event, s)
	return s, nil
}
