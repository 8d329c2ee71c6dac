package identity

import (
	"context"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/hitoshi/salonlink/internal/model"
)

// sessionTokenSource は保存済みセッションのアクセストークンをoauth2.TokenSourceとして提供する。
// 期限切れが近い場合はGetSessionがリフレッシュする。
type sessionTokenSource struct {
	ctx    context.Context
	client *Client
}

// Token はoauth2.TokenSourceを実装する。
func (ts *sessionTokenSource) Token() (*oauth2.Token, error) {
	s, err := ts.client.GetSession(ts.ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, model.NewUnauthorizedError()
	}
	return toOAuth2Token(s), nil
}

func toOAuth2Token(s *model.Session) *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: s.RefreshToken,
		Expiry:       s.ExpiresAt.Add(-defaultRefreshMargin),
	}
}

// HTTPClient はリクエストにユーザーのアクセストークンを付与するHTTPクライアントを返す。
// テーブルAPIへ行レベルセキュリティの対象ユーザーとしてアクセスする際に使用する。
// トークンはリクエストごとに保存済みセッションから取得するため、ユーザーの切り替えに追従する。
func (c *Client) HTTPClient(ctx context.Context) *http.Client {
	base := c.httpClient.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	return &http.Client{
		Timeout: c.httpClient.Timeout,
		Transport: &oauth2.Transport{
			Source: &sessionTokenSource{ctx: ctx, client: c},
			Base:   base,
		},
	}
}
