package identity

import (
	"context"
	"log/slog"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/hitoshi/salonlink/internal/model"
)

// DefaultAudience はGoTrueが発行するアクセストークンのaudクレーム。
const DefaultAudience = "authenticated"

// Claims はアクセストークンから取り出すクレーム。
type Claims struct {
	Subject      string         `json:"sub"`
	Email        string         `json:"email"`
	Role         string         `json:"role"`
	SessionID    string         `json:"session_id"`
	UserMetadata map[string]any `json:"user_metadata"`
	AppMetadata  map[string]any `json:"app_metadata"`
}

// User はクレームを認証ユーザーとして返す。
func (c *Claims) User() *model.AuthUser {
	return &model.AuthUser{
		ID:          c.Subject,
		Email:       c.Email,
		Metadata:    c.UserMetadata,
		AppMetadata: c.AppMetadata,
	}
}

// Verifier はアクセストークン（JWT）をJWKSの公開鍵で検証する。
type Verifier struct {
	verifier *oidc.IDTokenVerifier
	logger   *slog.Logger
}

// NewVerifier はjwksURLから公開鍵を取得するVerifierを生成する。
// 公開鍵は初回検証時に取得し、未知のkidを受け取った時に再取得する。
func NewVerifier(ctx context.Context, issuer, jwksURL, audience string, logger *slog.Logger) *Verifier {
	return NewVerifierWithKeySet(issuer, oidc.NewRemoteKeySet(ctx, jwksURL), audience, logger)
}

// NewVerifierWithKeySet は任意のKeySetでVerifierを生成する。
func NewVerifierWithKeySet(issuer string, keySet oidc.KeySet, audience string, logger *slog.Logger) *Verifier {
	if audience == "" {
		audience = DefaultAudience
	}
	if logger == nil {
		logger = slog.Default()
	}
	cfg := &oidc.Config{
		ClientID:             audience,
		SupportedSigningAlgs: []string{oidc.RS256, oidc.ES256},
	}
	return &Verifier{
		verifier: oidc.NewVerifier(issuer, keySet, cfg),
		logger:   logger,
	}
}

// Verify はトークンの署名・発行者・有効期限・audを検証してクレームを返す。
// 検証に失敗した場合はmodel.APIError（unauthorized）を返す。
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*Claims, error) {
	token, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		v.logger.Debug("アクセストークンの検証に失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewUnauthorizedError()
	}

	var claims Claims
	if err := token.Claims(&claims); err != nil {
		return nil, model.NewUnauthorizedError()
	}
	if claims.Subject == "" {
		return nil, model.NewUnauthorizedError()
	}
	return &claims, nil
}
