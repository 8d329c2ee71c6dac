package identity

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"

	"github.com/hitoshi/salonlink/internal/model"
)

const testIssuer = "https://project.example.supabase.co/auth/v1"

// signRS256 はテスト用にRS256署名のJWTを生成する。
func signRS256(t *testing.T, key *rsa.PrivateKey, claims map[string]any) string {
	t.Helper()
	enc := base64.RawURLEncoding

	header, _ := json.Marshal(map[string]string{"alg": "RS256", "typ": "JWT"})
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("failed to marshal claims: %v", err)
	}

	signingInput := enc.EncodeToString(header) + "." + enc.EncodeToString(payload)
	digest := sha256.Sum256([]byte(signingInput))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	return signingInput + "." + enc.EncodeToString(sig)
}

func newTestVerifier(t *testing.T) (*Verifier, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	var buf bytes.Buffer
	ks := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{key.Public()}}
	return NewVerifierWithKeySet(testIssuer, ks, "", newTestLogger(&buf)), key
}

func validClaims() map[string]any {
	now := time.Now()
	return map[string]any{
		"iss":           testIssuer,
		"sub":           "user-1",
		"aud":           DefaultAudience,
		"exp":           now.Add(time.Hour).Unix(),
		"iat":           now.Unix(),
		"email":         "user-1@example.com",
		"role":          "authenticated",
		"user_metadata": map[string]any{"role": "stylist"},
	}
}

func TestVerify_ValidToken_ReturnsClaims(t *testing.T) {
	v, key := newTestVerifier(t)
	token := signRS256(t, key, validClaims())

	claims, err := v.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if claims.Subject != "user-1" || claims.Email != "user-1@example.com" {
		t.Errorf("unexpected claims %+v", claims)
	}
	if claims.User().MetadataRole() != model.RoleStylist {
		t.Errorf("MetadataRole() = %q, want stylist", claims.User().MetadataRole())
	}
}

func TestVerify_Rejects(t *testing.T) {
	v, key := newTestVerifier(t)
	other, _ := rsa.GenerateKey(rand.Reader, 2048)

	expired := validClaims()
	expired["exp"] = time.Now().Add(-time.Hour).Unix()

	wrongIssuer := validClaims()
	wrongIssuer["iss"] = "https://evil.example.com/auth/v1"

	wrongAudience := validClaims()
	wrongAudience["aud"] = "service_role"

	tests := []struct {
		name  string
		token string
	}{
		{"expired", signRS256(t, key, expired)},
		{"wrong issuer", signRS256(t, key, wrongIssuer)},
		{"wrong audience", signRS256(t, key, wrongAudience)},
		{"unknown key", signRS256(t, other, validClaims())},
		{"garbage", "not.a.jwt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), tt.token)
			apiErr := model.AsAPIError(err)
			if apiErr == nil || apiErr.Code != model.ErrCodeUnauthorized {
				t.Errorf("expected unauthorized error, got %v", err)
			}
		})
	}
}
