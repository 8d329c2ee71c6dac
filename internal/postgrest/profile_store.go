package postgrest

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/hitoshi/salonlink/internal/model"
	"github.com/hitoshi/salonlink/internal/profile"
)

// ProfileStore はprofiles / stylist_profilesテーブルをPostgREST経由で操作するprofile.Storeの実装。
type ProfileStore struct {
	client *Client
}

// NewProfileStore はProfileStoreを生成する。
func NewProfileStore(client *Client) *ProfileStore {
	return &ProfileStore{client: client}
}

// FindProfile は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (s *ProfileStore) FindProfile(ctx context.Context, id string) (*model.UserProfile, error) {
	var p model.UserProfile
	err := s.client.Do(ctx, Request{
		Method: http.MethodGet,
		Table:  "profiles",
		Query:  url.Values{"id": {Eq(id)}, "select": {"*"}},
		Single: true,
	}, &p)
	if errors.Is(err, model.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// InsertProfile はプロフィールを作成する。一意制約違反の場合はmodel.ErrDuplicateを返す。
func (s *ProfileStore) InsertProfile(ctx context.Context, p *model.UserProfile) error {
	return s.client.Do(ctx, Request{
		Method: http.MethodPost,
		Table:  "profiles",
		Body:   p,
		Prefer: []string{"return=minimal"},
	}, nil)
}

// UpsertStylistContact はuser_idをキーに店舗・連絡先情報を作成または更新する。
func (s *ProfileStore) UpsertStylistContact(ctx context.Context, sp *model.StylistProfile) error {
	body := map[string]any{
		"user_id":       sp.UserID,
		"business_name": sp.BusinessName,
		"location":      sp.Location,
		"contact_email": sp.ContactEmail,
		"contact_phone": sp.ContactPhone,
		"updated_at":    sp.UpdatedAt,
	}
	return s.client.Do(ctx, Request{
		Method: http.MethodPost,
		Table:  "stylist_profiles",
		Query:  url.Values{"on_conflict": {"user_id"}},
		Body:   body,
		Prefer: []string{"resolution=merge-duplicates", "return=minimal"},
	}, nil)
}

var _ profile.Store = (*ProfileStore)(nil)
