// Package profile はアプリケーション側プロフィールの取得・自動作成とキャッシュを提供する。
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/salonlink/internal/model"
)

// Store はprofiles / stylist_profilesテーブルへのアクセスインターフェース。
// クライアントではPostgREST、サーバーではPostgreSQLリポジトリが実装する。
type Store interface {
	// FindProfile は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindProfile(ctx context.Context, id string) (*model.UserProfile, error)
	// InsertProfile はプロフィールを作成する。一意制約違反の場合はmodel.ErrDuplicateを返す。
	InsertProfile(ctx context.Context, p *model.UserProfile) error
	// UpsertStylistContact はuser_idをキーにスタイリストプロフィールの店舗・連絡先情報を作成または更新する。
	UpsertStylistContact(ctx context.Context, sp *model.StylistProfile) error
}

// Service はプロフィールの取得と、未作成時の自動作成を行う。
type Service struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(store Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
}

// Fetch はユーザーのプロフィールを取得する。
// プロフィールが存在しない場合はIdPメタデータから作成する。
// 同時作成で一意制約違反になった場合は先行した作成者の結果を再取得して返す。
func (s *Service) Fetch(ctx context.Context, user *model.AuthUser) (*model.UserProfile, error) {
	if user == nil || user.ID == "" {
		return nil, fmt.Errorf("ユーザーが指定されていません")
	}

	p, err := s.store.FindProfile(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("プロフィールの取得に失敗: %w", err)
	}
	if p != nil {
		return p, nil
	}

	return s.create(ctx, user)
}

// create はメタデータからプロフィールを生成して永続化する。
func (s *Service) create(ctx context.Context, user *model.AuthUser) (*model.UserProfile, error) {
	p := Synthesize(user, s.now())

	err := s.store.InsertProfile(ctx, p)
	if errors.Is(err, model.ErrDuplicate) {
		// 並行した作成者が先に作成した
		s.logger.Info("プロフィールが並行して作成されたため再取得します",
			slog.String("user_id", user.ID),
		)
		existing, findErr := s.store.FindProfile(ctx, user.ID)
		if findErr != nil {
			return nil, fmt.Errorf("競合後のプロフィール再取得に失敗: %w", findErr)
		}
		if existing == nil {
			return nil, fmt.Errorf("一意制約違反後にプロフィールが見つかりません: %s", user.ID)
		}
		return existing, nil
	}
	if err != nil {
		return nil, fmt.Errorf("プロフィールの作成に失敗: %w", err)
	}

	s.logger.Info("認証メタデータからプロフィールを作成しました",
		slog.String("user_id", user.ID),
		slog.String("role", string(p.Role)),
	)

	if p.Role == model.RoleStylist {
		sp := StylistFromMetadata(user, s.now())
		if err := s.store.UpsertStylistContact(ctx, sp); err != nil {
			// プロフィール本体は作成済み。店舗情報はダッシュボードから再設定できる
			s.logger.Warn("スタイリスト情報の反映に失敗しました",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	return p, nil
}

// Synthesize はIdPメタデータから新規プロフィールを組み立てる。
// ロールが未設定・未知の場合はclientとする。adminはapp_metadataで付与されている場合のみ。
func Synthesize(user *model.AuthUser, now time.Time) *model.UserProfile {
	r := user.MetadataRole()
	if r == "" {
		r = model.RoleClient
	}
	return &model.UserProfile{
		ID:        user.ID,
		Email:     user.Email,
		FullName:  user.Meta(model.MetaFullName),
		Role:      r,
		Phone:     user.Meta(model.MetaPhone),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// StylistFromMetadata はIdPメタデータからスタイリストプロフィールの店舗・連絡先情報を組み立てる。
// 店舗名がない場合はmodel.DefaultBusinessNameを使用する。
func StylistFromMetadata(user *model.AuthUser, now time.Time) *model.StylistProfile {
	businessName := user.Meta(model.MetaBusinessName)
	if businessName == "" {
		businessName = model.DefaultBusinessName
	}
	contactEmail := user.Meta(model.MetaContactEmail)
	if contactEmail == "" {
		contactEmail = user.Email
	}
	contactPhone := user.Meta(model.MetaContactPhone)
	if contactPhone == "" {
		contactPhone = user.Meta(model.MetaPhone)
	}
	return &model.StylistProfile{
		UserID:       user.ID,
		BusinessName: businessName,
		Location:     user.Meta(model.MetaLocation),
		ContactEmail: contactEmail,
		ContactPhone: contactPhone,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
