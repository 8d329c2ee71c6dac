// Package account は管理者によるアカウントの作成・削除を提供する。
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/salonlink/internal/identity"
	"github.com/hitoshi/salonlink/internal/model"
	"github.com/hitoshi/salonlink/internal/profile"
	"github.com/hitoshi/salonlink/internal/validation"
)

// UserAdmin はIdPの管理者APIインターフェース。identity.Adminが実装する。
type UserAdmin interface {
	CreateUser(ctx context.Context, req identity.AdminUserRequest) (*model.AuthUser, error)
	DeleteUser(ctx context.Context, id string) error
}

// ProfileWriter はプロフィールの作成・削除インターフェース。
type ProfileWriter interface {
	Insert(ctx context.Context, p *model.UserProfile) error
	Delete(ctx context.Context, id string) error
}

// StylistContactWriter はスタイリストの店舗・連絡先情報の反映インターフェース。
type StylistContactWriter interface {
	UpsertContact(ctx context.Context, sp *model.StylistProfile) error
}

// ObjectRemover はオブジェクトストレージの一括削除インターフェース。storage.Clientが実装する。
type ObjectRemover interface {
	RemovePrefix(ctx context.Context, bucket, prefix string) error
}

// Service はアカウント管理のサービス層。
type Service struct {
	admin     UserAdmin
	profiles  ProfileWriter
	stylists  StylistContactWriter
	objects   ObjectRemover
	bucket    string
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// objectsがnilの場合、削除時のストレージ掃除は行わない。
func NewService(
	admin UserAdmin,
	profiles ProfileWriter,
	stylists StylistContactWriter,
	objects ObjectRemover,
	bucket string,
	validator *validation.Validator,
	logger *slog.Logger,
) *Service {
	if validator == nil {
		validator = validation.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		admin:     admin,
		profiles:  profiles,
		stylists:  stylists,
		objects:   objects,
		bucket:    bucket,
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// Create はメール確認済みのアカウントとプロフィールを作成する。
// プロフィールの作成に失敗した場合は作成済みの認証ユーザーを削除する。
func (s *Service) Create(ctx context.Context, req model.AccountRequest) (*model.UserProfile, error) {
	if apiErr := s.validator.Struct(req); apiErr != nil {
		return nil, apiErr
	}

	areq := identity.AdminUserRequest{
		Email:    req.Email,
		Password: req.Password,
		Metadata: req.Metadata(),
	}
	if req.Role == model.RoleAdmin {
		// 管理者ロールはユーザーが書き換えられないapp_metadataにのみ付与する
		areq.AppMetadata = map[string]any{model.MetaRole: string(model.RoleAdmin)}
	}
	user, err := s.admin.CreateUser(ctx, areq)
	if err != nil {
		return nil, err
	}

	now := s.now()
	p := profile.Synthesize(user, now)
	p.Role = req.Role
	if err := s.profiles.Insert(ctx, p); err != nil {
		s.logger.Error("プロフィールの作成に失敗したため認証ユーザーを削除します",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		if delErr := s.admin.DeleteUser(ctx, user.ID); delErr != nil {
			s.logger.Error("認証ユーザーの削除に失敗しました",
				slog.String("user_id", user.ID),
				slog.String("error", delErr.Error()),
			)
		}
		if errors.Is(err, model.ErrDuplicate) {
			return nil, model.NewUserExistsError()
		}
		return nil, fmt.Errorf("プロフィールの作成に失敗: %w", err)
	}

	if p.Role == model.RoleStylist {
		if err := s.stylists.UpsertContact(ctx, profile.StylistFromMetadata(user, now)); err != nil {
			return nil, fmt.Errorf("スタイリスト情報の作成に失敗: %w", err)
		}
	}

	s.logger.Info("アカウントを作成しました",
		slog.String("user_id", user.ID),
		slog.String("role", string(p.Role)),
	)
	return p, nil
}

// Delete はアカウントを削除する。
// 削除順序: profiles（+ CASCADE: stylist_profiles, services） → ストレージ上のファイル → 認証ユーザー
func (s *Service) Delete(ctx context.Context, userID string) error {
	if apiErr := s.validator.Var("id", userID, "required,uuid"); apiErr != nil {
		return apiErr
	}

	s.logger.Info("アカウントの削除を開始します",
		slog.String("user_id", userID),
	)

	// 1. プロフィールを削除（未作成のアカウントもあるため存在しなくても続行）
	if err := s.profiles.Delete(ctx, userID); err != nil && !errors.Is(err, model.ErrNotFound) {
		return fmt.Errorf("プロフィールの削除に失敗: %w", err)
	}

	// 2. ユーザーのファイルを削除
	if s.objects != nil && s.bucket != "" {
		if err := s.objects.RemovePrefix(ctx, s.bucket, userID); err != nil {
			return fmt.Errorf("ストレージの削除に失敗: %w", err)
		}
	}

	// 3. 認証ユーザーを削除
	if err := s.admin.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("認証ユーザーの削除に失敗: %w", err)
	}

	s.logger.Info("アカウントの削除が完了しました",
		slog.String("user_id", userID),
	)
	return nil
}
