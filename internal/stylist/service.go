// Package stylist はスタイリストの掲載情報とメニュー管理のドメインロジックを提供する。
package stylist

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/salonlink/internal/model"
	"github.com/hitoshi/salonlink/internal/repository"
	"github.com/hitoshi/salonlink/internal/security"
	"github.com/hitoshi/salonlink/internal/validation"
)

// Actor は操作を行う認証済みユーザーとその解決済みロール。
type Actor struct {
	UserID string
	Role   model.Role
}

// IsAdmin は管理者かどうかを返す。
func (a Actor) IsAdmin() bool {
	return a.Role == model.RoleAdmin
}

// Service はスタイリストプロフィールとメニューのサービス層。
// 所有者または管理者のみが更新できる。
type Service struct {
	stylists  repository.StylistRepository
	services  repository.ServiceRepository
	sanitizer security.TextSanitizer
	validator *validation.Validator
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	stylists repository.StylistRepository,
	services repository.ServiceRepository,
	sanitizer security.TextSanitizer,
	validator *validation.Validator,
	logger *slog.Logger,
) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if validator == nil {
		validator = validation.New()
	}
	return &Service{
		stylists:  stylists,
		services:  services,
		sanitizer: sanitizer,
		validator: validator,
		logger:    logger,
	}
}

// Get は指定IDのスタイリストプロフィールを返す。
func (s *Service) Get(ctx context.Context, id string) (*model.StylistProfile, error) {
	if apiErr := s.validator.Var("id", id, "required,uuid"); apiErr != nil {
		return nil, apiErr
	}
	sp, err := s.stylists.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("スタイリストの取得に失敗: %w", err)
	}
	if sp == nil {
		return nil, model.NewStylistNotFoundError(id)
	}
	return sp, nil
}

// GetByUser はユーザーIDに紐付くスタイリストプロフィールを返す。
func (s *Service) GetByUser(ctx context.Context, userID string) (*model.StylistProfile, error) {
	if apiErr := s.validator.Var("user_id", userID, "required,uuid"); apiErr != nil {
		return nil, apiErr
	}
	sp, err := s.stylists.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("スタイリストの取得に失敗: %w", err)
	}
	if sp == nil {
		return nil, model.NewStylistNotFoundError(userID)
	}
	return sp, nil
}

// Create はスタイリストプロフィールを作成する。
// 管理者以外は自分自身のプロフィールのみ作成できる。
func (s *Service) Create(ctx context.Context, actor Actor, in model.StylistInput) (*model.StylistProfile, error) {
	if err := s.validateStylist(in); err != nil {
		return nil, err
	}

	owner := actor.UserID
	if in.UserID != "" && in.UserID != actor.UserID {
		if !actor.IsAdmin() {
			return nil, model.NewForbiddenError()
		}
		owner = in.UserID
	}

	sp := &model.StylistProfile{UserID: owner}
	s.apply(sp, in)

	if err := s.stylists.Create(ctx, sp); err != nil {
		if errors.Is(err, model.ErrDuplicate) {
			return nil, model.NewStylistExistsError()
		}
		return nil, fmt.Errorf("スタイリストの作成に失敗: %w", err)
	}

	s.logger.Info("スタイリストプロフィールを作成しました",
		slog.String("stylist_id", sp.ID),
		slog.String("user_id", owner),
		slog.String("actor_id", actor.UserID),
	)
	return sp, nil
}

// Update は掲載情報を更新する。評価集計は変更しない。
func (s *Service) Update(ctx context.Context, actor Actor, id string, in model.StylistInput) (*model.StylistProfile, error) {
	if err := s.validateStylist(in); err != nil {
		return nil, err
	}
	sp, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, sp); err != nil {
		return nil, err
	}

	s.apply(sp, in)
	if err := s.stylists.Update(ctx, sp); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.NewStylistNotFoundError(id)
		}
		return nil, fmt.Errorf("スタイリストの更新に失敗: %w", err)
	}
	return sp, nil
}

// Delete はスタイリストプロフィールを削除する。メニューはCASCADE削除される。
func (s *Service) Delete(ctx context.Context, id string) error {
	if apiErr := s.validator.Var("id", id, "required,uuid"); apiErr != nil {
		return apiErr
	}
	if err := s.stylists.Delete(ctx, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.NewStylistNotFoundError(id)
		}
		return fmt.Errorf("スタイリストの削除に失敗: %w", err)
	}
	s.logger.Info("スタイリストプロフィールを削除しました",
		slog.String("stylist_id", id),
	)
	return nil
}

// ListServices はスタイリストのメニュー一覧を返す。
func (s *Service) ListServices(ctx context.Context, stylistID string) ([]*model.Service, error) {
	if _, err := s.Get(ctx, stylistID); err != nil {
		return nil, err
	}
	list, err := s.services.ListByStylist(ctx, stylistID)
	if err != nil {
		return nil, fmt.Errorf("メニュー一覧の取得に失敗: %w", err)
	}
	return list, nil
}

// CreateService はメニューを作成する。
func (s *Service) CreateService(ctx context.Context, actor Actor, in model.NewServiceInput) (*model.Service, error) {
	if apiErr := s.validator.Struct(in); apiErr != nil {
		return nil, apiErr
	}
	sp, err := s.Get(ctx, in.StylistID)
	if err != nil {
		return nil, err
	}
	if err := authorize(actor, sp); err != nil {
		return nil, err
	}

	svc := &model.Service{StylistID: sp.ID}
	s.applyService(svc, in.ServiceInput)
	if err := s.services.Create(ctx, svc); err != nil {
		return nil, fmt.Errorf("メニューの作成に失敗: %w", err)
	}
	return svc, nil
}

// UpdateService はメニューを更新する。
func (s *Service) UpdateService(ctx context.Context, actor Actor, id string, in model.ServiceInput) (*model.Service, error) {
	if apiErr := s.validator.Struct(in); apiErr != nil {
		return nil, apiErr
	}
	svc, err := s.ownedService(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	s.applyService(svc, in)
	if err := s.services.Update(ctx, svc); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.NewServiceNotFoundError(id)
		}
		return nil, fmt.Errorf("メニューの更新に失敗: %w", err)
	}
	return svc, nil
}

// DeleteService はメニューを削除する。
func (s *Service) DeleteService(ctx context.Context, actor Actor, id string) error {
	if _, err := s.ownedService(ctx, actor, id); err != nil {
		return err
	}
	if err := s.services.Delete(ctx, id); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return model.NewServiceNotFoundError(id)
		}
		return fmt.Errorf("メニューの削除に失敗: %w", err)
	}
	return nil
}

// ownedService はメニューを取得し、所属スタイリストの所有者か管理者であることを確認する。
func (s *Service) ownedService(ctx context.Context, actor Actor, id string) (*model.Service, error) {
	if apiErr := s.validator.Var("id", id, "required,uuid"); apiErr != nil {
		return nil, apiErr
	}
	svc, err := s.services.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("メニューの取得に失敗: %w", err)
	}
	if svc == nil {
		return nil, model.NewServiceNotFoundError(id)
	}
	sp, err := s.stylists.FindByID(ctx, svc.StylistID)
	if err != nil {
		return nil, fmt.Errorf("スタイリストの取得に失敗: %w", err)
	}
	if sp == nil {
		return nil, model.NewServiceNotFoundError(id)
	}
	if err := authorize(actor, sp); err != nil {
		return nil, err
	}
	return svc, nil
}

func (s *Service) validateStylist(in model.StylistInput) error {
	if apiErr := s.validator.Struct(in); apiErr != nil {
		return apiErr
	}
	if in.WebsiteURL != "" {
		if err := security.ValidatePublicURL(in.WebsiteURL); err != nil {
			return model.NewValidationError("website_url", "must be a public http(s) URL")
		}
	}
	return nil
}

// apply は入力を無害化してプロフィールに反映する。
func (s *Service) apply(sp *model.StylistProfile, in model.StylistInput) {
	sp.BusinessName = s.sanitizer.PlainText(in.BusinessName)
	sp.Location = s.sanitizer.PlainText(in.Location)
	sp.Bio = s.sanitizer.RichText(in.Bio)
	sp.ContactEmail = in.ContactEmail
	sp.ContactPhone = s.sanitizer.PlainText(in.ContactPhone)
	sp.WebsiteURL = in.WebsiteURL
	sp.Specialties = make([]string, 0, len(in.Specialties))
	for _, tag := range in.Specialties {
		if v := s.sanitizer.PlainText(tag); v != "" {
			sp.Specialties = append(sp.Specialties, v)
		}
	}
}

func (s *Service) applyService(svc *model.Service, in model.ServiceInput) {
	svc.Name = s.sanitizer.PlainText(in.Name)
	svc.Description = s.sanitizer.RichText(in.Description)
	svc.Price = in.Price
	svc.DurationMinutes = in.DurationMinutes
}

// authorize は所有者または管理者であることを確認する。
func authorize(actor Actor, sp *model.StylistProfile) error {
	if actor.IsAdmin() || sp.UserID == actor.UserID {
		return nil
	}
	return model.NewForbiddenError()
}
