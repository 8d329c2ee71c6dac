// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/hitoshi/salonlink/internal/model"
)

// ProfileRepository はユーザープロフィール（profilesテーブル）の永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.UserProfile, error)

	// Insert はプロフィールを作成する。既に存在する場合はmodel.ErrDuplicateを返す。
	Insert(ctx context.Context, p *model.UserProfile) error

	// Delete は指定IDのプロフィールを削除する。
	// 関連するstylist_profiles、servicesはCASCADE削除される。
	// 存在しない場合はmodel.ErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// StylistRepository はスタイリストプロフィールの永続化インターフェース。
type StylistRepository interface {
	// FindByID は指定IDのスタイリストプロフィールを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.StylistProfile, error)

	// FindByUserID はuser_idでスタイリストプロフィールを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.StylistProfile, error)

	// Create はスタイリストプロフィールを作成する。同一user_idが存在する場合はmodel.ErrDuplicateを返す。
	Create(ctx context.Context, sp *model.StylistProfile) error

	// Update は掲載情報を更新する。評価集計は更新しない。
	Update(ctx context.Context, sp *model.StylistProfile) error

	// UpsertContact はuser_idをキーに店舗名・所在地・連絡先を作成または更新する。
	UpsertContact(ctx context.Context, sp *model.StylistProfile) error

	// Delete は指定IDのスタイリストプロフィールを削除する。存在しない場合はmodel.ErrNotFoundを返す。
	Delete(ctx context.Context, id string) error

	// DeleteOrphaned はroleがstylist/adminでないユーザーに紐付くスタイリストプロフィールを削除し、件数を返す。
	DeleteOrphaned(ctx context.Context) (int64, error)
}

// ServiceRepository はメニュー（servicesテーブル）の永続化インターフェース。
type ServiceRepository interface {
	// ListByStylist はスタイリストのメニュー一覧を作成日時順で返す。
	ListByStylist(ctx context.Context, stylistID string) ([]*model.Service, error)

	// FindByID は指定IDのメニューを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Service, error)

	// Create はメニューを作成する。
	Create(ctx context.Context, s *model.Service) error

	// Update はメニューを更新する。存在しない場合はmodel.ErrNotFoundを返す。
	Update(ctx context.Context, s *model.Service) error

	// Delete は指定IDのメニューを削除する。存在しない場合はmodel.ErrNotFoundを返す。
	Delete(ctx context.Context, id string) error
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}

// uniqueViolation はPostgreSQLの一意制約違反エラーコード。
const uniqueViolation = "23505"

// mapWriteError は一意制約違反をmodel.ErrDuplicateに変換する。
func mapWriteError(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return model.ErrDuplicate
	}
	return err
}

// expectAffected は更新・削除で対象行がなかった場合にmodel.ErrNotFoundを返す。
func expectAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
