package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/salonlink/internal/model"
	"github.com/hitoshi/salonlink/internal/profile"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db       *sql.DB
	stylists StylistRepository
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db, stylists: NewPostgresStylistRepo(db)}
}

// FindByID は指定IDのプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.UserProfile, error) {
	p := &model.UserProfile{}
	var role string
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, full_name, role, phone, avatar_url, created_at, updated_at
		 FROM profiles WHERE id = $1`,
		id,
	).Scan(&p.ID, &p.Email, &p.FullName, &role, &p.Phone, &p.AvatarURL, &p.CreatedAt, &p.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile by ID: %w", err)
	}
	p.Role = model.Role(role)

	return p, nil
}

// Insert はプロフィールを作成する。既に存在する場合はmodel.ErrDuplicateを返す。
func (r *PostgresProfileRepo) Insert(ctx context.Context, p *model.UserProfile) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, email, full_name, role, phone, avatar_url, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.Email, p.FullName, string(p.Role), p.Phone, p.AvatarURL, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert profile: %w", mapWriteError(err))
	}
	return nil
}

// Delete は指定IDのプロフィールを削除する。
// 関連するstylist_profiles、servicesはCASCADE削除される。
func (r *PostgresProfileRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return fmt.Errorf("failed to delete profile %s: %w", id, err)
	}
	return nil
}

// FindProfile はprofile.Storeを実装する。
func (r *PostgresProfileRepo) FindProfile(ctx context.Context, id string) (*model.UserProfile, error) {
	return r.FindByID(ctx, id)
}

// InsertProfile はprofile.Storeを実装する。
func (r *PostgresProfileRepo) InsertProfile(ctx context.Context, p *model.UserProfile) error {
	return r.Insert(ctx, p)
}

// UpsertStylistContact はprofile.Storeを実装する。
func (r *PostgresProfileRepo) UpsertStylistContact(ctx context.Context, sp *model.StylistProfile) error {
	return r.stylists.UpsertContact(ctx, sp)
}

// compile-time interface check
var (
	_ ProfileRepository = (*PostgresProfileRepo)(nil)
	_ profile.Store     = (*PostgresProfileRepo)(nil)
)
