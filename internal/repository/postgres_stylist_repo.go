package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/salonlink/internal/model"
)

// PostgresStylistRepo はPostgreSQLを使用したスタイリストプロフィールリポジトリ。
type PostgresStylistRepo struct {
	db *sql.DB
}

// NewPostgresStylistRepo はPostgresStylistRepoを生成する。
func NewPostgresStylistRepo(db *sql.DB) *PostgresStylistRepo {
	return &PostgresStylistRepo{db: db}
}

const stylistColumns = `id, user_id, business_name, location, bio, contact_email, contact_phone,
	website_url, specialties, rating_avg, rating_count, created_at, updated_at`

func scanStylist(row interface{ Scan(...any) error }) (*model.StylistProfile, error) {
	sp := &model.StylistProfile{}
	err := row.Scan(
		&sp.ID, &sp.UserID, &sp.BusinessName, &sp.Location, &sp.Bio, &sp.ContactEmail, &sp.ContactPhone,
		&sp.WebsiteURL, pq.Array(&sp.Specialties), &sp.RatingAvg, &sp.RatingCount, &sp.CreatedAt, &sp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return sp, nil
}

// FindByID は指定IDのスタイリストプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresStylistRepo) FindByID(ctx context.Context, id string) (*model.StylistProfile, error) {
	sp, err := scanStylist(r.db.QueryRowContext(ctx,
		`SELECT `+stylistColumns+` FROM stylist_profiles WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find stylist by ID: %w", err)
	}
	return sp, nil
}

// FindByUserID はuser_idでスタイリストプロフィールを取得する。見つからない場合はnilを返す。
func (r *PostgresStylistRepo) FindByUserID(ctx context.Context, userID string) (*model.StylistProfile, error) {
	sp, err := scanStylist(r.db.QueryRowContext(ctx,
		`SELECT `+stylistColumns+` FROM stylist_profiles WHERE user_id = $1`, userID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find stylist by user ID: %w", err)
	}
	return sp, nil
}

// Create はスタイリストプロフィールを作成する。IDと日時が未設定の場合は補完する。
func (r *PostgresStylistRepo) Create(ctx context.Context, sp *model.StylistProfile) error {
	fillStylistDefaults(sp)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stylist_profiles (`+stylistColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		sp.ID, sp.UserID, sp.BusinessName, sp.Location, sp.Bio, sp.ContactEmail, sp.ContactPhone,
		sp.WebsiteURL, pq.Array(sp.Specialties), sp.RatingAvg, sp.RatingCount, sp.CreatedAt, sp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert stylist: %w", mapWriteError(err))
	}
	return nil
}

// Update は掲載情報を更新する。評価集計とuser_idは更新しない。
func (r *PostgresStylistRepo) Update(ctx context.Context, sp *model.StylistProfile) error {
	sp.UpdatedAt = time.Now()
	if sp.Specialties == nil {
		sp.Specialties = []string{}
	}
	result, err := r.db.ExecContext(ctx,
		`UPDATE stylist_profiles
		 SET business_name = $2, location = $3, bio = $4, contact_email = $5, contact_phone = $6,
		     website_url = $7, specialties = $8, updated_at = $9
		 WHERE id = $1`,
		sp.ID, sp.BusinessName, sp.Location, sp.Bio, sp.ContactEmail, sp.ContactPhone,
		sp.WebsiteURL, pq.Array(sp.Specialties), sp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update stylist: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return fmt.Errorf("failed to update stylist %s: %w", sp.ID, err)
	}
	return nil
}

// UpsertContact はuser_idをキーに店舗名・所在地・連絡先を作成または更新する。
// 既存行の紹介文・専門分野・評価集計は変更しない。
func (r *PostgresStylistRepo) UpsertContact(ctx context.Context, sp *model.StylistProfile) error {
	fillStylistDefaults(sp)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO stylist_profiles (id, user_id, business_name, location, contact_email, contact_phone, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (user_id) DO UPDATE
		 SET business_name = EXCLUDED.business_name,
		     location = EXCLUDED.location,
		     contact_email = EXCLUDED.contact_email,
		     contact_phone = EXCLUDED.contact_phone,
		     updated_at = EXCLUDED.updated_at`,
		sp.ID, sp.UserID, sp.BusinessName, sp.Location, sp.ContactEmail, sp.ContactPhone, sp.CreatedAt, sp.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert stylist contact: %w", err)
	}
	return nil
}

// Delete は指定IDのスタイリストプロフィールを削除する。
func (r *PostgresStylistRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM stylist_profiles WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete stylist: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return fmt.Errorf("failed to delete stylist %s: %w", id, err)
	}
	return nil
}

// DeleteOrphaned はroleがstylist/adminでないユーザーに紐付くスタイリストプロフィールを削除する。
func (r *PostgresStylistRepo) DeleteOrphaned(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM stylist_profiles sp
		 USING profiles p
		 WHERE sp.user_id = p.id AND p.role NOT IN ('stylist', 'admin')`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete orphaned stylists: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

func fillStylistDefaults(sp *model.StylistProfile) {
	if sp.ID == "" {
		sp.ID = uuid.New().String()
	}
	now := time.Now()
	if sp.CreatedAt.IsZero() {
		sp.CreatedAt = now
	}
	if sp.UpdatedAt.IsZero() {
		sp.UpdatedAt = now
	}
	if sp.Specialties == nil {
		sp.Specialties = []string{}
	}
}

// compile-time interface check
var _ StylistRepository = (*PostgresStylistRepo)(nil)
