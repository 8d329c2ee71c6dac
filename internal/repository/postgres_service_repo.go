package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/salonlink/internal/model"
)

// PostgresServiceRepo はPostgreSQLを使用したメニューリポジトリ。
type PostgresServiceRepo struct {
	db *sql.DB
}

// NewPostgresServiceRepo はPostgresServiceRepoを生成する。
func NewPostgresServiceRepo(db *sql.DB) *PostgresServiceRepo {
	return &PostgresServiceRepo{db: db}
}

const serviceColumns = `id, stylist_id, name, description, price, duration_minutes, created_at, updated_at`

func scanService(row interface{ Scan(...any) error }) (*model.Service, error) {
	s := &model.Service{}
	if err := row.Scan(&s.ID, &s.StylistID, &s.Name, &s.Description, &s.Price, &s.DurationMinutes, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	return s, nil
}

// ListByStylist はスタイリストのメニュー一覧を作成日時順で返す。
func (r *PostgresServiceRepo) ListByStylist(ctx context.Context, stylistID string) ([]*model.Service, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE stylist_id = $1 ORDER BY created_at, id`,
		stylistID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	defer rows.Close()

	services := []*model.Service{}
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service: %w", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate services: %w", err)
	}
	return services, nil
}

// FindByID は指定IDのメニューを取得する。見つからない場合はnilを返す。
func (r *PostgresServiceRepo) FindByID(ctx context.Context, id string) (*model.Service, error) {
	s, err := scanService(r.db.QueryRowContext(ctx,
		`SELECT `+serviceColumns+` FROM services WHERE id = $1`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find service by ID: %w", err)
	}
	return s, nil
}

// Create はメニューを作成する。IDと日時が未設定の場合は補完する。
func (r *PostgresServiceRepo) Create(ctx context.Context, s *model.Service) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	now := time.Now()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO services (`+serviceColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		s.ID, s.StylistID, s.Name, s.Description, s.Price, s.DurationMinutes, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert service: %w", mapWriteError(err))
	}
	return nil
}

// Update はメニューの名称・説明・価格・所要時間を更新する。
func (r *PostgresServiceRepo) Update(ctx context.Context, s *model.Service) error {
	s.UpdatedAt = time.Now()
	result, err := r.db.ExecContext(ctx,
		`UPDATE services
		 SET name = $2, description = $3, price = $4, duration_minutes = $5, updated_at = $6
		 WHERE id = $1`,
		s.ID, s.Name, s.Description, s.Price, s.DurationMinutes, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to update service: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return fmt.Errorf("failed to update service %s: %w", s.ID, err)
	}
	return nil
}

// Delete は指定IDのメニューを削除する。
func (r *PostgresServiceRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete service: %w", err)
	}
	if err := expectAffected(result); err != nil {
		return fmt.Errorf("failed to delete service %s: %w", id, err)
	}
	return nil
}

// compile-time interface check
var _ ServiceRepository = (*PostgresServiceRepo)(nil)
