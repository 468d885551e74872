package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/profilegate/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByID はプロフィールを取得する。行が存在しない場合はnilを返す。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	profile := &model.Profile{}
	var fullName sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT id, full_name, updated_at FROM profiles WHERE id = $1`,
		id,
	).Scan(&profile.ID, &fullName, &profile.UpdatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	if fullName.Valid {
		profile.FullName = &fullName.String
	}
	return profile, nil
}

// Upsert はidをキーにプロフィールを作成または更新する。
// 同じ値で繰り返し呼び出しても行は1つのまま保たれる。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, id string, fullName *string) (*model.Profile, error) {
	profile := &model.Profile{}
	var saved sql.NullString
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO profiles (id, full_name, updated_at)
		 VALUES ($1, $2, now())
		 ON CONFLICT (id) DO UPDATE
		 SET full_name = EXCLUDED.full_name, updated_at = now()
		 RETURNING id, full_name, updated_at`,
		id, fullName,
	).Scan(&profile.ID, &saved, &profile.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert profile: %w", err)
	}

	if saved.Valid {
		profile.FullName = &saved.String
	}
	return profile, nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
