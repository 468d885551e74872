package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/hitoshi/profilegate/internal/model"
)

// PostgresIdentityRepo は外部IdP（Google）とユーザーの紐付けをidentitiesテーブルに保存する。
// (provider, provider_user_id) は一意で、同じGoogleアカウントは1ユーザーにのみ紐付く。
type PostgresIdentityRepo struct {
	db *sql.DB
}

// NewPostgresIdentityRepo はPostgresIdentityRepoを生成する。
func NewPostgresIdentityRepo(db *sql.DB) *PostgresIdentityRepo {
	return &PostgresIdentityRepo{db: db}
}

const selectIdentity = `SELECT id, user_id, provider, provider_user_id, created_at FROM identities`

// FindByProviderAndProviderUserID はOAuthコールバックで受け取ったsubから紐付け済みidentityを探す。
// providerは小文字に正規化して比較する。未登録の場合はnilを返す。
func (r *PostgresIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	var id model.Identity
	err := r.db.QueryRowContext(ctx,
		selectIdentity+` WHERE provider = $1 AND provider_user_id = $2`,
		strings.ToLower(provider), providerUserID,
	).Scan(&id.ID, &id.UserID, &id.Provider, &id.ProviderUserID, &id.CreatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("failed to find identity %s/%s: %w", provider, providerUserID, err)
	}
	return &id, nil
}

// Create は既存ユーザーにidentityを紐付ける。
// 同じ(provider, provider_user_id)が既に存在する場合はErrDuplicateを返す。
func (r *PostgresIdentityRepo) Create(ctx context.Context, identity *model.Identity) error {
	identity.Provider = strings.ToLower(identity.Provider)
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO identities (id, user_id, provider, provider_user_id, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		identity.ID, identity.UserID, identity.Provider, identity.ProviderUserID, identity.CreatedAt,
	)
	switch {
	case isUniqueViolation(err):
		return ErrDuplicate
	case err != nil:
		return fmt.Errorf("failed to link identity for user %s: %w", identity.UserID, err)
	}
	return nil
}

var _ IdentityRepository = (*PostgresIdentityRepo)(nil)
