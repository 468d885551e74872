package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/profilegate/internal/model"
)

// PostgresAuthTokenRepo はPostgreSQLを使用したワンタイムトークンリポジトリ。
type PostgresAuthTokenRepo struct {
	db *sql.DB
}

// NewPostgresAuthTokenRepo はPostgresAuthTokenRepoを生成する。
func NewPostgresAuthTokenRepo(db *sql.DB) *PostgresAuthTokenRepo {
	return &PostgresAuthTokenRepo{db: db}
}

// Create はトークンを保存する。
func (r *PostgresAuthTokenRepo) Create(ctx context.Context, token *model.AuthToken) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO auth_tokens (id, user_id, kind, token_hash, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		token.ID, token.UserID, string(token.Kind), token.TokenHash, token.ExpiresAt, token.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create auth token: %w", err)
	}
	return nil
}

// Consume は未使用かつ有効期限内のトークンを1回だけ使用済みにする。
// 同一トークンの同時使用は行ロックにより片方のみ成功する。
func (r *PostgresAuthTokenRepo) Consume(ctx context.Context, kind model.AuthTokenKind, tokenHash string, now time.Time) (string, error) {
	var userID string
	err := r.db.QueryRowContext(ctx,
		`UPDATE auth_tokens
		 SET used_at = $3
		 WHERE kind = $1 AND token_hash = $2 AND used_at IS NULL AND expires_at > $3
		 RETURNING user_id`,
		string(kind), tokenHash, now,
	).Scan(&userID)

	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to consume auth token: %w", err)
	}
	return userID, nil
}

// DeleteSpent は使用済みまたは期限切れのトークンを削除する。
func (r *PostgresAuthTokenRepo) DeleteSpent(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM auth_tokens WHERE used_at IS NOT NULL OR expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete spent auth tokens: %w", err)
	}
	return result.RowsAffected()
}

// compile-time interface check
var _ AuthTokenRepository = (*PostgresAuthTokenRepo)(nil)
