// Package cleanup は期限切れセッションと使用済み認証トークンの定期削除ジョブを提供する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval は0以下の実行間隔が渡された場合に使う間隔。
const DefaultInterval = time.Hour

// 削除対象の種類。メトリクスのラベルとして使用する。
const (
	KindSessions   = "sessions"
	KindAuthTokens = "auth_tokens"
)

// SessionPurger は期限切れセッションを削除する。repository.SessionRepositoryが実装する。
type SessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// TokenPurger は使用済みまたは期限切れの認証トークンを削除する。
// repository.AuthTokenRepositoryが実装する。
type TokenPurger interface {
	DeleteSpent(ctx context.Context, now time.Time) (int64, error)
}

// Recorder は削除件数を記録する。
type Recorder interface {
	RecordCleanupDeleted(kind string, count int64)
}

// CleanupJob は期限切れデータの削除ジョブ。
// 削除は冪等で、対象がない場合もエラーにならない。
type CleanupJob struct {
	sessions SessionPurger
	tokens   TokenPurger
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(sessions SessionPurger, tokens TokenPurger, logger *slog.Logger, recorder Recorder) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		sessions: sessions,
		tokens:   tokens,
		logger:   logger,
		recorder: recorder,
		now:      time.Now,
	}
}

// Run は期限切れセッションと使用済みトークンを削除する。
// 片方が失敗してももう片方は実行し、最初のエラーを返す。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()
	now := j.now()

	sessions, sessErr := j.sessions.DeleteExpired(ctx, now)
	if sessErr != nil {
		j.logger.Error("failed to delete expired sessions", slog.String("error", sessErr.Error()))
		sessErr = fmt.Errorf("failed to delete expired sessions: %w", sessErr)
	} else {
		j.record(KindSessions, sessions)
	}

	tokens, tokErr := j.tokens.DeleteSpent(ctx, now)
	if tokErr != nil {
		j.logger.Error("failed to delete spent auth tokens", slog.String("error", tokErr.Error()))
		tokErr = fmt.Errorf("failed to delete spent auth tokens: %w", tokErr)
	} else {
		j.record(KindAuthTokens, tokens)
	}

	if sessErr != nil {
		return sessErr
	}
	if tokErr != nil {
		return tokErr
	}

	j.logger.Info("cleanup job completed",
		slog.Int64("deleted_sessions", sessions),
		slog.Int64("deleted_auth_tokens", tokens),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)
	return nil
}

// Start はctxがキャンセルされるまで、起動直後とinterval毎にRunを実行する。
// intervalが0以下の場合はDefaultIntervalを使う。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		j.logger.Warn("cleanup interval is not positive, using default",
			slog.Duration("interval", interval),
			slog.Duration("default", DefaultInterval),
		)
		interval = DefaultInterval
	}

	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (j *CleanupJob) record(kind string, count int64) {
	if j.recorder != nil {
		j.recorder.RecordCleanupDeleted(kind, count)
	}
}
