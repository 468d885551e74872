// Package profile はログインユーザー自身のプロフィールの読み書きを提供する。
package profile

import (
	"context"
	"log/slog"

	"github.com/hitoshi/profilegate/internal/model"
	"github.com/hitoshi/profilegate/internal/repository"
	"github.com/hitoshi/profilegate/internal/session"
)

// 操作種別と結果。メトリクスのラベルとして使用する。
const (
	OpGet    = "get"
	OpUpsert = "upsert"

	OutcomeOK      = "ok"
	OutcomeDenied  = "denied"
	OutcomeFailure = "store_failure"
)

// Recorder はプロフィール操作の結果を記録するインターフェース。
type Recorder interface {
	RecordProfileOperation(op, outcome string)
}

// Service はプロフィールのビジネスロジックを提供する。
// すべての操作は、コンテキストの認証済みユーザーと対象ユーザーが一致することを
// ストアへのアクセス前に確認する。
type Service struct {
	repo     repository.ProfileRepository
	recorder Recorder
}

// NewService はServiceを生成する。recorderはnilでもよい。
func NewService(repo repository.ProfileRepository, recorder Recorder) *Service {
	return &Service{repo: repo, recorder: recorder}
}

// GetProfile はプロフィールを取得する。
// 行が存在しない場合もエラーとせず、FullNameがnilのプロフィールを返す。
func (s *Service) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	if err := authorize(ctx, userID); err != nil {
		s.record(OpGet, OutcomeDenied)
		return nil, err
	}

	p, err := s.repo.FindByID(ctx, userID)
	if err != nil {
		s.record(OpGet, OutcomeFailure)
		slog.ErrorContext(ctx, "failed to read profile",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStoreFailureError(err)
	}
	if p == nil {
		p = &model.Profile{ID: userID}
	}

	s.record(OpGet, OutcomeOK)
	return p, nil
}

// UpsertProfile はフルネームを正規化して保存し、保存後のプロフィールを返す。
// 前後の空白を除いた結果が空の場合はNULLとして保存する。
// 同じ値での繰り返しの呼び出しは同じ結果になる。
func (s *Service) UpsertProfile(ctx context.Context, userID string, fullName *string) (*model.Profile, error) {
	if err := authorize(ctx, userID); err != nil {
		s.record(OpUpsert, OutcomeDenied)
		return nil, err
	}

	p, err := s.repo.Upsert(ctx, userID, model.NormalizeFullName(fullName))
	if err != nil {
		s.record(OpUpsert, OutcomeFailure)
		slog.ErrorContext(ctx, "failed to upsert profile",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		return nil, model.NewStoreFailureError(err)
	}

	s.record(OpUpsert, OutcomeOK)
	slog.InfoContext(ctx, "profile updated", slog.String("user_id", userID))
	return p, nil
}

func authorize(ctx context.Context, userID string) error {
	current, ok := session.UserIDFromContext(ctx)
	if !ok {
		return model.NewUnauthenticatedError()
	}
	if userID == "" || current != userID {
		return model.NewForbiddenError()
	}
	return nil
}

func (s *Service) record(op, outcome string) {
	if s.recorder != nil {
		s.recorder.RecordProfileOperation(op, outcome)
	}
}
