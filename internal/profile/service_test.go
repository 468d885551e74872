package profile

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/profilegate/internal/model"
	"github.com/hitoshi/profilegate/internal/repository"
	"github.com/hitoshi/profilegate/internal/session"
)

// memoryProfileRepo はプロフィールをメモリ上に保持する。呼び出し回数も記録する。
type memoryProfileRepo struct {
	rows     map[string]*string
	calls    int
	failWith error
}

func newMemoryProfileRepo() *memoryProfileRepo {
	return &memoryProfileRepo{rows: make(map[string]*string)}
}

func (m *memoryProfileRepo) FindByID(_ context.Context, id string) (*model.Profile, error) {
	m.calls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	name, ok := m.rows[id]
	if !ok {
		return nil, nil
	}
	return &model.Profile{ID: id, FullName: name}, nil
}

func (m *memoryProfileRepo) Upsert(_ context.Context, id string, fullName *string) (*model.Profile, error) {
	m.calls++
	if m.failWith != nil {
		return nil, m.failWith
	}
	m.rows[id] = fullName
	return &model.Profile{ID: id, FullName: fullName}, nil
}

type countingRecorder map[string]int

func (c countingRecorder) RecordProfileOperation(op, outcome string) {
	c[op+"/"+outcome]++
}

var _ repository.ProfileRepository = (*memoryProfileRepo)(nil)
var _ Recorder = countingRecorder(nil)

func ctxFor(userID string) context.Context {
	return session.WithSession(context.Background(), &model.Session{ID: "s", UserID: userID})
}

func ptr(s string) *string { return &s }

func apiErrorKind(t *testing.T, err error) model.ErrorKind {
	t.Helper()
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *model.APIError, got %v", err)
	}
	return apiErr.Kind
}

func TestGetProfile_AbsentRowReadsAsEmpty(t *testing.T) {
	svc := NewService(newMemoryProfileRepo(), nil)

	p, err := svc.GetProfile(ctxFor("user-1"), "user-1")
	if err != nil {
		t.Fatalf("GetProfile returned error: %v", err)
	}
	if p.DisplayName() != "" || p.FullName != nil {
		t.Errorf("absent profile = %+v, want empty full name", p)
	}
}

func TestUpsertProfile_Normalization(t *testing.T) {
	tests := []struct {
		name  string
		input *string
		want  *string
	}{
		{"前後の空白を除去", ptr("  Ana Souza  "), ptr("Ana Souza")},
		{"空白のみはNULL", ptr("   "), nil},
		{"空文字はNULL", ptr(""), nil},
		{"未指定はNULL", nil, nil},
		{"内部の空白は保持", ptr("Ana  Souza"), ptr("Ana  Souza")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemoryProfileRepo()
			svc := NewService(repo, nil)

			p, err := svc.UpsertProfile(ctxFor("user-1"), "user-1", tt.input)
			if err != nil {
				t.Fatalf("UpsertProfile returned error: %v", err)
			}
			stored := repo.rows["user-1"]
			switch {
			case tt.want == nil && stored != nil:
				t.Errorf("stored = %q, want NULL", *stored)
			case tt.want != nil && (stored == nil || *stored != *tt.want):
				t.Errorf("stored = %v, want %q", stored, *tt.want)
			}
			if tt.want != nil && p.DisplayName() != *tt.want {
				t.Errorf("returned = %q, want %q", p.DisplayName(), *tt.want)
			}
		})
	}
}

func TestUpsertProfile_Idempotent(t *testing.T) {
	repo := newMemoryProfileRepo()
	svc := NewService(repo, nil)
	ctx := ctxFor("user-1")

	first, err := svc.UpsertProfile(ctx, "user-1", ptr("Ana"))
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := svc.UpsertProfile(ctx, "user-1", ptr("Ana"))
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if first.DisplayName() != second.DisplayName() {
		t.Errorf("results differ: %q vs %q", first.DisplayName(), second.DisplayName())
	}
	if len(repo.rows) != 1 {
		t.Errorf("rows = %d, want 1", len(repo.rows))
	}

	got, _ := svc.GetProfile(ctx, "user-1")
	if got.DisplayName() != "Ana" {
		t.Errorf("read after upsert = %q, want Ana", got.DisplayName())
	}
}

func TestAuthorization_CheckedBeforeStoreAccess(t *testing.T) {
	tests := []struct {
		name     string
		ctx      context.Context
		userID   string
		wantKind model.ErrorKind
	}{
		{"未認証", context.Background(), "user-1", model.KindUnauthenticated},
		{"他人のプロフィール", ctxFor("user-2"), "user-1", model.KindForbidden},
		{"空のユーザーID", ctxFor("user-1"), "", model.KindForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemoryProfileRepo()
			recorder := countingRecorder{}
			svc := NewService(repo, recorder)

			_, getErr := svc.GetProfile(tt.ctx, tt.userID)
			_, upErr := svc.UpsertProfile(tt.ctx, tt.userID, ptr("Ana"))

			if k := apiErrorKind(t, getErr); k != tt.wantKind {
				t.Errorf("GetProfile kind = %s, want %s", k, tt.wantKind)
			}
			if k := apiErrorKind(t, upErr); k != tt.wantKind {
				t.Errorf("UpsertProfile kind = %s, want %s", k, tt.wantKind)
			}
			if repo.calls != 0 {
				t.Errorf("store accessed %d times, want 0", repo.calls)
			}
			if recorder[OpGet+"/"+OutcomeDenied] != 1 || recorder[OpUpsert+"/"+OutcomeDenied] != 1 {
				t.Errorf("recorded = %v", recorder)
			}
		})
	}
}

func TestStoreFailure_IsProviderError(t *testing.T) {
	repo := newMemoryProfileRepo()
	repo.failWith = errors.New("connection reset")
	svc := NewService(repo, nil)

	_, err := svc.UpsertProfile(ctxFor("user-1"), "user-1", ptr("Ana"))
	if k := apiErrorKind(t, err); k != model.KindProvider {
		t.Errorf("kind = %s, want provider", k)
	}
	if !errors.Is(err, repo.failWith) {
		t.Error("原因エラーがラップされていない")
	}
}
