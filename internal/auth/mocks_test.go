package auth

import (
	"context"
	"time"

	"github.com/hitoshi/profilegate/internal/model"
	"github.com/hitoshi/profilegate/internal/repository"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn           func(ctx context.Context, id string) (*model.User, error)
	findByEmailFn        func(ctx context.Context, email string) (*model.User, error)
	createFn             func(ctx context.Context, user *model.User) error
	createWithIdentityFn func(ctx context.Context, user *model.User, identity *model.Identity) error
	confirmEmailFn       func(ctx context.Context, id string, at time.Time) error
	updatePasswordFn     func(ctx context.Context, id, hash string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFn != nil {
		return m.findByEmailFn(ctx, email)
	}
	return nil, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *model.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, user)
	}
	return nil
}

func (m *mockUserRepo) CreateWithIdentity(ctx context.Context, user *model.User, identity *model.Identity) error {
	if m.createWithIdentityFn != nil {
		return m.createWithIdentityFn(ctx, user, identity)
	}
	return nil
}

func (m *mockUserRepo) ConfirmEmail(ctx context.Context, id string, at time.Time) error {
	if m.confirmEmailFn != nil {
		return m.confirmEmailFn(ctx, id, at)
	}
	return nil
}

func (m *mockUserRepo) UpdatePassword(ctx context.Context, id, hash string) error {
	if m.updatePasswordFn != nil {
		return m.updatePasswordFn(ctx, id, hash)
	}
	return nil
}

type mockIdentityRepo struct {
	findByProviderFn func(ctx context.Context, provider, providerUserID string) (*model.Identity, error)
	createFn         func(ctx context.Context, identity *model.Identity) error
}

func (m *mockIdentityRepo) FindByProviderAndProviderUserID(ctx context.Context, provider, providerUserID string) (*model.Identity, error) {
	if m.findByProviderFn != nil {
		return m.findByProviderFn(ctx, provider, providerUserID)
	}
	return nil, nil
}

func (m *mockIdentityRepo) Create(ctx context.Context, identity *model.Identity) error {
	if m.createFn != nil {
		return m.createFn(ctx, identity)
	}
	return nil
}

// memorySessionRepo はセッションをメモリ上に保持するSessionRepositoryの実装。
type memorySessionRepo struct {
	sessions map[string]*model.Session
	now      func() time.Time
}

func newMemorySessionRepo(now func() time.Time) *memorySessionRepo {
	return &memorySessionRepo{sessions: make(map[string]*model.Session), now: now}
}

func (m *memorySessionRepo) Create(_ context.Context, session *model.Session) error {
	copied := *session
	m.sessions[session.ID] = &copied
	return nil
}

func (m *memorySessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	s, ok := m.sessions[id]
	if !ok || s.Expired(m.now()) {
		return nil, nil
	}
	copied := *s
	return &copied, nil
}

func (m *memorySessionRepo) UpdateExpiry(_ context.Context, id string, expiresAt time.Time) error {
	if s, ok := m.sessions[id]; ok {
		s.ExpiresAt = expiresAt
	}
	return nil
}

func (m *memorySessionRepo) DeleteByID(_ context.Context, id string) error {
	delete(m.sessions, id)
	return nil
}

func (m *memorySessionRepo) DeleteByUserID(_ context.Context, userID string) error {
	for id, s := range m.sessions {
		if s.UserID == userID {
			delete(m.sessions, id)
		}
	}
	return nil
}

func (m *memorySessionRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var n int64
	for id, s := range m.sessions {
		if s.Expired(now) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// memoryTokenRepo はワンタイムトークンをメモリ上に保持するAuthTokenRepositoryの実装。
type memoryTokenRepo struct {
	tokens map[string]*model.AuthToken
}

func newMemoryTokenRepo() *memoryTokenRepo {
	return &memoryTokenRepo{tokens: make(map[string]*model.AuthToken)}
}

func (m *memoryTokenRepo) Create(_ context.Context, token *model.AuthToken) error {
	m.tokens[token.TokenHash] = token
	return nil
}

func (m *memoryTokenRepo) Consume(_ context.Context, kind model.AuthTokenKind, tokenHash string, now time.Time) (string, error) {
	t, ok := m.tokens[tokenHash]
	if !ok || t.Kind != kind || t.UsedAt != nil || !t.ExpiresAt.After(now) {
		return "", nil
	}
	t.UsedAt = &now
	return t.UserID, nil
}

func (m *memoryTokenRepo) DeleteSpent(_ context.Context, _ time.Time) (int64, error) {
	return 0, nil
}

type recordingMailer struct {
	sent []Message
}

func (m *recordingMailer) Send(_ context.Context, msg Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

type mockOAuthProvider struct {
	exchangeCodeFn func(ctx context.Context, code string) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) Name() string { return ProviderGoogle }

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	return "https://accounts.example/auth?state=" + state
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return nil, nil
}

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.IdentityRepository = (*mockIdentityRepo)(nil)
var _ repository.SessionRepository = (*memorySessionRepo)(nil)
var _ repository.AuthTokenRepository = (*memoryTokenRepo)(nil)
var _ Mailer = (*recordingMailer)(nil)
var _ OAuthProvider = (*mockOAuthProvider)(nil)
