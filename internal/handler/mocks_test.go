package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/hitoshi/profilegate/internal/auth"
	"github.com/hitoshi/profilegate/internal/model"
	"github.com/hitoshi/profilegate/internal/session"
)

// --- モック定義 ---

type mockAuthService struct {
	signInFn         func(ctx context.Context, email, password string) (*auth.IssuedSession, error)
	signUpFn         func(ctx context.Context, email, password string) (*auth.SignUpResult, error)
	confirmEmailFn   func(ctx context.Context, token string) error
	resetPasswordFn  func(ctx context.Context, email string) error
	completeResetFn  func(ctx context.Context, token, newPassword string) error
	getLoginURLFn    func(provider, state string) (string, error)
	handleCallbackFn func(ctx context.Context, code string) (*auth.IssuedSession, error)
	refreshFn        func(ctx context.Context, token string) (*auth.IssuedSession, error)
	signOutFn        func(ctx context.Context, token string) error
}

var _ AuthServiceInterface = (*mockAuthService)(nil)

func (m *mockAuthService) SignInWithPassword(ctx context.Context, email, password string) (*auth.IssuedSession, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return nil, model.NewInvalidCredentialsError()
}

func (m *mockAuthService) SignUp(ctx context.Context, email, password string) (*auth.SignUpResult, error) {
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password)
	}
	return nil, model.NewEmailTakenError()
}

func (m *mockAuthService) ConfirmEmail(ctx context.Context, token string) error {
	if m.confirmEmailFn != nil {
		return m.confirmEmailFn(ctx, token)
	}
	return nil
}

func (m *mockAuthService) ResetPasswordForEmail(ctx context.Context, email string) error {
	if m.resetPasswordFn != nil {
		return m.resetPasswordFn(ctx, email)
	}
	return nil
}

func (m *mockAuthService) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	if m.completeResetFn != nil {
		return m.completeResetFn(ctx, token, newPassword)
	}
	return nil
}

func (m *mockAuthService) GetLoginURL(provider, state string) (string, error) {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(provider, state)
	}
	return "", model.NewOAuthUnavailableError("Google")
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code string) (*auth.IssuedSession, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code)
	}
	return nil, nil
}

func (m *mockAuthService) Refresh(ctx context.Context, token string) (*auth.IssuedSession, error) {
	if m.refreshFn != nil {
		return m.refreshFn(ctx, token)
	}
	return nil, auth.ErrInvalidSession
}

func (m *mockAuthService) SignOut(ctx context.Context, token string) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx, token)
	}
	return nil
}

type mockProfileService struct {
	getFn    func(ctx context.Context, userID string) (*model.Profile, error)
	upsertFn func(ctx context.Context, userID string, fullName *string) (*model.Profile, error)

	getCalls    int
	upsertCalls int
}

var _ ProfileServiceInterface = (*mockProfileService)(nil)

func (m *mockProfileService) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	m.getCalls++
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return &model.Profile{ID: userID}, nil
}

func (m *mockProfileService) UpsertProfile(ctx context.Context, userID string, fullName *string) (*model.Profile, error) {
	m.upsertCalls++
	if m.upsertFn != nil {
		return m.upsertFn(ctx, userID, fullName)
	}
	return &model.Profile{ID: userID, FullName: model.NormalizeFullName(fullName)}, nil
}

type mockAuthRecorder struct {
	actions []string
}

func (m *mockAuthRecorder) RecordAuthAction(action, outcome string) {
	m.actions = append(m.actions, action+":"+outcome)
}

// --- ヘルパー ---

var testExpiry = time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

func issuedSession(userID, token string) *auth.IssuedSession {
	return &auth.IssuedSession{
		Session: &model.Session{
			ID:        "sess-" + userID,
			UserID:    userID,
			Email:     userID + "@example.com",
			ExpiresAt: testExpiry,
		},
		AccessToken: token,
	}
}

// withSession はリクエストコンテキストに認証済みセッションを注入する。
func withSession(r *http.Request, userID string) *http.Request {
	return r.WithContext(session.WithSession(r.Context(), &model.Session{
		ID:        "sess-" + userID,
		UserID:    userID,
		Email:     userID + "@example.com",
		ExpiresAt: testExpiry,
	}))
}

func findCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func strPtr(s string) *string {
	return &s
}
