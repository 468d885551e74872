package client

import (
	"context"
	"sync"

	"github.com/hitoshi/profilegate/internal/model"
)

type mockAuthClient struct {
	signInFn   func(ctx context.Context, email, password string) (*Session, error)
	signUpFn   func(ctx context.Context, email, password string) (*SignUpResult, error)
	signOutFn  func(ctx context.Context) error
	resetFn    func(ctx context.Context, email string) error
	confirmFn  func(ctx context.Context, token, password string) error
	upsertFn   func(ctx context.Context, fullName string) (string, error)
	oauthURLFn func(ctx context.Context, provider, redirectTo string) (string, error)

	signUpCalls int
	resetCalls  int
	confirms    int
	upserts     []string
}

var _ AuthClient = (*mockAuthClient)(nil)

func (m *mockAuthClient) SignInWithPassword(ctx context.Context, email, password string) (*Session, error) {
	if m.signInFn != nil {
		return m.signInFn(ctx, email, password)
	}
	return testSession(), nil
}

func (m *mockAuthClient) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	m.signUpCalls++
	if m.signUpFn != nil {
		return m.signUpFn(ctx, email, password)
	}
	return &SignUpResult{Session: testSession(), User: testSession().User}, nil
}

func (m *mockAuthClient) SignOut(ctx context.Context) error {
	if m.signOutFn != nil {
		return m.signOutFn(ctx)
	}
	return nil
}

func (m *mockAuthClient) ResetPasswordForEmail(ctx context.Context, email string) error {
	m.resetCalls++
	if m.resetFn != nil {
		return m.resetFn(ctx, email)
	}
	return nil
}

func (m *mockAuthClient) CompletePasswordReset(ctx context.Context, token, password string) error {
	m.confirms++
	if m.confirmFn != nil {
		return m.confirmFn(ctx, token, password)
	}
	return nil
}

func (m *mockAuthClient) UpsertProfile(ctx context.Context, fullName string) (string, error) {
	m.upserts = append(m.upserts, fullName)
	if m.upsertFn != nil {
		return m.upsertFn(ctx, fullName)
	}
	return fullName, nil
}

func (m *mockAuthClient) OAuthURL(ctx context.Context, provider, redirectTo string) (string, error) {
	if m.oauthURLFn != nil {
		return m.oauthURLFn(ctx, provider, redirectTo)
	}
	return "", model.NewOAuthUnavailableError("Google")
}

// recordingNavigator は遷移の呼び出しを記録する。
type recordingNavigator struct {
	mu       sync.Mutex
	replaces []string
	assigns  []string
}

func (n *recordingNavigator) Replace(path string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.replaces = append(n.replaces, path)
}

func (n *recordingNavigator) Assign(url string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.assigns = append(n.assigns, url)
}

func (n *recordingNavigator) replaced() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.replaces...)
}

func testSession() *Session {
	return &Session{
		AccessToken: "tok",
		ExpiresAt:   1893456000,
		User:        User{ID: "user-1", Email: "ana@example.com"},
	}
}
