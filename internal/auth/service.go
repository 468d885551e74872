// Package auth は認証プロバイダーとして、パスワード認証、メール確認、パスワード再設定、
// Google OAuth、署名付きセッショントークンの発行と検証を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/profilegate/internal/model"
	"github.com/hitoshi/profilegate/internal/repository"
)

// ErrInvalidSession はセッショントークンが無効、期限切れ、または失効済みであることを示す。
var ErrInvalidSession = errors.New("invalid session")

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	EmailVerified  bool
	Name           string
	Provider       string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// Name はプロバイダー名を返す（"google"等）。
	Name() string
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SiteURL           string        // 確認・再設定リンクの基点URL
	SessionMaxAge     time.Duration // セッション有効期間
	RefreshWindow     time.Duration // 残り有効期間がこれを下回った場合のみRefreshで延長する
	TokenTTL          time.Duration // 確認・再設定トークンの有効期間
	BcryptCost        int
	EmailConfirmation bool // trueの場合、サインアップ直後はセッションを発行しない
}

// Deps は認証サービスが依存するコンポーネント。
// OAuthはGoogleの資格情報が未設定の場合nilとする。
type Deps struct {
	OAuth      OAuthProvider
	Users      repository.UserRepository
	Identities repository.IdentityRepository
	Sessions   repository.SessionRepository
	Tokens     repository.AuthTokenRepository
	Signer     *TokenSigner
	Mailer     Mailer
}

// IssuedSession は発行済みセッションとそのトークン。
type IssuedSession struct {
	Session     *model.Session
	AccessToken string
}

// SignUpResult はサインアップの結果。
// メール確認が必要な場合、Sessionはnilとなる。
type SignUpResult struct {
	User    *model.User
	Session *IssuedSession
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	deps   Deps
	config ServiceConfig
	now    func() time.Time
}

// NewService はServiceを生成する。
func NewService(deps Deps, config ServiceConfig) *Service {
	if deps.Mailer == nil {
		deps.Mailer = NewLogMailer(nil)
	}
	return &Service{deps: deps, config: config, now: time.Now}
}

// OAuthEnabled は指定プロバイダーでのOAuthログインが利用可能かを返す。
func (s *Service) OAuthEnabled(provider string) bool {
	return s.deps.OAuth != nil && s.deps.OAuth.Name() == provider
}

// SignInWithPassword はメールアドレスとパスワードで認証し、セッションを発行する。
func (s *Service) SignInWithPassword(ctx context.Context, email, password string) (*IssuedSession, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, model.NewInvalidCredentialsError()
	}

	user, err := s.deps.Users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewInvalidCredentialsError()
	}

	ok, err := comparePassword(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.NewInvalidCredentialsError()
	}

	if s.config.EmailConfirmation && !user.EmailConfirmed() {
		return nil, model.NewEmailNotConfirmedError()
	}

	return s.issueSession(ctx, user)
}

// SignUp はユーザーを登録する。
// メール確認が有効な場合は確認メールを送信し、セッションなしの結果を返す。
// 無効な場合は即座にセッションを発行する。
func (s *Service) SignUp(ctx context.Context, email, password string) (*SignUpResult, error) {
	email = normalizeEmail(email)
	if err := ValidateCredentials(email, password); err != nil {
		return nil, err
	}

	existing, err := s.deps.Users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if existing != nil {
		return nil, model.NewEmailTakenError()
	}

	hash, err := hashPassword(password, s.config.BcryptCost)
	if err != nil {
		return nil, err
	}

	now := s.now()
	user := &model.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if !s.config.EmailConfirmation {
		user.EmailConfirmedAt = &now
	}

	if err := s.deps.Users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, model.NewEmailTakenError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	slog.InfoContext(ctx, "user signed up",
		slog.String("user_id", user.ID),
		slog.Bool("confirmation_required", s.config.EmailConfirmation),
	)

	if s.config.EmailConfirmation {
		token, err := s.createAuthToken(ctx, user.ID, model.AuthTokenConfirmation)
		if err != nil {
			return nil, err
		}
		link := s.siteLink("/auth/confirm", url.Values{"token": {token}})
		if err := s.deps.Mailer.Send(ctx, Message{To: user.Email, Subject: "Confirme seu cadastro", Link: link}); err != nil {
			return nil, fmt.Errorf("failed to send confirmation mail: %w", err)
		}
		return &SignUpResult{User: user}, nil
	}

	issued, err := s.issueSession(ctx, user)
	if err != nil {
		return nil, err
	}
	return &SignUpResult{User: user, Session: issued}, nil
}

// ConfirmEmail は確認トークンを消費し、メールアドレスを確認済みにする。
func (s *Service) ConfirmEmail(ctx context.Context, token string) error {
	userID, err := s.consumeAuthToken(ctx, model.AuthTokenConfirmation, token)
	if err != nil {
		return err
	}
	if err := s.deps.Users.ConfirmEmail(ctx, userID, s.now()); err != nil {
		return fmt.Errorf("failed to confirm email: %w", err)
	}
	slog.InfoContext(ctx, "email confirmed", slog.String("user_id", userID))
	return nil
}

// ResetPasswordForEmail はパスワード再設定リンクをメールで送付する。
// 未登録のメールアドレスでも成功を返し、登録有無を外部に漏らさない。
func (s *Service) ResetPasswordForEmail(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return model.NewEmailRequiredError()
	}
	if err := ValidateEmail(email); err != nil {
		return err
	}

	user, err := s.deps.Users.FindByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		slog.InfoContext(ctx, "password reset requested for unknown email")
		return nil
	}

	token, err := s.createAuthToken(ctx, user.ID, model.AuthTokenRecovery)
	if err != nil {
		return err
	}
	link := s.siteLink("/login", url.Values{"recovery_token": {token}})
	if err := s.deps.Mailer.Send(ctx, Message{To: user.Email, Subject: "Recuperacao de senha", Link: link}); err != nil {
		return fmt.Errorf("failed to send recovery mail: %w", err)
	}
	return nil
}

// CompletePasswordReset は再設定トークンを消費して新しいパスワードを設定する。
// 既存のセッションはすべて失効させる。
func (s *Service) CompletePasswordReset(ctx context.Context, token, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	userID, err := s.consumeAuthToken(ctx, model.AuthTokenRecovery, token)
	if err != nil {
		return err
	}

	hash, err := hashPassword(newPassword, s.config.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.deps.Users.UpdatePassword(ctx, userID, hash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	// 再設定リンクを開けたことはメールアドレスの所有を示す
	if err := s.deps.Users.ConfirmEmail(ctx, userID, s.now()); err != nil {
		return fmt.Errorf("failed to confirm email: %w", err)
	}
	if err := s.deps.Sessions.DeleteByUserID(ctx, userID); err != nil {
		return fmt.Errorf("failed to revoke sessions: %w", err)
	}

	slog.InfoContext(ctx, "password reset completed", slog.String("user_id", userID))
	return nil
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(provider, state string) (string, error) {
	if !s.OAuthEnabled(provider) {
		return "", model.NewOAuthUnavailableError(providerLabel(provider))
	}
	return s.deps.OAuth.GetLoginURL(state), nil
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// identityが未登録で同じメールアドレスのユーザーが存在する場合は、
// IdPがメールアドレスを確認済みのときに限り既存ユーザーへ紐付ける。
func (s *Service) HandleCallback(ctx context.Context, code string) (*IssuedSession, error) {
	if s.deps.OAuth == nil {
		return nil, model.NewOAuthUnavailableError("Google")
	}

	info, err := s.deps.OAuth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	identity, err := s.deps.Identities.FindByProviderAndProviderUserID(ctx, info.Provider, info.ProviderUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find identity: %w", err)
	}

	var user *model.User
	switch {
	case identity != nil:
		user, err = s.deps.Users.FindByID(ctx, identity.UserID)
		if err != nil {
			return nil, fmt.Errorf("failed to find user: %w", err)
		}
		if user == nil {
			return nil, fmt.Errorf("identity %s references missing user", identity.ID)
		}
	default:
		user, err = s.linkOrCreateOAuthUser(ctx, info)
		if err != nil {
			return nil, err
		}
	}

	slog.InfoContext(ctx, "user logged in with oauth",
		slog.String("user_id", user.ID),
		slog.String("provider", info.Provider),
	)
	return s.issueSession(ctx, user)
}

func (s *Service) linkOrCreateOAuthUser(ctx context.Context, info *OAuthUserInfo) (*model.User, error) {
	now := s.now()
	email := normalizeEmail(info.Email)

	existing, err := s.deps.Users.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if existing != nil {
		if !info.EmailVerified {
			return nil, model.NewEmailTakenError()
		}
		identity := &model.Identity{
			ID:             uuid.New().String(),
			UserID:         existing.ID,
			Provider:       info.Provider,
			ProviderUserID: info.ProviderUserID,
			CreatedAt:      now,
		}
		if err := s.deps.Identities.Create(ctx, identity); err != nil {
			return nil, fmt.Errorf("failed to link identity: %w", err)
		}
		if err := s.deps.Users.ConfirmEmail(ctx, existing.ID, now); err != nil {
			return nil, fmt.Errorf("failed to confirm email: %w", err)
		}
		return existing, nil
	}

	user := &model.User{
		ID:        uuid.New().String(),
		Email:     email,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if info.EmailVerified {
		user.EmailConfirmedAt = &now
	}
	identity := &model.Identity{
		ID:             uuid.New().String(),
		UserID:         user.ID,
		Provider:       info.Provider,
		ProviderUserID: info.ProviderUserID,
		CreatedAt:      now,
	}
	if err := s.deps.Users.CreateWithIdentity(ctx, user, identity); err != nil {
		return nil, fmt.Errorf("failed to create user and identity: %w", err)
	}
	slog.InfoContext(ctx, "new user created",
		slog.String("user_id", user.ID),
		slog.String("provider", info.Provider),
	)
	return user, nil
}

// Verify はセッショントークンを検証し、有効なセッションを返す。
// 署名・有効期限の検証に加え、sessionsテーブルに行が残っていることを確認する。
func (s *Service) Verify(ctx context.Context, token string) (*model.Session, error) {
	claims, err := s.deps.Signer.Parse(token)
	if err != nil {
		return nil, err
	}

	session, err := s.deps.Sessions.FindByID(ctx, claims.SessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, fmt.Errorf("%w: session revoked or expired", ErrInvalidSession)
	}
	if session.UserID != claims.Subject {
		return nil, fmt.Errorf("%w: subject mismatch", ErrInvalidSession)
	}
	return session, nil
}

// Refresh はセッションの有効期限を延長し、新しいトークンを発行する。
// 残り有効期間がRefreshWindow以上ある場合は期限を変えずにトークンのみ再発行する。
func (s *Service) Refresh(ctx context.Context, token string) (*IssuedSession, error) {
	session, err := s.Verify(ctx, token)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if session.ExpiresAt.Sub(now) < s.config.RefreshWindow {
		session.ExpiresAt = now.Add(s.config.SessionMaxAge)
		if err := s.deps.Sessions.UpdateExpiry(ctx, session.ID, session.ExpiresAt); err != nil {
			return nil, fmt.Errorf("failed to extend session: %w", err)
		}
	}

	accessToken, err := s.deps.Signer.Sign(session)
	if err != nil {
		return nil, err
	}
	return &IssuedSession{Session: session, AccessToken: accessToken}, nil
}

// SignOut はトークンが指すセッションを破棄する。
// トークンが無効な場合は破棄対象がないため成功として扱う。
func (s *Service) SignOut(ctx context.Context, token string) error {
	claims, err := s.deps.Signer.Parse(token)
	if err != nil {
		return nil
	}

	if err := s.deps.Sessions.DeleteByID(ctx, claims.SessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.InfoContext(ctx, "user signed out", slog.String("user_id", claims.Subject))
	return nil
}

// issueSession はセッションを作成し永続化したうえでトークンを発行する。
func (s *Service) issueSession(ctx context.Context, user *model.User) (*IssuedSession, error) {
	sessionID, err := randomToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := s.now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    user.ID,
		Email:     user.Email,
		ExpiresAt: now.Add(s.config.SessionMaxAge),
		CreatedAt: now,
	}
	if err := s.deps.Sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	accessToken, err := s.deps.Signer.Sign(session)
	if err != nil {
		return nil, err
	}
	return &IssuedSession{Session: session, AccessToken: accessToken}, nil
}

// createAuthToken はワンタイムトークンを生成し、ハッシュのみを保存する。平文トークンを返す。
func (s *Service) createAuthToken(ctx context.Context, userID string, kind model.AuthTokenKind) (string, error) {
	plain, err := randomToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate auth token: %w", err)
	}

	now := s.now()
	token := &model.AuthToken{
		ID:        uuid.New().String(),
		UserID:    userID,
		Kind:      kind,
		TokenHash: hashToken(plain),
		ExpiresAt: now.Add(s.config.TokenTTL),
		CreatedAt: now,
	}
	if err := s.deps.Tokens.Create(ctx, token); err != nil {
		return "", fmt.Errorf("failed to save auth token: %w", err)
	}
	return plain, nil
}

func (s *Service) consumeAuthToken(ctx context.Context, kind model.AuthTokenKind, plain string) (string, error) {
	if plain == "" {
		return "", model.NewInvalidTokenError()
	}
	userID, err := s.deps.Tokens.Consume(ctx, kind, hashToken(plain), s.now())
	if err != nil {
		return "", fmt.Errorf("failed to consume auth token: %w", err)
	}
	if userID == "" {
		return "", model.NewInvalidTokenError()
	}
	return userID, nil
}

func (s *Service) siteLink(path string, query url.Values) string {
	return s.config.SiteURL + path + "?" + query.Encode()
}

// randomToken は暗号的に安全な32バイトの乱数を16進文字列で返す。
func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func hashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return hex.EncodeToString(sum[:])
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func providerLabel(provider string) string {
	if provider == ProviderGoogle {
		return "Google"
	}
	return provider
}
