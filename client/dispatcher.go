package client

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/hitoshi/profilegate/internal/auth"
	"github.com/hitoshi/profilegate/internal/guard"
	"github.com/hitoshi/profilegate/internal/model"
)

// OutcomeKind は認証アクションの結果の種類。
type OutcomeKind int

const (
	// OutcomeSuccess は成功。
	OutcomeSuccess OutcomeKind = iota
	// OutcomeFailure は失敗。画面遷移は行わない。
	OutcomeFailure
	// OutcomePending はメール確認待ち。
	OutcomePending
	// OutcomeDegraded は主目的は成功したが付随処理が失敗したことを示す。
	OutcomeDegraded
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeFailure:
		return "failure"
	case OutcomePending:
		return "pending"
	case OutcomeDegraded:
		return "degraded"
	default:
		return "unknown"
	}
}

// Outcome は認証アクションの結果。Messageは画面にそのまま表示する。
type Outcome struct {
	Kind       OutcomeKind
	Message    string
	Session    *Session
	NavigateTo string
}

// 利用者向けメッセージ。
const (
	msgSignInFailed       = "Credenciais invalidas. Verifique e tente novamente."
	msgSignUpFailed       = "Não foi possível criar a conta."
	msgSignUpPending      = "Verifique seu e-mail para confirmar o cadastro antes de entrar."
	msgProfileDegraded    = "Conta criada, mas não conseguimos atualizar o perfil automaticamente."
	msgEmailRequired      = "Informe seu e-mail para recuperar a senha."
	msgRecoverySent       = "Enviamos as instrucoes de recuperacao de senha para seu e-mail."
	msgRecoveryFailed     = "Falha ao enviar instrucoes de recuperacao."
	msgOAuthFailed        = "Nao foi possivel iniciar o login com Google."
	msgProfileUpdated     = "Perfil atualizado com sucesso."
	msgProfileUpdateError = "Não foi possível atualizar o perfil."
	msgPasswordMismatch   = "As senhas nao conferem."
	msgPasswordReset      = "Senha redefinida. Entre com a nova senha."
	msgPasswordResetError = "Nao foi possivel redefinir a senha."
)

// Navigator は画面遷移を行う。
type Navigator interface {
	// Replace は履歴を置き換えてアプリ内のパスへ遷移する。
	Replace(path string)
	// Assign は外部URLへ遷移する。
	Assign(url string)
}

// AuthClient はDispatcherが必要とする認証・プロフィール操作。
type AuthClient interface {
	SignInWithPassword(ctx context.Context, email, password string) (*Session, error)
	SignUp(ctx context.Context, email, password string) (*SignUpResult, error)
	SignOut(ctx context.Context) error
	ResetPasswordForEmail(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, token, password string) error
	UpsertProfile(ctx context.Context, fullName string) (string, error)
	OAuthURL(ctx context.Context, provider, redirectTo string) (string, error)
}

var _ AuthClient = (*Provider)(nil)

// SignUpInput はサインアップフォームの入力。
type SignUpInput struct {
	FullName        string
	Email           string
	Password        string
	ConfirmPassword string
}

// Validate はサーバーへ送信する前に入力を検証する。
func (in SignUpInput) Validate() error {
	if err := auth.ValidateCredentials(strings.TrimSpace(in.Email), in.Password); err != nil {
		return err
	}
	err := validation.Validate(in.ConfirmPassword, validation.By(func(value interface{}) error {
		if value.(string) != in.Password {
			return errors.New(msgPasswordMismatch)
		}
		return nil
	}))
	if err != nil {
		return model.NewPasswordMismatchError()
	}
	return nil
}

// Dispatcher は認証アクションを実行し、結果をOutcomeとして返す。
// 成功時の遷移はNavigatorで行い、失敗時は遷移しない。
type Dispatcher struct {
	client  AuthClient
	nav     Navigator
	watcher *Watcher
}

// DispatcherOption はDispatcherの設定。
type DispatcherOption func(*Dispatcher)

// WithWatcher は同じ画面の保護ビューを監視するWatcherを登録する。
// サインアウト時にマウント中のビューが既に/loginへ遷移していれば、重ねて遷移しない。
func WithWatcher(w *Watcher) DispatcherOption {
	return func(d *Dispatcher) {
		d.watcher = w
	}
}

// NewDispatcher はDispatcherを生成する。
func NewDispatcher(client AuthClient, nav Navigator, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{client: client, nav: nav}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// SignIn はメールアドレスとパスワードでサインインし、/dashboardへ遷移する。
func (d *Dispatcher) SignIn(ctx context.Context, email, password string) Outcome {
	s, err := d.client.SignInWithPassword(ctx, strings.TrimSpace(email), password)
	if err != nil {
		return failure(err, msgSignInFailed)
	}
	return d.navigate(Outcome{Kind: OutcomeSuccess, Session: s, NavigateTo: guard.DashboardPath})
}

// SignUp はアカウントを作成する。
// セッションが発行された場合は表示名を一度だけ保存して/dashboardへ遷移する。
// 保存に失敗してもサインアップは成功として扱い、Degradedを返す。
// メール確認待ちの場合は遷移せずPendingを返す。
func (d *Dispatcher) SignUp(ctx context.Context, in SignUpInput) Outcome {
	if err := in.Validate(); err != nil {
		return failure(err, msgSignUpFailed)
	}

	result, err := d.client.SignUp(ctx, strings.TrimSpace(in.Email), in.Password)
	if err != nil {
		return failure(err, msgSignUpFailed)
	}

	if result.Session == nil {
		return Outcome{Kind: OutcomePending, Message: msgSignUpPending}
	}

	out := Outcome{Kind: OutcomeSuccess, Session: result.Session, NavigateTo: guard.DashboardPath}
	if _, err := d.client.UpsertProfile(ctx, in.FullName); err != nil {
		slog.Warn("profile upsert after sign-up failed",
			slog.String("user_id", result.Session.User.ID),
			slog.String("error", err.Error()),
		)
		out.Kind = OutcomeDegraded
		out.Message = msgProfileDegraded
	}
	return d.navigate(out)
}

// SignOut はサインアウトして/loginへ遷移する。通信に失敗しても成功として扱う。
// SIGNED_OUTの通知でマウント中のビューが遷移済みの場合はReplaceを呼ばない。
func (d *Dispatcher) SignOut(ctx context.Context) Outcome {
	var before int64
	if d.watcher != nil {
		before = d.watcher.Redirects()
	}

	if err := d.client.SignOut(ctx); err != nil {
		slog.Warn("sign out request failed", slog.String("error", err.Error()))
	}

	out := Outcome{Kind: OutcomeSuccess, NavigateTo: guard.LoginPath}
	if d.watcher != nil && d.watcher.Redirects() > before {
		return out
	}
	return d.navigate(out)
}

// RequestPasswordReset はパスワード再設定メールを依頼する。
// メールアドレスが空の場合はサーバーへ送信しない。
func (d *Dispatcher) RequestPasswordReset(ctx context.Context, email string) Outcome {
	email = strings.TrimSpace(email)
	if email == "" {
		return Outcome{Kind: OutcomeFailure, Message: msgEmailRequired}
	}
	if err := d.client.ResetPasswordForEmail(ctx, email); err != nil {
		return failure(err, msgRecoveryFailed)
	}
	return Outcome{Kind: OutcomeSuccess, Message: msgRecoverySent}
}

// CompletePasswordReset は再設定メールのトークンで新しいパスワードを設定し、/loginへ遷移する。
// 確認用パスワードが一致しない場合はサーバーへ送信しない。
func (d *Dispatcher) CompletePasswordReset(ctx context.Context, token, password, confirm string) Outcome {
	if password != confirm {
		return Outcome{Kind: OutcomeFailure, Message: msgPasswordMismatch}
	}
	if err := d.client.CompletePasswordReset(ctx, token, password); err != nil {
		return failure(err, msgPasswordResetError)
	}
	return d.navigate(Outcome{Kind: OutcomeSuccess, Message: msgPasswordReset, NavigateTo: guard.LoginPath})
}

// StartOAuth はOAuthフローを開始し、IdPの認可URLへ遷移する。
// 認証後は/auth/callbackを経由して/dashboardへ戻る。
func (d *Dispatcher) StartOAuth(ctx context.Context, provider string) Outcome {
	loginURL, err := d.client.OAuthURL(ctx, provider, guard.DashboardPath)
	if err != nil {
		return failure(err, msgOAuthFailed)
	}
	d.nav.Assign(loginURL)
	return Outcome{Kind: OutcomeSuccess, NavigateTo: loginURL}
}

// UpdateProfile はダッシュボードから表示名を保存する。
func (d *Dispatcher) UpdateProfile(ctx context.Context, fullName string) Outcome {
	if _, err := d.client.UpsertProfile(ctx, fullName); err != nil {
		slog.Warn("profile update failed", slog.String("error", err.Error()))
		return Outcome{Kind: OutcomeFailure, Message: msgProfileUpdateError}
	}
	return Outcome{Kind: OutcomeSuccess, Message: msgProfileUpdated}
}

func (d *Dispatcher) navigate(out Outcome) Outcome {
	d.nav.Replace(out.NavigateTo)
	return out
}

// failure はエラーの利用者向けメッセージを使ってFailureを生成する。
// メッセージを持たないエラーの場合はfallbackを使う。
func failure(err error, fallback string) Outcome {
	msg := fallback
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" && apiErr.Kind != model.KindProvider {
		msg = apiErr.Message
	}
	return Outcome{Kind: OutcomeFailure, Message: msg}
}
