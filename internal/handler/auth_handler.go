package handler

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/hitoshi/profilegate/internal/auth"
	"github.com/hitoshi/profilegate/internal/guard"
	"github.com/hitoshi/profilegate/internal/middleware"
	"github.com/hitoshi/profilegate/internal/model"
	"github.com/hitoshi/profilegate/internal/page"
	"github.com/hitoshi/profilegate/internal/security"
	"github.com/hitoshi/profilegate/internal/session"
)

const (
	oauthStateCookie    = "oauth_state"
	oauthRedirectCookie = "oauth_redirect"
	oauthCookieMaxAge   = 600 // 10分
)

// 認証アクションの結果。メトリクスのラベルとして使用する。
const (
	outcomeSuccess = "success"
	outcomeFailure = "failure"
	outcomePending = "pending"
)

// 利用者向けメッセージ。
const (
	msgRecoverySent  = "Enviamos as instrucoes de recuperacao de senha para seu e-mail."
	msgSignupPending = "Verifique seu e-mail para confirmar o cadastro antes de entrar."
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignInWithPassword(ctx context.Context, email, password string) (*auth.IssuedSession, error)
	SignUp(ctx context.Context, email, password string) (*auth.SignUpResult, error)
	ConfirmEmail(ctx context.Context, token string) error
	ResetPasswordForEmail(ctx context.Context, email string) error
	CompletePasswordReset(ctx context.Context, token, newPassword string) error
	GetLoginURL(provider, state string) (string, error)
	HandleCallback(ctx context.Context, code string) (*auth.IssuedSession, error)
	Refresh(ctx context.Context, token string) (*auth.IssuedSession, error)
	SignOut(ctx context.Context, token string) error
}

var _ AuthServiceInterface = (*auth.Service)(nil)

// AuthActionRecorder は認証アクションの結果を記録するインターフェース。
type AuthActionRecorder interface {
	RecordAuthAction(action, outcome string)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	Cookie session.CookieOptions
}

// AuthHandler は認証APIのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	config   AuthHandlerConfig
	recorder AuthActionRecorder
}

// NewAuthHandler はAuthHandlerを生成する。recorderはnilでもよい。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig, recorder AuthActionRecorder) *AuthHandler {
	return &AuthHandler{
		service:  service,
		config:   config,
		recorder: recorder,
	}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type recoverRequest struct {
	Email string `json:"email"`
}

type recoverConfirmRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// userResponse はユーザー情報のAPIレスポンス。
type userResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// sessionResponse はセッション情報のAPIレスポンス。
type sessionResponse struct {
	AccessToken string       `json:"access_token"`
	ExpiresAt   int64        `json:"expires_at"`
	User        userResponse `json:"user"`
}

type sessionEnvelope struct {
	Session *sessionResponse `json:"session"`
}

type signUpResponse struct {
	Session *sessionResponse `json:"session"`
	User    userResponse     `json:"user"`
	Message string           `json:"message,omitempty"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func toSessionResponse(s *model.Session, accessToken string) *sessionResponse {
	return &sessionResponse{
		AccessToken: accessToken,
		ExpiresAt:   s.ExpiresAt.Unix(),
		User:        userResponse{ID: s.UserID, Email: s.Email},
	}
}

// SignIn はメールアドレスとパスワードでサインインする。
// POST /auth/v1/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, "signin", err)
		return
	}

	issued, err := h.service.SignInWithPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, "signin", err)
		return
	}

	h.record("signin", outcomeSuccess)
	session.SetCookie(w, issued.AccessToken, issued.Session.ExpiresAt, h.config.Cookie)
	writeJSON(w, http.StatusOK, toSessionResponse(issued.Session, issued.AccessToken))
}

// SignUp はアカウントを作成する。
// メール確認が必要な場合はsessionがnullとなり、Cookieは設定しない。
// POST /auth/v1/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, "signup", err)
		return
	}

	result, err := h.service.SignUp(r.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(w, "signup", err)
		return
	}

	resp := signUpResponse{
		User: userResponse{ID: result.User.ID, Email: result.User.Email},
	}
	if result.Session == nil {
		h.record("signup", outcomePending)
		resp.Message = msgSignupPending
		writeJSON(w, http.StatusOK, resp)
		return
	}

	h.record("signup", outcomeSuccess)
	session.SetCookie(w, result.Session.AccessToken, result.Session.Session.ExpiresAt, h.config.Cookie)
	resp.Session = toSessionResponse(result.Session.Session, result.Session.AccessToken)
	writeJSON(w, http.StatusOK, resp)
}

// SignOut はセッションを破棄する。
// バックエンドの結果にかかわらずCookieを削除し204を返す。
// POST /auth/v1/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if token := session.TokenFromRequest(r); token != "" {
		if err := h.service.SignOut(r.Context(), token); err != nil {
			slog.Error("failed to sign out", slog.String("error", err.Error()))
		}
	}

	h.record("signout", outcomeSuccess)
	session.ClearCookie(w, h.config.Cookie)
	w.WriteHeader(http.StatusNoContent)
}

// Recover はパスワード再設定メールを送信する。
// POST /auth/v1/recover
func (h *AuthHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, "recover", err)
		return
	}

	if err := h.service.ResetPasswordForEmail(r.Context(), req.Email); err != nil {
		h.fail(w, "recover", err)
		return
	}

	h.record("recover", outcomeSuccess)
	writeJSON(w, http.StatusOK, messageResponse{Message: msgRecoverySent})
}

// RecoverConfirm は再設定トークンで新しいパスワードを設定する。
// POST /auth/v1/recover/confirm
func (h *AuthHandler) RecoverConfirm(w http.ResponseWriter, r *http.Request) {
	var req recoverConfirmRequest
	if err := decodeJSON(w, r, &req); err != nil {
		h.fail(w, "recover_confirm", err)
		return
	}

	if err := h.service.CompletePasswordReset(r.Context(), req.Token, req.Password); err != nil {
		h.fail(w, "recover_confirm", err)
		return
	}

	h.record("recover_confirm", outcomeSuccess)
	session.ClearCookie(w, h.config.Cookie)
	w.WriteHeader(http.StatusNoContent)
}

// Session は現在のセッションを返す。未認証の場合はsessionがnullとなる。
// セッションはNewSessionMiddlewareで解決済みであることを前提とする。
// GET /auth/v1/session
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if s == nil {
		writeJSON(w, http.StatusOK, sessionEnvelope{})
		return
	}
	writeJSON(w, http.StatusOK, sessionEnvelope{
		Session: toSessionResponse(s, session.TokenFromRequest(r)),
	})
}

// Refresh はセッションの有効期限を延長し、トークンを再発行する。
// トークンが無効な場合はCookieを削除して401を返す。
// POST /auth/v1/token/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token := session.TokenFromRequest(r)
	if token == "" {
		h.fail(w, "refresh", model.NewUnauthenticatedError())
		return
	}

	issued, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidSession) {
			session.ClearCookie(w, h.config.Cookie)
			h.fail(w, "refresh", model.NewUnauthenticatedError())
			return
		}
		h.fail(w, "refresh", err)
		return
	}

	h.record("refresh", outcomeSuccess)
	session.SetCookie(w, issued.AccessToken, issued.Session.ExpiresAt, h.config.Cookie)
	writeJSON(w, http.StatusOK, toSessionResponse(issued.Session, issued.AccessToken))
}

// Authorize はOAuthフローを開始し、IdPの認可URLへリダイレクトする。
// redirect_toは同一オリジンのパスのみ受け付け、それ以外は/dashboardとする。
// GET /auth/v1/authorize?provider=google&redirect_to=/dashboard
func (h *AuthHandler) Authorize(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	redirectTo := security.SafeRedirectPath(r.URL.Query().Get("redirect_to"), guard.DashboardPath)

	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		h.record("oauth_start", outcomeFailure)
		middleware.WriteInternalServerError(w)
		return
	}

	loginURL, err := h.service.GetLoginURL(provider, state)
	if err != nil {
		h.fail(w, "oauth_start", err)
		return
	}

	h.setTransientCookie(w, oauthStateCookie, state)
	h.setTransientCookie(w, oauthRedirectCookie, redirectTo)
	h.record("oauth_start", outcomeSuccess)
	guard.Redirect(w, loginURL)
}

// Callback はOAuthコールバックを処理し、成功時はセッションCookieを設定して遷移先へリダイレクトする。
// 失敗時はお知らせコード付きで/loginへリダイレクトする。
// GET /auth/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	redirectTo := guard.DashboardPath
	if c, err := r.Cookie(oauthRedirectCookie); err == nil {
		redirectTo = security.SafeRedirectPath(c.Value, guard.DashboardPath)
	}
	h.clearTransientCookie(w, oauthStateCookie)
	h.clearTransientCookie(w, oauthRedirectCookie)

	if err != nil || state == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("query_state", state))
		h.record("oauth_callback", outcomeFailure)
		guard.Redirect(w, loginNoticeURL(page.NoticeOAuthFailed))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		slog.Warn("oauth callback without code", slog.String("error", r.URL.Query().Get("error")))
		h.record("oauth_callback", outcomeFailure)
		guard.Redirect(w, loginNoticeURL(page.NoticeOAuthFailed))
		return
	}

	issued, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		h.record("oauth_callback", outcomeFailure)
		guard.Redirect(w, loginNoticeURL(page.NoticeOAuthFailed))
		return
	}

	h.record("oauth_callback", outcomeSuccess)
	session.SetCookie(w, issued.AccessToken, issued.Session.ExpiresAt, h.config.Cookie)
	guard.Redirect(w, redirectTo)
}

// Confirm はメール確認リンクを処理し、/loginへリダイレクトする。
// GET /auth/confirm?token=xxx
func (h *AuthHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if err := h.service.ConfirmEmail(r.Context(), r.URL.Query().Get("token")); err != nil {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			slog.Error("email confirmation failed", slog.String("error", err.Error()))
		}
		h.record("confirm", outcomeFailure)
		guard.Redirect(w, loginNoticeURL(page.NoticeLinkInvalid))
		return
	}

	h.record("confirm", outcomeSuccess)
	guard.Redirect(w, loginNoticeURL(page.NoticeEmailConfirmed))
}

// fail は失敗を記録してエラーレスポンスを書き込む。
func (h *AuthHandler) fail(w http.ResponseWriter, action string, err error) {
	h.record(action, outcomeFailure)
	middleware.WriteError(w, err)
}

func (h *AuthHandler) record(action, outcome string) {
	if h.recorder != nil {
		h.recorder.RecordAuthAction(action, outcome)
	}
}

func (h *AuthHandler) setTransientCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   oauthCookieMaxAge,
		HttpOnly: true,
		Secure:   h.config.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearTransientCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.Cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// loginNoticeURL はお知らせコード付きの/login URLを返す。
func loginNoticeURL(notice string) string {
	return guard.LoginPath + "?" + url.Values{"notice": {notice}}.Encode()
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
