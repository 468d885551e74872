// Package session はリクエストからセッションを解決し、リクエストコンテキストで受け渡す。
package session

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/profilegate/internal/model"
)

// CookieName はセッショントークンを保持するCookie名。
const CookieName = "sb_session"

// 解決結果の分類。メトリクスのラベルとして使用する。
const (
	ResultAuthenticated = "authenticated"
	ResultAnonymous     = "anonymous"
	ResultInvalid       = "invalid"
	ResultError         = "error"
)

// Verifier はセッショントークンを検証するインターフェース。
// auth.Serviceが実装する。
type Verifier interface {
	Verify(ctx context.Context, token string) (*model.Session, error)
}

// ResolutionRecorder は解決結果を記録するインターフェース。
type ResolutionRecorder interface {
	RecordSessionResolution(result string)
}

// Resolver はリクエストのCookieまたはAuthorizationヘッダーからセッションを解決する。
// 解決はリクエスト単位で完結し、Cookieの書き込みやクライアント状態の参照は行わない。
type Resolver struct {
	verifier Verifier
	recorder ResolutionRecorder
	invalid  error
}

// NewResolver はResolverを生成する。recorderはnilでもよい。
// invalidErrは「トークンが無効」を表すエラーで、これに該当する失敗はdebugレベルで記録する。
func NewResolver(verifier Verifier, recorder ResolutionRecorder, invalidErr error) *Resolver {
	return &Resolver{verifier: verifier, recorder: recorder, invalid: invalidErr}
}

// Resolve はリクエストのセッションを返す。
// トークンがない、不正、期限切れ、失効済み、または検証中にエラーが発生した場合はnilを返す。
// エラーは呼び出し元に返さず、ログにのみ記録する。
func (r *Resolver) Resolve(req *http.Request) *model.Session {
	token := TokenFromRequest(req)
	if token == "" {
		r.record(ResultAnonymous)
		return nil
	}

	session, err := r.verifier.Verify(req.Context(), token)
	switch {
	case err == nil && session != nil:
		r.record(ResultAuthenticated)
		return session
	case err == nil, r.invalid != nil && errors.Is(err, r.invalid):
		slog.DebugContext(req.Context(), "session token rejected",
			slog.String("path", req.URL.Path),
			slog.Any("error", err),
		)
		r.record(ResultInvalid)
	default:
		slog.WarnContext(req.Context(), "session resolution failed",
			slog.String("path", req.URL.Path),
			slog.String("error", err.Error()),
		)
		r.record(ResultError)
	}
	return nil
}

func (r *Resolver) record(result string) {
	if r.recorder != nil {
		r.recorder.RecordSessionResolution(result)
	}
}

// TokenFromRequest はCookie、次にAuthorization: Bearerヘッダーの順でトークンを取り出す。
func TokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	const prefix = "Bearer "
	if h := r.Header.Get("Authorization"); len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return strings.TrimSpace(h[len(prefix):])
	}
	return ""
}

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

var sessionContextKey = contextKey("session")

// WithSession はコンテキストにセッションを注入する。
func WithSession(ctx context.Context, s *model.Session) context.Context {
	return context.WithValue(ctx, sessionContextKey, s)
}

// FromContext はコンテキストからセッションを取得する。未認証の場合はnilを返す。
func FromContext(ctx context.Context) *model.Session {
	s, _ := ctx.Value(sessionContextKey).(*model.Session)
	return s
}

// UserIDFromContext はコンテキストから認証済みユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, bool) {
	s := FromContext(ctx)
	if s == nil || s.UserID == "" {
		return "", false
	}
	return s.UserID, true
}

// ContextResolver はNewSessionMiddlewareなどで解決済みのセッションをコンテキストから返す。
// 上流で解決済みのリクエストに対してガードを適用する場合に、検証を重複させないために使う。
type ContextResolver struct{}

// Resolve はコンテキストのセッションを返す。
func (ContextResolver) Resolve(r *http.Request) *model.Session {
	return FromContext(r.Context())
}
