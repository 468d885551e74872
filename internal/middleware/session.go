// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"net/http"

	"github.com/hitoshi/profilegate/internal/model"
	"github.com/hitoshi/profilegate/internal/session"
)

// SessionResolver はリクエストからセッションを解決するインターフェース。
// session.Resolverが実装する。
type SessionResolver interface {
	Resolve(r *http.Request) *model.Session
}

var _ SessionResolver = (*session.Resolver)(nil)

// NewSessionMiddleware はリクエストごとに一度セッションを解決し、
// 結果をリクエストコンテキストに注入するミドルウェアを返す。
// 未認証でも拒否はしない。拒否はNewRequireSessionMiddlewareまたはハンドラーが行う。
func NewSessionMiddleware(resolver SessionResolver) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 上流ですでに解決済みの場合は再検証しない
			if session.FromContext(r.Context()) != nil {
				next.ServeHTTP(w, r)
				return
			}
			s := resolver.Resolve(r)
			if s == nil {
				next.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r.WithContext(session.WithSession(r.Context(), s)))
		})
	}
}

// RequireSessionOption はNewRequireSessionMiddlewareの設定。
type RequireSessionOption func(*requireSession)

type requireSession struct {
	clearCookie *session.CookieOptions
}

// ClearCookieOnReject は拒否時にリクエストが持っていたセッションCookieを削除する。
func ClearCookieOnReject(opts session.CookieOptions) RequireSessionOption {
	return func(c *requireSession) {
		c.clearCookie = &opts
	}
}

// NewRequireSessionMiddleware はコンテキストにセッションがないリクエストを
// 401 {"error":"Nao autenticado."} で拒否するミドルウェアを返す。
// NewSessionMiddlewareの後に配置する。
func NewRequireSessionMiddleware(opts ...RequireSessionOption) func(next http.Handler) http.Handler {
	var cfg requireSession
	for _, opt := range opts {
		opt(&cfg)
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := session.UserIDFromContext(r.Context()); !ok {
				if cfg.clearCookie != nil && session.TokenFromRequest(r) != "" {
					session.ClearCookie(w, *cfg.clearCookie)
				}
				WriteError(w, model.NewUnauthenticatedError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
