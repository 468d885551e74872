// Package guard はセッションの有無からルートごとのアクセス可否とリダイレクト先を決定する。
// 判定は純粋関数Decideに集約し、サーバーのミドルウェアとクライアントの両方が同じ規則を使う。
package guard

import (
	"net/http"

	"github.com/hitoshi/profilegate/internal/model"
	"github.com/hitoshi/profilegate/internal/session"
)

// 遷移先のパス。
const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// RouteClass はルートの分類。
type RouteClass int

const (
	// PublicOnly は未認証ユーザー専用のルート（/login, /signup）。
	PublicOnly RouteClass = iota
	// Protected は認証済みユーザー専用のルート（/dashboard）。
	Protected
	// Index は常にリダイレクトするルート（/）。
	Index
)

// String はメトリクスのラベル用の名前を返す。
func (c RouteClass) String() string {
	switch c {
	case PublicOnly:
		return "public_only"
	case Protected:
		return "protected"
	case Index:
		return "index"
	default:
		return "unknown"
	}
}

// Decision はルートガードの判定結果。
// Allowがfalseの場合、RedirectToは必ず空でない。
type Decision struct {
	Allow      bool
	RedirectTo string
}

// Decide はセッションとルート分類からアクセス可否を決定する。
func Decide(s *model.Session, class RouteClass) Decision {
	authenticated := s != nil
	switch class {
	case PublicOnly:
		if authenticated {
			return Decision{RedirectTo: DashboardPath}
		}
		return Decision{Allow: true}
	case Protected:
		if !authenticated {
			return Decision{RedirectTo: LoginPath}
		}
		return Decision{Allow: true}
	default:
		if authenticated {
			return Decision{RedirectTo: DashboardPath}
		}
		return Decision{RedirectTo: LoginPath}
	}
}

// SessionResolver はリクエストからセッションを解決するインターフェース。
type SessionResolver interface {
	Resolve(r *http.Request) *model.Session
}

// DecisionRecorder は判定結果を記録するインターフェース。
type DecisionRecorder interface {
	RecordGuardDecision(route string, allowed bool)
}

// Option はミドルウェアの設定。
type Option func(*options)

type options struct {
	recorder DecisionRecorder
}

// WithRecorder は判定結果の記録先を設定する。
func WithRecorder(r DecisionRecorder) Option {
	return func(o *options) { o.recorder = r }
}

// Middleware はリクエストごとにセッションを1回だけ解決し、ルート分類に従って判定するミドルウェアを返す。
// リダイレクトの場合は307とLocationヘッダーのみを返し、後続のハンドラーは実行しない。
// 許可の場合は解決済みセッションをコンテキストに注入して後続に渡す。
func Middleware(resolver SessionResolver, class RouteClass, opts ...Option) func(next http.Handler) http.Handler {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := resolver.Resolve(r)
			d := Decide(s, class)
			if o.recorder != nil {
				o.recorder.RecordGuardDecision(class.String(), d.Allow)
			}

			if !d.Allow {
				Redirect(w, d.RedirectTo)
				return
			}

			ctx := r.Context()
			if s != nil {
				ctx = session.WithSession(ctx, s)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Protect はビューを認証必須にラップする。
func Protect(resolver SessionResolver, view http.Handler, opts ...Option) http.Handler {
	return Middleware(resolver, Protected, opts...)(view)
}

// Redirect は本文なしの307リダイレクトを書き込む。
// http.RedirectはHTMLの本文を書き込むため使用しない。
func Redirect(w http.ResponseWriter, location string) {
	w.Header().Set("Location", location)
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusTemporaryRedirect)
}
