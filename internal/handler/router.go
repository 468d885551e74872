package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/profilegate/internal/guard"
	"github.com/hitoshi/profilegate/internal/metrics"
	"github.com/hitoshi/profilegate/internal/middleware"
	"github.com/hitoshi/profilegate/internal/page"
	"github.com/hitoshi/profilegate/internal/session"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Resolver          middleware.SessionResolver
	CORSAllowedOrigin string
	CSRF              middleware.CSRFConfig
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 運用
	HealthChecker  HealthChecker
	Metrics        metrics.MetricsCollector
	MetricsHandler http.Handler

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig

	// プロフィール・ページ
	ProfileService ProfileServiceInterface
	ShowGoogle     bool
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Metrics → SecurityHeaders → CORS → Session → Logging → CSRF
//
// セッションはSessionミドルウェアでリクエストごとに1回だけ解決し、
// ページのガードとAPIはコンテキストの解決結果を参照する。
// /api/profileはCSRFミドルウェアを通さず、ハンドラーが401と405の判定後に検証する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(respondPanic))
	if deps.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.Metrics))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware(middleware.SecurityHeadersConfig{
		HSTS: deps.CSRF.CookieSecure,
	}))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewSessionMiddleware(deps.Resolver))
	r.Use(middleware.NewLoggingMiddleware(logger))

	var recorder AuthActionRecorder
	var guardOpts []guard.Option
	if deps.Metrics != nil {
		recorder = deps.Metrics
		guardOpts = append(guardOpts, guard.WithRecorder(deps.Metrics))
	}

	authHandler := NewAuthHandler(deps.AuthService, deps.AuthConfig, recorder)
	profileHandler := NewProfileHandler(deps.ProfileService)
	pageHandler := NewPageHandler(deps.ProfileService, deps.ShowGoogle)

	r.NotFound(pageHandler.NotFound)
	r.MethodNotAllowed(pageHandler.MethodNotAllowed)

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))

		// --- 運用エンドポイント ---
		r.Get("/health", NewHealthHandler(deps.HealthChecker).ServeHTTP)
		if deps.MetricsHandler != nil {
			r.Handle("/metrics", deps.MetricsHandler)
		}
		r.Get("/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF).ServeHTTP)
		r.Handle("/static/*", page.AssetHandler())

		// --- ページ ---
		resolved := session.ContextResolver{}
		r.With(guard.Middleware(resolved, guard.Index, guardOpts...)).Get("/", pageHandler.Index)
		r.With(guard.Middleware(resolved, guard.PublicOnly, guardOpts...)).Get("/login", pageHandler.Login)
		r.With(guard.Middleware(resolved, guard.PublicOnly, guardOpts...)).Get("/signup", pageHandler.Signup)
		r.Method(http.MethodGet, "/dashboard", guard.Protect(resolved, http.HandlerFunc(pageHandler.Dashboard), guardOpts...))

		// --- 認証 ---
		r.Route("/auth", func(r chi.Router) {
			r.Get("/callback", authHandler.Callback)
			r.Get("/confirm", authHandler.Confirm)

			r.Route("/v1", func(r chi.Router) {
				r.Get("/session", authHandler.Session)
				r.Get("/authorize", authHandler.Authorize)
				r.Post("/signout", authHandler.SignOut)
				r.With(middleware.NewRequireSessionMiddleware(
					middleware.ClearCookieOnReject(deps.AuthConfig.Cookie),
				)).Post("/token/refresh", authHandler.Refresh)

				// 資格情報を扱うアクションはIP単位のレート制限を追加
				r.Group(func(r chi.Router) {
					r.Use(deps.RateLimiter.AuthMiddleware())
					r.Post("/signin", authHandler.SignIn)
					r.Post("/signup", authHandler.SignUp)
					r.Post("/recover", authHandler.Recover)
					r.Post("/recover/confirm", authHandler.RecoverConfirm)
				})
			})
		})
	})

	// --- プロフィールAPI ---
	// 401の判定を405より先に行うため、メソッドを問わずハンドラーに渡す
	r.With(deps.RateLimiter.GeneralMiddleware()).Handle("/api/profile", profileHandler)

	return r
}

// respondPanic はAPIには統一フォーマットのJSON、ページにはエラーページで500を返す。
func respondPanic(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/auth/v1/") {
		middleware.WriteInternalServerError(w)
		return
	}
	page.RenderError(w, r, http.StatusInternalServerError)
}
