package handler

import (
	"log/slog"
	"net/http"

	"github.com/hitoshi/profilegate/internal/guard"
	"github.com/hitoshi/profilegate/internal/page"
	"github.com/hitoshi/profilegate/internal/session"
)

// PageHandler はサーバー描画ページのHTTPハンドラー。
// ガードの判定はルーター側のguard.Middlewareで行い、ここでは許可されたリクエストのみを扱う。
type PageHandler struct {
	profiles   ProfileServiceInterface
	showGoogle bool
}

// NewPageHandler はPageHandlerを生成する。
// showGoogleはGoogle OAuthのクライアントIDとシークレットが両方設定されている場合にtrueとする。
func NewPageHandler(profiles ProfileServiceInterface, showGoogle bool) *PageHandler {
	return &PageHandler{profiles: profiles, showGoogle: showGoogle}
}

// Index はセッションの有無に応じて/dashboardまたは/loginへリダイレクトする。
// GET /
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	d := guard.Decide(session.FromContext(r.Context()), guard.Index)
	guard.Redirect(w, d.RedirectTo)
}

// Login はログインページを描画する。
// GET /login
func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page.Render(w, r, http.StatusOK, page.Login, page.LoginProps{
		ShowGoogle:    h.showGoogle,
		Notice:        page.NoticeMessage(q.Get("notice")),
		RecoveryToken: q.Get("recovery_token"),
	})
}

// Signup はサインアップページを描画する。
// GET /signup
func (h *PageHandler) Signup(w http.ResponseWriter, r *http.Request) {
	page.Render(w, r, http.StatusOK, page.Signup, page.SignupProps{})
}

// Dashboard はダッシュボードを描画する。
// プロフィールの取得に失敗した場合は名前を空としてそのまま描画する。
// GET /dashboard
func (h *PageHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	s := session.FromContext(r.Context())
	if s == nil {
		guard.Redirect(w, guard.LoginPath)
		return
	}

	user := page.DashboardUser{ID: s.UserID, Email: s.Email}
	p, err := h.profiles.GetProfile(r.Context(), s.UserID)
	if err != nil {
		slog.WarnContext(r.Context(), "failed to load profile for dashboard",
			slog.String("user_id", s.UserID),
			slog.String("error", err.Error()),
		)
	} else {
		user.FullName = p.DisplayName()
	}

	page.Render(w, r, http.StatusOK, page.Dashboard, page.DashboardProps{User: user})
}

// NotFound は404ページを描画する。
func (h *PageHandler) NotFound(w http.ResponseWriter, r *http.Request) {
	page.RenderError(w, r, http.StatusNotFound)
}

// MethodNotAllowed は405ページを描画する。
func (h *PageHandler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	page.RenderError(w, r, http.StatusMethodNotAllowed)
}
