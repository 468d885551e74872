// Package page はサーバー描画ページのpropsと、HTMLまたはJSONでの描画を提供する。
package page

import (
	"bytes"
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
)

//go:embed templates/*.html
var templatesFS embed.FS

//go:embed static
var staticFS embed.FS

var templates = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

// ページ名。テンプレートファイル名に対応する。
const (
	Login     = "login"
	Signup    = "signup"
	Dashboard = "dashboard"
	Error     = "error"
)

// /loginに付与するお知らせコード。
const (
	NoticeEmailConfirmed = "email_confirmed"
	NoticeLinkInvalid    = "link_invalid"
	NoticeOAuthFailed    = "oauth_failed"
)

var notices = map[string]string{
	NoticeEmailConfirmed: "E-mail confirmado. Voce ja pode entrar.",
	NoticeLinkInvalid:    "Link invalido ou expirado.",
	NoticeOAuthFailed:    "Nao foi possivel concluir o login com Google.",
}

// NoticeMessage はお知らせコードに対応する文言を返す。未知のコードは空文字になる。
func NoticeMessage(code string) string {
	return notices[code]
}

// LoginProps は/loginページのprops。
// RecoveryTokenはパスワード再設定リンクから遷移した場合にのみ設定される。
type LoginProps struct {
	ShowGoogle    bool   `json:"showGoogle"`
	Notice        string `json:"notice,omitempty"`
	RecoveryToken string `json:"recoveryToken,omitempty"`
}

// SignupProps は/signupページのprops。
type SignupProps struct{}

// DashboardUser は/dashboardに渡すユーザー情報。
type DashboardUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"full_name"`
}

// Greeting は挨拶に使う表示名を返す。名前が未設定の場合はメールアドレスを使う。
func (u DashboardUser) Greeting() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Email
}

// DashboardProps は/dashboardページのprops。
type DashboardProps struct {
	User DashboardUser `json:"user"`
}

// ErrorProps はエラーページのprops。
type ErrorProps struct {
	StatusCode int    `json:"statusCode"`
	Title      string `json:"title"`
	Message    string `json:"message"`
}

// NewErrorProps はステータスコードに応じたエラーページのpropsを生成する。
func NewErrorProps(status int) ErrorProps {
	if status >= http.StatusInternalServerError {
		return ErrorProps{
			StatusCode: status,
			Title:      "Algo deu errado",
			Message:    "Tente novamente em instantes ou recarregue a pagina.",
		}
	}
	return ErrorProps{
		StatusCode: status,
		Title:      "Erro " + strconv.Itoa(status),
		Message:    "Estamos trabalhando para resolver. Tente novamente em instantes.",
	}
}

// WantsJSON はAcceptヘッダーがHTMLよりJSONを優先しているかを判定する。
func WantsJSON(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mediaType {
		case "application/json":
			return true
		case "text/html":
			return false
		}
	}
	return false
}

// Render はpropsをAcceptヘッダーに応じてJSONまたはHTMLで書き込む。
// HTMLはバッファに描画してから書き込むため、テンプレートエラー時に部分的なレスポンスは返らない。
func Render(w http.ResponseWriter, r *http.Request, status int, name string, props any) {
	w.Header().Set("Cache-Control", "no-store")

	if WantsJSON(r) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(props)
		return
	}

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name+".html", props); err != nil {
		slog.Error("failed to render page",
			slog.String("page", name),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

// RenderError はエラーページを描画する。
func RenderError(w http.ResponseWriter, r *http.Request, status int) {
	Render(w, r, status, Error, NewErrorProps(status))
}

// AssetHandler は/static/配下の埋め込みファイルを配信する。ディレクトリ一覧は返さない。
func AssetHandler() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	files := http.StripPrefix("/static/", http.FileServerFS(sub))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/") {
			http.NotFound(w, r)
			return
		}
		if strings.HasSuffix(r.URL.Path, ".js") {
			w.Header().Set("Content-Type", "text/javascript; charset=utf-8")
		}
		w.Header().Set("Cache-Control", "no-cache")
		files.ServeHTTP(w, r)
	})
}
