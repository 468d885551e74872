package page

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestWantsJSON(t *testing.T) {
	tests := []struct {
		name   string
		accept string
		want   bool
	}{
		{"未指定", "", false},
		{"JSON", "application/json", true},
		{"ブラウザ", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8", false},
		{"JSON優先", "application/json, text/html;q=0.5", true},
		{"パラメータ付き", "application/json; charset=utf-8", true},
		{"ワイルドカード", "*/*", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/login", nil)
			if tt.accept != "" {
				req.Header.Set("Accept", tt.accept)
			}
			if got := WantsJSON(req); got != tt.want {
				t.Errorf("WantsJSON(%q) = %v, want %v", tt.accept, got, tt.want)
			}
		})
	}
}

func TestRender_JSONProps(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()

	Render(w, req, http.StatusOK, Dashboard, DashboardProps{
		User: DashboardUser{ID: "u1", Email: "ana@example.com", FullName: ""},
	})

	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var got map[string]map[string]string
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	want := map[string]string{"id": "u1", "email": "ana@example.com", "full_name": ""}
	for k, v := range want {
		if got["user"][k] != v {
			t.Errorf("user.%s = %q, want %q", k, got["user"][k], v)
		}
	}
}

func TestRender_LoginJSONOmitsEmptyNotice(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.Header.Set("Accept", "application/json")
	w := httptest.NewRecorder()

	Render(w, req, http.StatusOK, Login, LoginProps{ShowGoogle: true})

	if body := strings.TrimSpace(w.Body.String()); body != `{"showGoogle":true}` {
		t.Errorf("body = %s, want {\"showGoogle\":true}", body)
	}
}

func TestRender_HTML(t *testing.T) {
	tests := []struct {
		name     string
		page     string
		props    any
		contains []string
		excludes []string
	}{
		{
			name:     "login Googleあり",
			page:     Login,
			props:    LoginProps{ShowGoogle: true},
			contains: []string{"<title>Entrar</title>", "provider=google"},
		},
		{
			name:     "login Googleなし",
			page:     Login,
			props:    LoginProps{},
			excludes: []string{"provider=google"},
		},
		{
			name:     "login 再設定メールはメールアドレスを送る",
			page:     Login,
			props:    LoginProps{},
			contains: []string{`data-endpoint="/auth/v1/recover"`, `id="recoverEmail" name="email"`, `src="/static/forms.js"`},
			excludes: []string{`action="/auth/v1`, "/auth/v1/recover/confirm"},
		},
		{
			name:     "login 再設定トークンあり",
			page:     Login,
			props:    LoginProps{RecoveryToken: "reset-tok"},
			contains: []string{`data-endpoint="/auth/v1/recover/confirm"`, `value="reset-tok"`},
		},
		{
			name:     "signup",
			page:     Signup,
			props:    SignupProps{},
			contains: []string{"confirm_password", `data-endpoint="/auth/v1/signup"`},
			excludes: []string{`action="/auth/v1`},
		},
		{
			name:     "dashboard はJSONでPUTする",
			page:     Dashboard,
			props:    DashboardProps{User: DashboardUser{ID: "u1", Email: "ana@example.com"}},
			contains: []string{`data-endpoint="/api/profile" data-method="PUT"`, `data-endpoint="/auth/v1/signout"`},
			excludes: []string{`action="/api/profile"`},
		},
		{
			name:     "dashboard 名前なしはメールで挨拶",
			page:     Dashboard,
			props:    DashboardProps{User: DashboardUser{ID: "u1", Email: "ana@example.com"}},
			contains: []string{"autenticado como ana@example.com"},
		},
		{
			name:     "dashboard 名前はエスケープされる",
			page:     Dashboard,
			props:    DashboardProps{User: DashboardUser{ID: "u1", Email: "a@b.c", FullName: "<b>Ana</b>"}},
			contains: []string{"&lt;b&gt;Ana&lt;/b&gt;"},
			excludes: []string{"<b>Ana</b>"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			Render(w, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, tt.page, tt.props)

			if w.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", w.Code)
			}
			if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
				t.Errorf("Content-Type = %q, want text/html", ct)
			}
			body := w.Body.String()
			for _, s := range tt.contains {
				if !strings.Contains(body, s) {
					t.Errorf("body should contain %q", s)
				}
			}
			for _, s := range tt.excludes {
				if strings.Contains(body, s) {
					t.Errorf("body should not contain %q", s)
				}
			}
		})
	}
}

func TestRenderError(t *testing.T) {
	w := httptest.NewRecorder()
	RenderError(w, httptest.NewRequest(http.MethodGet, "/nope", nil), http.StatusNotFound)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
	if !strings.Contains(w.Body.String(), "Erro 404") {
		t.Errorf("body should contain the status title, got %s", w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/boom", nil)
	req.Header.Set("Accept", "application/json")
	w = httptest.NewRecorder()
	RenderError(w, req, http.StatusInternalServerError)

	var props ErrorProps
	if err := json.NewDecoder(w.Body).Decode(&props); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if props.StatusCode != 500 || props.Title != "Algo deu errado" {
		t.Errorf("props = %+v", props)
	}
}

func TestAssetHandler(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		wantStatus int
	}{
		{"forms.js", "/static/forms.js", http.StatusOK},
		{"存在しないファイル", "/static/missing.js", http.StatusNotFound},
		{"ディレクトリ一覧は返さない", "/static/", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			AssetHandler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if ct := w.Header().Get("Content-Type"); ct != "text/javascript; charset=utf-8" {
				t.Errorf("Content-Type = %q", ct)
			}
			if !strings.Contains(w.Body.String(), "X-CSRF-Token") {
				t.Error("forms.js should send the CSRF header")
			}
		})
	}
}
