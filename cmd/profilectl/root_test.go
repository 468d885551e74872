package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/profilegate/internal/middleware"
	"github.com/hitoshi/profilegate/internal/session"
)

const (
	testCSRF  = "cli-csrf"
	testToken = "cli-token"
)

// fakeServer は認証APIとプロフィールAPIの最小限の実装。
type fakeServer struct {
	mu      sync.Mutex
	profile string
}

func (f *fakeServer) handler() http.Handler {
	mux := http.NewServeMux()
	writeJSON := func(w http.ResponseWriter, status int, v any) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(v)
	}
	sess := map[string]any{
		"access_token": testToken,
		"expires_at":   time.Now().Add(time.Hour).Unix(),
		"user":         map[string]string{"id": "user-1", "email": "ana@example.com"},
	}
	authed := func(r *http.Request) bool { return session.TokenFromRequest(r) == testToken }

	mux.HandleFunc("GET /api/csrf-token", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: middleware.CSRFCookieName, Value: testCSRF, Path: "/"})
		writeJSON(w, http.StatusOK, map[string]string{"token": testCSRF})
	})
	mux.HandleFunc("GET /auth/v1/session", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			writeJSON(w, http.StatusOK, map[string]any{"session": nil})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"session": sess})
	})
	mux.HandleFunc("POST /auth/v1/signin", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["password"] != "secret1" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Credenciais invalidas. Verifique e tente novamente."})
			return
		}
		http.SetCookie(w, &http.Cookie{Name: session.CookieName, Value: testToken, Path: "/"})
		writeJSON(w, http.StatusOK, sess)
	})
	mux.HandleFunc("POST /auth/v1/signout", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: session.CookieName, Path: "/", MaxAge: -1})
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /auth/v1/recover/confirm", func(w http.ResponseWriter, r *http.Request) {
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["token"] != "reset-tok" {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Link invalido ou expirado."})
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /auth/v1/authorize", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "https://accounts.google.com/o/oauth2/auth?state=st")
		w.WriteHeader(http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/api/profile", func(w http.ResponseWriter, r *http.Request) {
		if !authed(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Nao autenticado."})
			return
		}
		f.mu.Lock()
		defer f.mu.Unlock()
		if r.Method == http.MethodPut {
			var req map[string]string
			json.NewDecoder(r.Body).Decode(&req)
			f.profile = strings.TrimSpace(req["full_name"])
		}
		writeJSON(w, http.StatusOK, map[string]string{"full_name": f.profile})
	})
	return mux
}

func (f *fakeServer) savedProfile() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile
}

var (
	testServer *httptest.Server
	testAPI    *fakeServer
)

// 共有Providerはプロセスで一度だけ生成されるため、全テストで同じサーバーを使う。
func TestMain(m *testing.M) {
	testAPI = &fakeServer{}
	testServer = httptest.NewServer(testAPI.handler())
	code := m.Run()
	testServer.Close()
	os.Exit(code)
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append(args, "--base-url", testServer.URL))
	err := cmd.Execute()
	return out.String(), err
}

func TestDashboard_SignsInUpdatesProfileAndSignsOutOnce(t *testing.T) {
	out, err := run(t, "dashboard", "--email", "ana@example.com", "--password", "secret1", "--name", "  Ana  ")
	if err != nil {
		t.Fatalf("dashboard error = %v\n%s", err, out)
	}

	for _, want := range []string{
		"-> /dashboard",
		"Voce esta autenticado como ana@example.com.",
		"Perfil atualizado com sucesso.",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output should contain %q:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "-> /login"); n != 1 {
		t.Errorf("redirects to /login = %d, want 1:\n%s", n, out)
	}
	if got := testAPI.savedProfile(); got != "Ana" {
		t.Errorf("saved profile = %q, want Ana", got)
	}
}

func TestDashboard_InvalidCredentials(t *testing.T) {
	out, err := run(t, "dashboard", "--email", "ana@example.com", "--password", "wrong")
	if err == nil || err.Error() != "Credenciais invalidas. Verifique e tente novamente." {
		t.Fatalf("error = %v", err)
	}
	if strings.Contains(out, "->") {
		t.Errorf("failed sign in should not navigate:\n%s", out)
	}
}

func TestRecover_EmptyEmailIsRejectedLocally(t *testing.T) {
	_, err := run(t, "recover", "--email", "  ")
	if err == nil || err.Error() != "Informe seu e-mail para recuperar a senha." {
		t.Errorf("error = %v", err)
	}
}

func TestResetPassword(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
		wantOut string
	}{
		{
			name:    "成功で/loginへ",
			args:    []string{"--token", "reset-tok", "--password", "newsecret1", "--confirm-password", "newsecret1"},
			wantOut: "-> /login",
		},
		{
			name:    "確認用パスワード不一致",
			args:    []string{"--token", "reset-tok", "--password", "newsecret1", "--confirm-password", "other"},
			wantErr: "As senhas nao conferem.",
		},
		{
			name:    "無効なトークン",
			args:    []string{"--token", "stale", "--password", "newsecret1", "--confirm-password", "newsecret1"},
			wantErr: "Link invalido ou expirado.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := run(t, append([]string{"reset-password"}, tt.args...)...)
			if tt.wantErr != "" {
				if err == nil || err.Error() != tt.wantErr {
					t.Errorf("error = %v, want %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if !strings.Contains(out, tt.wantOut) {
				t.Errorf("output should contain %q:\n%s", tt.wantOut, out)
			}
		})
	}
}

func TestOAuthURL(t *testing.T) {
	out, err := run(t, "oauth-url")
	if err != nil {
		t.Fatalf("error = %v", err)
	}
	if !strings.Contains(out, "open https://accounts.google.com/o/oauth2/auth?state=st") {
		t.Errorf("output = %q", out)
	}
}
