package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// TestNewOutboundClientTimeout はタイムアウト設定が反映されることをテストする。
func TestNewOutboundClientTimeout(t *testing.T) {
	timeout := 5 * time.Second
	client := NewOutboundClient(timeout)
	if client == nil {
		t.Fatal("NewOutboundClient() returned nil")
	}
	if client.Timeout != timeout {
		t.Errorf("expected timeout %v, got %v", timeout, client.Timeout)
	}
}

// TestNewOutboundClientHasTransport はカスタムTransportが設定されていることをテストする。
func TestNewOutboundClientHasTransport(t *testing.T) {
	client := NewOutboundClient(5 * time.Second)

	if client.Transport == nil {
		t.Fatal("expected custom Transport to be set, got nil")
	}
	if client.Transport == http.DefaultTransport {
		t.Fatal("expected custom Transport, got http.DefaultTransport")
	}
}

// TestNewOutboundClientBlocksLoopback はループバックへのリクエストがブロックされることをテストする。
// httptestサーバーは127.0.0.1で起動されるため、safeurlがブロックする。
func TestNewOutboundClientBlocksLoopback(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewOutboundClient(5 * time.Second)

	resp, err := client.Get(ts.URL)
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected error for loopback address request, got nil")
	}
}

func TestSafeRedirectPath(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"空はfallback", "", "/dashboard"},
		{"絶対パス", "/dashboard", "/dashboard"},
		{"クエリ付き", "/dashboard?tab=1", "/dashboard?tab=1"},
		{"絶対URL", "https://evil.example/", "/dashboard"},
		{"スキーム相対URL", "//evil.example/path", "/dashboard"},
		{"バックスラッシュ", `/\evil.example`, "/dashboard"},
		{"相対パス", "dashboard", "/dashboard"},
		{"javascriptスキーム", "javascript:alert(1)", "/dashboard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SafeRedirectPath(tt.raw, "/dashboard"); got != tt.want {
				t.Errorf("SafeRedirectPath(%q) = %q, want %q", tt.raw, got, tt.want)
			}
		})
	}
}
