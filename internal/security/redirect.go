package security

import (
	"net/url"
	"strings"
)

// SafeRedirectPath はログイン後の遷移先として安全なパスを返す。
// 同一オリジン内の絶対パスのみを許可し、それ以外はfallbackを返す。
// "//evil.example" のようなスキーム相対URLやバックスラッシュを含むパスはオープンリダイレクトになるため拒否する。
func SafeRedirectPath(raw, fallback string) string {
	if raw == "" {
		return fallback
	}
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, `\`) {
		return fallback
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.IsAbs() || parsed.Host != "" {
		return fallback
	}
	return parsed.RequestURI()
}
