package middleware

import "net/http"

// NewCORSMiddleware はクロスオリジンのフロントエンドから認証APIとプロフィールAPIを呼ぶためのCORSミドルウェアを返す。
// allowedOriginが空の場合は同一オリジンのみを想定し、何もしない。
// リクエストのOriginがallowedOriginと一致する場合のみヘッダーを付与する。
// セッションCookieを送るためワイルドカード(*)は使わない。
func NewCORSMiddleware(allowedOrigin string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if allowedOrigin == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Origin")

			origin := r.Header.Get("Origin")
			preflight := r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != ""

			if origin != allowedOrigin {
				// 許可外オリジンのプリフライトは拒否し、通常リクエストはヘッダーなしで通す
				if preflight {
					w.WriteHeader(http.StatusForbidden)
					return
				}
				next.ServeHTTP(w, r)
				return
			}

			w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")

			if preflight {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+CSRFHeaderName)
				w.Header().Set("Access-Control-Max-Age", "86400")
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
