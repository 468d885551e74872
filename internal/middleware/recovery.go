package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"
)

// PanicResponder はpanic回復後のレスポンスを書き込む。
type PanicResponder func(w http.ResponseWriter, r *http.Request)

// NewRecoveryMiddleware はpanic発生時にプロセスクラッシュを防ぐミドルウェアを生成する。
// respondがnilの場合は統一フォーマットのJSONで500を返す。
func NewRecoveryMiddleware(respond ...PanicResponder) func(next http.Handler) http.Handler {
	write := PanicResponder(func(w http.ResponseWriter, _ *http.Request) {
		WriteInternalServerError(w)
	})
	if len(respond) > 0 && respond[0] != nil {
		write = respond[0]
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				// クライアント切断はnet/httpに任せる
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				slog.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("stack", string(debug.Stack())),
				)
				write(w, r)
			}()
			next.ServeHTTP(w, r)
		})
	}
}
