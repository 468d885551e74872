// Command profilegate はセッションでゲートされたプロフィールサービスを起動する。
//
// サブコマンド:
//
//	serve        HTTPサーバー（デフォルト）
//	worker       期限切れセッションと使用済みトークンの定期削除
//	migrate      スキーマのマイグレーション
//	healthcheck  稼働中サーバーのヘルスチェック
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/profilegate/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "profilegate: %v\n", err)
		os.Exit(1)
	}
}
