// Command profilectl はprofilegateの認証APIとプロフィールAPIを端末から操作するクライアント。
//
// サブコマンド:
//
//	dashboard       サインインしてダッシュボードを表示し、表示名を更新してサインアウト
//	signup          アカウント作成
//	recover         パスワード再設定メールの依頼
//	reset-password  再設定トークンで新しいパスワードを設定
//	oauth-url       OAuthログインの認可URLを表示
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "profilectl: %v\n", err)
		os.Exit(1)
	}
}
