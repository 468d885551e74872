package auth

import (
	"context"
	"log/slog"
)

// Message は利用者に送付する認証関連メール。
type Message struct {
	To      string
	Subject string
	Link    string
}

// Mailer は確認メール・パスワード再設定メールの送信インターフェース。
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// LogMailer はメールを送信せず、構造化ログにリンクを出力するMailer。
// SMTP連携を持たない環境での開発・検証用。
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer はLogMailerを生成する。loggerがnilの場合はslog.Default()を使用する。
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send はメール内容をログに出力する。
func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	m.logger.InfoContext(ctx, "auth mail",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("link", msg.Link),
	)
	return nil
}

// compile-time interface check
var _ Mailer = (*LogMailer)(nil)
