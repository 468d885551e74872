package model

import "fmt"

// ErrorKind はエラーの分類を表す。
// ハンドラー層はこの分類からHTTPステータスコードを決定する。
type ErrorKind string

const (
	// KindUnauthenticated はセッションが存在しない、または無効であることを示す。
	// ページ描画時はリダイレクトに変換され、エラーメッセージとしては表示しない。
	KindUnauthenticated ErrorKind = "unauthenticated"
	// KindForbidden は認証済みだが対象リソースへのアクセス権がないことを示す。
	KindForbidden ErrorKind = "forbidden"
	// KindValidation はクライアント入力の不備を示す。
	KindValidation ErrorKind = "validation"
	// KindProvider は認証プロバイダーまたはストアの失敗を示す。
	KindProvider ErrorKind = "provider"
	// KindRateLimited はレート制限超過を示す。
	KindRateLimited ErrorKind = "rate_limited"
)

// APIError は統一エラーフォーマットを表す。
// MessageはUIにそのまま表示できる利用者向けの文言とする。
type APIError struct {
	Code    string    // エラーコード
	Message string    // エラーメッセージ
	Kind    ErrorKind // 分類
	Err     error     // 原因（ログ用、レスポンスには含めない）
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeUnauthenticated    = "UNAUTHENTICATED"
	ErrCodeForbidden          = "FORBIDDEN"
	ErrCodeInvalidRequest     = "INVALID_REQUEST"
	ErrCodeInvalidFullName    = "INVALID_FULL_NAME"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeEmailNotConfirmed  = "EMAIL_NOT_CONFIRMED"
	ErrCodeEmailTaken         = "EMAIL_TAKEN"
	ErrCodeEmailRequired      = "EMAIL_REQUIRED"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeOAuthUnavailable   = "OAUTH_UNAVAILABLE"
	ErrCodeStoreFailure       = "STORE_FAILURE"
	ErrCodeProviderFailure    = "PROVIDER_FAILURE"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodePasswordMismatch   = "PASSWORD_MISMATCH"
	ErrCodeMethodNotAllowed   = "METHOD_NOT_ALLOWED"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeInternal           = "INTERNAL_ERROR"
)

// NewUnauthenticatedError は未認証エラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:    ErrCodeUnauthenticated,
		Message: "Nao autenticado.",
		Kind:    KindUnauthenticated,
	}
}

// NewForbiddenError は他ユーザーのリソースへアクセスしようとした場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Code:    ErrCodeForbidden,
		Message: "Acesso negado.",
		Kind:    KindForbidden,
	}
}

// NewInvalidFullNameError はfull_nameが文字列でない場合のエラーを生成する。
func NewInvalidFullNameError() *APIError {
	return &APIError{
		Code:    ErrCodeInvalidFullName,
		Message: "O nome deve ser uma string.",
		Kind:    KindValidation,
	}
}

// NewInvalidRequestError はリクエストボディが解析できない場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	msg := "Requisicao invalida."
	if reason != "" {
		msg = fmt.Sprintf("Requisicao invalida: %s", reason)
	}
	return &APIError{
		Code:    ErrCodeInvalidRequest,
		Message: msg,
		Kind:    KindValidation,
	}
}

// NewValidationError は入力検証エラーを、利用者向けメッセージをそのまま用いて生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:    ErrCodeInvalidRequest,
		Message: message,
		Kind:    KindValidation,
	}
}

// NewInvalidCredentialsError はメールアドレスまたはパスワードが一致しない場合のエラーを生成する。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Code:    ErrCodeInvalidCredentials,
		Message: "Credenciais invalidas. Verifique e tente novamente.",
		Kind:    KindValidation,
	}
}

// NewEmailNotConfirmedError はメール未確認のユーザーがサインインした場合のエラーを生成する。
func NewEmailNotConfirmedError() *APIError {
	return &APIError{
		Code:    ErrCodeEmailNotConfirmed,
		Message: "Confirme seu e-mail antes de entrar.",
		Kind:    KindValidation,
	}
}

// NewEmailTakenError は登録済みのメールアドレスでサインアップした場合のエラーを生成する。
func NewEmailTakenError() *APIError {
	return &APIError{
		Code:    ErrCodeEmailTaken,
		Message: "Este e-mail ja esta cadastrado.",
		Kind:    KindValidation,
	}
}

// NewEmailRequiredError はパスワード再設定でメールアドレスが未入力の場合のエラーを生成する。
func NewEmailRequiredError() *APIError {
	return &APIError{
		Code:    ErrCodeEmailRequired,
		Message: "Informe seu e-mail para recuperar a senha.",
		Kind:    KindValidation,
	}
}

// NewInvalidTokenError は確認・再設定トークンが無効または期限切れの場合のエラーを生成する。
func NewInvalidTokenError() *APIError {
	return &APIError{
		Code:    ErrCodeInvalidToken,
		Message: "Link invalido ou expirado.",
		Kind:    KindValidation,
	}
}

// NewOAuthUnavailableError はOAuthプロバイダーが未設定または未対応の場合のエラーを生成する。
func NewOAuthUnavailableError(provider string) *APIError {
	return &APIError{
		Code:    ErrCodeOAuthUnavailable,
		Message: fmt.Sprintf("Nao foi possivel iniciar o login com %s.", provider),
		Kind:    KindProvider,
	}
}

// NewStoreFailureError はプロフィールストアの失敗を表すエラーを生成する。
func NewStoreFailureError(err error) *APIError {
	return &APIError{
		Code:    ErrCodeStoreFailure,
		Message: "Nao foi possivel acessar o perfil.",
		Kind:    KindProvider,
		Err:     err,
	}
}

// NewProviderFailureError は認証プロバイダーの失敗を表すエラーを生成する。
func NewProviderFailureError(message string, err error) *APIError {
	return &APIError{
		Code:    ErrCodeProviderFailure,
		Message: message,
		Kind:    KindProvider,
		Err:     err,
	}
}

// NewPasswordMismatchError はパスワードと確認用パスワードが一致しない場合のエラーを生成する。
func NewPasswordMismatchError() *APIError {
	return &APIError{
		Code:    ErrCodePasswordMismatch,
		Message: "As senhas nao conferem.",
		Kind:    KindValidation,
	}
}

// NewRateLimitedError はレート制限超過のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:    ErrCodeRateLimitExceeded,
		Message: "Muitas tentativas. Aguarde um momento e tente novamente.",
		Kind:    KindRateLimited,
	}
}
