package auth

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/profilegate/internal/model"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 6

// bcryptは72バイトを超える入力を扱えない。
const maxPasswordLength = 72

const (
	msgEmailInvalid    = "Informe um e-mail valido."
	msgPasswordTooWeak = "A senha deve ter pelo menos 6 caracteres."
)

// ValidateEmail はメールアドレスの形式を検証する。
func ValidateEmail(email string) error {
	err := validation.Validate(email,
		validation.Required.Error(msgEmailInvalid),
		is.Email.Error(msgEmailInvalid),
	)
	if err != nil {
		return model.NewValidationError(err.Error())
	}
	return nil
}

// ValidatePassword はパスワードの長さを検証する。
func ValidatePassword(password string) error {
	err := validation.Validate(password,
		validation.Required.Error(msgPasswordTooWeak),
		validation.Length(MinPasswordLength, maxPasswordLength).Error(msgPasswordTooWeak),
	)
	if err != nil {
		return model.NewValidationError(err.Error())
	}
	return nil
}

// ValidateCredentials はメールアドレスとパスワードをまとめて検証する。
func ValidateCredentials(email, password string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}
	return ValidatePassword(password)
}

// hashPassword はbcryptでパスワードハッシュを生成する。
func hashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(h), nil
}

// comparePassword はパスワードがハッシュと一致するかを検証する。
// OAuthのみで作成されたユーザー（ハッシュが空）は常に不一致とする。
func comparePassword(hash, password string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to compare password: %w", err)
	}
	return true, nil
}
