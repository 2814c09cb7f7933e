package validator

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"app/internal/usecase"
)

type authValidator struct{}

// Usecaseは interface を依存注入
func NewAuthValidator() usecase.AuthValidator {
	return &authValidator{}
}

// 会員登録の入力を検証。どの項目が足りないかをエラーに載せる
func (v *authValidator) ValidateRegister(ctx context.Context, fullName, email, username, password string) error {
	if strings.TrimSpace(fullName) == "" {
		return fmt.Errorf("%w: full name is required", usecase.ErrValidation)
	}
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("%w: email is required", usecase.ErrValidation)
	}
	if strings.TrimSpace(username) == "" {
		return fmt.Errorf("%w: username is required", usecase.ErrValidation)
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", usecase.ErrValidation)
	}

	// email形式
	if !isEmailLike(email) {
		return fmt.Errorf("%w: email format is invalid", usecase.ErrValidation)
	}

	return nil
}

// ログインの入力を検証。emailかusernameのどちらかは必須
func (v *authValidator) ValidateLogin(ctx context.Context, email, username, password string) error {
	if strings.TrimSpace(email) == "" && strings.TrimSpace(username) == "" {
		return fmt.Errorf("%w: email or username is required", usecase.ErrValidation)
	}
	if password == "" {
		return fmt.Errorf("%w: password is required", usecase.ErrValidation)
	}

	return nil
}

// refresh 入力を検証。tokenが無いリクエストは401
func (v *authValidator) ValidateRefresh(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return fmt.Errorf("%w: refresh token is required", usecase.ErrUnauthorized)
	}

	return nil
}

// 簡易メール形式をチェック
func isEmailLike(s string) bool {
	_, err := mail.ParseAddress(strings.TrimSpace(s))
	return err == nil
}
