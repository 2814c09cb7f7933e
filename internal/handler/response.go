package handler

import (
	"errors"
	"net/http"
	"strings"

	"app/internal/response"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

func writeSuccess(c echo.Context, status int, data interface{}, message string) error {
	return response.WriteSuccess(c, status, data, message)
}

func writeFailure(c echo.Context, status int, message string) error {
	return response.WriteFailure(c, status, message)
}

// usecaseのsentinelエラーをHTTPステータスへ変換する唯一の境界。
// 500は詳細をログに残してクライアントには汎用メッセージだけ返す
func writeError(c echo.Context, l *zap.Logger, err error) error {
	switch {
	case errors.Is(err, usecase.ErrValidation):
		return writeFailure(c, http.StatusBadRequest, clientMessage(err, usecase.ErrValidation))
	case errors.Is(err, usecase.ErrConflict):
		return writeFailure(c, http.StatusConflict, clientMessage(err, usecase.ErrConflict))
	case errors.Is(err, usecase.ErrNotFound):
		return writeFailure(c, http.StatusNotFound, clientMessage(err, usecase.ErrNotFound))
	case errors.Is(err, usecase.ErrUnauthorized):
		return writeFailure(c, http.StatusUnauthorized, clientMessage(err, usecase.ErrUnauthorized))
	default:
		if l != nil {
			l.Error("internal error", zap.Error(err), zap.String("path", c.Path()))
		}
		return writeFailure(c, http.StatusInternalServerError, "internal server error")
	}
}

// "validation error: email is required" → "email is required"
func clientMessage(err error, sentinel error) string {
	msg := strings.TrimPrefix(err.Error(), sentinel.Error())
	msg = strings.TrimPrefix(msg, ": ")
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}
