package response

import (
	"github.com/labstack/echo/v4"
)

// 成功時の統一レスポンス
type SuccessEnvelope struct {
	StatusCode int         `json:"statusCode"`
	Data       interface{} `json:"data"`
	Message    string      `json:"message"`
	Success    bool        `json:"success"`
}

// 失敗時の統一レスポンス
type FailureEnvelope struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors,omitempty"`
}

func WriteSuccess(c echo.Context, status int, data interface{}, message string) error {
	return c.JSON(status, SuccessEnvelope{
		StatusCode: status,
		Data:       data,
		Message:    message,
		Success:    true,
	})
}

func WriteFailure(c echo.Context, status int, message string) error {
	return c.JSON(status, FailureEnvelope{
		StatusCode: status,
		Message:    message,
		Success:    false,
	})
}
