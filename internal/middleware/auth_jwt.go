package middleware

import (
	"net/http"
	"strings"

	"app/internal/response"
	"app/internal/token"

	"github.com/labstack/echo/v4"
)

const (
	CtxUserIDKey   = "user_id"  // string (uuid)
	CtxUsernameKey = "username" // string
)

// AuthJWT はaccess tokenの検証ミドルウェア。
// Authorizationヘッダ（Bearer）優先、無ければaccessToken cookieを見る
func AuthJWT(issuer *token.Issuer) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			raw := bearerToken(c.Request().Header.Get("Authorization"))

			if raw == "" {
				if ck, err := c.Cookie("accessToken"); err == nil && ck != nil {
					raw = ck.Value
				}
			}

			if raw == "" {
				return unauthorized(c)
			}

			claims, err := issuer.VerifyAccess(raw)
			if err != nil {
				return unauthorized(c)
			}

			//contextへ保存
			c.Set(CtxUserIDKey, claims.UserID)
			c.Set(CtxUsernameKey, claims.Username)

			return next(c)
		}
	}
}

// "Bearer xxx" からtokenを抜く
func bearerToken(authz string) string {
	if authz == "" {
		return ""
	}

	parts := strings.SplitN(authz, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}

	return strings.TrimSpace(parts[1])
}

func unauthorized(c echo.Context) error {
	return response.WriteFailure(c, http.StatusUnauthorized, "unauthorized")
}
