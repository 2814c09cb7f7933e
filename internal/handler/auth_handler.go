package handler

import (
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"app/internal/middleware"
	"app/internal/usecase"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	accessCookieName  = "accessToken"
	refreshCookieName = "refreshToken"
)

type AuthHandler struct {
	uc           *usecase.AuthUsecase
	l            *zap.Logger
	accessTTL    time.Duration // access cookie の有効期限
	refreshTTL   time.Duration // refresh cookie の有効期限
	cookieSecure bool
}

// DIコンストラクタ
func NewAuthHandler(
	uc *usecase.AuthUsecase,
	l *zap.Logger,
	accessTTL time.Duration,
	refreshTTL time.Duration,
	cookieSecure bool,
) *AuthHandler {
	return &AuthHandler{
		uc:           uc,
		l:            l,
		accessTTL:    accessTTL,
		refreshTTL:   refreshTTL,
		cookieSecure: cookieSecure,
	}
}

// /auth/login のリクエストボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

// /auth/refresh はcookie優先、無ければボディから読む
type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// RegisterはPOST /auth/register のハンドラ（multipart/form-data）
func (h *AuthHandler) Register(c echo.Context) error {
	req := usecase.RegisterRequest{
		FullName: c.FormValue("fullname"),
		Email:    c.FormValue("email"),
		Username: c.FormValue("username"),
		Password: c.FormValue("password"),
	}

	//アバター（必須）とカバー画像（任意）を開く。
	//「パートが無い」はusecaseの必須チェックに任せ、ここでは「あるのに読めない」だけ弾く
	avatar, avatarClose, err := openFormFile(c, "avatar")
	switch {
	case err == nil:
		defer avatarClose()
		req.Avatar = avatar
	case !errors.Is(err, http.ErrMissingFile):
		return writeFailure(c, http.StatusBadRequest, "avatar file is unreadable")
	}

	cover, coverClose, err := openFormFile(c, "coverImage")
	switch {
	case err == nil:
		defer coverClose()
		req.Cover = cover
	case !errors.Is(err, http.ErrMissingFile):
		return writeFailure(c, http.StatusBadRequest, "cover image file is unreadable")
	}

	out, err := h.uc.Register(c.Request().Context(), req)
	if err != nil {
		return writeError(c, h.l, err)
	}

	return writeSuccess(c, http.StatusOK, out, "user registered successfully")
}

// LoginはPOST /auth/login のハンドラ。
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return writeFailure(c, http.StatusBadRequest, "invalid request body")
	}

	out, err := h.uc.Login(c.Request().Context(), usecase.LoginRequest{
		Email:    req.Email,
		Username: req.Username,
		Password: req.Password,
	})
	if err != nil {
		return writeError(c, h.l, err)
	}

	//tokenをcookieへ（httpOnly + secure）
	h.setTokenCookies(c, out.AccessToken, out.RefreshToken)

	return writeSuccess(c, http.StatusOK, out, "logged in successfully")
}

// LogoutはPOST /auth/logout のハンドラ。要認証
func (h *AuthHandler) Logout(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserIDKey).(string)

	if err := h.uc.Logout(c.Request().Context(), userID); err != nil {
		return writeError(c, h.l, err)
	}

	//cookieを消す
	h.clearTokenCookies(c)

	return writeSuccess(c, http.StatusOK, nil, "logged out successfully")
}

// RefreshはPOST /auth/refresh のハンドラ。
// refresh tokenはcookieかボディのどちらかで受ける
func (h *AuthHandler) Refresh(c echo.Context) error {
	raw := ""
	if ck, err := c.Cookie(refreshCookieName); err == nil && ck != nil {
		raw = ck.Value
	}
	if raw == "" {
		var req refreshRequest
		if err := c.Bind(&req); err == nil {
			raw = req.RefreshToken
		}
	}

	out, err := h.uc.Refresh(c.Request().Context(), raw)
	if err != nil {
		return writeError(c, h.l, err)
	}

	h.setTokenCookies(c, out.AccessToken, out.RefreshToken)

	return writeSuccess(c, http.StatusOK, out, "access token refreshed")
}

// MeはGET /auth/me のハンドラ。要認証
func (h *AuthHandler) Me(c echo.Context) error {
	userID, _ := c.Get(middleware.CtxUserIDKey).(string)

	out, err := h.uc.Me(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, h.l, err)
	}

	return writeSuccess(c, http.StatusOK, out, "current user fetched successfully")
}

// multipartのファイルパートを開く
func openFormFile(c echo.Context, name string) (*usecase.FileUpload, func(), error) {
	fh, err := c.FormFile(name)
	if err != nil {
		return nil, nil, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, nil, err
	}

	return &usecase.FileUpload{
		Body:        f,
		Filename:    fh.Filename,
		ContentType: detectContentType(fh),
	}, func() { _ = f.Close() }, nil
}

func detectContentType(fh *multipart.FileHeader) string {
	ct := fh.Header.Get("Content-Type")
	if ct == "" {
		ct = "application/octet-stream"
	}
	return ct
}

// access/refresh をCookieにセット。
func (h *AuthHandler) setTokenCookies(c echo.Context, accessToken, refreshToken string) {
	now := time.Now()

	c.SetCookie(&http.Cookie{
		Name:     accessCookieName,
		Value:    accessToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  now.Add(h.accessTTL),
	})
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    refreshToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
		Expires:  now.Add(h.refreshTTL),
	})
}

// Cookieを失効させる
func (h *AuthHandler) clearTokenCookies(c echo.Context) {
	for _, name := range []string{accessCookieName, refreshCookieName} {
		c.SetCookie(&http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			HttpOnly: true,
			Secure:   h.cookieSecure,
			SameSite: http.SameSiteLaxMode,
			MaxAge:   -1,
		})
	}
}
