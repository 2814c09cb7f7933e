package token

import (
	"errors"
	"time"

	"app/internal/domain/model"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// 署名・検証に失敗したtokenを統一
var ErrInvalidToken = errors.New("invalid token")

// access/refresh の2種類を発行・検証する。
// 片方のシークレットが漏れてももう片方は偽造できないように別シークレット。
type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
}

type Pair struct {
	AccessToken  string
	RefreshToken string
}

// Claims はaccess tokenの検証結果。
type Claims struct {
	UserID   string
	Username string
	Email    string
}

// DI
func NewIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
	}
}

// IssuePair はaccess/refreshを同時に発行する。
// 署名失敗は呼び出し元の操作ごと中断する（握りつぶさない）。
func (i *Issuer) IssuePair(user *model.User, now time.Time) (Pair, error) {
	access, err := i.issueAccess(user, now)
	if err != nil {
		return Pair{}, err
	}

	refresh, err := i.issueRefresh(user, now)
	if err != nil {
		return Pair{}, err
	}

	return Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// access token発行（短命）
func (i *Issuer) issueAccess(user *model.User, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":      user.ID,
		"username": user.Username,
		"email":    user.Email,
		"iat":      now.Unix(),
		"exp":      now.Add(i.accessTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(i.accessSecret)
}

// refresh token発行（長命。識別子だけ持つ）
// jtiで発行ごとに必ず別の文字列になる（rotationは完全一致比較のため）
func (i *Issuer) issueRefresh(user *model.User, now time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub": user.ID,
		"jti": uuid.NewString(),
		"iat": now.Unix(),
		"exp": now.Add(i.refreshTTL).Unix(),
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return t.SignedString(i.refreshSecret)
}

// VerifyAccess は署名と有効期限を検証してclaimsを返す。
func (i *Issuer) VerifyAccess(raw string) (*Claims, error) {
	claims, err := parseHS256(raw, i.accessSecret)
	if err != nil {
		return nil, err
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrInvalidToken
	}

	username, _ := claims["username"].(string)
	email, _ := claims["email"].(string)

	return &Claims{UserID: sub, Username: username, Email: email}, nil
}

// VerifyRefresh は署名と有効期限を検証してユーザーIDを返す。
func (i *Issuer) VerifyRefresh(raw string) (string, error) {
	claims, err := parseHS256(raw, i.refreshSecret)
	if err != nil {
		return "", err
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return "", ErrInvalidToken
	}

	return sub, nil
}

// JWTをパースして検証する（HS256以外は拒否）
func parseHS256(raw string, secret []byte) (jwt.MapClaims, error) {
	t, err := jwt.Parse(raw, func(t *jwt.Token) (interface{}, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	})
	if err != nil || t == nil || !t.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := t.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	return claims, nil
}
