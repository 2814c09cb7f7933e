package repository

import (
	"app/internal/domain/model"
	"context"
	"errors"
)

// ユーザーが見つかりませんを統一
var ErrUserNotFound = errors.New("user not found")

// username / email の一意制約違反を統一
var ErrDuplicateUser = errors.New("duplicate username or email")

// 保存・取得を約束
type UserRepository interface {
	//新規ユーザー作成（username/email重複は ErrDuplicateUser）
	Create(ctx context.Context, user *model.User) error
	// IDからユーザーを1件取得する。
	FindByID(ctx context.Context, userID string) (*model.User, error)
	//メールまたはusernameでユーザーを一件取得する。
	FindByEmailOrUsername(ctx context.Context, email string, username string) (*model.User, error)
	//重複チェック用（どちらかが一致すればtrue）
	ExistsByEmailOrUsername(ctx context.Context, email string, username string) (bool, error)
	// refresh tokenを更新する（rotation）。nilで失効（ログアウト）
	UpdateRefreshToken(ctx context.Context, userID string, refreshToken *string) error
}
