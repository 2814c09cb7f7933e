package model

import "time"

type User struct {
	ID       string `gorm:"type:uuid;primaryKey" json:"id"`
	Username string `gorm:"uniqueIndex;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	FullName string `gorm:"not null" json:"full_name"`

	// bcryptハッシュ。平文は保存しない
	Password string `gorm:"column:password_hash;not null" json:"-"`

	// 現在有効なrefresh token（1ユーザー1本。ログアウトでNULL）
	RefreshToken *string `gorm:"column:refresh_token" json:"-"`

	AvatarURL     string `gorm:"not null" json:"avatar_url"`
	CoverImageURL string `json:"cover_image_url"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
