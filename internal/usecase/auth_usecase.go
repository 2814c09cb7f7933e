package usecase

import (
	"app/internal/domain/model"
	"app/internal/repository"
	"app/internal/token"

	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
)

var (
	//400 入力不足
	ErrValidation = errors.New("validation error")
	//401 認証失敗
	ErrUnauthorized = errors.New("unauthorized")
	//404 ユーザーなし
	ErrNotFound = errors.New("not found")
	//409 username/email競合
	ErrConflict = errors.New("conflict")
	//500
	ErrInternal = errors.New("internal error")
)

// usecaseがValidatorInterfaceに依存する約束
type AuthValidator interface {
	ValidateRegister(ctx context.Context, fullName, email, username, password string) error
	ValidateLogin(ctx context.Context, email, username, password string) error
	ValidateRefresh(ctx context.Context, refreshToken string) error
}

// access/refreshの発行と検証の約束
type TokenIssuer interface {
	IssuePair(user *model.User, now time.Time) (token.Pair, error)
	VerifyRefresh(raw string) (string, error)
}

// 画像アップロードの約束（S3実装をDI）
type MediaStorage interface {
	Upload(ctx context.Context, body io.Reader, filename string, contentType string) (string, error)
}

// 平文パスワードからハッシュへ。
type PasswordHasher interface {
	Hash(plain string) (string, error)
}

// 入力パスワードと保存したハッシュを比べる約束
type PasswordVerifier interface {
	Verify(plain string, hashed string) bool
}

// UUID 等のIDを作る約束
type IDGenerator interface {
	NewID() string
}

// 現在の時間
type Clock interface {
	Now() time.Time
}

// API返却用。passwordとrefresh tokenは絶対に載せない
type UserDTO struct {
	ID            string    `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	FullName      string    `json:"full_name"`
	AvatarURL     string    `json:"avatar_url"`
	CoverImageURL string    `json:"cover_image_url,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// multipartから渡る1ファイル
type FileUpload struct {
	Body        io.Reader
	Filename    string
	ContentType string
}

type RegisterRequest struct {
	FullName string
	Email    string
	Username string
	Password string
	Avatar   *FileUpload // 必須
	Cover    *FileUpload // 任意
}

type LoginRequest struct {
	Email    string
	Username string
	Password string
}

type LoginResult struct {
	User         UserDTO `json:"user"`
	AccessToken  string  `json:"access_token"`
	RefreshToken string  `json:"refresh_token"`
}

type RefreshResult struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

type AuthUsecase struct {
	users     repository.UserRepository
	media     MediaStorage
	issuer    TokenIssuer
	hasher    PasswordHasher
	verifier  PasswordVerifier
	idGen     IDGenerator
	clock     Clock
	validator AuthValidator
}

// DI
func NewAuthUsecase(
	users repository.UserRepository,
	media MediaStorage,
	issuer TokenIssuer,
	hasher PasswordHasher,
	verifier PasswordVerifier,
	idGen IDGenerator,
	clock Clock,
	validator AuthValidator,
) *AuthUsecase {
	return &AuthUsecase{
		users:     users,
		media:     media,
		issuer:    issuer,
		hasher:    hasher,
		verifier:  verifier,
		idGen:     idGen,
		clock:     clock,
		validator: validator,
	}
}

// Register は会員登録を実行する。
// 成功時は作成したユーザーを再取得して、秘密フィールド抜きで返す。
func (u *AuthUsecase) Register(ctx context.Context, req RegisterRequest) (*UserDTO, error) {
	//入力検証（validatorに寄せる）
	if err := u.validator.ValidateRegister(ctx, req.FullName, req.Email, req.Username, req.Password); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.ToLower(strings.TrimSpace(req.Username))

	//username/email重複チェック
	exists, err := u.users.ExistsByEmailOrUsername(ctx, email, username)
	if err != nil {
		return nil, ErrInternal
	}
	if exists {
		return nil, fmt.Errorf("%w: username or email already exists", ErrConflict)
	}

	//アバターは必須
	if req.Avatar == nil {
		return nil, fmt.Errorf("%w: avatar file is required", ErrValidation)
	}

	avatarURL, err := u.media.Upload(ctx, req.Avatar.Body, req.Avatar.Filename, req.Avatar.ContentType)
	if err != nil || avatarURL == "" {
		return nil, fmt.Errorf("%w: avatar upload failed", ErrValidation)
	}

	//カバー画像は任意。送られてきたのに失敗したら中断
	coverURL := ""
	if req.Cover != nil {
		coverURL, err = u.media.Upload(ctx, req.Cover.Body, req.Cover.Filename, req.Cover.ContentType)
		if err != nil {
			return nil, fmt.Errorf("%w: cover image upload failed", ErrValidation)
		}
	}

	//パスワードは必ずハッシュ化して保存（平文保存しない）
	pwHash, err := u.hasher.Hash(req.Password)
	if err != nil {
		return nil, ErrInternal
	}

	user := &model.User{
		ID:            u.idGen.NewID(),
		Username:      username,
		Email:         email,
		FullName:      strings.TrimSpace(req.FullName),
		Password:      pwHash,
		AvatarURL:     avatarURL,
		CoverImageURL: coverURL,
	}

	//保存（unique index違反はErrConflictへ）
	if err := u.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUser) {
			return nil, fmt.Errorf("%w: username or email already exists", ErrConflict)
		}
		return nil, ErrInternal
	}

	//作成した行を再取得してから返す
	created, err := u.users.FindByID(ctx, user.ID)
	if err != nil || created == nil {
		return nil, ErrInternal
	}

	dto := toUserDTO(created)
	return &dto, nil
}

// Login はパスワードを照合してtokenペアを発行する。
// refresh tokenはユーザー行に保存する（1ユーザー1本）。
func (u *AuthUsecase) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	if err := u.validator.ValidateLogin(ctx, req.Email, req.Username, req.Password); err != nil {
		return nil, err
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.ToLower(strings.TrimSpace(req.Username))

	//ユーザー取得
	user, err := u.users.FindByEmailOrUsername(ctx, email, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: user does not exist", ErrNotFound)
		}
		return nil, ErrInternal
	}

	//パスワード照合（bcrypt）
	if ok := u.verifier.Verify(req.Password, user.Password); !ok {
		return nil, fmt.Errorf("%w: invalid credentials", ErrUnauthorized)
	}

	//tokenペア発行
	pair, err := u.issuer.IssuePair(user, u.clock.Now())
	if err != nil {
		return nil, ErrInternal
	}

	//refresh tokenを保存（前の値は上書きで失効）
	rt := pair.RefreshToken
	if err := u.users.UpdateRefreshToken(ctx, user.ID, &rt); err != nil {
		return nil, ErrInternal
	}

	return &LoginResult{
		User:         toUserDTO(user),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Logout は保存済みrefresh tokenをNULLにして失効させる。
// 呼び出し前にmiddlewareがaccess tokenからuserIDを解決していること。
func (u *AuthUsecase) Logout(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrUnauthorized
	}

	if err := u.users.UpdateRefreshToken(ctx, userID, nil); err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return fmt.Errorf("%w: user does not exist", ErrNotFound)
		}
		return ErrInternal
	}

	return nil
}

// Refresh はrefresh tokenを検証してtokenペアを再発行する（rotation）。
// 提示されたtokenはDBに保存されている値と完全一致しなければならない。
func (u *AuthUsecase) Refresh(ctx context.Context, refreshToken string) (*RefreshResult, error) {
	if err := u.validator.ValidateRefresh(ctx, refreshToken); err != nil {
		return nil, err
	}

	//署名と有効期限を検証
	userID, err := u.issuer.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid refresh token", ErrUnauthorized)
	}

	//user取得
	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: user does not exist", ErrNotFound)
		}
		return nil, ErrInternal
	}

	//保存済みtokenとの一致チェック。
	//rotation済みのtokenが来たらreplayなので拒否する
	if user.RefreshToken == nil || *user.RefreshToken != refreshToken {
		return nil, fmt.Errorf("%w: refresh token is expired or used", ErrUnauthorized)
	}

	//新しいペアを発行して保存（旧tokenはこの時点で失効）
	pair, err := u.issuer.IssuePair(user, u.clock.Now())
	if err != nil {
		return nil, ErrInternal
	}

	rt := pair.RefreshToken
	if err := u.users.UpdateRefreshToken(ctx, user.ID, &rt); err != nil {
		return nil, ErrInternal
	}

	return &RefreshResult{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// Me は現在のユーザーを返す。
func (u *AuthUsecase) Me(ctx context.Context, userID string) (*UserDTO, error) {
	if userID == "" {
		return nil, ErrUnauthorized
	}

	user, err := u.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: user does not exist", ErrNotFound)
		}
		return nil, ErrInternal
	}

	dto := toUserDTO(user)
	return &dto, nil
}

// model.UserをAPI返却用DTOに変換。
func toUserDTO(u *model.User) UserDTO {
	return UserDTO{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FullName:      u.FullName,
		AvatarURL:     u.AvatarURL,
		CoverImageURL: u.CoverImageURL,
		CreatedAt:     u.CreatedAt,
	}
}
