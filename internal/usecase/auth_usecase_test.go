package usecase_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"app/internal/domain/model"
	"app/internal/repository"
	"app/internal/token"
	"app/internal/usecase"
	"app/internal/validator"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// =====================
// Mock: UserRepository
// =====================

type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, user *model.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, userID string) (*model.User, error) {
	args := m.Called(ctx, userID)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepository) FindByEmailOrUsername(ctx context.Context, email string, username string) (*model.User, error) {
	args := m.Called(ctx, email, username)
	u, _ := args.Get(0).(*model.User)
	return u, args.Error(1)
}

func (m *MockUserRepository) ExistsByEmailOrUsername(ctx context.Context, email string, username string) (bool, error) {
	args := m.Called(ctx, email, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) UpdateRefreshToken(ctx context.Context, userID string, refreshToken *string) error {
	args := m.Called(ctx, userID, refreshToken)
	return args.Error(0)
}

// =====================
// Mock: MediaStorage
// =====================

type MockMediaStorage struct {
	mock.Mock
}

func (m *MockMediaStorage) Upload(ctx context.Context, body io.Reader, filename string, contentType string) (string, error) {
	args := m.Called(ctx, body, filename, contentType)
	return args.String(0), args.Error(1)
}

// =====================
// Helper
// =====================

const fixedUserID = "11111111-1111-1111-1111-111111111111"

type fixedIDGen struct{}

func (g *fixedIDGen) NewID() string { return fixedUserID }

type realClock struct{}

func (c *realClock) Now() time.Time { return time.Now() }

func newTestIssuer() *token.Issuer {
	return token.NewIssuer("access-secret", "refresh-secret", 15*time.Minute, 14*24*time.Hour)
}

func newAuthUC(userRepo *MockUserRepository, media *MockMediaStorage) (*usecase.AuthUsecase, *token.Issuer) {
	issuer := newTestIssuer()
	uc := usecase.NewAuthUsecase(
		userRepo,
		media,
		issuer,
		usecase.NewBcryptPasswordHasher(4), // テストは低コストで十分
		usecase.NewBcryptPasswordVerifier(),
		&fixedIDGen{},
		&realClock{},
		validator.NewAuthValidator(),
	)
	return uc, issuer
}

func avatarUpload() *usecase.FileUpload {
	return &usecase.FileUpload{
		Body:        strings.NewReader("fake-png-bytes"),
		Filename:    "avatar.png",
		ContentType: "image/png",
	}
}

func validRegisterRequest() usecase.RegisterRequest {
	return usecase.RegisterRequest{
		FullName: "Ada Lovelace",
		Email:    "ada@x.com",
		Username: "ada",
		Password: "s3cretpw",
		Avatar:   avatarUpload(),
	}
}

func storedUser(t *testing.T, password string) *model.User {
	t.Helper()
	hashed, err := usecase.NewBcryptPasswordHasher(4).Hash(password)
	if err != nil {
		t.Fatalf("bcrypt failed: %v", err)
	}
	return &model.User{
		ID:        fixedUserID,
		Username:  "ada",
		Email:     "ada@x.com",
		FullName:  "Ada Lovelace",
		Password:  hashed,
		AvatarURL: "https://cdn.example.com/media/avatar.png",
	}
}

// =====================
// Register
// =====================

func TestAuthUsecase_Register_Success(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	userRepo.On("ExistsByEmailOrUsername", mock.Anything, "ada@x.com", "ada").Return(false, nil)

	media.On("Upload", mock.Anything, mock.Anything, "avatar.png", "image/png").
		Return("https://cdn.example.com/media/avatar.png", nil)

	userRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *model.User) bool {
		// 保存されるユーザーが最低限正しい形かを見る
		return u.ID == fixedUserID &&
			u.Username == "ada" &&
			u.Email == "ada@x.com" &&
			u.Password != "" && u.Password != "s3cretpw" &&
			u.AvatarURL != ""
	})).Return(nil)

	userRepo.On("FindByID", mock.Anything, fixedUserID).Return(storedUser(t, "s3cretpw"), nil)

	uc, _ := newAuthUC(userRepo, media)

	out, err := uc.Register(ctx, validRegisterRequest())
	assert.NoError(t, err)
	assert.NotNil(t, out)
	assert.Equal(t, "ada", out.Username)
	assert.Equal(t, "ada@x.com", out.Email)
	assert.NotEmpty(t, out.AvatarURL)

	//レスポンスにpassword/refresh tokenが絶対に出ないこと
	b, err := json.Marshal(out)
	assert.NoError(t, err)
	assert.NotContains(t, string(b), "password")
	assert.NotContains(t, string(b), "refresh")

	userRepo.AssertExpectations(t)
	media.AssertExpectations(t)
}

// 短いパスワードでも登録できる。必須チェックは空かどうかだけ
func TestAuthUsecase_Register_ShortPassword(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	userRepo.On("ExistsByEmailOrUsername", mock.Anything, "ada@x.com", "ada").Return(false, nil)
	media.On("Upload", mock.Anything, mock.Anything, "avatar.png", "image/png").
		Return("https://cdn.example.com/media/avatar.png", nil)
	userRepo.On("Create", mock.Anything, mock.Anything).Return(nil)
	userRepo.On("FindByID", mock.Anything, fixedUserID).Return(storedUser(t, "s3cret"), nil)

	uc, _ := newAuthUC(userRepo, media)

	req := validRegisterRequest()
	req.Password = "s3cret"

	out, err := uc.Register(ctx, req)
	assert.NoError(t, err)
	assert.NotNil(t, out)
	assert.Equal(t, "ada", out.Username)

	userRepo.AssertExpectations(t)
}

// 必須フィールドが1つでも空なら400。フィールドごとに独立して確認する
func TestAuthUsecase_Register_MissingField(t *testing.T) {
	ctx := context.Background()

	mutate := map[string]func(*usecase.RegisterRequest){
		"fullname": func(r *usecase.RegisterRequest) { r.FullName = "" },
		"email":    func(r *usecase.RegisterRequest) { r.Email = "" },
		"username": func(r *usecase.RegisterRequest) { r.Username = "" },
		"password": func(r *usecase.RegisterRequest) { r.Password = "" },
	}

	for name, mut := range mutate {
		t.Run(name, func(t *testing.T) {
			userRepo := new(MockUserRepository)
			media := new(MockMediaStorage)
			uc, _ := newAuthUC(userRepo, media)

			req := validRegisterRequest()
			mut(&req)

			out, err := uc.Register(ctx, req)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, usecase.ErrValidation)

			// validatorで落ちるので repo は呼ばれない
			userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
			media.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestAuthUsecase_Register_DuplicateUser(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	userRepo.On("ExistsByEmailOrUsername", mock.Anything, "ada@x.com", "ada").Return(true, nil)

	uc, _ := newAuthUC(userRepo, media)

	out, err := uc.Register(ctx, validRegisterRequest())
	assert.Nil(t, out)
	assert.ErrorIs(t, err, usecase.ErrConflict)

	media.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// 同時登録の競合はDBのunique indexで落ちてくる
func TestAuthUsecase_Register_DuplicateOnCreate(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	userRepo.On("ExistsByEmailOrUsername", mock.Anything, "ada@x.com", "ada").Return(false, nil)
	media.On("Upload", mock.Anything, mock.Anything, "avatar.png", "image/png").
		Return("https://cdn.example.com/media/avatar.png", nil)
	userRepo.On("Create", mock.Anything, mock.Anything).Return(repository.ErrDuplicateUser)

	uc, _ := newAuthUC(userRepo, media)

	out, err := uc.Register(ctx, validRegisterRequest())
	assert.Nil(t, out)
	assert.ErrorIs(t, err, usecase.ErrConflict)
}

func TestAuthUsecase_Register_MissingAvatar(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	userRepo.On("ExistsByEmailOrUsername", mock.Anything, "ada@x.com", "ada").Return(false, nil)

	uc, _ := newAuthUC(userRepo, media)

	req := validRegisterRequest()
	req.Avatar = nil

	out, err := uc.Register(ctx, req)
	assert.Nil(t, out)
	assert.ErrorIs(t, err, usecase.ErrValidation)

	media.AssertNotCalled(t, "Upload", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestAuthUsecase_Register_AvatarUploadFails(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	userRepo.On("ExistsByEmailOrUsername", mock.Anything, "ada@x.com", "ada").Return(false, nil)
	media.On("Upload", mock.Anything, mock.Anything, "avatar.png", "image/png").
		Return("", errors.New("upstream down"))

	uc, _ := newAuthUC(userRepo, media)

	out, err := uc.Register(ctx, validRegisterRequest())
	assert.Nil(t, out)
	assert.ErrorIs(t, err, usecase.ErrValidation)

	userRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

// =====================
// Login
// =====================

func TestAuthUsecase_Login_Success(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	userRepo.On("FindByEmailOrUsername", mock.Anything, "ada@x.com", "").
		Return(storedUser(t, "s3cretpw"), nil)

	// サーバー側に保存されるrefresh tokenを捕まえる
	var stored *string
	userRepo.On("UpdateRefreshToken", mock.Anything, fixedUserID, mock.Anything).
		Run(func(args mock.Arguments) {
			stored, _ = args.Get(2).(*string)
		}).
		Return(nil)

	uc, _ := newAuthUC(userRepo, media)

	res, err := uc.Login(ctx, usecase.LoginRequest{Email: "ada@x.com", Password: "s3cretpw"})
	assert.NoError(t, err)
	assert.NotNil(t, res)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, "ada", res.User.Username)

	//保存された値 == クライアントに渡した値
	if assert.NotNil(t, stored) {
		assert.Equal(t, res.RefreshToken, *stored)
	}

	userRepo.AssertExpectations(t)
}

func TestAuthUsecase_Login_WrongPassword(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	userRepo.On("FindByEmailOrUsername", mock.Anything, "ada@x.com", "").
		Return(storedUser(t, "s3cretpw"), nil)

	uc, _ := newAuthUC(userRepo, media)

	res, err := uc.Login(ctx, usecase.LoginRequest{Email: "ada@x.com", Password: "WrongPW99"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)

	// refresh token は保存されない
	userRepo.AssertNotCalled(t, "UpdateRefreshToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthUsecase_Login_UserNotFound(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	userRepo.On("FindByEmailOrUsername", mock.Anything, "ghost@x.com", "").
		Return(nil, repository.ErrUserNotFound)

	uc, _ := newAuthUC(userRepo, media)

	res, err := uc.Login(ctx, usecase.LoginRequest{Email: "ghost@x.com", Password: "whatever1"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestAuthUsecase_Login_NoIdentifier(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	uc, _ := newAuthUC(userRepo, media)

	res, err := uc.Login(ctx, usecase.LoginRequest{Password: "whatever1"})
	assert.Nil(t, res)
	assert.ErrorIs(t, err, usecase.ErrValidation)

	userRepo.AssertNotCalled(t, "FindByEmailOrUsername", mock.Anything, mock.Anything, mock.Anything)
}

// usernameだけでもログインできる
func TestAuthUsecase_Login_ByUsername(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	userRepo.On("FindByEmailOrUsername", mock.Anything, "", "ada").
		Return(storedUser(t, "s3cretpw"), nil)
	userRepo.On("UpdateRefreshToken", mock.Anything, fixedUserID, mock.Anything).Return(nil)

	uc, _ := newAuthUC(userRepo, media)

	res, err := uc.Login(ctx, usecase.LoginRequest{Username: "ada", Password: "s3cretpw"})
	assert.NoError(t, err)
	assert.NotNil(t, res)
}

// =====================
// Refresh
// =====================

func TestAuthUsecase_Refresh_Success_Rotates(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	uc, issuer := newAuthUC(userRepo, media)

	user := storedUser(t, "s3cretpw")

	//1分前に発行された有効なtokenが保存されている状態を作る
	oldPair, err := issuer.IssuePair(user, time.Now().Add(-time.Minute))
	assert.NoError(t, err)
	oldRefresh := oldPair.RefreshToken
	user.RefreshToken = &oldRefresh

	userRepo.On("FindByID", mock.Anything, fixedUserID).Return(user, nil)

	var stored *string
	userRepo.On("UpdateRefreshToken", mock.Anything, fixedUserID, mock.Anything).
		Run(func(args mock.Arguments) {
			stored, _ = args.Get(2).(*string)
		}).
		Return(nil)

	res, err := uc.Refresh(ctx, oldRefresh)
	assert.NoError(t, err)
	assert.NotNil(t, res)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)

	//rotation：新しいtokenが保存され、旧tokenとは別物
	if assert.NotNil(t, stored) {
		assert.Equal(t, res.RefreshToken, *stored)
		assert.NotEqual(t, oldRefresh, *stored)
	}

	userRepo.AssertExpectations(t)
}

// rotation済みの旧tokenを再提示するとreplayとして拒否
func TestAuthUsecase_Refresh_StaleTokenRejected(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	uc, issuer := newAuthUC(userRepo, media)

	user := storedUser(t, "s3cretpw")

	oldPair, err := issuer.IssuePair(user, time.Now().Add(-2*time.Minute))
	assert.NoError(t, err)

	//サーバー側は既に新しいtokenを持っている
	newPair, err := issuer.IssuePair(user, time.Now().Add(-time.Minute))
	assert.NoError(t, err)
	newRefresh := newPair.RefreshToken
	user.RefreshToken = &newRefresh

	userRepo.On("FindByID", mock.Anything, fixedUserID).Return(user, nil)

	res, err := uc.Refresh(ctx, oldPair.RefreshToken)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)

	userRepo.AssertNotCalled(t, "UpdateRefreshToken", mock.Anything, mock.Anything, mock.Anything)
}

func TestAuthUsecase_Refresh_MissingToken(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	uc, _ := newAuthUC(userRepo, media)

	res, err := uc.Refresh(ctx, "")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)

	userRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestAuthUsecase_Refresh_InvalidSignature(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	uc, _ := newAuthUC(userRepo, media)

	//別のシークレットで署名されたtoken
	other := token.NewIssuer("x-access", "x-refresh", time.Minute, time.Hour)
	pair, err := other.IssuePair(storedUser(t, "s3cretpw"), time.Now())
	assert.NoError(t, err)

	res, err := uc.Refresh(ctx, pair.RefreshToken)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)
}

func TestAuthUsecase_Refresh_UserGone(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	uc, issuer := newAuthUC(userRepo, media)

	pair, err := issuer.IssuePair(storedUser(t, "s3cretpw"), time.Now())
	assert.NoError(t, err)

	userRepo.On("FindByID", mock.Anything, fixedUserID).Return(nil, repository.ErrUserNotFound)

	res, err := uc.Refresh(ctx, pair.RefreshToken)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

// ログアウト後（保存済みtokenがNULL）は署名が正しくても拒否
func TestAuthUsecase_Refresh_AfterLogout(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	uc, issuer := newAuthUC(userRepo, media)

	user := storedUser(t, "s3cretpw")
	user.RefreshToken = nil

	pair, err := issuer.IssuePair(user, time.Now().Add(-time.Minute))
	assert.NoError(t, err)

	userRepo.On("FindByID", mock.Anything, fixedUserID).Return(user, nil)

	res, err := uc.Refresh(ctx, pair.RefreshToken)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)
}

// =====================
// Logout
// =====================

func TestAuthUsecase_Logout_ClearsStoredToken(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	var stored *string = new(string)
	userRepo.On("UpdateRefreshToken", mock.Anything, fixedUserID, mock.Anything).
		Run(func(args mock.Arguments) {
			stored, _ = args.Get(2).(*string)
		}).
		Return(nil)

	uc, _ := newAuthUC(userRepo, media)

	err := uc.Logout(ctx, fixedUserID)
	assert.NoError(t, err)

	//NULLで上書きされている
	assert.Nil(t, stored)

	userRepo.AssertExpectations(t)
}

func TestAuthUsecase_Logout_Unauthenticated(t *testing.T) {
	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	uc, _ := newAuthUC(userRepo, media)

	err := uc.Logout(context.Background(), "")
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)

	userRepo.AssertNotCalled(t, "UpdateRefreshToken", mock.Anything, mock.Anything, mock.Anything)
}

// =====================
// Me
// =====================

func TestAuthUsecase_Me(t *testing.T) {
	ctx := context.Background()

	userRepo := new(MockUserRepository)
	media := new(MockMediaStorage)

	userRepo.On("FindByID", mock.Anything, fixedUserID).Return(storedUser(t, "s3cretpw"), nil)

	uc, _ := newAuthUC(userRepo, media)

	out, err := uc.Me(ctx, fixedUserID)
	assert.NoError(t, err)
	assert.Equal(t, "ada", out.Username)

	_, err = uc.Me(ctx, "")
	assert.ErrorIs(t, err, usecase.ErrUnauthorized)
}
