package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"app/internal/config"
	"app/internal/domain/model"
	"app/internal/handler"
	"app/internal/infra/db"
	infraRepo "app/internal/infra/repository"
	"app/internal/infra/storage"
	"app/internal/server"
	"app/internal/token"
	"app/internal/usecase"
	"app/internal/validator"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

type uuidGenerator struct{}

func (g *uuidGenerator) NewID() string {
	return uuid.NewString()
}

type realClock struct{}

func (c *realClock) Now() time.Time {
	return time.Now()
}

func main() {
	//.envは無くても起動できる（本番は環境変数だけ）
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(fmt.Errorf("error loading config: %w", err))
	}

	l, err := newLogger(cfg.GoEnv)
	if err != nil {
		log.Fatal(fmt.Errorf("error initializing logger: %w", err))
	}

	//DB接続
	gormDB, err := db.Connect()
	if err != nil {
		l.Fatal("error initializing DB connection", zap.Error(err))
	}
	if err := gormDB.AutoMigrate(&model.User{}); err != nil {
		l.Fatal("error migrating schema", zap.Error(err))
	}

	//メディアストレージ（S3互換）
	media, err := storage.New(context.Background(), cfg)
	if err != nil {
		l.Fatal("error initializing media storage", zap.Error(err))
	}

	//Repository（GORM実装）生成
	userRepo := infraRepo.NewUserRepository(gormDB)

	//usecaseに渡す部品
	idGen := &uuidGenerator{}
	clock := &realClock{}
	hasher := usecase.NewBcryptPasswordHasher(12)
	verifier := usecase.NewBcryptPasswordVerifier()
	issuer := token.NewIssuer(
		cfg.AccessTokenSecret,
		cfg.RefreshTokenSecret,
		cfg.AccessTokenTTL,
		cfg.RefreshTokenTTL,
	)
	authValidator := validator.NewAuthValidator()

	//Usecase生成
	authUC := usecase.NewAuthUsecase(userRepo, media, issuer, hasher, verifier, idGen, clock, authValidator)

	//Handler生成
	authH := handler.NewAuthHandler(authUC, l, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, cfg.CookieSecure)

	//Server起動
	e := server.New(l, authH, issuer)

	addr := cfg.Port
	if addr[0] != ':' {
		addr = ":" + addr
	}

	if err := e.Start(addr); err != nil {
		l.Fatal("shutting down the server", zap.Error(err))
	}
}

func newLogger(goEnv string) (*zap.Logger, error) {
	if goEnv == "prod" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
