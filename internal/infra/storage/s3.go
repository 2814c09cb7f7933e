package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	appcfg "app/internal/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// S3互換ストレージ（MinIOなど）にアバター等の画像を保存して公開URLを返す。
type S3MediaStorage struct {
	client        *s3.Client
	bucket        string
	publicBaseURL string
	endpoint      string
}

// New はS3クライアントを組み立てる。
func New(ctx context.Context, cfg appcfg.Config) (*S3MediaStorage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.S3Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.S3AccessKey,
			cfg.S3SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3Endpoint)
			// MinIOはpath-styleのみ
			o.UsePathStyle = true
		}
	})

	return &S3MediaStorage{
		client:        client,
		bucket:        cfg.S3Bucket,
		publicBaseURL: strings.TrimRight(cfg.S3PublicBaseURL, "/"),
		endpoint:      strings.TrimRight(cfg.S3Endpoint, "/"),
	}, nil
}

// Upload は画像をバケットに保存して公開URLを返す。
func (s *S3MediaStorage) Upload(ctx context.Context, body io.Reader, filename string, contentType string) (string, error) {
	key := randomStorageKey(filename)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         &key,
		Body:        body,
		ContentType: &contentType,
	})
	if err != nil {
		return "", err
	}

	return s.publicURL(key), nil
}

// 日付ディレクトリ + uuid でキー衝突を避ける
func randomStorageKey(filename string) string {
	d := time.Now()
	ext := ""
	if i := strings.LastIndex(filename, "."); i >= 0 {
		ext = filename[i:]
	}
	return fmt.Sprintf("media/%d/%02d/%02d/%s%s", d.Year(), d.Month(), d.Day(), uuid.NewString(), ext)
}

func (s *S3MediaStorage) publicURL(key string) string {
	if s.publicBaseURL != "" {
		return s.publicBaseURL + "/" + key
	}
	return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
}
