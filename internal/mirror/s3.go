// s3.go — объектное хранилище зеркала на minio-go.
package mirror

import (
	"context"
	"fmt"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// S3Config — параметры подключения к S3-совместимому хранилищу.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
	UseSSL    bool
}

// S3Store — ObjectStore поверх minio.Client.
type S3Store struct {
	api    *minio.Client
	bucket string
	region string
}

var _ ObjectStore = (*S3Store)(nil)

// NewS3Store создаёт клиент. Сетевых запросов не выполняет.
func NewS3Store(cfg S3Config) (*S3Store, error) {
	api, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("создание S3 клиента: %w", err)
	}
	return &S3Store{api: api, bucket: cfg.Bucket, region: cfg.Region}, nil
}

// EnsureBucket создаёт бакет, если его нет.
func (s *S3Store) EnsureBucket(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("проверка бакета %s: %w", s.bucket, err)
	}
	if exists {
		return nil
	}
	if err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
		return fmt.Errorf("создание бакета %s: %w", s.bucket, err)
	}
	return nil
}

// Upload копирует локальный файл в объект key.
func (s *S3Store) Upload(ctx context.Context, key, localPath, contentType string) error {
	_, err := s.api.FPutObject(ctx, s.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return fmt.Errorf("загрузка %s: %w", key, err)
	}
	return nil
}

// RemovePrefix удаляет все объекты с префиксом (пустой — весь бакет).
func (s *S3Store) RemovePrefix(ctx context.Context, prefix string) error {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}

	objects := s.api.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	// Ошибки листинга пробрасываются через отдельный канал:
	// RemoveObjects читает только объекты без ошибок
	listErr := make(chan error, 1)
	toRemove := make(chan minio.ObjectInfo)
	go func() {
		defer close(toRemove)
		defer close(listErr)
		for obj := range objects {
			if obj.Err != nil {
				listErr <- obj.Err
				// дочитываем канал, чтобы горутина листинга завершилась
				for range objects {
				}
				return
			}
			select {
			case toRemove <- obj:
			case <-ctx.Done():
				return
			}
		}
	}()

	var firstErr error
	for rmErr := range s.api.RemoveObjects(ctx, s.bucket, toRemove, minio.RemoveObjectsOptions{}) {
		if firstErr == nil {
			firstErr = fmt.Errorf("удаление %s: %w", rmErr.ObjectName, rmErr.Err)
		}
	}
	if err := <-listErr; err != nil && firstErr == nil {
		firstErr = fmt.Errorf("листинг %s: %w", prefix, err)
	}
	return firstErr
}
