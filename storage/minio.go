package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"weradio/config"
	"weradio/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MinioStorage keeps the track library in a MinIO bucket. Cache and HLS
// folders stay on the local node (the encoder works on local files), so only
// the library folder is served from the object store.
type MinioStorage struct {
	client *minio.Client
	bucket string
	local  *LocalStorage // cache + hls fall through to the local filesystem
}

// NewMinioStorage initializes the MinIO client and ensures the library
// bucket exists.
func NewMinioStorage(cfg *config.Config) (*MinioStorage, error) {
	logger.Info("正在连接 MinIO 服务器...",
		logger.String("endpoint", cfg.MinioEndpoint),
		logger.String("bucket", cfg.MinioBucket))

	client, err := minio.New(cfg.MinioEndpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.MinioAccessKey, cfg.MinioSecretKey, ""),
		Secure: cfg.MinioUseSSL,
		Region: cfg.MinioRegion,
	})
	if err != nil {
		return nil, fmt.Errorf("创建 MinIO 客户端失败: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.MinioBucket)
	if err != nil {
		return nil, fmt.Errorf("检查存储桶失败: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.MinioBucket, minio.MakeBucketOptions{Region: cfg.MinioRegion}); err != nil {
			return nil, fmt.Errorf("创建存储桶失败: %w", err)
		}
		logger.Info("成功创建存储桶", logger.String("bucket", cfg.MinioBucket))
	}

	return &MinioStorage{
		client: client,
		bucket: cfg.MinioBucket,
		local:  NewLocalStorage(cfg),
	}, nil
}

func (s *MinioStorage) opCtx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// List enumerates library objects; other folders delegate to local storage.
func (s *MinioStorage) List(folder Folder, extensions map[string]bool) ([]string, error) {
	if folder != FolderLibrary {
		return s.local.List(folder, extensions)
	}

	ctx, cancel := s.opCtx()
	defer cancel()

	var files []string
	for obj := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("列出对象失败: %w", obj.Err)
		}
		if extensions != nil {
			ok := false
			for ext := range extensions {
				if strings.HasSuffix(strings.ToLower(obj.Key), ext) {
					ok = true
					break
				}
			}
			if !ok {
				continue
			}
		}
		files = append(files, obj.Key)
	}
	return files, nil
}

func (s *MinioStorage) Read(folder Folder, rel string) ([]byte, error) {
	if folder != FolderLibrary {
		return s.local.Read(folder, rel)
	}

	ctx, cancel := s.opCtx()
	defer cancel()

	object, err := s.client.GetObject(ctx, s.bucket, rel, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("读取对象失败 %s: %w", rel, err)
	}
	defer object.Close()

	return io.ReadAll(object)
}

func (s *MinioStorage) Write(folder Folder, rel string, data []byte, contentType string) error {
	if folder != FolderLibrary {
		return s.local.Write(folder, rel, data, contentType)
	}

	ctx, cancel := s.opCtx()
	defer cancel()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	_, err := s.client.PutObject(ctx, s.bucket, rel, bytes.NewReader(data), int64(len(data)),
		minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		return fmt.Errorf("上传对象失败 %s: %w", rel, err)
	}
	return nil
}

func (s *MinioStorage) Delete(folder Folder, rel string) error {
	if folder != FolderLibrary {
		return s.local.Delete(folder, rel)
	}

	ctx, cancel := s.opCtx()
	defer cancel()

	if err := s.client.RemoveObject(ctx, s.bucket, rel, minio.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("删除对象失败 %s: %w", rel, err)
	}
	return nil
}

func (s *MinioStorage) Exists(folder Folder, rel string) (bool, error) {
	if folder != FolderLibrary {
		return s.local.Exists(folder, rel)
	}

	ctx, cancel := s.opCtx()
	defer cancel()

	_, err := s.client.StatObject(ctx, s.bucket, rel, minio.StatObjectOptions{})
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return false, nil
		}
		return false, fmt.Errorf("查询对象失败 %s: %w", rel, err)
	}
	return true, nil
}

// LocalPath only resolves the locally-backed folders; library objects have
// no filesystem path in object-storage mode.
func (s *MinioStorage) LocalPath(folder Folder, rel string) (string, bool) {
	if folder == FolderLibrary {
		return "", false
	}
	return s.local.LocalPath(folder, rel)
}
