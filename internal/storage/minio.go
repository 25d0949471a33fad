package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"interview-coach/internal/config"
	"interview-coach/internal/logger"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
)

// ErrDocumentNotFound 文档位置指向的对象不存在
var ErrDocumentNotFound = errors.New("简历文档不存在")

// maxDocumentSize 单份简历文档的读取上限
const maxDocumentSize = 20 << 20

// MinIO 简历文档的只读访问
type MinIO struct {
	client        *minio.Client
	defaultBucket string
	logger        zerolog.Logger
}

// NewMinIO 创建 MinIO 客户端并确认默认存储桶存在
func NewMinIO(ctx context.Context, cfg *config.MinIOConfig) (*MinIO, error) {
	if cfg == nil {
		return nil, fmt.Errorf("MinIO配置不能为空")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Location,
	})
	if err != nil {
		return nil, fmt.Errorf("创建MinIO客户端失败: %w", err)
	}

	m := &MinIO{
		client:        client,
		defaultBucket: cfg.BucketName,
		logger:        logger.WithComponent("minio"),
	}
	if m.defaultBucket != "" {
		exists, err := client.BucketExists(ctx, m.defaultBucket)
		if err != nil {
			return nil, fmt.Errorf("检查存储桶 %s 是否存在时出错: %w", m.defaultBucket, err)
		}
		if !exists {
			// 简历由上传服务写入，这里只告警不创建
			m.logger.Warn().Str("bucket", m.defaultBucket).Msg("默认存储桶不存在")
		}
	}
	return m, nil
}

// splitLocation 解析 "bucket/key"；不含斜杠时使用默认存储桶
func splitLocation(location, defaultBucket string) (bucket, key string, err error) {
	location = strings.TrimPrefix(strings.TrimSpace(location), "/")
	if location == "" {
		return "", "", fmt.Errorf("文档位置不能为空")
	}
	parts := strings.SplitN(location, "/", 2)
	if len(parts) == 2 && parts[0] != "" && parts[1] != "" {
		return parts[0], parts[1], nil
	}
	if defaultBucket == "" {
		return "", "", fmt.Errorf("文档位置 %q 缺少存储桶", location)
	}
	return defaultBucket, location, nil
}

// FetchDocument 按 "bucket/key" 下载文档
func (m *MinIO) FetchDocument(ctx context.Context, location string) ([]byte, error) {
	bucket, key, err := splitLocation(location, m.defaultBucket)
	if err != nil {
		return nil, err
	}

	obj, err := m.client.GetObject(ctx, bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("获取对象 %s/%s 失败: %w", bucket, key, err)
	}
	defer obj.Close()

	stat, err := obj.Stat()
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, fmt.Errorf("%w: %s/%s", ErrDocumentNotFound, bucket, key)
		}
		return nil, fmt.Errorf("获取对象 %s/%s 状态失败: %w", bucket, key, err)
	}
	if stat.Size > maxDocumentSize {
		return nil, fmt.Errorf("对象 %s/%s 过大: %d 字节", bucket, key, stat.Size)
	}

	data, err := io.ReadAll(io.LimitReader(obj, maxDocumentSize))
	if err != nil {
		return nil, fmt.Errorf("读取对象 %s/%s 数据失败: %w", bucket, key, err)
	}
	m.logger.Debug().Str("bucket", bucket).Str("key", key).Int("bytes", len(data)).Msg("简历文档下载完成")
	return data, nil
}

// Ping 健康检查
func (m *MinIO) Ping(ctx context.Context) error {
	if m.defaultBucket == "" {
		_, err := m.client.ListBuckets(ctx)
		return err
	}
	_, err := m.client.BucketExists(ctx, m.defaultBucket)
	return err
}
