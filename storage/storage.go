package storage

import (
	"context"
	"errors"
	"fmt"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/rs/zerolog"
	"io"
	"path"
	"path/filepath"
	"strings"
)

var ErrInvalidPath = errors.New("invalid object path")

// BlobStore stores a blob under a destination path.
type BlobStore interface {
	Put(ctx context.Context, objectPath string, body io.Reader, size int64, contentType string) error
}

type Minio struct {
	client *minio.Client
	bucket string
}

func NewMinio(client *minio.Client, bucket string) *Minio {
	return &Minio{client: client, bucket: bucket}
}

// EnsureBucket creates the bucket when it does not exist yet.
func (m *Minio) EnsureBucket(ctx context.Context) error {
	exists, err := m.client.BucketExists(ctx, m.bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	zerolog.Ctx(ctx).Info().Str("bucket", m.bucket).Msg("creating bucket")
	return m.client.MakeBucket(ctx, m.bucket, minio.MakeBucketOptions{})
}

func (m *Minio) Put(ctx context.Context, objectPath string, body io.Reader, size int64, contentType string) error {
	if err := ValidatePath(objectPath); err != nil {
		return err
	}
	if contentType == "" {
		contentType = ContentType(objectPath)
	}
	info, err := m.client.PutObject(ctx, m.bucket, objectPath, body, size, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("object", objectPath).Msg("failed to upload object")
		return fmt.Errorf("upload %s: %w", objectPath, err)
	}
	zerolog.Ctx(ctx).Debug().Str("object", objectPath).Int64("size", info.Size).Msg("object uploaded")
	return nil
}

// ObjectPath builds a unique destination for a video of a topic.
func ObjectPath(topicID int64, fileName string) string {
	ext := strings.ToLower(filepath.Ext(fileName))
	return fmt.Sprintf("topics/%d/%s%s", topicID, uuid.NewString(), ext)
}

func ValidatePath(objectPath string) error {
	clean := path.Clean(objectPath)
	if objectPath == "" || clean != objectPath || strings.HasPrefix(clean, "/") || strings.HasPrefix(clean, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidPath, objectPath)
	}
	if !strings.HasPrefix(clean, "topics/") {
		return fmt.Errorf("%w: %q is outside topics/", ErrInvalidPath, objectPath)
	}
	return nil
}

func ContentType(fileName string) string {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".mp4", ".m4v":
		return "video/mp4"
	case ".webm":
		return "video/webm"
	case ".mov":
		return "video/quicktime"
	case ".avi":
		return "video/x-msvideo"
	case ".mkv":
		return "video/x-matroska"
	default:
		return "application/octet-stream"
	}
}
