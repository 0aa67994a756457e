package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"strings"
	"time"

	"estate-inbox/internal/config"
	"estate-inbox/pkg/logger"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

// MaxUploadBytes is the largest attachment WhatsApp accepts.
const MaxUploadBytes = 16 << 20

const presignTTL = 24 * time.Hour

var (
	ErrEmpty    = errors.New("media: empty upload")
	ErrTooLarge = errors.New("media: upload exceeds 16 MiB")
)

// ObjectStore is the slice of the MinIO client the stager uses.
type ObjectStore interface {
	PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error
	PresignedGetObject(ctx context.Context, bucket, key string, ttl time.Duration) (*url.URL, error)
}

// MinIOStore adapts *minio.Client to ObjectStore.
type MinIOStore struct {
	Client *minio.Client
}

func NewClient(endpoint, accessKey, secretKey string, useSSL bool) (*minio.Client, error) {
	return minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
}

func EnsureBucket(ctx context.Context, client *minio.Client, bucket string) error {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{})
}

func (s MinIOStore) PutObject(ctx context.Context, bucket, key string, r io.Reader, size int64, contentType string) error {
	_, err := s.Client.PutObject(ctx, bucket, key, r, size, minio.PutObjectOptions{ContentType: contentType})
	return err
}

func (s MinIOStore) PresignedGetObject(ctx context.Context, bucket, key string, ttl time.Duration) (*url.URL, error) {
	return s.Client.PresignedGetObject(ctx, bucket, key, ttl, url.Values{})
}

// Object is a staged attachment ready to be sent by URL.
type Object struct {
	Key          string `json:"key"`
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	Type         string `json:"type"`
	MimeType     string `json:"mimeType"`
	Filename     string `json:"filename"`
}

// Stager uploads outgoing attachments and hands back presigned URLs the
// backend can fetch. Images also get a 320x320 JPEG preview.
type Stager struct {
	store  ObjectStore
	bucket string
	now    func() time.Time
	newID  func() string
}

func NewStager(store ObjectStore, bucket string) *Stager {
	return &Stager{store: store, bucket: bucket, now: time.Now, newID: uuid.NewString}
}

// Open connects to MinIO and makes sure the bucket exists.
func Open(ctx context.Context, cfg config.MediaConfig) (*Stager, error) {
	client, err := NewClient(cfg.Endpoint, cfg.AccessKey, cfg.SecretKey, cfg.UseSSL)
	if err != nil {
		return nil, fmt.Errorf("media: client: %w", err)
	}
	if err := EnsureBucket(ctx, client, cfg.Bucket); err != nil {
		return nil, fmt.Errorf("media: bucket %s: %w", cfg.Bucket, err)
	}
	return NewStager(MinIOStore{Client: client}, cfg.Bucket), nil
}

// Stage uploads one attachment of a conversation.
func (s *Stager) Stage(ctx context.Context, conversationID, filename, contentType string, r io.Reader) (Object, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return Object{}, fmt.Errorf("media: read upload: %w", err)
	}
	if len(data) == 0 {
		return Object{}, ErrEmpty
	}
	if len(data) > MaxUploadBytes {
		return Object{}, ErrTooLarge
	}
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := ObjectKey(conversationID, s.newID(), filename, s.now())
	if err := s.store.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return Object{}, fmt.Errorf("media: upload %s: %w", key, err)
	}
	u, err := s.store.PresignedGetObject(ctx, s.bucket, key, presignTTL)
	if err != nil {
		return Object{}, fmt.Errorf("media: presign %s: %w", key, err)
	}
	obj := Object{
		Key:      key,
		URL:      u.String(),
		Type:     KindOf(contentType),
		MimeType: contentType,
		Filename: path.Base(filename),
	}

	if obj.Type == "image" {
		thumbURL, err := s.thumbnail(ctx, key, data)
		if err != nil {
			logger.From(ctx).Warn("media thumbnail failed", "key", key, "err", err)
		} else {
			obj.ThumbnailURL = thumbURL
		}
	}
	return obj, nil
}

func (s *Stager) thumbnail(ctx context.Context, key string, data []byte) (string, error) {
	thumb, err := Thumbnail(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	thumbKey := ThumbnailKey(key)
	if err := s.store.PutObject(ctx, s.bucket, thumbKey, bytes.NewReader(thumb), int64(len(thumb)), "image/jpeg"); err != nil {
		return "", fmt.Errorf("upload thumb: %w", err)
	}
	u, err := s.store.PresignedGetObject(ctx, s.bucket, thumbKey, presignTTL)
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

// Thumbnail renders a 320x320 JPEG preview of an image.
func Thumbnail(r io.Reader) ([]byte, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Thumbnail(img, 320, 320, imaging.Lanczos)
	buf := bytes.NewBuffer(nil)
	if err := imaging.Encode(buf, thumb, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ObjectKey is "conversations/<id>/<yyyy>/<mm>/<uuid><ext>".
func ObjectKey(conversationID, id, filename string, at time.Time) string {
	conv := strings.Trim(strings.TrimSpace(conversationID), "/")
	if conv == "" {
		conv = "unassigned"
	}
	conv = strings.ReplaceAll(conv, "/", "_")
	ext := strings.ToLower(path.Ext(strings.TrimSpace(filename)))
	return fmt.Sprintf("conversations/%s/%s/%s%s", conv, at.UTC().Format("2006/01"), id, ext)
}

// ThumbnailKey derives the preview key: "a/b.png" -> "a/b_thumb.jpg".
func ThumbnailKey(key string) string {
	return strings.TrimSuffix(key, path.Ext(key)) + "_thumb.jpg"
}

// KindOf maps a MIME type to a WhatsApp media type.
func KindOf(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "image/"):
		return "image"
	case strings.HasPrefix(ct, "video/"):
		return "video"
	case strings.HasPrefix(ct, "audio/"):
		return "audio"
	default:
		return "document"
	}
}
