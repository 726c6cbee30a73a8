package media

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/storage"
	"github.com/google/uuid"
	"google.golang.org/api/option"
)

// GCSUploader stores attachments in a Cloud Storage bucket and hands out
// Firebase download-token URLs.
type GCSUploader struct {
	client *storage.Client
	bucket string
	now    func() time.Time
}

func NewGCSUploader(ctx context.Context, bucket, credentialsFile string) (*GCSUploader, error) {
	if bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}
	return &GCSUploader{client: client, bucket: bucket, now: time.Now}, nil
}

func (u *GCSUploader) Upload(ctx context.Context, kind Kind, ownerID, payload string) (string, error) {
	data, contentType, err := Decode(kind, payload)
	if err != nil {
		return "", err
	}
	objectPath := ObjectPath(kind, ownerID, contentType, u.now(), uuid.NewString()[:8])
	token := uuid.NewString()

	w := u.client.Bucket(u.bucket).Object(objectPath).NewWriter(ctx)
	w.ContentType = contentType
	w.Metadata = map[string]string{
		"firebaseStorageDownloadTokens": token,
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return PublicURL(u.bucket, objectPath, token), nil
}

func (u *GCSUploader) Close() error {
	return u.client.Close()
}
