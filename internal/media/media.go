// Package media uploads base64 message attachments to object storage and
// returns a retrievable URL.
package media

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
)

var ErrInvalidPayload = errors.New("invalid media payload")

type Uploader interface {
	Upload(ctx context.Context, kind Kind, ownerID, payload string) (string, error)
}

var dataURIPrefix = regexp.MustCompile(`^data:((image|video)/[a-zA-Z0-9.+-]+);base64,`)

var extensions = map[string]string{
	"image/jpeg":      "jpg",
	"image/png":       "png",
	"image/gif":       "gif",
	"image/webp":      "webp",
	"video/mp4":       "mp4",
	"video/webm":      "webm",
	"video/quicktime": "mov",
}

// Decode strips an optional data URI prefix and decodes the base64 body.
// Without a prefix the content type falls back to jpeg for images and mp4 for videos.
func Decode(kind Kind, payload string) ([]byte, string, error) {
	payload = strings.TrimSpace(payload)
	contentType := defaultContentType(kind)
	if m := dataURIPrefix.FindStringSubmatch(payload); m != nil {
		if m[2] != string(kind) {
			return nil, "", fmt.Errorf("%w: %s payload declared as %s", ErrInvalidPayload, kind, m[1])
		}
		contentType = strings.ToLower(m[1])
		payload = payload[len(m[0]):]
	}
	if payload == "" {
		return nil, "", ErrInvalidPayload
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return data, contentType, nil
}

func defaultContentType(kind Kind) string {
	if kind == KindVideo {
		return "video/mp4"
	}
	return "image/jpeg"
}

// ObjectPath names the stored object, e.g. messageImages/message_<owner>_<unixMillis>_<nonce>.jpg.
// nonce keeps uploads within the same millisecond apart.
func ObjectPath(kind Kind, ownerID, contentType string, at time.Time, nonce string) string {
	folder := "messageImages"
	if kind == KindVideo {
		folder = "messageVideos"
	}
	ext, ok := extensions[contentType]
	if !ok {
		ext = extensions[defaultContentType(kind)]
	}
	return fmt.Sprintf("%s/message_%s_%d_%s.%s", folder, ownerID, at.UnixMilli(), nonce, ext)
}

func PublicURL(bucket, objectPath, token string) string {
	return fmt.Sprintf("https://firebasestorage.googleapis.com/v0/b/%s/o/%s?alt=media&token=%s",
		bucket, url.PathEscape(objectPath), token)
}
