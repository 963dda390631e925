// Package photos uploads applicant photos to the backend storage API.
package photos

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	apphttp "weekly-intake/internal/common/http"
	"weekly-intake/internal/week"

	"github.com/google/uuid"
)

// Photo is an uploaded image as received from the form.
type Photo struct {
	Data        []byte
	FileName    string
	ContentType string
}

func (p *Photo) Size() int64 {
	if p == nil {
		return 0
	}
	return int64(len(p.Data))
}

type Config struct {
	BaseURL      string
	APIKey       string
	Bucket       string
	CacheControl string
}

type Uploader struct {
	client *apphttp.Client
	cfg    Config
	random func() string
}

func NewUploader(client *apphttp.Client, cfg Config) *Uploader {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.CacheControl == "" {
		cfg.CacheControl = "3600"
	}
	return &Uploader{
		client: client,
		cfg:    cfg,
		random: randomToken,
	}
}

func randomToken() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:12]
}

// ObjectPath namespaces the object by week bucket. The millisecond timestamp
// and random token keep concurrent uploads from colliding.
func ObjectPath(b week.Bucket, now time.Time, token, ext string) string {
	return fmt.Sprintf("%d/week-%d/%d_%s.%s", b.Year, b.Week, now.UnixMilli(), token, ext)
}

// Extension picks the object extension from the file name, falling back to
// the content type.
func Extension(fileName, contentType string) string {
	if ext := strings.TrimPrefix(strings.ToLower(path.Ext(fileName)), "."); ext != "" {
		return ext
	}
	switch strings.ToLower(contentType) {
	case "image/jpeg", "image/jpg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/gif":
		return "gif"
	default:
		return "bin"
	}
}

// Upload stores p without overwriting and returns its public URL.
func (u *Uploader) Upload(ctx context.Context, b week.Bucket, now time.Time, p Photo) (string, error) {
	objectPath := ObjectPath(b, now, u.random(), Extension(p.FileName, p.ContentType))

	endpoint := fmt.Sprintf("%s/storage/v1/object/%s/%s", u.cfg.BaseURL, url.PathEscape(u.cfg.Bucket), objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(p.Data))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}

	contentType := p.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Authorization", "Bearer "+u.cfg.APIKey)
	req.Header.Set("apikey", u.cfg.APIKey)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "false")
	req.Header.Set("cache-control", "max-age="+u.cfg.CacheControl)

	if err := u.client.DoJSON(ctx, req, nil); err != nil {
		return "", fmt.Errorf("upload %s: %w", objectPath, err)
	}

	return u.PublicURL(objectPath), nil
}

func (u *Uploader) PublicURL(objectPath string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", u.cfg.BaseURL, url.PathEscape(u.cfg.Bucket), objectPath)
}
