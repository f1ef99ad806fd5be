// Package assets uploads app icons and screenshots to the image CDN.
package assets

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sitewrap/platform/internal/errors"
	"github.com/sitewrap/platform/internal/httputil"
	"github.com/sitewrap/platform/pkg/logger"
)

// Uploader stores an asset and returns its hosted URL.
type Uploader interface {
	Upload(ctx context.Context, name string, content io.Reader) (string, error)
}

// CDNUploader uploads assets to the hosted image CDN via multipart POST.
type CDNUploader struct {
	client    *http.Client
	endpoint  string
	uploadKey string
	log       *logger.Logger
}

// NewCDNUploader constructs an uploader against the CDN upload endpoint.
func NewCDNUploader(client *http.Client, endpoint, uploadKey string, log *logger.Logger) (*CDNUploader, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("cdn endpoint required")
	}
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if log == nil {
		log = logger.NewDefault("assets-cdn")
	}
	return &CDNUploader{
		client:    client,
		endpoint:  strings.TrimRight(endpoint, "/"),
		uploadKey: strings.TrimSpace(uploadKey),
		log:       log,
	}, nil
}

// Upload sends the asset and returns the CDN-hosted URL.
func (u *CDNUploader) Upload(ctx context.Context, name string, content io.Reader) (string, error) {
	pr, pw := io.Pipe()
	writer := multipart.NewWriter(pw)

	go func() {
		part, err := writer.CreateFormFile("file", name)
		if err == nil {
			_, err = io.Copy(part, content)
		}
		if err == nil {
			err = writer.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.endpoint+"/upload", pr)
	if err != nil {
		return "", errors.Internal("create upload request", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if u.uploadKey != "" {
		req.Header.Set("Authorization", "Bearer "+u.uploadKey)
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return "", errors.Upload("asset transport failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _, _ := httputil.ReadAllWithLimit(resp.Body, 32<<10)
		return "", errors.Upload(fmt.Sprintf("cdn status %d", resp.StatusCode), nil).
			WithDetails("response", strings.TrimSpace(string(body)))
	}

	var payload struct {
		SecureURL string `json:"secure_url"`
		URL       string `json:"url"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", errors.Platform("decode cdn response", err)
	}
	hosted := payload.SecureURL
	if hosted == "" {
		hosted = payload.URL
	}
	if hosted == "" {
		return "", errors.Platform("cdn response missing url", nil)
	}

	u.log.WithField("name", name).Info("asset uploaded")
	return hosted, nil
}

// LocalUploader is the sandbox implementation: it stores assets under a local
// directory and returns a file path URL.
type LocalUploader struct {
	dir string
}

// NewLocalUploader creates an uploader writing under dir.
func NewLocalUploader(dir string) *LocalUploader {
	if dir == "" {
		dir = "downloads"
	}
	return &LocalUploader{dir: dir}
}

func (u *LocalUploader) Upload(ctx context.Context, name string, content io.Reader) (string, error) {
	if err := os.MkdirAll(u.dir, 0o755); err != nil {
		return "", errors.Internal("create assets dir", err)
	}

	ext := filepath.Ext(name)
	path := filepath.Join(u.dir, uuid.NewString()+ext)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return "", errors.Internal("create asset file", err)
	}
	if _, err := io.Copy(file, content); err != nil {
		file.Close()
		_ = os.Remove(path)
		return "", errors.Internal("write asset file", err)
	}
	if err := file.Close(); err != nil {
		return "", errors.Internal("finalize asset file", err)
	}
	return "file://" + path, nil
}
