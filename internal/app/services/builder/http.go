package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sitewrap/platform/internal/errors"
	"github.com/sitewrap/platform/internal/httputil"
	"github.com/sitewrap/platform/pkg/logger"
)

// HTTPBuilder calls the external build service and saves the returned binary
// under the downloads directory.
type HTTPBuilder struct {
	client       *http.Client
	endpoint     string
	apiKey       string
	downloadsDir string
	log          *logger.Logger
}

// NewHTTPBuilder constructs a builder against the build service endpoint.
func NewHTTPBuilder(client *http.Client, endpoint, apiKey, downloadsDir string, log *logger.Logger) (*HTTPBuilder, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("build service endpoint required")
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	if downloadsDir == "" {
		downloadsDir = "downloads"
	}
	if log == nil {
		log = logger.NewDefault("builder-http")
	}
	return &HTTPBuilder{
		client:       client,
		endpoint:     strings.TrimRight(endpoint, "/"),
		apiKey:       strings.TrimSpace(apiKey),
		downloadsDir: downloadsDir,
		log:          log,
	}, nil
}

// Build posts the build request and streams the binary response to a temp
// file named temp_{packageName}_{unixMillis}.apk.
func (b *HTTPBuilder) Build(ctx context.Context, req Request) (Result, error) {
	payload, err := json.Marshal(map[string]string{
		"url":         req.SourceURL,
		"appName":     req.AppName,
		"description": req.Description,
		"iconUrl":     req.IconURL,
		"packageName": req.PackageName,
	})
	if err != nil {
		return Result{}, errors.Internal("marshal build request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.endpoint+"/build", strings.NewReader(string(payload)))
	if err != nil {
		return Result{}, errors.Internal("create build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.apiKey)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return Result{}, errors.Platform("build service unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, truncated, readErr := httputil.ReadAllWithLimit(resp.Body, 32<<10)
		msg := ""
		if readErr == nil {
			msg = strings.TrimSpace(string(body))
			if truncated {
				msg += "...(truncated)"
			}
		}
		if resp.StatusCode == http.StatusBadRequest {
			return Result{}, errors.Validation("build service rejected request").WithDetails("response", msg)
		}
		return Result{}, errors.Platform(fmt.Sprintf("build service status %d", resp.StatusCode), nil).WithDetails("response", msg)
	}

	if err := os.MkdirAll(b.downloadsDir, 0o755); err != nil {
		return Result{}, errors.Internal("create downloads dir", err)
	}

	path := TempArtifactPath(b.downloadsDir, req.PackageName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return Result{}, errors.Internal("create artifact file", err)
	}

	if _, err := io.Copy(file, resp.Body); err != nil {
		file.Close()
		_ = os.Remove(path)
		return Result{}, errors.Platform("stream artifact from build service", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(path)
		return Result{}, errors.Internal("finalize artifact file", err)
	}

	b.log.WithField("path", filepath.Base(path)).Info("artifact downloaded from build service")
	return Result{BinaryPath: path, PackageName: req.PackageName}, nil
}
