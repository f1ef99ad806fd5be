// Package builder turns a source website URL into a WebView-wrapped Android
// package on local ephemeral storage.
package builder

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/sitewrap/platform/internal/errors"
	"github.com/sitewrap/platform/pkg/logger"
)

// PackagePrefix is the reverse-domain namespace for derived package names.
const PackagePrefix = "com.sitewrap."

// Request describes one build.
type Request struct {
	SourceURL   string
	AppName     string
	Description string
	IconURL     string
	PackageName string
}

// Result points at the built artifact.
type Result struct {
	BinaryPath  string
	PackageName string
}

// Builder produces an installable artifact for a build request. The HTTP
// implementation calls the external build service; the sandbox implementation
// writes a stub artifact for development and tests.
type Builder interface {
	Build(ctx context.Context, req Request) (Result, error)
}

// Service validates build input and delegates artifact production.
type Service struct {
	builder    Builder
	httpClient *http.Client
	log        *logger.Logger
}

// New constructs a builder service around the given Builder.
func New(b Builder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("builder")
	}
	return &Service{
		builder:    b,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		log:        log,
	}
}

// DerivePackageName produces a deterministic package identifier from the app
// name: lowercased, non-alphanumerics stripped, reverse-domain prefixed.
func DerivePackageName(appName string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(appName) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	name := b.String()
	if name == "" {
		name = "app"
	}
	return PackagePrefix + name
}

// TempArtifactPath returns the conventional temp file path for a build.
func TempArtifactPath(dir, packageName string) string {
	return filepath.Join(dir, fmt.Sprintf("temp_%s_%d.apk", packageName, time.Now().UnixMilli()))
}

// ValidateSourceURL confirms the source site is reachable and serving. A
// non-success status or transport failure is a ValidationError: the caller
// must not proceed to publishing.
func (s *Service) ValidateSourceURL(ctx context.Context, sourceURL string) error {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return errors.Validation("url is required")
	}
	if !strings.HasPrefix(sourceURL, "http://") && !strings.HasPrefix(sourceURL, "https://") {
		return errors.Validation("url must be http or https")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, sourceURL, nil)
	if err != nil {
		return errors.Validation("url is malformed")
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return errors.Validation("source url is unreachable").WithDetails("url", sourceURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return errors.Validation(fmt.Sprintf("source url returned status %d", resp.StatusCode)).WithDetails("url", sourceURL)
	}
	return nil
}

// Build validates the source URL and produces the artifact.
func (s *Service) Build(ctx context.Context, req Request) (Result, error) {
	if err := s.ValidateSourceURL(ctx, req.SourceURL); err != nil {
		return Result{}, err
	}
	if strings.TrimSpace(req.AppName) == "" {
		return Result{}, errors.Validation("appName is required")
	}
	if req.PackageName == "" {
		req.PackageName = DerivePackageName(req.AppName)
	}

	result, err := s.builder.Build(ctx, req)
	if err != nil {
		return Result{}, err
	}

	s.log.WithField("package_name", result.PackageName).
		WithField("binary_path", result.BinaryPath).
		Info("artifact built")
	return result, nil
}

// Cleanup removes a built artifact. Missing files are not an error; the
// orchestrator calls this on every exit path.
func Cleanup(path string) error {
	if path == "" {
		return nil
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
