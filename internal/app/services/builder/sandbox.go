package builder

import (
	"archive/zip"
	"context"
	"encoding/json"
	"os"

	"github.com/sitewrap/platform/internal/errors"
)

// SandboxBuilder writes a stub artifact locally instead of calling the build
// service. Used in development and tests.
type SandboxBuilder struct {
	downloadsDir string
}

// NewSandboxBuilder creates a sandbox builder writing under downloadsDir.
func NewSandboxBuilder(downloadsDir string) *SandboxBuilder {
	if downloadsDir == "" {
		downloadsDir = "downloads"
	}
	return &SandboxBuilder{downloadsDir: downloadsDir}
}

// Build writes a zip container holding the WebView shell manifest. The
// artifact is structurally a valid archive so upload paths exercise real
// bytes, but it is not installable.
func (b *SandboxBuilder) Build(ctx context.Context, req Request) (Result, error) {
	if err := os.MkdirAll(b.downloadsDir, 0o755); err != nil {
		return Result{}, errors.Internal("create downloads dir", err)
	}

	path := TempArtifactPath(b.downloadsDir, req.PackageName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return Result{}, errors.Internal("create artifact file", err)
	}

	zw := zip.NewWriter(file)
	entry, err := zw.Create("assets/webview.json")
	if err == nil {
		manifest, _ := json.Marshal(map[string]string{
			"sourceUrl":   req.SourceURL,
			"appName":     req.AppName,
			"packageName": req.PackageName,
		})
		_, err = entry.Write(manifest)
	}
	if cerr := zw.Close(); err == nil {
		err = cerr
	}
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return Result{}, errors.Internal("write stub artifact", err)
	}

	return Result{BinaryPath: path, PackageName: req.PackageName}, nil
}
