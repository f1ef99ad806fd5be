package assets

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sitewrap/platform/internal/errors"
)

func TestCDNUploaderSendsMultipartAndReturnsURL(t *testing.T) {
	var gotAuth, gotName, gotContent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/upload" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()
		gotName = header.Filename
		body, _ := io.ReadAll(file)
		gotContent = string(body)
		json.NewEncoder(w).Encode(map[string]string{
			"secure_url": "https://cdn.example.com/icons/abc.png",
		})
	}))
	defer srv.Close()

	up, err := NewCDNUploader(srv.Client(), srv.URL, "cdn-key", nil)
	if err != nil {
		t.Fatalf("NewCDNUploader: %v", err)
	}
	hosted, err := up.Upload(context.Background(), "icon.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if hosted != "https://cdn.example.com/icons/abc.png" {
		t.Fatalf("hosted url = %q", hosted)
	}
	if gotAuth != "Bearer cdn-key" {
		t.Fatalf("auth header = %q", gotAuth)
	}
	if gotName != "icon.png" || gotContent != "png-bytes" {
		t.Fatalf("received name=%q content=%q", gotName, gotContent)
	}
}

func TestCDNUploaderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	up, err := NewCDNUploader(srv.Client(), srv.URL, "", nil)
	if err != nil {
		t.Fatalf("NewCDNUploader: %v", err)
	}
	_, err = up.Upload(context.Background(), "icon.png", strings.NewReader("x"))
	if !errors.IsCode(err, errors.CodeUpload) {
		t.Fatalf("err = %v, want upload error", err)
	}
}

func TestCDNUploaderRequiresEndpoint(t *testing.T) {
	if _, err := NewCDNUploader(nil, "  ", "", nil); err == nil {
		t.Fatal("expected error for blank endpoint")
	}
}

func TestLocalUploaderStoresFile(t *testing.T) {
	dir := t.TempDir()
	up := NewLocalUploader(dir)

	hosted, err := up.Upload(context.Background(), "icon.png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if !strings.HasPrefix(hosted, "file://") || !strings.HasSuffix(hosted, ".png") {
		t.Fatalf("hosted url = %q", hosted)
	}
	data, err := os.ReadFile(strings.TrimPrefix(hosted, "file://"))
	if err != nil {
		t.Fatalf("read stored asset: %v", err)
	}
	if string(data) != "png-bytes" {
		t.Fatalf("stored content = %q", data)
	}
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("entries = %v, err = %v", entries, err)
	}
	if filepath.Ext(entries[0].Name()) != ".png" {
		t.Fatalf("stored name = %q", entries[0].Name())
	}
}
