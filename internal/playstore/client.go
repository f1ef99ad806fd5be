// Package playstore wraps the Google Play Developer publishing API. All
// mutations happen inside an edit session; nothing is visible platform-side
// until the edit is committed.
package playstore

import (
	"context"
	"crypto/sha256"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sitewrap/platform/internal/app/domain/publish"
	"github.com/sitewrap/platform/internal/errors"
	"github.com/sitewrap/platform/internal/httputil"
)

const (
	defaultBaseURL   = "https://androidpublisher.googleapis.com"
	defaultUploadURL = "https://androidpublisher.googleapis.com/upload"
	apkMIMEType      = "application/vnd.android.package-archive"

	maxResponseBytes  = 8 << 20
	maxErrorBodyBytes = 32 << 10
)

// Client talks to the publishing API on behalf of one service account.
type Client struct {
	tokens     *tokenSource
	httpClient *http.Client
	baseURL    string
	uploadURL  string
}

// Option adjusts client construction, primarily for tests.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(url string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithUploadURL overrides the media upload base URL.
func WithUploadURL(url string) Option {
	return func(c *Client) { c.uploadURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
		c.tokens.httpClient = hc
	}
}

// NewClient builds a client from service-account key JSON. A malformed key is
// a ValidationError; nothing is sent to the platform yet.
func NewClient(keyJSON []byte, opts ...Option) (*Client, error) {
	key, err := ParseServiceAccountKey(keyJSON)
	if err != nil {
		return nil, err
	}

	transport := http.DefaultTransport
	if base, ok := http.DefaultTransport.(*http.Transport); ok {
		cloned := base.Clone()
		if cloned.TLSClientConfig == nil {
			cloned.TLSClientConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		} else if cloned.TLSClientConfig.MinVersion < tls.VersionTLS12 {
			cloned.TLSClientConfig = cloned.TLSClientConfig.Clone()
			cloned.TLSClientConfig.MinVersion = tls.VersionTLS12
		}
		transport = cloned
	}
	httpClient := &http.Client{Timeout: 2 * time.Minute, Transport: transport}

	tokens, err := newTokenSource(key, httpClient)
	if err != nil {
		return nil, err
	}

	c := &Client{
		tokens:     tokens,
		httpClient: httpClient,
		baseURL:    defaultBaseURL,
		uploadURL:  defaultUploadURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AccountInfo identifies the validated service account.
type AccountInfo struct {
	ClientEmail string
	ProjectID   string
}

// ValidationResult reports the outcome of a credential probe.
type ValidationResult struct {
	Valid   bool
	Reason  string
	Account AccountInfo
}

// Edit is an open platform-side edit session.
type Edit struct {
	ID        string
	ExpiresAt time.Time
}

// Artifact describes an uploaded binary within an edit session.
type Artifact struct {
	VersionCode int64
	SHA256      string
}

// Listing is per-language store listing copy.
type Listing struct {
	Language         string
	Title            string
	ShortDescription string
	FullDescription  string
}

// ValidateCredentials probes access to packageName by opening and discarding
// a throwaway edit; the platform has no read-only permission check. Expected
// denials are reported in the result, not as errors.
func (c *Client) ValidateCredentials(ctx context.Context, packageName string) (ValidationResult, error) {
	edit, err := c.InsertEdit(ctx, packageName)
	if err != nil {
		svcErr := errors.GetServiceError(err)
		if svcErr != nil && (svcErr.Code == errors.CodeAuthorization || svcErr.Code == errors.CodeNotFound) {
			return ValidationResult{Valid: false, Reason: svcErr.Message}, nil
		}
		return ValidationResult{}, err
	}

	// The probe edit is inert until committed; delete it anyway to keep the
	// session table clean. Failure here is harmless.
	_ = c.DeleteEdit(ctx, packageName, edit.ID)

	return ValidationResult{
		Valid: true,
		Account: AccountInfo{
			ClientEmail: c.tokens.key.ClientEmail,
			ProjectID:   c.tokens.key.ProjectID,
		},
	}, nil
}

// InsertEdit opens a new edit session for packageName.
func (c *Client) InsertEdit(ctx context.Context, packageName string) (Edit, error) {
	if strings.TrimSpace(packageName) == "" {
		return Edit{}, errors.Validation("packageName is required")
	}

	path := fmt.Sprintf("%s/androidpublisher/v3/applications/%s/edits", c.baseURL, packageName)
	body, err := c.do(ctx, http.MethodPost, path, "application/json", strings.NewReader("{}"))
	if err != nil {
		return Edit{}, err
	}

	var payload struct {
		ID                string `json:"id"`
		ExpiryTimeSeconds string `json:"expiryTimeSeconds"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return Edit{}, errors.Platform("decode edit response", err)
	}
	if payload.ID == "" {
		return Edit{}, errors.Platform("edit response missing id", nil)
	}

	edit := Edit{ID: payload.ID}
	if secs, err := strconv.ParseInt(payload.ExpiryTimeSeconds, 10, 64); err == nil {
		edit.ExpiresAt = time.Unix(secs, 0).UTC()
	}
	return edit, nil
}

// UploadAPK streams the binary at path into the edit session and returns the
// platform-assigned version code plus the artifact checksum.
func (c *Client) UploadAPK(ctx context.Context, packageName, editID, path string) (Artifact, error) {
	if editID == "" {
		return Artifact{}, errors.Validation("editID is required")
	}

	file, err := os.Open(path)
	if err != nil {
		return Artifact{}, errors.Upload("open artifact", err)
	}
	defer file.Close()

	hasher := sha256.New()
	reader := io.TeeReader(file, hasher)

	url := fmt.Sprintf("%s/androidpublisher/v3/applications/%s/edits/%s/apks?uploadType=media", c.uploadURL, packageName, editID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return Artifact{}, errors.Upload("create upload request", err)
	}
	req.Header.Set("Content-Type", apkMIMEType)
	if err := c.authorize(ctx, req); err != nil {
		return Artifact{}, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Artifact{}, errors.Upload("artifact transport failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusRequestEntityTooLarge {
			return Artifact{}, errors.Upload("artifact exceeds platform size limit", nil)
		}
		return Artifact{}, c.statusError(resp, "apk upload")
	}

	respBody, err := httputil.ReadAllStrict(resp.Body, maxResponseBytes)
	if err != nil {
		return Artifact{}, errors.Upload("read upload response", err)
	}

	var payload struct {
		VersionCode int64 `json:"versionCode"`
		Binary      struct {
			SHA256 string `json:"sha256"`
		} `json:"binary"`
	}
	if err := json.Unmarshal(respBody, &payload); err != nil {
		return Artifact{}, errors.Platform("decode upload response", err)
	}
	if payload.VersionCode <= 0 {
		return Artifact{}, errors.Platform("upload response missing versionCode", nil)
	}

	checksum := payload.Binary.SHA256
	if checksum == "" {
		checksum = hex.EncodeToString(hasher.Sum(nil))
	}
	return Artifact{VersionCode: payload.VersionCode, SHA256: checksum}, nil
}

// UpdateListing writes per-language store listing copy into the edit session.
func (c *Client) UpdateListing(ctx context.Context, packageName, editID string, listing Listing) error {
	lang := listing.Language
	if lang == "" {
		lang = "en-US"
	}

	payload, err := json.Marshal(map[string]string{
		"language":         lang,
		"title":            listing.Title,
		"shortDescription": listing.ShortDescription,
		"fullDescription":  listing.FullDescription,
	})
	if err != nil {
		return errors.Internal("marshal listing", err)
	}

	path := fmt.Sprintf("%s/androidpublisher/v3/applications/%s/edits/%s/listings/%s", c.baseURL, packageName, editID, lang)
	_, err = c.do(ctx, http.MethodPut, path, "application/json", strings.NewReader(string(payload)))
	return err
}

// AssignTrack associates the uploaded version with a release track and marks
// the release completed.
func (c *Client) AssignTrack(ctx context.Context, packageName, editID string, track publish.Track, versionCode int64) error {
	if !publish.ValidTrack(track) {
		return errors.Validation(fmt.Sprintf("unrecognized track %q", track))
	}
	if versionCode <= 0 {
		return errors.Validation("versionCode must be positive")
	}

	payload, err := json.Marshal(map[string]interface{}{
		"track": string(track),
		"releases": []map[string]interface{}{
			{
				"versionCodes": []string{strconv.FormatInt(versionCode, 10)},
				"status":       "completed",
			},
		},
	})
	if err != nil {
		return errors.Internal("marshal track assignment", err)
	}

	path := fmt.Sprintf("%s/androidpublisher/v3/applications/%s/edits/%s/tracks/%s", c.baseURL, packageName, editID, track)
	_, err = c.do(ctx, http.MethodPut, path, "application/json", strings.NewReader(string(payload)))
	return err
}

// CommitEdit atomically finalizes all changes made under the edit. The
// platform discards uncommitted edits, so no compensation is needed when
// earlier steps succeeded but commit fails.
func (c *Client) CommitEdit(ctx context.Context, packageName, editID string) error {
	path := fmt.Sprintf("%s/androidpublisher/v3/applications/%s/edits/%s:commit", c.baseURL, packageName, editID)
	_, err := c.do(ctx, http.MethodPost, path, "application/json", nil)
	return err
}

// DeleteEdit abandons an open edit session.
func (c *Client) DeleteEdit(ctx context.Context, packageName, editID string) error {
	path := fmt.Sprintf("%s/androidpublisher/v3/applications/%s/edits/%s", c.baseURL, packageName, editID)
	_, err := c.do(ctx, http.MethodDelete, path, "", nil)
	return err
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

func (c *Client) do(ctx context.Context, method, url, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, errors.Internal("create platform request", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if err := c.authorize(ctx, req); err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("platform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, c.statusError(resp, method+" "+req.URL.Path)
	}

	respBody, err := httputil.ReadAllStrict(resp.Body, maxResponseBytes)
	if err != nil {
		return nil, errors.Platform("read platform response", err)
	}
	return respBody, nil
}

func (c *Client) statusError(resp *http.Response, op string) error {
	body, truncated, readErr := httputil.ReadAllWithLimit(resp.Body, maxErrorBodyBytes)
	msg := ""
	if readErr == nil {
		msg = strings.TrimSpace(string(body))
		if truncated {
			msg += "...(truncated)"
		}
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return errors.Unauthorized("credential lacks permission for " + op).WithDetails("response", msg)
	case http.StatusNotFound:
		return errors.NotFound("package not registered on the platform").WithDetails("op", op)
	default:
		return errors.Platform(fmt.Sprintf("%s: platform status %d", op, resp.StatusCode), nil).WithDetails("response", msg)
	}
}
