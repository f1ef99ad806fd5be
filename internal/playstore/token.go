package playstore

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/sitewrap/platform/internal/errors"
	"github.com/sitewrap/platform/internal/httputil"
)

const (
	publisherScope  = "https://www.googleapis.com/auth/androidpublisher"
	defaultTokenURI = "https://oauth2.googleapis.com/token"
	assertionGrant  = "urn:ietf:params:oauth:grant-type:jwt-bearer"
)

// ServiceAccountKey is the JSON key material issued for a platform service
// account.
type ServiceAccountKey struct {
	Type        string `json:"type"`
	ProjectID   string `json:"project_id"`
	PrivateKey  string `json:"private_key"`
	ClientEmail string `json:"client_email"`
	TokenURI    string `json:"token_uri"`
}

// ParseServiceAccountKey decodes and validates service-account key JSON.
func ParseServiceAccountKey(raw []byte) (ServiceAccountKey, error) {
	var key ServiceAccountKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return ServiceAccountKey{}, errors.Validation("service account key is not valid JSON")
	}
	if strings.TrimSpace(key.ClientEmail) == "" || strings.TrimSpace(key.PrivateKey) == "" {
		return ServiceAccountKey{}, errors.Validation("service account key missing client_email or private_key")
	}
	if key.TokenURI == "" {
		key.TokenURI = defaultTokenURI
	}
	return key, nil
}

func (k ServiceAccountKey) rsaKey() (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(k.PrivateKey))
	if block == nil {
		return nil, errors.Validation("service account private key is not PEM encoded")
	}
	if parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes); err == nil {
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.Validation("service account private key is not RSA")
		}
		return rsaKey, nil
	}
	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, errors.Validation("service account private key could not be parsed")
	}
	return rsaKey, nil
}

// tokenSource exchanges a signed assertion for platform access tokens and
// caches the result until shortly before expiry.
type tokenSource struct {
	key        ServiceAccountKey
	signingKey *rsa.PrivateKey
	httpClient *http.Client
	now        func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

func newTokenSource(key ServiceAccountKey, httpClient *http.Client) (*tokenSource, error) {
	signingKey, err := key.rsaKey()
	if err != nil {
		return nil, err
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &tokenSource{
		key:        key,
		signingKey: signingKey,
		httpClient: httpClient,
		now:        time.Now,
	}, nil
}

// Token returns a valid access token, exchanging a fresh assertion if the
// cached one is expired or about to expire.
func (ts *tokenSource) Token(ctx context.Context) (string, error) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.token != "" && ts.now().Before(ts.expires.Add(-time.Minute)) {
		return ts.token, nil
	}

	now := ts.now().UTC()
	claims := jwt.MapClaims{
		"iss":   ts.key.ClientEmail,
		"scope": publisherScope,
		"aud":   ts.key.TokenURI,
		"iat":   now.Unix(),
		"exp":   now.Add(time.Hour).Unix(),
	}
	assertion, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(ts.signingKey)
	if err != nil {
		return "", errors.Internal("sign token assertion", err)
	}

	form := url.Values{}
	form.Set("grant_type", assertionGrant)
	form.Set("assertion", assertion)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ts.key.TokenURI, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Internal("create token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := ts.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, truncated, readErr := httputil.ReadAllWithLimit(resp.Body, 32<<10)
		if readErr != nil {
			return "", fmt.Errorf("read token error response: %w", readErr)
		}
		msg := strings.TrimSpace(string(body))
		if truncated {
			msg += "...(truncated)"
		}
		if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusBadRequest {
			return "", errors.Unauthorized("service account credentials rejected").WithDetails("response", msg)
		}
		return "", errors.Platform(fmt.Sprintf("token endpoint status %d", resp.StatusCode), nil)
	}

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", errors.Platform("decode token response", err)
	}
	if payload.AccessToken == "" {
		return "", errors.Unauthorized("token endpoint returned no access token")
	}

	ts.token = payload.AccessToken
	ts.expires = now.Add(time.Duration(payload.ExpiresIn) * time.Second)
	return ts.token, nil
}
