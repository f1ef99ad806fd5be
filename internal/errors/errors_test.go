package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestTaxonomyStatusMapping(t *testing.T) {
	cases := []struct {
		err    *ServiceError
		code   string
		status int
	}{
		{Validation("bad input"), CodeValidation, http.StatusBadRequest},
		{Unauthorized("denied"), CodeAuthorization, http.StatusUnauthorized},
		{NotFound("missing"), CodeNotFound, http.StatusNotFound},
		{Upload("transport", nil), CodeUpload, http.StatusBadGateway},
		{Platform("upstream", nil), CodePlatform, http.StatusBadGateway},
		{Internal("oops", nil), CodeInternal, http.StatusInternalServerError},
		{RateLimitExceeded(10, "1s"), CodeRateLimit, http.StatusTooManyRequests},
	}
	for _, tc := range cases {
		if tc.err.Code != tc.code {
			t.Errorf("code = %s, want %s", tc.err.Code, tc.code)
		}
		if tc.err.HTTPStatus != tc.status {
			t.Errorf("%s: status = %d, want %d", tc.code, tc.err.HTTPStatus, tc.status)
		}
	}
}

func TestGetServiceErrorUnwrapsChains(t *testing.T) {
	base := Platform("platform said no", errors.New("raw"))
	wrapped := fmt.Errorf("publish failed: %w", base)

	svcErr := GetServiceError(wrapped)
	if svcErr == nil || svcErr.Code != CodePlatform {
		t.Fatalf("GetServiceError = %+v", svcErr)
	}
	if GetServiceError(errors.New("plain")) != nil {
		t.Fatal("plain error classified")
	}
	if !IsCode(wrapped, CodePlatform) {
		t.Fatal("IsCode missed wrapped error")
	}
	if IsCode(wrapped, CodeValidation) {
		t.Fatal("IsCode matched wrong code")
	}
}

func TestWithDetailsAndUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Upload("artifact transport failed", cause).WithDetails("attempt", 1)

	if err.Details["attempt"] != 1 {
		t.Fatalf("details = %v", err.Details)
	}
	if !errors.Is(err, cause) {
		t.Fatal("cause not reachable through Unwrap")
	}
}
