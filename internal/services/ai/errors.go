package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/tidwall/gjson"
)

var (
	// ErrRateLimited indicates the API rate limit was exceeded
	ErrRateLimited = errors.New("rate limited")
	// ErrQuotaExceeded indicates the API quota was exceeded
	ErrQuotaExceeded = errors.New("quota exceeded")
	// ErrEmptyResponse is returned when the API answers without any content
	ErrEmptyResponse = errors.New("no choices in response")
)

// APIError represents an error from the AI provider API
type APIError struct {
	Message     string
	Type        string
	Code        string
	StatusCode  int
	RetryAfter  *time.Duration
	IsPermanent bool // true for quota errors, false for rate limits
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (status %d, type %s): %s", e.StatusCode, e.Type, e.Message)
}

// Unwrap lets callers match rate limit and quota failures with errors.Is.
func (e *APIError) Unwrap() error {
	switch {
	case e.IsPermanent:
		return ErrQuotaExceeded
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return nil
	}
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests && !apiErr.IsPermanent
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "too many requests")
}

// IsQuotaError checks if an error is a quota exhaustion error
func IsQuotaError(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.IsPermanent || apiErr.Code == "insufficient_quota"
	}

	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "insufficient_quota") ||
		strings.Contains(errStr, "quota") ||
		strings.Contains(errStr, "billing")
}

// ExtractAPIError extracts API error details from an error. It returns nil
// when err is not an HTTP error from the provider.
func ExtractAPIError(err error) *APIError {
	if err == nil {
		return nil
	}

	apiErr := &APIError{Message: err.Error()}
	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		apiErr.StatusCode = oaErr.StatusCode
		if oaErr.Response != nil {
			apiErr.RetryAfter = parseRetryAfter(oaErr.Response.Header.Get("Retry-After"))
		}
	} else if strings.Contains(apiErr.Message, "429") {
		apiErr.StatusCode = http.StatusTooManyRequests
	} else {
		return nil
	}

	// SDK errors embed the JSON body in the message
	if body := jsonPart(err.Error()); body != "" {
		detail := gjson.Get(body, "error")
		if !detail.IsObject() {
			detail = gjson.Parse(body)
		}
		if msg := detail.Get("message"); msg.Exists() {
			apiErr.Message = msg.String()
		}
		apiErr.Type = detail.Get("type").String()
		apiErr.Code = detail.Get("code").String()
	}
	if oaErr != nil {
		if oaErr.Message != "" {
			apiErr.Message = oaErr.Message
		}
		if oaErr.Type != "" {
			apiErr.Type = oaErr.Type
		}
		if oaErr.Code != "" {
			apiErr.Code = oaErr.Code
		}
	}
	if apiErr.Type == "" && apiErr.StatusCode == http.StatusTooManyRequests {
		apiErr.Type = "rate_limit_error"
	}
	if apiErr.Code == "insufficient_quota" {
		apiErr.IsPermanent = true
	}

	if apiErr.RetryAfter == nil && apiErr.StatusCode == http.StatusTooManyRequests {
		// Rate limits typically reset after 60 seconds, quota after much longer
		retryAfter := 60 * time.Second
		if apiErr.IsPermanent {
			retryAfter = time.Hour
		}
		apiErr.RetryAfter = &retryAfter
	}

	return apiErr
}

func jsonPart(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end <= start {
		return ""
	}
	body := s[start : end+1]
	if !gjson.Valid(body) {
		return ""
	}
	return body
}

func parseRetryAfter(v string) *time.Duration {
	if v == "" {
		return nil
	}
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return nil
	}
	d := time.Duration(secs) * time.Second
	return &d
}
