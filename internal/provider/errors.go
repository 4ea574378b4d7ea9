package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/kailas-cloud/filedex/internal/domain"
)

// classifyOpenAIError maps a go-openai client error onto the pipeline error
// taxonomy by HTTP status: 401/403 reject credentials and never retry,
// 429 consumes a retry attempt, everything else counts as an outage.
func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("embedding API error %d: %s: %w",
			apiErr.HTTPStatusCode, apiErr.Message, sentinelForStatus(apiErr.HTTPStatusCode))
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		detail := extractDetail(reqErr.Body)
		if detail == "" {
			detail = string(reqErr.Body)
		}
		return fmt.Errorf("embedding API error %d: %s: %w",
			reqErr.HTTPStatusCode, detail, sentinelForStatus(reqErr.HTTPStatusCode))
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}

	return fmt.Errorf("embedding request failed: %v: %w", err, domain.ErrProviderUnavailable)
}

func sentinelForStatus(status int) error {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrProviderAuth
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	default:
		return domain.ErrProviderUnavailable
	}
}

// extractDetail extracts the "detail" field from a JSON error body.
func extractDetail(body []byte) string {
	var parsed struct {
		Detail string `json:"detail"`
	}
	if json.Unmarshal(body, &parsed) == nil && parsed.Detail != "" {
		return parsed.Detail
	}
	return ""
}

// classifyGoogleError maps a Google client error onto the taxonomy. The
// client does not expose structured status codes, so this goes by the
// message text.
func classifyGoogleError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key") ||
		strings.Contains(msg, "unauthenticated") ||
		strings.Contains(msg, "permission"):
		return fmt.Errorf("google embedding: %v: %w", err, domain.ErrProviderAuth)
	case strings.Contains(msg, "quota") ||
		strings.Contains(msg, "rate") ||
		strings.Contains(msg, "429"):
		return fmt.Errorf("google embedding: %v: %w", err, domain.ErrRateLimited)
	default:
		return fmt.Errorf("google embedding: %v: %w", err, domain.ErrProviderUnavailable)
	}
}

// checkDimensions verifies a returned vector against the collection's
// declared dimensionality.
func checkDimensions(vector []float32, want int) error {
	if want > 0 && len(vector) != want {
		return fmt.Errorf("provider returned %d dimensions, collection declares %d: %w",
			len(vector), want, domain.ErrDimensionMismatch)
	}
	return nil
}
