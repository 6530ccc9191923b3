package model

import (
	"net/http"
	"strings"

	"assetforge/internal/domain"
)

// classifyStatus maps an HTTP status to the retry classification. 429
// and 5xx are transient; everything else in the error range is a
// request problem no retry will fix. Either way the provider handled
// the call, so it counts as completed.
func classifyStatus(backend string, status int, err error) error {
	kind := domain.ErrorKindFatal
	if status == http.StatusTooManyRequests || status >= 500 {
		kind = domain.ErrorKindRetryable
	}
	return &domain.BackendError{Backend: backend, Kind: kind, Completed: true, Err: err}
}

func transportErr(backend string, err error) error {
	// The request never completed on the provider side.
	return &domain.BackendError{Backend: backend, Kind: domain.ErrorKindRetryable, Completed: false, Err: err}
}

func malformedErr(backend string, err error) error {
	return &domain.BackendError{Backend: backend, Kind: domain.ErrorKindRetryable, Completed: true, Err: err}
}

func fatalErr(backend string, err error) error {
	return &domain.BackendError{Backend: backend, Kind: domain.ErrorKindFatal, Completed: false, Err: err}
}

// cleanPromptText strips markdown fences and surrounding whitespace
// from a model response so only the usable prompt text remains.
func cleanPromptText(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```text")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSpace(trimmed)
	if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
		trimmed = trimmed[:idx]
	}
	return strings.TrimSpace(trimmed)
}

func coalesce(values ...string) string {
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v != "" {
			return v
		}
	}
	return ""
}
