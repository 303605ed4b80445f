package ai

import (
	"context"
	"errors"
	"net"
	"strings"

	"github.com/sony/gobreaker"
	"google.golang.org/api/googleapi"
)

// Category classifies a provider failure into a client-facing bucket.
type Category int

const (
	CategoryGeneric Category = iota
	CategoryMissingCredentials
	CategoryRateLimited
	CategoryContextTooLarge
	CategoryTransient
)

var ErrMissingAPIKey = errors.New("google API key is missing")

// Classify maps a provider error to a category. Typed googleapi errors are
// preferred; message matching is the fallback for errors that arrive as bare
// strings from the SDK.
func Classify(err error) Category {
	if err == nil {
		return CategoryGeneric
	}

	if errors.Is(err, ErrMissingAPIKey) {
		return CategoryMissingCredentials
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return CategoryRateLimited
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return CategoryTransient
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == 401 || gerr.Code == 403:
			return CategoryMissingCredentials
		case gerr.Code == 429:
			return CategoryRateLimited
		case gerr.Code == 400 || gerr.Code == 413:
			if mentionsContextSize(gerr.Message) {
				return CategoryContextTooLarge
			}
			return CategoryGeneric
		case gerr.Code >= 500:
			return CategoryTransient
		}
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		return CategoryTransient
	}

	return classifyMessage(err.Error())
}

// classifyMessage inspects the lowercased error text. Kept in one place so
// the sample-message table in errors_test.go is the single source of truth
// for this behavior.
func classifyMessage(msg string) Category {
	msg = strings.ToLower(msg)

	switch {
	case strings.Contains(msg, "api key not valid"),
		strings.Contains(msg, "api key is missing"),
		strings.Contains(msg, "permission denied"):
		return CategoryMissingCredentials
	case strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "resource_exhausted"),
		strings.Contains(msg, "quota"):
		return CategoryRateLimited
	case mentionsContextSize(msg):
		return CategoryContextTooLarge
	case strings.Contains(msg, "connection refused"),
		strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline exceeded"),
		strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "eof"):
		return CategoryTransient
	}

	return CategoryGeneric
}

func mentionsContextSize(msg string) bool {
	msg = strings.ToLower(msg)
	return strings.Contains(msg, "maximum context length") ||
		strings.Contains(msg, "token limit") ||
		strings.Contains(msg, "context length") ||
		strings.Contains(msg, "input token count") ||
		strings.Contains(msg, "exceeds the maximum")
}

// IsTransient reports whether err is worth retrying with backoff.
func IsTransient(err error) bool {
	return Classify(err) == CategoryTransient
}
