package binder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
)

// DefaultMaxBodySize caps JSON request bodies.
const DefaultMaxBodySize int64 = 1 << 20

// JSONOption configures BindJSON.
type JSONOption func(*jsonConfig)

type jsonConfig struct {
	maxBodySize   int64
	disallowExtra bool
}

// WithMaxBodySize overrides DefaultMaxBodySize.
func WithMaxBodySize(n int64) JSONOption {
	return func(c *jsonConfig) {
		if n > 0 {
			c.maxBodySize = n
		}
	}
}

// WithStrictFields rejects bodies with fields the target struct does not declare.
func WithStrictFields() JSONOption {
	return func(c *jsonConfig) {
		c.disallowExtra = true
	}
}

// BindJSON creates a JSON body binder.
//
// Example:
//
//	http.HandleFunc("/auth/login", handler.Wrap(login,
//		handler.WithBinders[handler.Context, LoginRequest](binder.BindJSON()),
//	))
func BindJSON(opts ...JSONOption) func(r *http.Request, v any) error {
	cfg := jsonConfig{maxBodySize: DefaultMaxBodySize}
	for _, opt := range opts {
		opt(&cfg)
	}

	return func(r *http.Request, v any) error {
		contentType := r.Header.Get("Content-Type")
		if contentType == "" {
			return fmt.Errorf("%w: expected application/json", ErrMissingContentType)
		}
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil || mediaType != "application/json" {
			return fmt.Errorf("%w: got %s, expected application/json", ErrUnsupportedMediaType, contentType)
		}

		decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, cfg.maxBodySize))
		if cfg.disallowExtra {
			decoder.DisallowUnknownFields()
		}

		if err := decoder.Decode(v); err != nil {
			var tooLarge *http.MaxBytesError
			switch {
			case errors.As(err, &tooLarge):
				return fmt.Errorf("%w: limit is %d bytes", ErrBodyTooLarge, tooLarge.Limit)
			case errors.Is(err, io.EOF):
				return fmt.Errorf("%w: empty body", ErrInvalidJSON)
			default:
				return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
			}
		}

		// Ensure the entire body was consumed
		var extra json.RawMessage
		if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: unexpected data after JSON object", ErrInvalidJSON)
		}

		return nil
	}
}
