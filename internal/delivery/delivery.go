// Package delivery wraps message transports behind a small interface and
// gives dispatchers a helper that converts transport failures into
// DispatchResult values instead of errors.
package delivery

import (
	"context"
	"encoding/json"
)

// Service is the transport boundary. Implementations return the
// provider's opaque delivery payload on success and an *Error carrying
// the provider response on delivery failure.
type Service interface {
	SendEmail(ctx context.Context, from, to, subject, body string) (json.RawMessage, error)
	SendSMS(ctx context.Context, from, to, body string) (json.RawMessage, error)
}

// Error is a delivery failure with the provider's error response kept
// verbatim for the notification record.
type Error struct {
	Response string
}

func (e *Error) Error() string {
	return "delivery failed: " + e.Response
}
