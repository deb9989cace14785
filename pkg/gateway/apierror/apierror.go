// Package apierror maps internal errors to HTTP responses.
package apierror

import (
	"context"
	"errors"
	"net/http"

	"github.com/medabroad/consult/pkg/core"
	"github.com/medabroad/consult/pkg/store"
)

// Envelope is the JSON error body on non-streaming endpoints.
type Envelope struct {
	Error *core.Error `json:"error"`
}

// FromError converts any error into a canonical *core.Error and HTTP status.
func FromError(err error, requestID string) (*core.Error, int) {
	if err == nil {
		return nil, http.StatusOK
	}

	// Context timeouts/cancellation.
	if errors.Is(err, context.DeadlineExceeded) {
		return &core.Error{
			Type:      core.ErrAPI,
			Message:   "request timeout",
			RequestID: requestID,
		}, http.StatusGatewayTimeout
	}
	if errors.Is(err, context.Canceled) {
		return &core.Error{
			Type:      core.ErrAPI,
			Message:   "request cancelled",
			Code:      "cancelled",
			RequestID: requestID,
		}, http.StatusRequestTimeout
	}

	if errors.Is(err, store.ErrNotFound) {
		return &core.Error{
			Type:      core.ErrNotFound,
			Message:   "conversation not found",
			RequestID: requestID,
		}, http.StatusNotFound
	}

	// Already canonical.
	var coreErr *core.Error
	if errors.As(err, &coreErr) && coreErr != nil {
		out := *coreErr
		out.RequestID = requestID
		return &out, StatusFromType(coreErr.Type)
	}

	// Unknown errors: treat as internal (do not leak details by default).
	return &core.Error{
		Type:      core.ErrAPI,
		Message:   "internal error",
		RequestID: requestID,
	}, http.StatusInternalServerError
}

// StatusFromType returns the HTTP status for an error type.
func StatusFromType(t core.ErrorType) int {
	switch t {
	case core.ErrInvalidRequest:
		return http.StatusBadRequest
	case core.ErrAuthentication:
		return http.StatusUnauthorized
	case core.ErrNotFound:
		return http.StatusNotFound
	case core.ErrRateLimit:
		return http.StatusTooManyRequests
	case core.ErrOverloaded:
		return 529
	case core.ErrProvider, core.ErrAPI:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
