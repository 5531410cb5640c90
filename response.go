package tokenlife

import "errors"

// Response is the transport-agnostic envelope for Service operations:
// a success flag, a human-readable message, a stable code, and the
// operation payload. Raw store and signing errors never leak through it.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// AsResponse wraps an operation result into a Response. The message for
// reuse detection deliberately says no more than "revoked for security
// reasons": extra detail would help an attacker calibrate probing.
func AsResponse(data any, err error) Response {
	if err == nil {
		return Response{
			Success: true,
			Message: "ok",
			Data:    data,
		}
	}
	return Response{
		Success: false,
		Message: publicMessage(err),
		Code:    Code(err),
	}
}

func publicMessage(err error) string {
	switch {
	case errors.Is(err, ErrMissingFields):
		return "userId and email are required"
	case errors.Is(err, ErrTokenMalformed), errors.Is(err, ErrInvalidScope):
		return "token is malformed"
	case errors.Is(err, ErrSignatureInvalid):
		return "token signature is invalid"
	case errors.Is(err, ErrTokenExpired):
		return "token has expired"
	case errors.Is(err, ErrReuseDetected),
		errors.Is(err, ErrTokenRevoked),
		errors.Is(err, ErrFamilyRevoked):
		return "token has been revoked for security reasons"
	case errors.Is(err, ErrFamilyNotFound):
		return "token family not found"
	case errors.Is(err, ErrGenerationCapExceeded):
		return "session renewal limit reached; please sign in again"
	case errors.Is(err, ErrRefreshRateLimited):
		return "too many refresh attempts; slow down"
	case errors.Is(err, ErrStoreUnavailable):
		return "service temporarily unavailable"
	default:
		return "request failed"
	}
}
