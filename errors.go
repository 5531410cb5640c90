package tokenlife

import "errors"

var (
	// ErrMissingFields is returned when a verified identity lacks the
	// required user id or email.
	ErrMissingFields = errors.New("identity missing required fields")
	// ErrTokenMalformed is returned when the input is not a well-formed
	// signed token or lacks required claims.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrSignatureInvalid is returned when a token fails verification
	// against the configured secret, audience, or issuer.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrTokenExpired is returned when a structurally valid token is past
	// its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenRevoked is returned when a token's jti carries a revocation
	// record.
	ErrTokenRevoked = errors.New("token revoked")
	// ErrFamilyRevoked is returned when the token's family has been
	// revoked. Revoked families can never be reactivated.
	ErrFamilyRevoked = errors.New("token family revoked")
	// ErrReuseDetected is returned when an already-consumed refresh token
	// is presented again. The whole family is revoked as a side effect.
	ErrReuseDetected = errors.New("refresh token reuse detected")
	// ErrFamilyNotFound is returned when a refresh token references a
	// family that does not exist or belongs to a different user.
	ErrFamilyNotFound = errors.New("token family not found")
	// ErrGenerationCapExceeded is returned when a rotation would push the
	// family past the configured generation maximum.
	ErrGenerationCapExceeded = errors.New("token family generation cap exceeded")
	// ErrStoreUnavailable is returned when the backing store cannot be
	// reached. Revocation and reuse checks fail closed on it.
	ErrStoreUnavailable = errors.New("token store unavailable")
	// ErrRefreshRateLimited is returned when the optional refresh throttle
	// rejects an attempt.
	ErrRefreshRateLimited = errors.New("refresh rate limited")
	// ErrInvalidScope is returned for an unrecognized revocation scope or
	// token type argument.
	ErrInvalidScope = errors.New("invalid token scope")
	// ErrServiceNotReady is returned when a Service method is called on a
	// nil or unbuilt Service.
	ErrServiceNotReady = errors.New("service not initialized")
	// ErrInternal is returned when signing or id generation fails on an
	// otherwise healthy service.
	ErrInternal = errors.New("internal token service failure")
)

// Code maps a Service error to its stable machine-readable code. Unknown
// errors map to INTERNAL.
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrMissingFields):
		return "MISSING_FIELDS"
	case errors.Is(err, ErrTokenMalformed), errors.Is(err, ErrInvalidScope):
		return "MALFORMED"
	case errors.Is(err, ErrSignatureInvalid):
		return "SIGNATURE_INVALID"
	case errors.Is(err, ErrTokenExpired):
		return "EXPIRED"
	case errors.Is(err, ErrTokenRevoked):
		return "REVOKED_TOKEN"
	case errors.Is(err, ErrFamilyRevoked):
		return "REVOKED_FAMILY"
	case errors.Is(err, ErrReuseDetected):
		return "REUSE_DETECTED"
	case errors.Is(err, ErrFamilyNotFound):
		return "FAMILY_NOT_FOUND"
	case errors.Is(err, ErrGenerationCapExceeded):
		return "GENERATION_CAP_EXCEEDED"
	case errors.Is(err, ErrStoreUnavailable):
		return "STORE_UNAVAILABLE"
	case errors.Is(err, ErrRefreshRateLimited):
		return "RATE_LIMITED"
	default:
		return "INTERNAL"
	}
}
