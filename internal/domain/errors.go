package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrUnauthorized = errors.New("unauthorized")
	ErrBadRequest   = errors.New("bad request")
	ErrInternal     = errors.New("internal error")
)

// Kind classifies an Error for the transport layer.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindUnauthenticated
	KindNotFound
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindValidation:
		return ErrBadRequest
	case KindUnauthenticated:
		return ErrUnauthorized
	case KindNotFound:
		return ErrNotFound
	case KindConflict:
		return ErrConflict
	default:
		return ErrInternal
	}
}

// Error is a client-facing failure with a stable machine-readable Code.
// Hint carries optional structured data for the client (e.g. needsVerification).
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Hint    map[string]any
}

func (e *Error) Error() string { return e.Message }

// Is lets errors.Is(err, ErrNotFound) and friends match on the error's Kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// NewError builds an Error. Prefer the predefined values below for known cases.
func NewError(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// Validation returns a KindValidation error with the generic validation code.
func Validation(message string) *Error {
	return NewError(KindValidation, "validation_error", message)
}

var (
	ErrInvalidOrExpiredCode = NewError(KindValidation, "invalid_or_expired_otp", "Invalid or expired OTP")
	ErrInvalidCode          = NewError(KindValidation, "invalid_otp", "Invalid OTP")
	ErrUserNotFound         = NewError(KindNotFound, "user_not_found", "User not found. Please sign up first.")
	ErrAlreadyVerified      = NewError(KindConflict, "email_already_verified", "Email already registered and verified")
	ErrCodeDispatch         = NewError(KindInternal, "otp_dispatch_failed", "Failed to send OTP")
	ErrNoteNotFound         = NewError(KindNotFound, "note_not_found", "Note not found")
	ErrNotVerified          = &Error{
		Kind:    KindValidation,
		Code:    "email_not_verified",
		Message: "Email not verified. Please complete verification first.",
		Hint:    map[string]any{"needsVerification": true},
	}

	ErrAuthHeaderMissing   = NewError(KindUnauthenticated, "auth_header_missing", "Authorization header missing")
	ErrAuthHeaderMalformed = NewError(KindUnauthenticated, "auth_header_malformed", "Invalid authorization header format. Use: Bearer <token>")
	ErrInvalidToken        = NewError(KindUnauthenticated, "invalid_token", "Invalid or expired token")
)
