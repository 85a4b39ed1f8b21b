package errors

import (
	stderrors "errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindSecurityBlocked
	KindDuplicateEvent
	KindUpstreamDelivery
	KindUnauthorized
)

// Error carries a Kind so boundaries can map it to a status without string matching.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		if e.Message == "" {
			return e.Err.Error()
		}
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Validation(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func NotFound(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

func SecurityBlocked(message string) error {
	return &Error{Kind: KindSecurityBlocked, Message: message}
}

func DuplicateEvent(message string) error {
	return &Error{Kind: KindDuplicateEvent, Message: message}
}

func Unauthorized(message string) error {
	return &Error{Kind: KindUnauthorized, Message: message}
}

func UpstreamDelivery(message string, cause error) error {
	return &Error{Kind: KindUpstreamDelivery, Message: message, Err: cause}
}

func Internal(message string, cause error) error {
	return &Error{Kind: KindInternal, Message: message, Err: cause}
}

func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindSecurityBlocked:
		return http.StatusForbidden
	case KindDuplicateEvent:
		return http.StatusOK
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindUpstreamDelivery:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func CodeOf(err error) string {
	switch KindOf(err) {
	case KindValidation:
		return ErrCodeInvalidInput
	case KindNotFound:
		return ErrCodeNotFound
	case KindSecurityBlocked:
		return ErrCodeForbidden
	case KindDuplicateEvent:
		return ErrCodeConflict
	case KindUnauthorized:
		return ErrCodeUnauthorized
	case KindUpstreamDelivery:
		return ErrCodeUpstream
	default:
		return ErrCodeInternal
	}
}

// MessageOf returns the caller-safe message for err.
func MessageOf(err error) string {
	var e *Error
	if !stderrors.As(err, &e) || e.Kind == KindInternal {
		return "Internal server error"
	}
	return e.Message
}
