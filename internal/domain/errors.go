package domain

import "errors"

var (
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrNotFound             = errors.New("chat not found")
	ErrSessionClosed        = errors.New("chat is closed")
	ErrAlreadyClosed        = errors.New("chat already closed")
	ErrUnknownParticipant   = errors.New("unknown participant")
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// IsDomainError reports whether err wraps one of the chat error kinds.
func IsDomainError(err error) bool {
	for _, target := range []error{
		ErrInvalidArgument,
		ErrNotFound,
		ErrSessionClosed,
		ErrAlreadyClosed,
		ErrUnknownParticipant,
		ErrUnsupportedOperation,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
