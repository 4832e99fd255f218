package gateway

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jmgilman/go/errors"
)

// Kind is the coarse failure category surfaced to the caches.
type Kind string

const (
	KindBackendUnreachable Kind = "backend_unreachable"
	KindNotFound           Kind = "not_found"
	KindValidationFailed   Kind = "validation_failed"
	KindUnknown            Kind = "unknown"
)

func NotFound(format string, args ...interface{}) error {
	return errors.Newf(errors.CodeNotFound, format, args...)
}

func Invalid(format string, args ...interface{}) error {
	return errors.Newf(errors.CodeInvalidInput, format, args...)
}

func Unreachable(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, errors.CodeNetwork, format, args...)
}

// Wrap attaches code to err unless err already carries a backend code.
func Wrap(err error, code errors.ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	var pe errors.PlatformError
	if errors.As(err, &pe) {
		return err
	}
	return errors.Wrap(err, code, message)
}

func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return KindBackendUnreachable
	}
	switch errors.GetCode(err) {
	case errors.CodeNotFound:
		return KindNotFound
	case errors.CodeInvalidInput, errors.CodeAlreadyExists, errors.CodeConflict, errors.CodeSchemaFailed:
		return KindValidationFailed
	case errors.CodeNetwork, errors.CodeUnavailable, errors.CodeTimeout, errors.CodeDatabase:
		return KindBackendUnreachable
	default:
		return KindUnknown
	}
}

func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

func IsValidation(err error) bool {
	return KindOf(err) == KindValidationFailed
}

// Message renders err for the error slot of a cache.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var pe errors.PlatformError
	if errors.As(err, &pe) {
		if cause := pe.Unwrap(); cause != nil && KindOf(err) == KindBackendUnreachable {
			return fmt.Sprintf("%s: %v", pe.Message(), cause)
		}
		return pe.Message()
	}
	return err.Error()
}
