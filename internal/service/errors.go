package service

import (
	"context"
	stderrors "errors"

	"inkdown-client/internal/gateway"
	"inkdown-client/internal/repository"

	"github.com/jmgilman/go/errors"
)

var (
	ErrNoteTrashed    = gateway.Invalid("note is in the trash")
	ErrNoteNotTrashed = gateway.Invalid("note is not in the trash")
)

// repoError converts a repository failure into the backend error taxonomy.
func repoError(err error, message string) error {
	if err == nil {
		return nil
	}

	switch {
	case stderrors.Is(err, context.Canceled), stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, errors.CodeTimeout, message)
	case stderrors.Is(err, repository.ErrNoteNotFound), stderrors.Is(err, repository.ErrTagNotFound):
		return errors.Wrap(err, errors.CodeNotFound, message)
	case stderrors.Is(err, repository.ErrNoteExists), stderrors.Is(err, repository.ErrTagExists):
		return errors.Wrap(err, errors.CodeAlreadyExists, message)
	default:
		return gateway.Wrap(err, errors.CodeDatabase, message)
	}
}
