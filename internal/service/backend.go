package service

import (
	"context"
	"strings"

	"inkdown-client/internal/domain"
	"inkdown-client/internal/gateway"

	"github.com/go-playground/validator/v10"
	"github.com/jmgilman/go/errors"
)

// Backend serves the gateway operations from the local repositories.
type Backend struct {
	notes    *NoteService
	tags     *TagService
	validate *validator.Validate
}

var _ gateway.Backend = (*Backend)(nil)

func NewBackend(notes *NoteService, tags *TagService) *Backend {
	return &Backend{
		notes:    notes,
		tags:     tags,
		validate: validator.New(),
	}
}

func (b *Backend) check(req interface{}) error {
	if err := b.validate.Struct(req); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "invalid request")
	}
	return nil
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return gateway.Invalid("id is required")
	}
	return nil
}

func (b *Backend) ListNotes(ctx context.Context, req domain.ListNotesRequest) ([]domain.NoteWithTags, error) {
	return b.notes.List(ctx, req.IncludeTrash)
}

func (b *Backend) GetNote(ctx context.Context, id string) (*domain.NoteWithTags, error) {
	if err := requireID(id); err != nil {
		return nil, err
	}
	return b.notes.GetByID(ctx, id)
}

func (b *Backend) CreateNote(ctx context.Context, req domain.CreateNoteRequest) (*domain.NoteWithTags, error) {
	if err := b.check(req); err != nil {
		return nil, err
	}
	return b.notes.Create(ctx, req)
}

func (b *Backend) SaveNote(ctx context.Context, req domain.SaveNoteRequest) error {
	if err := b.check(req); err != nil {
		return err
	}
	return b.notes.Save(ctx, req)
}

func (b *Backend) DeleteNote(ctx context.Context, id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	return b.notes.Delete(ctx, id)
}

func (b *Backend) PermanentlyDeleteNote(ctx context.Context, id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	return b.notes.PermanentlyDelete(ctx, id)
}

func (b *Backend) RestoreNote(ctx context.Context, id string) error {
	if err := requireID(id); err != nil {
		return err
	}
	return b.notes.Restore(ctx, id)
}

func (b *Backend) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	if err := requireID(id); err != nil {
		return false, err
	}
	return b.notes.ToggleFavorite(ctx, id)
}

func (b *Backend) SearchNotes(ctx context.Context, req domain.SearchRequest) ([]domain.NoteWithTags, error) {
	return b.notes.Search(ctx, req)
}

func (b *Backend) ListTags(ctx context.Context) ([]domain.Tag, error) {
	return b.tags.List(ctx)
}

func (b *Backend) CreateTag(ctx context.Context, req domain.CreateTagRequest) (*domain.Tag, error) {
	if err := b.check(req); err != nil {
		return nil, err
	}
	return b.tags.Create(ctx, req)
}

func (b *Backend) RenameTag(ctx context.Context, req domain.RenameTagRequest) (*domain.Tag, error) {
	if err := b.check(req); err != nil {
		return nil, err
	}
	return b.tags.Rename(ctx, req)
}

func (b *Backend) DeleteTag(ctx context.Context, id string) (bool, error) {
	if err := requireID(id); err != nil {
		return false, err
	}
	return b.tags.Delete(ctx, id)
}

func (b *Backend) AddTagToNote(ctx context.Context, req domain.NoteTagRequest) (*domain.Tag, error) {
	if err := b.check(req); err != nil {
		return nil, err
	}
	return b.tags.AddToNote(ctx, req)
}

func (b *Backend) RemoveTagFromNote(ctx context.Context, noteID, tagID string) (bool, error) {
	if err := requireID(noteID); err != nil {
		return false, err
	}
	if err := requireID(tagID); err != nil {
		return false, err
	}
	return b.tags.RemoveFromNote(ctx, noteID, tagID)
}

func (b *Backend) CleanupUnusedTags(ctx context.Context) (int, error) {
	return b.tags.CleanupUnused(ctx)
}

func (b *Backend) SearchTags(ctx context.Context, query string) ([]domain.Tag, error) {
	return b.tags.Search(ctx, query)
}
