// Package gateway defines the boundary between the client caches and the
// notes backend. Every method is a single remote call: no retries, no
// caching, no local state.
package gateway

import (
	"context"

	"inkdown-client/internal/domain"
)

type Backend interface {
	ListNotes(ctx context.Context, req domain.ListNotesRequest) ([]domain.NoteWithTags, error)
	GetNote(ctx context.Context, id string) (*domain.NoteWithTags, error)
	CreateNote(ctx context.Context, req domain.CreateNoteRequest) (*domain.NoteWithTags, error)
	SaveNote(ctx context.Context, req domain.SaveNoteRequest) error
	DeleteNote(ctx context.Context, id string) error
	PermanentlyDeleteNote(ctx context.Context, id string) error
	RestoreNote(ctx context.Context, id string) error
	ToggleFavorite(ctx context.Context, id string) (bool, error)
	SearchNotes(ctx context.Context, req domain.SearchRequest) ([]domain.NoteWithTags, error)

	ListTags(ctx context.Context) ([]domain.Tag, error)
	CreateTag(ctx context.Context, req domain.CreateTagRequest) (*domain.Tag, error)
	RenameTag(ctx context.Context, req domain.RenameTagRequest) (*domain.Tag, error)
	DeleteTag(ctx context.Context, id string) (bool, error)
	AddTagToNote(ctx context.Context, req domain.NoteTagRequest) (*domain.Tag, error)
	RemoveTagFromNote(ctx context.Context, noteID, tagID string) (bool, error)
	CleanupUnusedTags(ctx context.Context) (int, error)
	SearchTags(ctx context.Context, query string) ([]domain.Tag, error)
}
