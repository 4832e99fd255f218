package service

import (
	"context"
	"testing"

	"inkdown-client/internal/domain"
	"inkdown-client/internal/gateway"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTagService_Create(t *testing.T) {
	_, tags, _ := newTestServices()
	ctx := context.Background()

	tag, err := tags.Create(ctx, domain.CreateTagRequest{Name: "  Work  ", Color: "#ff0000"})
	require.NoError(t, err)
	assert.Equal(t, "Work", tag.Name)
	assert.NotEmpty(t, tag.ID)

	_, err = tags.Create(ctx, domain.CreateTagRequest{Name: "work"})
	assert.True(t, gateway.IsValidation(err), "duplicate name should fail validation, got %v", err)

	_, err = tags.Create(ctx, domain.CreateTagRequest{Name: "   "})
	assert.True(t, gateway.IsValidation(err))
}

func TestTagService_ListCountsActiveNotesOnly(t *testing.T) {
	notes, tags, _ := newTestServices()
	ctx := context.Background()

	_, err := notes.Create(ctx, domain.CreateNoteRequest{Title: strPtr("a"), Tags: []string{"home"}})
	require.NoError(t, err)
	trashed, err := notes.Create(ctx, domain.CreateNoteRequest{Title: strPtr("b"), Tags: []string{"home", "Archive"}})
	require.NoError(t, err)
	require.NoError(t, notes.Delete(ctx, trashed.ID))

	list, err := tags.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)

	assert.Equal(t, "Archive", list[0].Name)
	assert.Equal(t, 0, list[0].NoteCount)
	assert.Equal(t, "home", list[1].Name)
	assert.Equal(t, 1, list[1].NoteCount)
}

func TestTagService_Rename(t *testing.T) {
	_, tags, _ := newTestServices()
	ctx := context.Background()

	work, _ := tags.Create(ctx, domain.CreateTagRequest{Name: "work"})
	tags.Create(ctx, domain.CreateTagRequest{Name: "home"})

	renamed, err := tags.Rename(ctx, domain.RenameTagRequest{ID: work.ID, Name: "Work"})
	require.NoError(t, err)
	assert.Equal(t, "Work", renamed.Name)

	_, err = tags.Rename(ctx, domain.RenameTagRequest{ID: work.ID, Name: "HOME"})
	assert.True(t, gateway.IsValidation(err))

	_, err = tags.Rename(ctx, domain.RenameTagRequest{ID: "missing", Name: "x"})
	assert.True(t, gateway.IsNotFound(err))
}

func TestTagService_DeleteUnlinksNotes(t *testing.T) {
	notes, tags, _ := newTestServices()
	ctx := context.Background()

	note, _ := notes.Create(ctx, domain.CreateNoteRequest{Title: strPtr("a"), Tags: []string{"home"}})
	tagID := note.Tags[0].ID

	removed, err := tags.Delete(ctx, tagID)
	require.NoError(t, err)
	assert.True(t, removed)

	got, err := notes.GetByID(ctx, note.ID)
	require.NoError(t, err)
	assert.Empty(t, got.TagIDs)
	assert.Empty(t, got.Tags)

	removed, err = tags.Delete(ctx, tagID)
	require.NoError(t, err)
	assert.False(t, removed)
}

func TestTagService_AddAndRemove(t *testing.T) {
	notes, tags, _ := newTestServices()
	ctx := context.Background()

	note, _ := notes.Create(ctx, domain.CreateNoteRequest{Title: strPtr("a")})

	tag, err := tags.AddToNote(ctx, domain.NoteTagRequest{NoteID: note.ID, TagName: "Home"})
	require.NoError(t, err)
	assert.Equal(t, 1, tag.NoteCount)

	again, err := tags.AddToNote(ctx, domain.NoteTagRequest{NoteID: note.ID, TagName: "home"})
	require.NoError(t, err)
	assert.Equal(t, tag.ID, again.ID)
	assert.Equal(t, 1, again.NoteCount)

	_, err = tags.AddToNote(ctx, domain.NoteTagRequest{NoteID: "missing", TagName: "home"})
	assert.True(t, gateway.IsNotFound(err))

	ok, err := tags.RemoveFromNote(ctx, note.ID, tag.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = tags.RemoveFromNote(ctx, note.ID, tag.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	// the tag survives until cleanup
	list, _ := tags.List(ctx)
	assert.Len(t, list, 1)
}

func TestTagService_CleanupUnused(t *testing.T) {
	notes, tags, _ := newTestServices()
	ctx := context.Background()

	notes.Create(ctx, domain.CreateNoteRequest{Title: strPtr("a"), Tags: []string{"keep"}})
	trashed, _ := notes.Create(ctx, domain.CreateNoteRequest{Title: strPtr("b"), Tags: []string{"stale"}})
	notes.Delete(ctx, trashed.ID)
	tags.Create(ctx, domain.CreateTagRequest{Name: "orphan"})

	removed, err := tags.CleanupUnused(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	list, _ := tags.List(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, "keep", list[0].Name)

	got, _ := notes.GetByID(ctx, trashed.ID)
	assert.Empty(t, got.TagIDs)

	removed, err = tags.CleanupUnused(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestTagService_Search(t *testing.T) {
	_, tags, _ := newTestServices()
	ctx := context.Background()

	tags.Create(ctx, domain.CreateTagRequest{Name: "Homework"})
	tags.Create(ctx, domain.CreateTagRequest{Name: "home"})
	tags.Create(ctx, domain.CreateTagRequest{Name: "work"})

	found, err := tags.Search(ctx, "HOME")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, _ = tags.Search(ctx, "")
	assert.Len(t, found, 3)
}

func TestBackend_Validation(t *testing.T) {
	notes, tags, _ := newTestServices()
	backend := NewBackend(notes, tags)
	ctx := context.Background()

	_, err := backend.CreateTag(ctx, domain.CreateTagRequest{Name: "x", Color: "red"})
	assert.True(t, gateway.IsValidation(err))

	err = backend.SaveNote(ctx, domain.SaveNoteRequest{})
	assert.True(t, gateway.IsValidation(err))

	err = backend.DeleteNote(ctx, "")
	assert.True(t, gateway.IsValidation(err))

	note, err := backend.CreateNote(ctx, domain.CreateNoteRequest{Title: strPtr("ok")})
	require.NoError(t, err)
	assert.Equal(t, "ok", note.Title)
}
