package cache

import (
	"context"
	"sync"
	"time"

	"inkdown-client/internal/bus"
	"inkdown-client/internal/domain"
	"inkdown-client/internal/gateway"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// SourceNotes tags events published by the note cache.
const SourceNotes = "notes"

// NoteCache mirrors the note list and the single open note. The mutex is
// never held across a backend call.
type NoteCache struct {
	backend gateway.Backend
	bus     *bus.Bus
	logger  zerolog.Logger

	mu           sync.RWMutex
	notes        []domain.NoteWithTags
	open         *domain.NoteWithTags
	includeTrash bool
	inflight     int
	err          error
	gone         map[string]struct{}
	issued       uint64
	applied      uint64

	bg errgroup.Group
}

func NewNoteCache(backend gateway.Backend, b *bus.Bus, logger zerolog.Logger) *NoteCache {
	c := &NoteCache{
		backend: backend,
		bus:     b,
		logger:  logger.With().Str("component", "note_cache").Logger(),
		gone:    make(map[string]struct{}),
	}

	b.Subscribe("note_cache", c.onTagsChanged, bus.TagsChanged)

	return c
}

func (c *NoteCache) onTagsChanged(ctx context.Context, ev bus.Event) error {
	if ev.Source == SourceNotes {
		return nil
	}
	c.reloadInBackground(ctx)
	return nil
}

func (c *NoteCache) reloadInBackground(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	includeTrash := c.IncludeTrash()
	c.bg.Go(func() error {
		c.LoadAll(ctx, includeTrash)
		return nil
	})
}

// LoadAll replaces the list with the backend's current notes. Failures land
// in the error slot and leave the previous list in place. When loads
// overlap, only the most recently issued one is applied.
func (c *NoteCache) LoadAll(ctx context.Context, includeTrash bool) {
	c.mu.Lock()
	c.issued++
	seq := c.issued
	c.inflight++
	c.includeTrash = includeTrash
	c.err = nil
	c.mu.Unlock()

	notes, err := c.backend.ListNotes(ctx, domain.ListNotesRequest{IncludeTrash: includeTrash})

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--

	if seq < c.applied {
		c.logger.Debug().Uint64("seq", seq).Uint64("applied", c.applied).Msg("discarding stale note list")
		return
	}
	if err != nil {
		c.err = err
		c.logger.Warn().Err(err).Bool("include_trash", includeTrash).Msg("failed to load notes")
		return
	}

	c.applied = seq
	c.notes = c.visible(notes)
}

// LoadContent fetches one note with its content into the open slot. On
// failure the open slot is left as it was.
func (c *NoteCache) LoadContent(ctx context.Context, id string) error {
	if c.isGone(id) {
		err := gateway.NotFound("note %s not found", id)
		c.fail(err)
		return err
	}

	note, err := c.backend.GetNote(ctx, id)
	if err != nil {
		c.fail(err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.gone[id]; ok {
		err := gateway.NotFound("note %s not found", id)
		c.err = err
		return err
	}
	open := note.Clone()
	c.open = &open
	return nil
}

func (c *NoteCache) Create(ctx context.Context, title, content *string, tags []string) (*domain.NoteWithTags, error) {
	note, err := c.backend.CreateNote(ctx, domain.CreateNoteRequest{
		Title:   title,
		Content: content,
		Tags:    tags,
	})
	if err != nil {
		c.fail(err)
		return nil, err
	}

	c.mu.Lock()
	open := note.Clone()
	c.open = &open
	c.mu.Unlock()

	c.refresh(ctx)
	c.bus.Publish(ctx, bus.NoteEvent(bus.NoteCreated, SourceNotes, note))

	created := note.Clone()
	return &created, nil
}

// Save persists title and content. The open note is patched right away; the
// list picks up the backend's version on the following reload.
func (c *NoteCache) Save(ctx context.Context, id, title, content string) error {
	err := c.backend.SaveNote(ctx, domain.SaveNoteRequest{ID: id, Title: title, Content: content})
	if err != nil {
		c.fail(err)
		return err
	}

	c.mu.Lock()
	if c.open != nil && c.open.ID == id {
		c.open.Title = title
		c.open.Content = content
		c.open.ModifiedAt = time.Now()
	}
	c.mu.Unlock()

	c.refresh(ctx)
	c.bus.Publish(ctx, bus.NoteEvent(bus.NoteUpdated, SourceNotes, c.current(id)))
	return nil
}

// Delete moves the note to the trash.
func (c *NoteCache) Delete(ctx context.Context, id string) error {
	before := c.current(id)

	if err := c.backend.DeleteNote(ctx, id); err != nil {
		c.fail(err)
		return err
	}

	c.mu.Lock()
	c.closeIfOpen(id)
	c.mu.Unlock()

	c.refresh(ctx)

	after := c.current(id)
	if after == nil && before != nil {
		before.IsTrashed = true
		after = before
	}
	c.publish(ctx, bus.NoteTrashed, id, after)
	return nil
}

// PermanentlyDelete removes a trashed note for good. The id is remembered so
// that no later load can bring it back.
func (c *NoteCache) PermanentlyDelete(ctx context.Context, id string) error {
	before := c.current(id)

	if err := c.backend.PermanentlyDeleteNote(ctx, id); err != nil {
		c.fail(err)
		return err
	}

	c.mu.Lock()
	c.gone[id] = struct{}{}
	c.closeIfOpen(id)
	c.notes = c.visible(c.notes)
	c.mu.Unlock()

	c.refresh(ctx)

	if before != nil {
		before.IsTrashed = true
		before.IsDeleted = true
	}
	c.publish(ctx, bus.NotePermanentlyDeleted, id, before)
	return nil
}

// Restore takes the note out of the trash and puts its fresh copy at the top
// of the list, or in place when it is already listed.
func (c *NoteCache) Restore(ctx context.Context, id string) error {
	if err := c.backend.RestoreNote(ctx, id); err != nil {
		c.fail(err)
		return err
	}

	note, err := c.backend.GetNote(ctx, id)
	if err != nil {
		c.logger.Warn().Err(err).Str("note_id", id).Msg("failed to fetch restored note")
	} else {
		c.mu.Lock()
		c.upsertFront(*note)
		c.mu.Unlock()
	}

	c.refresh(ctx)

	restored := c.current(id)
	if restored == nil && note != nil {
		restored = note
	}
	c.publish(ctx, bus.NoteRestored, id, restored)
	return nil
}

func (c *NoteCache) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	favorite, err := c.backend.ToggleFavorite(ctx, id)
	if err != nil {
		c.fail(err)
		return false, err
	}

	c.mu.Lock()
	if c.open != nil && c.open.ID == id {
		c.open.IsFavorite = favorite
	}
	for i := range c.notes {
		if c.notes[i].ID == id {
			c.notes[i].IsFavorite = favorite
		}
	}
	c.mu.Unlock()

	c.refresh(ctx)
	c.publish(ctx, bus.NoteUpdated, id, c.current(id))
	return favorite, nil
}

// Search queries the backend without touching the cached list.
func (c *NoteCache) Search(ctx context.Context, query, tagFilter string) ([]domain.NoteWithTags, error) {
	results, err := c.backend.SearchNotes(ctx, domain.SearchRequest{Query: query, TagFilter: tagFilter})
	if err != nil {
		c.fail(err)
		return nil, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.visible(results), nil
}

func (c *NoteCache) Notes() []domain.NoteWithTags {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]domain.NoteWithTags, len(c.notes))
	for i, n := range c.notes {
		out[i] = n.Clone()
	}
	return out
}

func (c *NoteCache) OpenNote() *domain.NoteWithTags {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.open == nil {
		return nil
	}
	open := c.open.Clone()
	return &open
}

func (c *NoteCache) CloseNote() {
	c.mu.Lock()
	c.open = nil
	c.mu.Unlock()
}

func (c *NoteCache) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inflight > 0
}

func (c *NoteCache) IncludeTrash() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.includeTrash
}

func (c *NoteCache) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

// ErrMessage is the text shown in the error banner.
func (c *NoteCache) ErrMessage() string {
	return gateway.Message(c.Err())
}

func (c *NoteCache) ClearError() {
	c.mu.Lock()
	c.err = nil
	c.mu.Unlock()
}

// Wait blocks until background reloads scheduled by events have finished.
func (c *NoteCache) Wait() error {
	return c.bg.Wait()
}

func (c *NoteCache) refresh(ctx context.Context) {
	c.LoadAll(ctx, c.IncludeTrash())
}

func (c *NoteCache) publish(ctx context.Context, kind bus.Kind, id string, note *domain.NoteWithTags) {
	ev := bus.NoteEvent(kind, SourceNotes, note)
	ev.NoteID = id
	c.bus.Publish(ctx, ev)
}

func (c *NoteCache) fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.logger.Warn().Err(err).Str("kind", string(gateway.KindOf(err))).Msg("note operation failed")
}

// current returns the freshest local copy of a note: the open note when it
// matches, else the list entry.
func (c *NoteCache) current(id string) *domain.NoteWithTags {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.open != nil && c.open.ID == id {
		n := c.open.Clone()
		return &n
	}
	for _, n := range c.notes {
		if n.ID == id {
			n = n.Clone()
			return &n
		}
	}
	return nil
}

func (c *NoteCache) isGone(id string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.gone[id]
	return ok
}

// callers hold c.mu
func (c *NoteCache) closeIfOpen(id string) {
	if c.open != nil && c.open.ID == id {
		c.open = nil
	}
}

// callers hold c.mu
func (c *NoteCache) upsertFront(note domain.NoteWithTags) {
	for i := range c.notes {
		if c.notes[i].ID == note.ID {
			c.notes[i] = note.Clone()
			return
		}
	}
	c.notes = append([]domain.NoteWithTags{note.Clone()}, c.notes...)
}

// callers hold c.mu
func (c *NoteCache) visible(notes []domain.NoteWithTags) []domain.NoteWithTags {
	out := make([]domain.NoteWithTags, 0, len(notes))
	for _, n := range notes {
		if _, ok := c.gone[n.ID]; ok {
			continue
		}
		out = append(out, n.Clone())
	}
	return out
}
