package cache

import (
	"context"
	"sync"

	"inkdown-client/internal/bus"
	"inkdown-client/internal/domain"
	"inkdown-client/internal/gateway"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// SourceTags tags events published by the tag cache.
const SourceTags = "tags"

// TagCache holds the known tags and their note counts. Counts are never
// adjusted locally; every mutation that can move them reloads the list.
type TagCache struct {
	backend gateway.Backend
	bus     *bus.Bus
	logger  zerolog.Logger

	mu       sync.RWMutex
	tags     []domain.Tag
	inflight int
	err      error
	issued   uint64
	applied  uint64

	bg errgroup.Group
}

func NewTagCache(backend gateway.Backend, b *bus.Bus, logger zerolog.Logger) *TagCache {
	c := &TagCache{
		backend: backend,
		bus:     b,
		logger:  logger.With().Str("component", "tag_cache").Logger(),
	}

	b.Subscribe("tag_cache", c.onEvent,
		bus.TagsChanged,
		bus.NoteCreated,
		bus.NoteTrashed,
		bus.NoteRestored,
		bus.NotePermanentlyDeleted,
	)

	return c
}

func (c *TagCache) onEvent(ctx context.Context, ev bus.Event) error {
	if ev.Kind == bus.TagsChanged && ev.Source == SourceTags {
		return nil
	}

	ctx = context.WithoutCancel(ctx)
	c.bg.Go(func() error {
		c.LoadAll(ctx)
		return nil
	})
	return nil
}

func (c *TagCache) LoadAll(ctx context.Context) {
	c.mu.Lock()
	c.issued++
	seq := c.issued
	c.inflight++
	c.err = nil
	c.mu.Unlock()

	tags, err := c.backend.ListTags(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--

	if seq < c.applied {
		return
	}
	if err != nil {
		c.err = err
		c.logger.Warn().Err(err).Msg("failed to load tags")
		return
	}

	c.applied = seq
	c.tags = append([]domain.Tag(nil), tags...)
}

func (c *TagCache) Create(ctx context.Context, name, color string) (*domain.Tag, error) {
	tag, err := c.backend.CreateTag(ctx, domain.CreateTagRequest{Name: name, Color: color})
	if err != nil {
		c.fail(err)
		return nil, err
	}

	c.changed(ctx)
	return tag, nil
}

func (c *TagCache) Rename(ctx context.Context, id, name string) (*domain.Tag, error) {
	tag, err := c.backend.RenameTag(ctx, domain.RenameTagRequest{ID: id, Name: name})
	if err != nil {
		c.fail(err)
		return nil, err
	}

	c.changed(ctx)
	return tag, nil
}

func (c *TagCache) Delete(ctx context.Context, id string) (bool, error) {
	ok, err := c.backend.DeleteTag(ctx, id)
	if err != nil {
		c.fail(err)
		return false, err
	}

	c.changed(ctx)
	return ok, nil
}

func (c *TagCache) AddToNote(ctx context.Context, noteID, tagName string) (*domain.Tag, error) {
	tag, err := c.backend.AddTagToNote(ctx, domain.NoteTagRequest{NoteID: noteID, TagName: tagName})
	if err != nil {
		c.fail(err)
		return nil, err
	}

	c.changed(ctx)
	return tag, nil
}

func (c *TagCache) RemoveFromNote(ctx context.Context, noteID, tagID string) (bool, error) {
	ok, err := c.backend.RemoveTagFromNote(ctx, noteID, tagID)
	if err != nil {
		c.fail(err)
		return false, err
	}

	c.changed(ctx)
	return ok, nil
}

// CleanupUnused asks the backend to drop tags without notes and returns how
// many went away.
func (c *TagCache) CleanupUnused(ctx context.Context) (int, error) {
	removed, err := c.backend.CleanupUnusedTags(ctx)
	if err != nil {
		c.fail(err)
		return 0, err
	}

	c.changed(ctx)
	return removed, nil
}

func (c *TagCache) Search(ctx context.Context, query string) ([]domain.Tag, error) {
	tags, err := c.backend.SearchTags(ctx, query)
	if err != nil {
		c.fail(err)
		return nil, err
	}
	return tags, nil
}

func (c *TagCache) Tags() []domain.Tag {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]domain.Tag(nil), c.tags...)
}

func (c *TagCache) ByID(id string) (domain.Tag, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, t := range c.tags {
		if t.ID == id {
			return t, true
		}
	}
	return domain.Tag{}, false
}

// ByName looks a tag up ignoring case.
func (c *TagCache) ByName(name string) (domain.Tag, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for _, t := range c.tags {
		if t.Matches(name) {
			return t, true
		}
	}
	return domain.Tag{}, false
}

func (c *TagCache) Loading() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.inflight > 0
}

func (c *TagCache) Err() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.err
}

func (c *TagCache) ErrMessage() string {
	return gateway.Message(c.Err())
}

func (c *TagCache) ClearError() {
	c.mu.Lock()
	c.err = nil
	c.mu.Unlock()
}

func (c *TagCache) Wait() error {
	return c.bg.Wait()
}

// changed reloads the tags and tells the other caches about it.
func (c *TagCache) changed(ctx context.Context) {
	c.LoadAll(ctx)
	c.bus.Publish(ctx, bus.TagsChangedEvent(SourceTags))
}

func (c *TagCache) fail(err error) {
	c.mu.Lock()
	c.err = err
	c.mu.Unlock()
	c.logger.Warn().Err(err).Str("kind", string(gateway.KindOf(err))).Msg("tag operation failed")
}
