package bus

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"inkdown-client/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestPublish_DeliversInSubscriptionOrder(t *testing.T) {
	b := New(zerolog.Nop())

	var got []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		b.Subscribe(name, func(ctx context.Context, ev Event) error {
			got = append(got, name)
			return nil
		})
	}

	b.Publish(context.Background(), TagsChangedEvent("test"))

	assert.Equal(t, []string{"first", "second", "third"}, got)
}

func TestPublish_FiltersByKind(t *testing.T) {
	b := New(zerolog.Nop())

	var kinds []Kind
	b.Subscribe("trash", func(ctx context.Context, ev Event) error {
		kinds = append(kinds, ev.Kind)
		return nil
	}, NoteTrashed, NoteRestored)

	ctx := context.Background()
	b.Publish(ctx, NoteEvent(NoteCreated, "test", nil))
	b.Publish(ctx, NoteEvent(NoteTrashed, "test", nil))
	b.Publish(ctx, TagsChangedEvent("test"))
	b.Publish(ctx, NoteEvent(NoteRestored, "test", nil))

	assert.Equal(t, []Kind{NoteTrashed, NoteRestored}, kinds)
}

func TestPublish_IsolatesFailingHandlers(t *testing.T) {
	b := New(zerolog.Nop())

	reached := false
	b.Subscribe("panics", func(ctx context.Context, ev Event) error {
		panic("boom")
	})
	b.Subscribe("errors", func(ctx context.Context, ev Event) error {
		return errors.New("refused")
	})
	b.Subscribe("ok", func(ctx context.Context, ev Event) error {
		reached = true
		return nil
	})

	b.Publish(context.Background(), TagsChangedEvent("test"))

	assert.True(t, reached)
	failures := b.Failures()
	require.Len(t, failures, 2)
	assert.Equal(t, "panics", failures[0].Subscriber)
	assert.Contains(t, failures[0].Err.Error(), "boom")
	assert.Equal(t, "errors", failures[1].Subscriber)
}

func TestPublish_ReentrantPublishRunsAfterDispatch(t *testing.T) {
	b := New(zerolog.Nop())

	var trace []string
	b.Subscribe("a", func(ctx context.Context, ev Event) error {
		trace = append(trace, "a:"+string(ev.Kind))
		if ev.Kind == NoteCreated {
			b.Publish(ctx, TagsChangedEvent("a"))
		}
		return nil
	})
	b.Subscribe("b", func(ctx context.Context, ev Event) error {
		trace = append(trace, "b:"+string(ev.Kind))
		return nil
	})

	b.Publish(context.Background(), NoteEvent(NoteCreated, "test", nil))

	assert.Equal(t, []string{
		"a:note_created",
		"b:note_created",
		"a:tags_changed",
		"b:tags_changed",
	}, trace)
}

func TestPublish_SelfRepublishIsBounded(t *testing.T) {
	b := New(zerolog.Nop())

	count := 0
	b.Subscribe("loop", func(ctx context.Context, ev Event) error {
		count++
		if count < 100 {
			b.Publish(ctx, ev)
		}
		return nil
	})

	b.Publish(context.Background(), TagsChangedEvent("test"))

	assert.Equal(t, 100, count)
}

func TestPublish_CopiesNotePayload(t *testing.T) {
	b := New(zerolog.Nop())

	note := &domain.NoteWithTags{Note: domain.Note{ID: "n1", Title: "before", TagIDs: []string{"t1"}}}

	var seen *domain.NoteWithTags
	b.Subscribe("s", func(ctx context.Context, ev Event) error {
		seen = ev.Note
		return nil
	})

	ev := NoteEvent(NoteUpdated, "test", note)
	note.Title = "after"
	note.TagIDs[0] = "t2"
	b.Publish(context.Background(), ev)

	require.NotNil(t, seen)
	assert.Equal(t, "n1", ev.NoteID)
	assert.Equal(t, "before", seen.Title)
	assert.Equal(t, []string{"t1"}, seen.TagIDs)
}

func TestPublish_ConcurrentPublishersAreSerialized(t *testing.T) {
	b := New(zerolog.Nop())

	var mu sync.Mutex
	active := 0
	overlap := false
	total := 0
	b.Subscribe("s", func(ctx context.Context, ev Event) error {
		mu.Lock()
		active++
		if active > 1 {
			overlap = true
		}
		mu.Unlock()

		mu.Lock()
		active--
		total++
		mu.Unlock()
		return nil
	})

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Publish(context.Background(), TagsChangedEvent("test"))
		}()
	}
	wg.Wait()

	assert.False(t, overlap)
	assert.Equal(t, 20, total)
}

func TestPublish_OrderProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		b := New(zerolog.Nop())

		subscribers := rapid.IntRange(1, 8).Draw(t, "subscribers")
		failing := rapid.SliceOfN(rapid.Bool(), subscribers, subscribers).Draw(t, "failing")
		events := rapid.IntRange(1, 10).Draw(t, "events")

		var got []string
		for i := 0; i < subscribers; i++ {
			i := i
			b.Subscribe(fmt.Sprintf("s%d", i), func(ctx context.Context, ev Event) error {
				got = append(got, fmt.Sprintf("%s/%d", ev.Source, i))
				if failing[i] {
					panic("fail")
				}
				return nil
			})
		}

		var want []string
		for e := 0; e < events; e++ {
			src := fmt.Sprintf("e%d", e)
			b.Publish(context.Background(), TagsChangedEvent(src))
			for i := 0; i < subscribers; i++ {
				want = append(want, fmt.Sprintf("%s/%d", src, i))
			}
		}

		if len(got) != len(want) {
			t.Fatalf("expected %d deliveries, got %d", len(want), len(got))
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("delivery %d: expected %s, got %s", i, want[i], got[i])
			}
		}
	})
}
