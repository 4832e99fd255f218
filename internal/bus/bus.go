// Package bus is the process-wide notification channel between the caches.
//
// Delivery is synchronous: Publish returns only after every subscriber has
// seen the event, in the order the subscribers registered. A handler that
// publishes with the context it was given has its event queued behind the
// current dispatch instead of recursing.
package bus

import (
	"context"
	"fmt"
	"sync"
	"time"

	"inkdown-client/internal/domain"

	"github.com/rs/zerolog"
)

type Kind string

const (
	NoteCreated            Kind = "note_created"
	NoteUpdated            Kind = "note_updated"
	NoteTrashed            Kind = "note_trashed"
	NoteRestored           Kind = "note_restored"
	NotePermanentlyDeleted Kind = "note_permanently_deleted"
	TagsChanged            Kind = "tags_changed"
)

// Event carries the affected note as it looked right after the change.
// TagsChanged has no payload.
type Event struct {
	Kind   Kind                 `json:"kind"`
	Note   *domain.NoteWithTags `json:"note,omitempty"`
	NoteID string               `json:"note_id,omitempty"`
	Source string               `json:"source,omitempty"`
	At     time.Time            `json:"at"`
}

func NoteEvent(kind Kind, source string, note *domain.NoteWithTags) Event {
	ev := Event{Kind: kind, Source: source, At: time.Now()}
	if note != nil {
		c := note.Clone()
		ev.Note = &c
		ev.NoteID = note.ID
	}
	return ev
}

func TagsChangedEvent(source string) Event {
	return Event{Kind: TagsChanged, Source: source, At: time.Now()}
}

type Handler func(ctx context.Context, ev Event) error

// Failure records a handler that returned an error or panicked.
type Failure struct {
	Subscriber string
	Event      Event
	Err        error
}

type subscription struct {
	name    string
	kinds   map[Kind]bool
	handler Handler
}

func (s subscription) wants(k Kind) bool {
	return len(s.kinds) == 0 || s.kinds[k]
}

type dispatchKey struct{}

type dispatch struct {
	bus  *Bus
	done bool
}

type Bus struct {
	logger zerolog.Logger

	// held for a whole dispatch, queue drain included
	publishMu sync.Mutex

	subsMu sync.RWMutex
	subs   []subscription

	queueMu sync.Mutex
	queue   []Event

	failMu   sync.Mutex
	failures []Failure
}

func New(logger zerolog.Logger) *Bus {
	return &Bus{
		logger: logger.With().Str("component", "bus").Logger(),
	}
}

// Subscribe registers handler for the given kinds, or for every kind when
// none are given. Subscriptions live as long as the bus.
func (b *Bus) Subscribe(name string, handler Handler, kinds ...Kind) {
	sub := subscription{name: name, handler: handler}
	if len(kinds) > 0 {
		sub.kinds = make(map[Kind]bool, len(kinds))
		for _, k := range kinds {
			sub.kinds[k] = true
		}
	}

	b.subsMu.Lock()
	b.subs = append(b.subs, sub)
	b.subsMu.Unlock()
}

func (b *Bus) Publish(ctx context.Context, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}

	if d, ok := ctx.Value(dispatchKey{}).(*dispatch); ok && d.bus == b {
		b.queueMu.Lock()
		if !d.done {
			b.queue = append(b.queue, ev)
			b.queueMu.Unlock()
			return
		}
		b.queueMu.Unlock()
	}

	b.publishMu.Lock()
	defer b.publishMu.Unlock()

	d := &dispatch{bus: b}
	dctx := context.WithValue(ctx, dispatchKey{}, d)

	b.deliver(dctx, ev)

	for {
		b.queueMu.Lock()
		if len(b.queue) == 0 {
			d.done = true
			b.queueMu.Unlock()
			return
		}
		next := b.queue[0]
		b.queue = b.queue[1:]
		b.queueMu.Unlock()

		b.deliver(dctx, next)
	}
}

func (b *Bus) deliver(ctx context.Context, ev Event) {
	b.subsMu.RLock()
	subs := make([]subscription, len(b.subs))
	copy(subs, b.subs)
	b.subsMu.RUnlock()

	for _, sub := range subs {
		if !sub.wants(ev.Kind) {
			continue
		}
		if err := b.call(ctx, sub, ev); err != nil {
			b.logger.Error().
				Err(err).
				Str("subscriber", sub.name).
				Str("kind", string(ev.Kind)).
				Str("note_id", ev.NoteID).
				Msg("subscriber failed")

			b.failMu.Lock()
			b.failures = append(b.failures, Failure{Subscriber: sub.name, Event: ev, Err: err})
			b.failMu.Unlock()
		}
	}
}

func (b *Bus) call(ctx context.Context, sub subscription, ev Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in handler: %v", r)
		}
	}()
	return sub.handler(ctx, ev)
}

// Failures returns the handler failures seen so far.
func (b *Bus) Failures() []Failure {
	b.failMu.Lock()
	defer b.failMu.Unlock()

	out := make([]Failure, len(b.failures))
	copy(out, b.failures)
	return out
}
