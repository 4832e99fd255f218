package cache

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"inkdown-client/internal/bus"
	"inkdown-client/internal/domain"
	"inkdown-client/internal/gateway"
	"inkdown-client/internal/repository"
	"inkdown-client/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// fakeBackend wraps a real sqlite backed gateway and lets tests hold list
// responses or make the backend unreachable.
type fakeBackend struct {
	gateway.Backend

	mu      sync.Mutex
	calls   int
	gates   map[int]chan struct{}
	started chan int
	down    error
}

func (f *fakeBackend) ListNotes(ctx context.Context, req domain.ListNotesRequest) ([]domain.NoteWithTags, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	gate := f.gates[n]
	started := f.started
	down := f.down
	f.mu.Unlock()

	if down != nil {
		return nil, down
	}

	// the response reflects backend state at issue time
	notes, err := f.Backend.ListNotes(ctx, req)

	if gate != nil {
		started <- n
		<-gate
	}
	return notes, err
}

func (f *fakeBackend) CreateNote(ctx context.Context, req domain.CreateNoteRequest) (*domain.NoteWithTags, error) {
	if err := f.unreachable(); err != nil {
		return nil, err
	}
	return f.Backend.CreateNote(ctx, req)
}

func (f *fakeBackend) ListTags(ctx context.Context) ([]domain.Tag, error) {
	if err := f.unreachable(); err != nil {
		return nil, err
	}
	return f.Backend.ListTags(ctx)
}

func (f *fakeBackend) unreachable() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.down
}

func (f *fakeBackend) setDown(err error) {
	f.mu.Lock()
	f.down = err
	f.mu.Unlock()
}

// hold makes the n-th ListNotes call from now on block until the returned
// channel is closed. Each held call reports on started once its response is
// ready.
func (f *fakeBackend) hold(n int) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.gates == nil {
		f.gates = make(map[int]chan struct{})
	}
	if f.started == nil {
		f.started = make(chan int, 16)
	}
	gate := make(chan struct{})
	f.gates[f.calls+n] = gate
	return gate
}

type harness struct {
	backend *fakeBackend
	bus     *bus.Bus
	notes   *NoteCache
	tags    *TagCache
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := repository.OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "notes.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	noteRepo := repository.NewSQLiteNoteRepository(db)
	tagService := service.NewTagService(repository.NewSQLiteTagRepository(db), noteRepo)
	backend := &fakeBackend{
		Backend: service.NewBackend(service.NewNoteService(noteRepo, tagService), tagService),
	}

	b := bus.New(zerolog.Nop())
	h := &harness{
		backend: backend,
		bus:     b,
		tags:    NewTagCache(backend, b, zerolog.Nop()),
		notes:   NewNoteCache(backend, b, zerolog.Nop()),
	}
	t.Cleanup(func() {
		h.settle(t)
	})
	return h
}

// settle waits for every reload scheduled by events.
func (h *harness) settle(t *testing.T) {
	t.Helper()
	require.NoError(t, h.notes.Wait())
	require.NoError(t, h.tags.Wait())
	require.Empty(t, h.bus.Failures())
}

func strPtr(s string) *string { return &s }

func findNote(notes []domain.NoteWithTags, id string) (domain.NoteWithTags, bool) {
	for _, n := range notes {
		if n.ID == id {
			return n, true
		}
	}
	return domain.NoteWithTags{}, false
}
