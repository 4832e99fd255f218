// Package projection derives the sidebar and list views from the caches.
// Nothing is stored: every view is recomputed from the current cache state
// on each call.
package projection

import (
	"sort"
	"strings"
	"sync"

	"inkdown-client/internal/domain"
)

// AllNotes is the sidebar entry that clears the tag filter.
const AllNotes = "All Notes"

type NoteSource interface {
	Notes() []domain.NoteWithTags
}

type TagSource interface {
	ByID(id string) (domain.Tag, bool)
}

type Filter struct {
	Query       string `json:"query"`
	SelectedTag string `json:"selected_tag"`
}

func (f Filter) hasQuery() bool {
	return strings.TrimSpace(f.Query) != ""
}

func (f Filter) hasTag() bool {
	tag := strings.TrimSpace(f.SelectedTag)
	return tag != "" && tag != AllNotes
}

type Projection struct {
	notes NoteSource
	tags  TagSource

	mu     sync.RWMutex
	filter Filter
}

func New(notes NoteSource, tags TagSource) *Projection {
	return &Projection{notes: notes, tags: tags}
}

func (p *Projection) SetQuery(query string) {
	p.mu.Lock()
	p.filter.Query = query
	p.mu.Unlock()
}

// SelectTag narrows the views to one tag. AllNotes or an empty name
// clears it.
func (p *Projection) SelectTag(name string) {
	p.mu.Lock()
	p.filter.SelectedTag = name
	p.mu.Unlock()
}

func (p *Projection) ClearFilter() {
	p.mu.Lock()
	p.filter = Filter{}
	p.mu.Unlock()
}

func (p *Projection) Filter() Filter {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.filter
}

func (p *Projection) Favorites() []domain.NoteWithTags {
	return p.collect(func(n *domain.NoteWithTags) bool {
		return !n.IsTrashed && n.IsFavorite
	})
}

func (p *Projection) Untagged() []domain.NoteWithTags {
	return p.collect(func(n *domain.NoteWithTags) bool {
		return !n.IsTrashed && len(n.TagIDs) == 0
	})
}

func (p *Projection) Trashed() []domain.NoteWithTags {
	return p.collect(func(n *domain.NoteWithTags) bool {
		return n.IsTrashed
	})
}

// TextFiltered returns active notes whose title or any tag name contains
// the query, ignoring case. An empty query matches everything.
func (p *Projection) TextFiltered() []domain.NoteWithTags {
	f := p.Filter()
	return p.collect(func(n *domain.NoteWithTags) bool {
		return !n.IsTrashed && p.matchesText(n, f)
	})
}

func (p *Projection) TagFiltered() []domain.NoteWithTags {
	f := p.Filter()
	return p.collect(func(n *domain.NoteWithTags) bool {
		return !n.IsTrashed && p.matchesTag(n, f)
	})
}

// Visible is the default listing: active notes passing both filters, most
// recently modified first.
func (p *Projection) Visible() []domain.NoteWithTags {
	f := p.Filter()
	return p.collect(func(n *domain.NoteWithTags) bool {
		return !n.IsTrashed && p.matchesText(n, f) && p.matchesTag(n, f)
	})
}

func (p *Projection) matchesText(n *domain.NoteWithTags, f Filter) bool {
	if !f.hasQuery() {
		return true
	}
	q := strings.ToLower(strings.TrimSpace(f.Query))
	if strings.Contains(strings.ToLower(n.Title), q) {
		return true
	}
	for _, name := range p.tagNames(n) {
		if strings.Contains(strings.ToLower(name), q) {
			return true
		}
	}
	return false
}

func (p *Projection) matchesTag(n *domain.NoteWithTags, f Filter) bool {
	if !f.hasTag() {
		return true
	}
	want := domain.TagKey(f.SelectedTag)
	for _, name := range p.tagNames(n) {
		if domain.TagKey(name) == want {
			return true
		}
	}
	return false
}

// tagNames resolves through the tag cache and falls back to the tags
// embedded in the note while the cache has not caught up.
func (p *Projection) tagNames(n *domain.NoteWithTags) []string {
	names := make([]string, 0, len(n.TagIDs))
	for _, id := range n.TagIDs {
		if t, ok := p.tags.ByID(id); ok {
			names = append(names, t.Name)
			continue
		}
		for _, t := range n.Tags {
			if t.ID == id {
				names = append(names, t.Name)
				break
			}
		}
	}
	return names
}

func (p *Projection) collect(keep func(n *domain.NoteWithTags) bool) []domain.NoteWithTags {
	notes := p.notes.Notes()
	out := make([]domain.NoteWithTags, 0, len(notes))
	for i := range notes {
		if keep(&notes[i]) {
			out = append(out, notes[i])
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].ModifiedAt.After(out[j].ModifiedAt)
	})
	return out
}
