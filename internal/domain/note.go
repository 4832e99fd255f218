package domain

import "time"

type NoteState string

const (
	NoteStateActive  NoteState = "active"
	NoteStateTrashed NoteState = "trashed"
	NoteStateGone    NoteState = "gone"
)

// DefaultNoteTitle is used by the backend when a note is created or saved
// with a blank title.
const DefaultNoteTitle = "Untitled"

type Note struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Content    string    `json:"content,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
	IsFavorite bool      `json:"is_favorite"`
	IsTrashed  bool      `json:"is_trashed"`
	IsDeleted  bool      `json:"is_deleted"`
	TagIDs     []string  `json:"tag_ids"`
}

// State reports the lifecycle state derived from the trashed and deleted
// flags. A deleted note is always gone, regardless of the trashed flag.
func (n *Note) State() NoteState {
	switch {
	case n.IsDeleted:
		return NoteStateGone
	case n.IsTrashed:
		return NoteStateTrashed
	default:
		return NoteStateActive
	}
}

func (n *Note) HasTag(tagID string) bool {
	for _, id := range n.TagIDs {
		if id == tagID {
			return true
		}
	}
	return false
}

func (n Note) Clone() Note {
	if n.TagIDs != nil {
		n.TagIDs = append([]string(nil), n.TagIDs...)
	}
	return n
}

// NoteWithTags is a note joined with its resolved tags. The list view works
// on this shape; the open note uses it with Content populated.
type NoteWithTags struct {
	Note
	Tags []Tag `json:"tags"`
}

func (n NoteWithTags) Clone() NoteWithTags {
	n.Note = n.Note.Clone()
	if n.Tags != nil {
		n.Tags = append([]Tag(nil), n.Tags...)
	}
	return n
}

func (n *NoteWithTags) TagNames() []string {
	names := make([]string, 0, len(n.Tags))
	for _, t := range n.Tags {
		names = append(names, t.Name)
	}
	return names
}

type CreateNoteRequest struct {
	Title   *string  `json:"title"`
	Content *string  `json:"content"`
	Tags    []string `json:"tags" validate:"omitempty,dive,required,max=64"`
}

type SaveNoteRequest struct {
	ID      string `json:"id" validate:"required"`
	Title   string `json:"title" validate:"max=512"`
	Content string `json:"content"`
}

type ListNotesRequest struct {
	IncludeTrash bool `json:"include_trash"`
}

type SearchRequest struct {
	Query     string `json:"query"`
	TagFilter string `json:"tag_filter,omitempty"`
}
