package domain

import (
	"strings"
	"time"
)

type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	NoteCount int       `json:"note_count"`
}

// TagKey is the comparison key for tag names. Names are unique ignoring
// case and surrounding whitespace; the stored name keeps its original case.
func TagKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (t *Tag) Matches(name string) bool {
	return TagKey(t.Name) == TagKey(name)
}

type CreateTagRequest struct {
	Name  string `json:"name" validate:"required,max=64"`
	Color string `json:"color,omitempty" validate:"omitempty,hexcolor"`
}

type RenameTagRequest struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required,max=64"`
}

type NoteTagRequest struct {
	NoteID  string `json:"note_id" validate:"required"`
	TagName string `json:"tag_name" validate:"required,max=64"`
}
