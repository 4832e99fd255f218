// Package markdown moves notes in and out of plain markdown files with a
// YAML frontmatter header.
package markdown

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"inkdown-client/internal/domain"

	"gopkg.in/yaml.v3"
)

const (
	delimiter      = "---"
	maxFilenameLen = 100
)

type Frontmatter struct {
	ID         string    `yaml:"id,omitempty"`
	Title      string    `yaml:"title,omitempty"`
	CreatedAt  time.Time `yaml:"created_at,omitempty"`
	ModifiedAt time.Time `yaml:"modified_at,omitempty"`
	Favorite   bool      `yaml:"favorite,omitempty"`
	Tags       []string  `yaml:"tags,omitempty"`
}

type Document struct {
	Frontmatter
	Content string
}

func FromNote(note *domain.NoteWithTags) *Document {
	return &Document{
		Frontmatter: Frontmatter{
			ID:         note.ID,
			Title:      note.Title,
			CreatedAt:  note.CreatedAt.UTC(),
			ModifiedAt: note.ModifiedAt.UTC(),
			Favorite:   note.IsFavorite,
			Tags:       note.TagNames(),
		},
		Content: note.Content,
	}
}

func Encode(doc *Document) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(delimiter + "\n")

	encoder := yaml.NewEncoder(&buf)
	encoder.SetIndent(2)
	if err := encoder.Encode(&doc.Frontmatter); err != nil {
		return nil, fmt.Errorf("failed to encode frontmatter: %w", err)
	}
	encoder.Close()

	buf.WriteString(delimiter + "\n\n")
	buf.WriteString(doc.Content)

	return buf.Bytes(), nil
}

// Decode splits data into frontmatter and body. Files without a
// frontmatter header decode to a document with only Content set.
func Decode(data []byte) (*Document, error) {
	data = bytes.TrimPrefix(data, []byte("\ufeff"))
	text := strings.ReplaceAll(string(data), "\r\n", "\n")

	if !strings.HasPrefix(text, delimiter+"\n") {
		return &Document{Content: text}, nil
	}

	rest := text[len(delimiter)+1:]
	end := strings.Index(rest, "\n"+delimiter)
	var header, body string
	switch {
	case strings.HasPrefix(rest, delimiter):
		header, body = "", rest[len(delimiter):]
	case end >= 0:
		header, body = rest[:end], rest[end+1+len(delimiter):]
	default:
		return nil, fmt.Errorf("invalid frontmatter format")
	}

	doc := &Document{}
	if err := yaml.Unmarshal([]byte(header), &doc.Frontmatter); err != nil {
		return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
	}
	doc.Content = strings.TrimLeft(strings.TrimPrefix(body, "\n"), "\n")

	return doc, nil
}

// TitleFor picks a title for an imported file: the frontmatter title, the
// first heading, or the file name without extension.
func TitleFor(doc *Document, path string) string {
	if t := strings.TrimSpace(doc.Title); t != "" {
		return t
	}
	for _, line := range strings.Split(doc.Content, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			if t := strings.TrimSpace(strings.TrimLeft(trimmed, "#")); t != "" {
				return t
			}
		}
	}
	return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
}

// SanitizeFilename makes a note title safe to use as a file name.
func SanitizeFilename(title string) string {
	var b strings.Builder
	for _, r := range title {
		switch {
		case strings.ContainsRune(`<>:"/\|?*`, r), unicode.IsControl(r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}

	name := b.String()
	if strings.TrimSpace(name) == "" {
		name = domain.DefaultNoteTitle
	}
	if len(name) > maxFilenameLen {
		name = truncate(name, maxFilenameLen)
	}
	return strings.TrimSpace(name)
}

// truncate cuts s to at most n bytes without splitting a rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
