package markdown

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"inkdown-client/internal/domain"
	"inkdown-client/internal/gateway"

	"github.com/rs/zerolog"
)

// NoteCreator is the part of the note cache the importer drives, so imported
// notes go through the normal create path and its events.
type NoteCreator interface {
	Create(ctx context.Context, title, content *string, tags []string) (*domain.NoteWithTags, error)
}

type Exporter struct {
	backend gateway.Backend
	dir     string
	logger  zerolog.Logger
}

func NewExporter(backend gateway.Backend, dir string, logger zerolog.Logger) *Exporter {
	return &Exporter{
		backend: backend,
		dir:     dir,
		logger:  logger.With().Str("component", "exporter").Logger(),
	}
}

// ExportNote writes one note to the export directory and returns the path.
func (e *Exporter) ExportNote(ctx context.Context, id string) (string, error) {
	note, err := e.backend.GetNote(ctx, id)
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	return e.write(note)
}

// ExportAll writes every note outside the trash and returns the file names.
func (e *Exporter) ExportAll(ctx context.Context) ([]string, error) {
	notes, err := e.backend.ListNotes(ctx, domain.ListNotesRequest{})
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}

	files := make([]string, 0, len(notes))
	for _, listed := range notes {
		// list entries carry no content
		note, err := e.backend.GetNote(ctx, listed.ID)
		if err != nil {
			return files, err
		}
		path, err := e.write(note)
		if err != nil {
			return files, err
		}
		files = append(files, filepath.Base(path))
	}

	e.logger.Info().Int("count", len(files)).Str("dir", e.dir).Msg("exported notes")
	return files, nil
}

func (e *Exporter) write(note *domain.NoteWithTags) (string, error) {
	data, err := Encode(FromNote(note))
	if err != nil {
		return "", err
	}

	path := uniquePath(e.dir, SanitizeFilename(note.Title), ".md")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}

// uniquePath appends _1, _2, ... to base until the name is free.
func uniquePath(dir, base, ext string) string {
	path := filepath.Join(dir, base+ext)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(dir, fmt.Sprintf("%s_%d%s", base, i, ext))
	}
}

type ImportResult struct {
	Imported []string `json:"imported"`
	Skipped  []string `json:"skipped"`
}

type Importer struct {
	backend gateway.Backend
	notes   NoteCreator
	logger  zerolog.Logger
}

func NewImporter(backend gateway.Backend, notes NoteCreator, logger zerolog.Logger) *Importer {
	return &Importer{
		backend: backend,
		notes:   notes,
		logger:  logger.With().Str("component", "importer").Logger(),
	}
}

// ImportDir creates a note for every markdown file in dir that is not
// already known by its frontmatter id. Unreadable files are skipped.
func (i *Importer) ImportDir(ctx context.Context, dir string) (*ImportResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	result := &ImportResult{Imported: []string{}, Skipped: []string{}}
	for _, entry := range entries {
		if entry.IsDir() || !strings.EqualFold(filepath.Ext(entry.Name()), ".md") {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		doc, err := readDocument(path)
		if err != nil {
			i.logger.Warn().Err(err).Str("path", path).Msg("skipping file")
			result.Skipped = append(result.Skipped, entry.Name())
			continue
		}

		if doc.ID != "" {
			_, err := i.backend.GetNote(ctx, doc.ID)
			if err == nil {
				result.Skipped = append(result.Skipped, entry.Name())
				continue
			}
			if !gateway.IsNotFound(err) {
				return result, err
			}
		}

		title := TitleFor(doc, path)
		content := doc.Content
		if _, err := i.notes.Create(ctx, &title, &content, doc.Tags); err != nil {
			return result, err
		}
		result.Imported = append(result.Imported, entry.Name())
	}

	i.logger.Info().
		Int("imported", len(result.Imported)).
		Int("skipped", len(result.Skipped)).
		Str("dir", dir).
		Msg("import finished")
	return result, nil
}

func readDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}
