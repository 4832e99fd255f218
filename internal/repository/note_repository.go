package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"inkdown-client/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

var (
	ErrNoteNotFound = errors.New("note not found")
	ErrNoteExists   = errors.New("note already exists")
)

type NoteRepository interface {
	Create(ctx context.Context, note *domain.Note) error
	FindByID(ctx context.Context, id string) (*domain.Note, error)
	List(ctx context.Context, includeTrash bool) ([]*domain.Note, error)
	Search(ctx context.Context, query string) ([]*domain.Note, error)
	Update(ctx context.Context, note *domain.Note) error
	Delete(ctx context.Context, id string) error
}

type CouchDBNoteRepository struct {
	db *kivik.DB
}

type noteDoc struct {
	ID         string   `json:"_id"`
	Rev        string   `json:"_rev,omitempty"`
	DocType    string   `json:"doc_type"`
	Title      string   `json:"title"`
	Content    string   `json:"content"`
	CreatedAt  string   `json:"created_at"`
	ModifiedAt string   `json:"modified_at"`
	IsFavorite bool     `json:"is_favorite"`
	IsTrashed  bool     `json:"is_trashed"`
	TagIDs     []string `json:"tag_ids"`
}

func NewNoteRepository(client *kivik.Client, dbName string) *CouchDBNoteRepository {
	return &CouchDBNoteRepository{
		db: client.DB(dbName),
	}
}

func noteDocID(id string) string {
	return fmt.Sprintf("note:%s", id)
}

func (r *CouchDBNoteRepository) Create(ctx context.Context, note *domain.Note) error {
	doc := noteToDoc(note)

	_, err := r.db.Put(ctx, doc.ID, doc)
	if err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return ErrNoteExists
		}
		return fmt.Errorf("failed to create note: %w", err)
	}

	return nil
}

func (r *CouchDBNoteRepository) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return docToNote(doc)
}

func (r *CouchDBNoteRepository) List(ctx context.Context, includeTrash bool) ([]*domain.Note, error) {
	selector := map[string]interface{}{
		"doc_type": "note",
	}
	if !includeTrash {
		selector["is_trashed"] = false
	}

	return r.find(ctx, map[string]interface{}{"selector": selector})
}

// Search matches query against title and content, ignoring case. Trashed
// notes are never returned.
func (r *CouchDBNoteRepository) Search(ctx context.Context, query string) ([]*domain.Note, error) {
	pattern := "(?i)" + regexp.QuoteMeta(query)

	return r.find(ctx, map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type":   "note",
			"is_trashed": false,
			"$or": []interface{}{
				map[string]interface{}{"title": map[string]interface{}{"$regex": pattern}},
				map[string]interface{}{"content": map[string]interface{}{"$regex": pattern}},
			},
		},
	})
}

func (r *CouchDBNoteRepository) Update(ctx context.Context, note *domain.Note) error {
	existing, err := r.get(ctx, note.ID)
	if err != nil {
		return err
	}

	doc := noteToDoc(note)
	doc.Rev = existing.Rev

	if _, err := r.db.Put(ctx, doc.ID, doc); err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}

	return nil
}

func (r *CouchDBNoteRepository) Delete(ctx context.Context, id string) error {
	doc, err := r.get(ctx, id)
	if err != nil {
		return err
	}

	if _, err := r.db.Delete(ctx, doc.ID, doc.Rev); err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}

	return nil
}

func (r *CouchDBNoteRepository) get(ctx context.Context, id string) (*noteDoc, error) {
	row := r.db.Get(ctx, noteDocID(id))

	var doc noteDoc
	if err := row.ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to find note: %w", err)
	}

	return &doc, nil
}

func (r *CouchDBNoteRepository) find(ctx context.Context, query map[string]interface{}) ([]*domain.Note, error) {
	rows := r.db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []*domain.Note
	for rows.Next() {
		var doc noteDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}

		note, err := docToNote(&doc)
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}

	return notes, nil
}

func noteToDoc(note *domain.Note) *noteDoc {
	return &noteDoc{
		ID:         noteDocID(note.ID),
		DocType:    "note",
		Title:      note.Title,
		Content:    note.Content,
		CreatedAt:  formatTime(note.CreatedAt),
		ModifiedAt: formatTime(note.ModifiedAt),
		IsFavorite: note.IsFavorite,
		IsTrashed:  note.IsTrashed,
		TagIDs:     note.TagIDs,
	}
}

func docToNote(doc *noteDoc) (*domain.Note, error) {
	createdAt, err := parseTime(doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	modifiedAt, err := parseTime(doc.ModifiedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse modified_at: %w", err)
	}

	tagIDs := doc.TagIDs
	if tagIDs == nil {
		tagIDs = []string{}
	}

	return &domain.Note{
		ID:         trimDocPrefix(doc.ID, "note:"),
		Title:      doc.Title,
		Content:    doc.Content,
		CreatedAt:  createdAt,
		ModifiedAt: modifiedAt,
		IsFavorite: doc.IsFavorite,
		IsTrashed:  doc.IsTrashed,
		TagIDs:     tagIDs,
	}, nil
}

func trimDocPrefix(id, prefix string) string {
	if len(id) > len(prefix) && id[:len(prefix)] == prefix {
		return id[len(prefix):]
	}
	return id
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
