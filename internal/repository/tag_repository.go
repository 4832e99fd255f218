package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"inkdown-client/internal/domain"

	"github.com/go-kivik/kivik/v4"
)

var (
	ErrTagNotFound = errors.New("tag not found")
	ErrTagExists   = errors.New("tag already exists")
)

type TagRepository interface {
	Create(ctx context.Context, tag *domain.Tag) error
	FindByID(ctx context.Context, id string) (*domain.Tag, error)
	FindByName(ctx context.Context, name string) (*domain.Tag, error)
	List(ctx context.Context) ([]*domain.Tag, error)
	Update(ctx context.Context, tag *domain.Tag) error
	Delete(ctx context.Context, id string) error
}

type CouchDBTagRepository struct {
	db *kivik.DB
}

// tagDoc stores the normalized name next to the display name so lookups by
// name stay case-insensitive without a regex scan.
type tagDoc struct {
	ID        string `json:"_id"`
	Rev       string `json:"_rev,omitempty"`
	DocType   string `json:"doc_type"`
	Name      string `json:"name"`
	NameKey   string `json:"name_key"`
	Color     string `json:"color,omitempty"`
	CreatedAt string `json:"created_at"`
}

func NewTagRepository(client *kivik.Client, dbName string) *CouchDBTagRepository {
	return &CouchDBTagRepository{
		db: client.DB(dbName),
	}
}

func tagDocID(id string) string {
	return fmt.Sprintf("tag:%s", id)
}

func (r *CouchDBTagRepository) Create(ctx context.Context, tag *domain.Tag) error {
	doc := tagToDoc(tag)

	if _, err := r.db.Put(ctx, doc.ID, doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusConflict {
			return ErrTagExists
		}
		return fmt.Errorf("failed to create tag: %w", err)
	}

	return nil
}

func (r *CouchDBTagRepository) FindByID(ctx context.Context, id string) (*domain.Tag, error) {
	doc, err := r.get(ctx, id)
	if err != nil {
		return nil, err
	}
	return docToTag(doc)
}

func (r *CouchDBTagRepository) FindByName(ctx context.Context, name string) (*domain.Tag, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type": "tag",
			"name_key": domain.TagKey(name),
		},
		"limit": 1,
	}

	rows := r.db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query tag by name: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query tag by name: %w", err)
		}
		return nil, ErrTagNotFound
	}

	var doc tagDoc
	if err := rows.ScanDoc(&doc); err != nil {
		return nil, fmt.Errorf("failed to scan tag: %w", err)
	}

	return docToTag(&doc)
}

func (r *CouchDBTagRepository) List(ctx context.Context) ([]*domain.Tag, error) {
	query := map[string]interface{}{
		"selector": map[string]interface{}{
			"doc_type": "tag",
		},
	}

	rows := r.db.Find(ctx, query)
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []*domain.Tag
	for rows.Next() {
		var doc tagDoc
		if err := rows.ScanDoc(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}

		tag, err := docToTag(&doc)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}

	return tags, nil
}

func (r *CouchDBTagRepository) Update(ctx context.Context, tag *domain.Tag) error {
	existing, err := r.get(ctx, tag.ID)
	if err != nil {
		return err
	}

	doc := tagToDoc(tag)
	doc.Rev = existing.Rev

	if _, err := r.db.Put(ctx, doc.ID, doc); err != nil {
		return fmt.Errorf("failed to update tag: %w", err)
	}

	return nil
}

func (r *CouchDBTagRepository) Delete(ctx context.Context, id string) error {
	doc, err := r.get(ctx, id)
	if err != nil {
		return err
	}

	if _, err := r.db.Delete(ctx, doc.ID, doc.Rev); err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}

	return nil
}

func (r *CouchDBTagRepository) get(ctx context.Context, id string) (*tagDoc, error) {
	row := r.db.Get(ctx, tagDocID(id))

	var doc tagDoc
	if err := row.ScanDoc(&doc); err != nil {
		if kivik.HTTPStatus(err) == http.StatusNotFound {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("failed to get tag: %w", err)
	}

	return &doc, nil
}

func tagToDoc(tag *domain.Tag) *tagDoc {
	return &tagDoc{
		ID:        tagDocID(tag.ID),
		DocType:   "tag",
		Name:      tag.Name,
		NameKey:   domain.TagKey(tag.Name),
		Color:     tag.Color,
		CreatedAt: formatTime(tag.CreatedAt),
	}
}

func docToTag(doc *tagDoc) (*domain.Tag, error) {
	createdAt, err := parseTime(doc.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}

	return &domain.Tag{
		ID:        trimDocPrefix(doc.ID, "tag:"),
		Name:      doc.Name,
		Color:     doc.Color,
		CreatedAt: createdAt,
	}, nil
}
