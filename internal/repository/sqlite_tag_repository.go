package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"inkdown-client/internal/domain"
)

type SQLiteTagRepository struct {
	db *sql.DB
}

func NewSQLiteTagRepository(db *sql.DB) *SQLiteTagRepository {
	return &SQLiteTagRepository{db: db}
}

const tagColumns = `id, name, color, created_at`

func (r *SQLiteTagRepository) Create(ctx context.Context, tag *domain.Tag) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO tags (id, name, name_key, color, created_at) VALUES (?, ?, ?, ?, ?)`,
		tag.ID, tag.Name, domain.TagKey(tag.Name), tag.Color, formatTime(tag.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrTagExists
		}
		return fmt.Errorf("failed to create tag: %w", err)
	}
	return nil
}

func (r *SQLiteTagRepository) FindByID(ctx context.Context, id string) (*domain.Tag, error) {
	return r.findOne(ctx, `SELECT `+tagColumns+` FROM tags WHERE id = ?`, id)
}

func (r *SQLiteTagRepository) FindByName(ctx context.Context, name string) (*domain.Tag, error) {
	return r.findOne(ctx, `SELECT `+tagColumns+` FROM tags WHERE name_key = ?`, domain.TagKey(name))
}

func (r *SQLiteTagRepository) List(ctx context.Context) ([]*domain.Tag, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+tagColumns+` FROM tags ORDER BY name_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tags: %w", err)
	}
	defer rows.Close()

	var tags []*domain.Tag
	for rows.Next() {
		tag, err := scanTag(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tag: %w", err)
		}
		tags = append(tags, tag)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tags: %w", err)
	}

	return tags, nil
}

func (r *SQLiteTagRepository) Update(ctx context.Context, tag *domain.Tag) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE tags SET name = ?, name_key = ?, color = ? WHERE id = ?`,
		tag.Name, domain.TagKey(tag.Name), tag.Color, tag.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrTagExists
		}
		return fmt.Errorf("failed to update tag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTagNotFound
	}
	return nil
}

func (r *SQLiteTagRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tags WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTagNotFound
	}
	return nil
}

func (r *SQLiteTagRepository) findOne(ctx context.Context, query string, arg string) (*domain.Tag, error) {
	tag, err := scanTag(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTagNotFound
		}
		return nil, fmt.Errorf("failed to find tag: %w", err)
	}
	return tag, nil
}

func scanTag(row rowScanner) (*domain.Tag, error) {
	var tag domain.Tag
	var createdAt string

	if err := row.Scan(&tag.ID, &tag.Name, &tag.Color, &createdAt); err != nil {
		return nil, err
	}

	var err error
	if tag.CreatedAt, err = scanTime(createdAt); err != nil {
		return nil, err
	}

	return &tag, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
