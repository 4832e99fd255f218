package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"inkdown-client/internal/domain"
)

type SQLiteNoteRepository struct {
	db *sql.DB
}

func NewSQLiteNoteRepository(db *sql.DB) *SQLiteNoteRepository {
	return &SQLiteNoteRepository{db: db}
}

const noteColumns = `id, title, content, created_at, modified_at, is_favorite, is_trashed`

func (r *SQLiteNoteRepository) Create(ctx context.Context, note *domain.Note) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM notes WHERE id = ?`, note.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	if exists > 0 {
		return ErrNoteExists
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO notes (`+noteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		note.ID, note.Title, note.Content,
		formatTime(note.CreatedAt), formatTime(note.ModifiedAt),
		note.IsFavorite, note.IsTrashed,
	)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}

	if err := replaceNoteTags(ctx, tx, note.ID, note.TagIDs); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *SQLiteNoteRepository) FindByID(ctx context.Context, id string) (*domain.Note, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+noteColumns+` FROM notes WHERE id = ?`, id)

	note, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to find note: %w", err)
	}

	tagIDs, err := r.tagIDs(ctx, []string{note.ID})
	if err != nil {
		return nil, err
	}
	note.TagIDs = tagIDs[note.ID]
	if note.TagIDs == nil {
		note.TagIDs = []string{}
	}

	return note, nil
}

func (r *SQLiteNoteRepository) List(ctx context.Context, includeTrash bool) ([]*domain.Note, error) {
	query := `SELECT ` + noteColumns + ` FROM notes`
	if !includeTrash {
		query += ` WHERE is_trashed = FALSE`
	}
	query += ` ORDER BY modified_at DESC`

	return r.query(ctx, query)
}

func (r *SQLiteNoteRepository) Search(ctx context.Context, query string) ([]*domain.Note, error) {
	pattern := likePattern(query)

	return r.query(ctx,
		`SELECT `+noteColumns+` FROM notes
		WHERE is_trashed = FALSE
		AND (LOWER(title) LIKE ? ESCAPE '\' OR LOWER(content) LIKE ? ESCAPE '\')
		ORDER BY modified_at DESC`,
		pattern, pattern,
	)
}

func (r *SQLiteNoteRepository) Update(ctx context.Context, note *domain.Note) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE notes SET title = ?, content = ?, modified_at = ?, is_favorite = ?, is_trashed = ? WHERE id = ?`,
		note.Title, note.Content, formatTime(note.ModifiedAt), note.IsFavorite, note.IsTrashed, note.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoteNotFound
	}

	if err := replaceNoteTags(ctx, tx, note.ID, note.TagIDs); err != nil {
		return err
	}

	return tx.Commit()
}

// Delete removes the note row; note_tags rows go with it through the
// foreign key cascade.
func (r *SQLiteNoteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM notes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete note: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoteNotFound
	}
	return nil
}

func (r *SQLiteNoteRepository) query(ctx context.Context, query string, args ...interface{}) ([]*domain.Note, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var notes []*domain.Note
	var ids []string
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		notes = append(notes, note)
		ids = append(ids, note.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate notes: %w", err)
	}

	tagIDs, err := r.tagIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, note := range notes {
		note.TagIDs = tagIDs[note.ID]
		if note.TagIDs == nil {
			note.TagIDs = []string{}
		}
	}

	return notes, nil
}

func (r *SQLiteNoteRepository) tagIDs(ctx context.Context, noteIDs []string) (map[string][]string, error) {
	result := make(map[string][]string, len(noteIDs))
	if len(noteIDs) == 0 {
		return result, nil
	}

	wanted := make(map[string]bool, len(noteIDs))
	for _, id := range noteIDs {
		wanted[id] = true
	}

	rows, err := r.db.QueryContext(ctx, `SELECT note_id, tag_id FROM note_tags ORDER BY note_id, position`)
	if err != nil {
		return nil, fmt.Errorf("failed to query note tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var noteID, tagID string
		if err := rows.Scan(&noteID, &tagID); err != nil {
			return nil, fmt.Errorf("failed to scan note tag: %w", err)
		}
		if wanted[noteID] {
			result[noteID] = append(result[noteID], tagID)
		}
	}

	return result, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanNote(row rowScanner) (*domain.Note, error) {
	var note domain.Note
	var createdAt, modifiedAt string

	if err := row.Scan(&note.ID, &note.Title, &note.Content, &createdAt, &modifiedAt, &note.IsFavorite, &note.IsTrashed); err != nil {
		return nil, err
	}

	var err error
	if note.CreatedAt, err = scanTime(createdAt); err != nil {
		return nil, err
	}
	if note.ModifiedAt, err = scanTime(modifiedAt); err != nil {
		return nil, err
	}

	return &note, nil
}

func replaceNoteTags(ctx context.Context, tx *sql.Tx, noteID string, tagIDs []string) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM note_tags WHERE note_id = ?`, noteID); err != nil {
		return fmt.Errorf("failed to clear note tags: %w", err)
	}

	now := formatTime(time.Now())
	for i, tagID := range tagIDs {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO note_tags (note_id, tag_id, position, created_at) VALUES (?, ?, ?, ?)`,
			noteID, tagID, i, now,
		)
		if err != nil {
			return fmt.Errorf("failed to link tag %s: %w", tagID, err)
		}
	}

	return nil
}
