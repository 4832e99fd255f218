package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"inkdown-client/internal/domain"
	"inkdown-client/internal/gateway"
	"inkdown-client/internal/repository"

	"github.com/google/uuid"
)

type NoteService struct {
	repo       repository.NoteRepository
	tagService *TagService
	now        func() time.Time
}

func NewNoteService(repo repository.NoteRepository, tagService *TagService) *NoteService {
	return &NoteService{
		repo:       repo,
		tagService: tagService,
		now:        time.Now,
	}
}

func (s *NoteService) Create(ctx context.Context, req domain.CreateNoteRequest) (*domain.NoteWithTags, error) {
	title := ""
	if req.Title != nil {
		title = *req.Title
	}
	content := ""
	if req.Content != nil {
		content = *req.Content
	}

	tagIDs := make([]string, 0, len(req.Tags))
	for _, name := range req.Tags {
		tag, err := s.tagService.findOrCreate(ctx, name)
		if err != nil {
			return nil, err
		}
		if !contains(tagIDs, tag.ID) {
			tagIDs = append(tagIDs, tag.ID)
		}
	}

	now := s.now()
	note := &domain.Note{
		ID:         uuid.New().String(),
		Title:      normalizeTitle(title),
		Content:    content,
		CreatedAt:  now,
		ModifiedAt: now,
		TagIDs:     tagIDs,
	}

	if err := s.repo.Create(ctx, note); err != nil {
		return nil, repoError(err, "failed to create note")
	}

	return s.withTags(ctx, note)
}

func (s *NoteService) GetByID(ctx context.Context, id string) (*domain.NoteWithTags, error) {
	note, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, repoError(err, "note not found")
	}

	return s.withTags(ctx, note)
}

// List returns the list-view shape: content stripped, newest first.
func (s *NoteService) List(ctx context.Context, includeTrash bool) ([]domain.NoteWithTags, error) {
	notes, err := s.repo.List(ctx, includeTrash)
	if err != nil {
		return nil, repoError(err, "failed to list notes")
	}

	return s.listView(ctx, notes)
}

func (s *NoteService) Save(ctx context.Context, req domain.SaveNoteRequest) error {
	note, err := s.repo.FindByID(ctx, req.ID)
	if err != nil {
		return repoError(err, "note not found")
	}

	if note.IsTrashed {
		return ErrNoteTrashed
	}

	note.Title = normalizeTitle(req.Title)
	note.Content = req.Content
	note.ModifiedAt = s.now()

	if err := s.repo.Update(ctx, note); err != nil {
		return repoError(err, "failed to save note")
	}

	return nil
}

// Delete moves an active note to the trash.
func (s *NoteService) Delete(ctx context.Context, id string) error {
	note, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return repoError(err, "note not found")
	}

	if note.IsTrashed {
		return ErrNoteTrashed
	}

	note.IsTrashed = true
	note.ModifiedAt = s.now()

	if err := s.repo.Update(ctx, note); err != nil {
		return repoError(err, "failed to delete note")
	}

	return nil
}

func (s *NoteService) Restore(ctx context.Context, id string) error {
	note, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return repoError(err, "note not found")
	}

	if !note.IsTrashed {
		return ErrNoteNotTrashed
	}

	note.IsTrashed = false
	note.ModifiedAt = s.now()

	if err := s.repo.Update(ctx, note); err != nil {
		return repoError(err, "failed to restore note")
	}

	return nil
}

// PermanentlyDelete removes a trashed note and its tag links. Active notes
// must go through the trash first.
func (s *NoteService) PermanentlyDelete(ctx context.Context, id string) error {
	note, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return repoError(err, "note not found")
	}

	if !note.IsTrashed {
		return ErrNoteNotTrashed
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return repoError(err, "failed to permanently delete note")
	}

	return nil
}

func (s *NoteService) ToggleFavorite(ctx context.Context, id string) (bool, error) {
	note, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return false, repoError(err, "note not found")
	}

	note.IsFavorite = !note.IsFavorite

	if err := s.repo.Update(ctx, note); err != nil {
		return false, repoError(err, "failed to toggle favorite")
	}

	return note.IsFavorite, nil
}

// Search matches title and content ignoring case, optionally narrowed to
// notes carrying the named tag. Trashed notes are never returned.
func (s *NoteService) Search(ctx context.Context, req domain.SearchRequest) ([]domain.NoteWithTags, error) {
	var notes []*domain.Note
	var err error

	if strings.TrimSpace(req.Query) == "" {
		notes, err = s.repo.List(ctx, false)
	} else {
		notes, err = s.repo.Search(ctx, strings.TrimSpace(req.Query))
	}
	if err != nil {
		return nil, repoError(err, "failed to search notes")
	}

	if req.TagFilter != "" {
		tag, err := s.tagService.FindByName(ctx, req.TagFilter)
		if err != nil {
			if gateway.IsNotFound(err) {
				return []domain.NoteWithTags{}, nil
			}
			return nil, err
		}

		filtered := notes[:0]
		for _, n := range notes {
			if n.HasTag(tag.ID) {
				filtered = append(filtered, n)
			}
		}
		notes = filtered
	}

	return s.listView(ctx, notes)
}

func (s *NoteService) listView(ctx context.Context, notes []*domain.Note) ([]domain.NoteWithTags, error) {
	tags, err := s.tagService.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]domain.NoteWithTags, 0, len(notes))
	for _, n := range notes {
		view := resolve(n, tags)
		view.Content = ""
		result = append(result, view)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].ModifiedAt.After(result[j].ModifiedAt)
	})

	return result, nil
}

func (s *NoteService) withTags(ctx context.Context, note *domain.Note) (*domain.NoteWithTags, error) {
	tags, err := s.tagService.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	view := resolve(note, tags)
	return &view, nil
}

func resolve(note *domain.Note, tags map[string]domain.Tag) domain.NoteWithTags {
	view := domain.NoteWithTags{Note: note.Clone(), Tags: []domain.Tag{}}
	if view.TagIDs == nil {
		view.TagIDs = []string{}
	}
	for _, id := range note.TagIDs {
		if t, ok := tags[id]; ok {
			view.Tags = append(view.Tags, t)
		}
	}
	return view
}

func normalizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.DefaultNoteTitle
	}
	return title
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
