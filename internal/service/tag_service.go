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
	"github.com/jmgilman/go/errors"
)

type TagService struct {
	repo     repository.TagRepository
	noteRepo repository.NoteRepository
}

func NewTagService(repo repository.TagRepository, noteRepo repository.NoteRepository) *TagService {
	return &TagService{
		repo:     repo,
		noteRepo: noteRepo,
	}
}

// List returns every tag with its note count. Only notes outside the trash
// are counted.
func (s *TagService) List(ctx context.Context) ([]domain.Tag, error) {
	tags, err := s.repo.List(ctx)
	if err != nil {
		return nil, repoError(err, "failed to list tags")
	}

	counts, err := s.counts(ctx)
	if err != nil {
		return nil, err
	}

	return withCounts(tags, counts), nil
}

func (s *TagService) Create(ctx context.Context, req domain.CreateTagRequest) (*domain.Tag, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, gateway.Invalid("tag name is required")
	}

	if _, err := s.repo.FindByName(ctx, name); err == nil {
		return nil, errors.Newf(errors.CodeAlreadyExists, "tag %q already exists", name)
	} else if !errors.Is(err, repository.ErrTagNotFound) {
		return nil, repoError(err, "failed to look up tag")
	}

	tag := &domain.Tag{
		ID:        uuid.New().String(),
		Name:      name,
		Color:     req.Color,
		CreatedAt: time.Now(),
	}

	if err := s.repo.Create(ctx, tag); err != nil {
		return nil, repoError(err, "failed to create tag")
	}

	return tag, nil
}

func (s *TagService) Rename(ctx context.Context, req domain.RenameTagRequest) (*domain.Tag, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, gateway.Invalid("tag name is required")
	}

	tag, err := s.repo.FindByID(ctx, req.ID)
	if err != nil {
		return nil, repoError(err, "tag not found")
	}

	existing, err := s.repo.FindByName(ctx, name)
	switch {
	case err == nil && existing.ID != tag.ID:
		return nil, errors.Newf(errors.CodeAlreadyExists, "tag %q already exists", name)
	case err != nil && !errors.Is(err, repository.ErrTagNotFound):
		return nil, repoError(err, "failed to look up tag")
	}

	tag.Name = name
	if err := s.repo.Update(ctx, tag); err != nil {
		return nil, repoError(err, "failed to rename tag")
	}

	return s.withCount(ctx, tag)
}

// Delete removes the tag and unlinks it from every note, trashed ones
// included. A missing tag reports false without an error.
func (s *TagService) Delete(ctx context.Context, id string) (bool, error) {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrTagNotFound) {
			return false, nil
		}
		return false, repoError(err, "failed to look up tag")
	}

	if err := s.unlink(ctx, map[string]bool{id: true}); err != nil {
		return false, err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return false, repoError(err, "failed to delete tag")
	}

	return true, nil
}

func (s *TagService) AddToNote(ctx context.Context, req domain.NoteTagRequest) (*domain.Tag, error) {
	note, err := s.noteRepo.FindByID(ctx, req.NoteID)
	if err != nil {
		return nil, repoError(err, "note not found")
	}

	tag, err := s.findOrCreate(ctx, req.TagName)
	if err != nil {
		return nil, err
	}

	if !note.HasTag(tag.ID) {
		note.TagIDs = append(note.TagIDs, tag.ID)
		if err := s.noteRepo.Update(ctx, note); err != nil {
			return nil, repoError(err, "failed to tag note")
		}
	}

	return s.withCount(ctx, tag)
}

func (s *TagService) RemoveFromNote(ctx context.Context, noteID, tagID string) (bool, error) {
	note, err := s.noteRepo.FindByID(ctx, noteID)
	if err != nil {
		return false, repoError(err, "note not found")
	}

	if !note.HasTag(tagID) {
		return false, nil
	}

	note.TagIDs = without(note.TagIDs, map[string]bool{tagID: true})
	if err := s.noteRepo.Update(ctx, note); err != nil {
		return false, repoError(err, "failed to untag note")
	}

	return true, nil
}

// CleanupUnused deletes every tag that no note outside the trash carries and
// returns how many were removed.
func (s *TagService) CleanupUnused(ctx context.Context) (int, error) {
	tags, err := s.List(ctx)
	if err != nil {
		return 0, err
	}

	unused := make(map[string]bool)
	for _, t := range tags {
		if t.NoteCount == 0 {
			unused[t.ID] = true
		}
	}
	if len(unused) == 0 {
		return 0, nil
	}

	if err := s.unlink(ctx, unused); err != nil {
		return 0, err
	}

	removed := 0
	for id := range unused {
		if err := s.repo.Delete(ctx, id); err != nil {
			if errors.Is(err, repository.ErrTagNotFound) {
				continue
			}
			return removed, repoError(err, "failed to delete unused tag")
		}
		removed++
	}

	return removed, nil
}

func (s *TagService) Search(ctx context.Context, query string) ([]domain.Tag, error) {
	tags, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	key := domain.TagKey(query)
	matched := make([]domain.Tag, 0, len(tags))
	for _, t := range tags {
		if strings.Contains(domain.TagKey(t.Name), key) {
			matched = append(matched, t)
		}
	}

	return matched, nil
}

// Resolve maps tag ids to tags. Unknown ids are skipped.
func (s *TagService) Resolve(ctx context.Context) (map[string]domain.Tag, error) {
	tags, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Tag, len(tags))
	for _, t := range tags {
		byID[t.ID] = t
	}
	return byID, nil
}

func (s *TagService) FindByName(ctx context.Context, name string) (*domain.Tag, error) {
	tag, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, repoError(err, "tag not found")
	}
	return tag, nil
}

func (s *TagService) findOrCreate(ctx context.Context, name string) (*domain.Tag, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, gateway.Invalid("tag name is required")
	}

	tag, err := s.repo.FindByName(ctx, name)
	if err == nil {
		return tag, nil
	}
	if !errors.Is(err, repository.ErrTagNotFound) {
		return nil, repoError(err, "failed to look up tag")
	}

	return s.Create(ctx, domain.CreateTagRequest{Name: name})
}

func (s *TagService) withCount(ctx context.Context, tag *domain.Tag) (*domain.Tag, error) {
	counts, err := s.counts(ctx)
	if err != nil {
		return nil, err
	}
	tag.NoteCount = counts[tag.ID]
	return tag, nil
}

func (s *TagService) counts(ctx context.Context) (map[string]int, error) {
	notes, err := s.noteRepo.List(ctx, false)
	if err != nil {
		return nil, repoError(err, "failed to count tagged notes")
	}

	counts := make(map[string]int)
	for _, n := range notes {
		for _, id := range n.TagIDs {
			counts[id]++
		}
	}
	return counts, nil
}

func (s *TagService) unlink(ctx context.Context, ids map[string]bool) error {
	notes, err := s.noteRepo.List(ctx, true)
	if err != nil {
		return repoError(err, "failed to list notes")
	}

	for _, n := range notes {
		kept := without(n.TagIDs, ids)
		if len(kept) == len(n.TagIDs) {
			continue
		}
		n.TagIDs = kept
		if err := s.noteRepo.Update(ctx, n); err != nil {
			return repoError(err, "failed to unlink tag")
		}
	}
	return nil
}

func withCounts(tags []*domain.Tag, counts map[string]int) []domain.Tag {
	result := make([]domain.Tag, 0, len(tags))
	for _, t := range tags {
		tag := *t
		tag.NoteCount = counts[t.ID]
		result = append(result, tag)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return domain.TagKey(result[i].Name) < domain.TagKey(result[j].Name)
	})
	return result
}

func without(ids []string, drop map[string]bool) []string {
	kept := make([]string, 0, len(ids))
	for _, id := range ids {
		if !drop[id] {
			kept = append(kept, id)
		}
	}
	return kept
}
