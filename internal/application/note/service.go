package note

import (
	"context"
	"strings"

	"github.com/hd-notes/notes-api/internal/domain"
	"github.com/hd-notes/notes-api/internal/pkg/id"
)

type Service interface {
	List(ctx context.Context, userID string) ([]domain.Note, error)
	Create(ctx context.Context, userID string, input domain.NoteRequest) (*domain.Note, error)
	Update(ctx context.Context, userID, noteID string, input domain.NoteRequest) (*domain.Note, error)
	Delete(ctx context.Context, userID, noteID string) error
}

// noteStore scopes every mutation to the owning user. A note owned by someone
// else is reported as ErrNoteNotFound.
type noteStore interface {
	ListByUser(ctx context.Context, userID string) ([]domain.Note, error)
	Create(ctx context.Context, n *domain.Note) error
	UpdateOwned(ctx context.Context, userID, noteID, title, content string) (*domain.Note, error)
	DeleteOwned(ctx context.Context, userID, noteID string) error
}

type service struct {
	repo noteStore
}

func NewService(repo noteStore) Service {
	return &service{repo: repo}
}

func (s *service) List(ctx context.Context, userID string) ([]domain.Note, error) {
	return s.repo.ListByUser(ctx, userID)
}

func (s *service) Create(ctx context.Context, userID string, input domain.NoteRequest) (*domain.Note, error) {
	title, err := cleanTitle(input.Title)
	if err != nil {
		return nil, err
	}
	n := &domain.Note{
		ID:      id.New(),
		UserID:  userID,
		Title:   title,
		Content: input.Content,
	}
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, err
	}
	return n, nil
}

func (s *service) Update(ctx context.Context, userID, noteID string, input domain.NoteRequest) (*domain.Note, error) {
	title, err := cleanTitle(input.Title)
	if err != nil {
		return nil, err
	}
	return s.repo.UpdateOwned(ctx, userID, noteID, title, input.Content)
}

func (s *service) Delete(ctx context.Context, userID, noteID string) error {
	return s.repo.DeleteOwned(ctx, userID, noteID)
}

func cleanTitle(title string) (string, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return "", domain.Validation("Title is required")
	}
	return title, nil
}
