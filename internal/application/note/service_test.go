package note

import (
	"context"
	"testing"

	"github.com/hd-notes/notes-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockNoteStore struct{ mock.Mock }

func (m *mockNoteStore) ListByUser(ctx context.Context, userID string) ([]domain.Note, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).([]domain.Note), args.Error(1)
}
func (m *mockNoteStore) Create(ctx context.Context, n *domain.Note) error {
	return m.Called(ctx, n).Error(0)
}
func (m *mockNoteStore) UpdateOwned(ctx context.Context, userID, noteID, title, content string) (*domain.Note, error) {
	args := m.Called(ctx, userID, noteID, title, content)
	if n, _ := args.Get(0).(*domain.Note); n != nil {
		return n, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockNoteStore) DeleteOwned(ctx context.Context, userID, noteID string) error {
	return m.Called(ctx, userID, noteID).Error(0)
}

func TestCreate_TrimsTitle(t *testing.T) {
	repo := &mockNoteStore{}
	svc := NewService(repo)
	ctx := context.Background()

	repo.On("Create", ctx, mock.MatchedBy(func(n *domain.Note) bool {
		return n.UserID == "u1" && n.Title == "Groceries" && n.Content == "" && n.ID != ""
	})).Return(nil)

	n, err := svc.Create(ctx, "u1", domain.NoteRequest{Title: "  Groceries  "})
	require.NoError(t, err)
	assert.Equal(t, "Groceries", n.Title)
	repo.AssertExpectations(t)
}

func TestCreate_BlankTitle(t *testing.T) {
	repo := &mockNoteStore{}
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), "u1", domain.NoteRequest{Title: "   "})
	assert.ErrorIs(t, err, domain.ErrBadRequest)
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestUpdate_NotOwned(t *testing.T) {
	repo := &mockNoteStore{}
	svc := NewService(repo)
	ctx := context.Background()

	repo.On("UpdateOwned", ctx, "u2", "n1", "Title", "body").Return(nil, domain.ErrNoteNotFound)

	_, err := svc.Update(ctx, "u2", "n1", domain.NoteRequest{Title: "Title ", Content: "body"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDelete_PassesOwner(t *testing.T) {
	repo := &mockNoteStore{}
	svc := NewService(repo)
	ctx := context.Background()

	repo.On("DeleteOwned", ctx, "u1", "n1").Return(nil)

	require.NoError(t, svc.Delete(ctx, "u1", "n1"))
	repo.AssertExpectations(t)
}

func TestList(t *testing.T) {
	repo := &mockNoteStore{}
	svc := NewService(repo)
	ctx := context.Background()

	repo.On("ListByUser", ctx, "u1").Return([]domain.Note{{ID: "n2"}, {ID: "n1"}}, nil)

	notes, err := svc.List(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, notes, 2)
}
