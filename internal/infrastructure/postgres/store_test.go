package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hd-notes/notes-api/internal/domain"
	"github.com/hd-notes/notes-api/internal/pkg/id"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open("sqlite", ":memory:", true)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func newCode(email string, expiresIn time.Duration) *domain.OneTimeCode {
	return &domain.OneTimeCode{
		ID:        id.New(),
		Email:     email,
		CodeHash:  "hash",
		Purpose:   domain.PurposeSignup,
		ExpiresAt: time.Now().UTC().Add(expiresIn),
	}
}

func TestOpen_UnsupportedDriver(t *testing.T) {
	_, err := Open("mysql", "dsn", false)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestUserRepo_CreateAndLookup(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(setupTestDB(t))

	u := &domain.User{ID: id.New(), Email: "a@x.com", Name: "Ann"}
	require.NoError(t, repo.Create(ctx, u))

	got, err := repo.GetByEmail(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	assert.False(t, got.Verified)

	got, err = repo.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", got.Name)

	_, err = repo.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepo_CreateDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(setupTestDB(t))

	require.NoError(t, repo.Create(ctx, &domain.User{ID: id.New(), Email: "a@x.com"}))
	err := repo.Create(ctx, &domain.User{ID: id.New(), Email: "a@x.com"})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUserRepo_UpsertKeepsID(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(setupTestDB(t))

	first, err := repo.Upsert(ctx, &domain.User{ID: id.New(), Email: "a@x.com", Name: "Ann"})
	require.NoError(t, err)

	second, err := repo.Upsert(ctx, &domain.User{ID: id.New(), Email: "a@x.com", Name: "Anne"})
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Anne", second.Name)
}

func TestUserRepo_MarkVerified(t *testing.T) {
	ctx := context.Background()
	repo := NewUserRepo(setupTestDB(t))

	u := &domain.User{ID: id.New(), Email: "a@x.com"}
	require.NoError(t, repo.Create(ctx, u))
	require.NoError(t, repo.MarkVerified(ctx, u.ID))

	got, err := repo.Get(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, got.Verified)

	assert.ErrorIs(t, repo.MarkVerified(ctx, "missing"), domain.ErrUserNotFound)
}

func TestCodeRepo_ReplaceRetiresPrevious(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewCodeRepo(db)

	first := newCode("a@x.com", 10*time.Minute)
	require.NoError(t, repo.Replace(ctx, first))
	second := newCode("a@x.com", 10*time.Minute)
	require.NoError(t, repo.Replace(ctx, second))
	other := newCode("b@x.com", 10*time.Minute)
	require.NoError(t, repo.Replace(ctx, other))

	latest, err := repo.LatestUnused(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	var stored domain.OneTimeCode
	require.NoError(t, db.First(&stored, "id = ?", first.ID).Error)
	assert.True(t, stored.Used)

	latest, err = repo.LatestUnused(ctx, "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, other.ID, latest.ID)
}

func TestCodeRepo_LatestUnusedMissing(t *testing.T) {
	_, err := NewCodeRepo(setupTestDB(t)).LatestUnused(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCodeRepo_MarkUsedOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewCodeRepo(setupTestDB(t))

	c := newCode("a@x.com", 10*time.Minute)
	require.NoError(t, repo.Replace(ctx, c))

	ok, err := repo.MarkUsed(ctx, c.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkUsed(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = repo.LatestUnused(ctx, "a@x.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCodeRepo_MarkUsedConcurrent(t *testing.T) {
	ctx := context.Background()
	repo := NewCodeRepo(setupTestDB(t))

	c := newCode("a@x.com", 10*time.Minute)
	require.NoError(t, repo.Replace(ctx, c))

	const callers = 8
	var wg sync.WaitGroup
	results := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.MarkUsed(ctx, c.ID)
			assert.NoError(t, err)
			results <- ok
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for ok := range results {
		if ok {
			wins++
		}
	}
	assert.Equal(t, 1, wins)
}

func TestCodeRepo_ConsumeRetiresSiblings(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewCodeRepo(db)

	// Two live codes for one email, as left behind by interleaved issuers.
	older := newCode("a@x.com", 10*time.Minute)
	newer := newCode("a@x.com", 10*time.Minute)
	newer.CreatedAt = time.Now().UTC().Add(time.Second)
	other := newCode("b@x.com", 10*time.Minute)
	require.NoError(t, db.Create(older).Error)
	require.NoError(t, db.Create(newer).Error)
	require.NoError(t, db.Create(other).Error)

	ok, err := repo.Consume(ctx, newer)
	require.NoError(t, err)
	assert.True(t, ok)

	var stored domain.OneTimeCode
	require.NoError(t, db.First(&stored, "id = ?", older.ID).Error)
	assert.True(t, stored.Used, "older sibling must be retired with the consumed code")
	_, err = repo.LatestUnused(ctx, "a@x.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	latest, err := repo.LatestUnused(ctx, "b@x.com")
	require.NoError(t, err)
	assert.Equal(t, other.ID, latest.ID)

	ok, err = repo.Consume(ctx, newer)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCodeRepo_ConsumeLoserChangesNothing(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewCodeRepo(db)

	spent := newCode("a@x.com", 10*time.Minute)
	spent.Used = true
	live := newCode("a@x.com", 10*time.Minute)
	require.NoError(t, db.Create(spent).Error)
	require.NoError(t, db.Create(live).Error)

	ok, err := repo.Consume(ctx, spent)
	require.NoError(t, err)
	assert.False(t, ok)

	latest, err := repo.LatestUnused(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, live.ID, latest.ID)
}

func TestCodeRepo_PurgeStale(t *testing.T) {
	ctx := context.Background()
	repo := NewCodeRepo(setupTestDB(t))

	expired := newCode("old@x.com", -time.Minute)
	require.NoError(t, repo.Replace(ctx, expired))
	used := newCode("a@x.com", 10*time.Minute)
	require.NoError(t, repo.Replace(ctx, used))
	live := newCode("a@x.com", 10*time.Minute)
	require.NoError(t, repo.Replace(ctx, live))

	n, err := repo.PurgeStale(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	latest, err := repo.LatestUnused(ctx, "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, live.ID, latest.ID)
}

func TestNoteRepo_OwnershipIsolation(t *testing.T) {
	ctx := context.Background()
	repo := NewNoteRepo(setupTestDB(t))

	a1 := &domain.Note{ID: id.New(), UserID: "userA", Title: "one"}
	require.NoError(t, repo.Create(ctx, a1))
	a2 := &domain.Note{ID: id.New(), UserID: "userA", Title: "two"}
	require.NoError(t, repo.Create(ctx, a2))

	notes, err := repo.ListByUser(ctx, "userB")
	require.NoError(t, err)
	assert.Empty(t, notes)

	_, err = repo.UpdateOwned(ctx, "userB", a1.ID, "hijack", "")
	assert.ErrorIs(t, err, domain.ErrNoteNotFound)
	assert.ErrorIs(t, repo.DeleteOwned(ctx, "userB", a1.ID), domain.ErrNoteNotFound)

	notes, err = repo.ListByUser(ctx, "userA")
	require.NoError(t, err)
	require.Len(t, notes, 2)
}

func TestNoteRepo_UpdateReordersList(t *testing.T) {
	ctx := context.Background()
	repo := NewNoteRepo(setupTestDB(t))

	first := &domain.Note{ID: id.New(), UserID: "u", Title: "first"}
	require.NoError(t, repo.Create(ctx, first))
	second := &domain.Note{ID: id.New(), UserID: "u", Title: "second"}
	require.NoError(t, repo.Create(ctx, second))

	updated, err := repo.UpdateOwned(ctx, "u", first.ID, "first edited", "body")
	require.NoError(t, err)
	assert.Equal(t, "first edited", updated.Title)
	assert.Equal(t, "body", updated.Content)

	notes, err := repo.ListByUser(ctx, "u")
	require.NoError(t, err)
	require.Len(t, notes, 2)
	assert.Equal(t, first.ID, notes[0].ID)

	require.NoError(t, repo.DeleteOwned(ctx, "u", first.ID))
	notes, err = repo.ListByUser(ctx, "u")
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, second.ID, notes[0].ID)
}

func TestNoteRepo_Ping(t *testing.T) {
	assert.NoError(t, NewNoteRepo(setupTestDB(t)).Ping(context.Background()))
}
