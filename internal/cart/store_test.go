package cart

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/theauditor/loremshelf/domain"
	"github.com/theauditor/loremshelf/internal/repository"
	"github.com/theauditor/loremshelf/internal/state"
)

// flakyRepository fails the next failGets reads.
type flakyRepository struct {
	*repository.MemoryRepository
	mu       sync.Mutex
	failGets int
}

func (f *flakyRepository) Get(ctx context.Context, sessionID, key string) ([]byte, error) {
	f.mu.Lock()
	if f.failGets > 0 {
		f.failGets--
		f.mu.Unlock()
		return nil, errors.New("server selection timeout")
	}
	f.mu.Unlock()
	return f.MemoryRepository.Get(ctx, sessionID, key)
}

func (f *flakyRepository) failNextGets(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failGets = n
}

func setupStore(t *testing.T) (*Store, *flakyRepository) {
	repo := &flakyRepository{MemoryRepository: repository.NewMemoryRepository()}
	st := state.NewStore(repo, nil, nil)
	return NewStore(st, nil), repo
}

func apply(t *testing.T, store *Store, sessionID string, action Action) domain.CartState {
	t.Helper()
	next, err := store.Apply(context.Background(), sessionID, action)
	require.NoError(t, err)
	return next
}

func TestStore_GetWithoutSession(t *testing.T) {
	store, repo := setupStore(t)

	cart := store.Get(context.Background(), "")
	assert.True(t, cart.IsEmpty())

	next := apply(t, store, "", AddItem(bookA))
	assert.Len(t, next.Items, 1)

	_, err := repo.Get(context.Background(), "", state.KeyCart)
	assert.ErrorIs(t, err, repository.ErrStateNotFound)
}

func TestStore_PersistsEveryChange(t *testing.T) {
	store, _ := setupStore(t)
	ctx := context.Background()

	apply(t, store, "s1", AddItem(bookA))
	apply(t, store, "s1", AddItem(bookB))
	apply(t, store, "s1", UpdateQuantity(bookB.ID, 3))

	cart := store.Get(ctx, "s1")
	assert.Equal(t, []string{bookA.ID, bookB.ID}, cart.IDs())
	assert.Equal(t, int64(299+450*3), cart.Total)

	apply(t, store, "s1", RemoveItem(bookA.ID))
	assert.Equal(t, []string{bookB.ID}, store.Get(ctx, "s1").IDs())

	apply(t, store, "s1", ClearCart())
	assert.True(t, store.Get(ctx, "s1").IsEmpty())
}

func TestStore_SessionsAreIsolated(t *testing.T) {
	store, _ := setupStore(t)

	apply(t, store, "s1", AddItem(bookA))

	assert.True(t, store.Get(context.Background(), "s2").IsEmpty())
}

func TestStore_CorruptEntryYieldsEmptyCart(t *testing.T) {
	store, repo := setupStore(t)
	ctx := context.Background()
	require.NoError(t, repo.Put(ctx, "s1", state.KeyCart, []byte("not json")))

	assert.True(t, store.Get(ctx, "s1").IsEmpty())

	next := apply(t, store, "s1", AddItem(bookA))
	assert.Len(t, next.Items, 1)
}

func TestStore_ReadFailureDoesNotOverwriteCart(t *testing.T) {
	store, repo := setupStore(t)
	ctx := context.Background()

	apply(t, store, "s1", AddItem(bookA))
	apply(t, store, "s1", AddItem(bookB))

	repo.failNextGets(1)
	_, err := store.Apply(ctx, "s1", AddItem(domain.CartLine{ID: "BOOK-D", Price: 100}))
	require.ErrorContains(t, err, "server selection timeout")

	cart := store.Get(ctx, "s1")
	assert.Equal(t, []string{bookA.ID, bookB.ID}, cart.IDs())
	assert.Equal(t, int64(299+450), cart.Total)
}

func TestStore_GetFallsBackToEmptyOnReadFailure(t *testing.T) {
	store, repo := setupStore(t)
	ctx := context.Background()
	apply(t, store, "s1", AddItem(bookA))

	repo.failNextGets(1)
	assert.True(t, store.Get(ctx, "s1").IsEmpty())
	assert.Equal(t, []string{bookA.ID}, store.Get(ctx, "s1").IDs())
}

func TestStore_StaleTotalIsRecomputed(t *testing.T) {
	store, repo := setupStore(t)
	ctx := context.Background()
	require.NoError(t, repo.Put(ctx, "s1", state.KeyCart,
		[]byte(`{"items":[{"id":"BOOK-A","title":"x","author":"y","price":100,"quantity":2,"image":""}],"total":5}`)))

	cart := store.Get(ctx, "s1")
	assert.Equal(t, int64(200), cart.Total)
}

func TestStore_ConcurrentAddsUnderSessionLock(t *testing.T) {
	store, _ := setupStore(t)
	locker := state.NewSessionLocker()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := locker.Lock("s1")
			defer unlock()
			_, _ = store.Apply(ctx, "s1", AddItem(domain.CartLine{ID: "BOOK-A", Price: 10}))
		}()
	}
	wg.Wait()

	cart := store.Get(ctx, "s1")
	require.Len(t, cart.Items, 1)
	assert.Equal(t, 25, cart.Items[0].Quantity)
	assert.Equal(t, int64(250), cart.Total)
}
