package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/mongodb"
)

func setupTestDB(t *testing.T) (*MongoRepository, func()) {
	ctx := context.Background()

	mongoContainer, err := mongodb.Run(ctx, "mongo:7")
	require.NoError(t, err)

	uri, err := mongoContainer.ConnectionString(ctx)
	require.NoError(t, err)

	db, err := ConnectStateDB(ctx, MongoConfig{URI: uri, Database: "testdb", MaxPoolSize: 5})
	require.NoError(t, err)

	repo := NewMongoRepository(db)
	require.NoError(t, repo.CreateIndexes(ctx))

	cleanup := func() {
		if err := mongoContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}

	return repo, cleanup
}

func TestConnectStateDB_Unreachable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	db, err := ConnectStateDB(ctx, MongoConfig{URI: "mongodb://127.0.0.1:1", Database: "testdb"})
	assert.Nil(t, db)
	assert.ErrorContains(t, err, "ping state database")
}

func TestMongoRepository_GetNotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	value, err := repo.Get(context.Background(), "nonexistent", "loremshelf_cart")
	assert.ErrorIs(t, err, ErrStateNotFound)
	assert.Nil(t, value)
}

func TestMongoRepository_PutOverwrites(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, "s1", "loremshelf_checkout_step", []byte(`"shipping"`)))
	require.NoError(t, repo.Put(ctx, "s1", "loremshelf_checkout_step", []byte(`"payment"`)))

	value, err := repo.Get(ctx, "s1", "loremshelf_checkout_step")
	require.NoError(t, err)
	assert.Equal(t, `"payment"`, string(value))

	count, err := repo.collection.CountDocuments(ctx, map[string]string{"session_id": "s1"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMongoRepository_KeysAreIndependent(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.Put(ctx, "s1", "loremshelf_cart", []byte(`{"items":[],"total":0}`)))
	require.NoError(t, repo.Put(ctx, "s1", "loremshelf_customer_data", []byte(`{"customerId":"CUST-1"}`)))
	require.NoError(t, repo.Put(ctx, "s2", "loremshelf_cart", []byte(`{"items":[],"total":5}`)))

	require.NoError(t, repo.Delete(ctx, "s1", "loremshelf_cart"))

	_, err := repo.Get(ctx, "s1", "loremshelf_cart")
	assert.ErrorIs(t, err, ErrStateNotFound)

	value, err := repo.Get(ctx, "s1", "loremshelf_customer_data")
	require.NoError(t, err)
	assert.JSONEq(t, `{"customerId":"CUST-1"}`, string(value))

	value, err = repo.Get(ctx, "s2", "loremshelf_cart")
	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[],"total":5}`, string(value))
}

func TestMongoRepository_DeleteNoKeys(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	assert.NoError(t, repo.Delete(context.Background(), "s1"))
}

func TestContextCancellation(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Nanosecond)
	defer cancel()

	time.Sleep(10 * time.Millisecond)

	_, err := repo.Get(ctx, "s1", "loremshelf_cart")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "context")
}
