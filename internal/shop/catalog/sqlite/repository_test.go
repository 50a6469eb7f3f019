package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopmesh/orderflow/internal/shop/catalog"
)

func openTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Open(t.TempDir() + "/catalog.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestCreateAndFindByIDs(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	items := []catalog.Item{
		{ID: "a", Name: "widget", Price: 10, CreatedAt: time.Now().UTC()},
		{ID: "b", Name: "gadget", Price: 5, CreatedAt: time.Now().UTC()},
		{ID: "c", Name: "gizmo", Price: 2.5, CreatedAt: time.Now().UTC()},
	}
	for i := range items {
		require.NoError(t, repo.Create(ctx, &items[i]))
	}

	found, err := repo.FindByIDs(ctx, []string{"a", "c"})
	require.NoError(t, err)
	require.Len(t, found, 2)

	byID := map[string]catalog.Item{}
	for _, it := range found {
		byID[it.ID] = it
	}
	assert.Equal(t, "widget", byID["a"].Name)
	assert.Equal(t, 2.5, byID["c"].Price)
}

func TestFindByIDsSkipsUnknown(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &catalog.Item{
		ID: "a", Name: "widget", Price: 10, CreatedAt: time.Now().UTC(),
	}))

	found, err := repo.FindByIDs(ctx, []string{"a", "ghost"})
	require.NoError(t, err)
	assert.Len(t, found, 1, "unknown ids are simply absent; the service layer decides what that means")
}

func TestFindAll(t *testing.T) {
	repo := openTestRepo(t)
	ctx := context.Background()

	all, err := repo.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	require.NoError(t, repo.Create(ctx, &catalog.Item{
		ID: "a", Name: "widget", Price: 10, CreatedAt: time.Now().UTC(),
	}))

	all, err = repo.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "widget", all[0].Name)
}

func TestCreateRejectsNegativePrice(t *testing.T) {
	repo := openTestRepo(t)

	err := repo.Create(context.Background(), &catalog.Item{
		ID: "a", Name: "widget", Price: -1, CreatedAt: time.Now().UTC(),
	})
	require.Error(t, err)
}
