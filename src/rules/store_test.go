package rules_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/username/commissioncalc/backend/src/rules"
)

func TestVersion(t *testing.T) {
	assert.Equal(t, "", rules.Version(""))
	assert.Len(t, rules.Version("Partners get 40%"), 64)
	assert.Equal(t, rules.Version("a"), rules.Version("a"))
	assert.NotEqual(t, rules.Version("a"), rules.Version("b"))
}

func TestFileStore_EmptyBeforeFirstSave(t *testing.T) {
	store := rules.NewFileStore(filepath.Join(t.TempDir(), "rules.txt"))

	snap, err := store.Current(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.Empty())
	assert.Equal(t, "", snap.Version)
}

func TestFileStore_SaveAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "rules.txt")
	store := rules.NewFileStore(path)
	ctx := context.Background()

	saved, err := store.Save(ctx, "Partners get 40%, associates get 25%\n")
	require.NoError(t, err)
	assert.Equal(t, rules.Version("Partners get 40%, associates get 25%\n"), saved.Version)

	current, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, saved.Text, current.Text)
	assert.Equal(t, saved.Version, current.Version)
	assert.Equal(t, "Partners get 40%, associates get 25%", current.Trimmed())

	onDisk, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "Partners get 40%, associates get 25%\n", string(onDisk))

	// overwrite leaves no temp files behind
	_, err = store.Save(ctx, "Everyone gets 10%")
	require.NoError(t, err)
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestFileStore_ConcurrentReadersSeeWholeDocuments(t *testing.T) {
	store := rules.NewFileStore(filepath.Join(t.TempDir(), "rules.txt"))
	ctx := context.Background()
	docs := []string{"version one of the rules", "a completely different second version"}
	_, err := store.Save(ctx, docs[0])
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, _ = store.Save(ctx, docs[i%2])
		}(i)
		go func() {
			defer wg.Done()
			snap, err := store.Current(ctx)
			assert.NoError(t, err)
			assert.Contains(t, docs, snap.Text)
		}()
	}
	wg.Wait()
}

func TestMemoryStore(t *testing.T) {
	store := rules.NewMemoryStore("initial")
	ctx := context.Background()

	snap, err := store.Current(ctx)
	require.NoError(t, err)
	assert.Equal(t, "initial", snap.Text)

	saved, err := store.Save(ctx, "  ")
	require.NoError(t, err)
	assert.True(t, saved.Empty())

	var _ rules.Store = store
}
