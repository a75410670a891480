package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/teller/pkg/adapters/file"
	"github.com/aretw0/teller/pkg/domain"
	"github.com/aretw0/teller/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.AccountStore = (*file.Store)(nil)

func TestFileStore_Contract(t *testing.T) {
	ports.RunAccountStoreContract(t, file.New(t.TempDir()))
}

func TestFileStore_WritesReadableJSON(t *testing.T) {
	dir := t.TempDir()
	store := file.New(dir)

	require.NoError(t, store.Save(context.Background(), &domain.Account{ID: "user_123", Name: "Melanie"}))

	data, err := os.ReadFile(filepath.Join(dir, "user_123.json"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"name": "Melanie"`)

	leftovers, err := filepath.Glob(filepath.Join(dir, "tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers, "temp files must be cleaned up")
}

func TestFileStore_RejectsPathTraversal(t *testing.T) {
	store := file.New(t.TempDir())
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, &domain.Account{ID: "../escape"}))
	_, err := store.Load(ctx, "a/b")
	assert.Error(t, err)
	assert.Error(t, store.Delete(ctx, ""))
}

func TestFileStore_ListMissingDirectory(t *testing.T) {
	store := file.New(filepath.Join(t.TempDir(), "absent"))
	ids, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}
