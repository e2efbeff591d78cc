package session

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStore_Path(t *testing.T) {
	t.Parallel()

	s := NewFileStore("/var/lib/portfolio")
	p := s.Path("investor")

	assert.Equal(t, "/var/lib/portfolio", filepath.Dir(p))
	assert.Len(t, filepath.Base(p), 16+len(".json"))
	assert.Equal(t, p, s.Path("investor"))
	assert.NotEqual(t, p, s.Path("another"))
	assert.NotContains(t, p, "investor")
}

func TestFileStore_Lifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewFileStore(filepath.Join(t.TempDir(), "sessions"))

	ok, err := s.Exists(ctx, "investor")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Load(ctx, "investor")
	assert.ErrorIs(t, err, ErrNoBlob)

	require.NoError(t, s.Save(ctx, "investor", []byte(`{"cookies":[]}`)))

	ok, err = s.Exists(ctx, "investor")
	require.NoError(t, err)
	assert.True(t, ok)

	b, err := s.Load(ctx, "investor")
	require.NoError(t, err)
	assert.JSONEq(t, `{"cookies":[]}`, string(b))

	info, err := os.Stat(s.Path("investor"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	require.NoError(t, s.Delete(ctx, "investor"))
	ok, err = s.Exists(ctx, "investor")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting twice is not an error.
	assert.NoError(t, s.Delete(ctx, "investor"))
}

func TestFileStore_SaveOverwritesAtomically(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	dir := t.TempDir()
	s := NewFileStore(dir)

	require.NoError(t, s.Save(ctx, "investor", []byte("first")))
	require.NoError(t, s.Save(ctx, "investor", []byte("second")))

	b, err := s.Load(ctx, "investor")
	require.NoError(t, err)
	assert.Equal(t, "second", string(b))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileStore_ConcurrentUsers(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s := NewFileStore(t.TempDir())

	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			user := fmt.Sprintf("user-%d", i%4)
			for range 10 {
				assert.NoError(t, s.Save(ctx, user, []byte(user)))
			}
		}()
	}
	wg.Wait()

	for i := range 4 {
		user := fmt.Sprintf("user-%d", i)
		b, err := s.Load(ctx, user)
		require.NoError(t, err)
		assert.Equal(t, user, string(b))
	}
}
