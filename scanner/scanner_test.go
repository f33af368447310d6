package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestIsImage(t *testing.T) {
	assert.True(t, IsImage("photo.jpg"))
	assert.True(t, IsImage("photo.JPG"))
	assert.True(t, IsImage("shot.CR2"))
	assert.True(t, IsImage("scan.tiff"))
	assert.False(t, IsImage("notes.txt"))
	assert.False(t, IsImage("archive.zip"))
	assert.False(t, IsImage("photo"))
}

func TestCollect(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "photo2.jpg"))
	writeFile(t, filepath.Join(root, "photo10.jpg"))
	writeFile(t, filepath.Join(root, "notes.txt"))
	writeFile(t, filepath.Join(root, "trip", "beach.png"))

	paths, err := Collect(context.Background(), root)
	require.NoError(t, err)
	require.Len(t, paths, 3)

	// natural order: photo2 sorts before photo10
	assert.Equal(t, filepath.Join(root, "photo2.jpg"), paths[0])
	assert.Equal(t, filepath.Join(root, "photo10.jpg"), paths[1])
	assert.Equal(t, filepath.Join(root, "trip", "beach.png"), paths[2])
}

func TestCollectCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "photo.jpg"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	paths, err := Collect(ctx, root)
	require.NoError(t, err)
	assert.Empty(t, paths)
}
