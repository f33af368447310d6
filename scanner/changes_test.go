package scanner

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"photocatalog/models"
)

func TestDetectorNewFile(t *testing.T) {
	d := NewDetector(nil, false)
	assert.Equal(t, ProcessNew, d.Decide("/never/seen.jpg"))
}

func TestDetectorUnchangedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	writeFile(t, path)
	mtime, err := ModTime(path)
	require.NoError(t, err)

	d := NewDetector(map[string]models.FileState{
		path: {Mtime: &mtime},
	}, false)
	assert.Equal(t, Skip, d.Decide(path))
}

func TestDetectorChangedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	writeFile(t, path)
	mtime, err := ModTime(path)
	require.NoError(t, err)
	stale := mtime - 100

	d := NewDetector(map[string]models.FileState{
		path: {Mtime: &stale},
	}, false)
	assert.Equal(t, ProcessChanged, d.Decide(path))
}

func TestDetectorMissingStoredMtime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	writeFile(t, path)

	// a prior record without an mtime cannot prove the file is unchanged
	d := NewDetector(map[string]models.FileState{
		path: {},
	}, false)
	assert.Equal(t, ProcessChanged, d.Decide(path))
}

func TestDetectorForceMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	writeFile(t, path)
	mtime, err := ModTime(path)
	require.NoError(t, err)

	d := NewDetector(map[string]models.FileState{
		path: {Mtime: &mtime},
	}, true)
	assert.Equal(t, ProcessNew, d.Decide(path))
}

func TestDetectorVanishedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "photo.jpg")
	mtime := int64(1700000000)

	d := NewDetector(map[string]models.FileState{
		path: {Mtime: &mtime},
	}, false)
	assert.Equal(t, ProcessChanged, d.Decide(path))
}

func TestHashFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.jpg")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	hash, err := HashFile(path)
	require.NoError(t, err)
	assert.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", hash)
}

func TestHashFileMissing(t *testing.T) {
	_, err := HashFile(filepath.Join(t.TempDir(), "absent.jpg"))
	assert.Error(t, err)
}
