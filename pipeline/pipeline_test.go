package pipeline

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"photocatalog/database"
	"photocatalog/geo"
	"photocatalog/metadata"
	"photocatalog/models"
	"photocatalog/repository"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	// a named shared-cache in-memory DB keeps all pooled connections on the
	// same database; plain ":memory:" gives each connection its own empty DB
	dsn := "file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// fakeTagReader parses fixture files of "key=value" lines instead of real
// EXIF blocks and counts how often each file body is read.
type fakeTagReader struct {
	mu    sync.Mutex
	calls map[string]int
}

func newFakeTagReader() *fakeTagReader {
	return &fakeTagReader{calls: map[string]int{}}
}

func (f *fakeTagReader) Extract(r io.Reader) (*metadata.Fields, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	content := string(raw)

	f.mu.Lock()
	f.calls[content]++
	f.mu.Unlock()

	if strings.HasPrefix(content, "corrupt") {
		return nil, &metadata.ParseError{Err: errors.New("bad tag block")}
	}

	fields := &metadata.Fields{}
	for _, line := range strings.Split(content, "\n") {
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		v := value
		switch key {
		case "datetime":
			fields.DateTime = &v
		case "camera":
			fields.CameraModel = &v
		case "iso":
			fields.ISO = &v
		case "gps":
			latStr, lonStr, ok := strings.Cut(value, ",")
			if !ok {
				continue
			}
			lat, err1 := strconv.ParseFloat(latStr, 64)
			lon, err2 := strconv.ParseFloat(lonStr, 64)
			if err1 != nil || err2 != nil {
				continue
			}
			fields.GPS = &metadata.Position{Latitude: lat, Longitude: lon}
		}
	}
	return fields, nil
}

func (f *fakeTagReader) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

func writeFixture(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func seedCincinnati(t *testing.T, places *repository.PlaceRepository) {
	t.Helper()
	oh, us := "OH", "US"
	require.NoError(t, places.InsertBatch([]models.Place{
		{GeonameID: 4508722, Name: "Cincinnati", Latitude: 39.10, Longitude: -84.51, Admin1Code: &oh, CountryCode: &us},
	}))
}

func TestRunCatalogsNewFiles(t *testing.T) {
	db := setupTestDB(t)
	photos := repository.NewPhotoRepository(db)
	places := repository.NewPlaceRepository(db)
	seedCincinnati(t, places)

	dir := t.TempDir()
	tripPath := writeFixture(t, dir, "trip.jpg",
		"datetime=2008:09:12 14:30:00\ncamera=TestCam\ngps=39.1031,-84.5120")
	writeFixture(t, dir, "home.jpg", "datetime=2008:09:13 10:00:00")
	writeFixture(t, dir, "notes.txt", "not an image")

	resolver := geo.NewResolver(places, geo.DefaultMaxDistanceKM)
	pipe := New(photos, newFakeTagReader(), resolver, Options{})

	stats, err := pipe.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Found)
	assert.Equal(t, 2, stats.New)
	assert.Zero(t, stats.Updated)
	assert.Zero(t, stats.Skipped)
	assert.Zero(t, stats.Failed)
	assert.Equal(t, 1, stats.WithGPS)
	assert.Equal(t, 2, stats.Written)

	trip, err := photos.GetByPath(tripPath)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessed, trip.Status)
	require.NotNil(t, trip.DateTime)
	assert.Equal(t, "2008:09:12 14:30:00", *trip.DateTime)
	require.NotNil(t, trip.CameraModel)
	assert.Equal(t, "TestCam", *trip.CameraModel)
	require.NotNil(t, trip.GPSLat)
	assert.InDelta(t, 39.1031, *trip.GPSLat, 1e-6)
	require.NotNil(t, trip.Location)
	assert.Equal(t, "Cincinnati, OH, US", *trip.Location)
	require.NotNil(t, trip.FileHash)
	require.NotNil(t, trip.FileMtime)
}

func TestRunRecordsFailures(t *testing.T) {
	db := setupTestDB(t)
	photos := repository.NewPhotoRepository(db)

	dir := t.TempDir()
	badPath := writeFixture(t, dir, "broken.jpg", "corrupt tag soup")
	writeFixture(t, dir, "fine.jpg", "datetime=2024:01:01 10:00:00")

	pipe := New(photos, newFakeTagReader(), nil, Options{})
	stats, err := pipe.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.New)
	assert.Equal(t, 2, stats.Written)

	bad, err := photos.GetByPath(badPath)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, bad.Status)
	require.NotNil(t, bad.ErrorMessage)
	assert.Contains(t, *bad.ErrorMessage, "bad tag block")
	assert.Nil(t, bad.DateTime)

	// fingerprint recorded even for failures so the skip gate applies
	require.NotNil(t, bad.FileHash)
	require.NotNil(t, bad.FileMtime)
}

func TestRunSkipsUnchangedFiles(t *testing.T) {
	db := setupTestDB(t)
	photos := repository.NewPhotoRepository(db)

	dir := t.TempDir()
	writeFixture(t, dir, "a.jpg", "datetime=2024:01:01 10:00:00")
	writeFixture(t, dir, "b.jpg", "corrupt tag soup")

	tags := newFakeTagReader()
	pipe := New(photos, tags, nil, Options{})

	_, err := pipe.Run(context.Background(), dir)
	require.NoError(t, err)
	callsAfterFirst := tags.totalCalls()
	assert.Equal(t, 2, callsAfterFirst)

	stats, err := pipe.Run(context.Background(), dir)
	require.NoError(t, err)

	// both the processed and the failed file are unchanged on disk
	assert.Equal(t, 2, stats.Skipped)
	assert.Zero(t, stats.Written)
	assert.Equal(t, callsAfterFirst, tags.totalCalls(), "unchanged files must not be re-read")
}

func TestRunReprocessesChangedFiles(t *testing.T) {
	db := setupTestDB(t)
	photos := repository.NewPhotoRepository(db)

	dir := t.TempDir()
	path := writeFixture(t, dir, "a.jpg", "datetime=2024:01:01 10:00:00")

	pipe := New(photos, newFakeTagReader(), nil, Options{})
	_, err := pipe.Run(context.Background(), dir)
	require.NoError(t, err)

	first, err := photos.GetByPath(path)
	require.NoError(t, err)

	// rewrite with a mtime guaranteed to differ from the stored one
	require.NoError(t, os.WriteFile(path, []byte("datetime=2024:02:02 11:00:00\ncamera=NewCam"), 0o644))
	past := time.Unix(1600000000, 0)
	require.NoError(t, os.Chtimes(path, past, past))

	stats, err := pipe.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Updated)
	assert.Zero(t, stats.New)

	updated, err := photos.GetByPath(path)
	require.NoError(t, err)
	assert.Equal(t, first.ID, updated.ID)
	require.NotNil(t, updated.CameraModel)
	assert.Equal(t, "NewCam", *updated.CameraModel)
}

func TestRunForceReprocess(t *testing.T) {
	db := setupTestDB(t)
	photos := repository.NewPhotoRepository(db)

	dir := t.TempDir()
	writeFixture(t, dir, "a.jpg", "datetime=2024:01:01 10:00:00")

	tags := newFakeTagReader()
	pipe := New(photos, tags, nil, Options{})
	_, err := pipe.Run(context.Background(), dir)
	require.NoError(t, err)

	forced := New(photos, tags, nil, Options{ForceReprocess: true})
	stats, err := forced.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Zero(t, stats.Skipped)
	assert.Equal(t, 1, stats.Written)
	assert.Equal(t, 2, tags.totalCalls())

	count, err := photos.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "force mode rewrites, never duplicates")
}

func TestRunMissingDirectory(t *testing.T) {
	photos := repository.NewPhotoRepository(setupTestDB(t))
	pipe := New(photos, newFakeTagReader(), nil, Options{})

	_, err := pipe.Run(context.Background(), filepath.Join(t.TempDir(), "absent"))
	assert.Error(t, err)
}

func TestRunCancelledContext(t *testing.T) {
	photos := repository.NewPhotoRepository(setupTestDB(t))

	dir := t.TempDir()
	writeFixture(t, dir, "a.jpg", "datetime=2024:01:01 10:00:00")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pipe := New(photos, newFakeTagReader(), nil, Options{})
	stats, err := pipe.Run(ctx, dir)

	// cancellation finalizes early, it is not an error
	require.NoError(t, err)
	assert.Zero(t, stats.Written)
}

// cancellingTagReader cancels the run from inside the Nth extraction, as a
// signal arriving mid-run would.
type cancellingTagReader struct {
	inner  *fakeTagReader
	cancel context.CancelFunc
	after  int

	mu    sync.Mutex
	calls int
}

func (c *cancellingTagReader) Extract(r io.Reader) (*metadata.Fields, error) {
	c.mu.Lock()
	c.calls++
	if c.calls == c.after {
		c.cancel()
	}
	c.mu.Unlock()
	return c.inner.Extract(r)
}

func TestRunCancelledMidRunCommitsPartialWork(t *testing.T) {
	db := setupTestDB(t)
	photos := repository.NewPhotoRepository(db)

	dir := t.TempDir()
	var paths []string
	for i := 1; i <= 6; i++ {
		paths = append(paths, writeFixture(t, dir, "img"+strconv.Itoa(i)+".jpg",
			"datetime=2024:01:0"+strconv.Itoa(i)+" 10:00:00"))
	}

	// cancel on the fourth read; with one worker the first three results have
	// already reached the writer by then
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tags := &cancellingTagReader{inner: newFakeTagReader(), cancel: cancel, after: 4}

	// commit threshold far above the file count, so durability relies on the
	// finalize commit alone
	pipe := New(photos, tags, nil, Options{Workers: 1, CommitEvery: 100})
	stats, err := pipe.Run(ctx, dir)
	require.NoError(t, err, "cancellation finalizes early, it is not an error")

	assert.GreaterOrEqual(t, stats.Written, 3)

	// everything counted as written survived the cancelled run
	count, err := photos.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(stats.Written), count)

	for _, path := range paths[:3] {
		photo, err := photos.GetByPath(path)
		require.NoError(t, err)
		assert.Equal(t, models.StatusProcessed, photo.Status)
	}
}

func TestRunWithWorkerPool(t *testing.T) {
	db := setupTestDB(t)
	photos := repository.NewPhotoRepository(db)

	dir := t.TempDir()
	for i := 0; i < 12; i++ {
		writeFixture(t, dir, "img"+strconv.Itoa(i)+".jpg",
			"datetime=2024:01:0"+strconv.Itoa(i%9+1)+" 10:00:00\niso=100")
	}

	pipe := New(photos, newFakeTagReader(), nil, Options{Workers: 4, CommitEvery: 5})
	stats, err := pipe.Run(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 12, stats.Found)
	assert.Equal(t, 12, stats.Written)

	count, err := photos.Count()
	require.NoError(t, err)
	assert.Equal(t, int64(12), count)
}
