package pipeline

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"photocatalog/metadata"
	"photocatalog/models"
	"photocatalog/repository"
	"photocatalog/scanner"
)

// TagReader is the tag-extraction capability boundary: raw file bytes in,
// a typed field record or a parse failure out.
type TagReader interface {
	Extract(r io.Reader) (*metadata.Fields, error)
}

// LocationResolver resolves a coordinate to a formatted place string.
// ok=false means nothing within range; errors degrade to no location.
type LocationResolver interface {
	Nearest(ctx context.Context, lat, lon float64) (string, bool, error)
}

// Stats holds the run-scoped counters reported at finalize. They are not
// persisted.
type Stats struct {
	Found   int
	New     int
	Updated int
	Skipped int
	Failed  int
	WithGPS int
	Written int
}

// Options tune one processing run.
type Options struct {
	ForceReprocess bool
	CommitEvery    int
	Workers        int
	ProgressEvery  int
}

// Pipeline drives traversal, change detection, tag extraction, location
// resolution and durable upsert for one directory tree.
type Pipeline struct {
	photos   *repository.PhotoRepository
	tags     TagReader
	resolver LocationResolver // nil disables location lookup
	opts     Options
}

// New builds a pipeline. Pass a nil resolver to skip location lookup.
func New(photos *repository.PhotoRepository, tags TagReader, resolver LocationResolver, opts Options) *Pipeline {
	if opts.CommitEvery <= 0 {
		opts.CommitEvery = repository.DefaultCommitEvery
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.ProgressEvery <= 0 {
		opts.ProgressEvery = 200
	}
	return &Pipeline{photos: photos, tags: tags, resolver: resolver, opts: opts}
}

// job carries one new or changed candidate into the extraction pool.
type job struct {
	path     string
	hadPrior bool
}

// result is what the pool hands to the single writer.
type result struct {
	path     string
	hadPrior bool
	hash     *string
	mtime    *int64
	fields   *metadata.Fields
	failure  error // per-file failure; never aborts the run
}

// Run processes every catalogable file under root: scan, detect, extract,
// resolve, persist. Hashing and extraction fan out over a small worker pool;
// location resolution and persistence stay serialized on a single batch
// writer. Cancellation finalizes early: outstanding writes are committed and
// partial counters reported, which is not an error. Store-level write errors
// terminate the run.
func (p *Pipeline) Run(ctx context.Context, root string) (*Stats, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve directory %s: %w", root, err)
	}
	info, err := os.Stat(absRoot)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("directory %s does not exist", absRoot)
	}

	runID := uuid.New().String()[:8]
	log.Printf("run %s: scanning images in %s...", runID, absRoot)

	paths, err := scanner.Collect(ctx, absRoot)
	if err != nil {
		return nil, err
	}

	stats := &Stats{Found: len(paths)}
	log.Printf("run %s: found %d image files to process", runID, stats.Found)

	prior := map[string]models.FileState{}
	if p.opts.ForceReprocess {
		log.Printf("run %s: force reprocess mode, all files will be re-read", runID)
	} else {
		prior, err = p.photos.FileStates()
		if err != nil {
			return nil, err
		}
		log.Printf("run %s: %d files already cataloged, unchanged files will be skipped", runID, len(prior))
	}
	detector := scanner.NewDetector(prior, p.opts.ForceReprocess)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(runCtx)

	jobs := make(chan job)
	results := make(chan result)

	// dispatcher: change detection at file-loop granularity
	var skipped int
	g.Go(func() error {
		defer close(jobs)
		for _, path := range paths {
			if gctx.Err() != nil {
				return nil
			}
			jb := job{path: path}
			switch detector.Decide(path) {
			case scanner.Skip:
				skipped++
				continue
			case scanner.ProcessChanged:
				jb.hadPrior = true
			}
			select {
			case jobs <- jb:
			case <-gctx.Done():
				return nil
			}
		}
		return nil
	})

	// extraction pool: hashing and tag reading are side-effect-free per path
	for i := 0; i < p.opts.Workers; i++ {
		g.Go(func() error {
			for jb := range jobs {
				select {
				case results <- p.extract(jb):
				case <-gctx.Done():
					return nil
				}
			}
			return nil
		})
	}

	go func() {
		g.Wait() //nolint:errcheck // dispatcher and workers only return nil
		close(results)
	}()

	// single writer: resolution and persistence stay on one transaction
	batch := p.photos.NewBatchWriter(p.opts.CommitEvery)
	for res := range results {
		photo := p.buildRecord(ctx, res)
		if err := batch.Upsert(photo); err != nil {
			// the store itself is unreliable; stop the whole run
			cancel()
			for range results {
			}
			batch.Close() //nolint:errcheck // already failing
			return nil, err
		}

		if res.failure != nil {
			stats.Failed++
		} else if res.hadPrior {
			stats.Updated++
		} else {
			stats.New++
		}
		if res.fields != nil && res.fields.GPS != nil {
			stats.WithGPS++
		}
		stats.Written++
		if stats.Written%p.opts.ProgressEvery == 0 {
			log.Printf("run %s: %d/%d files written (failed %d)", runID, stats.Written, stats.Found, stats.Failed)
		}
	}
	if err := batch.Close(); err != nil {
		return nil, err
	}
	stats.Skipped = skipped

	p.logSummary(runID, stats, ctx.Err() != nil)
	return stats, nil
}

// extract runs on the worker pool: fingerprint the file and read its tags.
// Every failure here is per-file and rides back in the result.
func (p *Pipeline) extract(jb job) result {
	res := result{path: jb.path, hadPrior: jb.hadPrior}

	// hash and mtime are recorded even for failed files so unchanged
	// failures are not re-read every run
	if hash, err := scanner.HashFile(jb.path); err == nil {
		res.hash = &hash
	}
	if mtime, err := scanner.ModTime(jb.path); err == nil {
		res.mtime = &mtime
	}

	f, err := os.Open(jb.path)
	if err != nil {
		res.failure = fmt.Errorf("cannot read file: %w", err)
		return res
	}
	defer f.Close()

	fields, err := p.tags.Extract(f)
	if err != nil {
		res.failure = err
		return res
	}
	res.fields = fields
	return res
}

// buildRecord turns one extraction result into the catalog row. Location
// lookup failures degrade to a null location, never a failed record.
func (p *Pipeline) buildRecord(ctx context.Context, res result) *models.Photo {
	photo := &models.Photo{
		Filename:    filepath.Base(res.path),
		Path:        res.path,
		Status:      models.StatusProcessed,
		FileHash:    res.hash,
		FileMtime:   res.mtime,
		ProcessedAt: time.Now().Unix(),
	}

	if res.failure != nil {
		photo.Status = models.StatusFailed
		msg := res.failure.Error()
		photo.ErrorMessage = &msg
		return photo
	}

	f := res.fields
	photo.DateTime = f.DateTime
	photo.CameraModel = f.CameraModel
	photo.LensModel = f.LensModel
	photo.ISO = f.ISO
	photo.FNumber = f.FNumber
	photo.ExposureTime = f.ExposureTime
	photo.FocalLength = f.FocalLength
	photo.Orientation = f.Orientation

	if f.GPS != nil {
		lat, lon := f.GPS.Latitude, f.GPS.Longitude
		photo.GPSLat = &lat
		photo.GPSLon = &lon
		if p.resolver != nil {
			loc, ok, err := p.resolver.Nearest(ctx, lat, lon)
			if err != nil {
				log.Printf("warning: location lookup failed for %s: %v", res.path, err)
			} else if ok {
				photo.Location = &loc
			}
		}
	}
	return photo
}

func (p *Pipeline) logSummary(runID string, stats *Stats, interrupted bool) {
	line := strings.Repeat("=", 60)
	log.Println(line)
	if interrupted {
		log.Printf("run %s interrupted, partial results committed", runID)
	}
	log.Printf("processing summary (run %s):", runID)
	log.Printf("  total files found:   %d", stats.Found)
	log.Printf("  newly processed:     %d", stats.New)
	log.Printf("  updated (changed):   %d", stats.Updated)
	log.Printf("  skipped (unchanged): %d", stats.Skipped)
	log.Printf("  failed:              %d", stats.Failed)
	log.Printf("  with GPS data:       %d", stats.WithGPS)
	log.Printf("  written to catalog:  %d", stats.Written)
	log.Println(line)
}
