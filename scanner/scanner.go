package scanner

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"path/filepath"
	"strings"

	"github.com/facette/natsort"
)

// imageExtensions is the case-insensitive allow-list of catalogable files
var imageExtensions = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
	".tiff": {},
	".tif":  {},
	".raw":  {},
	".cr2":  {},
	".nef":  {},
}

// IsImage reports whether path has a catalogable extension
func IsImage(path string) bool {
	_, ok := imageExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Collect walks root recursively and returns candidate image paths in
// natural order. Unreadable entries are logged and skipped. Cancellation
// mid-walk returns the partial list collected so far.
func Collect(ctx context.Context, root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return filepath.SkipAll
		}
		if err != nil {
			log.Printf("warning: cannot read %s: %v", path, err)
			return nil
		}
		if d.IsDir() || !IsImage(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", root, err)
	}

	natsort.Sort(paths)
	return paths, nil
}
