package scanner

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"

	"photocatalog/models"
)

// Decision is the change detector's verdict for one candidate file.
type Decision int

const (
	// ProcessNew means no prior record exists for the path
	ProcessNew Decision = iota
	// ProcessChanged means a prior record exists but the file changed
	ProcessChanged
	// Skip means the stored record is current
	Skip
)

// Detector decides whether a candidate file needs (re-)extraction based on
// its previously stored state. Modification-time equality is the skip gate;
// the content hash is computed and stored at processing time for a future
// stricter comparison but is not consulted here.
type Detector struct {
	prior map[string]models.FileState
	force bool
}

// NewDetector builds a detector over the stored states. In force mode every
// file is treated as new.
func NewDetector(prior map[string]models.FileState, force bool) *Detector {
	if prior == nil {
		prior = map[string]models.FileState{}
	}
	return &Detector{prior: prior, force: force}
}

// Decide applies the skip gate to one path. An unreadable stat falls through
// to processing; the file will be recorded as failed downstream if it is
// still unreadable there.
func (d *Detector) Decide(path string) Decision {
	if d.force {
		return ProcessNew
	}

	state, ok := d.prior[path]
	if !ok {
		return ProcessNew
	}

	mtime, err := ModTime(path)
	if err != nil {
		return ProcessChanged
	}
	if state.Mtime != nil && *state.Mtime == mtime {
		return Skip
	}
	return ProcessChanged
}

// HashFile computes the MD5 content fingerprint of path, reading in chunks
// to handle large files.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ModTime returns the file's modification time as a Unix timestamp
func ModTime(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	return info.ModTime().Unix(), nil
}
