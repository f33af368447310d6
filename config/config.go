package config

import (
	"path/filepath"

	"github.com/spf13/viper"
)

// defaults used when neither environment nor flags say otherwise
const (
	DefaultStoreFile     = "photo_metadata.db"
	DefaultGazetteerFile = "cities500.txt"

	defaultMaxDistanceKM = 50.0
	defaultCommitEvery   = 500
	defaultNumWorkers    = 4
)

// viper keys; environment variables use the PHOTOCATALOG_ prefix, e.g.
// PHOTOCATALOG_GAZETTEER overrides the dataset path.
const (
	KeyStore          = "store"
	KeyGazetteer      = "gazetteer"
	KeyForceReprocess = "force_reprocess"
	KeySkipLocation   = "skip_location"
	KeyMaxDistanceKM  = "max_distance_km"
	KeyCommitEvery    = "commit_every"
	KeyWorkers        = "workers"
)

// Config is the explicit configuration threaded through construction; no
// package keeps its own module-level path constants.
type Config struct {
	StorePath      string
	GazetteerPath  string
	ForceReprocess bool
	SkipLocation   bool
	MaxDistanceKM  float64
	CommitEvery    int
	NumWorkers     int
}

// SetDefaults registers defaults and environment binding; call once before
// command flags are bound. The store path has no default here: processing
// derives it from the directory name and export fixes it on its flag, so an
// empty StorePath means "not explicitly set".
func SetDefaults() {
	viper.SetDefault(KeyGazetteer, DefaultGazetteerFile)
	viper.SetDefault(KeyForceReprocess, false)
	viper.SetDefault(KeySkipLocation, false)
	viper.SetDefault(KeyMaxDistanceKM, defaultMaxDistanceKM)
	viper.SetDefault(KeyCommitEvery, defaultCommitEvery)
	viper.SetDefault(KeyWorkers, defaultNumWorkers)

	viper.SetEnvPrefix("photocatalog")
	viper.AutomaticEnv()
}

// Load resolves the effective configuration from defaults, environment and
// any flags bound into viper.
func Load() Config {
	return Config{
		StorePath:      viper.GetString(KeyStore),
		GazetteerPath:  viper.GetString(KeyGazetteer),
		ForceReprocess: viper.GetBool(KeyForceReprocess),
		SkipLocation:   viper.GetBool(KeySkipLocation),
		MaxDistanceKM:  viper.GetFloat64(KeyMaxDistanceKM),
		CommitEvery:    viper.GetInt(KeyCommitEvery),
		NumWorkers:     viper.GetInt(KeyWorkers),
	}
}

// DeriveStorePath returns "<basename>.db" for dir, so processing
// /path/to/library7 writes library7.db by default.
func DeriveStorePath(dir string) string {
	base := filepath.Base(filepath.Clean(dir))
	if base == "." || base == string(filepath.Separator) || base == "" {
		return DefaultStoreFile
	}
	return base + ".db"
}
