package cmd

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"photocatalog/config"
	"photocatalog/database"
	"photocatalog/geo"
	"photocatalog/metadata"
	"photocatalog/pipeline"
	"photocatalog/repository"
)

func newProcessCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "process [directory]",
		Short: "Scan a directory and catalog photo metadata",
		Args:  cobra.ExactArgs(1),
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindCommandFlags(cmd, map[string]string{
				config.KeyStore:          "db",
				config.KeyGazetteer:      "gazetteer",
				config.KeyForceReprocess: "force-reprocess",
				config.KeySkipLocation:   "skip-location",
				config.KeyMaxDistanceKM:  "max-distance",
				config.KeyWorkers:        "workers",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(args[0])
		},
	}

	cmd.Flags().StringP("db", "d", "", "catalog database path (default: <directory name>.db)")
	cmd.Flags().String("gazetteer", config.DefaultGazetteerFile, "tab-separated place dataset for location lookup")
	cmd.Flags().Bool("force-reprocess", false, "re-read every file regardless of change detection")
	cmd.Flags().Bool("skip-location", false, "skip GPS to place name resolution")
	cmd.Flags().Float64("max-distance", geo.DefaultMaxDistanceKM, "location search radius in kilometers")
	cmd.Flags().Int("workers", 0, "extraction worker count (0 uses the configured default)")

	return cmd
}

// resolveStorePath returns the effective store path: an explicit --db or
// PHOTOCATALOG_STORE value wins, otherwise the name derives from the
// processed directory.
func resolveStorePath(cfg config.Config, dir string) string {
	if cfg.StorePath != "" {
		return cfg.StorePath
	}
	return config.DeriveStorePath(dir)
}

func runProcess(dir string) error {
	cfg := config.Load()

	// Ctrl-C or SIGTERM requests a graceful stop: in-flight work is
	// committed and a partial summary is printed.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	storePath := resolveStorePath(cfg, dir)
	log.Printf("using catalog database %s", storePath)

	db, err := database.Open(storePath)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	photos := repository.NewPhotoRepository(db)
	places := repository.NewPlaceRepository(db)

	var resolver pipeline.LocationResolver
	if cfg.SkipLocation {
		log.Println("location resolution disabled")
	} else {
		resolver = buildResolver(ctx, places, cfg)
	}

	pipe := pipeline.New(photos, metadata.NewExtractor(), resolver, pipeline.Options{
		ForceReprocess: cfg.ForceReprocess,
		CommitEvery:    cfg.CommitEvery,
		Workers:        cfg.NumWorkers,
	})

	_, err = pipe.Run(ctx, dir)
	return err
}

// buildResolver loads the gazetteer if needed and returns a resolver, or nil
// when no place data is available. A missing or broken dataset downgrades the
// run to no location lookup instead of failing it.
func buildResolver(ctx context.Context, places *repository.PlaceRepository, cfg config.Config) pipeline.LocationResolver {
	count, err := places.Count()
	if err != nil {
		log.Printf("warning: cannot query location data: %v, continuing without location lookup", err)
		return nil
	}

	if count == 0 {
		if _, err := os.Stat(cfg.GazetteerPath); err != nil {
			log.Printf("warning: gazetteer %s not found, continuing without location lookup", cfg.GazetteerPath)
			return nil
		}
		if _, err := geo.ImportGazetteer(ctx, places, cfg.GazetteerPath); err != nil {
			log.Printf("warning: location import failed: %v, continuing without location lookup", err)
			return nil
		}
		count, err = places.Count()
		if err != nil || count == 0 {
			return nil
		}
	}

	return geo.NewResolver(places, cfg.MaxDistanceKM)
}
