package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"photocatalog/config"
	"photocatalog/database"
	"photocatalog/export"
	"photocatalog/repository"
)

func newExportCommand() *cobra.Command {
	var opts export.Options

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog to a CSV file",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return bindCommandFlags(cmd, map[string]string{
				config.KeyStore: "db",
			})
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(opts)
		},
	}

	cmd.Flags().StringP("db", "d", config.DefaultStoreFile, "catalog database path")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file (default: timestamped name)")
	cmd.Flags().BoolVar(&opts.ByDay, "by-day", false, "group photos by calendar day")
	cmd.Flags().BoolVar(&opts.ByLocation, "by-location", false, "group photos by resolved location")

	return cmd
}

func runExport(opts export.Options) error {
	cfg := config.Load()

	// the catalog must already exist; exporting never creates an empty one
	if _, err := os.Stat(cfg.StorePath); err != nil {
		return fmt.Errorf("catalog database %s does not exist, run process first", cfg.StorePath)
	}

	db, err := database.Open(cfg.StorePath)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	exporter := export.NewExporter(repository.NewPhotoRepository(db))
	path, err := exporter.Export(opts)
	if err != nil {
		return err
	}
	log.Printf("exported catalog to %s", path)
	return nil
}
