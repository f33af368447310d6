package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"photocatalog/config"
)

var rootCmd = &cobra.Command{
	Use:   "photocatalog",
	Short: "Incremental photo metadata catalog",
	Long: `photocatalog walks a directory tree of images, extracts EXIF metadata,
resolves GPS coordinates to nearby place names and keeps everything in a
local SQLite catalog. Re-running only touches new or changed files.`,
	SilenceUsage: true,
}

// Execute wires up defaults and runs the selected subcommand.
func Execute() error {
	config.SetDefaults()
	rootCmd.AddCommand(newProcessCommand())
	rootCmd.AddCommand(newExportCommand())
	return rootCmd.Execute()
}

// bindCommandFlags binds the executing command's flags into viper. Sibling
// commands reuse keys like the store path, so binding happens at run time
// rather than at construction; the running command's flags always win.
func bindCommandFlags(cmd *cobra.Command, keys map[string]string) error {
	for key, name := range keys {
		if err := viper.BindPFlag(key, cmd.Flags().Lookup(name)); err != nil {
			return err
		}
	}
	return nil
}
