package main

import (
	"fmt"
	"slices"

	"badge-progress-system/catalog"
	"badge-progress-system/config"
	"badge-progress-system/logging"

	"github.com/spf13/cobra"
)

var validFormats = []string{"text", "json"}

// rootOptions holds flags shared by every command.
type rootOptions struct {
	Format      string
	CatalogPath string
	Verbose     bool

	cfg *config.Config
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Import historical badge progress",
		Long: `Import historical badge progress signals into the progress store.

Files may be JSON arrays of records, JSON lines, or zip archives of those.
Directories are walked recursively.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(validFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			logCfg := cfg.Logging.ToLogging()
			logCfg.Format = "console"
			logCfg.Output = cmd.ErrOrStderr()
			if opts.Verbose {
				logCfg.Level = "debug"
			}
			logging.Init(logCfg)
			if opts.CatalogPath == "" {
				opts.CatalogPath = cfg.Catalog.Path
			}
			opts.cfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.CatalogPath, "catalog", "", "badge catalog YAML (default: CATALOG_PATH or built-in)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(newImportCommand(opts))
	cmd.AddCommand(newValidateCommand(opts))
	return cmd
}

func (o *rootOptions) catalog() (*catalog.StaticCatalog, error) {
	return catalog.LoadFile(o.CatalogPath)
}
