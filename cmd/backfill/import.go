package main

import (
	"fmt"
	"io"

	"badge-progress-system/engine"
	"badge-progress-system/services"
	"badge-progress-system/store"
	"badge-progress-system/utils"
	"badge-progress-system/wire"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

type importOptions struct {
	Workers int
	DryRun  bool
}

// fileReport is the outcome of importing one file.
type fileReport struct {
	Path   string                `json:"path"`
	Report services.ImportReport `json:"report"`
	Error  string                `json:"error,omitempty"`
}

func newImportCommand(root *rootOptions) *cobra.Command {
	opts := &importOptions{}
	cmd := &cobra.Command{
		Use:   "import <path>...",
		Short: "Apply backfill files to the progress store",
		Long: `Apply backfill files to the progress store in path order.

Bad records are reported and skipped. A storage failure stops the import;
rerunning it is safe for snapshot and event-id carrying records.
With --dry-run records are merged into an in-memory store instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, root, opts, args)
		},
	}
	cmd.Flags().IntVar(&opts.Workers, "workers", 0, "parallel keys (default: BACKFILL_WORKERS)")
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "merge into memory without touching the database")
	return cmd
}

func openStore(root *rootOptions, dryRun bool) (store.ProgressStore, error) {
	if dryRun {
		return store.NewMemoryStore(), nil
	}
	if root.cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required unless --dry-run is set")
	}
	db, err := store.OpenPostgres(root.cfg.Database)
	if err != nil {
		return nil, err
	}
	return store.NewGormStore(db, store.WithRetries(root.cfg.Database.UpdateRetries),
		store.WithRunLease(root.cfg.Backfill.RunLease)), nil
}

func runImport(cmd *cobra.Command, root *rootOptions, opts *importOptions, args []string) error {
	cat, err := root.catalog()
	if err != nil {
		return err
	}
	paths, err := utils.ExpandImportPaths(args, wire.ImportExts...)
	if err != nil {
		return err
	}
	st, err := openStore(root, opts.DryRun)
	if err != nil {
		return err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = root.cfg.Backfill.Workers
	}
	progress := services.NewProgressService(cat, st, engine.New())
	backfill := services.NewBackfillService(progress, workers)

	var (
		reports  []fileReport
		firstErr error
	)
	for _, path := range paths {
		fr := fileReport{Path: path}
		data, err := utils.ReadImportFile(path)
		if err == nil {
			var items []wire.Item
			items, err = wire.ReadSource(data, path)
			if err == nil {
				fr.Report, err = backfill.Import(cmd.Context(), items)
			}
		}
		if err != nil {
			fr.Error = err.Error()
			firstErr = err
		}
		reports = append(reports, fr)
		if firstErr != nil {
			break
		}
	}

	if err := writeReports(cmd.OutOrStdout(), root.Format, reports); err != nil {
		return err
	}
	return firstErr
}

func writeReports(w io.Writer, format string, reports []fileReport) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reports)
	}

	var total services.ImportReport
	for _, fr := range reports {
		r := fr.Report
		fmt.Fprintf(w, "%s: %d records, %d applied, %d unchanged, %d duplicates, %d skipped\n",
			fr.Path, r.Total, r.Applied, r.Unchanged, r.Duplicates, r.Skipped)
		for _, re := range r.Errors {
			fmt.Fprintf(w, "  %s#%d [%s] %s\n", re.Source, re.Index, re.Kind, re.Error)
		}
		if r.Truncated {
			fmt.Fprintln(w, "  (more errors not shown)")
		}
		if fr.Error != "" {
			fmt.Fprintf(w, "  stopped: %s\n", fr.Error)
		}
		total.Total += r.Total
		total.Applied += r.Applied
		total.Unchanged += r.Unchanged
		total.Duplicates += r.Duplicates
		total.Skipped += r.Skipped
	}
	fmt.Fprintf(w, "total: %d records, %d applied, %d unchanged, %d duplicates, %d skipped\n",
		total.Total, total.Applied, total.Unchanged, total.Duplicates, total.Skipped)
	return nil
}
