package main

import (
	"errors"
	"fmt"

	"badge-progress-system/catalog"
	"badge-progress-system/engine"
	"badge-progress-system/services"
	"badge-progress-system/utils"
	"badge-progress-system/wire"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

// validationResult lists the records of the given files that could not be
// applied, without touching any store.
type validationResult struct {
	Valid   bool                   `json:"valid"`
	Files   int                    `json:"files"`
	Records int                    `json:"records"`
	Errors  []services.RecordError `json:"errors,omitempty"`
}

var errInvalidRecords = errors.New("backfill files contain invalid records")

func newValidateCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <path>...",
		Short: "Check backfill files without applying them",
		Long: `Decode every record and check that its badge exists and its update
shape fits the badge kind. Nothing is written.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := root.catalog()
			if err != nil {
				return err
			}
			paths, err := utils.ExpandImportPaths(args, wire.ImportExts...)
			if err != nil {
				return err
			}

			eng := engine.New()
			res := validationResult{Files: len(paths)}
			for _, path := range paths {
				data, err := utils.ReadImportFile(path)
				if err != nil {
					return err
				}
				items, err := wire.ReadSource(data, path)
				if err != nil {
					return err
				}
				for _, it := range items {
					res.Records++
					if err := checkItem(cat, eng, it); err != nil {
						res.Errors = append(res.Errors, services.RecordError{
							Source: it.Source,
							Index:  it.Index,
							Kind:   services.ErrorKind(err),
							Error:  err.Error(),
						})
					}
				}
			}
			res.Valid = len(res.Errors) == 0

			out := cmd.OutOrStdout()
			if root.Format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				for _, re := range res.Errors {
					fmt.Fprintf(out, "%s#%d [%s] %s\n", re.Source, re.Index, re.Kind, re.Error)
				}
				fmt.Fprintf(out, "%d files, %d records, %d invalid\n", res.Files, res.Records, len(res.Errors))
			}
			if !res.Valid {
				return errInvalidRecords
			}
			return nil
		},
	}
}

// checkItem merges the record into an empty progress record, which catches
// everything but regressions against stored state.
func checkItem(cat catalog.Catalog, eng *engine.Engine, it wire.Item) error {
	if it.Err != nil {
		return it.Err
	}
	def, err := cat.Lookup(it.Record.BadgeID)
	if err != nil {
		return err
	}
	_, err = eng.Merge(def, it.Record.Key(), nil, it.Record.Update)
	return err
}
