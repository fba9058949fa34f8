// Command backfill imports historical badge signals from local files.
package main

import (
	"os"

	"badge-progress-system/logging"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logging.Error().Err(err).Msg("❌ backfill failed")
		os.Exit(1)
	}
}
