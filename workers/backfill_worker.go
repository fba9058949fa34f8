package workers

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"badge-progress-system/logging"
	"badge-progress-system/metrics"
	"badge-progress-system/models"
	"badge-progress-system/services"
	"badge-progress-system/store"
	"badge-progress-system/utils"
	"badge-progress-system/wire"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

// ReportPrefix is where import reports are written back to the bucket.
const ReportPrefix = "backfill-reports/"

// ObjectSource is the bucket a BackfillWorker reads from.
type ObjectSource interface {
	List(ctx context.Context, prefix string) ([]utils.ObjectInfo, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte, contentType string) error
}

// BackfillWorker imports backfill dumps dropped into the bucket. Each object
// version (key + etag) is imported once. Failed imports, and running ones whose
// lease expired, are retried on the next scan.
type BackfillWorker struct {
	objects  ObjectSource
	runs     store.RunStore
	backfill *services.BackfillService
	prefix   string
	log      zerolog.Logger
}

func NewBackfillWorker(objects ObjectSource, runs store.RunStore, backfill *services.BackfillService, prefix string) *BackfillWorker {
	return &BackfillWorker{
		objects:  objects,
		runs:     runs,
		backfill: backfill,
		prefix:   prefix,
		log:      logging.Component("backfill_worker"),
	}
}

// Schedule registers the bucket scan on s.
func (w *BackfillWorker) Schedule(s *services.Scheduler, interval time.Duration) error {
	return s.Every("backfill-scan", interval, func(ctx context.Context) {
		if err := w.Scan(ctx); err != nil {
			w.log.Error().Err(err).Msg("❌ backfill scan failed")
		}
	})
}

// Scan imports every new object under the prefix, oldest key first.
func (w *BackfillWorker) Scan(ctx context.Context) error {
	objs, err := w.objects.List(ctx, w.prefix)
	if err != nil {
		return err
	}

	imported := 0
	for _, obj := range objs {
		if strings.HasPrefix(obj.Key, ReportPrefix) || !importable(obj.Key) {
			continue
		}
		run, started, err := w.runs.BeginRun(ctx, obj.Key, obj.ETag)
		if err != nil {
			return err
		}
		if !started {
			continue
		}
		if err := w.importObject(ctx, obj, run); err != nil {
			return err
		}
		imported++
	}
	if imported > 0 {
		w.log.Info().Int("objects", imported).Msg("✅ backfill scan imported new objects")
	}
	return nil
}

func (w *BackfillWorker) importObject(ctx context.Context, obj utils.ObjectInfo, run *models.BackfillRun) error {
	log := w.log.With().Str("object", obj.Key).Str("run_id", run.ID).Logger()
	log.Info().Int64("size", obj.Size).Msg("📦 importing backfill object")

	report, importErr := w.readAndImport(ctx, obj.Key)
	run.Applied = report.Applied + report.Unchanged
	run.Skipped = report.Skipped + report.Duplicates
	run.Status = models.RunSucceeded
	if importErr != nil {
		run.Status = models.RunFailed
		run.Error = importErr.Error()
		run.Failed = report.Total - report.Applied - report.Unchanged - report.Duplicates - report.Skipped
	}
	metrics.BackfillObjects.WithLabelValues(run.Status).Inc()

	if err := w.runs.FinishRun(ctx, run); err != nil {
		return err
	}
	if body, err := json.Marshal(report); err == nil {
		key := ReportPrefix + strings.TrimPrefix(obj.Key, w.prefix) + ".report.json"
		if err := w.objects.Put(ctx, key, body, "application/json"); err != nil {
			log.Warn().Err(err).Msg("⚠️ failed to upload import report")
		}
	}

	if importErr != nil {
		log.Error().Err(importErr).Msg("❌ backfill object failed")
		return nil
	}
	log.Info().Int("applied", run.Applied).Int("skipped", run.Skipped).Msg("✅ backfill object imported")
	return nil
}

func (w *BackfillWorker) readAndImport(ctx context.Context, key string) (services.ImportReport, error) {
	data, err := w.objects.Get(ctx, key)
	if err != nil {
		return services.ImportReport{}, err
	}
	items, err := wire.ReadSource(data, key)
	if err != nil {
		return services.ImportReport{}, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return w.backfill.Import(ctx, items)
}

func importable(key string) bool {
	ext := strings.ToLower(path.Ext(key))
	for _, e := range wire.ImportExts {
		if ext == e {
			return true
		}
	}
	return false
}
