package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"badge-progress-system/engine"
	"badge-progress-system/logging"
	"badge-progress-system/metrics"
	"badge-progress-system/models"
	"badge-progress-system/store"
	"badge-progress-system/wire"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// maxReportErrors caps the per-record errors kept in an ImportReport.
const maxReportErrors = 200

// RecordError describes one record that was not applied.
type RecordError struct {
	Source string `json:"source,omitempty"`
	Index  int    `json:"index"`
	Key    string `json:"key,omitempty"`
	Kind   string `json:"kind"`
	Error  string `json:"error"`
}

// ImportReport summarizes a backfill import.
type ImportReport struct {
	Total      int           `json:"total"`
	Applied    int           `json:"applied"`
	Unchanged  int           `json:"unchanged"`
	Duplicates int           `json:"duplicates"`
	Skipped    int           `json:"skipped"`
	Errors     []RecordError `json:"errors,omitempty"`
	Truncated  bool          `json:"truncated,omitempty"`
}

// BackfillService imports historical signals. Different keys are processed
// in parallel; records of one key are applied strictly in input order.
type BackfillService struct {
	Progress *ProgressService
	Workers  int
}

func NewBackfillService(progress *ProgressService, workers int) *BackfillService {
	if workers < 1 {
		workers = 1
	}
	return &BackfillService{Progress: progress, Workers: workers}
}

type keyedItems struct {
	key   models.ProgressKey
	items []wire.Item
}

// groupByKey keeps first-seen key order and input order within each key.
// Items that failed to decode come back separately.
func groupByKey(items []wire.Item) (groups []keyedItems, undecodable []wire.Item) {
	index := make(map[models.ProgressKey]int)
	for _, it := range items {
		if it.Err != nil {
			undecodable = append(undecodable, it)
			continue
		}
		key := it.Record.Key()
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, keyedItems{key: key})
		}
		groups[i].items = append(groups[i].items, it)
	}
	return groups, undecodable
}

// Import applies items and returns what happened to each. Record-level
// problems are counted and reported; a storage or catalog failure stops the
// import and is returned along with the partial report.
func (s *BackfillService) Import(ctx context.Context, items []wire.Item) (ImportReport, error) {
	rep := &reportBuilder{report: ImportReport{Total: len(items)}}
	groups, undecodable := groupByKey(items)
	for _, it := range undecodable {
		rep.skip(it, it.Err)
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(s.Workers))

	for _, group := range groups {
		group := group
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		g.Go(func() error {
			defer sem.Release(1)
			for _, it := range group.items {
				if err := gctx.Err(); err != nil {
					return err
				}
				res, err := s.Progress.Apply(gctx, it.Record)
				switch {
				case err == nil && res.Changed:
					rep.count(func(r *ImportReport) { r.Applied++ }, "applied")
				case err == nil:
					rep.count(func(r *ImportReport) { r.Unchanged++ }, "unchanged")
				case errors.Is(err, store.ErrDuplicateEvent):
					rep.count(func(r *ImportReport) { r.Duplicates++ }, "duplicate")
				case IsRecordError(err):
					rep.skip(it, err)
				default:
					rep.fail(it, err)
					return fmt.Errorf("backfill stopped at %s: %w", group.key, err)
				}
			}
			return nil
		})
	}

	err := g.Wait()
	report := rep.done()
	logging.Ctx(ctx).Info().
		Int("total", report.Total).
		Int("applied", report.Applied).
		Int("unchanged", report.Unchanged).
		Int("duplicates", report.Duplicates).
		Int("skipped", report.Skipped).
		Msg("📥 backfill import finished")
	if err == nil {
		err = ctx.Err()
	}
	return report, err
}

type reportBuilder struct {
	mu     sync.Mutex
	report ImportReport
}

func (b *reportBuilder) count(fn func(*ImportReport), outcome string) {
	b.mu.Lock()
	fn(&b.report)
	b.mu.Unlock()
	metrics.BackfillRecords.WithLabelValues(outcome).Inc()
}

func (b *reportBuilder) skip(it wire.Item, err error) {
	b.count(func(r *ImportReport) { r.Skipped++ }, "skipped")
	b.addError(it, err)
	logging.Warn().Err(err).Str("source", it.Source).Int("index", it.Index).Msg("⚠️ backfill record skipped")
}

func (b *reportBuilder) fail(it wire.Item, err error) {
	metrics.BackfillRecords.WithLabelValues("failed").Inc()
	b.addError(it, err)
	logging.Error().Err(err).Str("source", it.Source).Int("index", it.Index).Msg("❌ backfill record failed")
}

func (b *reportBuilder) addError(it wire.Item, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.report.Errors) >= maxReportErrors {
		b.report.Truncated = true
		return
	}
	re := RecordError{Source: it.Source, Index: it.Index, Kind: ErrorKind(err), Error: err.Error()}
	if it.Err == nil {
		re.Key = it.Record.Key().String()
	}
	b.report.Errors = append(b.report.Errors, re)
}

func (b *reportBuilder) done() ImportReport {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.report
}

// ErrorKind names the engine error kind of err, or "internal".
func ErrorKind(err error) string {
	if k := engine.KindOf(err); k != 0 {
		return k.String()
	}
	return "internal"
}
