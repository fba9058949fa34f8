// workers/event_poll_worker.go
package workers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"badge-progress-system/logging"
	"badge-progress-system/metrics"
	"badge-progress-system/services"
	"badge-progress-system/store"
	"badge-progress-system/utils"
	"badge-progress-system/wire"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// CursorName is the sync_cursors row the poller advances.
const CursorName = "badge-events"

// EventFeedPage is one response of the upstream badge event feed.
type EventFeedPage struct {
	Events     []json.RawMessage `json:"events"`
	NextCursor string            `json:"next_cursor"`
}

// EventPollWorkerConfig configures an EventPollWorker.
type EventPollWorkerConfig struct {
	BaseURL         string // e.g. "http://localhost:8500"
	EndpointPath    string // e.g. "/api/v1/badge-events"
	ServiceToken    string
	Interval        time.Duration
	BatchSize       int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
	HTTPClient      *http.Client
}

// EventPollWorker pulls live progress events from the upstream feed and
// applies them. Bad events are logged and skipped; any other failure leaves
// the cursor where it was so the batch is fetched again on the next tick.
type EventPollWorker struct {
	cfg      EventPollWorkerConfig
	progress *services.ProgressService
	cursors  store.CursorStore
	breaker  *gobreaker.CircuitBreaker[*EventFeedPage]
	log      zerolog.Logger
}

func NewEventPollWorker(cfg EventPollWorkerConfig, progress *services.ProgressService, cursors store.CursorStore) (*EventPollWorker, error) {
	if _, err := url.Parse(cfg.BaseURL); err != nil || cfg.BaseURL == "" {
		return nil, fmt.Errorf("invalid event feed URL %q", cfg.BaseURL)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = time.Minute
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = utils.HTTPClient
	}

	w := &EventPollWorker{
		cfg:      cfg,
		progress: progress,
		cursors:  cursors,
		log:      logging.Component("event_poller"),
	}
	w.breaker = gobreaker.NewCircuitBreaker[*EventFeedPage](gobreaker.Settings{
		Name:        "badge-event-feed",
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.BreakerState.Set(float64(to))
			w.log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("🔌 circuit breaker state changed")
		},
	})
	return w, nil
}

// Start runs the poll loop until ctx is cancelled.
func (w *EventPollWorker) Start(ctx context.Context) {
	w.log.Info().Str("feed", w.cfg.BaseURL+w.cfg.EndpointPath).Dur("interval", w.cfg.Interval).Msg("🔁 starting badge event poller")
	go w.run(ctx)
}

func (w *EventPollWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := w.Drain(ctx); err != nil && ctx.Err() == nil {
			w.log.Error().Err(err).Msg("❌ event poll failed")
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			w.log.Info().Msg("⏹️ badge event poller stopped")
			return
		}
	}
}

// Drain polls until the feed returns a short page or stops advancing.
func (w *EventPollWorker) Drain(ctx context.Context) error {
	before, err := w.cursors.LoadCursor(ctx, CursorName)
	if err != nil {
		return err
	}
	for {
		n, err := w.PollOnce(ctx)
		if err != nil {
			return err
		}
		if n < w.cfg.BatchSize {
			return nil
		}
		after, err := w.cursors.LoadCursor(ctx, CursorName)
		if err != nil {
			return err
		}
		if after == before {
			return nil
		}
		before = after
	}
}

// PollOnce fetches and applies one page, returning how many events it held.
func (w *EventPollWorker) PollOnce(ctx context.Context) (int, error) {
	cursor, err := w.cursors.LoadCursor(ctx, CursorName)
	if err != nil {
		return 0, err
	}

	page, err := w.breaker.Execute(func() (*EventFeedPage, error) {
		return w.fetch(ctx, cursor)
	})
	if err != nil {
		metrics.PollFailures.Inc()
		return 0, err
	}
	if len(page.Events) == 0 {
		return 0, nil
	}

	var applied, unchanged, skipped, duplicates int
	for i, raw := range page.Events {
		rec, err := wire.Decode(raw)
		if err == nil {
			var res services.ApplyResult
			res, err = w.progress.Apply(ctx, rec)
			if err == nil && !res.Changed {
				unchanged++
				metrics.PollEvents.WithLabelValues("unchanged").Inc()
				continue
			}
		}
		switch {
		case err == nil:
			applied++
			metrics.PollEvents.WithLabelValues("applied").Inc()
		case errors.Is(err, store.ErrDuplicateEvent):
			duplicates++
			metrics.PollEvents.WithLabelValues("duplicate").Inc()
		case services.IsRecordError(err):
			skipped++
			metrics.PollEvents.WithLabelValues("skipped").Inc()
			w.log.Warn().Err(err).Int("index", i).Str("event_id", rec.EventID).Msg("⚠️ skipping bad event")
		default:
			// cursor stays put; the whole page is fetched again and applied
			// events are dropped as duplicates by their event id
			return 0, fmt.Errorf("failed to apply event %d of page at cursor %q: %w", i, cursor, err)
		}
	}

	if page.NextCursor != "" && page.NextCursor != cursor {
		if err := w.cursors.SaveCursor(ctx, CursorName, page.NextCursor); err != nil {
			return 0, err
		}
	}
	w.log.Info().
		Int("events", len(page.Events)).
		Int("applied", applied).
		Int("unchanged", unchanged).
		Int("duplicates", duplicates).
		Int("skipped", skipped).
		Str("cursor", page.NextCursor).
		Msg("📥 processed badge events")
	return len(page.Events), nil
}

func (w *EventPollWorker) fetch(ctx context.Context, cursor string) (*EventFeedPage, error) {
	base, err := url.Parse(w.cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid event feed URL '%s': %w", w.cfg.BaseURL, err)
	}
	endpoint := base.JoinPath(w.cfg.EndpointPath)
	q := endpoint.Query()
	if cursor != "" {
		q.Set("since", cursor)
	}
	q.Set("limit", strconv.Itoa(w.cfg.BatchSize))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.cfg.ServiceToken)
	req.Header.Set("Accept", "application/json")

	resp, err := w.cfg.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("event feed request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("event feed returned status %d: %s", resp.StatusCode, string(body))
	}

	var page EventFeedPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("failed to decode event feed response: %w", err)
	}
	return &page, nil
}

// BreakerState reports the feed circuit breaker state.
func (w *EventPollWorker) BreakerState() gobreaker.State {
	return w.breaker.State()
}
