package store

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"badge-progress-system/models"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store used by tests and CLI dry runs.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[models.ProgressKey]models.UserBadgeProgress
	events  map[string]struct{}
	cursors map[string]string
	runs    map[string]*models.BackfillRun // by object key + etag

	runLease time.Duration

	// never evicted; fine for the bounded key sets of tests and dry runs
	keyLocks sync.Map // models.ProgressKey -> *sync.Mutex
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[models.ProgressKey]models.UserBadgeProgress),
		events:   make(map[string]struct{}),
		cursors:  make(map[string]string),
		runs:     make(map[string]*models.BackfillRun),
		runLease: DefaultRunLease,
	}
}

func (s *MemoryStore) lockKey(key models.ProgressKey) func() {
	m, _ := s.keyLocks.LoadOrStore(key, &sync.Mutex{})
	mu := m.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (s *MemoryStore) Fetch(ctx context.Context, key models.ProgressKey) (*models.UserBadgeProgress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return nil, nil
	}
	out := rec.Clone()
	return &out, nil
}

func (s *MemoryStore) Upsert(ctx context.Context, rec models.UserBadgeProgress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec = rec.Clone()
	rec.UserAddress = models.NormalizeAddress(rec.UserAddress)
	s.mu.Lock()
	s.records[rec.Key()] = rec
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Update(ctx context.Context, key models.ProgressKey, opts UpdateOptions, fn MergeFunc) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	unlock := s.lockKey(key)
	defer unlock()

	if opts.EventID != "" {
		s.mu.RLock()
		_, seen := s.events[opts.EventID]
		s.mu.RUnlock()
		if seen {
			return ErrDuplicateEvent
		}
	}

	existing, err := s.Fetch(ctx, key)
	if err != nil {
		return err
	}
	next, err := fn(existing)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if opts.EventID != "" {
		// another key may have claimed the id while fn ran
		if _, seen := s.events[opts.EventID]; seen {
			return ErrDuplicateEvent
		}
		s.events[opts.EventID] = struct{}{}
	}
	if next != nil {
		rec := next.Clone()
		rec.UserAddress = key.UserAddress
		rec.BadgeID = key.BadgeID
		s.records[key] = rec
	}
	return nil
}

func (s *MemoryStore) ListByUser(ctx context.Context, userAddress string) ([]models.UserBadgeProgress, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr := models.NormalizeAddress(userAddress)
	s.mu.RLock()
	var out []models.UserBadgeProgress
	for key, rec := range s.records {
		if key.UserAddress == addr {
			out = append(out, rec.Clone())
		}
	}
	s.mu.RUnlock()
	slices.SortFunc(out, func(a, b models.UserBadgeProgress) int { return strings.Compare(a.BadgeID, b.BadgeID) })
	return out, nil
}

// Len returns the number of stored progress records.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *MemoryStore) LoadCursor(_ context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cursors[name], nil
}

func (s *MemoryStore) SaveCursor(_ context.Context, name, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[name] = value
	return nil
}

func (s *MemoryStore) BeginRun(_ context.Context, objectKey, etag string) (*models.BackfillRun, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := objectKey + "\x00" + etag
	now := time.Now()
	if run, ok := s.runs[id]; ok && !restartable(run, s.runLease, now) {
		cp := *run
		return &cp, false, nil
	}
	run := &models.BackfillRun{
		ID:         uuid.NewString(),
		ObjectKey:  objectKey,
		ETag:       etag,
		Status:     models.RunRunning,
		Timestamps: models.Timestamps{CreatedAt: now, UpdatedAt: now},
	}
	s.runs[id] = run
	cp := *run
	return &cp, true, nil
}

func (s *MemoryStore) FinishRun(_ context.Context, run *models.BackfillRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *run
	cp.UpdatedAt = time.Now()
	s.runs[run.ObjectKey+"\x00"+run.ETag] = &cp
	return nil
}

var _ Store = (*MemoryStore)(nil)
