package tokens

import (
	"context"
	"sync"
	"time"

	"github.com/dkrasnov/accountd/internal/common"
)

// MemoryStore keeps the ledger in an in-process map. Rows self-invalidate
// by expiry comparison; a periodic sweep reclaims the memory. Suitable for
// single-instance deployments, mirrored by RedisStore for everything else.
type MemoryStore struct {
	mu   sync.Mutex
	recs map[string]Record
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		recs: make(map[string]Record),
		now:  time.Now,
	}
}

func (s *MemoryStore) Put(ctx context.Context, rec *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.recs[rec.Value]; ok && s.now().Before(old.ExpiresAt) {
		return common.ErrConflict
	}
	s.recs[rec.Value] = *rec
	return nil
}

func (s *MemoryStore) Consume(ctx context.Context, value string, kind Kind) (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.recs[value]
	if !ok {
		return nil, common.ErrTokenInvalid
	}

	// single-use regardless of outcome: a mismatching or expired token is
	// burned
	delete(s.recs, value)

	if rec.Kind != kind || !s.now().Before(rec.ExpiresAt) {
		return nil, common.ErrTokenInvalid
	}
	return &rec, nil
}

// Sweep drops expired records and reports how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	n := 0
	for value, rec := range s.recs {
		if !now.Before(rec.ExpiresAt) {
			delete(s.recs, value)
			n++
		}
	}
	return n
}

// RunSweeper sweeps on the given interval until ctx is cancelled.
func (s *MemoryStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
