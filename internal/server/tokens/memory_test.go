package tokens

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkrasnov/accountd/internal/common"
	"github.com/dkrasnov/accountd/internal/cryptox"
)

func newRecord(kind Kind, ttl time.Duration) *Record {
	return &Record{
		Value:     cryptox.NewTokenValue(),
		Kind:      kind,
		AccountID: 1,
		ExpiresAt: time.Now().Add(ttl),
	}
}

func TestMemoryStore_ConsumeOnce(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := newRecord(KindVerify, time.Minute)
	require.NoError(t, s.Put(ctx, rec))

	got, err := s.Consume(ctx, rec.Value, KindVerify)
	require.NoError(t, err)
	assert.Equal(t, rec.AccountID, got.AccountID)

	_, err = s.Consume(ctx, rec.Value, KindVerify)
	assert.ErrorIs(t, err, common.ErrTokenInvalid)
}

func TestMemoryStore_PutDuplicate(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := newRecord(KindLogin, time.Minute)
	require.NoError(t, s.Put(ctx, rec))
	assert.ErrorIs(t, s.Put(ctx, rec), common.ErrConflict)
}

func TestMemoryStore_PutOverwritesExpired(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := newRecord(KindLogin, -time.Second)
	require.NoError(t, s.Put(ctx, rec))
	// the old record is past its expiry, so the value can be reused
	require.NoError(t, s.Put(ctx, rec))
}

func TestMemoryStore_ExpiredRejected(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := newRecord(KindReset, -time.Second)
	require.NoError(t, s.Put(ctx, rec))

	_, err := s.Consume(ctx, rec.Value, KindReset)
	assert.ErrorIs(t, err, common.ErrTokenInvalid)
}

func TestMemoryStore_KindMismatch(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := newRecord(KindVerify, time.Minute)
	require.NoError(t, s.Put(ctx, rec))

	_, err := s.Consume(ctx, rec.Value, KindReset)
	assert.ErrorIs(t, err, common.ErrTokenInvalid)

	// the mismatching attempt burned the token
	_, err = s.Consume(ctx, rec.Value, KindVerify)
	assert.ErrorIs(t, err, common.ErrTokenInvalid)
}

func TestMemoryStore_ConcurrentConsume(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	rec := newRecord(KindLogin, time.Minute)
	require.NoError(t, s.Put(ctx, rec))

	const workers = 16
	var wg sync.WaitGroup
	successes := make(chan struct{}, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Consume(ctx, rec.Value, KindLogin); err == nil {
				successes <- struct{}{}
			}
		}()
	}
	wg.Wait()
	close(successes)

	assert.Len(t, successes, 1, "exactly one concurrent redemption may win")
}

func TestMemoryStore_Sweep(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, newRecord(KindVerify, -time.Second)))
	require.NoError(t, s.Put(ctx, newRecord(KindVerify, time.Minute)))

	assert.Equal(t, 1, s.Sweep())
	assert.Equal(t, 0, s.Sweep())
}
