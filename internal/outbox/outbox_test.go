package outbox

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/juspay/airborne/internal/config"
	"github.com/juspay/airborne/internal/domain"
)

type fakeOutboxStore struct {
	mu      sync.Mutex
	rows    []*domain.OutboxRow
	deleted []string
}

func (s *fakeOutboxStore) Enqueue(ctx context.Context, row *domain.OutboxRow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = append(s.rows, row)
	return nil
}

func (s *fakeOutboxStore) ClaimBatch(ctx context.Context, limit int) ([]*domain.OutboxRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.OutboxRow, 0, len(s.rows))
	out = append(out, s.rows...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeOutboxStore) MarkAttempt(ctx context.Context, transactionID, entityType, entityName string, attempts int, lastAttempt bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rows {
		if r.TransactionID == transactionID && r.EntityType == entityType && r.EntityName == entityName {
			r.Attempts = attempts
			if lastAttempt {
				now := time.Now()
				r.LastAttempt = &now
			}
		}
	}
	return nil
}

func (s *fakeOutboxStore) Delete(ctx context.Context, transactionID, entityType, entityName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, transactionID+"|"+entityType+"|"+entityName)
	kept := s.rows[:0]
	for _, r := range s.rows {
		if r.TransactionID == transactionID && r.EntityType == entityType && r.EntityName == entityName {
			continue
		}
		kept = append(kept, r)
	}
	s.rows = kept
	return nil
}

func TestDrainDeletesRowOnSuccessfulCompensation(t *testing.T) {
	store := &fakeOutboxStore{}
	require.NoError(t, store.Enqueue(context.Background(), &domain.OutboxRow{
		TransactionID: "tx1", EntityType: "file", EntityName: "boot.js",
	}))

	w := New(store, config.OutboxConfig{}, nil, nil)
	called := false
	w.Register("file", func(ctx context.Context, row *domain.OutboxRow) error {
		called = true
		return nil
	})

	w.drain(context.Background())
	require.True(t, called)
	require.Empty(t, store.rows)
	require.Equal(t, []string{"tx1|file|boot.js"}, store.deleted)
}

func TestDrainMarksAttemptOnFailureAndKeepsRow(t *testing.T) {
	store := &fakeOutboxStore{}
	require.NoError(t, store.Enqueue(context.Background(), &domain.OutboxRow{
		TransactionID: "tx1", EntityType: "file", EntityName: "boot.js",
	}))

	w := New(store, config.OutboxConfig{MaxAttempts: 5}, nil, nil)
	w.Register("file", func(ctx context.Context, row *domain.OutboxRow) error {
		return fmt.Errorf("still unreachable")
	})

	w.drain(context.Background())
	require.Len(t, store.rows, 1)
	require.Equal(t, 1, store.rows[0].Attempts)
}

func TestDrainSkipsRowWithNoRegisteredCompensator(t *testing.T) {
	store := &fakeOutboxStore{}
	require.NoError(t, store.Enqueue(context.Background(), &domain.OutboxRow{
		TransactionID: "tx1", EntityType: "unregistered_kind", EntityName: "x",
	}))

	w := New(store, config.OutboxConfig{}, nil, nil)
	w.drain(context.Background())
	require.Len(t, store.rows, 1)
}

func TestBackoffCapsAtMaxBackoff(t *testing.T) {
	cfg := config.OutboxConfig{BaseBackoff: time.Second, MaxBackoff: 10 * time.Second}
	require.Equal(t, 10*time.Second, Backoff(cfg, 10))
	require.Less(t, Backoff(cfg, 1), 10*time.Second)
}

func TestStartAndStop(t *testing.T) {
	store := &fakeOutboxStore{}
	w := New(store, config.OutboxConfig{PollInterval: 10 * time.Millisecond}, nil, nil)
	w.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	w.Stop()
}
