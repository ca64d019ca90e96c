package history

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// sweepWarmup delays the first sweep past process startup.
	sweepWarmup    = time.Minute
	sweepInterval  = time.Hour
	sweepBatchSize = 1000

	// Each sweep deletes in small batches with a pause between them so a
	// large backlog never holds the write lock across a usage request.
	sweepPause  = 200 * time.Millisecond
	sweepBudget = 15 * time.Second
)

// RetentionCleaner prunes snapshots older than the configured retention
// window in the background. The window can be changed at runtime through
// the management endpoint; zero disables pruning without stopping the
// cleaner.
type RetentionCleaner struct {
	store         *Store
	retentionDays atomic.Int64

	started   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func NewRetentionCleaner(store *Store, retentionDays int) *RetentionCleaner {
	cleaner := &RetentionCleaner{
		store: store,
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	cleaner.retentionDays.Store(int64(retentionDays))
	return cleaner
}

func (c *RetentionCleaner) Start() {
	if c == nil {
		return
	}
	c.startOnce.Do(func() {
		c.started.Store(true)
		go c.loop()
	})
}

func (c *RetentionCleaner) Stop() {
	if c == nil {
		return
	}
	c.stopOnce.Do(func() {
		close(c.stop)
	})
	if !c.started.Load() {
		close(c.done)
		return
	}
	<-c.done
}

func (c *RetentionCleaner) RetentionDays() int {
	if c == nil {
		return 0
	}
	return int(c.retentionDays.Load())
}

func (c *RetentionCleaner) UpdateRetentionDays(days int) (previous int) {
	if c == nil {
		return 0
	}
	return int(c.retentionDays.Swap(int64(days)))
}

func (c *RetentionCleaner) loop() {
	defer close(c.done)

	select {
	case <-c.stop:
		return
	case <-time.After(sweepWarmup):
	}
	c.sweep()

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

// sweep deletes expired snapshots in batches until the store is clean or
// the time budget runs out. Leftovers wait for the next interval.
func (c *RetentionCleaner) sweep() {
	days := int(c.retentionDays.Load())
	if days <= 0 || c.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), sweepBudget)
	defer cancel()

	cutoff := time.Now().AddDate(0, 0, -days).Format(time.RFC3339)
	var totalDeleted int64

	for ctx.Err() == nil {
		deleted, err := c.store.deleteOlderThanCutoffBatch(ctx, cutoff, sweepBatchSize)
		if err != nil {
			if ctx.Err() == nil {
				log.WithError(err).Warn("snapshot retention sweep failed")
			}
			break
		}
		if deleted == 0 {
			break
		}
		totalDeleted += deleted

		select {
		case <-c.stop:
			return
		case <-ctx.Done():
		case <-time.After(sweepPause):
		}
	}

	if totalDeleted > 0 {
		log.Infof("snapshot retention sweep: deleted %d snapshots older than %d days", totalDeleted, days)
	}
}

func (s *Store) deleteOlderThanCutoffBatch(ctx context.Context, cutoff string, batchSize int) (int64, error) {
	if batchSize <= 0 {
		batchSize = sweepBatchSize
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	query := `
		DELETE FROM session_snapshots
		WHERE id IN (
			SELECT id
			FROM session_snapshots
			WHERE captured_at < ?
			ORDER BY captured_at ASC
			LIMIT ?
		)
	`

	result, err := s.db.ExecContext(ctx, query, cutoff, batchSize)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}
