package location

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"dispatch/internal/config"
)

// HistoryWriter is the durable sink the queue drains into.
type HistoryWriter interface {
	Append(ctx context.Context, pos Position) error
}

// QueueStats is the observability snapshot exposed over HTTP.
type QueueStats struct {
	QueueLength int  `json:"queue_length"`
	Processing  bool `json:"processing"`
}

// WriteBackQueue decouples the position-report path from durable storage.
// Producers enqueue after the geo index has already been updated; a single
// background consumer drains on a fixed interval or when a batch fills up.
// Durability is at-most-once: a row that fails to write is logged and
// dropped, and never blocks the rows behind it.
type WriteBackQueue struct {
	writer   HistoryWriter
	log      *slog.Logger
	interval time.Duration
	batch    int

	mu         sync.Mutex
	pending    []Position
	processing bool
	waiters    []chan struct{}

	nudge    chan struct{}
	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

func NewWriteBackQueue(writer HistoryWriter, cfg config.QueueConfig, log *slog.Logger) *WriteBackQueue {
	q := &WriteBackQueue{
		writer:   writer,
		log:      log.With("component", "writeback_queue"),
		interval: cfg.DrainInterval,
		batch:    cfg.BatchSize,
		nudge:    make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	if q.interval <= 0 {
		q.interval = 2 * time.Second
	}
	if q.batch <= 0 {
		q.batch = 100
	}
	return q
}

// Start launches the drain loop. Call exactly once.
func (q *WriteBackQueue) Start() {
	go q.loop()
}

// Enqueue appends a durable-write obligation. It never blocks on storage;
// the caller has already written the live index entry.
func (q *WriteBackQueue) Enqueue(pos Position) {
	q.mu.Lock()
	q.pending = append(q.pending, pos)
	full := len(q.pending) >= q.batch
	q.mu.Unlock()

	if full {
		q.kick()
	}
}

// Stats reports the current backlog and whether a drain pass is running.
func (q *WriteBackQueue) Stats() QueueStats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return QueueStats{QueueLength: len(q.pending), Processing: q.processing}
}

// Flush drains everything currently queued and returns once it has been
// handed to the writer. It exists so tests and shutdown paths can wait on
// an explicit completion signal instead of sleeping.
func (q *WriteBackQueue) Flush(ctx context.Context) error {
	q.mu.Lock()
	if len(q.pending) == 0 && !q.processing {
		q.mu.Unlock()
		return nil
	}
	w := make(chan struct{})
	q.waiters = append(q.waiters, w)
	q.mu.Unlock()

	q.kick()

	select {
	case <-w:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop performs a final drain and halts the background consumer.
func (q *WriteBackQueue) Stop() {
	q.stopOnce.Do(func() {
		close(q.stop)
	})
	<-q.done
}

func (q *WriteBackQueue) kick() {
	select {
	case q.nudge <- struct{}{}:
	default:
	}
}

func (q *WriteBackQueue) loop() {
	ticker := time.NewTicker(q.interval)
	defer ticker.Stop()

	for {
		select {
		case <-q.stop:
			q.drain(context.Background())
			close(q.done)
			return
		case <-ticker.C:
			q.drain(context.Background())
		case <-q.nudge:
			q.drain(context.Background())
		}
	}
}

func (q *WriteBackQueue) drain(ctx context.Context) {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.processing = len(batch) > 0
	q.mu.Unlock()

	for _, pos := range batch {
		err := q.writer.Append(ctx, pos)
		switch {
		case errors.Is(err, ErrUnknownCourier):
			q.log.Warn("dropping position for unknown courier",
				"courier_id", pos.CourierID)
		case err != nil:
			q.log.Warn("position history write failed, dropping entry",
				"courier_id", pos.CourierID, "error", err)
		}
	}

	q.mu.Lock()
	q.processing = false
	if len(q.pending) == 0 {
		for _, w := range q.waiters {
			close(w)
		}
		q.waiters = nil
	}
	q.mu.Unlock()
}
