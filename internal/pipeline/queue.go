package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/rchauhan/fraudlens/internal/fraud"
	"github.com/rchauhan/fraudlens/internal/metrics"
)

// Queue runs a fixed pool of workers over the processor for asynchronous
// ingestion. Enqueue never blocks: when the buffer is full the transaction
// is dropped and counted, so a burst cannot stall the HTTP path.
type Queue struct {
	processor *Processor
	logger    *slog.Logger
	jobs      chan *fraud.Transaction
	workers   int
	wg        sync.WaitGroup
}

// NewQueue creates a queue with the given worker count and buffer size.
func NewQueue(processor *Processor, workers, buffer int, logger *slog.Logger) *Queue {
	if workers < 1 {
		workers = 1
	}
	if buffer < 1 {
		buffer = 1
	}
	return &Queue{
		processor: processor,
		logger:    logger,
		jobs:      make(chan *fraud.Transaction, buffer),
		workers:   workers,
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled;
// transactions still buffered at that point are not processed.
func (q *Queue) Start(ctx context.Context) {
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx)
	}
}

func (q *Queue) worker(ctx context.Context) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case txn := <-q.jobs:
			metrics.IngestQueueDepth.Set(float64(len(q.jobs)))
			if _, err := q.processor.Process(ctx, txn); err != nil {
				q.logger.Error("async transaction processing failed",
					"transaction_id", txn.ID, "error", err)
			}
		}
	}
}

// Enqueue submits a transaction for background scoring. Returns false when
// the buffer is full.
func (q *Queue) Enqueue(txn *fraud.Transaction) bool {
	select {
	case q.jobs <- txn:
		metrics.IngestQueueDepth.Set(float64(len(q.jobs)))
		return true
	default:
		metrics.TransactionsRejectedTotal.WithLabelValues("queue_full").Inc()
		return false
	}
}

// Depth returns the number of buffered transactions.
func (q *Queue) Depth() int {
	return len(q.jobs)
}

// Wait blocks until all workers have exited.
func (q *Queue) Wait() {
	q.wg.Wait()
}
