package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/pos-session-service/internal/model"
	"github.com/fairyhunter13/pos-session-service/internal/obs"
)

// Queue is a buffered queue of save requests with a background broker.
// While a key waits in the backlog, newer requests for it replace the
// pending one instead of queueing behind it.
type Queue struct {
	mu           sync.Mutex
	order        []string
	pending      map[string]model.SaveRequest
	notify       chan struct{}
	out          chan model.SaveRequest
	shuttingDown atomic.Bool

	enqueued  atomic.Uint64
	processed atomic.Uint64
	coalesced atomic.Uint64
}

// New creates a Queue with a buffered output channel.
func New(outBuffer int) *Queue {
	if outBuffer <= 0 {
		outBuffer = 64
	}
	return &Queue{
		pending: make(map[string]model.SaveRequest),
		notify:  make(chan struct{}, 1),
		out:     make(chan model.SaveRequest, outBuffer),
	}
}

// Start runs the broker loop.
func (q *Queue) Start(ctx context.Context, highWatermark int) {
	go q.broker(ctx, highWatermark)
}

// broker moves backlog items to the output channel.
func (q *Queue) broker(ctx context.Context, highWatermark int) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		q.flushOnce()
		if highWatermark > 0 {
			if sz := q.BacklogSize(); sz > highWatermark {
				obs.Logger.Warn("save_backlog_high", "backlog_size", sz, "high_watermark", highWatermark)
			}
		}
		select {
		case <-ctx.Done():
			return
		case <-q.notify:
		case <-ticker.C:
		}
	}
}

// flushOnce hands pending requests to workers in arrival order.
func (q *Queue) flushOnce() {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.order) > 0 && len(q.out) < cap(q.out) {
		key := q.order[0]
		q.order = q.order[1:]
		req := q.pending[key]
		delete(q.pending, key)
		q.out <- req
	}
}

// Enqueue adds a save request to the backlog and notifies the broker. It
// returns false once intake is closed.
func (q *Queue) Enqueue(req model.SaveRequest) bool {
	if q.shuttingDown.Load() {
		return false
	}
	q.enqueued.Add(1)
	q.mu.Lock()
	if old, ok := q.pending[req.Key]; ok {
		if req.Sequence > old.Sequence {
			q.pending[req.Key] = req
		}
		q.coalesced.Add(1)
		q.processed.Add(1)
	} else {
		q.order = append(q.order, req.Key)
		q.pending[req.Key] = req
	}
	q.mu.Unlock()
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return true
}

// Out exposes the output channel of save requests.
func (q *Queue) Out() <-chan model.SaveRequest { return q.out }

// BacklogSize returns the number of keys waiting to be handed to workers.
func (q *Queue) BacklogSize() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.order)
}

// QueueDepth returns backlog plus buffered output items.
func (q *Queue) QueueDepth() int {
	q.mu.Lock()
	bl := len(q.order)
	q.mu.Unlock()
	return bl + len(q.out)
}

// MarkProcessed increases the processed counter.
func (q *Queue) MarkProcessed() { q.processed.Add(1) }

// Coalesced returns how many requests were folded into a newer one.
func (q *Queue) Coalesced() uint64 { return q.coalesced.Load() }

// Metrics returns counters and sizes for observability.
func (q *Queue) Metrics() (enq, proc uint64, backlog, depth int) {
	enq = q.enqueued.Load()
	proc = q.processed.Load()
	backlog = q.BacklogSize()
	depth = q.QueueDepth()
	return enq, proc, backlog, depth
}

// CloseIntake disallows future enqueues.
func (q *Queue) CloseIntake() { q.shuttingDown.Store(true) }

// IsShuttingDown reports if intake has been closed.
func (q *Queue) IsShuttingDown() bool { return q.shuttingDown.Load() }
