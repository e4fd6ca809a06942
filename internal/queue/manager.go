// Package queue implements the asynchronous persistence writer: a save
// request queue and an autoscaling pool of workers writing to the store.
package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fairyhunter13/pos-session-service/internal/config"
	"github.com/fairyhunter13/pos-session-service/internal/model"
	"github.com/fairyhunter13/pos-session-service/internal/obs"
	"github.com/fairyhunter13/pos-session-service/internal/store"
)

const saveTimeout = 10 * time.Second

// Manager coordinates workers writing queued saves and scales them.
type Manager struct {
	cfg    config.Config
	q      *Queue
	st     *store.Sequenced
	seq    Sequencer
	ctx    context.Context
	cancel context.CancelFunc

	mu            sync.Mutex
	workerCancels []context.CancelFunc

	// unwritten holds the newest accepted save per key until a write at or
	// past its sequence lands in the store.
	unwrittenMu sync.Mutex
	unwritten   map[string]model.SaveRequest

	written atomic.Uint64
	stale   atomic.Uint64
	failed  atomic.Uint64
}

// NewManager constructs a Manager with the given config, queue, and store.
func NewManager(cfg config.Config, q *Queue, st *store.Sequenced) *Manager {
	return &Manager{cfg: cfg, q: q, st: st, unwritten: make(map[string]model.SaveRequest)}
}

// Start begins processing and autoscaling in the background.
func (m *Manager) Start(parent context.Context) {
	m.ctx, m.cancel = context.WithCancel(parent)
	m.q.Start(m.ctx, m.cfg.QueueHighWatermark)
	m.addWorkers(m.cfg.InitialWorkerCount)
	go m.scaler()
}

// Stop cancels background routines and stops workers.
func (m *Manager) Stop() {
	if m.cancel != nil {
		m.cancel()
	}
	m.mu.Lock()
	for _, c := range m.workerCancels {
		c()
	}
	m.workerCancels = nil
	m.mu.Unlock()
}

// scaler adjusts worker count based on backlog and configuration.
func (m *Manager) scaler() {
	t := time.NewTicker(m.cfg.ScaleInterval)
	defer t.Stop()
	idleTicks := 0
	for {
		select {
		case <-m.ctx.Done():
			return
		case <-t.C:
			backlog := m.q.BacklogSize()
			wc := m.WorkerCount()
			if backlog > wc*m.cfg.ScaleUpBacklogPerWorker && wc < m.cfg.WorkerMax {
				m.addWorkers(1)
				idleTicks = 0
				continue
			}
			if backlog == 0 {
				idleTicks++
				if idleTicks >= m.cfg.ScaleDownIdleTicks && wc > m.cfg.WorkerMin {
					m.removeWorkers(1)
					idleTicks = 0
				}
			} else {
				idleTicks = 0
			}
		}
	}
}

// addWorkers spawns n workers.
func (m *Manager) addWorkers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		wctx, cancel := context.WithCancel(m.ctx)
		m.workerCancels = append(m.workerCancels, cancel)
		go m.worker(wctx)
	}
	obs.Logger.Info("writers_scaled", "worker_count", len(m.workerCancels))
}

// removeWorkers stops up to n workers.
func (m *Manager) removeWorkers(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n > len(m.workerCancels) {
		n = len(m.workerCancels)
	}
	for i := 0; i < n; i++ {
		c := m.workerCancels[len(m.workerCancels)-1]
		m.workerCancels = m.workerCancels[:len(m.workerCancels)-1]
		c()
	}
	obs.Logger.Info("writers_scaled", "worker_count", len(m.workerCancels))
}

// worker drains save requests and writes them. Failed writes are logged and
// not retried.
func (m *Manager) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-m.q.Out():
			m.save(ctx, req)
			m.q.MarkProcessed()
		}
	}
}

func (m *Manager) save(ctx context.Context, req model.SaveRequest) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()
	applied, err := m.st.Apply(sctx, req)
	switch {
	case err != nil:
		m.failed.Add(1)
		obs.Logger.Error("state_save_failed", "key", req.Key, "sequence", req.Sequence, "error", err)
	case applied:
		m.written.Add(1)
	default:
		m.stale.Add(1)
	}
	if err == nil {
		m.settle(req.Key)
	}
}

// settle forgets the unwritten save for key once the store has caught up
// with it.
func (m *Manager) settle(key string) {
	last := m.st.LastSequence(key)
	m.unwrittenMu.Lock()
	defer m.unwrittenMu.Unlock()
	if cur, ok := m.unwritten[key]; ok && cur.Sequence <= last {
		delete(m.unwritten, key)
	}
}

// Enqueue queues req for writing. Until it is written, Pending returns it.
func (m *Manager) Enqueue(req model.SaveRequest) bool {
	m.unwrittenMu.Lock()
	defer m.unwrittenMu.Unlock()
	if !m.q.Enqueue(req) {
		return false
	}
	if cur, ok := m.unwritten[req.Key]; !ok || req.Sequence > cur.Sequence {
		m.unwritten[req.Key] = req
	}
	return true
}

// Pending returns the newest accepted save for key that the store does not
// hold yet, including one whose write failed. Readers check it before the
// store so a page reopened before its saves are flushed sees its latest
// state.
func (m *Manager) Pending(key string) ([]byte, bool) {
	m.unwrittenMu.Lock()
	defer m.unwrittenMu.Unlock()
	req, ok := m.unwritten[key]
	if !ok {
		return nil, false
	}
	return req.Data, true
}

// BacklogSize returns pending items in the queue.
func (m *Manager) BacklogSize() int { return m.q.BacklogSize() }

// QueueDepth returns backlog plus buffered output items.
func (m *Manager) QueueDepth() int { return m.q.QueueDepth() }

// WorkerCount returns the current number of workers.
func (m *Manager) WorkerCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workerCancels)
}

// NextSequence returns the next sequence number.
func (m *Manager) NextSequence() uint64 { return m.seq.Next() }

// IsShuttingDown reports whether new enqueues are rejected.
func (m *Manager) IsShuttingDown() bool { return m.q.IsShuttingDown() }

// CloseIntake disallows future enqueues.
func (m *Manager) CloseIntake() { m.q.CloseIntake() }

// Stats is a point-in-time view of the writer.
type Stats struct {
	Enqueued    uint64 `json:"saves_enqueued"`
	Processed   uint64 `json:"saves_processed"`
	Coalesced   uint64 `json:"saves_coalesced"`
	Written     uint64 `json:"saves_written"`
	Stale       uint64 `json:"saves_stale"`
	Failed      uint64 `json:"saves_failed"`
	Backlog     int    `json:"backlog_size"`
	Depth       int    `json:"queue_depth"`
	WorkerCount int    `json:"worker_count"`
}

// Stats exposes queue and write counters.
func (m *Manager) Stats() Stats {
	enq, proc, backlog, depth := m.q.Metrics()
	return Stats{
		Enqueued:    enq,
		Processed:   proc,
		Coalesced:   m.q.Coalesced(),
		Written:     m.written.Load(),
		Stale:       m.stale.Load(),
		Failed:      m.failed.Load(),
		Backlog:     backlog,
		Depth:       depth,
		WorkerCount: m.WorkerCount(),
	}
}

// DrainUntil blocks until the queue is fully drained or context is done.
func (m *Manager) DrainUntil(ctx context.Context) bool {
	for {
		enq, proc, backlog, depth := m.q.Metrics()
		if backlog == 0 && depth == 0 && enq == proc {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(50 * time.Millisecond):
		}
	}
}
