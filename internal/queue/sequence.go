package queue

import "sync/atomic"

// Sequencer hands out process-wide increasing save sequence numbers, so a
// save issued later always supersedes an earlier one for the same key.
type Sequencer struct{ n atomic.Uint64 }

// Next returns the next sequence number.
func (s *Sequencer) Next() uint64 { return s.n.Add(1) }
