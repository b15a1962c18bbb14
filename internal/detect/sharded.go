package detect

import (
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"

	"log-triage/internal/parser"
	"log-triage/internal/types"
)

// Detector is satisfied by both Engine and Sharded
type Detector interface {
	Feed(evt *parser.Event) []types.Alert
	Sweep(ref time.Time) int
	TrackedKeys() map[string]int
}

type shard struct {
	mu     sync.Mutex
	engine *Engine
}

// Sharded partitions engine state by source IP so several goroutines can
// feed events concurrently. All events for one IP land on the same shard,
// so rule semantics are unchanged as long as each IP's events arrive in
// time order.
type Sharded struct {
	shards []*shard
}

// NewSharded creates n independent engines sharing the same options
func NewSharded(n int, opts Options) *Sharded {
	if n < 1 {
		n = 1
	}
	s := &Sharded{shards: make([]*shard, n)}
	for i := range s.shards {
		s.shards[i] = &shard{engine: NewEngine(opts)}
	}
	return s
}

func (s *Sharded) pick(ip string) *shard {
	return s.shards[xxhash.Sum64String(ip)%uint64(len(s.shards))]
}

// Feed routes evt to its IP's shard
func (s *Sharded) Feed(evt *parser.Event) []types.Alert {
	if evt == nil {
		return nil
	}
	sh := s.pick(evt.IP)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.engine.Feed(evt)
}

// Sweep sweeps every shard and returns the total number of keys dropped
func (s *Sharded) Sweep(ref time.Time) int {
	total := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		total += sh.engine.Sweep(ref)
		sh.mu.Unlock()
	}
	return total
}

// TrackedKeys sums per-rule key counts across shards
func (s *Sharded) TrackedKeys() map[string]int {
	out := make(map[string]int)
	for _, sh := range s.shards {
		sh.mu.Lock()
		for rule, n := range sh.engine.TrackedKeys() {
			out[rule] += n
		}
		sh.mu.Unlock()
	}
	return out
}
