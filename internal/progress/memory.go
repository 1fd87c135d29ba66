package progress

import (
	"context"
	"sync"
	"time"
)

type memoryEntry struct {
	cp        Checkpoint
	expiresAt time.Time
}

// MemoryPublisher is an in-process progress channel with the same TTL and
// monotonicity semantics as the Redis one. Used for single-node runs and
// tests.
type MemoryPublisher struct {
	mu      sync.Mutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryPublisher(ttl time.Duration) *MemoryPublisher {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &MemoryPublisher{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (p *MemoryPublisher) Publish(_ context.Context, jobID string, cp Checkpoint) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	if e, ok := p.entries[jobID]; ok && now.Before(e.expiresAt) && cp.Progress < e.cp.Progress {
		return regressionError(jobID, e.cp.Progress, cp.Progress)
	}
	p.entries[jobID] = memoryEntry{cp: cp, expiresAt: now.Add(p.ttl)}
	return nil
}

func (p *MemoryPublisher) Get(_ context.Context, jobID string) (Checkpoint, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	e, ok := p.entries[jobID]
	if !ok {
		return Checkpoint{}, ErrNotFound
	}
	if !p.now().Before(e.expiresAt) {
		delete(p.entries, jobID)
		return Checkpoint{}, ErrNotFound
	}
	return e.cp, nil
}
