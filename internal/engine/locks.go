package engine

import (
	"sync"

	"github.com/google/uuid"
)

const lockShards = 32

// identityLocks serializes event handling per identity. Locks are sharded by
// the identity id so acquiring a lock for one identity never contends with
// the whole key space; events for different identities proceed in parallel.
type identityLocks struct {
	shards [lockShards]lockShard
}

type lockShard struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newIdentityLocks() *identityLocks {
	l := &identityLocks{}
	for i := range l.shards {
		l.shards[i].entries = make(map[uuid.UUID]*lockEntry)
	}
	return l
}

// Lock acquires the exclusive lock for one identity and returns its unlock
// function. Entries are reference-counted and removed when unused, so the
// table does not grow with the identity population.
func (l *identityLocks) Lock(id uuid.UUID) func() {
	shard := &l.shards[id[0]%lockShards]

	shard.mu.Lock()
	e, ok := shard.entries[id]
	if !ok {
		e = &lockEntry{}
		shard.entries[id] = e
	}
	e.refs++
	shard.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		shard.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(shard.entries, id)
		}
		shard.mu.Unlock()
	}
}
