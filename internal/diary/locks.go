package diary

import (
	"hash/fnv"
	"sync"
)

const lockShards = 64

// lockPool hands out a mutex per conversation without growing without
// bound: keys hash onto a fixed shard array, so memory stays constant
// no matter how many conversations the process ever sees. Two keys
// sharing a shard serialize against each other, which is safe, just
// occasionally slower.
type lockPool struct {
	shards [lockShards]sync.Mutex
}

func newLockPool() *lockPool {
	return &lockPool{}
}

func (p *lockPool) get(key string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(key))
	return &p.shards[h.Sum32()%lockShards]
}

// Lock acquires the shard lock for key. Callers must hold it across
// the whole load-mutate-save cycle.
func (p *lockPool) Lock(key string) func() {
	mu := p.get(key)
	mu.Lock()
	return mu.Unlock
}
