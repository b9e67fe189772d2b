package buffer

import (
	"sync"

	"blockcache/disk"
)

// shard is one partition of the cache. It owns a hash chain of the
// buffers homed here and an LRU list of the subset of those buffers
// that are currently unreferenced. Both lists link pool records by
// index and are only touched under mu.
type shard struct {
	mu      sync.Mutex
	chain   int32 // head of the hash chain
	lruHead int32 // most recently released
	lruTail int32 // least recently released, next victim
}

func newShards(k int) []shard {
	shards := make([]shard, k)
	for i := range shards {
		shards[i].chain = none
		shards[i].lruHead = none
		shards[i].lruTail = none
	}
	return shards
}

// chainFind scans the shard's hash chain for blk.
// Caller must hold the shard lock.
func (m *Mgr) chainFind(sh *shard, blk disk.BlockId) *Buffer {
	for i := sh.chain; i != none; i = m.pool[i].nextHash {
		if m.pool[i].blk.Equals(blk) {
			return &m.pool[i]
		}
	}
	return nil
}

// chainInsert puts b at the head of the shard's hash chain.
// Caller must hold the shard lock.
func (m *Mgr) chainInsert(sh *shard, b *Buffer) {
	b.nextHash = sh.chain
	b.chained = true
	sh.chain = b.me
}

// chainRemove unlinks b from the shard's hash chain. A buffer that
// never carried an identity is not chained; that is a no-op.
// Caller must hold the shard lock.
func (m *Mgr) chainRemove(sh *shard, b *Buffer) {
	if !b.chained {
		return
	}
	if sh.chain == b.me {
		sh.chain = b.nextHash
	} else {
		for i := sh.chain; i != none; i = m.pool[i].nextHash {
			if m.pool[i].nextHash == b.me {
				m.pool[i].nextHash = b.nextHash
				break
			}
		}
	}
	b.nextHash = none
	b.chained = false
}

// lruPush inserts b at the MRU end of the shard's LRU list.
// Caller must hold the shard lock.
func (m *Mgr) lruPush(sh *shard, b *Buffer) {
	b.lruPrev = none
	b.lruNext = sh.lruHead
	if sh.lruHead != none {
		m.pool[sh.lruHead].lruPrev = b.me
	} else {
		sh.lruTail = b.me
	}
	sh.lruHead = b.me
}

// lruRemove unlinks b from the shard's LRU list.
// Caller must hold the shard lock.
func (m *Mgr) lruRemove(sh *shard, b *Buffer) {
	if b.lruPrev != none {
		m.pool[b.lruPrev].lruNext = b.lruNext
	} else {
		sh.lruHead = b.lruNext
	}
	if b.lruNext != none {
		m.pool[b.lruNext].lruPrev = b.lruPrev
	} else {
		sh.lruTail = b.lruPrev
	}
	b.lruPrev = none
	b.lruNext = none
}

// lruVictim removes and returns the buffer at the LRU end of the
// shard's list, or nil if the shard has no unreferenced buffer.
// Caller must hold the shard lock.
func (m *Mgr) lruVictim(sh *shard) *Buffer {
	if sh.lruTail == none {
		return nil
	}
	b := &m.pool[sh.lruTail]
	m.lruRemove(sh, b)
	return b
}
