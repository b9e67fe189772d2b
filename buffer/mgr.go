// Package buffer implements a fixed-capacity, sharded cache of disk
// blocks. Each cached block is held in one of N statically allocated
// buffer records, indexed by K independent shards. A shard owns a
// hash chain of its resident buffers and an LRU list of the
// unreferenced ones; a miss takes a victim from the requesting
// shard's own LRU list or, failing that, steals one from another
// shard.
//
// Interface:
//   - Read returns a valid buffer for a block with its content lock
//     held by the caller.
//   - Write persists a held buffer's content to the device.
//   - Release unlocks the buffer and makes it eviction-eligible once
//     its last reference is gone.
//   - Pin/Unpin keep a buffer resident across separate Read/Release
//     cycles without touching the content lock.
package buffer

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"blockcache/disk"
)

// DefaultShards is the number of cache shards unless overridden by
// WithShards.
const DefaultShards = 13

// Device is the block I/O collaborator. Read fills p with the block's
// content; Write persists p. Both are synchronous. *disk.Mgr
// satisfies this.
type Device interface {
	Read(blk disk.BlockId, p *disk.Page) error
	Write(blk disk.BlockId, p *disk.Page) error
	BlockSize() int
}

// Stats is a snapshot of the manager's counters.
type Stats struct {
	Hits   int64
	Misses int64
	Steals int64
}

// Mgr owns the buffer pool and its shards. Capacity is fixed at
// construction; running the true concurrent working set past it is a
// configuration bug and panics.
type Mgr struct {
	dev    Device
	pool   []Buffer
	shards []shard
	logger *slog.Logger

	hits   atomic.Int64
	misses atomic.Int64
	steals atomic.Int64
}

// Option configures a Mgr.
type Option func(*Mgr)

// WithShards sets the number of shards.
func WithShards(k int) Option {
	return func(m *Mgr) {
		if k > 0 {
			m.shards = newShards(k)
		}
	}
}

// WithLogger sets the structured logger. Logging is off by default.
func WithLogger(l *slog.Logger) Option {
	return func(m *Mgr) {
		m.logger = l
	}
}

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // unreachable level
	}))
}

// New builds a manager with numBufs buffer records distributed
// round-robin across the shard LRU lists.
func New(dev Device, numBufs int, opts ...Option) *Mgr {
	if numBufs < 1 {
		panic("buffer: pool needs at least one buffer")
	}

	m := &Mgr{
		dev:    dev,
		shards: newShards(DefaultShards),
		logger: noopLogger(),
	}
	for _, opt := range opts {
		opt(m)
	}

	k := int32(len(m.shards))
	m.pool = make([]Buffer, numBufs)
	for i := range m.pool {
		b := &m.pool[i]
		b.me = int32(i)
		b.home = int32(i) % k
		b.contents = disk.NewPage(dev.BlockSize())
		b.lock = newContentLock()
		b.nextHash = none
		m.lruPush(&m.shards[b.home], b)
	}

	m.logger.Info("buffer cache initialized",
		"buffers", numBufs,
		"shards", len(m.shards),
		"block_size", dev.BlockSize(),
	)
	return m
}

func (m *Mgr) shardOf(blk disk.BlockId) int32 {
	return int32(blk.Hash() % uint64(len(m.shards)))
}

// raiseLocked takes a reference. The 0 -> 1 transition removes the
// buffer from its shard's LRU list. Caller must hold sh's lock.
func (m *Mgr) raiseLocked(sh *shard, b *Buffer) {
	if b.refcnt == 0 {
		m.lruRemove(sh, b)
	}
	b.refcnt++
}

// dropLocked gives up a reference. The 1 -> 0 transition puts the
// buffer at the MRU end of its shard's LRU list, making it
// eviction-eligible. Caller must hold sh's lock.
func (m *Mgr) dropLocked(sh *shard, b *Buffer) {
	if b.refcnt <= 0 {
		panic(fmt.Sprintf("buffer: refcount underflow on %v", b.blk))
	}
	b.refcnt--
	if b.refcnt == 0 {
		m.lruPush(sh, b)
	}
}

// drop gives up a reference held by the calling goroutine. The home
// shard is stable because the reference being dropped pins it.
func (m *Mgr) drop(b *Buffer) {
	sh := &m.shards[b.home]
	sh.mu.Lock()
	m.dropLocked(sh, b)
	sh.mu.Unlock()
}

// setIdentityLocked rebinds an evicted buffer to blk inside the
// requesting shard. The content becomes invalid until the next
// read-through. Caller must hold sh's lock and b must be unchained.
func (m *Mgr) setIdentityLocked(sh *shard, b *Buffer, blk disk.BlockId) {
	b.blk = blk
	b.valid = false
	b.refcnt = 1
	m.chainInsert(sh, b)
}

// lockContent takes the buffer's content lock for the caller, who
// already holds a reference. A cancelled wait is the one recoverable
// failure: the reference is returned and the error surfaced.
func (m *Mgr) lockContent(ctx context.Context, b *Buffer) (*Buffer, error) {
	if err := b.lock.acquire(ctx); err != nil {
		blk := b.blk
		m.drop(b)
		return nil, fmt.Errorf("acquire %v: %w", blk, err)
	}
	return b, nil
}

// acquire returns the buffer for blk with the content lock held and
// a reference taken, installing it into the cache first on a miss.
//
// On a miss with no local victim, every other shard is visited in
// index order. Shard locks are ranked by index, higher first: a
// lower-indexed shard lock may be taken while holding a higher one,
// but to take a higher-indexed one the home lock is released and
// re-taken afterwards. That release opens a window for another
// goroutine to install the same block, so the home chain is probed
// again after every reacquisition; the re-check is what keeps
// residency unique and must stay.
func (m *Mgr) acquire(ctx context.Context, blk disk.BlockId) (*Buffer, error) {
	idx := m.shardOf(blk)
	sh := &m.shards[idx]
	sh.mu.Lock()

	// Already resident?
	if b := m.chainFind(sh, blk); b != nil {
		m.raiseLocked(sh, b)
		sh.mu.Unlock()
		m.hits.Add(1)
		return m.lockContent(ctx, b)
	}
	m.misses.Add(1)

	// Victim from the block's own shard.
	if b := m.lruVictim(sh); b != nil {
		m.chainRemove(sh, b)
		m.setIdentityLocked(sh, b, blk)
		sh.mu.Unlock()
		return m.lockContent(ctx, b)
	}

	// Steal from another shard.
	for i := int32(0); i < int32(len(m.shards)); i++ {
		if i == idx {
			continue
		}
		other := &m.shards[i]
		if i < idx {
			other.mu.Lock()
		} else {
			sh.mu.Unlock()
			other.mu.Lock()
			sh.mu.Lock()
		}

		// The home lock may have been ceded above; another goroutine
		// can have installed blk in the meantime.
		if b := m.chainFind(sh, blk); b != nil {
			m.raiseLocked(sh, b)
			sh.mu.Unlock()
			other.mu.Unlock()
			return m.lockContent(ctx, b)
		}

		b := m.lruVictim(other)
		if b == nil {
			other.mu.Unlock()
			continue
		}

		m.chainRemove(other, b)
		b.home = idx
		m.setIdentityLocked(sh, b, blk)
		m.steals.Add(1)
		m.logger.Debug("stole buffer",
			"block", blk.String(),
			"from_shard", i,
			"to_shard", idx,
		)
		sh.mu.Unlock()
		other.mu.Unlock()
		return m.lockContent(ctx, b)
	}

	m.logger.Error("buffer pool exhausted",
		"block", blk.String(),
		"buffers", len(m.pool),
		"shards", len(m.shards),
	)
	panic(fmt.Sprintf("buffer: no victim available for %v", blk))
}

// Read returns the buffer holding blk, its content lock held by the
// caller. On first access after (re)assignment the content is filled
// from the device; the content lock guarantees only one caller ever
// observes the invalid state.
func (m *Mgr) Read(ctx context.Context, blk disk.BlockId) (*Buffer, error) {
	b, err := m.acquire(ctx, blk)
	if err != nil {
		return nil, err
	}
	if !b.valid {
		if err := m.dev.Read(b.blk, b.contents); err != nil {
			b.lock.release()
			m.drop(b)
			return nil, fmt.Errorf("read-through %v: %w", blk, err)
		}
		b.valid = true
	}
	return b, nil
}

// Write synchronously persists the buffer's content. The caller must
// hold the content lock; writing without it would publish torn data
// to other readers and is a fatal contract breach.
func (m *Mgr) Write(b *Buffer) error {
	if !b.lock.held() {
		panic(fmt.Sprintf("buffer: write of unlocked buffer %v", b.blk))
	}
	if err := m.dev.Write(b.blk, b.contents); err != nil {
		return fmt.Errorf("commit %v: %w", b.blk, err)
	}
	return nil
}

// Release unlocks the buffer and gives up the caller's reference.
// When the last reference goes, the buffer moves to the MRU end of
// its shard's LRU list and becomes eviction-eligible.
func (m *Mgr) Release(b *Buffer) {
	if !b.lock.held() {
		panic(fmt.Sprintf("buffer: release of unlocked buffer %v", b.blk))
	}
	b.lock.release()
	m.drop(b)
}

// Pin takes an extra reference so the buffer stays resident across
// Read/Release cycles performed elsewhere. The caller must already
// hold the buffer (acquired or pinned); the content lock is not
// touched.
func (m *Mgr) Pin(b *Buffer) {
	sh := &m.shards[b.home]
	sh.mu.Lock()
	m.raiseLocked(sh, b)
	sh.mu.Unlock()
}

// Unpin gives back a reference taken by Pin. Unpinning below zero is
// a contract breach and panics.
func (m *Mgr) Unpin(b *Buffer) {
	m.drop(b)
}

// Stats returns a snapshot of the hit/miss/steal counters.
func (m *Mgr) Stats() Stats {
	return Stats{
		Hits:   m.hits.Load(),
		Misses: m.misses.Load(),
		Steals: m.steals.Load(),
	}
}
