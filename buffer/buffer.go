package buffer

import (
	"blockcache/disk"
)

// none is the empty value for index links between pool records.
const none = int32(-1)

// Buffer is one record of the fixed pool, mirroring one disk block.
// The identity fields (blk, valid) and the links are protected by
// the lock of the buffer's home shard; the page content is protected
// by the content lock.
//
// A buffer is always in exactly one of two states: referenced
// (refcnt > 0, off every LRU list) or unreferenced (refcnt == 0, on
// its home shard's LRU list). It stays in its home shard's hash
// chain either way, so a released block can be re-acquired without a
// device read until it is evicted.
type Buffer struct {
	blk      disk.BlockId
	valid    bool
	chained  bool
	refcnt   int32
	contents *disk.Page
	lock     *contentLock

	me   int32 // own index in the pool
	home int32 // shard owning this buffer

	nextHash int32 // next buffer in the home shard's hash chain
	lruPrev  int32 // neighbors on the home shard's LRU list,
	lruNext  int32 // none while the buffer is referenced
}

// Block returns the identity the buffer currently mirrors.
// Only meaningful while the caller has the buffer acquired or pinned.
func (b *Buffer) Block() disk.BlockId {
	return b.blk
}

// Contents returns the cached block content. Callers must hold the
// content lock.
func (b *Buffer) Contents() *disk.Page {
	return b.contents
}
