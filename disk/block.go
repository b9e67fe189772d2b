package disk

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// BlockId identifies one block on one device. A device is a named
// block image managed by Mgr.
type BlockId struct {
	Dev    string
	Blknum int
}

func NewBlockId(dev string, blknum int) BlockId {
	return BlockId{
		Dev:    dev,
		Blknum: blknum,
	}
}

func (b BlockId) Device() string {
	return b.Dev
}

func (b BlockId) Number() int {
	return b.Blknum
}

func (b BlockId) Equals(other BlockId) bool {
	return b.Dev == other.Dev && b.Blknum == other.Blknum
}

func (b BlockId) String() string {
	return fmt.Sprintf("[dev %s, block %d]", b.Dev, b.Blknum)
}

// Hash returns a 64-bit digest of the block identity, used to pick
// the owning cache shard.
func (b BlockId) Hash() uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(b.Dev)

	var num [8]byte
	binary.BigEndian.PutUint64(num[:], uint64(b.Blknum))
	_, _ = h.Write(num[:])

	return h.Sum64()
}
