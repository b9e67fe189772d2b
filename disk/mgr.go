package disk

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Mgr is a synchronous block device backed by a directory of image
// files, one file per device name. Reads and writes move whole
// blocks; writes are fsynced before returning.
type Mgr struct {
	dir       string
	blockSize int
	isNew     bool

	mu            sync.Mutex
	openFiles     map[string]*os.File
	blocksRead    int
	blocksWritten int
}

// NewMgr opens (or creates) the device directory.
// blockSize is the size of every block on every device.
func NewMgr(dir string, blockSize int) (*Mgr, error) {
	m := &Mgr{
		dir:       dir,
		blockSize: blockSize,
		openFiles: make(map[string]*os.File),
	}

	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		m.isNew = true
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	case err != nil:
		return nil, fmt.Errorf("failed to access directory %s: %w", dir, err)
	case !info.IsDir():
		return nil, fmt.Errorf("path %s is not a directory", dir)
	}

	return m, nil
}

// getFile returns the open handle for a device image, opening and
// caching it on first use. Caller must hold m.mu.
func (m *Mgr) getFile(dev string) (*os.File, error) {
	if f, exists := m.openFiles[dev]; exists {
		return f, nil
	}

	path := filepath.Join(m.dir, dev)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open device %s: %w", dev, err)
	}

	m.openFiles[dev] = f
	return f, nil
}

// Read fills p with the content of blk. Reading a block that was
// never written is an error.
func (m *Mgr) Read(blk BlockId, p *Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := m.getFile(blk.Device())
	if err != nil {
		return fmt.Errorf("read %v: %w", blk, err)
	}

	offset := int64(blk.Number() * m.blockSize)
	n, err := f.ReadAt(p.Contents(), offset)
	if err != nil {
		return fmt.Errorf("read %v: %w", blk, err)
	}
	if n != m.blockSize {
		return fmt.Errorf("read %v: incomplete read, expected %d bytes, got %d", blk, m.blockSize, n)
	}

	m.blocksRead++
	return nil
}

// Write persists the content of p as block blk and syncs the device.
func (m *Mgr) Write(blk BlockId, p *Page) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, err := m.getFile(blk.Device())
	if err != nil {
		return fmt.Errorf("write %v: %w", blk, err)
	}

	offset := int64(blk.Number() * m.blockSize)
	n, err := f.WriteAt(p.Contents(), offset)
	if err != nil {
		return fmt.Errorf("write %v: %w", blk, err)
	}
	if n != m.blockSize {
		return fmt.Errorf("write %v: incomplete write, expected %d bytes, wrote %d", blk, m.blockSize, n)
	}

	if err := f.Sync(); err != nil {
		return fmt.Errorf("write %v: sync: %w", blk, err)
	}

	m.blocksWritten++
	return nil
}

// Append extends the device image by one zero block and returns its id.
func (m *Mgr) Append(dev string) (BlockId, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	newblknum, err := m.lengthLocked(dev)
	if err != nil {
		return BlockId{}, fmt.Errorf("append to %s: %w", dev, err)
	}

	blk := NewBlockId(dev, newblknum)
	f, err := m.getFile(dev)
	if err != nil {
		return BlockId{}, fmt.Errorf("append to %s: %w", dev, err)
	}

	empty := make([]byte, m.blockSize)
	offset := int64(newblknum * m.blockSize)
	n, err := f.WriteAt(empty, offset)
	if err != nil {
		return BlockId{}, fmt.Errorf("append %v: %w", blk, err)
	}
	if n != m.blockSize {
		return BlockId{}, fmt.Errorf("append %v: incomplete write, expected %d bytes, wrote %d", blk, m.blockSize, n)
	}

	if err := f.Sync(); err != nil {
		return BlockId{}, fmt.Errorf("append %v: sync: %w", blk, err)
	}

	return blk, nil
}

// Length returns the number of blocks in the device image.
func (m *Mgr) Length(dev string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lengthLocked(dev)
}

func (m *Mgr) lengthLocked(dev string) (int, error) {
	f, err := m.getFile(dev)
	if err != nil {
		return 0, err
	}

	stat, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat device %s: %w", dev, err)
	}

	return int(stat.Size() / int64(m.blockSize)), nil
}

// IsNew reports whether the device directory was created by this Mgr.
func (m *Mgr) IsNew() bool {
	return m.isNew
}

func (m *Mgr) BlockSize() int {
	return m.blockSize
}

// BlocksRead returns the number of block reads performed so far.
func (m *Mgr) BlocksRead() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blocksRead
}

// BlocksWritten returns the number of block writes performed so far.
func (m *Mgr) BlocksWritten() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blocksWritten
}

// Close closes all open device images.
func (m *Mgr) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for dev, f := range m.openFiles {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to close device %s: %w", dev, err)
		}
		delete(m.openFiles, dev)
	}
	return firstErr
}
