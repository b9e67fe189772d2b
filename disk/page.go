package disk

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrOutOfBounds is returned by page accessors when an offset does
// not fit inside the page.
var ErrOutOfBounds = errors.New("offset out of bounds")

// Page holds the content of one disk block. A page carries no lock
// of its own: inside the cache it is only reached through a buffer
// whose content lock the caller holds.
type Page struct {
	data []byte
}

func NewPage(blockSize int) *Page {
	return &Page{
		data: make([]byte, blockSize),
	}
}

func NewPageFromBytes(b []byte) *Page {
	return &Page{
		data: b,
	}
}

func (p *Page) Contents() []byte {
	return p.data
}

func (p *Page) Size() int {
	return len(p.data)
}

func (p *Page) GetInt(offset int) (int, error) {
	if offset+4 > len(p.data) {
		return 0, fmt.Errorf("getting int at %d: %w", offset, ErrOutOfBounds)
	}
	return int(binary.BigEndian.Uint32(p.data[offset:])), nil
}

func (p *Page) SetInt(offset int, val int) error {
	if offset+4 > len(p.data) {
		return fmt.Errorf("setting int at %d: %w", offset, ErrOutOfBounds)
	}
	binary.BigEndian.PutUint32(p.data[offset:], uint32(val))
	return nil
}

// SetBytes stores val at offset as a length-prefixed record.
func (p *Page) SetBytes(offset int, val []byte) error {
	if offset+4+len(val) > len(p.data) {
		return fmt.Errorf("setting %d bytes at %d: %w", len(val), offset, ErrOutOfBounds)
	}
	binary.BigEndian.PutUint32(p.data[offset:], uint32(len(val)))
	copy(p.data[offset+4:], val)
	return nil
}

func (p *Page) GetBytes(offset int) ([]byte, error) {
	if offset+4 > len(p.data) {
		return nil, fmt.Errorf("getting bytes at %d: %w", offset, ErrOutOfBounds)
	}
	length := int(binary.BigEndian.Uint32(p.data[offset:]))
	if offset+4+length > len(p.data) {
		return nil, fmt.Errorf("getting %d bytes at %d: %w", length, offset, ErrOutOfBounds)
	}
	out := make([]byte, length)
	copy(out, p.data[offset+4:])
	return out, nil
}

func (p *Page) SetString(offset int, val string) error {
	return p.SetBytes(offset, []byte(val))
}

func (p *Page) GetString(offset int) (string, error) {
	b, err := p.GetBytes(offset)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// MaxLength returns the page space needed to store a string of
// strlen bytes with its length prefix.
func MaxLength(strlen int) int {
	return 4 + strlen
}
