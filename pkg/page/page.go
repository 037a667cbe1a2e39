// Package page implements the fixed-size slotted page used by every column
// chain in the engine: 4096 bytes holding up to 512 big-endian 64-bit signed
// integer slots.
package page

import (
	"encoding/binary"
	"fmt"
)

const (
	// Size is the fixed size of a page's raw slot payload, in bytes. This is
	// the 4096-byte buffer spec.md describes; it holds exactly MaxSlots
	// slots and nothing else.
	Size = 4096
	// slotWidth is the width of one slot: a big-endian int64.
	slotWidth = 8
	// MaxSlots is the maximum number of slots a page can hold.
	MaxSlots = Size / slotWidth
	// headerSize is the width of the on-disk slot-count header the pager
	// writes ahead of a page's raw Size-byte payload. It is pager-level
	// framing, not part of the page's own 4096-byte data area.
	headerSize = 2
)

// Page is a fixed-capacity buffer of up to MaxSlots 64-bit signed integers.
// A Page never allocates beyond its fixed backing array: the raw slot data
// is always exactly Size bytes.
type Page struct {
	count uint16 // number of populated slots, 0..MaxSlots
	data  [Size]byte
}

// New returns an empty page.
func New() *Page {
	return &Page{}
}

// Count returns the number of populated slots.
func (p *Page) Count() int {
	return int(p.count)
}

// HasCapacity reports whether another value can be appended.
func (p *Page) HasCapacity() bool {
	return int(p.count) < MaxSlots
}

// Write stores value at index. If index is negative, the value is appended
// at the current slot count (requiring capacity); otherwise the existing
// slot at index is overwritten (requiring index < Count()). Write never
// mutates the page on failure.
func (p *Page) Write(value int64, index int) (bool, error) {
	if index < 0 {
		if !p.HasCapacity() {
			return false, nil
		}
		p.putSlot(int(p.count), value)
		p.count++
		return true, nil
	}
	if index >= int(p.count) {
		return false, nil
	}
	p.putSlot(index, value)
	return true, nil
}

// Append writes value at the next free slot. Equivalent to Write(value, -1).
func (p *Page) Append(value int64) (bool, error) {
	return p.Write(value, -1)
}

// Read returns the value at index and whether it was present.
func (p *Page) Read(index int) (int64, bool) {
	if index < 0 || index >= int(p.count) {
		return 0, false
	}
	return p.getSlot(index), true
}

func (p *Page) putSlot(index int, value int64) {
	off := index * slotWidth
	binary.BigEndian.PutUint64(p.data[off:off+slotWidth], uint64(value))
}

func (p *Page) getSlot(index int) int64 {
	off := index * slotWidth
	return int64(binary.BigEndian.Uint64(p.data[off : off+slotWidth]))
}

// Serialize renders the page to its on-disk form: a 2-byte big-endian slot
// count header followed by the raw Size-byte slot payload.
func (p *Page) Serialize() []byte {
	buf := make([]byte, headerSize+Size)
	binary.BigEndian.PutUint16(buf[0:headerSize], p.count)
	copy(buf[headerSize:], p.data[:])
	return buf
}

// Deserialize reconstructs a page from its Serialize form.
func Deserialize(buf []byte) (*Page, error) {
	if len(buf) != headerSize+Size {
		return nil, fmt.Errorf("page: invalid buffer size %d, expected %d", len(buf), headerSize+Size)
	}
	p := New()
	p.count = binary.BigEndian.Uint16(buf[0:headerSize])
	if int(p.count) > MaxSlots {
		return nil, fmt.Errorf("page: corrupt slot count %d exceeds max %d", p.count, MaxSlots)
	}
	copy(p.data[:], buf[headerSize:])
	return p, nil
}
