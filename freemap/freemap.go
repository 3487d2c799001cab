// Package freemap implements the persistent sector allocator for a volume.
// Allocation state is one bit per sector, stored in a reserved run of sectors
// on the device itself; bit set means allocated.
package freemap

import (
	"errors"
	"fmt"
	"sync"

	"github.com/inodefs/go-inodefs/device"
)

var (
	ErrNoSpace      = errors.New("no free sectors")
	ErrNotAllocated = errors.New("sector is not allocated")
)

// FreeMap tracks which sectors of a device are in use. All methods are safe
// for concurrent use; the map carries its own lock.
type FreeMap struct {
	mu    sync.Mutex
	dev   *device.Device
	start device.SectorNum
	nbits uint32
	bits  []byte
	dirty bool
}

// SectorsFor returns how many sectors a bitmap covering nbits sectors needs.
func SectorsFor(nbits uint32) uint32 {
	nbytes := (nbits + 7) / 8
	return (nbytes + device.SectorSize - 1) / device.SectorSize
}

// New creates an all-free map covering nbits sectors, persisted starting at
// the given sector. The caller reserves the metadata region itself, including
// the sectors the map occupies; nothing is written until Flush.
func New(dev *device.Device, start device.SectorNum, nbits uint32) *FreeMap {
	return &FreeMap{
		dev:   dev,
		start: start,
		nbits: nbits,
		bits:  make([]byte, SectorsFor(nbits)*device.SectorSize),
		dirty: true,
	}
}

// Load reads a previously persisted map back from the device.
func Load(dev *device.Device, start device.SectorNum, nbits uint32) (*FreeMap, error) {
	nsectors := SectorsFor(nbits)
	bits := make([]byte, nsectors*device.SectorSize)
	for i := uint32(0); i < nsectors; i++ {
		sno := start + device.SectorNum(i)
		if err := dev.ReadSector(sno, bits[i*device.SectorSize:(i+1)*device.SectorSize]); err != nil {
			return nil, fmt.Errorf("could not read free map sector %d: %w", sno, err)
		}
	}
	return &FreeMap{
		dev:   dev,
		start: start,
		nbits: nbits,
		bits:  bits,
	}, nil
}

// Reserve marks sector n allocated without going through the scan. Used when
// formatting to claim the metadata region, and harmless on an already-set bit.
func (m *FreeMap) Reserve(n device.SectorNum) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uint32(n) >= m.nbits {
		return fmt.Errorf("sector %d is not in %d sector map", n, m.nbits)
	}
	m.bits[n/8] |= byte(1) << (n % 8)
	m.dirty = true
	return nil
}

// Allocate returns the lowest-numbered free sector and marks it allocated.
// It never returns sector 0: the superblock sector is reserved at format
// time, and the scan starts past it regardless.
func (m *FreeMap) Allocate() (device.SectorNum, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := m.firstFree(1)
	if n < 0 {
		return 0, ErrNoSpace
	}
	m.bits[n/8] |= byte(1) << (n % 8)
	m.dirty = true
	return device.SectorNum(n), nil
}

// Release marks sector n free again. Releasing sector 0 or a sector that is
// not currently allocated is an error; it catches double frees.
func (m *FreeMap) Release(n device.SectorNum) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if n == 0 || uint32(n) >= m.nbits {
		return fmt.Errorf("cannot release sector %d of %d sector map", n, m.nbits)
	}
	mask := byte(1) << (n % 8)
	if m.bits[n/8]&mask == 0 {
		return fmt.Errorf("%w: sector %d", ErrNotAllocated, n)
	}
	m.bits[n/8] &^= mask
	m.dirty = true
	return nil
}

// IsAllocated reports whether sector n is currently marked allocated.
func (m *FreeMap) IsAllocated(n device.SectorNum) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if uint32(n) >= m.nbits {
		return false
	}
	return m.bits[n/8]&(byte(1)<<(n%8)) != 0
}

// FreeCount returns the number of sectors currently free.
func (m *FreeMap) FreeCount() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var used uint32
	for i := uint32(0); i < m.nbits; i++ {
		if m.bits[i/8]&(byte(1)<<(i%8)) != 0 {
			used++
		}
	}
	return m.nbits - used
}

// Flush writes the bitmap back to its reserved sectors if it has changed
// since the last flush.
func (m *FreeMap) Flush() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dirty {
		return nil
	}
	nsectors := SectorsFor(m.nbits)
	for i := uint32(0); i < nsectors; i++ {
		sno := m.start + device.SectorNum(i)
		if err := m.dev.WriteSector(sno, m.bits[i*device.SectorSize:(i+1)*device.SectorSize]); err != nil {
			return fmt.Errorf("could not write free map sector %d: %w", sno, err)
		}
	}
	m.dirty = false
	return nil
}

// firstFree scans for the lowest clear bit at or after start, or -1 if none.
// Bits past nbits pad the last byte and are never offered.
func (m *FreeMap) firstFree(start int) int {
	if start < 0 {
		start = 0
	}
	if uint32(start) >= m.nbits {
		return -1
	}
	byteIdx := start / 8
	bitStart := uint8(start % 8)

	// first partial byte
	b := m.bits[byteIdx]
	if b != 0xff {
		for j := bitStart; j < 8; j++ {
			if b&(byte(1)<<j) == 0 && uint32(byteIdx*8+int(j)) < m.nbits {
				return byteIdx*8 + int(j)
			}
		}
	}

	// remaining full bytes
	for i := byteIdx + 1; i < len(m.bits); i++ {
		b = m.bits[i]
		if b == 0xff {
			continue
		}
		for j := uint8(0); j < 8; j++ {
			if b&(byte(1)<<j) == 0 && uint32(i*8+int(j)) < m.nbits {
				return i*8 + int(j)
			}
		}
	}

	return -1
}
