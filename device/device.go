// Package device presents a backend.Storage as a flat array of fixed-size
// sectors. All volume structures above this layer address storage by sector
// number, never by byte offset.
package device

import (
	"errors"
	"fmt"

	"github.com/inodefs/go-inodefs/backend"
)

// SectorSize is the fixed size of every sector on the device.
const SectorSize = 512

// SectorNum is the number of a sector on the device. Sector 0 holds the
// superblock, so a zero value doubles as the "not allocated" sentinel in
// pointer slots.
type SectorNum uint32

var (
	ErrOutOfBounds = errors.New("sector number beyond end of device")
	ErrBadBuffer   = errors.New("buffer must be exactly one sector")
)

// Device addresses a window of a backend.Storage as sectors. start is the
// byte offset of sector 0 within the backend, normally 0 but nonzero when the
// volume lives inside a partition.
type Device struct {
	backend backend.Storage
	start   int64
	sectors uint32
}

func New(b backend.Storage, start int64, sectors uint32) *Device {
	return &Device{
		backend: b,
		start:   start,
		sectors: sectors,
	}
}

// SectorCount returns the number of sectors the device exposes.
func (d *Device) SectorCount() uint32 {
	return d.sectors
}

// ReadSector reads sector n into buf, which must be exactly SectorSize bytes.
func (d *Device) ReadSector(n SectorNum, buf []byte) error {
	if len(buf) != SectorSize {
		return fmt.Errorf("%w: got %d bytes", ErrBadBuffer, len(buf))
	}
	if uint32(n) >= d.sectors {
		return fmt.Errorf("%w: sector %d of %d", ErrOutOfBounds, n, d.sectors)
	}
	read, err := d.backend.ReadAt(buf, d.start+int64(n)*SectorSize)
	if err != nil {
		return fmt.Errorf("could not read sector %d: %w", n, err)
	}
	if read != SectorSize {
		return fmt.Errorf("short read of sector %d: %d bytes", n, read)
	}
	return nil
}

// WriteSector writes buf, which must be exactly SectorSize bytes, to sector n.
func (d *Device) WriteSector(n SectorNum, buf []byte) error {
	if len(buf) != SectorSize {
		return fmt.Errorf("%w: got %d bytes", ErrBadBuffer, len(buf))
	}
	if uint32(n) >= d.sectors {
		return fmt.Errorf("%w: sector %d of %d", ErrOutOfBounds, n, d.sectors)
	}
	w, err := d.backend.Writable()
	if err != nil {
		return err
	}
	written, err := w.WriteAt(buf, d.start+int64(n)*SectorSize)
	if err != nil {
		return fmt.Errorf("could not write sector %d: %w", n, err)
	}
	if written != SectorSize {
		return fmt.Errorf("short write of sector %d: %d bytes", n, written)
	}
	return nil
}
