// Package indexfs implements an indexed-allocation filesystem on a sector
// device. Every file is an inode: a one-sector record of direct, indirect
// and double-indirect pointers to data sectors, found by its home sector
// number. There is no pathname layer; callers hold inode numbers, and the
// single is-directory flag is all the directory support the format carries.
package indexfs

import (
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/inodefs/go-inodefs/backend"
	"github.com/inodefs/go-inodefs/device"
	"github.com/inodefs/go-inodefs/filesystem"
	"github.com/inodefs/go-inodefs/freemap"
)

// Params control filesystem creation
type Params struct {
	// UUID for the volume; one is generated when nil
	UUID *uuid.UUID
	// Label for the volume, at most 32 bytes
	Label string
}

// FileSystem is a single indexfs volume on a backend
type FileSystem struct {
	backend backend.Storage
	dev     *device.Device
	fm      *freemap.FreeMap
	bm      *blockMap
	sb      *superblock
	start   int64

	tableMu sync.Mutex
	// GUARDED_BY(tableMu)
	table map[device.SectorNum]*Inode
}

// interface guard
var _ filesystem.FileSystem = (*FileSystem)(nil)

// Create formats size bytes of the backend, beginning at byte offset start,
// as an empty indexfs volume: a superblock in sector 0 followed by the free
// map, with every other sector free.
func Create(b backend.Storage, size, start int64, p *Params) (*FileSystem, error) {
	if p == nil {
		p = &Params{}
	}
	if size <= 0 {
		return nil, fmt.Errorf("requested size %d must be positive", size)
	}
	if start < 0 {
		return nil, fmt.Errorf("requested start %d must not be negative", start)
	}
	if len(p.Label) > sbLabelSize {
		return nil, fmt.Errorf("label %q longer than %d bytes", p.Label, sbLabelSize)
	}

	sectors := uint32(size / SectorSize)
	fmSectors := freemap.SectorsFor(sectors)
	// superblock + free map + room for at least one inode and one data sector
	if sectors < 1+fmSectors+2 {
		return nil, fmt.Errorf("%d sectors is too small for an indexfs volume", sectors)
	}

	fsuuid := p.UUID
	if fsuuid == nil {
		fsuuid2, _ := uuid.NewRandom()
		fsuuid = &fsuuid2
	}

	dev := device.New(b, start, sectors)
	fm := freemap.New(dev, 1, sectors)
	for i := uint32(0); i < 1+fmSectors; i++ {
		if err := fm.Reserve(device.SectorNum(i)); err != nil {
			return nil, err
		}
	}
	if err := fm.Flush(); err != nil {
		return nil, err
	}

	sb := &superblock{
		sectorCount:    sectors,
		freemapStart:   1,
		freemapSectors: fmSectors,
		uuid:           *fsuuid,
		label:          p.Label,
	}
	if err := dev.WriteSector(0, sb.toBytes()); err != nil {
		return nil, fmt.Errorf("could not write superblock: %w", err)
	}

	log.WithFields(log.Fields{
		"sectors": sectors,
		"freemap": fmSectors,
		"uuid":    fsuuid.String(),
	}).Debug("created indexfs volume")

	return &FileSystem{
		backend: b,
		dev:     dev,
		fm:      fm,
		bm:      &blockMap{dev: dev, fm: fm},
		sb:      sb,
		start:   start,
		table:   map[device.SectorNum]*Inode{},
	}, nil
}

// Read mounts an existing indexfs volume of size bytes at byte offset start
// of the backend.
func Read(b backend.Storage, size, start int64) (*FileSystem, error) {
	if size <= 0 {
		return nil, fmt.Errorf("requested size %d must be positive", size)
	}
	if start < 0 {
		return nil, fmt.Errorf("requested start %d must not be negative", start)
	}
	sectors := uint32(size / SectorSize)
	if sectors < 1 {
		return nil, fmt.Errorf("%d bytes is smaller than one sector", size)
	}

	dev := device.New(b, start, sectors)
	var buf [SectorSize]byte
	if err := dev.ReadSector(0, buf[:]); err != nil {
		return nil, fmt.Errorf("could not read superblock: %w", err)
	}
	sb, err := superblockFromBytes(buf[:])
	if err != nil {
		return nil, err
	}
	if sb.sectorCount > sectors {
		return nil, fmt.Errorf("%w: superblock claims %d sectors, backend holds %d", ErrCorrupt, sb.sectorCount, sectors)
	}
	// trust the superblock over the backend for the addressable window
	dev = device.New(b, start, sb.sectorCount)

	fm, err := freemap.Load(dev, sb.freemapStart, sb.sectorCount)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{
		"sectors": sb.sectorCount,
		"label":   sb.label,
		"uuid":    sb.uuid.String(),
	}).Debug("mounted indexfs volume")

	return &FileSystem{
		backend: b,
		dev:     dev,
		fm:      fm,
		bm:      &blockMap{dev: dev, fm: fm},
		sb:      sb,
		start:   start,
		table:   map[device.SectorNum]*Inode{},
	}, nil
}

// AllocateSector hands out one free sector, typically to become the home
// sector of a new inode. It belongs to the caller until released.
func (fs *FileSystem) AllocateSector() (device.SectorNum, error) {
	sno, err := fs.fm.Allocate()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrOutOfSpace, err)
	}
	return sno, nil
}

// ReleaseSector returns a caller-owned sector to the free map.
func (fs *FileSystem) ReleaseSector(n device.SectorNum) error {
	return fs.fm.Release(n)
}

// OpenFile returns a seekable handle over the inode at the given home
// sector. Pass os.O_RDWR to allow writes through the handle.
func (fs *FileSystem) OpenFile(home device.SectorNum, flag int) (filesystem.File, error) {
	in, err := fs.OpenInode(home)
	if err != nil {
		return nil, err
	}
	f := &File{
		in:          in,
		isReadWrite: flag&os.O_RDWR != 0,
	}
	if flag&os.O_APPEND != 0 {
		f.offset = in.Length()
	}
	return f, nil
}

// Flush writes any dirty volume metadata back to the device.
func (fs *FileSystem) Flush() error {
	return fs.fm.Flush()
}

// Close flushes metadata and closes the backend. Open inodes become invalid.
func (fs *FileSystem) Close() error {
	if err := fs.Flush(); err != nil {
		return err
	}
	return fs.backend.Close()
}

// Type returns the type of filesystem
func (fs *FileSystem) Type() filesystem.Type {
	return filesystem.TypeIndexfs
}

// Label returns the volume label, or "" if none
func (fs *FileSystem) Label() string {
	return fs.sb.label
}

// SetLabel changes the volume label and persists the superblock.
func (fs *FileSystem) SetLabel(label string) error {
	if len(label) > sbLabelSize {
		return fmt.Errorf("label %q longer than %d bytes", label, sbLabelSize)
	}
	fs.sb.label = label
	if err := fs.dev.WriteSector(0, fs.sb.toBytes()); err != nil {
		return fmt.Errorf("could not write superblock: %w", err)
	}
	return nil
}

// UUID returns the volume UUID.
func (fs *FileSystem) UUID() uuid.UUID {
	return fs.sb.uuid
}

// SectorCount returns the number of sectors the volume addresses.
func (fs *FileSystem) SectorCount() uint32 {
	return fs.sb.sectorCount
}

// FreeSectorCount returns the number of sectors currently unallocated.
func (fs *FileSystem) FreeSectorCount() uint32 {
	return fs.fm.FreeCount()
}
