package indexfs

import (
	"encoding/binary"
	"fmt"

	"github.com/inodefs/go-inodefs/device"
)

const (
	// SectorSize is the allocation and addressing unit of the filesystem.
	SectorSize = device.SectorSize

	numDirect     = 120
	numIndirect   = 4
	ptrsPerSector = SectorSize / 4

	directSectors   = numDirect
	indirectSectors = numIndirect * ptrsPerSector
	doubleSectors   = ptrsPerSector * ptrsPerSector

	// maxFileSectors is the ceiling of the block map:
	// 120 direct + 4*128 indirect + 128*128 double-indirect slots.
	maxFileSectors = directSectors + indirectSectors + doubleSectors

	// MaxFileSize is the largest byte length a single inode can address.
	MaxFileSize = maxFileSectors * SectorSize

	inodeMagic = 0x494e4f44

	// byte layout of the on-disk inode record
	directOffset   = 0
	indirectOffset = directOffset + 4*numDirect
	doubleOffset   = indirectOffset + 4*numIndirect
	lengthOffset   = doubleOffset + 4
	isDirOffset    = lengthOffset + 4
	magicOffset    = SectorSize - 4
)

// inodeDisk is the in-memory form of the on-disk inode record. The record is
// exactly one sector: 120 direct sector pointers, 4 single-indirect pointers,
// one double-indirect pointer, the byte length, a directory flag, padding,
// and a trailing magic number. All integers little-endian. A zero pointer
// slot means "not allocated".
type inodeDisk struct {
	direct         [numDirect]device.SectorNum
	indirect       [numIndirect]device.SectorNum
	doubleIndirect device.SectorNum
	length         int32
	isDir          bool
}

// inodeDiskFromBytes decodes a single sector into an inode record, rejecting
// a wrong magic number.
func inodeDiskFromBytes(b []byte) (*inodeDisk, error) {
	if len(b) != SectorSize {
		return nil, fmt.Errorf("inode record must be %d bytes, got %d", SectorSize, len(b))
	}
	magic := binary.LittleEndian.Uint32(b[magicOffset : magicOffset+4])
	if magic != inodeMagic {
		return nil, fmt.Errorf("%w: inode magic %#08x, expected %#08x", ErrCorrupt, magic, inodeMagic)
	}
	d := &inodeDisk{
		doubleIndirect: device.SectorNum(binary.LittleEndian.Uint32(b[doubleOffset : doubleOffset+4])),
		length:         int32(binary.LittleEndian.Uint32(b[lengthOffset : lengthOffset+4])),
		isDir:          b[isDirOffset] != 0,
	}
	for i := 0; i < numDirect; i++ {
		d.direct[i] = device.SectorNum(binary.LittleEndian.Uint32(b[directOffset+4*i : directOffset+4*i+4]))
	}
	for i := 0; i < numIndirect; i++ {
		d.indirect[i] = device.SectorNum(binary.LittleEndian.Uint32(b[indirectOffset+4*i : indirectOffset+4*i+4]))
	}
	if d.length < 0 {
		return nil, fmt.Errorf("%w: negative inode length %d", ErrCorrupt, d.length)
	}
	return d, nil
}

// toBytes encodes the record into a fresh zero-padded sector.
func (d *inodeDisk) toBytes() []byte {
	b := make([]byte, SectorSize)
	for i := 0; i < numDirect; i++ {
		binary.LittleEndian.PutUint32(b[directOffset+4*i:directOffset+4*i+4], uint32(d.direct[i]))
	}
	for i := 0; i < numIndirect; i++ {
		binary.LittleEndian.PutUint32(b[indirectOffset+4*i:indirectOffset+4*i+4], uint32(d.indirect[i]))
	}
	binary.LittleEndian.PutUint32(b[doubleOffset:doubleOffset+4], uint32(d.doubleIndirect))
	binary.LittleEndian.PutUint32(b[lengthOffset:lengthOffset+4], uint32(d.length))
	if d.isDir {
		b[isDirOffset] = 1
	}
	binary.LittleEndian.PutUint32(b[magicOffset:magicOffset+4], inodeMagic)
	return b
}

// sectorCount returns how many data sectors the record's length covers.
func (d *inodeDisk) sectorCount() int64 {
	return (int64(d.length) + SectorSize - 1) / SectorSize
}

// indirectBlock is the contents of an indirect sector: 128 sector numbers,
// no header.
type indirectBlock [ptrsPerSector]device.SectorNum

func indirectBlockFromBytes(b []byte) *indirectBlock {
	var ib indirectBlock
	for i := 0; i < ptrsPerSector; i++ {
		ib[i] = device.SectorNum(binary.LittleEndian.Uint32(b[4*i : 4*i+4]))
	}
	return &ib
}

func (ib *indirectBlock) toBytes() []byte {
	b := make([]byte, SectorSize)
	for i := 0; i < ptrsPerSector; i++ {
		binary.LittleEndian.PutUint32(b[4*i:4*i+4], uint32(ib[i]))
	}
	return b
}
