package indexfs

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"

	"github.com/inodefs/go-inodefs/device"
)

const (
	sbMagic   = 0x58444e49 // "INDX"
	sbVersion = 1

	sbMagicOffset   = 0
	sbVersionOffset = 4
	sbSectorsOffset = 8
	sbFmStartOffset = 12
	sbFmCountOffset = 16
	sbUUIDOffset    = 20
	sbLabelOffset   = 36
	sbLabelSize     = 32
)

// superblock is the volume header stored in sector 0: identity of the volume
// and the location of the free map. Everything else on the volume is reached
// through inode home sectors handed out by the free map.
type superblock struct {
	sectorCount    uint32
	freemapStart   device.SectorNum
	freemapSectors uint32
	uuid           uuid.UUID
	label          string
}

func superblockFromBytes(b []byte) (*superblock, error) {
	if len(b) != SectorSize {
		return nil, fmt.Errorf("superblock must be %d bytes, got %d", SectorSize, len(b))
	}
	magic := binary.LittleEndian.Uint32(b[sbMagicOffset : sbMagicOffset+4])
	if magic != sbMagic {
		return nil, fmt.Errorf("%w: superblock magic %#08x, expected %#08x", ErrCorrupt, magic, sbMagic)
	}
	version := binary.LittleEndian.Uint32(b[sbVersionOffset : sbVersionOffset+4])
	if version != sbVersion {
		return nil, fmt.Errorf("%w: unknown superblock version %d", ErrCorrupt, version)
	}
	sb := &superblock{
		sectorCount:    binary.LittleEndian.Uint32(b[sbSectorsOffset : sbSectorsOffset+4]),
		freemapStart:   device.SectorNum(binary.LittleEndian.Uint32(b[sbFmStartOffset : sbFmStartOffset+4])),
		freemapSectors: binary.LittleEndian.Uint32(b[sbFmCountOffset : sbFmCountOffset+4]),
	}
	copy(sb.uuid[:], b[sbUUIDOffset:sbUUIDOffset+16])
	label := b[sbLabelOffset : sbLabelOffset+sbLabelSize]
	if i := bytes.IndexByte(label, 0); i >= 0 {
		label = label[:i]
	}
	sb.label = string(label)
	return sb, nil
}

func (sb *superblock) toBytes() []byte {
	b := make([]byte, SectorSize)
	binary.LittleEndian.PutUint32(b[sbMagicOffset:sbMagicOffset+4], sbMagic)
	binary.LittleEndian.PutUint32(b[sbVersionOffset:sbVersionOffset+4], sbVersion)
	binary.LittleEndian.PutUint32(b[sbSectorsOffset:sbSectorsOffset+4], sb.sectorCount)
	binary.LittleEndian.PutUint32(b[sbFmStartOffset:sbFmStartOffset+4], uint32(sb.freemapStart))
	binary.LittleEndian.PutUint32(b[sbFmCountOffset:sbFmCountOffset+4], sb.freemapSectors)
	copy(b[sbUUIDOffset:sbUUIDOffset+16], sb.uuid[:])
	copy(b[sbLabelOffset:sbLabelOffset+sbLabelSize], sb.label)
	return b
}
