package indexfs

import (
	"fmt"

	"github.com/inodefs/go-inodefs/device"
	"github.com/inodefs/go-inodefs/freemap"
)

// blockMap translates logical sector indexes within a file to physical
// sectors, extends files by allocating data and structural sectors on
// demand, and walks the pointer graph to release everything a file owns.
//
// The pointer graph has three regions, walked in order:
//
//	A: direct[0..119]                            logical sectors 0..119
//	B: indirect[0..3], 128 slots each            logical sectors 120..631
//	C: doubleIndirect -> 128 x 128 slots         logical sectors 632..17015
type blockMap struct {
	dev *device.Device
	fm  *freemap.FreeMap
}

var zeroSector [SectorSize]byte

// lookup returns the physical sector holding logical sector idx of the file.
// Callers only ask about indexes inside the logical length, so a zero slot
// anywhere on the path is corruption, not absence.
func (bm *blockMap) lookup(d *inodeDisk, idx int64) (device.SectorNum, error) {
	switch {
	case idx < 0 || idx >= maxFileSectors:
		return 0, fmt.Errorf("%w: logical sector %d", ErrOutOfRange, idx)

	case idx < directSectors:
		sno := d.direct[idx]
		if sno == 0 {
			return 0, fmt.Errorf("%w: direct slot %d is empty inside file length", ErrCorrupt, idx)
		}
		return sno, nil

	case idx < directSectors+indirectSectors:
		rel := idx - directSectors
		q, r := rel/ptrsPerSector, rel%ptrsPerSector
		if d.indirect[q] == 0 {
			return 0, fmt.Errorf("%w: indirect pointer %d is empty inside file length", ErrCorrupt, q)
		}
		ib, err := bm.readIndirect(d.indirect[q])
		if err != nil {
			return 0, err
		}
		if ib[r] == 0 {
			return 0, fmt.Errorf("%w: indirect slot %d/%d is empty inside file length", ErrCorrupt, q, r)
		}
		return ib[r], nil

	default:
		rel := idx - directSectors - indirectSectors
		q, r := rel/ptrsPerSector, rel%ptrsPerSector
		if d.doubleIndirect == 0 {
			return 0, fmt.Errorf("%w: double-indirect pointer is empty inside file length", ErrCorrupt)
		}
		l1, err := bm.readIndirect(d.doubleIndirect)
		if err != nil {
			return 0, err
		}
		if l1[q] == 0 {
			return 0, fmt.Errorf("%w: double-indirect slot %d is empty inside file length", ErrCorrupt, q)
		}
		l2, err := bm.readIndirect(l1[q])
		if err != nil {
			return 0, err
		}
		if l2[r] == 0 {
			return 0, fmt.Errorf("%w: double-indirect slot %d/%d is empty inside file length", ErrCorrupt, q, r)
		}
		return l2[r], nil
	}
}

// extend allocates sectors so the file can hold targetBytes bytes, reusing
// every slot that is already populated. Structural sectors (indirect and
// double-indirect) are allocated and zero-filled on demand, so their unvisited
// slots read back as the zero sentinel. It never shrinks and never touches
// d.length; publishing the new length is the caller's job after extend
// succeeds.
//
// On failure the sectors placed so far are NOT rolled back: slots already
// stored in d keep their new sectors, and a later successful extend reuses
// them. Slots placed inside an indirect sector are only persisted when that
// sector is written back, so a failure part way through one loses them.
// release walks only the slots under d.length, so removing and closing the
// inode does not return sectors placed past it.
func (bm *blockMap) extend(d *inodeDisk, targetBytes int64) error {
	if targetBytes < 0 {
		return fmt.Errorf("%w: negative length %d", ErrOutOfRange, targetBytes)
	}
	if targetBytes > MaxFileSize {
		return fmt.Errorf("%w: %d bytes, maximum is %d", ErrOutOfRange, targetBytes, MaxFileSize)
	}
	remaining := (targetBytes + SectorSize - 1) / SectorSize
	if remaining == 0 {
		return nil
	}

	// region A
	n := min(remaining, directSectors)
	for i := int64(0); i < n; i++ {
		if err := bm.ensureAllocated(&d.direct[i]); err != nil {
			return err
		}
	}
	remaining -= n
	if remaining == 0 {
		return nil
	}

	// region B
	for i := 0; i < numIndirect && remaining > 0; i++ {
		if err := bm.ensureAllocated(&d.indirect[i]); err != nil {
			return err
		}
		ib, err := bm.readIndirect(d.indirect[i])
		if err != nil {
			return err
		}
		n = min(remaining, ptrsPerSector)
		for j := int64(0); j < n; j++ {
			if err := bm.ensureAllocated(&ib[j]); err != nil {
				return err
			}
		}
		if err := bm.dev.WriteSector(d.indirect[i], ib.toBytes()); err != nil {
			return err
		}
		remaining -= n
	}
	if remaining == 0 {
		return nil
	}

	// region C
	if err := bm.ensureAllocated(&d.doubleIndirect); err != nil {
		return err
	}
	l1, err := bm.readIndirect(d.doubleIndirect)
	if err != nil {
		return err
	}
	for i := 0; i < ptrsPerSector && remaining > 0; i++ {
		if err := bm.ensureAllocated(&l1[i]); err != nil {
			return err
		}
		l2, err := bm.readIndirect(l1[i])
		if err != nil {
			return err
		}
		n = min(remaining, ptrsPerSector)
		for j := int64(0); j < n; j++ {
			if err := bm.ensureAllocated(&l2[j]); err != nil {
				return err
			}
		}
		if err := bm.dev.WriteSector(l1[i], l2.toBytes()); err != nil {
			return err
		}
		remaining -= n
	}
	// the level-1 sector picked up new slots above; persist it once
	return bm.dev.WriteSector(d.doubleIndirect, l1.toBytes())
}

// release walks every slot covered by the record's length and returns the
// sectors to the free map, structural sectors included. The home sector is
// not the map's to free. Zero slots are skipped rather than released; the
// zero sentinel must never reach the free map.
func (bm *blockMap) release(d *inodeDisk) error {
	remaining := d.sectorCount()
	if remaining == 0 {
		return nil
	}

	// region A
	n := min(remaining, directSectors)
	for i := int64(0); i < n; i++ {
		if err := bm.releaseSlot(d.direct[i]); err != nil {
			return err
		}
	}
	remaining -= n
	if remaining == 0 {
		return nil
	}

	// region B
	for i := 0; i < numIndirect && remaining > 0; i++ {
		if d.indirect[i] == 0 {
			return fmt.Errorf("%w: indirect pointer %d is empty inside file length", ErrCorrupt, i)
		}
		ib, err := bm.readIndirect(d.indirect[i])
		if err != nil {
			return err
		}
		n = min(remaining, ptrsPerSector)
		for j := int64(0); j < n; j++ {
			if err := bm.releaseSlot(ib[j]); err != nil {
				return err
			}
		}
		if err := bm.releaseSlot(d.indirect[i]); err != nil {
			return err
		}
		remaining -= n
	}
	if remaining == 0 {
		return nil
	}

	// region C
	if d.doubleIndirect == 0 {
		return fmt.Errorf("%w: double-indirect pointer is empty inside file length", ErrCorrupt)
	}
	l1, err := bm.readIndirect(d.doubleIndirect)
	if err != nil {
		return err
	}
	for i := 0; i < ptrsPerSector && remaining > 0; i++ {
		if l1[i] == 0 {
			return fmt.Errorf("%w: double-indirect slot %d is empty inside file length", ErrCorrupt, i)
		}
		l2, err := bm.readIndirect(l1[i])
		if err != nil {
			return err
		}
		n = min(remaining, ptrsPerSector)
		for j := int64(0); j < n; j++ {
			if err := bm.releaseSlot(l2[j]); err != nil {
				return err
			}
		}
		if err := bm.releaseSlot(l1[i]); err != nil {
			return err
		}
		remaining -= n
	}
	return bm.releaseSlot(d.doubleIndirect)
}

// ensureAllocated fills an empty pointer slot with a fresh zero-filled
// sector. A populated slot is left alone.
func (bm *blockMap) ensureAllocated(slot *device.SectorNum) error {
	if *slot != 0 {
		return nil
	}
	sno, err := bm.fm.Allocate()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOutOfSpace, err)
	}
	if err := bm.dev.WriteSector(sno, zeroSector[:]); err != nil {
		return err
	}
	*slot = sno
	return nil
}

// releaseSlot returns one sector to the free map, ignoring empty slots.
func (bm *blockMap) releaseSlot(sno device.SectorNum) error {
	if sno == 0 {
		return nil
	}
	return bm.fm.Release(sno)
}

// readIndirect reads and decodes one indirect sector.
func (bm *blockMap) readIndirect(sno device.SectorNum) (*indirectBlock, error) {
	var buf [SectorSize]byte
	if err := bm.dev.ReadSector(sno, buf[:]); err != nil {
		return nil, err
	}
	return indirectBlockFromBytes(buf[:]), nil
}
