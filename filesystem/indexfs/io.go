package indexfs

import (
	"fmt"
)

// ReadAt reads up to len(p) bytes starting at byte offset off, returning the
// number of bytes read. Reaching end of file is a short read with a nil
// error, never io.EOF; handles layered on top translate. The inode lock is
// held for the whole operation.
func (in *Inode) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative read offset %d", off)
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	var scratch [SectorSize]byte
	read := 0
	size := len(p)

	for size > 0 {
		idx := off / SectorSize
		sectorOfs := off % SectorSize

		// bytes left in the file, bytes left in the sector, lesser of the two
		left := int64(in.disk.length) - off
		sectorLeft := int64(SectorSize - sectorOfs)
		chunk := int64(size)
		if left < chunk {
			chunk = left
		}
		if sectorLeft < chunk {
			chunk = sectorLeft
		}
		if chunk <= 0 {
			break
		}

		sno, err := in.fs.bm.lookup(in.disk, idx)
		if err != nil {
			return read, err
		}

		if sectorOfs == 0 && chunk == SectorSize {
			// full sector straight into the caller's buffer
			if err := in.fs.dev.ReadSector(sno, p[read:read+SectorSize]); err != nil {
				return read, err
			}
		} else {
			if err := in.fs.dev.ReadSector(sno, scratch[:]); err != nil {
				return read, err
			}
			copy(p[read:], scratch[sectorOfs:sectorOfs+chunk])
		}

		size -= int(chunk)
		off += chunk
		read += int(chunk)
	}

	return read, nil
}

// WriteAt writes len(p) bytes at byte offset off, extending the file when the
// write reaches past end of file. All bytes between the old length and off
// are materialized as zeros. Returns the number of bytes written; a short
// count comes with ErrOutOfSpace or ErrOutOfRange when growth failed, and
// (0, ErrWriteDenied) while the deny-write interlock is held.
//
// The new length is published, and the inode record persisted, only after
// allocation for the full remaining range succeeded, so a concurrent reader
// never sees a length whose sectors are unbacked. The inode lock is held for
// the whole operation.
func (in *Inode) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 {
		return 0, fmt.Errorf("negative write offset %d", off)
	}

	in.mu.Lock()
	defer in.mu.Unlock()

	if in.denyWriteCount > 0 {
		return 0, ErrWriteDenied
	}

	var scratch [SectorSize]byte
	written := 0
	size := len(p)

	for size > 0 {
		idx := off / SectorSize
		sectorOfs := off % SectorSize

		left := int64(in.disk.length) - off
		sectorLeft := int64(SectorSize - sectorOfs)
		chunk := int64(size)
		if left < chunk {
			chunk = left
		}
		if sectorLeft < chunk {
			chunk = sectorLeft
		}

		if chunk <= 0 {
			// past end of file: grow to cover the rest of the write, then
			// publish the new length and persist the record before moving on
			if err := in.fs.bm.extend(in.disk, off+int64(size)); err != nil {
				return written, err
			}
			in.disk.length = int32(off + int64(size))
			if err := in.fs.dev.WriteSector(in.home, in.disk.toBytes()); err != nil {
				return written, err
			}
			continue
		}

		sno, err := in.fs.bm.lookup(in.disk, idx)
		if err != nil {
			return written, err
		}

		if sectorOfs == 0 && chunk == SectorSize {
			// full sector straight from the caller's buffer
			if err := in.fs.dev.WriteSector(sno, p[written:written+SectorSize]); err != nil {
				return written, err
			}
		} else {
			// if the sector holds data before or after the chunk, read it in
			// first; otherwise start from all zeros
			if sectorOfs > 0 || chunk < sectorLeft {
				if err := in.fs.dev.ReadSector(sno, scratch[:]); err != nil {
					return written, err
				}
			} else {
				scratch = [SectorSize]byte{}
			}
			copy(scratch[sectorOfs:], p[written:written+int(chunk)])
			if err := in.fs.dev.WriteSector(sno, scratch[:]); err != nil {
				return written, err
			}
		}

		size -= int(chunk)
		off += chunk
		written += int(chunk)
	}

	return written, nil
}
