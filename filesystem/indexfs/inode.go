package indexfs

import (
	"fmt"

	"github.com/jacobsa/syncutil"

	"github.com/inodefs/go-inodefs/device"
)

// Inode is the in-memory state of one open file. All openers of the same
// home sector share one Inode; the filesystem's inode table guarantees it.
//
// The mutex guards every mutable field and serializes whole byte-range
// operations, so a reader never observes a length for which some sector is
// still unallocated. Lock ordering is table lock before inode lock, and no
// other lock is ever held across device or free-map calls.
type Inode struct {
	fs   *FileSystem
	home device.SectorNum

	mu syncutil.InvariantMutex

	// GUARDED_BY(mu)
	openCount int
	// GUARDED_BY(mu)
	removed bool
	// GUARDED_BY(mu)
	denyWriteCount int
	// GUARDED_BY(mu)
	disk *inodeDisk
}

func newInode(fs *FileSystem, home device.SectorNum, disk *inodeDisk) *Inode {
	in := &Inode{
		fs:        fs,
		home:      home,
		openCount: 1,
		disk:      disk,
	}
	in.mu = syncutil.NewInvariantMutex(in.checkInvariants)
	return in
}

func (in *Inode) checkInvariants() {
	if in.denyWriteCount < 0 || in.denyWriteCount > in.openCount {
		panic(fmt.Sprintf("inode %d: deny-write count %d outside [0, %d]", in.home, in.denyWriteCount, in.openCount))
	}
	if in.disk.length < 0 {
		panic(fmt.Sprintf("inode %d: negative length %d", in.home, in.disk.length))
	}
}

// CreateInode writes a fresh inode record to the given home sector and
// allocates enough sectors to back length bytes. The home sector itself is
// the caller's: it was handed out by AllocateSector, and on error the caller
// decides whether to release it.
func (fs *FileSystem) CreateInode(home device.SectorNum, length int64, isDir bool) error {
	if length < 0 || length > MaxFileSize {
		return fmt.Errorf("%w: inode length %d", ErrOutOfRange, length)
	}
	d := &inodeDisk{
		length: int32(length),
		isDir:  isDir,
	}
	if err := fs.bm.extend(d, length); err != nil {
		return fmt.Errorf("could not allocate %d bytes for inode %d: %w", length, home, err)
	}
	if err := fs.dev.WriteSector(home, d.toBytes()); err != nil {
		return fmt.Errorf("could not write inode record to sector %d: %w", home, err)
	}
	return nil
}

// OpenInode returns the shared in-memory inode for the given home sector,
// reading and decoding the record on first open. Every OpenInode call must be
// balanced by a Close.
func (fs *FileSystem) OpenInode(home device.SectorNum) (*Inode, error) {
	// fast path: already open
	fs.tableMu.Lock()
	if in, ok := fs.table[home]; ok {
		in.mu.Lock()
		in.openCount++
		in.mu.Unlock()
		fs.tableMu.Unlock()
		return in, nil
	}
	fs.tableMu.Unlock()

	// cold open: read the record with no locks held, then install it. Another
	// opener may have won the race meanwhile, in which case our copy is
	// discarded and the winner is shared.
	var buf [SectorSize]byte
	if err := fs.dev.ReadSector(home, buf[:]); err != nil {
		return nil, fmt.Errorf("could not read inode sector %d: %w", home, err)
	}
	d, err := inodeDiskFromBytes(buf[:])
	if err != nil {
		return nil, fmt.Errorf("inode sector %d: %w", home, err)
	}

	fs.tableMu.Lock()
	defer fs.tableMu.Unlock()
	if in, ok := fs.table[home]; ok {
		in.mu.Lock()
		in.openCount++
		in.mu.Unlock()
		return in, nil
	}
	in := newInode(fs, home, d)
	fs.table[home] = in
	return in, nil
}

// Reopen adds another reference to an already-open inode and returns it.
func (in *Inode) Reopen() *Inode {
	in.mu.Lock()
	in.openCount++
	in.mu.Unlock()
	return in
}

// Close drops one reference. The last close removes the inode from the open
// table, and if the inode was marked removed, releases every sector it owns,
// home sector included.
func (in *Inode) Close() error {
	fs := in.fs

	fs.tableMu.Lock()
	in.mu.Lock()
	in.openCount--
	last := in.openCount == 0
	removed := in.removed
	if last {
		delete(fs.table, in.home)
	}
	in.mu.Unlock()
	fs.tableMu.Unlock()

	if !last || !removed {
		return nil
	}

	// no longer reachable through the table; free its storage without locks
	if err := fs.bm.release(in.disk); err != nil {
		return fmt.Errorf("could not release storage of inode %d: %w", in.home, err)
	}
	if err := fs.fm.Release(in.home); err != nil {
		return fmt.Errorf("could not release home sector %d: %w", in.home, err)
	}
	return nil
}

// Remove marks the inode for deletion. Storage stays intact, and open handles
// keep working, until the last opener closes.
func (in *Inode) Remove() {
	in.mu.Lock()
	in.removed = true
	in.mu.Unlock()
}

// DenyWrite blocks writes through any handle until a matching AllowWrite.
// May be called at most once per opener.
func (in *Inode) DenyWrite() {
	in.mu.Lock()
	in.denyWriteCount++
	in.mu.Unlock()
}

// AllowWrite re-enables writes, undoing one DenyWrite. Each opener that
// called DenyWrite must call it before closing.
func (in *Inode) AllowWrite() {
	in.mu.Lock()
	in.denyWriteCount--
	in.mu.Unlock()
}

// Length returns the current byte length of the inode's data.
func (in *Inode) Length() int64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return int64(in.disk.length)
}

// Inumber returns the home sector, which identifies the inode on disk.
func (in *Inode) Inumber() device.SectorNum {
	return in.home
}

// IsDir reports whether the inode was created as a directory.
func (in *Inode) IsDir() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.disk.isDir
}

// IsRemoved reports whether the inode has been marked for deletion.
func (in *Inode) IsRemoved() bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.removed
}

// OpenCount returns the current number of openers. Test and introspection
// surface; the count can change the moment the lock is dropped.
func (in *Inode) OpenCount() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.openCount
}
