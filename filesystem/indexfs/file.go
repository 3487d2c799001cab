package indexfs

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/inodefs/go-inodefs/filesystem"
)

// File is a seekable handle over one open inode. Handles are not safe for
// concurrent use; the inode underneath is.
type File struct {
	in          *Inode
	offset      int64
	isReadWrite bool
}

var _ filesystem.File = (*File)(nil)

// Read reads up to len(b) bytes from the current offset, advancing it. At end
// of file it returns 0, io.EOF.
func (fl *File) Read(b []byte) (int, error) {
	if fl == nil || fl.in == nil {
		return 0, os.ErrClosed
	}
	n, err := fl.in.ReadAt(b, fl.offset)
	fl.offset += int64(n)
	if err != nil {
		return n, err
	}
	if n < len(b) && fl.offset >= fl.in.Length() {
		return n, io.EOF
	}
	return n, nil
}

// Write writes len(b) bytes at the current offset, growing the file as
// needed, and advances the offset. A short write returns a non-nil error.
func (fl *File) Write(b []byte) (int, error) {
	if fl == nil || fl.in == nil {
		return 0, os.ErrClosed
	}
	if !fl.isReadWrite {
		return 0, filesystem.ErrReadonlyFilesystem
	}
	n, err := fl.in.WriteAt(b, fl.offset)
	fl.offset += int64(n)
	if err == nil && n < len(b) {
		err = errors.New("short write")
	}
	return n, err
}

// Seek sets the offset for the next Read or Write.
func (fl *File) Seek(offset int64, whence int) (int64, error) {
	if fl == nil || fl.in == nil {
		return 0, os.ErrClosed
	}
	newOffset := int64(0)
	switch whence {
	case io.SeekStart:
		newOffset = offset
	case io.SeekEnd:
		newOffset = fl.in.Length() + offset
	case io.SeekCurrent:
		newOffset = fl.offset + offset
	}
	if newOffset < 0 {
		return fl.offset, fmt.Errorf("cannot set offset %d before start of file", offset)
	}
	fl.offset = newOffset
	return fl.offset, nil
}

// Close drops the handle's reference on the inode.
func (fl *File) Close() error {
	if fl == nil || fl.in == nil {
		return nil
	}
	err := fl.in.Close()
	fl.in = nil
	return err
}
