package indexfs

import "errors"

var (
	// ErrCorrupt indicates an on-disk structure that fails validation: a bad
	// magic number, or a zero pointer slot inside the logical length of a file.
	ErrCorrupt = errors.New("corrupt filesystem structure")
	// ErrOutOfSpace indicates the free map ran out of sectors during an
	// allocation. Sectors placed before the failure are not rolled back.
	ErrOutOfSpace = errors.New("out of disk space")
	// ErrOutOfRange indicates a request beyond the maximum file size the
	// block map can address.
	ErrOutOfRange = errors.New("request exceeds maximum file size")
	// ErrWriteDenied indicates a write was attempted while at least one
	// opener holds the inode deny-write interlock.
	ErrWriteDenied = errors.New("writes to inode are denied")
)
