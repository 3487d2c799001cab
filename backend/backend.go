// Package backend is the storage a volume lives on. The contract is
// deliberately small: positioned reads, a write handle that a read-only
// backend refuses to hand out, and the byte size of the storage. The device
// layer builds its sector addressing on nothing else.
package backend

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrReadOnly is returned by Writable on storage opened read-only.
var ErrReadOnly = errors.New("storage opened read-only")

// Storage is an open image file or raw device backing a volume.
type Storage interface {
	io.ReaderAt
	io.Closer
	// Size reports how many bytes the storage offers.
	Size() (int64, error)
	// Writable returns the handle for positioned writes, or ErrReadOnly.
	Writable() (io.WriterAt, error)
}

// hostFile backs a volume with a file on the host: a disk image or a raw
// block device node.
type hostFile struct {
	f        *os.File
	readOnly bool
}

// Open opens an existing image file or block device, e.g. /tmp/volume.img or
// /dev/sdb1. A writable block device is opened exclusively (O_EXCL); for an
// image file the flag has no effect.
func Open(pathName string, readOnly bool) (Storage, error) {
	if pathName == "" {
		return nil, errors.New("must pass device or file name")
	}
	flag := os.O_RDWR | os.O_EXCL
	if readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(pathName, flag, 0o600)
	if err != nil {
		return nil, fmt.Errorf("could not open storage %s: %w", pathName, err)
	}
	return &hostFile{f: f, readOnly: readOnly}, nil
}

// Create makes a fresh image file of the given size. The path must not exist
// yet.
func Create(pathName string, size int64) (Storage, error) {
	if pathName == "" {
		return nil, errors.New("must pass device name")
	}
	if size <= 0 {
		return nil, fmt.Errorf("storage size %d must be positive", size)
	}
	f, err := os.OpenFile(pathName, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o666)
	if err != nil {
		return nil, fmt.Errorf("could not create storage %s: %w", pathName, err)
	}
	if err := f.Truncate(size); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("could not expand storage %s to %d bytes: %w", pathName, size, err)
	}
	return &hostFile{f: f}, nil
}

func (h *hostFile) ReadAt(p []byte, off int64) (int, error) {
	return h.f.ReadAt(p, off)
}

func (h *hostFile) Writable() (io.WriterAt, error) {
	if h.readOnly {
		return nil, ErrReadOnly
	}
	return h.f, nil
}

// Size is the plain file size for an image, or the kernel's idea of the
// device size for a block device node.
func (h *hostFile) Size() (int64, error) {
	info, err := h.f.Stat()
	if err != nil {
		return 0, err
	}
	mode := info.Mode()
	switch {
	case mode.IsRegular():
		if info.Size() <= 0 {
			return 0, fmt.Errorf("file %s has no size", h.f.Name())
		}
		return info.Size(), nil
	case mode&os.ModeDevice != 0:
		return deviceSize(h.f)
	default:
		return 0, fmt.Errorf("%s is neither a block device nor a regular file", h.f.Name())
	}
}

func (h *hostFile) Close() error {
	return h.f.Close()
}
