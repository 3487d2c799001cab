// Package testhelper provides a stub storage backend for tests, so device
// faults can be injected without a real file underneath.
package testhelper

import (
	"fmt"
	"io"

	"github.com/inodefs/go-inodefs/backend"
)

// FileImpl implements backend.Storage over two injectable functions. Leave a
// function nil to make that direction of I/O fail.
type FileImpl struct {
	Reader func(b []byte, offset int64) (int, error)
	Writer func(b []byte, offset int64) (int, error)
}

// backend.Storage interface guard
var _ backend.Storage = (*FileImpl)(nil)

// ReadAt read at a particular offset
func (f *FileImpl) ReadAt(b []byte, offset int64) (int, error) {
	if f.Reader == nil {
		return 0, fmt.Errorf("FileImpl has no Reader")
	}
	return f.Reader(b, offset)
}

// Writable returns a write handle driven by the Writer function
func (f *FileImpl) Writable() (io.WriterAt, error) {
	if f.Writer == nil {
		return nil, backend.ErrReadOnly
	}
	return writerAtFunc(f.Writer), nil
}

// Size has no real file underneath
func (f *FileImpl) Size() (int64, error) {
	return 0, fmt.Errorf("FileImpl does not implement Size()")
}

func (f *FileImpl) Close() error {
	return nil
}

type writerAtFunc func(b []byte, offset int64) (int, error)

func (w writerAtFunc) WriteAt(b []byte, offset int64) (int, error) {
	return w(b, offset)
}
