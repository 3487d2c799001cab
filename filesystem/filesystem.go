// Package filesystem provides the interfaces and shared errors filesystem
// implementations satisfy. The interesting implementation lives in
// github.com/inodefs/go-inodefs/filesystem/indexfs.
package filesystem

import (
	"errors"
)

var (
	ErrNotSupported       = errors.New("method not supported by this filesystem")
	ErrReadonlyFilesystem = errors.New("read-only filesystem")
)

// FileSystem is a reference to a single filesystem on a disk
type FileSystem interface {
	// Type return the type of filesystem
	Type() Type
	// Label get the label for the filesystem, or "" if none.
	Label() string
	// SetLabel changes the label on the writable filesystem.
	SetLabel(label string) error
	// Close the filesystem, flushing any pending metadata
	Close() error
}

// Type represents the type of filesystem this is
type Type int

const (
	// TypeIndexfs is an indexed-allocation inode filesystem
	TypeIndexfs Type = iota
)
