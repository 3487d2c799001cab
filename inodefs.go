// Package inodefs creates and mounts indexfs volumes on disk image files or
// block devices. It manipulates the bytes directly; nothing is mounted
// through the operating system.
//
// Create a 10MB image and write a file into it:
//
//	fs, err := inodefs.Create("/tmp/volume.img", 10*1024*1024, nil)
//	home, err := fs.AllocateSector()
//	err = fs.CreateInode(home, 0, false)
//	in, err := fs.OpenInode(home)
//	n, err := in.WriteAt([]byte("hello"), 0)
//	err = in.Close()
//	err = fs.Close()
//
// Mount it again later with Open and read the inode back by its sector
// number.
package inodefs

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/inodefs/go-inodefs/backend"
	"github.com/inodefs/go-inodefs/filesystem/indexfs"
)

// Open mounts an existing indexfs volume from a path to an image file or a
// block device, e.g. /tmp/volume.img or /dev/sdb1.
func Open(pathName string, readOnly bool) (*indexfs.FileSystem, error) {
	b, err := backend.Open(pathName, readOnly)
	if err != nil {
		return nil, err
	}

	size, err := b.Size()
	if err != nil {
		_ = b.Close()
		return nil, fmt.Errorf("could not size %s: %w", pathName, err)
	}

	log.WithFields(log.Fields{"path": pathName, "size": size}).Debug("opening indexfs volume")
	fs, err := indexfs.Read(b, size, 0)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return fs, nil
}

// Create makes a fresh image file of the given size and formats it as an
// empty indexfs volume. The path must not exist yet.
func Create(pathName string, size int64, p *indexfs.Params) (*indexfs.FileSystem, error) {
	b, err := backend.Create(pathName, size)
	if err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"path": pathName, "size": size}).Debug("creating indexfs volume")
	fs, err := indexfs.Create(b, size, 0, p)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return fs, nil
}
