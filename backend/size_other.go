//go:build !linux

package backend

import (
	"fmt"
	"os"
)

// deviceSize is unsupported off linux; use image files instead.
func deviceSize(f *os.File) (int64, error) {
	return 0, fmt.Errorf("block device %s not supported on this platform, use an image file", f.Name())
}
