package backend

import (
	"fmt"
	"os"
	"path"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

const (
	// ioctl to fetch the logical sector size of a block device
	blksszGet = 0x1268
	// the kernel reports device sizes in 512-byte units
	kernelSectorSize = 512
)

// deviceSize asks the kernel how large the block device is, and checks that
// the device's logical sector size matches the filesystem's.
func deviceSize(f *os.File) (int64, error) {
	logicalSectorSize, err := unix.IoctlGetInt(int(f.Fd()), blksszGet)
	if err != nil {
		return 0, fmt.Errorf("unable to get device logical sector size: %v", err)
	}
	if logicalSectorSize != kernelSectorSize {
		return 0, fmt.Errorf("device %s has %d byte sectors, need %d", f.Name(), logicalSectorSize, kernelSectorSize)
	}

	devSizePath := fmt.Sprintf("/sys/class/block/%s/size", path.Base(f.Name()))
	sizeBytes, err := os.ReadFile(devSizePath)
	if err != nil {
		return 0, fmt.Errorf("could not get size of device %s from kernel: %v", f.Name(), err)
	}
	sizeString := strings.TrimSuffix(string(sizeBytes), "\n")
	size, err := strconv.ParseInt(sizeString, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid device size: %s", sizeString)
	}
	return size * kernelSectorSize, nil
}
