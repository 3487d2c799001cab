package device_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/inodefs/go-inodefs/device"
	"github.com/inodefs/go-inodefs/testhelper"
)

func TestReadSector(t *testing.T) {
	content := make([]byte, 4*device.SectorSize)
	for i := range content {
		content[i] = byte(i % 251)
	}
	b := &testhelper.FileImpl{
		Reader: func(p []byte, offset int64) (int, error) {
			return copy(p, content[offset:]), nil
		},
	}
	dev := device.New(b, 0, 4)

	tests := []struct {
		name   string
		sector device.SectorNum
		buflen int
		err    error
	}{
		{"valid sector", 2, device.SectorSize, nil},
		{"beyond end", 4, device.SectorSize, device.ErrOutOfBounds},
		{"short buffer", 1, 100, device.ErrBadBuffer},
		{"long buffer", 1, device.SectorSize + 1, device.ErrBadBuffer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, tt.buflen)
			err := dev.ReadSector(tt.sector, buf)
			if !errors.Is(err, tt.err) {
				t.Fatalf("mismatched error, actual %v expected %v", err, tt.err)
			}
			if err == nil {
				expected := content[int(tt.sector)*device.SectorSize : (int(tt.sector)+1)*device.SectorSize]
				if !bytes.Equal(buf, expected) {
					t.Errorf("mismatched content for sector %d", tt.sector)
				}
			}
		})
	}
}

func TestReadSectorStart(t *testing.T) {
	// a device that begins partway into the backend, as inside a partition
	const start = 3 * device.SectorSize
	content := make([]byte, 8*device.SectorSize)
	for i := range content {
		content[i] = byte(i % 127)
	}
	b := &testhelper.FileImpl{
		Reader: func(p []byte, offset int64) (int, error) {
			return copy(p, content[offset:]), nil
		},
	}
	dev := device.New(b, start, 4)

	buf := make([]byte, device.SectorSize)
	if err := dev.ReadSector(1, buf); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	expected := content[start+device.SectorSize : start+2*device.SectorSize]
	if !bytes.Equal(buf, expected) {
		t.Errorf("sector 1 not offset by start")
	}
}

func TestWriteSector(t *testing.T) {
	content := make([]byte, 4*device.SectorSize)
	b := &testhelper.FileImpl{
		Writer: func(p []byte, offset int64) (int, error) {
			return copy(content[offset:], p), nil
		},
	}
	dev := device.New(b, 0, 4)

	payload := bytes.Repeat([]byte{0xa5}, device.SectorSize)
	if err := dev.WriteSector(3, payload); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(content[3*device.SectorSize:], payload) {
		t.Errorf("sector 3 content not written")
	}

	if err := dev.WriteSector(4, payload); !errors.Is(err, device.ErrOutOfBounds) {
		t.Errorf("mismatched error, actual %v expected %v", err, device.ErrOutOfBounds)
	}
	if err := dev.WriteSector(0, payload[:10]); !errors.Is(err, device.ErrBadBuffer) {
		t.Errorf("mismatched error, actual %v expected %v", err, device.ErrBadBuffer)
	}
}

func TestWriteSectorError(t *testing.T) {
	faulty := fmt.Errorf("device gone")
	b := &testhelper.FileImpl{
		Writer: func(p []byte, offset int64) (int, error) {
			return 0, faulty
		},
	}
	dev := device.New(b, 0, 4)
	err := dev.WriteSector(1, make([]byte, device.SectorSize))
	if !errors.Is(err, faulty) {
		t.Errorf("mismatched error, actual %v expected %v", err, faulty)
	}
}
