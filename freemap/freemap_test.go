package freemap_test

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/inodefs/go-inodefs/backend"
	"github.com/inodefs/go-inodefs/device"
	"github.com/inodefs/go-inodefs/freemap"
)

func testDevice(t *testing.T, sectors uint32) *device.Device {
	t.Helper()
	img := filepath.Join(t.TempDir(), "freemap.img")
	b, err := backend.Create(img, int64(sectors)*device.SectorSize)
	if err != nil {
		t.Fatalf("could not create image: %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return device.New(b, 0, sectors)
}

func TestSectorsFor(t *testing.T) {
	tests := []struct {
		nbits    uint32
		expected uint32
	}{
		{1, 1},
		{4096, 1},
		{4097, 2},
		{8192, 2},
		{100000, 25},
	}
	for _, tt := range tests {
		if got := freemap.SectorsFor(tt.nbits); got != tt.expected {
			t.Errorf("SectorsFor(%d): actual %d expected %d", tt.nbits, got, tt.expected)
		}
	}
}

func TestAllocateNeverZero(t *testing.T) {
	dev := testDevice(t, 16)
	m := freemap.New(dev, 1, 16)
	// nothing reserved at all, the scan itself must still skip sector 0
	for {
		n, err := m.Allocate()
		if err != nil {
			if !errors.Is(err, freemap.ErrNoSpace) {
				t.Fatalf("unexpected error: %v", err)
			}
			break
		}
		if n == 0 {
			t.Fatal("allocator handed out sector 0")
		}
	}
	if got := m.FreeCount(); got != 1 {
		// only sector 0 should be left unoffered
		t.Errorf("free count after exhaustion: actual %d expected 1", got)
	}
}

func TestAllocateRelease(t *testing.T) {
	dev := testDevice(t, 64)
	m := freemap.New(dev, 1, 64)
	for i := uint32(0); i < 3; i++ {
		if err := m.Reserve(device.SectorNum(i)); err != nil {
			t.Fatalf("reserve %d: %v", i, err)
		}
	}

	n1, err := m.Allocate()
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if n1 != 3 {
		t.Errorf("first allocation: actual %d expected 3", n1)
	}
	if !m.IsAllocated(n1) {
		t.Errorf("sector %d not marked allocated", n1)
	}

	if err := m.Release(n1); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := m.Release(n1); !errors.Is(err, freemap.ErrNotAllocated) {
		t.Errorf("double free: actual %v expected %v", err, freemap.ErrNotAllocated)
	}
	if err := m.Release(0); err == nil {
		t.Error("releasing sector 0 must fail")
	}

	// the freed sector is offered again
	n2, err := m.Allocate()
	if err != nil {
		t.Fatalf("allocate after release: %v", err)
	}
	if n2 != n1 {
		t.Errorf("reallocation: actual %d expected %d", n2, n1)
	}
}

func TestPersistence(t *testing.T) {
	dev := testDevice(t, 64)
	m := freemap.New(dev, 1, 64)
	if err := m.Reserve(0); err != nil {
		t.Fatal(err)
	}
	if err := m.Reserve(1); err != nil {
		t.Fatal(err)
	}
	var allocated []device.SectorNum
	for i := 0; i < 5; i++ {
		n, err := m.Allocate()
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		allocated = append(allocated, n)
	}
	if err := m.Flush(); err != nil {
		t.Fatalf("flush: %v", err)
	}

	loaded, err := freemap.Load(dev, 1, 64)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got, want := loaded.FreeCount(), m.FreeCount(); got != want {
		t.Errorf("free count after load: actual %d expected %d", got, want)
	}
	for _, n := range allocated {
		if !loaded.IsAllocated(n) {
			t.Errorf("sector %d lost across flush/load", n)
		}
	}
	n, err := loaded.Allocate()
	if err != nil {
		t.Fatalf("allocate after load: %v", err)
	}
	if n != allocated[len(allocated)-1]+1 {
		t.Errorf("allocation after load: actual %d expected %d", n, allocated[len(allocated)-1]+1)
	}
}

func TestFreeCount(t *testing.T) {
	dev := testDevice(t, 40)
	m := freemap.New(dev, 1, 40)
	if got := m.FreeCount(); got != 40 {
		t.Fatalf("fresh map free count: actual %d expected 40", got)
	}
	if err := m.Reserve(0); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Allocate(); err != nil {
		t.Fatal(err)
	}
	if got := m.FreeCount(); got != 38 {
		t.Errorf("free count: actual %d expected 38", got)
	}
}
