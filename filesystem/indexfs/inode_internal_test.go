package indexfs

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/inodefs/go-inodefs/backend"
	"github.com/inodefs/go-inodefs/device"
)

func newTestFS(t *testing.T, sectors uint32) *FileSystem {
	t.Helper()
	img := filepath.Join(t.TempDir(), "inode.img")
	b, err := backend.Create(img, int64(sectors)*SectorSize)
	if err != nil {
		t.Fatalf("could not create image: %v", err)
	}
	fs, err := Create(b, int64(sectors)*SectorSize, 0, nil)
	if err != nil {
		t.Fatalf("could not create filesystem: %v", err)
	}
	t.Cleanup(func() { fs.Close() })
	return fs
}

func TestTableEmptyAfterBalancedCloses(t *testing.T) {
	fs := newTestFS(t, 64)
	home, err := fs.AllocateSector()
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.CreateInode(home, 0, false); err != nil {
		t.Fatal(err)
	}

	const N = 5
	var ins [N]*Inode
	for i := 0; i < N; i++ {
		ins[i], err = fs.OpenInode(home)
		if err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
	}
	if got := len(fs.table); got != 1 {
		t.Fatalf("table size: actual %d expected 1", got)
	}
	for i := 0; i < N; i++ {
		if err := ins[i].Close(); err != nil {
			t.Fatalf("close %d: %v", i, err)
		}
	}
	if got := len(fs.table); got != 0 {
		t.Errorf("table size after balanced closes: actual %d expected 0", got)
	}
}

func TestConcurrentOpenSingleObject(t *testing.T) {
	fs := newTestFS(t, 64)
	home, err := fs.AllocateSector()
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.CreateInode(home, 0, false); err != nil {
		t.Fatal(err)
	}

	const N = 16
	var wg sync.WaitGroup
	results := make([]*Inode, N)
	for i := 0; i < N; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			in, err := fs.OpenInode(home)
			if err != nil {
				t.Errorf("open: %v", err)
				return
			}
			results[i] = in
		}(i)
	}
	wg.Wait()

	for i := 1; i < N; i++ {
		if results[i] != results[0] {
			t.Fatalf("racing opens produced distinct inodes")
		}
	}
	if got := results[0].OpenCount(); got != N {
		t.Errorf("open count: actual %d expected %d", got, N)
	}
	for i := 0; i < N; i++ {
		if err := results[i].Close(); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCloseReleasesOnlyWhenRemoved(t *testing.T) {
	fs := newTestFS(t, 64)
	baseline := fs.fm.FreeCount()

	home, err := fs.AllocateSector()
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.CreateInode(home, 1024, false); err != nil {
		t.Fatal(err)
	}

	in, err := fs.OpenInode(home)
	if err != nil {
		t.Fatal(err)
	}
	if err := in.Close(); err != nil {
		t.Fatal(err)
	}
	// not removed: home and both data sectors stay allocated
	if got := baseline - fs.fm.FreeCount(); got != 3 {
		t.Errorf("sectors still allocated: actual %d expected 3", got)
	}

	in, err = fs.OpenInode(home)
	if err != nil {
		t.Fatal(err)
	}
	in.Remove()
	if err := in.Close(); err != nil {
		t.Fatal(err)
	}
	if got := fs.fm.FreeCount(); got != baseline {
		t.Errorf("free count after removed close: actual %d expected %d", got, baseline)
	}
}

func TestReopenAfterCloseReadsDisk(t *testing.T) {
	fs := newTestFS(t, 64)
	home, err := fs.AllocateSector()
	if err != nil {
		t.Fatal(err)
	}
	if err := fs.CreateInode(home, 0, false); err != nil {
		t.Fatal(err)
	}

	in, err := fs.OpenInode(home)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := in.WriteAt([]byte("sticky"), 0); err != nil {
		t.Fatal(err)
	}
	if err := in.Close(); err != nil {
		t.Fatal(err)
	}

	// a fresh open decodes the persisted record, not a stale cache
	in2, err := fs.OpenInode(home)
	if err != nil {
		t.Fatal(err)
	}
	defer in2.Close()
	if got := in2.Length(); got != 6 {
		t.Errorf("length after reopen: actual %d expected 6", got)
	}

	var sno device.SectorNum
	in2.mu.Lock()
	sno = in2.disk.direct[0]
	in2.mu.Unlock()
	if sno == 0 {
		t.Error("reopened inode lost its first data sector")
	}
}
