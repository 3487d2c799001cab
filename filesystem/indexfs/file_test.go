package indexfs_test

import (
	"bytes"
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodefs/go-inodefs/filesystem"
)

func TestFileReadWriteSeek(t *testing.T) {
	fs, _ := tmpVolume(t, 64)
	defer fs.Close()

	home := mkInode(t, fs, 0)
	f, err := fs.OpenFile(home, os.O_RDWR)
	require.NoError(t, err)
	defer f.Close()

	n, err := f.Write([]byte("the quick brown fox"))
	require.NoError(t, err)
	assert.Equal(t, 19, n)

	_, err = f.Seek(4, io.SeekStart)
	require.NoError(t, err)
	buf := make([]byte, 5)
	n, err = f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, []byte("quick"), buf)

	// read to the end returns io.EOF with whatever was left
	rest, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, []byte(" brown fox"), rest)

	n, err = f.Read(buf)
	assert.Equal(t, 0, n)
	assert.ErrorIs(t, err, io.EOF)

	pos, err := f.Seek(-3, io.SeekEnd)
	require.NoError(t, err)
	assert.EqualValues(t, 16, pos)
	n, err = f.Read(buf)
	assert.Equal(t, 3, n)
	assert.Equal(t, []byte("fox"), buf[:3])

	_, err = f.Seek(-100, io.SeekCurrent)
	assert.Error(t, err, "seeking before start must fail")
}

func TestFileReadOnly(t *testing.T) {
	fs, _ := tmpVolume(t, 64)
	defer fs.Close()

	home := mkInode(t, fs, 0)
	rw, err := fs.OpenFile(home, os.O_RDWR)
	require.NoError(t, err)
	_, err = rw.Write([]byte("persisted"))
	require.NoError(t, err)
	require.NoError(t, rw.Close())

	ro, err := fs.OpenFile(home, os.O_RDONLY)
	require.NoError(t, err)
	defer ro.Close()
	_, err = ro.Write([]byte("nope"))
	assert.ErrorIs(t, err, filesystem.ErrReadonlyFilesystem)

	got, err := io.ReadAll(ro)
	require.NoError(t, err)
	assert.Equal(t, []byte("persisted"), got)
}

func TestFileAppend(t *testing.T) {
	fs, _ := tmpVolume(t, 64)
	defer fs.Close()

	home := mkInode(t, fs, 0)
	f, err := fs.OpenFile(home, os.O_RDWR)
	require.NoError(t, err)
	_, err = f.Write([]byte("head"))
	require.NoError(t, err)
	require.NoError(t, f.Close())

	f2, err := fs.OpenFile(home, os.O_RDWR|os.O_APPEND)
	require.NoError(t, err)
	defer f2.Close()
	_, err = f2.Write([]byte("+tail"))
	require.NoError(t, err)

	_, err = f2.Seek(0, io.SeekStart)
	require.NoError(t, err)
	got, err := io.ReadAll(f2)
	require.NoError(t, err)
	assert.True(t, bytes.Equal([]byte("head+tail"), got))
}

func TestFileClosed(t *testing.T) {
	fs, _ := tmpVolume(t, 64)
	defer fs.Close()

	home := mkInode(t, fs, 0)
	f, err := fs.OpenFile(home, os.O_RDWR)
	require.NoError(t, err)
	require.NoError(t, f.Close())
	require.NoError(t, f.Close(), "double close is harmless")

	_, err = f.Read(make([]byte, 1))
	assert.ErrorIs(t, err, os.ErrClosed)
	_, err = f.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)
}
