package img

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenMissingFile(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nothing.raw"), false, 512, 64)
	assert.ErrorIs(t, err, ErrNoSuchFile)
}

func TestOpenRaw(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "evidence.dd")
	writeTestFile(t, image, make([]byte, 1024))

	p, err := Open(image, false, 512, 64)
	require.NoError(t, err)
	defer p.Close()

	_, ok := p.(*RawProcess)
	assert.True(t, ok)
	assert.Equal(t, int64(1024), p.Size())
}

func TestOpenDirectoryWithoutRecurse(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "a.txt"), []byte("abc"))

	_, err := Open(dir, false, 512, 64)
	assert.ErrorIs(t, err, ErrNoSuchFile)
}

func TestOpenDirectoryOfPartsGuard(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "image.E01"), []byte("EVF"))

	_, err := Open(dir, true, 512, 64)
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.Contains(t, err.Error(), "image.E01")

	_, err = Open(dir, false, 512, 64)
	assert.ErrorIs(t, err, ErrNoSuchFile)
}

func TestOpenDirectoryTree(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	writeTestFile(t, filepath.Join(dir, "a.txt"), []byte("aaa"))
	writeTestFile(t, filepath.Join(dir, "sub", "b.txt"), []byte("bbb"))

	p, err := Open(dir, true, 512, 64)
	require.NoError(t, err)
	defer p.Close()

	_, ok := p.(*DirProcess)
	assert.True(t, ok)
	assert.Equal(t, int64(2), p.Size())
}

func TestOpenSplitRaw(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "img.000"), make([]byte, 512))
	writeTestFile(t, filepath.Join(dir, "img.001"), make([]byte, 512))

	p, err := Open(filepath.Join(dir, "img.000"), false, 512, 0)
	require.NoError(t, err)
	defer p.Close()
	assert.Equal(t, int64(1024), p.Size())
}

func TestFilenameExtension(t *testing.T) {
	assert.Equal(t, "e01", filenameExtension("disk.E01"))
	assert.Equal(t, "dd", filenameExtension("disk.dd"))
	assert.Equal(t, "", filenameExtension("disk"))
}

func TestIsMultipartFile(t *testing.T) {
	assert.True(t, isMultipartFile("img.000"))
	assert.True(t, isMultipartFile("img.001"))
	assert.True(t, isMultipartFile("machine-s001.vmdk"))
	assert.False(t, isMultipartFile("disk.dd"))
	assert.False(t, isMultipartFile("machine.vmdk"))
}
