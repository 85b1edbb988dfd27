package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWindowsTimeConversion(t *testing.T) {
	// 2015-01-01T00:00:00Z in 100ns ticks since 1601
	winTime := NewWindowsTime(13064544000 * 10000000)
	assert.Equal(t, "2015-01-01T00:00:00Z", winTime.ConvertToIsoTime())

	epoch := NewWindowsTime(11644473600 * 10000000)
	assert.Equal(t, "1970-01-01T00:00:00Z", epoch.ConvertToIsoTime())
}

func TestDecodeUTF16(t *testing.T) {
	assert.Equal(t, "AB", DecodeUTF16([]byte{'A', 0, 'B', 0}))
	assert.Equal(t, "", DecodeUTF16(nil))
}

func TestHexify(t *testing.T) {
	assert.Equal(t, "0a1b", Hexify([]byte{0x0a, 0x1b}))
}

func TestFindEvidenceFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"case.E01", "case.E02", "case.E03", "other.E01", "case.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	filenames := FindEvidenceFiles(filepath.Join(dir, "case.E01"))
	require.Len(t, filenames, 3)
	assert.Equal(t, filepath.Join(dir, "case.E01"), filenames[0])
	assert.Equal(t, filepath.Join(dir, "case.E03"), filenames[2])
}

func TestFindEvidenceFilesMD5Suffixed(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"img.E01.0cf", "img.E02.1ab"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644))
	}

	filenames := FindEvidenceFiles(filepath.Join(dir, "img.E01.0cf"))
	require.Len(t, filenames, 2)
	assert.Equal(t, filepath.Join(dir, "img.E01.0cf"), filenames[0])
}

func TestFindEvidenceFilesMissingDir(t *testing.T) {
	filenames := FindEvidenceFiles("/does/not/exist/case.E01")
	assert.Equal(t, []string{"/does/not/exist/case.E01"}, filenames)
}

func TestStringifyGUID(t *testing.T) {
	data := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15}
	assert.Equal(t, "00010203-0405-0607-0809-0a0b0c0d0e0f", StringifyGUID(data))
}
