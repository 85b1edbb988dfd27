package img

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, data, 0644))
}

func patternBytes(n int, seed byte) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = seed + byte(i%251)
	}
	return data
}

func TestRawPRead(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "evidence.raw")
	data := patternBytes(4096, 1)
	writeTestFile(t, image, data)

	p := NewRawProcess(image, 512, 64)
	require.NoError(t, p.Open())
	defer p.Close()

	assert.Equal(t, int64(4096), p.Size())

	buf := make([]byte, 100)
	got, err := p.PRead(buf, 1000)
	require.NoError(t, err)
	assert.Equal(t, 100, got)
	assert.Equal(t, data[1000:1100], buf)

	// reads past the end return nothing
	got, err = p.PRead(buf, 5000)
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestSplitRawBoundaryCrossing(t *testing.T) {
	dir := t.TempDir()
	const mib = 1024 * 1024
	part0 := patternBytes(mib, 10)
	part1 := patternBytes(mib, 20)
	part2 := patternBytes(mib, 30)
	writeTestFile(t, filepath.Join(dir, "img.000"), part0)
	writeTestFile(t, filepath.Join(dir, "img.001"), part1)
	writeTestFile(t, filepath.Join(dir, "img.002"), part2)

	p := NewRawProcess(filepath.Join(dir, "img.000"), 4096, 512)
	require.NoError(t, p.Open())
	defer p.Close()

	require.Len(t, p.Segments(), 3)
	assert.Equal(t, int64(3*mib), p.Size())

	// size is the sum of the segment lengths
	var total int64
	for _, segment := range p.Segments() {
		total += segment.Length
	}
	assert.Equal(t, p.Size(), total)

	buf := make([]byte, 512)
	got, err := p.PRead(buf, int64(mib-256))
	require.NoError(t, err)
	assert.Equal(t, 512, got)
	assert.Equal(t, part0[mib-256:], buf[:256])
	assert.Equal(t, part1[:256], buf[256:])
}

func TestSplitRawSegmentLookup(t *testing.T) {
	dir := t.TempDir()
	writeTestFile(t, filepath.Join(dir, "img.000"), make([]byte, 100))
	writeTestFile(t, filepath.Join(dir, "img.001"), make([]byte, 200))

	p := NewRawProcess(filepath.Join(dir, "img.000"), 64, 16)
	require.NoError(t, p.Open())
	defer p.Close()

	segment := p.findOffset(0)
	require.NotNil(t, segment)
	assert.Equal(t, int64(0), segment.Offset)

	segment = p.findOffset(99)
	require.NotNil(t, segment)
	assert.Equal(t, int64(0), segment.Offset)

	segment = p.findOffset(100)
	require.NotNil(t, segment)
	assert.Equal(t, int64(100), segment.Offset)

	assert.Nil(t, p.findOffset(300))
}

func TestMakeListTemplate(t *testing.T) {
	templ, start, err := makeListTemplate("evidence.000")
	require.NoError(t, err)
	assert.Equal(t, "evidence.%03d", templ)
	assert.Equal(t, 1, start)

	templ, start, err = makeListTemplate("disk.001")
	require.NoError(t, err)
	assert.Equal(t, "disk.%03d", templ)
	assert.Equal(t, 2, start)

	templ, start, err = makeListTemplate("machine-s001.vmdk")
	require.NoError(t, err)
	assert.Equal(t, "machine-s%03d.vmdk", templ)
	assert.Equal(t, 2, start)
}

func TestIteratorOverlap(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "evidence.raw")
	const pagesize, margin = 512, 128
	data := patternBytes(1300, 7) // not a page multiple
	writeTestFile(t, image, data)

	p := NewRawProcess(image, pagesize, margin)
	require.NoError(t, p.Open())
	defer p.Close()

	covered := make([]int, len(data))
	for it := p.Begin(); !it.EOF; p.Increment(&it) {
		sb, err := p.SBufAlloc(&it)
		if err == ErrEndOfImage {
			break
		}
		require.NoError(t, err)
		for b := 0; b < sb.PageSize; b++ {
			covered[int(sb.Pos0.Offset)+b]++
		}
		assert.LessOrEqual(t, sb.BufSize(), pagesize+margin)
		assert.Equal(t, data[sb.Pos0.Offset:int(sb.Pos0.Offset)+sb.BufSize()], sb.Data)
	}

	// every byte starts in exactly one page
	for off, count := range covered {
		assert.Equalf(t, 1, count, "offset %d", off)
	}
}

func TestIteratorSaturatesAtEOF(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "evidence.raw")
	writeTestFile(t, image, make([]byte, 1024))

	p := NewRawProcess(image, 512, 0)
	require.NoError(t, p.Open())
	defer p.Close()

	it := p.Begin()
	p.Increment(&it)
	p.Increment(&it)
	assert.True(t, it.EOF)
	assert.Equal(t, int64(1024), it.RawOffset)
	p.Increment(&it)
	assert.Equal(t, int64(1024), it.RawOffset)

	assert.Equal(t, uint64(2), p.MaxBlocks())
	assert.InDelta(t, 1.0, p.FractionDone(it), 0.0001)
}

func TestSeekBlock(t *testing.T) {
	dir := t.TempDir()
	image := filepath.Join(dir, "evidence.raw")
	writeTestFile(t, image, make([]byte, 2048))

	p := NewRawProcess(image, 512, 0)
	require.NoError(t, p.Open())
	defer p.Close()

	it := p.Begin()
	block := p.SeekBlock(&it, 2)
	assert.Equal(t, uint64(2), block)
	assert.Equal(t, int64(1024), it.RawOffset)

	block = p.SeekBlock(&it, 100)
	assert.Equal(t, uint64(4), block)
	assert.Equal(t, int64(2048), it.RawOffset)
}
