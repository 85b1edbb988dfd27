package windirs

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aarsakian/ArtifactExtractor/recorder"
	"github.com/aarsakian/ArtifactExtractor/sbuf"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.LastYear = 2031
	return cfg
}

func fatDate(year, month, day int) uint16 {
	return uint16(year-1980)<<9 | uint16(month)<<5 | uint16(day)
}

func fatTime(hour, min, sec int) uint16 {
	return uint16(hour)<<11 | uint16(min)<<5 | uint16(sec/2)
}

type dentryFixture struct {
	name       string
	ext        string
	attrib     uint8
	ctimeten   uint8
	ctime      uint16
	cdate      uint16
	adate      uint16
	wtime      uint16
	wdate      uint16
	highclust  uint16
	startclust uint16
	size       uint32
}

func (f dentryFixture) bytes() []byte {
	data := make([]byte, dentrySize)
	copy(data[0:8], []byte("        "))
	copy(data[0:8], []byte(f.name))
	copy(data[8:11], []byte("   "))
	copy(data[8:11], []byte(f.ext))
	data[11] = f.attrib
	data[13] = f.ctimeten
	binary.LittleEndian.PutUint16(data[14:], f.ctime)
	binary.LittleEndian.PutUint16(data[16:], f.cdate)
	binary.LittleEndian.PutUint16(data[18:], f.adate)
	binary.LittleEndian.PutUint16(data[20:], f.highclust)
	binary.LittleEndian.PutUint16(data[22:], f.wtime)
	binary.LittleEndian.PutUint16(data[24:], f.wdate)
	binary.LittleEndian.PutUint16(data[26:], f.startclust)
	binary.LittleEndian.PutUint32(data[28:], f.size)
	return data
}

func helloDentry() dentryFixture {
	return dentryFixture{
		name:       "HELLO",
		ext:        "TXT",
		attrib:     fatAttrArchive,
		ctimeten:   100,
		ctime:      fatTime(10, 20, 30),
		cdate:      fatDate(2015, 3, 15),
		adate:      fatDate(2015, 3, 15),
		wtime:      fatTime(11, 0, 0),
		wdate:      fatDate(2015, 3, 16),
		startclust: 8,
		size:       1234,
	}
}

func dentrySBuf(data []byte) *sbuf.SBuf {
	return sbuf.New(sbuf.Pos0{}, data, len(data))
}

func TestValidDentry(t *testing.T) {
	ret := validFATDirectoryEntry(dentrySBuf(helloDentry().bytes()), testConfig())
	assert.Equal(t, fatValidDentry, ret)
}

func TestAllNullSlot(t *testing.T) {
	ret := validFATDirectoryEntry(dentrySBuf(make([]byte, dentrySize)), testConfig())
	assert.Equal(t, fatAllNull, ret)

	fill := make([]byte, dentrySize)
	for i := range fill {
		fill[i] = 0xf6
	}
	assert.Equal(t, fatAllNull, validFATDirectoryEntry(dentrySBuf(fill), testConfig()))
}

func TestLastDentry(t *testing.T) {
	data := helloDentry().bytes()
	data[0] = 0
	data[11] = 0 // plain entry, not LFN
	ret := validFATDirectoryEntry(dentrySBuf(data), testConfig())
	assert.Equal(t, fatValidLastDentry, ret)
}

func TestLFNSlot(t *testing.T) {
	data := make([]byte, dentrySize)
	data[0] = 0x41 // sequence 1, last in chain
	data[1] = 'h'
	data[11] = fatAttrLFN
	ret := validFATDirectoryEntry(dentrySBuf(data), testConfig())
	assert.Equal(t, fatValidLFN, ret)

	bad := make([]byte, dentrySize)
	bad[0] = 11 // sequence beyond 10
	bad[1] = 'h'
	bad[11] = fatAttrLFN
	assert.Equal(t, fatInvalid, validFATDirectoryEntry(dentrySBuf(bad), testConfig()))

	bad = make([]byte, dentrySize)
	bad[0] = 0x41
	bad[1] = 'h'
	bad[11] = fatAttrLFN
	bad[26] = 1 // FstClusLO must be zero
	assert.Equal(t, fatInvalid, validFATDirectoryEntry(dentrySBuf(bad), testConfig()))
}

func TestRejections(t *testing.T) {
	cfg := testConfig()

	lower := helloDentry()
	lower.name = "hello"
	assert.Equal(t, fatInvalid, validFATDirectoryEntry(dentrySBuf(lower.bytes()), cfg))

	device := helloDentry()
	device.attrib = 0x40
	assert.Equal(t, fatInvalid, validFATDirectoryEntry(dentrySBuf(device.bytes()), cfg))

	dirArchive := helloDentry()
	dirArchive.attrib = fatAttrDirectory | fatAttrArchive
	assert.Equal(t, fatInvalid, validFATDirectoryEntry(dentrySBuf(dirArchive.bytes()), cfg))

	forged := helloDentry()
	forged.ctime = forged.cdate
	assert.Equal(t, fatInvalid, validFATDirectoryEntry(dentrySBuf(forged.bytes()), cfg))

	badTimeTen := helloDentry()
	badTimeTen.ctimeten = 200
	assert.Equal(t, fatInvalid, validFATDirectoryEntry(dentrySBuf(badTimeTen.bytes()), cfg))

	badMonth := helloDentry()
	badMonth.cdate = uint16(2015-1980)<<9 | 13<<5 | 1
	assert.Equal(t, fatInvalid, validFATDirectoryEntry(dentrySBuf(badMonth.bytes()), cfg))
}

func TestWeirdnessCutoff(t *testing.T) {
	cfg := testConfig()

	weird := helloDentry()
	weird.highclust = 0x2000 // cluster beyond both thresholds: +2
	weird.size = 1024 * 1024 * 600
	weird.ctimeten = 50
	// size beyond both thresholds: +2, ctimeten neither 0 nor 100: +1
	assert.Equal(t, fatInvalid, validFATDirectoryEntry(dentrySBuf(weird.bytes()), cfg))

	// one weird trait alone survives
	mild := helloDentry()
	mild.ctimeten = 50
	assert.Equal(t, fatValidDentry, validFATDirectoryEntry(dentrySBuf(mild.bytes()), cfg))
}

func TestDotEntries(t *testing.T) {
	dot := helloDentry()
	dot.name = "."
	dot.ext = ""
	assert.Equal(t, fatValidDentry, validFATDirectoryEntry(dentrySBuf(dot.bytes()), testConfig()))

	dotdot := helloDentry()
	dotdot.name = ".."
	dotdot.ext = ""
	assert.Equal(t, fatValidDentry, validFATDirectoryEntry(dentrySBuf(dotdot.bytes()), testConfig()))
}

func scanPage(t *testing.T, page []byte, pagesize int, cfg Config) []string {
	t.Helper()
	fs := afero.NewMemMapFs()
	fset, err := recorder.NewFeatureSet(fs, "/out")
	require.NoError(t, err)
	wrecorder := fset.Named("windirs")

	sb := sbuf.New(sbuf.Pos0{}, page, pagesize)
	scanFATDirs(sb, wrecorder, cfg)
	scanNTFSDirs(sb, wrecorder, cfg)
	require.NoError(t, fset.CloseAll())

	data, err := afero.ReadFile(fs, "/out/windirs.txt")
	require.NoError(t, err)
	var lines []string
	for _, line := range strings.Split(strings.TrimRight(string(data), "\n"), "\n") {
		if !strings.HasPrefix(line, "#") && line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func TestRawCarveScenario(t *testing.T) {
	page := make([]byte, 4096)
	copy(page[0:], helloDentry().bytes())

	lines := scanPage(t, page, 4096, testConfig())
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "HELLO.TXT")
	assert.Contains(t, lines[0], "src='fat'")
	assert.Contains(t, lines[0], "<filename>HELLO.TXT</filename>")
	assert.Contains(t, lines[0], "<ctime>2015-03-15T10:20:30Z</ctime>")
	assert.Contains(t, lines[0], "<filesize>1234</filesize>")
}

func TestLoneImplausibleYearSuppressed(t *testing.T) {
	future := helloDentry()
	future.cdate = fatDate(2060, 3, 15)
	future.adate = fatDate(2060, 3, 15)
	future.wdate = fatDate(2060, 3, 16)

	page := make([]byte, 4096)
	copy(page[0:], future.bytes())

	// a single valid dentry with no plausible year in its sector is noise
	lines := scanPage(t, page, 4096, testConfig())
	assert.Empty(t, lines)
}

func TestSectorWithTwoEntries(t *testing.T) {
	second := helloDentry()
	second.name = "WORLD"
	second.ext = "DAT"
	second.startclust = 9

	page := make([]byte, 4096)
	copy(page[0:], helloDentry().bytes())
	copy(page[dentrySize:], second.bytes())

	lines := scanPage(t, page, 4096, testConfig())
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "HELLO.TXT")
	assert.Contains(t, lines[1], "WORLD.DAT")
	// pos0 of the second entry is its slot offset
	assert.True(t, strings.HasPrefix(lines[1], "32\t"))
}

func TestMatchesOnlyInsidePage(t *testing.T) {
	// entry lives in the margin: the next page owns it
	page := make([]byte, 1024)
	copy(page[512:], helloDentry().bytes())

	lines := scanPage(t, page, 512, testConfig())
	assert.Empty(t, lines)
}
