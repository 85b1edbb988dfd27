package windirs

import (
	"encoding/binary"
	"fmt"
	"math/bits"
	"strconv"

	"github.com/aarsakian/ArtifactExtractor/dfxml"
	"github.com/aarsakian/ArtifactExtractor/recorder"
	"github.com/aarsakian/ArtifactExtractor/sbuf"
)

// FAT32 directories always start on sector boundaries.

const (
	sectorSize = 512
	dentrySize = 32
)

const (
	fatAttrVolume    = 0x08
	fatAttrDirectory = 0x10
	fatAttrArchive   = 0x20
	fatAttrLFN       = 0x0f
	fatAttrAll       = 0x3f
)

type fatValidation int

const (
	fatInvalid         fatValidation = 0
	fatValidDentry     fatValidation = 1
	fatValidLFN        fatValidation = 2
	fatValidLastDentry fatValidation = 10
	fatAllNull         fatValidation = 20
)

type fatDentry struct {
	name       [8]byte //0-7
	ext        [3]byte //8-10
	attrib     uint8   //11
	lowercase  uint8   //12
	ctimeten   uint8   //13
	ctime      uint16  //14-15
	cdate      uint16  //16-17
	adate      uint16  //18-19
	highclust  uint16  //20-21
	wtime      uint16  //22-23
	wdate      uint16  //24-25
	startclust uint16  //26-27
	size       uint32  //28-31
}

func parseFATDentry(data []byte) fatDentry {
	var dentry fatDentry
	copy(dentry.name[:], data[0:8])
	copy(dentry.ext[:], data[8:11])
	dentry.attrib = data[11]
	dentry.lowercase = data[12]
	dentry.ctimeten = data[13]
	dentry.ctime = binary.LittleEndian.Uint16(data[14:])
	dentry.cdate = binary.LittleEndian.Uint16(data[16:])
	dentry.adate = binary.LittleEndian.Uint16(data[18:])
	dentry.highclust = binary.LittleEndian.Uint16(data[20:])
	dentry.wtime = binary.LittleEndian.Uint16(data[22:])
	dentry.wdate = binary.LittleEndian.Uint16(data[24:])
	dentry.startclust = binary.LittleEndian.Uint16(data[26:])
	dentry.size = binary.LittleEndian.Uint32(data[28:])
	return dentry
}

func (dentry fatDentry) cluster() uint32 {
	return uint32(dentry.highclust)<<16 | uint32(dentry.startclust)
}

func fatYearRaw(x uint16) uint16 { return (x >> 9) & 0x7f }
func fatYear(x uint16) uint16    { return fatYearRaw(x) + 1980 }
func fatMonth(x uint16) uint16   { return (x >> 5) & 0x0f }
func fatDay(x uint16) uint16     { return x & 0x1f }
func fatHour(x uint16) uint16    { return (x >> 11) & 0x1f }
func fatMin(x uint16) uint16     { return (x >> 5) & 0x3f }
func fatSec(x uint16) uint16     { return (x & 0x1f) * 2 }

func fatIsDate(x uint16) bool {
	return fatDay(x) > 0 && fatMonth(x) > 0 && fatMonth(x) < 13
}

func fatIsTime(x uint16) bool {
	return fatSec(x) < 60 && fatMin(x) < 60 && fatHour(x) < 24
}

func fatDateToISODate(d uint16, t uint16) string {
	return fmt.Sprintf("%04d-%02d-%02dT%02d:%02d:%02dZ",
		fatYear(d), fatMonth(d), fatDay(d), fatHour(t), fatMin(t), fatSec(t))
}

// is83Name rejects byte values that can never appear in an 8.3 name slot.
func is83Name(ch byte) bool {
	switch {
	case ch < 0x05:
		return false
	case ch == 0x22:
		return false
	case ch >= 0x2a && ch <= 0x2c:
		return false
	case ch == 0x2e || ch == 0x2f:
		return false
	case ch >= 0x3a && ch <= 0x3f:
		return false
	case ch >= 0x5b && ch <= 0x5d:
		return false
	case ch == 0x7c:
		return false
	}
	return true
}

func is83Ext(ch byte) bool {
	return is83Name(ch) && ch < 0x7f
}

func isNameChar(ch byte) bool {
	if ch >= 'A' && ch <= 'Z' {
		return true
	}
	if ch >= '0' && ch <= '9' {
		return true
	}
	switch ch {
	case ' ', '!', '#', '$', '%', '&', '\'', '(', ')', '-', '@', '^', '_', '`', '{', '}', '~':
		return true
	}
	return false
}

// validFATDentryName validates an 8.3 name (not a long file name).
func validFATDentryName(name [8]byte, ext [3]byte) bool {
	blankExt := ext[0] == ' ' && ext[1] == ' ' && ext[2] == ' '
	if name[0] == '.' && name[1] == ' ' && name[2] == ' ' && name[3] == ' ' &&
		name[4] == ' ' && name[5] == ' ' && name[6] == ' ' && name[7] == ' ' && blankExt {
		return true
	}
	if name[0] == '.' && name[1] == '.' && name[2] == ' ' && name[3] == ' ' &&
		name[4] == ' ' && name[5] == ' ' && name[6] == ' ' && name[7] == ' ' && blankExt {
		return true
	}

	for i := 0; i < 8; i++ {
		if !is83Name(name[i]) {
			return false
		}
	}
	for i := 0; i < 3; i++ {
		if !is83Ext(ext[i]) {
			return false
		}
	}

	for i := 0; i < 8; i++ {
		ch := name[i]
		if ch == 0 || ch == ' ' {
			break // end of name
		}
		if !isNameChar(ch) {
			return false
		}
	}
	for i := 0; i < 3; i++ {
		ch := ext[i]
		if ch == 0 || ch == ' ' {
			break
		}
		if !isNameChar(ch) {
			return false
		}
	}
	return true
}

// validFATDirectoryEntry decides whether a 32 byte slot is a plausible FAT
// directory entry. It is a pure function of the slot bytes and the config.
func validFATDirectoryEntry(sb *sbuf.SBuf, cfg Config) fatValidation {
	if sb.BufSize() != dentrySize {
		return fatInvalid
	}
	if sb.IsConstant() {
		return fatAllNull
	}

	dentry := parseFATDentry(sb.Data)
	if dentry.attrib&^uint8(fatAttrAll) != 0 {
		return fatInvalid // invalid attribute bit set
	}
	if dentry.attrib == fatAttrLFN {
		// may be a VFAT long file name slot
		seq := sb.Data[0]
		reserved1 := sb.Data[12]
		fstClusLO := binary.LittleEndian.Uint16(sb.Data[26:])
		if seq&^uint8(0x40) > 10 {
			return fatInvalid // invalid sequence number
		}
		if reserved1 != 0 {
			return fatInvalid
		}
		if fstClusLO != 0 {
			return fatInvalid // LDIR_FstClusLO must be zero
		}
		return fatValidLFN
	}

	if dentry.name[0] == 0 {
		return fatValidLastDentry // no subsequent entry is in use
	}

	if dentry.attrib&fatAttrLFN == fatAttrLFN && dentry.attrib != fatAttrLFN {
		return fatInvalid // LFN set but DIR or ARCHIVE is also set
	}
	if dentry.attrib&fatAttrDirectory != 0 && dentry.attrib&fatAttrArchive != 0 {
		return fatInvalid
	}
	if dentry.attrib&0x40 != 0 {
		return fatInvalid // device, never found on disk
	}
	if !validFATDentryName(dentry.name, dentry.ext) {
		return fatInvalid
	}
	if dentry.ctimeten > 199 {
		return fatInvalid // create time fine resolution is 0..199
	}

	if dentry.ctime != 0 && !fatIsTime(dentry.ctime) {
		return fatInvalid // ctime is null for directories
	}
	if dentry.cdate != 0 && !fatIsDate(dentry.cdate) {
		return fatInvalid
	}
	if dentry.adate != 0 && !fatIsDate(dentry.adate) {
		return fatInvalid
	}
	if dentry.adate == 0 && dentry.ctime == 0 && dentry.cdate == 0 {
		if dentry.attrib&fatAttrVolume != 0 {
			return fatValidDentry // volume name
		}
		return fatInvalid
	}
	if !fatIsTime(dentry.wtime) {
		return fatInvalid
	}
	if !fatIsDate(dentry.wdate) {
		return fatInvalid
	}
	if dentry.ctime != 0 && dentry.ctime == dentry.cdate {
		return fatInvalid // highly unlikely
	}
	if dentry.wtime != 0 && dentry.wtime == dentry.wdate {
		return fatInvalid
	}
	if dentry.adate != 0 && dentry.adate == dentry.ctime {
		return fatInvalid
	}
	if dentry.adate != 0 && dentry.adate == dentry.wtime {
		return fatInvalid
	}

	/* Tally what is weird for a FAT32 entry; the thresholds come from
	   inspection of false positives. */
	weirdCount := uint32(0)
	if uint32(fatYear(dentry.cdate)) > cfg.LastYear {
		weirdCount++
	}
	if uint32(fatYear(dentry.adate)) > cfg.LastYear {
		weirdCount++
	}
	if dentry.size > cfg.WeirdFileSize {
		weirdCount++
	}
	if dentry.size > cfg.WeirdFileSize2 {
		weirdCount++
	}
	if uint32(bits.OnesCount8(dentry.attrib)) > cfg.MaxBitsInAttrib {
		weirdCount++
	}
	if dentry.cluster() > cfg.WeirdClusterCount {
		weirdCount++
	}
	if dentry.cluster() > cfg.WeirdClusterCount2 {
		weirdCount++
	}
	if dentry.ctimeten != 0 && dentry.ctimeten != 100 {
		weirdCount++
	}
	if dentry.adate == 0 && dentry.cdate == 0 {
		weirdCount++
	}
	if dentry.adate == 0 && dentry.wdate == 0 {
		weirdCount++
	}
	if weirdCount > cfg.MaxWeirdCount {
		return fatInvalid
	}

	return fatValidDentry
}

func fatFilename(dentry fatDentry) string {
	var out []byte
	for _, ch := range dentry.name {
		if ch != ' ' {
			out = append(out, ch)
		}
	}
	out = append(out, '.')
	for _, ch := range dentry.ext {
		if ch != ' ' {
			out = append(out, ch)
		}
	}
	return string(out)
}

// scanFATDirs tries every 32 byte slot of every sector in the page. A sector
// is reported only when its valid entries survive the second pass year
// heuristic, and each valid dentry becomes one DFXML fileobject.
func scanFATDirs(sb *sbuf.SBuf, wrecorder *recorder.FeatureRecorder, cfg Config) {
	const maxEntries = sectorSize / dentrySize

	for base := 0; base < sb.PageSize; base += sectorSize {
		sector := sbuf.NewChild(sb, base, sectorSize)
		if sector.BufSize() < sectorSize {
			return // no space left
		}

		lastValidEntryNumber := -1
		ret1Count := 0
		validYearCount := 0
		for entryNumber := 0; entryNumber < maxEntries; entryNumber++ {
			slot := sbuf.NewChild(sector, entryNumber*dentrySize, dentrySize)
			ret := validFATDirectoryEntry(slot, cfg)
			if ret == fatAllNull {
				break // no more valid
			}
			if ret == fatValidDentry {
				dentry := parseFATDentry(slot.Data)
				ayear := fatYearRaw(dentry.adate)
				cyear := fatYearRaw(dentry.cdate)
				wyear := fatYearRaw(dentry.wdate)
				if (ayear == 0 || uint32(1980+ayear) < cfg.LastYear) &&
					(cyear == 0 || uint32(1980+cyear) < cfg.LastYear) &&
					uint32(1980+wyear) < cfg.LastYear {
					validYearCount++
				}
				ret1Count++
			}
			if ret == fatInvalid {
				break // they are all bad
			}
			if ret == fatValidDentry || ret == fatValidLFN {
				lastValidEntryNumber = entryNumber
				continue
			}
			if ret == fatValidLastDentry {
				lastValidEntryNumber = entryNumber
				break
			}
		}

		if ret1Count == 1 && validYearCount == 0 {
			continue // year is bogus
		}
		if lastValidEntryNumber == 1 && validYearCount == 0 {
			continue
		}
		if lastValidEntryNumber >= 0 && ret1Count > 0 {
			for entryNumber := 0; entryNumber <= lastValidEntryNumber && entryNumber < maxEntries; entryNumber++ {
				slot := sbuf.NewChild(sector, entryNumber*dentrySize, dentrySize)
				if validFATDirectoryEntry(slot, cfg) != fatValidDentry {
					continue
				}
				dentry := parseFATDentry(slot.Data)
				filename := fatFilename(dentry)
				fatmap := map[string]string{
					"filename":     filename,
					"ctimeten":     strconv.Itoa(int(dentry.ctimeten)),
					"ctime":        fatDateToISODate(dentry.cdate, dentry.ctime),
					"atime":        fatDateToISODate(dentry.adate, 0),
					"mtime":        fatDateToISODate(dentry.wdate, dentry.wtime),
					"startcluster": strconv.FormatUint(uint64(dentry.cluster()), 10),
					"filesize":     strconv.FormatUint(uint64(dentry.size), 10),
					"attrib":       strconv.Itoa(int(dentry.attrib)),
				}
				wrecorder.Write(slot.Pos0, filename, dfxml.XMLMap(fatmap, "fileobject", "src='fat'"))
			}
		}
	}
}
