package windirs

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/aarsakian/ArtifactExtractor/dfxml"
	"github.com/aarsakian/ArtifactExtractor/recorder"
	"github.com/aarsakian/ArtifactExtractor/sbuf"
	"github.com/aarsakian/ArtifactExtractor/utils"
)

const (
	ntfsMFTMagic   = 0x454c4946 // "FILE"
	ntfsRecordSize = 1024
	ntfsAttrRes    = 0 // resident flag value
	ntfsAttrHeader = 16

	atypeSI       = 0x10
	atypeAttrList = 0x20
	atypeFName    = 0x30
	atypeObjID    = 0x40

	maxPlausibleFilesize = uint64(1000) * 1000 * 1000 * 1000 * 1000 // 10^15 bytes
)

// microsoftGUID formats 16 on disk bytes with the canonical mixed endian
// layout: the first three fields are little endian, the rest as stored.
func microsoftGUID(data []byte) string {
	var rfc [16]byte
	rfc[0], rfc[1], rfc[2], rfc[3] = data[3], data[2], data[1], data[0]
	rfc[4], rfc[5] = data[5], data[4]
	rfc[6], rfc[7] = data[7], data[6]
	copy(rfc[8:], data[8:16])
	guid, err := uuid.FromBytes(rfc[:])
	if err != nil {
		return ""
	}
	return guid.String()
}

// scanNTFSDirs examines every 512 byte boundary of the page for a 1024 byte
// MFT record. A bounds failure on one candidate skips only that candidate.
func scanNTFSDirs(sb *sbuf.SBuf, wrecorder *recorder.FeatureRecorder, cfg Config) {
	for base := 0; base < sb.PageSize; base += sectorSize {
		record := sbuf.NewChild(sb, base, ntfsRecordSize)
		if record.BufSize() != ntfsRecordSize {
			continue // no space
		}
		scanMFTRecord(record, wrecorder)
	}
}

// scanMFTRecord walks the attribute chain of one candidate record; every
// read is bounds checked so a torn record aborts quietly.
func scanMFTRecord(record *sbuf.SBuf, wrecorder *recorder.FeatureRecorder) {
	magic, err := record.Get32(0)
	if err != nil || magic != ntfsMFTMagic {
		return
	}
	nlink, err := record.Get16(16)
	if err != nil || nlink >= 10 {
		return // sanity check, most files have less than 10 links
	}

	lsn, err := record.Get64(8)
	if err != nil {
		return
	}
	seq, err := record.Get16(18)
	if err != nil {
		return
	}
	firstAttrOff, err := record.Get16(20)
	if err != nil {
		return
	}

	mftmap := map[string]string{
		"nlink": strconv.Itoa(int(nlink)),
		"lsn":   strconv.FormatUint(lsn, 10),
		"seq":   strconv.Itoa(int(seq)),
	}
	filename := ""

	attrOff := int(firstAttrOff)
	for attrOff+ntfsAttrHeader < record.BufSize() {
		attrType, err := record.Get32(attrOff)
		if err != nil {
			return
		}
		attrLen, err := record.Get32(attrOff + 4)
		if err != nil {
			return
		}
		if attrLen == 0 {
			break // something is wrong; stop walking
		}
		resident, err := record.Get8(attrOff + 8)
		if err != nil {
			return
		}
		if resident != ntfsAttrRes {
			attrOff += int(attrLen) // only resident attributes carry content here
			continue
		}

		switch attrType {
		case atypeAttrList:
			// counted but not decoded

		case atypeFName:
			soff, err := record.Get16(attrOff + 20)
			if err != nil {
				return
			}
			content := attrOff + int(soff)

			parRef, err := record.Get48(content)
			if err != nil {
				return
			}
			parSeq, err := record.Get16(content + 6)
			if err != nil {
				return
			}
			mftmap["par_ref"] = strconv.FormatUint(parRef, 10)
			mftmap["par_seq"] = strconv.Itoa(int(parSeq))

			times := []string{"crtime_fn", "mtime_fn", "ctime_fn", "atime_fn"}
			for i, key := range times {
				stamp, err := record.Get64(content + 8 + i*8)
				if err != nil {
					return
				}
				mftmap[key] = utils.NewWindowsTime(stamp).ConvertToIsoTime()
			}

			filesizeAlloc, err := record.Get64(content + 40)
			if err != nil {
				return
			}
			if filesizeAlloc > maxPlausibleFilesize {
				goto emit // stop walking, keep what was found
			}
			mftmap["filesize_alloc"] = strconv.FormatUint(filesizeAlloc, 10)

			filesize, err := record.Get64(content + 48)
			if err != nil {
				return
			}
			if filesize > maxPlausibleFilesize {
				goto emit
			}
			mftmap["filesize"] = strconv.FormatUint(filesize, 10)

			attrFlags, err := record.Get64(content + 56)
			if err != nil {
				return
			}
			mftmap["attr_flags"] = strconv.FormatUint(attrFlags, 10)

			nameLen, err := record.Get8(content + 64)
			if err != nil {
				return
			}
			nameBytes, err := record.Slice(content+66, int(nameLen)*2)
			if err != nil {
				return
			}
			filename = utils.DecodeUTF16(nameBytes)
			mftmap["filename"] = filename

		case atypeSI:
			soff, err := record.Get16(attrOff + 20)
			if err != nil {
				return
			}
			content := attrOff + int(soff)
			times := []string{"crtime_si", "mtime_si", "ctime_si", "atime_si"}
			for i, key := range times {
				stamp, err := record.Get64(content + i*8)
				if err != nil {
					return
				}
				mftmap[key] = utils.NewWindowsTime(stamp).ConvertToIsoTime()
			}

		case atypeObjID:
			slen, err := record.Get32(attrOff + 16)
			if err != nil {
				return
			}
			soff, err := record.Get16(attrOff + 20)
			if err != nil {
				return
			}
			content := attrOff + int(soff)
			guids := []struct {
				key     string
				minSlen uint32
			}{
				{"guid_objectid", 16},
				{"guid_birthvolumeid", 32},
				{"guid_birthobjectid", 48},
				{"guid_domainid", 64},
			}
			for i, guid := range guids {
				if slen < guid.minSlen {
					break
				}
				data, err := record.Slice(content+i*16, 16)
				if err != nil {
					return
				}
				mftmap[guid.key] = microsoftGUID(data)
			}
		}

		attrOff += int(attrLen)
	}

emit:
	if len(mftmap) > 3 {
		if filename == "" {
			filename = "$NOFILENAME"
		}
		wrecorder.Write(record.Pos0, filename, dfxml.XMLMap(mftmap, "fileobject", "src='mft'"))
	}
}
