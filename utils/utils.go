package utils

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/encoding/unicode"
)

// WindowsTime 100ns ticks since 1601-01-01 UTC
type WindowsTime struct {
	Stamp uint64
}

const windowsToUnixSecs = 11644473600

func NewWindowsTime(stamp uint64) WindowsTime {
	return WindowsTime{Stamp: stamp}
}

func (winTime WindowsTime) ConvertToIsoTime() string {
	secs := int64(winTime.Stamp/10000000) - windowsToUnixSecs
	return time.Unix(secs, 0).UTC().Format("2006-01-02T15:04:05Z")
}

func Hexify(barray []byte) string {
	return hex.EncodeToString(barray)
}

func DecodeUTF16(b []byte) string {
	decoder := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder()
	decoded, err := decoder.Bytes(b)
	if err != nil {
		return ""
	}
	return string(decoded)
}

// FindEvidenceFiles locates the segment files of an EWF evidence set. The
// segments share the directory of the first file and differ only in their
// extension (.E01, .E02, ...) or, for MD5 suffixed sets, in the characters
// after the ".E01." marker.
func FindEvidenceFiles(path string) []string {
	dirname := filepath.Dir(path)
	basename := filepath.Base(path)

	var prefix string
	if idx := strings.Index(basename, ".E01."); idx != -1 {
		prefix = basename[:idx]
	} else {
		prefix = strings.TrimSuffix(basename, filepath.Ext(basename))
	}

	entries, err := os.ReadDir(dirname)
	if err != nil {
		return []string{path}
	}

	var filenames []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasPrefix(name, prefix+".") {
			continue
		}
		rest := name[len(prefix)+1:]
		if len(rest) < 3 || (rest[0] != 'E' && rest[0] != 'e' && rest[0] != 'L' && rest[0] != 'l') {
			continue
		}
		filenames = append(filenames, filepath.Join(dirname, name))
	}
	if len(filenames) == 0 {
		return []string{path}
	}
	sort.Strings(filenames)
	return filenames
}

func GetEntries(selected string) []string {
	return strings.Split(selected, ",")
}

func StringifyGUID(barray []byte) string {
	s := []string{Hexify(barray[0:4]), Hexify(barray[4:6]), Hexify(barray[6:8]),
		Hexify(barray[8:10]), Hexify(barray[10:16])}
	return strings.Join(s, "-")
}
