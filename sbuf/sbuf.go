package sbuf

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/spf13/afero"
)

// Pos0 is the provenance of a byte: the path it came from (empty for reads
// from a raw image) and its byte offset within that source.
type Pos0 struct {
	Path   string
	Offset uint64
}

func (pos0 Pos0) String() string {
	if pos0.Path == "" {
		return fmt.Sprintf("%d", pos0.Offset)
	}
	return fmt.Sprintf("%s|%d", pos0.Path, pos0.Offset)
}

func (pos0 Pos0) Shift(n uint64) Pos0 {
	return Pos0{Path: pos0.Path, Offset: pos0.Offset + n}
}

// RangeError reports a typed read past the end of an SBuf. Scanners catch it
// per candidate record and move on.
type RangeError struct {
	Off     int
	Length  int
	BufSize int
}

func (e RangeError) Error() string {
	return fmt.Sprintf("sbuf: read of %d bytes at %d past end %d", e.Length, e.Off, e.BufSize)
}

// SBuf is a read only window of bytes anchored at Pos0. The first PageSize
// bytes belong to this page; the remainder is margin owned by the next page,
// visible so that artifacts straddling a page boundary can be carved by the
// page containing their first byte.
type SBuf struct {
	Pos0     Pos0
	Data     []byte
	PageSize int

	parent *SBuf // child slices keep the parent storage alive
}

func New(pos0 Pos0, data []byte, pagesize int) *SBuf {
	if pagesize > len(data) {
		pagesize = len(data)
	}
	return &SBuf{Pos0: pos0, Data: data, PageSize: pagesize}
}

// NewChild slices length bytes starting at off, sharing the parent's storage.
// The slice is clipped to the parent's buffer.
func NewChild(parent *SBuf, off int, length int) *SBuf {
	if off > len(parent.Data) {
		off = len(parent.Data)
	}
	if off+length > len(parent.Data) {
		length = len(parent.Data) - off
	}
	data := parent.Data[off : off+length]
	return &SBuf{Pos0: parent.Pos0.Shift(uint64(off)), Data: data, PageSize: len(data), parent: parent}
}

// NewMapped reads an entire file as a single page with no margin.
func NewMapped(fs afero.Fs, path string) (*SBuf, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, err
	}
	return &SBuf{Pos0: Pos0{Path: path}, Data: data, PageSize: len(data)}, nil
}

func (sb *SBuf) BufSize() int {
	return len(sb.Data)
}

func (sb *SBuf) check(off int, length int) error {
	if off < 0 || length < 0 || off+length > len(sb.Data) {
		return RangeError{Off: off, Length: length, BufSize: len(sb.Data)}
	}
	return nil
}

func (sb *SBuf) Get8(off int) (uint8, error) {
	if err := sb.check(off, 1); err != nil {
		return 0, err
	}
	return sb.Data[off], nil
}

func (sb *SBuf) Get16(off int) (uint16, error) {
	if err := sb.check(off, 2); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(sb.Data[off:]), nil
}

func (sb *SBuf) Get32(off int) (uint32, error) {
	if err := sb.check(off, 4); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(sb.Data[off:]), nil
}

func (sb *SBuf) Get64(off int) (uint64, error) {
	if err := sb.check(off, 8); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(sb.Data[off:]), nil
}

func (sb *SBuf) Get16BE(off int) (uint16, error) {
	if err := sb.check(off, 2); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(sb.Data[off:]), nil
}

func (sb *SBuf) Get32BE(off int) (uint32, error) {
	if err := sb.check(off, 4); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(sb.Data[off:]), nil
}

// Get48 reads a 6 byte little endian value, used by MFT parent references.
func (sb *SBuf) Get48(off int) (uint64, error) {
	if err := sb.check(off, 6); err != nil {
		return 0, err
	}
	var val uint64
	for i := 0; i < 6; i++ {
		val |= uint64(sb.Data[off+i]) << uint(i*8)
	}
	return val, nil
}

func (sb *SBuf) Slice(off int, length int) ([]byte, error) {
	if err := sb.check(off, length); err != nil {
		return nil, err
	}
	return sb.Data[off : off+length], nil
}

// Find returns the index of the first occurrence of needle at or after start,
// or -1.
func (sb *SBuf) Find(needle []byte, start int) int {
	if start < 0 || start >= len(sb.Data) {
		return -1
	}
	idx := bytes.Index(sb.Data[start:], needle)
	if idx == -1 {
		return -1
	}
	return start + idx
}

// IsConstant reports whether the buffer is a run of a single byte value.
func (sb *SBuf) IsConstant() bool {
	if len(sb.Data) == 0 {
		return true
	}
	first := sb.Data[0]
	for _, b := range sb.Data[1:] {
		if b != first {
			return false
		}
	}
	return true
}
