package img

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/aarsakian/ArtifactExtractor/sbuf"
	"github.com/pkg/errors"
)

// FileSegment maps a byte range of the logical image onto one on disk file.
// Segments are ordered, non overlapping and contiguous.
type FileSegment struct {
	Path   string
	Offset int64
	Length int64
}

// RawProcess reads monolithic raw images and split raw sets (.000/.001 and
// 001.vmdk naming). A single descriptor is kept open and swapped on segment
// boundary crossings.
type RawProcess struct {
	fname    string
	pagesize int
	margin   int

	fileList    []FileSegment
	rawFilesize int64

	currentPath string
	currentFile *os.File
}

func NewRawProcess(fname string, pagesize int, margin int) *RawProcess {
	return &RawProcess{fname: fname, pagesize: pagesize, margin: margin}
}

// makeListTemplate substitutes a 3 digit counter where the trailing digit run
// sits and returns the counter of the next segment to probe.
func makeListTemplate(fname string) (string, int, error) {
	p := strings.LastIndex(fname, "000")
	if p == -1 {
		p = strings.LastIndex(fname, "001")
	}
	if p == -1 {
		return "", 0, errors.Wrapf(ErrInvalidInput, "%s: split image name holds no digit run", fname)
	}
	start, err := strconv.Atoi(fname[p : p+3])
	if err != nil {
		return "", 0, errors.Wrapf(ErrInvalidInput, "%s: %v", fname, err)
	}
	return fname[:p] + "%03d" + fname[p+3:], start + 1, nil
}

func (p *RawProcess) addFile(fname string) error {
	st, err := os.Stat(fname)
	if err != nil {
		return errors.Wrap(ErrNoSuchFile, fname)
	}
	size := st.Size()
	if size == 0 {
		size, err = deviceSize(fname)
		if err != nil {
			return err
		}
	}
	p.fileList = append(p.fileList, FileSegment{Path: fname, Offset: p.rawFilesize, Length: size})
	p.rawFilesize += size
	return nil
}

func (p *RawProcess) Open() error {
	if err := p.addFile(p.fname); err != nil {
		return err
	}
	if isMultipartFile(p.fname) {
		templ, num, err := makeListTemplate(p.fname)
		if err != nil {
			return err
		}
		for ; ; num++ {
			probename := fmt.Sprintf(templ, num)
			if _, err := os.Stat(probename); err != nil {
				break // no more files
			}
			if err := p.addFile(probename); err != nil {
				return err
			}
		}
	}
	return nil
}

func (p *RawProcess) Close() error {
	if p.currentFile != nil {
		err := p.currentFile.Close()
		p.currentFile = nil
		p.currentPath = ""
		return err
	}
	return nil
}

func (p *RawProcess) Size() int64 {
	return p.rawFilesize
}

func (p *RawProcess) Segments() []FileSegment {
	return p.fileList
}

func (p *RawProcess) findOffset(offset int64) *FileSegment {
	for idx := range p.fileList {
		segment := &p.fileList[idx]
		if segment.Offset <= offset && offset < segment.Offset+segment.Length {
			return segment
		}
	}
	return nil
}

// PRead reads across segment boundaries, recursing into the following
// segment when the current one is exhausted.
func (p *RawProcess) PRead(buf []byte, offset int64) (int, error) {
	segment := p.findOffset(offset)
	if segment == nil {
		return 0, nil // nothing to read
	}

	if segment.Path != p.currentPath {
		if p.currentFile != nil {
			p.currentFile.Close()
		}
		file, err := os.Open(segment.Path)
		if err != nil {
			return 0, errors.Wrap(ErrNoSuchFile, segment.Path)
		}
		p.currentFile = file
		p.currentPath = segment.Path
	}

	count := int64(len(buf))
	remaining := segment.Offset + segment.Length - offset
	if count > remaining {
		count = remaining
	}

	got, err := p.currentFile.ReadAt(buf[:count], offset-segment.Offset)
	if err != nil && err != io.EOF {
		return got, errors.Wrapf(ErrRead, "%s at %d: %v", segment.Path, offset, err)
	}
	if got == len(buf) {
		return got, nil
	}
	if got == 0 {
		return 0, nil
	}

	more, err := p.PRead(buf[got:], offset+int64(got))
	if err != nil {
		return got, err
	}
	return got + more, nil
}

func (p *RawProcess) Begin() Iterator {
	return Iterator{}
}

func (p *RawProcess) End() Iterator {
	return Iterator{RawOffset: p.rawFilesize, EOF: true}
}

func (p *RawProcess) Increment(it *Iterator) {
	incrementByPage(it, p.pagesize, p.rawFilesize)
}

func (p *RawProcess) GetPos0(it Iterator) sbuf.Pos0 {
	return sbuf.Pos0{Offset: uint64(it.RawOffset)}
}

func (p *RawProcess) SBufAlloc(it *Iterator) (*sbuf.SBuf, error) {
	count := int64(p.pagesize + p.margin)
	if p.rawFilesize < it.RawOffset+count {
		count = p.rawFilesize - it.RawOffset
	}
	pagesize := p.pagesize
	if int64(pagesize) > count {
		pagesize = int(count)
	}

	buf := make([]byte, count)
	got, err := p.PRead(buf, it.RawOffset)
	if err != nil {
		return nil, err
	}
	if got == 0 {
		it.EOF = true
		return nil, ErrEndOfImage
	}
	if int64(got) < count {
		return nil, errors.Wrapf(ErrRead, "short read of %d of %d bytes at %d", got, count, it.RawOffset)
	}
	return sbuf.New(p.GetPos0(*it), buf, pagesize), nil
}

func (p *RawProcess) MaxBlocks() uint64 {
	return uint64((p.rawFilesize + int64(p.pagesize) - 1) / int64(p.pagesize))
}

func (p *RawProcess) SeekBlock(it *Iterator, block uint64) uint64 {
	return seekBlock(it, block, p.pagesize, p.rawFilesize)
}

func (p *RawProcess) FractionDone(it Iterator) float64 {
	return fractionDone(it, p.rawFilesize)
}

func (p *RawProcess) Str(it Iterator) string {
	return fmt.Sprintf("Offset %dMB", it.RawOffset/1000000)
}
