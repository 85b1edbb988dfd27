package img

import (
	"fmt"
	"os"
	"path/filepath"

	extent "github.com/aarsakian/VMDK_Reader/extent"
	"github.com/pkg/errors"

	"github.com/aarsakian/ArtifactExtractor/sbuf"
)

// VMDKProcess reads monolithic sparse VMDK images through the extent
// library. Split raw sets named 001.vmdk stay with RawProcess.
type VMDKProcess struct {
	fname    string
	pagesize int
	margin   int

	extents extent.Extents
	hdSize  int64
}

func NewVMDKProcess(fname string, pagesize int, margin int) *VMDKProcess {
	return &VMDKProcess{fname: fname, pagesize: pagesize, margin: margin}
}

func (p *VMDKProcess) Open() error {
	if _, err := os.Stat(p.fname); err != nil {
		return errors.Wrap(ErrNoSuchFile, p.fname)
	}
	p.extents = extent.ProcessExtents(p.fname)
	p.hdSize = p.extents.GetHDSize()
	return nil
}

func (p *VMDKProcess) Close() error {
	return nil
}

func (p *VMDKProcess) Size() int64 {
	return p.hdSize
}

func (p *VMDKProcess) PRead(buf []byte, offset int64) (int, error) {
	if offset >= p.hdSize {
		return 0, nil
	}
	count := int64(len(buf))
	if offset+count > p.hdSize {
		count = p.hdSize - offset
	}
	data := p.extents.RetrieveData(filepath.Dir(p.fname), offset, count)
	if int64(len(data)) < count {
		return copy(buf, data), errors.Wrapf(ErrRead, "vmdk read of %d bytes at %d returned %d", count, offset, len(data))
	}
	return copy(buf, data[:count]), nil
}

func (p *VMDKProcess) Begin() Iterator {
	return Iterator{}
}

func (p *VMDKProcess) End() Iterator {
	return Iterator{RawOffset: p.hdSize, EOF: true}
}

func (p *VMDKProcess) Increment(it *Iterator) {
	incrementByPage(it, p.pagesize, p.hdSize)
}

func (p *VMDKProcess) GetPos0(it Iterator) sbuf.Pos0 {
	return sbuf.Pos0{Offset: uint64(it.RawOffset)}
}

func (p *VMDKProcess) SBufAlloc(it *Iterator) (*sbuf.SBuf, error) {
	count := int64(p.pagesize + p.margin)
	if p.hdSize < it.RawOffset+count {
		count = p.hdSize - it.RawOffset
	}
	pagesize := p.pagesize
	if int64(pagesize) > count {
		pagesize = int(count)
	}
	if count == 0 {
		it.EOF = true
		return nil, ErrEndOfImage
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
	return sbuf.New(p.GetPos0(*it), buf, pagesize), nil
}

func (p *VMDKProcess) MaxBlocks() uint64 {
	return uint64((p.hdSize + int64(p.pagesize) - 1) / int64(p.pagesize))
}

func (p *VMDKProcess) SeekBlock(it *Iterator, block uint64) uint64 {
	return seekBlock(it, block, p.pagesize, p.hdSize)
}

func (p *VMDKProcess) FractionDone(it Iterator) float64 {
	return fractionDone(it, p.hdSize)
}

func (p *VMDKProcess) Str(it Iterator) string {
	return fmt.Sprintf("Offset %dMB", it.RawOffset/1000000)
}
