//go:build !noewf

package img

import (
	"fmt"
	"os"

	ewfLib "github.com/aarsakian/EWF_Reader/ewf"
	"github.com/pkg/errors"

	"github.com/aarsakian/ArtifactExtractor/sbuf"
	"github.com/aarsakian/ArtifactExtractor/utils"
)

// EWFProcess reads EnCase Expert Witness evidence through the EWF library.
// Chunk decompression and checksums are the library's concern.
type EWFProcess struct {
	fname    string
	pagesize int
	margin   int

	ewfImage    ewfLib.EWF_Image
	ewfFilesize int64
	details     []string
}

func newEWFProcess(fname string, pagesize int, margin int) (Process, error) {
	return &EWFProcess{fname: fname, pagesize: pagesize, margin: margin}, nil
}

func (p *EWFProcess) Open() error {
	filenames := utils.FindEvidenceFiles(p.fname)
	for _, filename := range filenames {
		if _, err := os.Stat(filename); err != nil {
			return errors.Wrap(ErrNoSuchFile, filename)
		}
	}

	var ewfImage ewfLib.EWF_Image
	ewfImage.ParseEvidence(filenames)
	p.ewfImage = ewfImage
	p.ewfFilesize = int64(ewfImage.Chuncksize) * int64(ewfImage.NofChunks)

	p.details = append(p.details, fmt.Sprintf("SEGMENTS: %d", len(filenames)))
	for _, filename := range filenames {
		p.details = append(p.details, fmt.Sprintf("SEGMENT: %s", filename))
	}
	p.details = append(p.details, fmt.Sprintf("CHUNK SIZE: %d", int64(ewfImage.Chuncksize)))
	p.details = append(p.details, fmt.Sprintf("NUMBER OF CHUNKS: %d", int64(ewfImage.NofChunks)))
	p.details = append(p.details, fmt.Sprintf("MEDIA SIZE: %d", p.ewfFilesize))
	return nil
}

func (p *EWFProcess) Close() error {
	return nil
}

// Details returns the informational list collected at open.
func (p *EWFProcess) Details() []string {
	return p.details
}

func (p *EWFProcess) Size() int64 {
	return p.ewfFilesize
}

func (p *EWFProcess) PRead(buf []byte, offset int64) (int, error) {
	if offset >= p.ewfFilesize {
		return 0, nil
	}
	count := int64(len(buf))
	if offset+count > p.ewfFilesize {
		count = p.ewfFilesize - offset
	}
	data := p.ewfImage.RetrieveData(offset, count)
	if int64(len(data)) < count {
		return copy(buf, data), errors.Wrapf(ErrRead, "ewf read of %d bytes at %d returned %d", count, offset, len(data))
	}
	return copy(buf, data[:count]), nil
}

func (p *EWFProcess) Begin() Iterator {
	return Iterator{}
}

func (p *EWFProcess) End() Iterator {
	return Iterator{RawOffset: p.ewfFilesize, EOF: true}
}

func (p *EWFProcess) Increment(it *Iterator) {
	incrementByPage(it, p.pagesize, p.ewfFilesize)
}

func (p *EWFProcess) GetPos0(it Iterator) sbuf.Pos0 {
	return sbuf.Pos0{Offset: uint64(it.RawOffset)}
}

func (p *EWFProcess) SBufAlloc(it *Iterator) (*sbuf.SBuf, error) {
	count := int64(p.pagesize + p.margin)
	if p.ewfFilesize < it.RawOffset+count {
		count = p.ewfFilesize - it.RawOffset
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

func (p *EWFProcess) MaxBlocks() uint64 {
	return uint64(p.ewfFilesize / int64(p.pagesize))
}

func (p *EWFProcess) SeekBlock(it *Iterator, block uint64) uint64 {
	return seekBlock(it, block, p.pagesize, p.ewfFilesize)
}

func (p *EWFProcess) FractionDone(it Iterator) float64 {
	return fractionDone(it, p.ewfFilesize)
}

func (p *EWFProcess) Str(it Iterator) string {
	return fmt.Sprintf("Offset %dMB", it.RawOffset/1000000)
}
