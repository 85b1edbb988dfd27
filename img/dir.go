package img

import (
	"os"
	"sort"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/aarsakian/ArtifactExtractor/sbuf"
)

// DirProcess treats a directory tree as a set of artifacts: the iterator
// addresses files, not bytes, and each file becomes one page with no margin.
type DirProcess struct {
	dir   string
	fs    afero.Fs
	files []string
}

func NewDirProcess(fs afero.Fs, dir string) *DirProcess {
	return &DirProcess{dir: dir, fs: fs}
}

func (p *DirProcess) Open() error {
	err := afero.Walk(p.fs, p.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			p.files = append(p.files, path)
		}
		return nil
	})
	if err != nil {
		return errors.Wrapf(ErrNoSuchFile, "%s: %v", p.dir, err)
	}
	sort.Strings(p.files) // walk order is platform dependent
	return nil
}

func (p *DirProcess) Close() error {
	return nil
}

// Size reports the number of files, not bytes.
func (p *DirProcess) Size() int64 {
	return int64(len(p.files))
}

func (p *DirProcess) PRead(buf []byte, offset int64) (int, error) {
	return 0, errors.Wrap(ErrUnsupported, "directory source does not support pread")
}

func (p *DirProcess) Begin() Iterator {
	return Iterator{}
}

func (p *DirProcess) End() Iterator {
	return Iterator{FileNumber: len(p.files), EOF: true}
}

func (p *DirProcess) Increment(it *Iterator) {
	it.FileNumber++
	if it.FileNumber >= len(p.files) {
		it.FileNumber = len(p.files)
		it.EOF = true
	}
}

func (p *DirProcess) GetPos0(it Iterator) sbuf.Pos0 {
	return sbuf.Pos0{Path: p.files[it.FileNumber]}
}

// SBufAlloc maps the current file as a single page.
func (p *DirProcess) SBufAlloc(it *Iterator) (*sbuf.SBuf, error) {
	if it.FileNumber >= len(p.files) {
		it.EOF = true
		return nil, ErrEndOfImage
	}
	return sbuf.NewMapped(p.fs, p.files[it.FileNumber])
}

func (p *DirProcess) MaxBlocks() uint64 {
	return uint64(len(p.files))
}

func (p *DirProcess) SeekBlock(it *Iterator, block uint64) uint64 {
	if block > uint64(len(p.files)) {
		block = uint64(len(p.files))
	}
	it.FileNumber = int(block)
	return block
}

func (p *DirProcess) FractionDone(it Iterator) float64 {
	if len(p.files) == 0 {
		return 1.0
	}
	return float64(it.FileNumber) / float64(len(p.files))
}

func (p *DirProcess) Str(it Iterator) string {
	if it.FileNumber < len(p.files) {
		return "File " + p.files[it.FileNumber]
	}
	return "File <end>"
}
