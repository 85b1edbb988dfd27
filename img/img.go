package img

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/aarsakian/ArtifactExtractor/sbuf"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

var (
	ErrNoSuchFile   = errors.New("no such file")
	ErrUnsupported  = errors.New("unsupported")
	ErrInvalidInput = errors.New("invalid input")
	ErrRead         = errors.New("read error")
	ErrEndOfImage   = errors.New("end of image")
)

// Iterator is a block cursor over an image, not an I/O handle. Raw style
// sources advance RawOffset; directory sources advance FileNumber.
type Iterator struct {
	RawOffset  int64
	FileNumber int
	EOF        bool
}

// Process presents a uniform random access byte stream over an evidence
// image and iterates it in overlapping fixed size pages.
type Process interface {
	Open() error
	Size() int64
	PRead(buf []byte, offset int64) (int, error)
	Begin() Iterator
	End() Iterator
	Increment(it *Iterator)
	SBufAlloc(it *Iterator) (*sbuf.SBuf, error)
	MaxBlocks() uint64
	SeekBlock(it *Iterator, block uint64) uint64
	FractionDone(it Iterator) float64
	Str(it Iterator) string
	GetPos0(it Iterator) sbuf.Pos0
	Close() error
}

func filenameExtension(fname string) string {
	ext := filepath.Ext(fname)
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func isMultipartFile(fname string) bool {
	return strings.HasSuffix(fname, ".000") ||
		strings.HasSuffix(fname, ".001") ||
		strings.HasSuffix(fname, "001.vmdk")
}

// Open sniffs the path and constructs the matching image source. Directories
// are only processed when recurse is requested and must not contain segmented
// image parts at their top level.
func Open(fname string, recurse bool, pagesize int, margin int) (Process, error) {
	st, err := os.Stat(fname)
	if err != nil {
		return nil, errors.Wrap(ErrNoSuchFile, fname)
	}

	var process Process
	if st.IsDir() {
		if !recurse {
			return nil, errors.Wrapf(ErrNoSuchFile, "%s is a directory and recursion was not requested", fname)
		}
		entries, err := os.ReadDir(fname)
		if err != nil {
			return nil, errors.Wrap(ErrNoSuchFile, fname)
		}
		for _, entry := range entries {
			ext := filepath.Ext(entry.Name())
			if ext == ".E01" || ext == ".000" || ext == ".001" {
				return nil, errors.Wrapf(ErrInvalidInput,
					"file %s is in directory %s: a directory of image segments must be processed as a single image",
					entry.Name(), fname)
			}
		}
		process = NewDirProcess(afero.NewOsFs(), fname)
	} else {
		ext := filenameExtension(fname)
		switch {
		case ext == "e01" || strings.Contains(fname, ".E01."):
			process, err = newEWFProcess(fname, pagesize, margin)
			if err != nil {
				return nil, err
			}
		case ext == "vmdk" && !isMultipartFile(fname):
			process = NewVMDKProcess(fname, pagesize, margin)
		default:
			process = NewRawProcess(fname, pagesize, margin)
		}
	}

	if err := process.Open(); err != nil {
		if errors.Is(err, ErrNoSuchFile) || errors.Is(err, ErrInvalidInput) ||
			errors.Is(err, ErrUnsupported) || errors.Is(err, ErrRead) {
			return nil, err
		}
		return nil, errors.Wrapf(ErrNoSuchFile, "%s: %v", fname, err)
	}
	return process, nil
}

// iterator helpers shared by the byte addressed sources

func incrementByPage(it *Iterator, pagesize int, size int64) {
	it.RawOffset += int64(pagesize)
	if it.RawOffset > size {
		it.RawOffset = size
	}
	if it.RawOffset == size {
		it.EOF = true
	}
}

func seekBlock(it *Iterator, block uint64, pagesize int, size int64) uint64 {
	if int64(block)*int64(pagesize) > size {
		block = uint64(size / int64(pagesize))
	}
	it.RawOffset = int64(block) * int64(pagesize)
	return block
}

func fractionDone(it Iterator, size int64) float64 {
	if size == 0 {
		return 1.0
	}
	return float64(it.RawOffset) / float64(size)
}
