package recorder

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/aarsakian/ArtifactExtractor/sbuf"
)

// FeatureSet owns the named feature recorders of a run. Recorders are opened
// lazily on first lookup and live until CloseAll.
type FeatureSet struct {
	fs     afero.Fs
	outdir string

	mu        sync.Mutex
	recorders map[string]*FeatureRecorder
}

func NewFeatureSet(fs afero.Fs, outdir string) (*FeatureSet, error) {
	if err := fs.MkdirAll(outdir, 0755); err != nil {
		return nil, errors.Wrapf(err, "cannot create output directory %s", outdir)
	}
	return &FeatureSet{fs: fs, outdir: outdir, recorders: make(map[string]*FeatureRecorder)}, nil
}

// Named returns the recorder for name, opening its feature file on first use.
// The returned reference is stable for the lifetime of the set.
func (fset *FeatureSet) Named(name string) *FeatureRecorder {
	fset.mu.Lock()
	defer fset.mu.Unlock()

	if recorder, ok := fset.recorders[name]; ok {
		return recorder
	}
	path := filepath.Join(fset.outdir, name+".txt")
	file, err := fset.fs.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Fatalln("cannot open feature file", path, err)
	}
	recorder := &FeatureRecorder{Name: name, file: file}
	recorder.writeLine(fmt.Sprintf("# Feature-Recorder: %s", name))
	fset.recorders[name] = recorder
	return recorder
}

func (fset *FeatureSet) CloseAll() error {
	fset.mu.Lock()
	defer fset.mu.Unlock()

	var firstErr error
	for _, recorder := range fset.recorders {
		if err := recorder.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// FeatureRecorder is a named append only sink. Writes are serialized by an
// internal mutex; ordering across recorders is undefined.
type FeatureRecorder struct {
	Name string

	mu   sync.Mutex
	file afero.File
}

func (r *FeatureRecorder) writeLine(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, err := r.file.Write([]byte(line + "\n")); err != nil {
		log.Fatalln("feature recorder", r.Name, "write failed:", err)
	}
}

// Write appends one feature line: position, feature, context, tab separated.
func (r *FeatureRecorder) Write(pos0 sbuf.Pos0, feature string, context string) {
	r.writeLine(pos0.String() + "\t" + Escape(feature) + "\t" + Escape(context))
}

// WriteBuf copies a slice of the page as the feature body, clipped to the
// buffer bounds.
func (r *FeatureRecorder) WriteBuf(sb *sbuf.SBuf, start int, length int) {
	if start < 0 || start >= sb.BufSize() || length <= 0 {
		return
	}
	if start+length > sb.BufSize() {
		length = sb.BufSize() - start
	}
	data, err := sb.Slice(start, length)
	if err != nil {
		return
	}
	r.Write(sb.Pos0.Shift(uint64(start)), string(data), "")
}

func (r *FeatureRecorder) close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.file.Close()
}

// Escape renders feature bytes printable: tabs, newlines and non ASCII bytes
// become \xNN so one feature stays one line.
func Escape(s string) string {
	var out []byte
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '\t' || ch == '\n' || ch == '\r' || ch == '\\' || ch < 0x20 || ch > 0x7e {
			out = append(out, []byte(fmt.Sprintf("\\x%02X", ch))...)
		} else {
			out = append(out, ch)
		}
	}
	return string(out)
}
