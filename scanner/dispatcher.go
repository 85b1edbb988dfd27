package scanner

import (
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/aarsakian/ArtifactExtractor/img"
	"github.com/aarsakian/ArtifactExtractor/logger"
	"github.com/aarsakian/ArtifactExtractor/recorder"
	"github.com/aarsakian/ArtifactExtractor/sbuf"
)

// Dispatcher drives the registered scanners over every page of an image.
// One producer iterates the source; Workers goroutines drain the page
// channel and run the scanners serially per page.
type Dispatcher struct {
	Registry      *Registry
	FeatureSet    *recorder.FeatureSet
	Config        *Config
	Workers       int
	ProgressEvery uint64 // pages between progress log lines, 0 disables

	cancelled int32
}

// Stop requests cooperative cancellation; it is observed between pages, the
// page in flight runs to completion.
func (d *Dispatcher) Stop() {
	atomic.StoreInt32(&d.cancelled, 1)
}

func (d *Dispatcher) stopped() bool {
	return atomic.LoadInt32(&d.cancelled) == 1
}

func (d *Dispatcher) Run(process img.Process) error {
	workers := d.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}

	pages := make(chan *sbuf.SBuf, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sb := range pages {
				if d.stopped() {
					continue // drain without scanning
				}
				d.scanPage(sb)
			}
		}()
	}

	var pageCount uint64
	for it := process.Begin(); !it.EOF; process.Increment(&it) {
		if d.stopped() {
			break
		}
		sb, err := process.SBufAlloc(&it)
		if errors.Is(err, img.ErrEndOfImage) {
			break
		}
		if err != nil {
			logger.ArtifactExtractorlogger.Error(fmt.Sprintf("page at %s skipped: %v", process.Str(it), err))
			continue
		}
		pages <- sb
		pageCount++
		if d.ProgressEvery != 0 && pageCount%d.ProgressEvery == 0 {
			logger.ArtifactExtractorlogger.Info(fmt.Sprintf("%s %.1f%%",
				process.Str(it), 100*process.FractionDone(it)))
		}
	}
	close(pages)
	wg.Wait()
	return nil
}

func (d *Dispatcher) scanPage(sb *sbuf.SBuf) {
	sp := NewScanParams(d.FeatureSet, d.Config, sb)
	for _, scanner := range d.Registry.scanners {
		if !scanner.enabled {
			continue
		}
		if scanner.info.Flags.Depth0Only && sp.Depth > 0 {
			continue
		}
		sp.Info = scanner.info
		scanner.fn(sp)
	}
}
