package scanner

import (
	"github.com/aarsakian/ArtifactExtractor/recorder"
)

type registeredScanner struct {
	fn      ScannerFunc
	info    *Info
	enabled bool
}

// Registry holds the scanner population. Register before Init; enable and
// disable by the names the scanners declared.
type Registry struct {
	scanners []*registeredScanner
}

func (reg *Registry) Register(fn ScannerFunc) {
	reg.scanners = append(reg.scanners, &registeredScanner{fn: fn, enabled: true})
}

// Init runs the INIT phase of every registered scanner, capturing the
// declared info, and opens the declared feature recorders.
func (reg *Registry) Init(fset *recorder.FeatureSet, config *Config) {
	for _, scanner := range reg.scanners {
		info := &Info{}
		sp := &Params{Phase: PhaseInit, Info: info, apiVersion: APIVersion,
			featureSet: fset, config: config}
		scanner.fn(sp)
		scanner.info = info
		for _, def := range info.FeatureDefs {
			fset.Named(def.Name)
		}
	}
}

// Apply adjusts the enabled set: enable wins over disable, an empty disable
// list leaves everything on.
func (reg *Registry) Apply(enable []string, disable []string) {
	for _, name := range disable {
		for _, scanner := range reg.scanners {
			if scanner.info != nil && scanner.info.Name == name {
				scanner.enabled = false
			}
		}
	}
	for _, name := range enable {
		for _, scanner := range reg.scanners {
			if scanner.info != nil && scanner.info.Name == name {
				scanner.enabled = true
			}
		}
	}
}

func (reg *Registry) Names() []string {
	var names []string
	for _, scanner := range reg.scanners {
		if scanner.info != nil {
			names = append(names, scanner.info.Name)
		}
	}
	return names
}

// Shutdown runs the SHUTDOWN phase of every scanner after EOF.
func (reg *Registry) Shutdown(fset *recorder.FeatureSet, config *Config) {
	for _, scanner := range reg.scanners {
		if !scanner.enabled {
			continue
		}
		sp := &Params{Phase: PhaseShutdown, Info: scanner.info, apiVersion: APIVersion,
			featureSet: fset, config: config}
		scanner.fn(sp)
	}
}
