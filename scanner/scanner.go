package scanner

import (
	"log"

	"github.com/aarsakian/ArtifactExtractor/recorder"
	"github.com/aarsakian/ArtifactExtractor/sbuf"
)

// APIVersion is bumped on incompatible Params changes; scanners assert it at
// INIT through CheckVersion.
const APIVersion = 1

type Phase int

const (
	PhaseInit Phase = iota
	PhaseScan
	PhaseShutdown
)

type Flags struct {
	Depth0Only              bool // only run on top level pages
	ScannerWantsFilesystems bool
}

type FeatureDef struct {
	Name string
}

// Info is filled in by the scanner at INIT and owned by the registry
// afterwards.
type Info struct {
	Name        string
	Author      string
	Description string
	Version     string
	FeatureDefs []FeatureDef
	Flags       Flags
}

// Params is the single argument of every scanner invocation; which fields
// are valid depends on the phase.
type Params struct {
	Phase Phase
	Info  *Info
	SBuf  *sbuf.SBuf // valid only in PhaseScan
	Depth int

	apiVersion int
	featureSet *recorder.FeatureSet
	config     *Config
}

type ScannerFunc func(sp *Params)

// NewScanParams builds the params for one page at depth 0. The dispatcher
// uses it per page; tests use it to drive a single scanner directly.
func NewScanParams(fset *recorder.FeatureSet, config *Config, sb *sbuf.SBuf) *Params {
	return &Params{Phase: PhaseScan, SBuf: sb, apiVersion: APIVersion,
		featureSet: fset, config: config}
}

func (sp *Params) CheckVersion() {
	if sp.apiVersion != APIVersion {
		log.Fatalln("scanner API version mismatch:", sp.apiVersion, "!=", APIVersion)
	}
}

func (sp *Params) NamedFeatureRecorder(name string) *recorder.FeatureRecorder {
	return sp.featureSet.Named(name)
}

func (sp *Params) GetScannerConfig(key string, out interface{}, help string) {
	sp.config.GetScannerConfig(key, out, help)
}
