// Scans for Microsoft directory and MFT structures without mounting the
// filesystem they came from.
package windirs

import (
	"time"

	"github.com/aarsakian/ArtifactExtractor/scanner"
)

const clustersIn1GiB = 2 * 1024 * 1024

// Config holds the FAT32 weirdness tuning, built once at INIT and treated
// as immutable by the validators.
type Config struct {
	WeirdFileSize      uint32
	WeirdFileSize2     uint32
	WeirdClusterCount  uint32
	WeirdClusterCount2 uint32
	MaxBitsInAttrib    uint32
	MaxWeirdCount      uint32
	LastYear           uint32
}

func DefaultConfig() Config {
	return Config{
		WeirdFileSize:      1024 * 1024 * 150,
		WeirdFileSize2:     1024 * 1024 * 512,
		WeirdClusterCount:  32 * clustersIn1GiB,  // smaller than 32GB with 512 byte clusters
		WeirdClusterCount2: 128 * clustersIn1GiB, // smaller than 512GB with 512 byte clusters
		MaxBitsInAttrib:    3,
		MaxWeirdCount:      2,
		LastYear:           uint32(time.Now().UTC().Year() + 5), // allow up to 5 years in the future
	}
}

type Scanner struct {
	cfg Config
}

func NewScanner() *Scanner {
	return &Scanner{}
}

func (s *Scanner) Process(sp *scanner.Params) {
	switch sp.Phase {
	case scanner.PhaseInit:
		sp.CheckVersion()
		sp.Info.Name = "windirs"
		sp.Info.Author = ""
		sp.Info.Description = "Scans Microsoft directory structures"
		sp.Info.Version = "1.0"
		sp.Info.Flags.ScannerWantsFilesystems = true
		sp.Info.Flags.Depth0Only = true
		sp.Info.FeatureDefs = append(sp.Info.FeatureDefs, scanner.FeatureDef{Name: "windirs"})

		cfg := DefaultConfig()
		sp.GetScannerConfig("opt_weird_file_size", &cfg.WeirdFileSize, "Threshold for FAT32 scanner")
		sp.GetScannerConfig("opt_weird_file_size2", &cfg.WeirdFileSize2, "Threshold for FAT32 scanner")
		sp.GetScannerConfig("opt_weird_cluster_count", &cfg.WeirdClusterCount, "Threshold for FAT32 scanner")
		sp.GetScannerConfig("opt_weird_cluster_count2", &cfg.WeirdClusterCount2, "Threshold for FAT32 scanner")
		sp.GetScannerConfig("opt_max_bits_in_attrib", &cfg.MaxBitsInAttrib,
			"Ignore FAT32 entries with more attributes set than this")
		sp.GetScannerConfig("opt_max_weird_count", &cfg.MaxWeirdCount, "Number of 'weird' counts to ignore a FAT32 entry")
		sp.GetScannerConfig("opt_last_year", &cfg.LastYear, "Ignore FAT32 entries with a later year than this")
		s.cfg = cfg

	case scanner.PhaseScan:
		wrecorder := sp.NamedFeatureRecorder("windirs")
		scanFATDirs(sp.SBuf, wrecorder, s.cfg)
		scanNTFSDirs(sp.SBuf, wrecorder, s.cfg)

	case scanner.PhaseShutdown:
		// no shutdown work
	}
}
