package main

import (
	"flag"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	EWFLogger "github.com/aarsakian/EWF_Reader/logger"
	VMDKLogger "github.com/aarsakian/VMDK_Reader/logger"
	"github.com/spf13/afero"

	"github.com/aarsakian/ArtifactExtractor/img"
	AELogger "github.com/aarsakian/ArtifactExtractor/logger"
	"github.com/aarsakian/ArtifactExtractor/recorder"
	"github.com/aarsakian/ArtifactExtractor/scanner"
	"github.com/aarsakian/ArtifactExtractor/scanners/facebook"
	"github.com/aarsakian/ArtifactExtractor/scanners/pcapwriter"
	"github.com/aarsakian/ArtifactExtractor/scanners/windirs"
	"github.com/aarsakian/ArtifactExtractor/utils"
)

type multiFlag []string

func (m *multiFlag) String() string {
	return strings.Join(*m, ",")
}

func (m *multiFlag) Set(value string) error {
	*m = append(*m, value)
	return nil
}

func main() {
	imagefile := flag.String("image", "", "path to the evidence: raw or split raw image, E01, vmdk, or a directory tree")
	recurse := flag.Bool("R", false, "process a directory of files instead of a disk image")
	outdir := flag.String("o", "artifactextractor_out", "output directory for the feature files")
	pagesize := flag.Int("pagesize", 16*1024*1024, "bytes per page handed to the scanners")
	margin := flag.Int("margin", 4*1024*1024, "page overlap so artifacts crossing a boundary stay visible")
	workers := flag.Int("workers", 0, "number of scanner worker threads, 0 uses the core count")
	enable := flag.String("enable", "", "scanners to enable, use comma as a seperator.")
	disable := flag.String("disable", "", "scanners to disable, use comma as a seperator.")
	configfile := flag.String("config", "", "optional YAML file with scanner tuning values")
	var settings multiFlag
	flag.Var(&settings, "S", "set a scanner tuning value as key=value, repeatable")
	listScanners := flag.Bool("listscanners", false, "list the registered scanners and their tuning surface")
	progress := flag.Uint64("progress", 64, "pages between progress log lines, 0 disables")
	logactive := flag.Bool("log", false, "enable logging")

	flag.Parse() //ready to parse

	if *logactive {
		now := time.Now()
		logfilename := "logs" + now.Format("2006-01-02T15_04_05") + ".txt"
		AELogger.InitializeLogger(*logactive, logfilename)
		EWFLogger.InitializeLogger(*logactive, logfilename)
		VMDKLogger.InitializeLogger(*logactive, logfilename)
	}

	config := scanner.NewConfig()
	if *configfile != "" {
		if err := config.LoadFile(*configfile); err != nil {
			log.Fatalln(err)
		}
	}
	for _, setting := range settings {
		key, value, found := strings.Cut(setting, "=")
		if !found {
			log.Fatalln("-S needs key=value, got", setting)
		}
		config.Set(key, value)
	}

	fs := afero.NewOsFs()
	fset, err := recorder.NewFeatureSet(fs, *outdir)
	if err != nil {
		log.Fatalln(err)
	}

	var registry scanner.Registry
	registry.Register(windirs.NewScanner().Process)
	registry.Register(pcapwriter.NewScanner(fs, filepath.Join(*outdir, pcapwriter.OutputFilename)).Process)
	registry.Register(facebook.Scan)
	registry.Init(fset, config)

	if *listScanners {
		for _, name := range registry.Names() {
			fmt.Println(name)
		}
		for _, doc := range config.Docs() {
			fmt.Printf("  -S %s=%s\t%s\n", doc.Key, doc.Default, doc.Help)
		}
		return
	}

	if *imagefile == "" {
		log.Fatalln("no image given, use -image")
	}

	var enabled, disabled []string
	if *enable != "" {
		enabled = utils.GetEntries(*enable)
	}
	if *disable != "" {
		disabled = utils.GetEntries(*disable)
	}
	registry.Apply(enabled, disabled)

	process, err := img.Open(*imagefile, *recurse, *pagesize, *margin)
	if err != nil {
		log.Fatalln(err)
	}
	defer process.Close()

	if detailer, ok := process.(interface{ Details() []string }); ok {
		for _, detail := range detailer.Details() {
			AELogger.ArtifactExtractorlogger.Info(detail)
		}
	}

	dispatcher := scanner.Dispatcher{
		Registry:      &registry,
		FeatureSet:    fset,
		Config:        config,
		Workers:       *workers,
		ProgressEvery: *progress,
	}
	if err := dispatcher.Run(process); err != nil {
		log.Fatalln(err)
	}
	registry.Shutdown(fset, config)

	if err := fset.CloseAll(); err != nil {
		log.Fatalln(err)
	}
}
