package pcapwriter

import (
	"github.com/spf13/afero"

	"github.com/aarsakian/ArtifactExtractor/recorder"
	"github.com/aarsakian/ArtifactExtractor/sbuf"
	"github.com/aarsakian/ArtifactExtractor/scanner"
)

// OutputFilename is the single pcap file all carved packets end up in.
const OutputFilename = "packets.pcap"

// the libpcap magic number as it appears on disk, little endian
var pcapFileMagic = []byte{0xd4, 0xc3, 0xb2, 0xa1}

// Scanner carves embedded pcap files out of pages and replays their records
// into the output file, forging Ethernet II frames around raw packets so
// everything coexists in one EN10MB capture.
type Scanner struct {
	writer *Writer
}

func NewScanner(fs afero.Fs, outpath string) *Scanner {
	return &Scanner{writer: NewWriter(fs, outpath)}
}

func (s *Scanner) Writer() *Writer {
	return s.writer
}

func (s *Scanner) Process(sp *scanner.Params) {
	switch sp.Phase {
	case scanner.PhaseInit:
		sp.CheckVersion()
		sp.Info.Name = "pcap_writer"
		sp.Info.Author = ""
		sp.Info.Description = "Carves pcap files, synthesizing link layer frames around raw packets"
		sp.Info.Version = "1.0"
		sp.Info.FeatureDefs = append(sp.Info.FeatureDefs,
			scanner.FeatureDef{Name: "ip"},
			scanner.FeatureDef{Name: "tcp"},
			scanner.FeatureDef{Name: "ether"})

	case scanner.PhaseScan:
		s.carvePCAPFiles(sp)

	case scanner.PhaseShutdown:
		s.writer.Close()
	}
}

func (s *Scanner) carvePCAPFiles(sp *scanner.Params) {
	sb := sp.SBuf
	ipRecorder := sp.NamedFeatureRecorder("ip")
	etherRecorder := sp.NamedFeatureRecorder("ether")

	// only files starting inside the page belong to it; the margin is the
	// next page's territory
	for start := 0; start < sb.PageSize; {
		location := sb.Find(pcapFileMagic, start)
		if location == -1 || location >= sb.PageSize {
			break
		}
		next, carved := s.carveOnePCAPFile(sb, location, ipRecorder, etherRecorder)
		if carved == 0 {
			start = location + 1
			continue
		}
		start = next
	}
}

// carveOnePCAPFile replays the records of one candidate pcap file starting
// at off. It returns the offset where carving stopped and the record count.
func (s *Scanner) carveOnePCAPFile(sb *sbuf.SBuf, off int,
	ipRecorder *recorder.FeatureRecorder, etherRecorder *recorder.FeatureRecorder) (int, int) {

	major, err := sb.Get16(off + 4)
	if err != nil || major != 2 {
		return off, 0
	}
	linktype, err := sb.Get32(off + 20)
	if err != nil {
		return off, 0
	}

	cursor := off + TCPDumpHeaderSize
	carved := 0
	for {
		tsSec, err := sb.Get32(cursor)
		if err != nil {
			break
		}
		tsUsec, err := sb.Get32(cursor + 4)
		if err != nil {
			break
		}
		inclLen, err := sb.Get32(cursor + 8)
		if err != nil {
			break
		}
		origLen, err := sb.Get32(cursor + 12)
		if err != nil {
			break
		}
		if inclLen == 0 || inclLen > PCAPMaxPktLen || origLen < inclLen {
			break
		}
		if _, err := sb.Slice(cursor+16, int(inclLen)); err != nil {
			break
		}

		h := PacketHeader{Seconds: tsSec, USeconds: tsUsec, CapLen: inclLen, PktLen: origLen}
		pos0 := sb.Pos0.Shift(uint64(cursor + 16))
		if linktype == DLTRaw {
			if err := s.writer.WritePacket(h, sb, cursor+16, true, 0x0800); err == nil {
				ipRecorder.Write(pos0, "carved raw packet", "")
			}
		} else {
			if err := s.writer.WritePacket(h, sb, cursor+16, false, 0); err == nil {
				etherRecorder.Write(pos0, "carved packet", "")
			}
		}
		carved++
		cursor += 16 + int(inclLen)
	}
	return cursor, carved
}
