package pcapwriter

import (
	"encoding/binary"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/spf13/afero"

	"github.com/aarsakian/ArtifactExtractor/sbuf"
)

const (
	PCAPMagic         = 0xa1b2c3d4
	PCAPMaxPktLen     = 65535
	TCPDumpHeaderSize = 24
	EtherHeadLen      = 14
	DLTEn10MB         = 1
	DLTRaw            = 101
)

// PacketHeader carries the libpcap per record fields.
type PacketHeader struct {
	Seconds  uint32
	USeconds uint32
	CapLen   uint32
	PktLen   uint32
}

// Writer maintains the single pcap output file. The file is created lazily
// on the first packet, global header included, inside the same critical
// section that serializes the packet writes.
type Writer struct {
	fs      afero.Fs
	outpath string

	mu   sync.Mutex
	fcap afero.File
}

func NewWriter(fs afero.Fs, outpath string) *Writer {
	return &Writer{fs: fs, outpath: outpath}
}

func write4(buf []byte, val uint32) []byte {
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], val)
	return append(buf, scratch[:]...)
}

func write2(buf []byte, val uint16) []byte {
	var scratch [2]byte
	binary.LittleEndian.PutUint16(scratch[:], val)
	return append(buf, scratch[:]...)
}

func (w *Writer) openLocked() error {
	file, err := w.fs.OpenFile(w.outpath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return errors.Wrapf(err, "cannot open %s for writing", w.outpath)
	}
	var header []byte
	header = write4(header, PCAPMagic)
	header = write2(header, 2) // major version number
	header = write2(header, 4) // minor version number
	header = write4(header, 0) // time zone offset; always 0
	header = write4(header, 0) // time stamp accuracy; always 0
	header = write4(header, PCAPMaxPktLen)
	header = write4(header, DLTEn10MB)
	if _, err := file.Write(header); err != nil {
		file.Close()
		return errors.Wrapf(err, "cannot write pcap header to %s", w.outpath)
	}
	w.fcap = file
	return nil
}

// WritePacket appends one record, optionally forging an Ethernet II frame
// around it so raw packets can coexist in an ethernet pcap file. Packet
// order in the file is mutex acquisition order, nothing more.
func (w *Writer) WritePacket(h PacketHeader, sb *sbuf.SBuf, pos int, addFrame bool, frameType uint16) error {
	packet, err := sb.Slice(pos, int(h.CapLen))
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fcap == nil {
		if err := w.openLocked(); err != nil {
			return err
		}
	}

	// skip synthesis when the frame would not fit in a pcap packet
	addFrameAndSafe := addFrame && h.CapLen+EtherHeadLen <= PCAPMaxPktLen

	forgedHeaderLen := uint32(0)
	var forgedHeader [EtherHeadLen]byte
	if addFrameAndSafe {
		forgedHeaderLen = EtherHeadLen
		// zero source and destination; the type is the caller's
		forgedHeader[EtherHeadLen-2] = byte(frameType >> 8)
		forgedHeader[EtherHeadLen-1] = byte(frameType)
	}

	var record []byte
	record = write4(record, h.Seconds)
	record = write4(record, h.USeconds)
	record = write4(record, h.CapLen+forgedHeaderLen)
	record = write4(record, h.PktLen+forgedHeaderLen)
	if addFrameAndSafe {
		record = append(record, forgedHeader[:]...)
	}
	record = append(record, packet...)

	if _, err := w.fcap.Write(record); err != nil {
		return errors.Wrapf(err, "cannot write packet to %s", w.outpath)
	}
	return nil
}

func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fcap != nil {
		err := w.fcap.Close()
		w.fcap = nil
		return err
	}
	return nil
}
