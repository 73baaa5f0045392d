package pcap

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// pcapng section header block magic.
var ngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// Reader reads packets from a pcap or pcapng file without libpcap.
type Reader struct {
	file     *os.File
	source   gopacket.PacketDataSource
	linkType layers.LinkType
}

// NewReader opens the capture file at filePath and detects its format.
func NewReader(filePath string) (*Reader, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReader(file)
	magic, err := br.Peek(4)
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to read capture header: %w", err)
	}

	r := &Reader{file: file}
	if string(magic) == string(ngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to open pcapng file: %w", err)
		}
		r.source, r.linkType = ng, ng.LinkType()
	} else {
		classic, err := pcapgo.NewReader(br)
		if err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to open pcap file: %w", err)
		}
		r.source, r.linkType = classic, classic.LinkType()
	}
	return r, nil
}

// LinkType returns the link layer of the packets in the file.
func (r *Reader) LinkType() layers.LinkType {
	return r.linkType
}

// Close closes the underlying file.
func (r *Reader) Close() {
	r.file.Close()
}

// ReadPackets decodes every packet in the file and calls handle for it. It
// stops early when ctx is cancelled.
func (r *Reader) ReadPackets(ctx context.Context, handle func(gopacket.Packet)) error {
	packetSource := gopacket.NewPacketSource(r.source, r.linkType)
	packetSource.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		packet, err := packetSource.NextPacket()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read packet: %w", err)
		}
		handle(packet)
	}
}
