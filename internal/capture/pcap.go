package capture

import (
	"Go2NetSentinel/internal/metrics"
	"Go2NetSentinel/internal/model"
	pcapfile "Go2NetSentinel/pkg/pcap"
	"context"
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	log "github.com/sirupsen/logrus"
)

const (
	defaultSnapLen int32 = 1600
	promiscuous          = true
	// readTimeout bounds how long a quiet interface delays noticing cancellation.
	readTimeout = 500 * time.Millisecond
)

// LiveSource captures from a network interface through libpcap.
type LiveSource struct {
	iface   string
	snapLen int32
}

// NewLiveSource creates a live capture on iface.
func NewLiveSource(iface string, snapLen int32) *LiveSource {
	if snapLen <= 0 {
		snapLen = defaultSnapLen
	}
	return &LiveSource{iface: iface, snapLen: snapLen}
}

// Name implements Source.
func (s *LiveSource) Name() string { return "pcap" }

// Run captures until ctx is cancelled.
func (s *LiveSource) Run(ctx context.Context, sink model.PacketSink) error {
	handle, err := pcap.OpenLive(s.iface, s.snapLen, promiscuous, readTimeout)
	if err != nil {
		return fmt.Errorf("error opening device %s: %w", s.iface, err)
	}
	defer handle.Close()
	log.Printf("Capture started on interface %s", s.iface)

	packetSource := gopacket.NewPacketSource(handle, handle.LinkType())
	packetSource.DecodeOptions = gopacket.DecodeOptions{Lazy: true, NoCopy: true}
	packets := packetSource.Packets()
	fed := 0
	for {
		select {
		case <-ctx.Done():
			log.Printf("Capture on %s stopped after %d packets", s.iface, fed)
			return nil
		case packet, ok := <-packets:
			if !ok {
				return nil
			}
			if feed(packet, sink, s.Name()) {
				fed++
			}
		}
	}
}

// FileSource replays a pcap or pcapng file.
type FileSource struct {
	path string
}

// NewFileSource creates a source reading the capture file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Name implements Source.
func (s *FileSource) Name() string { return "pcapfile" }

// Run feeds every packet of the file and returns at end of file.
func (s *FileSource) Run(ctx context.Context, sink model.PacketSink) error {
	reader, err := pcapfile.NewReader(s.path)
	if err != nil {
		return fmt.Errorf("failed to open pcap file: %w", err)
	}
	defer reader.Close()
	log.Printf("Reading packets from '%s'...", s.path)

	fed := 0
	err = reader.ReadPackets(ctx, func(packet gopacket.Packet) {
		if feed(packet, sink, s.Name()) {
			fed++
		}
	})
	log.Printf("Finished reading %d packets from '%s'", fed, s.path)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func feed(packet gopacket.Packet, sink model.PacketSink, source string) bool {
	key, pkt, err := ParseGoPacket(packet, time.Now())
	if err != nil {
		metrics.CaptureDropped.WithLabelValues(source).Inc()
		return false
	}
	sink.AddPacket(key, pkt)
	return true
}
