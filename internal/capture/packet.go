package capture

import (
	"Go2NetSentinel/internal/features"
	"Go2NetSentinel/internal/model"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// ParsePacket decodes a raw Ethernet frame captured at ts.
func ParsePacket(data []byte, ts time.Time) (model.FlowKey, model.Packet, error) {
	packet := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.DecodeOptions{Lazy: true, NoCopy: true})
	return ParseGoPacket(packet, ts)
}

// ParseGoPacket extracts the flow key and per-packet fields of a decoded packet.
// The timestamp comes from the packet metadata when present, otherwise ts.
// Packets without an IP layer are rejected.
func ParseGoPacket(packet gopacket.Packet, ts time.Time) (model.FlowKey, model.Packet, error) {
	if meta := packet.Metadata(); meta != nil && !meta.Timestamp.IsZero() {
		ts = meta.Timestamp
	}

	var (
		key    model.FlowKey
		length int
		proto  layers.IPProtocol
	)
	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		key.SrcIP, key.DstIP = ip.SrcIP.String(), ip.DstIP.String()
		length = int(ip.Length)
		proto = ip.Protocol
	} else if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		ip := l.(*layers.IPv6)
		key.SrcIP, key.DstIP = ip.SrcIP.String(), ip.DstIP.String()
		// IPv6 payload length excludes the fixed 40-byte header.
		length = int(ip.Length) + 40
		proto = ip.NextHeader
	} else {
		return model.FlowKey{}, model.Packet{}, fmt.Errorf("not an IP packet")
	}
	if length <= 0 {
		length = len(packet.Data())
	}
	key.Protocol = features.ClassifyProtocol(strconv.Itoa(int(proto)))

	pkt := model.Packet{Timestamp: ts, Length: length}
	if l := packet.Layer(layers.LayerTypeTCP); l != nil {
		tcp := l.(*layers.TCP)
		key.SrcPort = uint16(tcp.SrcPort)
		key.DstPort = uint16(tcp.DstPort)
		pkt.Flags = TCPFlagLetters(tcp)
	} else if l := packet.Layer(layers.LayerTypeUDP); l != nil {
		udp := l.(*layers.UDP)
		key.SrcPort = uint16(udp.SrcPort)
		key.DstPort = uint16(udp.DstPort)
	}
	return key, pkt, nil
}

// TCPFlagLetters renders the set flags of a segment as letters in the order
// C E U A P R S F, e.g. "AS" for a SYN-ACK.
func TCPFlagLetters(tcp *layers.TCP) string {
	var b strings.Builder
	for _, f := range []struct {
		set    bool
		letter byte
	}{
		{tcp.CWR, 'C'}, {tcp.ECE, 'E'}, {tcp.URG, 'U'}, {tcp.ACK, 'A'},
		{tcp.PSH, 'P'}, {tcp.RST, 'R'}, {tcp.SYN, 'S'}, {tcp.FIN, 'F'},
	} {
		if f.set {
			b.WriteByte(f.letter)
		}
	}
	return b.String()
}
