package main

import (
	"flag"
	"math/rand"
	"net"
	"os"
	"sort"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	log "github.com/sirupsen/logrus"
)

var servicePorts = []layers.TCPPort{80, 443, 8080, 22, 25, 110, 143}

type packet struct {
	ci   gopacket.CaptureInfo
	data []byte
}

type generator struct {
	rng     *rand.Rand
	now     time.Time
	span    time.Duration
	packets []packet
}

func (g *generator) at() time.Time {
	return g.now.Add(time.Duration(g.rng.Int63n(int64(g.span))))
}

func (g *generator) write(ts time.Time, src, dst net.IP, l4 gopacket.SerializableLayer, payload int) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{SrcIP: src, DstIP: dst, Version: 4, TTL: 64}
	switch l := l4.(type) {
	case *layers.TCP:
		ip.Protocol = layers.IPProtocolTCP
		l.SetNetworkLayerForChecksum(ip)
	case *layers.UDP:
		ip.Protocol = layers.IPProtocolUDP
		l.SetNetworkLayerForChecksum(ip)
	}

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, l4, gopacket.Payload(make([]byte, payload))); err != nil {
		log.Fatalf("Failed to serialize layers: %v", err)
	}
	data := buf.Bytes()
	ci := gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(data), Length: len(data)}
	g.packets = append(g.packets, packet{ci: ci, data: data})
}

// flush writes every generated packet in capture order.
func (g *generator) flush(w *pcapgo.Writer) {
	sort.SliceStable(g.packets, func(i, j int) bool {
		return g.packets[i].ci.Timestamp.Before(g.packets[j].ci.Timestamp)
	})
	for _, p := range g.packets {
		if err := w.WritePacket(p.ci, p.data); err != nil {
			log.Fatalf("Failed to write packet: %v", err)
		}
	}
}

func randIP(rng *rand.Rand, a, b byte) net.IP {
	return net.IP{a, b, byte(rng.Intn(256)), byte(rng.Intn(254) + 1)}
}

// conversation writes a TCP exchange: handshake, data both ways, FIN.
func (g *generator) conversation() {
	client, server := randIP(g.rng, 10, 0), randIP(g.rng, 172, 16)
	cport := layers.TCPPort(g.rng.Intn(65535-1024) + 1024)
	sport := servicePorts[g.rng.Intn(len(servicePorts))]
	ts := g.at()
	step := func() time.Time {
		ts = ts.Add(time.Duration(g.rng.Intn(50)+1) * time.Millisecond)
		return ts
	}

	g.write(step(), client, server, &layers.TCP{SrcPort: cport, DstPort: sport, SYN: true, Window: 14600}, 0)
	g.write(step(), server, client, &layers.TCP{SrcPort: sport, DstPort: cport, SYN: true, ACK: true, Window: 14600}, 0)
	for i := g.rng.Intn(6) + 1; i > 0; i-- {
		g.write(step(), client, server, &layers.TCP{SrcPort: cport, DstPort: sport, ACK: true, PSH: true, Window: 14600}, g.rng.Intn(400)+50)
		g.write(step(), server, client, &layers.TCP{SrcPort: sport, DstPort: cport, ACK: true, PSH: true, Window: 14600}, g.rng.Intn(1400)+50)
	}
	g.write(step(), client, server, &layers.TCP{SrcPort: cport, DstPort: sport, FIN: true, ACK: true, Window: 14600}, 0)
}

// lookup writes one DNS-sized UDP query and answer.
func (g *generator) lookup() {
	client, server := randIP(g.rng, 10, 0), net.IP{10, 0, 0, 53}
	cport := layers.UDPPort(g.rng.Intn(65535-1024) + 1024)
	ts := g.at()
	g.write(ts, client, server, &layers.UDP{SrcPort: cport, DstPort: 53}, 40)
	g.write(ts.Add(2*time.Millisecond), server, client, &layers.UDP{SrcPort: 53, DstPort: cport}, 120)
}

// scan writes unanswered SYNs from one host to many ports of another.
func (g *generator) scan(ports int) {
	attacker, target := randIP(g.rng, 192, 168), randIP(g.rng, 172, 16)
	ts := g.at()
	for i := 0; i < ports; i++ {
		ts = ts.Add(time.Millisecond)
		g.write(ts, attacker, target, &layers.TCP{
			SrcPort: 40000, DstPort: layers.TCPPort(g.rng.Intn(65535) + 1), SYN: true, Window: 1024,
		}, 0)
	}
}

func main() {
	outputFile := flag.String("o", "test.pcap", "Output pcap file path")
	conversations := flag.Int("c", 200, "Number of TCP conversations to generate")
	lookups := flag.Int("dns", 100, "Number of UDP lookups to generate")
	scans := flag.Int("scans", 1, "Number of port scans to mix in")
	scanPorts := flag.Int("scan-ports", 500, "Ports probed per scan")
	span := flag.Duration("span", 30*time.Second, "Capture time span the traffic is spread over")
	flag.Parse()
	if *span <= 0 {
		log.Fatalf("-span must be positive, got %s", *span)
	}

	f, err := os.Create(*outputFile)
	if err != nil {
		log.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	pcapWriter := pcapgo.NewWriter(f)
	if err := pcapWriter.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		log.Fatalf("Failed to write pcap header: %v", err)
	}

	g := &generator{
		rng:  rand.New(rand.NewSource(time.Now().UnixNano())),
		now:  time.Now(),
		span: *span,
	}
	log.Printf("Generating %d conversations, %d lookups and %d scans into %s...", *conversations, *lookups, *scans, *outputFile)
	for i := 0; i < *conversations; i++ {
		g.conversation()
	}
	for i := 0; i < *lookups; i++ {
		g.lookup()
	}
	for i := 0; i < *scans; i++ {
		g.scan(*scanPorts)
	}
	g.flush(pcapWriter)
	log.Printf("Successfully generated %d packets into %s.", len(g.packets), *outputFile)
}
