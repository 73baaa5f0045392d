package pcap

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tcpFrame(t *testing.T) []byte {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		SrcIP: net.IP{10, 0, 0, 1}, DstIP: net.IP{10, 0, 0, 2},
		Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP,
	}
	tcp := &layers.TCP{SrcPort: 40000, DstPort: 80, SYN: true, Window: 14600}
	require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(make([]byte, 20))))
	return buf.Bytes()
}

func writeCapture(t *testing.T, path string, ng bool, frames int) {
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	data := tcpFrame(t)
	ci := gopacket.CaptureInfo{Timestamp: time.Unix(1700000000, 0), CaptureLength: len(data), Length: len(data)}
	if ng {
		w, err := pcapgo.NewNgWriter(f, layers.LinkTypeEthernet)
		require.NoError(t, err)
		for i := 0; i < frames; i++ {
			require.NoError(t, w.WritePacket(ci, data))
		}
		require.NoError(t, w.Flush())
		return
	}
	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))
	for i := 0; i < frames; i++ {
		require.NoError(t, w.WritePacket(ci, data))
	}
}

func TestReader_ReadPackets(t *testing.T) {
	for _, ng := range []bool{false, true} {
		path := filepath.Join(t.TempDir(), "test.pcap")
		writeCapture(t, path, ng, 3)

		reader, err := NewReader(path)
		require.NoError(t, err, "ng=%v", ng)
		assert.Equal(t, layers.LinkTypeEthernet, reader.LinkType())

		count := 0
		err = reader.ReadPackets(context.Background(), func(p gopacket.Packet) {
			count++
			assert.NotNil(t, p.Layer(layers.LayerTypeTCP))
			assert.Equal(t, int64(1700000000), p.Metadata().Timestamp.Unix())
		})
		reader.Close()
		require.NoError(t, err)
		assert.Equal(t, 3, count, "ng=%v", ng)
	}
}

func TestReader_Errors(t *testing.T) {
	_, err := NewReader(filepath.Join(t.TempDir(), "absent.pcap"))
	assert.Error(t, err)

	garbage := filepath.Join(t.TempDir(), "garbage.pcap")
	require.NoError(t, os.WriteFile(garbage, []byte("definitely not a capture file"), 0644))
	_, err = NewReader(garbage)
	assert.Error(t, err)
}

func TestReader_Cancelled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pcap")
	writeCapture(t, path, false, 5)
	reader, err := NewReader(path)
	require.NoError(t, err)
	defer reader.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err = reader.ReadPackets(ctx, func(gopacket.Packet) { t.Fatal("no packet expected") })
	assert.ErrorIs(t, err, context.Canceled)
}
