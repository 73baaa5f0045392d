package main

import (
	"Go2NetSentinel/internal/config"
	"Go2NetSentinel/internal/features"
	"Go2NetSentinel/internal/model"
	"Go2NetSentinel/internal/scorer"
	"bytes"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeCapture(t *testing.T, path string, stamps []time.Time) {
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	w := pcapgo.NewWriter(f)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	for _, ts := range stamps {
		eth := &layers.Ethernet{
			SrcMAC:       net.HardwareAddr{0, 1, 2, 3, 4, 5},
			DstMAC:       net.HardwareAddr{5, 4, 3, 2, 1, 0},
			EthernetType: layers.EthernetTypeIPv4,
		}
		ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolUDP,
			SrcIP: net.IP{10, 0, 0, 1}, DstIP: net.IP{10, 0, 0, 53}}
		udp := &layers.UDP{SrcPort: 5353, DstPort: 53}
		require.NoError(t, udp.SetNetworkLayerForChecksum(ip))
		buf := gopacket.NewSerializeBuffer()
		opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
		require.NoError(t, gopacket.SerializeLayers(buf, opts, eth, ip, udp, gopacket.Payload([]byte("query"))))
		data := buf.Bytes()
		require.NoError(t, w.WritePacket(gopacket.CaptureInfo{Timestamp: ts, CaptureLength: len(data), Length: len(data)}, data))
	}
}

func TestRun_WindowsByCaptureTime(t *testing.T) {
	dir := t.TempDir()
	t0 := time.Unix(1700000000, 0)
	pcapPath := filepath.Join(dir, "dns.pcap")
	writeCapture(t, pcapPath, []time.Time{t0, t0.Add(time.Second), t0.Add(12 * time.Second)})

	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Scorer.ModelPath = filepath.Join(dir, "model.gob")
	forest := &scorer.IsolationForest{SampleSize: 2, Trees: []scorer.Tree{{Nodes: []scorer.Node{{Left: -1, Right: -1, Size: 2}}}}}
	require.NoError(t, scorer.SaveBundle(&scorer.Bundle{Model: forest, Features: []string{features.ColCount}}, cfg.Scorer.ModelPath))

	var out bytes.Buffer
	require.NoError(t, run(cfg, pcapPath, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2, "one flow per window")
	var first model.ScoredEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &first))
	assert.Equal(t, "udp", first.Event.Proto)
	assert.Equal(t, "10.0.0.1", first.Event.Src)
	assert.Equal(t, model.PredictionNormal, first.Prediction)
	assert.Equal(t, 1700000005.0, first.TS, "window end")
}

func TestRun_NoModel(t *testing.T) {
	cfg, err := config.Default()
	require.NoError(t, err)
	cfg.Scorer.ModelPath = filepath.Join(t.TempDir(), "missing.gob")
	err = run(cfg, "unused.pcap", &bytes.Buffer{})
	assert.ErrorIs(t, err, scorer.ErrModelNotLoaded)
}
