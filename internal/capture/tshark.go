package capture

import (
	"Go2NetSentinel/internal/features"
	"Go2NetSentinel/internal/metrics"
	"Go2NetSentinel/internal/model"
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

// tsharkFields is the per-packet field list, in output order.
var tsharkFields = []string{
	"frame.time_epoch",
	"ip.src",
	"tcp.srcport",
	"udp.srcport",
	"ip.dst",
	"tcp.dstport",
	"udp.dstport",
	"_ws.col.Protocol",
	"ip.len",
	"tcp.flags",
}

const unknownAddr = "0.0.0.0"

// ParseTsharkLine decodes one "|"-separated tshark fields line. Lines without
// exactly ten fields are rejected; every other defect falls back to a default.
func ParseTsharkLine(line string, now time.Time) (model.FlowKey, model.Packet, bool) {
	parts := strings.Split(strings.TrimSpace(line), "|")
	if len(parts) != len(tsharkFields) {
		return model.FlowKey{}, model.Packet{}, false
	}
	for i, p := range parts {
		parts[i] = strings.Trim(p, `"`)
	}
	tsField, src, tcpSrc, udpSrc, dst, tcpDst, udpDst, proto, ipLen, flags :=
		parts[0], parts[1], parts[2], parts[3], parts[4], parts[5], parts[6], parts[7], parts[8], parts[9]

	ts := now
	if tsField != "" {
		if secs, err := strconv.ParseFloat(tsField, 64); err == nil {
			ts = model.FromUnixSeconds(secs)
		}
	}

	length := 0
	if ipLen != "" {
		if n, err := strconv.Atoi(ipLen); err == nil && n > 0 {
			length = n
		}
	}

	if src == "" {
		src = unknownAddr
	}
	if dst == "" {
		dst = unknownAddr
	}

	key := model.FlowKey{
		SrcIP:    src,
		SrcPort:  pickPort(tcpSrc, udpSrc),
		DstIP:    dst,
		DstPort:  pickPort(tcpDst, udpDst),
		Protocol: features.ClassifyProtocol(proto),
	}
	return key, model.Packet{Timestamp: ts, Length: length, Flags: flags}, true
}

// pickPort prefers the TCP port, then the UDP port, then 0.
func pickPort(tcp, udp string) uint16 {
	for _, s := range []string{tcp, udp} {
		if s == "" {
			continue
		}
		if p, err := strconv.ParseUint(s, 10, 16); err == nil {
			return uint16(p)
		}
	}
	return 0
}

// ScanLines parses tshark output from r into sink. Blank lines are skipped and
// malformed lines are dropped and counted. It returns the number of packets fed.
func ScanLines(ctx context.Context, r io.Reader, sink model.PacketSink, source string) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	fed := 0
	for scanner.Scan() {
		if ctx.Err() != nil {
			return fed, nil
		}
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, pkt, ok := ParseTsharkLine(line, time.Now())
		if !ok {
			metrics.CaptureDropped.WithLabelValues(source).Inc()
			log.Debugf("Dropping malformed capture line: %q", line)
			continue
		}
		sink.AddPacket(key, pkt)
		fed++
	}
	if err := scanner.Err(); err != nil {
		return fed, fmt.Errorf("failed to read capture output: %w", err)
	}
	return fed, nil
}

// TsharkSource runs tshark in line-buffered fields mode and parses its output.
type TsharkSource struct {
	path  string
	iface string
}

// NewTsharkSource creates a source for tshark at path (default "tshark") on iface.
func NewTsharkSource(path, iface string) *TsharkSource {
	if path == "" {
		path = "tshark"
	}
	return &TsharkSource{path: path, iface: iface}
}

// Name implements Source.
func (s *TsharkSource) Name() string { return "tshark" }

// Args returns the tshark command line.
func (s *TsharkSource) Args() []string {
	args := []string{}
	if s.iface != "" {
		args = append(args, "-i", s.iface)
	}
	args = append(args, "-l",
		"-T", "fields",
		"-E", "separator=|",
		"-E", "quote=d",
		"-E", "header=n",
	)
	for _, f := range tsharkFields {
		args = append(args, "-e", f)
	}
	return args
}

// Run starts tshark and feeds its packets to sink until tshark exits or ctx is cancelled.
func (s *TsharkSource) Run(ctx context.Context, sink model.PacketSink) error {
	cmd := exec.CommandContext(ctx, s.path, s.Args()...)
	stderr := log.StandardLogger().WriterLevel(log.DebugLevel)
	defer stderr.Close()
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to attach to tshark output: %w", err)
	}
	if err := cmd.Start(); err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return fmt.Errorf("tshark not found at %q; install Wireshark or set capture.tshark_path: %w", s.path, err)
		}
		return fmt.Errorf("failed to start tshark: %w", err)
	}
	log.Printf("Capturing with tshark on interface %q", s.iface)

	fed, scanErr := ScanLines(ctx, stdout, sink, s.Name())
	waitErr := cmd.Wait()
	log.Printf("tshark capture ended after %d packets", fed)

	if ctx.Err() != nil {
		return nil
	}
	if scanErr != nil {
		return scanErr
	}
	if waitErr != nil {
		return fmt.Errorf("tshark exited: %w", waitErr)
	}
	return nil
}
