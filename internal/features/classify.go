package features

import (
	"strconv"
	"strings"
)

// Fallback categories.
const (
	ServiceOther  = "other"
	ProtocolOther = "other"
	FlagOther     = "OTH"
	Unknown       = "unknown"
)

var servicePorts = map[int]string{
	80: "http", 8080: "http", 8000: "http",
	443: "https", 8443: "https",
	53:  "domain",
	22:  "ssh",
	25:  "smtp", 465: "smtp", 587: "smtp",
	110: "pop3", 995: "pop3",
	143: "imap4", 993: "imap4",
}

// ClassifyService maps a destination port to its service class.
func ClassifyService(port int) string {
	if s, ok := servicePorts[port]; ok {
		return s
	}
	return ServiceOther
}

// ClassifyServicePort is ClassifyService for a port given as text; an
// unparsable port is "other".
func ClassifyServicePort(port string) string {
	p, err := strconv.Atoi(strings.TrimSpace(port))
	if err != nil {
		return ServiceOther
	}
	return ClassifyService(p)
}

// ClassifyProtocol maps a protocol name or IP protocol number to tcp, udp, icmp or other.
func ClassifyProtocol(proto string) string {
	switch strings.ToLower(strings.TrimSpace(proto)) {
	case "tcp", "6":
		return "tcp"
	case "udp", "17":
		return "udp"
	case "icmp", "1":
		return "icmp"
	default:
		return ProtocolOther
	}
}

// TCP flag bits used by ClassifyFlags.
const (
	flagFIN = 0x01
	flagSYN = 0x02
	flagRST = 0x04
	flagACK = 0x10
)

// ClassifyFlags reduces a TCP flag summary to SF, S0, RSTR or OTH.
//
// The summary is either a letter set ("SA", "··A·S·") or a hex bitmask with a 0x
// prefix or bare digits ("0x0012", "12"). SYN+ACK and FIN both map to SF.
func ClassifyFlags(summary string) string {
	s := strings.TrimSpace(summary)
	if s == "" {
		return FlagOther
	}

	if hex, ok := strings.CutPrefix(strings.ToLower(s), "0x"); ok {
		return classifyFlagMask(hex)
	}

	var mask uint64
	letters := false
	for _, c := range s {
		if !isLetter(c) {
			continue
		}
		letters = true
		switch c {
		case 'S':
			mask |= flagSYN
		case 'A':
			mask |= flagACK
		case 'R':
			mask |= flagRST
		case 'F':
			mask |= flagFIN
		}
	}
	if letters {
		return flagClass(mask)
	}
	return classifyFlagMask(s)
}

func classifyFlagMask(hex string) string {
	mask, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return FlagOther
	}
	return flagClass(mask)
}

func flagClass(mask uint64) string {
	syn := mask&flagSYN != 0
	ack := mask&flagACK != 0
	switch {
	case syn && ack:
		return "SF"
	case syn:
		return "S0"
	case mask&flagRST != 0:
		return "RSTR"
	case mask&flagFIN != 0:
		return "SF"
	default:
		return FlagOther
	}
}

func isLetter(c rune) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
