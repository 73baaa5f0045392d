package probe

import (
	"Go2NetSentinel/internal/model"
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers of the packet record on the wire.
const (
	fieldTimestamp protowire.Number = 1 // int64 unix nanoseconds
	fieldSrcIP     protowire.Number = 2
	fieldSrcPort   protowire.Number = 3
	fieldDstIP     protowire.Number = 4
	fieldDstPort   protowire.Number = 5
	fieldProtocol  protowire.Number = 6
	fieldLength    protowire.Number = 7
	fieldFlags     protowire.Number = 8
)

// MarshalPacket encodes one packet as a protobuf message. Zero-valued fields are
// omitted, as proto3 would.
func MarshalPacket(key model.FlowKey, pkt model.Packet) []byte {
	b := make([]byte, 0, 64)
	if !pkt.Timestamp.IsZero() {
		b = protowire.AppendTag(b, fieldTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(pkt.Timestamp.UnixNano()))
	}
	b = appendString(b, fieldSrcIP, key.SrcIP)
	b = appendUint(b, fieldSrcPort, uint64(key.SrcPort))
	b = appendString(b, fieldDstIP, key.DstIP)
	b = appendUint(b, fieldDstPort, uint64(key.DstPort))
	b = appendString(b, fieldProtocol, key.Protocol)
	if pkt.Length > 0 {
		b = appendUint(b, fieldLength, uint64(pkt.Length))
	}
	b = appendString(b, fieldFlags, pkt.Flags)
	return b
}

func appendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

func appendUint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// UnmarshalPacket decodes a message produced by MarshalPacket. Unknown fields
// are skipped.
func UnmarshalPacket(data []byte) (model.FlowKey, model.Packet, error) {
	var (
		key model.FlowKey
		pkt model.Packet
	)
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return key, pkt, fmt.Errorf("bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(data)
			if m < 0 {
				return key, pkt, fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
			}
			data = data[m:]
			switch num {
			case fieldTimestamp:
				pkt.Timestamp = time.Unix(0, int64(v))
			case fieldSrcPort, fieldDstPort:
				if v > 0xffff {
					return key, pkt, fmt.Errorf("field %d: port %d out of range", num, v)
				}
				if num == fieldSrcPort {
					key.SrcPort = uint16(v)
				} else {
					key.DstPort = uint16(v)
				}
			case fieldLength:
				pkt.Length = int(v)
			}
		case protowire.BytesType:
			v, m := protowire.ConsumeString(data)
			if m < 0 {
				return key, pkt, fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
			}
			data = data[m:]
			switch num {
			case fieldSrcIP:
				key.SrcIP = v
			case fieldDstIP:
				key.DstIP = v
			case fieldProtocol:
				key.Protocol = v
			case fieldFlags:
				pkt.Flags = v
			}
		default:
			m := protowire.ConsumeFieldValue(num, typ, data)
			if m < 0 {
				return key, pkt, fmt.Errorf("field %d: %w", num, protowire.ParseError(m))
			}
			data = data[m:]
		}
	}
	if key.SrcIP == "" && key.DstIP == "" {
		return key, pkt, errors.New("packet record without addresses")
	}
	return key, pkt, nil
}
