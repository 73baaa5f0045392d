package probe

import (
	"Go2NetSentinel/internal/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestPacketCodec(t *testing.T) {
	key := model.FlowKey{SrcIP: "10.0.0.1", SrcPort: 40000, DstIP: "10.0.0.2", DstPort: 80, Protocol: "tcp"}
	pkt := model.Packet{Timestamp: time.Unix(1700000000, 123456789), Length: 1500, Flags: "AS"}

	gotKey, gotPkt, err := UnmarshalPacket(MarshalPacket(key, pkt))
	require.NoError(t, err)
	assert.Equal(t, key, gotKey)
	assert.True(t, pkt.Timestamp.Equal(gotPkt.Timestamp))
	assert.Equal(t, 1500, gotPkt.Length)
	assert.Equal(t, "AS", gotPkt.Flags)
}

func TestPacketCodec_OmitsZeroFields(t *testing.T) {
	key := model.FlowKey{SrcIP: "a", DstIP: "b"}
	data := MarshalPacket(key, model.Packet{})
	// Two string fields of one byte each: tag + length + byte.
	assert.Len(t, data, 6)

	gotKey, gotPkt, err := UnmarshalPacket(data)
	require.NoError(t, err)
	assert.Equal(t, key, gotKey)
	assert.True(t, gotPkt.Timestamp.IsZero())
}

func TestUnmarshalPacket_SkipsUnknownFields(t *testing.T) {
	data := MarshalPacket(model.FlowKey{SrcIP: "a", DstIP: "b", DstPort: 53}, model.Packet{})
	data = protowire.AppendTag(data, 99, protowire.Fixed64Type)
	data = protowire.AppendFixed64(data, 42)
	data = protowire.AppendTag(data, 100, protowire.BytesType)
	data = protowire.AppendBytes(data, []byte{1, 2, 3})

	key, _, err := UnmarshalPacket(data)
	require.NoError(t, err)
	assert.Equal(t, uint16(53), key.DstPort)
}

func TestUnmarshalPacket_Errors(t *testing.T) {
	_, _, err := UnmarshalPacket([]byte{0xff})
	assert.Error(t, err, "truncated tag")

	truncated := MarshalPacket(model.FlowKey{SrcIP: "10.0.0.1", DstIP: "10.0.0.2"}, model.Packet{})
	_, _, err = UnmarshalPacket(truncated[:len(truncated)-3])
	assert.Error(t, err, "truncated string")

	var port []byte
	port = protowire.AppendTag(port, fieldSrcIP, protowire.BytesType)
	port = protowire.AppendString(port, "a")
	port = protowire.AppendTag(port, fieldSrcPort, protowire.VarintType)
	port = protowire.AppendVarint(port, 70000)
	_, _, err = UnmarshalPacket(port)
	assert.ErrorContains(t, err, "out of range")

	_, _, err = UnmarshalPacket(nil)
	assert.Error(t, err, "no addresses")
}
