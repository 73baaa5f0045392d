package model

// PacketSink receives packets from a capture source. The flow aggregator is the
// production implementation; sources never hold more than this interface.
type PacketSink interface {
	AddPacket(key FlowKey, packet Packet)
}

// PacketSinkFunc adapts a function to a PacketSink.
type PacketSinkFunc func(key FlowKey, packet Packet)

// AddPacket calls f(key, packet).
func (f PacketSinkFunc) AddPacket(key FlowKey, packet Packet) {
	f(key, packet)
}
