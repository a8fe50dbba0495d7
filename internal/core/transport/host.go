// Package transport declares the reliable-UDP host abstraction every
// Server is built on, and a concrete adapter backed by ENet.
package transport

// EventType classifies a transport Event.
type EventType int

const (
	EventNone EventType = iota
	EventConnect
	EventReceive
	EventDisconnect
)

// Peer is an opaque transport-level connection endpoint. Concrete values
// are comparable, so a Peer can key a peer->uid map directly.
type Peer interface {
	// Address returns the remote address in host:port form, used for
	// logging only.
	Address() string
}

// PacketFlag controls delivery guarantees for a sent packet.
type PacketFlag uint32

const (
	PacketFlagNone     PacketFlag = 0
	PacketFlagReliable PacketFlag = 1 << 0
)

// Event is a single occurrence drained from the host during Service.
type Event struct {
	Type EventType
	Peer Peer
	Data []byte
}

// Host is a thin wrapper over a reliable-UDP transport. The core depends
// only on this interface, never on a specific transport library.
type Host interface {
	// Service pumps the host for up to timeoutMs milliseconds and returns
	// the next pending event, or EventNone if nothing arrived in time.
	Service(timeoutMs uint32) (Event, error)
	// Send delivers bytes to peer on channel honoring flags.
	Send(peer Peer, channel uint8, data []byte, flags PacketFlag) error
	// Port returns the port the host is bound to.
	Port() uint16
	// Destroy releases the host's underlying resources. Not safe to call
	// concurrently with Service.
	Destroy()
}

// CreateHostFunc constructs a Host bound to port. Servers depend on this
// indirection rather than a concrete constructor so tests can substitute
// an in-memory Host.
type CreateHostFunc func(port uint16, maxPeers, maxChannels int, inBandwidth, outBandwidth uint32, bufferSize int32) (Host, error)
