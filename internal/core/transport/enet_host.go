package transport

import (
	"fmt"
	"sync"

	"github.com/codecat/go-enet"
)

// enetPeer adapts an enet.Peer to the Peer interface. enet.Peer values
// wrap a pointer to the underlying C struct, so equality on the Peer
// interface is equality on that pointer -- exactly the identity the core
// relies on for its peer<->uid table.
type enetPeer struct {
	peer enet.Peer
}

func (p enetPeer) Address() string {
	return p.peer.GetAddress().String()
}

// EnetHost is the production Host backed by github.com/codecat/go-enet.
type EnetHost struct {
	host enet.Host
	port uint16

	mu sync.Mutex
}

var enetInitOnce sync.Once
var enetInitErr error

// Initialize must be called before constructing any EnetHost, to bring up
// the underlying ENet library. Only the first call has effect; later
// calls return the first call's error.
func Initialize() error {
	enetInitOnce.Do(func() {
		enetInitErr = enet.Initialize()
	})
	return enetInitErr
}

// NewEnetHost constructs a Host bound to port. Matches the
// CreateHostFunc signature so it can be injected into Server
// construction.
func NewEnetHost(port uint16, maxPeers, maxChannels int, inBandwidth, outBandwidth uint32, bufferSize int32) (Host, error) {
	address := enet.NewListenAddress(port)
	host, err := enet.NewHost(address, maxPeers, maxChannels, inBandwidth, outBandwidth)
	if err != nil {
		return nil, fmt.Errorf("failed to create ENet host on port %d: %w", port, err)
	}
	return &EnetHost{host: host, port: port}, nil
}

func (h *EnetHost) Service(timeoutMs uint32) (Event, error) {
	ev := h.host.Service(timeoutMs)

	switch ev.GetType() {
	case enet.EventConnect:
		return Event{Type: EventConnect, Peer: enetPeer{ev.GetPeer()}}, nil
	case enet.EventDisconnect:
		return Event{Type: EventDisconnect, Peer: enetPeer{ev.GetPeer()}}, nil
	case enet.EventReceive:
		packet := ev.GetPacket()
		data := packet.GetData()
		packet.Destroy()
		return Event{Type: EventReceive, Peer: enetPeer{ev.GetPeer()}, Data: data}, nil
	default:
		return Event{Type: EventNone}, nil
	}
}

func (h *EnetHost) Send(peer Peer, channel uint8, data []byte, flags PacketFlag) error {
	ep, ok := peer.(enetPeer)
	if !ok {
		return fmt.Errorf("peer %v is not an ENet peer", peer)
	}

	var enetFlags enet.PacketFlags
	if flags&PacketFlagReliable != 0 {
		enetFlags = enet.PacketFlagReliable
	}

	return ep.peer.SendBytes(data, channel, enetFlags)
}

func (h *EnetHost) Port() uint16 {
	return h.port
}

func (h *EnetHost) Destroy() {
	h.host.Destroy()
}
