package server

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Popo-Studios/NetCoreServer/internal/core/codec"
	"github.com/Popo-Studios/NetCoreServer/internal/core/transport"
)

type fakePeer struct {
	id string
}

func (p *fakePeer) Address() string { return p.id }

// fakeHost is an in-memory transport.Host driven by a test pushing events
// onto a channel, used to exercise the event loop without a real socket.
type fakeHost struct {
	events chan transport.Event
	sent   []sentPacket
	mu     sync.Mutex
	port   uint16
}

type sentPacket struct {
	peer    transport.Peer
	channel uint8
	data    []byte
	flags   transport.PacketFlag
}

func newFakeHost() *fakeHost {
	return &fakeHost{events: make(chan transport.Event, 16), port: 9000}
}

func (h *fakeHost) Service(timeoutMs uint32) (transport.Event, error) {
	select {
	case ev := <-h.events:
		return ev, nil
	case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
		return transport.Event{Type: transport.EventNone}, nil
	}
}

func (h *fakeHost) Send(peer transport.Peer, channel uint8, data []byte, flags transport.PacketFlag) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, sentPacket{peer, channel, data, flags})
	return nil
}

func (h *fakeHost) Port() uint16 { return h.port }
func (h *fakeHost) Destroy()     {}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestServer() (*EventedServer, *fakeHost) {
	host := newFakeHost()
	registry := codec.NewRegistry()
	registry.Initialize()
	return NewEventedServer(ServerTypeGeneric, host, registry, testLogger()), host
}

func TestEventedServer_PeerUidInvariant(t *testing.T) {
	s, _ := newTestServer()
	peer := &fakePeer{id: "1.2.3.4:1"}

	s.SetPeerUid(peer, 42)

	uid, ok := s.GetPeerUid(peer)
	if !ok || uid != 42 {
		t.Fatalf("GetPeerUid() = (%d, %v), want (42, true)", uid, ok)
	}
	gotPeer, ok := s.GetPeerByUid(42)
	if !ok || gotPeer != peer {
		t.Fatalf("GetPeerByUid() = (%v, %v), want (%v, true)", gotPeer, ok, peer)
	}

	s.RemovePeerUid(peer)

	if _, ok := s.GetPeerUid(peer); ok {
		t.Error("GetPeerUid() should fail after RemovePeerUid")
	}
	if _, ok := s.GetPeerByUid(42); ok {
		t.Error("GetPeerByUid() should fail after RemovePeerUid")
	}
}

func TestEventedServer_RegisterPacketHandler_RejectsDuplicate(t *testing.T) {
	s, _ := newTestServer()
	handler := NewVoidHandler(func(*EventedServer, transport.Peer) {})

	if !s.RegisterPacketHandlerByID(1, handler) {
		t.Fatal("first registration should succeed")
	}
	if s.RegisterPacketHandlerByID(1, handler) {
		t.Error("registering the same handler twice should be rejected")
	}
}

func TestEventedServer_Dispatch_RegistrationOrder(t *testing.T) {
	s, host := newTestServer()

	var order []int
	var mu sync.Mutex
	record := func(n int) *VoidHandler {
		return NewVoidHandler(func(*EventedServer, transport.Peer) {
			mu.Lock()
			order = append(order, n)
			mu.Unlock()
		})
	}

	s.RegisterPacketHandlerByID(100, record(1))
	s.RegisterPacketHandlerByID(100, record(2))

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	defer func() {
		cancel()
		s.Stop()
		s.Wait()
	}()

	peer := &fakePeer{id: "peer"}
	frame := codec.EncodeByID(testLogger(), 100, struct{}{}, 0)
	host.events <- transport.Event{Type: transport.EventReceive, Peer: peer, Data: frame}

	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != 1 || order[1] != 2 {
		t.Errorf("dispatch order = %v, want [1 2]", order)
	}
}

func TestEventedServer_GetServerType(t *testing.T) {
	s, host := newTestServer()

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	defer func() {
		cancel()
		s.Stop()
		s.Wait()
	}()

	peer := &fakePeer{id: "peer"}
	frame := codec.EncodeEmpty(testLogger(), codec.TypeIDGetServerType, 0)
	host.events <- transport.Event{Type: transport.EventReceive, Peer: peer, Data: frame}

	time.Sleep(50 * time.Millisecond)

	host.mu.Lock()
	defer host.mu.Unlock()
	if len(host.sent) != 1 {
		t.Fatalf("expected exactly one reply, got %d", len(host.sent))
	}
	decoded, ok := codec.Decode(host.sent[0].data)
	if !ok {
		t.Fatal("reply frame failed to decode")
	}
	name := codec.ParsePayload[string](testLogger(), decoded.Payload)
	if name != ServerTypeGeneric {
		t.Errorf("GetServerType reply = %q, want %q", name, ServerTypeGeneric)
	}
}
