// Package server implements the event-loop base every MainServer and
// SessionServer is built on: one worker servicing a transport.Host,
// dispatching to registered observers and typed packet handlers, and a
// peer<->uid identity table shared by protocol handlers.
package server

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Popo-Studios/NetCoreServer/internal/core/codec"
	"github.com/Popo-Studios/NetCoreServer/internal/core/transport"
)

// HandlerId is a monotonically increasing, process-global identifier
// assigned to every registered observer. It exists to make registration
// order auditable; dispatch itself runs in slice order, which already
// matches registration order.
type HandlerId uint64

var handlerIDCounter atomic.Uint64

func nextHandlerID() HandlerId {
	return HandlerId(handlerIDCounter.Add(1))
}

// Server type names used by the fixed GetServerType handler.
const (
	ServerTypeMain    = "MAIN_SERVER"
	ServerTypeSession = "SESSION_SERVER"
	ServerTypeGeneric = "SERVER"
)

type connectionHandler func(peer transport.Peer)
type packetReceivedHandler func(peer transport.Peer, data []byte)

// EventedServer is the concrete base composed into MainServer and
// SessionServer. It owns one transport.Host and runs its event loop on a
// single dedicated worker, which is why packet decoding and handler
// dispatch for a given server are always serialized with respect to each
// other.
type EventedServer struct {
	serverType string

	host     transport.Host
	registry *codec.Registry
	logger   *logrus.Logger

	// mu guards the peer<->uid table and every handler/observer registry.
	// Registries may be mutated from another goroutine during fleet
	// provisioning (see SessionManager), so registration and removal
	// always take it, and dispatch takes it only to snapshot the handler
	// lists before invoking them.
	mu                     sync.Mutex
	peerToUid              map[transport.Peer]uint64
	uidToPeer              map[uint64]transport.Peer
	packetHandlers         map[uint16][]PacketHandler
	connectionHandlers     []connectionHandler
	disconnectionHandlers  []connectionHandler
	packetReceivedHandlers []packetReceivedHandler

	running atomic.Bool
	wg      sync.WaitGroup

	serviceTimeoutMs uint32
}

// NewEventedServer wraps host and registers the fixed GetServerType
// handler. serverType is the string the handler replies with.
func NewEventedServer(serverType string, host transport.Host, registry *codec.Registry, logger *logrus.Logger) *EventedServer {
	s := &EventedServer{
		serverType:       serverType,
		host:             host,
		registry:         registry,
		logger:           logger,
		peerToUid:        make(map[transport.Peer]uint64),
		uidToPeer:        make(map[uint64]transport.Peer),
		packetHandlers:   make(map[uint16][]PacketHandler),
		serviceTimeoutMs: 10,
	}

	s.RegisterPacketHandlerByID(codec.TypeIDGetServerType, NewVoidHandler(func(srv *EventedServer, peer transport.Peer) {
		srv.SendPacket(peer, 0, codec.EncodeByID(srv.logger, codec.TypeIDGetServerType, srv.serverType, time.Now().UnixMilli()), transport.PacketFlagReliable)
	}))

	return s
}

func (s *EventedServer) ServerType() string {
	return s.serverType
}

func (s *EventedServer) Registry() *codec.Registry {
	return s.registry
}

func (s *EventedServer) Logger() *logrus.Logger {
	return s.logger
}

func (s *EventedServer) Port() uint16 {
	return s.host.Port()
}

// RegisterPacketHandlerByID appends handler to typeId's dispatch list
// unless it (by reference) is already present. Returns false on a
// duplicate.
func (s *EventedServer) RegisterPacketHandlerByID(typeID uint16, handler PacketHandler) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.packetHandlers[typeID]
	for _, h := range list {
		if h == handler {
			return false
		}
	}
	s.packetHandlers[typeID] = append(list, handler)
	return true
}

// RegisterPacketHandler resolves typeName through the registry before
// delegating to RegisterPacketHandlerByID.
func (s *EventedServer) RegisterPacketHandler(typeName string, handler PacketHandler) bool {
	id, ok := s.registry.IDByName(typeName)
	if !ok {
		s.logger.Errorf("failed to register handler: unknown packet type name %q", typeName)
		return false
	}
	return s.RegisterPacketHandlerByID(id, handler)
}

// RemovePacketHandlerByID removes the first handler equal (by reference)
// to handler from typeId's dispatch list.
func (s *EventedServer) RemovePacketHandlerByID(typeID uint16, handler PacketHandler) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.packetHandlers[typeID]
	for i, h := range list {
		if h == handler {
			s.packetHandlers[typeID] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

func (s *EventedServer) RegisterConnectionHandler(handler connectionHandler) HandlerId {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectionHandlers = append(s.connectionHandlers, handler)
	return nextHandlerID()
}

func (s *EventedServer) RegisterDisconnectionHandler(handler connectionHandler) HandlerId {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconnectionHandlers = append(s.disconnectionHandlers, handler)
	return nextHandlerID()
}

func (s *EventedServer) RegisterPacketReceivedHandler(handler packetReceivedHandler) HandlerId {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.packetReceivedHandlers = append(s.packetReceivedHandlers, handler)
	return nextHandlerID()
}

// SetPeerUid binds peer to uid in both directions.
func (s *EventedServer) SetPeerUid(peer transport.Peer, uid uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peerToUid[peer] = uid
	s.uidToPeer[uid] = peer
}

// RemovePeerUid unbinds peer from whatever uid it's currently bound to, if
// any, in both directions.
func (s *EventedServer) RemovePeerUid(peer transport.Peer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.peerToUid[peer]
	if !ok {
		return false
	}
	delete(s.peerToUid, peer)
	delete(s.uidToPeer, uid)
	return true
}

func (s *EventedServer) GetPeerUid(peer transport.Peer) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	uid, ok := s.peerToUid[peer]
	return uid, ok
}

func (s *EventedServer) GetPeerByUid(uid uint64) (transport.Peer, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	peer, ok := s.uidToPeer[uid]
	return peer, ok
}

// SendPacket delivers data to peer on channel. Logs and drops on a nil
// peer instead of returning an error, matching the taxonomy's "send to
// nil peer" case.
func (s *EventedServer) SendPacket(peer transport.Peer, channel uint8, data []byte, flags transport.PacketFlag) {
	if peer == nil || data == nil {
		s.logger.Error("failed to send packet: invalid peer or empty packet")
		return
	}
	if err := s.host.Send(peer, channel, data, flags); err != nil {
		s.logger.Errorf("failed to send packet to %s: %v", peer.Address(), err)
	}
}

// SendPacketToUid resolves uid to its bound peer and sends to it, if
// bound.
func (s *EventedServer) SendPacketToUid(uid uint64, channel uint8, data []byte, flags transport.PacketFlag) {
	peer, ok := s.GetPeerByUid(uid)
	if !ok {
		s.logger.Errorf("failed to send packet: no peer bound to uid %d", uid)
		return
	}
	s.SendPacket(peer, channel, data, flags)
}

// Start launches the event loop on its own worker and returns
// immediately.
func (s *EventedServer) Start(ctx context.Context) {
	s.running.Store(true)
	s.wg.Add(1)
	go s.run(ctx)
}

func (s *EventedServer) run(ctx context.Context) {
	defer s.wg.Done()

	s.logger.Infof("[%s] listening on port %d", s.serverType, s.host.Port())

	for s.running.Load() {
		select {
		case <-ctx.Done():
			s.running.Store(false)
			continue
		default:
		}

		for {
			event, err := s.host.Service(s.serviceTimeoutMs)
			if err != nil {
				s.logger.Errorf("[%s] transport error: %v", s.serverType, err)
				break
			}
			if event.Type == transport.EventNone {
				break
			}
			s.handleEvent(event)
		}
	}

	s.logger.Infof("[%s] stopped", s.serverType)
}

func (s *EventedServer) handleEvent(event transport.Event) {
	switch event.Type {
	case transport.EventConnect:
		s.logger.Infof("[%s] a new peer connected from %s", s.serverType, event.Peer.Address())
		s.mu.Lock()
		handlers := append([]connectionHandler(nil), s.connectionHandlers...)
		s.mu.Unlock()
		for _, h := range handlers {
			h(event.Peer)
		}

	case transport.EventReceive:
		s.mu.Lock()
		observers := append([]packetReceivedHandler(nil), s.packetReceivedHandlers...)
		s.mu.Unlock()
		for _, h := range observers {
			h(event.Peer, event.Data)
		}

		decoded, ok := codec.Decode(event.Data)
		if !ok {
			s.logger.Warnf("[%s] dropped a malformed packet from %s", s.serverType, event.Peer.Address())
			return
		}

		s.mu.Lock()
		handlers := append([]PacketHandler(nil), s.packetHandlers[decoded.Header.TypeID]...)
		s.mu.Unlock()
		for _, h := range handlers {
			h.HandleRaw(s, event.Peer, decoded.Payload)
		}

	case transport.EventDisconnect:
		s.logger.Infof("[%s] a peer disconnected from %s", s.serverType, event.Peer.Address())
		s.mu.Lock()
		handlers := append([]connectionHandler(nil), s.disconnectionHandlers...)
		s.mu.Unlock()
		for _, h := range handlers {
			h(event.Peer)
		}
	}
}

// Stop signals the event worker to exit after its current service tick.
func (s *EventedServer) Stop() {
	s.running.Store(false)
}

// Wait blocks until the event worker has exited.
func (s *EventedServer) Wait() {
	s.wg.Wait()
}

// Destroy releases the underlying transport host. Call only after Wait
// returns.
func (s *EventedServer) Destroy() {
	s.host.Destroy()
}
