package session

import (
	"github.com/Popo-Studios/NetCoreServer/internal/core/codec"
	"github.com/Popo-Studios/NetCoreServer/internal/core/transport"
)

// PacketHandler is the session-scoped counterpart of server.PacketHandler.
// Identity (pointer) equality is again what duplicate registration checks
// against.
type PacketHandler interface {
	HandleRaw(s *AbstractSession, peer transport.Peer, payload []byte)
}

// TypedHandlerFunc decodes a payload of type T and acts on it. It's only
// invoked once the session can resolve peer to a bound uid; an unbound
// peer sending a session-scoped packet is silently ignored.
type TypedHandlerFunc[T any] func(s *AbstractSession, peer transport.Peer, uid uint64, data T)

type TypedHandler[T any] struct {
	Handle TypedHandlerFunc[T]
}

func NewTypedHandler[T any](handle TypedHandlerFunc[T]) *TypedHandler[T] {
	return &TypedHandler[T]{Handle: handle}
}

func (h *TypedHandler[T]) HandleRaw(s *AbstractSession, peer transport.Peer, payload []byte) {
	uid, ok := s.resolvePeerUid(peer)
	if !ok {
		return
	}
	data := codec.ParsePayload[T](s.logger, payload)
	h.Handle(s, peer, uid, data)
}

// VoidHandlerFunc acts on a packet without decoding a payload, once the
// peer resolves to a bound uid.
type VoidHandlerFunc func(s *AbstractSession, peer transport.Peer, uid uint64)

type VoidHandler struct {
	Handle VoidHandlerFunc
}

func NewVoidHandler(handle VoidHandlerFunc) *VoidHandler {
	return &VoidHandler{Handle: handle}
}

func (h *VoidHandler) HandleRaw(s *AbstractSession, peer transport.Peer, _ []byte) {
	uid, ok := s.resolvePeerUid(peer)
	if !ok {
		return
	}
	h.Handle(s, peer, uid)
}
