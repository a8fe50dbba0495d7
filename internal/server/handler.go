package server

import (
	"github.com/Popo-Studios/NetCoreServer/internal/core/codec"
	"github.com/Popo-Studios/NetCoreServer/internal/core/transport"
)

// PacketHandler dispatches a decoded packet payload. Registered handlers
// are compared by reference (Go interface equality on the underlying
// pointer), which is why every constructor below returns a pointer:
// registering the exact same *TypedHandler[T] twice is a no-op, but two
// distinct handlers for the same type are both invoked, in registration
// order.
type PacketHandler interface {
	HandleRaw(s *EventedServer, peer transport.Peer, payload []byte)
}

// TypedHandlerFunc decodes a payload of type T and acts on it.
type TypedHandlerFunc[T any] func(s *EventedServer, peer transport.Peer, data T)

// TypedHandler adapts a TypedHandlerFunc into a PacketHandler, decoding
// the raw payload as T before invoking Handle.
type TypedHandler[T any] struct {
	Handle TypedHandlerFunc[T]
}

func NewTypedHandler[T any](handle TypedHandlerFunc[T]) *TypedHandler[T] {
	return &TypedHandler[T]{Handle: handle}
}

func (h *TypedHandler[T]) HandleRaw(s *EventedServer, peer transport.Peer, payload []byte) {
	data := codec.ParsePayload[T](s.logger, payload)
	h.Handle(s, peer, data)
}

// VoidHandlerFunc acts on a packet without decoding a payload.
type VoidHandlerFunc func(s *EventedServer, peer transport.Peer)

// VoidHandler adapts a VoidHandlerFunc into a PacketHandler that never
// touches the payload bytes.
type VoidHandler struct {
	Handle VoidHandlerFunc
}

func NewVoidHandler(handle VoidHandlerFunc) *VoidHandler {
	return &VoidHandler{Handle: handle}
}

func (h *VoidHandler) HandleRaw(s *EventedServer, peer transport.Peer, _ []byte) {
	h.Handle(s, peer)
}
