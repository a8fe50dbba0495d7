// Package session implements the per-session tick loop and handler
// dispatch hosted by a SessionServer.
package session

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Popo-Studios/NetCoreServer/internal/core"
	"github.com/Popo-Studios/NetCoreServer/internal/core/transport"
)

// PeerUidFunc resolves a transport peer to the uid it's currently bound
// to on the owning Server. It is the session's borrowed, non-owning
// back-reference to its host -- the session never keeps a strong
// reference to the Server itself.
type PeerUidFunc func(peer transport.Peer) (uint64, bool)

// TickFunc is invoked once per tick with the wall-clock seconds elapsed
// since the previous tick.
type TickFunc func(s *AbstractSession, deltaSeconds float64)

// AbstractSession is a long-lived stateful context ticking at its own
// framerate and dispatching typed messages to registered handlers. It is
// mutated only by its own tick worker and by the owning SessionServer's
// join/leave handlers, which is why member-list and player-count
// mutations go through the mutex below rather than being lock-free.
type AbstractSession struct {
	logger *logrus.Logger

	mu          sync.Mutex
	sessionInfo core.SessionInfo
	members     []uint64
	password    *string

	framerate   float64
	peerUidFunc PeerUidFunc
	tick        TickFunc

	handlersMu sync.Mutex
	handlers   map[uint16][]PacketHandler

	running atomic.Bool
}

// NewAbstractSession seeds a session from info and opt, as produced by
// the SessionManager's placement logic.
func NewAbstractSession(info core.SessionInfo, opt core.SessionCreationOption, framerate float64, peerUidFunc PeerUidFunc, tick TickFunc, logger *logrus.Logger) *AbstractSession {
	s := &AbstractSession{
		logger:      logger,
		sessionInfo: info,
		password:    opt.Password,
		framerate:   framerate,
		peerUidFunc: peerUidFunc,
		tick:        tick,
		handlers:    make(map[uint16][]PacketHandler),
	}
	s.running.Store(true)
	return s
}

func (s *AbstractSession) Framerate() float64 {
	return s.framerate
}

// SetPeerUidFunc binds the session's non-owning back-reference to its
// host once the SessionManager has placed it on a SessionServer. Must be
// called before the tick worker or any handler dispatch starts.
func (s *AbstractSession) SetPeerUidFunc(f PeerUidFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.peerUidFunc = f
}

func (s *AbstractSession) resolvePeerUid(peer transport.Peer) (uint64, bool) {
	s.mu.Lock()
	f := s.peerUidFunc
	s.mu.Unlock()
	if f == nil {
		return 0, false
	}
	return f(peer)
}

func (s *AbstractSession) IsRunning() bool {
	return s.running.Load()
}

// Stop signals the tick worker to exit at the next loop check.
func (s *AbstractSession) Stop() {
	s.running.Store(false)
}

// RegisterPacketHandlerByID appends handler unless it's already present
// (by reference).
func (s *AbstractSession) RegisterPacketHandlerByID(typeID uint16, handler PacketHandler) bool {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()

	list := s.handlers[typeID]
	for _, h := range list {
		if h == handler {
			return false
		}
	}
	s.handlers[typeID] = append(list, handler)
	return true
}

func (s *AbstractSession) RemovePacketHandlerByID(typeID uint16, handler PacketHandler) bool {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()

	list := s.handlers[typeID]
	for i, h := range list {
		if h == handler {
			s.handlers[typeID] = append(list[:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// HandlePacket fans a decoded payload out to every handler bound to
// typeID, in registration order. Called by the owning SessionServer's
// routing layer, never by the session's own tick worker.
func (s *AbstractSession) HandlePacket(typeID uint16, peer transport.Peer, payload []byte) {
	s.handlersMu.Lock()
	handlers := append([]PacketHandler(nil), s.handlers[typeID]...)
	s.handlersMu.Unlock()

	for _, h := range handlers {
		h.HandleRaw(s, peer, payload)
	}
}

func (s *AbstractSession) SessionInfo() core.SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionInfo
}

func (s *AbstractSession) SetSessionInfo(info core.SessionInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessionInfo = info
}

func (s *AbstractSession) SessionType() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionInfo.SessionType
}

func (s *AbstractSession) ComparePassword(input string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.password == nil {
		return true
	}
	return *s.password == input
}

// AddMember adds uid to the member set and increments currentPlayers. It
// checks neither capacity nor password.
func (s *AbstractSession) AddMember(uid uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.members = append(s.members, uid)
	s.sessionInfo.CurrentPlayers = uint8(len(s.members))
}

// RemoveMember removes uid from the member set and reports whether the
// session is now empty, which the caller uses to decide whether to
// detach it. Detach must be triggered only from this return value, never
// from AddMember.
func (s *AbstractSession) RemoveMember(uid uint64) (removed bool, empty bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, m := range s.members {
		if m == uid {
			s.members = append(s.members[:i], s.members[i+1:]...)
			s.sessionInfo.CurrentPlayers = uint8(len(s.members))
			return true, len(s.members) == 0
		}
	}
	return false, len(s.members) == 0
}

func (s *AbstractSession) MemberCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members)
}

// MatchesListFilter reports whether this session should be included in a
// GetSessionList reply for sessionType and an optional nameFilter. The filter is lowered before comparison but compared
// against the name as stored -- preserving the source's effectively
// case-sensitive behavior rather than guessing at the intended fix.
func (s *AbstractSession) MatchesListFilter(sessionType string, nameFilter *string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sessionInfo.IsPrivate {
		return false
	}
	if s.sessionInfo.SessionType != sessionType {
		return false
	}
	if nameFilter != nil {
		lowered := strings.ToLower(*nameFilter)
		if !strings.Contains(s.sessionInfo.Name, lowered) {
			return false
		}
	}
	return true
}

// RunTickLoop drives the tick callback at framerate ticks/second until
// Stop is called. previous and nextTick advance every iteration;
// deadlines that are missed slip rather than catch up, per the source
// loop this mirrors. now and sleepUntil are injectable so tests can drive
// the loop with a fake clock.
func (s *AbstractSession) RunTickLoop(now func() time.Time, sleepUntil func(time.Time)) {
	tickInterval := time.Duration(float64(time.Second) / s.framerate)

	previous := now()
	nextTick := previous.Add(tickInterval)

	for s.IsRunning() {
		current := now()
		delta := current.Sub(previous).Seconds()
		previous = current

		if s.tick != nil {
			s.tick(s, delta)
		}

		nextTick = nextTick.Add(tickInterval)
		if current.Before(nextTick) {
			sleepUntil(nextTick)
		} else {
			nextTick = now()
		}
	}
}

// Run is the production entrypoint for the tick worker: real wall clock,
// real sleep.
func (s *AbstractSession) Run() {
	s.RunTickLoop(time.Now, func(t time.Time) {
		time.Sleep(time.Until(t))
	})
}
