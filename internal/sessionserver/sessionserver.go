// Package sessionserver hosts a slot-indexed table of sessions, each with
// its own tick worker, and routes non-reserved traffic to the session a
// peer has joined.
package sessionserver

import (
	"sync"
	"time"

	"github.com/Popo-Studios/NetCoreServer/internal/core"
	"github.com/Popo-Studios/NetCoreServer/internal/core/codec"
	"github.com/Popo-Studios/NetCoreServer/internal/core/transport"
	"github.com/Popo-Studios/NetCoreServer/internal/server"
	"github.com/Popo-Studios/NetCoreServer/internal/session"
)

// reservedTypeIDs are handled exclusively by the MainServer; a
// SessionServer drops them before even attempting a uid lookup.
var reservedTypeIDs = map[uint16]bool{
	codec.TypeIDCreateSession:  true,
	codec.TypeIDGetServerType:  true,
	codec.TypeIDGetSessionList: true,
	codec.TypeIDLogin:          true,
}

// SessionServer is mono-typed for its lifetime: every session it ever
// attaches shares sessionType, fixed by the SessionManager at creation.
type SessionServer struct {
	*server.EventedServer

	sessionType string

	joinChannel  uint8
	joinFlag     transport.PacketFlag

	mu                  sync.Mutex
	sessions            []*session.AbstractSession
	uidToSessionNumber  map[uint64]uint16
}

// New wraps an already-constructed EventedServer (ServerTypeSession) with
// the session slot table and fixed handlers. sessionType is fixed for the
// SessionServer's lifetime.
func New(base *server.EventedServer, sessionType string, joinChannel uint8, joinReliable bool) *SessionServer {
	flag := transport.PacketFlagNone
	if joinReliable {
		flag = transport.PacketFlagReliable
	}

	s := &SessionServer{
		EventedServer:      base,
		sessionType:        sessionType,
		joinChannel:        joinChannel,
		joinFlag:           flag,
		uidToSessionNumber: make(map[uint64]uint16),
	}

	s.RegisterPacketHandlerByID(codec.TypeIDJoinSession, server.NewTypedHandler(s.handleJoinSession))
	s.RegisterDisconnectionHandler(s.handleDisconnect)
	s.RegisterPacketReceivedHandler(s.routeToSession)

	return s
}

func (s *SessionServer) SessionType() string {
	return s.sessionType
}

// SessionCount returns the number of live (non-detached) session slots,
// counting private and public sessions alike.
func (s *SessionServer) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, slot := range s.sessions {
		if slot != nil {
			count++
		}
	}
	return count
}

// AttachSession places session into the lowest empty slot, reusing a
// freed slot before growing the table, and starts its tick worker.
// Returns the slot index, which doubles as the session's sessionNumber.
//
// Callers that still need to install a SessionInfo carrying this slot's
// own identifier (e.g. the SessionManager's placement logic) should use
// ReserveSlot and StartSession directly instead, so the tick worker never
// observes the session before SetSessionInfo has run.
func (s *SessionServer) AttachSession(sess *session.AbstractSession) uint16 {
	num := s.ReserveSlot(sess)
	s.StartSession(num, sess)
	return num
}

// ReserveSlot places sess into the lowest empty slot, reusing a freed
// slot before growing the table, without starting its tick worker.
// Returns the slot index, which doubles as the session's sessionNumber.
func (s *SessionServer) ReserveSlot(sess *session.AbstractSession) uint16 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var num uint16
	for i, slot := range s.sessions {
		if slot == nil {
			s.sessions[i] = sess
			return uint16(i)
		}
	}
	num = uint16(len(s.sessions))
	s.sessions = append(s.sessions, sess)
	return num
}

// StartSession starts sessionNumber's tick worker. Call only after sess's
// final SessionInfo has been installed via SetSessionInfo.
func (s *SessionServer) StartSession(sessionNumber uint16, sess *session.AbstractSession) {
	go sess.Run()

	info := sess.SessionInfo()
	s.Logger().Infof("[%s] a new session is created (num=%d, type=%s, name=%s, maxPlayers=%d, isPrivate=%v)",
		s.sessionType, sessionNumber, info.SessionType, info.Name, info.MaxPlayers, info.IsPrivate)
}

// DetachSession stops sessionNumber's session and clears its slot. The
// tick worker exits on its own at the next loop check; we don't join it.
func (s *SessionServer) DetachSession(sessionNumber uint16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if int(sessionNumber) >= len(s.sessions) || s.sessions[sessionNumber] == nil {
		s.Logger().Errorf("[%s] failed to detach session (num=%d): no such session", s.sessionType, sessionNumber)
		return false
	}

	s.sessions[sessionNumber].Stop()
	s.sessions[sessionNumber] = nil
	s.Logger().Infof("[%s] a session is deleted (num=%d)", s.sessionType, sessionNumber)
	return true
}

// AddUser binds uid to sessionNumber and adds it to that session's
// member list.
func (s *SessionServer) AddUser(sessionNumber uint16, uid uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if int(sessionNumber) >= len(s.sessions) || s.sessions[sessionNumber] == nil {
		return false
	}
	s.sessions[sessionNumber].AddMember(uid)
	s.uidToSessionNumber[uid] = sessionNumber
	return true
}

// RemoveUser unbinds uid from its session and detaches the session if
// that was its last member.
func (s *SessionServer) RemoveUser(uid uint64) {
	s.mu.Lock()
	sessionNumber, ok := s.uidToSessionNumber[uid]
	if !ok {
		s.mu.Unlock()
		return
	}
	delete(s.uidToSessionNumber, uid)

	sess := s.sessionAt(sessionNumber)
	s.mu.Unlock()

	if sess == nil {
		return
	}
	_, empty := sess.RemoveMember(uid)
	if empty {
		s.DetachSession(sessionNumber)
	}
}

// sessionAt is unguarded; callers must hold s.mu.
func (s *SessionServer) sessionAt(sessionNumber uint16) *session.AbstractSession {
	if int(sessionNumber) >= len(s.sessions) {
		return nil
	}
	return s.sessions[sessionNumber]
}

// getSessionByUid resolves uid to its session in a single critical
// section, so the slot lookup can never race with AttachSession growing
// s.sessions between the uid lookup and the slot read.
func (s *SessionServer) getSessionByUid(uid uint64) *session.AbstractSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	sessionNumber, ok := s.uidToSessionNumber[uid]
	if !ok {
		return nil
	}
	return s.sessionAt(sessionNumber)
}

// GetSessionList returns every live, non-private session of sessionType
// whose name matches nameFilter, in slot order.
func (s *SessionServer) GetSessionList(sessionType string, nameFilter *string) []core.SessionInfo {
	s.mu.Lock()
	sessions := append([]*session.AbstractSession(nil), s.sessions...)
	s.mu.Unlock()

	var list []core.SessionInfo
	for _, sess := range sessions {
		if sess == nil {
			continue
		}
		if sess.MatchesListFilter(sessionType, nameFilter) {
			list = append(list, sess.SessionInfo())
		}
	}
	return list
}

func (s *SessionServer) handleJoinSession(ctx *server.EventedServer, peer transport.Peer, opt core.SessionJoinOption) {
	// isValid is unconditionally true here: password and membership
	// checks are a documented gap in the source this mirrors.
	isValid := true

	result := core.SessionJoinResult{}
	if isValid {
		ctx.SetPeerUid(peer, opt.UserIdentifier.UserID)
		s.AddUser(opt.SessionNumber, opt.UserIdentifier.UserID)
		result.Success = true
		result.ErrorCode = core.ErrorCodeNone
		ctx.Logger().Infof("[%s] a user has joined (uid=%d)", s.sessionType, opt.UserIdentifier.UserID)
	} else {
		result.Success = false
		result.ErrorCode = 1
	}

	frame := codec.Encode(ctx.Registry(), ctx.Logger(), codec.NameJoinSession, result, time.Now().UnixMilli())
	ctx.SendPacket(peer, s.joinChannel, frame, s.joinFlag)
}

func (s *SessionServer) handleDisconnect(peer transport.Peer) {
	uid, ok := s.GetPeerUid(peer)
	if !ok {
		return
	}
	s.RemovePeerUid(peer)
	s.RemoveUser(uid)
}

// routeToSession is the packet-received observer that forwards
// non-reserved traffic to the session the sending peer has joined.
func (s *SessionServer) routeToSession(peer transport.Peer, data []byte) {
	decoded, ok := codec.Decode(data)
	if !ok {
		return
	}
	if reservedTypeIDs[decoded.Header.TypeID] {
		return
	}

	uid, ok := s.GetPeerUid(peer)
	if !ok {
		return
	}
	sess := s.getSessionByUid(uid)
	if sess == nil {
		return
	}
	sess.HandlePacket(decoded.Header.TypeID, peer, decoded.Payload)
}
