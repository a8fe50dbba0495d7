// Package mainserver implements the single entry-point server that
// authenticates clients, lists sessions, and creates sessions on demand.
package mainserver

import (
	"time"

	"github.com/Popo-Studios/NetCoreServer/internal/core"
	"github.com/Popo-Studios/NetCoreServer/internal/core/codec"
	"github.com/Popo-Studios/NetCoreServer/internal/core/transport"
	"github.com/Popo-Studios/NetCoreServer/internal/server"
	"github.com/Popo-Studios/NetCoreServer/internal/sessionmanager"
)

// LoginFunc is the caller-supplied authentication predicate. The core
// carries no opinion on how credentials are checked.
type LoginFunc func(core.LoginData) core.LoginResult

// MainServer extends EventedServer with the fixed Login, GetSessionList,
// and CreateSession handlers, and exclusively owns a SessionManager.
type MainServer struct {
	*server.EventedServer

	sessionManager *sessionmanager.SessionManager
	loginFunc      LoginFunc

	loginChannel  uint8
	loginFlag     transport.PacketFlag
	sessionChannel uint8
	sessionFlag    transport.PacketFlag
}

// Config bundles the construction-time knobs MainServer needs beyond
// what EventedServer already takes.
type Config struct {
	LoginChannel    uint8
	LoginReliable   bool
	SessionChannel  uint8
	SessionReliable bool
}

func New(base *server.EventedServer, loginFunc LoginFunc, manager *sessionmanager.SessionManager, cfg Config) *MainServer {
	loginFlag := transport.PacketFlagNone
	if cfg.LoginReliable {
		loginFlag = transport.PacketFlagReliable
	}
	sessionFlag := transport.PacketFlagNone
	if cfg.SessionReliable {
		sessionFlag = transport.PacketFlagReliable
	}

	m := &MainServer{
		EventedServer:  base,
		sessionManager: manager,
		loginFunc:      loginFunc,
		loginChannel:   cfg.LoginChannel,
		loginFlag:      loginFlag,
		sessionChannel: cfg.SessionChannel,
		sessionFlag:    sessionFlag,
	}

	m.RegisterPacketHandlerByID(codec.TypeIDLogin, server.NewTypedHandler(m.handleLogin))
	m.RegisterPacketHandlerByID(codec.TypeIDGetSessionList, server.NewTypedHandler(m.handleGetSessionList))
	m.RegisterPacketHandlerByID(codec.TypeIDCreateSession, server.NewTypedHandler(m.handleCreateSession))

	return m
}

func (m *MainServer) SessionManager() *sessionmanager.SessionManager {
	return m.sessionManager
}

func (m *MainServer) handleLogin(ctx *server.EventedServer, peer transport.Peer, data core.LoginData) {
	result := m.loginFunc(data)
	if result.Success && result.UserIdentifier != nil {
		ctx.SetPeerUid(peer, result.UserIdentifier.UserID)
	}

	frame := codec.Encode(ctx.Registry(), ctx.Logger(), codec.NameLogin, result, time.Now().UnixMilli())
	ctx.SendPacket(peer, m.loginChannel, frame, m.loginFlag)
}

func (m *MainServer) handleGetSessionList(ctx *server.EventedServer, peer transport.Peer, opt core.SessionListOption) {
	result := m.sessionManager.GetSessionList(opt)
	frame := codec.Encode(ctx.Registry(), ctx.Logger(), codec.NameGetSessionList, result, time.Now().UnixMilli())
	ctx.SendPacket(peer, m.sessionChannel, frame, m.sessionFlag)
}

func (m *MainServer) handleCreateSession(ctx *server.EventedServer, peer transport.Peer, opt core.SessionCreationOption) {
	result := m.sessionManager.CreateNewSession(opt)
	frame := codec.Encode(ctx.Registry(), ctx.Logger(), codec.NameCreateSession, result, time.Now().UnixMilli())
	ctx.SendPacket(peer, m.sessionChannel, frame, m.sessionFlag)
}
