// Package sessionmanager places newly-created sessions onto a fleet of
// SessionServers, provisioning new ones from a port range as existing
// ones fill up.
package sessionmanager

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"

	"github.com/Popo-Studios/NetCoreServer/internal/core"
	"github.com/Popo-Studios/NetCoreServer/internal/core/codec"
	"github.com/Popo-Studios/NetCoreServer/internal/core/transport"
	"github.com/Popo-Studios/NetCoreServer/internal/server"
	"github.com/Popo-Studios/NetCoreServer/internal/session"
	"github.com/Popo-Studios/NetCoreServer/internal/sessionserver"
)

// usernameCacheTTL bounds how long a resolved display name is reused
// before the UsernameProvider is asked again. A uid's name can change
// out from under the fleet (account rename, moderation action), so this
// is deliberately short rather than infinite.
const usernameCacheTTL = 30 * time.Second

// SessionGenerator produces a new session seeded with info, for a
// CreateSession request carrying opt. Registered once per sessionType.
type SessionGenerator func(info core.SessionInfo, opt core.SessionCreationOption) *session.AbstractSession

// UsernameProvider resolves a uid to a display name, used to populate
// SessionInfo.AuthorName on creation.
type UsernameProvider func(uid uint64) string

// SessionManager owns every SessionServer in the fleet. A SessionServer
// is mono-typed for its lifetime: sessions of type T are placed on any
// existing SessionServer of type T with spare capacity, else a new one
// is provisioned on the next free port in the configured range.
type SessionManager struct {
	opt              core.SessionServerOption
	usernameProvider UsernameProvider
	createHost       transport.CreateHostFunc
	registry         *codec.Registry
	logger           *logrus.Logger
	ctx              context.Context

	usernameCache *gocache.Cache

	mu         sync.Mutex
	servers    []*sessionserver.SessionServer
	generators map[string]SessionGenerator

	connectionHandlers     []func(transport.Peer)
	disconnectionHandlers  []func(transport.Peer)
	packetReceivedHandlers []func(transport.Peer, []byte)
}

func New(opt core.SessionServerOption, provider UsernameProvider, createHost transport.CreateHostFunc, registry *codec.Registry, logger *logrus.Logger) *SessionManager {
	return &SessionManager{
		opt:              opt,
		usernameProvider: provider,
		createHost:       createHost,
		registry:         registry,
		logger:           logger,
		generators:       make(map[string]SessionGenerator),
		usernameCache:    gocache.New(usernameCacheTTL, 2*usernameCacheTTL),
	}
}

// resolveUsername returns the cached display name for uid, falling back
// to the UsernameProvider on a cache miss.
func (m *SessionManager) resolveUsername(uid uint64) string {
	key := fmt.Sprintf("%d", uid)
	if cached, ok := m.usernameCache.Get(key); ok {
		return cached.(string)
	}
	name := m.usernameProvider(uid)
	m.usernameCache.Set(key, name, gocache.DefaultExpiration)
	return name
}

// Start records the context used to run every SessionServer this manager
// provisions from here on.
func (m *SessionManager) Start(ctx context.Context) {
	m.ctx = ctx
}

func (m *SessionManager) RegisterSessionGenerator(sessionType string, gen SessionGenerator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generators[sessionType] = gen
}

// RegisterConnectionHandler/Disconnection/PacketReceived register a
// global observer replayed onto every SessionServer provisioned from
// this point forward. An observer registered here is not retroactively
// applied to SessionServers that are already live -- the chosen policy
// for the ambiguity the source leaves open.
func (m *SessionManager) RegisterConnectionHandler(h func(transport.Peer)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectionHandlers = append(m.connectionHandlers, h)
}

func (m *SessionManager) RegisterDisconnectionHandler(h func(transport.Peer)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disconnectionHandlers = append(m.disconnectionHandlers, h)
}

func (m *SessionManager) RegisterPacketReceivedHandler(h func(transport.Peer, []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.packetReceivedHandlers = append(m.packetReceivedHandlers, h)
}

// CreateNewSession seeds a session via the generator registered for
// opt.SessionType, places it on a SessionServer with spare capacity (or
// provisions a new one), and returns the reply to send the caller.
func (m *SessionManager) CreateNewSession(opt core.SessionCreationOption) core.SessionCreationResult {
	m.mu.Lock()
	defer m.mu.Unlock()

	gen, ok := m.generators[opt.SessionType]
	if !ok {
		return core.SessionCreationResult{Success: false, ErrorCode: core.ErrorCodeUnknownType}
	}

	info := core.SessionInfo{
		Name:           opt.Name,
		MaxPlayers:     opt.MaxPlayers,
		CurrentPlayers: 0,
		IsPrivate:      opt.IsPrivate,
		HasPassword:    opt.Password != nil,
		AuthorName:     m.resolveUsername(opt.UserIdentifier.UserID),
		SessionType:    opt.SessionType,
	}
	sess := gen(info, opt)

	for _, srv := range m.servers {
		if srv.SessionType() != opt.SessionType || srv.SessionCount() >= m.opt.MaxSessions {
			continue
		}
		return m.place(srv, sess, info)
	}

	if len(m.servers) >= m.opt.MaxSessions {
		return core.SessionCreationResult{Success: false, ErrorCode: core.ErrorCodeCapacity}
	}

	port := m.opt.PortRangeLow + uint16(len(m.servers))
	if port > m.opt.PortRangeHigh {
		return core.SessionCreationResult{Success: false, ErrorCode: core.ErrorCodeCapacity}
	}
	srv, err := m.provisionSessionServer(port, opt.SessionType)
	if err != nil {
		m.logger.Errorf("failed to provision a session server on port %d: %v", port, err)
		return core.SessionCreationResult{Success: false, ErrorCode: core.ErrorCodeCapacity}
	}

	return m.place(srv, sess, info)
}

func (m *SessionManager) place(srv *sessionserver.SessionServer, sess *session.AbstractSession, info core.SessionInfo) core.SessionCreationResult {
	sess.SetPeerUidFunc(srv.GetPeerUid)
	num := srv.ReserveSlot(sess)

	info.Identifier = core.SessionIdentifier{SessionPort: srv.Port(), SessionNumber: num}
	sess.SetSessionInfo(info)

	srv.StartSession(num, sess)

	return core.SessionCreationResult{Success: true, SessionInfo: &info}
}

// provisionSessionServer brings up a new SessionServer on port, fixed to
// sessionType for its lifetime, and replays every observer registered on
// this manager so far onto it.
func (m *SessionManager) provisionSessionServer(port uint16, sessionType string) (*sessionserver.SessionServer, error) {
	host, err := m.createHost(port, m.opt.MaxConnection, m.opt.MaxChannel, m.opt.IncomingBandwidth, m.opt.OutgoingBandwidth, int32(m.opt.BufferSize))
	if err != nil {
		return nil, err
	}

	base := server.NewEventedServer(server.ServerTypeSession, host, m.registry, m.logger)
	srv := sessionserver.New(base, sessionType, m.opt.JoinChannel, m.opt.JoinReliable)

	for _, h := range m.connectionHandlers {
		srv.RegisterConnectionHandler(h)
	}
	for _, h := range m.disconnectionHandlers {
		srv.RegisterDisconnectionHandler(h)
	}
	for _, h := range m.packetReceivedHandlers {
		srv.RegisterPacketReceivedHandler(h)
	}

	srv.Start(m.ctx)
	m.servers = append(m.servers, srv)

	return srv, nil
}

// GetSessionList concatenates every SessionServer's matching sessions, in
// server order, then pages the result. Paging is 1-based; a start offset
// at or past the total yields an empty page.
func (m *SessionManager) GetSessionList(option core.SessionListOption) core.SessionListResult {
	m.mu.Lock()
	servers := append([]*sessionserver.SessionServer(nil), m.servers...)
	m.mu.Unlock()

	var all []core.SessionInfo
	for _, srv := range servers {
		all = append(all, srv.GetSessionList(option.SessionType, option.NameFilter)...)
	}

	total := uint32(len(all))
	start := (option.Page - 1) * option.SessionPerPage
	if start >= total {
		return core.SessionListResult{TotalSessionCount: total}
	}

	end := start + option.SessionPerPage
	if end > total {
		end = total
	}
	return core.SessionListResult{TotalSessionCount: total, SessionInfoList: all[start:end]}
}
