package internal

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Popo-Studios/NetCoreServer/internal/core"
	"github.com/Popo-Studios/NetCoreServer/internal/core/codec"
	"github.com/Popo-Studios/NetCoreServer/internal/core/debug"
	"github.com/Popo-Studios/NetCoreServer/internal/core/transport"
	"github.com/Popo-Studios/NetCoreServer/internal/mainserver"
	"github.com/Popo-Studios/NetCoreServer/internal/server"
	"github.com/Popo-Studios/NetCoreServer/internal/sessionmanager"
)

// Controller is the main entrypoint for the fleet. It's responsible for
// initializing shared resources (transport, logging), wiring the
// caller-supplied login predicate and session generators, and launching
// the MainServer and the SessionManager it owns.
type Controller struct {
	Config *core.Config

	// LoginFunc is the authentication predicate. The core carries no
	// opinion on how credentials are checked; it only reacts to the
	// result.
	LoginFunc mainserver.LoginFunc
	// UsernameProvider resolves a uid to a display name at session
	// creation time.
	UsernameProvider sessionmanager.UsernameProvider
	// SessionGenerators maps a sessionType to the function that seeds a
	// new session of that type. Must cover every sessionType a client
	// can request.
	SessionGenerators map[string]sessionmanager.SessionGenerator

	logger         *logrus.Logger
	registry       *codec.Registry
	sessionManager *sessionmanager.SessionManager
	mainServer     *mainserver.MainServer
}

// Start brings up the transport library, the MainServer, and the
// SessionManager it owns, then returns -- the servers run on their own
// workers. Call Wait to block until they exit.
func (c *Controller) Start(ctx context.Context) error {
	var err error
	c.logger, err = core.NewLogger(c.Config)
	if err != nil {
		return fmt.Errorf("error initializing logger: %w", err)
	}

	debug.StartUtilities(c.Config, c.logger)

	if err := transport.Initialize(); err != nil {
		return fmt.Errorf("error initializing transport: %w", err)
	}

	c.registry = codec.Default()
	c.registry.Initialize()

	sessionOpt := core.SessionServerOption{
		MaxConnection:     c.Config.SessionServer.MaxConnections,
		MaxChannel:        c.Config.SessionServer.MaxChannels,
		MaxSessions:       c.Config.SessionServer.MaxSessions,
		PortRangeLow:      c.Config.SessionServer.PortRangeLow,
		PortRangeHigh:     c.Config.SessionServer.PortRangeHigh,
		QueueSize:         c.Config.SessionServer.QueueSize,
		IncomingBandwidth: c.Config.SessionServer.InBandwidth,
		OutgoingBandwidth: c.Config.SessionServer.OutBandwidth,
		BufferSize:        c.Config.SessionServer.BufferSize,
		JoinChannel:       c.Config.SessionServer.JoinChannel,
		JoinReliable:      c.Config.SessionServer.JoinReliable,
	}

	c.sessionManager = sessionmanager.New(sessionOpt, c.UsernameProvider, transport.NewEnetHost, c.registry, c.logger)
	c.sessionManager.Start(ctx)
	c.sessionManager.RegisterPacketReceivedHandler(c.logReceivedPacket)

	for sessionType, gen := range c.SessionGenerators {
		c.sessionManager.RegisterSessionGenerator(sessionType, gen)
	}

	host, err := transport.NewEnetHost(
		uint16(c.Config.MainServer.Port),
		sessionOpt.MaxConnection,
		sessionOpt.MaxChannel,
		sessionOpt.IncomingBandwidth,
		sessionOpt.OutgoingBandwidth,
		int32(sessionOpt.BufferSize),
	)
	if err != nil {
		return fmt.Errorf("error creating main server host: %w", err)
	}

	base := server.NewEventedServer(server.ServerTypeMain, host, c.registry, c.logger)
	c.mainServer = mainserver.New(base, c.LoginFunc, c.sessionManager, mainserver.Config{
		LoginChannel:    c.Config.MainServer.LoginChannel,
		LoginReliable:   c.Config.MainServer.LoginReliable,
		SessionChannel:  c.Config.MainServer.SessionChannel,
		SessionReliable: c.Config.MainServer.SessionReliable,
	})
	c.mainServer.RegisterPacketReceivedHandler(c.logReceivedPacket)
	c.mainServer.Start(ctx)

	c.logger.Infof("main server listening on %s", c.Config.MainServerAddress())
	return nil
}

// logReceivedPacket is replayed onto the MainServer and every SessionServer
// the fleet provisions, so packet logging in debug mode covers the whole
// fleet rather than just the server it was registered on first.
func (c *Controller) logReceivedPacket(peer transport.Peer, data []byte) {
	decoded, ok := codec.Decode(data)
	if !ok {
		return
	}
	debug.LogPacket(c.Config, c.logger, "recv", decoded.Header.TypeID, peer.Address())
}

// Wait blocks until the MainServer's worker exits.
func (c *Controller) Wait() {
	if c.mainServer != nil {
		c.mainServer.Wait()
	}
}

// Shutdown stops the MainServer and releases its transport host. Call
// after canceling the context passed to Start.
func (c *Controller) Shutdown() {
	if c.mainServer == nil {
		return
	}
	c.mainServer.Stop()
	c.mainServer.Wait()
	c.mainServer.Destroy()
}
