package debug

import (
	"fmt"
	"net/http"
	_ "net/http/pprof"

	"github.com/sirupsen/logrus"

	"github.com/Popo-Studios/NetCoreServer/internal/core"
)

// StartUtilities spins off the services associated with debug mode, per the
// debugging section of the config.
func StartUtilities(cfg *core.Config, logger *logrus.Logger) {
	if cfg.Debugging.PprofEnabled {
		startPprofServer(cfg, logger)
	}
}

// This starts the default pprof HTTP server that can be accessed via localhost
// to get runtime information about the process. See https://golang.org/pkg/net/http/pprof/
func startPprofServer(cfg *core.Config, logger *logrus.Logger) {
	listenerAddr := fmt.Sprintf("localhost:%d", cfg.Debugging.PprofPort)
	logger.Infof("starting pprof server on %s", listenerAddr)

	go func() {
		if err := http.ListenAndServe(listenerAddr, nil); err != nil {
			logger.Infof("error starting pprof server: %s", err)
		}
	}()
}

// LogPacket writes a decoded packet header at debug level when packet
// logging is enabled. Intended to be called from a Server's packet-received
// observer.
func LogPacket(cfg *core.Config, logger *logrus.Logger, direction string, typeID uint16, peerAddr string) {
	if !cfg.Debugging.PacketLoggingEnabled {
		return
	}
	logger.WithFields(logrus.Fields{
		"direction": direction,
		"type_id":   typeID,
		"peer":      peerAddr,
	}).Debug("packet")
}
