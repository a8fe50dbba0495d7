package main

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Popo-Studios/NetCoreServer/internal/core"
	"github.com/Popo-Studios/NetCoreServer/internal/session"
	"github.com/Popo-Studios/NetCoreServer/internal/sessionmanager"
)

// sessionLogger is used by demo session generators only; the fleet's own
// components log through the Controller-managed logger instead.
var sessionLogger = logrus.StandardLogger()

// loginFunc, usernameProvider, and sessionGenerators are the
// application-specific policy the core has no opinion on. This binary
// ships an in-memory demo policy: any non-empty id/password pair logs
// in, uids are handed out sequentially, and a single "lobby" session
// type is registered.

var nextDemoUID uint64

func loginFunc(data core.LoginData) core.LoginResult {
	if data.ID == "" || data.Password == "" {
		return core.LoginResult{Success: false}
	}
	nextDemoUID++
	return core.LoginResult{
		Success:        true,
		UserIdentifier: &core.UserIdentifier{UserID: nextDemoUID, UserToken: data.ID},
	}
}

func usernameProvider(uid uint64) string {
	return fmt.Sprintf("user-%d", uid)
}

var sessionGenerators = map[string]sessionmanager.SessionGenerator{
	"lobby": newLobbySession,
}

const lobbyFramerate = 20

func newLobbySession(info core.SessionInfo, opt core.SessionCreationOption) *session.AbstractSession {
	return session.NewAbstractSession(info, opt, lobbyFramerate, nil, nil, sessionLogger)
}
