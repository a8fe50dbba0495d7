package sessionmanager

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Popo-Studios/NetCoreServer/internal/core"
	"github.com/Popo-Studios/NetCoreServer/internal/core/codec"
	"github.com/Popo-Studios/NetCoreServer/internal/core/transport"
	"github.com/Popo-Studios/NetCoreServer/internal/session"
)

type fakeHost struct {
	port uint16
}

func (h *fakeHost) Service(timeoutMs uint32) (transport.Event, error) {
	time.Sleep(time.Duration(timeoutMs) * time.Millisecond)
	return transport.Event{Type: transport.EventNone}, nil
}
func (h *fakeHost) Send(transport.Peer, uint8, []byte, transport.PacketFlag) error { return nil }
func (h *fakeHost) Port() uint16                                                   { return h.port }
func (h *fakeHost) Destroy()                                                       {}

func fakeCreateHost(port uint16, _, _ int, _, _ uint32, _ int32) (transport.Host, error) {
	return &fakeHost{port: port}, nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestManager(maxSessions int, portLow uint16) *SessionManager {
	registry := codec.NewRegistry()
	registry.Initialize()
	opt := core.SessionServerOption{
		MaxConnection: 32, MaxChannel: 2, MaxSessions: maxSessions,
		PortRangeLow: portLow, PortRangeHigh: portLow + 10,
		JoinReliable: true,
	}
	m := New(opt, func(uint64) string { return "author" }, fakeCreateHost, registry, testLogger())
	m.Start(context.Background())
	return m
}

func noopGenerator(info core.SessionInfo, opt core.SessionCreationOption) *session.AbstractSession {
	return session.NewAbstractSession(info, opt, 1000, nil, nil, testLogger())
}

func TestCreateNewSession_UnknownType(t *testing.T) {
	m := newTestManager(10, 6000)
	result := m.CreateNewSession(core.SessionCreationOption{SessionType: "missing"})
	if result.Success || result.ErrorCode != core.ErrorCodeUnknownType {
		t.Errorf("CreateNewSession(unknown type) = %+v, want success=false errorCode=%d", result, core.ErrorCodeUnknownType)
	}
}

func TestCreateNewSession_FirstSessionPortDerivation(t *testing.T) {
	m := newTestManager(10, 6000)
	m.RegisterSessionGenerator("lobby", noopGenerator)

	result := m.CreateNewSession(core.SessionCreationOption{Name: "Arena", SessionType: "lobby", UserIdentifier: core.UserIdentifier{UserID: 7}})
	if !result.Success {
		t.Fatalf("CreateNewSession failed: %+v", result)
	}
	if result.SessionInfo.Identifier.SessionPort != 6000 || result.SessionInfo.Identifier.SessionNumber != 0 {
		t.Errorf("first session identifier = %+v, want {6000,0}", result.SessionInfo.Identifier)
	}
	if result.SessionInfo.AuthorName != "author" {
		t.Errorf("AuthorName = %q, want %q", result.SessionInfo.AuthorName, "author")
	}
}

func TestCreateNewSession_SecondSessionReusesServer(t *testing.T) {
	m := newTestManager(10, 6000)
	m.RegisterSessionGenerator("lobby", noopGenerator)

	m.CreateNewSession(core.SessionCreationOption{Name: "A", SessionType: "lobby"})
	result := m.CreateNewSession(core.SessionCreationOption{Name: "B", SessionType: "lobby"})

	if result.SessionInfo.Identifier.SessionPort != 6000 || result.SessionInfo.Identifier.SessionNumber != 1 {
		t.Errorf("second session identifier = %+v, want {6000,1} (same server, next slot)", result.SessionInfo.Identifier)
	}
}

func TestCreateNewSession_NewTypeProvisionsNewPort(t *testing.T) {
	m := newTestManager(10, 6000)
	m.RegisterSessionGenerator("lobby", noopGenerator)
	m.RegisterSessionGenerator("dungeon", noopGenerator)

	m.CreateNewSession(core.SessionCreationOption{Name: "A", SessionType: "lobby"})
	result := m.CreateNewSession(core.SessionCreationOption{Name: "B", SessionType: "dungeon"})

	if result.SessionInfo.Identifier.SessionPort != 6001 {
		t.Errorf("session of a new type should provision the next port; got %+v", result.SessionInfo.Identifier)
	}
}

func TestCreateNewSession_CapacityExhausted(t *testing.T) {
	m := newTestManager(1, 6000)
	m.RegisterSessionGenerator("lobby", noopGenerator)
	m.RegisterSessionGenerator("dungeon", noopGenerator)

	first := m.CreateNewSession(core.SessionCreationOption{Name: "A", SessionType: "lobby"})
	if !first.Success {
		t.Fatalf("first creation should succeed: %+v", first)
	}

	second := m.CreateNewSession(core.SessionCreationOption{Name: "B", SessionType: "dungeon"})
	if second.Success || second.ErrorCode != core.ErrorCodeCapacity {
		t.Errorf("CreateNewSession beyond maxSessions = %+v, want success=false errorCode=%d", second, core.ErrorCodeCapacity)
	}
}

func TestGetSessionList_Paging(t *testing.T) {
	m := newTestManager(20, 6000)
	m.RegisterSessionGenerator("lobby", noopGenerator)

	for i := 0; i < 12; i++ {
		m.CreateNewSession(core.SessionCreationOption{Name: "S", SessionType: "lobby"})
	}

	result := m.GetSessionList(core.SessionListOption{Page: 2, SessionPerPage: 5, SessionType: "lobby"})
	if result.TotalSessionCount != 12 {
		t.Errorf("TotalSessionCount = %d, want 12", result.TotalSessionCount)
	}
	if len(result.SessionInfoList) != 5 {
		t.Errorf("page 2 of 5 should return 5 items, got %d", len(result.SessionInfoList))
	}
}

func TestGetSessionList_PageBeyondTotalIsEmpty(t *testing.T) {
	m := newTestManager(20, 6000)
	m.RegisterSessionGenerator("lobby", noopGenerator)
	m.CreateNewSession(core.SessionCreationOption{Name: "S", SessionType: "lobby"})

	result := m.GetSessionList(core.SessionListOption{Page: 5, SessionPerPage: 10, SessionType: "lobby"})
	if result.TotalSessionCount != 1 || len(result.SessionInfoList) != 0 {
		t.Errorf("GetSessionList() past the last page = %+v, want TotalSessionCount=1 and an empty list", result)
	}
}
