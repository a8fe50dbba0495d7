package sessionserver

import (
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Popo-Studios/NetCoreServer/internal/core"
	"github.com/Popo-Studios/NetCoreServer/internal/core/codec"
	"github.com/Popo-Studios/NetCoreServer/internal/core/transport"
	"github.com/Popo-Studios/NetCoreServer/internal/server"
	"github.com/Popo-Studios/NetCoreServer/internal/session"
)

type fakePeer struct{ id string }

func (p *fakePeer) Address() string { return p.id }

type fakeHost struct {
	events chan transport.Event
	port   uint16
}

func newFakeHost() *fakeHost {
	return &fakeHost{events: make(chan transport.Event, 16), port: 7000}
}

func (h *fakeHost) Service(timeoutMs uint32) (transport.Event, error) {
	select {
	case ev := <-h.events:
		return ev, nil
	case <-time.After(time.Duration(timeoutMs) * time.Millisecond):
		return transport.Event{Type: transport.EventNone}, nil
	}
}
func (h *fakeHost) Send(transport.Peer, uint8, []byte, transport.PacketFlag) error { return nil }
func (h *fakeHost) Port() uint16                                                   { return h.port }
func (h *fakeHost) Destroy()                                                       {}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestSessionServer() *SessionServer {
	registry := codec.NewRegistry()
	registry.Initialize()
	base := server.NewEventedServer(server.ServerTypeSession, newFakeHost(), registry, testLogger())
	return New(base, "lobby", 0, true)
}

func newTestSession() *session.AbstractSession {
	info := core.SessionInfo{Name: "Arena", SessionType: "lobby", MaxPlayers: 4}
	return session.NewAbstractSession(info, core.SessionCreationOption{}, 1000, nil, nil, testLogger())
}

func TestSessionServer_AttachSession_ReusesFreedSlot(t *testing.T) {
	ss := newTestSessionServer()

	num0 := ss.AttachSession(newTestSession())
	num1 := ss.AttachSession(newTestSession())
	if num0 != 0 || num1 != 1 {
		t.Fatalf("expected sequential slots 0,1; got %d,%d", num0, num1)
	}

	ss.DetachSession(num0)

	num2 := ss.AttachSession(newTestSession())
	if num2 != 0 {
		t.Errorf("expected the freed slot 0 to be reused; got %d", num2)
	}
}

func TestSessionServer_AddRemoveUser_DetachesOnLastLeave(t *testing.T) {
	ss := newTestSessionServer()
	num := ss.AttachSession(newTestSession())

	if !ss.AddUser(num, 1) {
		t.Fatal("AddUser failed for a live slot")
	}
	if !ss.AddUser(num, 2) {
		t.Fatal("AddUser failed for a live slot")
	}

	list := ss.GetSessionList("lobby", nil)
	if len(list) != 1 || list[0].CurrentPlayers != 2 {
		t.Fatalf("GetSessionList = %+v, want one session with CurrentPlayers=2", list)
	}

	ss.RemoveUser(1)
	list = ss.GetSessionList("lobby", nil)
	if len(list) != 1 || list[0].CurrentPlayers != 1 {
		t.Fatalf("after removing one of two members, GetSessionList = %+v", list)
	}

	ss.RemoveUser(2)
	list = ss.GetSessionList("lobby", nil)
	if len(list) != 0 {
		t.Fatalf("expected the session to be detached after its last member left; GetSessionList = %+v", list)
	}
}

func TestSessionServer_GetSessionList_SkipsPrivateAndWrongType(t *testing.T) {
	ss := newTestSessionServer()

	privateInfo := core.SessionInfo{Name: "Secret", SessionType: "lobby", IsPrivate: true}
	privateSession := session.NewAbstractSession(privateInfo, core.SessionCreationOption{}, 1000, nil, nil, testLogger())
	ss.AttachSession(privateSession)
	ss.AttachSession(newTestSession())

	list := ss.GetSessionList("lobby", nil)
	if len(list) != 1 || list[0].Name != "Arena" {
		t.Errorf("GetSessionList should skip the private session; got %+v", list)
	}

	if got := ss.GetSessionList("dungeon", nil); len(got) != 0 {
		t.Errorf("GetSessionList for a non-matching type should be empty; got %+v", got)
	}
}
