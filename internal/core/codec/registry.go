// Package codec implements the wire framing, type registry, and msgpack
// payload encoding shared by every server in the fleet.
package codec

import "sync"

// Predefined packet type ids. They occupy the top of the uint16 range so
// user-registered types can grow upward from zero without colliding.
const (
	TypeIDCreateSession  uint16 = 0xFFFF
	TypeIDJoinSession    uint16 = 0xFFFE
	TypeIDLogin          uint16 = 0xFFFD
	TypeIDGetServerType  uint16 = 0xFFFC
	TypeIDGetSessionList uint16 = 0xFFFB
)

const (
	NameCreateSession  = "CreateSession"
	NameJoinSession    = "JoinSession"
	NameLogin          = "Login"
	NameGetServerType  = "GetServerType"
	NameGetSessionList = "GetSessionList"
)

// Registry is a process-wide bidirectional map between packet type names
// and 16-bit ids. Construct one with NewRegistry; Initialize registers the
// predefined types exactly once.
type Registry struct {
	mu         sync.RWMutex
	nameToID   map[string]uint16
	idToName   map[uint16]string
	initOnce   sync.Once
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry.
func Default() *Registry {
	return defaultRegistry
}

func NewRegistry() *Registry {
	return &Registry{
		nameToID: make(map[string]uint16),
		idToName: make(map[uint16]string),
	}
}

// Initialize registers the predefined packet types. Safe to call more than
// once; only the first call has effect.
func (r *Registry) Initialize() {
	r.initOnce.Do(func() {
		r.RegisterType(TypeIDCreateSession, NameCreateSession)
		r.RegisterType(TypeIDJoinSession, NameJoinSession)
		r.RegisterType(TypeIDLogin, NameLogin)
		r.RegisterType(TypeIDGetServerType, NameGetServerType)
		r.RegisterType(TypeIDGetSessionList, NameGetSessionList)
	})
}

// RegisterType is idempotent; re-registering a name or id overwrites both
// directions.
func (r *Registry) RegisterType(id uint16, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if oldName, ok := r.idToName[id]; ok {
		delete(r.nameToID, oldName)
	}
	if oldID, ok := r.nameToID[name]; ok {
		delete(r.idToName, oldID)
	}
	r.nameToID[name] = id
	r.idToName[id] = name
}

func (r *Registry) IDByName(name string) (uint16, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.nameToID[name]
	return id, ok
}

func (r *Registry) NameByID(id uint16) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.idToName[id]
	return name, ok
}
