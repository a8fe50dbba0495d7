package core

// PacketHeader is prepended to every wire frame after the 4-byte length
// prefix. Encoded as a msgpack array, never a map.
type PacketHeader struct {
	_msgpack  struct{} `msgpack:",as_array"`
	TypeID    uint16
	Timestamp int64
}

// SessionIdentifier globally identifies a session: the port of the
// SessionServer hosting it and its slot index on that server.
type SessionIdentifier struct {
	_msgpack      struct{} `msgpack:",as_array"`
	SessionPort   uint16
	SessionNumber uint16
}

// UserIdentifier is the caller-supplied identity attached to login and join
// requests.
type UserIdentifier struct {
	_msgpack  struct{} `msgpack:",as_array"`
	UserID    uint64
	UserToken string
}

// SessionInfo describes a live session for discovery and for the reply to
// a successful creation.
type SessionInfo struct {
	_msgpack       struct{} `msgpack:",as_array"`
	Name           string
	Identifier     SessionIdentifier
	MaxPlayers     uint8
	CurrentPlayers uint8
	IsPrivate      bool
	HasPassword    bool
	AuthorName     string
	SessionType    string
}

// SessionCreationOption is the payload of a CreateSession request.
type SessionCreationOption struct {
	_msgpack       struct{} `msgpack:",as_array"`
	Name           string
	Password       *string
	MaxPlayers     uint8
	IsPrivate      bool
	UserIdentifier UserIdentifier
	SessionType    string
}

// SessionListOption is the payload of a GetSessionList request.
type SessionListOption struct {
	_msgpack       struct{} `msgpack:",as_array"`
	NameFilter     *string
	Page           uint32
	SessionPerPage uint32
	SessionType    string
}

// SessionJoinOption is the payload of a JoinSession request.
type SessionJoinOption struct {
	_msgpack       struct{} `msgpack:",as_array"`
	UserIdentifier UserIdentifier
	SessionNumber  uint16
	Password       *string
}

// LoginData is the payload of a Login request.
type LoginData struct {
	_msgpack struct{} `msgpack:",as_array"`
	ID       string
	Password string
}

// LoginResult is the reply to a Login request.
type LoginResult struct {
	_msgpack       struct{} `msgpack:",as_array"`
	Success        bool
	UserIdentifier *UserIdentifier
	ErrorCode      *uint8
}

// SessionJoinResult is the reply to a JoinSession request.
type SessionJoinResult struct {
	_msgpack  struct{} `msgpack:",as_array"`
	Success   bool
	ErrorCode uint8
}

// SessionCreationResult is the reply to a CreateSession request.
type SessionCreationResult struct {
	_msgpack    struct{} `msgpack:",as_array"`
	Success     bool
	ErrorCode   uint8
	SessionInfo *SessionInfo
}

// SessionListResult is the reply to a GetSessionList request.
type SessionListResult struct {
	_msgpack          struct{} `msgpack:",as_array"`
	TotalSessionCount uint32
	SessionInfoList   []SessionInfo
}

// Error codes carried in result records. Only the codes the core itself
// raises are named here; callers may define their own above this range.
const (
	ErrorCodeNone        uint8 = 0
	ErrorCodeUnknownType uint8 = 1
	ErrorCodeCapacity    uint8 = 2
)

// SessionServerOption configures the SessionManager's placement and
// provisioning policy, and the ENet host parameters applied to every
// SessionServer it provisions.
type SessionServerOption struct {
	MaxConnection     int
	MaxChannel        int
	MaxSessions       int
	PortRangeLow      uint16
	PortRangeHigh     uint16
	QueueSize         int
	IncomingBandwidth uint32
	OutgoingBandwidth uint32
	BufferSize        BufferSize
	JoinChannel       uint8
	JoinReliable      bool
}
