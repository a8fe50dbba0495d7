package codec

import (
	"encoding/binary"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Popo-Studios/NetCoreServer/internal/core"
)

// DecodedPacket is the result of Decode: a parsed header and the opaque
// payload bytes, left undecoded for the dispatch layer to re-decode per
// handler with ParsePayload.
type DecodedPacket struct {
	Header  core.PacketHeader
	Payload []byte
}

// Encode serializes header and payload, prepending a 4-byte little-endian
// header length. Unknown type names log an error and return nil.
func Encode(r *Registry, logger *logrus.Logger, typeName string, payload any, timestamp int64) []byte {
	id, ok := r.IDByName(typeName)
	if !ok {
		logger.Errorf("failed to encode packet: unknown packet type name %q", typeName)
		return nil
	}
	return EncodeByID(logger, id, payload, timestamp)
}

// EncodeByID is the typeId-keyed counterpart of Encode.
func EncodeByID(logger *logrus.Logger, typeID uint16, payload any, timestamp int64) []byte {
	header := core.PacketHeader{TypeID: typeID, Timestamp: timestamp}

	headerBytes, err := msgpack.Marshal(&header)
	if err != nil {
		logger.Errorf("failed to encode packet header: %v", err)
		return nil
	}
	payloadBytes, err := msgpack.Marshal(payload)
	if err != nil {
		logger.Errorf("failed to encode packet payload: %v", err)
		return nil
	}

	return assembleFrame(headerBytes, payloadBytes)
}

// EncodeEmpty produces a header-only frame with no payload section.
func EncodeEmpty(logger *logrus.Logger, typeID uint16, timestamp int64) []byte {
	header := core.PacketHeader{TypeID: typeID, Timestamp: timestamp}

	headerBytes, err := msgpack.Marshal(&header)
	if err != nil {
		logger.Errorf("failed to encode packet header: %v", err)
		return nil
	}
	return assembleFrame(headerBytes, nil)
}

func assembleFrame(headerBytes, payloadBytes []byte) []byte {
	buf := make([]byte, 4+len(headerBytes)+len(payloadBytes))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(len(headerBytes)))
	copy(buf[4:], headerBytes)
	copy(buf[4+len(headerBytes):], payloadBytes)
	return buf
}

// Decode reads the header length prefix, decodes the header, and returns
// the remaining bytes as an opaque payload. Returns (nil, false) on
// short or invalid frames.
func Decode(data []byte) (*DecodedPacket, bool) {
	if len(data) < 4 {
		return nil, false
	}
	headerLen := binary.LittleEndian.Uint32(data[0:4])
	if 4+uint64(headerLen) > uint64(len(data)) {
		return nil, false
	}

	var header core.PacketHeader
	if err := msgpack.Unmarshal(data[4:4+headerLen], &header); err != nil {
		return nil, false
	}

	return &DecodedPacket{
		Header:  header,
		Payload: data[4+headerLen:],
	}, true
}

// ParsePayload decodes payload into a T. On failure it logs and returns
// the zero value; handlers are expected to treat a zero-valued result as
// meaningfully absent (e.g. success=false fields).
func ParsePayload[T any](logger *logrus.Logger, payload []byte) T {
	var result T
	if len(payload) == 0 {
		return result
	}
	if err := msgpack.Unmarshal(payload, &result); err != nil {
		logger.Errorf("failed to parse payload: %v", err)
		return result
	}
	return result
}

// GenerateUUID returns a random v4 UUID string.
func GenerateUUID() string {
	return uuid.New().String()
}
