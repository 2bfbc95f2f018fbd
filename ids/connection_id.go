package ids

import (
	"encoding/binary"
	"encoding/hex"
	"errors"

	"github.com/google/uuid"
)

// ConnectionIDSize is the byte length of a ConnectionId.
const ConnectionIDSize = 16

// ConnectionID identifies one live connection. It is representable
// equivalently as a pair of uint64 halves, which the wire protocol uses.
type ConnectionID [ConnectionIDSize]byte

// NewConnectionID generates a random, client-side connection id.
//
// Grounded on google/uuid, used the same way helius-labs-laserstream-sdk
// and mickamy-sql-tap use it for opaque client-generated handles.
func NewConnectionID() ConnectionID {
	var c ConnectionID
	copy(c[:], uuid.New()[:])
	return c
}

// ConnectionIDFromHalves builds a ConnectionId from its big-endian u64 halves.
func ConnectionIDFromHalves(hi, lo uint64) ConnectionID {
	var c ConnectionID
	binary.BigEndian.PutUint64(c[0:8], hi)
	binary.BigEndian.PutUint64(c[8:16], lo)
	return c
}

// Halves returns the big-endian u64 halves of the connection id.
func (c ConnectionID) Halves() (hi, lo uint64) {
	hi = binary.BigEndian.Uint64(c[0:8])
	lo = binary.BigEndian.Uint64(c[8:16])
	return
}

// ConnectionIDFromBytes validates and wraps a raw 16-byte slice.
func ConnectionIDFromBytes(b []byte) (ConnectionID, error) {
	var c ConnectionID
	if len(b) != ConnectionIDSize {
		return c, errors.New("ids: connection id must be 16 bytes")
	}
	copy(c[:], b)
	return c, nil
}

func (c ConnectionID) IsZero() bool {
	return c == ConnectionID{}
}

func (c ConnectionID) String() string {
	return hex.EncodeToString(c[:])
}
