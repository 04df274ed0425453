package eventing

import (
	"crypto/rand"
	"encoding/hex"
)

// NewEventID returns a fresh identifier for a billing event envelope.
// IDs must be unique per event because consumers dedupe on them; the
// bytes are UUIDv4-shaped so they read well in the dead-letter table.
func NewEventID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return hex.EncodeToString(buf[:])
	}
	buf[6] = (buf[6] & 0x0f) | 0x40
	buf[8] = (buf[8] & 0x3f) | 0x80
	return hex.EncodeToString(buf[:])
}

func newEventID() string {
	return NewEventID()
}
