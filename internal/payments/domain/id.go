package payments

import (
	"crypto/rand"
	"encoding/hex"
)

// NewPaymentID generates a random payment identifier.
func NewPaymentID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return hex.EncodeToString(buf[:])
	}
	buf[6] = (buf[6] & 0x0f) | 0x40
	buf[8] = (buf[8] & 0x3f) | 0x80
	return "pay-" + hex.EncodeToString(buf[:])
}
