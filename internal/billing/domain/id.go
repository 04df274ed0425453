package billing

import (
	"crypto/rand"
	"encoding/hex"
)

// NewRateTableID generates a random rate table identifier.
func NewRateTableID() string {
	return "rt-" + randomHex()
}

// NewParkInvoiceID generates a random park invoice identifier.
func NewParkInvoiceID() string {
	return "pinv-" + randomHex()
}

func randomHex() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return hex.EncodeToString(buf[:])
	}
	buf[6] = (buf[6] & 0x0f) | 0x40
	buf[8] = (buf[8] & 0x3f) | 0x80
	return hex.EncodeToString(buf[:])
}
