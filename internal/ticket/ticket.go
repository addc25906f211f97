package ticket

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// State of a login ticket. Absence from the store is the terminal
// "expired" state; it is never written explicitly.
type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateConsumed  State = "consumed"
	// StateExpired is only ever reported, never stored.
	StateExpired State = "expired"
)

// Record is the persisted shape of one login attempt.
type Record struct {
	State     State     `json:"state"`
	Principal string    `json:"principal,omitempty"`
	Redirect  string    `json:"redirect,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Descriptor is what the primary device gets back from Create: enough to
// render a QR code and correlate the subscription, nothing more.
type Descriptor struct {
	ID        string    `json:"ticket_id"`
	ScanURL   string    `json:"scan_url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewID returns a 128-bit random identifier, hex encoded. UUIDv4 only
// carries 122 random bits, so the id is drawn straight from crypto/rand.
func NewID() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("failed to generate ticket id: %w", err)
	}
	return hex.EncodeToString(b[:]), nil
}
