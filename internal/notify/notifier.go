package notify

import "context"

// Event is the single meaningful message a waiting primary device can
// receive for its ticket.
type Event struct {
	Type     string `json:"type"`
	TicketID string `json:"ticket_id"`
	Redirect string `json:"redirect"`
}

const EventConfirmed = "confirmed"

// Notifier correlates the waiting primary device with the confirming
// secondary device for one ticket id. Publish is fire-and-forget: the
// ticket store stays the source of truth, so a missed event only costs
// latency (the subscriber falls back to polling).
type Notifier interface {
	// Subscribe registers a waiter for id. The returned channel yields at
	// most one event and is closed by cancel. Cancel must always be
	// called; it releases the registry entry promptly.
	Subscribe(id string) (<-chan Event, func())

	// Publish delivers ev to current subscribers of id, if any.
	Publish(ctx context.Context, id string, ev Event) error
}
