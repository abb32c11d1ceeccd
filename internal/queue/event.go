// Package queue defines message payloads exchanged over the message broker
// and the background consumer that records them.
package queue

// ContactReceivedEvent is published when a visitor submits the contact
// form.  It carries enough for a consumer to log or forward the inquiry
// without querying the primary database.
type ContactReceivedEvent struct {
	ContactID  uint64 `json:"contact_id"`
	Name       string `json:"name"`
	Email      string `json:"email"`
	Subject    string `json:"subject,omitempty"`
	Preview    string `json:"preview"`
	ReceivedAt string `json:"received_at"`
}

// previewLen bounds the message excerpt carried in the event.
const previewLen = 120

// Preview shortens message to at most previewLen runes for the event.
func Preview(message string) string {
	r := []rune(message)
	if len(r) <= previewLen {
		return message
	}
	return string(r[:previewLen]) + "..."
}
