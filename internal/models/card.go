package models

import "time"

// CardDocument is a rendered ID card ready for delivery.
type CardDocument struct {
	StudentID int
	Filename  string
	Content   []byte
}

// CardLink is a signed, expiring download link for a card.
type CardLink struct {
	URL       string    `json:"url"`
	Filename  string    `json:"filename"`
	ExpiresAt time.Time `json:"expires_at"`
}

// BulkFailure records a per-student failure inside a bulk operation.
type BulkFailure struct {
	ID     int    `json:"id"`
	Name   string `json:"name,omitempty"`
	Reason string `json:"reason"`
}

// BulkResult summarises a bulk regenerate or delete.
type BulkResult struct {
	Requested int           `json:"requested"`
	Succeeded int           `json:"succeeded"`
	Failed    []BulkFailure `json:"failed,omitempty"`
}
