package model

import "time"

// HistoryEntry is a previously generated password held in plaintext in memory.
type HistoryEntry struct {
	Password  string
	CreatedAt time.Time
}

// StoredHistoryEntry is the persisted form of a HistoryEntry: the password is a
// ciphertext token and the date is in epoch milliseconds.
type StoredHistoryEntry struct {
	Password string `json:"password"`
	Date     int64  `json:"date"`
}

// AddHistoryRequest records a password the user accepted.
type AddHistoryRequest struct {
	Password string `json:"password"`
}

// HistoryEntryResponse represents a history entry in API responses.
type HistoryEntryResponse struct {
	Password  string    `json:"password"`
	CreatedAt time.Time `json:"created_at"`
}
