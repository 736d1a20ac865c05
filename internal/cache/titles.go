package cache

import "time"

// TitleEntry is the value stored per conversation in the domain title index
// hash. Search scans these without touching the full conversation records.
type TitleEntry struct {
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}
