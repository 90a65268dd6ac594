// Package storage defines the persistence model and repository contracts
// for transformation history.
package storage

import "time"

// Transform is one completed stylization: where the original and result
// live on disk, which fallback level produced the result and how long the
// run took.
type Transform struct {
	ID              int64     `json:"id"`
	OriginalName    string    `json:"original_name"`
	OriginalPath    string    `json:"original_path"`
	TransformedPath string    `json:"transformed_path"`
	Level           string    `json:"level"`
	Width           int       `json:"width"`
	Height          int       `json:"height"`
	DurationMs      int64     `json:"duration_ms"`
	CreatedAt       time.Time `json:"created_at"`
}
