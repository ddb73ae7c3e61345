// Package ingest holds types shared by history importers.
package ingest

// Result holds the outcome of an ingest operation.
type Result struct {
	SessionsReceived int   `json:"sessions_received"`
	SessionsInserted int   `json:"sessions_inserted"`
	SessionsSkipped  int   `json:"sessions_skipped"`
	SetsReceived     int   `json:"sets_received"`
	SetsInserted     int64 `json:"sets_inserted"`

	Message string `json:"message,omitempty"`
}
