package models

import "time"

// ItemState tracks one property through the batch.
type ItemState string

const (
	ItemPending         ItemState = "PENDING"
	ItemFetching        ItemState = "FETCHING"
	ItemSuccess         ItemState = "SUCCESS"
	ItemFailedRetryable ItemState = "FAILED_RETRYABLE"
	ItemFailedTerminal  ItemState = "FAILED_TERMINAL"
)

// FailedItem is a property the batch gave up on.
type FailedItem struct {
	RunID      int64     `json:"run_id" db:"run_id"`
	PropertyID string    `json:"property_id" db:"property_id"`
	URL        string    `json:"url" db:"url"`
	Attempts   int       `json:"attempts" db:"attempts"`
	Error      string    `json:"error" db:"error"`
	FailedAt   time.Time `json:"failed_at" db:"failed_at"`
}
