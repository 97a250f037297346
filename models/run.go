package models

import "time"

type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusCompleted   RunStatus = "completed"
	RunStatusInterrupted RunStatus = "interrupted"
	RunStatusFailed      RunStatus = "failed"
)

type RunKind string

const (
	RunKindIndex   RunKind = "index"
	RunKindDetails RunKind = "details"
)

type ScrapeRun struct {
	ID          int64      `json:"id" db:"id"`
	UUID        string     `json:"uuid" db:"uuid"`
	SiteID      string     `json:"site_id" db:"site_id"`
	Kind        RunKind    `json:"kind" db:"kind"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	FinishedAt  *time.Time `json:"finished_at" db:"finished_at"`
	Status      RunStatus  `json:"status" db:"status"`
	ItemsTotal  int        `json:"items_total" db:"items_total"`
	ItemsOK     int        `json:"items_ok" db:"items_ok"`
	ItemsFailed int        `json:"items_failed" db:"items_failed"`
}
