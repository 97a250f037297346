package models

import (
	"encoding/json"
	"time"
)

// CommandType is a run request queued for the daemon.
type CommandType string

const (
	CmdRunIndex    CommandType = "run_index"
	CmdRunDetails  CommandType = "run_details"
	CmdRunPipeline CommandType = "run_pipeline"
)

func (c CommandType) Valid() bool {
	switch c {
	case CmdRunIndex, CmdRunDetails, CmdRunPipeline:
		return true
	}
	return false
}

type Command struct {
	ID          int64           `json:"id" db:"id"`
	Command     CommandType     `json:"command" db:"command"`
	Params      json.RawMessage `json:"params" db:"params"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	ProcessedAt *time.Time      `json:"processed_at" db:"processed_at"`
}

type CommandParams struct {
	Site   string `json:"site,omitempty"`
	Sample int    `json:"sample,omitempty"`
}
