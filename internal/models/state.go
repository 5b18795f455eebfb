package models

import (
	"encoding/json"
	"time"
)

// StateRecord is one row of the app_state key-value table.
type StateRecord struct {
	Key       string          `json:"key"`
	Value     json.RawMessage `json:"value"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
