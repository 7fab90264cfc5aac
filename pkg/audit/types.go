package audit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Entry is a single append-only audit trail record for a
// compliance-sensitive event
type Entry struct {
	ID           int64     `json:"id,omitempty"`
	EventType    string    `json:"event_type"`
	ResourceType string    `json:"resource_type"`
	ResourceID   string    `json:"resource_id"`
	ResourceName string    `json:"resource_name,omitempty"`
	Actor        string    `json:"actor,omitempty"`
	BranchID     string    `json:"branch_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
}

// Filter selects audit entries for Search
type Filter struct {
	StartTime    *time.Time
	EndTime      *time.Time
	EventTypes   []string
	Actor        string
	ResourceType string
	ResourceID   string

	Limit  int
	Offset int
}

// encodeNDJSON renders entries as newline-delimited JSON, the archive
// format
func encodeNDJSON(entries []*Entry) ([]byte, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	for _, entry := range entries {
		if err := encoder.Encode(entry); err != nil {
			return nil, fmt.Errorf("failed to encode entry: %w", err)
		}
	}
	return buf.Bytes(), nil
}
