// Package history persists one record per destination per publish run.
//
// The durable order is oldest-first. Callers that want newest-first for
// display use Newest, which never touches storage.
package history

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"slices"
	"time"
)

const (
	BackendJSON = "json"
	BackendBolt = "bolt"

	jsonFileName = "logs.json"
	boltFileName = "logs.db"
)

// Record is a single publish attempt against one page.
type Record struct {
	PageID    string          `json:"pageId"`
	Success   bool            `json:"success"`
	Response  json.RawMessage `json:"response"`
	Caption   string          `json:"caption"`
	Timestamp string          `json:"timestamp"`
}

// NewRecord stamps a record with at formatted by layout.
func NewRecord(pageID string, success bool, response json.RawMessage, caption string, at time.Time, layout string) Record {
	if len(response) == 0 {
		response = nil
	}
	return Record{
		PageID:    pageID,
		Success:   success,
		Response:  response,
		Caption:   caption,
		Timestamp: at.Format(layout),
	}
}

// Log is the durable publish history.
type Log interface {
	Append(ctx context.Context, rec Record) error
	List(ctx context.Context) ([]Record, error)
	ClearSuccessful(ctx context.Context) error
	ClearFailed(ctx context.Context) error
	Close() error
}

// Open returns the Log for backend rooted at dir.
func Open(backend, dir string) (Log, error) {
	switch backend {
	case "", BackendJSON:
		return NewFileLog(filepath.Join(dir, jsonFileName)), nil
	case BackendBolt:
		return NewBoltLog(filepath.Join(dir, boltFileName))
	default:
		return nil, fmt.Errorf("unknown log backend %q", backend)
	}
}

// Newest returns a reversed copy of records.
func Newest(records []Record) []Record {
	out := slices.Clone(records)
	slices.Reverse(out)
	return out
}

// Split partitions records by outcome, preserving order.
func Split(records []Record) (succeeded, failed []Record) {
	for _, rec := range records {
		if rec.Success {
			succeeded = append(succeeded, rec)
		} else {
			failed = append(failed, rec)
		}
	}
	return succeeded, failed
}

func keep(records []Record, success bool) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec.Success == success {
			out = append(out, rec)
		}
	}
	return out
}
