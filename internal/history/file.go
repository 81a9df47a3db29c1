package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/blacktop/pagepost/internal/fsutil"
	"github.com/blacktop/pagepost/internal/logutil"
	"github.com/blacktop/pagepost/internal/pagepost"
)

// FileLog keeps the history as a JSON array, rewritten wholesale on every
// change.
type FileLog struct {
	path string
	mu   sync.Mutex
}

func NewFileLog(path string) *FileLog {
	return &FileLog{path: path}
}

// Path returns the backing file.
func (l *FileLog) Path() string { return l.path }

func (l *FileLog) Append(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.read()
	if err != nil {
		// A history we cannot parse would otherwise block every future
		// append; set it aside and start over.
		aside := fmt.Sprintf("%s.corrupt-%d", l.path, time.Now().UnixMilli())
		logutil.Warnf("publish log unreadable, moving to %s: %v", aside, err)
		if renameErr := os.Rename(l.path, aside); renameErr != nil {
			return fmt.Errorf("quarantine publish log: %w", renameErr)
		}
		records = nil
	}

	records = append(records, rec)
	return l.write(records)
}

func (l *FileLog) List(ctx context.Context) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.read()
}

func (l *FileLog) ClearSuccessful(ctx context.Context) error {
	return l.retain(ctx, false)
}

func (l *FileLog) ClearFailed(ctx context.Context) error {
	return l.retain(ctx, true)
}

func (l *FileLog) Close() error { return nil }

func (l *FileLog) retain(ctx context.Context, success bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.read()
	if err != nil {
		return err
	}
	return l.write(keep(records, success))
}

func (l *FileLog) read() ([]Record, error) {
	data, err := fsutil.ReadFileIfExists(l.path)
	if err != nil {
		return nil, fmt.Errorf("read publish log: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", pagepost.ErrStorageUnavailable, l.path, err)
	}
	return records, nil
}

func (l *FileLog) write(records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("encode publish log: %w", err)
	}
	if err := fsutil.WriteFileAtomic(l.path, data, 0o600); err != nil {
		return fmt.Errorf("write publish log: %w", err)
	}
	return nil
}
