package history

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blacktop/pagepost/internal/pagepost"
)

func backends(t *testing.T) map[string]func(t *testing.T) Log {
	t.Helper()
	return map[string]func(t *testing.T) Log{
		BackendJSON: func(t *testing.T) Log {
			l, err := Open(BackendJSON, t.TempDir())
			require.NoError(t, err)
			return l
		},
		BackendBolt: func(t *testing.T) Log {
			l, err := Open(BackendBolt, t.TempDir())
			require.NoError(t, err)
			t.Cleanup(func() { l.Close() })
			return l
		},
	}
}

func rec(page string, success bool) Record {
	return Record{
		PageID:    page,
		Success:   success,
		Response:  json.RawMessage(`{"id":"` + page + `"}`),
		Caption:   "caption " + page,
		Timestamp: "1/2/2025, 3:04:05 PM",
	}
}

func pageIDs(records []Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.PageID)
	}
	return ids
}

func TestLog_AppendKeepsOldestFirst(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := open(t)

			empty, err := l.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, empty)

			for _, r := range []Record{rec("a", true), rec("b", false), rec("c", true)} {
				require.NoError(t, l.Append(ctx, r))
			}

			got, err := l.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "b", "c"}, pageIDs(got))
			assert.JSONEq(t, `{"id":"b"}`, string(got[1].Response))
			assert.Equal(t, "caption b", got[1].Caption)
		})
	}
}

func TestLog_ClearingIsComplementary(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			original := []Record{rec("a", true), rec("b", false), rec("c", true), rec("d", false)}

			successCleared := open(t)
			failedCleared := open(t)
			for _, r := range original {
				require.NoError(t, successCleared.Append(ctx, r))
				require.NoError(t, failedCleared.Append(ctx, r))
			}

			require.NoError(t, successCleared.ClearSuccessful(ctx))
			onlyFailed, err := successCleared.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"b", "d"}, pageIDs(onlyFailed))
			for _, r := range onlyFailed {
				assert.False(t, r.Success)
			}

			require.NoError(t, failedCleared.ClearFailed(ctx))
			onlySuccess, err := failedCleared.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a", "c"}, pageIDs(onlySuccess))
			for _, r := range onlySuccess {
				assert.True(t, r.Success)
			}

			union := append(append([]Record{}, onlyFailed...), onlySuccess...)
			assert.ElementsMatch(t, pageIDs(original), pageIDs(union))

			// clearing again is a no-op
			require.NoError(t, successCleared.ClearSuccessful(ctx))
			again, err := successCleared.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, pageIDs(onlyFailed), pageIDs(again))
		})
	}
}

func TestLog_ConcurrentAppendsAreNotLost(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			l := open(t)

			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					assert.NoError(t, l.Append(ctx, rec("p", true)))
				}()
			}
			wg.Wait()

			got, err := l.List(ctx)
			require.NoError(t, err)
			assert.Len(t, got, 20)
		})
	}
}

func TestFileLog_WireFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs.json")
	l := NewFileLog(path)

	at := time.Date(2025, 3, 7, 14, 5, 9, 0, time.Local)
	r := NewRecord("p1", true, json.RawMessage(`{"id":"999"}`), "Hello", at, "1/2/2006, 3:04:05 PM")
	require.NoError(t, l.Append(context.Background(), r))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"pageId":"p1","success":true,"response":{"id":"999"},"caption":"Hello","timestamp":"3/7/2025, 2:05:09 PM"}]`, string(data))

	require.NoError(t, l.ClearSuccessful(context.Background()))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestFileLog_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	l := NewFileLog(path)

	_, err := l.List(context.Background())
	assert.ErrorIs(t, err, pagepost.ErrStorageUnavailable)

	require.NoError(t, l.Append(context.Background(), rec("a", true)))
	got, err := l.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, pageIDs(got))

	matches, err := filepath.Glob(filepath.Join(dir, "logs.json.corrupt-*"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}

func TestNewRecord_NullResponse(t *testing.T) {
	r := NewRecord("p", false, json.RawMessage{}, "", time.Now(), time.RFC3339)
	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"response":null`)
}

func TestNewestAndSplit(t *testing.T) {
	records := []Record{rec("a", true), rec("b", false), rec("c", true)}

	assert.Equal(t, []string{"c", "b", "a"}, pageIDs(Newest(records)))
	assert.Equal(t, []string{"a", "b", "c"}, pageIDs(records), "Newest must not mutate its input")

	ok, failed := Split(records)
	assert.Equal(t, []string{"a", "c"}, pageIDs(ok))
	assert.Equal(t, []string{"b"}, pageIDs(failed))
}

func TestOpen_UnknownBackend(t *testing.T) {
	_, err := Open("sqlite", t.TempDir())
	assert.Error(t, err)
}
