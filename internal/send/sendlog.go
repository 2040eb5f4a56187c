package send

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
)

// LogEntry is one line of the shared append-only send log
// (_meta/send_log.jsonl at the Inbox-root level).
type LogEntry struct {
	At           string   `json:"at"`
	FromUser     string   `json:"from_user"`
	ToUser       string   `json:"to_user"`
	OriginItemID string   `json:"origin_item_id"`
	NewItemID    string   `json:"new_item_id"`
	Kind         string   `json:"kind"`
	OriginType   string   `json:"origin_type"`
	OriginName   string   `json:"origin_name"`
	Tags         []string `json:"tags"`
}

// timeNow is swappable in tests.
var timeNow = time.Now

// AppendLog appends one entry as a JSON line, creating the log file and
// its directory on first use.
func AppendLog(path string, entry LogEntry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create log dir: %w", err)
	}

	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return eris.Wrap(err, "open send log")
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return eris.Wrap(err, "append send log")
	}
	return nil
}

// ReadLog returns every parseable entry in the send log, oldest first.
// A missing file yields an empty slice; malformed lines are skipped so
// one bad append never hides the rest of the history.
func ReadLog(path string) ([]LogEntry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []LogEntry{}, nil
		}
		return nil, eris.Wrap(err, "open send log")
	}
	defer f.Close()

	var entries []LogEntry
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e LogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrap(err, "read send log")
	}
	if entries == nil {
		entries = []LogEntry{}
	}
	return entries, nil
}
