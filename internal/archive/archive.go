// Package archive stores finished session reports as JSON objects.
package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/weiawesome/wes-io-live/live-service/internal/live"
	"github.com/weiawesome/wes-io-live/live-service/pkg/storage"
)

const contentType = "application/json"

// Writer writes reports under <prefix>/<yyyy-mm-dd>/<sessionId>.json, dated
// by the broadcast start in UTC.
type Writer struct {
	storage storage.Storage
	prefix  string
}

// NewWriter creates a report writer.
func NewWriter(s storage.Storage, prefix string) *Writer {
	return &Writer{storage: s, prefix: strings.Trim(prefix, "/")}
}

// Key returns the object key for a report.
func (w *Writer) Key(r live.SessionReport) string {
	return path.Join(w.datePrefix(r.StartedAt), r.SessionID+".json")
}

func (w *Writer) datePrefix(t time.Time) string {
	day := t.UTC().Format("2006-01-02")
	if w.prefix == "" {
		return day
	}
	return w.prefix + "/" + day
}

// WriteReport stores r and returns its key.
func (w *Writer) WriteReport(ctx context.Context, r live.SessionReport) (string, error) {
	if r.SessionID == "" {
		return "", fmt.Errorf("report has no session id")
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	key := w.Key(r)
	if err := w.storage.Write(ctx, key, bytes.NewReader(data), int64(len(data)), contentType); err != nil {
		return "", fmt.Errorf("failed to write report %s: %w", key, err)
	}
	return key, nil
}

// ReadReport loads the report stored under key.
func (w *Writer) ReadReport(ctx context.Context, key string) (*live.SessionReport, error) {
	rc, err := w.storage.Read(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var r live.SessionReport
	if err := json.NewDecoder(rc).Decode(&r); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", key, err)
	}
	return &r, nil
}

// List returns the keys of reports for sessions started on day, sorted.
func (w *Writer) List(ctx context.Context, day time.Time) ([]string, error) {
	files, err := w.storage.List(ctx, w.datePrefix(day)+"/")
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(files))
	for _, f := range files {
		if strings.HasSuffix(f.Key, ".json") {
			keys = append(keys, f.Key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// URL returns a link to a stored report.
func (w *Writer) URL(ctx context.Context, key string, expires time.Duration) (string, error) {
	return w.storage.GetURL(ctx, key, expires)
}
