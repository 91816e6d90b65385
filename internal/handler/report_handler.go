package handler

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/weiawesome/wes-io-live/live-service/internal/live"
	"github.com/weiawesome/wes-io-live/live-service/pkg/log"
	"github.com/weiawesome/wes-io-live/live-service/pkg/response"
	"github.com/weiawesome/wes-io-live/live-service/pkg/storage"
)

// ReportIndex reads archived session reports.
type ReportIndex interface {
	List(ctx context.Context, day time.Time) ([]string, error)
	ReadReport(ctx context.Context, key string) (*live.SessionReport, error)
	URL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// ReportEntry is one archived report in a listing.
type ReportEntry struct {
	Key string `json:"key"`
	URL string `json:"url,omitempty"`
}

// WithReports enables the archived report routes. Call before RegisterRoutes.
func (h *Handler) WithReports(idx ReportIndex, urlExpiry time.Duration) *Handler {
	h.reports = idx
	h.reportURLExpiry = urlExpiry
	return h
}

// ListReports returns the reports of sessions started on ?day=YYYY-MM-DD
// (UTC, default today).
func (h *Handler) ListReports(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	day := time.Now().UTC()
	if s := c.Query("day"); s != "" {
		d, err := time.Parse("2006-01-02", s)
		if err != nil {
			response.BadRequest(c, "day must be YYYY-MM-DD")
			return
		}
		day = d
	}

	keys, err := h.reports.List(ctx, day)
	if err != nil {
		l.Error().Err(err).Msg("failed to list reports")
		response.InternalError(c, "failed to list reports")
		return
	}

	entries := make([]ReportEntry, 0, len(keys))
	for _, key := range keys {
		e := ReportEntry{Key: key}
		if url, err := h.reports.URL(ctx, key, h.reportURLExpiry); err == nil {
			e.URL = url
		} else {
			l.Debug().Err(err).Str("key", key).Msg("no url for report")
		}
		entries = append(entries, e)
	}
	response.Success(c, gin.H{"day": day.Format("2006-01-02"), "reports": entries})
}

// GetReport returns one archived report by key.
func (h *Handler) GetReport(c *gin.Context) {
	ctx := c.Request.Context()
	key := c.Query("key")
	if key == "" {
		response.BadRequest(c, "key is required")
		return
	}

	r, err := h.reports.ReadReport(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			response.NotFound(c, "report not found")
			return
		}
		l := log.Ctx(ctx)
		l.Error().Err(err).Str("key", key).Msg("failed to read report")
		response.InternalError(c, "failed to read report")
		return
	}
	response.Success(c, r)
}
