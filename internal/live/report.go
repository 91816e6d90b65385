package live

import "time"

// RecordingEvent describes a recording start or stop.
type RecordingEvent struct {
	SessionID     string     `json:"sessionId"`
	SessionTag    string     `json:"sessionTag"`
	BroadcasterID string     `json:"broadcasterId"`
	StartedAt     time.Time  `json:"startedAt"`
	StoppedAt     *time.Time `json:"stoppedAt,omitempty"`
	// Duration is in whole seconds; zero on start events.
	Duration int64  `json:"duration"`
	Reason   string `json:"reason,omitempty"`
}

// SessionReport summarises one broadcast from start to teardown.
type SessionReport struct {
	SessionID     string           `json:"sessionId"`
	BroadcasterID string           `json:"broadcasterId"`
	StartedAt     time.Time        `json:"startedAt"`
	EndedAt       time.Time        `json:"endedAt"`
	EndReason     string           `json:"endReason"`
	PeakViewers   int              `json:"peakViewers"`
	TotalJoins    int              `json:"totalJoins"`
	ChatMessages  int              `json:"chatMessages"`
	MicGrants     int              `json:"micGrants"`
	Recordings    []RecordingEvent `json:"recordings"`
}

// DurationSeconds is the broadcast length in whole seconds.
func (r SessionReport) DurationSeconds() int64 {
	d := int64(r.EndedAt.Sub(r.StartedAt) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}

func (c *Coordinator) noteJoin(count int) {
	if c.report == nil {
		return
	}
	c.report.TotalJoins++
	if count > c.report.PeakViewers {
		c.report.PeakViewers = count
	}
}
