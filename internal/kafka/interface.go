package kafka

import "context"

// SessionEvent is a live-session lifecycle change published for other services.
type SessionEvent struct {
	Type          string `json:"type"`
	SessionID     string `json:"session_id"`
	BroadcasterID string `json:"broadcaster_id"`
	SessionTag    string `json:"session_tag,omitempty"`
	Reason        string `json:"reason,omitempty"`
	PeakViewers   int    `json:"peak_viewers,omitempty"`
	Duration      int64  `json:"duration,omitempty"` // seconds
	Timestamp     int64  `json:"timestamp"`
}

// Event types
const (
	EventBroadcastStarted = "broadcast_started"
	EventBroadcastEnded   = "broadcast_ended"
	EventRecordingStarted = "recording_started"
	EventRecordingStopped = "recording_stopped"
)

// SessionEventProducer defines the interface for producing session events.
type SessionEventProducer interface {
	Produce(ctx context.Context, event *SessionEvent) error
	Close() error
}
