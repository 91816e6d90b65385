package domain

import "time"

// Teardown reasons carried by broadcast-ended.
const (
	EndReasonEnded                   = "ended"
	EndReasonBroadcasterDisconnected = "broadcaster-disconnected"
	EndReasonTerminated              = "terminated"
)

// RecordingSnapshot describes an in-progress recording.
type RecordingSnapshot struct {
	SessionTag string    `json:"sessionTag"`
	StartedAt  time.Time `json:"startedAt"`
}

// SessionSnapshot is a point-in-time copy of the session for readers outside
// the event loop.
type SessionSnapshot struct {
	Active        bool               `json:"active"`
	SessionID     string             `json:"sessionId,omitempty"`
	BroadcasterID string             `json:"broadcasterId,omitempty"`
	ViewerCount   int                `json:"viewerCount"`
	StartedAt     *time.Time         `json:"startedAt,omitempty"`
	Recording     *RecordingSnapshot `json:"recording,omitempty"`
	Connections   int                `json:"connections"`
	UpdatedAt     time.Time          `json:"updatedAt"`
}
