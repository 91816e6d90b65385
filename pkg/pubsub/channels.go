package pubsub

import "fmt"

// Channel names follow {prefix}:session:{sessionID}:to_{target}.
const (
	ChannelLiveToRecorder = "live:session:%s:to_recorder"
	ChannelRecorderToLive = "recorder:session:%s:to_live"

	// PatternRecorderToLive matches recorder replies for every session.
	PatternRecorderToLive = "recorder:session:*:to_live"
)

// Live -> Recorder events.
const (
	EventRecordingStarted = "recording_started"
	EventRecordingStopped = "recording_stopped"
)

// Recorder -> Live events.
const (
	EventRecordingStored = "recording_stored"
	EventRecordingFailed = "recording_failed"
)

// LiveToRecorderChannel returns the channel the recorder listens on for a session.
func LiveToRecorderChannel(sessionID string) string {
	return fmt.Sprintf(ChannelLiveToRecorder, sessionID)
}

// RecorderToLiveChannel returns the channel the recorder replies on for a session.
func RecorderToLiveChannel(sessionID string) string {
	return fmt.Sprintf(ChannelRecorderToLive, sessionID)
}

// RecordingStartedPayload asks the recorder to begin capturing a session.
type RecordingStartedPayload struct {
	SessionID     string `json:"session_id"`
	SessionTag    string `json:"session_tag"`
	BroadcasterID string `json:"broadcaster_id"`
	StartedAt     int64  `json:"started_at"`
}

// RecordingStoppedPayload tells the recorder to finalize the artifact.
type RecordingStoppedPayload struct {
	SessionID  string `json:"session_id"`
	SessionTag string `json:"session_tag"`
	StartedAt  int64  `json:"started_at"`
	Duration   int64  `json:"duration"`
	Reason     string `json:"reason"`
}

// RecordingStoredPayload is sent once the media artifact is durable.
type RecordingStoredPayload struct {
	SessionTag string `json:"session_tag"`
	URL        string `json:"url"`
	Error      string `json:"error,omitempty"`
}
