package live

import (
	"time"

	"github.com/weiawesome/wes-io-live/live-service/internal/domain"
)

// StartRecording marks the session as recording. An empty tag defaults to
// the session id.
func (c *Coordinator) StartRecording(callerID, sessionTag string) error {
	const op = domain.MsgTypeStartRecording

	if !c.session.active {
		return domain.Drop(op, domain.ErrSessionInactive, "")
	}
	if callerID != c.session.broadcasterID {
		return domain.Drop(op, domain.ErrUnauthorizedActor, callerID)
	}
	if c.recording.recording {
		return domain.Drop(op, domain.ErrInvalidTransition, "already recording "+c.recording.tag)
	}

	if sessionTag == "" {
		sessionTag = c.session.id
	}
	now := c.now()
	c.recording = recordingState{recording: true, tag: sessionTag, startedAt: now}

	c.fanout(&domain.RecordingStartedMessage{
		Type:       domain.MsgTypeRecordingStarted,
		SessionTag: sessionTag,
		StartedAt:  millis(now),
	}, "")

	c.listener.RecordingStarted(RecordingEvent{
		SessionID:     c.session.id,
		SessionTag:    sessionTag,
		BroadcasterID: c.session.broadcasterID,
		StartedAt:     now,
	})
	c.changed()
	return nil
}

// StopRecording ends the current recording.
func (c *Coordinator) StopRecording(callerID string) error {
	const op = domain.MsgTypeStopRecording

	if !c.session.active {
		return domain.Drop(op, domain.ErrSessionInactive, "")
	}
	if callerID != c.session.broadcasterID {
		return domain.Drop(op, domain.ErrUnauthorizedActor, callerID)
	}
	if !c.recording.recording {
		return domain.Drop(op, domain.ErrInvalidTransition, "not recording")
	}

	c.finishRecording("stopped", "")
	c.changed()
	return nil
}

// finishRecording clears recording state and emits recording-stopped. Both
// explicit and implicit stops go through here.
func (c *Coordinator) finishRecording(reason, exclude string) {
	now := c.now()
	rec := c.recording
	c.recording = recordingState{}

	duration := int64(now.Sub(rec.startedAt) / time.Second)
	if duration < 0 {
		duration = 0
	}

	c.fanout(&domain.RecordingStoppedMessage{
		Type:       domain.MsgTypeRecordingStopped,
		SessionTag: rec.tag,
		Duration:   duration,
		StartedAt:  millis(rec.startedAt),
	}, exclude)

	evt := RecordingEvent{
		SessionID:     c.session.id,
		SessionTag:    rec.tag,
		BroadcasterID: c.session.broadcasterID,
		StartedAt:     rec.startedAt,
		StoppedAt:     &now,
		Duration:      duration,
		Reason:        reason,
	}
	if c.report != nil {
		c.report.Recordings = append(c.report.Recordings, evt)
	}
	c.listener.RecordingStopped(evt)
}

// NotifyRecordingStored forwards the recorder's confirmation to the broadcaster.
func (c *Coordinator) NotifyRecordingStored(sessionTag, url, failure string) error {
	if !c.session.active {
		return domain.Drop(domain.MsgTypeRecordingSaved, domain.ErrSessionInactive, sessionTag)
	}
	c.sendToBroadcaster(&domain.RecordingSavedMessage{
		Type:       domain.MsgTypeRecordingSaved,
		SessionTag: sessionTag,
		URL:        url,
		Error:      failure,
	})
	return nil
}
