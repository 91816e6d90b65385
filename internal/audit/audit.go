package audit

import (
	"context"

	"github.com/weiawesome/wes-io-live/live-service/pkg/log"
)

// Audit actions for live-service.
const (
	ActionBroadcastStart   = "broadcast.start"
	ActionBroadcastEnd     = "broadcast.end"
	ActionSessionTerminate = "session.terminate"
	ActionMicApprove       = "mic.approve"
	ActionMicReject        = "mic.reject"
	ActionMicMute          = "mic.mute"
	ActionRecordingStart   = "recording.start"
	ActionRecordingStop    = "recording.stop"
)

// Field constants for audit entries.
const (
	FieldAction = "action"
	FieldActor  = "actor"
	FieldDetail = "detail"
)

// Log emits a structured audit log entry via the context logger.
func Log(ctx context.Context, action, sessionID, actor, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldSessionID, sessionID).
		Str(FieldActor, actor).
		Msg(msg)
}

// LogWithDetail emits an audit log with extra detail field.
func LogWithDetail(ctx context.Context, action, sessionID, actor, detail, msg string) {
	l := log.Ctx(ctx)
	l.Info().
		Str(log.FieldLogType, log.LogTypeAudit).
		Str(FieldAction, action).
		Str(log.FieldSessionID, sessionID).
		Str(FieldActor, actor).
		Str(FieldDetail, detail).
		Msg(msg)
}
