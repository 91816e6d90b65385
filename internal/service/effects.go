package service

import (
	"context"
	"time"

	"github.com/weiawesome/wes-io-live/live-service/internal/audit"
	"github.com/weiawesome/wes-io-live/live-service/internal/domain"
	"github.com/weiawesome/wes-io-live/live-service/internal/kafka"
	"github.com/weiawesome/wes-io-live/live-service/internal/live"
	pkglog "github.com/weiawesome/wes-io-live/live-service/pkg/log"
	"github.com/weiawesome/wes-io-live/live-service/pkg/pubsub"
)

// sessionEffects is the coordinator's listener. It runs on the event loop,
// writes audit entries and queues everything that does I/O.
type sessionEffects struct {
	s *liveService
}

var _ live.Listener = sessionEffects{}

func (e sessionEffects) BroadcastStarted(snap domain.SessionSnapshot) {
	s := e.s
	audit.Log(s.auditCtx, audit.ActionBroadcastStart, snap.SessionID, snap.BroadcasterID, "broadcast started")

	ev := &kafka.SessionEvent{
		Type:          kafka.EventBroadcastStarted,
		SessionID:     snap.SessionID,
		BroadcasterID: snap.BroadcasterID,
	}
	if snap.StartedAt != nil {
		ev.Timestamp = snap.StartedAt.Unix()
	}
	e.produce(ev)
}

func (e sessionEffects) BroadcastEnded(r live.SessionReport) {
	s := e.s
	audit.LogWithDetail(s.auditCtx, audit.ActionBroadcastEnd, r.SessionID, r.BroadcasterID, r.EndReason, "broadcast ended")

	e.produce(&kafka.SessionEvent{
		Type:          kafka.EventBroadcastEnded,
		SessionID:     r.SessionID,
		BroadcasterID: r.BroadcasterID,
		Reason:        r.EndReason,
		PeakViewers:   r.PeakViewers,
		Duration:      r.DurationSeconds(),
		Timestamp:     r.EndedAt.Unix(),
	})

	if s.deps.Archive != nil {
		s.enqueue("archive.report", func(ctx context.Context) error {
			key, err := s.deps.Archive.WriteReport(ctx, r)
			if err != nil {
				return err
			}
			s.log.Info().Str(pkglog.FieldSessionID, r.SessionID).Str("key", key).Msg("session report archived")
			return nil
		})
	}
}

func (e sessionEffects) RecordingStarted(rec live.RecordingEvent) {
	s := e.s
	audit.Log(s.auditCtx, audit.ActionRecordingStart, rec.SessionID, rec.BroadcasterID, "recording started")

	e.publish(rec.SessionID, pubsub.EventRecordingStarted, &pubsub.RecordingStartedPayload{
		SessionID:     rec.SessionID,
		SessionTag:    rec.SessionTag,
		BroadcasterID: rec.BroadcasterID,
		StartedAt:     rec.StartedAt.UnixMilli(),
	})
	e.produce(&kafka.SessionEvent{
		Type:          kafka.EventRecordingStarted,
		SessionID:     rec.SessionID,
		BroadcasterID: rec.BroadcasterID,
		SessionTag:    rec.SessionTag,
		Timestamp:     rec.StartedAt.Unix(),
	})
}

func (e sessionEffects) RecordingStopped(rec live.RecordingEvent) {
	s := e.s
	audit.LogWithDetail(s.auditCtx, audit.ActionRecordingStop, rec.SessionID, rec.BroadcasterID, rec.Reason, "recording stopped")

	e.publish(rec.SessionID, pubsub.EventRecordingStopped, &pubsub.RecordingStoppedPayload{
		SessionID:  rec.SessionID,
		SessionTag: rec.SessionTag,
		StartedAt:  rec.StartedAt.UnixMilli(),
		Duration:   rec.Duration,
		Reason:     rec.Reason,
	})
	e.produce(&kafka.SessionEvent{
		Type:          kafka.EventRecordingStopped,
		SessionID:     rec.SessionID,
		BroadcasterID: rec.BroadcasterID,
		SessionTag:    rec.SessionTag,
		Reason:        rec.Reason,
		Duration:      rec.Duration,
		Timestamp:     stoppedAt(rec).Unix(),
	})
}

func (e sessionEffects) SessionChanged(snap domain.SessionSnapshot) {
	s := e.s
	if s.deps.Store == nil {
		return
	}
	s.enqueue("store.save", func(ctx context.Context) error {
		return s.deps.Store.Save(ctx, &snap)
	})
}

func (e sessionEffects) produce(ev *kafka.SessionEvent) {
	s := e.s
	if s.deps.Producer == nil {
		return
	}
	s.enqueue("kafka."+ev.Type, func(ctx context.Context) error {
		return s.deps.Producer.Produce(ctx, ev)
	})
}

func (e sessionEffects) publish(sessionID, eventType string, payload interface{}) {
	s := e.s
	if s.deps.PubSub == nil {
		return
	}
	event, err := pubsub.NewEvent(eventType, sessionID, payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("failed to build recorder event")
		return
	}
	channel := pubsub.LiveToRecorderChannel(sessionID)
	s.enqueue("pubsub."+eventType, func(ctx context.Context) error {
		return s.deps.PubSub.Publish(ctx, channel, event)
	})
}

func stoppedAt(rec live.RecordingEvent) time.Time {
	if rec.StoppedAt != nil {
		return *rec.StoppedAt
	}
	return time.Now()
}
