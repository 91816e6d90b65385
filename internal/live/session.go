package live

import (
	"github.com/weiawesome/wes-io-live/live-service/internal/domain"
)

// StartBroadcast makes connectionID the broadcaster of a new session.
// At most one session is active at a time.
func (c *Coordinator) StartBroadcast(connectionID string) error {
	const op = domain.MsgTypeStartBroadcast

	p, ok := c.registry.Get(connectionID)
	if !ok {
		return domain.Drop(op, domain.ErrUnknownTarget, connectionID)
	}
	if c.session.active {
		return domain.Drop(op, domain.ErrSessionAlreadyActive, "broadcaster is "+c.session.broadcasterID)
	}

	now := c.now()
	c.session = sessionState{
		active:        true,
		id:            c.newID(),
		broadcasterID: connectionID,
		startedAt:     now,
	}
	p.Role = domain.RoleBroadcaster
	p.Joined = false
	p.MicState = domain.MicNone

	c.report = &SessionReport{
		SessionID:     c.session.id,
		BroadcasterID: connectionID,
		StartedAt:     now,
		Recordings:    []RecordingEvent{},
	}

	c.fanout(&domain.BroadcastStartedMessage{
		Type:          domain.MsgTypeBroadcastStarted,
		SessionID:     c.session.id,
		BroadcasterID: connectionID,
		StartedAt:     millis(now),
	}, "")

	snap := c.Snapshot()
	c.listener.BroadcastStarted(snap)
	c.listener.SessionChanged(snap)
	return nil
}

// EndBroadcast ends the session. Only the broadcaster may call it.
func (c *Coordinator) EndBroadcast(connectionID string) error {
	const op = domain.MsgTypeEndBroadcast

	if !c.session.active {
		return domain.Drop(op, domain.ErrSessionInactive, "")
	}
	if connectionID != c.session.broadcasterID {
		return domain.Drop(op, domain.ErrUnauthorizedActor, connectionID)
	}

	c.teardown(domain.EndReasonEnded, "")
	c.changed()
	return nil
}

// Terminate ends the active session without a broadcaster message.
func (c *Coordinator) Terminate(reason string) error {
	if !c.session.active {
		return domain.Drop("terminate", domain.ErrSessionInactive, "")
	}
	if reason == "" {
		reason = domain.EndReasonTerminated
	}
	c.teardown(reason, "")
	c.changed()
	return nil
}

// JoinAsViewer counts connectionID as a viewer of the active broadcast.
// With no broadcast it only replies broadcast-not-active to the requester.
func (c *Coordinator) JoinAsViewer(connectionID string, info *domain.DisplayInfo) error {
	const op = domain.MsgTypeWatch

	p, ok := c.registry.Get(connectionID)
	if !ok {
		return domain.Drop(op, domain.ErrUnknownTarget, connectionID)
	}
	if !c.session.active {
		c.send(connectionID, &domain.BroadcastNotActiveMessage{Type: domain.MsgTypeBroadcastNotActive})
		return nil
	}
	if connectionID == c.session.broadcasterID {
		return domain.Drop(op, domain.ErrInvalidTransition, "broadcaster cannot watch")
	}

	rejoin := p.IsJoinedViewer()
	c.registry.SetRole(connectionID, domain.RoleViewer, info)
	count := c.ViewerCount()
	if !rejoin {
		p.Joined = true
		p.JoinedAt = c.now()
		p.MicState = domain.MicNone
		count = c.ViewerCount()
		c.noteJoin(count)
	}

	c.send(connectionID, &domain.BroadcastStartedMessage{
		Type:          domain.MsgTypeBroadcastStarted,
		SessionID:     c.session.id,
		BroadcasterID: c.session.broadcasterID,
		StartedAt:     millis(c.session.startedAt),
		ViewerCount:   count,
	})
	if rejoin {
		return nil
	}

	c.sendToBroadcaster(&domain.ViewerJoinedMessage{
		Type:         domain.MsgTypeViewerJoined,
		ConnectionID: connectionID,
		ViewerCount:  count,
		DisplayInfo:  p.DisplayInfo,
	})
	c.changed()
	return nil
}

// LeaveAsViewer stops counting connectionID and tells the broadcaster.
func (c *Coordinator) LeaveAsViewer(connectionID string) error {
	const op = domain.MsgTypeLeave

	p, ok := c.registry.Get(connectionID)
	if !ok {
		return domain.Drop(op, domain.ErrUnknownTarget, connectionID)
	}
	if !c.session.active {
		return domain.Drop(op, domain.ErrSessionInactive, "")
	}
	if !p.IsJoinedViewer() {
		return domain.Drop(op, domain.ErrInvalidTransition, "not a joined viewer")
	}

	c.departViewer(p)
	c.changed()
	return nil
}

// departViewer un-joins p and notifies the broadcaster with p's data still intact.
func (c *Coordinator) departViewer(p *domain.Participant) {
	mic := p.MicState
	p.Joined = false
	p.MicState = domain.MicNone

	c.sendToBroadcaster(&domain.DisconnectPeerMessage{
		Type:         domain.MsgTypeDisconnectPeer,
		ConnectionID: p.ConnectionID,
		ViewerCount:  c.ViewerCount(),
		DisplayInfo:  p.DisplayInfo,
		MicState:     mic,
	})
}

// teardown stops any recording, resets every participant's session state,
// clears the session and tells everyone except exclude.
func (c *Coordinator) teardown(reason, exclude string) {
	if c.recording.recording {
		c.finishRecording(reason, exclude)
	}

	sessionID := c.session.id
	c.registry.Each(func(p *domain.Participant) {
		p.Joined = false
		p.MicState = domain.MicNone
		if p.Role == domain.RoleBroadcaster {
			p.Role = domain.RoleNone
		}
	})

	report := c.report
	c.session = sessionState{}
	c.report = nil

	c.fanout(&domain.BroadcastEndedMessage{
		Type:      domain.MsgTypeBroadcastEnded,
		SessionID: sessionID,
		Reason:    reason,
	}, exclude)

	if report != nil {
		report.EndedAt = c.now()
		report.EndReason = reason
		c.listener.BroadcastEnded(*report)
	}
}
