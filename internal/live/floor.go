package live

import (
	"fmt"
	"strings"

	"github.com/weiawesome/wes-io-live/live-service/internal/domain"
)

// Mic floor control. Per joined viewer:
//
//	none -> requested -> approved -> none (muted by the broadcaster)
//	                  -> none (rejected)
//	approved|requested -> none (released by the viewer)
//
// A muted viewer is told mic-muted and is back at none, so getting the floor
// again takes a new request.

// RequestMic asks the broadcaster for the floor. Repeating a pending or
// granted request is acknowledged without a second notification.
func (c *Coordinator) RequestMic(viewerID, displayName string) error {
	const op = domain.MsgTypeMicRequest

	if !c.session.active {
		return domain.Drop(op, domain.ErrSessionInactive, "")
	}
	p, ok := c.registry.Get(viewerID)
	if !ok {
		return domain.Drop(op, domain.ErrUnknownTarget, viewerID)
	}
	if !p.IsJoinedViewer() {
		return domain.Drop(op, domain.ErrUnauthorizedActor, "not a joined viewer")
	}

	switch p.MicState {
	case domain.MicRequested, domain.MicApproved:
		return nil
	}

	p.MicState = domain.MicRequested
	name := strings.TrimSpace(displayName)
	if name == "" {
		name = p.DisplayName()
	}
	c.sendToBroadcaster(&domain.MicRequestNotice{
		Type:        domain.MsgTypeMicRequest,
		ViewerID:    viewerID,
		DisplayName: name,
		RequestedAt: millis(c.now()),
	})
	return nil
}

// ApproveMic grants a pending request.
func (c *Coordinator) ApproveMic(callerID, viewerID string) error {
	err := c.decideMic(domain.MsgTypeApproveMic, callerID, viewerID,
		domain.MicRequested, domain.MicApproved, domain.MsgTypeMicApproved)
	if err == nil && c.report != nil {
		c.report.MicGrants++
	}
	return err
}

// RejectMic declines a pending request.
func (c *Coordinator) RejectMic(callerID, viewerID string) error {
	return c.decideMic(domain.MsgTypeRejectMic, callerID, viewerID,
		domain.MicRequested, domain.MicNone, domain.MsgTypeMicRejected)
}

// MuteMic revokes a granted floor.
func (c *Coordinator) MuteMic(callerID, viewerID string) error {
	return c.decideMic(domain.MsgTypeMuteMic, callerID, viewerID,
		domain.MicApproved, domain.MicNone, domain.MsgTypeMicMuted)
}

func (c *Coordinator) decideMic(op, callerID, viewerID string, from, to domain.MicState, notice string) error {
	if !c.session.active {
		return domain.Drop(op, domain.ErrSessionInactive, "")
	}
	if callerID != c.session.broadcasterID {
		return domain.Drop(op, domain.ErrUnauthorizedActor, callerID)
	}
	p, ok := c.registry.Get(viewerID)
	if !ok || !p.IsJoinedViewer() {
		return domain.Drop(op, domain.ErrUnknownTarget, viewerID)
	}
	if p.MicState != from {
		return domain.Drop(op, domain.ErrInvalidTransition, fmt.Sprintf("mic is %s", p.MicState))
	}

	p.MicState = to
	c.send(viewerID, &domain.MicDecisionNotice{Type: notice, ViewerID: viewerID})
	return nil
}

// ReleaseMic lets a viewer give up a granted floor or withdraw a request.
func (c *Coordinator) ReleaseMic(viewerID string) error {
	const op = domain.MsgTypeMicRelease

	if !c.session.active {
		return domain.Drop(op, domain.ErrSessionInactive, "")
	}
	p, ok := c.registry.Get(viewerID)
	if !ok {
		return domain.Drop(op, domain.ErrUnknownTarget, viewerID)
	}
	if !p.IsJoinedViewer() {
		return domain.Drop(op, domain.ErrUnauthorizedActor, "not a joined viewer")
	}
	if p.MicState != domain.MicApproved && p.MicState != domain.MicRequested {
		return domain.Drop(op, domain.ErrInvalidTransition, fmt.Sprintf("mic is %s", p.MicState))
	}

	p.MicState = domain.MicNone
	c.sendToBroadcaster(&domain.MicDecisionNotice{Type: domain.MsgTypeMicReleased, ViewerID: viewerID})
	return nil
}

// MicState returns a participant's floor state.
func (c *Coordinator) MicState(connectionID string) (domain.MicState, bool) {
	p, ok := c.registry.Get(connectionID)
	if !ok {
		return "", false
	}
	return p.MicState, true
}
