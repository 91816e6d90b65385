package live

import (
	"encoding/json"

	"github.com/weiawesome/wes-io-live/live-service/internal/domain"
)

// resolveTarget maps a relay target to a connection id. The broadcaster
// sentinel resolves to whoever is broadcasting right now.
func (c *Coordinator) resolveTarget(target string) (string, bool) {
	if target == domain.BroadcasterTarget {
		if !c.session.active {
			return "", false
		}
		return c.session.broadcasterID, true
	}
	return target, target != ""
}

// Relay forwards an opaque negotiation payload from fromID to exactly one
// target. Nothing is sent back to the sender when the target is unknown.
func (c *Coordinator) Relay(kind, fromID, target string, payload json.RawMessage) error {
	if !domain.IsRelayKind(kind) {
		return domain.Drop(kind, domain.ErrInvalidTransition, "not a relay message")
	}
	if _, ok := c.registry.Get(fromID); !ok {
		return domain.Drop(kind, domain.ErrUnknownTarget, "sender "+fromID)
	}

	to, ok := c.resolveTarget(target)
	if !ok {
		return domain.Drop(kind, domain.ErrUnknownTarget, "unresolved target "+target)
	}
	if to == fromID {
		return domain.Drop(kind, domain.ErrUnknownTarget, "target is sender")
	}
	if _, ok := c.registry.Get(to); !ok {
		return domain.Drop(kind, domain.ErrUnknownTarget, to)
	}

	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	c.send(to, &domain.RelayMessage{
		Type:    kind,
		From:    fromID,
		Payload: payload,
	})
	return nil
}
