package live

import (
	"github.com/weiawesome/wes-io-live/live-service/internal/domain"
)

// Disconnect cleans up after a closed connection. Notifications that read
// the participant go out first; the registry entry is removed last.
// A second call for the same id is a no-op.
func (c *Coordinator) Disconnect(connectionID string) error {
	p, ok := c.registry.Get(connectionID)
	if !ok {
		return domain.Drop("disconnect", domain.ErrUnknownTarget, "already removed")
	}

	changed := false
	switch {
	case c.isBroadcaster(connectionID):
		c.teardown(domain.EndReasonBroadcasterDisconnected, connectionID)
		changed = true
	case c.session.active && p.IsJoinedViewer():
		c.departViewer(p)
		changed = true
	}

	c.registry.Remove(connectionID)
	if changed {
		c.changed()
	}
	return nil
}
