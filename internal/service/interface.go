package service

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/weiawesome/wes-io-live/live-service/internal/domain"
)

// ErrStopped is returned for work submitted after Stop.
var ErrStopped = errors.New("live service stopped")

// LiveService serializes every session operation onto one event loop.
// Handle methods block until the operation has run, so a connection's
// messages are applied in the order they were read. A returned
// *domain.DropError means the message was ignored; it has already been logged.
type LiveService interface {
	// HandleConnect registers a new connection with no role.
	HandleConnect(ctx context.Context, connID string) error

	// HandleWatch resolves the viewer's identity and joins the broadcast.
	HandleWatch(ctx context.Context, connID string, msg *domain.WatchMessage) error

	// HandleLeave stops watching without disconnecting.
	HandleLeave(ctx context.Context, connID string) error

	// HandleStartBroadcast makes the connection the broadcaster.
	HandleStartBroadcast(ctx context.Context, connID string) error

	// HandleEndBroadcast ends the broadcast.
	HandleEndBroadcast(ctx context.Context, connID string) error

	// HandleSignal relays an offer, answer or ice-candidate.
	HandleSignal(ctx context.Context, connID, kind, target string, payload json.RawMessage) error

	// HandleMicRequest asks the broadcaster for the mic.
	HandleMicRequest(ctx context.Context, connID, displayName string) error

	// HandleMicDecision applies approve-mic, reject-mic or mute-mic.
	HandleMicDecision(ctx context.Context, connID, kind, viewerID string) error

	// HandleMicRelease gives the mic back.
	HandleMicRelease(ctx context.Context, connID string) error

	// HandleStartRecording starts recording; an empty tag uses the session id.
	HandleStartRecording(ctx context.Context, connID, sessionTag string) error

	// HandleStopRecording stops the current recording.
	HandleStopRecording(ctx context.Context, connID string) error

	// HandleChat fans a chat line out to everyone.
	HandleChat(ctx context.Context, connID, text string) error

	// HandleDisconnect cleans up after a closed connection.
	HandleDisconnect(ctx context.Context, connID string) error

	// Snapshot returns the current session state.
	Snapshot(ctx context.Context) (domain.SessionSnapshot, error)

	// Participants lists connected participants.
	Participants(ctx context.Context) ([]domain.ParticipantView, error)

	// Terminate ends the active session on behalf of an operator.
	Terminate(ctx context.Context, actor, reason string) error

	// Start runs the event loop, the effects worker and the recorder subscription.
	Start(ctx context.Context) error

	// Stop drains queued side effects and stops background goroutines.
	Stop() error
}
