// Package live holds the live-session state machine: participant registry,
// session state, signaling relay, mic floor control, recording and
// disconnect cleanup.
//
// A Coordinator is not safe for concurrent use. The owner runs every call on
// a single goroutine so each handler completes before the next starts.
package live

import (
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/weiawesome/wes-io-live/live-service/internal/domain"
	pkglog "github.com/weiawesome/wes-io-live/live-service/pkg/log"
)

// Notifier delivers an encoded message to one connection. It must not block.
type Notifier interface {
	Send(connectionID string, data []byte) error
}

// Listener observes session lifecycle changes. Methods run on the caller's
// goroutine and must hand any I/O off elsewhere.
type Listener interface {
	BroadcastStarted(s domain.SessionSnapshot)
	BroadcastEnded(r SessionReport)
	RecordingStarted(e RecordingEvent)
	RecordingStopped(e RecordingEvent)
	SessionChanged(s domain.SessionSnapshot)
}

// NopListener ignores every event.
type NopListener struct{}

func (NopListener) BroadcastStarted(domain.SessionSnapshot) {}
func (NopListener) BroadcastEnded(SessionReport)            {}
func (NopListener) RecordingStarted(RecordingEvent)         {}
func (NopListener) RecordingStopped(RecordingEvent)         {}
func (NopListener) SessionChanged(domain.SessionSnapshot)   {}

type sessionState struct {
	active        bool
	id            string
	broadcasterID string
	startedAt     time.Time
}

type recordingState struct {
	recording bool
	tag       string
	startedAt time.Time
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithListener registers the lifecycle observer.
func WithListener(l Listener) Option {
	return func(c *Coordinator) { c.listener = l }
}

// WithIDGenerator replaces the ULID session id generator.
func WithIDGenerator(f func() string) Option {
	return func(c *Coordinator) { c.newID = f }
}

// WithLogger sets the logger used for delivery failures.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// Coordinator owns the registry and the singleton session.
type Coordinator struct {
	registry  *Registry
	session   sessionState
	recording recordingState
	report    *SessionReport

	notifier Notifier
	listener Listener
	now      func() time.Time
	newID    func() string
	log      zerolog.Logger
}

// NewCoordinator returns a coordinator with an inactive session.
func NewCoordinator(n Notifier, opts ...Option) *Coordinator {
	c := &Coordinator{
		registry: NewRegistry(),
		notifier: n,
		listener: NopListener{},
		now:      time.Now,
		newID:    func() string { return ulid.Make().String() },
		log:      pkglog.L(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect registers a new connection with no role.
func (c *Coordinator) Connect(connectionID string) *domain.Participant {
	return c.registry.Register(connectionID, c.now())
}

// Registry exposes the participant registry for read access.
func (c *Coordinator) Registry() *Registry {
	return c.registry
}

// ViewerCount is recomputed from the registry on every call.
func (c *Coordinator) ViewerCount() int {
	if !c.session.active {
		return 0
	}
	return c.registry.JoinedViewers()
}

// Active reports whether a broadcast is live.
func (c *Coordinator) Active() bool {
	return c.session.active
}

// SessionID returns the active session's id, or "".
func (c *Coordinator) SessionID() string {
	return c.session.id
}

// BroadcasterID returns the current broadcaster, or "" when inactive.
func (c *Coordinator) BroadcasterID() string {
	return c.session.broadcasterID
}

// Recording reports whether a recording is in progress.
func (c *Coordinator) Recording() bool {
	return c.recording.recording
}

// Snapshot copies the session state.
func (c *Coordinator) Snapshot() domain.SessionSnapshot {
	s := domain.SessionSnapshot{
		Active:        c.session.active,
		SessionID:     c.session.id,
		BroadcasterID: c.session.broadcasterID,
		ViewerCount:   c.ViewerCount(),
		Connections:   c.registry.Len(),
		UpdatedAt:     c.now(),
	}
	if c.session.active {
		started := c.session.startedAt
		s.StartedAt = &started
	}
	if c.recording.recording {
		s.Recording = &domain.RecordingSnapshot{
			SessionTag: c.recording.tag,
			StartedAt:  c.recording.startedAt,
		}
	}
	return s
}

// Participants returns an ordered read-only view of the registry.
func (c *Coordinator) Participants() []domain.ParticipantView {
	all := c.registry.All()
	out := make([]domain.ParticipantView, 0, len(all))
	for _, p := range all {
		out = append(out, p.View())
	}
	return out
}

func (c *Coordinator) isBroadcaster(connectionID string) bool {
	return c.session.active && c.session.broadcasterID == connectionID
}

func (c *Coordinator) send(connectionID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to encode outbound message")
		return
	}
	c.deliver(connectionID, data)
}

func (c *Coordinator) sendToBroadcaster(msg interface{}) {
	if c.session.active {
		c.send(c.session.broadcasterID, msg)
	}
}

// fanout sends msg to every registered participant except exclude.
func (c *Coordinator) fanout(msg interface{}, exclude string) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Msg("failed to encode outbound message")
		return
	}
	c.registry.Each(func(p *domain.Participant) {
		if p.ConnectionID != exclude {
			c.deliver(p.ConnectionID, data)
		}
	})
}

func (c *Coordinator) deliver(connectionID string, data []byte) {
	if err := c.notifier.Send(connectionID, data); err != nil {
		c.log.Debug().Err(err).Str(pkglog.FieldConnectionID, connectionID).Msg("outbound message not delivered")
	}
}

func (c *Coordinator) changed() {
	c.listener.SessionChanged(c.Snapshot())
}

func millis(t time.Time) int64 {
	return t.UnixMilli()
}
