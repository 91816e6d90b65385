package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/weiawesome/wes-io-live/live-service/internal/audit"
	"github.com/weiawesome/wes-io-live/live-service/internal/client"
	"github.com/weiawesome/wes-io-live/live-service/internal/config"
	"github.com/weiawesome/wes-io-live/live-service/internal/domain"
	"github.com/weiawesome/wes-io-live/live-service/internal/kafka"
	"github.com/weiawesome/wes-io-live/live-service/internal/live"
	"github.com/weiawesome/wes-io-live/live-service/internal/store"
	"github.com/weiawesome/wes-io-live/live-service/pkg/jwt"
	pkglog "github.com/weiawesome/wes-io-live/live-service/pkg/log"
	"github.com/weiawesome/wes-io-live/live-service/pkg/pubsub"
)

// TokenValidator verifies viewer bearer tokens. Satisfied by *jwt.Manager.
type TokenValidator interface {
	ValidateToken(token string) (*jwt.Claims, error)
}

// ProfileLookup resolves an account id to a profile.
type ProfileLookup interface {
	GetProfile(ctx context.Context, userID string) (*client.Profile, error)
}

// ReportArchiver persists finished session reports.
type ReportArchiver interface {
	WriteReport(ctx context.Context, r live.SessionReport) (string, error)
}

// Dependencies wires the service to the outside world. Only Notifier is
// required; nil collaborators disable the matching side effect.
type Dependencies struct {
	Notifier live.Notifier
	PubSub   pubsub.PubSub
	Producer kafka.SessionEventProducer
	Store    store.SessionStore
	Archive  ReportArchiver
	Tokens   TokenValidator
	Profiles ProfileLookup
}

type effect struct {
	name string
	run  func(ctx context.Context) error
}

type liveService struct {
	coord         *live.Coordinator
	deps          Dependencies
	authRequired  bool
	effectTimeout time.Duration

	inbox       chan func()
	effects     chan effect
	quit        chan struct{}
	loopDone    chan struct{}
	effectsDone chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc

	log      zerolog.Logger
	auditCtx context.Context
}

// NewLiveService creates a LiveService. opts are passed to the coordinator.
func NewLiveService(deps Dependencies, loop config.LoopConfig, auth config.AuthConfig, opts ...live.Option) LiveService {
	if loop.InboxSize <= 0 {
		loop.InboxSize = 1024
	}
	if loop.EffectsSize <= 0 {
		loop.EffectsSize = 1024
	}
	if loop.EffectTimeout <= 0 {
		loop.EffectTimeout = 5 * time.Second
	}

	l := pkglog.L().With().Str("component", "live").Logger()
	s := &liveService{
		deps:          deps,
		authRequired:  auth.Required,
		effectTimeout: loop.EffectTimeout,
		inbox:         make(chan func(), loop.InboxSize),
		effects:       make(chan effect, loop.EffectsSize),
		quit:          make(chan struct{}),
		loopDone:      make(chan struct{}),
		effectsDone:   make(chan struct{}),
		log:           l,
		auditCtx:      pkglog.WithLogger(context.Background(), l),
	}

	opts = append([]live.Option{live.WithLogger(l)}, opts...)
	opts = append(opts, live.WithListener(sessionEffects{s}))
	s.coord = live.NewCoordinator(deps.Notifier, opts...)
	return s
}

func (s *liveService) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return nil
	}
	// a snapshot left by a previous process must not outlive it
	if s.deps.Store != nil {
		snap := s.coord.Snapshot()
		if err := s.deps.Store.Save(ctx, &snap); err != nil {
			s.mu.Unlock()
			return fmt.Errorf("failed to reset session snapshot: %w", err)
		}
	}
	s.started = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	go s.loop()
	go s.runEffects()

	if s.deps.PubSub != nil {
		eventCh, err := s.deps.PubSub.SubscribePattern(ctx, pubsub.PatternRecorderToLive)
		if err != nil {
			return fmt.Errorf("failed to subscribe to recorder events: %w", err)
		}
		go s.handleRecorderEvents(ctx, eventCh)
		s.log.Info().Str("pattern", pubsub.PatternRecorderToLive).Msg("subscribed to recorder events")
	}

	s.log.Info().Msg("live service started")
	return nil
}

func (s *liveService) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	started := s.started
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	close(s.quit)
	if !started {
		close(s.loopDone)
		return nil
	}

	<-s.loopDone
	// the loop is the only producer of effects
	close(s.effects)
	<-s.effectsDone

	s.log.Info().Msg("live service stopped")
	return nil
}

// loop runs submitted closures one at a time until Stop.
func (s *liveService) loop() {
	defer close(s.loopDone)
	for {
		select {
		case task := <-s.inbox:
			task()
		case <-s.quit:
			return
		}
	}
}

// do runs fn on the loop and waits for its result. Once fn is queued the
// wait ignores ctx so the caller cannot overtake its own earlier messages.
func (s *liveService) do(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	task := func() {
		defer func() {
			if r := recover(); r != nil {
				s.log.Error().Interface("panic", r).Msg("live operation panicked")
				done <- fmt.Errorf("live operation panicked: %v", r)
			}
		}()
		done <- fn()
	}

	select {
	case <-s.quit:
		return ErrStopped
	default:
	}

	select {
	case s.inbox <- task:
	case <-s.quit:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-s.loopDone:
		select {
		case err := <-done:
			return err
		default:
			return ErrStopped
		}
	}
}

// exec runs fn against the coordinator and logs the outcome.
func (s *liveService) exec(ctx context.Context, op, connID string, fn func(c *live.Coordinator) error) error {
	err := s.do(ctx, func() error { return fn(s.coord) })
	s.logResult(ctx, op, connID, err)
	return err
}

func (s *liveService) logResult(ctx context.Context, op, connID string, err error) {
	if err == nil {
		return
	}
	l := pkglog.Ctx(ctx)

	var drop *domain.DropError
	if errors.As(err, &drop) {
		ev := l.Debug()
		if errors.Is(drop.Reason, domain.ErrUnauthorizedActor) {
			ev = l.Warn()
		}
		ev.Str(pkglog.FieldMsgType, op).
			Str(pkglog.FieldConnectionID, connID).
			Str(pkglog.FieldReason, drop.Reason.Error()).
			Str("detail", drop.Detail).
			Msg("message dropped")
		return
	}
	if errors.Is(err, ErrStopped) || errors.Is(err, context.Canceled) {
		l.Debug().Err(err).Str(pkglog.FieldMsgType, op).Msg("live operation not run")
		return
	}
	l.Error().Err(err).Str(pkglog.FieldMsgType, op).Str(pkglog.FieldConnectionID, connID).Msg("live operation failed")
}

func (s *liveService) HandleConnect(ctx context.Context, connID string) error {
	return s.exec(ctx, "connect", connID, func(c *live.Coordinator) error {
		c.Connect(connID)
		return nil
	})
}

func (s *liveService) HandleWatch(ctx context.Context, connID string, msg *domain.WatchMessage) error {
	// identity lookups can do network I/O, so they run here and not on the loop
	info, err := s.resolveIdentity(ctx, msg)
	if err != nil {
		s.reply(connID, domain.NewErrorMessage(domain.ErrCodeUnauthorized, "invalid or missing token"))
		drop := domain.Drop(domain.MsgTypeWatch, domain.ErrUnauthorizedActor, err.Error())
		s.logResult(ctx, domain.MsgTypeWatch, connID, drop)
		return drop
	}
	return s.exec(ctx, domain.MsgTypeWatch, connID, func(c *live.Coordinator) error {
		return c.JoinAsViewer(connID, info)
	})
}

func (s *liveService) HandleLeave(ctx context.Context, connID string) error {
	return s.exec(ctx, domain.MsgTypeLeave, connID, func(c *live.Coordinator) error {
		return c.LeaveAsViewer(connID)
	})
}

func (s *liveService) HandleStartBroadcast(ctx context.Context, connID string) error {
	return s.exec(ctx, domain.MsgTypeStartBroadcast, connID, func(c *live.Coordinator) error {
		return c.StartBroadcast(connID)
	})
}

func (s *liveService) HandleEndBroadcast(ctx context.Context, connID string) error {
	return s.exec(ctx, domain.MsgTypeEndBroadcast, connID, func(c *live.Coordinator) error {
		return c.EndBroadcast(connID)
	})
}

func (s *liveService) HandleSignal(ctx context.Context, connID, kind, target string, payload json.RawMessage) error {
	return s.exec(ctx, kind, connID, func(c *live.Coordinator) error {
		return c.Relay(kind, connID, target, payload)
	})
}

func (s *liveService) HandleMicRequest(ctx context.Context, connID, displayName string) error {
	return s.exec(ctx, domain.MsgTypeMicRequest, connID, func(c *live.Coordinator) error {
		return c.RequestMic(connID, displayName)
	})
}

func (s *liveService) HandleMicDecision(ctx context.Context, connID, kind, viewerID string) error {
	var action string
	var decide func(c *live.Coordinator) error
	switch kind {
	case domain.MsgTypeApproveMic:
		action = audit.ActionMicApprove
		decide = func(c *live.Coordinator) error { return c.ApproveMic(connID, viewerID) }
	case domain.MsgTypeRejectMic:
		action = audit.ActionMicReject
		decide = func(c *live.Coordinator) error { return c.RejectMic(connID, viewerID) }
	case domain.MsgTypeMuteMic:
		action = audit.ActionMicMute
		decide = func(c *live.Coordinator) error { return c.MuteMic(connID, viewerID) }
	default:
		err := domain.Drop(kind, domain.ErrInvalidTransition, "not a mic decision")
		s.logResult(ctx, kind, connID, err)
		return err
	}

	return s.exec(ctx, kind, connID, func(c *live.Coordinator) error {
		if err := decide(c); err != nil {
			return err
		}
		audit.LogWithDetail(s.auditCtx, action, c.SessionID(), connID, viewerID, "mic decision")
		return nil
	})
}

func (s *liveService) HandleMicRelease(ctx context.Context, connID string) error {
	return s.exec(ctx, domain.MsgTypeMicRelease, connID, func(c *live.Coordinator) error {
		return c.ReleaseMic(connID)
	})
}

func (s *liveService) HandleStartRecording(ctx context.Context, connID, sessionTag string) error {
	return s.exec(ctx, domain.MsgTypeStartRecording, connID, func(c *live.Coordinator) error {
		return c.StartRecording(connID, strings.TrimSpace(sessionTag))
	})
}

func (s *liveService) HandleStopRecording(ctx context.Context, connID string) error {
	return s.exec(ctx, domain.MsgTypeStopRecording, connID, func(c *live.Coordinator) error {
		return c.StopRecording(connID)
	})
}

func (s *liveService) HandleChat(ctx context.Context, connID, text string) error {
	return s.exec(ctx, domain.MsgTypeChatMessage, connID, func(c *live.Coordinator) error {
		return c.ChatMessage(connID, text)
	})
}

func (s *liveService) HandleDisconnect(ctx context.Context, connID string) error {
	return s.exec(ctx, "disconnect", connID, func(c *live.Coordinator) error {
		return c.Disconnect(connID)
	})
}

func (s *liveService) Snapshot(ctx context.Context) (domain.SessionSnapshot, error) {
	var snap domain.SessionSnapshot
	err := s.do(ctx, func() error {
		snap = s.coord.Snapshot()
		return nil
	})
	return snap, err
}

func (s *liveService) Participants(ctx context.Context) ([]domain.ParticipantView, error) {
	var out []domain.ParticipantView
	err := s.do(ctx, func() error {
		out = s.coord.Participants()
		return nil
	})
	return out, err
}

func (s *liveService) Terminate(ctx context.Context, actor, reason string) error {
	return s.exec(ctx, "terminate", "", func(c *live.Coordinator) error {
		sessionID := c.SessionID()
		if err := c.Terminate(reason); err != nil {
			return err
		}
		audit.LogWithDetail(s.auditCtx, audit.ActionSessionTerminate, sessionID, actor, reason, "session terminated")
		return nil
	})
}

// resolveIdentity turns a watch message into display info. A verified token
// wins over the self-reported name and account id.
func (s *liveService) resolveIdentity(ctx context.Context, msg *domain.WatchMessage) (*domain.DisplayInfo, error) {
	var fallback *domain.DisplayInfo
	if name := strings.TrimSpace(msg.Name); name != "" || msg.AccountID != "" {
		fallback = &domain.DisplayInfo{Name: name, AccountID: msg.AccountID}
	}

	if msg.Token == "" || s.deps.Tokens == nil {
		if s.authRequired {
			return nil, jwt.ErrInvalidToken
		}
		return fallback, nil
	}

	claims, err := s.deps.Tokens.ValidateToken(msg.Token)
	if err != nil {
		if s.authRequired {
			return nil, err
		}
		l := pkglog.Ctx(ctx)
		l.Debug().Err(err).Msg("ignoring invalid watch token")
		return fallback, nil
	}

	userID := claims.UserID
	if userID == "" {
		userID = claims.Subject
	}
	info := &domain.DisplayInfo{Name: claims.Username, AccountID: userID}

	if s.deps.Profiles != nil && userID != "" {
		p, err := s.deps.Profiles.GetProfile(ctx, userID)
		if err != nil {
			l := pkglog.Ctx(ctx)
			l.Debug().Err(err).Str(pkglog.FieldUserID, userID).Msg("profile lookup failed")
		} else if name := p.Name(); name != "" {
			info.Name = name
		}
	}
	if info.Name == "" && fallback != nil {
		info.Name = fallback.Name
	}
	return info, nil
}

func (s *liveService) reply(connID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	if err := s.deps.Notifier.Send(connID, data); err != nil {
		s.log.Debug().Err(err).Str(pkglog.FieldConnectionID, connID).Msg("reply not delivered")
	}
}

func (s *liveService) handleRecorderEvents(ctx context.Context, eventCh <-chan *pubsub.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-eventCh:
			if !ok {
				return
			}
			s.processRecorderEvent(ctx, event)
		}
	}
}

func (s *liveService) processRecorderEvent(ctx context.Context, event *pubsub.Event) {
	switch event.Type {
	case pubsub.EventRecordingStored, pubsub.EventRecordingFailed:
		var payload pubsub.RecordingStoredPayload
		if err := event.UnmarshalPayload(&payload); err != nil {
			s.log.Warn().Err(err).Str("event", event.Type).Msg("failed to unmarshal recorder event")
			return
		}
		failure := payload.Error
		if event.Type == pubsub.EventRecordingFailed && failure == "" {
			failure = "recording failed"
		}
		s.exec(ctx, domain.MsgTypeRecordingSaved, "", func(c *live.Coordinator) error {
			if event.SessionID != "" && event.SessionID != c.SessionID() {
				return domain.Drop(domain.MsgTypeRecordingSaved, domain.ErrUnknownTarget, "session "+event.SessionID)
			}
			return c.NotifyRecordingStored(payload.SessionTag, payload.URL, failure)
		})
	default:
		s.log.Debug().Str("event", event.Type).Msg("ignoring recorder event")
	}
}

// enqueue hands a side effect to the effects worker without blocking the loop.
func (s *liveService) enqueue(name string, fn func(ctx context.Context) error) {
	select {
	case s.effects <- effect{name: name, run: fn}:
	default:
		s.log.Warn().Str("effect", name).Msg("effects queue full, dropping side effect")
	}
}

func (s *liveService) runEffects() {
	defer close(s.effectsDone)
	for e := range s.effects {
		ctx, cancel := context.WithTimeout(context.Background(), s.effectTimeout)
		if err := e.run(ctx); err != nil {
			s.log.Warn().Err(err).Str("effect", e.name).Msg("side effect failed")
		}
		cancel()
	}
}
