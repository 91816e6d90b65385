package live

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/weiawesome/wes-io-live/live-service/internal/domain"
)

type sent struct {
	Type string
	Raw  map[string]interface{}
}

type recordingNotifier struct {
	inbox map[string][]sent
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{inbox: make(map[string][]sent)}
}

func (n *recordingNotifier) Send(connectionID string, data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	typ, _ := raw["type"].(string)
	n.inbox[connectionID] = append(n.inbox[connectionID], sent{Type: typ, Raw: raw})
	return nil
}

func (n *recordingNotifier) types(id string) []string {
	out := make([]string, 0, len(n.inbox[id]))
	for _, m := range n.inbox[id] {
		out = append(out, m.Type)
	}
	return out
}

func (n *recordingNotifier) count(id, typ string) int {
	c := 0
	for _, m := range n.inbox[id] {
		if m.Type == typ {
			c++
		}
	}
	return c
}

func (n *recordingNotifier) last(t *testing.T, id string) sent {
	t.Helper()
	msgs := n.inbox[id]
	if len(msgs) == 0 {
		t.Fatalf("%s received nothing", id)
	}
	return msgs[len(msgs)-1]
}

func (n *recordingNotifier) reset() {
	n.inbox = make(map[string][]sent)
}

type recordingListener struct {
	started  []domain.SessionSnapshot
	ended    []SessionReport
	recStart []RecordingEvent
	recStop  []RecordingEvent
	changes  int
}

func (l *recordingListener) BroadcastStarted(s domain.SessionSnapshot) {
	l.started = append(l.started, s)
}
func (l *recordingListener) BroadcastEnded(r SessionReport)        { l.ended = append(l.ended, r) }
func (l *recordingListener) RecordingStarted(e RecordingEvent)     { l.recStart = append(l.recStart, e) }
func (l *recordingListener) RecordingStopped(e RecordingEvent)     { l.recStop = append(l.recStop, e) }
func (l *recordingListener) SessionChanged(domain.SessionSnapshot) { l.changes++ }

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type fixture struct {
	c        *Coordinator
	notifier *recordingNotifier
	listener *recordingListener
	clock    *fakeClock
}

func newFixture(t *testing.T, ids ...string) *fixture {
	t.Helper()
	f := &fixture{
		notifier: newRecordingNotifier(),
		listener: &recordingListener{},
		clock:    &fakeClock{t: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)},
	}
	seq := 0
	f.c = NewCoordinator(f.notifier,
		WithClock(f.clock.Now),
		WithListener(f.listener),
		WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("S%d", seq)
		}),
	)
	for _, id := range ids {
		f.c.Connect(id)
		f.clock.Advance(time.Millisecond)
	}
	return f
}

func mustAck(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("expected ack, got %v", err)
	}
}

func num(t *testing.T, m sent, key string) int {
	t.Helper()
	v, ok := m.Raw[key].(float64)
	if !ok {
		t.Fatalf("%s message has no numeric %q: %v", m.Type, key, m.Raw)
	}
	return int(v)
}

func str(m sent, key string) string {
	s, _ := m.Raw[key].(string)
	return s
}
