package live

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/weiawesome/wes-io-live/live-service/internal/domain"
)

func TestBroadcasterAndViewerJoin(t *testing.T) {
	f := newFixture(t, "B", "V1")

	mustAck(t, f.c.StartBroadcast("B"))
	if got := f.notifier.types("V1"); len(got) != 1 || got[0] != domain.MsgTypeBroadcastStarted {
		t.Fatalf("V1 got %v on start, want broadcast-started", got)
	}
	f.notifier.reset()

	mustAck(t, f.c.JoinAsViewer("V1", &domain.DisplayInfo{Name: "Alice"}))

	v1 := f.notifier.last(t, "V1")
	if v1.Type != domain.MsgTypeBroadcastStarted {
		t.Fatalf("V1 got %s, want broadcast-started", v1.Type)
	}
	b := f.notifier.last(t, "B")
	if b.Type != domain.MsgTypeViewerJoined || str(b, "connectionId") != "V1" || num(t, b, "viewerCount") != 1 {
		t.Fatalf("B got %v, want viewer-joined{V1, 1}", b.Raw)
	}
	if f.c.ViewerCount() != 1 {
		t.Fatalf("ViewerCount = %d", f.c.ViewerCount())
	}

	f.notifier.reset()
	mustAck(t, f.c.JoinAsViewer("V1", nil))
	if f.notifier.count("B", domain.MsgTypeViewerJoined) != 0 {
		t.Fatal("repeated watch notified the broadcaster again")
	}
	if f.c.ViewerCount() != 1 {
		t.Fatalf("repeated watch changed count to %d", f.c.ViewerCount())
	}
}

func TestWatchWithoutBroadcast(t *testing.T) {
	f := newFixture(t, "V1", "V2")

	mustAck(t, f.c.JoinAsViewer("V1", nil))

	if got := f.notifier.types("V1"); len(got) != 1 || got[0] != domain.MsgTypeBroadcastNotActive {
		t.Fatalf("V1 got %v, want broadcast-not-active", got)
	}
	if len(f.notifier.inbox["V2"]) != 0 {
		t.Fatal("other participants were notified")
	}
	if p, _ := f.c.Registry().Get("V1"); p.Role != domain.RoleNone || p.Joined {
		t.Fatalf("state changed: %+v", p)
	}
}

func TestSingleBroadcaster(t *testing.T) {
	f := newFixture(t, "B1", "B2", "B3")

	mustAck(t, f.c.StartBroadcast("B1"))
	for _, id := range []string{"B2", "B3", "B1"} {
		if err := f.c.StartBroadcast(id); !errors.Is(err, domain.ErrSessionAlreadyActive) {
			t.Fatalf("StartBroadcast(%s) = %v, want ErrSessionAlreadyActive", id, err)
		}
	}
	if f.c.BroadcasterID() != "B1" {
		t.Fatalf("broadcaster = %s", f.c.BroadcasterID())
	}

	if err := f.c.EndBroadcast("B2"); !errors.Is(err, domain.ErrUnauthorizedActor) {
		t.Fatalf("EndBroadcast by non-broadcaster = %v", err)
	}
	mustAck(t, f.c.EndBroadcast("B1"))
	if f.c.Active() {
		t.Fatal("session still active")
	}
	if err := f.c.EndBroadcast("B1"); !errors.Is(err, domain.ErrSessionInactive) {
		t.Fatalf("second EndBroadcast = %v", err)
	}

	mustAck(t, f.c.StartBroadcast("B2"))
	if f.c.BroadcasterID() != "B2" {
		t.Fatalf("broadcaster = %s", f.c.BroadcasterID())
	}
	if len(f.listener.started) != 2 || len(f.listener.ended) != 1 {
		t.Fatalf("listener saw %d starts, %d ends", len(f.listener.started), len(f.listener.ended))
	}
}

func TestEndBroadcastResetsViewers(t *testing.T) {
	f := newFixture(t, "B", "V1", "V2")
	mustAck(t, f.c.StartBroadcast("B"))
	mustAck(t, f.c.JoinAsViewer("V1", nil))
	mustAck(t, f.c.JoinAsViewer("V2", nil))
	mustAck(t, f.c.RequestMic("V1", "Alice"))
	f.notifier.reset()

	mustAck(t, f.c.EndBroadcast("B"))

	for _, id := range []string{"B", "V1", "V2"} {
		m := f.notifier.last(t, id)
		if m.Type != domain.MsgTypeBroadcastEnded || str(m, "reason") != domain.EndReasonEnded {
			t.Fatalf("%s got %v, want broadcast-ended{ended}", id, m.Raw)
		}
	}
	if s, _ := f.c.MicState("V1"); s != domain.MicNone {
		t.Fatalf("mic state after end = %s", s)
	}
	if f.c.ViewerCount() != 0 {
		t.Fatalf("ViewerCount = %d", f.c.ViewerCount())
	}

	// a fresh broadcast starts from zero viewers
	mustAck(t, f.c.StartBroadcast("V2"))
	if f.c.ViewerCount() != 0 {
		t.Fatalf("ViewerCount on new session = %d", f.c.ViewerCount())
	}
}

func TestViewerCountConsistency(t *testing.T) {
	f := newFixture(t, "B", "V1", "V2", "V3", "V4")
	mustAck(t, f.c.StartBroadcast("B"))

	for _, id := range []string{"V1", "V2", "V3", "V4"} {
		mustAck(t, f.c.JoinAsViewer(id, nil))
	}
	// duplicate delivery and reordering
	mustAck(t, f.c.JoinAsViewer("V2", nil))
	mustAck(t, f.c.Disconnect("V3"))
	_ = f.c.Disconnect("V3")
	mustAck(t, f.c.LeaveAsViewer("V4"))
	if err := f.c.LeaveAsViewer("V4"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("second leave = %v", err)
	}

	want := 0
	f.c.Registry().Each(func(p *domain.Participant) {
		if p.Role == domain.RoleViewer && p.Joined {
			want++
		}
	})
	if want != 2 || f.c.ViewerCount() != want {
		t.Fatalf("ViewerCount = %d, registry says %d (want 2)", f.c.ViewerCount(), want)
	}

	last := f.notifier.last(t, "B")
	if last.Type != domain.MsgTypeDisconnectPeer || num(t, last, "viewerCount") != 2 {
		t.Fatalf("B last got %v", last.Raw)
	}
}

func TestRelayTargeting(t *testing.T) {
	f := newFixture(t, "A", "B", "C")
	payload := json.RawMessage(`{"sdp":"v=0"}`)

	mustAck(t, f.c.Relay(domain.MsgTypeOffer, "A", "B", payload))

	if len(f.notifier.inbox["A"]) != 0 || len(f.notifier.inbox["C"]) != 0 {
		t.Fatalf("relay leaked: A=%v C=%v", f.notifier.types("A"), f.notifier.types("C"))
	}
	m := f.notifier.last(t, "B")
	if m.Type != domain.MsgTypeOffer || str(m, "from") != "A" {
		t.Fatalf("B got %v", m.Raw)
	}
	if body, _ := json.Marshal(m.Raw["payload"]); string(body) != `{"sdp":"v=0"}` {
		t.Fatalf("payload = %s", body)
	}

	cases := []struct {
		name   string
		kind   string
		from   string
		target string
		reason error
	}{
		{"unknown target", domain.MsgTypeAnswer, "A", "Z", domain.ErrUnknownTarget},
		{"self", domain.MsgTypeICECandidate, "A", "A", domain.ErrUnknownTarget},
		{"empty target", domain.MsgTypeOffer, "A", "", domain.ErrUnknownTarget},
		{"unknown sender", domain.MsgTypeOffer, "Z", "B", domain.ErrUnknownTarget},
		{"not a relay kind", domain.MsgTypeChatMessage, "A", "B", domain.ErrInvalidTransition},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f.notifier.reset()
			err := f.c.Relay(tc.kind, tc.from, tc.target, payload)
			if !errors.Is(err, tc.reason) || !domain.IsDrop(err) {
				t.Fatalf("Relay = %v, want drop %v", err, tc.reason)
			}
			if len(f.notifier.inbox) != 0 {
				t.Fatalf("dropped relay delivered something: %v", f.notifier.inbox)
			}
		})
	}
}

func TestRelayToBroadcasterSentinel(t *testing.T) {
	f := newFixture(t, "B", "V1")

	// nobody is broadcasting yet
	err := f.c.Relay(domain.MsgTypeOffer, "V1", domain.BroadcasterTarget, json.RawMessage(`"sdp"`))
	if !errors.Is(err, domain.ErrUnknownTarget) {
		t.Fatalf("Relay before broadcast = %v, want ErrUnknownTarget", err)
	}
	if len(f.notifier.inbox) != 0 {
		t.Fatalf("something was delivered: %v", f.notifier.inbox)
	}

	mustAck(t, f.c.StartBroadcast("B"))
	f.notifier.reset()
	mustAck(t, f.c.Relay(domain.MsgTypeOffer, "V1", domain.BroadcasterTarget, json.RawMessage(`"sdp"`)))
	if m := f.notifier.last(t, "B"); m.Type != domain.MsgTypeOffer || str(m, "from") != "V1" {
		t.Fatalf("B got %v", m.Raw)
	}

	// the broadcaster addressing itself through the sentinel is a self-target
	if err := f.c.Relay(domain.MsgTypeAnswer, "B", domain.BroadcasterTarget, nil); !errors.Is(err, domain.ErrUnknownTarget) {
		t.Fatalf("self relay = %v", err)
	}
}

func TestMicRequestAndApprove(t *testing.T) {
	f := newFixture(t, "B", "V1")
	mustAck(t, f.c.StartBroadcast("B"))
	mustAck(t, f.c.JoinAsViewer("V1", nil))
	f.notifier.reset()

	mustAck(t, f.c.RequestMic("V1", "Alice"))
	m := f.notifier.last(t, "B")
	if m.Type != domain.MsgTypeMicRequest || str(m, "viewerId") != "V1" || str(m, "displayName") != "Alice" {
		t.Fatalf("B got %v", m.Raw)
	}

	// double click
	mustAck(t, f.c.RequestMic("V1", "Alice"))
	if n := f.notifier.count("B", domain.MsgTypeMicRequest); n != 1 {
		t.Fatalf("broadcaster notified %d times", n)
	}

	mustAck(t, f.c.ApproveMic("B", "V1"))
	if m := f.notifier.last(t, "V1"); m.Type != domain.MsgTypeMicApproved {
		t.Fatalf("V1 got %v", m.Raw)
	}
	if s, _ := f.c.MicState("V1"); s != domain.MicApproved {
		t.Fatalf("micState = %s", s)
	}

	mustAck(t, f.c.RequestMic("V1", "Alice"))
	if n := f.notifier.count("B", domain.MsgTypeMicRequest); n != 1 {
		t.Fatalf("request while approved notified again")
	}
}

func TestMicStateMachine(t *testing.T) {
	f := newFixture(t, "B", "V1", "V2")
	mustAck(t, f.c.StartBroadcast("B"))
	mustAck(t, f.c.JoinAsViewer("V1", nil))

	steps := []struct {
		name   string
		op     func() error
		reason error
		want   domain.MicState
	}{
		{"approve without request", func() error { return f.c.ApproveMic("B", "V1") }, domain.ErrInvalidTransition, domain.MicNone},
		{"mute without grant", func() error { return f.c.MuteMic("B", "V1") }, domain.ErrInvalidTransition, domain.MicNone},
		{"request", func() error { return f.c.RequestMic("V1", "") }, nil, domain.MicRequested},
		{"approve by viewer", func() error { return f.c.ApproveMic("V1", "V1") }, domain.ErrUnauthorizedActor, domain.MicRequested},
		{"approve unknown viewer", func() error { return f.c.ApproveMic("B", "V9") }, domain.ErrUnknownTarget, domain.MicRequested},
		{"approve unjoined viewer", func() error { return f.c.ApproveMic("B", "V2") }, domain.ErrUnknownTarget, domain.MicRequested},
		{"reject", func() error { return f.c.RejectMic("B", "V1") }, nil, domain.MicNone},
		{"request again", func() error { return f.c.RequestMic("V1", "") }, nil, domain.MicRequested},
		{"approve", func() error { return f.c.ApproveMic("B", "V1") }, nil, domain.MicApproved},
		{"mute", func() error { return f.c.MuteMic("B", "V1") }, nil, domain.MicNone},
		{"approve after mute", func() error { return f.c.ApproveMic("B", "V1") }, domain.ErrInvalidTransition, domain.MicNone},
		{"mute again", func() error { return f.c.MuteMic("B", "V1") }, domain.ErrInvalidTransition, domain.MicNone},
		{"request after mute", func() error { return f.c.RequestMic("V1", "") }, nil, domain.MicRequested},
		{"approve after re-request", func() error { return f.c.ApproveMic("B", "V1") }, nil, domain.MicApproved},
		{"release", func() error { return f.c.ReleaseMic("V1") }, nil, domain.MicNone},
		{"release again", func() error { return f.c.ReleaseMic("V1") }, domain.ErrInvalidTransition, domain.MicNone},
		{"broadcaster requests", func() error { return f.c.RequestMic("B", "") }, domain.ErrUnauthorizedActor, domain.MicNone},
	}

	valid := map[domain.MicState]bool{
		domain.MicNone: true, domain.MicRequested: true, domain.MicApproved: true, domain.MicMuted: true,
	}
	for _, st := range steps {
		err := st.op()
		if st.reason == nil && err != nil {
			t.Fatalf("%s: unexpected drop %v", st.name, err)
		}
		if st.reason != nil && !errors.Is(err, st.reason) {
			t.Fatalf("%s: err = %v, want %v", st.name, err, st.reason)
		}
		got, _ := f.c.MicState("V1")
		if !valid[got] || got != st.want {
			t.Fatalf("%s: micState = %q, want %q", st.name, got, st.want)
		}
	}

	if n := f.notifier.count("V1", domain.MsgTypeMicMuted); n != 1 {
		t.Fatalf("V1 got %d mic-muted notices, want 1", n)
	}
	if m := f.notifier.last(t, "B"); m.Type != domain.MsgTypeMicReleased {
		t.Fatalf("B last got %v", m.Raw)
	}
}

func TestMicRejectedWhileInactive(t *testing.T) {
	f := newFixture(t, "B", "V1")

	for name, op := range map[string]func() error{
		"request": func() error { return f.c.RequestMic("V1", "Alice") },
		"approve": func() error { return f.c.ApproveMic("B", "V1") },
		"reject":  func() error { return f.c.RejectMic("B", "V1") },
		"mute":    func() error { return f.c.MuteMic("B", "V1") },
		"release": func() error { return f.c.ReleaseMic("V1") },
	} {
		if err := op(); !errors.Is(err, domain.ErrSessionInactive) {
			t.Fatalf("%s = %v, want ErrSessionInactive", name, err)
		}
	}
	if len(f.notifier.inbox) != 0 {
		t.Fatalf("drops produced messages: %v", f.notifier.inbox)
	}
}

func TestRecordingLifecycle(t *testing.T) {
	f := newFixture(t, "B", "V1")

	if err := f.c.StartRecording("B", "lec-1"); !errors.Is(err, domain.ErrSessionInactive) {
		t.Fatalf("StartRecording inactive = %v", err)
	}

	mustAck(t, f.c.StartBroadcast("B"))
	mustAck(t, f.c.JoinAsViewer("V1", nil))

	if err := f.c.StartRecording("V1", "lec-1"); !errors.Is(err, domain.ErrUnauthorizedActor) {
		t.Fatalf("StartRecording by viewer = %v", err)
	}
	if err := f.c.StopRecording("B"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("StopRecording while idle = %v", err)
	}

	mustAck(t, f.c.StartRecording("B", "lec-1"))
	if m := f.notifier.last(t, "V1"); m.Type != domain.MsgTypeRecordingStarted || str(m, "sessionTag") != "lec-1" {
		t.Fatalf("V1 got %v", m.Raw)
	}
	if err := f.c.StartRecording("B", "lec-2"); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("second StartRecording = %v", err)
	}

	f.clock.Advance(90*time.Second + 700*time.Millisecond)
	mustAck(t, f.c.StopRecording("B"))

	m := f.notifier.last(t, "V1")
	if m.Type != domain.MsgTypeRecordingStopped || num(t, m, "duration") != 90 {
		t.Fatalf("V1 got %v, want recording-stopped duration 90", m.Raw)
	}
	if f.c.Recording() {
		t.Fatal("still recording")
	}

	mustAck(t, f.c.StartRecording("B", ""))
	if got := f.listener.recStart[len(f.listener.recStart)-1].SessionTag; got != "S1" {
		t.Fatalf("default tag = %q, want session id", got)
	}
}

func TestRecordingEventStoppedAt(t *testing.T) {
	f := newFixture(t, "B")
	mustAck(t, f.c.StartBroadcast("B"))
	mustAck(t, f.c.StartRecording("B", "lec-1"))
	f.clock.Advance(5 * time.Second)
	mustAck(t, f.c.StopRecording("B"))

	start, _ := json.Marshal(f.listener.recStart[0])
	var startFields map[string]interface{}
	json.Unmarshal(start, &startFields)
	if _, ok := startFields["stoppedAt"]; ok {
		t.Fatalf("start event carries stoppedAt: %s", start)
	}

	stop := f.listener.recStop[0]
	if stop.StoppedAt == nil || !stop.StoppedAt.Equal(f.clock.Now()) {
		t.Fatalf("stop event stoppedAt = %v, want %v", stop.StoppedAt, f.clock.Now())
	}
}

func TestEndWhileRecordingStopsOnce(t *testing.T) {
	f := newFixture(t, "B", "V1")
	mustAck(t, f.c.StartBroadcast("B"))
	mustAck(t, f.c.JoinAsViewer("V1", nil))
	mustAck(t, f.c.StartRecording("B", "lec-3"))
	f.clock.Advance(5 * time.Second)

	mustAck(t, f.c.EndBroadcast("B"))

	if n := f.notifier.count("V1", domain.MsgTypeRecordingStopped); n != 1 {
		t.Fatalf("recording-stopped sent %d times", n)
	}
	if len(f.listener.recStop) != 1 || f.listener.recStop[0].Duration < 0 {
		t.Fatalf("listener recStop = %+v", f.listener.recStop)
	}
	types := f.notifier.types("V1")
	if types[len(types)-2] != domain.MsgTypeRecordingStopped || types[len(types)-1] != domain.MsgTypeBroadcastEnded {
		t.Fatalf("V1 order = %v", types)
	}
	if f.c.Recording() || f.c.Active() {
		t.Fatal("recording outlived the session")
	}
}

func TestBroadcasterDisconnectWhileRecording(t *testing.T) {
	f := newFixture(t, "B", "V1", "V2")
	mustAck(t, f.c.StartBroadcast("B"))
	mustAck(t, f.c.JoinAsViewer("V1", nil))
	mustAck(t, f.c.JoinAsViewer("V2", nil))
	mustAck(t, f.c.RequestMic("V1", "Alice"))
	mustAck(t, f.c.StartRecording("B", "lec-7"))
	f.clock.Advance(42 * time.Second)
	f.notifier.reset()

	mustAck(t, f.c.Disconnect("B"))

	for _, id := range []string{"V1", "V2"} {
		got := f.notifier.types(id)
		if len(got) != 2 || got[0] != domain.MsgTypeRecordingStopped || got[1] != domain.MsgTypeBroadcastEnded {
			t.Fatalf("%s got %v", id, got)
		}
		stopped := f.notifier.inbox[id][0]
		if str(stopped, "sessionTag") != "lec-7" || num(t, stopped, "duration") != 42 {
			t.Fatalf("%s recording-stopped = %v", id, stopped.Raw)
		}
		if reason := str(f.notifier.inbox[id][1], "reason"); reason != domain.EndReasonBroadcasterDisconnected {
			t.Fatalf("reason = %q", reason)
		}
	}
	if len(f.notifier.inbox["B"]) != 0 {
		t.Fatal("departed broadcaster was sent messages")
	}
	if len(f.listener.recStop) != 1 || f.listener.recStop[0].Duration != 42 {
		t.Fatalf("recording-stopped events = %+v", f.listener.recStop)
	}
	if f.c.Active() {
		t.Fatal("session still active")
	}
	if _, ok := f.c.Registry().Get("B"); ok {
		t.Fatal("broadcaster still registered")
	}

	report := f.listener.ended[0]
	if report.EndReason != domain.EndReasonBroadcasterDisconnected || report.PeakViewers != 2 || len(report.Recordings) != 1 {
		t.Fatalf("report = %+v", report)
	}
}

func TestViewerDisconnect(t *testing.T) {
	f := newFixture(t, "B", "V1", "V2")
	mustAck(t, f.c.StartBroadcast("B"))
	mustAck(t, f.c.JoinAsViewer("V1", &domain.DisplayInfo{Name: "Alice", AccountID: "acc-1"}))
	mustAck(t, f.c.JoinAsViewer("V2", nil))
	if f.c.ViewerCount() != 2 {
		t.Fatalf("ViewerCount = %d", f.c.ViewerCount())
	}
	f.notifier.reset()

	mustAck(t, f.c.Disconnect("V1"))

	m := f.notifier.last(t, "B")
	if m.Type != domain.MsgTypeDisconnectPeer || str(m, "connectionId") != "V1" || num(t, m, "viewerCount") != 1 {
		t.Fatalf("B got %v", m.Raw)
	}
	info, _ := m.Raw["displayInfo"].(map[string]interface{})
	if info["name"] != "Alice" {
		t.Fatalf("departure lost display info: %v", m.Raw)
	}

	f.notifier.reset()
	if err := f.c.Disconnect("V1"); !errors.Is(err, domain.ErrUnknownTarget) {
		t.Fatalf("second disconnect = %v", err)
	}
	if len(f.notifier.inbox) != 0 {
		t.Fatalf("second disconnect notified: %v", f.notifier.inbox)
	}
	if f.c.ViewerCount() != 1 {
		t.Fatalf("ViewerCount = %d", f.c.ViewerCount())
	}
}

func TestLeaveAndEndInterleave(t *testing.T) {
	for _, viewerFirst := range []bool{true, false} {
		f := newFixture(t, "B", "V1")
		mustAck(t, f.c.StartBroadcast("B"))
		mustAck(t, f.c.JoinAsViewer("V1", nil))

		if viewerFirst {
			mustAck(t, f.c.LeaveAsViewer("V1"))
			mustAck(t, f.c.EndBroadcast("B"))
		} else {
			mustAck(t, f.c.EndBroadcast("B"))
			if err := f.c.LeaveAsViewer("V1"); !errors.Is(err, domain.ErrSessionInactive) {
				t.Fatalf("leave after end = %v", err)
			}
		}
		if f.c.Active() || f.c.ViewerCount() != 0 {
			t.Fatalf("viewerFirst=%v: active=%v count=%d", viewerFirst, f.c.Active(), f.c.ViewerCount())
		}
	}
}

func TestChatFanout(t *testing.T) {
	f := newFixture(t, "B", "V1", "V2")
	mustAck(t, f.c.StartBroadcast("B"))
	mustAck(t, f.c.JoinAsViewer("V1", &domain.DisplayInfo{Name: "Alice"}))
	f.notifier.reset()

	mustAck(t, f.c.ChatMessage("V1", "  hello  "))
	for _, id := range []string{"B", "V1", "V2"} {
		m := f.notifier.last(t, id)
		if m.Type != domain.MsgTypeChatMessage || str(m, "text") != "hello" || str(m, "displayName") != "Alice" {
			t.Fatalf("%s got %v", id, m.Raw)
		}
	}

	if err := f.c.ChatMessage("V1", "   "); !errors.Is(err, domain.ErrInvalidTransition) {
		t.Fatalf("empty chat = %v", err)
	}

	long := make([]rune, MaxChatRunes+10)
	for i := range long {
		long[i] = 'é'
	}
	mustAck(t, f.c.ChatMessage("B", string(long)))
	if got := []rune(str(f.notifier.last(t, "V2"), "text")); len(got) != MaxChatRunes {
		t.Fatalf("chat length = %d", len(got))
	}
}

func TestTerminateAndRecordingStored(t *testing.T) {
	f := newFixture(t, "B", "V1")
	if err := f.c.Terminate(""); !errors.Is(err, domain.ErrSessionInactive) {
		t.Fatalf("Terminate inactive = %v", err)
	}
	mustAck(t, f.c.StartBroadcast("B"))

	mustAck(t, f.c.NotifyRecordingStored("lec-1", "https://cdn/lec-1.webm", ""))
	if m := f.notifier.last(t, "B"); m.Type != domain.MsgTypeRecordingSaved || str(m, "url") != "https://cdn/lec-1.webm" {
		t.Fatalf("B got %v", m.Raw)
	}

	mustAck(t, f.c.Terminate(""))
	if m := f.notifier.last(t, "V1"); str(m, "reason") != domain.EndReasonTerminated {
		t.Fatalf("V1 got %v", m.Raw)
	}
	if err := f.c.NotifyRecordingStored("lec-1", "", ""); !errors.Is(err, domain.ErrSessionInactive) {
		t.Fatalf("NotifyRecordingStored inactive = %v", err)
	}
}

func TestSnapshotAndParticipants(t *testing.T) {
	f := newFixture(t, "B", "V1")
	mustAck(t, f.c.StartBroadcast("B"))
	mustAck(t, f.c.JoinAsViewer("V1", &domain.DisplayInfo{Name: "Alice"}))
	mustAck(t, f.c.StartRecording("B", "lec-9"))

	s := f.c.Snapshot()
	if !s.Active || s.SessionID != "S1" || s.BroadcasterID != "B" || s.ViewerCount != 1 || s.Connections != 2 {
		t.Fatalf("snapshot = %+v", s)
	}
	if s.Recording == nil || s.Recording.SessionTag != "lec-9" || s.StartedAt == nil {
		t.Fatalf("snapshot recording = %+v", s.Recording)
	}

	views := f.c.Participants()
	if len(views) != 2 || views[0].ConnectionID != "B" || views[1].DisplayInfo.Name != "Alice" {
		t.Fatalf("participants = %+v", views)
	}
	views[1].DisplayInfo.Name = "mutated"
	if p, _ := f.c.Registry().Get("V1"); p.DisplayInfo.Name != "Alice" {
		t.Fatal("participant view aliases registry state")
	}
}

func TestStrayMessagesAfterDisconnect(t *testing.T) {
	f := newFixture(t, "B", "V1")
	mustAck(t, f.c.StartBroadcast("B"))
	mustAck(t, f.c.JoinAsViewer("V1", nil))
	mustAck(t, f.c.Disconnect("V1"))
	f.notifier.reset()

	for name, err := range map[string]error{
		"watch": f.c.JoinAsViewer("V1", nil),
		"relay": f.c.Relay(domain.MsgTypeAnswer, "V1", "B", nil),
		"mic":   f.c.RequestMic("V1", ""),
		"chat":  f.c.ChatMessage("V1", "hi"),
		"leave": f.c.LeaveAsViewer("V1"),
	} {
		if !errors.Is(err, domain.ErrUnknownTarget) {
			t.Fatalf("%s after disconnect = %v", name, err)
		}
	}
	if len(f.notifier.inbox) != 0 {
		t.Fatalf("stray messages produced output: %v", f.notifier.inbox)
	}
}
