package domain

import "encoding/json"

// Inbound message types.
const (
	MsgTypeWatch          = "watch"
	MsgTypeLeave          = "leave"
	MsgTypeStartBroadcast = "start-broadcast"
	MsgTypeEndBroadcast   = "end-broadcast"
	MsgTypeOffer          = "offer"
	MsgTypeAnswer         = "answer"
	MsgTypeICECandidate   = "ice-candidate"
	MsgTypeMicRequest     = "mic-request"
	MsgTypeApproveMic     = "approve-mic"
	MsgTypeRejectMic      = "reject-mic"
	MsgTypeMuteMic        = "mute-mic"
	MsgTypeMicRelease     = "mic-release"
	MsgTypeStartRecording = "start-recording"
	MsgTypeStopRecording  = "stop-recording"
	MsgTypeChatMessage    = "chat-message"
	MsgTypePing           = "ping"
)

// Outbound message types. Relays reuse the inbound offer/answer/ice-candidate
// types, and mic-request and chat-message are echoed under their own names.
const (
	MsgTypeBroadcastStarted   = "broadcast-started"
	MsgTypeBroadcastNotActive = "broadcast-not-active"
	MsgTypeBroadcastEnded     = "broadcast-ended"
	MsgTypeViewerJoined       = "viewer-joined"
	MsgTypeDisconnectPeer     = "disconnect-peer"
	MsgTypeMicApproved        = "mic-approved"
	MsgTypeMicRejected        = "mic-rejected"
	MsgTypeMicMuted           = "mic-muted"
	MsgTypeMicReleased        = "mic-released"
	MsgTypeRecordingStarted   = "recording-started"
	MsgTypeRecordingStopped   = "recording-stopped"
	MsgTypeRecordingSaved     = "recording-saved"
	MsgTypeError              = "error"
	MsgTypePong               = "pong"
)

// BroadcasterTarget is the relay target that always means the current broadcaster.
const BroadcasterTarget = "broadcaster"

// IsRelayKind reports whether t is a negotiation message the relay forwards.
func IsRelayKind(t string) bool {
	switch t {
	case MsgTypeOffer, MsgTypeAnswer, MsgTypeICECandidate:
		return true
	}
	return false
}

// BaseMessage carries only the type discriminator.
type BaseMessage struct {
	Type string `json:"type"`
}

// Client -> Server

// WatchMessage joins the broadcast as a viewer. Token, when set, is a bearer
// credential resolved to a display name before the join.
type WatchMessage struct {
	Type      string `json:"type"`
	Token     string `json:"token,omitempty"`
	Name      string `json:"name,omitempty"`
	AccountID string `json:"accountId,omitempty"`
}

// SignalMessage is an offer, answer or ice-candidate addressed to one peer.
// Older clients send the body as sdp or candidate instead of payload.
type SignalMessage struct {
	Type      string          `json:"type"`
	Target    string          `json:"target"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	SDP       json.RawMessage `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// Body returns whichever of payload, sdp or candidate was set.
func (m *SignalMessage) Body() json.RawMessage {
	switch {
	case len(m.Payload) > 0:
		return m.Payload
	case len(m.SDP) > 0:
		return m.SDP
	default:
		return m.Candidate
	}
}

// MicRequestMessage asks the broadcaster for the floor.
type MicRequestMessage struct {
	Type        string `json:"type"`
	DisplayName string `json:"displayName"`
}

// MicDecisionMessage is approve-mic, reject-mic or mute-mic.
type MicDecisionMessage struct {
	Type     string `json:"type"`
	ViewerID string `json:"viewerId"`
}

// StartRecordingMessage starts a recording; SessionTag is optional.
type StartRecordingMessage struct {
	Type       string `json:"type"`
	SessionTag string `json:"sessionTag,omitempty"`
}

// ChatMessage is a chat line from any participant.
type ChatMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Server -> Client

type BroadcastStartedMessage struct {
	Type          string `json:"type"`
	SessionID     string `json:"sessionId"`
	BroadcasterID string `json:"broadcasterId"`
	StartedAt     int64  `json:"startedAt"`
	ViewerCount   int    `json:"viewerCount"`
}

type BroadcastNotActiveMessage struct {
	Type string `json:"type"`
}

type BroadcastEndedMessage struct {
	Type      string `json:"type"`
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason"`
}

type ViewerJoinedMessage struct {
	Type         string       `json:"type"`
	ConnectionID string       `json:"connectionId"`
	ViewerCount  int          `json:"viewerCount"`
	DisplayInfo  *DisplayInfo `json:"displayInfo,omitempty"`
}

// DisconnectPeerMessage tells the broadcaster a viewer left and the new count.
type DisconnectPeerMessage struct {
	Type         string       `json:"type"`
	ConnectionID string       `json:"connectionId"`
	ViewerCount  int          `json:"viewerCount"`
	DisplayInfo  *DisplayInfo `json:"displayInfo,omitempty"`
	MicState     MicState     `json:"micState"`
}

// RelayMessage is an offer, answer or ice-candidate delivered to its target.
type RelayMessage struct {
	Type    string          `json:"type"`
	From    string          `json:"from"`
	Payload json.RawMessage `json:"payload"`
}

// MicRequestNotice is what the broadcaster sees when a viewer asks for the mic.
type MicRequestNotice struct {
	Type        string `json:"type"`
	ViewerID    string `json:"viewerId"`
	DisplayName string `json:"displayName"`
	RequestedAt int64  `json:"requestedAt"`
}

// MicDecisionNotice is mic-approved, mic-rejected, mic-muted or mic-released.
type MicDecisionNotice struct {
	Type     string `json:"type"`
	ViewerID string `json:"viewerId"`
}

type RecordingStartedMessage struct {
	Type       string `json:"type"`
	SessionTag string `json:"sessionTag"`
	StartedAt  int64  `json:"startedAt"`
}

type RecordingStoppedMessage struct {
	Type       string `json:"type"`
	SessionTag string `json:"sessionTag"`
	Duration   int64  `json:"duration"`
	StartedAt  int64  `json:"startedAt"`
}

type RecordingSavedMessage struct {
	Type       string `json:"type"`
	SessionTag string `json:"sessionTag"`
	URL        string `json:"url,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ChatBroadcast is a chat line fanned out to every participant.
type ChatBroadcast struct {
	Type        string `json:"type"`
	From        string `json:"from"`
	DisplayName string `json:"displayName"`
	Text        string `json:"text"`
	SentAt      int64  `json:"sentAt"`
}

// ErrorMessage answers frames that could not be decoded.
type ErrorMessage struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrCodeBadRequest   = "BAD_REQUEST"
	ErrCodeUnknownType  = "UNKNOWN_TYPE"
	ErrCodeUnauthorized = "UNAUTHORIZED"
	ErrCodeInternal     = "INTERNAL_ERROR"
)

// NewErrorMessage creates a new error message.
func NewErrorMessage(code, message string) *ErrorMessage {
	return &ErrorMessage{
		Type:    MsgTypeError,
		Code:    code,
		Message: message,
	}
}
