package domain

import "time"

// Role is how a connection takes part in the live session.
type Role string

const (
	RoleNone        Role = ""
	RoleBroadcaster Role = "broadcaster"
	RoleViewer      Role = "viewer"
)

// MicState is a viewer's floor-control permission. It says nothing about
// whether the browser actually has its audio track enabled.
type MicState string

// MicMuted is part of the wire vocabulary only; mute-mic returns a viewer to none.
const (
	MicNone      MicState = "none"
	MicRequested MicState = "requested"
	MicApproved  MicState = "approved"
	MicMuted     MicState = "muted"
)

// DisplayInfo is optional viewer metadata attached at watch time.
type DisplayInfo struct {
	Name      string `json:"name,omitempty"`
	AccountID string `json:"accountId,omitempty"`
}

// Participant is one connected peer.
type Participant struct {
	ConnectionID string
	Role         Role
	DisplayInfo  *DisplayInfo
	MicState     MicState
	// Joined is true for a viewer counted in the current broadcast.
	Joined      bool
	ConnectedAt time.Time
	JoinedAt    time.Time
}

// NewParticipant returns a participant with no role.
func NewParticipant(connectionID string, now time.Time) *Participant {
	return &Participant{
		ConnectionID: connectionID,
		MicState:     MicNone,
		ConnectedAt:  now,
	}
}

// IsJoinedViewer reports whether p counts towards the viewer count.
func (p *Participant) IsJoinedViewer() bool {
	return p.Role == RoleViewer && p.Joined
}

// DisplayName returns the best human-readable name for p.
func (p *Participant) DisplayName() string {
	if p.DisplayInfo != nil && p.DisplayInfo.Name != "" {
		return p.DisplayInfo.Name
	}
	if p.Role == RoleBroadcaster {
		return "Broadcaster"
	}
	return "Anonymous"
}

// ParticipantView is the read-only projection served to admins.
type ParticipantView struct {
	ConnectionID string       `json:"connectionId"`
	Role         Role         `json:"role,omitempty"`
	Joined       bool         `json:"joined"`
	MicState     MicState     `json:"micState"`
	DisplayInfo  *DisplayInfo `json:"displayInfo,omitempty"`
	ConnectedAt  time.Time    `json:"connectedAt"`
}

// View projects p for external readers.
func (p *Participant) View() ParticipantView {
	v := ParticipantView{
		ConnectionID: p.ConnectionID,
		Role:         p.Role,
		Joined:       p.Joined,
		MicState:     p.MicState,
		ConnectedAt:  p.ConnectedAt,
	}
	if p.DisplayInfo != nil {
		info := *p.DisplayInfo
		v.DisplayInfo = &info
	}
	return v
}
