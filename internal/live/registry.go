package live

import (
	"sort"
	"time"

	"github.com/weiawesome/wes-io-live/live-service/internal/domain"
)

// Registry tracks every connected participant. Lookups of unknown ids are
// not errors; stray messages after a disconnect are expected.
type Registry struct {
	participants map[string]*domain.Participant
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{participants: make(map[string]*domain.Participant)}
}

// Register adds a participant with no role. Registering an existing id
// returns the existing record unchanged.
func (r *Registry) Register(connectionID string, now time.Time) *domain.Participant {
	if p, ok := r.participants[connectionID]; ok {
		return p
	}
	p := domain.NewParticipant(connectionID, now)
	r.participants[connectionID] = p
	return p
}

// SetRole assigns a role and, when info is non-nil, replaces the display info.
func (r *Registry) SetRole(connectionID string, role domain.Role, info *domain.DisplayInfo) (*domain.Participant, bool) {
	p, ok := r.participants[connectionID]
	if !ok {
		return nil, false
	}
	p.Role = role
	if info != nil {
		p.DisplayInfo = info
	}
	return p, true
}

func (r *Registry) Get(connectionID string) (*domain.Participant, bool) {
	p, ok := r.participants[connectionID]
	return p, ok
}

// Remove deletes the participant and returns it so callers can react.
func (r *Registry) Remove(connectionID string) (*domain.Participant, bool) {
	p, ok := r.participants[connectionID]
	if ok {
		delete(r.participants, connectionID)
	}
	return p, ok
}

func (r *Registry) Len() int {
	return len(r.participants)
}

// JoinedViewers counts viewers joined to the current broadcast.
func (r *Registry) JoinedViewers() int {
	n := 0
	for _, p := range r.participants {
		if p.IsJoinedViewer() {
			n++
		}
	}
	return n
}

// Each calls fn for every participant in no particular order.
func (r *Registry) Each(fn func(p *domain.Participant)) {
	for _, p := range r.participants {
		fn(p)
	}
}

// All returns participants ordered by connect time.
func (r *Registry) All() []*domain.Participant {
	out := make([]*domain.Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ConnectedAt.Equal(out[j].ConnectedAt) {
			return out[i].ConnectionID < out[j].ConnectionID
		}
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}
