package orch

import (
	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
)

type PeerView struct {
	ID          domain.ParticipantID `json:"id"`
	DisplayName string               `json:"displayName,omitempty"`
	PhotoURL    string               `json:"photoURL,omitempty"`
	Self        bool                 `json:"self"`
	Media       domain.MediaState    `json:"media"`
	Role        core.Role            `json:"role,omitempty"`
	State       string               `json:"state,omitempty"`
	HasStream   bool                 `json:"hasStream"`
}

type View struct {
	Room         domain.RoomID `json:"room"`
	Self         string        `json:"self,omitempty"`
	Active       bool          `json:"active"`
	Joined       bool          `json:"joined"`
	Waiting      bool          `json:"waiting"`
	Full         bool          `json:"full"`
	Participants []PeerView    `json:"participants"`
}

func (o *Orchestrator) view() View {
	v := View{
		Room:         o.opts.Room,
		Self:         string(o.self),
		Active:       o.active,
		Joined:       o.joined,
		Waiting:      o.waiting,
		Full:         o.full,
		Participants: make([]PeerView, 0, o.members.Count()),
	}
	for _, id := range o.members.IDs() {
		p, _ := o.members.Get(id)
		pv := PeerView{
			ID:          id,
			DisplayName: p.DisplayName,
			PhotoURL:    p.PhotoURL,
			Self:        id == o.self,
			Media:       o.states.Get(id),
		}
		if e, ok := o.entries[id]; ok {
			pv.Role = e.Role
			pv.State = e.state.String()
			pv.HasStream = e.stream != nil
		}
		v.Participants = append(v.Participants, pv)
	}
	return v
}
