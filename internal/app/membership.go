package app

import (
	"slices"

	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/rs/zerolog/log"
)

// Membership is the authoritative participant set of the local session.
// It is confined to the orchestrator loop and needs no locking.
type Membership struct {
	self    domain.ParticipantID
	order   []domain.ParticipantID
	members map[domain.ParticipantID]*domain.Participant
	publish func(ids []domain.ParticipantID)
}

func NewMembership(publish func(ids []domain.ParticipantID)) *Membership {
	if publish == nil {
		publish = func([]domain.ParticipantID) {}
	}
	return &Membership{
		members: make(map[domain.ParticipantID]*domain.Participant),
		publish: publish,
	}
}

// OnRoomJoined resets membership to existing ∪ {self} and reports whether the
// local session should initiate towards the existing members.
func (m *Membership) OnRoomJoined(snap domain.RoomSnapshot, self domain.Participant) bool {
	m.self = snap.Self
	m.order = m.order[:0]
	clear(m.members)

	remote := 0
	for _, p := range snap.Existing {
		if p.ID == "" || p.ID == snap.Self {
			continue
		}
		if m.add(p) {
			remote++
		}
	}
	if snap.Self != "" {
		self.ID = snap.Self
		m.add(self)
	}
	log.Info().Str("module", "app.membership").Str("self", string(snap.Self)).Int("existing", remote).Msg("room joined")
	m.notify()
	return remote > 0
}

// OnUserJoined adds p if absent. Duplicate deliveries are no-ops.
func (m *Membership) OnUserJoined(p domain.Participant) bool {
	if p.ID == "" || !m.add(p) {
		return false
	}
	log.Info().Str("module", "app.membership").Str("peer", string(p.ID)).Msg("member added")
	m.notify()
	return true
}

func (m *Membership) OnUserLeft(id domain.ParticipantID) bool {
	if _, ok := m.members[id]; !ok {
		return false
	}
	delete(m.members, id)
	m.order = slices.DeleteFunc(m.order, func(v domain.ParticipantID) bool { return v == id })
	log.Info().Str("module", "app.membership").Str("peer", string(id)).Msg("member removed")
	m.notify()
	return true
}

// Touch refreshes metadata of a known participant.
func (m *Membership) Touch(p domain.Participant) {
	if cur, ok := m.members[p.ID]; ok {
		cur.Merge(p)
	}
}

func (m *Membership) Has(id domain.ParticipantID) bool {
	_, ok := m.members[id]
	return ok
}

func (m *Membership) Get(id domain.ParticipantID) (domain.Participant, bool) {
	p, ok := m.members[id]
	if !ok {
		return domain.Participant{}, false
	}
	return *p, true
}

func (m *Membership) Self() domain.ParticipantID { return m.self }

func (m *Membership) Count() int { return len(m.order) }

// IDs returns the participant ids in arrival order.
func (m *Membership) IDs() []domain.ParticipantID { return slices.Clone(m.order) }

func (m *Membership) Reset() {
	m.self = ""
	m.order = m.order[:0]
	clear(m.members)
	m.notify()
}

func (m *Membership) add(p domain.Participant) bool {
	if _, ok := m.members[p.ID]; ok {
		return false
	}
	cp := p
	m.members[p.ID] = &cp
	m.order = append(m.order, p.ID)
	return true
}

func (m *Membership) notify() { m.publish(m.IDs()) }
