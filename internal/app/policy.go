package app

import (
	"time"

	"github.com/dkeye/VoiceMesh/internal/domain"
)

// Policy decides whom the local session initiates towards after joining.
type Policy interface {
	InitiateTargets(existing []domain.Participant, self domain.ParticipantID) []domain.Participant
	// Delay is how long to wait before the i-th initiated connection.
	Delay(i int) time.Duration
}

// MeshPolicy initiates towards the first MaxRemote existing members, one Stagger apart.
type MeshPolicy struct {
	MaxRemote int
	Stagger   time.Duration
}

func NewMeshPolicy(maxParticipants int, stagger time.Duration) MeshPolicy {
	if maxParticipants <= 1 {
		maxParticipants = domain.MaxParticipants
	}
	return MeshPolicy{MaxRemote: maxParticipants - 1, Stagger: stagger}
}

func (p MeshPolicy) InitiateTargets(existing []domain.Participant, self domain.ParticipantID) []domain.Participant {
	out := make([]domain.Participant, 0, min(len(existing), p.MaxRemote))
	seen := make(map[domain.ParticipantID]struct{}, len(existing))
	for _, u := range existing {
		if len(out) >= p.MaxRemote {
			break
		}
		if u.ID == "" || u.ID == self {
			continue
		}
		if _, dup := seen[u.ID]; dup {
			continue
		}
		seen[u.ID] = struct{}{}
		out = append(out, u)
	}
	return out
}

func (p MeshPolicy) Delay(i int) time.Duration {
	return p.Stagger * time.Duration(i+1)
}
