// Package domain contains entities without logic, just meta-data
package domain

import (
	"errors"
	"strings"
)

const (
	MaxDisplayNameLen = 64
	DefaultName       = "Invitado"
)

var (
	ErrEmptyParticipantID = errors.New("participant id empty")
	ErrDisplayNameTooLong = errors.New("display name too long")
)

// ParticipantID identifies one connected session, not a person.
type ParticipantID string

// SelfKey stands in for the local participant until the channel assigns an id.
const SelfKey ParticipantID = "self"

type Participant struct {
	ID          ParticipantID `json:"socketId"`
	DisplayName string        `json:"displayName,omitempty"`
	PhotoURL    string        `json:"photoURL,omitempty"`
}

// NewParticipant is a tiny helper to avoid ad-hoc struct literals in adapters.
func NewParticipant(id ParticipantID, name, photo string) (*Participant, error) {
	if id == "" {
		return nil, ErrEmptyParticipantID
	}
	p := &Participant{ID: id, PhotoURL: photo}
	if err := p.SetDisplayName(name); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Participant) SetDisplayName(name string) error {
	name = strings.TrimSpace(name)
	if len(name) > MaxDisplayNameLen {
		return ErrDisplayNameTooLong
	}
	p.DisplayName = name
	return nil
}

// Merge refreshes metadata with any non-empty field of other.
func (p *Participant) Merge(other Participant) {
	if other.DisplayName != "" {
		p.DisplayName = other.DisplayName
	}
	if other.PhotoURL != "" {
		p.PhotoURL = other.PhotoURL
	}
}
