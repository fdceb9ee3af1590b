package signal

import (
	"encoding/json"
	"fmt"

	"github.com/dkeye/VoiceMesh/internal/domain"
)

const (
	EventSession     = "session"
	EventJoinRoom    = "join:room"
	EventRoomJoined  = "room:joined"
	EventUserJoined  = "user:joined"
	EventUserLeft    = "user:left"
	EventSignal      = "signal"
	EventChatMessage = "chat:message"
	EventMediaState  = "media:state"
	EventMediaStates = "media:states"
	EventRoomFull    = "room:full"
	EventLeaveRoom   = "leave:room"
)

type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

func encode(event string, v any) ([]byte, error) {
	f := Frame{Event: event}
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		f.Data = data
	}
	return json.Marshal(f)
}

type sessionData struct {
	SocketID domain.ParticipantID `json:"socketId"`
}

type joinRoomData struct {
	RoomID      domain.RoomID `json:"roomId"`
	Identity    string        `json:"identity,omitempty"`
	DisplayName string        `json:"displayName,omitempty"`
	PhotoURL    string        `json:"photoURL,omitempty"`
}

type roomJoinedData struct {
	ExistingUsers []domain.Participant `json:"existingUsers"`
}

type outSignalData struct {
	To     domain.ParticipantID `json:"to"`
	From   domain.ParticipantID `json:"from"`
	Signal domain.Signal        `json:"signal"`
	RoomID domain.RoomID        `json:"roomId"`
}

type inSignalData struct {
	From        domain.ParticipantID `json:"from"`
	Signal      domain.Signal        `json:"signal"`
	DisplayName string               `json:"displayName,omitempty"`
	PhotoURL    string               `json:"photoURL,omitempty"`
}

type outChatData struct {
	RoomID  domain.RoomID `json:"roomId"`
	UserID  string        `json:"userId"`
	Message string        `json:"message"`
}

type outMediaData struct {
	RoomID domain.RoomID `json:"roomId"`
	domain.MediaPatch
}

type inMediaData struct {
	SocketID domain.ParticipantID `json:"socketId"`
	domain.MediaPatch
}

type leaveRoomData struct {
	RoomID domain.RoomID `json:"roomId"`
}

// decodeUserLeft accepts both a bare id and {socketId}.
func decodeUserLeft(data json.RawMessage) (domain.ParticipantID, error) {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		return domain.ParticipantID(id), nil
	}
	var obj sessionData
	if err := json.Unmarshal(data, &obj); err != nil {
		return "", err
	}
	return obj.SocketID, nil
}
