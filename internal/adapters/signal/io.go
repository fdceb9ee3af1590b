package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (c *Client) writePump(ctx context.Context, ws *websocket.Conn, send <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = ws.Close()
	}()

	for {
		select {
		case <-done:
			flush(ws, send)
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case data := <-send:
			if err := ws.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		}
	}
}

// flush writes whatever is still queued, such as a final leave:room.
func flush(ws *websocket.Conn, send <-chan []byte) {
	for {
		select {
		case data := <-send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) readPump(ws *websocket.Conn, events core.ChannelEvents) {
	var readErr error
	defer func() {
		_ = ws.Close()
		c.mu.Lock()
		wasClosed := c.closed
		c.connected = false
		c.mu.Unlock()
		if !wasClosed {
			log.Warn().Err(readErr).Str("module", "signal").Msg("readPump closing")
			events.OnDisconnected(readErr)
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			readErr = err
			return
		}
		c.handleFrame(events, data)
	}
}

func (c *Client) handleFrame(events core.ChannelEvents, data []byte) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		return
	}

	var err error
	switch f.Event {
	case EventSession:
		err = c.handleSession(events, f.Data)
	case EventRoomJoined:
		var d roomJoinedData
		if err = json.Unmarshal(f.Data, &d); err == nil {
			events.OnRoomJoined(d.ExistingUsers)
		}
	case EventUserJoined:
		var p domain.Participant
		if err = json.Unmarshal(f.Data, &p); err == nil {
			events.OnUserJoined(p)
		}
	case EventUserLeft:
		var id domain.ParticipantID
		if id, err = decodeUserLeft(f.Data); err == nil {
			events.OnUserLeft(id)
		}
	case EventSignal:
		var d inSignalData
		if err = json.Unmarshal(f.Data, &d); err == nil {
			events.OnSignal(domain.SignalEnvelope{
				From:   d.From,
				Signal: d.Signal,
				Sender: domain.Participant{ID: d.From, DisplayName: d.DisplayName, PhotoURL: d.PhotoURL},
			})
		}
	case EventChatMessage:
		var m domain.ChatMessage
		if err = json.Unmarshal(f.Data, &m); err == nil {
			events.OnChat(m)
		}
	case EventMediaState:
		var d inMediaData
		if err = json.Unmarshal(f.Data, &d); err == nil {
			events.OnMediaState(d.SocketID, d.MediaPatch)
		}
	case EventMediaStates:
		var d map[domain.ParticipantID]domain.MediaState
		if err = json.Unmarshal(f.Data, &d); err == nil {
			events.OnMediaStates(d)
		}
	case EventRoomFull:
		events.OnRoomFull()
	default:
		log.Warn().Str("module", "signal").Str("event", f.Event).Msg("unknown event")
	}
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("event", f.Event).Msg("bad payload")
	}
}

func (c *Client) handleSession(events core.ChannelEvents, data json.RawMessage) error {
	var d sessionData
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	c.mu.Lock()
	c.self = d.SocketID
	c.connected = d.SocketID != ""
	c.mu.Unlock()
	log.Info().Str("module", "signal").Str("self", string(d.SocketID)).Msg("session assigned")
	events.OnSession(d.SocketID)
	return nil
}
