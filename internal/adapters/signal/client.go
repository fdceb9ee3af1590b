package signal

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

const (
	writeWait         = 10 * time.Second
	defaultPingPeriod = 54 * time.Second
	defaultReadLimit  = 64 * 1024
	defaultQueueSize  = 64
)

type Options struct {
	URL        string
	Token      string // sent as a bearer token when non-empty
	PingPeriod time.Duration
	ReadLimit  int64
	QueueSize  int
	Dialer     *websocket.Dialer
}

// Client is the WebSocket signal channel to the room relay.
type Client struct {
	opts Options

	mu        sync.RWMutex
	conn      *websocket.Conn
	send      chan []byte
	done      chan struct{}
	events    core.ChannelEvents
	self      domain.ParticipantID
	connected bool
	closed    bool

	wg conc.WaitGroup
}

func NewClient(opts Options) *Client {
	if opts.PingPeriod <= 0 {
		opts.PingPeriod = defaultPingPeriod
	}
	if opts.ReadLimit <= 0 {
		opts.ReadLimit = defaultReadLimit
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Dialer == nil {
		opts.Dialer = websocket.DefaultDialer
	}
	return &Client{opts: opts}
}

func (c *Client) pongWait() time.Duration { return c.opts.PingPeriod * 10 / 9 }

// Connect dials the relay and starts the pumps. The channel counts as
// connected once the relay assigns the session id.
func (c *Client) Connect(ctx context.Context, events core.ChannelEvents) error {
	header := http.Header{}
	if c.opts.Token != "" {
		header.Set("Authorization", "Bearer "+c.opts.Token)
	}
	ws, _, err := c.opts.Dialer.DialContext(ctx, c.opts.URL, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", c.opts.URL, err)
	}

	ws.SetReadLimit(c.opts.ReadLimit)
	_ = ws.SetReadDeadline(time.Now().Add(c.pongWait()))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(c.pongWait()))
	})

	c.mu.Lock()
	c.conn = ws
	c.events = events
	c.send = make(chan []byte, c.opts.QueueSize)
	c.done = make(chan struct{})
	c.self, c.connected, c.closed = "", false, false
	send, done := c.send, c.done
	c.mu.Unlock()

	log.Info().Str("module", "signal").Str("url", c.opts.URL).Msg("ws connected")

	c.wg.Go(func() { c.writePump(ctx, ws, send, done) })
	c.wg.Go(func() { c.readPump(ws, events) })
	return nil
}

func (c *Client) Connected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && !c.closed
}

func (c *Client) SelfID() (domain.ParticipantID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self, c.self != ""
}

func (c *Client) Join(req core.JoinRequest) error {
	return c.emit(EventJoinRoom, joinRoomData{
		RoomID:      req.Room,
		Identity:    req.Identity,
		DisplayName: req.DisplayName,
		PhotoURL:    req.PhotoURL,
	})
}

func (c *Client) SendSignal(room domain.RoomID, from, to domain.ParticipantID, sig domain.Signal) error {
	return c.emit(EventSignal, outSignalData{To: to, From: from, Signal: sig, RoomID: room})
}

func (c *Client) SendChat(room domain.RoomID, sender, text string) error {
	return c.emit(EventChatMessage, outChatData{RoomID: room, UserID: sender, Message: text})
}

func (c *Client) SendMediaState(room domain.RoomID, patch domain.MediaPatch) error {
	return c.emit(EventMediaState, outMediaData{RoomID: room, MediaPatch: patch})
}

func (c *Client) Leave(room domain.RoomID) error {
	return c.emit(EventLeaveRoom, leaveRoomData{RoomID: room})
}

// Close stops both pumps and waits for them. Safe to call repeatedly.
func (c *Client) Close() {
	c.mu.Lock()
	if c.closed || c.conn == nil {
		c.closed = true
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.connected = false
	close(c.done)
	c.mu.Unlock()

	c.wg.Wait()
	log.Info().Str("module", "signal").Msg("ws closed")
}

func (c *Client) emit(event string, v any) error {
	b, err := encode(event, v)
	if err != nil {
		return err
	}
	return c.TrySend(b)
}

// TrySend queues a raw frame without blocking.
func (c *Client) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed || c.send == nil {
		return core.ErrChannelClosed
	}
	select {
	case c.send <- b:
		return nil
	default:
		return core.ErrBackpressure
	}
}
