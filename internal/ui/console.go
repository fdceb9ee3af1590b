package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
)

// Console prints room activity as styled lines. It is an Observer and is
// only called from the orchestrator loop.
type Console struct {
	out      io.Writer
	room     domain.RoomID
	members  int
	speaking bool
}

func NewConsole(out io.Writer, room domain.RoomID) *Console {
	return &Console{out: out, room: room}
}

func (c *Console) line(s string) { fmt.Fprintln(c.out, s) }

// Banner renders the room header shown once on start.
func (c *Console) Banner(displayName, signalURL string) {
	body := strings.Join([]string{
		TitleStyle.Render("room " + string(c.room)),
		MutedStyle.Render("as " + displayName),
		MutedStyle.Render(signalURL),
	}, "\n")
	c.line(BoxStyle.Render(body))
}

func (c *Console) MembershipChanged(ids []domain.ParticipantID) {
	if len(ids) == c.members {
		return
	}
	c.members = len(ids)
	c.line(MutedStyle.Render(fmt.Sprintf("%d/%d in room", len(ids), domain.MaxParticipants)))
}

func (c *Console) WaitingChanged(waiting bool) {
	if waiting {
		c.line(WarningStyle.Render("waiting for others to join..."))
	}
}

func (c *Console) StreamAdded(id domain.ParticipantID, s core.RemoteStream) {
	kinds := make([]string, 0, 2)
	for _, k := range s.Kinds() {
		kinds = append(kinds, string(k))
	}
	c.line(SuccessStyle.Render(fmt.Sprintf("+ %s streaming %s", id, strings.Join(kinds, "+"))))
}

func (c *Console) StreamRemoved(id domain.ParticipantID) {
	c.line(MutedStyle.Render(fmt.Sprintf("- %s left", id)))
}

func (c *Console) MediaStateChanged(id domain.ParticipantID, st domain.MediaState) {
	c.line(MutedStyle.Render(fmt.Sprintf("%s mic:%s cam:%s", id, onOff(st.AudioEnabled), onOff(st.VideoEnabled))))
}

func (c *Console) ChatReceived(msg domain.ChatMessage) {
	c.line(ChatNameStyle.Render(msg.Sender+":") + " " + msg.Text)
}

func (c *Console) SpeakingChanged(speaking bool) {
	if speaking == c.speaking {
		return
	}
	c.speaking = speaking
	if speaking {
		c.line(SuccessStyle.Render("speaking"))
	}
}

func (c *Console) RoomFull() {
	c.line(ErrorStyle.Render(fmt.Sprintf("room %s is full (max %d)", c.room, domain.MaxParticipants)))
}

func (c *Console) PeerError(id domain.ParticipantID, err error) {
	c.line(WarningStyle.Render(fmt.Sprintf("%s: %v", id, err)))
}

func (c *Console) SessionError(err error) {
	c.line(ErrorStyle.Render(err.Error()))
}

func (c *Console) SessionEnded() {
	c.line(MutedStyle.Render("left room " + string(c.room)))
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
