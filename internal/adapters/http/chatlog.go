package http

import (
	"slices"
	"sync"

	"github.com/dkeye/VoiceMesh/internal/core"
	"github.com/dkeye/VoiceMesh/internal/domain"
)

const DefaultChatHistory = 100

// ChatLog keeps the most recent chat messages in memory for the API.
type ChatLog struct {
	core.NopObserver

	mu    sync.RWMutex
	limit int
	msgs  []domain.ChatMessage
}

func NewChatLog(limit int) *ChatLog {
	if limit <= 0 {
		limit = DefaultChatHistory
	}
	return &ChatLog{limit: limit}
}

func (l *ChatLog) ChatReceived(msg domain.ChatMessage) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.msgs = append(l.msgs, msg)
	if over := len(l.msgs) - l.limit; over > 0 {
		l.msgs = slices.Delete(l.msgs, 0, over)
	}
}

func (l *ChatLog) Messages() []domain.ChatMessage {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return slices.Clone(l.msgs)
}
