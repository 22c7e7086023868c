package http

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/aretw0/proofline/internal/logging"
	"github.com/aretw0/proofline/pkg/domain"
)

// Message is one state change delivered to SSE subscribers.
type Message struct {
	Event domain.EventType
	Diff  *domain.StateDiff
}

// StreamManager handles active SSE connections.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan<- Message]struct{} // SessionID -> Set of Channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager. A nil logger discards output.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[string]map[chan<- Message]struct{}),
		logger:      logger,
	}
}

// Hooks returns lifecycle hooks that broadcast the diff of every transition.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnTransition: func(_ context.Context, e *domain.TransitionEvent) {
			if diff := domain.Diff(e.Previous, e.State); diff != nil {
				sm.Broadcast(e.SessionID, Message{Event: e.Type, Diff: diff})
			}
		},
	}
}

// Subscribe registers a buffered channel for sessionID. The returned function
// unsubscribes and closes the channel.
func (sm *StreamManager) Subscribe(sessionID string) (<-chan Message, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan Message, 16)
	if _, ok := sm.subscribers[sessionID]; !ok {
		sm.subscribers[sessionID] = make(map[chan<- Message]struct{})
	}
	sm.subscribers[sessionID][ch] = struct{}{}

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			sm.mu.Lock()
			defer sm.mu.Unlock()
			if subs, ok := sm.subscribers[sessionID]; ok {
				delete(subs, ch)
				close(ch)
				if len(subs) == 0 {
					delete(sm.subscribers, sessionID)
				}
			}
		})
	}
}

// Subscribers returns the number of open streams for sessionID.
func (sm *StreamManager) Subscribers(sessionID string) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[sessionID])
}

// Broadcast delivers msg to every subscriber of sessionID without blocking.
func (sm *StreamManager) Broadcast(sessionID string, msg Message) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[sessionID] {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "session_id", sessionID)
		}
	}
}

// watchFilter keeps a message when any watched field changed.
// An empty filter keeps everything.
type watchFilter []string

func parseWatch(raw string) watchFilter {
	var f watchFilter
	for _, field := range strings.Split(raw, ",") {
		if field = strings.TrimSpace(field); field != "" {
			f = append(f, field)
		}
	}
	return f
}

func (f watchFilter) keep(d *domain.StateDiff) bool {
	if len(f) == 0 {
		return true
	}
	for _, field := range f {
		switch field {
		case "text":
			if d.InputText != nil {
				return true
			}
		case "status":
			if d.Status != nil {
				return true
			}
		case "error":
			if d.Error != nil {
				return true
			}
		case "result":
			if d.Result != nil || d.ResultCleared {
				return true
			}
		case "issues":
			if d.Result != nil || d.ResultCleared || len(d.RemovedIssues) > 0 {
				return true
			}
		}
	}
	return false
}
