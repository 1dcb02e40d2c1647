// Package feed fans out progress updates to live subscribers of a user
package feed

import (
	"log/slog"
	"sync"

	"github.com/Chandra-cc/personalized-learning/internal/metrics"
	"github.com/Chandra-cc/personalized-learning/internal/models"
)

const bufferSize = 16

// Update is a single progress change pushed to subscribers
type Update struct {
	UserID   string                    `json:"user_id"`
	Record   models.StepProgressRecord `json:"record"`
	Progress models.ProgressMap        `json:"progress"`
}

// Hub is an in-process per-user publish/subscribe hub. Slow subscribers
// miss updates instead of blocking publishers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan Update]struct{}
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[chan Update]struct{})}
}

// Subscribe registers for updates of userID. The returned cancel func must
// be called exactly once; it closes the channel.
func (h *Hub) Subscribe(userID string) (<-chan Update, func()) {
	ch := make(chan Update, bufferSize)

	h.mu.Lock()
	if h.subs[userID] == nil {
		h.subs[userID] = make(map[chan Update]struct{})
	}
	h.subs[userID][ch] = struct{}{}
	h.mu.Unlock()
	metrics.FeedSubscribers.Inc()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs[userID], ch)
			if len(h.subs[userID]) == 0 {
				delete(h.subs, userID)
			}
			h.mu.Unlock()
			close(ch)
			metrics.FeedSubscribers.Dec()
		})
	}
	return ch, cancel
}

// Publish delivers u to every subscriber of u.UserID
func (h *Hub) Publish(u Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for ch := range h.subs[u.UserID] {
		select {
		case ch <- u:
		default:
			slog.Debug("dropping progress update for slow subscriber",
				"user_id", u.UserID,
				"step_index", u.Record.StepIndex,
			)
		}
	}
}

// Subscribers returns the number of open subscriptions for userID
func (h *Hub) Subscribers(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[userID])
}
