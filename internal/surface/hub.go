// Package surface pushes core-to-browser callbacks for a draft over
// Server-Sent Events.
package surface

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/memories/internal/draft"
)

var surfaceLogger zerolog.Logger

func SetLogger(l zerolog.Logger) {
	surfaceLogger = l
}

const (
	EventConnected     = "connected"
	EventDiscardPrompt = "discard-prompt"
	EventNavigate      = "navigate"
	EventError         = "error"
)

type Event struct {
	Name string
	Data string
}

type Client struct {
	Msg     chan Event
	DraftID draft.ID
}

// NewClient returns a client with a small buffer so a slow reader does not
// lose the prompt that immediately follows a navigation event.
func NewClient(id draft.ID) *Client {
	return &Client{Msg: make(chan Event, 8), DraftID: id}
}

type Hub struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[*Client]bool),
	}
}

func (h *Hub) Add(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client] = true
}

func (h *Hub) Delete(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[client] {
		delete(h.clients, client)
		close(client.Msg)
	}
}

// Broadcast sends ev to every stream open for the draft. A full client drops
// the event rather than block the caller.
func (h *Hub) Broadcast(id draft.ID, ev Event) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for client := range h.clients {
		if client.DraftID != id {
			continue
		}
		select {
		case client.Msg <- ev:
			sent++
		default:
			surfaceLogger.Warn().Str("draft_id", string(id)).Str("event", ev.Name).Msg("SSE client full, dropping event")
		}
	}
	return sent
}

func (h *Hub) connected(id draft.ID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for client := range h.clients {
		if client.DraftID == id {
			n++
		}
	}
	return n
}
