package events

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/RubensDuarte2025/Julius-rmd/internal/models"

	"github.com/google/uuid"
	"github.com/igm/sockjs-go/sockjs"
)

// Client is one connected kitchen display. An empty Kind receives every event.
type Client struct {
	ID   string
	Send chan []byte
	Kind models.OrderKind
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

type subscribeMessage struct {
	Action string `json:"action"`
	Kind   string `json:"tipo_origem"`
}

func NewHub() *Hub {
	return &Hub{clients: make(map[string]*Client)}
}

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[client.ID] = client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) Subscribe(client *Client, kind models.OrderKind) {
	h.mu.Lock()
	defer h.mu.Unlock()
	client.Kind = kind
}

// Publish broadcasts the event to matching displays. Slow displays drop
// messages instead of blocking the caller.
func (h *Hub) Publish(_ context.Context, event models.KitchenEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		if client.Kind != "" && client.Kind != event.OriginKind {
			continue
		}
		select {
		case client.Send <- payload:
		default:
			log.Printf("drop kitchen event for client %s", client.ID)
		}
	}
	return nil
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handler serves the SockJS endpoint under prefix.
func (h *Hub) Handler(prefix string) http.Handler {
	return sockjs.NewHandler(prefix, sockjs.DefaultOptions, h.serveSession)
}

func (h *Hub) serveSession(session sockjs.Session) {
	client := &Client{ID: uuid.NewString(), Send: make(chan []byte, 16)}
	h.Register(client)
	defer h.Unregister(client)

	go func() {
		for msg := range client.Send {
			_ = session.Send(string(msg))
		}
	}()

	for {
		msg, err := session.Recv()
		if err != nil {
			return
		}
		kind, ok := parseSubscribe([]byte(msg))
		if ok {
			h.Subscribe(client, kind)
		}
	}
}

func parseSubscribe(data []byte) (models.OrderKind, bool) {
	var msg subscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return "", false
	}
	switch msg.Action {
	case "unsubscribe":
		return "", true
	case "subscribe":
		if msg.Kind == "" {
			return "", true
		}
		kind, err := models.ParseOrderKind(msg.Kind)
		if err != nil {
			return "", false
		}
		return kind, true
	default:
		return "", false
	}
}
