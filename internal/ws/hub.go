// Package ws mantém os clientes conectados ao feed de eventos dos
// prestadores e repassa para todos cada mensagem consumida da fila.
package ws

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

type Client struct {
	ID   string
	Send chan []byte
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // id -> client

	register  chan *Client
	unreg     chan *Client
	broadcast chan []byte

	log     *slog.Logger
	stop    chan struct{}
	stopped chan struct{}

	nextID atomic.Uint64
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients:   make(map[string]*Client),
		register:  make(chan *Client),
		unreg:     make(chan *Client),
		broadcast: make(chan []byte, 1024),
		log:       log.With("cmp", "ws.hub"),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

func (h *Hub) newID() string {
	return fmt.Sprintf("c%d", h.nextID.Add(1))
}

func (h *Hub) Run() {
	h.log.Info("hub_run_start")
	defer close(h.stopped)

	for {
		select {
		case c := <-h.register:
			if c.ID == "" {
				c.ID = h.newID()
			}
			h.mu.Lock()
			h.clients[c.ID] = c
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("client_registered", "id", c.ID, "total", total)

		case c := <-h.unreg:
			h.mu.Lock()
			if c != nil && c.ID != "" {
				if _, ok := h.clients[c.ID]; ok {
					delete(h.clients, c.ID)
					close(c.Send)
				}
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Info("client_unregistered", "id", c.ID, "total", total)

		case msg := <-h.broadcast:
			h.deliverAll(msg)

		case <-h.stop:
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.Send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.log.Info("hub_run_stop")
			return
		}
	}
}

// deliverAll entrega sem bloquear o hub: cliente com o buffer cheio é
// removido na hora.
func (h *Hub) deliverAll(msg []byte) {
	var slow []*Client

	h.mu.RLock()
	for _, c := range h.clients {
		select {
		case c.Send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	if len(slow) == 0 {
		return
	}
	h.mu.Lock()
	for _, c := range slow {
		if _, ok := h.clients[c.ID]; ok {
			delete(h.clients, c.ID)
			close(c.Send)
			h.log.Warn("client_drop_slow", "id", c.ID)
		}
	}
	h.mu.Unlock()
}

func (h *Hub) Stop() {
	close(h.stop)
	<-h.stopped
}

func (h *Hub) Register(c *Client)   { h.register <- c }
func (h *Hub) Unregister(c *Client) { h.unreg <- c }
func (h *Hub) Broadcast(b []byte)   { h.broadcast <- b }
