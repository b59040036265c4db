package stubserver

import (
	"context"
	"encoding/json"

	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/contrib/websocket"
)

// Client is one authorized stream connection.
type Client struct {
	ID       string
	UserID   int64
	RentalID int64
	Conn     *websocket.Conn
}

type broadcastMessage struct {
	rentalID int64
	payload  any
}

// Hub fans chat messages out to the connections of each rental.
// All writes to registered connections happen on the Run goroutine.
type Hub struct {
	clients    map[string]*Client
	rooms      map[int64]map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastMessage
	query      chan func()
	done       chan struct{}
	logger     types.Logger
}

// NewHub creates a Hub.
func NewHub(logger types.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[int64]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastMessage, 256),
		query:      make(chan func()),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run processes registrations and broadcasts until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("Hub shutting down", "clients", len(h.clients))
			h.closeAllClients()
			close(h.done)
			return
		case client := <-h.register:
			h.handleRegister(client)
		case client := <-h.unregister:
			h.handleUnregister(client)
		case msg := <-h.broadcast:
			h.handleBroadcast(msg)
		case fn := <-h.query:
			fn()
		}
	}
}

// Wait blocks until the hub has stopped.
func (h *Hub) Wait() {
	<-h.done
}

// Register adds a client to its rental's room. It returns false once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast sends payload as JSON to every client in the rental's room.
func (h *Hub) Broadcast(rentalID int64, payload any) {
	select {
	case h.broadcast <- broadcastMessage{rentalID: rentalID, payload: payload}:
	case <-h.done:
	}
}

// Stats returns the number of clients and of rooms with at least one client.
func (h *Hub) Stats() (clients, rooms int) {
	result := make(chan [2]int, 1)
	select {
	case h.query <- func() { result <- [2]int{len(h.clients), len(h.rooms)} }:
		r := <-result
		return r[0], r[1]
	case <-h.done:
		return 0, 0
	}
}

func (h *Hub) closeAllClients() {
	for _, client := range h.clients {
		_ = client.Conn.Close()
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[int64]map[string]*Client)
}

func (h *Hub) handleRegister(client *Client) {
	h.clients[client.ID] = client
	if h.rooms[client.RentalID] == nil {
		h.rooms[client.RentalID] = make(map[string]*Client)
	}
	h.rooms[client.RentalID][client.ID] = client
	h.logger.Debug("Client registered", "clientID", client.ID, "userID", client.UserID,
		"rentalID", client.RentalID, "roomSize", len(h.rooms[client.RentalID]))
}

func (h *Hub) handleUnregister(client *Client) {
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	delete(h.clients, client.ID)
	if room := h.rooms[client.RentalID]; room != nil {
		delete(room, client.ID)
		if len(room) == 0 {
			delete(h.rooms, client.RentalID)
		}
	}
	h.logger.Debug("Client unregistered", "clientID", client.ID, "rentalID", client.RentalID)
}

func (h *Hub) handleBroadcast(msg broadcastMessage) {
	data, err := json.Marshal(msg.payload)
	if err != nil {
		h.logger.Error("Failed to marshal broadcast message", "error", err)
		return
	}
	for _, client := range h.rooms[msg.rentalID] {
		if err := client.Conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.logger.Warn("Failed to send to client", "clientID", client.ID, "error", err)
		}
	}
}
