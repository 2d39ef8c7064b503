package websocket

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/barrim_matching/models"
)

// Define notification types
const (
	NotificationTypeConnected     = "connected"
	NotificationTypeAuthResponse  = "auth_response"
	NotificationTypeMatchingBonus = models.NotificationTypeMatchingBonus
)

const writeWait = 10 * time.Second

// ErrNotConnected is returned when the user has no open connection.
var ErrNotConnected = errors.New("user not connected")

// Notification represents a message sent over WebSocket
type Notification struct {
	Type         string      `json:"type"`
	Message      string      `json:"message"`
	Data         interface{} `json:"data,omitempty"`
	UserID       string      `json:"userID,omitempty"`
	RequiresAuth bool        `json:"requiresAuth,omitempty"`
}

// Client represents a connected WebSocket client
type Client struct {
	UserID        primitive.ObjectID
	Conn          *websocket.Conn
	Authenticated bool

	writeMu sync.Mutex
}

// Send writes one notification. Writes on a connection are serialized.
func (c *Client) Send(n Notification) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteJSON(n)
}

// Hub tracks open connections per member. A member may be connected from
// several devices.
type Hub struct {
	clients                map[primitive.ObjectID]map[*Client]struct{}
	unauthenticatedClients map[*Client]struct{}
	register               chan *Client
	unregister             chan *Client
	done                   chan struct{}
	mu                     sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:                make(map[primitive.ObjectID]map[*Client]struct{}),
		unauthenticatedClients: make(map[*Client]struct{}),
		register:               make(chan *Client),
		unregister:             make(chan *Client),
		done:                   make(chan struct{}),
	}
}

// Run processes registrations until ctx is done, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for _, set := range h.clients {
				for client := range set {
					client.Conn.Close()
				}
			}
			for client := range h.unauthenticatedClients {
				client.Conn.Close()
			}
			h.clients = make(map[primitive.ObjectID]map[*Client]struct{})
			h.unauthenticatedClients = make(map[*Client]struct{})
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			if client.Authenticated && !client.UserID.IsZero() {
				h.addLocked(client)
			} else {
				h.unauthenticatedClients[client] = struct{}{}
			}
			h.mu.Unlock()
		case client := <-h.unregister:
			h.mu.Lock()
			h.removeLocked(client)
			delete(h.unauthenticatedClients, client)
			client.Conn.Close()
			h.mu.Unlock()
		}
	}
}

// Register hands a new connection to the hub. It fails once the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister drops a connection and closes it.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) addLocked(client *Client) {
	set, ok := h.clients[client.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		h.clients[client.UserID] = set
	}
	set[client] = struct{}{}
}

func (h *Hub) removeLocked(client *Client) {
	set, ok := h.clients[client.UserID]
	if !ok {
		return
	}
	delete(set, client)
	if len(set) == 0 {
		delete(h.clients, client.UserID)
	}
}

// AuthenticateClient moves a client from unauthenticated to authenticated state.
// A client that authenticates again leaves its previous user's set.
func (h *Hub) AuthenticateClient(client *Client, userID primitive.ObjectID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.Authenticated {
		h.removeLocked(client)
	}
	delete(h.unauthenticatedClients, client)
	client.Authenticated = true
	client.UserID = userID
	h.addLocked(client)
}

// SendToUser sends a message to every connection of a user.
func (h *Hub) SendToUser(userID primitive.ObjectID, notification Notification) error {
	h.mu.RLock()
	targets := make([]*Client, 0, len(h.clients[userID]))
	for client := range h.clients[userID] {
		targets = append(targets, client)
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return ErrNotConnected
	}

	var errs []error
	for _, client := range targets {
		if err := client.Send(notification); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsConnected reports whether the user has an authenticated connection.
func (h *Hub) IsConnected(userID primitive.ObjectID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

// NotifyMatchingBonus pushes a posted bonus to the owner when connected.
func (h *Hub) NotifyMatchingBonus(_ context.Context, record *models.MatchingBonusRecord, detailsCount int) error {
	err := h.SendToUser(record.OwnerID, Notification{
		Type:    NotificationTypeMatchingBonus,
		Message: "You earned a matching bonus",
		Data: map[string]interface{}{
			"matchingRecordId": record.ID.Hex(),
			"amount":           record.Amount,
			"status":           record.Status,
			"cycleStart":       record.CycleStart,
			"cycleEnd":         record.CycleEnd,
			"detailsCount":     detailsCount,
		},
		UserID: record.OwnerID.Hex(),
	})
	if errors.Is(err, ErrNotConnected) {
		return nil
	}
	return err
}
