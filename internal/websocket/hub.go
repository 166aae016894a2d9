package websocket

import (
	"encoding/json"
	"strings"
	"sync"
)

// BalanceUpdate is pushed to every open connection of the account owner
// after a ledger operation commits.
type BalanceUpdate struct {
	Type          string `json:"type"`
	AccountID     string `json:"account_id"`
	AccountNumber string `json:"account_number"`
	Balance       string `json:"balance"`
	TransactionID string `json:"transaction_id,omitempty"`
}

// Hub fans balance updates out to connections keyed by user id.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
	origins []string
}

// NewHub accepts upgrades from the given origins; none, or "*", allows any.
func NewHub(allowedOrigins ...string) *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		origins: allowedOrigins,
	}
}

func (h *Hub) originAllowed(origin string) bool {
	if origin == "" || len(h.origins) == 0 {
		return true
	}
	for _, allowed := range h.origins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// BroadcastBalance never blocks: a client whose buffer is full misses the update.
func (h *Hub) BroadcastBalance(userID string, update BalanceUpdate) {
	if update.Type == "" {
		update.Type = "balance"
	}
	payload, err := json.Marshal(update)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		select {
		case client.send <- payload:
		default:
		}
	}
}

func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}
