package sse

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/booksy/booksy-server/internal/id"
)

const (
	eventBuffer  = 1000
	clientBuffer = 100
)

// Client represents a connected stream.
type Client struct {
	ConnectedAt time.Time
	EventChan   chan Event
	Done        chan struct{}
	ID          string
	UserID      string
	IsAdmin     bool
}

// Manager fans events out to connected clients.
type Manager struct {
	clients map[string]*Client
	events  chan Event
	logger  *slog.Logger
	wg      sync.WaitGroup
	mu      sync.RWMutex

	// shutdownMu guards shutdown and the close of events.
	shutdownMu sync.RWMutex
	shutdown   bool
}

// NewManager creates a new Manager. Call Start to begin delivery.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		clients: make(map[string]*Client),
		events:  make(chan Event, eventBuffer),
		logger:  logger,
	}
}

// Start delivers queued events until ctx is canceled or Shutdown closes the
// queue.
func (m *Manager) Start(ctx context.Context) {
	m.wg.Add(1)
	defer m.wg.Done()

	m.logger.Info("Event stream manager starting")
	for {
		select {
		case event, ok := <-m.events:
			if !ok {
				return
			}
			m.broadcast(event)
		case <-ctx.Done():
			m.logger.Info("Event stream manager stopping")
			m.closeAllClients()
			return
		}
	}
}

// Shutdown stops accepting events, delivers what is queued and disconnects
// every client.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownMu.Lock()
	if m.shutdown {
		m.shutdownMu.Unlock()
		return nil
	}
	m.shutdown = true
	close(m.events)
	m.shutdownMu.Unlock()

	done := make(chan struct{})
	go func() {
		for event := range m.events {
			m.broadcast(event)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.logger.Warn("Event drain timed out, some events were dropped")
	}

	m.wg.Wait()
	m.closeAllClients()
	return nil
}

func (m *Manager) broadcast(event Event) {
	var delivered, dropped, filtered int

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, client := range m.clients {
		if !wants(client, event) {
			filtered++
			continue
		}

		// Slow clients lose events rather than stalling everyone else.
		select {
		case client.EventChan <- event:
			delivered++
		default:
			dropped++
			m.logger.Warn("Dropped event for slow client",
				"client_id", client.ID,
				"event_type", string(event.Type))
		}
	}

	m.logger.Debug("Event broadcast",
		"event_type", string(event.Type),
		slog.Group("stats",
			slog.Int("delivered", delivered),
			slog.Int("filtered", filtered),
			slog.Int("dropped", dropped)))
}

func wants(client *Client, event Event) bool {
	if event.AdminOnly && !client.IsAdmin {
		return false
	}
	return event.UserID == "" || event.UserID == client.UserID
}

// Connect registers a client for userID.
func (m *Manager) Connect(userID string, isAdmin bool) (*Client, error) {
	clientID, err := id.Generate(id.PrefixClient)
	if err != nil {
		return nil, err
	}

	client := &Client{
		ID:          clientID,
		UserID:      userID,
		IsAdmin:     isAdmin,
		EventChan:   make(chan Event, clientBuffer),
		Done:        make(chan struct{}),
		ConnectedAt: time.Now(),
	}

	m.mu.Lock()
	m.clients[client.ID] = client
	total := len(m.clients)
	m.mu.Unlock()

	m.logger.Info("Event stream client connected",
		"client_id", clientID,
		"user_id", userID,
		"total_clients", total)
	return client, nil
}

// Disconnect removes a client and closes its channels.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	client, ok := m.clients[clientID]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.clients, clientID)
	total := len(m.clients)
	m.mu.Unlock()

	close(client.Done)
	close(client.EventChan)

	m.logger.Info("Event stream client disconnected",
		"client_id", clientID,
		"duration", time.Since(client.ConnectedAt),
		"total_clients", total)
}

// Emit queues event for delivery. Events emitted after Shutdown are
// dropped.
func (m *Manager) Emit(event Event) {
	m.shutdownMu.RLock()
	defer m.shutdownMu.RUnlock()
	if m.shutdown {
		return
	}

	select {
	case m.events <- event:
	default:
		m.logger.Error("Event queue full, dropping event", "event_type", string(event.Type))
	}
}

// ClientCount returns the number of connected clients.
func (m *Manager) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Manager) closeAllClients() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, client := range m.clients {
		close(client.Done)
		close(client.EventChan)
	}
	if len(m.clients) > 0 {
		m.logger.Info("All event stream clients disconnected", "count", len(m.clients))
	}
	m.clients = make(map[string]*Client)
}
