package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	defaultHeartbeat = 30 * time.Second
	writeTimeout     = 60 * time.Second
)

// Identify resolves the authenticated caller of a stream request.
type Identify func(r *http.Request) (userID string, isAdmin bool, ok bool)

// Handler serves the event stream.
type Handler struct {
	manager   *Manager
	identify  Identify
	logger    *slog.Logger
	heartbeat time.Duration
}

// NewHandler creates a Handler. Requests identify rejects get a 401.
func NewHandler(manager *Manager, identify Identify, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		manager:   manager,
		identify:  identify,
		logger:    logger,
		heartbeat: defaultHeartbeat,
	}
}

// ServeHTTP streams events until the client goes away or the manager
// shuts down.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, isAdmin, ok := h.identify(r)
	if !ok {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return
	}
	if r.Context().Err() != nil {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	rc := http.NewResponseController(w)
	if err := rc.Flush(); err != nil {
		h.logger.Error("Failed to flush stream headers", "error", err)
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	client, err := h.manager.Connect(userID, isAdmin)
	if err != nil {
		h.logger.Error("Failed to register stream client", "error", err)
		http.Error(w, "Failed to establish connection", http.StatusInternalServerError)
		return
	}
	defer h.manager.Disconnect(client.ID)

	log := h.logger.With("client_id", client.ID)

	if err := h.send(w, rc, "connected", map[string]string{"client_id": client.ID}); err != nil {
		log.Debug("Client went away before the first event", "error", err)
		return
	}

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case event, ok := <-client.EventChan:
			if !ok {
				return
			}
			if err := h.send(w, rc, string(event.Type), event); err != nil {
				log.Debug("Client disconnected during send", "error", err)
				return
			}
		case <-ticker.C:
			hb := NewHeartbeatEvent()
			if err := h.send(w, rc, string(hb.Type), hb); err != nil {
				log.Debug("Client disconnected during heartbeat", "error", err)
				return
			}
		case <-client.Done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// send writes one event in text/event-stream framing and flushes it.
func (h *Handler) send(w http.ResponseWriter, rc *http.ResponseController, eventType string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", eventType, payload); err != nil {
		return err
	}
	if err := rc.Flush(); err != nil {
		return err
	}
	// Not every ResponseWriter supports deadlines.
	_ = rc.SetWriteDeadline(time.Now().Add(writeTimeout))
	return nil
}
