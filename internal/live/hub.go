package live

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/frahmantamala/meter-fleet/internal/auth"
	meterDatamodel "github.com/frahmantamala/meter-fleet/internal/core/datamodel/meter"
	"github.com/frahmantamala/meter-fleet/internal/core/events"
	"github.com/frahmantamala/meter-fleet/internal/transport"
	"github.com/go-chi/chi"
	"github.com/gorilla/websocket"
)

const (
	sendBuffer = 32
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// MeterGate resolves a device id and checks telemetry visibility.
type MeterGate interface {
	AuthorizeMeter(ctx context.Context, p *auth.Principal, deviceID string) (*meterDatamodel.Meter, error)
}

type client struct {
	conn    *websocket.Conn
	meterID int64
	send    chan interface{}
}

// Hub fans telemetry.recorded events out to websocket subscribers of the
// same meter. Slow subscribers lose messages instead of stalling the hub.
type Hub struct {
	*transport.BaseHandler
	gate     MeterGate
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*client]struct{}
}

func NewHub(gate MeterGate, allowedOrigins []string, lg *slog.Logger) *Hub {
	h := &Hub{
		BaseHandler: transport.NewBaseHandler(lg),
		gate:        gate,
		clients:     make(map[*client]struct{}),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || len(allowed) == 0 {
			return true
		}
		for _, a := range allowed {
			if a == "*" || a == origin {
				return true
			}
		}
		return false
	}
}

// ServeLive upgrades GET /api/meters/{device_id}/live after the telemetry check.
func (h *Hub) ServeLive(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	m, err := h.gate.AuthorizeMeter(r.Context(), p, chi.URLParam(r, "device_id"))
	if err != nil {
		h.HandleError(w, r, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// the upgrader has already answered the client
		h.Logger.Warn("websocket upgrade failed", "device_id", m.DeviceID, "error", err)
		return
	}

	c := &client{conn: conn, meterID: m.ID, send: make(chan interface{}, sendBuffer)}
	h.register(c)
	h.Logger.Info("live subscriber joined", "device_id", m.DeviceID, "subscribers", h.Subscribers(m.ID))

	go h.writePump(c)
	h.readPump(c)
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

// readPump only watches for the peer going away.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) HandleTelemetryRecorded(_ context.Context, event events.Event) error {
	recorded, ok := event.(*events.TelemetryRecordedEvent)
	if !ok {
		return fmt.Errorf("expected TelemetryRecordedEvent, got %T", event)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.meterID != recorded.MeterID {
			continue
		}
		select {
		case c.send <- recorded.Reading:
		default:
			h.Logger.Warn("live subscriber too slow, reading dropped", "device_id", recorded.DeviceID)
		}
	}
	return nil
}

// Subscribers counts the open connections watching meterID.
func (h *Hub) Subscribers(meterID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for c := range h.clients {
		if c.meterID == meterID {
			n++
		}
	}
	return n
}

// Close disconnects every subscriber.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *Hub) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypeTelemetryRecorded, h.HandleTelemetryRecorded)

	h.Logger.Info("live event handlers registered",
		"handlers", []string{events.EventTypeTelemetryRecorded})
}
