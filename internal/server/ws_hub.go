package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/islandsafe/patrolplan/internal/events"
	"github.com/islandsafe/patrolplan/internal/metrics"
	"github.com/islandsafe/patrolplan/internal/modules/intelligence"
)

const (
	clientBuffer  = 64
	writeTimeout  = 5 * time.Second
	actionTimeout = 10 * time.Second
)

// IntelligenceCreator stores reports submitted over the socket.
type IntelligenceCreator interface {
	Create(ctx context.Context, rep intelligence.Report) (*intelligence.ReportResult, error)
}

// Hub fans bus events out to WebSocket clients. Region-scoped events go
// only to clients subscribed to that region; everything else goes to every
// client.
type Hub struct {
	mu          sync.RWMutex
	clients     map[*wsClient]struct{}
	closed      bool
	unsubscribe func()
	reports     IntelligenceCreator
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

type wsClient struct {
	conn    *websocket.Conn
	send    chan []byte
	cancel  context.CancelFunc
	mu      sync.RWMutex
	regions map[int]struct{}
}

// clientMessage is what clients send. Data carries the report for
// create_intelligence.
type clientMessage struct {
	Action   string          `json:"action"`
	ParishID int             `json:"parish_id"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// NewHub creates a hub subscribed to every event type on bus. reports may
// be nil, in which case create_intelligence is rejected.
func NewHub(bus *events.Bus, reports IntelligenceCreator, m *metrics.Metrics, log zerolog.Logger) *Hub {
	h := &Hub{
		clients: make(map[*wsClient]struct{}),
		reports: reports,
		metrics: m,
		log:     log.With().Str("component", "ws_hub").Logger(),
	}
	h.unsubscribe = bus.SubscribeMany(events.AllEventTypes(), h.dispatch)
	return h
}

// ServeHTTP handles GET /api/ws.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Deadlines set by the server survive the hijack.
	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket handshake failed")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &wsClient{
		conn:    conn,
		send:    make(chan []byte, clientBuffer),
		cancel:  cancel,
		regions: make(map[int]struct{}),
	}

	if !h.add(c) {
		cancel()
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.remove(c)

	go h.writeLoop(ctx, c)
	h.readLoop(ctx, c)
}

func (h *Hub) add(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.metrics.StreamClients("ws", 1)
	h.log.Info().Int("clients", len(h.clients)).Msg("WebSocket client connected")
	return true
}

func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()

	if !ok {
		return
	}
	c.cancel()
	c.conn.Close(websocket.StatusNormalClosure, "")
	h.metrics.StreamClients("ws", -1)
	h.log.Info().Msg("WebSocket client disconnected")
}

func (h *Hub) readLoop(ctx context.Context, c *wsClient) {
	for {
		var msg clientMessage
		// wsjson closes the connection itself on malformed JSON.
		if err := wsjson.Read(ctx, c.conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				h.log.Debug().Err(err).Msg("WebSocket read failed")
			}
			return
		}
		h.handleMessage(ctx, c, msg)
	}
}

func (h *Hub) handleMessage(ctx context.Context, c *wsClient, msg clientMessage) {
	switch msg.Action {
	case "subscribe", "unsubscribe":
		if msg.ParishID <= 0 {
			h.replyError(c, "parish_id must be positive")
			return
		}
		c.mu.Lock()
		if msg.Action == "subscribe" {
			c.regions[msg.ParishID] = struct{}{}
		} else {
			delete(c.regions, msg.ParishID)
		}
		c.mu.Unlock()
		h.reply(c, map[string]any{"event": msg.Action + "d", "parish_id": msg.ParishID})
	case "create_intelligence":
		h.createIntelligence(ctx, c, msg.Data)
	default:
		h.replyError(c, "unknown action "+msg.Action)
	}
}

// createIntelligence stores a report. Subscribers learn about it through
// the bus events the service emits; the sender also gets a direct reply.
func (h *Hub) createIntelligence(ctx context.Context, c *wsClient, data json.RawMessage) {
	if h.reports == nil {
		h.replyError(c, "intelligence reporting is not available")
		return
	}
	if len(data) == 0 {
		h.replyError(c, "data is required")
		return
	}
	var rep intelligence.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		h.replyError(c, "invalid data: "+err.Error())
		return
	}

	actx, cancel := context.WithTimeout(ctx, actionTimeout)
	defer cancel()
	res, err := h.reports.Create(actx, rep)
	if err != nil {
		h.log.Debug().Err(err).Msg("WebSocket intelligence report rejected")
		h.replyError(c, err.Error())
		return
	}
	h.reply(c, map[string]any{"event": "intelligence_created", "data": res})
}

func (h *Hub) replyError(c *wsClient, message string) {
	h.reply(c, map[string]any{"event": "error", "message": message})
}

func (h *Hub) writeLoop(ctx context.Context, c *wsClient) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("WebSocket write failed")
				c.cancel()
				return
			}
		}
	}
}

func (h *Hub) reply(c *wsClient, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to marshal reply")
		return
	}
	h.enqueue(c, data)
}

func (h *Hub) enqueue(c *wsClient, data []byte) {
	select {
	case c.send <- data:
	default:
		h.log.Warn().Msg("WebSocket client buffer full, dropping message")
	}
}

func (c *wsClient) subscribed(regionID int) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.regions[regionID]
	return ok
}

// dispatch runs on the publisher's goroutine, so it only enqueues.
func (h *Hub) dispatch(event *events.Event) {
	data, err := json.Marshal(map[string]any{
		"event":     strings.ToLower(string(event.Type)),
		"module":    event.Module,
		"timestamp": event.Timestamp.Format(time.RFC3339),
		"data":      event.Data,
	})
	if err != nil {
		h.log.Error().Err(err).Str("event_type", string(event.Type)).Msg("Failed to marshal event")
		return
	}

	regionID, scoped := 0, false
	if event.Type.RegionScoped() {
		regionID, scoped = event.RegionID()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if scoped && !c.subscribed(regionID) {
			continue
		}
		h.enqueue(c, data)
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close detaches the hub from the bus and disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make([]*wsClient, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	h.unsubscribe()
	for _, c := range clients {
		c.cancel()
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
