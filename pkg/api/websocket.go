package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/quantfold/orderpilot/pkg/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins (CORS handled by main server)
		return true
	},
}

// wsClient bridges one WebSocket connection to broadcaster subscriptions.
// Each subscribed order gets a forwarding goroutine pumping lifecycle
// events into the shared send channel; disconnecting unsubscribes all.
type wsClient struct {
	conn *websocket.Conn
	bc   *pipeline.Broadcaster
	send chan []byte
	id   string
	log  *zap.SugaredLogger

	mu   sync.Mutex
	subs map[string]*pipeline.Subscription
	done chan struct{}
}

// subscribe attaches the client to an order's event stream.
func (c *wsClient) subscribe(orderID string) {
	c.mu.Lock()
	if _, ok := c.subs[orderID]; ok {
		c.mu.Unlock()
		return
	}
	sub := c.bc.Subscribe(orderID)
	c.subs[orderID] = sub
	c.mu.Unlock()
	c.log.Debugw("ws_subscribed", "client", c.id, "order_id", orderID)

	go func() {
		for ev := range sub.C {
			data, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			select {
			case c.send <- data:
			case <-c.done:
				return
			}
		}
	}()
}

func (c *wsClient) unsubscribe(orderID string) {
	c.mu.Lock()
	sub, ok := c.subs[orderID]
	if ok {
		delete(c.subs, orderID)
	}
	c.mu.Unlock()
	if ok {
		c.bc.Unsubscribe(orderID, sub)
		c.log.Debugw("ws_unsubscribed", "client", c.id, "order_id", orderID)
	}
}

func (c *wsClient) unsubscribeAll() {
	c.mu.Lock()
	subs := c.subs
	c.subs = make(map[string]*pipeline.Subscription)
	c.mu.Unlock()
	for orderID, sub := range subs {
		c.bc.Unsubscribe(orderID, sub)
	}
}

// readPump consumes subscribe/unsubscribe requests until the peer goes away.
func (c *wsClient) readPump() {
	defer func() {
		close(c.done)
		c.unsubscribeAll()
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debugw("ws_read_error", "client", c.id, "err", err)
			}
			return
		}

		var req WSSubscribeRequest
		if err := json.Unmarshal(message, &req); err != nil {
			c.log.Debugw("ws_invalid_message", "client", c.id, "err", err)
			continue
		}

		switch req.Op {
		case "subscribe":
			for _, id := range req.OrderIDs {
				c.subscribe(id)
			}
		case "unsubscribe":
			for _, id := range req.OrderIDs {
				c.unsubscribe(id)
			}
		default:
			c.log.Debugw("ws_unknown_op", "client", c.id, "op", req.Op)
		}
	}
}

// writePump flushes queued events to the connection and keeps it alive
// with pings.
func (c *wsClient) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			// Add queued messages to the current write.
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

// handleWebSocket upgrades the connection and starts the client pumps.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("ws_upgrade_error", "err", err)
		return
	}

	client := &wsClient{
		conn: conn,
		bc:   s.bc,
		send: make(chan []byte, 256),
		id:   conn.RemoteAddr().String(),
		log:  s.log,
		subs: make(map[string]*pipeline.Subscription),
		done: make(chan struct{}),
	}
	s.log.Debugw("ws_client_connected", "client", client.id)

	go client.writePump()
	go client.readPump()
}
