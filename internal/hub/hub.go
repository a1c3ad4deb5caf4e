// Package hub fans engine responses out to websocket clients.
package hub

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"github.com/user/n8nops/internal/engine"
)

type Hub struct {
	clients       map[string]*Client
	register      chan *clientRegistration
	unregister    chan *Client
	broadcast     chan []byte
	onInstruction func(instruction string, callerContext map[string]any)
	token         string
	taskTypes     int
	mu            sync.RWMutex
	ctxWrap       *ctxWrapper
	running       atomic.Bool
}

type ctxWrapper struct {
	ctx context.Context
}

type clientRegistration struct {
	client *Client
	hello  []byte
}

// New builds a hub. taskTypes is advertised in the hello message sent to
// each client on connect.
func New(token string, taskTypes int) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *clientRegistration, 16),
		unregister: make(chan *Client, 16),
		broadcast:  make(chan []byte, 256),
		token:      token,
		taskTypes:  taskTypes,
		ctxWrap:    &ctxWrapper{ctx: context.Background()},
	}
}

// SetOnInstruction registers the callback invoked when a client submits an
// instruction over the socket.
func (h *Hub) SetOnInstruction(fn func(instruction string, callerContext map[string]any)) {
	h.onInstruction = fn
}

func (h *Hub) getContext() context.Context {
	if h.ctxWrap != nil {
		return h.ctxWrap.ctx
	}
	return context.Background()
}

func (h *Hub) Run(ctx context.Context) {
	h.ctxWrap = &ctxWrapper{ctx: ctx}
	h.running.Store(true)
	defer h.running.Store(false)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for _, c := range h.clients {
				close(c.send)
			}
			h.clients = make(map[string]*Client)
			h.mu.Unlock()
			return

		case reg := <-h.register:
			h.mu.Lock()
			h.clients[reg.client.id] = reg.client
			h.mu.Unlock()
			if reg.hello != nil {
				select {
				case reg.client.send <- reg.hello:
				default:
				}
			}
			go reg.client.writePump(h.getContext())
			go reg.client.readPump(h.getContext())
			log.Printf("client connected: %s (total: %d)", reg.client.id, h.ClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.id]; ok {
				delete(h.clients, client.id)
				close(client.send)
			}
			h.mu.Unlock()
			log.Printf("client disconnected: %s (total: %d)", client.id, h.ClientCount())

		case data := <-h.broadcast:
			h.mu.RLock()
			for _, c := range h.clients {
				select {
				case c.send <- data:
				default:
					log.Printf("client %s send buffer full, dropping message", c.id)
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" || token != h.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		log.Printf("websocket accept error: %v", err)
		return
	}

	client := newClient(conn, h)

	hello, _ := json.Marshal(HelloMessage{Type: "hello", TaskTypes: h.taskTypes})

	select {
	case h.register <- &clientRegistration{client: client, hello: hello}:
	default:
		log.Printf("hub not accepting connections")
		conn.Close(websocket.StatusTryAgainLater, "server busy")
		return
	}
}

// BroadcastResponse pushes an instruction response to every client.
func (h *Hub) BroadcastResponse(resp *engine.Response) {
	msg := ResponseMessage{Type: "response", Response: resp, Ts: time.Now().UnixMilli()}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("error marshaling response message: %v", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		log.Printf("broadcast channel full, dropping response message")
	}
}

func (h *Hub) SendError(client *Client, message string) {
	msg := ErrorMessage{Type: "error", Message: message}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("error marshaling error message: %v", err)
		return
	}
	select {
	case client.send <- data:
	default:
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) handleInstruction(instruction string, callerContext map[string]any) {
	if h.onInstruction != nil {
		h.onInstruction(instruction, callerContext)
	}
}

func (h *Hub) isRunning() bool {
	return h.running.Load()
}

func (h *Hub) unregisterClient(c *Client) {
	if !h.isRunning() {
		c.conn.Close(websocket.StatusNormalClosure, "")
		return
	}
	select {
	case h.unregister <- c:
	default:
		log.Printf("unregister channel full for client %s, forcing close", c.id)
		c.conn.Close(websocket.StatusNormalClosure, "")
	}
}
