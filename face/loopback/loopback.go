// Package loopback bridges the avatar to a browser-rendered Live2D
// model. The pipeline POSTs control messages to a local HTTP endpoint;
// the server fans them out to every websocket viewer. Viewers that fall
// behind are dropped rather than allowed to stall the broadcast.
package loopback

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"companionkit/core"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

// ControlMessage is the wire format shared by the HTTP control endpoint
// and the websocket fan-out.
type ControlMessage struct {
	Type  string  `json:"type"` // "expression" or "lipsync"
	Name  string  `json:"name,omitempty"`
	Value float64 `json:"value,omitempty"`
}

// Server accepts control messages and broadcasts them to viewers.
type Server struct {
	logger   *core.Logger
	upgrader websocket.Upgrader
	server   *http.Server

	mu      sync.Mutex
	viewers map[*websocket.Conn]chan []byte
}

func NewServer(addr string, logger *core.Logger) *Server {
	if logger == nil {
		logger = core.GetLogger()
	}
	s := &Server{
		logger:  logger.With(map[string]any{"component": "loopback"}),
		viewers: make(map[*websocket.Conn]chan []byte),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/control", s.handleControl)
	mux.HandleFunc("/ws", s.handleViewer)
	s.server = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler exposes the mux for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown. It returns once the listener stops.
func (s *Server) Start() error {
	s.logger.Info("loopback bridge listening", "addr", s.server.Addr)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for conn, ch := range s.viewers {
		close(ch)
		conn.Close()
		delete(s.viewers, conn)
	}
	s.mu.Unlock()
	return s.server.Shutdown(ctx)
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<16))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}
	var msg ControlMessage
	if err := sonic.Unmarshal(body, &msg); err != nil {
		http.Error(w, "bad control message", http.StatusBadRequest)
		return
	}
	s.broadcast(body)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleViewer(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	ch := make(chan []byte, 64)
	s.mu.Lock()
	s.viewers[conn] = ch
	s.mu.Unlock()
	s.logger.Debug("viewer connected", "remote", conn.RemoteAddr().String())

	go func() {
		defer s.dropViewer(conn)
		for payload := range ch {
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		}
	}()

	// Drain reads so pings and close frames are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.dropViewer(conn)
				return
			}
		}
	}()
}

func (s *Server) dropViewer(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.viewers[conn]; ok {
		close(ch)
		delete(s.viewers, conn)
		conn.Close()
	}
}

func (s *Server) broadcast(payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn, ch := range s.viewers {
		select {
		case ch <- payload:
		default:
			// Slow viewer; disconnect it inline without re-locking.
			close(ch)
			delete(s.viewers, conn)
			conn.Close()
		}
	}
}

// Client implements the avatar bridge by POSTing control messages to a
// running Server. Lip-sync values go through a one-slot latest-wins
// channel and a pump goroutine; the playback loop calls SetMouthOpen
// once per block and must never wait on the network.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *core.Logger

	lip  chan float64
	done chan struct{}
}

func NewClient(baseURL string, logger *core.Logger) *Client {
	if logger == nil {
		logger = core.GetLogger()
	}
	c := &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 2 * time.Second},
		logger:  logger.With(map[string]any{"component": "loopback-client"}),
		lip:     make(chan float64, 1),
		done:    make(chan struct{}),
	}
	go c.pump()
	return c
}

func (c *Client) SetExpression(name string) {
	c.post(ControlMessage{Type: "expression", Name: name})
}

// SetMouthOpen never blocks. While the pump is mid-post only the most
// recent value is kept; a stale mouth position is worse than a skipped
// one.
func (c *Client) SetMouthOpen(value float64) {
	for {
		select {
		case c.lip <- value:
			return
		default:
			select {
			case <-c.lip:
			default:
			}
		}
	}
}

// Close stops the lip-sync pump.
func (c *Client) Close() {
	close(c.done)
}

func (c *Client) pump() {
	for {
		select {
		case value := <-c.lip:
			c.post(ControlMessage{Type: "lipsync", Value: value})
		case <-c.done:
			return
		}
	}
}

func (c *Client) post(msg ControlMessage) {
	payload, err := sonic.Marshal(msg)
	if err != nil {
		return
	}
	resp, err := c.client.Post(fmt.Sprintf("%s/control", c.baseURL), "application/json", bytes.NewReader(payload))
	if err != nil {
		c.logger.Debug("control post failed", "error", err)
		return
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}
