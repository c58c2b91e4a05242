package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/rainbowrelax/relax-cli/internal/encoding"
	"github.com/rainbowrelax/relax-cli/internal/models"
)

// WebSocketPath is where frame subscribers connect
const WebSocketPath = "/breathe"

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the widget is served from other origins during development
	},
}

// CommandFunc handles a control command sent by a client, e.g. "pause"
type CommandFunc func(cmd string) error

// CommandReply is written back to the client after each command
type CommandReply struct {
	Command string `json:"command"`
	OK      bool   `json:"ok"`
	Error   string `json:"error,omitempty"`
}

// WebSocketServer broadcasts frames to WebSocket clients and forwards their
// text commands to the session
type WebSocketServer struct {
	host      string
	port      int
	encoder   encoding.Encoder
	onCommand CommandFunc
	clients   map[*websocket.Conn]*sync.Mutex
	mu        sync.RWMutex
	server    *http.Server
}

// NewWebSocketServer creates a new WebSocket server
func NewWebSocketServer(host string, port int, encoder encoding.Encoder) *WebSocketServer {
	if encoder == nil {
		encoder = encoding.NewJSONEncoder()
	}
	return &WebSocketServer{
		host:    host,
		port:    port,
		encoder: encoder,
		clients: make(map[*websocket.Conn]*sync.Mutex),
	}
}

// OnCommand registers the handler for client commands. Without one,
// commands are rejected.
func (s *WebSocketServer) OnCommand(fn CommandFunc) {
	s.onCommand = fn
}

// Handler returns the upgrade handler so the server can be mounted on
// another router
func (s *WebSocketServer) Handler() http.Handler {
	return http.HandlerFunc(s.handleWebSocket)
}

// Start listens until ctx is cancelled
func (s *WebSocketServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle(WebSocketPath, s.Handler())
	mux.HandleFunc("/", s.handleRoot)

	s.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.host, s.port),
		Handler: mux,
	}

	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("WebSocket server failed: %w", err)
	}

	go func() {
		log.Infof("WebSocket server listening on %s", s.GetAddress())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorf("WebSocket server error: %s", err)
		}
	}()

	<-ctx.Done()
	return s.Shutdown()
}

func (s *WebSocketServer) handleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintf(w, "Relax Breathing Session\n\n")
	fmt.Fprintf(w, "WebSocket endpoint: %s\n", s.GetAddress())
	fmt.Fprintf(w, "Commands: pause, resume, toggle, reset\n")
	fmt.Fprintf(w, "Connected clients: %d\n", s.GetClientCount())
}

func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warnf("failed to upgrade connection: %s", err)
		return
	}

	writeMu := &sync.Mutex{}
	s.mu.Lock()
	s.clients[conn] = writeMu
	clientCount := len(s.clients)
	s.mu.Unlock()

	log.Infof("client connected from %s (total: %d)", r.RemoteAddr, clientCount)

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		clientCount := len(s.clients)
		s.mu.Unlock()

		conn.Close()
		log.Infof("client disconnected (total: %d)", clientCount)
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			break
		}
		if msgType != websocket.TextMessage {
			continue
		}

		reply := s.handleCommand(strings.TrimSpace(string(data)))
		payload, _ := json.Marshal(reply)

		writeMu.Lock()
		err = conn.WriteMessage(websocket.TextMessage, payload)
		writeMu.Unlock()
		if err != nil {
			break
		}
	}
}

func (s *WebSocketServer) handleCommand(cmd string) CommandReply {
	reply := CommandReply{Command: cmd}
	if s.onCommand == nil {
		reply.Error = "commands are not accepted by this server"
		return reply
	}
	if err := s.onCommand(strings.ToLower(cmd)); err != nil {
		reply.Error = err.Error()
		return reply
	}
	reply.OK = true
	return reply
}

// Broadcast sends a frame to all connected clients
func (s *WebSocketServer) Broadcast(frame models.Frame) error {
	if s.GetClientCount() == 0 {
		return nil
	}

	data, err := s.encoder.Encode(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	msgType := websocket.TextMessage
	if _, ok := s.encoder.(*encoding.ProtobufEncoder); ok {
		msgType = websocket.BinaryMessage
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for client, writeMu := range s.clients {
		writeMu.Lock()
		err := client.WriteMessage(msgType, data)
		writeMu.Unlock()
		if err != nil {
			// the connection handler cleans the client up
			log.Debugf("failed to send to client: %s", err)
		}
	}

	return nil
}

// BroadcastFromChannel reads frames from a channel and broadcasts them
func (s *WebSocketServer) BroadcastFromChannel(ctx context.Context, frames <-chan models.Frame) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if err := s.Broadcast(frame); err != nil {
				log.Warnf("broadcast error: %s", err)
			}
		}
	}
}

// GetClientCount returns the number of connected clients
func (s *WebSocketServer) GetClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Shutdown gracefully shuts down the server
func (s *WebSocketServer) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.mu.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clients = make(map[*websocket.Conn]*sync.Mutex)
	s.mu.Unlock()

	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// GetAddress returns the server address
func (s *WebSocketServer) GetAddress() string {
	return fmt.Sprintf("ws://%s:%d%s", s.host, s.port, WebSocketPath)
}
