package transport

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/rainbowrelax/relax-cli/internal/encoding"
	"github.com/rainbowrelax/relax-cli/internal/models"
)

// UDPServer broadcasts frames via UDP to clients that sent a datagram
type UDPServer struct {
	host    string
	port    int
	encoder encoding.Encoder
	conn    *net.UDPConn
	clients map[string]*net.UDPAddr
	mu      sync.RWMutex
	ready   chan struct{}
}

// NewUDPServer creates a new UDP server
func NewUDPServer(host string, port int, encoder encoding.Encoder) *UDPServer {
	if encoder == nil {
		encoder = encoding.NewJSONEncoder()
	}
	return &UDPServer{
		host:    host,
		port:    port,
		encoder: encoder,
		clients: make(map[string]*net.UDPAddr),
		ready:   make(chan struct{}),
	}
}

// Start starts the UDP server
func (s *UDPServer) Start(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%d", s.host, s.port))
	if err != nil {
		return fmt.Errorf("failed to resolve address: %w", err)
	}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	close(s.ready)

	log.Infof("UDP server listening on %s", s.GetAddress())

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.readLoop(ctx)
	}()

	<-ctx.Done()
	err = s.Shutdown()
	<-done
	return err
}

// Ready is closed once the socket is bound
func (s *UDPServer) Ready() <-chan struct{} {
	return s.ready
}

// LocalAddr returns the bound address, useful with port 0
func (s *UDPServer) LocalAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// readLoop listens for client registration packets
func (s *UDPServer) readLoop(ctx context.Context) {
	buf := make([]byte, 1024)
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_ = s.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
			n, addr, err := s.conn.ReadFromUDP(buf)
			if err != nil {
				continue
			}
			s.handleMessage(string(buf[:n]), addr)
		}
	}
}

func (s *UDPServer) handleMessage(msg string, addr *net.UDPAddr) {
	key := addr.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg {
	case "subscribe":
		s.clients[key] = addr
		log.Infof("UDP client subscribed: %s (total: %d)", key, len(s.clients))
	case "unsubscribe":
		delete(s.clients, key)
		log.Infof("UDP client unsubscribed: %s (total: %d)", key, len(s.clients))
	default:
		// any other datagram registers the sender too
		if _, exists := s.clients[key]; !exists {
			s.clients[key] = addr
			log.Infof("UDP client registered: %s (total: %d)", key, len(s.clients))
		}
	}
}

// Broadcast sends a frame to all registered clients
func (s *UDPServer) Broadcast(frame models.Frame) error {
	if s.GetClientCount() == 0 {
		return nil
	}

	data, err := s.encoder.Encode(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for key, addr := range s.clients {
		if _, err := s.conn.WriteToUDP(data, addr); err != nil {
			log.Debugf("failed to send to UDP client %s: %s", key, err)
		}
	}
	return nil
}

// BroadcastFromChannel reads frames and broadcasts them
func (s *UDPServer) BroadcastFromChannel(ctx context.Context, frames <-chan models.Frame) error {
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

// GetClientCount returns registered client count
func (s *UDPServer) GetClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Shutdown closes the UDP connection
func (s *UDPServer) Shutdown() error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// GetAddress returns the server address
func (s *UDPServer) GetAddress() string {
	return fmt.Sprintf("udp://%s:%d", s.host, s.port)
}
