// ABOUTME: WebSocket transport for the opusd decode service
// ABOUTME: Routes control and decode messages onto per-connection sessions
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/audioplane/opusd/internal/discovery"
	"github.com/audioplane/opusd/internal/service"
	"github.com/audioplane/opusd/internal/version"
	"github.com/audioplane/opusd/pkg/protocol"
)

const (
	writeDeadline = 10 * time.Second

	// maxOutputCapacity bounds the PCM buffer a single decode request
	// may ask the server to back. 4 MiB covers the largest Opus frame
	// many times over.
	maxOutputCapacity = 4 << 20
)

// Config holds server configuration.
type Config struct {
	Port       int
	Name       string
	EnableMDNS bool
	Debug      bool
}

// Server owns the WebSocket endpoint. Every connection gets its own
// session table; a connection's sessions are released when it goes
// away.
type Server struct {
	config   Config
	serverID string
	log      *slog.Logger
	svc      *service.Service

	upgrader   websocket.Upgrader
	mux        *http.ServeMux
	httpServer *http.Server

	listener   net.Listener
	listenerMu sync.Mutex

	mdnsManager *discovery.Manager

	// Live WebSocket connections. Hijacked by the upgrade, so
	// httpServer.Shutdown does not touch them; shutdown closes them
	// explicitly to unblock their read loops.
	conns   map[*websocket.Conn]struct{}
	connsMu sync.Mutex

	stopChan   chan struct{}
	stopOnce   sync.Once
	shutdownMu sync.RWMutex
	isShutdown bool
	wg         sync.WaitGroup
}

// New creates a server around the given decode service.
func New(config Config, svc *service.Service, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		config:   config,
		serverID: uuid.New().String(),
		log:      log,
		svc:      svc,
		upgrader: websocket.Upgrader{
			// Programmatic clients on trusted networks; no origin
			// allowlist.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		mux:      http.NewServeMux(),
		conns:    make(map[*websocket.Conn]struct{}),
		stopChan: make(chan struct{}),
	}
	s.mux.HandleFunc("/opus", s.handleWebSocket)
	return s
}

// Handler exposes the HTTP handler serving the /opus endpoint so tests
// can mount it without binding a port.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Start runs the server until Stop is called or the listener fails.
func (s *Server) Start() error {
	s.log.Info("server starting",
		"product", version.Product, "version", version.Version,
		"name", s.config.Name, "id", s.serverID)

	if s.config.EnableMDNS {
		s.mdnsManager = discovery.NewManager(discovery.Config{
			ServiceName: s.config.Name,
			Port:        s.config.Port,
		}, s.log)
		if err := s.mdnsManager.Advertise(); err != nil {
			s.log.Warn("failed to start mDNS advertisement", "err", err)
			s.mdnsManager = nil
		}
	}

	addr := fmt.Sprintf(":%d", s.config.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	s.listenerMu.Lock()
	s.listener = ln
	s.listenerMu.Unlock()

	s.httpServer = &http.Server{Handler: s.mux}
	s.log.Info("WebSocket server listening", "addr", ln.Addr().String())

	errChan := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	var serverErr error
	select {
	case <-s.stopChan:
		s.log.Info("server shutting down")
	case err := <-errChan:
		s.log.Error("HTTP server error", "err", err)
		serverErr = err
	}

	s.shutdownMu.Lock()
	s.isShutdown = true
	s.shutdownMu.Unlock()

	if s.mdnsManager != nil {
		s.mdnsManager.Stop()
	}

	// Upgraded connections are hijacked; closing them here is what
	// unblocks their read loops so the WaitGroup can drain.
	s.closeConnections()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Error("HTTP server shutdown error", "err", err)
	}

	s.wg.Wait()
	s.log.Info("server stopped cleanly")

	if serverErr != nil {
		return fmt.Errorf("HTTP server failed: %w", serverErr)
	}
	return nil
}

// Stop stops the server.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopChan)
	})
}

// Addr reports the bound listen address, or "" before Start has bound
// one. With a configured port of 0 this is how callers learn the
// ephemeral port.
func (s *Server) Addr() string {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *Server) trackConn(conn *websocket.Conn) {
	s.connsMu.Lock()
	s.conns[conn] = struct{}{}
	s.connsMu.Unlock()
}

func (s *Server) untrackConn(conn *websocket.Conn) {
	s.connsMu.Lock()
	delete(s.conns, conn)
	s.connsMu.Unlock()
}

func (s *Server) closeConnections() {
	s.connsMu.Lock()
	defer s.connsMu.Unlock()
	for conn := range s.conns {
		conn.Close()
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error("WebSocket upgrade error", "err", err)
		return
	}
	s.log.Info("new connection", "remote", r.RemoteAddr)

	s.wg.Add(1)
	defer s.wg.Done()
	s.trackConn(conn)
	defer s.untrackConn(conn)

	s.handleConnection(conn)
}

func (s *Server) handleConnection(conn *websocket.Conn) {
	defer conn.Close()

	s.shutdownMu.RLock()
	if s.isShutdown {
		s.shutdownMu.RUnlock()
		s.log.Info("rejecting connection during shutdown")
		return
	}
	s.shutdownMu.RUnlock()

	sc := s.svc.NewConn()
	defer func() {
		released := sc.SessionCount()
		sc.Release()
		s.log.Info("connection closed", "sessions_released", released)
	}()

	hello := protocol.ServerHello{
		ServerID:      s.serverID,
		Name:          s.config.Name,
		Version:       protocol.ProtocolVersion,
		ServerVersion: version.Version,
	}
	if err := s.writeJSON(conn, protocol.TypeServerHello, hello); err != nil {
		s.log.Error("error sending server hello", "err", err)
		return
	}

	// The single read loop serializes every operation on this
	// connection's sessions, which is the serialization contract the
	// decoder layer requires.
	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn("WebSocket error", "err", err)
			}
			return
		}

		switch msgType {
		case websocket.TextMessage:
			s.handleControl(conn, sc, data)
		case websocket.BinaryMessage:
			s.handleDecode(conn, sc, data)
		}
	}
}

// handleControl routes one JSON control message and writes its reply.
func (s *Server) handleControl(conn *websocket.Conn, sc *service.Conn, data []byte) {
	var msg protocol.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Error("error unmarshaling message", "err", err)
		return
	}

	if name, ok := service.CommandName(msg.Type); ok && s.config.Debug {
		s.log.Debug("called", "operation", name)
	}

	switch msg.Type {
	case protocol.TypeWorkBufferSize:
		var req protocol.WorkBufferSizeRequest
		if err := unmarshalPayload(msg.Payload, &req); err != nil {
			s.log.Error("bad work buffer size payload", "err", err)
			s.reply(conn, protocol.TypeWorkBufferSizeResult,
				protocol.WorkBufferSizeResult{Status: protocol.StatusMalformedRequest})
			return
		}
		s.reply(conn, protocol.TypeWorkBufferSizeResult, s.svc.WorkBufferSize(req))

	case protocol.TypeOpenDecoder:
		var req protocol.OpenDecoderRequest
		if err := unmarshalPayload(msg.Payload, &req); err != nil {
			s.log.Error("bad open decoder payload", "err", err)
			s.reply(conn, protocol.TypeOpenDecoderResult,
				protocol.OpenDecoderResult{Status: protocol.StatusMalformedRequest})
			return
		}
		s.reply(conn, protocol.TypeOpenDecoderResult, sc.OpenDecoder(req))

	case protocol.TypeOpenDecoderMultiStream:
		s.reply(conn, protocol.TypeOpenDecoderResult,
			protocol.OpenDecoderResult{Status: protocol.StatusNotImplemented})

	case protocol.TypeWorkBufferSizeMultiStream:
		s.reply(conn, protocol.TypeWorkBufferSizeResult,
			protocol.WorkBufferSizeResult{Status: protocol.StatusNotImplemented})

	default:
		s.log.Warn("unknown message type", "type", msg.Type)
	}
}

// reply writes one control response and logs a dropped write.
func (s *Server) reply(conn *websocket.Conn, msgType string, payload interface{}) {
	if err := s.writeJSON(conn, msgType, payload); err != nil {
		s.log.Error("error writing control response", "type", msgType, "err", err)
	}
}

// handleDecode routes one binary decode request and writes its reply.
func (s *Server) handleDecode(conn *websocket.Conn, sc *service.Conn, data []byte) {
	req, err := protocol.ParseDecodeRequest(data)
	if err != nil {
		s.log.Error("bad decode request", "err", err)
		s.writeBinary(conn, protocol.DecodeResponse{Status: protocol.StatusMalformedRequest}.Encode())
		return
	}
	if req.OutputCapacity > maxOutputCapacity {
		s.log.Warn("decode request exceeds output capacity bound",
			"requested", req.OutputCapacity, "max", maxOutputCapacity)
		s.writeBinary(conn, protocol.DecodeResponse{
			Command:   req.Command,
			SessionID: req.SessionID,
			Status:    protocol.StatusMalformedRequest,
		}.Encode())
		return
	}

	s.writeBinary(conn, sc.Dispatch(req).Encode())
}

func (s *Server) writeJSON(conn *websocket.Conn, msgType string, payload interface{}) error {
	data, err := json.Marshal(protocol.Message{Type: msgType, Payload: payload})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msgType, err)
	}
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (s *Server) writeBinary(conn *websocket.Conn, data []byte) {
	conn.SetWriteDeadline(time.Now().Add(writeDeadline))
	if err := conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		s.log.Error("error writing binary message", "err", err)
	}
}

// unmarshalPayload re-marshals the generic payload into a typed
// request.
func unmarshalPayload(payload interface{}, dst interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dst)
}
