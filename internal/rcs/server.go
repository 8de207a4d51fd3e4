package rcs

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/vovakirdan/bread/internal/console"
	"github.com/vovakirdan/bread/internal/events"
	"github.com/vovakirdan/bread/internal/netsock"
)

// Role is the server's place in the session.
type Role int

const (
	RoleDisconnected Role = iota
	RoleHost
	RoleClient
)

// String returns the role name as shown by rcs_info.
func (r Role) String() string {
	switch r {
	case RoleHost:
		return "Host"
	case RoleClient:
		return "Client"
	default:
		return "Disconnected"
	}
}

var (
	// ErrAlreadyConnected is returned by Host and Join outside the Disconnected role.
	ErrAlreadyConnected = errors.New("rcs: already connected")
	// ErrNotConnected is returned by operations that need a session.
	ErrNotConnected = errors.New("rcs: not connected")
)

// Console is the part of the developer console the server drives.
type Console interface {
	RegisterCommand(name, usage string, fn console.CommandFunc) error
	RunCommand(line string, remote bool)
	AddLog(text string, sev console.Severity, remote bool)
}

// RemoteCommand is a command received from a peer.
type RemoteCommand struct {
	ConnID  uuid.UUID
	Peer    string
	Command string
	At      time.Time
}

// HistoryRecorder receives every accepted remote command.
type HistoryRecorder interface {
	RecordRemoteCommand(cmd RemoteCommand)
}

// Config configures a server.
type Config struct {
	// Port is used by Host and as the default Join port.
	Port int
	// BindHost is the interface Host listens on. Empty means all interfaces.
	BindHost string
	// BufferSize is the per-connection receive buffer.
	BufferSize int
	// ConnectTimeout bounds Join.
	ConnectTimeout time.Duration
	// CommandsPerSecond limits inbound commands per peer. Zero disables the limit.
	CommandsPerSecond float64
	// CommandBurst is the rate limiter bucket size.
	CommandBurst int
}

// DefaultConfig returns the stock settings.
func DefaultConfig() Config {
	return Config{
		Port:              DefaultPort,
		BufferSize:        DefaultBufferSize,
		ConnectTimeout:    5 * time.Second,
		CommandsPerSecond: 0,
		CommandBurst:      20,
	}
}

// Server is the remote command server. It is driven from the engine goroutine
// and is not safe for concurrent use.
type Server struct {
	cfg     Config
	network netsock.Network
	bus     *events.Bus
	console Console
	history HistoryRecorder
	logger  *log.Logger

	role         Role
	listener     netsock.Listener
	acceptFailed bool
	connections []*Connection
	subs        []events.Subscription
}

// NewServer creates a disconnected server and subscribes it to the bus.
func NewServer(cfg Config, network netsock.Network, bus *events.Bus, cons Console, logger *log.Logger) *Server {
	def := DefaultConfig()
	if cfg.Port <= 0 {
		cfg.Port = def.Port
	}
	if cfg.BufferSize < 2 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = def.ConnectTimeout
	}
	if cfg.CommandBurst < 1 {
		cfg.CommandBurst = def.CommandBurst
	}
	if logger == nil {
		logger = log.Default()
	}

	s := &Server{
		cfg:     cfg,
		network: network,
		bus:     bus,
		console: cons,
		logger:  logger,
	}
	s.subs = append(s.subs,
		bus.Subscribe(events.NetworkUpdate, 0, func(events.Event) { s.OnUpdate() }),
		bus.Subscribe(events.RCSMessage, 0, s.onMessage),
	)
	return s
}

// SetHistory installs a recorder for inbound commands.
func (s *Server) SetHistory(h HistoryRecorder) {
	s.history = h
}

// Role returns the current role.
func (s *Server) Role() Role { return s.role }

// IsHost reports whether the server is hosting.
func (s *Server) IsHost() bool { return s.role == RoleHost }

// IsClient reports whether the server is joined to a host.
func (s *Server) IsClient() bool { return s.role == RoleClient }

// IsConnected reports whether the server is hosting or joined.
func (s *Server) IsConnected() bool { return s.role != RoleDisconnected }

// ListenAddress returns the bound address while hosting, or "" otherwise.
func (s *Server) ListenAddress() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Address()
}

// ConnectionAddresses returns the peer addresses in connection order.
func (s *Server) ConnectionAddresses() []string {
	addrs := make([]string, len(s.connections))
	for i, c := range s.connections {
		addrs[i] = c.Address()
	}
	return addrs
}

// ConnectionCount returns the number of live connections.
func (s *Server) ConnectionCount() int {
	return len(s.connections)
}

// Connections returns the live connections in connection order.
func (s *Server) Connections() []*Connection {
	return append([]*Connection(nil), s.connections...)
}

// Host starts listening on port. A non-positive port selects the configured one.
func (s *Server) Host(port int) error {
	if s.IsConnected() {
		return ErrAlreadyConnected
	}
	if port <= 0 {
		port = s.cfg.Port
	}

	addr := net.JoinHostPort(s.cfg.BindHost, strconv.Itoa(port))
	ln, err := s.network.Listen(addr)
	if err != nil {
		s.logger.Error("host failed", "addr", addr, "err", err)
		return err
	}

	s.listener = ln
	s.acceptFailed = false
	s.setRole(RoleHost)
	s.logger.Info("hosting", "addr", ln.Address())
	return nil
}

// Join connects to a host. address may carry its own port; otherwise port is
// used, and a non-positive port selects the configured one.
func (s *Server) Join(address string, port int) error {
	if s.IsConnected() || len(s.connections) > 0 {
		return ErrAlreadyConnected
	}
	if port <= 0 {
		port = s.cfg.Port
	}

	target := netsock.JoinAddress(address, port)
	conn, err := s.network.Dial(target, s.cfg.ConnectTimeout)
	if err != nil {
		s.logger.Error("join failed", "addr", target, "err", err)
		return err
	}

	s.addConnection(conn)
	s.setRole(RoleClient)
	s.logger.Info("joined", "addr", target)
	return nil
}

// Send broadcasts one message to every connection. Returns ErrNotConnected
// when disconnected, or the joined per-connection send failures.
func (s *Server) Send(t MessageType, msg string) error {
	if !s.IsConnected() {
		return ErrNotConnected
	}
	if _, err := EncodeFrame(t, msg); err != nil {
		return err
	}

	var errs []error
	for _, c := range s.connections {
		if err := c.Send(t, msg); err != nil {
			s.logger.Warn("send failed", "peer", c.Address(), "type", t, "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Leave closes every connection and the listener.
func (s *Server) Leave() error {
	if !s.IsConnected() {
		return ErrNotConnected
	}

	for _, c := range s.connections {
		if err := c.Close(); err != nil {
			s.logger.Debug("close failed", "peer", c.Address(), "err", err)
		}
	}
	s.connections = nil

	if s.listener != nil {
		if err := s.listener.Close(); err != nil {
			s.logger.Debug("listener close failed", "err", err)
		}
		s.listener = nil
	}

	s.setRole(RoleDisconnected)
	return nil
}

// Close leaves any session and detaches from the bus.
func (s *Server) Close() {
	if s.IsConnected() {
		_ = s.Leave()
	}
	for _, sub := range s.subs {
		s.bus.Unsubscribe(sub)
	}
	s.subs = nil
}

// OnUpdate runs one network tick: accept pending peers, poll every
// connection once, drain readable ones, then drop the ones that hung up.
func (s *Server) OnUpdate() {
	if !s.IsConnected() {
		return
	}
	if s.IsHost() {
		s.acceptConnections()
	}
	s.updateConnections()
}

func (s *Server) acceptConnections() {
	for s.listener != nil {
		conn, err := s.listener.Accept()
		if err != nil {
			// A failed listener stays failed; report it once per Host.
			if !errors.Is(err, netsock.ErrWouldBlock) && !s.acceptFailed {
				s.acceptFailed = true
				s.logger.Error("accept failed", "err", err)
				s.console.AddLog(fmt.Sprintf("Failed to accept connection: %v", err), console.SeverityBad, true)
			}
			return
		}

		c := s.addConnection(conn)
		s.logger.Info("client connected", "peer", c.Address(), "conn", c.ID())
		s.console.AddLog("Client connected: "+c.Address(), console.SeverityRemote, true)
	}
}

func (s *Server) updateConnections() {
	if len(s.connections) == 0 {
		return
	}

	scan := append([]*Connection(nil), s.connections...)
	conns := make([]netsock.Conn, len(scan))
	for i, c := range scan {
		conns[i] = c.Conn()
	}

	results, err := s.network.Poll(conns, 0)
	if err != nil {
		s.logger.Error("poll failed", "err", err)
		return
	}

	var lost []*Connection
	for i, c := range scan {
		if !s.owns(c) {
			continue
		}

		var readErr error
		if results[i].Readable {
			readErr = c.Receive()
			if !s.owns(c) {
				// A command run while draining already dropped it.
				continue
			}
			if readErr != nil {
				s.logger.Warn("receive failed", "peer", c.Address(), "err", readErr)
			}
		}
		if results[i].HungUp || readErr != nil {
			lost = append(lost, c)
		}
	}

	for _, c := range lost {
		s.disconnect(c)
	}
}

func (s *Server) disconnect(c *Connection) {
	idx := s.indexOf(c)
	if idx < 0 {
		return
	}
	s.connections = append(s.connections[:idx], s.connections[idx+1:]...)
	_ = c.Close()

	switch s.role {
	case RoleHost:
		s.logger.Info("client left", "peer", c.Address(), "conn", c.ID())
		s.console.AddLog("Client left: "+c.Name(), console.SeverityRemote, true)
	case RoleClient:
		s.logger.Info("host disconnected", "peer", c.Address())
		s.console.AddLog("Host disconnected.", console.SeverityRemote, true)
		s.setRole(RoleDisconnected)
	}
}

func (s *Server) addConnection(conn netsock.Conn) *Connection {
	conn.SetBlocking(false)

	var limiter *rate.Limiter
	if s.cfg.CommandsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.CommandsPerSecond), s.cfg.CommandBurst)
	}

	c := NewConnection(conn, s.cfg.BufferSize, limiter, s.publish, s.logger)
	s.connections = append(s.connections, c)
	return c
}

func (s *Server) publish(m MessageReceived) {
	s.bus.Publish(m)
}

func (s *Server) onMessage(e events.Event) {
	m, ok := e.(MessageReceived)
	if !ok {
		return
	}
	c := s.find(m.ConnID)

	switch m.Type {
	case MessageCommand:
		if c != nil && !c.AllowCommand() {
			s.logger.Warn("remote command rate limited", "peer", m.Address, "command", m.Text)
			if err := c.Send(MessageError, "rate limit exceeded"); err != nil {
				s.logger.Debug("rate limit notice failed", "peer", m.Address, "err", err)
			}
			return
		}
		if s.history != nil {
			s.history.RecordRemoteCommand(RemoteCommand{
				ConnID:  m.ConnID,
				Peer:    m.Address,
				Command: m.Text,
				At:      time.Now(),
			})
		}
		s.console.RunCommand(m.Text, true)

	case MessageEcho:
		s.console.AddLog("REMOTE: "+m.Text, console.SeverityRemote, true)

	case MessageRename:
		if c == nil || m.Text == "" {
			return
		}
		old := c.Name()
		c.SetName(m.Text)
		s.console.AddLog(fmt.Sprintf("%s is now known as %s", old, m.Text), console.SeverityRemote, true)

	case MessageError:
		s.console.AddLog("REMOTE ERROR: "+m.Text, console.SeverityBad, true)

	default:
		s.logger.Debug("ignoring unknown message", "peer", m.Address, "type", m.Type)
	}
}

func (s *Server) setRole(r Role) {
	if s.role == r {
		return
	}
	from := s.role
	s.role = r
	s.bus.Publish(StateChanged{From: from, To: r})
}

func (s *Server) owns(c *Connection) bool {
	return s.indexOf(c) >= 0
}

func (s *Server) indexOf(c *Connection) int {
	for i, other := range s.connections {
		if other == c {
			return i
		}
	}
	return -1
}

func (s *Server) find(id uuid.UUID) *Connection {
	for _, c := range s.connections {
		if c.ID() == id {
			return c
		}
	}
	return nil
}
