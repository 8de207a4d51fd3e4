package rcs

import (
	"errors"
	"fmt"

	"github.com/vovakirdan/bread/internal/console"
)

// RegisterCommands adds the rcs_* console commands.
func (s *Server) RegisterCommands() error {
	cmds := []struct {
		name  string
		usage string
		fn    console.CommandFunc
	}{
		{"rcs_host", ": Host a remote command server on the default port.", s.hostCommand},
		{"rcs_join", "[address] : Join a remote command server. Default = this machine.", s.joinCommand},
		{"rcs_leave", ": Stop hosting or disconnect from the host.", s.leaveCommand},
		{"rcs_info", ": Show remote command server status and connections.", s.infoCommand},
		{"rcs_send", "[command...] : Run a command on every connected peer.", s.sendCommand},
		{"rcs_name", "[name] : Set the name peers see for this connection.", s.nameCommand},
	}

	for _, c := range cmds {
		if err := s.console.RegisterCommand(c.name, c.usage, c.fn); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) hostCommand(console.Command) {
	if s.IsHost() {
		s.console.AddLog("Already hosting.", console.SeverityBad, false)
		return
	}
	if s.IsClient() {
		s.console.AddLog("Clients can not also host.", console.SeverityBad, false)
		return
	}

	if err := s.Host(0); err != nil {
		s.console.AddLog("Failed to host.", console.SeverityBad, false)
		s.console.AddLog(err.Error(), console.SeverityBad, false)
		return
	}
	s.console.AddLog(fmt.Sprintf("Host successful. Listening on %s", s.ListenAddress()), console.SeverityGood, false)
}

func (s *Server) joinCommand(cmd console.Command) {
	if s.IsConnected() {
		s.console.AddLog("Already connected to host.", console.SeverityBad, false)
		return
	}

	address := cmd.Arg(0, "")
	if address == "" {
		address = s.network.LocalHostName()
	}

	if err := s.Join(address, 0); err != nil {
		s.console.AddLog("Failed to join server.", console.SeverityBad, false)
		s.console.AddLog(err.Error(), console.SeverityBad, false)
		return
	}
	s.console.AddLog(fmt.Sprintf("Joined server: %s", address), console.SeverityGood, false)
}

func (s *Server) leaveCommand(console.Command) {
	if !s.IsConnected() {
		s.console.AddLog("Nothing to leave.", console.SeverityBad, false)
		return
	}

	wasHost := s.IsHost()
	if err := s.Leave(); err != nil {
		s.console.AddLog(err.Error(), console.SeverityBad, false)
		return
	}
	if wasHost {
		s.console.AddLog("Stopped hosting.", console.SeverityGood, false)
	} else {
		s.console.AddLog("Disconnected from host.", console.SeverityGood, false)
	}
}

func (s *Server) infoCommand(console.Command) {
	addrs := s.ConnectionAddresses()

	switch s.role {
	case RoleHost:
		s.console.AddLog("Status: Host", console.SeverityInfo, false)
		s.console.AddLog(fmt.Sprintf("Host: %s", s.ListenAddress()), console.SeverityGood, false)
		s.console.AddLog(fmt.Sprintf("Connections: %d", len(addrs)), console.SeverityGood, false)
		for i, c := range s.connections {
			line := fmt.Sprintf("[%d] %s", i, c.Address())
			if c.Name() != c.Address() {
				line += " (" + c.Name() + ")"
			}
			s.console.AddLog(line, console.SeverityGood, false)
		}
	case RoleClient:
		s.console.AddLog("Status: Client", console.SeverityInfo, false)
		if len(addrs) > 0 {
			s.console.AddLog(fmt.Sprintf("Client: %s", addrs[0]), console.SeverityGood, false)
		}
	default:
		s.console.AddLog("Status: Disconnected", console.SeverityInfo, false)
	}
}

func (s *Server) sendCommand(cmd console.Command) {
	if !s.IsConnected() {
		s.console.AddLog("Not connected.", console.SeverityBad, false)
		return
	}
	s.sendAndReport(MessageCommand, cmd.Remaining(0))
}

func (s *Server) nameCommand(cmd console.Command) {
	if !s.IsConnected() {
		s.console.AddLog("Not connected.", console.SeverityBad, false)
		return
	}
	name := cmd.Remaining(0)
	if name == "" {
		s.console.AddLog("Usage: rcs_name [name]", console.SeverityBad, false)
		return
	}
	if s.sendAndReport(MessageRename, name) {
		s.console.AddLog(fmt.Sprintf("Name set to %s", name), console.SeverityGood, false)
	}
}

func (s *Server) sendAndReport(t MessageType, msg string) bool {
	err := s.Send(t, msg)
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrInvalidPayload):
		s.console.AddLog("Message contains an invalid character.", console.SeverityBad, false)
	default:
		s.console.AddLog(fmt.Sprintf("Send failed: %v", err), console.SeverityBad, false)
	}
	return false
}
