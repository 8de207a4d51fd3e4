package console

import (
	"fmt"
	"os"
	"path/filepath"
)

func (c *Console) registerBuiltins() {
	c.MustRegisterCommand("help", ": Show all available commands.", func(Command) {
		c.ShowHelp()
	})
	c.MustRegisterCommand("clear", ": Clears console and all previous logs.", func(Command) {
		c.Clear()
	})
	c.MustRegisterCommand("quit", ": Closes current application.", c.quitCommand)
	c.MustRegisterCommand("log", "[filename] : Print all console logs to the log directory. Default = log.txt", c.logCommand)
	c.MustRegisterCommand("server_echo", ": Toggles sending all console lines to all network connections.", c.serverEchoCommand)
}

func (c *Console) quitCommand(Command) {
	c.AddLog("Quitting...", SeverityGood, false)

	c.mu.RLock()
	fn := c.onQuit
	c.mu.RUnlock()

	if fn != nil {
		fn()
	}
}

func (c *Console) serverEchoCommand(Command) {
	c.mu.Lock()
	c.serverEcho = !c.serverEcho
	enabled := c.serverEcho
	c.mu.Unlock()

	if enabled {
		c.AddLog("Echo enabled.", SeverityGood, false)
	} else {
		c.AddLog("Echo disabled.", SeverityGood, false)
	}
}

func (c *Console) logCommand(cmd Command) {
	name := filepath.Base(cmd.Arg(0, "log.txt"))
	path := filepath.Join(c.cfg.LogDir, name)
	buffer := c.BuildLogFile()
	count := c.Len()

	c.run(func() {
		err := writeLogFile(path, buffer)
		c.Defer(func() {
			if err != nil {
				c.AddLog(fmt.Sprintf("Failed to write log file: %v", err), SeverityBad, false)
				return
			}
			c.AddLog(fmt.Sprintf("Printed (%d) logs to file: %s", count, path), SeverityGood, false)
		})
	})
}

// writeLogFile writes buffer to path, creating parent directories.
func writeLogFile(path, buffer string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("console: cannot create directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(buffer), 0o644); err != nil {
		return fmt.Errorf("console: cannot write %s: %w", path, err)
	}
	return nil
}
