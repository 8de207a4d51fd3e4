package console

import (
	"errors"
	"fmt"
	"sort"
)

// ErrDuplicateCommand is returned when a command name is registered twice.
var ErrDuplicateCommand = errors.New("console: command already registered")

// CommandFunc executes a console command.
type CommandFunc func(cmd Command)

// CommandInfo describes a registered command.
type CommandInfo struct {
	Name  string
	Usage string
}

// Help formats the command for the help listing.
func (i CommandInfo) Help() string {
	if i.Usage == "" {
		return i.Name
	}
	return i.Name + " " + i.Usage
}

type registeredCommand struct {
	info CommandInfo
	fn   CommandFunc
}

// RegisterCommand adds a command. usage is shown by help after the name.
func (c *Console) RegisterCommand(name, usage string, fn CommandFunc) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name == "" || fn == nil {
		return fmt.Errorf("console: invalid command %q", name)
	}
	if _, exists := c.commands[name]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateCommand, name)
	}

	c.commands[name] = &registeredCommand{
		info: CommandInfo{Name: name, Usage: usage},
		fn:   fn,
	}
	return nil
}

// MustRegisterCommand is like RegisterCommand but panics on error.
func (c *Console) MustRegisterCommand(name, usage string, fn CommandFunc) {
	if err := c.RegisterCommand(name, usage, fn); err != nil {
		panic(err)
	}
}

// UnregisterCommand removes a command. Returns false if it was not registered.
func (c *Console) UnregisterCommand(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.commands[name]; !ok {
		return false
	}
	delete(c.commands, name)
	return true
}

// Commands returns every registered command, sorted by name.
func (c *Console) Commands() []CommandInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()

	list := make([]CommandInfo, 0, len(c.commands))
	for _, cmd := range c.commands {
		list = append(list, cmd.info)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})

	return list
}

func (c *Console) lookup(name string) (CommandFunc, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	cmd, ok := c.commands[name]
	if !ok {
		return nil, false
	}
	return cmd.fn, true
}
