// Package config provides YAML and TOML configuration loading for the
// engine, its remote command server and the auxiliary services.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the full engine configuration.
type Config struct {
	Engine  EngineConfig  `yaml:"engine" toml:"engine"`
	Log     LogConfig     `yaml:"log" toml:"log"`
	RCS     RCSConfig     `yaml:"rcs" toml:"rcs"`
	Jobs    JobsConfig    `yaml:"jobs" toml:"jobs"`
	Console ConsoleConfig `yaml:"console" toml:"console"`
	Storage StorageConfig `yaml:"storage" toml:"storage"`
	SSH     SSHConfig     `yaml:"ssh" toml:"ssh"`
}

// EngineConfig controls the frame loop.
type EngineConfig struct {
	Name     string `yaml:"name" toml:"name"`
	TickRate int    `yaml:"tick_rate" toml:"tick_rate"` // Frames per second
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level string `yaml:"level" toml:"level"` // debug, info, warn, error
}

// RCSConfig controls the remote command server.
type RCSConfig struct {
	Port              int     `yaml:"port" toml:"port"`
	GamePort          int     `yaml:"game_port" toml:"game_port"` // Reserved for game traffic, unused by RCS
	BindHost          string  `yaml:"bind_host" toml:"bind_host"` // Empty binds every interface
	BufferSize        int     `yaml:"buffer_size" toml:"buffer_size"`
	ConnectTimeoutMS  int     `yaml:"connect_timeout_ms" toml:"connect_timeout_ms"`
	CommandsPerSecond float64 `yaml:"commands_per_second" toml:"commands_per_second"` // 0 disables the limit
	CommandBurst      int     `yaml:"command_burst" toml:"command_burst"`
}

// ConnectTimeout returns the join timeout as a duration.
func (c RCSConfig) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutMS) * time.Millisecond
}

// JobsConfig controls the job system.
type JobsConfig struct {
	Workers int `yaml:"workers" toml:"workers"` // <= 0 is relative to the CPU count
	MaxJobs int `yaml:"max_jobs" toml:"max_jobs"`
}

// ConsoleConfig controls the developer console.
type ConsoleConfig struct {
	MaxLogs    int    `yaml:"max_logs" toml:"max_logs"`
	LogDir     string `yaml:"log_dir" toml:"log_dir"`
	ServerEcho bool   `yaml:"server_echo" toml:"server_echo"`
}

// StorageConfig controls the history database.
type StorageConfig struct {
	DBPath string `yaml:"db_path" toml:"db_path"`
}

// SSHConfig controls the SSH console server.
type SSHConfig struct {
	Address            string `yaml:"address" toml:"address"`
	HostKey            string `yaml:"host_key" toml:"host_key"`
	IdleTimeoutMinutes int    `yaml:"idle_timeout_minutes" toml:"idle_timeout_minutes"`
}

// IdleTimeout returns the idle timeout as a duration.
func (c SSHConfig) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMinutes) * time.Minute
}

// TickInterval returns the time between frames.
func (c EngineConfig) TickInterval() time.Duration {
	if c.TickRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(c.TickRate)
}

// Validate checks value ranges.
func (c Config) Validate() error {
	var errs []error

	if c.Engine.TickRate < 1 || c.Engine.TickRate > 1000 {
		errs = append(errs, fmt.Errorf("engine.tick_rate %d out of range 1..1000", c.Engine.TickRate))
	}
	if c.RCS.Port < 1 || c.RCS.Port > 65535 {
		errs = append(errs, fmt.Errorf("rcs.port %d out of range 1..65535", c.RCS.Port))
	}
	if c.RCS.BufferSize < 2 {
		errs = append(errs, fmt.Errorf("rcs.buffer_size %d must be at least 2", c.RCS.BufferSize))
	}
	if c.RCS.ConnectTimeoutMS < 0 {
		errs = append(errs, fmt.Errorf("rcs.connect_timeout_ms %d must not be negative", c.RCS.ConnectTimeoutMS))
	}
	if c.RCS.CommandsPerSecond < 0 {
		errs = append(errs, fmt.Errorf("rcs.commands_per_second %g must not be negative", c.RCS.CommandsPerSecond))
	}
	if c.Jobs.MaxJobs < 1 {
		errs = append(errs, fmt.Errorf("jobs.max_jobs %d must be positive", c.Jobs.MaxJobs))
	}
	if c.Console.MaxLogs < 1 {
		errs = append(errs, fmt.Errorf("console.max_logs %d must be positive", c.Console.MaxLogs))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid: %w", errors.Join(errs...))
	}
	return nil
}
