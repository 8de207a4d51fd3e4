package config

import (
	_ "embed"
)

//go:embed defaults/bread.yaml
var defaultYAML []byte

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			Name:     "Bread",
			TickRate: 60,
		},
		Log: LogConfig{
			Level: "info",
		},
		RCS: RCSConfig{
			Port:              4325,
			GamePort:          4334,
			BufferSize:        256,
			ConnectTimeoutMS:  5000,
			CommandsPerSecond: 0,
			CommandBurst:      20,
		},
		Jobs: JobsConfig{
			Workers: -2,
			MaxJobs: 1024,
		},
		Console: ConsoleConfig{
			MaxLogs: 1000,
			LogDir:  "logs",
		},
		Storage: StorageConfig{
			DBPath: "~/.bread/history.db",
		},
		SSH: SSHConfig{
			Address:            ":23235",
			HostKey:            ".ssh/bread_ed25519",
			IdleTimeoutMinutes: 30,
		},
	}
}

// DefaultYAML returns the embedded default configuration file.
func DefaultYAML() []byte {
	return defaultYAML
}
