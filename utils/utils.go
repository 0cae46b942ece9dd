package utils

import (
	"errors"
	"io/fs"
	"math"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type NetConfig struct {
	Transport string `toml:"transport"`
}

type ServerConfig struct {
	Listen     string `toml:"listen"`
	TickRate   int    `toml:"tick_rate"`
	MaxPlayers int    `toml:"max_players"`
	DebugAddr  string `toml:"debug_addr"`
	RecordPath string `toml:"record_path"`
}

type ClientConfig struct {
	Server   string `toml:"server"`
	TickRate int    `toml:"tick_rate"`
}

type PlayerConfig struct {
	Speed float64 `toml:"speed"`
}

type LogConfig struct {
	File  string `toml:"file"`
	Debug bool   `toml:"debug"`
}

type MathConfig struct {
	Float64EqualityThreshold float64 `toml:"float64_equality_threshold"`
}

type Config struct {
	Net    NetConfig
	Server ServerConfig
	Client ClientConfig
	Player PlayerConfig
	Log    LogConfig
	Math   MathConfig
}

func DefaultConfig() *Config {
	return &Config{
		Net: NetConfig{Transport: "udp"},
		Server: ServerConfig{
			Listen:     "127.0.0.1:5000",
			TickRate:   60,
			MaxPlayers: 64,
		},
		Client: ClientConfig{
			Server:   "127.0.0.1:5000",
			TickRate: 60,
		},
		Player: PlayerConfig{Speed: 100},
		Math:   MathConfig{Float64EqualityThreshold: 1e-6},
	}
}

// LoadConfig reads fileName over the defaults; a missing file just means
// defaults.
func LoadConfig(fileName string) (*Config, error) {
	config := DefaultConfig()

	file, err := os.ReadFile(fileName)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(file, config); err != nil {
		return nil, err
	}
	return config, nil
}

func AlmostEqual(a, b, threshold float64) bool {
	return math.Abs(a-b) <= threshold
}
