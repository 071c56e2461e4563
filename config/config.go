package config

import (
	"errors"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
)

// EnvPrefix 环境变量前缀，如 GRIDSYNC_ADDR
const EnvPrefix = "GRIDSYNC"

// ServerConfig 服务端配置
type ServerConfig struct {
	Addr       string `mapstructure:"addr"`
	ServerName string `mapstructure:"server_name"`
	ServerID   string `mapstructure:"server_id"`
	RoomID     string `mapstructure:"room_id"`

	MapWidth  int32 `mapstructure:"map_width"`
	MapHeight int32 `mapstructure:"map_height"`
	SpawnX    int32 `mapstructure:"spawn_x"`
	SpawnY    int32 `mapstructure:"spawn_y"`

	// 出站不可靠消息的模拟丢包与延迟，用于调试和解
	SimulateDropProb float64 `mapstructure:"simulate_drop_prob"`
	SimulateDelayMs  int     `mapstructure:"simulate_delay_ms"`

	LogFile  string `mapstructure:"log_file"`
	LogLevel string `mapstructure:"log_level"`
}

// ClientConfig 无界面客户端配置
type ClientConfig struct {
	ServerURL  string `mapstructure:"server_url"`
	PlayerName string `mapstructure:"player_name"`
	Bot        string `mapstructure:"bot"` // idle | square | random
	BotSeed    int64  `mapstructure:"bot_seed"`

	LogFile  string `mapstructure:"log_file"`
	LogLevel string `mapstructure:"log_level"`
}

func serverDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8080")
	v.SetDefault("server_name", "gridsync")
	v.SetDefault("server_id", "gridsync-1")
	v.SetDefault("room_id", "room-1")
	v.SetDefault("map_width", 64)
	v.SetDefault("map_height", 64)
	v.SetDefault("spawn_x", 32)
	v.SetDefault("spawn_y", 32)
	v.SetDefault("simulate_drop_prob", 0.0)
	v.SetDefault("simulate_delay_ms", 0)
	v.SetDefault("log_file", "server.log")
	v.SetDefault("log_level", "info")
}

func clientDefaults(v *viper.Viper) {
	v.SetDefault("server_url", "ws://localhost:8080/ws")
	v.SetDefault("player_name", "player")
	v.SetDefault("bot", "square")
	v.SetDefault("bot_seed", 1)
	v.SetDefault("log_file", "client.log")
	v.SetDefault("log_level", "info")
}

// newViper 默认值 < 配置文件 < .env / 环境变量
func newViper(path string, defaults func(*viper.Viper)) (*viper.Viper, error) {
	// .env 可选，不存在不报错
	_ = godotenv.Load()

	v := viper.New()
	defaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, eris.Wrapf(err, "read config %s", path)
			}
		}
	}
	return v, nil
}

// LoadServer 读取服务端配置；path 为空时只用默认值与环境变量
func LoadServer(path string) (ServerConfig, error) {
	var cfg ServerConfig
	v, err := newViper(path, serverDefaults)
	if err != nil {
		return cfg, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, eris.Wrap(err, "decode server config")
	}
	return cfg, cfg.Validate()
}

// LoadClient 读取客户端配置
func LoadClient(path string) (ClientConfig, error) {
	var cfg ClientConfig
	v, err := newViper(path, clientDefaults)
	if err != nil {
		return cfg, err
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, eris.Wrap(err, "decode client config")
	}
	return cfg, cfg.Validate()
}

// Validate 检查取值范围
func (c ServerConfig) Validate() error {
	if c.MapWidth <= 0 || c.MapHeight <= 0 {
		return eris.Errorf("map size %dx%d must be positive", c.MapWidth, c.MapHeight)
	}
	if c.SpawnX <= 0 || c.SpawnY <= 0 || c.SpawnX >= c.MapWidth-1 || c.SpawnY >= c.MapHeight-1 {
		return eris.Errorf("spawn (%d,%d) outside walkable area", c.SpawnX, c.SpawnY)
	}
	if c.SimulateDropProb < 0 || c.SimulateDropProb > 1 {
		return eris.Errorf("simulate_drop_prob %.2f not in [0,1]", c.SimulateDropProb)
	}
	if c.SimulateDelayMs < 0 {
		return eris.Errorf("simulate_delay_ms %d is negative", c.SimulateDelayMs)
	}
	return nil
}

func (c ClientConfig) Validate() error {
	switch c.Bot {
	case "idle", "square", "random":
		return nil
	}
	return eris.Errorf("unknown bot %q", c.Bot)
}
