package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"
)

// Config 服务器运行配置，启动时确定，运行期间不再修改
type Config struct {
	Port               int    `json:"port"`
	MaxClients         int    `json:"max_clients"`
	LogPackets         bool   `json:"log_packets"`
	TraceSubscriptions bool   `json:"trace_subscriptions"`
	TraceMessages      bool   `json:"trace_messages"`
	Quiet              bool   `json:"quiet"`
	ArtificialDelayMs  int    `json:"artificial_delay_ms"`
	DebugMode          bool   `json:"debug_mode"`
	JournalURI         string `json:"journal_uri"`
	AppName            string `json:"app_name"`
}

// Default returns the configuration used when no flag or file overrides it.
func Default() Config {
	return Config{
		Port:          1883,
		MaxClients:    8,
		TraceMessages: true,
		AppName:       "mqtt-debug-broker",
	}
}

// LoadFile 从 JSON 配置文件读取配置
func LoadFile(path string) (Config, error) {
	cfg := Default()

	bytes, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("error occured while reading config file %s, details: %v", path, err)
	}

	if err := json.Unmarshal(bytes, &cfg); err != nil {
		return cfg, errors.New("the configuration file does not contain valid JSON")
	}

	return cfg, nil
}

func (c Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid listening port %d, except 1-65535", c.Port)
	}
	if c.MaxClients <= 0 {
		return fmt.Errorf("invalid max clients %d, except > 0", c.MaxClients)
	}
	if c.ArtificialDelayMs < 0 {
		return fmt.Errorf("invalid artificial delay %dms, except >= 0", c.ArtificialDelayMs)
	}
	return nil
}

// ConnectDelay CONNECT 处理时的人为延迟时长
func (c Config) ConnectDelay() time.Duration {
	return time.Duration(c.ArtificialDelayMs) * time.Millisecond
}
