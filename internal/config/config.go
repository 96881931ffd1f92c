// Package config 负责加载 TOML 配置文件并补齐默认值。
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	Server    ServerConfig    `toml:"server"`
	Store     StoreConfig     `toml:"store"`
	Log       LogConfig       `toml:"log"`
	Binance   BinanceConfig   `toml:"binance"`
	Stream    StreamConfig    `toml:"stream"`
	Indicator IndicatorConfig `toml:"indicator"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type StoreConfig struct {
	// Path 为空时使用内存存储，不落盘。
	Path string `toml:"path"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

type BinanceConfig struct {
	APIKey      string `toml:"api_key"`
	APISecret   string `toml:"api_secret"`
	WSBaseURL   string `toml:"ws_base_url"`
	WSBatchSize int    `toml:"ws_batch_size"`
}

type StreamConfig struct {
	// Enabled 打开后启动时订阅实时 K 线喂给存储层。
	Enabled   bool     `toml:"enabled"`
	Symbols   []string `toml:"symbols"`
	Intervals []string `toml:"intervals"`
}

type IndicatorConfig struct {
	// Enabled 打开后查询图表时现算指标列叠加到记录上。
	Enabled    bool  `toml:"enabled"`
	EMAPeriods []int `toml:"ema_periods"`
	RSIPeriod  int   `toml:"rsi_period"`
	MACDFast   int   `toml:"macd_fast"`
	MACDSlow   int   `toml:"macd_slow"`
	MACDSignal int   `toml:"macd_signal"`
}

func (c *Config) withDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":9991"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if len(c.Stream.Intervals) == 0 {
		c.Stream.Intervals = []string{"1h"}
	}
}

// Load 读取 path 处的 TOML 配置；path 为空时返回纯默认配置。
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.withDefaults()
	return cfg, nil
}
