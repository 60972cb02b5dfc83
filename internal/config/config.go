package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// 配送先 (deliver_on) の値
const (
	DeliverOnCaller = "caller"
	DeliverOnMain   = "main"
)

// Config は CLI のデフォルト値を保持します。コマンドラインフラグが指定された場合はそちらが優先されます。
type Config struct {
	TimeoutSec     int    `yaml:"timeout"`
	MaxRetries     int    `yaml:"max_retries"`
	MaxConcurrency int    `yaml:"max_concurrency"`
	UserAgent      string `yaml:"user_agent"`
	DeliverOn      string `yaml:"deliver_on"`
}

// Default は設定ファイルが無い場合の値を返します。
func Default() Config {
	return Config{
		TimeoutSec:     10,
		MaxRetries:     3,
		MaxConcurrency: 6,
		DeliverOn:      DeliverOnCaller,
	}
}

// Timeout は TimeoutSec を time.Duration に変換します。
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}

// Validate は値の範囲を確認します。
func (c Config) Validate() error {
	if c.TimeoutSec < 0 {
		return fmt.Errorf("timeout は 0 以上である必要があります: %d", c.TimeoutSec)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries は 0 以上である必要があります: %d", c.MaxRetries)
	}
	if c.DeliverOn != DeliverOnCaller && c.DeliverOn != DeliverOnMain {
		return fmt.Errorf("deliver_on は %q または %q を指定してください: %q", DeliverOnCaller, DeliverOnMain, c.DeliverOn)
	}
	return nil
}

// Load は path の YAML を読み込み、Default() の値に上書きして返します。
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("設定ファイルの読み込みエラー: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("設定ファイルの解析エラー: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("設定ファイルの値が不正です: %w", err)
	}
	return cfg, nil
}
