// pkg/config/config.go
package config

import (
	"fmt"
	"net/url"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/r-umemoto/market-dashboard/pkg/domain/market"
	"github.com/r-umemoto/market-dashboard/pkg/domain/market/window"
	"github.com/r-umemoto/market-dashboard/pkg/infra/backend"
)

// AppConfig はダッシュボード全体の設定です
type AppConfig struct {
	LogLevel        string         `envconfig:"LOG_LEVEL" default:"INFO"`
	DefaultRange    string         `envconfig:"DEFAULT_RANGE" default:"1y"`
	DefaultInterval string         `envconfig:"DEFAULT_INTERVAL" default:"1d"`
	Backend         backend.Config `envconfig:"BACKEND"` // BACKEND_API_URL のように読み込まれます
}

// Load は .env と環境変数から設定を読み込みます
func Load() (*AppConfig, error) {
	// .env が存在しない環境もあるため、エラーは無視する
	_ = godotenv.Load()

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate は起動前に設定の整合性を確認します
func (c *AppConfig) Validate() error {
	if _, err := c.Window(); err != nil {
		return err
	}
	u, err := url.Parse(c.Backend.APIURL)
	if err != nil || u.Host == "" {
		return fmt.Errorf("BACKEND_API_URL が不正です: %q", c.Backend.APIURL)
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("BACKEND_TIMEOUT は正の値にしてください: %s", c.Backend.Timeout)
	}
	return nil
}

// Window は起動時の表示条件を返します。組み合わせが不正なら粒度を補正します
func (c *AppConfig) Window() (market.Window, error) {
	r, err := market.ParseTimeRange(c.DefaultRange)
	if err != nil {
		return market.Window{}, err
	}
	i, err := market.ParseInterval(c.DefaultInterval)
	if err != nil {
		return market.Window{}, err
	}
	return window.Normalize(market.Window{Range: r, Interval: i}), nil
}
