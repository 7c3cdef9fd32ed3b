// pkg/infra/backend/config.go
package backend

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Config はダッシュボード用バックエンドに接続するための設定です
type Config struct {
	APIURL  string        `envconfig:"API_URL" default:"http://127.0.0.1:8000"`
	WSPath  string        `envconfig:"WS_PATH" default:"/ws"`
	Timeout time.Duration `envconfig:"TIMEOUT" default:"10s"`
}

// WebSocketURL は API の URL からプッシュ配信の URL を組み立てます
func (c Config) WebSocketURL() (string, error) {
	u, err := url.Parse(c.APIURL)
	if err != nil {
		return "", fmt.Errorf("API URL が不正です: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("未対応のスキームです: %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(c.WSPath, "/")
	return u.String(), nil
}
