// internal/mockserver/config.go
package mockserver

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config は開発用モックバックエンドの設定です
type Config struct {
	Addr     string `envconfig:"MOCK_ADDR" default:":8000"`
	SeedFile string `envconfig:"MOCK_SEED_FILE"`
	PushSpec string `envconfig:"MOCK_PUSH_SPEC" default:"@every 10s"` // cron 形式
	RandSeed int64  `envconfig:"MOCK_RAND_SEED" default:"42"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"INFO"`
}

// LoadConfig は .env と環境変数から設定を読み込みます
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SeedSymbol は起動時にウォッチリストへ入れておく銘柄です
type SeedSymbol struct {
	Symbol    string  `yaml:"symbol"`
	LongName  string  `yaml:"long_name"`
	Price     float64 `yaml:"price"`
	MarketCap float64 `yaml:"market_cap"`
	Currency  string  `yaml:"currency"`
	Tracked   bool    `yaml:"tracked"`
}

// Seed はシードファイル全体です。tracked: false の銘柄は「既知の銘柄」として価格だけ使います
type Seed struct {
	Symbols []SeedSymbol `yaml:"symbols"`
}

// DefaultSeed はシードファイルが指定されなかったときの初期データです
var DefaultSeed = Seed{Symbols: []SeedSymbol{
	{Symbol: "AAPL", LongName: "Apple Inc.", Price: 189.84, MarketCap: 2.95e12, Currency: "USD", Tracked: true},
	{Symbol: "MSFT", LongName: "Microsoft Corporation", Price: 415.50, MarketCap: 3.09e12, Currency: "USD", Tracked: true},
	{Symbol: "NVDA", LongName: "NVIDIA Corporation", Price: 875.28, MarketCap: 2.19e12, Currency: "USD"},
	{Symbol: "TSLA", LongName: "Tesla, Inc.", Price: 171.05, MarketCap: 5.45e11, Currency: "USD"},
}}

// LoadSeed は YAML のシードファイルを読み込みます。path が空なら DefaultSeed を返します
func LoadSeed(path string) (Seed, error) {
	if path == "" {
		return DefaultSeed, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Seed{}, fmt.Errorf("シードファイル読み込みエラー: %w", err)
	}

	var seed Seed
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return Seed{}, fmt.Errorf("シードファイル解析エラー: %w", err)
	}
	return seed, nil
}
