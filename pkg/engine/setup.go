// pkg/engine/setup.go
package engine

import (
	"context"
	"fmt"

	"github.com/r-umemoto/market-dashboard/pkg/config"
	"github.com/r-umemoto/market-dashboard/pkg/domain/market"
	"github.com/r-umemoto/market-dashboard/pkg/infra/backend"
	"github.com/r-umemoto/market-dashboard/pkg/logger"
)

// BuildEngine は、システム全体を俯瞰する「目次」です
func BuildEngine(ctx context.Context, cfg *config.AppConfig, confirmer Confirmer, log *logger.Logger) (*Engine, error) {
	// 1. インフラ層の構築（泥臭い設定はすべてここへ）
	gateway, err := buildInfrastructure(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	// 2. 起動時の表示条件
	w, err := cfg.Window()
	if err != nil {
		return nil, fmt.Errorf("表示条件が不正です: %w", err)
	}

	// 3. エンジンの完成
	return New(gateway, confirmer, w, log.Named("engine")), nil
}

// ---------------------------------------------------------
// ▼ ここから下は「下請け工場（プライベート関数）」に押し込む
// ---------------------------------------------------------

func buildInfrastructure(ctx context.Context, cfg *config.AppConfig, log *logger.Logger) (market.Backend, error) {
	client := backend.NewClient(cfg.Backend)

	// 疎通確認。失敗しても起動は続け、後続のリクエストでエラーを表示する
	if err := client.Ping(ctx); err != nil {
		log.Warning("バックエンドに接続できません (%s): %v", cfg.Backend.APIURL, err)
	}

	wsURL, err := cfg.Backend.WebSocketURL()
	if err != nil {
		return nil, fmt.Errorf("プッシュ配信のURLを組み立てられません: %w", err)
	}
	wsClient := backend.NewWSClient(wsURL, log.Named("ws"))

	return backend.NewGateway(client, wsClient, log.Named("gateway")), nil
}
