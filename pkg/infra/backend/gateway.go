// pkg/infra/backend/gateway.go
package backend

import (
	"context"

	"github.com/r-umemoto/market-dashboard/pkg/domain/market"
	"github.com/r-umemoto/market-dashboard/pkg/logger"
)

var _ market.Backend = (*Gateway)(nil)

// Gateway は REST クライアントとプッシュ配信をまとめ、market.Backend として振る舞います
type Gateway struct {
	*Client
	wsClient *WSClient
	log      *logger.Logger
}

// NewGateway は Gateway を生成します
func NewGateway(client *Client, wsClient *WSClient, log *logger.Logger) *Gateway {
	return &Gateway{
		Client:   client,
		wsClient: wsClient,
		log:      log,
	}
}

// Start は market.Backend の実装です。
// 受信ループを裏側で起動し、ドメインの型に変換したチャネルだけを返します
func (g *Gateway) Start(ctx context.Context) (<-chan market.QuoteUpdate, error) {
	rawCh := make(chan PriceUpdateMessage, 100)
	quoteCh := make(chan market.QuoteUpdate, 100)

	// 1. WebSocketの受信を裏側で起動
	go func() {
		defer close(rawCh)
		if err := g.wsClient.Listen(ctx, rawCh); err != nil {
			g.log.Error("プッシュ配信が停止しました: %v", err)
		}
	}()

	// 2. 変換層（アダプター処理）
	go func() {
		defer close(quoteCh)
		for msg := range rawCh {
			select {
			case quoteCh <- msg.ToQuoteUpdate():
			case <-ctx.Done():
				return
			}
		}
	}()

	return quoteCh, nil
}
