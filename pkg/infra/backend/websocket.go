// pkg/infra/backend/websocket.go
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/r-umemoto/market-dashboard/pkg/logger"
)

const (
	// サーバーからの ping がこの時間途絶えたら切断とみなす
	defaultReadTimeout = 60 * time.Second
	writeWait          = 5 * time.Second
)

// WSClient はプッシュ配信（WebSocket）の受信を担当します
type WSClient struct {
	URL         string
	ReadTimeout time.Duration

	dialer *websocket.Dialer
	log    *logger.Logger
}

// NewWSClient はWebSocketクライアントを生成します
func NewWSClient(url string, log *logger.Logger) *WSClient {
	return &WSClient{
		URL:         url,
		ReadTimeout: defaultReadTimeout,
		dialer:      websocket.DefaultDialer,
		log:         log,
	}
}

// Listen はサーバーに接続し、受信した price_update をチャネル(ch)に流し続けます。
// ctx のキャンセルか、読み取りエラー（切断）で戻ります。再接続はしません
func (w *WSClient) Listen(ctx context.Context, ch chan<- PriceUpdateMessage) error {
	// 1. サーバーへ接続
	w.log.Info("WebSocket接続開始: %s", w.URL)
	conn, _, err := w.dialer.DialContext(ctx, w.URL, nil)
	if err != nil {
		return fmt.Errorf("WebSocket接続エラー: %w", err)
	}
	defer conn.Close()
	w.log.Info("WebSocket接続成功！価格の監視をスタートします。")

	// ctx が終わったら接続を閉じて ReadMessage を抜けさせる
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-stop:
		}
	}()

	w.extendDeadline(conn)
	conn.SetPingHandler(func(appData string) error {
		w.extendDeadline(conn)
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	// 2. データの受信ループ（切断されるまで続く）
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("WebSocket読み取りエラー (切断されました): %w", err)
		}
		w.extendDeadline(conn)

		// 3. 受け取ったJSONを構造体に変換
		var env PushEnvelope
		if err := json.Unmarshal(message, &env); err != nil {
			w.log.Warning("JSONパースエラー: %v", err)
			continue
		}
		if env.Event != EventPriceUpdate || env.Data.Symbol == "" {
			continue
		}

		// 4. 解析したデータをチャネルに流す
		select {
		case ch <- env.Data:
		case <-ctx.Done():
			return nil
		}
	}
}

func (w *WSClient) extendDeadline(conn *websocket.Conn) {
	if w.ReadTimeout <= 0 {
		return
	}
	_ = conn.SetReadDeadline(time.Now().Add(w.ReadTimeout))
}
