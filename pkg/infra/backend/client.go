// pkg/infra/backend/client.go
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/go-resty/resty/v2"

	"github.com/r-umemoto/market-dashboard/pkg/domain/market"
)

// Client はダッシュボード用バックエンドの REST API を呼び出します
type Client struct {
	http *resty.Client
}

// NewClient は設定からクライアントを生成します
func NewClient(cfg Config) *Client {
	http := resty.New().
		SetBaseURL(cfg.APIURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "market-dashboard/1.0")

	return &Client{http: http}
}

// doRequest は共通の送信処理です。4xx/5xx や通信エラーを BackendError に変換します
func (c *Client) doRequest(ctx context.Context, op string, req func(r *resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	resp, err := req(c.http.R().SetContext(ctx))
	if err != nil {
		return nil, &market.BackendError{Op: op, Err: fmt.Errorf("%w: %v", market.ErrTransport, err)}
	}

	if resp.IsError() {
		var body ErrorResponse
		_ = json.Unmarshal(resp.Body(), &body)

		kind := market.ErrTransport
		if resp.StatusCode() < 500 {
			kind = market.ErrRejected
		}
		return nil, &market.BackendError{Op: op, Status: resp.StatusCode(), Message: body.Error, Err: kind}
	}
	return resp, nil
}

// --- 以下、各APIの実装 ---

// Ping はバックエンドが応答するかを確認します
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.doRequest(ctx, "ping", func(r *resty.Request) (*resty.Response, error) {
		return r.Get("/ping")
	})
	return err
}

// ListTracked はウォッチリスト全体を取得します
func (c *Client) ListTracked(ctx context.Context) ([]market.TrackedSymbol, error) {
	resp, err := c.doRequest(ctx, "list tracked", func(r *resty.Request) (*resty.Response, error) {
		return r.Get("/tracked")
	})
	if err != nil {
		return nil, err
	}

	var list []market.TrackedSymbol
	if err := json.Unmarshal(resp.Body(), &list); err != nil {
		return nil, fmt.Errorf("レスポンス解析エラー: %w", err)
	}
	return list, nil
}

// Track は銘柄の監視を開始するよう依頼します
func (c *Client) Track(ctx context.Context, symbol string) error {
	_, err := c.doRequest(ctx, "track", func(r *resty.Request) (*resty.Response, error) {
		return r.SetBody(TrackRequest{Symbol: symbol}).Post("/track")
	})
	return err
}

// DeleteTracked は ID を指定して監視を解除します
func (c *Client) DeleteTracked(ctx context.Context, id int64) error {
	_, err := c.doRequest(ctx, "delete tracked", func(r *resty.Request) (*resty.Response, error) {
		return r.SetPathParam("id", strconv.FormatInt(id, 10)).Delete("/tracked/{id}")
	})
	return err
}

// Refresh はバックエンド側での相場の再取得を依頼します
func (c *Client) Refresh(ctx context.Context) error {
	_, err := c.doRequest(ctx, "refresh", func(r *resty.Request) (*resty.Response, error) {
		return r.Post("/refresh")
	})
	return err
}

// History は価格系列（ローソク足）を取得します
func (c *Client) History(ctx context.Context, key market.SeriesKey) (market.Series, error) {
	resp, err := c.doRequest(ctx, "history", func(r *resty.Request) (*resty.Response, error) {
		return seriesRequest(r, key).Get("/history/{symbol}")
	})
	if err != nil {
		return market.Series{}, err
	}

	var points []HistoryPoint
	if err := json.Unmarshal(resp.Body(), &points); err != nil {
		return market.Series{}, fmt.Errorf("レスポンス解析エラー: %w", err)
	}
	return toPriceSeries(points)
}

// RSI はRSI系列を取得します
func (c *Client) RSI(ctx context.Context, key market.SeriesKey) (market.Series, error) {
	resp, err := c.doRequest(ctx, "rsi", func(r *resty.Request) (*resty.Response, error) {
		return seriesRequest(r, key).Get("/rsi/{symbol}")
	})
	if err != nil {
		return market.Series{}, err
	}

	var points []RSIPoint
	if err := json.Unmarshal(resp.Body(), &points); err != nil {
		return market.Series{}, fmt.Errorf("レスポンス解析エラー: %w", err)
	}
	return toRSISeries(points)
}

func seriesRequest(r *resty.Request, key market.SeriesKey) *resty.Request {
	return r.
		SetPathParam("symbol", key.Symbol).
		SetQueryParams(map[string]string{
			"period":   string(key.Window.Range),
			"interval": string(key.Window.Interval),
		})
}
