// pkg/view/adapter.go
package view

import (
	"context"
	"fmt"

	"github.com/r-umemoto/market-dashboard/pkg/domain/market"
	"github.com/r-umemoto/market-dashboard/pkg/engine"
)

// Adapter は画面側からエンジンを操作するための窓口です。
// 入力をドメインの型に変換するだけで、間引きや遅延はしません
type Adapter struct {
	engine *engine.Engine
}

func NewAdapter(e *engine.Engine) *Adapter {
	return &Adapter{engine: e}
}

// GetSnapshot は最新の状態を返します
func (a *Adapter) GetSnapshot() engine.Snapshot {
	return a.engine.Snapshot()
}

// Updates は状態が変わったことを知らせるチャネルです
func (a *Adapter) Updates() <-chan struct{} {
	return a.engine.Updates()
}

// Frame は最新の状態を描画用の形にして返します
func (a *Adapter) Frame() Frame {
	return Present(a.engine.Snapshot())
}

func (a *Adapter) SelectSymbol(symbol string) error {
	return a.engine.Select(symbol)
}

// ChangeRange は "1y" のような文字列を受け取ります。不明な値なら何も変えずにエラーを返します
func (a *Adapter) ChangeRange(value string) error {
	r, err := market.ParseTimeRange(value)
	if err != nil {
		return fmt.Errorf("期間の指定が不正です: %w", err)
	}
	return a.engine.ChangeRange(r)
}

// ChangeInterval は "5m" のような文字列を受け取ります。不明な値なら何も変えずにエラーを返します
func (a *Adapter) ChangeInterval(value string) error {
	i, err := market.ParseInterval(value)
	if err != nil {
		return fmt.Errorf("粒度の指定が不正です: %w", err)
	}
	return a.engine.ChangeInterval(i)
}

// TrackSymbol は true が返ったら入力欄を空にしてよいことを表します
func (a *Adapter) TrackSymbol(ctx context.Context, text string) (bool, error) {
	return a.engine.Track(ctx, text)
}

func (a *Adapter) DeleteSymbol(ctx context.Context, id int64) (bool, error) {
	return a.engine.Delete(ctx, id)
}

func (a *Adapter) Refresh(ctx context.Context) error {
	return a.engine.Refresh(ctx)
}
