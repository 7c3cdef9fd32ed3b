// pkg/engine/intents.go
package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/r-umemoto/market-dashboard/pkg/domain/market"
	"github.com/r-umemoto/market-dashboard/pkg/domain/market/window"
)

type intent interface{}

type selectIntent struct {
	symbol string
}

type windowIntent struct {
	change window.Change
}

type refreshIntent struct {
	reply chan outcome
}

type trackIntent struct {
	symbol string
	reply  chan outcome
}

type deleteIntent struct {
	id    int64
	reply chan outcome
}

type outcome struct {
	ok  bool
	err error
}

// ---------------------------------------------------------
// ▼ 公開API（どのゴルーチンから呼んでもよい）
// ---------------------------------------------------------

// Select は銘柄を選択します
func (e *Engine) Select(symbol string) error {
	return e.send(context.Background(), selectIntent{symbol: symbol})
}

// ChangeRange は表示期間を変更します。粒度は必要に応じて自動で補正されます
func (e *Engine) ChangeRange(r market.TimeRange) error {
	return e.send(context.Background(), windowIntent{change: window.Change{Range: &r}})
}

// ChangeInterval は粒度を変更します。期間は必要に応じて自動で補正されます
func (e *Engine) ChangeInterval(i market.Interval) error {
	return e.send(context.Background(), windowIntent{change: window.Change{Interval: &i}})
}

// Refresh はバックエンドに再取得を依頼し、ウォッチリストを取り直します
func (e *Engine) Refresh(ctx context.Context) error {
	reply := make(chan outcome, 1)
	if err := e.send(ctx, refreshIntent{reply: reply}); err != nil {
		return err
	}
	return e.await(ctx, reply).err
}

// Track は銘柄の監視を依頼します。true ならバックエンドが受け付けたので入力欄を消してよい
func (e *Engine) Track(ctx context.Context, text string) (bool, error) {
	symbol := strings.ToUpper(strings.TrimSpace(text))
	if symbol == "" {
		return false, ErrEmptySymbol
	}

	reply := make(chan outcome, 1)
	if err := e.send(ctx, trackIntent{symbol: symbol, reply: reply}); err != nil {
		return false, err
	}
	out := e.await(ctx, reply)
	return out.ok, out.err
}

// Delete はユーザーの確認を取ったうえで監視を解除します。
// 確認で取り消された場合は (false, nil) を返します
func (e *Engine) Delete(ctx context.Context, id int64) (bool, error) {
	reply := make(chan outcome, 1)
	if err := e.send(ctx, deleteIntent{id: id, reply: reply}); err != nil {
		return false, err
	}
	out := e.await(ctx, reply)
	return out.ok, out.err
}

func (e *Engine) send(ctx context.Context, in intent) error {
	select {
	case e.intents <- in:
		return nil
	case <-e.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// await は返信・ループ終了・呼び出し側のキャンセルのうち最初に起きたものを返します
func (e *Engine) await(ctx context.Context, reply <-chan outcome) outcome {
	select {
	case out := <-reply:
		return out
	case <-e.done:
		// ループ終了と返信が同時に起きた場合は返信を優先する
		select {
		case out := <-reply:
			return out
		default:
			return outcome{err: ErrStopped}
		}
	case <-ctx.Done():
		return outcome{err: ctx.Err()}
	}
}

// ---------------------------------------------------------
// ▼ ループ内の処理
// ---------------------------------------------------------

func (e *Engine) handleIntent(in intent) {
	// 補正の通知は直後の1回だけ表示する
	e.notice = ""

	switch in := in.(type) {
	case selectIntent:
		e.handleSelect(in.symbol)
	case windowIntent:
		e.handleWindow(in.change)
	case refreshIntent:
		e.startSnapshotRefresh(e.backend.Refresh, func(err error) { e.respond(in.reply, outcome{ok: err == nil, err: err}) })
	case trackIntent:
		e.handleTrack(in)
	case deleteIntent:
		e.handleDelete(in)
	default:
		e.log.Warning("未知の操作です: %T", in)
	}
}

func (e *Engine) handleSelect(symbol string) {
	if sel, ok := e.store.Selected(); ok && sel.Symbol == symbol {
		return
	}
	if !e.store.SetSelection(symbol) {
		e.log.Warning("未監視の銘柄は選択できません: %s", symbol)
	}
}

func (e *Engine) handleWindow(change window.Change) {
	current := e.store.Window()
	next, adjusted := window.Apply(current, change)
	e.store.SetWindow(next)

	if adjusted {
		e.notice = adjustmentNotice(current, next, change)
		e.log.Info("表示条件を補正しました: %s -> %s", current, next)
	}
}

func adjustmentNotice(from, to market.Window, change window.Change) string {
	if change.Range != nil {
		return fmt.Sprintf("Interval %s is not available for %s; switched to %s", from.Interval, to.Range.Label(), to.Interval)
	}
	return fmt.Sprintf("Range %s is too long for %s bars; switched to %s", from.Range.Label(), to.Interval, to.Range.Label())
}

func (e *Engine) handleTrack(in trackIntent) {
	e.loading++
	e.spawn(func(ctx context.Context) func() {
		if err := e.backend.Track(ctx, in.symbol); err != nil {
			return func() {
				defer func() { e.loading-- }()
				e.log.Warning("銘柄登録失敗 (%s): %v", in.symbol, err)
				e.respond(in.reply, outcome{err: fmt.Errorf("銘柄登録失敗: %w", err)})
			}
		}

		list, err := e.backend.ListTracked(ctx)
		return func() {
			defer func() { e.loading-- }()
			if err != nil {
				// 登録自体は成功しているので、次の更新で反映される
				e.log.Error("登録後のウォッチリスト更新に失敗しました: %v", err)
			} else {
				e.store.UpsertSnapshot(list)
			}
			e.log.Info("📈 %s の監視を開始しました", in.symbol)
			e.respond(in.reply, outcome{ok: true})
		}
	})
}

func (e *Engine) handleDelete(in deleteIntent) {
	row, ok := e.store.FindByID(in.id)
	if !ok {
		e.respond(in.reply, outcome{err: fmt.Errorf("id=%d: %w", in.id, market.ErrNotTracked)})
		return
	}

	prompt := fmt.Sprintf("Remove %s from the watchlist?", row.Symbol)
	e.spawn(func(ctx context.Context) func() {
		if e.confirmer == nil || !e.confirmer.Confirm(ctx, prompt) {
			return func() {
				e.log.Debug("%s の削除は取り消されました", row.Symbol)
				e.respond(in.reply, outcome{})
			}
		}

		err := e.backend.DeleteTracked(ctx, in.id)
		return func() {
			if err != nil {
				e.log.Error("%s の削除に失敗しました: %v", row.Symbol, err)
				e.respond(in.reply, outcome{err: fmt.Errorf("削除失敗: %w", err)})
				return
			}
			e.store.RemoveTracked(in.id)
			e.log.Info("🗑️ %s の監視を解除しました", row.Symbol)
			e.respond(in.reply, outcome{ok: true})
		}
	})
}
