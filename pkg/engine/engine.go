// pkg/engine/engine.go
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/r-umemoto/market-dashboard/pkg/domain/market"
	"github.com/r-umemoto/market-dashboard/pkg/domain/store"
	"github.com/r-umemoto/market-dashboard/pkg/logger"
)

var (
	// ErrStopped は同期ループが既に止まっていることを表します
	ErrStopped = errors.New("engine is not running")
	// ErrEmptySymbol は空の銘柄コードで監視を依頼したことを表します（バックエンドには送りません）
	ErrEmptySymbol = errors.New("symbol is empty")
)

// Confirmer は削除など取り消せない操作の前に、ユーザーへ確認を求めます
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

// ConfirmFunc は関数を Confirmer として使うためのアダプターです
type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool {
	return f(ctx, prompt)
}

// Snapshot は描画側に渡す状態のコピーです
type Snapshot struct {
	store.Snapshot
	Loading    bool
	Notice     string
	PriceState LineageState
	RSIState   LineageState

	// 古くなって破棄した取得結果の累計
	PriceDiscarded int
	RSIDiscarded   int
}

// Engine はバックエンドとの同期を1本のループで統括する司令部です。
// SeriesStore を書き換えるのはこのループだけです
type Engine struct {
	backend   market.Backend
	store     *store.SeriesStore
	confirmer Confirmer
	log       *logger.Logger

	intents chan intent
	results chan func()
	updates chan struct{}
	done    chan struct{}

	snapshot atomic.Pointer[Snapshot]

	// ▼ ここから下はループ内でのみ触る
	ctx     context.Context
	loading int
	notice  string
	key     market.SeriesKey
	price   lineage
	rsi     lineage
	replies []func()
}

// New はエンジンを生成します。backend は起動時に1度だけ組み立てた接続を渡します
func New(backend market.Backend, confirmer Confirmer, w market.Window, log *logger.Logger) *Engine {
	e := &Engine{
		backend:   backend,
		store:     store.New(w),
		confirmer: confirmer,
		log:       log,
		intents:   make(chan intent, 16),
		results:   make(chan func(), 16),
		updates:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		price:     lineage{name: "history"},
		rsi:       lineage{name: "rsi"},
	}
	e.publish()
	return e
}

// Snapshot は最新の状態を返します。どのゴルーチンから呼んでも構いません
func (e *Engine) Snapshot() Snapshot {
	return *e.snapshot.Load()
}

// Updates は状態が変わるたびに通知されるチャネルです（連続した変更は1回にまとめられます）
func (e *Engine) Updates() <-chan struct{} {
	return e.updates
}

// Done はループが終了すると閉じられます
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Run は初回のウォッチリスト取得を行い、メインループを開始します
func (e *Engine) Run(ctx context.Context) error {
	e.ctx = ctx
	defer close(e.done)

	pushCh, err := e.backend.Start(ctx)
	if err != nil {
		return fmt.Errorf("プッシュ配信の開始に失敗: %w", err)
	}

	e.log.Info("🚀 ダッシュボードの同期を開始します...")
	e.startSnapshotRefresh(nil, func(error) {})
	e.publish()

	// メインループ（すべてを1つのselectで統括する）
Loop:
	for {
		select {
		case <-ctx.Done():
			e.log.Info("🚨 終了シグナルを検知！同期ループを停止します...")
			break Loop

		case u, ok := <-pushCh: // 相場のプッシュ配信
			if !ok {
				e.log.Warning("プッシュ配信が切断されました。以降は手動更新のみ反映されます")
				pushCh = nil
				continue
			}
			if !e.store.ApplyPushUpdate(u) {
				e.log.Debug("未監視の銘柄の更新を無視しました: %s", u.Symbol)
			}

		case in := <-e.intents: // ユーザー操作
			e.handleIntent(in)

		case apply := <-e.results: // 非同期リクエストの結果
			apply()
		}

		e.reconcile()
		e.publish()
		e.flushReplies()
	}

	return nil
}

// reconcile は (銘柄, 期間, 粒度) が変わっていれば系列を取り直します
func (e *Engine) reconcile() {
	key := e.store.Key()
	if key == e.key {
		return
	}
	e.key = key
	e.price.restart(key)
	e.rsi.restart(key)

	if key.IsZero() {
		// 未選択になったら、取得中の結果を待たずに空にする
		e.store.ClearSeries()
		return
	}

	e.log.Debug("系列を取得します: %s", key)
	e.fetchSeries(&e.price, key, e.backend.History, e.store.SetPriceSeries)
	e.fetchSeries(&e.rsi, key, e.backend.RSI, e.store.SetRsiSeries)
}

func (e *Engine) fetchSeries(l *lineage, key market.SeriesKey, fetch func(context.Context, market.SeriesKey) (market.Series, error), set func(market.Series)) {
	seq := l.seq
	e.spawn(func(ctx context.Context) func() {
		series, err := fetch(ctx, key)
		return func() {
			if !l.accepts(seq, key) || key != e.store.Key() {
				e.log.Debug("古い%s結果を破棄しました: %s", l.name, key)
				l.discard(seq)
				return
			}
			if err != nil {
				e.log.Error("%s の取得に失敗しました (%s): %v", l.name, key, err)
				l.state = LINEAGE_FAILED
				return
			}
			set(series)
			l.state = LINEAGE_APPLIED
		}
	})
}

// spawn は work を別ゴルーチンで実行し、返ってきた関数をループ上で実行します
func (e *Engine) spawn(work func(ctx context.Context) func()) {
	go func() {
		apply := work(e.ctx)
		select {
		case e.results <- apply:
		case <-e.ctx.Done():
		}
	}()
}

// startSnapshotRefresh はウォッチリスト全体を取り直します。
// before があれば先に実行し、失敗したらウォッチリストは取得しません
func (e *Engine) startSnapshotRefresh(before func(ctx context.Context) error, reply func(error)) {
	e.loading++
	e.spawn(func(ctx context.Context) func() {
		var list []market.TrackedSymbol
		var err error
		if before != nil {
			err = before(ctx)
		}
		if err == nil {
			list, err = e.backend.ListTracked(ctx)
		}

		return func() {
			// 成否にかかわらずローディング表示は必ず解除する
			defer func() { e.loading-- }()

			if err != nil {
				e.log.Error("ウォッチリストの更新に失敗しました: %v", err)
				reply(err)
				return
			}
			e.store.UpsertSnapshot(list)
			e.log.Debug("ウォッチリストを更新しました (%d 銘柄)", len(list))
			reply(nil)
		}
	})
}

// respond は返信を予約します。返信は次の publish の後に届くので、
// 呼び出し側は戻った時点で Snapshot に結果が反映されています
func (e *Engine) respond(reply chan<- outcome, out outcome) {
	e.replies = append(e.replies, func() { reply <- out })
}

func (e *Engine) flushReplies() {
	for _, send := range e.replies {
		send()
	}
	e.replies = e.replies[:0]
}

func (e *Engine) publish() {
	snap := &Snapshot{
		Snapshot:   e.store.Snapshot(),
		Loading:    e.loading > 0,
		Notice:     e.notice,
		PriceState: e.price.state,
		RSIState:   e.rsi.state,

		PriceDiscarded: e.price.discarded,
		RSIDiscarded:   e.rsi.discarded,
	}
	e.snapshot.Store(snap)

	select {
	case e.updates <- struct{}{}:
	default:
	}
}
