// cmd/dashboard/main.go
package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/r-umemoto/market-dashboard/pkg/config"
	"github.com/r-umemoto/market-dashboard/pkg/engine"
	"github.com/r-umemoto/market-dashboard/pkg/logger"
	"github.com/r-umemoto/market-dashboard/pkg/view"
)

func main() {
	fmt.Println("📊 マーケットダッシュボード、起動シーケンス開始。")

	// 1. 設定の読み込み
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}
	appLog := logger.New("dashboard", logger.ParseLevel(cfg.LogLevel))

	// 2. Ctrl+C で安全に止めるためのコンテキスト
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. エンジンの組み立て（削除の確認はコンソールで受け付ける）
	confirmer := newConsoleConfirmer()
	eng, err := engine.BuildEngine(ctx, cfg, confirmer, appLog)
	if err != nil {
		log.Fatalf("エンジンの構築に失敗しました: %v", err)
	}
	adapter := view.NewAdapter(eng)

	go func() {
		if err := eng.Run(ctx); err != nil {
			appLog.Error("同期ループが異常終了しました: %v", err)
			stop()
		}
	}()

	// 4. 標準入力を1行ずつ読むゴルーチン
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Println(helpText)

	// 5. メインループ（描画・入力・確認をすべてここで捌く）
	var pending *confirmRequest
	for {
		select {
		case <-ctx.Done():
			<-eng.Done()
			fmt.Println("ダッシュボードを安全にシャットダウンしました。")
			return

		case <-adapter.Updates():
			if pending == nil {
				fmt.Println(render(adapter.Frame()))
			}

		case req := <-confirmer.requests:
			pending = &req
			fmt.Printf("❓ %s [y/N] ", req.prompt)

		case line, ok := <-lines:
			if !ok {
				stop()
				lines = nil
				continue
			}
			if pending != nil {
				pending.answer <- isYes(line)
				pending = nil
				continue
			}

			cmd, err := parseCommand(line)
			if err != nil {
				fmt.Println("⚠️", err)
				continue
			}
			if cmd.name == cmdQuit {
				stop()
				continue
			}
			// 応答待ちになる操作だけ別ゴルーチンで実行する（確認待ちでループを塞がないため）。
			// 選択・期間・粒度は入力順のままエンジンに届ける
			if cmd.awaitsReply() {
				go execute(ctx, adapter, cmd)
			} else {
				execute(ctx, adapter, cmd)
			}
		}
	}
}

// execute はコマンド1つをエンジンに渡し、結果をコンソールに表示します
func execute(ctx context.Context, a *view.Adapter, cmd command) {
	var err error
	switch cmd.name {
	case cmdHelp:
		fmt.Println(helpText)
	case cmdSelect:
		err = a.SelectSymbol(cmd.arg)
	case cmdRange:
		err = a.ChangeRange(cmd.arg)
	case cmdInterval:
		err = a.ChangeInterval(cmd.arg)
	case cmdRefresh:
		if err = a.Refresh(ctx); err == nil {
			fmt.Println("🔄 ウォッチリストを更新しました")
		}
	case cmdTrack:
		var ok bool
		if ok, err = a.TrackSymbol(ctx, cmd.arg); ok {
			fmt.Printf("✅ %s の監視を開始しました\n", cmd.arg)
		}
	case cmdDelete:
		row, found := findRow(a.GetSnapshot(), cmd.arg)
		if !found {
			fmt.Printf("⚠️ %s はウォッチリストにありません\n", cmd.arg)
			return
		}
		var ok bool
		if ok, err = a.DeleteSymbol(ctx, row.ID); ok {
			fmt.Printf("🗑️ %s を削除しました\n", row.Symbol)
		}
	}
	if err != nil {
		fmt.Println("❌", err)
	}
}

func findRow(s engine.Snapshot, symbol string) (view.Row, bool) {
	for _, row := range view.Present(s).Rows {
		if row.Symbol == symbol {
			return row, true
		}
	}
	return view.Row{}, false
}
