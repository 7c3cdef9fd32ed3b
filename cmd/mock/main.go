// cmd/mock/main.go
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/r-umemoto/market-dashboard/internal/mockserver"
	"github.com/r-umemoto/market-dashboard/pkg/logger"
)

func main() {
	fmt.Println("[Mock] 開発用バックエンド、起動シーケンス開始。")

	// 1. 設定の読み込み
	cfg, err := mockserver.LoadConfig()
	if err != nil {
		log.Fatalf("設定の読み込みに失敗しました: %v", err)
	}
	seed, err := mockserver.LoadSeed(cfg.SeedFile)
	if err != nil {
		log.Fatalf("シードファイルの読み込みに失敗しました: %v", err)
	}

	// 2. 市場カレンダーと銘柄台帳の準備
	session := mockserver.NewSession()
	book := mockserver.NewBook(seed, session, cfg.RandSeed)
	srv := mockserver.New(book, session, logger.New("mock", logger.ParseLevel(cfg.LogLevel)))

	// 3. Ctrl+C で安全に止めるためのコンテキスト
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := srv.ListenAndServe(ctx, cfg.Addr, cfg.PushSpec); err != nil {
		log.Fatalf("サーバーエラー: %v", err)
	}
	fmt.Println("[Mock] サーバーを停止しました。")
}
