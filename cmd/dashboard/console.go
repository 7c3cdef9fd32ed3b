// cmd/dashboard/console.go
package main

import (
	"context"
	"fmt"
	"strings"
)

const helpText = `コマンド一覧:
  select <SYMBOL>      銘柄を選択
  range <1d|5d|1mo|6mo|1y|5y|max>
  interval <1m|5m|15m|1h|1d>
  track <SYMBOL>       監視を追加
  delete <SYMBOL>      監視を解除（確認あり）
  refresh              ウォッチリストを再取得
  help / quit`

type commandName string

const (
	cmdHelp     commandName = "help"
	cmdSelect   commandName = "select"
	cmdRange    commandName = "range"
	cmdInterval commandName = "interval"
	cmdTrack    commandName = "track"
	cmdDelete   commandName = "delete"
	cmdRefresh  commandName = "refresh"
	cmdQuit     commandName = "quit"
)

var aliases = map[string]commandName{
	"h": cmdHelp, "?": cmdHelp,
	"s": cmdSelect,
	"r": cmdRange,
	"i": cmdInterval,
	"t": cmdTrack, "add": cmdTrack,
	"d": cmdDelete, "rm": cmdDelete,
	"f": cmdRefresh,
	"q": cmdQuit, "exit": cmdQuit,
}

// 引数が必要なコマンド
var needsArg = map[commandName]bool{
	cmdSelect:   true,
	cmdRange:    true,
	cmdInterval: true,
	cmdTrack:    true,
	cmdDelete:   true,
}

type command struct {
	name commandName
	arg  string
}

// awaitsReply はバックエンドの応答（や削除の確認）を待つコマンドかを返します
func (c command) awaitsReply() bool {
	switch c.name {
	case cmdTrack, cmdDelete, cmdRefresh:
		return true
	}
	return false
}

// parseCommand はコンソールの1行をコマンドに変換します
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{name: cmdHelp}, nil
	}

	word := strings.ToLower(fields[0])
	name, ok := aliases[word]
	if !ok {
		name = commandName(word)
	}

	switch name {
	case cmdHelp, cmdSelect, cmdRange, cmdInterval, cmdTrack, cmdDelete, cmdRefresh, cmdQuit:
	default:
		return command{}, fmt.Errorf("不明なコマンドです: %s", fields[0])
	}

	cmd := command{name: name}
	if len(fields) > 1 {
		cmd.arg = strings.Join(fields[1:], " ")
	}
	if needsArg[name] && cmd.arg == "" {
		return command{}, fmt.Errorf("%s には引数が必要です", name)
	}

	// 銘柄コードは大文字、期間・粒度は小文字で扱う
	switch name {
	case cmdSelect, cmdDelete:
		cmd.arg = strings.ToUpper(cmd.arg)
	case cmdRange, cmdInterval:
		cmd.arg = strings.ToLower(cmd.arg)
	}
	return cmd, nil
}

func isYes(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}

type confirmRequest struct {
	prompt string
	answer chan bool
}

// consoleConfirmer は確認をメインループに回し、次の入力行を答えとして受け取ります
type consoleConfirmer struct {
	requests chan confirmRequest
}

func newConsoleConfirmer() *consoleConfirmer {
	return &consoleConfirmer{requests: make(chan confirmRequest)}
}

func (c *consoleConfirmer) Confirm(ctx context.Context, prompt string) bool {
	req := confirmRequest{prompt: prompt, answer: make(chan bool, 1)}
	select {
	case c.requests <- req:
	case <-ctx.Done():
		return false
	}
	select {
	case yes := <-req.answer:
		return yes
	case <-ctx.Done():
		return false
	}
}
