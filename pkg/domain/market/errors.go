package market

import (
	"errors"
	"fmt"
)

var (
	// ErrTransport は通信そのものの失敗です（タイムアウト、接続拒否、5xx）
	ErrTransport = errors.New("transport failure")
	// ErrRejected はバックエンドが入力を受け付けなかったことを表します（4xx）
	ErrRejected = errors.New("rejected by backend")
	// ErrNotTracked はウォッチリストに存在しない ID を指定したことを表します
	ErrNotTracked = errors.New("symbol is not tracked")
)

// BackendError はバックエンド呼び出しの失敗を、操作名とステータス付きで保持します
type BackendError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *BackendError) Error() string {
	if e.Status != 0 {
		if e.Message != "" {
			return fmt.Sprintf("%s: status %d: %s", e.Op, e.Status, e.Message)
		}
		return fmt.Sprintf("%s: status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error {
	return e.Err
}

// IsRejected は入力エラー（ユーザーが直せる失敗）かどうかを返します
func IsRejected(err error) bool {
	return errors.Is(err, ErrRejected)
}
