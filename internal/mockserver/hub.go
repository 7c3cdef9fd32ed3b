// internal/mockserver/hub.go
package mockserver

import (
	"context"

	"github.com/r-umemoto/market-dashboard/pkg/logger"
)

// Hub は接続中のダッシュボードへプッシュ配信を行います
type Hub struct {
	register   chan *client
	unregister chan *client
	broadcast  chan interface{}
	clients    map[*client]struct{}
	done       chan struct{}
	log        *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan interface{}, 256),
		clients:    make(map[*client]struct{}),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run はハブのメインループです
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			return

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.log.Info("🎯 ダッシュボードからのWebSocket接続を受け付けました (接続数: %d)", len(h.clients))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}

		case message := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- message:
				default:
					// 詰まっているクライアントは切り離してハブを止めない
					delete(h.clients, c)
					close(c.send)
				}
			}
		}
	}
}

// Broadcast はメッセージを配信キューに積みます
func (h *Hub) Broadcast(message interface{}) {
	select {
	case h.broadcast <- message:
	default:
		h.log.Warning("配信キューが一杯のためメッセージを破棄しました")
	}
}

func (h *Hub) join(c *client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
