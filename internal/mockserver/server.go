// internal/mockserver/server.go
package mockserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/robfig/cron/v3"

	"github.com/r-umemoto/market-dashboard/pkg/domain/market"
	"github.com/r-umemoto/market-dashboard/pkg/infra/backend"
	"github.com/r-umemoto/market-dashboard/pkg/logger"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server はダッシュボード用バックエンドの契約どおりに応答するモックです
type Server struct {
	book    *Book
	hub     *Hub
	session *Session
	engine  *gin.Engine
	log     *logger.Logger
	now     func() time.Time
}

// New はルーティングを組み立てたサーバーを返します
func New(book *Book, session *Session, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		book:    book,
		hub:     NewHub(log.Named("hub")),
		session: session,
		engine:  gin.New(),
		log:     log,
		now:     time.Now,
	}

	s.engine.Use(gin.Recovery(), s.accessLog)

	s.engine.GET("/ping", s.handlePing)
	s.engine.GET("/tracked", s.handleListTracked)
	s.engine.POST("/track", s.handleTrack)
	s.engine.DELETE("/tracked/:id", s.handleDeleteTracked)
	s.engine.POST("/refresh", s.handleRefresh)
	s.engine.GET("/history/:symbol", s.handleHistory)
	s.engine.GET("/rsi/:symbol", s.handleRSI)
	s.engine.GET("/ws", s.handleWebSocket)

	return s
}

// Handler は HTTP ハンドラーを返します（httptest からも使う）
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start はプッシュ配信のハブを起動します
func (s *Server) Start(ctx context.Context) {
	go s.hub.Run(ctx)
}

// PushQuotes は相場を1ステップ動かし、全接続へ price_update を配信します
func (s *Server) PushQuotes() int {
	updates := s.book.Tick()
	for _, u := range updates {
		s.hub.Broadcast(backend.PushEnvelope{
			Event: backend.EventPriceUpdate,
			Data:  backend.NewPriceUpdateMessage(u),
		})
	}
	s.log.Debug("🌊 モック相場変動: %d 銘柄を配信しました", len(updates))
	return len(updates)
}

// ListenAndServe はHTTPサーバーと定期配信を起動し、ctx が終わるまで動き続けます
func (s *Server) ListenAndServe(ctx context.Context, addr, pushSpec string) error {
	s.Start(ctx)

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(pushSpec, func() { s.PushQuotes() }); err != nil {
		return fmt.Errorf("配信スケジュールが不正です (%s): %w", pushSpec, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	srv := &http.Server{Addr: addr, Handler: s.engine}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("[Mock] サーバー起動: %s で待機中 (配信間隔: %s)", addr, pushSpec)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// ---------------------------------------------------------
// ▼ ハンドラー
// ---------------------------------------------------------

func (s *Server) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.log.Debug("%s %s -> %d (%s)", c.Request.Method, c.Request.URL.Path, c.Writer.Status(), time.Since(start))
}

func (s *Server) handlePing(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleListTracked(c *gin.Context) {
	c.JSON(http.StatusOK, s.book.List())
}

func (s *Server) handleTrack(c *gin.Context) {
	var req backend.TrackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, backend.ErrorResponse{Error: "symbol is required"})
		return
	}

	row, err := s.book.Track(req.Symbol)
	if err != nil {
		c.JSON(http.StatusBadRequest, backend.ErrorResponse{Error: err.Error()})
		return
	}
	s.log.Info("📈 %s の監視を開始しました (id=%d)", row.Symbol, row.ID)
	c.JSON(http.StatusCreated, gin.H{"message": "tracking " + row.Symbol})
}

func (s *Server) handleDeleteTracked(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, backend.ErrorResponse{Error: "invalid id"})
		return
	}

	if err := s.book.Delete(id); err != nil {
		c.JSON(http.StatusNotFound, backend.ErrorResponse{Error: err.Error()})
		return
	}
	s.log.Info("🗑️ id=%d の監視を解除しました", id)
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

func (s *Server) handleRefresh(c *gin.Context) {
	s.book.Refresh()
	c.JSON(http.StatusOK, gin.H{"message": "refreshed"})
}

func (s *Server) handleHistory(c *gin.Context) {
	key, ok := s.seriesKey(c)
	if !ok {
		return
	}

	bars := SyntheticBars(s.session, s.now(), key, s.book.BasePrice(key.Symbol))
	points := make([]backend.HistoryPoint, 0, len(bars))
	for _, b := range bars {
		points = append(points, backend.HistoryPoint{
			X: backend.FormatTimestamp(b.Time, key.Window.Interval),
			Y: []*float64{ptr(b.Open), ptr(b.High), ptr(b.Low), ptr(b.Close)},
		})
	}
	c.JSON(http.StatusOK, points)
}

func (s *Server) handleRSI(c *gin.Context) {
	key, ok := s.seriesKey(c)
	if !ok {
		return
	}

	bars := SyntheticBars(s.session, s.now(), key, s.book.BasePrice(key.Symbol))
	values := RSISeries(bars, rsiPeriod)
	offset := len(bars) - len(values)

	points := make([]backend.RSIPoint, 0, len(values))
	for i, v := range values {
		points = append(points, backend.RSIPoint{
			X: backend.FormatTimestamp(bars[offset+i].Time, key.Window.Interval),
			Y: ptr(v),
		})
	}
	c.JSON(http.StatusOK, points)
}

// seriesKey はパスとクエリから系列のキーを組み立てます。不正なら 400 を返して false
func (s *Server) seriesKey(c *gin.Context) (market.SeriesKey, bool) {
	symbol, err := NormalizeSymbol(c.Param("symbol"))
	if err != nil {
		c.JSON(http.StatusBadRequest, backend.ErrorResponse{Error: err.Error()})
		return market.SeriesKey{}, false
	}
	r, err := market.ParseTimeRange(c.DefaultQuery("period", string(market.DefaultWindow.Range)))
	if err != nil {
		c.JSON(http.StatusBadRequest, backend.ErrorResponse{Error: err.Error()})
		return market.SeriesKey{}, false
	}
	i, err := market.ParseInterval(c.DefaultQuery("interval", string(market.DefaultWindow.Interval)))
	if err != nil {
		c.JSON(http.StatusBadRequest, backend.ErrorResponse{Error: err.Error()})
		return market.SeriesKey{}, false
	}
	return market.SeriesKey{Symbol: symbol, Window: market.Window{Range: r, Interval: i}}, true
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warning("アップグレードエラー: %v", err)
		return
	}

	cl := &client{hub: s.hub, conn: conn, send: make(chan interface{}, 256)}
	if !s.hub.join(cl) {
		conn.Close()
		return
	}

	go cl.writePump()
	go cl.readPump()
}

func ptr(v float64) *float64 {
	return &v
}
