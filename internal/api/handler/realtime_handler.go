package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Treasure123-school/school-web-treasure-sub002/config"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/realtime"
)

// RealtimeHandler WebSocket 实时推送处理器
type RealtimeHandler struct {
	hub      *realtime.Hub
	cfg      *config.Config
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewRealtimeHandler 创建 RealtimeHandler
func NewRealtimeHandler(hub *realtime.Hub, cfg *config.Config, logger *zap.Logger) *RealtimeHandler {
	return &RealtimeHandler{
		hub: hub,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(cfg.Server.CORS.AllowOrigins),
		},
		logger: logger,
	}
}

// originChecker 按 CORS 白名单校验握手来源；无 Origin 头（非浏览器客户端）放行
func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || o == origin {
				return true
			}
		}
		return false
	}
}

// Connect 升级 WebSocket 连接并托管其生命周期
// GET /api/v1/realtime/ws（认证后，token 经 query 传入）
func (h *RealtimeHandler) Connect(c *gin.Context) {
	claims, ok := MustGetClaims(c)
	if !ok {
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade 失败时已自行写入 HTTP 响应
		h.logger.Warn("WebSocket 升级失败", zap.String("user_id", claims.UserID), zap.Error(err))
		return
	}

	session := realtime.NewWSSession(conn, claims, h.hub, &h.cfg.Realtime, h.logger)
	// Run 阻塞至连接关闭，占用当前请求 goroutine 即可
	session.Run()
}
