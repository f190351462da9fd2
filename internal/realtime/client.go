package realtime

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Treasure123-school/school-web-treasure-sub002/config"
	"github.com/Treasure123-school/school-web-treasure-sub002/internal/dto"
	"github.com/Treasure123-school/school-web-treasure-sub002/pkg/jwt"
)

// wsSession WebSocket 传输的 Session 实现。
// 写操作全部收敛到 writePump 单协程，读协程只解析控制消息。
type wsSession struct {
	id     string
	claims *jwt.Claims
	conn   *websocket.Conn
	hub    *Hub
	cfg    *config.RealtimeConfig
	logger *zap.Logger

	send chan dto.EventEnvelope // 业务事件
	ctrl chan dto.ServerMessage // 协议应答
	done chan struct{}
	once sync.Once
}

// NewWSSession 包装一条已升级的 WebSocket 连接
func NewWSSession(conn *websocket.Conn, claims *jwt.Claims, hub *Hub, cfg *config.RealtimeConfig, logger *zap.Logger) *wsSession {
	return &wsSession{
		id:     uuid.New().String(),
		claims: claims,
		conn:   conn,
		hub:    hub,
		cfg:    cfg,
		logger: logger,
		send:   make(chan dto.EventEnvelope, cfg.SendBuffer),
		ctrl:   make(chan dto.ServerMessage, 8),
		done:   make(chan struct{}),
	}
}

func (s *wsSession) ID() string          { return s.id }
func (s *wsSession) Claims() *jwt.Claims { return s.claims }

func (s *wsSession) Alive() bool {
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

func (s *wsSession) Send(ev dto.EventEnvelope) bool {
	select {
	case s.send <- ev:
		return true
	case <-s.done:
		return true // 已关闭的连接不按落后处理
	default:
		return false
	}
}

func (s *wsSession) Close() {
	s.once.Do(func() {
		close(s.done)
		_ = s.conn.Close()
	})
}

// Run 注册到 Hub 并泵送消息，直到连接断开才返回
func (s *wsSession) Run() {
	s.hub.Register(s)
	if enrolled := s.hub.AutoEnroll(s); len(enrolled) > 0 {
		s.reply(dto.ServerMessage{Type: dto.ServerMsgAck, Topics: enrolled})
	}
	defer func() {
		s.hub.Unregister(s.id)
		s.Close()
	}()

	go s.writePump()
	s.readPump()
}

func (s *wsSession) reply(msg dto.ServerMessage) {
	select {
	case s.ctrl <- msg:
	case <-s.done:
	}
}

func (s *wsSession) readPump() {
	s.conn.SetReadLimit(4096)
	_ = s.conn.SetReadDeadline(time.Now().Add(s.cfg.StaleTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.cfg.StaleTimeout))
	})

	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Debug("实时连接异常断开", zap.String("session_id", s.id), zap.Error(err))
			}
			return
		}

		var msg dto.ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.reply(dto.ServerMessage{Type: dto.ServerMsgError, Message: "消息格式错误"})
			continue
		}

		switch msg.Type {
		case dto.ClientMsgSubscribe:
			accepted, rejected := s.hub.Subscribe(s, msg.Topics)
			if len(accepted) > 0 {
				s.reply(dto.ServerMessage{Type: dto.ServerMsgAck, Topics: accepted})
			}
			if len(rejected) > 0 {
				s.reply(dto.ServerMessage{Type: dto.ServerMsgError, Topics: rejected, Message: "无权订阅"})
			}
		case dto.ClientMsgUnsubscribe:
			s.hub.Unsubscribe(s.id, msg.Topics)
			s.reply(dto.ServerMessage{Type: dto.ServerMsgAck, Topics: msg.Topics})
		case dto.ClientMsgPing:
			s.reply(dto.ServerMessage{Type: dto.ServerMsgPong})
		default:
			s.reply(dto.ServerMessage{Type: dto.ServerMsgError, Message: "未知消息类型"})
		}
	}
}

func (s *wsSession) writePump() {
	ticker := time.NewTicker(s.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case ev := <-s.send:
			if !s.writeJSON(map[string]any{"type": dto.ServerMsgEvent, "event": ev}) {
				return
			}
		case msg := <-s.ctrl:
			if !s.writeJSON(msg) {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.Close()
				return
			}
		case <-s.done:
			return
		}
	}
}

func (s *wsSession) writeJSON(v any) bool {
	_ = s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout))
	if err := s.conn.WriteJSON(v); err != nil {
		s.Close()
		return false
	}
	return true
}
