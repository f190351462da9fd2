package realtime

import (
	"sync"

	"go.uber.org/zap"

	"github.com/Treasure123-school/school-web-treasure-sub002/internal/dto"
	"github.com/Treasure123-school/school-web-treasure-sub002/pkg/jwt"
	"github.com/Treasure123-school/school-web-treasure-sub002/pkg/metrics"
)

// Session 一条已接入的实时连接。
// Hub 只认识这个接口，具体传输（WebSocket、测试桩）由调用方注入。
type Session interface {
	ID() string
	Claims() *jwt.Claims
	// Send 非阻塞投递；发送缓冲满时返回 false，连接视为落后
	Send(ev dto.EventEnvelope) bool
	// Alive 传输层是否仍然存活
	Alive() bool
	Close()
}

// Hub 主题化的事件分发中心。
// 订阅必须先过 Policy；同一事件发布到多个主题时，
// 同时订阅了多个命中主题的连接只会收到一次。
type Hub struct {
	policy Policy
	logger *zap.Logger

	mu       sync.RWMutex
	sessions map[string]Session
	topics   map[string]map[string]Session  // topic → sessionID → session
	subs     map[string]map[string]struct{} // sessionID → 订阅主题集合
}

// NewHub 创建分发中心
func NewHub(policy Policy, logger *zap.Logger) *Hub {
	return &Hub{
		policy:   policy,
		logger:   logger,
		sessions: make(map[string]Session),
		topics:   make(map[string]map[string]Session),
		subs:     make(map[string]map[string]struct{}),
	}
}

// Register 接入一条连接
func (h *Hub) Register(s Session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if old, ok := h.sessions[s.ID()]; ok {
		h.removeLocked(old.ID())
		old.Close()
	}
	h.sessions[s.ID()] = s
	h.subs[s.ID()] = make(map[string]struct{})
	metrics.RealtimeConnections.Inc()

	h.logger.Debug("实时连接接入",
		zap.String("session_id", s.ID()),
		zap.String("user_id", s.Claims().UserID))
}

// Unregister 摘除一条连接（幂等）
func (h *Hub) Unregister(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.sessions[sessionID]; !ok {
		return
	}
	h.removeLocked(sessionID)
	metrics.RealtimeConnections.Dec()
}

func (h *Hub) removeLocked(sessionID string) {
	for topic := range h.subs[sessionID] {
		delete(h.topics[topic], sessionID)
		if len(h.topics[topic]) == 0 {
			delete(h.topics, topic)
		}
	}
	delete(h.subs, sessionID)
	delete(h.sessions, sessionID)
}

// Subscribe 订阅一批主题，逐个过策略，返回接受与拒绝的主题。
// 拒绝不影响同批其他主题。
func (h *Hub) Subscribe(s Session, topics []string) (accepted, rejected []string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.sessions[s.ID()]; !ok {
		// 未注册的连接一律拒绝
		metrics.RealtimeRejections.Add(float64(len(topics)))
		return nil, topics
	}

	for _, topic := range topics {
		if !h.policy.CanSubscribe(s.Claims(), topic) {
			rejected = append(rejected, topic)
			metrics.RealtimeRejections.Inc()
			h.logger.Warn("订阅被拒",
				zap.String("user_id", s.Claims().UserID),
				zap.String("role", s.Claims().Role),
				zap.String("topic", topic))
			continue
		}
		if h.topics[topic] == nil {
			h.topics[topic] = make(map[string]Session)
		}
		h.topics[topic][s.ID()] = s
		h.subs[s.ID()][topic] = struct{}{}
		accepted = append(accepted, topic)
	}
	return accepted, rejected
}

// AutoEnroll 按令牌声明自动订阅连接自己的主题：
// 用户私有主题与角色广播，外加教师的授权班级、学生/家长的授权学生。
func (h *Hub) AutoEnroll(s Session) []string {
	claims := s.Claims()
	if claims == nil {
		return nil
	}
	topics := []string{
		TopicUser(claims.UserID),
		TopicRole(NormalizeRole(claims.Role)),
	}
	for _, classID := range claims.ClassIDs {
		topics = append(topics, TopicClass(classID))
	}
	for _, studentID := range claims.StudentIDs {
		topics = append(topics, TopicStudent(studentID))
	}
	accepted, _ := h.Subscribe(s, topics)
	return accepted
}

// SweepStale 摘除传输层已死的连接，返回摘除数量
func (h *Hub) SweepStale() int {
	h.mu.Lock()
	var dead []Session
	for id, s := range h.sessions {
		if !s.Alive() {
			dead = append(dead, s)
			h.removeLocked(id)
			metrics.RealtimeConnections.Dec()
		}
	}
	h.mu.Unlock()

	for _, s := range dead {
		s.Close()
	}
	if len(dead) > 0 {
		h.logger.Info("清理死连接", zap.Int("count", len(dead)))
	}
	return len(dead)
}

// Unsubscribe 退订主题（未订阅的主题忽略）
func (h *Hub) Unsubscribe(sessionID string, topics []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, topic := range topics {
		delete(h.topics[topic], sessionID)
		if len(h.topics[topic]) == 0 {
			delete(h.topics, topic)
		}
		delete(h.subs[sessionID], topic)
	}
}

// Publish 把事件投递到所有命中主题的订阅者，跨主题去重。
// 投递失败（缓冲满）的连接被视为落后并摘除。
func (h *Hub) Publish(topics []string, ev dto.EventEnvelope) {
	h.mu.RLock()
	seen := make(map[string]Session)
	for _, topic := range topics {
		for id, s := range h.topics[topic] {
			seen[id] = s
		}
	}
	h.mu.RUnlock()

	metrics.RealtimeEvents.WithLabelValues(ev.Type).Inc()

	var lagging []string
	for id, s := range seen {
		if !s.Send(ev) {
			lagging = append(lagging, id)
		}
	}
	for _, id := range lagging {
		h.logger.Warn("连接发送缓冲已满，断开落后连接", zap.String("session_id", id))
		h.mu.Lock()
		s, ok := h.sessions[id]
		if ok {
			h.removeLocked(id)
			metrics.RealtimeConnections.Dec()
		}
		h.mu.Unlock()
		if ok {
			s.Close()
		}
	}
}

// SessionCount 当前接入连接数
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}

// TopicSubscribers 某主题当前订阅数
func (h *Hub) TopicSubscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}
