package session

import (
	"errors"
	"io"
	"net"
	"os"
	"sync"

	"github.com/rasp-lab/mqtt-debug-broker/internal/logger"
	"github.com/rasp-lab/mqtt-debug-broker/internal/packet"
)

// ErrServerFull 注册表已达到最大客户端数
var ErrServerFull = errors.New("too many clients")

// Registry 连接到会话的映射。每个连接由独立协程处理，
// 因此注册表必须由互斥锁保护。
type Registry struct {
	mu         sync.Mutex
	sessions   map[net.Conn]*Session
	maxClients int
}

func NewRegistry(maxClients int) *Registry {
	return &Registry{
		sessions:   make(map[net.Conn]*Session),
		maxClients: maxClients,
	}
}

// Add 注册一个新会话，超出容量时拒绝（准入控制）
func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sessions) >= r.maxClients {
		return ErrServerFull
	}
	r.sessions[s.Conn] = s
	return nil
}

func (r *Registry) Remove(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, s.Conn)
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Snapshot 返回当前会话的副本，避免在阻塞发送期间持有锁
func (r *Registry) Snapshot() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s)
	}
	return out
}

// CloseAll 关闭所有会话连接，用于服务器停机
func (r *Registry) CloseAll() {
	for _, s := range r.Snapshot() {
		s.Close()
		r.Remove(s)
	}
}

// Broadcast 将消息转发给除发布者之外所有订阅了该主题的会话。
// 逐个订阅者尽力发送，单个失败不影响其余订阅者。返回送达数量。
func (r *Registry) Broadcast(topic string, payload []byte, origin *Session) int {
	frame := packet.NewPublishPacket(topic, payload)
	delivered := 0
	for _, s := range r.Snapshot() {
		if s == origin {
			continue
		}
		if !s.IsSubscribed(topic) {
			continue
		}
		if err := s.Send(frame); err != nil {
			logger.WarnF("[%s] Fail to forward message on topic '%s', details: %v", s.ConnID, topic, err)
			continue
		}
		delivered++
	}
	return delivered
}

func IsNetClosedError(err error) bool {
	if errors.Is(err, net.ErrClosed) {
		return true
	}
	var opErr *net.OpError
	ok := errors.As(err, &opErr)
	return ok && opErr.Timeout()
}

func HandleReadError(connID string, err error) {
	switch {
	case errors.Is(err, io.EOF):
		logger.InfoF("[%s] Client close connection", connID)
	case os.IsTimeout(err):
		logger.WarnF("[%s] Reading timeout", connID)
	default:
		logger.ErrorF("[%s] Error occured while reading packet, details: %v", connID, err)
	}
}
