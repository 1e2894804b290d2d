// Package session 实现了客户端会话与会话注册表
package session

import (
	"net"
	"sync"

	"github.com/rs/xid"

	"github.com/rasp-lab/mqtt-debug-broker/internal/logger"
)

// Session 表示一个已接受连接的会话。Inbound 缓冲区只由该连接的
// 读协程访问；ClientID、订阅集合和关闭标志会被转发协程读取，由互斥锁保护。
type Session struct {
	Conn   net.Conn
	ConnID string

	mu            sync.Mutex
	clientID      string
	subscriptions map[string]struct{}
	closed        bool

	// Inbound 保存已接收但尚未凑成完整报文的字节
	Inbound []byte
}

func NewSession(conn net.Conn) *Session {
	return &Session{
		Conn:          conn,
		ConnID:        conn.RemoteAddr().String(),
		clientID:      "session-" + xid.New().String(),
		subscriptions: make(map[string]struct{}),
	}
}

func (s *Session) ClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID
}

// SetClientID 采纳 CONNECT 报文中的客户端标识，空标识保留占位值
func (s *Session) SetClientID(clientID string) {
	if clientID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clientID = clientID
}

// Subscribe 将主题加入订阅集合，重复订阅是幂等的
func (s *Session) Subscribe(topic string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscriptions[topic] = struct{}{}
}

func (s *Session) IsSubscribed(topic string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.subscriptions[topic]
	return ok
}

func (s *Session) SubscriptionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subscriptions)
}

// Close 关闭连接并标记会话。重复关闭是安全的。
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	if err := s.Conn.Close(); err != nil && !IsNetClosedError(err) {
		logger.WarnF("[%s] Error occured while closing connection, details: %v", s.ConnID, err)
	}
}

func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Send 向客户端发送数据，直到写完或出错
func (s *Session) Send(data []byte) error {
	total := 0
	for total < len(data) {
		n, err := s.Conn.Write(data[total:])
		if err != nil {
			logger.ErrorF("[%s] Fail to send data, details: %v", s.ConnID, err)
			return err
		}
		total += n
	}
	logger.DebugF("[%s] Send %d bytes to client", s.ConnID, total)
	return nil
}
