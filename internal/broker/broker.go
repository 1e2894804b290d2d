// Package broker 实现了代理的监听循环与连接处理
package broker

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/rasp-lab/mqtt-debug-broker/internal/config"
	"github.com/rasp-lab/mqtt-debug-broker/internal/journal"
	"github.com/rasp-lab/mqtt-debug-broker/internal/logger"
	"github.com/rasp-lab/mqtt-debug-broker/internal/session"
)

type Broker struct {
	cfg      config.Config
	registry *session.Registry
	journal  journal.Journal
	ln       net.Listener
}

func New(cfg config.Config, j journal.Journal) *Broker {
	return &Broker{
		cfg:      cfg,
		registry: session.NewRegistry(cfg.MaxClients),
		journal:  j,
	}
}

// Start 绑定监听端口并启动接受循环。绑定失败是致命错误，由调用方决定退出。
func (b *Broker) Start() error {
	ln, err := net.Listen("tcp", ":"+strconv.Itoa(b.cfg.Port))
	if err != nil {
		return fmt.Errorf("MQTT Server Start error: %v", err)
	}
	b.ln = ln
	logger.InfoF("MQTT debug server listening on %s", ln.Addr().String())
	go b.acceptLoop()
	return nil
}

// Addr 返回实际监听地址（端口0时由系统分配）
func (b *Broker) Addr() net.Addr {
	if b.ln == nil {
		return nil
	}
	return b.ln.Addr()
}

// Shutdown 关闭监听套接字和所有会话连接
func (b *Broker) Shutdown() {
	if b.ln != nil {
		if err := b.ln.Close(); err != nil && !session.IsNetClosedError(err) {
			logger.ErrorF("Server close error: %v", err)
		}
	}
	b.registry.CloseAll()
	logger.Info("Server stopped")
}

// Serve 运行代理直到上下文被取消
func (b *Broker) Serve(ctx context.Context) error {
	if err := b.Start(); err != nil {
		return err
	}
	<-ctx.Done()
	b.Shutdown()
	return nil
}

func (b *Broker) acceptLoop() {
	for {
		conn, err := b.ln.Accept()
		if err != nil {
			if session.IsNetClosedError(err) {
				return
			}
			logger.ErrorF("Accept connection error: %v", err)
			continue
		}

		// 准入控制：注册表已满时直接关闭新连接，不排队
		sess := session.NewSession(conn)
		if err := b.registry.Add(sess); err != nil {
			logger.InfoF("[drop] Too many clients, rejecting %s", conn.RemoteAddr().String())
			sess.Close()
			continue
		}

		logger.InfoF("[accept] Connection from %s", conn.RemoteAddr().String())
		go b.handleConnection(sess)
	}
}
