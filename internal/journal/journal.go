// Package journal 记录经过代理的报文，用于事后排查客户端行为
package journal

import (
	"context"
	"time"
)

const (
	DirectionReceived = "recv"
	DirectionSent     = "send"
)

// Entry 一条报文观测记录
type Entry struct {
	Time        time.Time `bson:"time"`
	ClientID    string    `bson:"client_id"`
	Direction   string    `bson:"direction"`
	PacketType  string    `bson:"packet_type"`
	Topic       string    `bson:"topic,omitempty"`
	PayloadSize int       `bson:"payload_size"`
}

// Journal 报文日志存储接口。Record 不允许让代理失败：
// 实现内部处理写入错误，只记日志。
type Journal interface {
	Record(entry Entry)
	Close(ctx context.Context) error
}

// Open 根据 URI 选择日志后端：空字符串使用内存环形缓冲，
// mongodb:// 开头的 URI 使用 MongoDB 后端。
func Open(ctx context.Context, uri string, appName string) (Journal, error) {
	if uri == "" {
		return NewMemoryJournal(DefaultMemoryCapacity), nil
	}
	return NewMongoJournal(ctx, uri, appName)
}
