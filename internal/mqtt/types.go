// Package mqtt 实现了MQTT协议的核心类型定义和报文编解码
package mqtt

import "encoding/binary"

// PacketType 定义了MQTT控制报文的类型
type PacketType byte

// MQTT 控制报文类型常量定义
const (
	CONNECT     PacketType = iota + 1 // 客户端请求连接到服务器
	CONNACK                           // 连接确认
	PUBLISH                           // 发布消息
	PUBACK                            // 发布确认
	PUBREC                            // 发布收到（QoS 2第一步）
	PUBREL                            // 发布释放（QoS 2第二步）
	PUBCOMP                           // 发布完成（QoS 2第三步）
	SUBSCRIBE                         // 订阅请求
	SUBACK                            // 订阅确认
	UNSUBSCRIBE                       // 取消订阅
	UNSUBACK                          // 取消订阅确认
	PINGREQ                           // 心跳请求
	PINGRESP                          // 心跳响应
	DISCONNECT                        // 断开连接
)

// PacketTypeMap 将PacketType映射到其字符串表示
var PacketTypeMap = map[PacketType]string{
	CONNECT:     "CONNECT",
	CONNACK:     "CONNACK",
	PUBLISH:     "PUBLISH",
	PUBACK:      "PUBACK",
	PUBREC:      "PUBREC",
	PUBREL:      "PUBREL",
	PUBCOMP:     "PUBCOMP",
	SUBSCRIBE:   "SUBSCRIBE",
	SUBACK:      "SUBACK",
	UNSUBSCRIBE: "UNSUBSCRIBE",
	UNSUBACK:    "UNSUBACK",
	PINGREQ:     "PINGREQ",
	PINGRESP:    "PINGRESP",
	DISCONNECT:  "DISCONNECT",
}

// String 返回PacketType的字符串表示
func (packetType PacketType) String() string {
	if name, ok := PacketTypeMap[packetType]; ok {
		return name
	}
	return "UNKNOWN"
}

// FixedHeader 定义了MQTT固定头部结构
type FixedHeader struct {
	Type            PacketType // 报文类型
	Flags           byte       // 标志位
	RemainingLength int        // 剩余长度
}

// Payload 定义了MQTT报文负载结构
type Payload struct {
	Context    []byte // 负载内容
	ContextLen int    // 负载长度
	CurrentPtr int    // 当前读取位置
}

// Packet 定义了完整的MQTT报文结构
type Packet struct {
	Header  *FixedHeader // 固定头部
	Payload *Payload     // 可变头部和有效载荷
	Raw     []byte       // 完整报文原始字节
}

func (p *Payload) CheckRemainingLength() bool {
	return p.CurrentPtr < p.ContextLen
}

func UInt16ToByte(number uint16) []byte {
	result := make([]byte, 2)
	binary.BigEndian.PutUint16(result, number)
	return result
}

func ByteToUInt16(bytes []byte) uint16 {
	if len(bytes) == 0 {
		return 0
	}
	if len(bytes) == 1 {
		return uint16(bytes[0])
	}
	return uint16(bytes[0])<<8 | uint16(bytes[1])
}
