package packet

// 控制包类型 CONNECT 相关函数

import (
	"fmt"

	"github.com/rasp-lab/mqtt-debug-broker/internal/mqtt"
)

type ConnectPacketPayloads struct {
	ProtocolName     string
	ProtocolLevel    byte
	ConnectFlags     byte
	KeepAlive        int
	ClientIdentifier string
}

// NewConnAckPacket 会话标志恒为0，返回码恒为0（总是接受连接）
func NewConnAckPacket() []byte {
	return []byte{0x20, 0x02, 0x00, 0x00}
}

// ParseConnectPacket 解析 CONNECT 控制包的可变头和负载。
// 调试工具不校验协议名和协议版本，任何 CONNECT 都被接受。
func ParseConnectPacket(packet *mqtt.Packet) (ConnectPacketPayloads, error) {
	result := ConnectPacketPayloads{}
	payload := packet.Payload

	protocolString, err := readPacketPayload(payload)
	if err != nil {
		return result, fmt.Errorf("error occured when reading protocol string, details: %v", err)
	}
	result.ProtocolName = string(protocolString.Payload)

	fixed, err := readPacketBytes(payload, 4)
	if err != nil {
		return result, fmt.Errorf("error occured when reading protocol level, flags and keep alive, details: %v", err)
	}
	result.ProtocolLevel = fixed[0]
	result.ConnectFlags = fixed[1]
	result.KeepAlive = int(mqtt.ByteToUInt16(fixed[2:4]))

	clientID, err := readPacketPayload(payload)
	if err != nil {
		return result, fmt.Errorf("error occured when reading client identifier, details: %v", err)
	}
	result.ClientIdentifier = string(clientID.Payload)

	return result, nil
}
