package packet

import (
	"encoding/binary"
	"fmt"

	"github.com/rasp-lab/mqtt-debug-broker/internal/mqtt"
)

type SubscribePacketPayloads struct {
	PacketID int
	Topics   []string
}

// NewSubAckPacket 授予的QoS恒为0，与请求的QoS无关
func NewSubAckPacket(packetId int) []byte {
	return []byte{0x90, 0x03, byte(packetId >> 8), byte(packetId & 0xFF), 0x00}
}

// ParseSubscribePacket 解析 SUBSCRIBE 报文：2字节报文标识符之后，
// 重复读取（主题字段 + 1字节请求QoS）直到报文耗尽。
func ParseSubscribePacket(packet *mqtt.Packet) (*SubscribePacketPayloads, error) {
	result := &SubscribePacketPayloads{
		PacketID: -1,
		Topics:   make([]string, 0),
	}

	packetId, err := readPacketBytes(packet.Payload, 2)
	if err != nil {
		return result, fmt.Errorf("error occured when reading packet ID, details: %v", err)
	}
	result.PacketID = int(binary.BigEndian.Uint16(packetId))

	for packet.Payload.CheckRemainingLength() {
		topicFilter, err := readPacketPayload(packet.Payload)
		if err != nil {
			return result, fmt.Errorf("error occured when reading topic filter, details: %v", err)
		}
		if _, err := readPacketByte(packet.Payload); err != nil {
			return result, fmt.Errorf("error occured when reading qos level, details: %v", err)
		}
		result.Topics = append(result.Topics, string(topicFilter.Payload))
	}

	return result, nil
}
