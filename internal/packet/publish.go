package packet

import (
	"encoding/binary"
	"fmt"

	"github.com/rasp-lab/mqtt-debug-broker/internal/mqtt"
)

type PublishPacketFlag struct {
	Dup    bool
	QoS    byte
	Retain bool
}

type PublishPacketPayloads struct {
	PacketFlag PublishPacketFlag
	TopicName  string
	PacketID   int
	Payload    []byte
}

// NewPublishPacket 构造转发给订阅者的 PUBLISH 报文。
// 无论原始报文的 QoS 是多少，转发一律使用 QoS0（首字节 0x30）。
func NewPublishPacket(topic string, message []byte) []byte {
	payload := make([]byte, 0, 2+len(topic)+len(message))
	payload = append(payload, mqtt.UInt16ToByte(uint16(len(topic)))...)
	payload = append(payload, topic...)
	payload = append(payload, message...)

	packet := make([]byte, 1, 1+4+len(payload))
	packet[0] = byte(mqtt.PUBLISH) << 4
	packet = append(packet, mqtt.EncodeRemainingLength(len(payload))...)
	packet = append(packet, payload...)
	return packet
}

func NewPubAckPacket(packetId int) []byte {
	return []byte{0x40, 0x02, byte(packetId >> 8), byte(packetId & 0xFF)}
}

// ParsePublishPacket 解析 PUBLISH 报文。QoS 非0时携带2字节报文标识符，
// 其后的所有字节都是消息负载。
func ParsePublishPacket(packet *mqtt.Packet) (*PublishPacketPayloads, error) {
	result := &PublishPacketPayloads{
		PacketFlag: PublishPacketFlag{
			Dup:    (packet.Header.Flags&0x08)>>3 == 1,
			QoS:    (packet.Header.Flags & 0x06) >> 1,
			Retain: packet.Header.Flags&0x01 == 1,
		},
		PacketID: -1,
	}

	topicName, err := readPacketPayload(packet.Payload)
	if err != nil {
		return result, fmt.Errorf("error occured when reading topic name, details: %v", err)
	}
	result.TopicName = string(topicName.Payload)

	if result.PacketFlag.QoS > 0 {
		packetId, err := readPacketBytes(packet.Payload, 2)
		if err != nil {
			return result, fmt.Errorf("error occured when reading packet ID, details: %v", err)
		}
		result.PacketID = int(binary.BigEndian.Uint16(packetId))
	}

	payload, err := readPacketBytes(packet.Payload, packet.Payload.ContextLen-packet.Payload.CurrentPtr)
	if err != nil {
		return result, fmt.Errorf("error occured when reading payload, details: %v", err)
	}
	result.Payload = payload

	return result, nil
}
