package packet

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rasp-lab/mqtt-debug-broker/internal/mqtt"
)

func frame(t *testing.T, firstByte byte, body []byte) *mqtt.Packet {
	t.Helper()
	buf := append([]byte{firstByte}, mqtt.EncodeRemainingLength(len(body))...)
	buf = append(buf, body...)
	pkt, rest, err := mqtt.ExtractPacket(buf)
	require.NoError(t, err)
	require.Empty(t, rest)
	return pkt
}

func lengthPrefixed(s string) []byte {
	return append(mqtt.UInt16ToByte(uint16(len(s))), s...)
}

func connectBody(clientID string, keepAlive uint16) []byte {
	body := lengthPrefixed("MQTT")
	body = append(body, 0x04, 0x02)
	body = append(body, mqtt.UInt16ToByte(keepAlive)...)
	return append(body, lengthPrefixed(clientID)...)
}

func TestParseConnectPacket(t *testing.T) {
	pkt := frame(t, 0x10, connectBody("sensor1", 60))

	result, err := ParseConnectPacket(pkt)
	require.NoError(t, err)
	assert.Equal(t, "MQTT", result.ProtocolName)
	assert.Equal(t, byte(0x04), result.ProtocolLevel)
	assert.Equal(t, byte(0x02), result.ConnectFlags)
	assert.Equal(t, 60, result.KeepAlive)
	assert.Equal(t, "sensor1", result.ClientIdentifier)
}

func TestParseConnectPacketEmptyClientID(t *testing.T) {
	pkt := frame(t, 0x10, connectBody("", 0))

	result, err := ParseConnectPacket(pkt)
	require.NoError(t, err)
	assert.Equal(t, "", result.ClientIdentifier)
}

func TestParseConnectPacketPermissiveProtocol(t *testing.T) {
	// 协议名和版本不做校验
	body := lengthPrefixed("MQIsdp")
	body = append(body, 0x03, 0x00, 0x00, 0x3C)
	body = append(body, lengthPrefixed("legacy")...)
	pkt := frame(t, 0x10, body)

	result, err := ParseConnectPacket(pkt)
	require.NoError(t, err)
	assert.Equal(t, "MQIsdp", result.ProtocolName)
	assert.Equal(t, byte(0x03), result.ProtocolLevel)
	assert.Equal(t, "legacy", result.ClientIdentifier)
}

func TestParseConnectPacketTruncated(t *testing.T) {
	tests := []struct {
		name string
		body []byte
	}{
		{"empty body", []byte{}},
		{"truncated protocol name", []byte{0x00, 0x04, 'M', 'Q'}},
		{"missing fixed bytes", lengthPrefixed("MQTT")},
		{"missing client identifier", append(lengthPrefixed("MQTT"), 0x04, 0x02, 0x00, 0x3C)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pkt := frame(t, 0x10, tt.body)
			_, err := ParseConnectPacket(pkt)
			assert.Error(t, err)
		})
	}
}

func TestNewConnAckPacket(t *testing.T) {
	assert.Equal(t, []byte{0x20, 0x02, 0x00, 0x00}, NewConnAckPacket())
}

func TestParsePublishPacketQoS0(t *testing.T) {
	body := append(lengthPrefixed("cmd/luz"), []byte("42")...)
	pkt := frame(t, 0x30, body)

	result, err := ParsePublishPacket(pkt)
	require.NoError(t, err)
	assert.Equal(t, byte(0), result.PacketFlag.QoS)
	assert.Equal(t, "cmd/luz", result.TopicName)
	assert.Equal(t, -1, result.PacketID, "QoS0 publish carries no packet identifier")
	assert.Equal(t, []byte("42"), result.Payload)
}

func TestParsePublishPacketQoS1(t *testing.T) {
	body := append(lengthPrefixed("cmd/luz"), 0x00, 0x0A)
	body = append(body, []byte("73")...)
	pkt := frame(t, 0x32, body)

	result, err := ParsePublishPacket(pkt)
	require.NoError(t, err)
	assert.Equal(t, byte(1), result.PacketFlag.QoS)
	assert.Equal(t, 10, result.PacketID)
	assert.Equal(t, []byte("73"), result.Payload)
}

func TestParsePublishPacketFlags(t *testing.T) {
	body := append(lengthPrefixed("t"), 0x00, 0x01)
	pkt := frame(t, 0x3D, body) // dup=1 qos=2 retain=1

	result, err := ParsePublishPacket(pkt)
	require.NoError(t, err)
	assert.True(t, result.PacketFlag.Dup)
	assert.Equal(t, byte(2), result.PacketFlag.QoS)
	assert.True(t, result.PacketFlag.Retain)
	assert.Empty(t, result.Payload)
}

func TestParsePublishPacketTruncated(t *testing.T) {
	pkt := frame(t, 0x32, lengthPrefixed("cmd/luz"))
	_, err := ParsePublishPacket(pkt)
	assert.Error(t, err, "QoS1 publish without packet identifier")

	pkt = frame(t, 0x30, []byte{0x00, 0x10, 'a'})
	_, err = ParsePublishPacket(pkt)
	assert.Error(t, err, "declared topic length exceeds packet")
}

func TestNewPublishPacket(t *testing.T) {
	// client B publishes "42" on cmd/luz, subscriber receives this exact frame
	expect := []byte{0x30, 0x0B, 0x00, 0x07, 0x63, 0x6D, 0x64, 0x2F, 0x6C, 0x75, 0x7A, 0x34, 0x32}
	assert.Equal(t, expect, NewPublishPacket("cmd/luz", []byte("42")))
}

func TestNewPublishPacketRoundTrip(t *testing.T) {
	raw := NewPublishPacket("a/b", []byte("payload"))
	pkt, rest, err := mqtt.ExtractPacket(raw)
	require.NoError(t, err)
	require.Empty(t, rest)
	assert.Equal(t, mqtt.PUBLISH, pkt.Header.Type)
	assert.Equal(t, byte(0), pkt.Header.Flags, "forwarded frames are always QoS0")

	result, err := ParsePublishPacket(pkt)
	require.NoError(t, err)
	assert.Equal(t, "a/b", result.TopicName)
	assert.Equal(t, []byte("payload"), result.Payload)
}

func TestNewPubAckPacket(t *testing.T) {
	assert.Equal(t, []byte{0x40, 0x02, 0x00, 0x0A}, NewPubAckPacket(10))
	assert.Equal(t, []byte{0x40, 0x02, 0xAB, 0xCD}, NewPubAckPacket(0xABCD))
}

func TestParseSubscribePacket(t *testing.T) {
	body := []byte{0x00, 0x01}
	body = append(body, lengthPrefixed("cmd/luz")...)
	body = append(body, 0x00)
	body = append(body, lengthPrefixed("cmd/status")...)
	body = append(body, 0x01)
	pkt := frame(t, 0x82, body)

	result, err := ParseSubscribePacket(pkt)
	require.NoError(t, err)
	assert.Equal(t, 1, result.PacketID)
	assert.Equal(t, []string{"cmd/luz", "cmd/status"}, result.Topics)
}

func TestParseSubscribePacketTruncated(t *testing.T) {
	pkt := frame(t, 0x82, []byte{0x00})
	_, err := ParseSubscribePacket(pkt)
	assert.Error(t, err)

	body := append([]byte{0x00, 0x01}, lengthPrefixed("cmd/luz")...)
	pkt = frame(t, 0x82, body) // 缺少QoS字节
	_, err = ParseSubscribePacket(pkt)
	assert.Error(t, err)
}

func TestNewSubAckPacket(t *testing.T) {
	assert.Equal(t, []byte{0x90, 0x03, 0x00, 0x01, 0x00}, NewSubAckPacket(1))
}

func TestNewPingRespPacket(t *testing.T) {
	assert.Equal(t, []byte{0xD0, 0x00}, NewPingRespPacket())
}
