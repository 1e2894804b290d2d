package mqtt

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemainingLength(t *testing.T) {
	tests := []struct {
		input  int
		expect []byte
	}{
		{0, []byte{0x00}},
		{64, []byte{0x40}},
		{127, []byte{0x7F}},
		{128, []byte{0x80, 0x01}},
		{321, []byte{0xC1, 0x02}},
		{16383, []byte{0xFF, 0x7F}},
		{16384, []byte{0x80, 0x80, 0x01}},
		{2097151, []byte{0xFF, 0xFF, 0x7F}},
		{2097152, []byte{0x80, 0x80, 0x80, 0x01}},
		{268435455, []byte{0xFF, 0xFF, 0xFF, 0x7F}},
	}

	for _, tt := range tests {
		encoded := EncodeRemainingLength(tt.input)
		if !bytes.Equal(encoded, tt.expect) {
			t.Errorf("输入=%d 期望=%x 实际=%x", tt.input, tt.expect, encoded)
		}

		decoded, next, err := DecodeRemainingLength(encoded, 0)
		require.NoError(t, err)
		assert.Equal(t, tt.input, decoded)
		assert.Equal(t, len(encoded), next)
	}
}

func TestRemainingLengthRoundTripSweep(t *testing.T) {
	// 各编码长度边界附近的值
	for _, l := range []int{0, 1, 126, 127, 128, 129, 16382, 16383, 16384, 16385,
		2097150, 2097151, 2097152, 2097153, 268435454, 268435455} {
		encoded := EncodeRemainingLength(l)
		decoded, next, err := DecodeRemainingLength(encoded, 0)
		require.NoError(t, err, "length %d", l)
		assert.Equal(t, l, decoded)
		assert.Equal(t, len(encoded), next)
		assert.LessOrEqual(t, len(encoded), 4)
		assert.GreaterOrEqual(t, len(encoded), 1)
	}
}

func TestDecodeRemainingLengthIncomplete(t *testing.T) {
	tests := [][]byte{
		{},
		{0x80},
		{0xFF, 0xFF},
		{0x80, 0x80, 0x80},
	}
	for _, buf := range tests {
		_, next, err := DecodeRemainingLength(buf, 0)
		assert.ErrorIs(t, err, ErrIncompleteLength, "buf=%x", buf)
		assert.Equal(t, 0, next, "no bytes consumed on failure")
	}
}

func TestDecodeRemainingLengthMalformed(t *testing.T) {
	_, next, err := DecodeRemainingLength([]byte{0xFF, 0xFF, 0xFF, 0xFF, 0x7F}, 0)
	assert.ErrorIs(t, err, ErrMalformedLength)
	assert.Equal(t, 0, next)
}

func TestDecodeRemainingLengthOffset(t *testing.T) {
	buf := []byte{0x30, 0xC1, 0x02, 0xAA}
	decoded, next, err := DecodeRemainingLength(buf, 1)
	require.NoError(t, err)
	assert.Equal(t, 321, decoded)
	assert.Equal(t, 3, next)
}

func pingreq() []byte { return []byte{0xC0, 0x00} }

func publishFrame(topic, payload string) []byte {
	variable := append(UInt16ToByte(uint16(len(topic))), []byte(topic)...)
	variable = append(variable, []byte(payload)...)
	frame := append([]byte{0x30}, EncodeRemainingLength(len(variable))...)
	return append(frame, variable...)
}

func TestExtractPacket(t *testing.T) {
	frame := publishFrame("cmd/luz", "42")
	pkt, rest, err := ExtractPacket(frame)
	require.NoError(t, err)
	assert.Empty(t, rest)
	assert.Equal(t, PUBLISH, pkt.Header.Type)
	assert.Equal(t, byte(0), pkt.Header.Flags)
	assert.Equal(t, 11, pkt.Header.RemainingLength)
	assert.Equal(t, frame, pkt.Raw)
}

func TestExtractPacketIncomplete(t *testing.T) {
	frame := publishFrame("cmd/luz", "42")
	for cut := 0; cut < len(frame); cut++ {
		pkt, rest, err := ExtractPacket(frame[:cut])
		assert.ErrorIs(t, err, ErrIncompletePacket, "cut=%d", cut)
		assert.Nil(t, pkt)
		assert.Equal(t, frame[:cut], rest, "buffer untouched on incomplete frame")
	}
}

func TestExtractPacketMalformedLength(t *testing.T) {
	buf := []byte{0x30, 0xFF, 0xFF, 0xFF, 0xFF, 0x01}
	pkt, rest, err := ExtractPacket(buf)
	assert.ErrorIs(t, err, ErrMalformedLength)
	assert.Nil(t, pkt)
	assert.Equal(t, buf, rest)
}

func TestExtractPacketMultiple(t *testing.T) {
	// 一次接收可能携带多个排队的报文
	stream := append(publishFrame("a/b", "1"), pingreq()...)
	stream = append(stream, publishFrame("a/c", "2")...)

	var types []PacketType
	for {
		pkt, rest, err := ExtractPacket(stream)
		if err != nil {
			assert.ErrorIs(t, err, ErrIncompletePacket)
			break
		}
		types = append(types, pkt.Header.Type)
		stream = rest
	}
	assert.Equal(t, []PacketType{PUBLISH, PINGREQ, PUBLISH}, types)
	assert.Empty(t, stream)
}

func TestExtractPacketChunkIndependence(t *testing.T) {
	// 任意切分接收的字节流，提取出的报文序列必须与一次性接收一致
	full := append(publishFrame("cmd/luz", "42"), publishFrame("cmd/sensores", `{"Temp":25.30}`)...)
	full = append(full, pingreq()...)
	full = append(full, publishFrame("cmd/status", `{"status":"ok"}`)...)

	extractAll := func(buf []byte) [][]byte {
		var frames [][]byte
		for {
			pkt, rest, err := ExtractPacket(buf)
			if err != nil {
				break
			}
			frames = append(frames, pkt.Raw)
			buf = rest
		}
		return frames
	}

	expect := extractAll(full)
	require.Len(t, expect, 4)

	for chunkSize := 1; chunkSize <= 9; chunkSize++ {
		var inbox []byte
		var frames [][]byte
		for start := 0; start < len(full); start += chunkSize {
			end := start + chunkSize
			if end > len(full) {
				end = len(full)
			}
			inbox = append(inbox, full[start:end]...)
			for {
				pkt, rest, err := ExtractPacket(inbox)
				if err != nil {
					break
				}
				frames = append(frames, pkt.Raw)
				inbox = rest
			}
		}
		assert.Equal(t, expect, frames, "chunk size %d", chunkSize)
		assert.Empty(t, inbox)
	}
}

func TestHexString(t *testing.T) {
	assert.Equal(t, "d0 00", HexString([]byte{0xD0, 0x00}))
	assert.Equal(t, "", HexString(nil))
}

func TestPacketTypeString(t *testing.T) {
	assert.Equal(t, "CONNECT", CONNECT.String())
	assert.Equal(t, "PINGRESP", PINGRESP.String())
	assert.Equal(t, "UNKNOWN", PacketType(15).String())
}
