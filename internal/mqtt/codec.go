package mqtt

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIncompleteLength 剩余长度字段尚未接收完整
	ErrIncompleteLength = errors.New("remaining length field is incomplete")
	// ErrMalformedLength 剩余长度编码超过4字节上限
	ErrMalformedLength = errors.New("the remaining length exceeds the 4 byte limit")
	// ErrIncompletePacket 缓冲区中还没有一个完整报文
	ErrIncompletePacket = errors.New("packet is incomplete")
)

// DecodeRemainingLength 从 buf 的 offset 位置解码剩余长度。
// 成功时返回解码值和新的偏移量；数据不足返回 ErrIncompleteLength，
// 编码超长返回 ErrMalformedLength，两种情况都不消耗任何字节。
func DecodeRemainingLength(buf []byte, offset int) (int, int, error) {
	multiplier := 1
	value := 0
	for i := 0; i < 4; i++ {
		if offset+i >= len(buf) {
			return 0, offset, ErrIncompleteLength
		}
		encodedByte := buf[offset+i]
		value += int(encodedByte&127) * multiplier
		multiplier *= 128
		if (encodedByte & 128) == 0 {
			return value, offset + i + 1, nil
		}
	}
	return 0, offset, ErrMalformedLength
}

// EncodeRemainingLength 编码剩余长度，产生1-4个字节
func EncodeRemainingLength(x int) []byte {
	if x == 0 {
		return []byte{0}
	}
	var buf [4]byte
	i := 0
	for x > 0 && i < 4 {
		buf[i] = byte(x % 128)
		if x /= 128; x > 0 {
			buf[i] |= 128
		}
		i++
	}
	return buf[:i]
}

// ExtractPacket 从缓冲区头部提取一个完整报文，返回报文和剩余字节。
// 缓冲区不足一个完整报文时返回 ErrIncompletePacket 且不消耗数据，
// 调用方应保留缓冲区等待下一次接收。一次接收可能携带多个报文，
// 调用方需循环提取直到缓冲区中不再有完整报文。
func ExtractPacket(buf []byte) (*Packet, []byte, error) {
	if len(buf) < 2 {
		return nil, buf, ErrIncompletePacket
	}

	remaining, next, err := DecodeRemainingLength(buf, 1)
	if err != nil {
		if errors.Is(err, ErrIncompleteLength) {
			return nil, buf, ErrIncompletePacket
		}
		return nil, buf, err
	}

	total := next + remaining
	if len(buf) < total {
		return nil, buf, ErrIncompletePacket
	}

	raw := make([]byte, total)
	copy(raw, buf[:total])

	header := &FixedHeader{
		Type:            PacketType(buf[0] >> 4),
		Flags:           buf[0] & 0x0F,
		RemainingLength: remaining,
	}

	return &Packet{
		Header: header,
		Payload: &Payload{
			Context:    raw[next:],
			ContextLen: remaining,
			CurrentPtr: 0,
		},
		Raw: raw,
	}, buf[total:], nil
}

// HexString 将报文字节渲染为空格分隔的十六进制，用于 raw 跟踪输出
func HexString(data []byte) string {
	var sb strings.Builder
	for i, b := range data {
		if i > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(fmt.Sprintf("%02x", b))
	}
	return sb.String()
}
