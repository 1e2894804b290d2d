package broker

import (
	"errors"
	"time"

	"github.com/rasp-lab/mqtt-debug-broker/internal/journal"
	"github.com/rasp-lab/mqtt-debug-broker/internal/logger"
	"github.com/rasp-lab/mqtt-debug-broker/internal/mqtt"
	"github.com/rasp-lab/mqtt-debug-broker/internal/packet"
	"github.com/rasp-lab/mqtt-debug-broker/internal/session"
)

const readBufferSize = 2048

// handleConnection 是会话的唯一读协程：接收字节进入会话缓冲区，
// 循环提取完整报文并处理，直到对端关闭或出错。单连接内报文按接收顺序处理。
func (b *Broker) handleConnection(sess *session.Session) {
	defer func() {
		sess.Close()
		b.registry.Remove(sess)
		logger.InfoF("[close] %s disconnected", sess.ClientID())
	}()

	buf := make([]byte, readBufferSize)
	for {
		n, err := sess.Conn.Read(buf)
		if err != nil {
			if !sess.Closed() {
				session.HandleReadError(sess.ConnID, err)
			}
			return
		}
		sess.Inbound = append(sess.Inbound, buf[:n]...)
		b.drainPackets(sess)
		if sess.Closed() {
			return
		}
	}
}

// drainPackets 处理缓冲区中所有完整报文。会话被 DISCONNECT 关闭后停止处理
func (b *Broker) drainPackets(sess *session.Session) {
	for !sess.Closed() {
		pkt, rest, err := mqtt.ExtractPacket(sess.Inbound)
		if err != nil {
			if !errors.Is(err, mqtt.ErrIncompletePacket) {
				logger.WarnF("[%s] %v, waiting for more data", sess.ConnID, err)
			}
			return
		}
		sess.Inbound = rest

		if b.cfg.LogPackets {
			logger.InfoF("[raw] op=%d bytes=%s", pkt.Header.Type, mqtt.HexString(pkt.Raw))
		}

		b.handlePacket(sess, pkt)
	}
}

func (b *Broker) handlePacket(sess *session.Session, pkt *mqtt.Packet) {
	// PUBLISH 和 SUBSCRIBE 在各自的处理函数中连同主题一起记录
	if pkt.Header.Type != mqtt.PUBLISH && pkt.Header.Type != mqtt.SUBSCRIBE {
		b.record(sess, journal.DirectionReceived, pkt.Header.Type.String(), "", pkt.Header.RemainingLength)
	}

	switch pkt.Header.Type {
	case mqtt.CONNECT:
		b.handleConnect(sess, pkt)
	case mqtt.PUBLISH:
		b.handlePublish(sess, pkt)
	case mqtt.SUBSCRIBE:
		b.handleSubscribe(sess, pkt)
	case mqtt.PINGREQ:
		b.handlePingReq(sess)
	case mqtt.DISCONNECT:
		b.handleDisconnect(sess)
	default:
		logger.WarnF("[%s] Unhandled packet type %d, packet dropped", sess.ConnID, pkt.Header.Type)
	}
}

func (b *Broker) handleConnect(sess *session.Session, pkt *mqtt.Packet) {
	result, err := packet.ParseConnectPacket(pkt)
	if err != nil {
		logger.WarnF("[%s] Fail to parse CONNECT packet, details: %v", sess.ConnID, err)
		return
	}
	sess.SetClientID(result.ClientIdentifier)
	logger.InfoF("[connect] clientId=%s keepAlive=%ds", sess.ClientID(), result.KeepAlive)

	// 人为延迟用于模拟慢速设备。这是整个处理路径上的一次
	// 有意的阻塞睡眠，延迟期间该连接不处理任何后续报文。
	if delay := b.cfg.ConnectDelay(); delay > 0 {
		logger.DebugF("[%s] Stalling %v before CONNACK", sess.ConnID, delay)
		time.Sleep(delay)
	}

	b.reply(sess, mqtt.CONNACK, packet.NewConnAckPacket())
}

func (b *Broker) handlePublish(sess *session.Session, pkt *mqtt.Packet) {
	result, err := packet.ParsePublishPacket(pkt)
	if err != nil {
		logger.WarnF("[%s] Fail to parse PUBLISH packet, details: %v", sess.ConnID, err)
		return
	}

	if result.PacketFlag.QoS > 0 {
		b.reply(sess, mqtt.PUBACK, packet.NewPubAckPacket(result.PacketID))
	}

	if b.cfg.TraceMessages {
		logger.InfoF("[publish] from=%s topic='%s' payload='%s'", sess.ClientID(), result.TopicName, result.Payload)
	}
	b.record(sess, journal.DirectionReceived, mqtt.PUBLISH.String(), result.TopicName, len(result.Payload))

	delivered := b.registry.Broadcast(result.TopicName, result.Payload, sess)
	if b.cfg.TraceMessages && delivered > 0 {
		logger.InfoF("[publish] forwarded to %d subscribers on topic '%s'", delivered, result.TopicName)
	}
}

func (b *Broker) handleSubscribe(sess *session.Session, pkt *mqtt.Packet) {
	result, err := packet.ParseSubscribePacket(pkt)
	if err != nil {
		logger.WarnF("[%s] Fail to parse SUBSCRIBE packet, details: %v", sess.ConnID, err)
		return
	}

	for _, topic := range result.Topics {
		sess.Subscribe(topic)
		if b.cfg.TraceSubscriptions {
			logger.InfoF("[subscribe] %s -> '%s'", sess.ClientID(), topic)
		}
		b.record(sess, journal.DirectionReceived, mqtt.SUBSCRIBE.String(), topic, 0)
	}

	b.reply(sess, mqtt.SUBACK, packet.NewSubAckPacket(result.PacketID))
}

func (b *Broker) handlePingReq(sess *session.Session) {
	logger.InfoF("[ping] from %s", sess.ClientID())
	b.reply(sess, mqtt.PINGRESP, packet.NewPingRespPacket())
}

// handleDisconnect 立即关闭套接字，会话被标记后不再处理缓冲区中的剩余报文
func (b *Broker) handleDisconnect(sess *session.Session) {
	logger.InfoF("[disconnect] %s", sess.ClientID())
	sess.Close()
}

func (b *Broker) reply(sess *session.Session, packetType mqtt.PacketType, data []byte) {
	if err := sess.Send(data); err != nil {
		logger.WarnF("[%s] Fail to send %s packet, details: %v", sess.ConnID, packetType.String(), err)
		return
	}
	b.record(sess, journal.DirectionSent, packetType.String(), "", len(data))
}

func (b *Broker) record(sess *session.Session, direction, packetType, topic string, size int) {
	if b.journal == nil {
		return
	}
	b.journal.Record(journal.Entry{
		Time:        time.Now(),
		ClientID:    sess.ClientID(),
		Direction:   direction,
		PacketType:  packetType,
		Topic:       topic,
		PayloadSize: size,
	})
}
