// Package push 推送通知。当前实现只记录将要发送的内容，不对接真实推送服务
package push

import (
	"context"
	"sync/atomic"

	"homechat/pkg/token"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// Notification 一条待推送的通知
type Notification struct {
	UserID      uint
	DeviceToken string
	Title       string
	Body        string
	ChannelID   uint
	MessageID   uint
}

// Notifier 推送通知接口，Notify 不得阻塞调用方
type Notifier interface {
	Notify(n Notification)
}

// Nop 丢弃所有通知
type Nop struct{}

func (Nop) Notify(Notification) {}

// LogNotifier 通知入队后由后台协程限速取出并写日志
type LogNotifier struct {
	queue   chan Notification
	limiter ratelimit.Limiter
	log     *zap.Logger
	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewLogNotifier queueSize 为队列长度，ratePerSecond 为每秒最多处理的通知数
func NewLogNotifier(queueSize, ratePerSecond int, log *zap.Logger) *LogNotifier {
	if queueSize <= 0 {
		queueSize = 1
	}
	limiter := ratelimit.NewUnlimited()
	if ratePerSecond > 0 {
		limiter = ratelimit.New(ratePerSecond, ratelimit.WithoutSlack)
	}
	return &LogNotifier{
		queue:   make(chan Notification, queueSize),
		limiter: limiter,
		log:     log,
	}
}

// Notify 入队；队列满时丢弃
func (n *LogNotifier) Notify(notification Notification) {
	if notification.DeviceToken == "" {
		return
	}
	select {
	case n.queue <- notification:
	default:
		n.dropped.Add(1)
		n.log.Warn("推送队列已满，丢弃通知",
			zap.Uint("user_id", notification.UserID),
			zap.Uint("message_id", notification.MessageID),
		)
	}
}

// Run 处理队列直到 ctx 结束
func (n *LogNotifier) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case notification := <-n.queue:
			n.limiter.Take()
			n.deliver(notification)
		}
	}
}

func (n *LogNotifier) deliver(notification Notification) {
	n.sent.Add(1)
	n.log.Info("推送通知",
		zap.Uint("user_id", notification.UserID),
		zap.String("device_token", token.Mask(notification.DeviceToken)),
		zap.String("title", notification.Title),
		zap.String("body", notification.Body),
		zap.Uint("channel_id", notification.ChannelID),
		zap.Uint("message_id", notification.MessageID),
	)
}

// Sent 已处理的通知数
func (n *LogNotifier) Sent() uint64 { return n.sent.Load() }

// Dropped 因队列满而丢弃的通知数
func (n *LogNotifier) Dropped() uint64 { return n.dropped.Load() }
