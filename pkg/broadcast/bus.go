package broadcast

import (
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// ErrStopped 总线已停止
var ErrStopped = errors.New("broadcast bus stopped")

// Subscriber 一个订阅者（通常对应一个WebSocket连接）
// 事件写入带缓冲的发送通道，缓冲满时该订阅者丢弃事件
type Subscriber struct {
	ID      string
	send    chan []byte
	dropped atomic.Uint64
	closed  bool
}

// C 返回只读的事件通道，订阅者被移除后关闭
func (s *Subscriber) C() <-chan []byte { return s.send }

// Dropped 因缓冲满而丢弃的事件数
func (s *Subscriber) Dropped() uint64 { return s.dropped.Load() }

// Bus 进程内的主题广播总线
// 发布方从不阻塞：投递为非阻塞发送，至多一次，无持久化与重放
type Bus struct {
	lock       sync.RWMutex
	topics     map[string]map[*Subscriber]struct{}
	subs       map[*Subscriber]map[string]struct{}
	bufferSize int
	running    bool
	log        *zap.Logger
}

// NewBus 创建总线，需调用 Start 后才能订阅与发布
func NewBus(bufferSize int, log *zap.Logger) *Bus {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		topics:     make(map[string]map[*Subscriber]struct{}),
		subs:       make(map[*Subscriber]map[string]struct{}),
		bufferSize: bufferSize,
		log:        log,
	}
}

// Start 启动总线
func (b *Bus) Start() {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.running = true
}

// Stop 停止总线并关闭所有订阅者，之后的发布为空操作
func (b *Bus) Stop() {
	b.lock.Lock()
	defer b.lock.Unlock()
	if !b.running {
		return
	}
	b.running = false
	for sub := range b.subs {
		b.closeLocked(sub)
	}
	b.topics = make(map[string]map[*Subscriber]struct{})
	b.subs = make(map[*Subscriber]map[string]struct{})
}

// Running 总线是否运行中
func (b *Bus) Running() bool {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return b.running
}

// NewSubscriber 创建并登记订阅者（尚未订阅任何主题）
func (b *Bus) NewSubscriber(id string) (*Subscriber, error) {
	b.lock.Lock()
	defer b.lock.Unlock()
	if !b.running {
		return nil, ErrStopped
	}
	sub := &Subscriber{ID: id, send: make(chan []byte, b.bufferSize)}
	b.subs[sub] = make(map[string]struct{})
	return sub, nil
}

// Subscribe 订阅主题，重复订阅无副作用
func (b *Bus) Subscribe(sub *Subscriber, topic string) error {
	b.lock.Lock()
	defer b.lock.Unlock()
	if !b.running {
		return ErrStopped
	}
	topicsOfSub, ok := b.subs[sub]
	if !ok {
		return errors.New("unknown subscriber")
	}
	set, ok := b.topics[topic]
	if !ok {
		set = make(map[*Subscriber]struct{})
		b.topics[topic] = set
	}
	set[sub] = struct{}{}
	topicsOfSub[topic] = struct{}{}
	return nil
}

// Unsubscribe 取消订阅
func (b *Bus) Unsubscribe(sub *Subscriber, topic string) {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.unsubscribeLocked(sub, topic)
}

// Remove 取消订阅者的全部主题并关闭其通道
func (b *Bus) Remove(sub *Subscriber) {
	b.lock.Lock()
	defer b.lock.Unlock()
	topicsOfSub, ok := b.subs[sub]
	if !ok {
		return
	}
	for topic := range topicsOfSub {
		b.unsubscribeLocked(sub, topic)
	}
	delete(b.subs, sub)
	b.closeLocked(sub)
}

// Topics 返回订阅者当前订阅的主题
func (b *Bus) Topics(sub *Subscriber) []string {
	b.lock.RLock()
	defer b.lock.RUnlock()
	out := make([]string, 0, len(b.subs[sub]))
	for topic := range b.subs[sub] {
		out = append(out, topic)
	}
	return out
}

// SubscriberCount 主题的订阅者数量
func (b *Bus) SubscriberCount(topic string) int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	return len(b.topics[topic])
}

// Publish 将 payload 编码为JSON后广播到主题，返回成功投递的订阅者数
func (b *Bus) Publish(topic string, payload interface{}) int {
	data, err := json.Marshal(payload)
	if err != nil {
		b.log.Error("广播事件编码失败", zap.String("topic", topic), zap.Error(err))
		return 0
	}
	return b.PublishRaw(topic, data)
}

// PublishRaw 广播已编码的数据
func (b *Bus) PublishRaw(topic string, data []byte) int {
	b.lock.RLock()
	defer b.lock.RUnlock()
	if !b.running {
		return 0
	}

	delivered := 0
	for sub := range b.topics[topic] {
		select {
		case sub.send <- data:
			delivered++
		default:
			// 订阅者过慢，丢弃该事件
			sub.dropped.Add(1)
			b.log.Debug("订阅者缓冲已满，丢弃事件",
				zap.String("topic", topic),
				zap.String("subscriber", sub.ID),
			)
		}
	}
	return delivered
}

func (b *Bus) unsubscribeLocked(sub *Subscriber, topic string) {
	if set, ok := b.topics[topic]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.topics, topic)
		}
	}
	if topicsOfSub, ok := b.subs[sub]; ok {
		delete(topicsOfSub, topic)
	}
}

func (b *Bus) closeLocked(sub *Subscriber) {
	if !sub.closed {
		sub.closed = true
		close(sub.send)
	}
}
