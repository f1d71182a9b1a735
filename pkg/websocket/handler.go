package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"homechat/config"
	"homechat/internal/auth"
	"homechat/internal/service"
	"homechat/pkg/broadcast"
	apperrors "homechat/pkg/errors"
	"homechat/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// 客户端帧类型
const (
	FrameSubscribe   = "subscribe"
	FrameUnsubscribe = "unsubscribe"
	FrameHeartbeat   = "heartbeat"
	FrameSetStatus   = "set_status"
	FrameTyping      = "typing"
	FrameStopTyping  = "stop_typing"
)

// 服务端回复帧类型
const (
	ReplySubscribed   = "subscribed"
	ReplyUnsubscribed = "unsubscribed"
	ReplyError        = "error"
)

// ClientFrame 客户端发来的帧；其余字段（例如 username）一律忽略
type ClientFrame struct {
	Type      string `json:"type"`
	Topic     string `json:"topic,omitempty"`
	Status    string `json:"status,omitempty"`
	ChannelID uint   `json:"channel_id,omitempty"`
}

// ReplyFrame 服务端对客户端帧的回复
type ReplyFrame struct {
	Type    string `json:"type"`
	Topic   string `json:"topic,omitempty"`
	Message string `json:"message,omitempty"`
}

// Resolver 由令牌解析请求主体
type Resolver interface {
	Resolve(c *gin.Context, token string) (auth.Principal, bool)
}

// Handler WebSocket 订阅端点
type Handler struct {
	bus      *broadcast.Bus
	manager  *Manager
	resolver Resolver
	presence *service.PresenceService
	typing   *service.TypingService
	channels *service.ChannelService
	cfg      config.WebSocketConfig
	log      *zap.Logger
	upgrader websocket.Upgrader
}

func NewHandler(
	bus *broadcast.Bus,
	manager *Manager,
	resolver Resolver,
	presence *service.PresenceService,
	typing *service.TypingService,
	channels *service.ChannelService,
	cfg config.WebSocketConfig,
	log *zap.Logger,
) *Handler {
	return &Handler{
		bus:      bus,
		manager:  manager,
		resolver: resolver,
		presence: presence,
		typing:   typing,
		channels: channels,
		cfg:      withDefaults(cfg),
		log:      log,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 局域网部署，允许跨域
			},
		},
	}
}

func withDefaults(cfg config.WebSocketConfig) config.WebSocketConfig {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = 90 * time.Second
	}
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 16
	}
	return cfg
}

// Serve GET /ws?token=<token>
func (h *Handler) Serve(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.GetHeader("Sec-WebSocket-Protocol"), "Bearer ")
	}
	principal, ok := h.resolver.Resolve(c, token)
	if !ok {
		response.FromError(c, apperrors.ErrInvalidToken)
		return
	}

	// 回显子协议，避免客户端提示 "Server sent no subprotocol"
	respHeader := http.Header{}
	if protocol := c.GetHeader("Sec-WebSocket-Protocol"); protocol != "" {
		respHeader.Set("Sec-WebSocket-Protocol", protocol)
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, respHeader)
	if err != nil {
		return
	}
	defer conn.Close()

	actor := principal.Actor()
	sub, err := h.bus.NewSubscriber(fmt.Sprintf("user-%d-%s", actor.ID, uuid.NewString()))
	if err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		return
	}

	// 连接结束后请求上下文可能已取消，状态更新使用独立上下文
	ctx := context.WithoutCancel(c.Request.Context())
	_, tracksPresence := principal.(auth.SessionUser)
	if tracksPresence && h.manager.Connect(actor.ID) {
		if err := h.presence.MarkOnline(ctx, actor.ID); err != nil {
			h.log.Warn("标记在线失败", zap.Uint("user_id", actor.ID), zap.Error(err))
		}
	}
	defer func() {
		h.bus.Remove(sub)
		if dropped := sub.Dropped(); dropped > 0 {
			h.log.Debug("连接期间丢弃的事件", zap.String("subscriber", sub.ID), zap.Uint64("dropped", dropped))
		}
		if tracksPresence && h.manager.Disconnect(actor.ID) {
			if err := h.presence.MarkOffline(ctx, actor.ID); err != nil {
				h.log.Warn("标记离线失败", zap.Uint("user_id", actor.ID), zap.Error(err))
			}
		}
	}()

	replies := make(chan []byte, h.cfg.SendBuffer)
	done := make(chan struct{})
	go h.writeLoop(conn, sub, replies, done)

	// 读循环；超时未收到任何数据则断开
	_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))
	})
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			break
		}
		_ = conn.SetReadDeadline(time.Now().Add(h.cfg.ReadTimeout))

		var frame ClientFrame
		if err := json.Unmarshal(payload, &frame); err != nil {
			h.reply(replies, ReplyFrame{Type: ReplyError, Message: "invalid frame"})
			continue
		}
		if reply := h.handleFrame(ctx, principal, sub, frame); reply != nil {
			h.reply(replies, *reply)
		}
	}
	close(done)
}

func (h *Handler) writeLoop(conn *websocket.Conn, sub *broadcast.Subscriber, replies <-chan []byte, done <-chan struct{}) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case msg, ok := <-sub.C():
			if !ok {
				// 总线停止或订阅者被移除
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				_ = conn.Close()
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = conn.Close()
				return
			}
		case msg := <-replies:
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				_ = conn.Close()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second)); err != nil {
				_ = conn.Close()
				return
			}
		case <-done:
			return
		}
	}
}

func (h *Handler) reply(replies chan<- []byte, frame ReplyFrame) {
	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	select {
	case replies <- data:
	default:
	}
}

// handleFrame 处理一帧，返回需要回复的内容
func (h *Handler) handleFrame(ctx context.Context, p auth.Principal, sub *broadcast.Subscriber, frame ClientFrame) *ReplyFrame {
	actorID := p.Actor().ID
	var err error

	switch frame.Type {
	case FrameSubscribe:
		if err = h.authorizeTopic(ctx, p, frame.Topic); err == nil {
			if err = h.bus.Subscribe(sub, frame.Topic); err == nil {
				return &ReplyFrame{Type: ReplySubscribed, Topic: frame.Topic}
			}
		}
	case FrameUnsubscribe:
		h.bus.Unsubscribe(sub, frame.Topic)
		return &ReplyFrame{Type: ReplyUnsubscribed, Topic: frame.Topic}
	case FrameHeartbeat:
		if _, ok := p.(auth.SessionUser); ok {
			err = h.presence.Heartbeat(ctx, actorID)
		}
	case FrameSetStatus:
		_, err = h.presence.SetStatus(ctx, actorID, frame.Status)
	case FrameTyping, FrameStopTyping:
		err = h.typing.Typing(ctx, p, frame.ChannelID, frame.Type == FrameTyping)
	default:
		err = apperrors.Field("type", "unknown frame type")
	}

	if err == nil {
		return nil
	}
	message := "internal error"
	if appErr, ok := apperrors.As(err); ok {
		message = appErr.Message
	} else {
		h.log.Error("处理WebSocket帧失败", zap.String("type", frame.Type), zap.Uint("user_id", actorID), zap.Error(err))
	}
	return &ReplyFrame{Type: ReplyError, Topic: frame.Topic, Message: message}
}

// authorizeTopic presence 对所有已认证用户开放，频道主题需要访问权限
func (h *Handler) authorizeTopic(ctx context.Context, p auth.Principal, topic string) error {
	kind, channelID, ok := broadcast.ParseTopic(topic)
	if !ok {
		return apperrors.Field("topic", "unknown topic")
	}
	if kind == broadcast.TopicPresence {
		return nil
	}
	_, err := h.channels.Get(ctx, p, channelID)
	return err
}
