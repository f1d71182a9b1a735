package service

import (
	"context"
	"time"

	"homechat/internal/auth"
	"homechat/pkg/broadcast"
)

// TypingService 输入状态广播，用户身份取自已认证的主体
type TypingService struct {
	channels *ChannelService
	pub      Publisher
	now      func() time.Time
}

func NewTypingService(channels *ChannelService, pub Publisher) *TypingService {
	return &TypingService{channels: channels, pub: pub, now: time.Now}
}

// Typing 广播 typing / stop_typing 到 typing_<id>
func (s *TypingService) Typing(ctx context.Context, p auth.Principal, channelID uint, typing bool) error {
	ch, err := s.channels.Get(ctx, p, channelID)
	if err != nil {
		return err
	}
	actor := p.Actor()
	eventType := EventTyping
	if !typing {
		eventType = EventStopTyping
	}
	s.pub.Publish(broadcast.TypingTopic(ch.ID), Event{
		Type:      eventType,
		User:      &UserView{ID: actor.ID, Username: actor.Username},
		ChannelID: ch.ID,
		Typing:    &typing,
		Timestamp: s.now(),
	})
	return nil
}
