package broadcast

import (
	"fmt"
	"strconv"
	"strings"
)

// PresenceTopic 全局在线状态主题
const PresenceTopic = "presence"

const (
	channelPrefix = "channel_"
	typingPrefix  = "typing_"
)

// TopicKind 主题类别
type TopicKind int

const (
	TopicUnknown TopicKind = iota
	TopicPresence
	TopicChannel
	TopicTyping
)

// ChannelTopic 频道消息/成员数主题
func ChannelTopic(channelID uint) string {
	return fmt.Sprintf("%s%d", channelPrefix, channelID)
}

// TypingTopic 频道输入状态主题
func TypingTopic(channelID uint) string {
	return fmt.Sprintf("%s%d", typingPrefix, channelID)
}

// ParseTopic 解析主题名，返回类别与频道ID
func ParseTopic(topic string) (TopicKind, uint, bool) {
	if topic == PresenceTopic {
		return TopicPresence, 0, true
	}
	for prefix, kind := range map[string]TopicKind{channelPrefix: TopicChannel, typingPrefix: TopicTyping} {
		if !strings.HasPrefix(topic, prefix) {
			continue
		}
		id, err := strconv.ParseUint(strings.TrimPrefix(topic, prefix), 10, 64)
		if err != nil || id == 0 {
			return TopicUnknown, 0, false
		}
		return kind, uint(id), true
	}
	return TopicUnknown, 0, false
}
