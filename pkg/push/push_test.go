package push

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogNotifier_DeliversWithMaskedToken(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	n := NewLogNotifier(8, 0, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = n.Run(ctx)
		close(done)
	}()

	n.Notify(Notification{UserID: 2, DeviceToken: "abcdef0123456789xyz", Title: "#home", Body: "hi"})
	assert.Eventually(t, func() bool { return n.Sent() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	entries := logs.FilterMessage("推送通知").All()
	if assert.Len(t, entries, 1) {
		masked := entries[0].ContextMap()["device_token"]
		assert.NotEqual(t, "abcdef0123456789xyz", masked)
		assert.Contains(t, masked, "abcdef01")
	}
}

func TestLogNotifier_DropsWhenQueueFull(t *testing.T) {
	n := NewLogNotifier(1, 0, zap.NewNop())

	n.Notify(Notification{UserID: 1, DeviceToken: "device-token-one"})
	n.Notify(Notification{UserID: 2, DeviceToken: "device-token-two"})

	assert.Equal(t, uint64(1), n.Dropped())
}

func TestLogNotifier_SkipsUsersWithoutDevice(t *testing.T) {
	n := NewLogNotifier(1, 0, zap.NewNop())
	n.Notify(Notification{UserID: 1})
	n.Notify(Notification{UserID: 2, DeviceToken: "device-token-two"})
	assert.Equal(t, uint64(0), n.Dropped())
}
