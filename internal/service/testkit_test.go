package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"homechat/config"
	"homechat/internal/auth"
	"homechat/internal/model"
	"homechat/internal/repository"
	"homechat/pkg/db/dbtest"
	"homechat/pkg/jwt"
	"homechat/pkg/password"
	"homechat/pkg/push"
	"homechat/pkg/redis"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func init() {
	password.Cost = bcrypt.MinCost
}

type published struct {
	Topic string
	Event Event
}

// fakePublisher 记录所有发布的事件
type fakePublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *fakePublisher) Publish(topic string, payload interface{}) int {
	ev, _ := payload.(Event)
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{Topic: topic, Event: ev})
	return 1
}

func (p *fakePublisher) On(topic string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, e := range p.events {
		if e.Topic == topic {
			out = append(out, e.Event)
		}
	}
	return out
}

func (p *fakePublisher) All() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.events...)
}

func (p *fakePublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []push.Notification
}

func (n *fakeNotifier) Notify(notification push.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
}

func (n *fakeNotifier) Sent() []push.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]push.Notification(nil), n.sent...)
}

type fakeCache struct {
	mu        sync.Mutex
	saved     []redis.PresenceData
	refreshed []uint
}

func (c *fakeCache) Save(_ context.Context, p redis.PresenceData) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.saved = append(c.saved, p)
	return nil
}

func (c *fakeCache) Refresh(_ context.Context, userID uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refreshed = append(c.refreshed, userID)
	return nil
}

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	orm      *gorm.DB
	pub      *fakePublisher
	notifier *fakeNotifier
	cache    *fakeCache

	usersRepo    *repository.UserRepository
	channelsRepo *repository.ChannelRepository
	membersRepo  *repository.MembershipRepository
	messagesRepo *repository.MessageRepository
	tokensRepo   *repository.ApiTokenRepository
	botsRepo     *repository.BotRepository

	system    *SystemAccount
	settings  *SettingService
	verifier  *Verifier
	tokens    *TokenService
	bots      *BotService
	presence  *PresenceService
	channels  *ChannelService
	messages  *MessageService
	webhooks  *WebhookService
	typing    *TypingService
	users     *UserService
	bootstrap *Bootstrap
	jwt       *jwt.JWTService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	orm := dbtest.New(t)
	log := zap.NewNop()

	e := &testEnv{
		orm:          orm,
		pub:          &fakePublisher{},
		notifier:     &fakeNotifier{},
		cache:        &fakeCache{},
		usersRepo:    repository.NewUserRepository(orm),
		channelsRepo: repository.NewChannelRepository(orm),
		membersRepo:  repository.NewMembershipRepository(orm),
		messagesRepo: repository.NewMessageRepository(orm),
		tokensRepo:   repository.NewApiTokenRepository(orm),
		botsRepo:     repository.NewBotRepository(orm),
		jwt:          jwt.NewJWTService(config.JWTConfig{Secret: "test-secret", ExpireTime: time.Hour, Issuer: "homechat"}),
	}
	e.system = NewSystemAccount(e.usersRepo)
	e.settings = NewSettingService(repository.NewSettingRepository(orm))
	e.verifier = NewVerifier(e.tokensRepo, log)
	e.tokens = NewTokenService(e.tokensRepo, log)
	e.bots = NewBotService(e.botsRepo, e.messagesRepo, e.usersRepo, log)
	e.presence = NewPresenceService(e.usersRepo, e.pub, e.cache, PresenceOptions{TTL: 2 * time.Minute, Debounce: 5 * time.Second}, log)
	e.channels = NewChannelService(orm, e.channelsRepo, e.membersRepo, e.usersRepo, e.messagesRepo, e.pub, e.notifier, log)
	e.messages = NewMessageService(orm, e.messagesRepo, e.membersRepo, e.usersRepo, e.channels, e.system, e.pub, e.notifier, log)
	e.webhooks = NewWebhookService(e.botsRepo, e.usersRepo, e.verifier, e.channels, e.messages, e.system, WebhookOptions{}, log)
	e.typing = NewTypingService(e.channels, e.pub)
	e.users = NewUserService(e.usersRepo, e.channels, e.presence, e.settings, e.jwt, log)
	e.bootstrap = NewBootstrap(e.system, e.usersRepo, e.channels, log)
	return e
}

// user 直接写库创建用户，跳过密码哈希
func (e *testEnv) user(t *testing.T, username, role string) *model.User {
	t.Helper()
	u := &model.User{Username: username, PasswordHash: "x", Role: role, Status: model.DefaultStatus}
	require.NoError(t, e.usersRepo.Create(context.Background(), u))
	return u
}

func (e *testEnv) channel(t *testing.T, name, kind string, creator *model.User) *model.Channel {
	t.Helper()
	ch, err := e.channels.Create(context.Background(), creator, CreateChannelInput{Name: name, Type: kind})
	require.NoError(t, err)
	return ch
}

func session(u *model.User) auth.Principal {
	return auth.SessionUser{User: u}
}

func (e *testEnv) tokenPrincipal(t *testing.T) auth.Principal {
	t.Helper()
	system, err := e.system.Get(context.Background())
	require.NoError(t, err)
	return auth.TokenUser{System: system}
}
