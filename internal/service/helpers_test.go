package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"whisp/config"
	"whisp/internal/model"
	"whisp/internal/repository"
	"whisp/pkg/db"
	"whisp/pkg/events"

	"github.com/stretchr/testify/require"
)

var testLimits = config.ContentConfig{
	MaxWhisperLength: 280,
	MaxCommentLength: 500,
	MaxMessageLength: 1000,
	MaxBioLength:     160,
}

type publishedEvent struct {
	topic string
	event events.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{topic: topic, event: event})
	return nil
}

func (p *recordingPublisher) byTopic(topic string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.topic == topic {
			out = append(out, e.event)
		}
	}
	return out
}

type fakeTokens struct {
	mu sync.Mutex
	n  int
}

func (f *fakeTokens) GenerateToken(userID uint, _ map[string]interface{}) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return fmt.Sprintf("token-%d-%d", userID, f.n), nil
}

type testEnv struct {
	ctx       context.Context
	store     *repository.Store
	pub       *recordingPublisher
	users     *UserService
	relations *RelationService
	whispers  *WhisperService
	feed      *FeedService
	messages  *MessageService
}

// newTestEnv 每个测试使用独立的内存 sqlite 库
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	gdb, err := db.Open(config.DatabaseConfig{
		Driver:   "sqlite",
		Database: "file:" + name + "?mode=memory&cache=shared",
		LogLevel: "silent",
	})
	require.NoError(t, err)
	require.NoError(t, gdb.AutoMigrate(model.All()...))
	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	store := repository.NewStore(gdb)
	pub := &recordingPublisher{}
	return &testEnv{
		ctx:       context.Background(),
		store:     store,
		pub:       pub,
		users:     NewUserService(store, &fakeTokens{}, pub, testLimits),
		relations: NewRelationService(store, pub),
		whispers:  NewWhisperService(store, pub, testLimits),
		feed:      NewFeedService(store, config.FeedConfig{DefaultLimit: 10, MaxLimit: 50}),
		messages:  NewMessageService(store, pub, testLimits),
	}
}

// createUser 直接写库创建用户，跳过注册流程
func (e *testEnv) createUser(t *testing.T, username string) *model.User {
	t.Helper()
	u := &model.User{
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: "x",
	}
	require.NoError(t, e.store.Users.Create(e.ctx, u))
	return u
}

func (e *testEnv) befriend(t *testing.T, a, b *model.User) {
	t.Helper()
	require.NoError(t, e.relations.SendRequest(e.ctx, a.ID, b.ID))
	require.NoError(t, e.relations.AcceptRequest(e.ctx, b.ID, a.ID))
}

func (e *testEnv) post(t *testing.T, author *model.User, content string) *WhisperView {
	t.Helper()
	w, err := e.whispers.CreateWhisper(e.ctx, author.ID, content)
	require.NoError(t, err)
	return w
}

func summaryIDs(users []*UserSummary) []uint {
	ids := make([]uint, 0, len(users))
	for _, u := range users {
		ids = append(ids, u.ID)
	}
	return ids
}

func whisperAuthors(views []*WhisperView) []uint {
	ids := make([]uint, 0, len(views))
	for _, v := range views {
		ids = append(ids, v.User.ID)
	}
	return ids
}
