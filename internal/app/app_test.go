package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisv9 "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"financegpt/internal/ai"
	"financegpt/internal/cache"
	"financegpt/internal/migration"
	"financegpt/internal/model"
	"financegpt/internal/repository"
)

type testEnv struct {
	db       *gorm.DB
	redis    *miniredis.Miniredis
	users    *repository.UserRepository
	chats    *repository.ChatRepository
	history  *cache.HistoryCache
	denylist *cache.TokenDenylist
	states   *cache.OAuthStateStore
	auth     *AuthService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, migration.Migrate(db))

	mr := miniredis.RunT(t)
	client := redisv9.NewClient(&redisv9.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	env := &testEnv{
		db:       db,
		redis:    mr,
		users:    repository.NewUserRepository(db),
		chats:    repository.NewChatRepository(db),
		history:  cache.NewHistoryCache(client, time.Minute, 5*time.Second),
		denylist: cache.NewTokenDenylist(client),
		states:   cache.NewOAuthStateStore(client, time.Minute),
	}
	env.auth = NewAuthService(env.users, env.denylist, "test-secret", time.Hour, bcrypt.MinCost)
	return env
}

func (e *testEnv) register(t *testing.T, name, email, password string) *model.User {
	t.Helper()
	res, err := e.auth.Register(context.Background(), RegisterInput{Name: name, Email: email, Password: password})
	require.NoError(t, err)
	return res.User
}

type fakeAssistant struct {
	configured bool
	reply      string
	err        error
	prompts    [][]ai.ChatMessage
}

func (f *fakeAssistant) Configured() bool { return f.configured }

func (f *fakeAssistant) Complete(_ context.Context, messages []ai.ChatMessage) (string, error) {
	f.prompts = append(f.prompts, messages)
	return f.reply, f.err
}

type fakePublisher struct {
	mu        sync.Mutex
	published []model.Chat
	err       error
}

func (p *fakePublisher) Publish(_ context.Context, chat model.Chat) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, chat)
	return nil
}
