package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"financegpt/internal/ai"
	appsvc "financegpt/internal/app"
	"financegpt/internal/cache"
	"financegpt/internal/config"
	"financegpt/internal/migration"
	"financegpt/internal/pkg/logger"
	"financegpt/internal/platform/database"
	"financegpt/internal/platform/google"
	rabbitmqClient "financegpt/internal/platform/rabbitmq"
	redisClient "financegpt/internal/platform/redis"
	"financegpt/internal/platform/uploads"
	"financegpt/internal/repository"
	"financegpt/internal/worker"
)

type App struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *gorm.DB
	Redis      *redis.Client
	MQConn     *amqp.Connection
	ChatWorker *worker.ChatPersistWorker

	Auth  *appsvc.AuthService
	Users *appsvc.UserService
	OAuth *appsvc.OAuthService
	Chat  *appsvc.ChatService

	StartedAt time.Time
}

// Deps are the already opened connections a service graph is built on.
// Redis and MQConn may be nil when the matching feature is disabled. A
// non-nil Google replaces the provider built from the google config.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger
	DB     *gorm.DB
	Redis  *redis.Client
	MQConn *amqp.Connection
	Google appsvc.GoogleProvider
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}

	db, err := database.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	if err := migration.Migrate(db); err != nil {
		_ = database.Close(db)
		return nil, err
	}
	log.Info("database ready", "driver", cfg.Database.Driver)

	deps := Deps{Config: cfg, Logger: log, DB: db}

	if cfg.Redis.Enabled {
		deps.Redis, err = redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			_ = database.Close(db)
			return nil, err
		}
		log.Info("redis ready", "addr", cfg.Redis.Addr)
	}

	if cfg.RabbitMQ.Enabled {
		deps.MQConn, err = rabbitmqClient.New(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.ChatPersistQueue)
		if err != nil {
			closeDeps(deps)
			return nil, err
		}
		log.Info("rabbitmq ready", "queue", cfg.RabbitMQ.ChatPersistQueue)
	}

	app, err := Wire(deps)
	if err != nil {
		closeDeps(deps)
		return nil, err
	}

	if app.MQConn != nil && cfg.Chat.PersistMode == config.PersistModeQueue {
		app.ChatWorker = worker.NewChatPersistWorker(app.MQConn, app.Chat, cfg.RabbitMQ.ChatPersistQueue, log)
		if err := app.ChatWorker.Start(ctx); err != nil {
			_ = app.Close()
			return nil, fmt.Errorf("start chat worker failed: %w", err)
		}
	}

	return app, nil
}

// Wire builds repositories, caches and services on top of deps.
func Wire(deps Deps) (*App, error) {
	cfg := deps.Config
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	userRepo := repository.NewUserRepository(deps.DB)
	chatRepo := repository.NewChatRepository(deps.DB)

	var denylist appsvc.TokenDenylist
	var states appsvc.OAuthStateStore
	chatOpts := appsvc.ChatServiceOptions{
		MaxHistory:   cfg.Chat.MaxHistoryPerUser,
		SystemPrompt: cfg.LLM.SystemPrompt,
		Logger:       log,
	}

	if deps.Redis != nil {
		denylist = cache.NewTokenDenylist(deps.Redis)
		states = cache.NewOAuthStateStore(deps.Redis, time.Duration(cfg.Google.StateTTLSeconds)*time.Second)
		chatOpts.HistoryCache = cache.NewHistoryCache(
			deps.Redis,
			time.Duration(cfg.Redis.HistoryTTLSeconds)*time.Second,
			time.Duration(cfg.Redis.HistoryDirtyTTLSeconds)*time.Second,
		)
	}

	if cfg.Chat.PersistMode == config.PersistModeQueue {
		if deps.MQConn == nil {
			return nil, errors.New("queue persist mode needs a rabbitmq connection")
		}
		chatOpts.Publisher = rabbitmqClient.NewChatPublisher(deps.MQConn, cfg.RabbitMQ.ChatPersistQueue)
	}

	llmConfig := ai.ChatConfig{BaseURL: cfg.LLM.BaseURL, APIKey: cfg.LLM.APIKey, Model: cfg.LLM.Model}
	if llmConfig.Valid() {
		chatOpts.Assistant = ai.NewClient(llmConfig)
		log.Info("llm assistant configured", "model", cfg.LLM.Model)
	}

	if cfg.Chat.UploadDir != "" {
		chatOpts.Documents = uploads.NewStore(cfg.Chat.UploadDir, cfg.Chat.DocumentContextChars)
	}

	provider := deps.Google
	if provider == nil && cfg.Google.Enabled() {
		provider = google.NewProvider(cfg.Google.ClientID, cfg.Google.ClientSecret, cfg.Google.CallbackURL)
	}
	if provider != nil && states == nil {
		return nil, errors.New("google login needs redis for oauth state")
	}

	authService := appsvc.NewAuthService(
		userRepo,
		denylist,
		cfg.Auth.JWTSecret,
		time.Duration(cfg.Auth.JWTExpireMinute)*time.Minute,
		cfg.Auth.BcryptCost,
	)

	return &App{
		Config:    cfg,
		Logger:    log,
		DB:        deps.DB,
		Redis:     deps.Redis,
		MQConn:    deps.MQConn,
		Auth:      authService,
		Users:     appsvc.NewUserService(userRepo, authService),
		OAuth:     appsvc.NewOAuthService(provider, states, userRepo, authService),
		Chat:      appsvc.NewChatService(userRepo, chatRepo, chatOpts),
		StartedAt: time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.ChatWorker != nil {
		a.ChatWorker.Close()
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.DB != nil {
		if err := database.Close(a.DB); err != nil {
			closeErr = err
		}
	}
	a.Logger.Sync()
	return closeErr
}

func closeDeps(deps Deps) {
	if deps.Redis != nil {
		_ = deps.Redis.Close()
	}
	if deps.MQConn != nil {
		_ = deps.MQConn.Close()
	}
	if deps.DB != nil {
		_ = database.Close(deps.DB)
	}
}
