package cli

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"quiz-battle-service/internal/app"
	"quiz-battle-service/internal/config"
	"quiz-battle-service/internal/infra/memory"
	mongoinfra "quiz-battle-service/internal/infra/mongo"
	pgloader "quiz-battle-service/internal/infra/postgres"
	redisinfra "quiz-battle-service/internal/infra/redis"
	"quiz-battle-service/internal/infra/sqlstore"
)

// engine is the wired battle service plus the connections it owns.
type engine struct {
	service *app.BattleService
	closers []func() error
}

func (e *engine) onClose(fn func() error) {
	e.closers = append(e.closers, fn)
}

// Close releases connections in reverse order of creation.
func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			log.Printf("close: %v", err)
		}
	}
	e.closers = nil
}

func newEngine(ctx context.Context, cfg config.Config) (_ *engine, err error) {
	eng := &engine{}
	defer func() {
		if err != nil {
			eng.Close()
		}
	}()

	var (
		store app.BattleStore
		db    *bun.DB
	)
	switch cfg.Store.Driver {
	case config.StorePostgres, config.StoreSQLite:
		driver, dsn := sqlTarget(cfg)
		db, err = sqlstore.Open(driver, dsn)
		if err != nil {
			return nil, err
		}
		eng.onClose(db.Close)
		if err := sqlstore.Migrate(ctx, db); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
		store = sqlstore.NewBattleStore(db)
	default:
		store = memory.NewBattleStore()
	}

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		eng.onClose(redisClient.Close)
	}

	loader, err := newQuestionLoader(ctx, cfg, db, eng)
	if err != nil {
		return nil, err
	}
	questionTTL := config.Duration(cfg.Questions.TTL, 10*time.Minute)
	var questions app.QuestionRepository
	if redisClient != nil {
		questions = redisinfra.NewQuestionRepository(redisClient, loader, config.Duration(cfg.Redis.TTL, questionTTL))
	} else {
		questions = memory.NewQuestionRepository(loader, questionTTL)
	}

	var broker app.Broker
	if cfg.Broker.Driver == config.BrokerRedis {
		rb := redisinfra.NewBroker(redisClient)
		if err := rb.Start(ctx); err != nil {
			return nil, fmt.Errorf("start redis broker: %w", err)
		}
		eng.onClose(rb.Close)
		broker = rb
	} else {
		broker = memory.NewBroker()
	}

	var notifier app.Notifier = memory.NewLogNotifier()
	if redisClient != nil {
		notifier = redisinfra.NewNotifier(redisClient)
	}

	channel := app.NewSyncChannel(broker, config.Duration(cfg.Battle.ReconcileInterval, 5*time.Second))
	eng.service = app.NewBattleService(store, questions, channel,
		app.WithSettings(app.Settings{
			QuestionCount:   cfg.Battle.QuestionCount,
			FallbackSubject: cfg.Questions.FallbackSubject,
			RequireReady:    cfg.Battle.RequireReady,
			OpenListLimit:   cfg.Battle.OpenListLimit,
		}),
		app.WithNotifier(notifier),
		app.WithProfiles(memory.NewProfileDirectory(nil)),
	)
	log.Printf("engine ready (store=%s questions=%s broker=%s)", cfg.Store.Driver, cfg.Questions.Source, cfg.Broker.Driver)
	return eng, nil
}

func newQuestionLoader(ctx context.Context, cfg config.Config, db *bun.DB, eng *engine) (memory.QuestionLoader, error) {
	switch cfg.Questions.Source {
	case config.SourceStore:
		if db == nil {
			return nil, fmt.Errorf("question source %q needs a sql store", config.SourceStore)
		}
		return sqlstore.NewQuestionLoader(db), nil
	case config.SourcePostgres:
		if cfg.Postgres.URL == "" {
			return nil, fmt.Errorf("postgres url not configured")
		}
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, err
		}
		eng.onClose(func() error {
			pool.Close()
			return nil
		})
		return pgloader.NewQuestionLoader(pool), nil
	case config.SourceMongo:
		client, err := mongoinfra.Connect(ctx, cfg.Mongo.URI)
		if err != nil {
			return nil, err
		}
		eng.onClose(func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		})
		return mongoinfra.NewQuestionLoader(client.Database(cfg.Mongo.Database)), nil
	default:
		return memory.NewStaticQuestionLoader(sampleQuestions()), nil
	}
}

// sqlTarget picks the database migrate and the sql store talk to. A memory
// store falls back to postgres.url.
func sqlTarget(cfg config.Config) (driver, dsn string) {
	switch cfg.Store.Driver {
	case config.StoreSQLite:
		return sqlstore.DriverSQLite, cfg.Store.DSN
	case config.StorePostgres:
		if cfg.Store.DSN != "" {
			return sqlstore.DriverPostgres, cfg.Store.DSN
		}
		return sqlstore.DriverPostgres, cfg.Postgres.URL
	default:
		return sqlstore.DriverPostgres, cfg.Postgres.URL
	}
}
