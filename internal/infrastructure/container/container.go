package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	appcontainer "quantstore/internal/application/container"
	"quantstore/internal/application/port"
	"quantstore/internal/infrastructure/config"
	_ "quantstore/internal/infrastructure/exchange/binance"
	"quantstore/internal/infrastructure/feed"
	"quantstore/internal/infrastructure/messaging/kafka"
	"quantstore/internal/infrastructure/storage"
	"quantstore/internal/infrastructure/storage/composite"
	"quantstore/internal/infrastructure/storage/memory"
	mongostore "quantstore/internal/infrastructure/storage/mongo"
	pgstore "quantstore/internal/infrastructure/storage/postgres"
	redisrepo "quantstore/internal/infrastructure/storage/redis"
	sqlitestore "quantstore/internal/infrastructure/storage/sqlite"
)

// Container 包含所有应用依赖
type Container struct {
	cfg       *config.Config
	store     port.DocumentStore
	publisher port.EventPublisher
	app       *appcontainer.Container

	closeOnce   sync.Once
	closerChain []func() error
}

// New 创建新的容器实例: 文档存储 -> 事件发布 -> 仓储 -> 服务
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	c := &Container{
		cfg:         cfg,
		closerChain: make([]func() error, 0),
	}

	if err := c.initStore(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: %w", ErrStorageInitFailed, err)
	}
	if err := c.initEvents(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: %w", ErrEventsInitFailed, err)
	}
	if err := c.initRepositories(ctx); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("%w: %w", ErrStorageInitFailed, err)
	}
	return c, nil
}

// initStore 按 storage.backend 初始化文档存储
func (c *Container) initStore(ctx context.Context) error {
	sc := c.cfg.Storage
	var (
		store port.DocumentStore
		err   error
	)
	switch sc.Backend {
	case config.BackendMemory:
		store = memory.New()
	case config.BackendMongo:
		store, err = mongostore.New(ctx, mongostore.Options{
			URI:            sc.Mongo.URI,
			ConnectTimeout: c.cfg.MongoConnectTimeout(),
			AppName:        c.cfg.App.Name,
		})
	case config.BackendSQLite:
		store, err = sqlitestore.New(sc.SQLite.Path)
	case config.BackendPostgres:
		store, err = pgstore.New(ctx, sc.Postgres.DSN)
	default:
		err = fmt.Errorf("unknown backend %q", sc.Backend)
	}
	if err != nil {
		return err
	}

	c.store = store
	c.closerChain = append(c.closerChain, func() error {
		log.Info().Str("backend", sc.Backend).Msg("closing document store")
		return store.Close(context.Background())
	})

	log.Info().Str("backend", sc.Backend).Msg("document store initialized")
	return nil
}

// initEvents 初始化 Redis / Kafka 发布端, 都未启用时使用 noop
func (c *Container) initEvents(ctx context.Context) error {
	var pubs []port.EventPublisher

	if rc := c.cfg.Events.Redis; rc.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})

		// 测试连接
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			_ = rdb.Close()
			return fmt.Errorf("redis ping failed: %w", err)
		}

		pub := redisrepo.New(rdb, rc.Prefix, c.cfg.RedisTTL(), rc.OrderStream, rc.OrderChannel)
		pubs = append(pubs, pub)
		c.closerChain = append(c.closerChain, func() error {
			log.Info().Msg("closing redis connection")
			return pub.Close()
		})
		log.Info().Str("addr", rc.Addr).Int("db", rc.DB).Msg("redis initialized")
	}

	if kc := c.cfg.Events.Kafka; kc.Enabled {
		prod, err := kafka.Dial(kc.Brokers, kc.ClientID)
		if err != nil {
			return err
		}
		pub := kafka.NewPublisher(prod, kc.KlineTopic, kc.OrderTopic)
		pubs = append(pubs, pub)
		c.closerChain = append(c.closerChain, func() error {
			log.Info().Msg("closing kafka producer")
			return pub.Close()
		})
		log.Info().Strs("brokers", kc.Brokers).Msg("kafka initialized")
	}

	if len(pubs) == 0 {
		c.publisher = composite.Noop()
		return nil
	}
	c.publisher = composite.New(pubs...)
	return nil
}

func (c *Container) initRepositories(ctx context.Context) error {
	assets, err := storage.NewAssetStore(ctx, c.store)
	if err != nil {
		return err
	}
	snapshots, err := storage.NewAssetSnapshotStore(ctx, c.store)
	if err != nil {
		return err
	}
	orders, err := storage.NewOrderStore(ctx, c.store)
	if err != nil {
		return err
	}
	klines := storage.NewKlineStores(c.store)

	c.app = appcontainer.New(appcontainer.Repositories{
		Klines:    klines,
		Assets:    assets,
		Snapshots: snapshots,
		Orders:    orders,
	}, c.publisher)
	return nil
}

// Feeds 按 collector.exchanges 构建 kline feeds
func (c *Container) Feeds() ([]port.KlineFeed, error) {
	cc := c.cfg.Collector
	feeds := make([]port.KlineFeed, 0, len(cc.Exchanges))
	for _, name := range cc.Exchanges {
		factory, ok := feed.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s (registered: %v)", ErrUnknownExchange, name, feed.Names())
		}
		feeds = append(feeds, factory(cc.WsURL, cc.Interval))
	}
	if len(feeds) == 0 {
		return nil, ErrNoFeedsEnabled
	}
	return feeds, nil
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// Store 获取文档存储
func (c *Container) Store() port.DocumentStore {
	return c.store
}

// App 获取应用层容器 (服务)
func (c *Container) App() *appcontainer.Container {
	return c.app
}

// Close 关闭所有资源（按后进先出顺序）
func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for i := len(c.closerChain) - 1; i >= 0; i-- {
			if e := c.closerChain[i](); e != nil {
				log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		log.Info().Msg("container closed")
	})
	return err
}
