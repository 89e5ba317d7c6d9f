package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iliyamo/booking-reconciler/internal/config"
	"github.com/iliyamo/booking-reconciler/internal/database"
	"github.com/iliyamo/booking-reconciler/internal/identity"
	"github.com/iliyamo/booking-reconciler/internal/queue"
	"github.com/iliyamo/booking-reconciler/internal/repository"
	"github.com/iliyamo/booking-reconciler/internal/service"
)

// app holds the process wide dependencies shared by serve and worker.
type app struct {
	cfg    config.Config
	logger zerolog.Logger
	db     *sql.DB
	store  *repository.Store
	bus    queue.Bus
	redis  *redis.Client
}

// loadConfig reads the environment and builds the logger.
func loadConfig(opts *RootOptions, logOut io.Writer) (config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, zerolog.Nop(), fmt.Errorf("load config: %w", err)
	}
	level := cfg.LogLevel
	if opts.LogLevel != "" {
		level = opts.LogLevel
	}
	logger, err := config.NewLogger(logOut, level)
	if err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	return cfg, logger.With().Str("env", cfg.Env).Logger(), nil
}

func openDB(ctx context.Context, cfg config.Config, migrate bool) (*sql.DB, error) {
	db, err := database.Open(database.Options{
		Driver: cfg.DB.Driver,
		User:   cfg.DB.User,
		Pass:   cfg.DB.Pass,
		Host:   cfg.DB.Host,
		Port:   cfg.DB.Port,
		Name:   cfg.DB.Name,
		Path:   cfg.DB.Path,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if migrate {
		if err := database.Migrate(ctx, db, cfg.DB.Driver); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}
	return db, nil
}

// newBus returns the transport selected by QUEUE_DRIVER.
func newBus(cfg config.QueueConfig, logger zerolog.Logger) (queue.Bus, error) {
	switch cfg.Driver {
	case config.QueueRabbitMQ:
		return queue.NewRabbitMQ(cfg.RabbitMQURL, logger), nil
	case config.QueueKafka:
		return queue.NewKafka(queue.ParseBrokers(cfg.KafkaBrokers), logger), nil
	case config.QueueMemory:
		return queue.NewMemoryBus(logger), nil
	default:
		return nil, fmt.Errorf("unsupported queue driver %q", cfg.Driver)
	}
}

func newApp(ctx context.Context, opts *RootOptions, logOut io.Writer) (*app, error) {
	cfg, logger, err := loadConfig(opts, logOut)
	if err != nil {
		return nil, err
	}
	db, err := openDB(ctx, cfg, opts.Migrate)
	if err != nil {
		return nil, err
	}
	bus, err := newBus(cfg.Queue, logger.With().Str("component", "queue").Logger())
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		logger.Warn().Str("addr", cfg.Redis.Addr).Msg("redis unavailable, continuing without it")
	}

	logger.Info().
		Str("db_driver", cfg.DB.Driver).
		Str("queue_driver", cfg.Queue.Driver).
		Str("deferred_topic", cfg.Queue.DeferredTopic).
		Msg("dependencies ready")

	return &app{
		cfg:    cfg,
		logger: logger,
		db:     db,
		store:  repository.NewStore(db, database.TxOptions(cfg.DB.Driver)),
		bus:    bus,
		redis:  rdb,
	}, nil
}

func (a *app) bookingService() *service.BookingService {
	deferrer := queue.NewDeferrer(a.bus, a.cfg.Queue.DeferredTopic, a.logger.With().Str("component", "deferrer").Logger())
	return service.NewBookingService(a.store, identity.ContextProvider{}, deferrer, a.logger.With().Str("component", "bookings").Logger())
}

func (a *app) retryConsumer(svc *service.BookingService) *queue.RetryConsumer {
	claimer := queue.NewRedisClaimer(a.redis, "deferred", queue.DefaultClaimTTL)
	return queue.NewRetryConsumer(svc, claimer, a.logger.With().Str("component", "retry").Logger())
}

func (a *app) runWorker(ctx context.Context, svc *service.BookingService) error {
	return a.retryConsumer(svc).Run(ctx, a.bus, a.cfg.Queue.DeferredTopic, a.cfg.Queue.GroupID)
}

func (a *app) Close() error {
	var errs []error
	if err := a.bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close queue: %w", err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	return errors.Join(errs...)
}
