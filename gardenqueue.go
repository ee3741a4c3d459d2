package gardenqueue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/greengoods/gardenqueue/attachments"
	"github.com/greengoods/gardenqueue/chain"
	"github.com/greengoods/gardenqueue/circuitbreaker"
	"github.com/greengoods/gardenqueue/config"
	"github.com/greengoods/gardenqueue/core"
	"github.com/greengoods/gardenqueue/events"
	"github.com/greengoods/gardenqueue/events/amqppub"
	"github.com/greengoods/gardenqueue/netmon"
	"github.com/greengoods/gardenqueue/processors"
	"github.com/greengoods/gardenqueue/registry"
	"github.com/greengoods/gardenqueue/retry"
	"github.com/greengoods/gardenqueue/store/memory"
	"github.com/greengoods/gardenqueue/store/postgres"
	"github.com/greengoods/gardenqueue/store/redis"
)

// StoreBackend selects the durable store implementation.
type StoreBackend string

const (
	StoreMemory   StoreBackend = "memory"
	StoreRedis    StoreBackend = "redis"
	StorePostgres StoreBackend = "postgres"
)

// Queue bundles the engine with the supporting services the daemon
// runs: the connectivity monitor, the optional AMQP event mirror, and
// their lifecycles.
type Queue struct {
	Engine  *core.Engine
	Bus     *events.Bus
	Monitor *netmon.Monitor

	publisher *amqppub.Publisher
	detach    func()

	mu      sync.Mutex
	cancel  context.CancelFunc
	started bool
}

// New assembles a queue from configuration. The smart-account client is
// caller-provided since it carries credentials and bundler wiring.
func New(ctx context.Context, cfg config.Config, client chain.SmartAccountClient) (*Queue, error) {
	store, err := buildStore(cfg)
	if err != nil {
		return nil, err
	}

	var resolver *attachments.Resolver
	if cfg.S3Bucket != "" {
		uploader, err := attachments.NewS3Uploader(ctx, attachments.S3Options{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
			BaseURL:   cfg.MediaBaseURL,
			KeyPrefix: "works",
		})
		if err != nil {
			return nil, fmt.Errorf("build media uploader: %w", err)
		}
		resolver = attachments.NewResolver(store, uploader)
	}

	reg := registry.NewRegistry()
	if err := reg.Register(processors.NewWorkProcessor(resolver)); err != nil {
		return nil, err
	}
	if err := reg.Register(processors.NewApprovalProcessor()); err != nil {
		return nil, err
	}

	policy := retry.NewPolicy(retry.Config{
		MaxRetries:        cfg.MaxRetries,
		InitialDelay:      cfg.InitialDelay,
		BackoffMultiplier: cfg.BackoffMultiplier,
		MaxDelay:          cfg.MaxDelay,
		Jitter:            cfg.Jitter,
	})

	bus := events.NewBus()
	mopts := netmon.DefaultOptions()
	mopts.ProbeURL = cfg.ProbeURL
	mopts.Interval = cfg.ProbeInterval
	monitor := netmon.NewMonitor(mopts)
	breaker := circuitbreaker.New(cfg.BreakerEnabled, cfg.BreakerThreshold,
		cfg.BreakerWindow, cfg.BreakerReset)

	engine := core.NewEngine(store, reg, policy, bus, client,
		core.WithChainID(cfg.ChainID),
		core.WithProcessingCeiling(cfg.ProcessingCeiling),
		core.WithSenderConcurrency(cfg.SenderConcurrency),
		core.WithNetworkMonitor(monitor),
		core.WithBreaker(breaker),
	)

	q := &Queue{
		Engine:  engine,
		Bus:     bus,
		Monitor: monitor,
	}

	if cfg.AMQPURI != "" {
		opts := amqppub.DefaultOptions()
		opts.URI = cfg.AMQPURI
		opts.Exchange = cfg.AMQPExchange
		q.publisher = amqppub.NewPublisher(opts)
	}
	return q, nil
}

func buildStore(cfg config.Config) (core.Store, error) {
	switch StoreBackend(cfg.StoreBackend) {
	case StoreMemory:
		return memory.NewStore(memory.Options{}), nil
	case StoreRedis:
		opts := redis.DefaultOptions()
		opts.URI = cfg.RedisURI
		return redis.NewStore(opts), nil
	case StorePostgres:
		if cfg.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres backend selected but POSTGRES_DSN is empty")
		}
		return postgres.NewStore(cfg.PostgresDSN), nil
	default:
		return nil, fmt.Errorf("unsupported store backend: %s", cfg.StoreBackend)
	}
}

// Start brings every component up: the engine (which connects the
// store), the connectivity probe loop, and the AMQP mirror when
// configured. It does not block.
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started {
		return nil
	}

	if err := q.Engine.Start(ctx); err != nil {
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	q.cancel = cancel
	go q.Monitor.Run(runCtx)

	if q.publisher != nil {
		if err := q.publisher.Connect(ctx); err != nil {
			// The mirror is best effort; the queue works without it.
			slog.Warn("event mirror unavailable", "error", err)
		} else {
			q.detach = q.publisher.Attach(q.Bus)
		}
	}

	q.started = true
	return nil
}

// Stop shuts everything down in reverse order.
func (q *Queue) Stop() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.started {
		return nil
	}
	q.started = false

	if q.detach != nil {
		q.detach()
		q.detach = nil
	}
	if q.publisher != nil {
		if err := q.publisher.Close(); err != nil {
			slog.Warn("closing event mirror", "error", err)
		}
	}
	if q.cancel != nil {
		q.cancel()
		q.cancel = nil
	}
	return q.Engine.Stop()
}

// Work starts the queue and blocks until a shutdown signal arrives.
func (q *Queue) Work(ctx context.Context) error {
	if err := q.Start(ctx); err != nil {
		return err
	}

	quit := signals()
	select {
	case <-ctx.Done():
	case <-quit:
	}
	return q.Stop()
}
