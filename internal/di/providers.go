// Package di wires the core's dependencies together: configuration,
// infrastructure clients, the storage layer, per-venue adapters, the
// metrics engine, the anomaly detector, and the HTTP/notification surfaces.
// Each Provide* function builds one dependency from already-built ones,
// following the teacher's internal/di split between hand-written providers
// and a generated injector.
package di

import (
	"context"
	"fmt"
	"time"

	"MarketSentry/internal/detector"
	"MarketSentry/internal/domain/models"
	"MarketSentry/internal/domain/repository"
	"MarketSentry/internal/handler"
	"MarketSentry/internal/metricsengine"
	"MarketSentry/internal/notify"
	"MarketSentry/internal/pipeline"
	"MarketSentry/internal/storage/coldstore"
	"MarketSentry/internal/storage/hotstore"
	"MarketSentry/internal/venue"
	"MarketSentry/internal/zscore"
	"MarketSentry/pkg/cache"
	"MarketSentry/pkg/clickhouse"
	"MarketSentry/pkg/config"
	xhttp "MarketSentry/pkg/http"
	pkgkafka "MarketSentry/pkg/kafka"
	"MarketSentry/pkg/logger"
	pkgmetrics "MarketSentry/pkg/metrics"
	"MarketSentry/pkg/queue"
	"MarketSentry/pkg/server"

	"github.com/shopspring/decimal"
)

// ProvideLogger builds the process-wide structured logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.LogLevel,
		Format: "console",
		Output: "stdout",
	})
}

// ProvideMetrics builds the Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return pkgmetrics.New()
}

// ProvideClock builds the production, wall-clock-backed Clock. Tests supply
// their own fake clock directly; this provider is production-only.
func ProvideClock() repository.Clock {
	return repository.SystemClock{}
}

// ProvideRedisCache dials the shared Redis instance backing both the hot
// store and the cold store's fallback queue.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	rc, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdleConns, cfg.Redis.PoolTimeout),
		cache.WithRedisPrefix(cfg.Redis.KeyPrefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideClickHouseClient dials ClickHouse. Schema creation is deferred to
// ProvideColdStore's Init call, so this provider only needs a live
// connection.
func ProvideClickHouseClient(cfg *config.Config) (*clickhouse.Client, error) {
	client, err := clickhouse.NewClient(
		clickhouse.WithHost(cfg.ClickHouse.Host),
		clickhouse.WithPort(cfg.ClickHouse.Port),
		clickhouse.WithDatabase(cfg.ClickHouse.Database),
		clickhouse.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		clickhouse.WithMaxConnections(20, 10),
		clickhouse.WithHTTP(cfg.ClickHouse.UseHTTP),
		clickhouse.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		clickhouse.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		clickhouse.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideHotStore builds the Redis-backed overwrite-wins projection.
func ProvideHotStore(rc *cache.RedisCache, cfg *config.Config, log *logger.Logger, metrics repository.Metrics) repository.HotStore {
	return hotstore.NewStore(rc, cfg.Redis.KeyPrefix, cfg.HotStore.BufferSize, log, metrics)
}

// ProvideColdStoreQueue builds the Redis-backed durable queue the cold store
// falls back to once its in-process retry budget is exhausted. It runs in
// producer+consumer mode so this process both enqueues and drains its own
// failed batches.
func ProvideColdStoreQueue(rc *cache.RedisCache, log *logger.Logger) (*queue.RedisQueue, error) {
	rq := queue.NewRedisQueue(log, &queue.QueueConfig{Workers: 2}, rc.Client(), queue.ModeProducerConsumer)
	if err := rq.Start(); err != nil {
		return nil, fmt.Errorf("cold store fallback queue: %w", err)
	}
	return rq, nil
}

// ProvideColdStore builds the ClickHouse-backed system of record, registers
// the retry job against its own fallback queue, and initializes its schema.
func ProvideColdStore(
	chClient *clickhouse.Client,
	rq *queue.RedisQueue,
	cfg *config.Config,
	log *logger.Logger,
	metrics repository.Metrics,
) (repository.ColdStore, error) {
	fallback := coldstore.NewFallbackQueue(rq)
	rq.RegisterJob(coldstore.NewRetryJob(chClient.DB(), log))

	store := coldstore.New(chClient, coldstore.Config{
		BatchSize:     cfg.ColdStore.BatchSize,
		FlushInterval: cfg.ColdStore.FlushInterval,
		RetryMax:      cfg.ColdStore.RetryMax,
		RetryBackoff:  cfg.ColdStore.RetryBackoff,
		MaxQueueDepth: cfg.ColdStore.MaxQueueDepth,
	}, fallback, log, metrics)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("cold store init: %w", err)
	}
	return store, nil
}

// ProvideVenueAdapters builds one Adapter per configured venue, selecting
// the wire protocol and REST fallback fetcher named by each venue's
// protocol field.
func ProvideVenueAdapters(cfg *config.Config, clock repository.Clock, log *logger.Logger) ([]repository.VenueAdapter, error) {
	adapters := make([]repository.VenueAdapter, 0, len(cfg.Venues))
	for _, v := range cfg.Venues {
		adapterCfg := venueAdapterConfig(v)

		var protocol venue.Protocol
		var rest venue.RESTFetcher
		switch v.Protocol {
		case "binance":
			protocol = venue.NewBinanceProtocol(adapterCfg.Instruments)
			rest = venue.NewBinanceRESTFetcher()
		case "okx":
			protocol = venue.NewOKXProtocol(adapterCfg.Instruments)
			rest = venue.NewOKXRESTFetcher()
		default:
			return nil, fmt.Errorf("venue %s: unknown protocol %q", v.Name, v.Protocol)
		}

		adapters = append(adapters, venue.NewAdapter(adapterCfg, protocol, rest, clock, log))
	}
	return adapters, nil
}

// ProvideZScoreEngine builds the ring-buffer z-score engine from the
// feature-flag document.
func ProvideZScoreEngine(cfg *config.Config, log *logger.Logger) (*zscore.Engine, error) {
	minStd, err := decimal.NewFromString(cfg.Features.ZScoreMinStd)
	if err != nil {
		return nil, fmt.Errorf("features.zscore_min_std: %w", err)
	}
	return zscore.New(zscore.Config{
		WindowSize:        cfg.Features.ZScoreWindowSize,
		MinSamples:        cfg.Features.ZScoreMinSamples,
		MinStd:            minStd,
		WarmupLogInterval: cfg.Features.ZScoreWarmupLogInterval,
	}, log), nil
}

// ProvideMetricsEngine builds the book/ticker metrics engine over the
// z-score engine it composes with.
func ProvideMetricsEngine(zscoreEngine *zscore.Engine, cfg *config.Config, log *logger.Logger) *metricsengine.Engine {
	opts := []metricsengine.Option{
		metricsengine.WithPairStaleness(cfg.Features.BasisStaleness),
	}
	if len(cfg.Features.DepthLevelsBps) > 0 {
		opts = append(opts, metricsengine.WithDepthLevels(metricsengine.DepthLevelsBps(cfg.Features.DepthLevelsBps)))
	}
	return metricsengine.New(zscoreEngine, log, opts...)
}

// ProvideAlertRegistry converts the alert-definitions and thresholds
// documents into the detector's lookup registry.
func ProvideAlertRegistry(cfg *config.Config) (*detector.Registry, error) {
	thresholds, err := thresholdsFromConfig(cfg.Thresholds)
	if err != nil {
		return nil, err
	}
	return detector.NewRegistry(alertDefinitionsFromConfig(cfg.AlertDefs), thresholds), nil
}

// ProvideKafkaProducer builds the optional Kafka producer backing the
// cross-process bridge. Returns nil, nil when no brokers are configured.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.WriteTimeout, cfg.Kafka.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideKafkaBridge wraps the optional producer as the pipeline's
// cross-process fan-out. Returns nil when no producer was built.
func ProvideKafkaBridge(producer *pkgkafka.Producer, cfg *config.Config, log *logger.Logger) *pipeline.KafkaBridge {
	if producer == nil {
		return nil
	}
	return pipeline.NewKafkaBridge(producer, cfg.Kafka.SnapshotTopic, cfg.Kafka.AlertTopic, log)
}

// ProvideDispatcher builds the multi-channel notification dispatcher: a
// console channel is always registered, Slack is registered when a webhook
// URL is configured, and the Kafka bridge is registered when active so an
// alert definition can list "kafka" as one of its channels.
func ProvideDispatcher(cfg *config.Config, log *logger.Logger, bridge *pipeline.KafkaBridge) repository.Dispatcher {
	channels := []notify.Channel{notify.NewConsoleChannel(log)}
	if cfg.Notify.SlackWebhookURL != "" {
		channels = append(channels, notify.NewSlackChannel(cfg.Notify.SlackWebhookURL, cfg.Notify.HTTPTimeout, log))
	}
	if bridge != nil {
		channels = append(channels, bridge)
	}
	return notify.NewMultiDispatcher(log, channels...)
}

// AlertChannels are the two channels the detector's lifecycle events are
// emitted onto: one feeding the pipeline's alert-store task, one feeding
// its alert-dispatcher task. They're built before the detector so both the
// detector (as sender) and the pipeline (as receiver) can be given the
// same channels at construction time.
type AlertChannels struct {
	Store    chan *models.Alert
	Dispatch chan detector.AlertDispatch
}

// ProvideAlertChannels builds the channel pair connecting the detector to
// the pipeline's alert-store and alert-dispatcher consumer tasks.
func ProvideAlertChannels(cfg *config.Config) AlertChannels {
	storeBuf := cfg.Features.AlertStoreBuffer
	if storeBuf <= 0 {
		storeBuf = 256
	}
	dispatchBuf := cfg.Features.AlertDispatchBuffer
	if dispatchBuf <= 0 {
		dispatchBuf = 256
	}
	return AlertChannels{
		Store:    make(chan *models.Alert, storeBuf),
		Dispatch: make(chan detector.AlertDispatch, dispatchBuf),
	}
}

// ProvideDetector builds the single-owner anomaly detector task. It no
// longer talks to the hot store, cold store, or dispatcher directly;
// every lifecycle transition is emitted onto alertCh's two channels for
// the pipeline's alert-store and alert-dispatcher tasks to consume in
// parallel.
func ProvideDetector(
	registry *detector.Registry,
	clock repository.Clock,
	log *logger.Logger,
	metrics repository.Metrics,
	alertCh AlertChannels,
	cfg *config.Config,
) *detector.Detector {
	return detector.New(registry, clock, log, metrics, alertCh.Store, alertCh.Dispatch, detector.Config{
		EscalationScanInterval: cfg.Features.EscalationScanInterval,
	})
}

// ProvidePipeline wires venues, the metrics engine, the detector, and the
// storage writers into the running Pipeline.
func ProvidePipeline(
	venues []repository.VenueAdapter,
	engine *metricsengine.Engine,
	det *detector.Detector,
	hot repository.HotStore,
	cold repository.ColdStore,
	dispatch repository.Dispatcher,
	metrics repository.Metrics,
	log *logger.Logger,
	cfg *config.Config,
	bridge *pipeline.KafkaBridge,
	alertCh AlertChannels,
) *pipeline.Pipeline {
	return pipeline.New(
		venues, engine, det, hot, cold, dispatch, metrics, log,
		basisPairsFromConfig(cfg.BasisPairs),
		crossVenuePairsFromConfig(cfg.CrossVenuePairs),
		bridge,
		alertCh.Store,
		alertCh.Dispatch,
		pipeline.Config{GapResetThreshold: cfg.Features.GapResetThreshold},
	)
}

// ProvideHTTPHandler builds the HTTP route set the core exposes alongside
// /metrics.
func ProvideHTTPHandler(p *pipeline.Pipeline, hot repository.HotStore, cold repository.ColdStore) xhttp.Handler {
	return handler.NewHealthHandler(p, hot, cold)
}

// queueCloser adapts RedisQueue's context-taking Stop to the plain Closer
// shape the rest of the infrastructure clients expose.
type queueCloser struct{ rq *queue.RedisQueue }

func (q queueCloser) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return q.rq.Stop(ctx)
}

// ProvideApp assembles the top-level application. The infrastructure clients
// are threaded through only so App can close them in reverse order during
// shutdown; nothing else uses them at this layer.
func ProvideApp(
	cfg *config.Config,
	p *pipeline.Pipeline,
	httpHandler xhttp.Handler,
	log *logger.Logger,
	rc *cache.RedisCache,
	chClient *clickhouse.Client,
	rq *queue.RedisQueue,
	kafkaProducer *pkgkafka.Producer,
) *server.App {
	closers := []server.Closer{queueCloser{rq}, chClient, rc}
	if kafkaProducer != nil {
		closers = append(closers, kafkaProducer)
	}
	return server.New(cfg, p, httpHandler, log, closers...)
}
