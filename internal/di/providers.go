package di

import (
	"context"
	"fmt"

	"RiskDesk/internal/domain/repository"
	dsvc "RiskDesk/internal/domain/service"
	"RiskDesk/internal/handler/api"
	mid "RiskDesk/internal/middleware"
	internalrepo "RiskDesk/internal/repository"
	"RiskDesk/internal/service/marketfeed"
	apimetrics "RiskDesk/internal/service/metrics"
	"RiskDesk/internal/service/ratelimit"
	"RiskDesk/internal/services/sentiment"
	"RiskDesk/internal/usecase"
	"RiskDesk/pkg/cache"
	pkgch "RiskDesk/pkg/clickhouse"
	"RiskDesk/pkg/config"
	xhttp "RiskDesk/pkg/http"
	pkgkafka "RiskDesk/pkg/kafka"
	applogger "RiskDesk/pkg/logger"
	"RiskDesk/pkg/metrics"
	"RiskDesk/pkg/queue"
	"RiskDesk/pkg/server"

	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
)

// ProviderSet is every provider InitializeApp draws from.
var ProviderSet = wire.NewSet(
	// Observability
	ProvideLogger,
	ProvideRegistry,
	ProvideMetrics,
	ProvideAPIMetrics,

	// Infrastructure clients
	ProvideClickHouseClient,
	ProvideRedisClient,
	ProvideCache,
	ProvideQueue,
	ProvideKafkaProducer,
	ProvideInfra,

	// Repositories
	ProvidePriceStore,
	ProvideReportPublisher,
	ProvideActionExecutor,

	// Collectors
	ProvideMarketState,
	ProvidePositionHandler,
	ProvideKafkaConsumer,
	ProvideFeedCollector,
	ProvideSentimentCollector,

	// Use cases
	ProvideStages,
	ProvideRiskPipeline,
	ProvideBacktestService,
	ProvideBacktestJobs,

	// HTTP
	ProvideRateLimiter,
	ProvideHandlers,
	ProvideHTTPServer,

	// Application server
	ProvideApp,
)

// ProvideLogger builds the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	format := "json"
	if cfg.Log.Pretty {
		format = "console"
	}
	l, err := applogger.New(&applogger.Config{Level: cfg.Log.Level, Format: format, Output: cfg.Log.Output})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment), applogger.String("symbol", cfg.Symbol)), nil
}

// ProvideRegistry creates the Prometheus registry shared by every collector.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

func ProvideAPIMetrics(reg *prometheus.Registry) *apimetrics.APIMetrics {
	return apimetrics.NewAPIMetrics(reg)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port, cfg.ClickHouse.UseHTTP),
		pkgch.WithAuth(cfg.ClickHouse.Database, cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithPool(10, 5, 0),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvidePriceStore reads candles from ClickHouse. Without a client backtests
// need an inline series.
func ProvidePriceStore(ch *pkgch.Client, cfg *config.Config, l *applogger.Logger) repository.PriceHistoryStore {
	if ch == nil {
		return nil
	}
	return internalrepo.NewCHPriceStore(ch, cfg.ClickHouse.Database, cfg.ClickHouse.CandlePrefix, l)
}

// ProvideRedisClient dials Redis, or returns nil when disabled.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	client, err := cache.DialRedis(cfg.Redis.Addr,
		cache.WithRedisAuth(cfg.Redis.Password, cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdle, cfg.Redis.PoolTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("redis client: %w", err)
	}
	return client, nil
}

// ProvideCache layers memory over Redis, or memory alone without Redis.
func ProvideCache(client *redis.Client) cache.Service {
	var rc *cache.RedisCache
	if client != nil {
		rc = cache.NewRedisCache(client, "riskdesk")
	}
	return cache.NewLayeredCache(rc, cache.WithLayeredMemory(cache.WithMemoryMaxSize(1000)))
}

// ProvideQueue builds the Redis queue. It only runs workers when the queue is
// enabled; otherwise it is a publisher for the log collector. Nil without Redis.
func ProvideQueue(cfg *config.Config, client *redis.Client, l *applogger.Logger) *queue.RedisQueue {
	if client == nil {
		return nil
	}
	mode := queue.ModeProducerOnly
	if cfg.Queue.Enabled {
		mode = queue.ModeProducerConsumer
	}
	return queue.NewRedisQueue(l, queue.QueueConfig{
		Workers:     cfg.Queue.Workers,
		RetryLimit:  cfg.Queue.MaxRetries,
		RetryDelay:  cfg.Queue.RetryDelay,
		PollTimeout: cfg.Queue.PollTimeout,
		TopicCap:    cfg.Queue.TopicCap,
	}, client, queue.WithKeyPrefix("riskdesk:"+cfg.Queue.Name), queue.WithMode(mode))
}

// ProvideKafkaProducer creates a Kafka producer.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideReportPublisher ships aggregates, scores and backtest summaries.
func ProvideReportPublisher(p *pkgkafka.Producer, cfg *config.Config) repository.ReportPublisher {
	return internalrepo.NewKafkaReportPublisher(p, cfg.Kafka.Topics.Reports, cfg.Symbol)
}

// ProvideActionExecutor forwards control actions to the actions topic.
func ProvideActionExecutor(p *pkgkafka.Producer, cfg *config.Config) repository.ActionExecutor {
	return internalrepo.NewKafkaActionExecutor(p, cfg.Kafka.Topics.Actions)
}

func ProvideMarketState(cfg *config.Config) *usecase.MarketState {
	return usecase.NewMarketState(cfg.Pipeline.HistoryWindow)
}

func ProvidePositionHandler(cfg *config.Config, state *usecase.MarketState, m repository.Metrics) *usecase.PositionStateHandler {
	return usecase.NewPositionStateHandler(cfg.Kafka.Topics.Positions, state, m)
}

// ProvideKafkaConsumer creates the positions consumer, or nil when disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger, reg *prometheus.Registry, h *usecase.PositionStateHandler) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
		pkgkafka.WithConsumerRegisterer(reg),
		pkgkafka.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook(), failureLogHook(l))),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.RegisterHandler(h)
	return consumer, nil
}

// failureLogHook logs handler failures with the message trace id.
func failureLogHook(l *applogger.Logger) pkgkafka.ConsumerHook {
	return pkgkafka.HookFuncs{
		After: func(ctx context.Context, topic string, km kafkago.Message, err error) {
			if err == nil {
				return
			}
			l.Warn("kafka message rejected",
				applogger.String("topic", topic),
				applogger.String("trace_id", pkgkafka.TraceID(ctx)),
				applogger.Int64("offset", km.Offset),
				applogger.Error(err))
		},
	}
}

// ProvideFeedCollector connects the market feed to MarketState, or returns nil
// when no feed URL is configured.
func ProvideFeedCollector(cfg *config.Config, state *usecase.MarketState, store repository.PriceHistoryStore, m repository.Metrics, l *applogger.Logger) *usecase.FeedCollector {
	if cfg.MarketFeed.URL == "" {
		l.Warn("market feed url not set; live aggregation will skip every cycle")
		return nil
	}
	feed := marketfeed.New(cfg.MarketFeed.APIKey, cfg.MarketFeed.URL, cfg.Symbol,
		cfg.MarketFeed.ReconnectDelay, cfg.MarketFeed.PingInterval, l)
	var opts []usecase.FeedOption
	if store != nil {
		tf := repository.NormalizeTimeframe(cfg.Backtest.Timeframe)
		opts = append(opts, usecase.WithHistorySeed(store, cfg.Symbol, tf, cfg.Pipeline.HistoryWindow))
	}
	return usecase.NewFeedCollector(feed, state, m, l, opts...)
}

// ProvideSentimentCollector polls the news and social analyzers, or returns nil
// when no sentiment service is configured.
func ProvideSentimentCollector(cfg *config.Config, state *usecase.MarketState, m repository.Metrics, l *applogger.Logger) *usecase.SentimentCollector {
	s := cfg.Sentiment
	if s.BaseURL == "" {
		return nil
	}
	analyzers := []dsvc.SentimentAnalyzer{
		sentiment.NewNewsAnalyzer(s.BaseURL, s.NewsPath, s.Timeout, sentiment.WithAttempts(s.Attempts)),
		sentiment.NewSocialAnalyzer(s.BaseURL, s.SocialPath, s.Timeout, sentiment.WithAttempts(s.Attempts)),
	}
	return usecase.NewSentimentCollector(cfg.Symbol, s.Interval, state, m, l, analyzers...)
}

// ProvideStages builds the aggregation, scoring and control stages of the pipeline.
func ProvideStages(cfg *config.Config) (mid.Stages, error) {
	aggCfg := usecase.DefaultAggregatorConfig()
	aggCfg.VolatilityWindow = cfg.Pipeline.VolatilityWindow
	scorer, err := usecase.NewRiskScorer(usecase.ScorerConfig{
		Weights:             cfg.Scorer.Weights,
		Cutoffs:             cfg.Scorer.Cutoffs,
		VolatilityReference: cfg.Scorer.VolatilityReference,
		SlippageReference:   cfg.Scorer.SlippageReference,
		LatencyReference:    cfg.Scorer.LatencyReference,
	})
	if err != nil {
		return mid.Stages{}, fmt.Errorf("risk scorer: %w", err)
	}
	return mid.Stages{
		Aggregator: usecase.NewSignalAggregator(aggCfg),
		Scorer:     scorer,
		Controller: usecase.NewRiskController(usecase.ControllerConfig{
			Cooldown:       cfg.Controller.Cooldown,
			ReduceFraction: cfg.Controller.ReduceFraction,
		}),
		Alerts:  usecase.NewAlertStore(cfg.Controller.AlertCap, nil),
		Signals: usecase.NewSignalLog(cfg.Signals.MaxHistory),
	}, nil
}

func ProvideRiskPipeline(
	cfg *config.Config,
	state *usecase.MarketState,
	stages mid.Stages,
	m repository.Metrics,
	pub repository.ReportPublisher,
	exec repository.ActionExecutor,
	l *applogger.Logger,
) *mid.RiskPipeline {
	return mid.NewRiskPipeline(state, stages, m,
		mid.WithInterval(cfg.Pipeline.AggregateInterval),
		mid.WithTickTimeout(cfg.Pipeline.TickTimeout),
		mid.WithPublisher(pub),
		mid.WithExecutor(exec),
		mid.WithLogger(l),
	)
}

func ProvideBacktestService(
	cfg *config.Config,
	m repository.Metrics,
	l *applogger.Logger,
	store repository.PriceHistoryStore,
	c cache.Service,
	pub repository.ReportPublisher,
) *usecase.BacktestService {
	opts := []usecase.BacktestOption{
		usecase.WithResultCache(c, cfg.Backtest.CacheTTL),
		usecase.WithBacktestPublisher(pub),
	}
	if store != nil {
		opts = append(opts, usecase.WithPriceHistory(store, repository.NormalizeTimeframe(cfg.Backtest.Timeframe)))
	}
	return usecase.NewBacktestService(usecase.NewBacktestSimulator(), m, l, opts...)
}

// ProvideBacktestJobs registers the async backtest job, or returns nil when the
// queue is disabled.
func ProvideBacktestJobs(cfg *config.Config, svc *usecase.BacktestService, q *queue.RedisQueue, c cache.Service, l *applogger.Logger) *usecase.BacktestJobs {
	if q == nil || !cfg.Queue.Enabled {
		return nil
	}
	jobs := usecase.NewBacktestJobs(svc, q, c, cfg.Backtest.JobStateTTL, l)
	q.RegisterJobs(jobs)
	return jobs
}

func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(float64(cfg.Backtest.RateLimit), cfg.Backtest.RateBurst)
}

// ProvideHandlers lists every HTTP handler mounted under /api.
func ProvideHandlers(
	l *applogger.Logger,
	pipeline *mid.RiskPipeline,
	stages mid.Stages,
	svc *usecase.BacktestService,
	jobs *usecase.BacktestJobs,
	limiter *ratelimit.Limiter,
	m *apimetrics.APIMetrics,
) []xhttp.Handler {
	var jobQueue api.BacktestJobQueue
	if jobs != nil {
		jobQueue = jobs
	}
	return []xhttp.Handler{
		api.NewRiskEchoHandler(l, pipeline, stages.Signals, stages.Alerts, m),
		api.NewBacktestEchoHandler(l, svc, jobQueue, limiter, m),
	}
}

func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, handlers []xhttp.Handler, reg *prometheus.Registry) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(cfg.Metrics.Path, reg, reg))
	}
	return xhttp.NewServer(l, handlers, opts...)
}

// Infra groups the clients the App closes last.
type Infra struct {
	ClickHouse *pkgch.Client
	Redis      *redis.Client
	Cache      cache.Service
	Producer   *pkgkafka.Producer
	Queue      *queue.RedisQueue
}

func ProvideInfra(ch *pkgch.Client, rc *redis.Client, c cache.Service, p *pkgkafka.Producer, q *queue.RedisQueue) Infra {
	return Infra{ClickHouse: ch, Redis: rc, Cache: c, Producer: p, Queue: q}
}

// ProvideApp orders the components: infrastructure first, HTTP last.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	infra Infra,
	consumer *pkgkafka.Consumer,
	feed *usecase.FeedCollector,
	sentimentCollector *usecase.SentimentCollector,
	pipeline *mid.RiskPipeline,
	httpServer *xhttp.Server,
) *server.App {
	var cs []server.Component
	if infra.ClickHouse != nil {
		cs = append(cs, server.Closer("clickhouse", infra.ClickHouse.Close))
	}
	if infra.Redis != nil {
		cs = append(cs, server.Closer("redis", infra.Redis.Close))
	}
	cs = append(cs,
		server.Closer("cache", infra.Cache.Close),
		server.Closer("kafka producer", infra.Producer.Close),
	)
	if q := infra.Queue; q != nil {
		if cfg.Log.Collect.Enabled {
			cs = append(cs, server.Component{
				Name: "log collector",
				Start: func(context.Context) error {
					l.AddCollector(&applogger.CollectionConfig{
						TimeInterval:   cfg.Log.Collect.Interval,
						CountThreshold: cfg.Log.Collect.Threshold,
						Topic:          cfg.Log.Collect.Topic,
						Publisher:      q,
					})
					return nil
				},
				Stop: func(context.Context) error {
					l.RemoveCollector()
					return nil
				},
			})
		}
		cs = append(cs, server.Component{
			Name:  "queue",
			Start: func(context.Context) error { return q.Start() },
			Stop:  q.Stop,
		})
	}
	if consumer != nil {
		cs = append(cs, server.Component{
			Name:  "kafka consumer",
			Start: func(context.Context) error { return consumer.Start() },
			Stop:  consumer.Stop,
		})
	}
	if feed != nil {
		cs = append(cs, server.Component{Name: "market feed", Start: feed.Start, Stop: feed.Shutdown})
	}
	if sentimentCollector != nil {
		cs = append(cs, server.Component{
			Name: "sentiment",
			Start: func(ctx context.Context) error {
				sentimentCollector.Start(ctx)
				return nil
			},
			Stop: sentimentCollector.Stop,
		})
	}
	cs = append(cs,
		server.Component{
			Name: "risk pipeline",
			Start: func(ctx context.Context) error {
				pipeline.Start(ctx)
				return nil
			},
			Stop: pipeline.Stop,
		},
		server.Component{
			Name:  "http",
			Start: func(context.Context) error { return httpServer.Start() },
			Stop:  httpServer.Stop,
		},
	)
	return server.New(l, cfg.Server.ShutdownTimeout, cs...)
}
