package di

import (
	"context"
	"fmt"
	"time"

	"CoinCast/internal/domain/models"
	drepo "CoinCast/internal/domain/repository"
	"CoinCast/internal/handler/api"
	mid "CoinCast/internal/middleware"
	internalrepo "CoinCast/internal/repository"
	icache "CoinCast/internal/service/cache"
	"CoinCast/internal/service/coingecko"
	upstream "CoinCast/internal/service/metrics"
	"CoinCast/internal/service/ratelimit"
	"CoinCast/internal/services/inference"
	"CoinCast/internal/services/scaler"
	"CoinCast/internal/services/series"
	"CoinCast/internal/usecase"
	pkgcache "CoinCast/pkg/cache"
	pkgch "CoinCast/pkg/clickhouse"
	"CoinCast/pkg/config"
	xhttp "CoinCast/pkg/http"
	pkgkafka "CoinCast/pkg/kafka"
	applogger "CoinCast/pkg/logger"
	"CoinCast/pkg/metrics"
	"CoinCast/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
)

const tableViewRows = 60

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideRegistry uses the default registry so Go runtime collectors stay exported.
func ProvideRegistry() prometheus.Registerer {
	upstream.Register(prometheus.DefaultRegisterer)
	return prometheus.DefaultRegisterer
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg prometheus.Registerer) drepo.Metrics {
	return metrics.New(reg)
}

// ProvideMarketDataSource creates the CoinGecko client.
func ProvideMarketDataSource(cfg *config.Config) drepo.MarketDataSource {
	return coingecko.New(coingecko.Config{
		BaseURL:    cfg.Source.BaseURL,
		APIKey:     cfg.Source.APIKey,
		CoinID:     cfg.Source.CoinID,
		VsCurrency: cfg.Source.VsCurrency,
		Days:       cfg.Source.Days,
		CandleTail: cfg.Source.CandleTail,
		Timeout:    cfg.Source.Timeout,
	})
}

func ProvideCandleBuffer(cfg *config.Config) *series.Buffer[models.CandleRecord] {
	return series.NewBuffer[models.CandleRecord](cfg.Polling.BufferCapacity)
}

func ProvideMetaBuffer(cfg *config.Config) *series.Buffer[models.MetaRecord] {
	return series.NewBuffer[models.MetaRecord](cfg.Polling.BufferCapacity)
}

// ProvideCandlePoller creates the OHLC poller with its record guard.
func ProvideCandlePoller(cfg *config.Config, src drepo.MarketDataSource, buf *series.Buffer[models.CandleRecord],
	l *applogger.Logger, m drepo.Metrics) *usecase.StreamPoller[models.CandleRecord] {
	guard := mid.NewRecordGuard("candles", mid.ValidateCandle, m,
		mid.WithTransform(mid.CandleToUTC),
		mid.WithSkipSeen[models.CandleRecord](cfg.Polling.SkipSeen),
		mid.WithMaxFutureSkew[models.CandleRecord](cfg.Polling.MaxFutureSkew),
	)
	return usecase.NewStreamPoller("candles", usecase.CandleFetcher(src), buf,
		usecase.RetryPolicy{Interval: cfg.Polling.CandleInterval, MaxConsecutiveFailures: cfg.Polling.MaxConsecutiveFailures},
		l, m, usecase.WithGuard(guard))
}

// ProvideMetaPoller creates the market metadata poller with its record guard.
func ProvideMetaPoller(cfg *config.Config, src drepo.MarketDataSource, buf *series.Buffer[models.MetaRecord],
	l *applogger.Logger, m drepo.Metrics) *usecase.StreamPoller[models.MetaRecord] {
	guard := mid.NewRecordGuard("meta", mid.ValidateMeta, m,
		mid.WithTransform(mid.MetaToUTC),
		mid.WithSkipSeen[models.MetaRecord](cfg.Polling.SkipSeen),
		mid.WithMaxFutureSkew[models.MetaRecord](cfg.Polling.MaxFutureSkew),
	)
	return usecase.NewStreamPoller("meta", usecase.MetaFetcher(src), buf,
		usecase.RetryPolicy{Interval: cfg.Polling.MetaInterval, MaxConsecutiveFailures: cfg.Polling.MaxConsecutiveFailures},
		l, m, usecase.WithGuard(guard))
}

// ProvideMarketTable joins the two buffers with the configured alignment policy.
func ProvideMarketTable(cfg *config.Config, candles *series.Buffer[models.CandleRecord],
	metas *series.Buffer[models.MetaRecord], m drepo.Metrics) (*usecase.MarketTable, error) {
	fill, err := series.ParseFillPolicy(cfg.Alignment.FillPolicy)
	if err != nil {
		return nil, err
	}
	return usecase.NewMarketTable(candles, metas, series.AlignOptions{Tolerance: cfg.Alignment.Tolerance, Fill: fill}, m), nil
}

// ProvideScaler loads the fitted statistics. A load failure disables prediction only.
func ProvideScaler(cfg *config.Config, l *applogger.Logger) *scaler.RobustScaler {
	if !cfg.Prediction.Enabled {
		return nil
	}
	sc, err := scaler.LoadFile(cfg.Prediction.ScalerPath)
	if err != nil {
		l.Error("scaler not loaded, prediction disabled",
			applogger.String("path", cfg.Prediction.ScalerPath), applogger.Error(err))
		return nil
	}
	l.Info("scaler loaded",
		applogger.String("path", cfg.Prediction.ScalerPath), applogger.Int("features", sc.FeatureCount()))
	return sc
}

// ProvideModel creates the HTTP model client, nil when prediction is off.
func ProvideModel(cfg *config.Config) drepo.Model {
	if !cfg.Prediction.Enabled || cfg.Prediction.ModelURL == "" {
		return nil
	}
	return inference.NewHTTPModel(inference.Config{
		URL:      cfg.Prediction.ModelURL,
		Timeout:  cfg.Prediction.ModelTimeout,
		Steps:    cfg.Prediction.WindowLength,
		Features: len(cfg.Prediction.Features),
		Attempts: cfg.Prediction.ModelAttempts,
	})
}

// ProvideCache returns Redis behind an in-memory L1 when enabled, memory only otherwise.
// An unreachable Redis falls back to memory.
func ProvideCache(cfg *config.Config, l *applogger.Logger) pkgcache.Service {
	if !cfg.Redis.Enabled {
		return pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(64))
	}
	rc, err := pkgcache.NewRedisCache(context.Background(),
		pkgcache.WithRedisAddr(cfg.Redis.Addr),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		l.Warn("redis unavailable, prediction state kept in memory", applogger.Error(err))
		return pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(64))
	}
	return pkgcache.NewLayeredCache(rc, time.Minute, pkgcache.WithMemoryMaxSize(64))
}

func ProvideStateStore(c pkgcache.Service, cfg *config.Config) drepo.StateStore {
	return icache.NewStateStore(c, cfg.Redis.Key, cfg.Redis.TTL)
}

func needsClickHouse(cfg *config.Config) bool {
	return cfg.Archive.Backend == "clickhouse" || (cfg.Archive.Backend == "kafka" && cfg.Kafka.ConsumeToClickHouse)
}

// ProvideClickHouseClient connects and creates the archive schema; nil when no component needs it.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !needsClickHouse(cfg) {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	if err := client.InitSchema(ctx, pkgch.ArchiveSchema(cfg.ClickHouse.Database)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates a producer when the archive or the log collector publishes to Kafka.
func ProvideKafkaProducer(cfg *config.Config, reg prometheus.Registerer) (*pkgkafka.Producer, error) {
	if cfg.Archive.Backend != "kafka" && !cfg.Log.Collect {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
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

// ProvideArchive selects the archive backend.
func ProvideArchive(cfg *config.Config, ch *pkgch.Client, producer *pkgkafka.Producer, l *applogger.Logger) (drepo.Archive, error) {
	switch cfg.Archive.Backend {
	case "clickhouse":
		return internalrepo.NewClickHouseArchive(ch, l), nil
	case "sqlite":
		a, err := internalrepo.NewSQLiteArchive(cfg.SQLite.Path, l)
		if err != nil {
			return nil, fmt.Errorf("sqlite archive: %w", err)
		}
		return a, nil
	case "kafka":
		return internalrepo.NewKafkaArchive(producer, cfg.Kafka.Topics.Rows, cfg.Kafka.Topics.Predictions), nil
	default:
		return internalrepo.NopArchive{}, nil
	}
}

func ProvideOrchestrator(cfg *config.Config, table *usecase.MarketTable, model drepo.Model, sc *scaler.RobustScaler,
	store drepo.StateStore, archive drepo.Archive, l *applogger.Logger, m drepo.Metrics) *usecase.PredictionOrchestrator {
	return usecase.NewPredictionOrchestrator(table, model, sc, usecase.OrchestratorConfig{
		WindowLength:   cfg.Prediction.WindowLength,
		Features:       cfg.Prediction.Features,
		Interval:       cfg.Prediction.Interval,
		ArchiveTimeout: cfg.Archive.Timeout,
	}, l, m, usecase.WithStateStore(store), usecase.WithArchive(archive))
}

// ProvideScheduler creates the auto refresh job; nil when refresh.schedule is empty.
func ProvideScheduler(cfg *config.Config, orch *usecase.PredictionOrchestrator, l *applogger.Logger) (*usecase.RefreshScheduler, error) {
	if cfg.Refresh.Schedule == "" {
		return nil, nil
	}
	return usecase.NewRefreshScheduler(orch, cfg.Refresh.Schedule, cfg.Prediction.ModelTimeout+10*time.Second, l)
}

// ProvideConsumerHandlers drains the archive topics into ClickHouse when configured.
func ProvideConsumerHandlers(cfg *config.Config, ch *pkgch.Client, l *applogger.Logger, m drepo.Metrics) []pkgkafka.MessageHandler {
	if cfg.Archive.Backend != "kafka" || !cfg.Kafka.ConsumeToClickHouse || ch == nil {
		return nil
	}
	sink := internalrepo.NewClickHouseArchive(ch, l)
	return []pkgkafka.MessageHandler{
		usecase.NewArchiveHandler(cfg.Kafka.Topics.Rows, usecase.ArchiveRows, sink, m),
		usecase.NewArchiveHandler(cfg.Kafka.Topics.Predictions, usecase.ArchivePredictions, sink, m),
	}
}

// ProvideKafkaConsumer creates a Kafka consumer configured from YAML; nil without handlers.
func ProvideKafkaConsumer(cfg *config.Config, handlers []pkgkafka.MessageHandler, l *applogger.Logger,
	reg prometheus.Registerer) (*pkgkafka.Consumer, error) {
	if len(handlers) == 0 {
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
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.LoggingHook(l))
	return consumer, nil
}

// ProvideHandlers builds every HTTP route group.
func ProvideHandlers(cfg *config.Config, l *applogger.Logger, table *usecase.MarketTable, orch *usecase.PredictionOrchestrator,
	archive drepo.Archive, sched *usecase.RefreshScheduler,
	candles *usecase.StreamPoller[models.CandleRecord], metas *usecase.StreamPoller[models.MetaRecord]) []xhttp.Handler {
	var history *usecase.HistoryUseCase
	if cfg.Archive.Backend == "clickhouse" || cfg.Archive.Backend == "sqlite" {
		history = usecase.NewHistoryUseCase(archive)
	}
	src := api.StatusSource{
		Pollers:    []usecase.Poller{candles, metas},
		Buffers:    table,
		Prediction: orch,
	}
	if sched != nil {
		src.Scheduler = sched
	}
	return []xhttp.Handler{
		api.NewMarketHandler(l, table, orch, history, ratelimit.NewCooldown(cfg.Refresh.ManualCooldown)),
		api.NewStatusHandler(src),
		api.NewStreamHandler(l, table, orch, cfg.Refresh.WSPushInterval, tableViewRows),
	}
}

// ProvideHTTPServer creates the echo server.
func ProvideHTTPServer(cfg *config.Config, l *applogger.Logger, handlers []xhttp.Handler) *xhttp.Server {
	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(l, handlers,
		xhttp.WithHost(cfg.Server.Host),
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowRequest(cfg.Server.SlowRequest),
		xhttp.WithCORS(cfg.Server.CORS),
		xhttp.WithMetricsPath(metricsPath),
	)
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	candles *usecase.StreamPoller[models.CandleRecord],
	metas *usecase.StreamPoller[models.MetaRecord],
	orch *usecase.PredictionOrchestrator,
	sched *usecase.RefreshScheduler,
	httpServer *xhttp.Server,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	archive drepo.Archive,
	producer *pkgkafka.Producer,
	cache pkgcache.Service,
	ch *pkgch.Client,
) *server.App {
	var closers []server.Closer
	if cfg.Log.Collect && producer != nil {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.Topics.Logs,
			Source:         "coincast",
			Publisher:      producer,
		})
		closers = append(closers, server.Closer{Name: "log collector", Closer: closerFunc(func() error {
			l.RemoveCollector()
			return nil
		})})
	}
	closers = append(closers, server.Closer{Name: "archive", Closer: archive})
	// the kafka archive closes the producer itself
	if producer != nil && cfg.Archive.Backend != "kafka" {
		closers = append(closers, server.Closer{Name: "kafka producer", Closer: producer})
	}
	closers = append(closers, server.Closer{Name: "cache", Closer: cache})
	if ch != nil {
		closers = append(closers, server.Closer{Name: "clickhouse", Closer: ch})
	}

	app := server.Components{
		Log:             l,
		Pollers:         []usecase.Poller{candles, metas},
		Orchestrator:    orch,
		HTTP:            httpServer,
		ConsumerHandler: handlers,
		Closers:         closers,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}
	if sched != nil {
		app.Scheduler = sched
	}
	if consumer != nil {
		app.Consumer = consumer
	}
	return server.New(app)
}
