package di

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"EnergyPull/internal/domain/repository"
	"EnergyPull/internal/handler/api"
	internalrepo "EnergyPull/internal/repository"
	"EnergyPull/internal/service/ratelimit"
	"EnergyPull/internal/services/features"
	"EnergyPull/internal/services/merge"
	"EnergyPull/internal/services/standardize"
	"EnergyPull/internal/services/validate"
	"EnergyPull/internal/usecase"
	"EnergyPull/pkg/cache"
	pkgch "EnergyPull/pkg/clickhouse"
	"EnergyPull/pkg/config"
	xhttp "EnergyPull/pkg/http"
	pkgkafka "EnergyPull/pkg/kafka"
	applogger "EnergyPull/pkg/logger"
	"EnergyPull/pkg/metrics"
	"EnergyPull/pkg/server"
)

const latestReportTTL = 90 * 24 * time.Hour

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
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
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the application logger. Error logs are aggregated and
// shipped to the log topic when a producer is available.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil && cfg.Kafka.LogTopic != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.Collector.Interval,
			CountThreshold: cfg.Log.Collector.Threshold,
			Topic:          cfg.Kafka.LogTopic,
			Publisher:      producer,
		})
	}
	return l, nil
}

// ProvideRegistry creates the registry for pipeline and HTTP metrics. It is
// served together with the default registry.
func ProvideRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) repository.Metrics {
	return metrics.New(reg)
}

// ProvideCache uses Redis when enabled so the run lock holds across replicas.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		return cache.NewMemoryCache(cache.WithMemoryMaxSize(100), cache.WithMemoryCleanup(time.Minute)), nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPrefix(cfg.Redis.KeyPrefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

func ProvideRunState(c cache.Service) *internalrepo.CacheRunState {
	return internalrepo.NewCacheRunState(c, latestReportTTL)
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when export is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(4, 2),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideDatasetSink creates the ClickHouse export and its schema.
func ProvideDatasetSink(client *pkgch.Client, l *applogger.Logger) (repository.DatasetSink, error) {
	if client == nil {
		return internalrepo.NoopDatasetSink{}, nil
	}
	store := internalrepo.NewCHDatasetStore(client, l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

func ProvideRunPublisher(cfg *config.Config, producer *pkgkafka.Producer) repository.RunPublisher {
	if producer == nil {
		return internalrepo.NoopRunPublisher{}
	}
	return internalrepo.NewKafkaRunPublisher(producer, cfg.Kafka.Topic)
}

func ProvideRawStore(cfg *config.Config, l *applogger.Logger) *internalrepo.RawStore {
	return internalrepo.NewRawStore(cfg.Paths.RawDir, l)
}

func ProvideDatasetWriter(cfg *config.Config, l *applogger.Logger) *internalrepo.CSVDatasetWriter {
	return internalrepo.NewCSVDatasetWriter(cfg.Paths.ProcessedDir, cfg.Paths.TrainingDir, l)
}

func ProvideArchiver(cfg *config.Config, l *applogger.Logger) *internalrepo.FSArchiver {
	return internalrepo.NewFSArchiver(cfg.ArchiveRoot(), l)
}

// ProvidePipelineRunner assembles the processing stages.
func ProvidePipelineRunner(
	cfg *config.Config,
	l *applogger.Logger,
	raw *internalrepo.RawStore,
	writer *internalrepo.CSVDatasetWriter,
	archiver *internalrepo.FSArchiver,
	sink repository.DatasetSink,
	publisher repository.RunPublisher,
	state *internalrepo.CacheRunState,
	m repository.Metrics,
) *usecase.PipelineRunner {
	return usecase.NewPipelineRunner(usecase.PipelineDeps{
		Raw:          raw,
		Processed:    writer,
		Writer:       writer,
		Sink:         sink,
		Publisher:    publisher,
		Archiver:     archiver,
		Lock:         state,
		Store:        state,
		Metrics:      m,
		Standardizer: standardize.New(l),
		Merger:       merge.New(cfg.HistoryStart(), l),
		Validator:    validate.New(nil),
		Engineer:     features.NewEngineer(l),
	}, usecase.PipelineConfig{
		LockKey:    cfg.Pipeline.LockKey,
		LockTTL:    cfg.Pipeline.LockTTL,
		RunTimeout: cfg.Pipeline.RunTimeout,
	}, l)
}

func ProvideScheduler(cfg *config.Config, runner *usecase.PipelineRunner, l *applogger.Logger) (*usecase.Scheduler, error) {
	return usecase.NewScheduler(runner, cfg.Pipeline.Schedule, cfg.Location(), l)
}

// ProvideHTTPServer creates the ops API, or nil when the server is disabled.
func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	runner *usecase.PipelineRunner,
	reg *prometheus.Registry,
	c cache.Service,
	sink repository.DatasetSink,
) *xhttp.Server {
	if !cfg.Server.Enabled {
		return nil
	}
	handler := api.NewRunsEchoHandler(l, runner,
		api.HealthCheck{Name: "cache", Check: func(ctx context.Context) error {
			_, err := c.Exists(ctx, "healthz")
			return err
		}},
		api.HealthCheck{Name: "clickhouse", Check: sink.Health},
	)
	if cfg.Server.TriggerBurst > 0 && cfg.Server.TriggerInterval > 0 {
		handler.WithTriggerLimit(ratelimit.New(float64(cfg.Server.TriggerBurst), 1/cfg.Server.TriggerInterval.Seconds()))
	}

	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetrics(reg, cfg.Metrics.Path, cfg.Server.SlowRequest))
	}
	return xhttp.NewServer(handler, l, opts...)
}

// ProvideResources lists what the app closes on shutdown, in opening order.
func ProvideResources(
	c cache.Service,
	client *pkgch.Client,
	sink repository.DatasetSink,
	publisher repository.RunPublisher,
) []server.Resource {
	resources := []server.Resource{{Name: "cache", Closer: c}}
	if client != nil {
		resources = append(resources, server.Resource{Name: "clickhouse", Closer: client})
	}
	return append(resources,
		server.Resource{Name: "dataset sink", Closer: sink},
		server.Resource{Name: "kafka publisher", Closer: publisher},
	)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	runner *usecase.PipelineRunner,
	scheduler *usecase.Scheduler,
	httpServer *xhttp.Server,
	resources []server.Resource,
) *server.App {
	return server.New(cfg, l, runner, scheduler, httpServer, resources)
}
