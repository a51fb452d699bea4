package cmd

import (
	"context"
	"os"

	"example.com/jodi/services/whatsapp/config"
	"example.com/jodi/services/whatsapp/internal/cache"
	"example.com/jodi/services/whatsapp/internal/database"
	"example.com/jodi/services/whatsapp/internal/messaging"
	"example.com/jodi/services/whatsapp/internal/metrics"
	"example.com/jodi/services/whatsapp/internal/models"
	"example.com/jodi/services/whatsapp/internal/repository"
	"example.com/jodi/services/whatsapp/internal/search"
	"example.com/jodi/services/whatsapp/internal/service"
	"example.com/jodi/services/whatsapp/internal/tracing"
	"example.com/jodi/services/whatsapp/internal/tunnel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

func loadConfig() (config.Config, error) {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return config.Config{}, err
	}

	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	return cfg, nil
}

// connect acquires the store connection for a run: tunnel first when a
// bastion is configured, then the database through it. The returned cleanup
// releases both regardless of how the run ends.
func connect(ctx context.Context, cfg config.Config) (*gorm.DB, func(), error) {
	var (
		t         *tunnel.Tunnel
		localHost string
		localPort int
		err       error
	)

	if cfg.SSH.BastionHost != "" {
		t, err = tunnel.Dial(ctx, cfg.SSH, cfg.DB.Host, cfg.DB.Port)
		if err != nil {
			return nil, nil, err
		}
		localHost, localPort = t.LocalAddr()
	}

	db, err := database.Connect(cfg.DB, localHost, localPort)
	if err != nil {
		if t != nil {
			t.Close()
		}
		return nil, nil, err
	}

	cleanup := func() {
		if err := database.Close(db); err != nil {
			log.Warn().Err(err).Msg("Failed to close database connection")
		}
		if t != nil {
			if err := t.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close SSH tunnel")
			}
		}
	}

	return db, cleanup, nil
}

// buildProductionService wires the full production dependency set. The
// optional integrations follow the warn-and-continue pattern: a missing
// cache, mirror or tracer never blocks a load.
func buildProductionService(cfg config.Config, db *gorm.DB, collector *metrics.Metrics) (*service.IngestService, func()) {
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without it")
		redisCache = nil
	}

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer, _ = tracing.NewTracer(config.TracingConfig{})
	}

	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without the mirror")
		elasticClient = nil
	}

	var bus messaging.ServiceBusClient
	if cfg.ServiceBus.ConnectionString != "" {
		bus, err = messaging.NewServiceBusClient(cfg.ServiceBus, "whatsapp-loader")
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Service Bus client, continuing without notifications")
			bus = nil
		}
	}

	svc := service.NewIngestService(
		cfg,
		repository.NewEventRepository(db),
		repository.NewRunRepository(db),
		redisCache,
		elasticClient,
		bus,
		tracer,
		collector,
	)

	cleanup := func() {
		if err := redisCache.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close Redis connection")
		}
		if bus != nil {
			if err := bus.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close Service Bus client")
			}
		}
		tracer.Close()
	}

	return svc, cleanup
}

// buildLocalService wires the debug-mode dependency set: no store, no
// optional integrations.
func buildLocalService(cfg config.Config, collector *metrics.Metrics) *service.IngestService {
	tracer, _ := tracing.NewTracer(config.TracingConfig{})
	return service.NewIngestService(cfg, nil, nil, nil, nil, nil, tracer, collector)
}

func migrate(db *gorm.DB) error {
	return models.SetupModels(db)
}

func logSummary(sum *service.Summary) {
	log.Info().
		Str("run_id", sum.RunID.String()).
		Int("files", sum.Files).
		Int("events_parsed", sum.Parsed).
		Int("joined", sum.Joined).
		Int("left", sum.Left).
		Int("added", sum.Added).
		Int64("rows_inserted", sum.Inserted).
		Int64("duplicates_skipped", sum.DuplicatesSkipped).
		Int("lines_skipped", sum.LinesSkipped).
		Int64("duration_ms", sum.DurationMs).
		Msg("Run summary")
}
